package cart

import (
	"errors"
	"testing"

	"warungpos/backend/internal/domain"
)

func berasProduct() domain.ProductWithModifiers {
	return domain.ProductWithModifiers{
		Product: domain.Product{
			ID: "prod-beras", Name: "Beras", CategoryID: "cat-sembako",
			BasePrice: 10000, IsAvailable: true, IsActive: true,
		},
		ModifierGroups: []domain.ModifierGroupWithModifiers{{
			ModifierGroup: domain.ModifierGroup{
				ID: "grp-satuan", ProductID: "prod-beras", Name: "Satuan",
				SelectionType: domain.SelectionSingle, IsRequired: true,
				MinSelection: 1, MaxSelection: 1,
			},
			Modifiers: []domain.Modifier{
				{ID: "mod-eceran", ModifierGroupID: "grp-satuan", Name: "Eceran (1kg)", PriceAdjustment: 0, IsDefault: true, IsAvailable: true, UnitMultiplier: 1},
				{ID: "mod-karung", ModifierGroupID: "grp-satuan", Name: "Karung (50kg)", PriceAdjustment: 450000, IsAvailable: true, UnitMultiplier: 50},
			},
		}},
	}
}

func ayamProduct() domain.ProductWithModifiers {
	return domain.ProductWithModifiers{
		Product: domain.Product{
			ID: "prod-nasi-ayam", Name: "Nasi Ayam", CategoryID: "cat-makanan",
			BasePrice: 18000, IsAvailable: true, IsActive: true,
		},
		ModifierGroups: []domain.ModifierGroupWithModifiers{{
			ModifierGroup: domain.ModifierGroup{
				ID: "grp-topping", ProductID: "prod-nasi-ayam", Name: "Topping",
				SelectionType: domain.SelectionMultiple, MaxSelection: 2,
			},
			Modifiers: []domain.Modifier{
				{ID: "mod-telur", ModifierGroupID: "grp-topping", Name: "Telur", PriceAdjustment: 3000, IsAvailable: true},
				{ID: "mod-kerupuk", ModifierGroupID: "grp-topping", Name: "Kerupuk", PriceAdjustment: 1000, IsAvailable: false},
				{ID: "mod-tanpa-nasi", ModifierGroupID: "grp-topping", Name: "Tanpa Nasi", PriceAdjustment: -2000, IsAvailable: true},
			},
		}},
	}
}

func TestUnitPriceFixedAtAddTime(t *testing.T) {
	c := New()

	line, err := c.Add(berasProduct(), 1, []string{"mod-karung"}, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if line.UnitPrice != 460000 {
		t.Fatalf("unit price = %d, want 460000", line.UnitPrice)
	}

	// Quantity changes reprice from the stored unit price, not the catalog.
	if err := c.UpdateQuantity(line.ID, 3); err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if got := c.Subtotal(); got != 1380000 {
		t.Fatalf("subtotal = %d, want 1380000", got)
	}
}

func TestRequiredSingleGroupNeedsExactlyOne(t *testing.T) {
	c := New()

	if _, err := c.Add(berasProduct(), 1, nil, ""); !errors.Is(err, ErrSelectionRequired) {
		t.Fatalf("no selection err = %v, want ErrSelectionRequired", err)
	}
	if _, err := c.Add(berasProduct(), 1, []string{"mod-eceran", "mod-karung"}, ""); !errors.Is(err, ErrSingleSelectionGroup) {
		t.Fatalf("two selections err = %v, want ErrSingleSelectionGroup", err)
	}
	if _, err := c.Add(berasProduct(), 1, []string{"mod-eceran"}, ""); err != nil {
		t.Fatalf("valid selection rejected: %v", err)
	}
}

func TestMultipleGroupRules(t *testing.T) {
	c := New()

	// Optional group: no selection is fine.
	line, err := c.Add(ayamProduct(), 1, nil, "")
	if err != nil {
		t.Fatalf("no topping: %v", err)
	}
	if line.UnitPrice != 18000 {
		t.Fatalf("unit price = %d, want 18000", line.UnitPrice)
	}

	// Negative adjustments subtract from the unit price.
	line, err = c.Add(ayamProduct(), 1, []string{"mod-telur", "mod-tanpa-nasi"}, "")
	if err != nil {
		t.Fatalf("two toppings: %v", err)
	}
	if line.UnitPrice != 19000 {
		t.Fatalf("unit price = %d, want 19000", line.UnitPrice)
	}

	if _, err := c.Add(ayamProduct(), 1, []string{"mod-kerupuk"}, ""); !errors.Is(err, ErrModifierUnavailable) {
		t.Fatalf("unavailable modifier err = %v, want ErrModifierUnavailable", err)
	}
	if _, err := c.Add(ayamProduct(), 1, []string{"mod-ukuran-besar"}, ""); !errors.Is(err, ErrUnknownModifier) {
		t.Fatalf("foreign modifier err = %v, want ErrUnknownModifier", err)
	}
}

func TestIdenticalLinesMerge(t *testing.T) {
	c := New()

	first, err := c.Add(ayamProduct(), 1, []string{"mod-telur"}, "")
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	second, err := c.Add(ayamProduct(), 2, []string{"mod-telur"}, "")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if second.ID != first.ID || second.Quantity != 3 {
		t.Fatalf("merge failed: %+v vs %+v", first, second)
	}
	if len(c.Lines()) != 1 {
		t.Fatalf("lines = %d, want 1", len(c.Lines()))
	}

	// Different notes keep their own line.
	if _, err := c.Add(ayamProduct(), 1, []string{"mod-telur"}, "pedas"); err != nil {
		t.Fatalf("noted add: %v", err)
	}
	if len(c.Lines()) != 2 {
		t.Fatalf("lines = %d, want 2", len(c.Lines()))
	}
}

func TestUpdateQuantityToZeroRemovesLine(t *testing.T) {
	c := New()

	line, err := c.Add(ayamProduct(), 2, nil, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.UpdateQuantity(line.ID, 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if !c.IsEmpty() {
		t.Fatalf("cart should be empty")
	}
}

func TestItemsSnapshotCart(t *testing.T) {
	c := New()
	if _, err := c.Add(berasProduct(), 1, []string{"mod-karung"}, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	items := c.Items("tx-1")
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	item := items[0]
	if item.TransactionID != "tx-1" || item.ProductName != "Beras" || item.ItemTotal != 460000 {
		t.Fatalf("snapshot = %+v", item)
	}
	if len(item.SelectedModifiers) != 1 || item.SelectedModifiers[0].ModifierID != "mod-karung" {
		t.Fatalf("selected modifiers = %+v", item.SelectedModifiers)
	}
}
