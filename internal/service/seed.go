package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

// SeedDemo loads the demo warung catalog plus opening stock into the local
// store. Existing rows with the same IDs are overwritten, so it is safe to run
// against an already-seeded database.
func (s *Service) SeedDemo(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}

	now := time.Now().UnixMilli()

	categories := []domain.Category{
		{ID: "cat-kopi", Name: "Kopi", Icon: "coffee", DisplayOrder: 1, IsActive: true, CreatedAt: now},
		{ID: "cat-makanan", Name: "Makanan", Icon: "bowl", DisplayOrder: 2, IsActive: true, CreatedAt: now},
		{ID: "cat-sembako", Name: "Sembako", Icon: "sack", DisplayOrder: 3, IsActive: true, CreatedAt: now},
	}

	products := []domain.Product{
		{ID: "prod-kopi-susu", Name: "Kopi Susu", CategoryID: "cat-kopi", BasePrice: 15000, CostPrice: 6000, Stock: 100, StoreID: s.storeID, IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-nasi-ayam", Name: "Nasi Ayam Geprek", CategoryID: "cat-makanan", BasePrice: 18000, CostPrice: 9000, Stock: 50, StoreID: s.storeID, IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-beras", Name: "Beras Premium", CategoryID: "cat-sembako", BasePrice: 10000, CostPrice: 8500, Stock: 500, StoreID: s.storeID, IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
	}

	groups := []domain.ModifierGroup{
		{ID: "grp-kopi-ukuran", ProductID: "prod-kopi-susu", Name: "Ukuran", SelectionType: domain.SelectionSingle, MinSelection: 1, MaxSelection: 1, IsRequired: true, DisplayOrder: 1},
		{ID: "grp-ayam-topping", ProductID: "prod-nasi-ayam", Name: "Topping", SelectionType: domain.SelectionMultiple, MinSelection: 0, MaxSelection: 3, IsRequired: false, DisplayOrder: 1},
		{ID: "grp-beras-satuan", ProductID: "prod-beras", Name: "Satuan", SelectionType: domain.SelectionSingle, MinSelection: 1, MaxSelection: 1, IsRequired: true, DisplayOrder: 1},
	}

	modifiers := []domain.Modifier{
		{ID: "mod-ukuran-reguler", ModifierGroupID: "grp-kopi-ukuran", Name: "Reguler", PriceAdjustment: 0, IsDefault: true, IsAvailable: true, DisplayOrder: 1},
		{ID: "mod-ukuran-besar", ModifierGroupID: "grp-kopi-ukuran", Name: "Besar", PriceAdjustment: 5000, IsAvailable: true, DisplayOrder: 2},
		{ID: "mod-topping-telur", ModifierGroupID: "grp-ayam-topping", Name: "Telur", PriceAdjustment: 3000, IsAvailable: true, DisplayOrder: 1},
		{ID: "mod-topping-kerupuk", ModifierGroupID: "grp-ayam-topping", Name: "Kerupuk", PriceAdjustment: 1000, IsAvailable: false, DisplayOrder: 2},
		{ID: "mod-topping-tanpa-nasi", ModifierGroupID: "grp-ayam-topping", Name: "Tanpa Nasi", PriceAdjustment: -2000, IsAvailable: true, DisplayOrder: 3},
		{ID: "mod-satuan-eceran", ModifierGroupID: "grp-beras-satuan", Name: "Eceran 1kg", PriceAdjustment: 0, IsDefault: true, IsAvailable: true, DisplayOrder: 1, UnitMultiplier: 1},
		{ID: "mod-satuan-karung", ModifierGroupID: "grp-beras-satuan", Name: "Karung (50kg)", PriceAdjustment: 450000, IsAvailable: true, DisplayOrder: 2, UnitMultiplier: 50},
	}

	if err := s.repo.BulkPutCategories(ctx, categories); err != nil {
		return err
	}
	if err := s.repo.BulkPutProducts(ctx, products); err != nil {
		return err
	}
	if err := s.repo.BulkPutModifierGroups(ctx, groups); err != nil {
		return err
	}
	if err := s.repo.BulkPutModifiers(ctx, modifiers); err != nil {
		return err
	}

	events := make([]domain.InventoryEvent, 0, len(products))
	for _, product := range products {
		existing, err := s.repo.SumStock(ctx, product.ID, "")
		if err != nil {
			return err
		}
		if existing != 0 {
			continue
		}
		events = append(events, domain.InventoryEvent{
			ID:             xid.New("inv"),
			EventType:      domain.EventRestock,
			ProductID:      product.ID,
			QuantityChange: product.Stock,
			Timestamp:      now,
			Metadata:       map[string]string{"reason": "demo seed"},
		})
	}
	if len(events) > 0 {
		if err := s.repo.AppendInventoryEvents(ctx, events); err != nil {
			return err
		}
		for _, event := range events {
			s.invalidateStock(ctx, event.ProductID)
		}
	}

	log.Printf("[service] demo catalog seeded products=%d modifiers=%d", len(products), len(modifiers))
	return nil
}
