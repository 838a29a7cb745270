package cart

import (
	"errors"
	"fmt"
	"slices"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrUnknownModifier      = errors.New("modifier does not belong to this product")
	ErrModifierUnavailable  = errors.New("modifier is not available")
	ErrSelectionRequired    = errors.New("required modifier group has no selection")
	ErrTooManySelections    = errors.New("too many modifiers selected for group")
	ErrDuplicateSelection   = errors.New("modifier selected twice")
	ErrSingleSelectionGroup = errors.New("single-selection group allows one modifier")
)

// Line is one cart entry. UnitPrice is fixed when the line is added; later
// quantity changes recompute the line total from it, so a product price edit
// mid-session never repriced an existing cart.
type Line struct {
	ID                string
	ProductID         string
	ProductName       string
	BasePrice         int64
	UnitPrice         int64
	Quantity          int
	SelectedModifiers []domain.SelectedModifier
	Notes             string
}

func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Cart accumulates lines for a single checkout. It is not safe for concurrent
// use; each checkout builds its own.
type Cart struct {
	lines []Line
}

func New() *Cart {
	return &Cart{}
}

// Add validates the selection against the product's modifier groups, prices
// the line, and appends it. Adding the same product with the same modifiers
// and notes merges into the existing line instead.
func (c *Cart) Add(product domain.ProductWithModifiers, quantity int, modifierIDs []string, notes string) (Line, error) {
	if quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	if !product.IsAvailable || !product.IsActive {
		return Line{}, fmt.Errorf("%w: %s", ErrProductUnavailable, product.Name)
	}

	selected, err := resolveSelection(product, modifierIDs)
	if err != nil {
		return Line{}, err
	}

	unitPrice := product.BasePrice
	for _, m := range selected {
		unitPrice += m.PriceAdjustment
	}

	for i := range c.lines {
		if c.lines[i].ProductID == product.ID && c.lines[i].Notes == notes && sameSelection(c.lines[i].SelectedModifiers, selected) {
			c.lines[i].Quantity += quantity
			return c.lines[i], nil
		}
	}

	line := Line{
		ID:                xid.New("line"),
		ProductID:         product.ID,
		ProductName:       product.Name,
		BasePrice:         product.BasePrice,
		UnitPrice:         unitPrice,
		Quantity:          quantity,
		SelectedModifiers: selected,
		Notes:             notes,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line.
func (c *Cart) UpdateQuantity(lineID string, quantity int) error {
	for i := range c.lines {
		if c.lines[i].ID != lineID {
			continue
		}
		if quantity < 1 {
			c.lines = slices.Delete(c.lines, i, i+1)
			return nil
		}
		c.lines[i].Quantity = quantity
		return nil
	}
	return fmt.Errorf("line %s not in cart", lineID)
}

func (c *Cart) Remove(lineID string) {
	for i := range c.lines {
		if c.lines[i].ID == lineID {
			c.lines = slices.Delete(c.lines, i, i+1)
			return
		}
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

func (c *Cart) Subtotal() int64 {
	var subtotal int64
	for _, line := range c.lines {
		subtotal += line.Total()
	}
	return subtotal
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Items converts the cart into transaction item snapshots bound to the given
// transaction ID.
func (c *Cart) Items(transactionID string) []domain.TransactionItem {
	items := make([]domain.TransactionItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, domain.TransactionItem{
			ID:                xid.New("item"),
			TransactionID:     transactionID,
			ProductID:         line.ProductID,
			ProductName:       line.ProductName,
			Quantity:          line.Quantity,
			BasePrice:         line.BasePrice,
			SelectedModifiers: slices.Clone(line.SelectedModifiers),
			Notes:             line.Notes,
			ItemTotal:         line.Total(),
		})
	}
	return items
}

// resolveSelection maps the requested modifier IDs onto the product's catalog
// and enforces each group's cardinality rules.
func resolveSelection(product domain.ProductWithModifiers, modifierIDs []string) ([]domain.SelectedModifier, error) {
	seen := make(map[string]bool, len(modifierIDs))
	for _, id := range modifierIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSelection, id)
		}
		seen[id] = true
	}

	selected := make([]domain.SelectedModifier, 0, len(modifierIDs))
	perGroup := make(map[string]int, len(product.ModifierGroups))
	matched := make(map[string]bool, len(modifierIDs))

	for _, group := range product.ModifierGroups {
		for _, m := range group.Modifiers {
			if !seen[m.ID] {
				continue
			}
			matched[m.ID] = true
			if !m.IsAvailable {
				return nil, fmt.Errorf("%w: %s", ErrModifierUnavailable, m.Name)
			}
			perGroup[group.ID]++
			selected = append(selected, domain.SelectedModifier{
				GroupName:       group.Name,
				ModifierName:    m.Name,
				PriceAdjustment: m.PriceAdjustment,
				ModifierID:      m.ID,
			})
		}
	}

	for _, id := range modifierIDs {
		if !matched[id] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModifier, id)
		}
	}

	for _, group := range product.ModifierGroups {
		count := perGroup[group.ID]
		switch group.SelectionType {
		case domain.SelectionSingle:
			if count > 1 {
				return nil, fmt.Errorf("%w: %s", ErrSingleSelectionGroup, group.Name)
			}
			if group.IsRequired && count != 1 {
				return nil, fmt.Errorf("%w: %s", ErrSelectionRequired, group.Name)
			}
		case domain.SelectionMultiple:
			if group.MaxSelection > 0 && count > group.MaxSelection {
				return nil, fmt.Errorf("%w: %s", ErrTooManySelections, group.Name)
			}
			if group.IsRequired && count < max(group.MinSelection, 1) {
				return nil, fmt.Errorf("%w: %s", ErrSelectionRequired, group.Name)
			}
		}
	}

	return selected, nil
}

func sameSelection(a, b []domain.SelectedModifier) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]bool, len(a))
	for _, m := range a {
		ids[m.ModifierID] = true
	}
	for _, m := range b {
		if !ids[m.ModifierID] {
			return false
		}
	}
	return true
}
