package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Store is an in-memory Repository used for tests and for running the POS
// without a database file. A single mutex serializes the multi-entity
// checkout write so two rapid checkouts cannot interleave.
type Store struct {
	mu             sync.RWMutex
	categories     map[string]domain.Category
	products       map[string]domain.Product
	modifierGroups map[string]domain.ModifierGroup
	modifiers      map[string]domain.Modifier
	transactions   map[string]domain.Transaction
	events         []domain.InventoryEvent
	syncQueue      []domain.SyncQueueEntry
	shifts         map[string]domain.ShiftLog
}

func New() *Store {
	return &Store{
		categories:     make(map[string]domain.Category),
		products:       make(map[string]domain.Product),
		modifierGroups: make(map[string]domain.ModifierGroup),
		modifiers:      make(map[string]domain.Modifier),
		transactions:   make(map[string]domain.Transaction),
		events:         make([]domain.InventoryEvent, 0, 256),
		syncQueue:      make([]domain.SyncQueueEntry, 0, 64),
		shifts:         make(map[string]domain.ShiftLog),
	}
}

// NewSeeded returns a store preloaded with a small warung catalog: a coffee
// with a mandatory size choice, a rice dish with optional toppings, and bulk
// rice sold per-unit or per-sack through a unit modifier group.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UnixMilli()

	categories := []domain.Category{
		{ID: "cat-kopi", Name: "Kopi", Icon: "coffee", DisplayOrder: 1, IsActive: true, CreatedAt: now},
		{ID: "cat-makanan", Name: "Makanan", Icon: "bowl", DisplayOrder: 2, IsActive: true, CreatedAt: now},
		{ID: "cat-sembako", Name: "Sembako", Icon: "sack", DisplayOrder: 3, IsActive: true, CreatedAt: now},
	}

	products := []domain.Product{
		{ID: "prod-kopi-susu", Name: "Kopi Susu", CategoryID: "cat-kopi", BasePrice: 15000, CostPrice: 6000, Stock: 100, StoreID: "outlet-1", IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-nasi-ayam", Name: "Nasi Ayam Geprek", CategoryID: "cat-makanan", BasePrice: 18000, CostPrice: 9000, Stock: 50, StoreID: "outlet-1", IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: "prod-beras", Name: "Beras Premium", CategoryID: "cat-sembako", BasePrice: 10000, CostPrice: 8500, Stock: 500, StoreID: "outlet-1", IsAvailable: true, IsActive: true, CreatedAt: now, UpdatedAt: now},
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

	ctx := context.Background()
	_ = s.BulkPutCategories(ctx, categories)
	_ = s.BulkPutProducts(ctx, products)
	_ = s.BulkPutModifierGroups(ctx, groups)
	_ = s.BulkPutModifiers(ctx, modifiers)
	return s
}

// ==================== categories ====================

func (s *Store) ListCategories(_ context.Context, includeInactive bool) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if !includeInactive && !c.IsActive {
			continue
		}
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		if a.DisplayOrder == b.DisplayOrder {
			return strings.Compare(a.ID, b.ID)
		}
		return a.DisplayOrder - b.DisplayOrder
	})
	return categories, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, exists := s.categories[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := category
	return &copied, nil
}

func (s *Store) PutCategory(_ context.Context, category domain.Category) error {
	if category.ID == "" || category.Name == "" {
		return store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return nil
}

func (s *Store) BulkPutCategories(ctx context.Context, categories []domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range categories {
		if c.ID == "" {
			return store.ErrValidation
		}
		s.categories[c.ID] = c
	}
	return nil
}

// ==================== products ====================

func (s *Store) ListProducts(_ context.Context, includeInactive bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !includeInactive && !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) ListProductsByCategory(_ context.Context, categoryID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.CategoryID != categoryID || !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	sortProducts(products)
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) PutProduct(_ context.Context, product domain.Product) error {
	if product.ID == "" || product.Name == "" || product.BasePrice < 0 {
		return store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = product
	return nil
}

func (s *Store) BulkPutProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		if p.ID == "" {
			return store.ErrValidation
		}
		s.products[p.ID] = p
	}
	return nil
}

// ==================== modifier catalog ====================

func (s *Store) ListModifierGroupsByProduct(_ context.Context, productID string) ([]domain.ModifierGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]domain.ModifierGroup, 0, 4)
	for _, g := range s.modifierGroups {
		if g.ProductID == productID {
			groups = append(groups, g)
		}
	}
	slices.SortFunc(groups, func(a, b domain.ModifierGroup) int {
		if a.DisplayOrder == b.DisplayOrder {
			return strings.Compare(a.ID, b.ID)
		}
		return a.DisplayOrder - b.DisplayOrder
	})
	return groups, nil
}

func (s *Store) ListModifiersByGroup(_ context.Context, groupID string) ([]domain.Modifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	modifiers := make([]domain.Modifier, 0, 8)
	for _, m := range s.modifiers {
		if m.ModifierGroupID == groupID {
			modifiers = append(modifiers, m)
		}
	}
	slices.SortFunc(modifiers, func(a, b domain.Modifier) int {
		if a.DisplayOrder == b.DisplayOrder {
			return strings.Compare(a.ID, b.ID)
		}
		return a.DisplayOrder - b.DisplayOrder
	})
	return modifiers, nil
}

func (s *Store) BulkPutModifierGroups(_ context.Context, groups []domain.ModifierGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		if g.ID == "" || g.ProductID == "" {
			return store.ErrValidation
		}
		s.modifierGroups[g.ID] = g
	}
	return nil
}

func (s *Store) BulkPutModifiers(_ context.Context, modifiers []domain.Modifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range modifiers {
		if m.ID == "" || m.ModifierGroupID == "" {
			return store.ErrValidation
		}
		s.modifiers[m.ID] = m
	}
	return nil
}

// ==================== transactions ====================

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction, events []domain.InventoryEvent, entry domain.SyncQueueEntry) error {
	if tx.ID == "" || len(tx.Items) == 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; exists {
		return store.ErrValidation
	}
	s.transactions[tx.ID] = tx
	s.events = append(s.events, events...)
	s.syncQueue = append(s.syncQueue, entry)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.transactions[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := tx
	return &copied, nil
}

func (s *Store) ListTransactionsByShift(_ context.Context, shiftID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactions {
		if tx.ShiftID == shiftID {
			result = append(result, tx)
		}
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if a.CreatedAt == b.CreatedAt {
			return strings.Compare(a.ID, b.ID)
		}
		if a.CreatedAt < b.CreatedAt {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) MarkTransactionSynced(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.transactions[id]
	if !exists {
		return store.ErrNotFound
	}
	tx.SyncedToServer = true
	s.transactions[id] = tx
	return nil
}

// ==================== inventory ledger ====================

func (s *Store) AppendInventoryEvents(_ context.Context, events []domain.InventoryEvent) error {
	for _, e := range events {
		if e.ID == "" || e.ProductID == "" {
			return store.ErrValidation
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *Store) SumStock(_ context.Context, productID string, modifierID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, e := range s.events {
		if e.ProductID != productID {
			continue
		}
		if modifierID != "" && e.ModifierID != modifierID {
			continue
		}
		total += e.QuantityChange
	}
	return total, nil
}

func (s *Store) ListInventoryEvents(_ context.Context, productID string, limit int) ([]domain.InventoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryEvent, 0, 32)
	for _, e := range s.events {
		if productID == "" || e.ProductID == productID {
			result = append(result, e)
		}
	}
	slices.SortFunc(result, func(a, b domain.InventoryEvent) int {
		if a.Timestamp == b.Timestamp {
			return strings.Compare(b.ID, a.ID)
		}
		if a.Timestamp > b.Timestamp {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ==================== sync queue ====================

func (s *Store) EnqueueSync(_ context.Context, entry domain.SyncQueueEntry) error {
	if entry.ID == "" || entry.EntityType == "" {
		return store.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncQueue = append(s.syncQueue, entry)
	return nil
}

func (s *Store) OldestSyncEntry(_ context.Context) (*domain.SyncQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.syncQueue) == 0 {
		return nil, store.ErrNotFound
	}
	oldest := s.syncQueue[0]
	for _, entry := range s.syncQueue[1:] {
		if entry.CreatedAt < oldest.CreatedAt {
			oldest = entry
		}
	}
	copied := oldest
	return &copied, nil
}

func (s *Store) DeleteSyncEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.syncQueue {
		if entry.ID == id {
			s.syncQueue = append(s.syncQueue[:i], s.syncQueue[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) RecordSyncFailure(_ context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.syncQueue {
		if entry.ID == id {
			s.syncQueue[i].Attempts++
			s.syncQueue[i].LastError = message
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) CountSyncEntries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.syncQueue), nil
}

// ==================== shifts ====================

func (s *Store) CreateShift(_ context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error) {
	if shift.ID == "" || shift.OpenedBy == "" || shift.OpeningCash < 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts {
		if existing.Status == domain.ShiftStatusOpen {
			return nil, store.ErrShiftAlreadyOpen
		}
	}
	s.shifts[shift.ID] = shift
	created := shift
	return &created, nil
}

func (s *Store) GetOpenShift(_ context.Context) (*domain.ShiftLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts {
		if shift.Status == domain.ShiftStatusOpen {
			copied := shift
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetShift(_ context.Context, id string) (*domain.ShiftLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shift, exists := s.shifts[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := shift
	return &copied, nil
}

func (s *Store) UpdateShift(_ context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.shifts[shift.ID]; !exists {
		return nil, store.ErrNotFound
	}
	s.shifts[shift.ID] = shift
	updated := shift
	return &updated, nil
}

func (s *Store) CountShiftsOpenedSince(_ context.Context, sinceMillis int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, shift := range s.shifts {
		if shift.OpenedAt >= sinceMillis {
			count++
		}
	}
	return count, nil
}

func sortProducts(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.CategoryID == b.CategoryID {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.CategoryID, b.CategoryID)
	})
}
