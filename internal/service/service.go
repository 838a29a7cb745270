package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"warungpos/backend/internal/cache"
	"warungpos/backend/internal/cart"
	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// SyncNotifier wakes the sync worker after a local mutation is queued so the
// entry does not wait for the next tick. May be nil when sync is disabled.
type SyncNotifier interface {
	TriggerPush()
	TriggerSync()
}

const stockCacheTTL = 5 * time.Minute

type Service struct {
	repo           store.Repository
	stock          cache.StockCache
	notifier       SyncNotifier
	storeID        string
	taxRatePercent float64
	remoteEnabled  bool
}

func New(repo store.Repository, stock cache.StockCache, notifier SyncNotifier, storeID string, taxRatePercent float64, remoteEnabled bool) *Service {
	if stock == nil {
		stock = cache.NoopStockCache{}
	}
	if storeID == "" {
		storeID = "outlet-1"
	}

	return &Service{
		repo:           repo,
		stock:          stock,
		notifier:       notifier,
		storeID:        storeID,
		taxRatePercent: taxRatePercent,
		remoteEnabled:  remoteEnabled,
	}
}

// ==================== catalog ====================

func (s *Service) ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, includeInactive)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Category{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Category{}, store.ErrValidation
	}

	category := domain.Category{
		ID:           xid.New("cat"),
		Name:         req.Name,
		Icon:         strings.TrimSpace(req.Icon),
		DisplayOrder: req.DisplayOrder,
		IsActive:     true,
		CreatedAt:    nowMillis(),
	}
	if err := s.repo.PutCategory(ctx, category); err != nil {
		return domain.Category{}, err
	}

	s.enqueueEntitySync(ctx, domain.SyncActionCreate, domain.EntityCategory, category.ID, category)
	return category, nil
}

func (s *Service) GetProductsWithModifiers(ctx context.Context) ([]domain.ProductWithModifiers, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ProductWithModifiers, 0, len(products))
	for _, product := range products {
		full, err := s.assembleProduct(ctx, product)
		if err != nil {
			return nil, err
		}
		result = append(result, full)
	}
	return result, nil
}

func (s *Service) GetProductWithModifiers(ctx context.Context, productID string) (domain.ProductWithModifiers, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ProductWithModifiers{}, err
	}
	return s.assembleProduct(ctx, *product)
}

func (s *Service) assembleProduct(ctx context.Context, product domain.Product) (domain.ProductWithModifiers, error) {
	groups, err := s.repo.ListModifierGroupsByProduct(ctx, product.ID)
	if err != nil {
		return domain.ProductWithModifiers{}, err
	}

	full := domain.ProductWithModifiers{Product: product}
	full.ModifierGroups = make([]domain.ModifierGroupWithModifiers, 0, len(groups))
	for _, group := range groups {
		modifiers, err := s.repo.ListModifiersByGroup(ctx, group.ID)
		if err != nil {
			return domain.ProductWithModifiers{}, err
		}
		full.ModifierGroups = append(full.ModifierGroups, domain.ModifierGroupWithModifiers{
			ModifierGroup: group,
			Modifiers:     modifiers,
		})
	}
	return full, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.CategoryID == "" || req.BasePrice < 0 {
		return domain.Product{}, store.ErrValidation
	}
	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		return domain.Product{}, err
	}

	now := nowMillis()
	product := domain.Product{
		ID:          xid.New("prod"),
		Name:        req.Name,
		CategoryID:  req.CategoryID,
		BasePrice:   req.BasePrice,
		CostPrice:   req.CostPrice,
		Stock:       req.Stock,
		StoreID:     s.storeID,
		IsAvailable: req.IsAvailable,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.PutProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}

	if req.Stock != 0 {
		event := domain.InventoryEvent{
			ID:             xid.New("inv"),
			EventType:      domain.EventRestock,
			ProductID:      product.ID,
			QuantityChange: req.Stock,
			Timestamp:      now,
			Metadata:       map[string]string{"reason": "initial stock"},
		}
		if err := s.repo.AppendInventoryEvents(ctx, []domain.InventoryEvent{event}); err != nil {
			return domain.Product{}, err
		}
	}

	s.enqueueEntitySync(ctx, domain.SyncActionCreate, domain.EntityProduct, product.ID, product)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrValidation
		}
		updated.Name = name
	}
	if req.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *req.CategoryID); err != nil {
			return domain.Product{}, err
		}
		updated.CategoryID = *req.CategoryID
	}
	if req.BasePrice != nil {
		if *req.BasePrice < 0 {
			return domain.Product{}, store.ErrValidation
		}
		updated.BasePrice = *req.BasePrice
	}
	if req.CostPrice != nil {
		updated.CostPrice = *req.CostPrice
	}
	if req.IsAvailable != nil {
		updated.IsAvailable = *req.IsAvailable
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	updated.UpdatedAt = nowMillis()

	if err := s.repo.PutProduct(ctx, updated); err != nil {
		return domain.Product{}, err
	}

	s.enqueueEntitySync(ctx, domain.SyncActionUpdate, domain.EntityProduct, updated.ID, updated)
	return updated, nil
}

// ==================== inventory ====================

// CalculateStock sums the product's ledger, optionally narrowed to one
// modifier's events. Levels are served from the cache when warm.
func (s *Service) CalculateStock(ctx context.Context, productID string, modifierID string) (int, error) {
	if productID == "" {
		return 0, store.ErrValidation
	}

	if stock, hit, err := s.stock.Get(ctx, productID, modifierID); err == nil && hit {
		return stock, nil
	} else if err != nil {
		log.Printf("[service] WARN: stock cache read product=%s: %v", productID, err)
	}

	stock, err := s.repo.SumStock(ctx, productID, modifierID)
	if err != nil {
		return 0, err
	}
	if err := s.stock.Set(ctx, productID, modifierID, stock, stockCacheTTL); err != nil {
		log.Printf("[service] WARN: stock cache write product=%s: %v", productID, err)
	}
	return stock, nil
}

func (s *Service) RecordInventoryEvent(ctx context.Context, req domain.InventoryEventRequest) (domain.InventoryEvent, error) {
	if !domain.IsSupportedEventType(req.EventType) {
		return domain.InventoryEvent{}, fmt.Errorf("%w: unknown event type %q", store.ErrValidation, req.EventType)
	}
	if req.ProductID == "" || req.QuantityChange == 0 {
		return domain.InventoryEvent{}, store.ErrValidation
	}
	if _, err := s.repo.GetProduct(ctx, req.ProductID); err != nil {
		return domain.InventoryEvent{}, err
	}

	event := domain.InventoryEvent{
		ID:             xid.New("inv"),
		EventType:      req.EventType,
		ProductID:      req.ProductID,
		ModifierID:     req.ModifierID,
		QuantityChange: req.QuantityChange,
		Timestamp:      nowMillis(),
		Metadata:       req.Metadata,
	}
	if err := s.repo.AppendInventoryEvents(ctx, []domain.InventoryEvent{event}); err != nil {
		return domain.InventoryEvent{}, err
	}

	s.invalidateStock(ctx, req.ProductID)
	return event, nil
}

func (s *Service) ListInventoryEvents(ctx context.Context, productID string, limit int) ([]domain.InventoryEvent, error) {
	return s.repo.ListInventoryEvents(ctx, productID, limit)
}

func (s *Service) invalidateStock(ctx context.Context, productID string) {
	if err := s.stock.Invalidate(ctx, productID); err != nil {
		log.Printf("[service] WARN: stock cache invalidate product=%s: %v", productID, err)
	}
}

// ==================== shifts ====================

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftLog, error) {
	req.CashierName = strings.TrimSpace(req.CashierName)
	if req.CashierName == "" || req.OpeningCash < 0 {
		return domain.ShiftLog{}, store.ErrValidation
	}

	now := time.Now()
	number, err := s.nextShiftNumber(ctx, now)
	if err != nil {
		return domain.ShiftLog{}, err
	}

	shift := domain.ShiftLog{
		ID:          xid.New("shift"),
		ShiftNumber: number,
		OpenedBy:    req.CashierName,
		OpenedAt:    now.UnixMilli(),
		OpeningCash: req.OpeningCash,
		Status:      domain.ShiftStatusOpen,
	}

	saved, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		return domain.ShiftLog{}, err
	}

	s.enqueueEntitySync(ctx, domain.SyncActionCreate, domain.EntityShift, saved.ID, *saved)
	log.Printf("[service] shift opened number=%s by=%s opening_cash=%d", saved.ShiftNumber, saved.OpenedBy, saved.OpeningCash)
	return *saved, nil
}

// nextShiftNumber is SHIFT-<date>-<seq>, where seq counts shifts opened since
// local midnight, so the numbering restarts each day.
func (s *Service) nextShiftNumber(ctx context.Context, now time.Time) (string, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	openedToday, err := s.repo.CountShiftsOpenedSince(ctx, midnight.UnixMilli())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SHIFT-%s-%03d", now.Format("2006-01-02"), openedToday+1), nil
}

func (s *Service) CurrentShift(ctx context.Context) (domain.ShiftLog, error) {
	shift, err := s.repo.GetOpenShift(ctx)
	if err != nil {
		return domain.ShiftLog{}, err
	}
	return *shift, nil
}

// CloseShift recomputes the shift's totals from its stored transactions rather
// than trusting any running counters, then reconciles the drawer.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftLog, error) {
	if req.ActualCash <= 0 {
		return domain.ShiftLog{}, fmt.Errorf("%w: actual cash count must be positive", store.ErrValidation)
	}

	open, err := s.repo.GetOpenShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ShiftLog{}, fmt.Errorf("%w: no shift is open", store.ErrValidation)
		}
		return domain.ShiftLog{}, err
	}

	transactions, err := s.repo.ListTransactionsByShift(ctx, open.ID)
	if err != nil {
		return domain.ShiftLog{}, err
	}

	var totalRevenue, cashRevenue int64
	completed := 0
	for _, tx := range transactions {
		if tx.Status != domain.TxStatusCompleted {
			continue
		}
		completed++
		totalRevenue += tx.Total
		if tx.PaymentMethod == domain.PaymentCash {
			cashRevenue += tx.Total
		}
	}

	expected := open.OpeningCash + cashRevenue

	closed := *open
	closed.ClosedAt = nowMillis()
	closed.ClosingCash = req.ActualCash
	closed.ExpectedCash = expected
	closed.CashDifference = req.ActualCash - expected
	closed.TotalTransactions = completed
	closed.TotalRevenue = totalRevenue
	closed.Notes = strings.TrimSpace(req.Notes)
	closed.Status = domain.ShiftStatusClosed

	saved, err := s.repo.UpdateShift(ctx, closed)
	if err != nil {
		return domain.ShiftLog{}, err
	}

	s.enqueueEntitySync(ctx, domain.SyncActionUpdate, domain.EntityShift, saved.ID, *saved)
	log.Printf("[service] shift closed number=%s expected=%d actual=%d difference=%d",
		saved.ShiftNumber, saved.ExpectedCash, saved.ClosingCash, saved.CashDifference)
	return *saved, nil
}

// ==================== checkout ====================

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	if len(req.Items) == 0 {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: empty cart", store.ErrValidation)
	}
	if !domain.IsSupportedPaymentMethod(req.PaymentMethod) {
		return domain.CheckoutResponse{}, fmt.Errorf("%w: unknown payment method %q", store.ErrValidation, req.PaymentMethod)
	}

	shift, err := s.repo.GetOpenShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: open shift required", store.ErrValidation)
		}
		return domain.CheckoutResponse{}, err
	}

	basket := cart.New()
	for _, item := range req.Items {
		product, err := s.GetProductWithModifiers(ctx, item.ProductID)
		if err != nil {
			return domain.CheckoutResponse{}, err
		}
		if _, err := basket.Add(product, item.Quantity, item.ModifierIDs, item.Notes); err != nil {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
	}

	subtotal := basket.Subtotal()
	tax := int64(math.Round(float64(subtotal) * s.taxRatePercent / 100))
	total := subtotal + tax

	var cashReceived, cashChange int64
	if req.PaymentMethod == domain.PaymentCash {
		if req.CashReceived < total {
			return domain.CheckoutResponse{}, fmt.Errorf("%w: insufficient cash", store.ErrValidation)
		}
		cashReceived = req.CashReceived
		cashChange = req.CashReceived - total
	}

	now := time.Now()
	txID := xid.New("tx")
	tx := domain.Transaction{
		ID:                txID,
		TransactionNumber: transactionNumber(now),
		Items:             basket.Items(txID),
		Subtotal:          subtotal,
		Tax:               tax,
		Total:             total,
		PaymentMethod:     req.PaymentMethod,
		CashReceived:      cashReceived,
		CashChange:        cashChange,
		Status:            domain.TxStatusCompleted,
		ShiftID:           shift.ID,
		CreatedAt:         now.UnixMilli(),
	}

	events := saleEvents(tx)

	payload, err := json.Marshal(tx)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	entry := domain.SyncQueueEntry{
		ID:         xid.New("sq"),
		Action:     domain.SyncActionCreate,
		EntityType: domain.EntityTransaction,
		EntityID:   tx.ID,
		Payload:    payload,
		CreatedAt:  tx.CreatedAt,
	}

	if err := s.repo.CreateTransaction(ctx, tx, events, entry); err != nil {
		return domain.CheckoutResponse{}, err
	}

	for _, item := range tx.Items {
		s.invalidateStock(ctx, item.ProductID)
	}
	if s.notifier != nil {
		s.notifier.TriggerPush()
	}

	log.Printf("[service] checkout number=%s total=%d payment=%s items=%d",
		tx.TransactionNumber, tx.Total, tx.PaymentMethod, len(tx.Items))
	return domain.CheckoutResponse{Transaction: tx, CashChange: cashChange}, nil
}

func transactionNumber(now time.Time) string {
	return fmt.Sprintf("TRX-%s-%03d", now.Format("20060102"), now.UnixMilli()%1000)
}

// saleEvents emits one sale event per item and one per selected modifier, each
// carrying the full item quantity. Modifier selections therefore decrement
// both the product's ledger and the modifier's own ledger.
func saleEvents(tx domain.Transaction) []domain.InventoryEvent {
	events := make([]domain.InventoryEvent, 0, len(tx.Items)*2)
	for _, item := range tx.Items {
		events = append(events, domain.InventoryEvent{
			ID:             xid.New("inv"),
			EventType:      domain.EventSale,
			ProductID:      item.ProductID,
			QuantityChange: -item.Quantity,
			Timestamp:      tx.CreatedAt,
			TransactionID:  tx.ID,
		})
		for _, modifier := range item.SelectedModifiers {
			if modifier.ModifierID == "" {
				continue
			}
			events = append(events, domain.InventoryEvent{
				ID:             xid.New("inv"),
				EventType:      domain.EventSale,
				ProductID:      item.ProductID,
				ModifierID:     modifier.ModifierID,
				QuantityChange: -item.Quantity,
				Timestamp:      tx.CreatedAt,
				TransactionID:  tx.ID,
			})
		}
	}
	return events
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

func (s *Service) ListTransactionsByShift(ctx context.Context, shiftID string) ([]domain.Transaction, error) {
	if shiftID == "" {
		return nil, store.ErrValidation
	}
	return s.repo.ListTransactionsByShift(ctx, shiftID)
}

// ==================== sync ====================

// enqueueEntitySync queues a catalog or shift mutation for the remote
// authority. Queue failures are logged, not fatal: the local write already
// succeeded and the next full pull reconciles.
func (s *Service) enqueueEntitySync(ctx context.Context, action string, entityType string, entityID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[service] WARN: marshal sync payload %s/%s: %v", entityType, entityID, err)
		return
	}
	entry := domain.SyncQueueEntry{
		ID:         xid.New("sq"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    raw,
		CreatedAt:  nowMillis(),
	}
	if err := s.repo.EnqueueSync(ctx, entry); err != nil {
		log.Printf("[service] WARN: enqueue sync %s/%s: %v", entityType, entityID, err)
		return
	}
	if s.notifier != nil {
		s.notifier.TriggerPush()
	}
}

func (s *Service) SyncStatus(ctx context.Context) (domain.SyncStatus, error) {
	pending, err := s.repo.CountSyncEntries(ctx)
	if err != nil {
		return domain.SyncStatus{}, err
	}

	status := domain.SyncStatus{Pending: pending, RemoteEnabled: s.remoteEnabled}
	if pending > 0 {
		oldest, err := s.repo.OldestSyncEntry(ctx)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return domain.SyncStatus{}, err
		}
		if oldest != nil {
			status.OldestEntryAt = oldest.CreatedAt
			status.LastError = oldest.LastError
		}
	}
	return status, nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
