package store

import (
	"context"
	"errors"

	"warungpos/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrValidation marks writes rejected before touching storage.
	ErrValidation = errors.New("validation failed")
	// ErrStorageUnavailable means the persistence layer could not be reached;
	// callers must not assume partial success.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrShiftAlreadyOpen enforces the at-most-one-open-shift invariant.
	ErrShiftAlreadyOpen = errors.New("a shift is already open")
)

// Repository is the Local Store contract: durable, queryable storage for all
// domain entities, the single source of truth for in-session operation. All
// writes are local-only; durability is guaranteed before a call returns.
type Repository interface {
	// Categories
	ListCategories(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	PutCategory(ctx context.Context, category domain.Category) error
	BulkPutCategories(ctx context.Context, categories []domain.Category) error

	// Products
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	ListProductsByCategory(ctx context.Context, categoryID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	PutProduct(ctx context.Context, product domain.Product) error
	BulkPutProducts(ctx context.Context, products []domain.Product) error

	// Modifier catalog
	ListModifierGroupsByProduct(ctx context.Context, productID string) ([]domain.ModifierGroup, error)
	ListModifiersByGroup(ctx context.Context, groupID string) ([]domain.Modifier, error)
	BulkPutModifierGroups(ctx context.Context, groups []domain.ModifierGroup) error
	BulkPutModifiers(ctx context.Context, modifiers []domain.Modifier) error

	// Transactions. CreateTransaction persists the transaction record, its
	// inventory events, and the sync-queue entry as one atomic write: no
	// reader may observe the record without its events or vice versa.
	CreateTransaction(ctx context.Context, tx domain.Transaction, events []domain.InventoryEvent, entry domain.SyncQueueEntry) error
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactionsByShift(ctx context.Context, shiftID string) ([]domain.Transaction, error)
	MarkTransactionSynced(ctx context.Context, id string) error

	// Inventory ledger (append-only)
	AppendInventoryEvents(ctx context.Context, events []domain.InventoryEvent) error
	SumStock(ctx context.Context, productID string, modifierID string) (int, error)
	ListInventoryEvents(ctx context.Context, productID string, limit int) ([]domain.InventoryEvent, error)

	// Sync queue (FIFO by enqueue time)
	EnqueueSync(ctx context.Context, entry domain.SyncQueueEntry) error
	OldestSyncEntry(ctx context.Context) (*domain.SyncQueueEntry, error)
	DeleteSyncEntry(ctx context.Context, id string) error
	RecordSyncFailure(ctx context.Context, id string, message string) error
	CountSyncEntries(ctx context.Context) (int, error)

	// Shifts
	CreateShift(ctx context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error)
	GetOpenShift(ctx context.Context) (*domain.ShiftLog, error)
	GetShift(ctx context.Context, id string) (*domain.ShiftLog, error)
	UpdateShift(ctx context.Context, shift domain.ShiftLog) (*domain.ShiftLog, error)
	CountShiftsOpenedSince(ctx context.Context, sinceMillis int64) (int, error)
}
