package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

type fakeRemote struct {
	mu         sync.Mutex
	failTx     bool
	pushed     []string
	categories []domain.Category
	products   []domain.Product
}

func (f *fakeRemote) record(kind string, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, kind+":"+id)
}

func (f *fakeRemote) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	f.mu.Lock()
	failing := f.failTx
	f.mu.Unlock()
	if failing {
		return fmt.Errorf("remote unreachable")
	}
	f.record("tx", tx.ID)
	return nil
}

func (f *fakeRemote) UpsertShift(_ context.Context, shift domain.ShiftLog) error {
	f.record("shift", shift.ID)
	return nil
}

func (f *fakeRemote) UpsertProduct(_ context.Context, product domain.Product) error {
	f.record("product", product.ID)
	return nil
}

func (f *fakeRemote) UpsertCategory(_ context.Context, category domain.Category) error {
	f.record("category", category.ID)
	return nil
}

func (f *fakeRemote) FetchCategories(_ context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeRemote) FetchProducts(_ context.Context) ([]domain.Product, error) {
	return f.products, nil
}

func (f *fakeRemote) pushedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.pushed))
	copy(out, f.pushed)
	return out
}

func enqueue(t *testing.T, repo store.Repository, id string, entityType string, entityID string, payload any, createdAt int64) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	err = repo.EnqueueSync(context.Background(), domain.SyncQueueEntry{
		ID: id, Action: domain.SyncActionCreate,
		EntityType: entityType, EntityID: entityID,
		Payload: raw, CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("enqueue %s: %v", id, err)
	}
}

func TestPushDrainsQueueInOrder(t *testing.T) {
	repo := memory.New()
	remote := &fakeRemote{}
	engine := New(repo, remote, 0)
	ctx := context.Background()

	enqueue(t, repo, "sq-1", domain.EntityCategory, "cat-1", domain.Category{ID: "cat-1", Name: "Kopi"}, 1)
	enqueue(t, repo, "sq-2", domain.EntityProduct, "prod-1", domain.Product{ID: "prod-1", Name: "Kopi Susu"}, 2)
	enqueue(t, repo, "sq-3", domain.EntityShift, "shift-1", domain.ShiftLog{ID: "shift-1"}, 3)

	engine.PushPending(ctx)

	want := []string{"category:cat-1", "product:prod-1", "shift:shift-1"}
	got := remote.pushedIDs()
	if len(got) != len(want) {
		t.Fatalf("pushed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pushed[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	pending, _ := repo.CountSyncEntries(ctx)
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}

func TestFailedEntryBlocksQueueThenRecovers(t *testing.T) {
	repo := memory.New()
	remote := &fakeRemote{failTx: true}
	engine := New(repo, remote, 0)
	ctx := context.Background()

	tx := domain.Transaction{
		ID: "tx-1", TransactionNumber: "TRX-20260829-001",
		Items:         []domain.TransactionItem{{ID: "item-1", ProductID: "prod-1", ProductName: "Kopi", Quantity: 1, BasePrice: 15000, ItemTotal: 15000}},
		Subtotal:      15000, Total: 15000,
		PaymentMethod: domain.PaymentCash, Status: domain.TxStatusCompleted,
		ShiftID:       "shift-1", CreatedAt: 1,
	}
	payload, _ := json.Marshal(tx)
	err := repo.CreateTransaction(ctx, tx,
		[]domain.InventoryEvent{{ID: "ev-1", EventType: domain.EventSale, ProductID: "prod-1", QuantityChange: -1, Timestamp: 1, TransactionID: "tx-1"}},
		domain.SyncQueueEntry{ID: "sq-1", Action: domain.SyncActionCreate, EntityType: domain.EntityTransaction, EntityID: "tx-1", Payload: payload, CreatedAt: 1},
	)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	enqueue(t, repo, "sq-2", domain.EntityProduct, "prod-1", domain.Product{ID: "prod-1"}, 2)

	engine.PushPending(ctx)

	// Nothing behind the failed head may be pushed.
	if got := remote.pushedIDs(); len(got) != 0 {
		t.Fatalf("pushed while head failing = %v", got)
	}
	head, err := repo.OldestSyncEntry(ctx)
	if err != nil {
		t.Fatalf("queue head: %v", err)
	}
	if head.ID != "sq-1" || head.Attempts != 1 || head.LastError == "" {
		t.Fatalf("head after failure = %+v", head)
	}

	remote.mu.Lock()
	remote.failTx = false
	remote.mu.Unlock()

	engine.PushPending(ctx)

	got := remote.pushedIDs()
	if len(got) != 2 || got[0] != "tx:tx-1" || got[1] != "product:prod-1" {
		t.Fatalf("pushed after recovery = %v", got)
	}

	synced, err := repo.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !synced.SyncedToServer {
		t.Fatalf("transaction not marked synced")
	}
}

func TestUnknownEntityTypeIsDropped(t *testing.T) {
	repo := memory.New()
	remote := &fakeRemote{}
	engine := New(repo, remote, 0)
	ctx := context.Background()

	enqueue(t, repo, "sq-1", "voucher", "v-1", map[string]string{"id": "v-1"}, 1)
	enqueue(t, repo, "sq-2", domain.EntityCategory, "cat-1", domain.Category{ID: "cat-1"}, 2)

	engine.PushPending(ctx)

	got := remote.pushedIDs()
	if len(got) != 1 || got[0] != "category:cat-1" {
		t.Fatalf("pushed = %v", got)
	}
	pending, _ := repo.CountSyncEntries(ctx)
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}

func TestPullUpsertsWithoutDeletingLocalOnly(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	localOnly := domain.Product{ID: "prod-local", Name: "Gorengan", CategoryID: "cat-1", BasePrice: 2000, IsAvailable: true, IsActive: true}
	if err := repo.PutProduct(ctx, localOnly); err != nil {
		t.Fatalf("put local product: %v", err)
	}

	remote := &fakeRemote{
		categories: []domain.Category{{ID: "cat-1", Name: "Makanan", IsActive: true}},
		products:   []domain.Product{{ID: "prod-remote", Name: "Es Teh", CategoryID: "cat-1", BasePrice: 5000, IsAvailable: true, IsActive: true}},
	}
	engine := New(repo, remote, 0)

	if err := engine.Pull(ctx); err != nil {
		t.Fatalf("pull: %v", err)
	}

	products, err := repo.ListProducts(ctx, true)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("products = %d, want 2 (local-only survives)", len(products))
	}
	if _, err := repo.GetProduct(ctx, "prod-local"); errors.Is(err, store.ErrNotFound) {
		t.Fatalf("local-only product deleted by pull")
	}
	if _, err := repo.GetProduct(ctx, "prod-remote"); err != nil {
		t.Fatalf("remote product not upserted: %v", err)
	}
}

func TestSyncNowPullsThenPushes(t *testing.T) {
	repo := memory.New()
	remote := &fakeRemote{
		categories: []domain.Category{{ID: "cat-remote", Name: "Minuman", IsActive: true}},
	}
	engine := New(repo, remote, 0)
	ctx := context.Background()

	enqueue(t, repo, "sq-1", domain.EntityProduct, "prod-1", domain.Product{ID: "prod-1", Name: "Kopi Susu"}, 1)

	engine.SyncNow(ctx)

	// The remote catalog landed locally and the queued work went out.
	if _, err := repo.GetCategory(ctx, "cat-remote"); err != nil {
		t.Fatalf("remote category not pulled: %v", err)
	}
	got := remote.pushedIDs()
	if len(got) != 1 || got[0] != "product:prod-1" {
		t.Fatalf("pushed = %v", got)
	}
	pending, _ := repo.CountSyncEntries(ctx)
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}
}
