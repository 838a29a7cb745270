package syncworker

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Remote is the server-side authority. Push operations must be idempotent:
// an entry may be retried after a failure that happened post-commit.
type Remote interface {
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	UpsertShift(ctx context.Context, shift domain.ShiftLog) error
	UpsertProduct(ctx context.Context, product domain.Product) error
	UpsertCategory(ctx context.Context, category domain.Category) error
	FetchCategories(ctx context.Context) ([]domain.Category, error)
	FetchProducts(ctx context.Context) ([]domain.Product, error)
}

const (
	defaultPushInterval = 15 * time.Second
	defaultPullInterval = 10 * time.Minute
)

// Engine drains the local sync queue to the remote authority one entry at a
// time, strictly oldest-first, and periodically pulls the remote catalog back
// into the local store. A failed entry stays at the head of the queue and
// blocks everything behind it, preserving causal order.
type Engine struct {
	repo         store.Repository
	remote       Remote
	pushInterval time.Duration
	pullInterval time.Duration
	pushCh       chan struct{}
	syncCh       chan struct{}
	inFlight     atomic.Bool
}

func New(repo store.Repository, remote Remote, pushInterval time.Duration) *Engine {
	if pushInterval <= 0 {
		pushInterval = defaultPushInterval
	}
	return &Engine{
		repo:         repo,
		remote:       remote,
		pushInterval: pushInterval,
		pullInterval: defaultPullInterval,
		pushCh:       make(chan struct{}, 1),
		syncCh:       make(chan struct{}, 1),
	}
}

// TriggerPush wakes the run loop without waiting for the next tick. Safe to
// call from any goroutine; redundant triggers coalesce.
func (e *Engine) TriggerPush() {
	select {
	case e.pushCh <- struct{}{}:
	default:
	}
}

// TriggerSync requests a full cycle, pull then push, outside the timer
// schedule. The terminal calls this when it regains connectivity so remote
// catalog changes land before the queued local work goes out.
func (e *Engine) TriggerSync() {
	select {
	case e.syncCh <- struct{}{}:
	default:
	}
}

// SyncNow runs one pull-then-push cycle. A pull failure does not stop the
// push: queued local work still drains even when the catalog fetch is down.
func (e *Engine) SyncNow(ctx context.Context) {
	if err := e.Pull(ctx); err != nil {
		log.Printf("[sync] WARN: pull: %v", err)
	}
	e.PushPending(ctx)
}

// Run blocks until ctx is done. It pulls the catalog once at startup so a
// fresh device gets the remote state before serving.
func (e *Engine) Run(ctx context.Context) {
	if err := e.Pull(ctx); err != nil {
		log.Printf("[sync] WARN: initial pull: %v", err)
	}
	e.PushPending(ctx)

	pushTicker := time.NewTicker(e.pushInterval)
	defer pushTicker.Stop()
	pullTicker := time.NewTicker(e.pullInterval)
	defer pullTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pushTicker.C:
			e.PushPending(ctx)
		case <-e.pushCh:
			e.PushPending(ctx)
		case <-e.syncCh:
			e.SyncNow(ctx)
		case <-pullTicker.C:
			if err := e.Pull(ctx); err != nil {
				log.Printf("[sync] WARN: pull: %v", err)
			}
		}
	}
}

// PushPending drains the queue until it is empty or an entry fails. The
// in-flight flag guarantees a single drain at a time; overlapping calls
// return immediately.
func (e *Engine) PushPending(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer e.inFlight.Store(false)

	for {
		if ctx.Err() != nil {
			return
		}

		entry, err := e.repo.OldestSyncEntry(ctx)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("[sync] WARN: read queue head: %v", err)
			}
			return
		}

		err = e.dispatch(ctx, *entry)
		if errors.Is(err, errEntryDropped) {
			continue
		}
		if err != nil {
			if recordErr := e.repo.RecordSyncFailure(ctx, entry.ID, err.Error()); recordErr != nil {
				log.Printf("[sync] WARN: record failure id=%s: %v", entry.ID, recordErr)
			}
			log.Printf("[sync] push failed entity=%s id=%s attempt=%d: %v",
				entry.EntityType, entry.EntityID, entry.Attempts+1, err)
			return
		}

		if err := e.repo.DeleteSyncEntry(ctx, entry.ID); err != nil {
			log.Printf("[sync] WARN: delete acked entry id=%s: %v", entry.ID, err)
			return
		}
		if entry.EntityType == domain.EntityTransaction {
			if err := e.repo.MarkTransactionSynced(ctx, entry.EntityID); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Printf("[sync] WARN: mark synced tx=%s: %v", entry.EntityID, err)
			}
		}
		log.Printf("[sync] pushed entity=%s id=%s action=%s", entry.EntityType, entry.EntityID, entry.Action)
	}
}

// dispatch decodes the entry's payload and applies it remotely. Entries that
// cannot be decoded, and entity types this build does not know, are dropped
// rather than left to jam the queue.
func (e *Engine) dispatch(ctx context.Context, entry domain.SyncQueueEntry) error {
	switch entry.EntityType {
	case domain.EntityTransaction:
		var tx domain.Transaction
		if err := json.Unmarshal(entry.Payload, &tx); err != nil {
			return e.drop(ctx, entry, err)
		}
		return e.remote.InsertTransaction(ctx, tx)
	case domain.EntityShift:
		var shift domain.ShiftLog
		if err := json.Unmarshal(entry.Payload, &shift); err != nil {
			return e.drop(ctx, entry, err)
		}
		return e.remote.UpsertShift(ctx, shift)
	case domain.EntityProduct:
		var product domain.Product
		if err := json.Unmarshal(entry.Payload, &product); err != nil {
			return e.drop(ctx, entry, err)
		}
		return e.remote.UpsertProduct(ctx, product)
	case domain.EntityCategory:
		var category domain.Category
		if err := json.Unmarshal(entry.Payload, &category); err != nil {
			return e.drop(ctx, entry, err)
		}
		return e.remote.UpsertCategory(ctx, category)
	default:
		log.Printf("[sync] dropping entry with unknown entity type %q id=%s", entry.EntityType, entry.ID)
		if err := e.repo.DeleteSyncEntry(ctx, entry.ID); err != nil {
			return err
		}
		return errEntryDropped
	}
}

// errEntryDropped signals that dispatch already removed the entry from the
// queue and the drain loop should move on to the next one.
var errEntryDropped = errors.New("sync entry dropped")

func (e *Engine) drop(ctx context.Context, entry domain.SyncQueueEntry, cause error) error {
	log.Printf("[sync] dropping undecodable entry entity=%s id=%s: %v", entry.EntityType, entry.ID, cause)
	if err := e.repo.DeleteSyncEntry(ctx, entry.ID); err != nil {
		return err
	}
	return errEntryDropped
}

// Pull upserts the remote catalog into the local store. Records that exist
// only locally are left alone: unsynced local work is never destroyed by a
// pull, last write wins per record.
func (e *Engine) Pull(ctx context.Context) error {
	categories, err := e.remote.FetchCategories(ctx)
	if err != nil {
		return err
	}
	if len(categories) > 0 {
		if err := e.repo.BulkPutCategories(ctx, categories); err != nil {
			return err
		}
	}

	products, err := e.remote.FetchProducts(ctx)
	if err != nil {
		return err
	}
	if len(products) > 0 {
		if err := e.repo.BulkPutProducts(ctx, products); err != nil {
			return err
		}
	}

	log.Printf("[sync] pulled catalog categories=%d products=%d", len(categories), len(products))
	return nil
}
