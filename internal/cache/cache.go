package cache

import (
	"context"
	"time"
)

// StockCache holds derived stock levels computed from the inventory ledger.
// It is purely an acceleration layer: a miss or an unreachable cache falls
// back to summing the ledger, and the cache can be rebuilt from it at any time.
type StockCache interface {
	Get(ctx context.Context, productID string, modifierID string) (int, bool, error)
	Set(ctx context.Context, productID string, modifierID string, stock int, ttl time.Duration) error
	// Invalidate drops every cached level for the product, including all of
	// its per-modifier entries. Called after each ledger append.
	Invalidate(ctx context.Context, productID string) error
}

type NoopStockCache struct{}

func (NoopStockCache) Get(_ context.Context, _ string, _ string) (int, bool, error) {
	return 0, false, nil
}

func (NoopStockCache) Set(_ context.Context, _ string, _ string, _ int, _ time.Duration) error {
	return nil
}

func (NoopStockCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
