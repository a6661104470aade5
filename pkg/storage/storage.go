package storage

import "context"

// Storage is a keyed store with atomic per-key updates. The exchange keeps
// one handle per entity kind: participants, budgets, rounds, models,
// sharing requests, bids and evaluation results.
type Storage interface {
	Create(ctx context.Context, key string, value any) error
	Get(ctx context.Context, key string) (any, error)
	Update(ctx context.Context, key string, value any) error
	List(ctx context.Context, offset, limit uint64) ([]any, uint64, error)
	Delete(ctx context.Context, key string) error
}
