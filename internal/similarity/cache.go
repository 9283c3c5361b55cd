package similarity

import (
	"context"

	"github.com/shibest/mycelius/internal/models"
)

// Cache stores scored batches by key.
type Cache interface {
	// Get returns the entry for key, or nil when absent.
	Get(ctx context.Context, key string) (*models.SimilarityCacheEntry, error)
	Put(ctx context.Context, entry *models.SimilarityCacheEntry) error
	Delete(ctx context.Context, key string) error
	// Clear removes every key under [KeyPrefix] and reports how many were removed.
	Clear(ctx context.Context) (int, error)
	Close() error
}

var (
	_ Cache = (*BoltCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
