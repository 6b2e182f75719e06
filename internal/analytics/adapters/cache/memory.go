package cache

import (
	"context"
	"time"

	analyticscache "view-analytics-service/internal/analytics/cache"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const DefaultMemorySize = 1024

// MemoryBackend keeps cached results in a process-local LRU. Every entry
// lives for the TTL the backend was built with; the per-call TTL is ignored.
type MemoryBackend struct {
	entries *lru.LRU[string, []byte]
}

var _ analyticscache.Backend = (*MemoryBackend)(nil)

func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = analyticscache.DefaultTTL
	}
	return &MemoryBackend{entries: lru.NewLRU[string, []byte](size, nil, ttl)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := b.entries.Get(key)
	if !ok {
		return nil, analyticscache.ErrMiss
	}
	return value, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	b.entries.Add(key, value)
	return nil
}

func (b *MemoryBackend) Len() int {
	return b.entries.Len()
}
