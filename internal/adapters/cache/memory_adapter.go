package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
)

// MemoryAdapter is a capacity-bounded in-process answer cache with LRU
// eviction and a per-entry TTL.
type MemoryAdapter struct {
	entries *lru.LRU[string, *entities.AnswerBundle]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ providers.AnswerCache = (*MemoryAdapter)(nil)

// NewMemoryAdapter creates a memory cache with the given capacity and TTL.
func NewMemoryAdapter(capacity int, ttl time.Duration) *MemoryAdapter {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	adapter := &MemoryAdapter{}
	adapter.entries = lru.NewLRU(capacity, func(string, *entities.AnswerBundle) {
		adapter.evictions.Add(1)
	}, ttl)
	return adapter
}

// Get returns the cached bundle for the fingerprint. Expired entries are
// misses; the underlying store evicts them lazily.
func (a *MemoryAdapter) Get(_ context.Context, fingerprint string) (*entities.AnswerBundle, bool) {
	bundle, ok := a.entries.Get(fingerprint)
	if !ok {
		a.misses.Add(1)
		return nil, false
	}
	a.hits.Add(1)
	return bundle, true
}

// Set stores the bundle under the fingerprint. Writing an existing key
// replaces the value in place; only capacity pressure and TTL expiry count
// as evictions.
func (a *MemoryAdapter) Set(_ context.Context, fingerprint string, bundle *entities.AnswerBundle) error {
	a.entries.Add(fingerprint, bundle)
	return nil
}

// Stats returns hit/miss/eviction counters and the current size.
func (a *MemoryAdapter) Stats() providers.CacheStats {
	return providers.CacheStats{
		Hits:      a.hits.Load(),
		Misses:    a.misses.Load(),
		Evictions: a.evictions.Load(),
		Size:      a.entries.Len(),
	}
}
