package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMaxItems = 1024
	defaultTTL      = 15 * time.Minute
)

// MemoryCache is a size-bounded LRU whose entries expire after a fixed TTL.
type MemoryCache struct {
	lru   *expirable.LRU[string, []byte]
	stats counters
}

// NewMemoryCache creates an in-memory cache. Non-positive arguments select
// the defaults.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](maxItems, nil, ttl)}
}

// Get returns a copy of the cached value.
func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	m.stats.record(ok)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Delete removes a key.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Stats returns hit/miss counters and the current item count.
func (m *MemoryCache) Stats() Stats {
	return m.stats.snapshot(m.lru.Len())
}

// Close empties the cache.
func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
