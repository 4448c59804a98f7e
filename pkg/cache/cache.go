package cache

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a keyed cache with explicit invalidation
type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V)
	Delete(ctx context.Context, key K)
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	ItemCount int64
	HitRate   float64
}

// MemoryCache implements an in-process LRU cache with TTL expiry
type MemoryCache[K comparable, V any] struct {
	cache   *lru.LRU[K, V]
	metrics *metrics
}

// NewMemoryCache creates a new LRU cache. A zero ttl disables expiry.
func NewMemoryCache[K comparable, V any](maxEntries int, ttl time.Duration) *MemoryCache[K, V] {
	if maxEntries < 10 {
		maxEntries = 10 // Minimum 10 entries
	}
	return &MemoryCache[K, V]{
		cache:   lru.NewLRU[K, V](maxEntries, nil, ttl),
		metrics: &metrics{},
	}
}

// Get retrieves a cached value
func (c *MemoryCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	value, ok := c.cache.Get(key)
	if !ok {
		c.metrics.recordMiss()
		return value, false
	}
	c.metrics.recordHit()
	return value, true
}

// Set stores a value
func (c *MemoryCache[K, V]) Set(ctx context.Context, key K, value V) {
	c.cache.Add(key, value)
}

// Delete removes a cached value
func (c *MemoryCache[K, V]) Delete(ctx context.Context, key K) {
	c.cache.Remove(key)
}

// Purge removes everything
func (c *MemoryCache[K, V]) Purge() {
	c.cache.Purge()
}

// Stats returns cache statistics
func (c *MemoryCache[K, V]) Stats() Stats {
	return c.metrics.stats(int64(c.cache.Len()))
}

// metrics tracks cache metrics
type metrics struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (m *metrics) recordHit() {
	m.hits.Add(1)
}

func (m *metrics) recordMiss() {
	m.misses.Add(1)
}

func (m *metrics) stats(items int64) Stats {
	stats := Stats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		ItemCount: items,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
