// Package cache provides the generic caches used for extension field lists.
//
// # Overview
//
// Three implementations share the Cache interface:
//
//   - MemoryCache: in-process LRU with TTL (hashicorp/golang-lru expirable)
//   - RedisCache: shared cache, JSON values, failures degrade to misses
//   - TieredCache: MemoryCache in front of RedisCache
//
// Invalidation is explicit: writers call Delete in the same operation that
// changes the underlying data.
//
// # Usage Example
//
//	fields := cache.NewMemoryCache[int64, []*extension.Field](1000, 10*time.Minute)
//	fields.Set(ctx, extID, list)
//	if cached, ok := fields.Get(ctx, extID); ok {
//	    return cached
//	}
package cache
