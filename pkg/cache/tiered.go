package cache

import "context"

// TieredCache checks an in-process L1 before a shared L2. Deletes go to
// both tiers; other instances' L1 entries age out with their TTL.
type TieredCache[K comparable, V any] struct {
	l1 Cache[K, V]
	l2 Cache[K, V]
}

// NewTieredCache combines two caches
func NewTieredCache[K comparable, V any](l1, l2 Cache[K, V]) *TieredCache[K, V] {
	return &TieredCache[K, V]{l1: l1, l2: l2}
}

// Get checks L1 then L2, back-filling L1 on an L2 hit
func (c *TieredCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	if value, ok := c.l1.Get(ctx, key); ok {
		return value, true
	}
	value, ok := c.l2.Get(ctx, key)
	if ok {
		c.l1.Set(ctx, key, value)
	}
	return value, ok
}

// Set writes both tiers
func (c *TieredCache[K, V]) Set(ctx context.Context, key K, value V) {
	c.l2.Set(ctx, key, value)
	c.l1.Set(ctx, key, value)
}

// Delete removes the key from both tiers
func (c *TieredCache[K, V]) Delete(ctx context.Context, key K) {
	c.l2.Delete(ctx, key)
	c.l1.Delete(ctx, key)
}
