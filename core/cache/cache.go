// Package cache implements the per-application memoization discipline
// spec.md §5 requires for the adapter/label/recipe caches and the catalog
// singleton: writes occur only on first miss, readers take a lock, and once
// stored an entry is read-only ("store-after-compute discipline").
//
// Grounded on original_source/src/htsql/core/cache.py's `once` decorator,
// translated to an explicit keyed cache since Go has no decorator sugar.
package cache

import "sync"

// Cache memoizes values of type any keyed by a comparable key, computing a
// missing entry at most once even under concurrent access.
type Cache struct {
	mu    sync.Mutex
	inner sync.Map
}

// Once returns the cached value for key, computing it via compute if
// absent. Hits take no lock. Every miss takes the cache's single mutex, so
// concurrent callers racing on the same missing key wait instead of
// duplicating work, and misses on distinct keys also wait for each other.
func (c *Cache) Once(key interface{}, compute func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.inner.Load(key); ok {
		return v.(result).value, v.(result).err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.inner.Load(key); ok {
		return v.(result).value, v.(result).err
	}
	val, err := compute()
	c.inner.Store(key, result{val, err})
	return val, err
}

type result struct {
	value interface{}
	err   error
}

// Reset clears all memoized entries, used when an addon set changes and
// previously-realized adapters/labels must be recomputed.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner = sync.Map{}
}
