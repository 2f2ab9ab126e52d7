package strata

import (
	"sync"
	"sync/atomic"
)

// Cache memoizes accessor results keyed by a string built from the accessor
// name and its options. It has no TTL of its own: entries live until Clear is
// called, which happens every time the underlying snapshot is replaced.
//
// Every entry is tagged with the generation it was computed in. A value whose
// computation started before a Clear is never stored, so a reader racing with
// a snapshot replacement cannot reinstate a stale derivation.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]any
	generation uint64
	stats      CacheStats
}

// CacheStats holds cache hit/miss statistics.
type CacheStats struct {
	Hits   atomic.Int64
	Misses atomic.Int64
	Clears atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Stats returns the live statistics of the cache.
func (c *Cache) Stats() *CacheStats {
	return &c.stats
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Generation returns the current generation. It increases on every Clear.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Clear empties the cache unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]any)
	c.generation++
	c.mu.Unlock()
	c.stats.Clears.Add(1)
}

func (c *Cache) lookup(key string) (any, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, c.generation, ok
}

func (c *Cache) store(gen uint64, key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.entries[key] = v
}

// KeyFunc computes the cache key for an accessor argument.
type KeyFunc[A any] func(A) string

// Memoize wraps fn so that results are cached under name plus the key
// computed from the argument. Errors are never cached, nor are nil results.
//
// Example:
//
//	getType := strata.Memoize(cache, "type", resolveType, func(a typeArgs) string {
//	    return a.name + ":" + a.opts.Key()
//	})
func Memoize[A any, R any](c *Cache, name string, fn func(A) (R, error), key KeyFunc[A]) func(A) (R, error) {
	return func(arg A) (R, error) {
		k := name + ":" + key(arg)
		v, gen, ok := c.lookup(k)
		if ok {
			c.stats.Hits.Add(1)
			return v.(R), nil
		}
		c.stats.Misses.Add(1)
		res, err := fn(arg)
		if err != nil {
			return res, err
		}
		if any(res) != nil {
			c.store(gen, k, res)
		}
		return res, nil
	}
}
