// Package shadercache memoizes compiled shader binaries.
//
// Compilation of the same WGSL source happens once per process no matter
// how many devices or programs use it. Entries are evicted least recently
// used first once the soft limit is exceeded.
package shadercache

import (
	"hash/fnv"
	"sync"
)

// Key identifies a compiled binary.
type Key uint64

// KeyOf hashes a shader source and its entry point.
func KeyOf(source, entryPoint string) Key {
	h := fnv.New64a()
	h.Write([]byte(entryPoint))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return Key(h.Sum64())
}

// Cache is a thread-safe LRU cache with a soft limit.
//
// Cache must not be copied after creation (has mutex).
type Cache[V any] struct {
	mu        sync.Mutex
	entries   map[Key]*entry[V]
	softLimit int
	tick      int64 // monotonic access counter

	hits   uint64
	misses uint64
}

type entry[V any] struct {
	value V
	atime int64
}

// New creates a cache holding about softLimit entries.
// A softLimit of 0 means unlimited.
func New[V any](softLimit int) *Cache[V] {
	return &Cache[V]{
		entries:   make(map[Key]*entry[V]),
		softLimit: softLimit,
	}
}

// GetOrCompile returns the cached value of key, or calls compile and
// stores its result. Failed compilations are not cached.
// compile runs under the lock, so it never runs twice for one key.
func (c *Cache[V]) GetOrCompile(key Key, compile func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.entries[key]; ok {
		e.atime = c.tick
		c.hits++
		return e.value, nil
	}
	c.misses++

	v, err := compile()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = &entry[V]{value: v, atime: c.tick}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldest()
	}
	return v, nil
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counters.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear removes all entries and resets the counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry[V])
	c.tick, c.hits, c.misses = 0, 0, 0
}

// evictOldest drops the least recently used quarter of the entries.
// Caller must hold c.mu.
func (c *Cache[V]) evictOldest() {
	target := max(c.softLimit*3/4, 1)
	for len(c.entries) > target {
		var (
			oldest Key
			atime  int64 = -1
		)
		for k, e := range c.entries {
			if atime < 0 || e.atime < atime {
				oldest, atime = k, e.atime
			}
		}
		delete(c.entries, oldest)
	}
}
