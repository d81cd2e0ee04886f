// Package cache provides the in-process TTL memoization used by everything
// that talks to an upstream. One instance per data class: quick lookups and
// bulk archives expire on different schedules.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      interface{}
	insertedAt time.Time
}

// Cache is a string-keyed TTL cache. Entries expire lazily: a read past the
// TTL deletes the entry and reports a miss. There is no capacity bound; the
// key universe (symbols, archive years) is small.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]entry
}

// New creates a cache with the given TTL. now may be nil, defaulting to
// time.Now; tests inject a fake clock.
func New(ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key, or (nil, false) when absent or
// expired. Reading an expired entry removes it.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().Sub(cur.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key, stamping it with the current time. Concurrent
// writers to the same key are last-writer-wins.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, insertedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of entries currently stored, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
