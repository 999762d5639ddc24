// Upsell - AI-Assisted Product Recommendations for E-Commerce
// Copyright 2026 Merchware
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/merchware/upsell

// Package cache provides a thread-safe in-memory cache with TTL expiry and
// a bounded capacity. Eviction on overflow removes the oldest-inserted
// entry, not the least recently used one: a cheap FIFO policy that matches
// the short TTL the recommendation engine runs with.
package cache

import (
	"sync"
	"time"
)

// entry is a cached value with its insertion time and sequence number.
type entry[V any] struct {
	value     V
	createdAt time.Time
	seq       uint64
}

// slot marks one insertion in the eviction queue. A slot is stale once the
// entry it was created for is gone, even if the key was inserted again
// later under a new sequence number.
type slot struct {
	key string
	seq uint64
}

// Stats is a snapshot of cache performance counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// Cache is a generic TTL cache bounded to a fixed capacity.
// Safe for concurrent use. The zero value is not usable; call New.
type Cache[V any] struct {
	mu       sync.RWMutex
	entries  map[string]entry[V]
	order    []slot // insertion order, may contain stale slots
	seq      uint64
	ttl      time.Duration
	capacity int

	hits      int64
	misses    int64
	evictions int64

	// now is swappable for TTL tests.
	now func() time.Time
}

// New creates a cache with the given entry TTL and capacity.
func New[V any](ttl time.Duration, capacity int) *Cache[V] {
	return &Cache[V]{
		entries:  make(map[string]entry[V], capacity),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the cached value for key if present and younger than the TTL.
// Expired entries are dropped on access and reported as misses.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	if c.now().Sub(e.createdAt) >= c.ttl {
		delete(c.entries, key)
		c.misses++
		c.evictions++
		var zero V
		return zero, false
	}

	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the oldest-inserted entry first when
// the cache is at capacity. Overwriting an existing key refreshes its value
// and age but keeps its original insertion position.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.entries[key]
	seq := prev.seq
	if !exists {
		if len(c.entries) >= c.capacity {
			c.evictOldestLocked()
		}
		c.seq++
		seq = c.seq
		c.order = append(c.order, slot{key: key, seq: seq})
	}
	c.entries[key] = entry[V]{value: value, createdAt: c.now(), seq: seq}
}

// evictOldestLocked removes the single oldest live entry. Stale order slots
// left behind by Delete or TTL expiry are skipped and discarded; the
// sequence check keeps a re-inserted key from matching its old slot.
func (c *Cache[V]) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if e, live := c.entries[oldest.key]; live && e.seq == oldest.seq {
			delete(c.entries, oldest.key)
			c.evictions++
			return
		}
	}
}

// Delete removes the entry for key. No-op when the key is absent.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evictions++
	}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictions += int64(len(c.entries))
	c.entries = make(map[string]entry[V], c.capacity)
	c.order = nil
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the performance counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
}

// SetClock replaces the cache's time source. Test hook.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
