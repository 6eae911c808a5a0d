// Package cache provides a process-local key/value store whose entries expire.
package cache

import (
	"sync"
	"time"
)

// sweepThreshold is the entry count above which Put removes expired entries.
const sweepThreshold = 100

// Cache stores values under string keys for a bounded time.
type Cache[V any] interface {
	// Get returns the value stored under key if it has not expired.
	Get(key string) (V, bool)
	// Put stores value under key for ttl. A non-positive ttl is ignored.
	Put(key string, value V, ttl time.Duration)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Expiring is a mutex-guarded map with lazy expiry. Expired entries are dropped
// when read and swept on write once the table grows past a threshold; live entries
// are never evicted.
type Expiring[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

// Compile-time interface satisfaction check.
var _ Cache[string] = (*Expiring[string])(nil)

// New creates an empty Expiring cache using the wall clock.
func New[V any]() *Expiring[V] {
	return NewWithClock[V](time.Now)
}

// NewWithClock creates an empty Expiring cache that reads time from now.
func NewWithClock[V any](now func() time.Time) *Expiring[V] {
	return &Expiring[V]{
		entries: make(map[string]entry[V]),
		now:     now,
	}
}

// Get returns the live value for key.
func (c *Expiring[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Put stores value under key until ttl elapses.
func (c *Expiring[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = entry[V]{value: value, expiresAt: now.Add(ttl)}

	if len(c.entries) > sweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Expiring[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
