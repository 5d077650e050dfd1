// Package cache holds small in-memory caches for vendor reference data.
package cache

import (
	"sync"
	"time"
)

// List caches one slice of values for a fixed time-to-live.
type List[T any] struct {
	mu        sync.RWMutex
	items     []T
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

func NewList[T any](ttl time.Duration) *List[T] {
	return &List[T]{ttl: ttl, now: time.Now}
}

// Get returns a copy of the cached values, or false when nothing fresh is
// cached. A non-positive TTL disables caching.
func (c *List[T]) Get() ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.items == nil || c.ttl <= 0 || c.now().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}

	result := make([]T, len(c.items))
	copy(result, c.items)
	return result, true
}

func (c *List[T]) Set(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]T, len(items))
	copy(c.items, items)
	c.fetchedAt = c.now()
}

// Invalidate drops the cached values so the next Get misses.
func (c *List[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
}
