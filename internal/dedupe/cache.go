// ABOUTME: Thread-safe TTL cache that remembers inbound chat event ids
// ABOUTME: The router consults it so redelivered events are handled once

package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an event id is remembered.
	DefaultTTL = 10 * time.Minute
	// DefaultMaxSize caps the number of remembered ids.
	DefaultMaxSize = 10000
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers event ids for a TTL, evicting the oldest id once
// MaxSize is reached. Insertion order lives in a linked list so eviction
// is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	dupes   uint64

	now func() time.Time
}

// New creates a cache. Non-positive arguments select the defaults.
// Expired ids are ignored on lookup; call Run to also reclaim their memory.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Seen reports whether id was marked within the TTL without marking it.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[id]
	return ok && c.now().Sub(e.seenAt) < c.ttl
}

// Duplicate atomically checks and marks id. It returns true when id was
// already marked within the TTL; otherwise id is recorded and false is
// returned. Empty ids are never duplicates.
func (c *Cache) Duplicate(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[id]; ok {
		if now.Sub(e.seenAt) < c.ttl {
			c.dupes++
			return true
		}
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[id] = &entry{seenAt: now, element: c.order.PushBack(id)}
	return false
}

// Len returns how many ids are currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Duplicates returns how many duplicate ids have been rejected.
func (c *Cache) Duplicates() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dupes
}

// Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

// Run removes expired ids every interval until ctx is done.
// A non-positive interval uses half the TTL.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Prune()
		case <-ctx.Done():
			return nil
		}
	}
}

// Prune removes every expired id and returns how many were dropped.
func (c *Cache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	// the list is ordered by seenAt, so stop at the first live id
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		id, _ := front.Value.(string)
		if now.Sub(c.seen[id].seenAt) < c.ttl {
			break
		}
		c.order.Remove(front)
		delete(c.seen, id)
		dropped++
	}
	return dropped
}
