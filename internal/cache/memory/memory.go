// Package memory implements the in-process cache tier: a capacity-bounded
// LRU map with per-entry absolute expiry.
package memory

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"
)

// entry is one cached value. Entries own their payload copy; nothing is
// shared with the slower tiers.
type entry struct {
	key       string
	value     json.RawMessage
	createdAt time.Time
	expiresAt time.Time
	hits      int
}

// Cache is a bounded LRU cache with lazy expiry. A single mutex guards the
// structure; operations are O(1) and never block on I/O.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

// New creates a cache holding at most capacity entries, each expiring ttl
// after its write.
func New(capacity int, ttl time.Duration) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the value for key if present and unexpired. An expired entry
// is removed and reported as a miss.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	ent := elem.Value.(*entry)
	if !ent.expiresAt.After(time.Now()) {
		c.order.Remove(elem)
		delete(c.items, key)
		return nil, false
	}

	ent.hits++
	c.order.MoveToFront(elem)
	return ent.value, true
}

// Set stores value under key, refreshing its expiry. When the cache is
// over capacity the least-recently-used entry is evicted.
func (c *Cache) Set(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		ent.value = value
		ent.createdAt = now
		ent.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(c.ttl),
	})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
