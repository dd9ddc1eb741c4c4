// Package cache provides a fixed-capacity LRU cache keyed by string IDs.
//
// The cache does no internal locking: it has a single logical owner, and a
// concurrent caller must serialize access itself.
package cache

import "container/list"

type entry[V any] struct {
	key   string
	value V
}

// LRU is a least-recently-used cache with a fixed entry capacity. The recency
// list keeps the most recently used entry at the front.
type LRU[V any] struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

// NewLRU creates an LRU cache holding at most capacity entries.
// A capacity <= 0 is treated as 1.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[V]).value, true
}

// Put inserts or replaces the value for key. When the cache is at capacity,
// the single least-recently-used entry is evicted before insertion.
func (c *LRU[V]) Put(key string, value V) {
	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[V]).value = value
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		back := c.order.Back()
		if back != nil {
			evicted := c.order.Remove(back).(*entry[V])
			delete(c.items, evicted.key)
		}
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value})
}

// Contains reports whether key is resident without refreshing its recency.
func (c *LRU[V]) Contains(key string) bool {
	_, ok := c.items[key]
	return ok
}

// Len returns the number of resident entries.
func (c *LRU[V]) Len() int {
	return c.order.Len()
}

// Clear drops all entries.
func (c *LRU[V]) Clear() {
	c.items = make(map[string]*list.Element)
	c.order.Init()
}
