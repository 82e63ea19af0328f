// Package lru provides a small fixed-capacity cache with
// least-recently-used eviction. It carries only the operations the notes
// pipeline needs; it is not a general cache library.
package lru

import "sync"

// entry is one cached pair, linked in recency order between two sentinels.
type entry[K comparable, V any] struct {
	key  K
	val  V
	prev *entry[K, V]
	next *entry[K, V]
}

// Cache maps keys to values and evicts the least recently used pair once
// capacity is reached. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*entry[K, V]
	front    *entry[K, V] // sentinel: most recently used side
	back     *entry[K, V] // sentinel: eviction side
}

// New creates a cache holding at most capacity entries. Panics if capacity
// is less than one.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		panic("lru: capacity must be >= 1")
	}

	front := &entry[K, V]{}
	back := &entry[K, V]{}
	front.next = back
	back.prev = front

	return &Cache[K, V]{
		capacity: capacity,
		items:    make(map[K]*entry[K, V], capacity),
		front:    front,
		back:     back,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.promote(e)
	return e.val, true
}

// Put stores key/value, evicting the least recently used entry when the
// cache is full. Storing an existing key updates it in place.
func (c *Cache[K, V]) Put(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.val = val
		c.promote(e)
		return
	}

	if len(c.items) >= c.capacity {
		victim := c.back.prev
		c.unlink(victim)
		delete(c.items, victim.key)
	}

	e := &entry[K, V]{key: key, val: val}
	c.items[key] = e
	c.link(e)
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// unlink detaches e from the recency list. Caller holds the lock.
func (c *Cache[K, V]) unlink(e *entry[K, V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

// link inserts e at the most-recently-used end. Caller holds the lock.
func (c *Cache[K, V]) link(e *entry[K, V]) {
	e.next = c.front.next
	e.prev = c.front
	c.front.next.prev = e
	c.front.next = e
}

func (c *Cache[K, V]) promote(e *entry[K, V]) {
	c.unlink(e)
	c.link(e)
}
