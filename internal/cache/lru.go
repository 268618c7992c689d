package cache

import (
	"sync"
	"time"
)

// LRUCache is a size-bounded cache whose entries also expire after a TTL.
// Writes refresh both recency and expiry. It is safe for concurrent use.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	index   map[string]*node[T]
	// root is the sentinel of a circular list; root.next is most recent.
	root node[T]
	now  func() time.Time
}

type node[T any] struct {
	key        string
	value      T
	expiresAt  time.Time
	prev, next *node[T]
}

// NewLRUCache creates a cache holding at most maxSize live entries.
func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		index:   make(map[string]*node[T]),
		now:     time.Now,
	}
	c.root.prev, c.root.next = &c.root, &c.root
	return c
}

// Get returns a live value and marks it most recently used.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.live(key)
	if !ok {
		var zero T
		return zero, false
	}
	c.toFront(n)
	return n.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value)
}

// Update replaces the value of key with fn(current, found) under the cache
// lock and returns the stored value. Expired entries count as not found.
func (c *LRUCache[T]) Update(key string, fn func(current T, found bool) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current T
	n, ok := c.live(key)
	if ok {
		current = n.value
	}
	next := fn(current, ok)
	c.store(key, next)
	return next
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.index[key]; ok {
		c.remove(n)
	}
}

// CleanExpired removes all expired entries and returns how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for n := c.root.next; n != &c.root; {
		next := n.next
		if now.After(n.expiresAt) {
			c.remove(n)
			removed++
		}
		n = next
	}
	return removed
}

// Size returns the number of stored entries, including expired ones not
// yet cleaned.
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// live returns the node for key, dropping it if expired. Callers hold c.mu.
func (c *LRUCache[T]) live(key string) (*node[T], bool) {
	n, ok := c.index[key]
	if !ok {
		return nil, false
	}
	if c.now().After(n.expiresAt) {
		c.remove(n)
		return nil, false
	}
	return n, true
}

func (c *LRUCache[T]) store(key string, value T) {
	expiresAt := c.now().Add(c.ttl)
	if n, ok := c.index[key]; ok {
		n.value, n.expiresAt = value, expiresAt
		c.toFront(n)
		return
	}

	n := &node[T]{key: key, value: value, expiresAt: expiresAt}
	c.index[key] = n
	c.link(n)
	if len(c.index) > c.maxSize {
		c.remove(c.root.prev)
	}
}

func (c *LRUCache[T]) link(n *node[T]) {
	n.prev = &c.root
	n.next = c.root.next
	c.root.next.prev = n
	c.root.next = n
}

func (c *LRUCache[T]) unlink(n *node[T]) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
}

func (c *LRUCache[T]) toFront(n *node[T]) {
	if c.root.next == n {
		return
	}
	c.unlink(n)
	c.link(n)
}

func (c *LRUCache[T]) remove(n *node[T]) {
	c.unlink(n)
	delete(c.index, n.key)
}
