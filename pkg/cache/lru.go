// Package cache provides a byte-bounded LRU cache.
package cache

import (
	"container/list"
	"image"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
}

// LRU evicts the least recently used entries once the summed entry sizes
// exceed its capacity. It is safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	sizeOf   func(V) int64
	ll       *list.List
	items    map[K]*list.Element
	onEvict  func(K, V)
}

// New creates an LRU holding at most capacity bytes as measured by sizeOf
func New[K comparable, V any](capacity int64, sizeOf func(V) int64) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: capacity,
		sizeOf:   sizeOf,
		ll:       list.New(),
		items:    make(map[K]*list.Element),
	}
}

// OnEvict registers a callback run for each evicted entry, under the lock
func (c *LRU[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the value for key and marks it most recently used
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// Put stores value under key. A value larger than the whole capacity is
// not stored and reports false.
func (c *LRU[K, V]) Put(key K, value V) bool {
	size := c.sizeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el, false)
	}
	if size > c.capacity {
		return false
	}

	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, size: size})
	c.used += size

	for c.used > c.capacity {
		c.removeElement(c.ll.Back(), true)
	}
	return true
}

// Remove drops key if present
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el, false)
	}
}

// Clear drops every entry
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[K]*list.Element)
	c.used = 0
}

// Len returns the number of entries
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Size returns the bytes currently accounted for
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Capacity returns the configured byte bound
func (c *LRU[K, V]) Capacity() int64 {
	return c.capacity
}

func (c *LRU[K, V]) removeElement(el *list.Element, evicted bool) {
	e := c.ll.Remove(el).(*entry[K, V])
	delete(c.items, e.key)
	c.used -= e.size
	if evicted && c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// ImageBytes estimates the decoded size of img as four bytes per pixel
func ImageBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

// NewImageCache returns an LRU of decoded images keyed by source reference
func NewImageCache(capacity int64) *LRU[string, image.Image] {
	return New[string, image.Image](capacity, ImageBytes)
}
