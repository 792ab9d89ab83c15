// Package cache provides a small in-memory LRU cache with per-entry TTL.
// It backs the currency service so exchange rates and currency names are
// not re-fetched on every dashboard render.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type Cache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List

	stopJanitor chan struct{}
	janitorDone chan struct{}
}

type entry[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func New[T any](maxSize int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get retrieves a value. Expired entries are removed on access.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	e := elem.Value.(*entry[T])
	if time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return e.data, true
}

// Set stores a value, evicting the least recently used entry when the
// cache is over capacity.
func (c *Cache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, data: data, expiresAt: time.Now().Add(c.ttl)}

	if elem, ok := c.items[key]; ok {
		elem.Value = e
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(e)

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *Cache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[T]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[T])
	delete(c.items, e.key)
	c.lru.Remove(elem)
}

// CleanExpired removes every expired entry and reports how many were
// removed.
func (c *Cache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*entry[T]).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeElement(elem)
	}
	return len(expired)
}

// StartJanitor sweeps expired entries on the given interval until
// StopJanitor is called.
func (c *Cache[T]) StartJanitor(interval time.Duration) {
	c.stopJanitor = make(chan struct{})
	c.janitorDone = make(chan struct{})
	go func() {
		defer close(c.janitorDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.CleanExpired()
			case <-c.stopJanitor:
				return
			}
		}
	}()
}

// StopJanitor waits for the sweep goroutine to exit. Safe to call more
// than once.
func (c *Cache[T]) StopJanitor() {
	if c.stopJanitor != nil {
		close(c.stopJanitor)
		<-c.janitorDone
		c.stopJanitor = nil
	}
}
