// Package cache memoizes analytics results for a bounded time.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is an LRU with TTL expiry. Concurrent misses on the same key share one
// computation. A nil *Cache is valid and caches nothing.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time

	group singleflight.Group
}

type entry struct {
	key       string
	data      any
	expiresAt time.Time
}

// New creates a cache holding at most maxSize entries for ttl each. It returns
// nil when either bound is not positive.
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 || ttl <= 0 {
		return nil
	}
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Get retrieves a live value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*entry)
	if !c.now().Before(item.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return item.data, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *Cache) Set(key string, data any) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &entry{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Purge drops every entry, e.g. after an import changed the ledger.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.lru.Init()
}

// CleanExpired removes all expired entries and returns count of removed items.
func (c *Cache) CleanExpired() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		if !now.Before(elem.Value.(*entry).expiresAt) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(*entry).key)
	c.lru.Remove(elem)
}

// Remember returns the cached value for key or computes, stores and returns it.
// Errors are returned to every waiter and never stored.
func Remember[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}
	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		res, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, res)
		return res, nil
	})
	if err != nil {
		// the shared call ran on another caller's context; retry on ours if only theirs ended
		if isContextErr(err) && ctx.Err() == nil {
			return compute(ctx)
		}
		var zero T
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return compute(ctx)
	}
	return typed, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Key joins the parts of a query into a cache key. Times are rendered in RFC3339
// with their zone so equal instants in different zones do not collide.
func Key(op string, parts ...any) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte('|')
		switch v := p.(type) {
		case time.Time:
			b.WriteString(v.Format(time.RFC3339Nano))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
