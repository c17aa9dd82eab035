/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type cacheEntry[K comparable, V any] struct {
	key       K
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

func (e *cacheEntry[K, V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LRUCache represents a bounded LRU cache with expiration, sweeping and Prometheus metrics.
type LRUCache[K comparable, V any] struct {
	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	lruList *list.List
	cache   map[K]*list.Element // value is a lruList element

	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options struct {
	// DefaultTTL is the TTL used by Add. Zero means no expiration.
	// Expired entries are not removed immediately, but when they are accessed,
	// evicted or removed by RemoveExpired.
	DefaultTTL time.Duration

	// NowFunc is a time source. time.Now is used if nil.
	NowFunc func() time.Time
}

// Stats contains a snapshot of the cache state.
type Stats[K comparable] struct {
	Size   int
	Keys   []K
	Oldest time.Time // the earliest storing time among entries, zero if the cache is empty
	Newest time.Time // the latest storing time among entries, zero if the cache is empty
}

// New creates a new LRUCache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRUCache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options{})
}

// NewWithOpts creates a new LRUCache with the provided maximum number of entries, metrics collector, and options.
// Metrics collector may be nil, in this case, metrics will be disabled.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Options) (*LRUCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("defaultTTL must be greater or equal to 0 (no expiration)")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	if opts.NowFunc == nil {
		opts.NowFunc = time.Now
	}
	return &LRUCache[K, V]{
		maxEntries:       maxEntries,
		defaultTTL:       opts.DefaultTTL,
		now:              opts.NowFunc,
		lruList:          list.New(),
		cache:            make(map[K]*list.Element),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns a value from the cache by the provided key.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	value, _, ok = c.GetWithStoredAt(key)
	return value, ok
}

// GetWithStoredAt returns a value from the cache by the provided key together with the time it was stored.
func (c *LRUCache[K, V]) GetWithStoredAt(key K) (value V, storedAt time.Time, ok bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, hit := c.cache[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, storedAt, false
	}
	entry := elem.Value.(*cacheEntry[K, V])
	if entry.expired(now) {
		c.removeElement(elem)
		c.metricsCollector.SetAmount(len(c.cache))
		c.metricsCollector.IncMisses()
		return value, storedAt, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return entry.value, entry.storedAt, true
}

// Add adds a value to the cache with the default TTL and resets its storing time.
// If the cache is full, the least recently used entry is evicted.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.AddWithTTL(key, value, c.defaultTTL)
}

// AddWithTTL adds a value to the cache with the provided TTL (zero means no expiration)
// and resets its storing time. If the cache is full, the least recently used entry is evicted.
func (c *LRUCache[K, V]) AddWithTTL(key K, value V, ttl time.Duration) {
	now := c.now()
	entry := &cacheEntry[K, V]{key: key, value: value, storedAt: now}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	c.add(entry)
}

// AddStoredAt adds a value that never expires and sets its storing time explicitly.
// It's useful when the caller works with its own notion of the current time.
func (c *LRUCache[K, V]) AddStoredAt(key K, value V, storedAt time.Time) {
	c.add(&cacheEntry[K, V]{key: key, value: value, storedAt: storedAt})
}

func (c *LRUCache[K, V]) add(entry *cacheEntry[K, V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[entry.key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value = entry
		return
	}

	c.cache[entry.key] = c.lruList.PushFront(entry)
	if len(c.cache) > c.maxEntries {
		if back := c.lruList.Back(); back != nil {
			c.removeElement(back)
			c.metricsCollector.AddEvictions(1)
		}
	}
	c.metricsCollector.SetAmount(len(c.cache))
}

// Remove removes a value from the cache by the provided key.
func (c *LRUCache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.metricsCollector.SetAmount(len(c.cache))
	return true
}

// RemoveStoredBefore removes all entries stored strictly before the cutoff and returns their number.
// It walks the whole cache under the lock.
func (c *LRUCache[K, V]) RemoveStoredBefore(cutoff time.Time) (removed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeIf(func(e *cacheEntry[K, V]) bool { return e.storedAt.Before(cutoff) })
}

// RemoveExpired removes all entries whose TTL has elapsed and returns their number.
func (c *LRUCache[K, V]) RemoveExpired() (removed int) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeIf(func(e *cacheEntry[K, V]) bool { return e.expired(now) })
}

// Purge clears the cache. Removed entries are not counted as evictions.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metricsCollector.SetAmount(0)
	c.cache = make(map[K]*list.Element)
	c.lruList.Init()
}

// Len returns the number of entries in the cache, including expired ones that were not removed yet.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

// Stats returns a snapshot of the cache state.
func (c *LRUCache[K, V]) Stats() Stats[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats[K]{Size: len(c.cache), Keys: make([]K, 0, len(c.cache))}
	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry[K, V])
		stats.Keys = append(stats.Keys, entry.key)
		if stats.Oldest.IsZero() || entry.storedAt.Before(stats.Oldest) {
			stats.Oldest = entry.storedAt
		}
		if entry.storedAt.After(stats.Newest) {
			stats.Newest = entry.storedAt
		}
	}
	return stats
}

// removeIf must be called with the lock held.
func (c *LRUCache[K, V]) removeIf(pred func(e *cacheEntry[K, V]) bool) (removed int) {
	for elem := c.lruList.Front(); elem != nil; {
		next := elem.Next()
		if pred(elem.Value.(*cacheEntry[K, V])) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	if removed > 0 {
		c.metricsCollector.SetAmount(len(c.cache))
		c.metricsCollector.AddSwept(removed)
	}
	return removed
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry[K, V]).key)
}
