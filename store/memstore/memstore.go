/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package memstore provides an in-process implementation of store.Store.
// It is suitable for a single instance deployment and for tests.
package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-admitgate/lrucache"
	"github.com/acronis/go-admitgate/store"
)

// DefaultMaxEntries is the default maximum number of keys kept by MemStore.
const DefaultMaxEntries = 100_000

// Opts represents options for MemStore.
type Opts struct {
	MaxEntries       int
	NowFunc          func() time.Time
	MetricsCollector lrucache.MetricsCollector
}

// MemStore is a bounded in-memory store.Store. When it's full, the least recently used keys are evicted.
type MemStore struct {
	cache *lrucache.LRUCache[string, string]
}

var _ store.Store = (*MemStore)(nil)

// New creates a new MemStore.
func New(opts Opts) (*MemStore, error) {
	if opts.MaxEntries == 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	cache, err := lrucache.NewWithOpts[string, string](
		opts.MaxEntries, opts.MetricsCollector, lrucache.Options{NowFunc: opts.NowFunc})
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemStore{cache: cache}, nil
}

// Get returns the value stored by the key.
func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	val, ok := s.cache.Get(key)
	return val, ok, nil
}

// Put stores the value by the key.
func (s *MemStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	if ttl < 0 {
		return fmt.Errorf("ttl should be >= 0, got %s", ttl)
	}
	s.cache.AddWithTTL(key, value, ttl)
	return nil
}

// RemoveExpired removes all expired keys and returns their number.
func (s *MemStore) RemoveExpired() int {
	return s.cache.RemoveExpired()
}

// Len returns the number of keys (including expired but not yet removed ones).
func (s *MemStore) Len() int {
	return s.cache.Len()
}
