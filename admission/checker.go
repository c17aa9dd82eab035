/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/acronis/go-admitgate/internal/ratelimit"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/lrucache"
	"github.com/acronis/go-admitgate/store"
)

// Stage describes a single sliding-window limit: no more than Limit requests within Window.
type Stage = ratelimit.Stage

// Stages is an ordered table of stages.
type Stages = ratelimit.Stages

// ErrDuplicateWindow is returned when two stages of the table share the same window duration.
var ErrDuplicateWindow = ratelimit.ErrDuplicateWindow

// DefaultStages returns the default stage table: 5 requests per minute, 20 per 5 minutes and 100 per hour.
func DefaultStages() Stages {
	return ratelimit.DefaultStages()
}

// Default parameter values for Checker.
const (
	DefaultCacheTTL         = 30 * time.Second
	DefaultCacheMaxEntries  = 100_000
	DefaultStoreReadTimeout = 200 * time.Millisecond
	DefaultSweepPercent     = 5
)

const lockStripes = 256

// Decision is a result of the admission check.
type Decision struct {
	Blocked bool

	// ViolatedStage is the first stage whose limit was exceeded. Zero if the request is not blocked.
	ViolatedStage Stage
}

// RetryAfter returns how long the client is advised to wait before retrying.
func (d Decision) RetryAfter() time.Duration {
	if !d.Blocked {
		return 0
	}
	return d.ViolatedStage.Window
}

// CheckerOpts represents options for Checker.
type CheckerOpts struct {
	// Store is the durable store shared by all instances. If nil, the Checker works in cache-only mode.
	Store store.Store

	// Persister writes updated logs to Store in the background. If nil, logs are never written.
	Persister *Persister

	// CacheTTL is the age after which a cache entry is not trusted and the log is re-read from Store.
	// Entries older than twice CacheTTL are removed by sweeping.
	CacheTTL time.Duration

	CacheMaxEntries int

	// StoreReadTimeout bounds a single read from Store on the decision path.
	StoreReadTimeout time.Duration

	// SweepPercent is the percentage of checks that also sweep the cache. Zero disables it.
	SweepPercent int

	MetricsCollector      *MetricsCollector
	CacheMetricsCollector lrucache.MetricsCollector
}

// Checker makes admission decisions.
//
// Logs are cached per window key. Updates of the same key are serialized with striped mutexes,
// the cache itself has its own lock, which is also held for the duration of a sweep.
// Store reads happen outside of the striped mutexes; after a read the cache is checked again,
// and a fresh entry written meanwhile by a concurrent check wins over the store data.
type Checker struct {
	stages           Stages
	cache            *lrucache.LRUCache[string, ratelimit.TimestampLog]
	cacheTTL         time.Duration
	store            store.Store
	storeReadTimeout time.Duration
	persister        *Persister
	sweeper          *Sweeper
	sweepPercent     int
	logger           log.FieldLogger
	metrics          *MetricsCollector

	locks [lockStripes]sync.Mutex
}

// NewChecker creates a new Checker. The stage table is validated.
func NewChecker(stages Stages, logger log.FieldLogger, opts CheckerOpts) (*Checker, error) {
	if err := stages.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stages: %w", err)
	}
	if opts.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl should be >= 0, got %s", opts.CacheTTL)
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheMaxEntries == 0 {
		opts.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if opts.StoreReadTimeout == 0 {
		opts.StoreReadTimeout = DefaultStoreReadTimeout
	}
	if opts.SweepPercent < 0 || opts.SweepPercent > 100 {
		return nil, fmt.Errorf("sweep percent should be in [0, 100], got %d", opts.SweepPercent)
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NewMetricsCollector("")
	}

	cache, err := lrucache.New[string, ratelimit.TimestampLog](opts.CacheMaxEntries, opts.CacheMetricsCollector)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Checker{
		stages:           append(Stages(nil), stages...),
		cache:            cache,
		cacheTTL:         opts.CacheTTL,
		store:            opts.Store,
		storeReadTimeout: opts.StoreReadTimeout,
		persister:        opts.Persister,
		sweeper:          newSweeper(cache, opts.CacheTTL, logger, opts.MetricsCollector),
		sweepPercent:     opts.SweepPercent,
		logger:           logger,
		metrics:          opts.MetricsCollector,
	}, nil
}

// Stages returns a copy of the stage table.
func (c *Checker) Stages() Stages {
	return append(Stages(nil), c.stages...)
}

// Sweeper returns the Sweeper of the Checker's cache.
func (c *Checker) Sweeper() *Sweeper {
	return c.sweeper
}

// Check records a request from the identity arriving at now and decides whether it should be blocked.
// Stages are checked in order, the first exceeded stage blocks the request and the remaining stages are not updated.
// Check never fails: any internal error results in the request being admitted.
func (c *Checker) Check(ctx context.Context, identity string, now time.Time) (decision Decision) {
	defer func() {
		if p := recover(); p != nil {
			const logStackSize = 8192
			stack := make([]byte, logStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			c.logger.Error(fmt.Sprintf("panic during admission check: %+v", p),
				log.String("identity", identity), log.Bytes("stack", stack))
			c.metrics.incDecision(metricsValRecovered, metricsValNoStage)
			decision = Decision{}
		}
	}()

	if c.sweepPercent > 0 && now.UnixMilli()%100 < int64(c.sweepPercent) {
		c.sweeper.Sweep(now)
	}

	for _, stage := range c.stages {
		if c.checkStage(ctx, identity, stage, now) {
			c.metrics.incDecision(metricsValBlocked, stage.String())
			return Decision{Blocked: true, ViolatedStage: stage}
		}
	}
	c.metrics.incDecision(metricsValAllowed, metricsValNoStage)
	return Decision{}
}

func (c *Checker) checkStage(ctx context.Context, identity string, stage Stage, now time.Time) bool {
	key := windowKey(identity, stage.Window)
	mu := &c.locks[stripeIndex(key, lockStripes)]

	// The stripe lock is not held during the store read,
	// so a slow store does not delay other keys of the same stripe.
	var (
		persisted ratelimit.TimestampLog
		readOK    bool
	)
	if c.store != nil && !c.hasFreshLog(mu, key, now) {
		persisted, readOK = c.readLog(ctx, key)
	}

	mu.Lock()
	defer mu.Unlock()

	prior, cachedAt, cacheHit := c.cache.GetWithStoredAt(key)
	switch {
	case cacheHit && now.Sub(cachedAt) < c.cacheTTL:
		// fresh entry, possibly written by a concurrent check while the store was read
	case readOK:
		prior = persisted
	}
	updated, exceeded := ratelimit.Evaluate(prior, now, stage)
	c.cache.AddStoredAt(key, updated, now)
	if c.persister != nil {
		c.persister.Submit(PersistTask{Identity: identity, Stage: stage, Log: updated, Now: now})
	}
	return exceeded
}

func (c *Checker) hasFreshLog(mu *sync.Mutex, key string, now time.Time) bool {
	mu.Lock()
	defer mu.Unlock()
	_, cachedAt, ok := c.cache.GetWithStoredAt(key)
	return ok && now.Sub(cachedAt) < c.cacheTTL
}

// readLog reads the log from the store. ok is false if the store cannot be read,
// then the caller keeps using the stale cached log.
// "Not found" and malformed data give an empty log.
func (c *Checker) readLog(ctx context.Context, key string) (l ratelimit.TimestampLog, ok bool) {
	readCtx, cancel := context.WithTimeout(ctx, c.storeReadTimeout)
	defer cancel()
	data, found, err := c.store.Get(readCtx, key)
	if err != nil {
		c.metrics.incStoreError(storeOpGet)
		c.logger.Warn("failed to read log from store", log.String("key", key), log.Error(err))
		return nil, false
	}
	if !found {
		return nil, true
	}
	persisted, err := ratelimit.DecodeTimestampLog(data)
	if err != nil {
		c.metrics.incStoreError(storeOpDecode)
		c.logger.Warn("malformed log in store, treated as empty", log.String("key", key), log.Error(err))
		return nil, true
	}
	return persisted, true
}

// CacheStats contains a snapshot of the Checker's cache.
type CacheStats struct {
	Size   int       `json:"size"`
	Keys   []string  `json:"keys"`
	Oldest time.Time `json:"oldest"`
	Newest time.Time `json:"newest"`
	Now    time.Time `json:"now"`
}

// CacheStats returns a snapshot of the cache: number of entries, their keys and the range of caching times.
func (c *Checker) CacheStats(now time.Time) CacheStats {
	stats := c.cache.Stats()
	return CacheStats{Size: stats.Size, Keys: stats.Keys, Oldest: stats.Oldest, Newest: stats.Newest, Now: now}
}
