/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"time"

	"github.com/acronis/go-admitgate/internal/ratelimit"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/lrucache"
	"github.com/acronis/go-admitgate/service"
)

// DefaultSweepInterval is the default interval of periodic cache sweeping.
const DefaultSweepInterval = time.Minute

// Sweeper removes cache entries older than twice the cache TTL.
// It implements service.Worker, a single Run is one sweep, so it's intended to be wrapped into service.PeriodicWorker.
type Sweeper struct {
	cache    *lrucache.LRUCache[string, ratelimit.TimestampLog]
	cacheTTL time.Duration
	logger   log.FieldLogger
	metrics  *MetricsCollector

	// NowFunc is used by Run. time.Now by default.
	NowFunc func() time.Time
}

var _ service.Worker = (*Sweeper)(nil)

func newSweeper(
	cache *lrucache.LRUCache[string, ratelimit.TimestampLog], cacheTTL time.Duration, logger log.FieldLogger, mc *MetricsCollector,
) *Sweeper {
	return &Sweeper{cache: cache, cacheTTL: cacheTTL, logger: logger, metrics: mc, NowFunc: time.Now}
}

// Sweep removes entries cached more than 2*cacheTTL before now and returns their number.
func (s *Sweeper) Sweep(now time.Time) int {
	removed := s.cache.RemoveStoredBefore(now.Add(-2 * s.cacheTTL))
	if removed > 0 {
		s.metrics.SweptEntries.Add(float64(removed))
		s.logger.Info("stale cache entries swept", log.Int("removed", removed), log.Int("size", s.cache.Len()))
	}
	return removed
}

// Run sweeps the cache once.
func (s *Sweeper) Run(_ context.Context) error {
	s.Sweep(s.NowFunc())
	return nil
}
