/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/lrucache"
	"github.com/acronis/go-admitgate/store"
)

// Default write suppression parameters.
const (
	DefaultWriteThreshold = 0.8
	DefaultBatchMarkerTTL = time.Minute
)

const defaultMarkerMemoMaxEntries = 10000

// WriteSuppressorOpts represents options for WriteSuppressor.
type WriteSuppressorOpts struct {
	// Threshold is a fraction of the stage limit. Logs longer than Threshold*Limit are always persisted.
	Threshold float64

	// MarkerTTL is the expiration of the batch marker in the store.
	MarkerTTL time.Duration

	// MarkerMemoMaxEntries limits the number of batch markers remembered locally.
	MarkerMemoMaxEntries int

	MetricsCollector *MetricsCollector
}

// WriteSuppressor decides whether an updated log should be written to the durable store.
// A log is written when it is close to the stage limit or when no write happened
// for the same identity and window in the current minute bucket.
type WriteSuppressor struct {
	store     store.Store
	threshold float64
	markerTTL time.Duration
	logger    log.FieldLogger
	metrics   *MetricsCollector

	// markers written or seen by this process, value is unused
	memo *lrucache.LRUCache[string, struct{}]
}

// NewWriteSuppressor creates a new WriteSuppressor.
func NewWriteSuppressor(st store.Store, logger log.FieldLogger, opts WriteSuppressorOpts) (*WriteSuppressor, error) {
	if opts.Threshold == 0 {
		opts.Threshold = DefaultWriteThreshold
	}
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold should be in (0, 1], got %v", opts.Threshold)
	}
	if opts.MarkerTTL == 0 {
		opts.MarkerTTL = DefaultBatchMarkerTTL
	}
	if opts.MarkerMemoMaxEntries == 0 {
		opts.MarkerMemoMaxEntries = defaultMarkerMemoMaxEntries
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NewMetricsCollector("")
	}
	memo, err := lrucache.New[string, struct{}](opts.MarkerMemoMaxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("create batch marker memo: %w", err)
	}
	return &WriteSuppressor{
		store:     st,
		threshold: opts.Threshold,
		markerTTL: opts.MarkerTTL,
		logger:    logger,
		metrics:   opts.MetricsCollector,
		memo:      memo,
	}, nil
}

// ShouldPersist reports whether the log of logLen entries of the stage should be written.
// A failed marker lookup is treated as an absent marker.
func (ws *WriteSuppressor) ShouldPersist(ctx context.Context, identity string, stage Stage, logLen int, now time.Time) bool {
	if float64(logLen) > ws.threshold*float64(stage.Limit) {
		return true
	}

	key := batchMarkerKey(identity, stage.Window, now)
	if ws.markerMemoized(key, now) {
		return false
	}
	_, found, err := ws.store.Get(ctx, key)
	if err != nil {
		ws.metrics.incStoreError(storeOpMarkerGet)
		ws.logger.Warn("failed to check batch marker", log.String("key", key), log.Error(err))
		return true
	}
	if found {
		ws.memo.AddStoredAt(key, struct{}{}, now)
		return false
	}
	return true
}

// MarkPersisted writes the batch marker for the identity, the window and the minute bucket of now.
func (ws *WriteSuppressor) MarkPersisted(ctx context.Context, identity string, stage Stage, now time.Time) error {
	key := batchMarkerKey(identity, stage.Window, now)
	if err := ws.store.Put(ctx, key, batchMarkerValue, ws.markerTTL); err != nil {
		ws.metrics.incStoreError(storeOpMarkerPut)
		return fmt.Errorf("put batch marker %q: %w", key, err)
	}
	ws.memo.AddStoredAt(key, struct{}{}, now)
	return nil
}

func (ws *WriteSuppressor) markerMemoized(key string, now time.Time) bool {
	_, storedAt, ok := ws.memo.GetWithStoredAt(key)
	if !ok {
		return false
	}
	if now.Sub(storedAt) >= ws.markerTTL {
		ws.memo.Remove(key)
		return false
	}
	return true
}
