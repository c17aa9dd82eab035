/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/acronis/go-admitgate/internal/ratelimit"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/retry"
	"github.com/acronis/go-admitgate/service"
	"github.com/acronis/go-admitgate/store"
)

// Default parameter values for Persister.
const (
	DefaultPersistWorkers              = 4
	DefaultPersistQueueSize            = 1024
	DefaultPersistRetryAttempts        = 2
	DefaultPersistRetryInitialInterval = 50 * time.Millisecond
	DefaultPersistWriteTimeout         = time.Second
	DefaultPersistDrainTimeout         = 2 * time.Second
)

// PersistTask is a request to persist the updated log of the stage for the identity.
type PersistTask struct {
	Identity string
	Stage    Stage
	Log      ratelimit.TimestampLog
	Now      time.Time
}

// PersisterOpts represents options for Persister.
type PersisterOpts struct {
	// Workers is a number of goroutines writing to the store.
	// Tasks for the same identity and window are always handled by the same worker, in submission order.
	Workers int

	// QueueSize is the total capacity of the task queues. Tasks submitted to a full queue are dropped.
	QueueSize int

	// MaxWritesPerSecond limits the rate of log writes to the store. Zero means no limit.
	MaxWritesPerSecond float64

	// Burst is the burst size for MaxWritesPerSecond. Defaults to the number of workers.
	Burst int

	RetryAttempts        int
	RetryInitialInterval time.Duration

	// WriteTimeout bounds a single store operation.
	WriteTimeout time.Duration

	// DrainTimeout bounds how long queued tasks are still written after Run's context is canceled.
	// Tasks left after that are discarded.
	DrainTimeout time.Duration

	MetricsCollector *MetricsCollector
}

// Persister writes updated logs to the durable store in the background.
// The decision path only enqueues tasks, so slow or unavailable storage never delays decisions.
// Persister implements service.Worker.
type Persister struct {
	store        store.Store
	suppressor   *WriteSuppressor
	queues       []chan PersistTask
	limiter      *rate.Limiter
	retryPolicy  retry.Policy
	writeTimeout time.Duration
	drainTimeout time.Duration
	logger       log.FieldLogger
	metrics      *MetricsCollector

	dropped atomic.Uint64
	pending atomic.Int64
}

var _ service.Worker = (*Persister)(nil)

// NewPersister creates a new Persister. Run must be called to start processing tasks.
func NewPersister(st store.Store, suppressor *WriteSuppressor, logger log.FieldLogger, opts PersisterOpts) (*Persister, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if suppressor == nil {
		return nil, fmt.Errorf("write suppressor is required")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("workers should be >= 0, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultPersistWorkers
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("queue size should be >= 0, got %d", opts.QueueSize)
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = DefaultPersistQueueSize
	}
	if opts.MaxWritesPerSecond < 0 {
		return nil, fmt.Errorf("max writes per second should be >= 0, got %v", opts.MaxWritesPerSecond)
	}
	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst should be >= 0, got %d", opts.Burst)
	}
	if opts.Burst == 0 {
		opts.Burst = opts.Workers
	}
	if opts.RetryAttempts < 0 {
		return nil, fmt.Errorf("retry attempts should be >= 0, got %d", opts.RetryAttempts)
	}
	if opts.RetryInitialInterval == 0 {
		opts.RetryInitialInterval = DefaultPersistRetryInitialInterval
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultPersistWriteTimeout
	}
	if opts.DrainTimeout < 0 {
		return nil, fmt.Errorf("drain timeout should be >= 0, got %s", opts.DrainTimeout)
	}
	if opts.DrainTimeout == 0 {
		opts.DrainTimeout = DefaultPersistDrainTimeout
	}
	if opts.MetricsCollector == nil {
		opts.MetricsCollector = NewMetricsCollector("")
	}

	queueSize := opts.QueueSize / opts.Workers
	if queueSize == 0 {
		queueSize = 1
	}
	queues := make([]chan PersistTask, opts.Workers)
	for i := range queues {
		queues[i] = make(chan PersistTask, queueSize)
	}

	var limiter *rate.Limiter
	if opts.MaxWritesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxWritesPerSecond), opts.Burst)
	}

	return &Persister{
		store:        st,
		suppressor:   suppressor,
		queues:       queues,
		limiter:      limiter,
		retryPolicy:  retry.NewExponentialBackoffPolicy(opts.RetryInitialInterval, opts.RetryAttempts),
		writeTimeout: opts.WriteTimeout,
		drainTimeout: opts.DrainTimeout,
		logger:       logger,
		metrics:      opts.MetricsCollector,
	}, nil
}

// Submit enqueues the task without blocking. It returns false if the queue is full and the task was dropped.
func (p *Persister) Submit(task PersistTask) bool {
	queue := p.queues[stripeIndex(windowKey(task.Identity, task.Stage.Window), len(p.queues))]
	p.pending.Inc()
	select {
	case queue <- task:
		return true
	default:
		p.pending.Dec()
		p.dropped.Inc()
		p.metrics.incPersistTask(persistOutcomeDropped)
		p.logger.Warn("persist queue is full, task is dropped",
			log.String("identity", task.Identity), log.String("stage", task.Stage.String()))
		return false
	}
}

// Pending returns the number of submitted tasks that are not processed yet.
func (p *Persister) Pending() int64 {
	return p.pending.Load()
}

// Dropped returns the total number of tasks dropped because of the full queue.
func (p *Persister) Dropped() uint64 {
	return p.dropped.Load()
}

// Run processes tasks until ctx is canceled.
// Then the tasks already queued are written within DrainTimeout, the rest are discarded.
func (p *Persister) Run(ctx context.Context) error {
	p.logger.Infof("running persister (workers=%d)...", len(p.queues))

	drainCtx, cancelDrain := context.WithCancel(context.Background())
	defer cancelDrain()
	go func() {
		<-ctx.Done()
		time.AfterFunc(p.drainTimeout, cancelDrain)
	}()

	var wg sync.WaitGroup
	for _, queue := range p.queues {
		wg.Add(1)
		go func(queue <-chan PersistTask) {
			defer wg.Done()
			leftover := p.consume(ctx, queue)
			p.drain(drainCtx, queue, leftover)
		}(queue)
	}
	wg.Wait()

	if pending := p.pending.Load(); pending > 0 {
		p.logger.Warn("persister stopped with unprocessed tasks", log.Int64("pending", pending))
	}
	return nil
}

// consume processes tasks until ctx is done.
// A task received together with the cancellation is returned to be written by drain.
func (p *Persister) consume(ctx context.Context, queue <-chan PersistTask) *PersistTask {
	for {
		select {
		case <-ctx.Done():
			return nil
		case task := <-queue:
			if ctx.Err() != nil {
				return &task
			}
			p.process(ctx, task)
			p.pending.Dec()
		}
	}
}

// drain writes the leftover and the queued tasks until the queue is empty or ctx is done.
func (p *Persister) drain(ctx context.Context, queue <-chan PersistTask, leftover *PersistTask) {
	if leftover != nil {
		p.process(ctx, *leftover)
		p.pending.Dec()
	}
	for ctx.Err() == nil {
		select {
		case task := <-queue:
			p.process(ctx, task)
			p.pending.Dec()
		default:
			return
		}
	}
}

func (p *Persister) process(ctx context.Context, task PersistTask) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.incPersistTask(persistOutcomeFailed)
			p.logger.Error(fmt.Sprintf("panic while persisting log: %+v", r), log.String("identity", task.Identity))
		}
	}()

	decideCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	shouldPersist := p.suppressor.ShouldPersist(decideCtx, task.Identity, task.Stage, len(task.Log), task.Now)
	cancel()
	if !shouldPersist {
		p.metrics.incPersistTask(persistOutcomeSuppressed)
		return
	}

	if err := p.persist(ctx, task); err != nil {
		p.metrics.incPersistTask(persistOutcomeFailed)
		p.logger.Error("failed to persist log",
			log.String("identity", task.Identity), log.String("stage", task.Stage.String()), log.Error(err))
		return
	}
	p.metrics.incPersistTask(persistOutcomePersisted)
}

func (p *Persister) persist(ctx context.Context, task PersistTask) error {
	data, err := task.Log.Encode()
	if err != nil {
		p.metrics.incStoreError(storeOpEncodeLogs)
		return fmt.Errorf("encode log: %w", err)
	}

	if p.limiter != nil {
		if err = p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for write budget: %w", err)
		}
	}

	key := windowKey(task.Identity, task.Stage.Window)
	isRetryable := func(err error) bool { return errors.Is(err, store.ErrUnavailable) }
	err = retry.DoWithRetry(ctx, p.retryPolicy, isRetryable, nil, func(ctx context.Context) error {
		putCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
		return p.store.Put(putCtx, key, data, persistTTL(task.Stage.Window))
	})
	if err != nil {
		p.metrics.incStoreError(storeOpPut)
		return fmt.Errorf("put log %q: %w", key, err)
	}

	markerCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()
	return p.suppressor.MarkPersisted(markerCtx, task.Identity, task.Stage, task.Now)
}
