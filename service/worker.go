/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/acronis/go-admitgate/log"
)

// ErrPeriodicWorkerStop may be returned by a worker to end the PeriodicWorker loop without an error.
var ErrPeriodicWorkerStop = errors.New("stop periodic worker error")

// Worker performs some (usually long-running) work until ctx is done.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// PeriodicWorkerOpts contains optional parameters for PeriodicWorker.
type PeriodicWorkerOpts struct {
	// Name is added to log messages, e.g. "sweeper".
	Name string
	// InitialDelay is a pause before the first run.
	InitialDelay time.Duration
	// IntervalDelayFunc overrides the interval depending on the last run result.
	IntervalDelayFunc func(worker Worker, err error) time.Duration
}

// PeriodicWorker runs the underlying worker again and again with a delay between the runs.
// Errors of a single run are logged and don't stop the loop.
type PeriodicWorker struct {
	worker   Worker
	logger   log.FieldLogger
	interval time.Duration
	opts     PeriodicWorkerOpts
}

// NewPeriodicWorker creates a new PeriodicWorker with a constant interval.
func NewPeriodicWorker(worker Worker, interval time.Duration, logger log.FieldLogger) *PeriodicWorker {
	return NewPeriodicWorkerWithOpts(worker, interval, logger, PeriodicWorkerOpts{})
}

// NewPeriodicWorkerWithOpts is a more configurable version of NewPeriodicWorker.
func NewPeriodicWorkerWithOpts(
	worker Worker, interval time.Duration, logger log.FieldLogger, opts PeriodicWorkerOpts,
) *PeriodicWorker {
	if opts.Name != "" {
		logger = logger.With(log.String("worker", opts.Name))
	}
	return &PeriodicWorker{worker: worker, logger: logger, interval: interval, opts: opts}
}

// Run blocks until ctx is done or the worker returns ErrPeriodicWorkerStop.
// A panic in the worker is logged with the stack and re-raised.
func (pw *PeriodicWorker) Run(ctx context.Context) error {
	defer func() {
		if p := recover(); p != nil {
			stack := make([]byte, 8192)
			stack = stack[:runtime.Stack(stack, false)]
			pw.logger.Error(fmt.Sprintf("panic: %+v", p), log.Bytes("stack", stack))
			panic(p)
		}
	}()

	pw.logger.Infof("running periodic worker (initialDelay=%s, interval=%s)", pw.opts.InitialDelay, pw.interval)

	delay := pw.opts.InitialDelay
	for {
		if !sleepCtx(ctx, delay) {
			pw.logger.Info("periodic worker stopped")
			return nil
		}
		err := pw.worker.Run(ctx)
		if errors.Is(err, ErrPeriodicWorkerStop) {
			pw.logger.Info("periodic worker stopped by the worker")
			return nil
		}
		if err != nil {
			pw.logger.Error("periodic worker iteration failed", log.Error(err))
		}
		delay = pw.interval
		if pw.opts.IntervalDelayFunc != nil {
			delay = pw.opts.IntervalDelayFunc(pw.worker, err)
		}
	}
}

// sleepCtx returns false if ctx is done before d elapses.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
