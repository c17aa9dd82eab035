/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"time"
)

// ErrWorkerUnitStopTimeoutExceeded is returned by a graceful Stop when the worker doesn't finish in time.
var ErrWorkerUnitStopTimeoutExceeded = errors.New("worker unit stop timeout exceeded")

// WorkerUnit runs a Worker as a Unit. Start blocks until the worker's Run returns;
// Stop cancels the context passed to Run.
type WorkerUnit struct {
	worker  Worker
	opts    WorkerUnitOpts
	ctx     context.Context
	cancel  context.CancelFunc
	runDone chan struct{}
}

// WorkerUnitOpts contains optional parameters for WorkerUnit.
type WorkerUnitOpts struct {
	MetricsRegisterer MetricsRegisterer
	// GracefulStopTimeout limits how long a graceful Stop waits for Run to return. Zero means no limit.
	GracefulStopTimeout time.Duration
}

// NewWorkerUnit creates a new instance of WorkerUnit.
func NewWorkerUnit(worker Worker) *WorkerUnit {
	return NewWorkerUnitWithOpts(worker, WorkerUnitOpts{})
}

// NewWorkerUnitWithOpts is a more configurable version of NewWorkerUnit.
func NewWorkerUnitWithOpts(worker Worker, opts WorkerUnitOpts) *WorkerUnit {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerUnit{worker: worker, opts: opts, ctx: ctx, cancel: cancel, runDone: make(chan struct{})}
}

func (u *WorkerUnit) Start(fatalErr chan<- error) {
	defer close(u.runDone)
	if err := u.worker.Run(u.ctx); err != nil {
		fatalErr <- err
	}
}

func (u *WorkerUnit) Stop(gracefully bool) error {
	u.cancel()
	if !gracefully {
		return nil
	}
	var timeout <-chan time.Time
	if u.opts.GracefulStopTimeout > 0 {
		timer := time.NewTimer(u.opts.GracefulStopTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-u.runDone:
		return nil
	case <-timeout:
		return ErrWorkerUnitStopTimeoutExceeded
	}
}

func (u *WorkerUnit) MustRegisterMetrics() {
	if u.opts.MetricsRegisterer != nil {
		u.opts.MetricsRegisterer.MustRegisterMetrics()
	}
}

func (u *WorkerUnit) UnregisterMetrics() {
	if u.opts.MetricsRegisterer != nil {
		u.opts.MetricsRegisterer.UnregisterMetrics()
	}
}
