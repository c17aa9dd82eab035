/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/log/logtest"
)

func runAsync(ctx context.Context, w Worker) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return done
}

func TestPeriodicWorker_StopByContext(t *testing.T) {
	var runs atomic.Int32
	logRecorder := logtest.NewRecorder()
	pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
		runs.Inc()
		return nil
	}), 20*time.Millisecond, logRecorder, PeriodicWorkerOpts{Name: "sweeper"})

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, pw)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	entry, found := logRecorder.FindEntry("periodic worker stopped")
	require.True(t, found)
	field, found := entry.FindField("worker")
	require.True(t, found)
	require.Equal(t, "sweeper", string(field.Bytes))
}

func TestPeriodicWorker_StopByWorker(t *testing.T) {
	var runs atomic.Int32
	pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
		if runs.Inc() == 2 {
			return ErrPeriodicWorkerStop
		}
		return nil
	}), time.Millisecond, log.NewDisabledLogger())

	require.NoError(t, <-runAsync(context.Background(), pw))
	require.Equal(t, int32(2), runs.Load())
}

func TestPeriodicWorker_ErrorsDontStopLoop(t *testing.T) {
	var runs atomic.Int32
	var delays []time.Duration
	logRecorder := logtest.NewRecorder()
	pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
		switch runs.Inc() {
		case 1:
			return errors.New("store is unavailable")
		case 3:
			return ErrPeriodicWorkerStop
		}
		return nil
	}), time.Millisecond, logRecorder, PeriodicWorkerOpts{
		IntervalDelayFunc: func(_ Worker, err error) time.Duration {
			d := time.Millisecond
			if err != nil {
				d = 5 * time.Millisecond
			}
			delays = append(delays, d)
			return d
		},
	})

	require.NoError(t, <-runAsync(context.Background(), pw))
	require.Equal(t, int32(3), runs.Load())
	require.Equal(t, []time.Duration{5 * time.Millisecond, time.Millisecond}, delays)
	_, found := logRecorder.FindEntry("periodic worker iteration failed")
	require.True(t, found)
}

func TestPeriodicWorker_InitialDelay(t *testing.T) {
	var runs atomic.Int32
	pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
		runs.Inc()
		return nil
	}), time.Millisecond, log.NewDisabledLogger(), PeriodicWorkerOpts{InitialDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, <-runAsync(ctx, pw))
	require.Zero(t, runs.Load())
}

func TestPeriodicWorker_PanicIsRethrown(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
		panic("boom")
	}), time.Millisecond, logRecorder)

	require.PanicsWithValue(t, "boom", func() { _ = pw.Run(context.Background()) })
	_, found := logRecorder.FindEntry("panic: boom")
	require.True(t, found)
}
