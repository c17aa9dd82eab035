/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type mockMetricsRegisterer struct {
	registered   atomic.Int32
	unregistered atomic.Int32
}

func (m *mockMetricsRegisterer) MustRegisterMetrics() { m.registered.Inc() }

func (m *mockMetricsRegisterer) UnregisterMetrics() { m.unregistered.Inc() }

// mockUnit blocks in Start until Stop is called, like an HTTP server does.
type mockUnit struct {
	mockMetricsRegisterer
	running  *atomic.Int32
	startErr error
	stopErr  error
	stopped  chan struct{}

	stopCalls         atomic.Int32
	gracefulStopCalls atomic.Int32
}

func newMockUnit(running *atomic.Int32) *mockUnit {
	return &mockUnit{running: running, stopped: make(chan struct{})}
}

func (u *mockUnit) Start(fatalErr chan<- error) {
	if u.startErr != nil {
		fatalErr <- u.startErr
		return
	}
	u.running.Inc()
	defer u.running.Dec()
	<-u.stopped
}

func (u *mockUnit) Stop(gracefully bool) error {
	if u.stopCalls.Inc() == 1 {
		close(u.stopped)
	}
	if gracefully {
		u.gracefulStopCalls.Inc()
	}
	return u.stopErr
}

func makeMockUnits(n int, running *atomic.Int32) ([]*mockUnit, *CompositeUnit) {
	mocks := make([]*mockUnit, n)
	units := make([]Unit, n)
	for i := range mocks {
		mocks[i] = newMockUnit(running)
		units[i] = mocks[i]
	}
	return mocks, NewCompositeUnit(units...)
}

func TestCompositeUnit_StartAndStop(t *testing.T) {
	var running atomic.Int32
	mocks, cu := makeMockUnits(10, &running)
	for i := 0; i < 4; i++ {
		mocks[i].stopErr = fmt.Errorf("unit #%d: flush failed", i)
	}

	fatalErr, startDone := startUnitAsync(cu)
	require.Eventually(t, func() bool { return running.Load() == 10 }, 3*time.Second, 5*time.Millisecond)

	err := cu.Stop(true)
	var cuErr *CompositeUnitError
	require.ErrorAs(t, err, &cuErr)
	require.Len(t, cuErr.UnitErrors, 4)
	require.Contains(t, err.Error(), "unit #0: flush failed; ")

	select {
	case <-startDone:
	case <-time.After(3 * time.Second):
		require.Fail(t, "Start must return after all units are stopped")
	}
	require.Empty(t, fatalErr)
	require.Zero(t, running.Load())
	for _, m := range mocks {
		require.Equal(t, int32(1), m.gracefulStopCalls.Load())
	}
}

func TestCompositeUnit_StartFailure(t *testing.T) {
	var running atomic.Int32
	mocks, cu := makeMockUnits(3, &running)
	listenErr := errors.New("listen tcp :8080: bind: address already in use")
	mocks[1].startErr = listenErr

	fatalErr, startDone := startUnitAsync(cu)
	<-startDone

	err := <-fatalErr
	require.ErrorIs(t, err, listenErr)
	for _, m := range mocks {
		require.Equal(t, int32(1), m.stopCalls.Load(), "every unit is stopped after a failure")
		require.Zero(t, m.gracefulStopCalls.Load())
	}
	require.Eventually(t, func() bool { return running.Load() == 0 }, 3*time.Second, 5*time.Millisecond)
}

func TestCompositeUnit_Metrics(t *testing.T) {
	var running atomic.Int32
	mocks, cu := makeMockUnits(2, &running)
	cu.Units = append(cu.Units, NewWorkerUnit(nil))
	cu.MustRegisterMetrics()
	cu.UnregisterMetrics()
	for _, m := range mocks {
		require.Equal(t, int32(1), m.registered.Load())
		require.Equal(t, int32(1), m.unregistered.Load())
	}
}
