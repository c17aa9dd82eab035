/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-admitgate/log/logtest"
)

func TestService_StopBySignal(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	var running atomic.Int32
	unit := newMockUnit(&running)
	svc := New(logRecorder, unit)

	done := make(chan error, 1)
	go func() { done <- svc.Start() }()
	require.Eventually(t, func() bool { return running.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), unit.registered.Load())

	svc.Signals <- os.Interrupt

	require.NoError(t, <-done)
	require.Equal(t, int32(1), unit.gracefulStopCalls.Load())
	require.Equal(t, int32(1), unit.unregistered.Load())
	_, found := logRecorder.FindEntry("service got signal")
	require.True(t, found)
}

func TestService_StopByContext(t *testing.T) {
	var running atomic.Int32
	unit := newMockUnit(&running)
	unit.stopErr = errors.New("shutdown timeout")
	svc := New(logtest.NewRecorder(), unit)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.StartContext(ctx) }()
	require.Eventually(t, func() bool { return running.Load() == 1 }, 3*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	require.ErrorIs(t, err, unit.stopErr)
	require.ErrorContains(t, err, "stop service gracefully")
}

func TestService_FatalError(t *testing.T) {
	var running atomic.Int32
	unit := newMockUnit(&running)
	unit.startErr = errors.New("listen failed")
	logRecorder := logtest.NewRecorder()

	err := New(logRecorder, unit).Start()
	require.ErrorIs(t, err, unit.startErr)
	_, found := logRecorder.FindEntry("service fatal error")
	require.True(t, found)
	require.Zero(t, unit.stopCalls.Load())
}
