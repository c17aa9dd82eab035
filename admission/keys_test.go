/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowKey(t *testing.T) {
	require.Equal(t, "rate_limit:10.0.0.1:60000", windowKey("10.0.0.1", time.Minute))
	require.Equal(t, "rate_limit:A:3600000", windowKey("A", time.Hour))
}

func TestBatchMarkerKey(t *testing.T) {
	now := time.UnixMilli(1741608059999) // 2025-03-10 12:00:59.999 UTC
	require.Equal(t, "batch:A:29026800:60000", batchMarkerKey("A", time.Minute, now))
	require.Equal(t, "batch:A:29026801:300000", batchMarkerKey("A", 5*time.Minute, now.Add(time.Millisecond)))
}

func TestPersistTTL(t *testing.T) {
	tests := []struct {
		window time.Duration
		want   time.Duration
	}{
		{time.Minute, time.Minute},
		{1500 * time.Millisecond, 2 * time.Second},
		{time.Millisecond, time.Second},
		{time.Hour, time.Hour},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, persistTTL(tt.window), "window %s", tt.window)
	}
}

func TestStripeIndex(t *testing.T) {
	for _, key := range []string{"", "rate_limit:A:60000", "rate_limit:B:60000"} {
		idx := stripeIndex(key, 16)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 16)
		require.Equal(t, idx, stripeIndex(key, 16))
	}
}
