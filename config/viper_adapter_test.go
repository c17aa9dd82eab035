/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestViperAdapter(t *testing.T, data string) *ViperAdapter {
	t.Helper()
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(data), DataTypeYAML))
	return va
}

func TestViperAdapter_UseEnvVars(t *testing.T) {
	t.Setenv("ADMITGATE_ADMISSION_CACHE_TTL", "90s")
	va := newTestViperAdapter(t, testGateConfigYAML)
	va.UseEnvVars("admitgate")

	dur, err := va.GetDuration("admission.cache.ttl")
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, dur)

	n, err := va.GetInt("admission.cache.maxEntries")
	require.NoError(t, err)
	require.Equal(t, 2000, n)
}

func TestViperAdapter_Getters(t *testing.T) {
	va := newTestViperAdapter(t, `
threshold: 0.75
badThreshold: high
dryRun: "true"
window: 1m
badWindow: forever
mode: Redis
`)

	f, err := va.GetFloat64("threshold")
	require.NoError(t, err)
	require.Equal(t, 0.75, f)
	_, err = va.GetFloat64("badThreshold")
	require.ErrorContains(t, err, "badThreshold")

	b, err := va.GetBool("dryRun")
	require.NoError(t, err)
	require.True(t, b)

	dur, err := va.GetDuration("window")
	require.NoError(t, err)
	require.Equal(t, time.Minute, dur)
	dur, err = va.GetDuration("missing")
	require.NoError(t, err)
	require.Zero(t, dur)
	_, err = va.GetDuration("badWindow")
	require.Error(t, err)

	mode, err := va.GetStringFromSet("mode", []string{"memory", "redis"}, true)
	require.NoError(t, err)
	require.Equal(t, "Redis", mode)
	_, err = va.GetStringFromSet("mode", []string{"memory", "redis"}, false)
	require.EqualError(t, err, `mode: unknown value "Redis", should be one of [memory redis]`)
}

func TestViperAdapter_GetStringSlice(t *testing.T) {
	va := newTestViperAdapter(t, `
bypass:
  - "10.0.*"
  - "*.internal"
bypassCSV: "127.0.0.1, ::1"
empty: ""
`)
	tests := []struct {
		key  string
		want []string
	}{
		{key: "bypass", want: []string{"10.0.*", "*.internal"}},
		{key: "bypassCSV", want: []string{"127.0.0.1", "::1"}},
		{key: "empty", want: nil},
		{key: "missing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := va.GetStringSlice(tt.key)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestViperAdapter_GetBytesCount(t *testing.T) {
	va := newTestViperAdapter(t, `
human: 64M
k8s: 1Gi
plain: 4096
negative: -1
invalid: lots
`)
	tests := []struct {
		key     string
		want    BytesCount
		wantErr bool
	}{
		{key: "human", want: 64 * 1024 * 1024},
		{key: "k8s", want: 1024 * 1024 * 1024},
		{key: "plain", want: 4096},
		{key: "missing", want: 0},
		{key: "negative", wantErr: true},
		{key: "invalid", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := va.GetBytesCount(tt.key)
			if tt.wantErr {
				require.ErrorContains(t, err, tt.key)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
