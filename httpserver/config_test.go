/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpserver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-admitgate/config"
)

func loadServerConfig(t *testing.T, cfg *Config, dataType config.DataType, data string) error {
	t.Helper()
	return config.NewDefaultLoader("").LoadFromReader(strings.NewReader(data), dataType, cfg)
}

func TestConfig_Load(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, loadServerConfig(t, cfg, config.DataTypeYAML, ""))
		require.Equal(t, NewDefaultConfig(), cfg)
		require.Equal(t, []string{"/metrics", "/healthz"}, cfg.Log.ExcludedEndpoints)
	})

	t.Run("yaml", func(t *testing.T) {
		cfg := NewConfig()
		require.NoError(t, loadServerConfig(t, cfg, config.DataTypeYAML, `
server:
  address: "127.0.0.1:8088"
  timeouts:
    write: 2m
    readHeader: 3s
    shutdown: 20s
  log:
    excludedEndpoints: ["/healthz"]
`))
		want := NewDefaultConfig()
		want.Address = "127.0.0.1:8088"
		want.Timeouts.Write = config.TimeDuration(2 * time.Minute)
		want.Timeouts.ReadHeader = config.TimeDuration(3 * time.Second)
		want.Timeouts.Shutdown = config.TimeDuration(20 * time.Second)
		want.Log.ExcludedEndpoints = []string{"/healthz"}
		require.Equal(t, want, cfg)
	})

	t.Run("json with custom key prefix", func(t *testing.T) {
		cfg := NewConfigWithKeyPrefix("gate.public")
		require.NoError(t, loadServerConfig(t, cfg, config.DataTypeJSON,
			`{"gate": {"public": {"address": ":9090", "log": {"excludedEndpoints": "/metrics,/debug"}}}}`))
		require.Equal(t, ":9090", cfg.Address)
		require.Equal(t, []string{"/metrics", "/debug"}, cfg.Log.ExcludedEndpoints)
		require.Equal(t, config.TimeDuration(defaultServerTimeoutsShutdown), cfg.Timeouts.Shutdown)
	})
}

func TestConfig_LoadErrors(t *testing.T) {
	for name, tc := range map[string]struct{ data, wantErr string }{
		"empty address": {
			data:    "server:\n  address: \"\"\n",
			wantErr: "server.address: cannot be empty",
		},
		"negative timeout": {
			data:    "server:\n  timeouts:\n    idle: -1s\n",
			wantErr: "server.timeouts.idle: should be >= 0, got -1s",
		},
	} {
		t.Run(name, func(t *testing.T) {
			require.EqualError(t, loadServerConfig(t, NewConfig(), config.DataTypeYAML, tc.data), tc.wantErr)
		})
	}
}

func TestConfig_YAMLUnmarshal(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, yaml.Unmarshal([]byte("address: \":9999\"\ntimeouts:\n  idle: 2m\n"), cfg))
	require.Equal(t, ":9999", cfg.Address)
	require.Equal(t, config.TimeDuration(2*time.Minute), cfg.Timeouts.Idle)
	require.Equal(t, config.TimeDuration(defaultServerTimeoutsWrite), cfg.Timeouts.Write)
}
