/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-admitgate/config"
)

type gateConfig struct {
	Log *Config `mapstructure:"log" json:"log" yaml:"log"`
}

const testLogConfigYAML = `
log:
  level: WARN
  format: text
  output: file
  nocolor: true
  file:
    path: /var/log/admitgate-{{pid}}.log
    rotation:
      compress: true
      maxSize: 100M
      maxBackups: 5
      maxAgeDays: 7
  addCaller: true
  error:
    noVerbose: true
`

func expectedTestLogConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Level = LevelWarn
	cfg.Format = FormatText
	cfg.Output = OutputFile
	cfg.NoColor = true
	cfg.File.Path = "/var/log/admitgate-{{pid}}.log"
	cfg.File.Rotation = FileRotationConfig{Compress: true, MaxSize: 100 * 1024 * 1024, MaxBackups: 5, MaxAgeDays: 7}
	cfg.AddCaller = true
	cfg.Error.NoVerbose = true
	return cfg
}

func TestConfig_Loader(t *testing.T) {
	cfg := NewConfig()
	err := config.NewLoader(config.NewViperAdapter()).LoadFromReader(
		bytes.NewBufferString(testLogConfigYAML), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, expectedTestLogConfig(), cfg)
}

func TestConfig_Decoders(t *testing.T) {
	// The level is decoded as is without the loader.
	yamlData := bytes.ReplaceAll([]byte(testLogConfigYAML), []byte("WARN"), []byte("warn"))

	t.Run("viper", func(t *testing.T) {
		got := gateConfig{Log: NewDefaultConfig()}
		vpr := viper.New()
		vpr.SetConfigType("yaml")
		require.NoError(t, vpr.ReadConfig(bytes.NewReader(yamlData)))
		require.NoError(t, vpr.Unmarshal(&got, func(c *mapstructure.DecoderConfig) {
			c.DecodeHook = mapstructure.TextUnmarshallerHookFunc()
		}))
		require.Equal(t, expectedTestLogConfig(), got.Log)
	})

	t.Run("yaml", func(t *testing.T) {
		got := gateConfig{Log: NewDefaultConfig()}
		require.NoError(t, yaml.Unmarshal(yamlData, &got))
		require.Equal(t, expectedTestLogConfig(), got.Log)
	})

	t.Run("json", func(t *testing.T) {
		got := gateConfig{Log: NewDefaultConfig()}
		require.NoError(t, json.Unmarshal([]byte(`{"log":{"level":"debug","file":{"rotation":{"maxSize":"2Mi"}}}}`), &got))
		want := NewDefaultConfig()
		want.Level = LevelDebug
		want.File.Rotation.MaxSize = 2 * 1024 * 1024
		require.Equal(t, want, got.Log)
	})
}

func TestConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, config.NewDefaultLoader("").Load(cfg))
	require.Equal(t, NewDefaultConfig(), cfg)

	cfg = NewDefaultConfig()
	require.NoError(t, yaml.Unmarshal([]byte(""), cfg))
	require.Equal(t, NewDefaultConfig(), cfg)
}

func TestConfig_KeyPrefix(t *testing.T) {
	cfg := NewConfigWithKeyPrefix("accessLog")
	err := config.NewDefaultLoader("").LoadFromReader(
		bytes.NewBufferString("accessLog:\n  level: debug\nlog:\n  level: error\n"), config.DataTypeYAML, cfg)
	require.NoError(t, err)
	require.Equal(t, LevelDebug, cfg.Level)
	require.Equal(t, "accessLog", cfg.KeyPrefix())
	require.Equal(t, "log", (&Config{}).KeyPrefix())
}

func TestConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		yamlData string
		wantErr  string
	}{
		{"log:\n  level: trace", `log.level: unknown value "trace", should be one of [error warn info debug]`},
		{"log:\n  format: xml", `log.format: unknown value "xml", should be one of [json text]`},
		{"log:\n  output: syslog", `log.output: unknown value "syslog", should be one of [stdout stderr file]`},
		{"log:\n  output: file", `log.file.path: cannot be empty when "file" output is used`},
		{"log:\n  file:\n    rotation:\n      maxSize: 512K", `log.file.rotation.maxSize: should be >= 1M`},
		{"log:\n  file:\n    rotation:\n      maxBackups: 0", `log.file.rotation.maxBackups: should be >= 1`},
		{"log:\n  file:\n    rotation:\n      maxAgeDays: -1", `log.file.rotation.maxAgeDays: should be >= 0, got -1`},
	}
	for _, tt := range tests {
		t.Run(tt.wantErr, func(t *testing.T) {
			err := config.NewDefaultLoader("").LoadFromReader(
				bytes.NewBufferString(tt.yamlData), config.DataTypeYAML, NewConfig())
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
