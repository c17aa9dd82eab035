/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package redisstore

import (
	"fmt"
	"time"

	"github.com/acronis/go-admitgate/config"
)

const cfgDefaultKeyPrefix = "redis"

const (
	cfgKeyEnabled                = "enabled"
	cfgKeyAddress                = "address"
	cfgKeyPassword               = "password"
	cfgKeyDB                     = "db"
	cfgKeyPoolSize               = "poolSize"
	cfgKeyDNSServers             = "dnsServers"
	cfgKeyTimeoutsDial           = "timeouts.dial"
	cfgKeyTimeoutsRead           = "timeouts.read"
	cfgKeyTimeoutsWrite          = "timeouts.write"
	cfgKeyPingRetryAttempts      = "ping.retryAttempts"
	cfgKeyPingRetryInitialInterv = "ping.retryInitialInterval"
)

const (
	defaultAddress                = "localhost:6379"
	defaultTimeoutsDial           = time.Second * 5
	defaultTimeoutsRead           = time.Second
	defaultTimeoutsWrite          = time.Second
	defaultPingRetryAttempts      = 3
	defaultPingRetryInitialInterv = time.Millisecond * 200
)

// Config represents a set of configuration parameters for the Redis-backed store.
type Config struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Address  string         `mapstructure:"address" yaml:"address" json:"address"`
	Password string         `mapstructure:"password" yaml:"password" json:"password"`
	DB       int            `mapstructure:"db" yaml:"db" json:"db"`
	PoolSize int            `mapstructure:"poolSize" yaml:"poolSize" json:"poolSize"`
	// DNSServers ("host:port") are used round-robin to resolve Address instead of the system resolver.
	DNSServers []string       `mapstructure:"dnsServers" yaml:"dnsServers" json:"dnsServers"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Ping     PingConfig     `mapstructure:"ping" yaml:"ping" json:"ping"`

	keyPrefix string
}

// TimeoutsConfig represents timeouts of the Redis client.
type TimeoutsConfig struct {
	Dial  config.TimeDuration `mapstructure:"dial" yaml:"dial" json:"dial"`
	Read  config.TimeDuration `mapstructure:"read" yaml:"read" json:"read"`
	Write config.TimeDuration `mapstructure:"write" yaml:"write" json:"write"`
}

// PingConfig configures how the connection is checked at startup.
type PingConfig struct {
	RetryAttempts        int                 `mapstructure:"retryAttempts" yaml:"retryAttempts" json:"retryAttempts"`
	RetryInitialInterval config.TimeDuration `mapstructure:"retryInitialInterval" yaml:"retryInitialInterval" json:"retryInitialInterval"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewConfig creates a new instance of the Config.
func NewConfig() *Config {
	return NewConfigWithKeyPrefix(cfgDefaultKeyPrefix)
}

// NewConfigWithKeyPrefix creates a new instance of the Config.
// Allows specifying key prefix which will be used for parsing configuration parameters.
func NewConfigWithKeyPrefix(keyPrefix string) *Config {
	return &Config{keyPrefix: keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		keyPrefix: cfgDefaultKeyPrefix,
		Address:   defaultAddress,
		Timeouts: TimeoutsConfig{
			Dial:  config.TimeDuration(defaultTimeoutsDial),
			Read:  config.TimeDuration(defaultTimeoutsRead),
			Write: config.TimeDuration(defaultTimeoutsWrite),
		},
		Ping: PingConfig{
			RetryAttempts:        defaultPingRetryAttempts,
			RetryInitialInterval: config.TimeDuration(defaultPingRetryInitialInterv),
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for the Redis store in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyEnabled, false)
	dp.SetDefault(cfgKeyAddress, defaultAddress)
	dp.SetDefault(cfgKeyDB, 0)
	dp.SetDefault(cfgKeyPoolSize, 0)
	dp.SetDefault(cfgKeyDNSServers, []string{})
	dp.SetDefault(cfgKeyTimeoutsDial, defaultTimeoutsDial)
	dp.SetDefault(cfgKeyTimeoutsRead, defaultTimeoutsRead)
	dp.SetDefault(cfgKeyTimeoutsWrite, defaultTimeoutsWrite)
	dp.SetDefault(cfgKeyPingRetryAttempts, defaultPingRetryAttempts)
	dp.SetDefault(cfgKeyPingRetryInitialInterv, defaultPingRetryInitialInterv)
}

// Set sets Redis store configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if c.Enabled, err = dp.GetBool(cfgKeyEnabled); err != nil {
		return err
	}
	if c.Address, err = dp.GetString(cfgKeyAddress); err != nil {
		return err
	}
	if c.Enabled && c.Address == "" {
		return dp.WrapKeyErr(cfgKeyAddress, fmt.Errorf("cannot be empty when redis is enabled"))
	}
	if c.Password, err = dp.GetString(cfgKeyPassword); err != nil {
		return err
	}
	if c.DB, err = config.GetNonNegativeInt(dp, cfgKeyDB); err != nil {
		return err
	}
	if c.PoolSize, err = config.GetNonNegativeInt(dp, cfgKeyPoolSize); err != nil {
		return err
	}

	if c.DNSServers, err = dp.GetStringSlice(cfgKeyDNSServers); err != nil {
		return err
	}
	if len(c.DNSServers) == 0 {
		c.DNSServers = nil
	}

	durKeys := []struct {
		key string
		dst *config.TimeDuration
	}{
		{cfgKeyTimeoutsDial, &c.Timeouts.Dial},
		{cfgKeyTimeoutsRead, &c.Timeouts.Read},
		{cfgKeyTimeoutsWrite, &c.Timeouts.Write},
		{cfgKeyPingRetryInitialInterv, &c.Ping.RetryInitialInterval},
	}
	for _, dk := range durKeys {
		var dur time.Duration
		if dur, err = config.GetNonNegativeDuration(dp, dk.key); err != nil {
			return err
		}
		*dk.dst = config.TimeDuration(dur)
	}

	if c.Ping.RetryAttempts, err = config.GetNonNegativeInt(dp, cfgKeyPingRetryAttempts); err != nil {
		return err
	}

	return nil
}
