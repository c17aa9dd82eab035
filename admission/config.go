/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package admission

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/acronis/go-admitgate/config"
)

const cfgDefaultKeyPrefix = "admission"

const (
	cfgKeyStages                      = "stages"
	cfgKeyCacheTTL                    = "cache.ttl"
	cfgKeyCacheMaxEntries             = "cache.maxEntries"
	cfgKeyWriteThreshold              = "writeThreshold"
	cfgKeyBatchMarkerTTL              = "batchMarkerTTL"
	cfgKeySweepInterval               = "sweep.interval"
	cfgKeySweepPercent                = "sweep.percent"
	cfgKeyStoreReadTimeout            = "store.readTimeout"
	cfgKeyPersistWorkers              = "persist.workers"
	cfgKeyPersistQueueSize            = "persist.queueSize"
	cfgKeyPersistMaxWritesPerSecond   = "persist.maxWritesPerSecond"
	cfgKeyPersistBurst                = "persist.burst"
	cfgKeyPersistRetryAttempts        = "persist.retryAttempts"
	cfgKeyPersistRetryInitialInterval = "persist.retryInitialInterval"
	cfgKeyPersistWriteTimeout         = "persist.writeTimeout"
	cfgKeyPersistDrainTimeout         = "persist.drainTimeout"
	cfgKeyDryRun                      = "dryRun"
	cfgKeyBypassIdentities            = "bypassIdentities"
)

// StageConfig represents a single stage of the table.
type StageConfig struct {
	Limit  int                 `mapstructure:"limit" yaml:"limit" json:"limit"`
	Window config.TimeDuration `mapstructure:"window" yaml:"window" json:"window"`
}

// CacheConfig represents configuration of the process-local cache of logs.
type CacheConfig struct {
	TTL        config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	MaxEntries int                 `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
}

// SweepConfig represents configuration of cache sweeping.
type SweepConfig struct {
	Interval config.TimeDuration `mapstructure:"interval" yaml:"interval" json:"interval"`
	Percent  int                 `mapstructure:"percent" yaml:"percent" json:"percent"`
}

// StoreConfig represents configuration of reads from the durable store.
type StoreConfig struct {
	ReadTimeout config.TimeDuration `mapstructure:"readTimeout" yaml:"readTimeout" json:"readTimeout"`
}

// PersistConfig represents configuration of background persistence.
type PersistConfig struct {
	Workers              int                 `mapstructure:"workers" yaml:"workers" json:"workers"`
	QueueSize            int                 `mapstructure:"queueSize" yaml:"queueSize" json:"queueSize"`
	MaxWritesPerSecond   float64             `mapstructure:"maxWritesPerSecond" yaml:"maxWritesPerSecond" json:"maxWritesPerSecond"`
	Burst                int                 `mapstructure:"burst" yaml:"burst" json:"burst"`
	RetryAttempts        int                 `mapstructure:"retryAttempts" yaml:"retryAttempts" json:"retryAttempts"`
	RetryInitialInterval config.TimeDuration `mapstructure:"retryInitialInterval" yaml:"retryInitialInterval" json:"retryInitialInterval"`
	WriteTimeout         config.TimeDuration `mapstructure:"writeTimeout" yaml:"writeTimeout" json:"writeTimeout"`
	DrainTimeout         config.TimeDuration `mapstructure:"drainTimeout" yaml:"drainTimeout" json:"drainTimeout"`
}

// Config represents a set of configuration parameters for admission.
// Configuration can be loaded in different formats (YAML, JSON) using config.Loader, viper,
// or with json.Unmarshal/yaml.Unmarshal functions directly.
type Config struct {
	Stages         []StageConfig       `mapstructure:"stages" yaml:"stages" json:"stages"`
	Cache          CacheConfig         `mapstructure:"cache" yaml:"cache" json:"cache"`
	WriteThreshold float64             `mapstructure:"writeThreshold" yaml:"writeThreshold" json:"writeThreshold"`
	BatchMarkerTTL config.TimeDuration `mapstructure:"batchMarkerTTL" yaml:"batchMarkerTTL" json:"batchMarkerTTL"`
	Sweep          SweepConfig         `mapstructure:"sweep" yaml:"sweep" json:"sweep"`
	Store          StoreConfig         `mapstructure:"store" yaml:"store" json:"store"`
	Persist        PersistConfig       `mapstructure:"persist" yaml:"persist" json:"persist"`

	// DryRun makes the HTTP middleware only log blocked requests and pass them through.
	DryRun bool `mapstructure:"dryRun" yaml:"dryRun" json:"dryRun"`

	// BypassIdentities is a list of glob patterns. Identities matching any of them are never checked.
	BypassIdentities []string `mapstructure:"bypassIdentities" yaml:"bypassIdentities" json:"bypassIdentities"`

	keyPrefix string
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
	stages := DefaultStages()
	stageCfgs := make([]StageConfig, 0, len(stages))
	for _, s := range stages {
		stageCfgs = append(stageCfgs, StageConfig{Limit: s.Limit, Window: config.TimeDuration(s.Window)})
	}
	return &Config{
		keyPrefix:      cfgDefaultKeyPrefix,
		Stages:         stageCfgs,
		Cache:          CacheConfig{TTL: config.TimeDuration(DefaultCacheTTL), MaxEntries: DefaultCacheMaxEntries},
		WriteThreshold: DefaultWriteThreshold,
		BatchMarkerTTL: config.TimeDuration(DefaultBatchMarkerTTL),
		Sweep:          SweepConfig{Interval: config.TimeDuration(DefaultSweepInterval), Percent: DefaultSweepPercent},
		Store:          StoreConfig{ReadTimeout: config.TimeDuration(DefaultStoreReadTimeout)},
		Persist: PersistConfig{
			Workers:              DefaultPersistWorkers,
			QueueSize:            DefaultPersistQueueSize,
			RetryAttempts:        DefaultPersistRetryAttempts,
			RetryInitialInterval: config.TimeDuration(DefaultPersistRetryInitialInterval),
			WriteTimeout:         config.TimeDuration(DefaultPersistWriteTimeout),
			DrainTimeout:         config.TimeDuration(DefaultPersistDrainTimeout),
		},
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for admission in config.DataProvider.
// Implements config.Config interface.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	stages := DefaultStages()
	defaultStages := make([]map[string]interface{}, 0, len(stages))
	for _, s := range stages {
		defaultStages = append(defaultStages, map[string]interface{}{"limit": s.Limit, "window": s.Window.String()})
	}
	dp.SetDefault(cfgKeyStages, defaultStages)
	dp.SetDefault(cfgKeyCacheTTL, DefaultCacheTTL)
	dp.SetDefault(cfgKeyCacheMaxEntries, DefaultCacheMaxEntries)
	dp.SetDefault(cfgKeyWriteThreshold, DefaultWriteThreshold)
	dp.SetDefault(cfgKeyBatchMarkerTTL, DefaultBatchMarkerTTL)
	dp.SetDefault(cfgKeySweepInterval, DefaultSweepInterval)
	dp.SetDefault(cfgKeySweepPercent, DefaultSweepPercent)
	dp.SetDefault(cfgKeyStoreReadTimeout, DefaultStoreReadTimeout)
	dp.SetDefault(cfgKeyPersistWorkers, DefaultPersistWorkers)
	dp.SetDefault(cfgKeyPersistQueueSize, DefaultPersistQueueSize)
	dp.SetDefault(cfgKeyPersistMaxWritesPerSecond, 0)
	dp.SetDefault(cfgKeyPersistBurst, 0)
	dp.SetDefault(cfgKeyPersistRetryAttempts, DefaultPersistRetryAttempts)
	dp.SetDefault(cfgKeyPersistRetryInitialInterval, DefaultPersistRetryInitialInterval)
	dp.SetDefault(cfgKeyPersistWriteTimeout, DefaultPersistWriteTimeout)
	dp.SetDefault(cfgKeyPersistDrainTimeout, DefaultPersistDrainTimeout)
	dp.SetDefault(cfgKeyDryRun, false)
}

// Set sets admission configuration values from config.DataProvider.
// Implements config.Config interface.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if err = dp.UnmarshalKey(cfgKeyStages, &c.Stages, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		)
	}); err != nil {
		return err
	}
	if err = c.StagesTable().Validate(); err != nil {
		return dp.WrapKeyErr(cfgKeyStages, err)
	}

	if err = setPositiveDuration(dp, cfgKeyCacheTTL, &c.Cache.TTL); err != nil {
		return err
	}
	if c.Cache.MaxEntries, err = config.GetPositiveInt(dp, cfgKeyCacheMaxEntries); err != nil {
		return err
	}

	if c.WriteThreshold, err = dp.GetFloat64(cfgKeyWriteThreshold); err != nil {
		return err
	}
	if c.WriteThreshold <= 0 || c.WriteThreshold > 1 {
		return dp.WrapKeyErr(cfgKeyWriteThreshold, fmt.Errorf("should be in (0, 1], got %v", c.WriteThreshold))
	}
	if err = setPositiveDuration(dp, cfgKeyBatchMarkerTTL, &c.BatchMarkerTTL); err != nil {
		return err
	}

	if err = setPositiveDuration(dp, cfgKeySweepInterval, &c.Sweep.Interval); err != nil {
		return err
	}
	if c.Sweep.Percent, err = config.GetIntInRange(dp, cfgKeySweepPercent, 0, 100); err != nil {
		return err
	}

	if err = setPositiveDuration(dp, cfgKeyStoreReadTimeout, &c.Store.ReadTimeout); err != nil {
		return err
	}

	if err = c.setPersist(dp); err != nil {
		return err
	}

	if c.DryRun, err = dp.GetBool(cfgKeyDryRun); err != nil {
		return err
	}
	if c.BypassIdentities, err = dp.GetStringSlice(cfgKeyBypassIdentities); err != nil {
		return err
	}

	return nil
}

func (c *Config) setPersist(dp config.DataProvider) error {
	var err error

	if c.Persist.Workers, err = config.GetPositiveInt(dp, cfgKeyPersistWorkers); err != nil {
		return err
	}
	if c.Persist.QueueSize, err = config.GetPositiveInt(dp, cfgKeyPersistQueueSize); err != nil {
		return err
	}
	if c.Persist.MaxWritesPerSecond, err = dp.GetFloat64(cfgKeyPersistMaxWritesPerSecond); err != nil {
		return err
	}
	if c.Persist.MaxWritesPerSecond < 0 {
		return dp.WrapKeyErr(cfgKeyPersistMaxWritesPerSecond,
			fmt.Errorf("should be >= 0, got %v", c.Persist.MaxWritesPerSecond))
	}
	if c.Persist.Burst, err = config.GetNonNegativeInt(dp, cfgKeyPersistBurst); err != nil {
		return err
	}
	if c.Persist.RetryAttempts, err = config.GetNonNegativeInt(dp, cfgKeyPersistRetryAttempts); err != nil {
		return err
	}
	if err = setPositiveDuration(dp, cfgKeyPersistRetryInitialInterval, &c.Persist.RetryInitialInterval); err != nil {
		return err
	}
	if err = setPositiveDuration(dp, cfgKeyPersistWriteTimeout, &c.Persist.WriteTimeout); err != nil {
		return err
	}
	return setPositiveDuration(dp, cfgKeyPersistDrainTimeout, &c.Persist.DrainTimeout)
}

// StagesTable returns the stage table.
func (c *Config) StagesTable() Stages {
	stages := make(Stages, 0, len(c.Stages))
	for _, s := range c.Stages {
		stages = append(stages, Stage{Limit: s.Limit, Window: time.Duration(s.Window)})
	}
	return stages
}

func setPositiveDuration(dp config.DataProvider, key string, dst *config.TimeDuration) error {
	dur, err := config.GetPositiveDuration(dp, key)
	if err != nil {
		return err
	}
	*dst = config.TimeDuration(dur)
	return nil
}
