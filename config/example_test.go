/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path"
	"time"
)

const (
	cfgKeyCacheTTL        = "admission.cache.ttl"
	cfgKeyCacheMaxEntries = "admission.cache.maxEntries"
	cfgKeyWriteThreshold  = "admission.writeThreshold"
	cfgKeyStoreAddress    = "store.address"
	cfgKeyStoreMode       = "store.mode"
)

type storeConfig struct {
	Address string
	Mode    string
}

func (c *storeConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault(cfgKeyStoreAddress, "localhost:6379")
	dp.SetDefault(cfgKeyStoreMode, "memory")
}

func (c *storeConfig) Set(dp DataProvider) error {
	var err error
	if c.Address, err = dp.GetString(cfgKeyStoreAddress); err != nil {
		return err
	}
	if c.Mode, err = dp.GetStringFromSet(cfgKeyStoreMode, []string{"memory", "redis"}, true); err != nil {
		return err
	}
	return nil
}

type cacheConfig struct {
	TTL            time.Duration
	MaxEntries     int
	WriteThreshold float64
}

func (c *cacheConfig) SetProviderDefaults(dp DataProvider) {
	dp.SetDefault(cfgKeyCacheTTL, 30*time.Second)
	dp.SetDefault(cfgKeyCacheMaxEntries, 100000)
	dp.SetDefault(cfgKeyWriteThreshold, 0.8)
}

func (c *cacheConfig) Set(dp DataProvider) error {
	var err error
	if c.TTL, err = GetPositiveDuration(dp, cfgKeyCacheTTL); err != nil {
		return err
	}
	if c.MaxEntries, err = GetPositiveInt(dp, cfgKeyCacheMaxEntries); err != nil {
		return err
	}
	if c.WriteThreshold, err = dp.GetFloat64(cfgKeyWriteThreshold); err != nil {
		return err
	}
	return nil
}

func Example() {
	const envVarsPrefix = "admitgate_example"

	cfgData := bytes.NewBuffer([]byte(`
admission:
  cache:
    ttl: 15s
  writeThreshold: 0.5
store:
  mode: redis
`))

	// Override some configuration values using environment variables.
	if err := os.Setenv("ADMITGATE_EXAMPLE_STORE_ADDRESS", "redis.internal:6379"); err != nil {
		log.Fatal(err)
	}
	if err := os.Setenv("ADMITGATE_EXAMPLE_ADMISSION_CACHE_MAXENTRIES", "500"); err != nil {
		log.Fatal(err)
	}

	storeCfg := storeConfig{}
	cacheCfg := cacheConfig{}

	// Load configuration values and set them in storeCfg and cacheCfg.
	cfgLoader := NewDefaultLoader(envVarsPrefix)
	err := cfgLoader.LoadFromReader(cfgData, DataTypeYAML, &storeCfg, &cacheCfg) // Use cfgLoader.LoadFromFile() to read from file.
	if err != nil {
		log.Fatal(err)
	}

	// The same configuration may be loaded from a file, environment variables still take precedence.
	fname := path.Join(os.TempDir(), "admitgate-example.yaml")
	if err = os.WriteFile(fname, []byte("store:\n  mode: memory\n"), 0o600); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = os.Remove(fname) }()
	configFromFile := storeConfig{}
	if err = NewDefaultLoader(envVarsPrefix).LoadFromFile(fname, DataTypeYAML, &configFromFile); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s\n", storeCfg.Mode, storeCfg.Address)
	fmt.Printf("%s %d %.1f\n", cacheCfg.TTL, cacheCfg.MaxEntries, cacheCfg.WriteThreshold)
	fmt.Printf("%s %s\n", configFromFile.Mode, configFromFile.Address)

	// Output:
	// redis redis.internal:6379
	// 15s 500 0.5
	// memory redis.internal:6379
}
