/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package config loads component configurations (server, logger, admission, store) from
// YAML/JSON data and ADMITGATE_* environment variables on top of their defaults.
package config

import "reflect"

// Config is a common interface for configuration objects that may be used by Loader.
type Config interface {
	SetProviderDefaults(dp DataProvider)
	Set(dp DataProvider) error
}

// KeyPrefixProvider is an interface for providing key prefix that will be used for configuration parameters.
type KeyPrefixProvider interface {
	KeyPrefix() string
}

// providerFor returns dp scoped to the key prefix of cfg, if it has one.
func providerFor(cfg Config, dp DataProvider) DataProvider {
	if kp, ok := cfg.(KeyPrefixProvider); ok && kp.KeyPrefix() != "" {
		return NewKeyPrefixedDataProvider(dp, kp.KeyPrefix())
	}
	return dp
}

// CallSetProviderDefaultsForFields calls SetProviderDefaults for every exported non-nil field
// of the struct pointed by obj that implements Config.
func CallSetProviderDefaultsForFields(obj interface{}, dp DataProvider) {
	for _, cfg := range configFields(obj) {
		cfg.SetProviderDefaults(providerFor(cfg, dp))
	}
}

// CallSetForFields calls Set for every exported non-nil field of the struct pointed by obj that implements Config.
// The first error is returned.
func CallSetForFields(obj interface{}, dp DataProvider) error {
	for _, cfg := range configFields(obj) {
		if err := cfg.Set(providerFor(cfg, dp)); err != nil {
			return err
		}
	}
	return nil
}

func configFields(obj interface{}) []Config {
	el := reflect.ValueOf(obj).Elem()
	var cfgs []Config
	for i := 0; i < el.NumField(); i++ {
		if !el.Type().Field(i).IsExported() {
			continue
		}
		field := el.Field(i)
		switch field.Kind() {
		case reflect.Ptr, reflect.Interface:
			if field.IsNil() {
				continue
			}
		}
		if cfg, ok := field.Interface().(Config); ok {
			cfgs = append(cfgs, cfg)
		}
	}
	return cfgs
}
