/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"github.com/acronis/go-admitgate/admission"
	"github.com/acronis/go-admitgate/config"
	"github.com/acronis/go-admitgate/httpserver"
	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/profserver"
	"github.com/acronis/go-admitgate/store/redisstore"
)

const envVarsPrefix = "admitgate"

// AppConfig is the configuration of the demo process.
type AppConfig struct {
	Server     *httpserver.Config
	Log        *log.Config
	Admission  *admission.Config
	Redis      *redisstore.Config
	ProfServer *profserver.Config
}

// NewAppConfig creates AppConfig with default key prefixes for every section.
func NewAppConfig() *AppConfig {
	return &AppConfig{
		Server:     httpserver.NewConfig(),
		Log:        log.NewConfig(),
		Admission:  admission.NewConfig(),
		Redis:      redisstore.NewConfig(),
		ProfServer: profserver.NewConfig(),
	}
}

func (c *AppConfig) SetProviderDefaults(dp config.DataProvider) {
	config.CallSetProviderDefaultsForFields(c, dp)
}

func (c *AppConfig) Set(dp config.DataProvider) error {
	return config.CallSetForFields(c, dp)
}

// loadAppConfig reads the YAML file (if the path is not empty) and applies ADMITGATE_* environment variables.
func loadAppConfig(path string) (*AppConfig, error) {
	cfgLoader := config.NewDefaultLoader(envVarsPrefix)
	cfg := NewAppConfig()
	if path == "" {
		return cfg, cfgLoader.Load(cfg)
	}
	return cfg, cfgLoader.LoadFromFile(path, config.DataTypeYAML, cfg)
}
