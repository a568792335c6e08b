// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
)

// Environment variable names for overrides.
const (
	EnvConfig       = "ADB2C_CONFIG"
	EnvClientId     = "ADB2C_CLIENT_ID"
	EnvClientSecret = "ADB2C_CLIENT_SECRET"
	EnvApiUrl       = "ADB2C_API_URL"
)

// EnvOverrides holds values read from the environment.
type EnvOverrides struct {
	ConfigPath   string
	ClientId     string
	ClientSecret oidc.ClientSecret
	ApiUrl       string
}

// ReadEnvOverrides reads the environment.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientId:     os.Getenv(EnvClientId),
		ClientSecret: oidc.ClientSecret(os.Getenv(EnvClientSecret)),
		ApiUrl:       os.Getenv(EnvApiUrl),
	}
}

func (e EnvOverrides) apply(cfg *Config) {
	if e.ClientId != "" {
		cfg.AzureAdB2C.ClientId = e.ClientId
	}
	if e.ClientSecret != "" {
		cfg.AzureAdB2C.ClientSecret = e.ClientSecret
	}
	if e.ApiUrl != "" {
		cfg.AzureAdB2C.ApiUrl = e.ApiUrl
	}
}
