// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML config file over the defaults and validates the result.
// Unknown keys are an error.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	cfg, err := decode(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

// Resolve loads the config file named by path, or by ADB2C_CONFIG when path
// is empty, then applies the environment overrides and validates the
// result.  A missing file is only an error when a path was given; otherwise
// the defaults plus the environment are used.
func Resolve(path string) (*Config, error) {
	const op = "config.Resolve"
	env := ReadEnvOverrides()
	if path == "" {
		path = env.ConfigPath
	}
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = decode(path); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	env.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func decode(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config file %s: %w", path, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("parsing config file %s: %w: %w", path, ErrInvalidFile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s: unknown keys %s: %w", path, strings.Join(keys, ", "), ErrInvalidFile)
	}
	return cfg, nil
}
