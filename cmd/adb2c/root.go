// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/config"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

// rootFlags are the persistent flags every subcommand shares.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "adb2c",
		Short:         "Azure AD B2C demo web app and web API",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default $"+config.EnvConfig+")")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "trace, debug, info, warn or error (overrides log_level)")

	cmd.AddCommand(newWebAppCmd(flags))
	cmd.AddCommand(newWebApiCmd(flags))
	return cmd
}

// load resolves the config and builds the root logger.
func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, hclog.Logger, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		return nil, nil, fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "adb2c",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}
