// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/config"
	"github.com/mattruma/ADB2CWebAppWebApi/downstream"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
	"github.com/mattruma/ADB2CWebAppWebApi/webapp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newWebAppCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "webapp",
		Short: "Run the web app",
		Long: "Run the web app.  Users sign in with Azure AD B2C and the app calls the\n" +
			"web API on their behalf with tokens from their session's token cache.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.WebApp.Listen = listen
			}
			if err := cfg.ValidateWebApp(); err != nil {
				return err
			}
			return runWebApp(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides webapp.listen)")
	return cmd
}

func runWebApp(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	oc, err := cfg.OIDCConfig()
	if err != nil {
		return err
	}
	p, err := oidc.NewProvider(oc, oidc.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("discovering %s: %w", oc.Issuer, err)
	}
	defer p.Done()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	caller, err := downstream.NewCaller(cfg.AzureAdB2C.ApiUrl,
		downstream.WithLogger(logger),
		downstream.WithRegisterer(registry),
	)
	if err != nil {
		return err
	}
	sessions := session.NewManager(
		session.WithCookieName(cfg.WebApp.CookieName),
		session.WithSecureCookie(cfg.WebApp.SecureCookie),
		session.WithIdleTimeout(cfg.WebApp.SessionIdleTimeout()),
		session.WithLogger(logger),
	)
	app, err := webapp.NewApp(webapp.Settings{
		ResetPasswordPolicyId: cfg.AzureAdB2C.ResetPasswordPolicyId,
		EditProfilePolicyId:   cfg.AzureAdB2C.EditProfilePolicyId,
		ApiUrl:                cfg.AzureAdB2C.ApiUrl,
		ApiScopes:             cfg.AzureAdB2C.Scopes(),
	}, p, caller, sessions,
		webapp.WithLogger(logger),
		webapp.WithRegistry(registry),
		webapp.WithStateExpiry(cfg.WebApp.StateExpiry()),
		webapp.WithUILocales(cfg.AzureAdB2C.Locales()...),
	)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.WebApp.Listen)
	if err != nil {
		return err
	}
	return serve(ctx, logger.Named("webapp"), ln, app, cfg.WebApp.Shutdown())
}
