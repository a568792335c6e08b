// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"net"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/config"
	"github.com/mattruma/ADB2CWebAppWebApi/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/webapi"
	"github.com/spf13/cobra"
)

func newWebApiCmd(flags *rootFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "webapi",
		Short: "Run the demo web API",
		Long: "Run the demo web API.  /api/values/secure requires a bearer token issued\n" +
			"by the configured authority for the configured audience.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load(cmd)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.WebApi.Listen = listen
			}
			if err := cfg.ValidateWebApi(); err != nil {
				return err
			}
			return runWebApi(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides webapi.listen)")
	return cmd
}

func runWebApi(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	authority := cfg.WebApiAuthority()
	ks, err := jwt.NewOIDCDiscoveryKeySet(ctx, authority,
		jwt.WithCAPEM(cfg.AzureAdB2C.ProviderCA),
		jwt.WithExpectedIssuer(cfg.AzureAdB2C.ExpectedIssuer),
		jwt.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("discovering %s: %w", authority, err)
	}
	v, err := jwt.NewValidator(ks)
	if err != nil {
		return err
	}
	var algs []jwt.Alg
	for _, a := range cfg.WebApi.Algs(cfg.AzureAdB2C.Algs()) {
		algs = append(algs, jwt.Alg(a))
	}
	s, err := webapi.NewServer(v, jwt.Expected{
		Issuer:            cfg.AzureAdB2C.ExpectedIssuer,
		Audiences:         []string{cfg.WebApi.Audience},
		SigningAlgorithms: algs,
	}, webapi.WithLogger(logger))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.WebApi.Listen)
	if err != nil {
		return err
	}
	return serve(ctx, logger.Named("webapi"), ln, s, cfg.WebApi.Shutdown())
}
