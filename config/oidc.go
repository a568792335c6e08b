// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"golang.org/x/text/language"
)

// OIDCConfig returns the relying party config for the sign-up/sign-in
// policy.  The api scopes are requested at sign-in so the first access
// token is cached along with the refresh token.
func (c *Config) OIDCConfig() (*oidc.Config, error) {
	const op = "Config.OIDCConfig"
	b := c.AzureAdB2C
	opts := []oidc.Option{
		oidc.WithScopes(b.Scopes()...),
		oidc.WithDefaultPolicy(b.SignUpSignInPolicyId),
		oidc.WithPolicies(b.Policies()...),
	}
	if b.ProviderCA != "" {
		opts = append(opts, oidc.WithProviderCA(b.ProviderCA))
	}
	if b.ExpectedIssuer != "" {
		opts = append(opts, oidc.WithExpectedIssuer(b.ExpectedIssuer))
	}
	oc, err := oidc.NewConfig(b.SignInAuthority(), b.ClientId, b.ClientSecret, b.Algs(), b.RedirectUri, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return oc, nil
}

// Locales parses ui_locales.
func (b AzureAdB2C) Locales() []language.Tag {
	tags := make([]language.Tag, 0, len(b.UILocales))
	for _, l := range b.UILocales {
		if t, err := language.Parse(l); err == nil {
			tags = append(tags, t)
		}
	}
	return tags
}
