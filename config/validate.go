// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/mattruma/ADB2CWebAppWebApi/jwt"
	"golang.org/x/text/language"
)

// Validate checks the values present in the config.  Every problem found is
// reported.  Settings only one server needs are checked by ValidateWebApp
// and ValidateWebApi.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	var result *multierror.Error
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("%s: log_level %q is not one of trace, debug, info, warn, error: %w", op, c.LogLevel, ErrInvalid))
	}
	b := c.AzureAdB2C
	for key, v := range map[string]string{"azure_ad_b2c.instance": b.Instance, "azure_ad_b2c.authority": b.Authority, "azure_ad_b2c.api_url": b.ApiUrl, "azure_ad_b2c.redirect_uri": b.RedirectUri, "webapi.authority": c.WebApi.Authority} {
		if v == "" {
			continue
		}
		if err := validateURL(v); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %s: %s: %w", op, key, err, ErrInvalid))
		}
	}
	for _, a := range b.SigningAlgs {
		if err := jwt.SupportedSigningAlgorithm(jwt.Alg(a)); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: azure_ad_b2c.signing_algs: %w", op, err))
		}
	}
	for _, a := range c.WebApi.SigningAlgs {
		if err := jwt.SupportedSigningAlgorithm(jwt.Alg(a)); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: webapi.signing_algs: %w", op, err))
		}
	}
	for _, l := range b.UILocales {
		if _, err := language.Parse(l); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: azure_ad_b2c.ui_locales %q: %s: %w", op, l, err, ErrInvalid))
		}
	}
	for key, v := range map[string]string{
		"webapp.session_idle_timeout": c.WebApp.SessionIdle,
		"webapp.state_lifetime":       c.WebApp.StateLifetime,
		"webapp.shutdown_timeout":     c.WebApp.ShutdownTimeout,
		"webapi.shutdown_timeout":     c.WebApi.ShutdownTimeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %s %q is not a positive duration: %w", op, key, v, ErrInvalid))
		}
	}
	return result.ErrorOrNil()
}

// ValidateWebApp checks the settings the web app requires.
func (c *Config) ValidateWebApp() error {
	const op = "Config.ValidateWebApp"
	var result *multierror.Error
	b := c.AzureAdB2C
	for key, v := range map[string]string{
		"azure_ad_b2c.client_id":                 b.ClientId,
		"azure_ad_b2c.client_secret":             string(b.ClientSecret),
		"azure_ad_b2c.redirect_uri":              b.RedirectUri,
		"azure_ad_b2c.sign_up_sign_in_policy_id": b.SignUpSignInPolicyId,
		"azure_ad_b2c.api_url":                   b.ApiUrl,
		"azure_ad_b2c.api_scopes":                b.ApiScopes,
	} {
		if v == "" {
			result = multierror.Append(result, fmt.Errorf("%s: %s is empty: %w", op, key, ErrInvalid))
		}
	}
	if b.Authority == "" && b.Tenant == "" {
		result = multierror.Append(result, fmt.Errorf("%s: azure_ad_b2c.tenant or azure_ad_b2c.authority is required: %w", op, ErrInvalid))
	}
	return result.ErrorOrNil()
}

// ValidateWebApi checks the settings the web API requires.
func (c *Config) ValidateWebApi() error {
	const op = "Config.ValidateWebApi"
	var result *multierror.Error
	if c.WebApi.Audience == "" {
		result = multierror.Append(result, fmt.Errorf("%s: webapi.audience is empty: %w", op, ErrInvalid))
	}
	if c.WebApiAuthority() == "" {
		result = multierror.Append(result, fmt.Errorf("%s: webapi.authority or azure_ad_b2c tenant and sign_up_sign_in_policy_id are required: %w", op, ErrInvalid))
	}
	return result.ErrorOrNil()
}

// WebApiAuthority returns the discovery URL the web API takes signing keys
// from.
func (c *Config) WebApiAuthority() string {
	switch {
	case c.WebApi.Authority != "":
		return withTrailingSlash(c.WebApi.Authority)
	case c.AzureAdB2C.Authority != "",
		c.AzureAdB2C.Tenant != "" && c.AzureAdB2C.SignUpSignInPolicyId != "":
		return c.AzureAdB2C.SignInAuthority()
	}
	return ""
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	switch {
	case err != nil:
		return err
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("%q is not an http or https URL", s)
	case u.Host == "":
		return fmt.Errorf("%q has no host", s)
	}
	return nil
}
