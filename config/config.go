// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the TOML configuration shared by the web app and the
// demo web API.
//
// An example file:
//
//	log_level = "info"
//
//	[azure_ad_b2c]
//	instance = "https://fabrikamb2c.b2clogin.com/tfp"
//	tenant = "fabrikamb2c.onmicrosoft.com"
//	client_id = "90c0fe63-bcf2-44d5-8fb7-b8bbc0b29dc6"
//	redirect_uri = "http://localhost:5000/signin-oidc"
//	sign_up_sign_in_policy_id = "B2C_1_SUSI"
//	reset_password_policy_id = "B2C_1_SSPR"
//	edit_profile_policy_id = "B2C_1_SiPe"
//	api_url = "http://localhost:5001/api/values"
//	api_scopes = "https://fabrikamb2c.onmicrosoft.com/helloapi/demo.read"
//
//	[webapp]
//	listen = ":5000"
//
//	[webapi]
//	listen = ":5001"
//	audience = "93733604-cc77-4a3c-a604-87084dd55348"
//
// The client secret is best left out of the file and supplied through
// ADB2C_CLIENT_SECRET.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattruma/ADB2CWebAppWebApi/internal/strutils"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
)

const (
	DefaultInstance       = "https://login.microsoftonline.com/tfp"
	DefaultLogLevel       = "info"
	DefaultWebAppListen   = ":5000"
	DefaultWebApiListen   = ":5001"
	DefaultSessionIdle    = "20m"
	DefaultStateLifetime  = "10m"
	DefaultShutdownPeriod = "10s"
)

// Config is the whole configuration file.
type Config struct {
	LogLevel   string     `toml:"log_level"`
	AzureAdB2C AzureAdB2C `toml:"azure_ad_b2c"`
	WebApp     WebApp     `toml:"webapp"`
	WebApi     WebApi     `toml:"webapi"`
}

// AzureAdB2C is the relying party's registration with the identity provider.
type AzureAdB2C struct {
	Instance     string            `toml:"instance"`
	Tenant       string            `toml:"tenant"`
	ClientId     string            `toml:"client_id"`
	ClientSecret oidc.ClientSecret `toml:"client_secret"`
	RedirectUri  string            `toml:"redirect_uri"`

	// Authority overrides the authority derived from the instance, tenant
	// and sign-up/sign-in policy.
	Authority string `toml:"authority"`

	// ExpectedIssuer is the "iss" of issued tokens when it differs from the
	// authority.
	ExpectedIssuer string `toml:"expected_issuer"`

	// ProviderCA is an optional PEM encoded CA for the provider's TLS cert.
	ProviderCA string `toml:"provider_ca"`

	SigningAlgs []string `toml:"signing_algs"`

	SignUpSignInPolicyId  string `toml:"sign_up_sign_in_policy_id"`
	ResetPasswordPolicyId string `toml:"reset_password_policy_id"`
	EditProfilePolicyId   string `toml:"edit_profile_policy_id"`

	ApiUrl    string `toml:"api_url"`
	ApiScopes string `toml:"api_scopes"`

	// UILocales are optional BCP 47 tags sent as ui_locales.
	UILocales []string `toml:"ui_locales"`
}

// WebApp configures the web app server.
type WebApp struct {
	Listen          string `toml:"listen"`
	CookieName      string `toml:"cookie_name"`
	SecureCookie    bool   `toml:"secure_cookie"`
	SessionIdle     string `toml:"session_idle_timeout"`
	StateLifetime   string `toml:"state_lifetime"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// WebApi configures the demo web API server.
type WebApi struct {
	Listen string `toml:"listen"`

	// Audience is the required "aud" of bearer tokens.
	Audience string `toml:"audience"`

	// Authority is the discovery URL used for signing keys.  Defaults to the
	// web app's authority.
	Authority       string   `toml:"authority"`
	SigningAlgs     []string `toml:"signing_algs"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		AzureAdB2C: AzureAdB2C{
			Instance:    DefaultInstance,
			SigningAlgs: []string{string(oidc.RS256)},
		},
		WebApp: WebApp{
			Listen:          DefaultWebAppListen,
			SessionIdle:     DefaultSessionIdle,
			StateLifetime:   DefaultStateLifetime,
			ShutdownTimeout: DefaultShutdownPeriod,
		},
		WebApi: WebApi{
			Listen:          DefaultWebApiListen,
			ShutdownTimeout: DefaultShutdownPeriod,
		},
	}
}

// SignInAuthority returns the authority of the sign-up/sign-in policy:
// {instance}/{tenant}/{policy}/v2.0/ unless one was set explicitly.
func (b AzureAdB2C) SignInAuthority() string {
	return b.PolicyAuthority(b.SignUpSignInPolicyId)
}

// PolicyAuthority returns the authority of policy.
func (b AzureAdB2C) PolicyAuthority(policy string) string {
	if b.Authority != "" && policy == b.SignUpSignInPolicyId {
		return withTrailingSlash(b.Authority)
	}
	if b.Authority != "" {
		return withTrailingSlash(strings.Replace(b.Authority, "/"+b.SignUpSignInPolicyId+"/", "/"+policy+"/", 1))
	}
	return fmt.Sprintf("%s/%s/%s/v2.0/", strings.TrimSuffix(b.Instance, "/"), b.Tenant, policy)
}

// Scopes splits the space separated api_scopes.
func (b AzureAdB2C) Scopes() []string {
	return strutils.RemoveDuplicatesStable(strings.Fields(b.ApiScopes), true)
}

// Policies returns the non-default policies the app may request.
func (b AzureAdB2C) Policies() []string {
	var p []string
	for _, id := range []string{b.ResetPasswordPolicyId, b.EditProfilePolicyId} {
		if id != "" && id != b.SignUpSignInPolicyId {
			p = append(p, id)
		}
	}
	return p
}

// Algs returns the configured signing algs.
func (b AzureAdB2C) Algs() []oidc.Alg {
	return toAlgs(b.SigningAlgs)
}

// SessionIdleTimeout parses session_idle_timeout.
func (w WebApp) SessionIdleTimeout() time.Duration { return mustDuration(w.SessionIdle) }

// StateExpiry parses state_lifetime.
func (w WebApp) StateExpiry() time.Duration { return mustDuration(w.StateLifetime) }

// Shutdown parses shutdown_timeout.
func (w WebApp) Shutdown() time.Duration { return mustDuration(w.ShutdownTimeout) }

// Shutdown parses shutdown_timeout.
func (w WebApi) Shutdown() time.Duration { return mustDuration(w.ShutdownTimeout) }

// Algs returns the configured signing algs, falling back to fallback.
func (w WebApi) Algs(fallback []oidc.Alg) []oidc.Alg {
	if len(w.SigningAlgs) == 0 {
		return fallback
	}
	return toAlgs(w.SigningAlgs)
}

func toAlgs(in []string) []oidc.Alg {
	algs := make([]oidc.Alg, 0, len(in))
	for _, a := range in {
		algs = append(algs, oidc.Alg(a))
	}
	return algs
}

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
