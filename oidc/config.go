// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-multierror"
	"github.com/mattruma/ADB2CWebAppWebApi/internal/strutils"
	sdkHttp "github.com/mattruma/ADB2CWebAppWebApi/sdk/http"
)

// ClientSecret is an oauth client Secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for a typical 3-legged OIDC
// authorization code flow against a policy based provider like Azure AD B2C.
type Config struct {
	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Scopes is a list of additional oauth scopes to request of the provider.
	// The required "openid" scope is requested by default, and should not be
	// part of this optional list.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components.  It's the authority of the default
	// policy and is used for discovery.
	Issuer string

	// ExpectedIssuer is an optional "iss" value when the provider's discovery
	// document reports an issuer different from the Issuer used for discovery
	// (Azure AD B2C authorities do this).
	ExpectedIssuer string

	// SupportedSigningAlgs is a list of supported signing algorithms. List of
	// currently supported algs: RS256, RS384, RS512, ES256, ES384, ES512,
	// PS256, PS384, PS512
	SupportedSigningAlgs []Alg

	// RedirectUrl is the URL where the provider will redirect responses to
	// authentication requests.
	RedirectUrl string

	// Audiences is a list optional case-sensitive strings used when verifying an id_token's "aud" claim
	Audiences []string

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	// DefaultPolicy is the policy (user flow) embedded in the Issuer.  AuthURL
	// swaps it for the requested policy.
	DefaultPolicy string

	// Policies is the optional list of additional policies the relying party
	// may request (reset password, edit profile).
	Policies []string
}

// NewConfig composes a new config for a provider.
// Supported options:
//   - WithProviderCA
//   - WithScopes
//   - WithAudiences
//   - WithExpectedIssuer
//   - WithDefaultPolicy
//   - WithPolicies
func NewConfig(issuer string, clientId string, clientSecret ClientSecret, supported []Alg, redirectUrl string, opt ...Option) (*Config, error) {
	const op = "NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ExpectedIssuer:       opts.withExpectedIssuer,
		ClientId:             clientId,
		ClientSecret:         clientSecret,
		SupportedSigningAlgs: supported,
		RedirectUrl:          redirectUrl,
		Scopes:               opts.withScopes,
		Audiences:            opts.withAudiences,
		ProviderCA:           opts.withProviderCA,
		DefaultPolicy:        opts.withDefaultPolicy,
		Policies:             opts.withPolicies,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  Among other validations, it verifies
// the issuer is not empty, but it doesn't verify the Issuer is discoverable via
// an http request.  SupportedSigningAlgs is validated against the list of
// currently supported algs: RS256, RS384, RS512, ES256, ES384, ES512, PS256,
// PS384, PS512.  Every problem found is reported.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientId == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("%s: client secret is empty: %w", op, ErrInvalidParameter))
	}
	if c.RedirectUrl == "" {
		result = multierror.Append(result, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter))
	}
	if c.Issuer == "" {
		result = multierror.Append(result, fmt.Errorf("%s: discovery URL is empty: %w", op, ErrInvalidParameter))
	} else {
		u, err := url.Parse(c.Issuer)
		switch {
		case err != nil:
			result = multierror.Append(result, fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer))
		case !strutils.StrListContains([]string{"https", "http"}, u.Scheme):
			result = multierror.Append(result, fmt.Errorf("%s: issuer %s schema is not http or https: %w", op, c.Issuer, ErrInvalidIssuer))
		case c.DefaultPolicy != "" && !strings.Contains(strings.ToLower(u.Path), strings.ToLower(c.DefaultPolicy)):
			result = multierror.Append(result, fmt.Errorf("%s: issuer %s does not contain default policy %s: %w", op, c.Issuer, c.DefaultPolicy, ErrInvalidIssuer))
		}
	}
	if len(c.Policies) > 0 && c.DefaultPolicy == "" {
		result = multierror.Append(result, fmt.Errorf("%s: policies require a default policy: %w", op, ErrInvalidParameter))
	}
	if len(c.SupportedSigningAlgs) == 0 {
		result = multierror.Append(result, fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("%s: unsupported algorithm %s: %w", op, a, ErrUnsupportedAlg))
		}
	}
	return result.ErrorOrNil()
}

// HasPolicy reports whether policy is the default policy or one of the
// additional policies.  The comparison is case insensitive.
func (c *Config) HasPolicy(policy string) bool {
	if policy == "" {
		return false
	}
	if strings.EqualFold(policy, c.DefaultPolicy) {
		return true
	}
	for _, p := range c.Policies {
		if strings.EqualFold(policy, p) {
			return true
		}
	}
	return false
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	const op = "Config.HttpClient"
	client, err := sdkHttp.NewClient(c.ProviderCA)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HttpClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HttpClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withScopes         []string
	withAudiences      []string
	withProviderCA     string
	withExpectedIssuer string
	withDefaultPolicy  string
	withPolicies       []string
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the provider's config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = strutils.RemoveDuplicatesStable(scopes, false)
		}
	}
}

// WithAudiences provides an optional list of audiences for the provider's config
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithExpectedIssuer provides an optional "iss" value to accept when it
// differs from the discovery issuer, for the provider's config
func WithExpectedIssuer(iss string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withExpectedIssuer = iss
		}
	}
}

// WithDefaultPolicy provides the policy embedded in the issuer, for the
// provider's config
func WithDefaultPolicy(policy string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDefaultPolicy = policy
		}
	}
}

// WithPolicies provides the additional policies the relying party may
// request, for the provider's config
func WithPolicies(policies ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPolicies = policies
		}
	}
}
