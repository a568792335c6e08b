// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/internal/strutils"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// Provider provides integration with a provider using the typical
// 3-legged OIDC authorization code flow, including the selection of a
// provider policy per authentication request.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client
	logger   hclog.Logger

	// endSessionURL is the optional end_session_endpoint from discovery.
	endSessionURL string

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs ket sets, refreshing tokens, etc
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider for the OIDC
// authorization code flow.  Intializing the the provider, includes making an
// http request to the provider's issuer.  Supports the option:
//   - WithLogger
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config, opt ...Option) (*Provider, error) {
	const op = "NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}
	opts := getProviderOpts(opt...)

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		logger:              opts.withLogger.Named("oidc"),
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HttpClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	discoveryCtx := HttpClientContext(p.backgroundCtx, client)
	if c.ExpectedIssuer != "" {
		discoveryCtx = oidc.InsecureIssuerURLContext(discoveryCtx, c.ExpectedIssuer)
	}
	provider, err := oidc.NewProvider(discoveryCtx, c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		// we don't know what's causing the problem, so we won't classify the
		// error with a Kind
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	var discovered struct {
		EndSessionURL string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&discovered); err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: unable to read discovery document: %w", op, err)
	}
	p.endSessionURL = discovered.EndSessionURL
	p.logger.Debug("provider discovered", "issuer", c.Issuer, "default_policy", c.DefaultPolicy)

	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's configuration.
func (p *Provider) Config() *Config { return p.config }

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with an IdP.  The State's Policy selects the
// provider policy; it's applied by replacing the default policy in the
// discovered authorize endpoint.
//
// See NewState() to create an oidc flow State with a valid Id and Nonce that
// will uniquely identify the user's authentication attempt through out the flow.
//
// Supports the options:
//   - WithUILocales
//   - WithLoginHint
func (p *Provider) AuthURL(ctx context.Context, s State, opt ...Option) (string, error) {
	const op = "Provider.AuthURL"
	if s == nil {
		return "", fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.Id() == s.Nonce() {
		return "", fmt.Errorf("%s: state id and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)

	oauth2Config, err := p.oauth2Config(s.Policy())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(s.Nonce()),
	}
	if len(opts.withUILocales) > 0 {
		locales := make([]string, 0, len(opts.withUILocales))
		for _, l := range opts.withUILocales {
			locales = append(locales, l.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(locales, " ")))
	}
	if opts.withLoginHint != "" {
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("login_hint", opts.withLoginHint))
	}
	return oauth2Config.AuthCodeURL(s.Id(), authCodeOpts...), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode and authorizationState it received in an earlier successful oidc
// authentication response.
//
// It will also validate the authorizationState it receives against the
// existing State for the user's oidc authentication flow.
//
// On success, the Token returned will include IdToken and AccessToken.  Based
// on the IdP, it may include a RefreshToken.
func (p *Provider) Exchange(ctx context.Context, s State, authorizationState string, authorizationCode string) (*Tk, error) {
	const op = "Provider.Exchange"
	if p.config == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if s == nil {
		return nil, fmt.Errorf("%s: state is nil: %w", op, ErrNilParameter)
	}
	if s.Id() != authorizationState {
		return nil, fmt.Errorf("%s: authentication state and authorization state are not equal: %w", op, ErrResponseStateInvalid)
	}
	if s.IsExpired() {
		return nil, fmt.Errorf("%s: authentication state is expired: %w", op, ErrExpiredState)
	}

	oauth2Config, err := p.oauth2Config(s.Policy())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	oauth2Token, err := oauth2Config.Exchange(HttpClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, classifyTokenErr(err))
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIdToken)
	}
	t, err := NewToken(IdToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create new id_token: %w", op, err)
	}
	if err := p.VerifyIdToken(ctx, t.IdToken(), s.Nonce()); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// Refresh redeems a refresh token at the token endpoint of the policy that
// issued it.  A refresh token the provider rejects (expired, revoked or
// already rotated) returns an error wrapping ErrInvalidGrant.  Every other
// failure wraps ErrTokenEndpoint.
//
// Supports the option:
//   - WithPolicy
func (p *Provider) Refresh(ctx context.Context, rt RefreshToken, opt ...Option) (*Tk, error) {
	const op = "Provider.Refresh"
	if rt == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	opts := getRefreshOpts(opt...)

	oauth2Config, err := p.oauth2Config(opts.withPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	src := oauth2Config.TokenSource(HttpClientContext(ctx, p.client), &oauth2.Token{RefreshToken: string(rt)})
	oauth2Token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, classifyTokenErr(err))
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: id_token is missing from refresh: %w: %w", op, ErrTokenEndpoint, ErrMissingIdToken)
	}
	// the provider may not rotate the refresh token
	if oauth2Token.RefreshToken == "" {
		oauth2Token.RefreshToken = string(rt)
	}
	t, err := NewToken(IdToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenEndpoint, err)
	}
	// a refreshed id_token carries no nonce
	if _, err := p.verifyIdToken(ctx, t.IdToken()); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenEndpoint, err)
	}
	p.logger.Trace("refreshed token", "policy", opts.withPolicy, "expiry", t.Expiry())
	return t, nil
}

// classifyTokenErr separates a rejected grant from every other token endpoint
// failure.
func classifyTokenErr(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "interaction_required":
			return fmt.Errorf("%w: %s", ErrInvalidGrant, re.ErrorDescription)
		}
		if re.Response != nil {
			return fmt.Errorf("%w: status %d: %s", ErrTokenEndpoint, re.Response.StatusCode, re.ErrorCode)
		}
		return fmt.Errorf("%w: %s", ErrTokenEndpoint, re.ErrorCode)
	}
	return fmt.Errorf("%w: %w", ErrTokenEndpoint, err)
}

// VerifyIdToken will verify the inbound IdToken.  It verifies it's been signed
// by the provider, it validates the nonce, and performs checks any additional
// checks depending on the provider's config (audiences, etc).
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIdToken(ctx context.Context, t IdToken, nonce string) error {
	const op = "Provider.VerifyIdToken"
	if nonce == "" {
		return fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	oidcIdToken, err := p.verifyIdToken(ctx, t)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if oidcIdToken.Nonce != nonce {
		return fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}
	return nil
}

// verifyIdToken checks the signature, issuer, client id, expiry and
// configured audiences of an id_token.
func (p *Provider) verifyIdToken(ctx context.Context, t IdToken) (*oidc.IDToken, error) {
	const op = "Provider.verifyIdToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	oidcConfig := &oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             p.config.ClientId,
	}
	verifier := p.provider.Verifier(oidcConfig)

	oidcIdToken, err := verifier.Verify(HttpClientContext(ctx, p.client), string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrIdTokenVerificationFailed, err)
	}

	if len(p.config.Audiences) > 0 {
		found := false
		for _, v := range p.config.Audiences {
			if strutils.StrListContains(oidcIdToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}
	return oidcIdToken, nil
}

// EndSessionURL returns the provider's logout URL for the policy, carrying the
// optional post logout redirect and id_token hint.  It returns ErrNotFound
// when the provider didn't publish an end_session_endpoint.
func (p *Provider) EndSessionURL(policy, postLogoutRedirect string, hint IdToken) (string, error) {
	const op = "Provider.EndSessionURL"
	if p.endSessionURL == "" {
		return "", fmt.Errorf("%s: no end_session_endpoint: %w", op, ErrNotFound)
	}
	endpoint, err := p.policyEndpoint(p.endSessionURL, policy)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	q := u.Query()
	if postLogoutRedirect != "" {
		q.Set("post_logout_redirect_uri", postLogoutRedirect)
	}
	if hint != "" {
		q.Set("id_token_hint", string(hint))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// oauth2Config returns the oauth2 client for the policy.
func (p *Provider) oauth2Config(policy string) (*oauth2.Config, error) {
	endpoint := p.provider.Endpoint()
	var err error
	if endpoint.AuthURL, err = p.policyEndpoint(endpoint.AuthURL, policy); err != nil {
		return nil, err
	}
	if endpoint.TokenURL, err = p.policyEndpoint(endpoint.TokenURL, policy); err != nil {
		return nil, err
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	// "openid" is required for oidc flows and "offline_access" gets the
	// refresh token silent acquisition depends on.
	scopes := strutils.RemoveDuplicatesStable(
		append([]string{oidc.ScopeOpenID, oidc.ScopeOfflineAccess}, p.config.Scopes...), false)
	return &oauth2.Config{
		ClientID:     p.config.ClientId,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectUrl,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}, nil
}

// policyEndpoint replaces the default policy with policy in an endpoint
// discovered for the default policy.  The policy may be a path segment or
// the "p" query parameter.
func (p *Provider) policyEndpoint(endpoint, policy string) (string, error) {
	const op = "Provider.policyEndpoint"
	if policy == "" || strings.EqualFold(policy, p.config.DefaultPolicy) {
		return endpoint, nil
	}
	if !p.config.HasPolicy(policy) {
		return "", fmt.Errorf("%s: %q: %w", op, policy, ErrUnknownPolicy)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	replaced := false
	segs := strings.Split(u.Path, "/")
	for i, s := range segs {
		if strings.EqualFold(s, p.config.DefaultPolicy) {
			segs[i] = policy
			replaced = true
		}
	}
	u.Path = strings.Join(segs, "/")
	q := u.Query()
	if strings.EqualFold(q.Get("p"), p.config.DefaultPolicy) {
		q.Set("p", policy)
		u.RawQuery = q.Encode()
		replaced = true
	}
	if !replaced {
		return "", fmt.Errorf("%s: default policy not found in %s: %w", op, endpoint, ErrUnknownPolicy)
	}
	return u.String(), nil
}

// providerOptions is the set of available options for Provider functions
type providerOptions struct {
	withLogger hclog.Logger
}

// providerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func providerDefaults() providerOptions {
	return providerOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getProviderOpts gets the provider defaults and applies the opt overrides
// passed in
func getProviderOpts(opt ...Option) providerOptions {
	opts := providerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// authURLOptions is the set of available options for Provider.AuthURL
type authURLOptions struct {
	withUILocales []language.Tag
	withLoginHint string
}

func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}

// refreshOptions is the set of available options for Provider.Refresh
type refreshOptions struct {
	withPolicy string
}

func getRefreshOpts(opt ...Option) refreshOptions {
	opts := refreshOptions{}
	ApplyOpts(&opts, opt...)
	return opts
}
