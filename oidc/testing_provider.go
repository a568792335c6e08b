// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/internal/strutils"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	// TestDefaultPolicy is the sign-up/sign-in policy a TestProvider serves
	// unless SetPolicies is called.
	TestDefaultPolicy = "B2C_1_susi"

	// TestTokenLifetime is the default lifetime of tokens issued by a
	// TestProvider.
	TestTokenLifetime = time.Hour
)

// TestProvider is local server that supports test provider capabilities which
// make writing tests much easier.  It mimics the shape of an Azure AD B2C
// tenant: every policy has its own discovery document, authorize, token and
// logout endpoints under "/{policy}/", while all of them report the same
// tenant issuer ("/{tenantId}/v2.0/").  Much of this is from Consul's
// oauthtest package with a few changes so it could become part of this
// package's public testing API.  A big thanks to the original contributors to
// Consul's oauthtest package.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks  *jose.JSONWebKeySet
	keyID string

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	mu                  sync.Mutex
	tenantID            string
	defaultPolicy       string
	policies            []string
	allowedRedirectURIs []string
	clientID            string
	clientSecret        string
	apiAudience         string
	replySubject        string
	replyName           string
	replyEmail          string
	expectedAuthCode    string
	customClaims        map[string]interface{}
	omitIDToken         bool
	failTokenEndpoint   bool
	tokenLifetime       time.Duration

	pendingAuth   map[string]testAuthRequest
	refreshTokens map[string]testGrant
	refreshCount  int

	t *testing.T
}

// testAuthRequest is an authorization request waiting for its code to be
// redeemed.
type testAuthRequest struct {
	nonce  string
	policy string
	scopes []string
}

// testGrant is what a refresh token was issued for.
type testGrant struct {
	policy string
	scopes []string
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// StartTestProvider creates a disposable TestProvider.  Supports the option:
//   - WithPort
func StartTestProvider(t *testing.T, opt ...Option) *TestProvider {
	t.Helper()
	require := require.New(t)
	opts := getTestProviderOpts(opt...)

	tenantID, err := NewId("")
	require.NoError(err)
	keyID, err := NewId("k")
	require.NoError(err)

	p := &TestProvider{
		tenantID:      tenantID,
		keyID:         keyID,
		defaultPolicy: TestDefaultPolicy,
		allowedRedirectURIs: []string{
			"https://example.com",
		},
		replySubject:  "alice-object-id",
		replyName:     "Alice",
		replyEmail:    "alice@example.com",
		tokenLifetime: TestTokenLifetime,
		pendingAuth:   map[string]testAuthRequest{},
		refreshTokens: map[string]testGrant{},
		t:             t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)

	p.jwks = testJWKS(t, p.ecdsaPublicKey, p.keyID)

	if opts.withPort != 0 {
		p.httpServer = httptestNewUnstartedServerWithPort(t, p, opts.withPort)
	} else {
		p.httpServer = httptest.NewUnstartedServer(p)
	}
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()

	var buf bytes.Buffer
	err = pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from the authorize
// endpoint and the allowed auth code for the token endpoint.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured a sample of "https://example.com" is
// used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetPolicies configures the policies the provider serves.  The default
// policy is used when discovery happens through the tenant issuer.
func (p *TestProvider) SetPolicies(defaultPolicy string, others ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultPolicy = defaultPolicy
	p.policies = others
}

// SetSubject configures the user the provider authenticates.
func (p *TestProvider) SetSubject(subject, name, email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = subject
	p.replyName = name
	p.replyEmail = email
}

// SetAPIAudience configures the "aud" of issued access tokens.  It defaults
// to the client id.
func (p *TestProvider) SetAPIAudience(aud string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.apiAudience = aud
}

// SetTokenLifetime configures the lifetime of issued tokens.
func (p *TestProvider) SetTokenLifetime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenLifetime = d
}

// SetCustomClaims lets you set claims to return in the JWT issued by the OIDC
// workflow.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// OmitIDTokens forces an error state where the token endpoint does not return
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// FailTokenEndpoint makes the token endpoint answer 503 until it's called
// again with false.
func (p *TestProvider) FailTokenEndpoint(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failTokenEndpoint = fail
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (p *TestProvider) RevokeRefreshTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshTokens = map[string]testGrant{}
}

// RefreshCount returns the number of refresh_token grants the token endpoint
// has received.
func (p *TestProvider) RefreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCount
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// TenantID returns the provider's tenant id ("tid" claim).
func (p *TestProvider) TenantID() string { return p.tenantID }

// Issuer returns the "iss" of every token the provider issues.
func (p *TestProvider) Issuer() string {
	return p.Addr() + "/" + p.tenantID + "/v2.0/"
}

// Authority returns the discovery URL of a policy.  An empty policy means the
// default policy.
func (p *TestProvider) Authority(policy string) string {
	if policy == "" {
		p.mu.Lock()
		policy = p.defaultPolicy
		p.mu.Unlock()
	}
	return p.Addr() + "/" + policy + "/v2.0/"
}

// Config returns a valid Config for the provider's default policy, with the
// client credentials, redirect URI and policies already registered with the
// provider.  Additional options are applied after the defaults.
func (p *TestProvider) Config(t *testing.T, redirectURL string, opt ...Option) *Config {
	t.Helper()
	require := require.New(t)
	p.mu.Lock()
	if p.clientID == "" {
		p.clientID, p.clientSecret = "test-client-id", "test-client-secret"
	}
	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURL) {
		p.allowedRedirectURIs = append(p.allowedRedirectURIs, redirectURL)
	}
	clientID, clientSecret := p.clientID, p.clientSecret
	defaultPolicy, policies := p.defaultPolicy, p.policies
	p.mu.Unlock()

	opts := []Option{
		WithProviderCA(p.CACert()),
		WithExpectedIssuer(p.Issuer()),
		WithDefaultPolicy(defaultPolicy),
		WithPolicies(policies...),
	}
	c, err := NewConfig(
		p.Authority(defaultPolicy),
		clientID,
		ClientSecret(clientSecret),
		[]Alg{ES256},
		redirectURL,
		append(opts, opt...)...,
	)
	require.NoError(err)
	return c
}

// IssueToken mints a token response for the configured subject without an
// interactive flow, registering its refresh token with the provider.  The
// id_token is available through Extra("id_token").
func (p *TestProvider) IssueToken(t *testing.T, policy string, scopes ...string) *oauth2.Token {
	t.Helper()
	require := require.New(t)
	p.mu.Lock()
	defer p.mu.Unlock()
	if policy == "" {
		policy = p.defaultPolicy
	}
	reply, err := p.issueTokens(policy, "", scopes)
	require.NoError(err)
	tk := &oauth2.Token{
		AccessToken:  reply.AccessToken,
		TokenType:    reply.TokenType,
		RefreshToken: reply.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(reply.ExpiresIn) * time.Second),
	}
	return tk.WithExtra(map[string]interface{}{
		"id_token": reply.IDToken,
		"scope":    reply.Scope,
	})
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// lookupPolicy resolves a path segment into a configured policy.  The tenant
// id resolves to the default policy.
func (p *TestProvider) lookupPolicy(seg string) (string, bool) {
	if seg == p.tenantID || strings.EqualFold(seg, p.defaultPolicy) {
		return p.defaultPolicy, true
	}
	for _, pol := range p.policies {
		if strings.EqualFold(seg, pol) {
			return pol, true
		}
	}
	return "", false
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	segs := strings.Split(strings.Trim(req.URL.Path, "/"), "/")
	if len(segs) != 4 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	policy, ok := p.lookupPolicy(segs[0])
	if !ok {
		_ = p.writeTokenErrorResponse(w, http.StatusNotFound, "invalid_request", "AADB2C90008: unknown policy "+segs[0])
		return
	}
	base := p.Addr() + "/" + policy

	switch strings.Join(segs[1:], "/") {
	case "v2.0/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := struct {
			Issuer             string   `json:"issuer"`
			AuthEndpoint       string   `json:"authorization_endpoint"`
			TokenEndpoint      string   `json:"token_endpoint"`
			EndSessionEndpoint string   `json:"end_session_endpoint"`
			JWKSURI            string   `json:"jwks_uri"`
			Algs               []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:             p.Issuer(),
			AuthEndpoint:       base + "/oauth2/v2.0/authorize",
			TokenEndpoint:      base + "/oauth2/v2.0/token",
			EndSessionEndpoint: base + "/oauth2/v2.0/logout",
			JWKSURI:            base + "/discovery/v2.0/keys",
			Algs:               []string{string(ES256)},
		}

		if err := p.writeJSON(w, &reply); err != nil {
			return
		}

	case "oauth2/v2.0/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		scopes := strings.Fields(qv.Get("scope"))
		if !strutils.StrListContains(scopes, "openid") {
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		}
		if qv.Get("client_id") != p.clientID {
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		}

		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}

		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}
		if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
			p.writeAuthErrorResponse(w, req, "invalid_request", "redirect_uri is not allowed")
			return
		}

		p.pendingAuth[p.expectedAuthCode] = testAuthRequest{
			nonce:  qv.Get("nonce"),
			policy: policy,
			scopes: scopes,
		}

		redirectURI += "?state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "oauth2/v2.0/logout":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if redirectURI := req.URL.Query().Get("post_logout_redirect_uri"); redirectURI != "" {
			http.Redirect(w, req, redirectURI, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)

	case "discovery/v2.0/keys":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := p.writeJSON(w, p.jwks); err != nil {
			return
		}

	case "oauth2/v2.0/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.failTokenEndpoint {
			_ = p.writeTokenErrorResponse(w, http.StatusServiceUnavailable, "temporarily_unavailable", "token endpoint is failing")
			return
		}
		clientID, clientSecret, ok := req.BasicAuth()
		if !ok {
			clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
		}
		if clientID != p.clientID || clientSecret != p.clientSecret {
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
			return
		}

		var (
			nonce  string
			scopes []string
		)
		switch req.FormValue("grant_type") {
		case "authorization_code":
			code := req.FormValue("code")
			pending, ok := p.pendingAuth[code]
			switch {
			case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
				return
			case !ok || code != p.expectedAuthCode:
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
				return
			}
			delete(p.pendingAuth, code)
			nonce, scopes = pending.nonce, pending.scopes
			policy = pending.policy

		case "refresh_token":
			p.refreshCount++
			rt := req.FormValue("refresh_token")
			grant, ok := p.refreshTokens[rt]
			if !ok {
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "AADB2C90080: the provided grant has expired")
				return
			}
			// refresh tokens are single use
			delete(p.refreshTokens, rt)
			scopes = strings.Fields(req.FormValue("scope"))
			if len(scopes) == 0 {
				scopes = grant.scopes
			}
			policy = grant.policy

		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
			return
		}

		reply, err := p.issueTokens(policy, nonce, scopes)
		if err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		if err := p.writeJSON(w, reply); err != nil {
			return
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testTokenReply is the token endpoint's success response.
type testTokenReply struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// issueTokens signs an id_token and an access_token and registers a new
// refresh token.  The caller must hold p.mu.
func (p *TestProvider) issueTokens(policy, nonce string, scopes []string) (*testTokenReply, error) {
	now := time.Now()
	stdClaims := jwt.Claims{
		Subject:   p.replySubject,
		Issuer:    p.Issuer(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		Expiry:    jwt.NewNumericDate(now.Add(p.tokenLifetime)),
		Audience:  jwt.Audience{p.clientID},
	}
	idClaims := map[string]interface{}{
		"tfp":  policy,
		"tid":  p.tenantID,
		"name": p.replyName,
	}
	if p.replyEmail != "" {
		idClaims["emails"] = []string{p.replyEmail}
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	for k, v := range p.customClaims {
		idClaims[k] = v
	}
	idToken, err := signJWT(p.ecdsaPrivateKey, p.keyID, stdClaims, idClaims)
	if err != nil {
		return nil, err
	}

	var granted []string
	for _, s := range scopes {
		switch s {
		case "openid", "offline_access":
			continue
		}
		// resource scopes are full URIs, the scp claim carries the short name
		granted = append(granted, s[strings.LastIndex(s, "/")+1:])
	}
	atClaims := stdClaims
	if p.apiAudience != "" {
		atClaims.Audience = jwt.Audience{p.apiAudience}
	}
	accessToken, err := signJWT(p.ecdsaPrivateKey, p.keyID, atClaims, map[string]interface{}{
		"tfp": policy,
		"tid": p.tenantID,
		"azp": p.clientID,
		"scp": strings.Join(granted, " "),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := NewId("rt")
	if err != nil {
		return nil, err
	}
	p.refreshTokens[refreshToken] = testGrant{policy: policy, scopes: scopes}

	return &testTokenReply{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(p.tokenLifetime / time.Second),
		RefreshToken: refreshToken,
		IDToken:      idToken,
		Scope:        strings.Join(scopes, " "),
	}, nil
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey, keyID string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	input := block.Bytes

	pub, err := x509.ParsePKIXPublicKey(input)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				KeyID:     keyID,
				Algorithm: string(jose.ES256),
				Use:       "sig",
			},
		},
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port if desired.
func httptestNewUnstartedServerWithPort(t *testing.T, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	require := require.New(t)
	require.NotEmpty(port)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}

// testProviderOptions is the set of available options for TestProvider
// functions
type testProviderOptions struct {
	withPort int
}

// testProviderDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func testProviderDefaults() testProviderOptions {
	return testProviderOptions{}
}

// getTestProviderOpts gets the test provider defaults and applies the opt
// overrides passed in
func getTestProviderOpts(opt ...Option) testProviderOptions {
	opts := testProviderDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPort provides an optional port for the test provider, for:
// StartTestProvider
func WithPort(port int) Option {
	return func(o interface{}) {
		if o, ok := o.(*testProviderOptions); ok {
			o.withPort = port
		}
	}
}
