// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mattruma/ADB2CWebAppWebApi/downstream"
	"github.com/mattruma/ADB2CWebAppWebApi/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAudience = "api-client-id"
	testScope    = "https://tenant.onmicrosoft.com/api/demo.read"
)

func testServer(t *testing.T) (*oidc.TestProvider, *httptest.Server) {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetAPIAudience(testAudience)
	ks, err := jwt.NewOIDCDiscoveryKeySet(context.Background(), tp.Authority(""), jwt.WithCAPEM(tp.CACert()), jwt.WithExpectedIssuer(tp.Issuer()))
	require.NoError(err)
	v, err := jwt.NewValidator(ks)
	require.NoError(err)
	s, err := NewServer(v, jwt.Expected{
		Issuer:            tp.Issuer(),
		Audiences:         []string{testAudience},
		SigningAlgorithms: []jwt.Alg{jwt.ES256},
	})
	require.NoError(err)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return tp, srv
}

func testGet(t *testing.T, url, authorization string) (int, string, http.Header) {
	t.Helper()
	require := require.New(t)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	return resp.StatusCode, string(body), resp.Header
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	_, err := NewServer(nil, jwt.Expected{})
	assert.ErrorIs(t, err, ErrNilParameter)
}

func TestServer_secure(t *testing.T) {
	t.Parallel()
	tp, srv := testServer(t)
	valid := tp.IssueToken(t, "", testScope).AccessToken

	other := oidc.StartTestProvider(t)
	other.SetAPIAudience(testAudience)
	foreign := other.IssueToken(t, "", testScope).AccessToken

	tests := []struct {
		name          string
		authorization string
		wantStatus    int
		wantBody      string
		wantPrefix    string
	}{
		{name: "valid", authorization: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: SecureMessage},
		{name: "scheme-case", authorization: "bearer " + valid, wantStatus: http.StatusOK, wantBody: SecureMessage},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "basic", authorization: "Basic dXNlcjpwYXNz", wantStatus: http.StatusUnauthorized},
		{name: "garbage", authorization: "Bearer garbage", wantStatus: http.StatusUnauthorized, wantPrefix: "AuthenticationFailed: "},
		{name: "other-issuer", authorization: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantPrefix: "AuthenticationFailed: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			status, body, header := testGet(t, srv.URL+"/api/values/secure", tt.authorization)
			assert.Equal(tt.wantStatus, status)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.True(strings.HasPrefix(header.Get("WWW-Authenticate"), "Bearer"))
			}
			switch {
			case tt.wantPrefix != "":
				assert.True(strings.HasPrefix(body, tt.wantPrefix), body)
			default:
				assert.Equal(tt.wantBody, body)
			}
		})
	}
}

func TestServer_wrongAudience(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	tp, srv := testServer(t)
	tp.SetAPIAudience("some-other-api")
	tk := tp.IssueToken(t, "", testScope)
	status, body, _ := testGet(t, srv.URL+"/api/values/secure", "Bearer "+tk.AccessToken)
	assert.Equal(http.StatusUnauthorized, status)
	assert.Contains(body, jwt.ErrInvalidAudience.Error())
}

func TestServer_unsecure(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, srv := testServer(t)
	status, body, _ := testGet(t, srv.URL+"/api/values/unsecure", "")
	assert.Equal(http.StatusOK, status)
	assert.Equal(UnsecureMessage, body)

	resp, err := http.Post(srv.URL+"/api/values/unsecure", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_downstreamCaller(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	tp, srv := testServer(t)
	c, err := downstream.NewCaller(srv.URL + "/api/values")
	require.NoError(err)

	got, err := c.GetSecured(ctx, oidc.AccessToken(tp.IssueToken(t, "", testScope).AccessToken))
	require.NoError(err)
	assert.Equal(SecureMessage, got.Body)

	got, err = c.GetUnsecured(ctx)
	require.NoError(err)
	assert.Equal(UnsecureMessage, got.Body)

	_, err = c.GetSecured(ctx, "revoked")
	require.Error(err)
	assert.ErrorIs(err, downstream.ErrUnauthorized)
	var callErr *downstream.CallError
	require.True(errors.As(err, &callErr))
	assert.Equal("Unauthorized", callErr.Reason)
	assert.True(strings.HasPrefix(callErr.Body, "AuthenticationFailed: "))
}
