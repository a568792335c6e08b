// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/mattruma/ADB2CWebAppWebApi/downstream"
	"github.com/mattruma/ADB2CWebAppWebApi/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
	"github.com/mattruma/ADB2CWebAppWebApi/webapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	testScope         = "https://tenant.onmicrosoft.com/api/demo.read"
	testAPIAudience   = "api-client-id"
	testAuthCode      = "test-auth-code"
	testResetPolicy   = "B2C_1_sspr"
	testProfilePolicy = "B2C_1_edit"
)

// testEnv is the whole round trip in-process: the identity provider, the
// demo API and the web app.
type testEnv struct {
	tp       *oidc.TestProvider
	app      *App
	api      *httptest.Server
	srv      *httptest.Server
	registry *prometheus.Registry
}

// newTestEnv starts the identity provider, the demo API and the web app.
// setup runs against the provider before the app discovers it.
func newTestEnv(t *testing.T, setup ...func(*oidc.TestProvider)) *testEnv {
	t.Helper()
	require := require.New(t)
	ctx := context.Background()

	tp := oidc.StartTestProvider(t)
	tp.SetPolicies(oidc.TestDefaultPolicy, testResetPolicy, testProfilePolicy)
	tp.SetExpectedAuthCode(testAuthCode)
	tp.SetAPIAudience(testAPIAudience)
	for _, fn := range setup {
		fn(tp)
	}

	ks, err := jwt.NewOIDCDiscoveryKeySet(ctx, tp.Authority(""), jwt.WithCAPEM(tp.CACert()), jwt.WithExpectedIssuer(tp.Issuer()))
	require.NoError(err)
	v, err := jwt.NewValidator(ks)
	require.NoError(err)
	apiHandler, err := webapi.NewServer(v, jwt.Expected{
		Issuer:            tp.Issuer(),
		Audiences:         []string{testAPIAudience},
		SigningAlgorithms: []jwt.Alg{jwt.ES256},
	})
	require.NoError(err)
	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	env := &testEnv{tp: tp, api: api, registry: prometheus.NewRegistry()}
	env.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.app.ServeHTTP(w, r)
	}))
	t.Cleanup(env.srv.Close)

	p, err := oidc.NewProvider(tp.Config(t, env.srv.URL+CallbackPath, oidc.WithScopes(testScope)))
	require.NoError(err)
	t.Cleanup(p.Done)
	caller, err := downstream.NewCaller(api.URL+"/api/values", downstream.WithRegisterer(env.registry))
	require.NoError(err)
	env.app, err = NewApp(Settings{
		ResetPasswordPolicyId: testResetPolicy,
		EditProfilePolicyId:   testProfilePolicy,
		ApiUrl:                api.URL + "/api/values",
		ApiScopes:             []string{testScope},
	}, p, caller, session.NewManager(), WithRegistry(env.registry))
	require.NoError(err)
	return env
}

// browser returns a client with its own cookie jar that trusts the
// provider.  With follow false redirects are returned, not followed.
func (e *testEnv) browser(t *testing.T, follow bool) *http.Client {
	t.Helper()
	require := require.New(t)
	jar, err := cookiejar.New(nil)
	require.NoError(err)
	pool := x509.NewCertPool()
	require.True(pool.AppendCertsFromPEM([]byte(e.tp.CACert())))
	c := &http.Client{
		Jar: jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool},
		},
	}
	if !follow {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// get returns the status, final URL and body of a GET.
func get(t *testing.T, c *http.Client, url string) (int, string, string) {
	t.Helper()
	require := require.New(t)
	resp, err := c.Get(url)
	require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	return resp.StatusCode, resp.Request.URL.String(), string(body)
}

// signIn runs the interactive sign-in with the browser.
func (e *testEnv) signIn(t *testing.T, c *http.Client) {
	t.Helper()
	require := require.New(t)
	status, final, body := get(t, c, e.srv.URL+SignInPath)
	require.Equal(http.StatusOK, status, body)
	require.Equal(e.srv.URL+"/", final)
	require.Contains(body, "Hello Alice!")
}

func (e *testEnv) authorizeURL(policy string) string {
	return e.tp.Addr() + "/" + policy + "/oauth2/v2.0/authorize"
}
