// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFile = `
log_level = "debug"

[azure_ad_b2c]
instance = "https://fabrikamb2c.b2clogin.com/tfp/"
tenant = "fabrikamb2c.onmicrosoft.com"
client_id = "90c0fe63-bcf2-44d5-8fb7-b8bbc0b29dc6"
client_secret = "file-secret"
redirect_uri = "http://localhost:5000/signin-oidc"
sign_up_sign_in_policy_id = "B2C_1_SUSI"
reset_password_policy_id = "B2C_1_SSPR"
edit_profile_policy_id = "B2C_1_SiPe"
api_url = "http://localhost:5001/api/values"
api_scopes = "https://fabrikamb2c.onmicrosoft.com/helloapi/demo.read  https://fabrikamb2c.onmicrosoft.com/helloapi/demo.write"
ui_locales = ["en-US", "fr"]

[webapp]
listen = "127.0.0.1:5000"
session_idle_timeout = "30m"

[webapi]
audience = "93733604-cc77-4a3c-a604-87084dd55348"
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adb2c.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		content   string
		missing   bool
		wantIsErr error
		check     func(*testing.T, *assert.Assertions, *Config)
	}{
		{
			name:    "valid",
			content: testFile,
			check: func(t *testing.T, assert *assert.Assertions, c *Config) {
				assert.Equal("debug", c.LogLevel)
				assert.Equal(oidc.ClientSecret("file-secret"), c.AzureAdB2C.ClientSecret)
				assert.Equal("https://fabrikamb2c.b2clogin.com/tfp/fabrikamb2c.onmicrosoft.com/B2C_1_SUSI/v2.0/", c.AzureAdB2C.SignInAuthority())
				assert.Equal([]string{
					"https://fabrikamb2c.onmicrosoft.com/helloapi/demo.read",
					"https://fabrikamb2c.onmicrosoft.com/helloapi/demo.write",
				}, c.AzureAdB2C.Scopes())
				assert.Equal([]string{"B2C_1_SSPR", "B2C_1_SiPe"}, c.AzureAdB2C.Policies())
				locales := c.AzureAdB2C.Locales()
				require.Len(t, locales, 2)
				assert.Equal("en-US", locales[0].String())
				assert.Equal("fr", locales[1].String())
				assert.Equal("127.0.0.1:5000", c.WebApp.Listen)
				assert.Equal(30*time.Minute, c.WebApp.SessionIdleTimeout())
				assert.Equal(10*time.Minute, c.WebApp.StateExpiry())
				assert.Equal(DefaultWebApiListen, c.WebApi.Listen)
				assert.Equal(c.AzureAdB2C.SignInAuthority(), c.WebApiAuthority())
				assert.NoError(c.ValidateWebApp())
				assert.NoError(c.ValidateWebApi())
			},
		},
		{
			name:    "defaults",
			content: `[azure_ad_b2c]` + "\n" + `client_id = "id"`,
			check: func(t *testing.T, assert *assert.Assertions, c *Config) {
				assert.Equal(DefaultLogLevel, c.LogLevel)
				assert.Equal(DefaultWebAppListen, c.WebApp.Listen)
				assert.Equal(20*time.Minute, c.WebApp.SessionIdleTimeout())
				assert.Equal(10*time.Second, c.WebApp.Shutdown())
				assert.Equal([]oidc.Alg{oidc.RS256}, c.AzureAdB2C.Algs())
				assert.Error(c.ValidateWebApp())
				assert.Error(c.ValidateWebApi())
			},
		},
		{name: "missing", missing: true, wantIsErr: ErrNotFound},
		{name: "not-toml", content: "log_level = ", wantIsErr: ErrInvalidFile},
		{name: "unknown-key", content: "log_lvl = \"debug\"", wantIsErr: ErrInvalidFile},
		{name: "bad-level", content: "log_level = \"loud\"", wantIsErr: ErrInvalid},
		{name: "bad-duration", content: "[webapp]\nsession_idle_timeout = \"soon\"", wantIsErr: ErrInvalid},
		{name: "negative-duration", content: "[webapi]\nshutdown_timeout = \"-1s\"", wantIsErr: ErrInvalid},
		{name: "bad-url", content: "[azure_ad_b2c]\napi_url = \"ftp://api\"", wantIsErr: ErrInvalid},
		{name: "bad-locale", content: "[azure_ad_b2c]\nui_locales = [\"not a locale\"]", wantIsErr: ErrInvalid},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			path := filepath.Join(t.TempDir(), "missing.toml")
			if !tt.missing {
				path = writeFile(t, tt.content)
			}
			got, err := Load(path)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			tt.check(t, assert, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	c := DefaultConfig()
	c.LogLevel = "loud"
	c.AzureAdB2C.SigningAlgs = []string{"HS256"}
	c.WebApp.StateLifetime = "0s"
	err := c.Validate()
	require.Error(t, err)
	// every problem is reported
	assert.Contains(err.Error(), "log_level")
	assert.Contains(err.Error(), "signing_algs")
	assert.Contains(err.Error(), "state_lifetime")
}

func TestAzureAdB2C_PolicyAuthority(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		b      AzureAdB2C
		policy string
		want   string
	}{
		{
			name:   "derived",
			b:      AzureAdB2C{Instance: DefaultInstance, Tenant: "t.onmicrosoft.com", SignUpSignInPolicyId: "B2C_1_SUSI"},
			policy: "B2C_1_SSPR",
			want:   "https://login.microsoftonline.com/tfp/t.onmicrosoft.com/B2C_1_SSPR/v2.0/",
		},
		{
			name:   "explicit-default",
			b:      AzureAdB2C{Authority: "https://idp.example.com/B2C_1_SUSI/v2.0", SignUpSignInPolicyId: "B2C_1_SUSI"},
			policy: "B2C_1_SUSI",
			want:   "https://idp.example.com/B2C_1_SUSI/v2.0/",
		},
		{
			name:   "explicit-other",
			b:      AzureAdB2C{Authority: "https://idp.example.com/B2C_1_SUSI/v2.0/", SignUpSignInPolicyId: "B2C_1_SUSI"},
			policy: "B2C_1_SiPe",
			want:   "https://idp.example.com/B2C_1_SiPe/v2.0/",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.b.PolicyAuthority(tt.policy))
		})
	}
}

func TestResolve(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	path := writeFile(t, testFile)

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvClientSecret, "env-secret")
	t.Setenv(EnvClientId, "env-client")
	t.Setenv(EnvApiUrl, "https://api.example.com/api/values")

	got, err := Resolve("")
	require.NoError(err)
	assert.Equal(oidc.ClientSecret("env-secret"), got.AzureAdB2C.ClientSecret)
	assert.Equal("env-client", got.AzureAdB2C.ClientId)
	assert.Equal("https://api.example.com/api/values", got.AzureAdB2C.ApiUrl)
	assert.Equal("debug", got.LogLevel)

	// an explicit path wins over ADB2C_CONFIG
	other := writeFile(t, "log_level = \"warn\"")
	got, err = Resolve(other)
	require.NoError(err)
	assert.Equal("warn", got.LogLevel)
	assert.Equal("env-client", got.AzureAdB2C.ClientId)

	_, err = Resolve(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(err, ErrNotFound)
}

func TestResolve_noFile(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvClientId, "env-client")
	t.Setenv(EnvClientSecret, "")
	t.Setenv(EnvApiUrl, "")
	got, err := Resolve("")
	require.NoError(err)
	assert.Equal("env-client", got.AzureAdB2C.ClientId)
	assert.Equal(DefaultWebAppListen, got.WebApp.Listen)
}

func TestConfig_OIDCConfig(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	path := writeFile(t, testFile)
	c, err := Load(path)
	require.NoError(err)
	oc, err := c.OIDCConfig()
	require.NoError(err)
	assert.Equal(c.AzureAdB2C.SignInAuthority(), oc.Issuer)
	assert.Equal("B2C_1_SUSI", oc.DefaultPolicy)
	assert.True(oc.HasPolicy("b2c_1_sspr"))
	assert.Equal(c.AzureAdB2C.Scopes(), oc.Scopes)

	c.AzureAdB2C.ClientSecret = ""
	_, err = c.OIDCConfig()
	assert.ErrorIs(err, oidc.ErrInvalidParameter)
}
