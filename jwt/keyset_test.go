// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClaims(t *testing.T, tp *oidc.TestProvider) jwt.Claims {
	t.Helper()
	now := time.Now()
	return jwt.Claims{
		Issuer:   tp.Issuer(),
		Subject:  "alice-object-id",
		Audience: jwt.Audience{"api-client-id"},
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestNewOIDCDiscoveryKeySet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		ks, err := NewOIDCDiscoveryKeySet(ctx, tp.Authority(""), WithCAPEM(tp.CACert()), WithExpectedIssuer(tp.Issuer()))
		require.NoError(err)

		_, priv := tp.SigningKeys()
		token := oidc.TestSignJWT(t, priv, testClaims(t, tp), map[string]interface{}{"scp": "demo.read"})
		claims, err := ks.VerifySignature(ctx, token)
		require.NoError(err)
		assert.Equal("demo.read", claims["scp"])
		assert.Equal("alice-object-id", claims["sub"])
	})
	t.Run("issuer-mismatch", func(t *testing.T) {
		_, err := NewOIDCDiscoveryKeySet(ctx, tp.Authority(""), WithCAPEM(tp.CACert()))
		require.Error(t, err)
	})
	t.Run("untrusted", func(t *testing.T) {
		_, err := NewOIDCDiscoveryKeySet(ctx, tp.Authority(""), WithExpectedIssuer(tp.Issuer()))
		require.Error(t, err)
	})
	t.Run("bad-ca", func(t *testing.T) {
		_, err := NewOIDCDiscoveryKeySet(ctx, tp.Authority(""), WithCAPEM("not a pem"))
		assert.ErrorIs(t, err, ErrInvalidCACert)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := NewOIDCDiscoveryKeySet(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
}

func TestJSONWebKeySet_VerifySignature(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)

	ks, err := NewJSONWebKeySet(ctx, tp.Addr()+"/"+oidc.TestDefaultPolicy+"/discovery/v2.0/keys", WithCAPEM(tp.CACert()))
	require.NoError(err)

	// issued access tokens carry the provider's key id
	tk := tp.IssueToken(t, "", "https://tenant.onmicrosoft.com/api/demo.read")
	claims, err := ks.VerifySignature(ctx, tk.AccessToken)
	require.NoError(err)
	assert.Equal("demo.read", claims["scp"])

	_, otherPriv := oidc.TestGenerateKeys(t)
	_, err = ks.VerifySignature(ctx, oidc.TestSignJWT(t, otherPriv, testClaims(t, tp), nil))
	assert.ErrorIs(err, ErrInvalidSignature)

	_, err = NewJSONWebKeySet(ctx, "")
	assert.ErrorIs(err, ErrInvalidParameter)
}

func TestStaticKeySet_VerifySignature(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)
	pub, priv := tp.SigningKeys()
	otherPub, otherPriv := oidc.TestGenerateKeys(t)

	tests := []struct {
		name      string
		keys      []string
		token     string
		wantIsErr error
	}{
		{
			name:  "valid",
			keys:  []string{pub},
			token: oidc.TestSignJWT(t, priv, testClaims(t, tp), nil),
		},
		{
			name:  "second-key",
			keys:  []string{otherPub, pub},
			token: oidc.TestSignJWT(t, priv, testClaims(t, tp), nil),
		},
		{
			name:      "unknown-key",
			keys:      []string{pub},
			token:     oidc.TestSignJWT(t, otherPriv, testClaims(t, tp), nil),
			wantIsErr: ErrInvalidSignature,
		},
		{
			name:      "malformed",
			keys:      []string{pub},
			token:     "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
			wantIsErr: ErrMalformedToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			ks, err := NewStaticKeySet(tt.keys)
			require.NoError(err)
			claims, err := ks.VerifySignature(ctx, tt.token)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal(tp.Issuer(), claims["iss"])
		})
	}
}

func TestNewStaticKeySet(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	_, err := NewStaticKeySet(nil)
	assert.ErrorIs(err, ErrInvalidParameter)
	_, err = NewStaticKeySet([]string{"not a key"})
	assert.ErrorIs(err, ErrInvalidParameter)
}

func TestParsePublicKeyPEM(t *testing.T) {
	t.Parallel()
	ecPub, _ := oidc.TestGenerateKeys(t)
	edPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(edPub)
	require.NoError(t, err)
	edPEM := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	caPEM := oidc.TestGenerateCA(t, []string{"localhost"})

	tests := []struct {
		name    string
		pem     string
		wantErr bool
	}{
		{name: "ecdsa", pem: ecPub},
		{name: "ed25519", pem: edPEM},
		{name: "certificate", pem: caPEM},
		{name: "not-pem", pem: "not a pem", wantErr: true},
		{name: "garbage-block", pem: strings.Replace(ecPub, "MF", "XX", 1), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := ParsePublicKeyPEM([]byte(tt.pem))
			if tt.wantErr {
				require.Error(err)
				assert.ErrorIs(err, ErrInvalidParameter)
				return
			}
			require.NoError(err)
			assert.NotNil(got)
		})
	}
}
