// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	pub, _ := oidc.TestGenerateKeys(t)
	ks, err := NewStaticKeySet([]string{pub})
	require.NoError(err)

	got, err := NewValidator(ks)
	require.NoError(err)
	assert.Len(got.keySets, 1)

	_, err = NewValidator()
	assert.ErrorIs(err, ErrInvalidParameter)
	_, err = NewValidator(ks, nil)
	assert.ErrorIs(err, ErrNilParameter)
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tp := oidc.StartTestProvider(t)
	pub, priv := tp.SigningKeys()
	_, otherPriv := oidc.TestGenerateKeys(t)
	ks, err := NewStaticKeySet([]string{pub})
	require.NoError(t, err)
	v, err := NewValidator(ks)
	require.NoError(t, err)

	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	sign := func(mutate func(c *jwt.Claims)) string {
		c := jwt.Claims{
			Issuer:    "https://login.example.com/tid/v2.0/",
			Subject:   "alice-object-id",
			ID:        "jti-1",
			Audience:  jwt.Audience{"api-client-id", "other"},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(future),
		}
		if mutate != nil {
			mutate(&c)
		}
		return oidc.TestSignJWT(t, priv, c, map[string]interface{}{"scp": "demo.read"})
	}
	base := Expected{
		Issuer:            "https://login.example.com/tid/v2.0/",
		Audiences:         []string{"api-client-id"},
		SigningAlgorithms: []Alg{ES256},
	}
	with := func(mutate func(e *Expected)) Expected {
		e := base
		mutate(&e)
		return e
	}

	tests := []struct {
		name      string
		token     string
		expected  Expected
		opts      []Option
		wantIsErr error
	}{
		{name: "valid", token: sign(nil), expected: base},
		{
			name:     "all-assertions",
			token:    sign(nil),
			expected: with(func(e *Expected) { e.Subject, e.ID = "alice-object-id", "jti-1" }),
		},
		{name: "no-audience-asserted", token: sign(nil), expected: with(func(e *Expected) { e.Audiences = nil })},
		{
			name:     "normalized-audience",
			token:    sign(nil),
			expected: with(func(e *Expected) { e.Audiences = []string{"api-client-id/"} }),
			opts:     []Option{WithNormalizedAudiences()},
		},
		{
			name:      "unnormalized-audience",
			token:     sign(nil),
			expected:  with(func(e *Expected) { e.Audiences = []string{"api-client-id/"} }),
			wantIsErr: ErrInvalidAudience,
		},
		{name: "wrong-issuer", token: sign(nil), expected: with(func(e *Expected) { e.Issuer = "https://evil/" }), wantIsErr: ErrInvalidIssuer},
		{name: "wrong-subject", token: sign(nil), expected: with(func(e *Expected) { e.Subject = "bob" }), wantIsErr: ErrInvalidSubject},
		{name: "wrong-id", token: sign(nil), expected: with(func(e *Expected) { e.ID = "jti-2" }), wantIsErr: ErrInvalidID},
		{name: "wrong-audience", token: sign(nil), expected: with(func(e *Expected) { e.Audiences = []string{"nope"} }), wantIsErr: ErrInvalidAudience},
		{name: "expired", token: sign(func(c *jwt.Claims) { c.Expiry = jwt.NewNumericDate(past) }), expected: base, wantIsErr: ErrExpired},
		{
			name:     "expired-within-leeway",
			token:    sign(func(c *jwt.Claims) { c.Expiry = jwt.NewNumericDate(now.Add(-time.Minute)) }),
			expected: base,
		},
		{
			name:      "expired-no-leeway",
			token:     sign(func(c *jwt.Claims) { c.Expiry = jwt.NewNumericDate(now.Add(-time.Minute)) }),
			expected:  with(func(e *Expected) { e.ExpirationLeeway = -1 }),
			wantIsErr: ErrExpired,
		},
		{name: "no-exp", token: sign(func(c *jwt.Claims) { c.Expiry = nil }), expected: base, wantIsErr: ErrExpired},
		{name: "not-yet-valid", token: sign(func(c *jwt.Claims) { c.NotBefore = jwt.NewNumericDate(future) }), expected: base, wantIsErr: ErrNotYetValid},
		{name: "issued-in-future", token: sign(func(c *jwt.Claims) { c.IssuedAt = jwt.NewNumericDate(future) }), expected: base, wantIsErr: ErrIssuedInFuture},
		{
			name:     "clock",
			token:    sign(nil),
			expected: with(func(e *Expected) { e.Now = func() time.Time { return future.Add(time.Hour) } }),
			// the token expired an hour before this clock's now
			wantIsErr: ErrExpired,
		},
		{name: "default-alg-rs256", token: sign(nil), expected: with(func(e *Expected) { e.SigningAlgorithms = nil }), wantIsErr: ErrInvalidAlg},
		{name: "unsupported-alg", token: sign(nil), expected: with(func(e *Expected) { e.SigningAlgorithms = []Alg{"none"} }), wantIsErr: ErrUnsupportedAlg},
		{name: "bad-signature", token: oidc.TestSignJWT(t, otherPriv, jwt.Claims{}, nil), expected: base, wantIsErr: ErrInvalidSignature},
		{name: "malformed", token: "not.a.jwt", expected: base, wantIsErr: ErrMalformedToken},
		{name: "empty", expected: base, wantIsErr: ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			claims, err := v.Validate(ctx, tt.token, tt.expected, tt.opts...)
			if tt.wantIsErr != nil {
				require.Error(err)
				assert.ErrorIs(err, tt.wantIsErr)
				return
			}
			require.NoError(err)
			assert.Equal("demo.read", claims["scp"])
		})
	}
}

func TestValidator_MultipleKeySets(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	pub1, _ := oidc.TestGenerateKeys(t)
	pub2, priv2 := oidc.TestGenerateKeys(t)
	ks1, err := NewStaticKeySet([]string{pub1})
	require.NoError(err)
	ks2, err := NewStaticKeySet([]string{pub2})
	require.NoError(err)
	v, err := NewValidator(ks1, ks2)
	require.NoError(err)

	token := oidc.TestSignJWT(t, priv2, jwt.Claims{Expiry: jwt.NewNumericDate(time.Now().Add(time.Hour))}, nil)
	_, err = v.Validate(ctx, token, Expected{SigningAlgorithms: []Alg{ES256}})
	assert.NoError(err)
}

func TestSupportedSigningAlgorithm(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.NoError(SupportedSigningAlgorithm(RS256, ES256, EdDSA))
	assert.ErrorIs(SupportedSigningAlgorithm(RS256, "HS256"), ErrUnsupportedAlg)
}
