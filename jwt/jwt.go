// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// DefaultLeewaySeconds defines the amount of leeway that's used by default
// for validating the "nbf" (Not Before) and "exp" (Expiration Time) claims.
const DefaultLeewaySeconds = 150

// Validator validates JSON Web Tokens (JWT) by providing signature
// verification and claims set validation.
type Validator struct {
	keySets []KeySet
}

// NewValidator returns a Validator that uses the given KeySets to verify
// JWT signatures.  A token is accepted when any of them verifies it.
func NewValidator(keySets ...KeySet) (*Validator, error) {
	const op = "jwt.NewValidator"
	if len(keySets) == 0 {
		return nil, fmt.Errorf("%s: no key sets: %w", op, ErrInvalidParameter)
	}
	for _, ks := range keySets {
		if ks == nil {
			return nil, fmt.Errorf("%s: key set is nil: %w", op, ErrNilParameter)
		}
	}
	return &Validator{keySets: keySets}, nil
}

// Expected defines the expected claims values to assert when validating a
// JWT.  Empty fields aren't asserted.
type Expected struct {
	// Issuer must match the "iss" claim exactly.
	Issuer string

	// Subject must match the "sub" claim exactly.
	Subject string

	// ID must match the "jti" claim exactly.
	ID string

	// Audiences must contain at least one of the "aud" claim values.
	Audiences []string

	// SigningAlgorithms the token may be signed with.  Defaults to RS256.
	SigningAlgorithms []Alg

	// NotBeforeLeeway and ExpirationLeeway are added to the "nbf" and "exp"
	// checks.  Zero means DefaultLeewaySeconds, negative means none.
	NotBeforeLeeway  time.Duration
	ExpirationLeeway time.Duration

	// ClockSkewLeeway is allowed between "iat" and now.  Zero means
	// DefaultLeewaySeconds, negative means none.
	ClockSkewLeeway time.Duration

	// Now provides the current time.  Defaults to time.Now.
	Now func() time.Time
}

// Validate validates the JWT by verifying its signature with the
// Validator's key sets and asserting the expected claims.  The token must
// carry an "exp" claim.  On success it returns all of the token's claims.
// Supports the option:
//   - WithNormalizedAudiences
func (v *Validator) Validate(ctx context.Context, token string, expected Expected, opt ...Option) (map[string]interface{}, error) {
	const op = "Validator.Validate"
	if token == "" {
		return nil, fmt.Errorf("%s: token is empty: %w", op, ErrInvalidParameter)
	}
	opts := getValidateOpts(opt...)

	if err := validateSigningAlgorithm(token, expected.SigningAlgorithms); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		allClaims map[string]interface{}
		err       error
	)
	for _, ks := range v.keySets {
		if allClaims, err = ks.VerifySignature(ctx, token); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := registeredClaims(allClaims)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := time.Now
	if expected.Now != nil {
		now = expected.Now
	}
	if err := validateTimes(claims, now(), expected); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case expected.Issuer != "" && claims.Issuer != expected.Issuer:
		return nil, fmt.Errorf("%s: %q: %w", op, claims.Issuer, ErrInvalidIssuer)
	case expected.Subject != "" && claims.Subject != expected.Subject:
		return nil, fmt.Errorf("%s: %q: %w", op, claims.Subject, ErrInvalidSubject)
	case expected.ID != "" && claims.ID != expected.ID:
		return nil, fmt.Errorf("%s: %q: %w", op, claims.ID, ErrInvalidID)
	}
	if err := validateAudience(expected.Audiences, claims.Audience, opts.withNormalizedAudiences); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return allClaims, nil
}

// registeredClaims decodes the registered claims out of all the claims.
func registeredClaims(allClaims map[string]interface{}) (*jwt.Claims, error) {
	b, err := json.Marshal(allClaims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	var c jwt.Claims
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	return &c, nil
}

func leeway(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultLeewaySeconds * time.Second
	case d < 0:
		return 0
	}
	return d
}

func validateTimes(c *jwt.Claims, now time.Time, expected Expected) error {
	if c.Expiry == nil {
		return fmt.Errorf("no exp claim: %w", ErrExpired)
	}
	if now.After(c.Expiry.Time().Add(leeway(expected.ExpirationLeeway))) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Add(leeway(expected.NotBeforeLeeway)).Before(c.NotBefore.Time()) {
		return ErrNotYetValid
	}
	if c.IssuedAt != nil && now.Add(leeway(expected.ClockSkewLeeway)).Before(c.IssuedAt.Time()) {
		return ErrIssuedInFuture
	}
	return nil
}

// validateAudience returns an error if audClaim does not contain any audiences
// given by expectedAudiences.  Empty expectedAudiences skip the check.
func validateAudience(expectedAudiences, audClaim []string, normalize bool) error {
	if len(expectedAudiences) == 0 {
		return nil
	}
	for _, e := range expectedAudiences {
		if normalize {
			e = strings.TrimSuffix(e, "/")
		}
		for _, a := range audClaim {
			if e == a {
				return nil
			}
		}
	}
	return fmt.Errorf("%v not in %v: %w", audClaim, expectedAudiences, ErrInvalidAudience)
}

// validateSigningAlgorithm checks that the JWT is signed with one of the
// expected algorithms.  RS256 is expected when none are given.
func validateSigningAlgorithm(token string, expectedAlgorithms []Alg) error {
	if len(expectedAlgorithms) == 0 {
		expectedAlgorithms = []Alg{RS256}
	}
	if err := SupportedSigningAlgorithm(expectedAlgorithms...); err != nil {
		return err
	}
	algs := make([]jose.SignatureAlgorithm, 0, len(expectedAlgorithms))
	for _, a := range expectedAlgorithms {
		algs = append(algs, jose.SignatureAlgorithm(a))
	}
	jws, err := jose.ParseSigned(token, allAlgorithms())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	if len(jws.Signatures) != 1 {
		return fmt.Errorf("expected one signature: %w", ErrMalformedToken)
	}
	alg := jws.Signatures[0].Header.Algorithm
	for _, a := range algs {
		if string(a) == alg {
			return nil
		}
	}
	return fmt.Errorf("%q: %w", alg, ErrInvalidAlg)
}
