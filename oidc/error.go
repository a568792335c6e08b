// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter          = errors.New("invalid parameter")
	ErrNilParameter              = errors.New("nil parameter")
	ErrInvalidCACert             = errors.New("invalid CA certificate")
	ErrInvalidIssuer             = errors.New("invalid issuer")
	ErrIdGeneratorFailed         = errors.New("id generation failed")
	ErrExpiredState              = errors.New("state is expired")
	ErrResponseStateInvalid      = errors.New("oidc response state")
	ErrMissingIdToken            = errors.New("id_token is missing")
	ErrMissingAccessToken        = errors.New("access_token is missing")
	ErrIdTokenVerificationFailed = errors.New("id_token verification failed")
	ErrInvalidSignature          = errors.New("invalid signature")
	ErrInvalidAudience           = errors.New("invalid audience")
	ErrInvalidNonce              = errors.New("invalid nonce")
	ErrNotFound                  = errors.New("not found")
	ErrLoginFailed               = errors.New("login failed")
	ErrUserInfoFailed            = errors.New("user info failed")
	ErrUnsupportedAlg            = errors.New("unsupported signing algorithm")
	ErrUnknownPolicy             = errors.New("unknown policy")

	// ErrInvalidGrant is returned when the token endpoint rejects a refresh
	// token (expired, revoked or already rotated). Only interactive
	// authentication can recover from it.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrTokenEndpoint is returned for every other token endpoint failure,
	// including transport errors.
	ErrTokenEndpoint = errors.New("token endpoint request failed")
)
