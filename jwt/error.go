// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")
	ErrUnsupportedAlg   = errors.New("unsupported signing algorithm")
	ErrInvalidCACert    = errors.New("invalid CA certificate")
	ErrMalformedToken   = errors.New("malformed jwt")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidAlg       = errors.New("unexpected signing algorithm")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrInvalidSubject   = errors.New("invalid subject")
	ErrInvalidID        = errors.New("invalid jwt id")
	ErrInvalidAudience  = errors.New("invalid audience")
	ErrExpired          = errors.New("token is expired")
	ErrNotYetValid      = errors.New("token is not valid yet")
	ErrIssuedInFuture   = errors.New("token issued in the future")
)
