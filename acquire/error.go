// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrCacheMiss is returned when the cache holds no account or no refresh
	// token for the user.  It's not a fault: the user simply has to sign in.
	ErrCacheMiss = errors.New("no cached account or token")

	// ErrReauthRequired is returned when only an interactive challenge can
	// produce a token.  It always wraps the reason: ErrCacheMiss or
	// ErrRefreshTokenInvalid.
	ErrReauthRequired = errors.New("interactive authentication required")

	// ErrRefreshTokenInvalid is returned when the identity provider rejected
	// the refresh token (expired, revoked or already rotated).
	ErrRefreshTokenInvalid = errors.New("refresh token rejected")

	// ErrTransient is returned when the identity provider couldn't be
	// reached or failed.  The cache is left as it was and the next attempt
	// may succeed.
	ErrTransient = errors.New("transient token acquisition failure")
)
