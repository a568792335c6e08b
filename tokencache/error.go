// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// ErrCorruptCache is returned when a persisted cache can't be
	// deserialized.
	ErrCorruptCache = errors.New("corrupt token cache")

	// ErrLockUnavailable is returned when a per-user lock can't be acquired
	// before the request's context is done.  It's fatal to the request only.
	ErrLockUnavailable = errors.New("token cache lock unavailable")

	// ErrStore is returned when the session store rejects a write.
	ErrStore = errors.New("session store write failed")
)
