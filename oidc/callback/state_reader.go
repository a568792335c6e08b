// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
)

// StateReader defines an interface for finding and reading an oidc.State
// Implementations must be concurrently safe, since the reader will likely be
// used within a concurrent http.Handler
type StateReader interface {
	// Read an existing State entry.  The returned state's Id()
	// must match the stateID used to look it up. Implementations must be
	// concurrently safe, which likely means returning a deep copy.  A state is
	// one-time use, so implementations may forget it once it's read.
	Read(ctx context.Context, stateID string) (oidc.State, error)
}

// SingleStateReader implements the StateReader interface for a single state.
// It is concurrently safe.
type SingleStateReader struct {
	State oidc.State
}

// Read() will return it's single-state if the stateID matches it's Id(),
// otherwise it returns an error of oidc.ErrNotFound. It satisfies the
// StateReader interface.  Read() is concurrently safe.
func (s *SingleStateReader) Read(ctx context.Context, stateID string) (oidc.State, error) {
	if s.State == nil || s.State.Id() != stateID {
		return nil, oidc.ErrNotFound
	}
	return s.State, nil
}

// StateReaderFunc adapts a function to the StateReader interface.
type StateReaderFunc func(ctx context.Context, stateID string) (oidc.State, error)

// Read calls f(ctx, stateID).
func (f StateReaderFunc) Read(ctx context.Context, stateID string) (oidc.State, error) {
	return f(ctx, stateID)
}
