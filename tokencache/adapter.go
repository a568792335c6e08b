// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"fmt"
)

// AccessFunc is one access unit: the smallest read or write of the token
// state.  It reports whether it changed the contents.  It must not block on
// the network.
type AccessFunc func(ctx context.Context) (changed bool, err error)

// Accessor runs access units against a token cache.
type Accessor interface {
	Access(ctx context.Context, fn AccessFunc) error
}

// Adapter makes a UserCache behave like a write-through cache over the
// session: every access unit starts from freshly loaded state, and a unit
// that changes the contents is persisted before Access returns.
type Adapter struct {
	cache *UserCache
}

// ensure that Adapter implements the Accessor interface
var _ Accessor = (*Adapter)(nil)

// NewAdapter wraps the cache.
func NewAdapter(c *UserCache) (*Adapter, error) {
	const op = "tokencache.NewAdapter"
	if c == nil {
		return nil, fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	}
	return &Adapter{cache: c}, nil
}

// Cache returns the wrapped cache.
func (a *Adapter) Cache() *UserCache { return a.cache }

// Access loads the cache, runs fn, and persists the cache if it's dirty.
// Another request may have rotated the tokens since the last load, so the
// load is unconditional.  When fn fails nothing is persisted.
func (a *Adapter) Access(ctx context.Context, fn AccessFunc) error {
	const op = "Adapter.Access"
	if fn == nil {
		return fmt.Errorf("%s: access func is nil: %w", op, ErrNilParameter)
	}
	if err := a.cache.Load(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	changed, err := fn(ctx)
	if err != nil {
		return err
	}
	if changed {
		a.cache.MarkDirty()
	}
	if a.cache.HasUnpersistedChanges() {
		if err := a.cache.Persist(ctx); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}
