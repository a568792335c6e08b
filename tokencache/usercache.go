// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
)

const (
	cacheKeySuffix = "_TokenCache"
	stateKeySuffix = "_TokenCache_state"
)

// CacheKey is the session key of a user's serialized token cache.
func CacheKey(ownerUserId string) string { return ownerUserId + cacheKeySuffix }

// StateKey is the session key of a user's auxiliary round-trip state.
func StateKey(ownerUserId string) string { return ownerUserId + stateKeySuffix }

// Marshaler serializes token cache contents.
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler replaces token cache contents with a serialized form.  A nil or
// empty input must reset the contents to an empty cache.
type Unmarshaler interface {
	Unmarshal([]byte) error
}

// Contents is the in-memory token state a UserCache synchronizes with the
// session.  Implementations must be concurrently safe.
type Contents interface {
	Marshaler
	Unmarshaler
}

// UserCache holds the token state of one user for the duration of one
// request.  It synchronizes lazily with the session: Load replaces the
// contents with the persisted blob under the read side of the user's lock and
// Persist writes it back under the write side.  No lock is held between
// calls.
type UserCache struct {
	ownerUserId string
	store       session.Store
	locks       *Locks
	contents    Contents
	dirty       atomic.Bool
	logger      hclog.Logger
}

// NewUserCache creates a UserCache for the owner user id (the subject
// identifier, never the object id) and immediately loads it.  Supports the
// option:
//   - WithLogger
func NewUserCache(ctx context.Context, ownerUserId string, store session.Store, locks *Locks, contents Contents, opt ...Option) (*UserCache, error) {
	const op = "tokencache.NewUserCache"
	switch {
	case ownerUserId == "":
		return nil, fmt.Errorf("%s: owner user id is empty: %w", op, ErrInvalidParameter)
	case store == nil:
		return nil, fmt.Errorf("%s: session store is nil: %w", op, ErrNilParameter)
	case locks == nil:
		return nil, fmt.Errorf("%s: locks are nil: %w", op, ErrNilParameter)
	case contents == nil:
		return nil, fmt.Errorf("%s: contents are nil: %w", op, ErrNilParameter)
	}
	opts := getCacheOpts(opt...)
	c := &UserCache{
		ownerUserId: ownerUserId,
		store:       store,
		locks:       locks,
		contents:    contents,
		logger:      opts.withLogger.Named("tokencache"),
	}
	if err := c.Load(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// OwnerUserId returns the user the cache belongs to.
func (c *UserCache) OwnerUserId() string { return c.ownerUserId }

// Contents returns the cache's in-memory token state.
func (c *UserCache) Contents() Contents { return c.contents }

// MarkDirty records that the contents diverged from the persisted blob.
func (c *UserCache) MarkDirty() { c.dirty.Store(true) }

// HasUnpersistedChanges reports whether the contents changed since the last
// persist began.
func (c *UserCache) HasUnpersistedChanges() bool { return c.dirty.Load() }

// Load replaces the contents with the blob in the session and clears the
// dirty flag.  An absent blob is an empty cache, not an error.  A blob that
// can't be deserialized returns an error wrapping ErrCorruptCache.
func (c *UserCache) Load(ctx context.Context) error {
	const op = "UserCache.Load"
	release, err := c.locks.RLock(ctx, c.ownerUserId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	blob, ok := c.store.Get(CacheKey(c.ownerUserId))
	if !ok {
		blob = nil
	}
	if err := c.contents.Unmarshal(blob); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCorruptCache, err)
	}
	// the contents match the session again
	c.dirty.Store(false)
	c.logger.Trace("loaded", "owner", c.ownerUserId, "bytes", len(blob))
	return nil
}

// Persist serializes the contents into the session.  The dirty flag is
// cleared before serializing, so a mutation racing with the write re-dirties
// the cache and is caught by the next persist.  A failed persist leaves the
// cache dirty.
func (c *UserCache) Persist(ctx context.Context) error {
	const op = "UserCache.Persist"
	release, err := c.locks.Lock(ctx, c.ownerUserId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer release()

	c.dirty.Store(false)
	blob, err := c.contents.Marshal()
	if err != nil {
		c.dirty.Store(true)
		return fmt.Errorf("%s: unable to serialize cache: %w", op, err)
	}
	if err := c.store.Set(CacheKey(c.ownerUserId), blob); err != nil {
		c.dirty.Store(true)
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	c.logger.Trace("persisted", "owner", c.ownerUserId, "bytes", len(blob))
	return nil
}

// ReadState returns the user's auxiliary round-trip state under the read side
// of the user's lock.
func (c *UserCache) ReadState(ctx context.Context) (string, bool, error) {
	const op = "UserCache.ReadState"
	release, err := c.locks.RLock(ctx, c.ownerUserId)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	defer release()
	v, ok := c.store.GetString(StateKey(c.ownerUserId))
	return v, ok, nil
}

// WriteState stores the user's auxiliary round-trip state under the write
// side of the user's lock.  An empty value removes it.
func (c *UserCache) WriteState(ctx context.Context, v string) error {
	const op = "UserCache.WriteState"
	release, err := c.locks.Lock(ctx, c.ownerUserId)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer release()
	if v == "" {
		err = c.store.Delete(StateKey(c.ownerUserId))
	} else {
		err = c.store.SetString(StateKey(c.ownerUserId), v)
	}
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
	return nil
}
