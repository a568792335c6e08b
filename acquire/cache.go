// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"fmt"

	"github.com/mattruma/ADB2CWebAppWebApi/sdk/id"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
	"github.com/mattruma/ADB2CWebAppWebApi/tokencache"
)

// Cache is one request's view of a user's token cache: the Contents behind a
// write-through tokencache.Accessor.
type Cache struct {
	ownerUserId string
	sessionId   string
	contents    *Contents
	user        *tokencache.UserCache
	accessor    tokencache.Accessor
}

// NewCache loads the user's token cache from the session store.  The
// returned Cache must not outlive the request.
//
// The cache is identified by the browser session it lives in: WithSessionId,
// else the session attached to ctx.  A cache with neither gets an identity of
// its own and shares nothing with other caches.  Supports the options:
//   - WithLogger
//   - WithSessionId
func NewCache(ctx context.Context, ownerUserId string, store session.Store, locks *tokencache.Locks, opt ...Option) (*Cache, error) {
	const op = "acquire.NewCache"
	opts := getCacheOpts(opt...)
	sessionId := opts.withSessionId
	if sessionId == "" {
		sessionId = session.IdFromContext(ctx)
	}
	if sessionId == "" {
		var err error
		if sessionId, err = id.New("cache"); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	contents := NewContents()
	uc, err := tokencache.NewUserCache(ctx, ownerUserId, store, locks, contents, tokencache.WithLogger(opts.withLogger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a, err := tokencache.NewAdapter(uc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{ownerUserId: ownerUserId, sessionId: sessionId, contents: contents, user: uc, accessor: a}, nil
}

// OwnerUserId returns the user the cache belongs to.
func (c *Cache) OwnerUserId() string { return c.ownerUserId }

// SessionId returns the browser session the cache is stored in.
func (c *Cache) SessionId() string { return c.sessionId }

// Contents returns the in-memory token state.  It reflects the session as of
// the last access.
func (c *Cache) Contents() *Contents { return c.contents }

// ReadState returns the pending sign-in challenge stored next to the cache.
func (c *Cache) ReadState(ctx context.Context) (string, bool, error) {
	return c.user.ReadState(ctx)
}

// WriteState stores the pending sign-in challenge.  An empty value removes
// it.
func (c *Cache) WriteState(ctx context.Context, v string) error {
	return c.user.WriteState(ctx, v)
}
