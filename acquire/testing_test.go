// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
	"github.com/mattruma/ADB2CWebAppWebApi/tokencache"
	"github.com/stretchr/testify/require"
)

const (
	testOwner    = "alice-object-id"
	testRedirect = "https://example.com/signin-oidc"
	testScope    = "https://tenant.onmicrosoft.com/api/demo.read"
	testSession  = "test-session"
)

// testEnv is one user's session shared by the requests of a test.
type testEnv struct {
	tp        *oidc.TestProvider
	provider  *oidc.Provider
	store     *session.MemoryStore
	locks     *tokencache.Locks
	sessionId string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t)
	p, err := oidc.NewProvider(tp.Config(t, testRedirect, oidc.WithScopes(testScope)))
	require.NoError(err)
	t.Cleanup(p.Done)
	return &testEnv{
		tp:        tp,
		provider:  p,
		store:     session.NewMemoryStore(),
		locks:     tokencache.NewLocks(),
		sessionId: testSession,
	}
}

// otherSession is the same user signed in from another browser.
func (e *testEnv) otherSession(sessionId string) *testEnv {
	return &testEnv{
		tp:        e.tp,
		provider:  e.provider,
		store:     session.NewMemoryStore(),
		locks:     e.locks,
		sessionId: sessionId,
	}
}

// cache starts a new request's view of the user's cache.
func (e *testEnv) cache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(context.Background(), testOwner, e.store, e.locks, WithSessionId(e.sessionId))
	require.NoError(t, err)
	return c
}

// token mints a token for the provider's subject.  A negative expiresIn
// yields an already expired access token, a zero one a token without an
// expiry.
func (e *testEnv) token(t *testing.T, policy string, expiresIn time.Duration, scopes ...string) *oidc.Tk {
	t.Helper()
	require := require.New(t)
	raw := e.tp.IssueToken(t, policy, scopes...)
	raw.Expiry = time.Time{}
	if expiresIn != 0 {
		raw.Expiry = time.Now().Add(expiresIn)
	}
	idt, ok := raw.Extra("id_token").(string)
	require.True(ok)
	tk, err := oidc.NewToken(oidc.IdToken(idt), raw)
	require.NoError(err)
	return tk
}

// signIn stores a token as the sign-in callback would.
func (e *testEnv) signIn(t *testing.T, c *Client, expiresIn time.Duration) *oidc.Tk {
	t.Helper()
	tk := e.token(t, "", expiresIn, testScope)
	_, err := c.AddToken(context.Background(), e.cache(t), tk, []string{testScope})
	require.NoError(t, err)
	return tk
}

// blob returns the user's persisted cache.
func (e *testEnv) blob() string {
	b, _ := e.store.Get(tokencache.CacheKey(testOwner))
	return string(b)
}

// testRefresher is a Refresher answering from a function.
type testRefresher struct {
	calls atomic.Int32
	fn    func(ctx context.Context, rt oidc.RefreshToken, opt ...oidc.Option) (*oidc.Tk, error)
}

func (r *testRefresher) Refresh(ctx context.Context, rt oidc.RefreshToken, opt ...oidc.Option) (*oidc.Tk, error) {
	r.calls.Add(1)
	return r.fn(ctx, rt, opt...)
}
