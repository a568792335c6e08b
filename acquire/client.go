// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// Refresher redeems a refresh token at the identity provider's token
// endpoint.  *oidc.Provider is a Refresher.
type Refresher interface {
	Refresh(ctx context.Context, rt oidc.RefreshToken, opt ...oidc.Option) (*oidc.Tk, error)
}

// ensure that oidc.Provider implements the Refresher interface
var _ Refresher = (*oidc.Provider)(nil)

// Client acquires access tokens silently from a user's Cache, refreshing
// them when needed.  A Client is long lived and shared by all requests; each
// request brings its own Cache.
type Client struct {
	refresher    Refresher
	refreshes    singleflight.Group
	expirySkew   time.Duration
	now          func() time.Time
	logger       hclog.Logger
	acquisitions *prometheus.CounterVec
}

// NewClient creates a Client.  Supports the options:
//   - WithLogger
//   - WithExpirySkew
//   - WithNow
//   - WithRegisterer
func NewClient(r Refresher, opt ...Option) (*Client, error) {
	const op = "acquire.NewClient"
	if r == nil {
		return nil, fmt.Errorf("%s: refresher is nil: %w", op, ErrNilParameter)
	}
	opts := getClientOpts(opt...)
	c := &Client{
		refresher:    r,
		expirySkew:   opts.withExpirySkew,
		now:          opts.withNowFunc,
		logger:       opts.withLogger.Named("acquire"),
		acquisitions: newAcquisitionsCounter(),
	}
	if opts.withRegisterer != nil {
		if err := opts.withRegisterer.Register(c.acquisitions); err != nil {
			return nil, fmt.Errorf("%s: unable to register metrics: %w", op, err)
		}
	}
	return c, nil
}

// Accounts returns the accounts in the cache, in the order they were added.
func (c *Client) Accounts(ctx context.Context, cache *Cache) ([]Account, error) {
	const op = "Client.Accounts"
	if cache == nil {
		return nil, fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	}
	var accounts []Account
	err := cache.accessor.Access(ctx, func(context.Context) (bool, error) {
		accounts = cache.contents.Accounts()
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return accounts, nil
}

// AddToken stores the result of an interactive sign-in in the cache.  The
// access token is stored under the requested scopes.  The token's id_token
// must belong to the cache's owner.
func (c *Client) AddToken(ctx context.Context, cache *Cache, t oidc.Token, scopes []string) (Account, error) {
	const op = "Client.AddToken"
	switch {
	case cache == nil:
		return Account{}, fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	case t == nil:
		return Account{}, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	acct, err := accountFromIdToken(t.IdToken())
	if err != nil {
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	if !strings.EqualFold(acct.Subject, cache.ownerUserId) {
		return Account{}, fmt.Errorf("%s: token subject doesn't own the cache: %w", op, ErrInvalidParameter)
	}
	err = cache.accessor.Access(ctx, func(context.Context) (bool, error) {
		cache.contents.put(acct, scopes, t)
		return true, nil
	})
	if err != nil {
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Debug("added token", "home_account_id", acct.HomeAccountID, "policy", acct.Policy)
	return acct, nil
}

// RemoveAccount drops every account the user owns, with its tokens.
func (c *Client) RemoveAccount(ctx context.Context, cache *Cache, ownerUserId string) error {
	const op = "Client.RemoveAccount"
	switch {
	case cache == nil:
		return fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	case ownerUserId == "":
		return fmt.Errorf("%s: owner user id is empty: %w", op, ErrInvalidParameter)
	}
	err := cache.accessor.Access(ctx, func(context.Context) (bool, error) {
		changed := false
		for {
			acct, ok := cache.contents.account(ownerUserId)
			if !ok {
				return changed, nil
			}
			changed = cache.contents.remove(acct.HomeAccountID) || changed
		}
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AcquireTokenSilent returns an access token for exactly the requested
// scopes without user interaction.  A cached token that isn't about to
// expire is returned without any network call.  Otherwise the refresh token
// is redeemed once and the new tokens are written back to the cache before
// returning.
//
// Errors wrap ErrReauthRequired (with ErrCacheMiss or ErrRefreshTokenInvalid)
// when the user has to sign in again and ErrTransient when the identity
// provider failed.  In both cases the cache is left unchanged.
func (c *Client) AcquireTokenSilent(ctx context.Context, cache *Cache, ownerUserId string, scopes []string) (*Result, error) {
	const op = "Client.AcquireTokenSilent"
	switch {
	case cache == nil:
		return nil, fmt.Errorf("%s: cache is nil: %w", op, ErrNilParameter)
	case ownerUserId == "":
		return nil, fmt.Errorf("%s: owner user id is empty: %w", op, ErrInvalidParameter)
	case len(scopes) == 0:
		return nil, fmt.Errorf("%s: no scopes requested: %w", op, ErrInvalidParameter)
	}

	r, acct, _, err := c.lookup(ctx, cache, ownerUserId, scopes)
	switch {
	case err != nil:
		c.observe(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	case r != nil:
		c.acquisitions.WithLabelValues(outcomeCacheHit).Inc()
		c.logger.Trace("access token served from cache", "home_account_id", acct.HomeAccountID)
		return r, nil
	}

	// concurrent refreshes of one session's cache for the same account and
	// scopes share one round trip.  Other sessions of the user hold their own
	// refresh tokens.
	v, err, shared := c.refreshes.Do(refreshKey(cache.sessionId, acct.HomeAccountID, scopes), func() (interface{}, error) {
		return c.refresh(ctx, cache, ownerUserId, scopes)
	})
	if err != nil {
		c.observe(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r = v.(*Result)
	if r.FromCache {
		c.acquisitions.WithLabelValues(outcomeCacheHit).Inc()
	} else {
		c.acquisitions.WithLabelValues(outcomeRefreshed).Inc()
	}
	c.logger.Debug("access token acquired", "home_account_id", acct.HomeAccountID, "refreshed", !r.FromCache, "shared", shared)
	return r, nil
}

// lookup reads the cache in one access unit.  It returns a Result when a
// usable access token is cached.  Otherwise it returns the account and the
// refresh token to redeem, or an error wrapping ErrCacheMiss when there's
// nothing to refresh with.
func (c *Client) lookup(ctx context.Context, cache *Cache, ownerUserId string, scopes []string) (*Result, Account, oidc.RefreshToken, error) {
	const op = "Client.lookup"
	var (
		r    *Result
		acct Account
		rt   oidc.RefreshToken
		miss bool
	)
	err := cache.accessor.Access(ctx, func(context.Context) (bool, error) {
		var ok bool
		acct, ok = cache.contents.account(ownerUserId)
		if !ok {
			miss = true
			return false, nil
		}
		if at, ok := cache.contents.accessToken(acct.HomeAccountID, scopes); ok && !c.expired(at.ExpiresOn) {
			r = &Result{
				AccessToken: oidc.AccessToken(at.Secret),
				IdToken:     cache.contents.idToken(acct.HomeAccountID),
				TenantID:    acct.TenantID,
				Scopes:      append([]string(nil), at.Scopes...),
				Account:     acct,
				ExpiresOn:   at.ExpiresOn,
				FromCache:   true,
			}
			return false, nil
		}
		rt = cache.contents.refreshToken(acct.HomeAccountID)
		miss = rt == ""
		return false, nil
	})
	switch {
	case err != nil:
		return nil, Account{}, "", fmt.Errorf("%s: %w", op, err)
	case miss:
		return nil, acct, "", fmt.Errorf("%s: %w: %w", op, ErrReauthRequired, ErrCacheMiss)
	}
	return r, acct, rt, nil
}

// refresh redeems the user's refresh token and writes the new tokens back in
// a separate access unit.  No lock is held during the round trip.
func (c *Client) refresh(ctx context.Context, cache *Cache, ownerUserId string, scopes []string) (*Result, error) {
	const op = "Client.refresh"
	// another request may have refreshed while this one waited
	r, acct, rt, err := c.lookup(ctx, cache, ownerUserId, scopes)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case r != nil:
		return r, nil
	}

	tk, err := c.refresher.Refresh(ctx, rt, oidc.WithPolicy(acct.Policy))
	switch {
	case errors.Is(err, oidc.ErrInvalidGrant):
		return nil, fmt.Errorf("%s: %w: %w: %w", op, ErrReauthRequired, ErrRefreshTokenInvalid, err)
	case err != nil:
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}

	err = cache.accessor.Access(ctx, func(context.Context) (bool, error) {
		cache.contents.put(acct, scopes, tk)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	scp := tk.Scopes()
	if len(scp) == 0 {
		scp = append([]string(nil), scopes...)
	}
	return &Result{
		AccessToken: tk.AccessToken(),
		IdToken:     tk.IdToken(),
		TenantID:    acct.TenantID,
		Scopes:      scp,
		Account:     acct,
		ExpiresOn:   tk.Expiry(),
	}, nil
}

// refreshKey identifies a refresh in flight.
func refreshKey(sessionId, homeAccountID string, scopes []string) string {
	return sessionId + "|" + accessTokenKey(homeAccountID, scopes)
}

// expired reports whether an access token is within the skew of its expiry.
// A token without a known expiry is never served from the cache.
func (c *Client) expired(expiresOn time.Time) bool {
	if expiresOn.IsZero() {
		return true
	}
	return expiresOn.Before(c.now().Add(c.expirySkew))
}

func (c *Client) observe(err error) {
	switch {
	case errors.Is(err, ErrReauthRequired):
		c.acquisitions.WithLabelValues(outcomeReauthRequired).Inc()
	case errors.Is(err, ErrTransient):
		c.acquisitions.WithLabelValues(outcomeTransientError).Inc()
	}
}
