// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattruma/ADB2CWebAppWebApi/internal/strutils"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/tokencache"
)

// accessTokenEntry is a cached access token for one account and scope set.
type accessTokenEntry struct {
	HomeAccountID string    `json:"home_account_id"`
	Secret        string    `json:"secret"`
	Scopes        []string  `json:"scopes,omitempty"`
	ExpiresOn     time.Time `json:"expires_on"`
}

// contentsJSON is the serialized form of Contents.  Token values are plain
// strings here since the oidc token types redact themselves when marshaled.
type contentsJSON struct {
	Accounts      []Account                   `json:"accounts,omitempty"`
	AccessTokens  map[string]accessTokenEntry `json:"access_tokens,omitempty"`
	RefreshTokens map[string]string           `json:"refresh_tokens,omitempty"`
	IdTokens      map[string]string           `json:"id_tokens,omitempty"`
}

// Contents is the token and account state of one user's cache.  Accounts
// keep the order they were added in.  Access tokens are keyed by home account
// id and scope set, refresh and id tokens by home account id.  It implements
// tokencache.Contents and is safe for concurrent use.
type Contents struct {
	mu            sync.RWMutex
	accounts      []Account
	accessTokens  map[string]accessTokenEntry
	refreshTokens map[string]string
	idTokens      map[string]string
}

// ensure that Contents implements the tokencache.Contents interface
var _ tokencache.Contents = (*Contents)(nil)

// NewContents returns empty contents.
func NewContents() *Contents {
	c := &Contents{}
	c.reset()
	return c
}

func (c *Contents) reset() {
	c.accounts = nil
	c.accessTokens = map[string]accessTokenEntry{}
	c.refreshTokens = map[string]string{}
	c.idTokens = map[string]string{}
}

// Marshal implements tokencache.Marshaler.
func (c *Contents) Marshal() ([]byte, error) {
	const op = "Contents.Marshal"
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, err := json.Marshal(contentsJSON{
		Accounts:      c.accounts,
		AccessTokens:  c.accessTokens,
		RefreshTokens: c.refreshTokens,
		IdTokens:      c.idTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}

// Unmarshal implements tokencache.Unmarshaler.  Empty input resets the
// contents.
func (c *Contents) Unmarshal(b []byte) error {
	const op = "Contents.Unmarshal"
	var in contentsJSON
	if len(b) > 0 {
		if err := json.Unmarshal(b, &in); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.accounts = in.Accounts
	for k, v := range in.AccessTokens {
		c.accessTokens[k] = v
	}
	for k, v := range in.RefreshTokens {
		c.refreshTokens[k] = v
	}
	for k, v := range in.IdTokens {
		c.idTokens[k] = v
	}
	return nil
}

// Accounts returns a copy of the cached accounts in the order they were
// added.
func (c *Contents) Accounts() []Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Account(nil), c.accounts...)
}

// account returns the first account owned by the user.
func (c *Contents) account(ownerUserId string) (Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.accounts {
		if a.owns(ownerUserId) {
			return a, true
		}
	}
	return Account{}, false
}

func (c *Contents) accessToken(homeAccountID string, scopes []string) (accessTokenEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	at, ok := c.accessTokens[accessTokenKey(homeAccountID, scopes)]
	return at, ok
}

func (c *Contents) refreshToken(homeAccountID string) oidc.RefreshToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return oidc.RefreshToken(c.refreshTokens[homeAccountID])
}

func (c *Contents) idToken(homeAccountID string) oidc.IdToken {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return oidc.IdToken(c.idTokens[homeAccountID])
}

// put stores the tokens of an account, replacing the account's previous
// entry in place.  The access token is stored under the requested scopes.
func (c *Contents) put(a Account, requested []string, t oidc.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	replaced := false
	for i := range c.accounts {
		if c.accounts[i].HomeAccountID == a.HomeAccountID {
			c.accounts[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		c.accounts = append(c.accounts, a)
	}
	if at := t.AccessToken(); at != "" {
		granted := t.Scopes()
		if len(granted) == 0 {
			granted = requested
		}
		c.accessTokens[accessTokenKey(a.HomeAccountID, requested)] = accessTokenEntry{
			HomeAccountID: a.HomeAccountID,
			Secret:        string(at),
			Scopes:        granted,
			ExpiresOn:     t.Expiry().UTC(),
		}
	}
	if rt := t.RefreshToken(); rt != "" {
		c.refreshTokens[a.HomeAccountID] = string(rt)
	}
	if idt := t.IdToken(); idt != "" {
		c.idTokens[a.HomeAccountID] = string(idt)
	}
}

// remove drops an account and all of its tokens.  It reports whether
// anything was removed.
func (c *Contents) remove(homeAccountID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	for i, a := range c.accounts {
		if a.HomeAccountID == homeAccountID {
			c.accounts = append(c.accounts[:i:i], c.accounts[i+1:]...)
			removed = true
			break
		}
	}
	for k, at := range c.accessTokens {
		if at.HomeAccountID == homeAccountID {
			delete(c.accessTokens, k)
			removed = true
		}
	}
	if _, ok := c.refreshTokens[homeAccountID]; ok {
		delete(c.refreshTokens, homeAccountID)
		removed = true
	}
	if _, ok := c.idTokens[homeAccountID]; ok {
		delete(c.idTokens, homeAccountID)
		removed = true
	}
	return removed
}

// scopeKey is the canonical form of a scope set: scopes compare case
// insensitively and regardless of order.
func scopeKey(scopes []string) string {
	lower := make([]string, 0, len(scopes))
	for _, s := range scopes {
		lower = append(lower, strings.ToLower(s))
	}
	return strings.Join(strutils.NormalizeScopes(lower), " ")
}

func accessTokenKey(homeAccountID string, scopes []string) string {
	return homeAccountID + "|" + scopeKey(scopes)
}
