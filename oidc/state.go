// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"time"
)

// State basically represents one OIDC authentication flow for a user. It
// contains the data needed to uniquely represent that one-time flow across the
// multiple interactions needed to complete the OIDC flow the user is
// attempting.  Id() is passed throughout the OIDC interactions to uniquely
// identify the flow's state. The Id() and Nonce() cannot be equal, and
// will be used during the OIDC flow to prevent CSRF and replay attacks (see the
// OpenID Connect Core 1.0 for specifics).
type State interface {
	// Id is a unique identifier and an opaque value used to maintain state
	// between the oidc request and the callback. Id cannot equal the Nonce.
	Id() string

	// Nonce is a unique nonce and a string value used to associate a Client
	// session with an ID Token, and to mitigate replay attacks. Nonce cannot
	// equal the Id
	Nonce() string

	// Policy is the identity provider policy (user flow) the challenge was
	// issued for.  Empty means the provider's default policy.
	Policy() string

	// ReturnTo is the local path the user is sent to after the callback.
	ReturnTo() string

	// IsExpired returns true if the state has expired. Implementations should
	// supports a WithExpirySkew option and if none is provided it will use
	// a default skew (perhaps DefaultStateExpirySkew)
	IsExpired(opt ...Option) bool
}

// St represents the oidc state used for oidc flows.  The St.Id() is passed
// throughout the flows to uniquely identify a specific flow's state.
type St struct {
	//	id is a unique identifier and an opaque value used to maintain state
	//	between the oidc request and the callback
	id string

	// nonce is a unique nonce and suitable for use as an oidc nonce
	nonce string

	policy   string
	returnTo string

	// Expiration is the expiration time for the State
	expiration time.Time

	// nowFunc is an optional function that returns the current time
	nowFunc func() time.Time
}

// ensure that St implements the State interface
var _ State = (*St)(nil)

// NewState creates a new State (*St). Supports the options:
//   - WithNow
//   - WithPolicy
//   - WithReturnTo
func NewState(expireIn time.Duration, opt ...Option) (*St, error) {
	const op = "oidc.NewState"
	opts := getStOpts(opt...)
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	nonce, err := NewId("n")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's nonce: %w", op, err)
	}
	id, err := NewId("st")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a state's id: %w", op, err)
	}
	s := &St{
		id:       id,
		nonce:    nonce,
		policy:   opts.withPolicy,
		returnTo: opts.withReturnTo,
		nowFunc:  opts.withNowFunc,
	}
	s.expiration = s.now().Add(expireIn)
	return s, nil
}

func (s *St) Id() string       { return s.id }       // Id implements the State.Id() interface function
func (s *St) Nonce() string    { return s.nonce }    // Nonce implements the State.Nonce() interface function
func (s *St) Policy() string   { return s.policy }   // Policy implements the State.Policy() interface function
func (s *St) ReturnTo() string { return s.returnTo } // ReturnTo implements the State.ReturnTo() interface function

// DefaultStateExpirySkew defines a default time skew when checking a State's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// IsExpired returns true if the state has expired. Supports the
// WithExpirySkew option and if none is provided it will use the
// DefaultStateExpirySkew.
func (s *St) IsExpired(opt ...Option) bool {
	opts := getStOpts(opt...)
	return s.expiration.Before(s.now().Add(opts.withExpirySkew))
}

// now returns the current time using the optional nowFunc.
func (s *St) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc()
	}
	return time.Now() // fallback to this default
}

// stJSON is the wire form of a St, used to carry a pending challenge in a
// browser session between the redirect and the callback.
type stJSON struct {
	Id         string    `json:"id"`
	Nonce      string    `json:"nonce"`
	Policy     string    `json:"policy,omitempty"`
	ReturnTo   string    `json:"return_to,omitempty"`
	Expiration time.Time `json:"expiration"`
}

// MarshalJSON encodes the state, including its nonce.  Only store the result
// server side.
func (s *St) MarshalJSON() ([]byte, error) {
	return json.Marshal(stJSON{
		Id:         s.id,
		Nonce:      s.nonce,
		Policy:     s.policy,
		ReturnTo:   s.returnTo,
		Expiration: s.expiration,
	})
}

// UnmarshalJSON decodes a state previously encoded with MarshalJSON.
func (s *St) UnmarshalJSON(data []byte) error {
	const op = "St.UnmarshalJSON"
	var w stJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if w.Id == "" || w.Nonce == "" {
		return fmt.Errorf("%s: missing id or nonce: %w", op, ErrInvalidParameter)
	}
	s.id = w.Id
	s.nonce = w.Nonce
	s.policy = w.Policy
	s.returnTo = w.ReturnTo
	s.expiration = w.Expiration
	return nil
}

// stOptions is the set of available options for St functions
type stOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
	withPolicy     string
	withReturnTo   string
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withExpirySkew: DefaultStateExpirySkew,
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithReturnTo provides an optional local path to return to after the
// callback completes, for: State
func WithReturnTo(path string) Option {
	return func(o interface{}) {
		if v, ok := o.(*stOptions); ok {
			v.withReturnTo = path
		}
	}
}
