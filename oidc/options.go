// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/text/language"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithExpirySkew provides an optional expiry skew duration for: Token, State
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenOptions:
			v.withExpirySkew = d
		case *stOptions:
			v.withExpirySkew = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is, for: Token, State
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *tokenOptions:
			v.withNowFunc = now
		case *stOptions:
			v.withNowFunc = now
		}
	}
}

// WithPolicy selects the identity provider policy (user flow) for: State,
// Provider.Refresh
func WithPolicy(policy string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *stOptions:
			v.withPolicy = policy
		case *refreshOptions:
			v.withPolicy = policy
		}
	}
}

// WithUILocales provides optional end-user preferred languages for the
// provider's login UI, for: Provider.AuthURL
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withUILocales = locales
		}
	}
}

// WithLoginHint provides an optional login_hint for: Provider.AuthURL
func WithLoginHint(hint string) Option {
	return func(o interface{}) {
		if v, ok := o.(*authURLOptions); ok {
			v.withLoginHint = hint
		}
	}
}

// WithLogger provides an optional logger for: Provider
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		if v, ok := o.(*providerOptions); ok {
			v.withLogger = l
		}
	}
}
