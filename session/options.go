// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultCookieName is the session cookie used unless WithCookieName is
	// provided.
	DefaultCookieName = "adb2c_session"

	// DefaultIdleTimeout is how long a session survives without a request.
	DefaultIdleTimeout = 20 * time.Minute
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

// managerOptions is the set of available options for Manager functions
type managerOptions struct {
	withCookieName   string
	withSecureCookie bool
	withIdleTimeout  time.Duration
	withNowFunc      func() time.Time
	withLogger       hclog.Logger
}

// managerDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func managerDefaults() managerOptions {
	return managerOptions{
		withCookieName:  DefaultCookieName,
		withIdleTimeout: DefaultIdleTimeout,
		withNowFunc:     time.Now,
		withLogger:      hclog.NewNullLogger(),
	}
}

// getManagerOpts gets the manager defaults and applies the opt overrides
// passed in
func getManagerOpts(opt ...Option) managerOptions {
	opts := managerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithCookieName provides an optional session cookie name.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok {
			o.withSecureCookie = secure
		}
	}
}

// WithIdleTimeout provides an optional idle timeout for sessions.
func WithIdleTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && d > 0 {
			o.withIdleTimeout = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && now != nil {
			o.withNowFunc = now
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*managerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
