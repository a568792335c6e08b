// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultExpirySkew is how long before its expiry a cached access token is
// no longer handed out.
const DefaultExpirySkew = 5 * time.Minute

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

// clientOptions is the set of available options for Client functions
type clientOptions struct {
	withLogger     hclog.Logger
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
	withRegisterer prometheus.Registerer
}

// clientDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withLogger:     hclog.NewNullLogger(),
		withExpirySkew: DefaultExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getClientOpts gets the client defaults and applies the opt overrides passed
// in
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// cacheOptions is the set of available options for NewCache
type cacheOptions struct {
	withLogger    hclog.Logger
	withSessionId string
}

func cacheDefaults() cacheOptions {
	return cacheOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getCacheOpts(opt ...Option) cacheOptions {
	opts := cacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: NewClient and NewCache
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		switch v := o.(type) {
		case *clientOptions:
			v.withLogger = l
		case *cacheOptions:
			v.withLogger = l
		}
	}
}

// WithSessionId provides an optional session identity for: NewCache
func WithSessionId(sessionId string) Option {
	return func(o interface{}) {
		if o, ok := o.(*cacheOptions); ok {
			o.withSessionId = sessionId
		}
	}
}

// WithExpirySkew provides an optional expiry skew for: NewClient.  A cached
// access token expiring within the skew is refreshed.
func WithExpirySkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && d >= 0 {
			o.withExpirySkew = d
		}
	}
}

// WithNow provides an optional clock for: NewClient
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && now != nil {
			o.withNowFunc = now
		}
	}
}

// WithRegisterer provides an optional prometheus registerer for the client's
// metrics: NewClient.  Without it the metrics are collected but not
// registered.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withRegisterer = r
		}
	}
}
