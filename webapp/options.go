// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"
)

// DefaultStateExpiry is how long a sign-in challenge stays redeemable.
const DefaultStateExpiry = 10 * time.Minute

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

// appOptions is the set of available options for App functions
type appOptions struct {
	withLogger      hclog.Logger
	withRegistry    *prometheus.Registry
	withStateExpiry time.Duration
	withUILocales   []language.Tag
}

// appDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func appDefaults() appOptions {
	return appOptions{
		withLogger:      hclog.NewNullLogger(),
		withStateExpiry: DefaultStateExpiry,
	}
}

// getAppOpts gets the app defaults and applies the opt overrides passed in
func getAppOpts(opt ...Option) appOptions {
	opts := appDefaults()
	ApplyOpts(&opts, opt...)
	if opts.withRegistry == nil {
		opts.withRegistry = prometheus.NewRegistry()
	}
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*appOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithRegistry provides the registry the app registers its metrics with and
// serves on /metrics.  Defaults to a new registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o interface{}) {
		if o, ok := o.(*appOptions); ok {
			o.withRegistry = r
		}
	}
}

// WithStateExpiry provides an optional sign-in challenge lifetime.
func WithStateExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*appOptions); ok && d > 0 {
			o.withStateExpiry = d
		}
	}
}

// WithUILocales provides optional languages for the provider's login UI.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*appOptions); ok {
			o.withUILocales = locales
		}
	}
}
