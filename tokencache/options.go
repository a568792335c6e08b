// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package tokencache

import "github.com/hashicorp/go-hclog"

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

// cacheOptions is the set of available options for UserCache functions
type cacheOptions struct {
	withLogger hclog.Logger
}

// cacheDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func cacheDefaults() cacheOptions {
	return cacheOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

// getCacheOpts gets the cache defaults and applies the opt overrides passed in
func getCacheOpts(opt ...Option) cacheOptions {
	opts := cacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: UserCache
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*cacheOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
