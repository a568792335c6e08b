// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package downstream

import (
	"net/http"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxBodySize bounds how much of a response body is read.
const DefaultMaxBodySize = 1 << 20

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

// callerOptions is the set of available options for Caller functions
type callerOptions struct {
	withHTTPClient  *http.Client
	withLogger      hclog.Logger
	withRegisterer  prometheus.Registerer
	withMaxBodySize int64
}

// callerDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func callerDefaults() callerOptions {
	return callerOptions{
		withLogger:      hclog.NewNullLogger(),
		withMaxBodySize: DefaultMaxBodySize,
	}
}

// getCallerOpts gets the caller defaults and applies the opt overrides passed
// in
func getCallerOpts(opt ...Option) callerOptions {
	opts := callerDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithHTTPClient provides an optional http client for: NewCaller.  The
// default is a pooled client trusting the system CAs.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if o, ok := o.(*callerOptions); ok {
			o.withHTTPClient = c
		}
	}
}

// WithLogger provides an optional logger for: NewCaller
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*callerOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithRegisterer provides an optional prometheus registerer for the caller's
// metrics: NewCaller
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o interface{}) {
		if o, ok := o.(*callerOptions); ok {
			o.withRegisterer = r
		}
	}
}

// WithMaxBodySize provides an optional response body limit for: NewCaller
func WithMaxBodySize(n int64) Option {
	return func(o interface{}) {
		if o, ok := o.(*callerOptions); ok && n > 0 {
			o.withMaxBodySize = n
		}
	}
}
