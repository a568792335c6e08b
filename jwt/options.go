// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

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

type validateOptions struct {
	withNormalizedAudiences bool
}

func validateDefaults() validateOptions {
	return validateOptions{}
}

// getValidateOpts gets the defaults and applies the opt overrides passed
// in.
func getValidateOpts(opt ...Option) validateOptions {
	opts := validateDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type keySetOptions struct {
	withCAPEM          string
	withExpectedIssuer string
	withLogger         hclog.Logger
}

func keySetDefaults() keySetOptions {
	return keySetOptions{
		withLogger: hclog.NewNullLogger(),
	}
}

func getKeySetOpts(opt ...Option) keySetOptions {
	opts := keySetDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNormalizedAudiences enables removing the trailing slash (if it exists)
// from all bound audiences before comparing against the aud claims:
// Validator.Validate
func WithNormalizedAudiences() Option {
	return func(o interface{}) {
		if v, ok := o.(*validateOptions); ok {
			v.withNormalizedAudiences = true
		}
	}
}

// WithCAPEM provides an optional CA certificate PEM the key set's http client
// trusts: NewOIDCDiscoveryKeySet and NewJSONWebKeySet
func WithCAPEM(caPEM string) Option {
	return func(o interface{}) {
		if v, ok := o.(*keySetOptions); ok {
			v.withCAPEM = caPEM
		}
	}
}

// WithExpectedIssuer provides an optional issuer for a discovery document
// served from another URL, like the tenant wide issuer of a B2C policy:
// NewOIDCDiscoveryKeySet
func WithExpectedIssuer(issuer string) Option {
	return func(o interface{}) {
		if v, ok := o.(*keySetOptions); ok {
			v.withExpectedIssuer = issuer
		}
	}
}

// WithLogger provides an optional logger for: NewOIDCDiscoveryKeySet and
// NewJSONWebKeySet
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if v, ok := o.(*keySetOptions); ok && l != nil {
			v.withLogger = l
		}
	}
}
