// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestApplyOpts(t *testing.T) {
	// ApplyOpts testing is covered by other tests but we do have just more
	// more test to add here.
	// Let's make sure we don't panic on nil options
	anonymousOpts := struct {
		Names []string
	}{
		nil,
	}
	ApplyOpts(anonymousOpts, nil)
}

func Test_WithExpirySkew(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getTokenOpts(WithExpirySkew(time.Minute))
	testOpts := tokenDefaults()
	testOpts.withExpirySkew = time.Minute
	assert.Equal(testOpts, opts)

	stOpts := getStOpts(WithExpirySkew(time.Minute))
	assert.Equal(time.Minute, stOpts.withExpirySkew)
}

func Test_WithNow(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	now := func() time.Time { return time.Unix(0, 0) }
	opts := getTokenOpts(WithNow(now))
	assert.NotNil(opts.withNowFunc)
	assert.Equal(time.Unix(0, 0), opts.withNowFunc())

	opts = getTokenOpts(WithNow(nil))
	assert.Nil(opts.withNowFunc)
}

func Test_WithPolicy(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	assert.Equal("B2C_1_reset", getStOpts(WithPolicy("B2C_1_reset")).withPolicy)
	assert.Equal("B2C_1_reset", getRefreshOpts(WithPolicy("B2C_1_reset")).withPolicy)
}

func Test_WithUILocales(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getAuthURLOpts(WithUILocales(language.English, language.Spanish), WithLoginHint("alice@example.com"))
	assert.Equal([]language.Tag{language.English, language.Spanish}, opts.withUILocales)
	assert.Equal("alice@example.com", opts.withLoginHint)
}

func Test_WithLogger(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	l := hclog.New(&hclog.LoggerOptions{Name: "test"})
	assert.Equal(l, getProviderOpts(WithLogger(l)).withLogger)
	assert.NotNil(getProviderOpts(WithLogger(nil)).withLogger)
}

func Test_ConfigOptions(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	opts := getConfigOpts(
		WithScopes("a", "b", "a", " "),
		WithAudiences("aud"),
		WithProviderCA("ca"),
		WithExpectedIssuer("https://iss/"),
		WithDefaultPolicy("B2C_1_susi"),
		WithPolicies("B2C_1_reset", "B2C_1_edit"),
	)
	testOpts := configDefaults()
	testOpts.withScopes = []string{"a", "b"}
	testOpts.withAudiences = []string{"aud"}
	testOpts.withProviderCA = "ca"
	testOpts.withExpectedIssuer = "https://iss/"
	testOpts.withDefaultPolicy = "B2C_1_susi"
	testOpts.withPolicies = []string{"B2C_1_reset", "B2C_1_edit"}
	assert.Equal(testOpts, opts)
}
