// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package downstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	sdkHttp "github.com/mattruma/ADB2CWebAppWebApi/sdk/http"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	SecurePath   = "/secure"
	UnsecurePath = "/unsecure"
)

// call outcomes
const (
	outcomeSuccess      = "success"
	outcomeUnauthorized = "unauthorized"
	outcomeOtherStatus  = "other_status"
	outcomeTransient    = "transient_error"
)

// Response is a successful answer from the downstream API.
type Response struct {
	StatusCode int
	Body       string
}

// Caller calls the protected downstream API.  It never retries: a rejected
// or failed call is returned to the caller as is.
type Caller struct {
	baseURL     string
	client      *http.Client
	maxBodySize int64
	logger      hclog.Logger
	calls       *prometheus.CounterVec
}

// NewCaller creates a Caller for the API at apiBaseURL.  Supports the
// options:
//   - WithHTTPClient
//   - WithLogger
//   - WithRegisterer
//   - WithMaxBodySize
func NewCaller(apiBaseURL string, opt ...Option) (*Caller, error) {
	const op = "downstream.NewCaller"
	u, err := url.Parse(apiBaseURL)
	switch {
	case apiBaseURL == "":
		return nil, fmt.Errorf("%s: api base url is empty: %w", op, ErrInvalidParameter)
	case err != nil:
		return nil, fmt.Errorf("%s: api base url isn't a url: %w: %w", op, ErrInvalidParameter, err)
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		return nil, fmt.Errorf("%s: api base url must be an absolute http(s) url: %w", op, ErrInvalidParameter)
	}
	opts := getCallerOpts(opt...)
	client := opts.withHTTPClient
	if client == nil {
		if client, err = sdkHttp.NewClient(""); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	c := &Caller{
		baseURL:     strings.TrimSuffix(apiBaseURL, "/"),
		client:      client,
		maxBodySize: opts.withMaxBodySize,
		logger:      opts.withLogger.Named("downstream"),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adb2c",
			Name:      "downstream_calls_total",
			Help:      "Downstream API calls by outcome.",
		}, []string{"outcome"}),
	}
	if opts.withRegisterer != nil {
		if err := opts.withRegisterer.Register(c.calls); err != nil {
			return nil, fmt.Errorf("%s: unable to register metrics: %w", op, err)
		}
	}
	return c, nil
}

// GetSecured calls GET {base}/secure with the access token as a bearer
// credential.
func (c *Caller) GetSecured(ctx context.Context, accessToken oidc.AccessToken) (*Response, error) {
	const op = "Caller.GetSecured"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	return c.Call(ctx, accessToken, SecurePath)
}

// GetUnsecured calls GET {base}/unsecure without a credential.
func (c *Caller) GetUnsecured(ctx context.Context) (*Response, error) {
	return c.Call(ctx, "", UnsecurePath)
}

// Call issues GET {base}{path}, attaching the access token when it isn't
// empty.  Only a 200 answer is a *Response.  Any other status, other 2xx
// included, is a *CallError wrapping ErrUnauthorized (401) or
// ErrOtherStatus.  Transport failures wrap ErrTransient.
func (c *Caller) Call(ctx context.Context, accessToken oidc.AccessToken, path string) (*Response, error) {
	const op = "Caller.Call"
	target := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+string(accessToken))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.calls.WithLabelValues(outcomeTransient).Inc()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		c.calls.WithLabelValues(outcomeTransient).Inc()
		return nil, fmt.Errorf("%s: unable to read response: %w: %w", op, ErrTransient, err)
	}
	c.logger.Debug("called downstream api", "url", target, "status", resp.StatusCode, "bearer", accessToken != "")

	if resp.StatusCode == http.StatusOK {
		c.calls.WithLabelValues(outcomeSuccess).Inc()
		return &Response{StatusCode: resp.StatusCode, Body: string(body)}, nil
	}
	callErr := &CallError{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Method:     req.Method,
		URL:        target,
		Body:       string(body),
		Err:        ErrOtherStatus,
	}
	if resp.StatusCode == http.StatusUnauthorized {
		callErr.Err = ErrUnauthorized
		c.calls.WithLabelValues(outcomeUnauthorized).Inc()
	} else {
		c.calls.WithLabelValues(outcomeOtherStatus).Inc()
	}
	if c.logger.IsTrace() {
		c.logger.Trace("downstream api error", "error", callErr.Verbose())
	}
	return nil, callErr
}
