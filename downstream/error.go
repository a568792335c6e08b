// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package downstream

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kylelemons/godebug/pretty"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnauthorized is returned when the API rejected the access token.
	// The caller should ask the user to sign in again; the call must not be
	// retried with the same token.
	ErrUnauthorized = errors.New("downstream api rejected the access token")

	// ErrOtherStatus is returned for any status other than 200 and 401.
	ErrOtherStatus = errors.New("downstream api returned an error status")

	// ErrTransient is returned when the API couldn't be reached.
	ErrTransient = errors.New("downstream api unreachable")
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

// CallError is a non-200 answer from the downstream API.  Err is
// ErrUnauthorized or ErrOtherStatus, for errors.Is.
type CallError struct {
	StatusCode int
	// Reason is the status line's reason phrase.
	Reason string
	Method string
	URL    string
	// Body holds the start of the response body.
	Body string
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("downstream: %s %s: HTTP %d %s: %s", e.Method, e.URL, e.StatusCode, e.Reason, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Verbose renders every field of the error for debugging.
func (e *CallError) Verbose() string {
	return prettyConf.Sprint(struct {
		StatusCode int
		Reason     string
		Method     string
		URL        string
		Body       string
		Err        string
	}{e.StatusCode, e.Reason, e.Method, e.URL, e.Body, e.Err.Error()})
}

// reasonPhrase returns the reason phrase of a response's status line.
func reasonPhrase(resp *http.Response) string {
	prefix := fmt.Sprintf("%d ", resp.StatusCode)
	if len(resp.Status) > len(prefix) && resp.Status[:len(prefix)] == prefix {
		return resp.Status[len(prefix):]
	}
	return http.StatusText(resp.StatusCode)
}
