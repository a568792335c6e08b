// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package webapi is the demo downstream API: one action that requires a
// bearer token and one that doesn't.
package webapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/jwt"
)

const (
	SecureMessage   = "You called a SECURE action."
	UnsecureMessage = "You called an UNSECURE action."
)

var (
	ErrNilParameter = errors.New("nil parameter")

	// ErrMissingBearer is returned when a request carries no bearer token.
	ErrMissingBearer = errors.New("no bearer token")
)

// Validator validates a bearer token.  *jwt.Validator is a Validator.
type Validator interface {
	Validate(ctx context.Context, token string, expected jwt.Expected, opt ...jwt.Option) (map[string]interface{}, error)
}

// ensure that jwt.Validator implements the Validator interface
var _ Validator = (*jwt.Validator)(nil)

type claimsKey struct{}

// ClaimsFromContext returns the validated bearer token claims of a request.
func ClaimsFromContext(ctx context.Context) (map[string]interface{}, bool) {
	c, ok := ctx.Value(claimsKey{}).(map[string]interface{})
	return c, ok
}

// Server serves the values API.
type Server struct {
	mux       *http.ServeMux
	validator Validator
	expected  jwt.Expected
	logger    hclog.Logger
}

// NewServer creates the API.  Bearer tokens must satisfy expected.
// Supports the option:
//   - WithLogger
func NewServer(v Validator, expected jwt.Expected, opt ...Option) (*Server, error) {
	const op = "webapi.NewServer"
	if v == nil {
		return nil, fmt.Errorf("%s: validator is nil: %w", op, ErrNilParameter)
	}
	opts := getServerOpts(opt...)
	s := &Server{
		mux:       http.NewServeMux(),
		validator: v,
		expected:  expected,
		logger:    opts.withLogger.Named("webapi"),
	}
	s.mux.Handle("GET /api/values/secure", s.RequireBearer(http.HandlerFunc(s.secure)))
	s.mux.HandleFunc("GET /api/values/unsecure", s.unsecure)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) secure(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	s.logger.Debug("secure action", "sub", claims["sub"])
	writeText(w, http.StatusOK, SecureMessage)
}

func (s *Server) unsecure(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, UnsecureMessage)
}

// RequireBearer only lets requests with a valid bearer token through to
// next.  A request without a token gets a bare 401.  A request whose token
// fails validation gets a 401 whose body is "AuthenticationFailed: <reason>".
func (s *Server) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		claims, err := s.validator.Validate(r.Context(), token, s.expected)
		if err != nil {
			s.logger.Debug("bearer token rejected", "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeText(w, http.StatusUnauthorized, "AuthenticationFailed: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingBearer
	}
	return strings.TrimSpace(token), nil
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
