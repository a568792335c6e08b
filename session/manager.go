// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/sdk/id"
)

// Manager keeps one MemoryStore per browser session, keyed by a session
// cookie.  The cookie carries no expiry, so a session ends with the browser
// session or after the idle timeout, whichever comes first.
type Manager struct {
	cookieName   string
	secureCookie bool
	idleTimeout  time.Duration
	now          func() time.Time
	logger       hclog.Logger

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	store      *MemoryStore
	lastAccess time.Time
}

// NewManager creates a Manager.  Supports the options:
//   - WithCookieName
//   - WithSecureCookie
//   - WithIdleTimeout
//   - WithNow
//   - WithLogger
func NewManager(opt ...Option) *Manager {
	opts := getManagerOpts(opt...)
	return &Manager{
		cookieName:   opts.withCookieName,
		secureCookie: opts.withSecureCookie,
		idleTimeout:  opts.withIdleTimeout,
		now:          opts.withNowFunc,
		logger:       opts.withLogger.Named("session"),
		sessions:     map[string]*entry{},
	}
}

// Handler attaches the request's session to its context, starting a new
// session when the request has none (or only an expired one).
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionId string
		if c, err := r.Cookie(m.cookieName); err == nil {
			sessionId = c.Value
		}
		store, ok := m.lookup(sessionId)
		if !ok {
			var err error
			sessionId, store, err = m.start()
			if err != nil {
				m.logger.Error("unable to start session", "error", err)
				http.Error(w, "unable to start session", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    sessionId,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.secureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sessionId, store)))
	})
}

// Destroy ends the request's session and expires its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) {
	if sessionId := IdFromContext(r.Context()); sessionId != "" {
		m.mu.Lock()
		delete(m.sessions, sessionId)
		m.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// lookup returns the live session for sessionId and records the access.
func (m *Manager) lookup(sessionId string) (*MemoryStore, bool) {
	if sessionId == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionId]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(e.lastAccess) > m.idleTimeout {
		delete(m.sessions, sessionId)
		return nil, false
	}
	e.lastAccess = now
	return e.store, true
}

// start creates a new session, sweeping idle sessions first.
func (m *Manager) start() (string, *MemoryStore, error) {
	const op = "Manager.start"
	sessionId, err := id.New("sess")
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	store := NewMemoryStore()

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.sessions {
		if now.Sub(e.lastAccess) > m.idleTimeout {
			delete(m.sessions, k)
		}
	}
	m.sessions[sessionId] = &entry{store: store, lastAccess: now}
	m.logger.Trace("session started", "sessions", len(m.sessions))
	return sessionId, store, nil
}

type ctxKey struct{}

type ctxValue struct {
	id    string
	store Store
}

// NewContext returns a copy of ctx carrying the session.
func NewContext(ctx context.Context, sessionId string, s Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, ctxValue{id: sessionId, store: s})
}

// FromContext returns the session attached by Manager.Handler or NewContext.
func FromContext(ctx context.Context) (Store, error) {
	const op = "session.FromContext"
	v, ok := ctx.Value(ctxKey{}).(ctxValue)
	if !ok || v.store == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSession)
	}
	return v.store, nil
}

// IdFromContext returns the session id attached to ctx, or "".
func IdFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(ctxValue)
	return v.id
}
