// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package webapp is the demo web application: it signs users in with the
// identity provider, keeps their tokens in a session-backed token cache and
// calls the downstream API on their behalf.
package webapp

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mattruma/ADB2CWebAppWebApi/acquire"
	"github.com/mattruma/ADB2CWebAppWebApi/downstream"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc/callback"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
	"github.com/mattruma/ADB2CWebAppWebApi/tokencache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"
)

const (
	SignInPath        = "/account/signin"
	SignOutPath       = "/account/signout"
	SignedOutPath     = "/account/signedout"
	ResetPasswordPath = "/account/resetpassword"
	EditProfilePath   = "/account/editprofile"
	CallbackPath      = "/signin-oidc"
	SecurePath        = "/secure"
	UnsecurePath      = "/unsecure"
	MetricsPath       = "/metrics"
)

// session keys of the signed in identity
const (
	userIdKey   = "uid"
	userNameKey = "name"
)

var ErrNilParameter = errors.New("nil parameter")

//go:embed templates/*.html
var templateFS embed.FS

// Settings are the relying party settings the provider's config doesn't
// carry.
type Settings struct {
	ResetPasswordPolicyId string
	EditProfilePolicyId   string
	ApiUrl                string
	ApiScopes             []string
}

// App is the web application's http.Handler.
type App struct {
	settings    Settings
	provider    *oidc.Provider
	client      *acquire.Client
	caller      *downstream.Caller
	sessions    *session.Manager
	locks       *tokencache.Locks
	pages       *template.Template
	handler     http.Handler
	stateExpiry time.Duration
	uiLocales   []language.Tag
	logger      hclog.Logger
}

// NewApp creates the web app.  Supports the options:
//   - WithLogger
//   - WithRegistry
//   - WithStateExpiry
//   - WithUILocales
func NewApp(s Settings, p *oidc.Provider, caller *downstream.Caller, sessions *session.Manager, opt ...Option) (*App, error) {
	const op = "webapp.NewApp"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, ErrNilParameter)
	case caller == nil:
		return nil, fmt.Errorf("%s: downstream caller is nil: %w", op, ErrNilParameter)
	case sessions == nil:
		return nil, fmt.Errorf("%s: session manager is nil: %w", op, ErrNilParameter)
	}
	opts := getAppOpts(opt...)
	logger := opts.withLogger.Named("webapp")

	client, err := acquire.NewClient(p,
		acquire.WithLogger(opts.withLogger),
		acquire.WithRegisterer(opts.withRegistry),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	pages, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse templates: %w", op, err)
	}
	a := &App{
		settings:    s,
		provider:    p,
		client:      client,
		caller:      caller,
		sessions:    sessions,
		locks:       tokencache.NewLocks(),
		pages:       pages,
		stateExpiry: opts.withStateExpiry,
		uiLocales:   opts.withUILocales,
		logger:      logger,
	}
	cb, err := callback.AuthCode(p, callback.StateReaderFunc(a.readChallenge), a.signedIn, a.signInFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.home)
	mux.HandleFunc("GET "+SignInPath, a.signIn)
	mux.HandleFunc("GET "+SignOutPath, a.signOut)
	mux.HandleFunc("GET "+SignedOutPath, a.signedOut)
	mux.HandleFunc("GET "+ResetPasswordPath, a.resetPassword)
	mux.HandleFunc("GET "+EditProfilePath, a.editProfile)
	mux.HandleFunc(CallbackPath, cb)
	mux.HandleFunc("GET "+SecurePath, a.secure)
	mux.HandleFunc("GET "+UnsecurePath, a.unsecure)
	mux.Handle("GET "+MetricsPath, promhttp.HandlerFor(opts.withRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	a.handler = sessions.Handler(mux)
	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Client returns the app's token acquisition client.
func (a *App) Client() *acquire.Client { return a.client }

// user returns the signed in user of the request's session.
func (a *App) user(r *http.Request) (uid, name string, ok bool) {
	store, err := session.FromContext(r.Context())
	if err != nil {
		return "", "", false
	}
	uid, ok = store.GetString(userIdKey)
	if !ok || uid == "" {
		return "", "", false
	}
	name, _ = store.GetString(userNameKey)
	return uid, name, true
}

// view is the data every page gets.
type view struct {
	Title string
	User  string
}

func (a *App) view(r *http.Request, title string) view {
	v := view{Title: title}
	if uid, name, ok := a.user(r); ok {
		v.User = name
		if v.User == "" {
			v.User = uid
		}
	}
	return v
}

func (a *App) render(w http.ResponseWriter, status int, page string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := a.pages.ExecuteTemplate(w, page+".html", data); err != nil {
		a.logger.Error("unable to render page", "page", page, "error", err)
	}
}

type errorView struct {
	view
	Message string
}

func (a *App) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	a.render(w, status, "error", errorView{view: a.view(r, "Error"), Message: msg})
}

func (a *App) home(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, "index", a.view(r, "Home"))
}
