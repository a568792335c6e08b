// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mattruma/ADB2CWebAppWebApi/acquire"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc/callback"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
)

// B2C reports "forgot your password?" on the sign-in page with this code.
const forgotPasswordCode = "AADB2C90118"

func (a *App) signIn(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.user(r); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.challenge(w, r, "", "/")
}

func (a *App) resetPassword(w http.ResponseWriter, r *http.Request) {
	if a.settings.ResetPasswordPolicyId == "" {
		a.renderError(w, r, http.StatusNotFound, "Password reset isn't configured.")
		return
	}
	a.challenge(w, r, a.settings.ResetPasswordPolicyId, "/")
}

func (a *App) editProfile(w http.ResponseWriter, r *http.Request) {
	if a.settings.EditProfilePolicyId == "" {
		a.renderError(w, r, http.StatusNotFound, "Profile editing isn't configured.")
		return
	}
	a.challenge(w, r, a.settings.EditProfilePolicyId, "/")
}

// signOut drops the user's tokens and session, then sends the browser to the
// provider's logout endpoint, which returns it to the signed out page.
func (a *App) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if uid, _, ok := a.user(r); ok {
		if err := a.removeAccount(ctx, uid); err != nil {
			a.logger.Warn("unable to remove account", "error", err)
		}
	}
	a.sessions.Destroy(w, r)

	signedOut := a.absoluteURL(SignedOutPath)
	endSession, err := a.provider.EndSessionURL("", signedOut, "")
	if err != nil {
		a.logger.Debug("no end session endpoint", "error", err)
		http.Redirect(w, r, SignedOutPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, endSession, http.StatusFound)
}

func (a *App) signedOut(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := a.user(r); ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	a.render(w, http.StatusOK, "signedout", a.view(r, "Signed out"))
}

func (a *App) removeAccount(ctx context.Context, uid string) error {
	store, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	cache, err := acquire.NewCache(ctx, uid, store, a.locks)
	if err != nil {
		return err
	}
	return a.client.RemoveAccount(ctx, cache, uid)
}

// challenge starts an interactive sign-in with the policy.  The pending
// State is kept in the session next to the token cache of the challenge
// owner until the callback redeems it.
func (a *App) challenge(w http.ResponseWriter, r *http.Request, policy, returnTo string) {
	ctx := r.Context()
	if err := a.startChallenge(ctx, w, r, policy, returnTo); err != nil {
		a.logger.Error("unable to start sign-in", "policy", policy, "error", err)
		a.renderError(w, r, http.StatusInternalServerError, "Unable to start sign-in.")
	}
}

func (a *App) startChallenge(ctx context.Context, w http.ResponseWriter, r *http.Request, policy, returnTo string) error {
	const op = "App.startChallenge"
	cache, err := a.challengeCache(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	st, err := oidc.NewState(a.stateExpiry, oidc.WithPolicy(policy), oidc.WithReturnTo(returnTo))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	authURL, err := a.provider.AuthURL(ctx, st, oidc.WithUILocales(a.uiLocales...))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	blob, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := cache.WriteState(ctx, string(blob)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.Redirect(w, r, authURL, http.StatusFound)
	return nil
}

// challengeCache returns the token cache the pending challenge is stored
// with: the signed in user's, or the session's own before sign-in.
func (a *App) challengeCache(ctx context.Context) (*acquire.Cache, error) {
	store, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	owner, ok := store.GetString(userIdKey)
	if !ok || owner == "" {
		owner = session.IdFromContext(ctx)
	}
	return acquire.NewCache(ctx, owner, store, a.locks)
}

// readChallenge is the callback's StateReader.  A challenge is redeemable
// once.
func (a *App) readChallenge(ctx context.Context, stateId string) (oidc.State, error) {
	const op = "App.readChallenge"
	cache, err := a.challengeCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v, ok, err := cache.ReadState(ctx)
	switch {
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case !ok:
		return nil, nil
	}
	var st oidc.St
	if err := json.Unmarshal([]byte(v), &st); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if st.Id() != stateId {
		return nil, fmt.Errorf("%s: %w", op, oidc.ErrNotFound)
	}
	if err := cache.WriteState(ctx, ""); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}

// signedIn is the callback's success response: the tokens go into the
// user's cache and the user's identity into the session.
func (a *App) signedIn(state oidc.State, t oidc.Token, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var claims struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
	}
	if err := t.IdToken().Claims(&claims); err != nil || claims.Subject == "" {
		a.logger.Error("id_token has no subject", "error", err)
		a.renderError(w, r, http.StatusBadGateway, "Sign in failed: the id_token has no subject.")
		return
	}
	store, err := session.FromContext(ctx)
	if err != nil {
		a.renderError(w, r, http.StatusInternalServerError, "Sign in failed: "+err.Error())
		return
	}
	cache, err := acquire.NewCache(ctx, claims.Subject, store, a.locks)
	if err == nil {
		_, err = a.client.AddToken(ctx, cache, t, a.settings.ApiScopes)
	}
	if err != nil {
		a.logger.Error("unable to cache tokens", "error", err)
		a.renderError(w, r, http.StatusInternalServerError, "Sign in failed: "+err.Error())
		return
	}
	_ = store.SetString(userIdKey, claims.Subject)
	_ = store.SetString(userNameKey, claims.Name)
	a.logger.Debug("signed in", "policy", state.Policy())

	returnTo := state.ReturnTo()
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") {
		returnTo = "/"
	}
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// signInFailed is the callback's error response.
func (a *App) signInFailed(state string, respErr *callback.AuthenErrorResponse, e error, w http.ResponseWriter, r *http.Request) {
	if respErr != nil {
		switch {
		case strings.Contains(respErr.Description, forgotPasswordCode):
			http.Redirect(w, r, ResetPasswordPath, http.StatusFound)
		case respErr.Error == "access_denied":
			http.Redirect(w, r, "/", http.StatusFound)
		default:
			a.renderError(w, r, http.StatusBadRequest, fmt.Sprintf("Sign in failed: %s %s", respErr.Error, respErr.Description))
		}
		return
	}
	a.logger.Error("sign in callback failed", "error", e)
	status := http.StatusInternalServerError
	if errors.Is(e, oidc.ErrNotFound) || errors.Is(e, oidc.ErrExpiredState) || errors.Is(e, oidc.ErrResponseStateInvalid) {
		status = http.StatusBadRequest
	}
	a.renderError(w, r, status, "Sign in failed: "+e.Error())
}

// absoluteURL resolves path against the redirect URI.
func (a *App) absoluteURL(path string) string {
	u, err := url.Parse(a.provider.Config().RedirectUrl)
	if err != nil {
		return path
	}
	return u.ResolveReference(&url.URL{Path: path}).String()
}
