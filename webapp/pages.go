// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mattruma/ADB2CWebAppWebApi/acquire"
	"github.com/mattruma/ADB2CWebAppWebApi/downstream"
	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
	"github.com/mattruma/ADB2CWebAppWebApi/session"
)

// resultView is the authentication result shown on the secure page.
type resultView struct {
	AccessToken string
	IdToken     string
	TenantId    string
	Scopes      string
	Account     string
}

// optionsView is the relying party configuration shown on the secure page.
type optionsView struct {
	ClientId     string
	Authority    string
	RedirectUri  string
	ClientSecret oidc.ClientSecret
	ApiUrl       string
	ApiScopes    string
}

type secureView struct {
	view
	ResponsePayload string
	Result          *resultView
	Options         optionsView
}

type unsecureView struct {
	view
	ResponsePayload string
}

// secure acquires a token for the api scopes without user interaction and
// calls the API's secure action with it.  A user who isn't signed in is sent
// to sign in first.
func (a *App) secure(w http.ResponseWriter, r *http.Request) {
	uid, _, ok := a.user(r)
	if !ok {
		a.challenge(w, r, "", SecurePath)
		return
	}
	c := a.provider.Config()
	v := secureView{
		view: a.view(r, "Secure"),
		Options: optionsView{
			ClientId:     c.ClientId,
			Authority:    c.Issuer,
			RedirectUri:  c.RedirectUrl,
			ClientSecret: c.ClientSecret,
			ApiUrl:       a.settings.ApiUrl,
			ApiScopes:    strings.Join(a.settings.ApiScopes, " "),
		},
	}
	v.ResponsePayload, v.Result = a.callSecure(r.Context(), uid)
	a.render(w, http.StatusOK, "secure", v)
}

func (a *App) callSecure(ctx context.Context, uid string) (string, *resultView) {
	store, err := session.FromContext(ctx)
	if err != nil {
		return callFailedMessage(err), nil
	}
	cache, err := acquire.NewCache(ctx, uid, store, a.locks)
	if err != nil {
		return callFailedMessage(err), nil
	}
	result, err := a.client.AcquireTokenSilent(ctx, cache, uid, a.settings.ApiScopes)
	if err != nil {
		a.logger.Debug("silent token acquisition failed", "error", err)
		return acquireFailedMessage(err), nil
	}
	resp, err := a.caller.GetSecured(ctx, result.AccessToken)
	return responseMessage(resp, err), newResultView(result)
}

func (a *App) unsecure(w http.ResponseWriter, r *http.Request) {
	resp, err := a.caller.GetUnsecured(r.Context())
	a.render(w, http.StatusOK, "unsecure", unsecureView{
		view:            a.view(r, "Unsecure"),
		ResponsePayload: responseMessage(resp, err),
	})
}

func newResultView(r *acquire.Result) *resultView {
	scopes, _ := json.MarshalIndent(r.Scopes, "", "  ")
	account, _ := json.MarshalIndent(r.Account, "", "  ")
	return &resultView{
		AccessToken: string(r.AccessToken),
		IdToken:     string(r.IdToken),
		TenantId:    r.TenantID,
		Scopes:      string(scopes),
		Account:     string(account),
	}
}

// responseMessage is what the user is shown for a downstream call.
func responseMessage(resp *downstream.Response, err error) string {
	if err == nil {
		return resp.Body
	}
	var callErr *downstream.CallError
	switch {
	case errors.Is(err, downstream.ErrUnauthorized) && errors.As(err, &callErr):
		return "Please sign in again. " + callErr.Reason
	case errors.Is(err, downstream.ErrOtherStatus) && errors.As(err, &callErr):
		return fmt.Sprintf("Error calling API. StatusCode=%d", callErr.StatusCode)
	}
	return callFailedMessage(err)
}

// acquireFailedMessage is what the user is shown when no token could be
// acquired.
func acquireFailedMessage(err error) string {
	if errors.Is(err, acquire.ErrReauthRequired) {
		return "Session has expired. Please sign in again. " + err.Error()
	}
	return callFailedMessage(err)
}

func callFailedMessage(err error) string {
	return "Error calling API: " + err.Error()
}
