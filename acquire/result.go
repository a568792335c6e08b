// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"time"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
)

// Result is a token ready to call the downstream API with.  It's transient
// and must never be persisted.
type Result struct {
	AccessToken oidc.AccessToken
	IdToken     oidc.IdToken
	TenantID    string
	Scopes      []string
	Account     Account
	ExpiresOn   time.Time

	// FromCache is false when the token was just refreshed.
	FromCache bool
}
