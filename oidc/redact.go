// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "encoding/json"

// Redacted forms of the bearer secrets, used by String and MarshalJSON so a
// token never ends up in a log line or a rendered page by accident.
const (
	RedactedAccessToken  = "[REDACTED: access_token]"
	RedactedRefreshToken = "[REDACTED: refresh_token]"
)

// AccessToken is an oauth access_token
type AccessToken string

func (t AccessToken) String() string { return RedactedAccessToken }

func (t AccessToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedAccessToken) }

// RefreshToken is an oauth refresh_token.  Azure AD B2C refresh tokens are
// opaque to the relying party.
type RefreshToken string

func (t RefreshToken) String() string { return RedactedRefreshToken }

func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedRefreshToken) }
