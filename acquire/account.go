// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"fmt"
	"strings"

	"github.com/mattruma/ADB2CWebAppWebApi/oidc"
)

// Account describes a signed-in identity known to the cache.
type Account struct {
	// HomeAccountID has the B2C shape "<subject>-<policy>.<tenant id>".
	HomeAccountID string `json:"home_account_id"`
	Subject       string `json:"subject"`
	Username      string `json:"username,omitempty"`
	Name          string `json:"name,omitempty"`
	TenantID      string `json:"tenant_id"`
	Policy        string `json:"policy"`
	Authority     string `json:"authority,omitempty"`
}

// HomeAccountID builds the home account id of a subject signed in through
// a policy of a tenant.
func HomeAccountID(subject, policy, tenantID string) string {
	return strings.ToLower(subject+"-"+policy) + "." + tenantID
}

// owns reports whether the account belongs to the owner user id.  Several
// accounts may match an id; callers take the first.
func (a Account) owns(ownerUserId string) bool {
	return strings.HasPrefix(a.HomeAccountID, strings.ToLower(ownerUserId)+"-")
}

// idTokenClaims are the B2C id_token claims an Account is built from.
type idTokenClaims struct {
	Subject           string   `json:"sub"`
	Issuer            string   `json:"iss"`
	TenantID          string   `json:"tid"`
	Policy            string   `json:"tfp"`
	ACR               string   `json:"acr"`
	Name              string   `json:"name"`
	Emails            []string `json:"emails"`
	PreferredUsername string   `json:"preferred_username"`
}

// accountFromIdToken builds an Account from the unverified claims of an
// id_token the provider already verified.
func accountFromIdToken(idt oidc.IdToken) (Account, error) {
	const op = "acquire.accountFromIdToken"
	var c idTokenClaims
	if err := idt.Claims(&c); err != nil {
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}
	policy := c.Policy
	if policy == "" {
		// older B2C tenants report the policy in acr
		policy = c.ACR
	}
	switch {
	case c.Subject == "":
		return Account{}, fmt.Errorf("%s: id_token has no subject: %w", op, ErrInvalidParameter)
	case policy == "":
		return Account{}, fmt.Errorf("%s: id_token has no policy: %w", op, ErrInvalidParameter)
	}
	username := c.PreferredUsername
	if username == "" && len(c.Emails) > 0 {
		username = c.Emails[0]
	}
	return Account{
		HomeAccountID: HomeAccountID(c.Subject, policy, c.TenantID),
		Subject:       c.Subject,
		Username:      username,
		Name:          c.Name,
		TenantID:      c.TenantID,
		Policy:        policy,
		Authority:     c.Issuer,
	}, nil
}
