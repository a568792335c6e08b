// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for integrating with a policy based OIDC Provider (Azure AD
B2C style) using the authorization code flow.

Primary types provided by the package

* State: represents one OIDC authentication flow for a user.  It contains the
data needed to uniquely represent that one-time flow across the multiple
interactions needed to complete the OIDC flow the user is attempting, including
the provider policy it was started for.  All States contain an expiration for
the user's OIDC flow.

* Token: represents an OIDC id_token, as well as an Oauth2 access_token and
refresh_token (including the the access_token expiry)

* Config: provides the configuration for a typical 3-legged OIDC
authorization code flow (for example: client Id/Secret, redirectUrl, supported
signing algorithms, additional scopes requested, default and additional
policies, etc)

* Provider: provides integration with a provider using the typical
3-legged OIDC authorization code flow. The provider provides capabilities
like: generating an auth URL for a policy, exchanging codes for tokens,
redeeming refresh tokens, verifying tokens and building logout URLs.

* Alg: represents asymmetric signing algorithms

* TestProvider: an in-process provider for tests, serving a tenant with
several policies.

The oidc.callback package

The callback package includes the ability to create a http.HandlerFunc which can be used
for the 3rd leg of the OIDC flow where the authorization code is exchanged for
tokens.
*/
package oidc
