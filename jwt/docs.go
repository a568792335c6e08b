// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package jwt validates bearer JSON Web Tokens.

A Validator verifies a token's signature with one or more KeySets and then
asserts its registered claims against an Expected value.  Key sets come from
an OIDC discovery document (NewOIDCDiscoveryKeySet), a JWKS URL
(NewJSONWebKeySet) or local PEM public keys (NewStaticKeySet).
*/
package jwt
