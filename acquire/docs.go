// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
acquire obtains access tokens for a signed-in user without interaction.

A Client is shared by all requests.  Each request opens the user's Cache with
NewCache, which loads the token state from the session.  AcquireTokenSilent
then either returns a cached access token for exactly the requested scopes,
or redeems the user's refresh token once and writes the new tokens back
before returning.  Every read and write of the cache is one
tokencache.Accessor access unit, so no lock is held while the identity
provider is called.

When only an interactive sign-in can help, errors wrap ErrReauthRequired.
Failures reaching the identity provider wrap ErrTransient.
*/
package acquire
