// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package tokencache keeps a user's serialized token state in the session,
// loading it before every access and persisting it after every change under
// a per-user reader/writer lock.
package tokencache
