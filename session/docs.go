// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package session provides cookie keyed, in-memory sessions with an idle
// timeout.
package session
