// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidFile = errors.New("invalid config file")
	ErrInvalid     = errors.New("invalid config")
)
