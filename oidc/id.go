// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"

	"github.com/mattruma/ADB2CWebAppWebApi/sdk/id"
)

// NewId generates a ID with an optional prefix. The ID generated is suitable
// for a State Id or Nonce
func NewId(optionalPrefix string) (string, error) {
	const op = "oidc.NewId"
	v, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", op, ErrIdGeneratorFailed, err)
	}
	return v, nil
}
