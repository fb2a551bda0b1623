// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !tamago
// +build !tamago

package stage

import (
	"errors"
)

// Map returns the memory holding the configuration blob, only available on
// bare metal (GOOS=tamago).
func Map(info DTBInfo) ([]byte, error) {
	return nil, errors.ErrUnsupported
}
