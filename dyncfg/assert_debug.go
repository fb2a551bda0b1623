// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build debug
// +build debug

package dyncfg

import (
	"fmt"
)

// Debug builds treat a mismatching node handle as a programming error.
func staleNode(got, want Node) {
	panic(fmt.Sprintf("node offset %#x does not point to %q (%#x)", int(got), Compatible, int(want)))
}
