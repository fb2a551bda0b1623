// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build !debug
// +build !debug

package dyncfg

import (
	"k8s.io/klog"
)

// Release builds report a mismatching node handle to the caller, which
// receives ErrStaleNode.
func staleNode(got, want Node) {
	klog.Warningf("Node offset %#x does not point to %q (%#x)", int(got), Compatible, int(want))
}
