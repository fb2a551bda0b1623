// Copyright 2022 The Armored Witness OS authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dyncfg provides access to the trusted boot firmware configuration
// (TB_FW_CONFIG) passed between boot stages as a flattened device tree.
//
// The configuration is a caller-owned buffer, accessors are synchronous, hold
// no state and never resize it. Callers are responsible for serializing
// access to a given blob.
package dyncfg

import (
	"errors"

	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
)

const (
	// Compatible identifies the trusted boot firmware configuration node.
	Compatible = "arm,tb_fw"

	PropDisableAuth     = "disable_auth"
	PropMbedTLSHeapAddr = "mbedtls_heap_addr"
	PropMbedTLSHeapSize = "mbedtls_heap_size"
)

// Node is the structure block offset of the "arm,tb_fw" node, it is only
// meaningful for the blob it was obtained from.
type Node int

// Init validates the configuration blob and returns the offset of its
// "arm,tb_fw" node.
//
// A *StructuralError is returned when the blob is not a valid device tree, in
// which case no node lookup is performed, a *NotFoundError when the node is
// missing.
func Init(blob []byte) (Node, error) {
	if len(blob) == 0 {
		return -1, &StructuralError{Err: errors.New("empty blob")}
	}

	if err := fdt.CheckHeader(blob); err != nil {
		klog.Warningf("Invalid DTB file passed as TB_FW_CONFIG: %v", err)
		return -1, &StructuralError{Err: err}
	}

	off, err := fdt.NodeOffsetByCompatible(blob, -1, Compatible)

	switch {
	case errors.Is(err, fdt.ErrNotFound):
		klog.Warningf("The compatible property `%s` not found in the config", Compatible)
		return -1, &NotFoundError{Name: Compatible, Err: err}
	case err != nil:
		klog.Warningf("Invalid DTB file passed as TB_FW_CONFIG: %v", err)
		return -1, &StructuralError{Err: err}
	}

	klog.V(2).Infof("Dyn cfg: Found %q in the config", Compatible)

	return Node(off), nil
}

// checkNode enforces that node is the handle Init would return for blob.
func checkNode(blob []byte, node Node) error {
	n, err := Init(blob)

	if err != nil {
		return err
	}

	if n != node {
		staleNode(node, n)
		return ErrStaleNode
	}

	return nil
}
