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

package dyncfg

import (
	"errors"

	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
)

// readCells maps fdt lookup failures to the package error taxonomy, missing
// and short properties are both reported as *NotFoundError.
func readCells(blob []byte, node Node, name string, cells int) (uint64, error) {
	v, err := fdt.ReadCells(blob, int(node), name, cells)

	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, fdt.ErrNotFound), errors.Is(err, fdt.ErrBadValue):
		return 0, &NotFoundError{Name: name, Err: err}
	default:
		return 0, &StructuralError{Err: err}
	}
}

// DisableAuth reads the disable_auth property (1 cell) of the node returned
// by Init for the same blob.
//
// Any value other than 0 or 1 is rejected with a *DomainError.
func DisableAuth(blob []byte, node Node) (bool, error) {
	if err := checkNode(blob, node); err != nil {
		return false, err
	}

	v, err := readCells(blob, node, PropDisableAuth, 1)

	if err != nil {
		klog.Warningf("Read cell failed for `%s`: %v", PropDisableAuth, err)
		return false, err
	}

	if v != 0 && v != 1 {
		klog.Warningf("Invalid value for `%s` cell %d", PropDisableAuth, v)
		return false, &DomainError{Name: PropDisableAuth, Value: v}
	}

	klog.V(2).Infof("Dyn cfg: `%s` cell found with value = %d", PropDisableAuth, v)

	return v == 1, nil
}
