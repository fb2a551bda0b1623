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

const (
	heapAddrCells = 2
	heapSizeCells = 1
)

// Heap describes the Mbed TLS heap shared between boot stages.
type Heap struct {
	// Addr is the heap start address (2 cells).
	Addr uint64
	// Size is the heap length in bytes (1 cell).
	Size uint32
}

// HeapInfo reads the shared Mbed TLS heap descriptor, it is meant to be used
// by the stage consuming a heap set up by an earlier one.
//
// Both properties must be present, on error the returned Heap is the zero
// value and must not be used.
func HeapInfo(blob []byte) (Heap, error) {
	root, err := Init(blob)

	if err != nil {
		klog.Errorf("Invalid TB_FW_CONFIG. Cannot retrieve Mbed TLS heap information from DTB")
		return Heap{}, err
	}

	addr, err := readCells(blob, root, PropMbedTLSHeapAddr, heapAddrCells)

	if err != nil {
		klog.Errorf("Error while reading %s from DTB: %v", PropMbedTLSHeapAddr, err)
		return Heap{}, err
	}

	size, err := readCells(blob, root, PropMbedTLSHeapSize, heapSizeCells)

	if err != nil {
		klog.Errorf("Error while reading %s from DTB: %v", PropMbedTLSHeapSize, err)
		return Heap{}, err
	}

	return Heap{
		Addr: addr,
		Size: uint32(size),
	}, nil
}

// SetHeapInfo writes the shared Mbed TLS heap descriptor in place, it is
// meant to be used by the stage setting up the heap.
//
// Both properties must already be reserved in the blob with their exact
// width. The two writes are independent and not rolled back: on error the
// address may have been committed while the size was not, callers must treat
// the whole descriptor as unreliable.
//
// The heap argument is consumed.
func SetHeapInfo(blob []byte, heap Heap) error {
	root, err := Init(blob)

	if err != nil {
		klog.Errorf("Invalid TB_FW_CONFIG loaded. Unable to get root node")
		return err
	}

	if err = writeCells(blob, root, PropMbedTLSHeapAddr, heapAddrCells, heap.Addr); err != nil {
		return err
	}

	return writeCells(blob, root, PropMbedTLSHeapSize, heapSizeCells, uint64(heap.Size))
}

func writeCells(blob []byte, node Node, name string, cells int, v uint64) error {
	err := fdt.WriteCellsInPlace(blob, int(node), name, cells, v)

	if err == nil {
		return nil
	}

	klog.Errorf("Unable to write DTB property %s: %v", name, err)

	if errors.Is(err, fdt.ErrBadStructure) {
		return &StructuralError{Err: err}
	}

	return &WriteError{Name: name, Err: err}
}
