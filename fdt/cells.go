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

package fdt

import (
	"encoding/binary"
	"fmt"
	"math"
)

func checkCells(cells int) error {
	if cells != 1 && cells != 2 {
		return fmt.Errorf("%w (%d)", ErrBadCells, cells)
	}

	return nil
}

// ReadCells reads a 1 or 2 cell value from the named property of a node, the
// most significant cell comes first. The property must be at least as long as
// the requested number of cells.
func ReadCells(blob []byte, node int, name string, cells int) (uint64, error) {
	if err := checkCells(cells); err != nil {
		return 0, err
	}

	val, err := Property(blob, node, name)

	if err != nil {
		return 0, err
	}

	if len(val) != cells*CellSize {
		return 0, fmt.Errorf("%w: %q has %d bytes, want %d cells", ErrBadValue, name, len(val), cells)
	}

	v := uint64(binary.BigEndian.Uint32(val[0:4]))

	if cells == 2 {
		v = v<<32 | uint64(binary.BigEndian.Uint32(val[4:8]))
	}

	return v, nil
}

// WriteCellsInPlace overwrites the value of the named property of a node with
// a 1 or 2 cell value. The property must already exist with exactly the
// requested width, the blob is never resized.
//
// The value is consumed by the write, callers must not rely on any other copy
// of it being representative of what ends up in the blob.
func WriteCellsInPlace(blob []byte, node int, name string, cells int, v uint64) error {
	if err := checkCells(cells); err != nil {
		return err
	}

	if cells == 1 && v > math.MaxUint32 {
		return fmt.Errorf("%w: %#x into %q", ErrValueRange, v, name)
	}

	val, err := Property(blob, node, name)

	if err != nil {
		return err
	}

	if len(val) != cells*CellSize {
		return fmt.Errorf("%w: %q has %d bytes, want %d cells", ErrNoSpace, name, len(val), cells)
	}

	switch cells {
	case 1:
		binary.BigEndian.PutUint32(val, uint32(v))
	case 2:
		binary.BigEndian.PutUint64(val, v)
	}

	return nil
}
