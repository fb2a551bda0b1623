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

package fdt_test

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
	"github.com/transparency-dev/armored-witness-dyncfg/internal/testonly"
)

func cellsBlob(t *testing.T) []byte {
	t.Helper()
	return testonly.Blob(t, "arm,tb_fw",
		testonly.U32("one", 0x11223344),
		testonly.U64("two", 0x0102030405060708),
		testonly.Prop{Name: "short", Value: []byte{1, 2}},
		testonly.Prop{Name: "long", Value: []byte{0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3}},
	)
}

func TestReadCells(t *testing.T) {
	blob := cellsBlob(t)

	for _, test := range []struct {
		name    string
		prop    string
		cells   int
		want    uint64
		wantErr error
	}{
		{
			name:  "one cell",
			prop:  "one",
			cells: 1,
			want:  0x11223344,
		}, {
			name:  "two cells",
			prop:  "two",
			cells: 2,
			want:  0x0102030405060708,
		}, {
			name:    "first cell of two",
			prop:    "two",
			cells:   1,
			wantErr: fdt.ErrBadValue,
		}, {
			name:    "longer property",
			prop:    "long",
			cells:   2,
			wantErr: fdt.ErrBadValue,
		}, {
			name:    "short property",
			prop:    "short",
			cells:   1,
			wantErr: fdt.ErrBadValue,
		}, {
			name:    "too few cells",
			prop:    "one",
			cells:   2,
			wantErr: fdt.ErrBadValue,
		}, {
			name:    "missing",
			prop:    "missing",
			cells:   1,
			wantErr: fdt.ErrNotFound,
		}, {
			name:    "unsupported cells",
			prop:    "long",
			cells:   3,
			wantErr: fdt.ErrBadCells,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			got, err := fdt.ReadCells(blob, 0, test.prop, test.cells)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Got %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadCells: %v", err)
			}
			if got != test.want {
				t.Fatalf("Got %#x, want %#x", got, test.want)
			}
		})
	}
}

func TestWriteCellsInPlace(t *testing.T) {
	for _, test := range []struct {
		name    string
		prop    string
		cells   int
		value   uint64
		wantErr error
	}{
		{
			name:  "one cell",
			prop:  "one",
			cells: 1,
			value: 0xcafebabe,
		}, {
			name:  "two cells",
			prop:  "two",
			cells: 2,
			value: 0xffffffff00000001,
		}, {
			name:    "value overflow",
			prop:    "one",
			cells:   1,
			value:   math.MaxUint32 + 1,
			wantErr: fdt.ErrValueRange,
		}, {
			name:    "narrower property",
			prop:    "one",
			cells:   2,
			value:   1,
			wantErr: fdt.ErrNoSpace,
		}, {
			name:    "wider property",
			prop:    "long",
			cells:   2,
			value:   1,
			wantErr: fdt.ErrNoSpace,
		}, {
			name:    "missing",
			prop:    "missing",
			cells:   1,
			value:   1,
			wantErr: fdt.ErrNotFound,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			blob := cellsBlob(t)
			orig := bytes.Clone(blob)

			err := fdt.WriteCellsInPlace(blob, 0, test.prop, test.cells, test.value)
			if got, want := len(blob), len(orig); got != want {
				t.Fatalf("Blob length changed from %d to %d", want, got)
			}

			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Got %v, want %v", err, test.wantErr)
				}
				if !bytes.Equal(blob, orig) {
					t.Fatal("Failed write modified the blob")
				}
				return
			}
			if err != nil {
				t.Fatalf("WriteCellsInPlace: %v", err)
			}

			got, err := fdt.ReadCells(blob, 0, test.prop, test.cells)
			if err != nil {
				t.Fatalf("ReadCells: %v", err)
			}
			if got != test.value {
				t.Fatalf("Got %#x, want %#x", got, test.value)
			}

			if err := fdt.CheckHeader(blob); err != nil {
				t.Fatalf("CheckHeader after write: %v", err)
			}

			// only the property value may differ
			diff := 0
			for i := range blob {
				if blob[i] != orig[i] {
					diff++
				}
			}
			if limit := test.cells * fdt.CellSize; diff > limit {
				t.Fatalf("Write modified %d bytes, want at most %d", diff, limit)
			}
		})
	}
}
