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
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
	"github.com/transparency-dev/armored-witness-dyncfg/internal/testonly"
)

func TestParseHeader(t *testing.T) {
	blob := testonly.TBFWConfig(t, 0, 0, 0)

	h, err := fdt.ParseHeader(blob)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	if got, want := h.TotalSize, uint32(len(blob)); got != want {
		t.Errorf("Got totalsize %d, want %d", got, want)
	}
	if got, want := h.Version, uint32(fdt.Version); got != want {
		t.Errorf("Got version %d, want %d", got, want)
	}
}

func TestCheckHeader(t *testing.T) {
	// patch returns a copy of a valid blob with the header field at off set
	// to v.
	patch := func(t *testing.T, off int, v uint32) []byte {
		b := bytes.Clone(testonly.TBFWConfig(t, 0, 0, 0))
		binary.BigEndian.PutUint32(b[off:], v)
		return b
	}

	for _, test := range []struct {
		name    string
		blob    func(t *testing.T) []byte
		wantErr error
	}{
		{
			name: "valid",
			blob: func(t *testing.T) []byte { return testonly.TBFWConfig(t, 0, 0, 0) },
		}, {
			name: "trailing space",
			blob: func(t *testing.T) []byte {
				return append(bytes.Clone(testonly.TBFWConfig(t, 0, 0, 0)), make([]byte, 64)...)
			},
		}, {
			name:    "empty",
			blob:    func(t *testing.T) []byte { return nil },
			wantErr: fdt.ErrTruncated,
		}, {
			name:    "short",
			blob:    func(t *testing.T) []byte { return testonly.TBFWConfig(t, 0, 0, 0)[:fdt.HeaderSize-1] },
			wantErr: fdt.ErrTruncated,
		}, {
			name:    "bad magic",
			blob:    func(t *testing.T) []byte { return patch(t, 0, 0xdeadbeef) },
			wantErr: fdt.ErrBadMagic,
		}, {
			name:    "totalsize beyond buffer",
			blob:    func(t *testing.T) []byte { return patch(t, 4, 0x10000) },
			wantErr: fdt.ErrTruncated,
		}, {
			name:    "totalsize below header",
			blob:    func(t *testing.T) []byte { return patch(t, 4, 8) },
			wantErr: fdt.ErrBadLayout,
		}, {
			name:    "misaligned structure block",
			blob:    func(t *testing.T) []byte { return patch(t, 8, fdt.HeaderSize+18) },
			wantErr: fdt.ErrBadLayout,
		}, {
			name:    "strings block beyond totalsize",
			blob:    func(t *testing.T) []byte { return patch(t, 32, 0x1000) },
			wantErr: fdt.ErrBadLayout,
		}, {
			name:    "old version",
			blob:    func(t *testing.T) []byte { return patch(t, 20, 2) },
			wantErr: fdt.ErrBadVersion,
		}, {
			name:    "future version",
			blob:    func(t *testing.T) []byte { return patch(t, 24, 18) },
			wantErr: fdt.ErrBadVersion,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := fdt.CheckHeader(test.blob(t))
			if test.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckHeader: %v", err)
				}
				return
			}
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("Got %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestNodeOffsetByCompatible(t *testing.T) {
	blob, err := fdt.NewBuilder().
		BeginNode("").
		PropStrings("compatible", "vendor,board").
		BeginNode("a").
		PropStrings("compatible", "vendor,other", "arm,tb_fw").
		EndNode().
		BeginNode("b").
		PropStrings("compatible", "arm,tb_fw").
		EndNode().
		EndNode().
		Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	root, err := fdt.NodeOffsetByCompatible(blob, -1, "vendor,board")
	if err != nil {
		t.Fatalf("NodeOffsetByCompatible(root): %v", err)
	}
	if root != 0 {
		t.Errorf("Got root offset %#x, want 0", root)
	}

	first, err := fdt.NodeOffsetByCompatible(blob, -1, "arm,tb_fw")
	if err != nil {
		t.Fatalf("NodeOffsetByCompatible(first): %v", err)
	}

	second, err := fdt.NodeOffsetByCompatible(blob, first, "arm,tb_fw")
	if err != nil {
		t.Fatalf("NodeOffsetByCompatible(second): %v", err)
	}
	if second <= first {
		t.Errorf("Got second offset %#x, want > %#x", second, first)
	}

	if _, err := fdt.NodeOffsetByCompatible(blob, second, "arm,tb_fw"); !errors.Is(err, fdt.ErrNotFound) {
		t.Errorf("Got %v, want %v", err, fdt.ErrNotFound)
	}

	// a substring of a list entry must not match
	if _, err := fdt.NodeOffsetByCompatible(blob, -1, "arm,tb"); !errors.Is(err, fdt.ErrNotFound) {
		t.Errorf("Got %v, want %v", err, fdt.ErrNotFound)
	}
}

func TestNodeOffsetByCompatibleCorrupted(t *testing.T) {
	blob := bytes.Clone(testonly.TBFWConfig(t, 0, 0, 0))
	h, err := fdt.ParseHeader(blob)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	// replace the root FDT_BEGIN_NODE token with garbage
	binary.BigEndian.PutUint32(blob[h.OffDtStruct:], 0x42)

	if _, err := fdt.NodeOffsetByCompatible(blob, -1, "arm,tb_fw"); !errors.Is(err, fdt.ErrBadStructure) {
		t.Fatalf("Got %v, want %v", err, fdt.ErrBadStructure)
	}
}

func TestProperty(t *testing.T) {
	blob := testonly.Blob(t, "arm,tb_fw", testonly.Prop{Name: "blob", Value: []byte{1, 2, 3}})

	got, err := fdt.Property(blob, 0, "blob")
	if err != nil {
		t.Fatalf("Property: %v", err)
	}
	if diff := cmp.Diff(got, []byte{1, 2, 3}); diff != "" {
		t.Fatalf("Got diff: %s", diff)
	}

	if _, err := fdt.Property(blob, 0, "missing"); !errors.Is(err, fdt.ErrNotFound) {
		t.Errorf("Got %v, want %v", err, fdt.ErrNotFound)
	}

	// properties of subnodes are not properties of the root
	if _, err := fdt.Property(blob, 0, "fw-config"); !errors.Is(err, fdt.ErrNotFound) {
		t.Errorf("Got %v, want %v", err, fdt.ErrNotFound)
	}

	if _, err := fdt.Property(blob, 4, "blob"); !errors.Is(err, fdt.ErrBadStructure) {
		t.Errorf("Got %v, want %v", err, fdt.ErrBadStructure)
	}
}

func TestCorruptedProperty(t *testing.T) {
	// the root node is unnamed, so its first FDT_PROP token follows the
	// 8 byte FDT_BEGIN_NODE token: tag, len, nameoff
	const (
		propLen     = 12
		propNameOff = 16
	)

	for _, test := range []struct {
		name  string
		field int
		value uint32
	}{
		{
			name:  "length past structure block",
			field: propLen,
			value: 0x7ffffff0,
		}, {
			name:  "maximum length",
			field: propLen,
			value: 0xffffffff,
		}, {
			name:  "name offset past strings block",
			field: propNameOff,
			value: 0x7ffffff0,
		}, {
			name:  "maximum name offset",
			field: propNameOff,
			value: 0xffffffff,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			blob := bytes.Clone(testonly.TBFWConfig(t, 0, 0, 0))
			h, err := fdt.ParseHeader(blob)
			if err != nil {
				t.Fatalf("ParseHeader: %v", err)
			}
			binary.BigEndian.PutUint32(blob[int(h.OffDtStruct)+test.field:], test.value)

			if _, err := fdt.NodeOffsetByCompatible(blob, -1, "arm,tb_fw"); !errors.Is(err, fdt.ErrBadStructure) {
				t.Errorf("NodeOffsetByCompatible: got %v, want %v", err, fdt.ErrBadStructure)
			}
			if _, err := fdt.Property(blob, 0, "disable_auth"); !errors.Is(err, fdt.ErrBadStructure) {
				t.Errorf("Property: got %v, want %v", err, fdt.ErrBadStructure)
			}
			if _, err := fdt.ReadCells(blob, 0, "disable_auth", 1); !errors.Is(err, fdt.ErrBadStructure) {
				t.Errorf("ReadCells: got %v, want %v", err, fdt.ErrBadStructure)
			}
		})
	}
}
