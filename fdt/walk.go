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
	"bytes"
	"encoding/binary"
	"fmt"
)

// blockView bounds the structure and strings blocks of a validated blob.
type blockView struct {
	blob []byte

	// structure block [structStart, structEnd)
	structStart int
	structEnd   int

	// strings block [stringsStart, stringsEnd)
	stringsStart int
	stringsEnd   int
}

// token is a single decoded structure block token, offsets are relative to
// the start of the structure block.
type token struct {
	tag  uint32
	off  int
	next int

	// node name (tokenBeginNode) or property name (tokenProp)
	name string
	// property value, aliasing the underlying blob (tokenProp)
	value []byte
}

func newBlockView(blob []byte) (*blockView, error) {
	h, err := ParseHeader(blob)

	if err != nil {
		return nil, err
	}

	return &blockView{
		blob:         blob,
		structStart:  int(h.OffDtStruct),
		structEnd:    int(h.OffDtStruct) + int(h.structSize()),
		stringsStart: int(h.OffDtStrings),
		stringsEnd:   int(h.OffDtStrings) + int(h.SizeDtStrings),
	}, nil
}

func align(off int) int {
	return (off + 3) &^ 3
}

func (v *blockView) u32(off int) (uint32, error) {
	abs := v.structStart + off

	if off < 0 || abs+4 > v.structEnd {
		return 0, fmt.Errorf("%w: offset %#x out of bounds", ErrBadStructure, off)
	}

	return binary.BigEndian.Uint32(v.blob[abs : abs+4]), nil
}

func (v *blockView) stringAt(nameOff uint32) (string, error) {
	if uint64(nameOff) >= uint64(v.stringsEnd-v.stringsStart) {
		return "", fmt.Errorf("%w: string offset %#x out of bounds", ErrBadStructure, nameOff)
	}

	start := v.stringsStart + int(nameOff)

	n := bytes.IndexByte(v.blob[start:v.stringsEnd], 0)

	if n < 0 {
		return "", fmt.Errorf("%w: unterminated string at %#x", ErrBadStructure, nameOff)
	}

	return string(v.blob[start : start+n]), nil
}

// next decodes the token found at off.
func (v *blockView) next(off int) (t token, err error) {
	if off%4 != 0 {
		return t, fmt.Errorf("%w: misaligned offset %#x", ErrBadStructure, off)
	}

	if t.tag, err = v.u32(off); err != nil {
		return
	}

	t.off = off

	switch t.tag {
	case tokenBeginNode:
		start := v.structStart + off + 4
		n := bytes.IndexByte(v.blob[start:v.structEnd], 0)

		if n < 0 {
			return t, fmt.Errorf("%w: unterminated node name at %#x", ErrBadStructure, off)
		}

		t.name = string(v.blob[start : start+n])
		t.next = align(off + 4 + n + 1)
	case tokenProp:
		var length, nameOff uint32

		if length, err = v.u32(off + 4); err != nil {
			return
		}

		if nameOff, err = v.u32(off + 8); err != nil {
			return
		}

		start := v.structStart + off + 12

		// compare against the remaining room, start+length may not fit an int
		if uint64(length) > uint64(v.structEnd-start) {
			return t, fmt.Errorf("%w: property at %#x exceeds structure block", ErrBadStructure, off)
		}

		end := start + int(length)

		if t.name, err = v.stringAt(nameOff); err != nil {
			return
		}

		t.value = v.blob[start:end:end]
		t.next = align(off + 12 + int(length))
	case tokenEndNode, tokenNop, tokenEnd:
		t.next = off + 4
	default:
		return t, fmt.Errorf("%w: unknown token %#x at %#x", ErrBadStructure, t.tag, off)
	}

	return
}

// property returns the value of the named property of the node found at off.
func (v *blockView) property(node int, name string) ([]byte, error) {
	t, err := v.next(node)

	if err != nil {
		return nil, err
	}

	if t.tag != tokenBeginNode {
		return nil, fmt.Errorf("%w: offset %#x is not a node", ErrBadStructure, node)
	}

	// properties always precede subnodes
	for off := t.next; ; off = t.next {
		if t, err = v.next(off); err != nil {
			return nil, err
		}

		switch t.tag {
		case tokenProp:
			if t.name == name {
				return t.value, nil
			}
		case tokenNop:
		default:
			return nil, fmt.Errorf("property %q %w", name, ErrNotFound)
		}
	}
}

// Property returns the value of the named property of the node found at the
// given structure block offset. The returned slice aliases the blob.
func Property(blob []byte, node int, name string) ([]byte, error) {
	v, err := newBlockView(blob)

	if err != nil {
		return nil, err
	}

	return v.property(node, name)
}

// NodeOffsetByCompatible returns the structure block offset of the first
// node, after start, whose compatible property lists the argument string. A
// start value of -1 searches the whole tree.
func NodeOffsetByCompatible(blob []byte, start int, compatible string) (int, error) {
	v, err := newBlockView(blob)

	if err != nil {
		return -1, err
	}

	depth := 0

	for off := 0; ; {
		t, err := v.next(off)

		if err != nil {
			return -1, err
		}

		switch t.tag {
		case tokenBeginNode:
			depth++

			if t.off > start && v.compatible(t.off, compatible) {
				return t.off, nil
			}
		case tokenEndNode:
			if depth--; depth < 0 {
				return -1, fmt.Errorf("%w: unbalanced node end at %#x", ErrBadStructure, t.off)
			}
		case tokenEnd:
			if depth != 0 {
				return -1, fmt.Errorf("%w: unterminated node", ErrBadStructure)
			}

			return -1, fmt.Errorf("compatible %q %w", compatible, ErrNotFound)
		}

		off = t.next
	}
}

func (v *blockView) compatible(node int, s string) bool {
	val, err := v.property(node, "compatible")

	if err != nil {
		return false
	}

	for _, c := range bytes.Split(bytes.TrimSuffix(val, []byte{0}), []byte{0}) {
		if string(c) == s {
			return true
		}
	}

	return false
}
