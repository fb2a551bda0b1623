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
	"errors"
	"fmt"
)

// memory reservation map with only the terminating entry
const rsvmapSize = 16

// Builder serializes a device tree into a version 17 FDT blob, it is meant to
// be used by build tooling producing configuration blobs. Nodes and
// properties are emitted in call order, the first error is sticky and
// reported by Bytes.
type Builder struct {
	structure bytes.Buffer
	strings   bytes.Buffer
	names     map[string]uint32

	// hasChildren tracks, for each open node, whether a subnode has been
	// emitted, after which no further properties are allowed.
	hasChildren []bool

	done bool
	err  error
}

// NewBuilder returns an empty Builder, the first node must be the root ("").
func NewBuilder() *Builder {
	return &Builder{
		names: make(map[string]uint32),
	}
}

func (b *Builder) u32(v uint32) {
	b.structure.Write(binary.BigEndian.AppendUint32(nil, v))
}

func (b *Builder) pad() {
	for b.structure.Len()%4 != 0 {
		b.structure.WriteByte(0)
	}
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}

	return b
}

// BeginNode opens a node nested in the current one.
func (b *Builder) BeginNode(name string) *Builder {
	switch {
	case b.done:
		return b.fail(errors.New("node after root end"))
	case len(b.hasChildren) == 0 && len(name) != 0:
		return b.fail(fmt.Errorf("root node must be unnamed, got %q", name))
	case len(b.hasChildren) > 0 && len(name) == 0:
		return b.fail(errors.New("subnode must be named"))
	case bytes.IndexByte([]byte(name), 0) >= 0:
		return b.fail(fmt.Errorf("invalid node name %q", name))
	}

	if n := len(b.hasChildren); n > 0 {
		b.hasChildren[n-1] = true
	}

	b.hasChildren = append(b.hasChildren, false)

	b.u32(tokenBeginNode)
	b.structure.WriteString(name)
	b.structure.WriteByte(0)
	b.pad()

	return b
}

// EndNode closes the current node.
func (b *Builder) EndNode() *Builder {
	n := len(b.hasChildren)

	if n == 0 {
		return b.fail(errors.New("unbalanced node end"))
	}

	b.hasChildren = b.hasChildren[:n-1]
	b.u32(tokenEndNode)

	if n == 1 {
		b.done = true
	}

	return b
}

// Prop adds a raw property to the current node.
func (b *Builder) Prop(name string, value []byte) *Builder {
	n := len(b.hasChildren)

	switch {
	case n == 0:
		return b.fail(fmt.Errorf("property %q outside of a node", name))
	case b.hasChildren[n-1]:
		return b.fail(fmt.Errorf("property %q after subnode", name))
	case len(name) == 0 || bytes.IndexByte([]byte(name), 0) >= 0:
		return b.fail(fmt.Errorf("invalid property name %q", name))
	}

	off, ok := b.names[name]

	if !ok {
		off = uint32(b.strings.Len())
		b.names[name] = off
		b.strings.WriteString(name)
		b.strings.WriteByte(0)
	}

	b.u32(tokenProp)
	b.u32(uint32(len(value)))
	b.u32(off)
	b.structure.Write(value)
	b.pad()

	return b
}

// PropU32 adds a single cell property.
func (b *Builder) PropU32(name string, v uint32) *Builder {
	return b.Prop(name, binary.BigEndian.AppendUint32(nil, v))
}

// PropU64 adds a two cell property, most significant cell first.
func (b *Builder) PropU64(name string, v uint64) *Builder {
	return b.Prop(name, binary.BigEndian.AppendUint64(nil, v))
}

// PropString adds a NUL terminated string property.
func (b *Builder) PropString(name string, s string) *Builder {
	return b.PropStrings(name, s)
}

// PropStrings adds a string list property (e.g. compatible).
func (b *Builder) PropStrings(name string, s ...string) *Builder {
	var val []byte

	for _, e := range s {
		val = append(val, e...)
		val = append(val, 0)
	}

	return b.Prop(name, val)
}

// Bytes returns the serialized blob.
func (b *Builder) Bytes() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	if !b.done {
		return nil, errors.New("root node not closed")
	}

	structure := append(bytes.Clone(b.structure.Bytes()), 0, 0, 0, tokenEnd)

	offRsvmap := HeaderSize
	offStruct := offRsvmap + rsvmapSize
	offStrings := offStruct + len(structure)
	total := offStrings + b.strings.Len()

	h := Header{
		Magic:           Magic,
		TotalSize:       uint32(total),
		OffDtStruct:     uint32(offStruct),
		OffDtStrings:    uint32(offStrings),
		OffMemRsvmap:    uint32(offRsvmap),
		Version:         Version,
		LastCompVersion: LastCompVersion,
		SizeDtStrings:   uint32(b.strings.Len()),
		SizeDtStruct:    uint32(len(structure)),
	}

	buf := make([]byte, 0, total)

	for _, f := range []uint32{
		h.Magic,
		h.TotalSize,
		h.OffDtStruct,
		h.OffDtStrings,
		h.OffMemRsvmap,
		h.Version,
		h.LastCompVersion,
		h.BootCPUIDPhys,
		h.SizeDtStrings,
		h.SizeDtStruct,
	} {
		buf = binary.BigEndian.AppendUint32(buf, f)
	}

	buf = append(buf, make([]byte, rsvmapSize)...)
	buf = append(buf, structure...)
	buf = append(buf, b.strings.Bytes()...)

	return buf, nil
}
