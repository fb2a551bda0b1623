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

// Package fdt implements the minimal set of flattened device tree (FDT)
// primitives needed to access firmware configuration blobs in place: header
// validation, node lookup by compatible string and fixed-width cell access.
//
// All functions operate on a caller-owned buffer and never change its length,
// the package does not allocate new properties or nodes.
package fdt

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic is the FDT header magic value.
	Magic = 0xd00dfeed

	// HeaderSize is the size of a version 17 FDT header.
	HeaderSize = 40

	// Version is the FDT version produced by Builder.
	Version = 17
	// LastCompVersion is the oldest version Builder output is compatible with.
	LastCompVersion = 16

	// CellSize is the size in bytes of a single property cell.
	CellSize = 4
)

// p14, 5.4.1 Lexical structure, Devicetree Specification v0.4
const (
	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

var (
	ErrTruncated    = errors.New("truncated blob")
	ErrBadMagic     = errors.New("bad magic")
	ErrBadVersion   = errors.New("unsupported version")
	ErrBadLayout    = errors.New("invalid block layout")
	ErrBadStructure = errors.New("invalid structure block")
	ErrNotFound     = errors.New("not found")
	ErrBadValue     = errors.New("invalid property value")
	ErrNoSpace      = errors.New("property length mismatch")
	ErrValueRange   = errors.New("value does not fit cells")
	ErrBadCells     = errors.New("unsupported cell count")
)

// Header represents the FDT header, all fields are stored big-endian.
type Header struct {
	Magic           uint32
	TotalSize       uint32
	OffDtStruct     uint32
	OffDtStrings    uint32
	OffMemRsvmap    uint32
	Version         uint32
	LastCompVersion uint32
	BootCPUIDPhys   uint32
	SizeDtStrings   uint32
	SizeDtStruct    uint32
}

// ParseHeader decodes and validates the header of an FDT blob.
func ParseHeader(blob []byte) (h *Header, err error) {
	if len(blob) < HeaderSize {
		return nil, ErrTruncated
	}

	h = &Header{
		Magic:           binary.BigEndian.Uint32(blob[0:4]),
		TotalSize:       binary.BigEndian.Uint32(blob[4:8]),
		OffDtStruct:     binary.BigEndian.Uint32(blob[8:12]),
		OffDtStrings:    binary.BigEndian.Uint32(blob[12:16]),
		OffMemRsvmap:    binary.BigEndian.Uint32(blob[16:20]),
		Version:         binary.BigEndian.Uint32(blob[20:24]),
		LastCompVersion: binary.BigEndian.Uint32(blob[24:28]),
		BootCPUIDPhys:   binary.BigEndian.Uint32(blob[28:32]),
		SizeDtStrings:   binary.BigEndian.Uint32(blob[32:36]),
		SizeDtStruct:    binary.BigEndian.Uint32(blob[36:40]),
	}

	if err = h.validate(uint64(len(blob))); err != nil {
		return nil, err
	}

	return
}

// CheckHeader returns an error if the blob does not start with a valid FDT
// header.
func CheckHeader(blob []byte) error {
	_, err := ParseHeader(blob)
	return err
}

func (h *Header) validate(bufLen uint64) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w (%#x)", ErrBadMagic, h.Magic)
	}

	if h.Version < LastCompVersion || h.LastCompVersion > Version {
		return fmt.Errorf("%w (version:%d last_comp_version:%d)", ErrBadVersion, h.Version, h.LastCompVersion)
	}

	total := uint64(h.TotalSize)

	if total < HeaderSize {
		return fmt.Errorf("%w: totalsize %d smaller than header", ErrBadLayout, total)
	}

	if total > bufLen {
		return fmt.Errorf("%w: totalsize %d exceeds buffer length %d", ErrTruncated, total, bufLen)
	}

	if h.OffMemRsvmap%8 != 0 || h.OffMemRsvmap < HeaderSize || uint64(h.OffMemRsvmap) > total {
		return fmt.Errorf("%w: memory reservation map offset %#x", ErrBadLayout, h.OffMemRsvmap)
	}

	if h.OffDtStruct%4 != 0 || h.OffDtStruct < HeaderSize || uint64(h.OffDtStruct) > total {
		return fmt.Errorf("%w: structure block offset %#x", ErrBadLayout, h.OffDtStruct)
	}

	if uint64(h.OffDtStruct)+uint64(h.structSize()) > total {
		return fmt.Errorf("%w: structure block exceeds totalsize", ErrBadLayout)
	}

	if h.OffDtStrings < HeaderSize || uint64(h.OffDtStrings)+uint64(h.SizeDtStrings) > total {
		return fmt.Errorf("%w: strings block exceeds totalsize", ErrBadLayout)
	}

	return nil
}

// structSize returns the structure block length, version 16 headers do not
// carry it and the block is assumed to extend up to totalsize.
func (h *Header) structSize() uint32 {
	if h.Version < Version {
		return h.TotalSize - h.OffDtStruct
	}

	return h.SizeDtStruct
}
