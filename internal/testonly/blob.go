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

// Package testonly provides configuration blobs for tests.
package testonly

import (
	"testing"

	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
)

// Prop is a single raw property.
type Prop struct {
	Name  string
	Value []byte
}

// U32 returns a single cell property.
func U32(name string, v uint32) Prop {
	return Prop{Name: name, Value: []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}}
}

// U64 returns a two cell property.
func U64(name string, v uint64) Prop {
	hi := U32(name, uint32(v>>32))
	lo := U32(name, uint32(v))
	return Prop{Name: name, Value: append(hi.Value, lo.Value...)}
}

// Blob builds a configuration whose root node carries the given compatible
// string (omitted when empty) and properties, followed by an unrelated
// subnode.
func Blob(t *testing.T, compatible string, props ...Prop) []byte {
	t.Helper()

	b := fdt.NewBuilder().BeginNode("")

	if len(compatible) != 0 {
		b.PropStrings("compatible", compatible)
	}

	for _, p := range props {
		b.Prop(p.Name, p.Value)
	}

	b.BeginNode("fw-config").
		PropStrings("compatible", "arm,dyn_cfg-dtb_registry").
		EndNode()

	buf, err := b.EndNode().Bytes()

	if err != nil {
		t.Fatalf("Failed to build blob: %v", err)
	}

	return buf
}

// TBFWConfig builds a configuration with an "arm,tb_fw" root node, the
// disable_auth property and the Mbed TLS heap descriptor properties.
func TBFWConfig(t *testing.T, disableAuth uint32, heapAddr uint64, heapSize uint32) []byte {
	t.Helper()

	return Blob(t, "arm,tb_fw",
		U32("disable_auth", disableAuth),
		U64("mbedtls_heap_addr", heapAddr),
		U32("mbedtls_heap_size", heapSize),
	)
}
