// Copyright 2023 The Armored Witness authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/u-root/u-root/pkg/dt"

	"github.com/transparency-dev/armored-witness-dyncfg/dyncfg"
	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
	"github.com/transparency-dev/armored-witness-dyncfg/stage"
)

// generateConfig returns a TB_FW_CONFIG blob with the heap descriptor
// properties reserved, so that they can later be patched in place.
func generateConfig(disableAuth bool, heap dyncfg.Heap) ([]byte, error) {
	auth := uint32(0)

	if disableAuth {
		auth = 1
	}

	return fdt.NewBuilder().
		BeginNode("").
		PropStrings("compatible", dyncfg.Compatible).
		PropU32(dyncfg.PropDisableAuth, auth).
		PropU64(dyncfg.PropMbedTLSHeapAddr, heap.Addr).
		PropU32(dyncfg.PropMbedTLSHeapSize, heap.Size).
		EndNode().
		Bytes()
}

func formatConfig(c *stage.Config) string {
	var status bytes.Buffer

	status.WriteString("------------------------------------------------------------ TB_FW_CONFIG ----\n")
	status.WriteString(fmt.Sprintf("Disable auth ...........: %v\n", c.DisableAuth))

	if c.SharedHeap {
		status.WriteString(fmt.Sprintf("Mbed TLS heap ..........: %#x (%d bytes)\n", c.Heap.Addr, c.Heap.Size))
	} else {
		status.WriteString("Mbed TLS heap ..........: not shared\n")
	}

	return status.String()
}

func printNode(w io.Writer, n *dt.Node, depth int) {
	indent := strings.Repeat("\t", depth)
	name := n.Name

	if len(name) == 0 {
		name = "/"
	}

	fmt.Fprintf(w, "%s%s {\n", indent, name)

	for _, p := range n.Properties {
		fmt.Fprintf(w, "%s\t%s = %s;\n", indent, p.Name, formatValue(p.Value))
	}

	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}

	fmt.Fprintf(w, "%s};\n", indent)
}

// formatValue renders a property value the way dtc would: string lists when
// printable, cells when 4 byte aligned, bytes otherwise.
func formatValue(v []byte) string {
	if len(v) == 0 {
		return "<>"
	}

	if s, ok := stringList(v); ok {
		return s
	}

	var b strings.Builder

	if len(v)%fdt.CellSize == 0 {
		b.WriteString("<")
		for i := 0; i < len(v); i += fdt.CellSize {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%#x", uint32(v[i])<<24|uint32(v[i+1])<<16|uint32(v[i+2])<<8|uint32(v[i+3]))
		}
		b.WriteString(">")
		return b.String()
	}

	fmt.Fprintf(&b, "[% x]", v)

	return b.String()
}

func stringList(v []byte) (string, bool) {
	if v[len(v)-1] != 0 {
		return "", false
	}

	var quoted []string

	for _, s := range strings.Split(string(v[:len(v)-1]), "\x00") {
		if len(s) == 0 {
			return "", false
		}

		for _, r := range s {
			if !unicode.IsPrint(r) {
				return "", false
			}
		}

		quoted = append(quoted, fmt.Sprintf("%q", s))
	}

	return strings.Join(quoted, ", "), true
}
