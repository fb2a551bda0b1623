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

// Package stage implements the boot stage side of the TB_FW_CONFIG hand-off:
// the stage establishing the shared Mbed TLS heap records it in the
// configuration, the next stage loads its configuration from the same blob.
//
// Whether an error is fatal is left to the caller.
package stage

import (
	"errors"

	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-dyncfg/dyncfg"
	"github.com/transparency-dev/armored-witness-dyncfg/fdt"
)

// TBFWConfigID identifies the trusted boot firmware configuration.
const TBFWConfigID = 1

// DTBInfo describes where a configuration blob has been loaded.
type DTBInfo struct {
	// ID is the configuration identifier (e.g. TBFWConfigID).
	ID uint
	// Addr is the physical address of the blob.
	Addr uint
	// MaxSize is the size of the memory reserved for the blob.
	MaxSize int
}

// Config is the configuration consumed by a boot stage.
type Config struct {
	// DisableAuth is set when image authentication must be skipped.
	DisableAuth bool
	// SharedHeap is set when an earlier stage established Heap.
	SharedHeap bool
	// Heap is the shared Mbed TLS heap, valid only when SharedHeap is set.
	Heap dyncfg.Heap
}

// LoadOptions controls LoadConfig.
type LoadOptions struct {
	// RequireSharedHeap fails LoadConfig when the heap descriptor is absent,
	// otherwise the stage is expected to fall back to a local heap.
	RequireSharedHeap bool
}

// ShareHeap records the heap in the configuration, on success flush (if not
// nil) is invoked over the blob to make the update visible to the next stage
// (e.g. data cache clean).
//
// A zero heap is not recorded. On error the descriptor in the blob must be
// considered unreliable.
func ShareHeap(cfg []byte, heap dyncfg.Heap, flush func(buf []byte)) error {
	if heap == (dyncfg.Heap{}) {
		klog.V(1).Info("No shared Mbed TLS heap to record")
		return nil
	}

	if err := dyncfg.SetHeapInfo(cfg, heap); err != nil {
		klog.Errorf("Unable to write shared Mbed TLS heap information to DTB: %v", err)
		return err
	}

	if flush != nil {
		// SetHeapInfo succeeded so the header is valid
		h, _ := fdt.ParseHeader(cfg)
		flush(cfg[:h.TotalSize])
	}

	klog.V(1).Infof("Shared Mbed TLS heap addr:%#x size:%d", heap.Addr, heap.Size)

	return nil
}

// LoadConfig validates the configuration and reads the parameters relevant
// to a consuming boot stage.
func LoadConfig(cfg []byte, opts LoadOptions) (*Config, error) {
	node, err := dyncfg.Init(cfg)

	if err != nil {
		return nil, err
	}

	c := &Config{}

	if c.DisableAuth, err = dyncfg.DisableAuth(cfg, node); err != nil {
		return nil, err
	}

	if c.DisableAuth {
		klog.Warning("Image authentication is disabled by TB_FW_CONFIG")
	}

	heap, err := dyncfg.HeapInfo(cfg)

	var nf *dyncfg.NotFoundError

	switch {
	case err == nil:
		c.Heap = heap
		c.SharedHeap = true
	case errors.As(err, &nf) && !opts.RequireSharedHeap:
		klog.V(1).Infof("No shared Mbed TLS heap in TB_FW_CONFIG (%v)", err)
	default:
		klog.Errorf("Unable to retrieve shared Mbed TLS heap information from DTB: %v", err)
		return nil, err
	}

	return c, nil
}
