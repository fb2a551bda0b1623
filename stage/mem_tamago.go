// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago
// +build tamago

package stage

import (
	"errors"

	"github.com/usbarmory/tamago/dma"
)

// Map returns the memory holding the configuration blob, the region is
// reserved in its entirety so that it is never handed out by the allocator.
func Map(info DTBInfo) ([]byte, error) {
	if info.Addr == 0 || info.MaxSize <= 0 {
		return nil, errors.New("invalid configuration region")
	}

	r, err := dma.NewRegion(info.Addr, info.MaxSize, false)

	if err != nil {
		return nil, err
	}

	_, buf := r.Reserve(info.MaxSize, 0)

	return buf, nil
}
