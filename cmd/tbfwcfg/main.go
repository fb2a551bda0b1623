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
//
// The tbfwcfg tool generates, inspects and patches TB_FW_CONFIG device tree
// blobs handed between boot stages.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/coreos/go-semver/semver"
	"github.com/u-root/u-root/pkg/dt"
	"k8s.io/klog"

	"github.com/transparency-dev/armored-witness-dyncfg/dyncfg"
	"github.com/transparency-dev/armored-witness-dyncfg/stage"
)

// initialized at link time (-ldflags "-X main.Version=...")
var Version string

var (
	configFile  = flag.String("config_file", "", "TB_FW_CONFIG blob to operate on.")
	generate    = flag.Bool("generate", false, "Write a new TB_FW_CONFIG blob to -config_file.")
	dump        = flag.Bool("dump", false, "Print the whole device tree.")
	show        = flag.Bool("show", false, "Print the trusted boot parameters.")
	setHeap     = flag.Bool("set_heap", false, "Overwrite the Mbed TLS heap descriptor in place.")
	disableAuth = flag.Bool("disable_auth", false, "Value of disable_auth for -generate.")
	heapAddr    = flag.Uint64("heap_addr", 0, "Mbed TLS heap address for -generate and -set_heap.")
	heapSize    = flag.Uint("heap_size", 0, "Mbed TLS heap size for -generate and -set_heap.")
	version     = flag.Bool("version", false, "Print the tool version.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *version {
		fmt.Println(versionOrDie(Version))
		return
	}

	if len(*configFile) == 0 {
		flag.PrintDefaults()
		klog.Exit("-config_file is required")
	}

	heap := heapOrDie(*heapAddr, *heapSize)

	switch {
	case *generate:
		cfg, err := generateConfig(*disableAuth, heap)
		if err != nil {
			klog.Exitf("Failed to generate config: %v", err)
		}

		if err := os.WriteFile(*configFile, cfg, 0o644); err != nil {
			klog.Exitf("WriteFile: %v", err)
		}

		klog.Infof("Wrote %d bytes of TB_FW_CONFIG to %q", len(cfg), *configFile)
	case *setHeap:
		cfg := readConfigOrDie(*configFile)
		size := len(cfg)

		if err := stage.ShareHeap(cfg, heap, nil); err != nil {
			klog.Exitf("Failed to set heap: %v", err)
		}

		if len(cfg) != size {
			klog.Exitf("Config size changed from %d to %d", size, len(cfg))
		}

		if err := os.WriteFile(*configFile, cfg, 0o644); err != nil {
			klog.Exitf("WriteFile: %v", err)
		}

		klog.Infof("Updated Mbed TLS heap in %q", *configFile)
	case *show:
		c, err := stage.LoadConfig(readConfigOrDie(*configFile), stage.LoadOptions{})
		if err != nil {
			klog.Exitf("Invalid config: %v", err)
		}

		fmt.Print(formatConfig(c))
	case *dump:
		tree, err := dt.ReadFDT(bytes.NewReader(readConfigOrDie(*configFile)))
		if err != nil {
			klog.Exitf("Failed to decode %q: %v", *configFile, err)
		}

		printNode(os.Stdout, tree.RootNode, 0)
	default:
		flag.PrintDefaults()
	}
}

func versionOrDie(v string) string {
	if len(v) == 0 {
		return "devel"
	}

	sv, err := semver.NewVersion(v)
	if err != nil {
		klog.Exitf("Invalid build version %q: %v", v, err)
	}

	return sv.String()
}

func heapOrDie(addr uint64, size uint) dyncfg.Heap {
	if uint64(size) > 0xffffffff {
		klog.Exitf("Heap size %#x does not fit a single cell", size)
	}

	return dyncfg.Heap{
		Addr: addr,
		Size: uint32(size),
	}
}

func readConfigOrDie(p string) []byte {
	b, err := os.ReadFile(p)
	if err != nil {
		klog.Exitf("Failed to read config %q: %v", p, err)
	}
	return b
}
