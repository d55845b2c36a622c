// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// edl-probe is a raw USB diagnostic tool: it opens a device directly via
// gousb (bypassing transport.USBTransport's framing) and reports what it
// finds, the way the teacher's cmd/monitor opened a Bitmain ASIC directly
// to debug endpoint/driver issues below the protocol layer (§2 [DOMAIN]
// operator-surface daemon + CLI, "diagnostics" supplement).
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/gousb"

	"qflash/internal/cli/embedded"
	"qflash/pkg/edl/sahara"
	"qflash/pkg/edl/transport"
)

func main() {
	fmt.Println("edl-probe: raw EDL USB diagnostic tool")
	fmt.Println("=======================================")

	vid := flag.Uint("vid", transport.EDLVendorID, "USB vendor ID to open")
	pid := flag.Uint("pid", transport.EDLProductID, "USB product ID to open")
	tryHandshake := flag.Bool("handshake", false, "attempt a Sahara handshake after opening")
	listAssets := flag.Bool("assets", false, "list embedded bootstrap assets and exit")
	flag.Parse()

	if *listAssets {
		names, err := embedded.ListAssets()
		if err != nil {
			fmt.Printf("failed to list embedded assets: %v\n", err)
			return
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return
	}

	fmt.Println("Phase 1: Initializing USB context...")
	ctx := gousb.NewContext()
	defer ctx.Close()

	fmt.Printf("Phase 2: Opening USB device (VID:0x%04x PID:0x%04x)...\n", *vid, *pid)
	dev, err := ctx.OpenDeviceWithVIDPID(int(*vid), int(*pid))
	if err != nil || dev == nil {
		fmt.Printf("could not open USB device: %v\n", err)
		fmt.Println("\ntroubleshooting:")
		fmt.Println("1. check the device is in EDL/9008 mode: lsusb | grep 05c6:9008")
		fmt.Println("2. check permissions: ls -la /dev/bus/usb/")
		return
	}
	defer dev.Close()
	fmt.Println("device opened")

	fmt.Println("Phase 3: Detaching kernel driver...")
	if err := dev.SetAutoDetach(true); err != nil {
		fmt.Printf("could not enable auto-detach: %v (OK on some systems)\n", err)
	} else {
		fmt.Println("auto-detach enabled")
	}

	fmt.Println("Phase 4: Claiming interface...")
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		fmt.Printf("could not claim interface: %v\n", err)
		return
	}
	defer done()
	fmt.Println("interface claimed")

	fmt.Println("Phase 5: Opening bulk endpoints...")
	epOut, err := intf.OutEndpoint(1)
	if err != nil {
		fmt.Printf("could not open OUT endpoint: %v\n", err)
		return
	}
	epIn, err := intf.InEndpoint(0x81)
	if err != nil {
		fmt.Printf("could not open IN endpoint: %v\n", err)
		return
	}
	fmt.Println("endpoints ready (OUT:0x01, IN:0x81)")

	fmt.Println("Phase 6: Probing for data...")
	probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	buf := make([]byte, 512)
	n, err := epIn.ReadContext(probeCtx, buf)
	if err != nil {
		fmt.Printf("no data received within timeout: %v\n", err)
	} else {
		fmt.Printf("received %d bytes: % x\n", n, buf[:n])
	}
	_ = epOut

	if *tryHandshake {
		fmt.Println("Phase 7: Attempting Sahara handshake via transport.Transport...")
		t, err := transport.New(transport.ModeUSBHighThroughput)
		if err != nil {
			fmt.Printf("failed to build transport: %v\n", err)
			return
		}
		if err := t.Open(""); err != nil {
			fmt.Printf("transport open failed: %v\n", err)
			return
		}
		defer t.Close()

		client := sahara.NewClient(t)
		hs, err := client.SmartHandshake("", nil)
		if err != nil {
			fmt.Printf("handshake failed: %v\n", err)
			return
		}
		if hs.Pbl != nil {
			fmt.Printf("PBL reports MSM-ID 0x%08x, serial %s\n", hs.Pbl.MsmID, hs.Pbl.Serial)
		}
	}
}
