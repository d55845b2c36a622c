// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// (at your option) any later version.

// flashd is the daemon binary: it loads FlashConfig, wires a
// statusapi.Server against the configured transport/loader defaults, and
// serves the gin router — generalizing the teacher's hasher-host main
// (config.Load + gin router + graceful signal shutdown) to the flashing
// operator surface (§2 [DOMAIN] operator-surface daemon + CLI).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qflash/internal/cli/embedded"
	"qflash/internal/config"
	"qflash/internal/statusapi"
	"qflash/pkg/edl/devicedb"
	"qflash/pkg/edl/elog"
	"qflash/pkg/edl/transport"
)

func main() {
	listenAddr := flag.String("listen", "", "override the configured HTTP listen address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flashd: failed to load config: %v\n", err)
		os.Exit(1)
	}

	if _, err := embedded.EnsureDeviceDBOverlay(); err != nil {
		elog.Session.Printf("warning: could not write device database overlay: %v", err)
	}

	addr := cfg.ListenAddr
	if *listenAddr != "" {
		addr = *listenAddr
	}

	srv := statusapi.New()
	srv.TransportMode = transportModeFromConfig(cfg.TransportMode)
	srv.DeviceName = cfg.SerialPort
	srv.Loader = ""
	srv.DefaultMemory = cfg.DefaultMemory
	srv.DefaultSector = cfg.SectorSize
	srv.LoaderResolver = func(msmID uint32, pkHash string) (string, bool) {
		loaderDir := cfg.LoaderDir
		if loaderDir == "" {
			dir, err := embedded.GetLoaderDir()
			if err != nil {
				return "", false
			}
			loaderDir = dir
		}
		return devicedb.FindMatchingLoader(loaderDir, msmID, pkHash)
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	elog.Session.Printf("flashd listening on %s (transport=%s memory=%s)", addr, cfg.TransportMode, cfg.DefaultMemory)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			elog.Session.Printf("flashd: server error: %v", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	elog.Session.Printf("flashd: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		elog.Session.Printf("flashd: shutdown error: %v", err)
	}
}

func transportModeFromConfig(mode string) transport.Mode {
	switch mode {
	case "usb":
		return transport.ModeUSBHighThroughput
	default:
		return transport.ModeSerial
	}
}
