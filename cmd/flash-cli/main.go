// Hasher: Neural Inference Engine Powered by SHA-256 ASICs
// Copyright (C) 2026  Guillermo Perry
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// flash-cli drives a running flashd daemon through the bubbletea TUI in
// internal/cli/ui, the same shape as the teacher's cmd/cli (bubbletea
// Program against a local host process), minus the in-process
// orchestrator start/stop — flash-cli always talks to flashd over HTTP,
// it never launches it (§2 [DOMAIN] operator-surface daemon + CLI).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"qflash/internal/cli/ui"
)

func main() {
	port := flag.Int("port", 8422, "flashd API port to connect to")
	flag.Parse()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	model := ui.NewModel(*port)
	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		<-sigCh
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "flash-cli: %v\n", err)
		os.Exit(1)
	}
}
