// Package elog is the thin leveled-prefix logging shim used across the
// engine. The corpus never reaches for a structured logging library (every
// hasher package logs through stdlib log.Printf), so this follows suit
// rather than bolting one on.
package elog

import (
	"log"
	"os"
)

// Logger prefixes every line with a component tag, e.g. "[sahara]".
type Logger struct {
	*log.Logger
}

// New builds a component logger writing to stderr, matching the teacher's
// default log.Logger destination.
func New(component string) *Logger {
	return &Logger{log.New(os.Stderr, "["+component+"] ", log.LstdFlags)}
}

var (
	Sahara   = New("sahara")
	Firehose = New("firehose")
	Session  = New("session")
	Auth     = New("auth")
	Transport = New("transport")
)
