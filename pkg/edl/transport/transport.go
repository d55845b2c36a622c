// Package transport provides the byte-oriented full-duplex channel the
// Sahara and Firehose clients speak over: a serial-port-shaped default and
// a high-throughput direct-USB variant, both behind the same interface.
package transport

import (
	"time"

	"qflash/pkg/edl/edlerr"
)

// Transport is a byte-stream to the device, open/close/read/write/purge,
// survivable across a forced close from another goroutine (the session's
// cancellation mechanism, §5 of the design spec).
type Transport interface {
	// Open connects to the named device (a COM port / tty path for serial,
	// a VID:PID pair for direct USB).
	Open(name string) error
	// Close releases the underlying handle. Idempotent.
	Close() error
	// ForceClose unwinds any blocked Read/Write from another goroutine;
	// this is the sole cancellation primitive (§5, §9 design notes).
	ForceClose() error
	// Write writes the full buffer or returns an error.
	Write(p []byte) (int, error)
	// Read reads up to len(p) bytes with the given timeout.
	Read(p []byte, timeout time.Duration) (int, error)
	// Purge discards any buffered bytes in both directions.
	Purge() error
	// IsOpen reports whether the transport currently holds a live handle.
	IsOpen() bool
}

// Mode selects which Transport implementation a session should use.
type Mode int

const (
	ModeSerial Mode = iota
	ModeUSBHighThroughput
)

// DefaultBaud is nominal; USB-CDC devices ignore it but the API still sets
// it for parity with real UART-backed adapters (§4.1).
const DefaultBaud = 115200

// Timeouts used by the high-throughput variant (§4.1).
const (
	HighThroughputQueueBytes = 2 * 1024 * 1024
	HighThroughputTimeout    = 3 * time.Second
)

// New builds the requested transport implementation.
func New(mode Mode) (Transport, error) {
	switch mode {
	case ModeSerial:
		return newSerialTransport(), nil
	case ModeUSBHighThroughput:
		return newUSBTransport(), nil
	default:
		return nil, edlerr.Wrap(edlerr.KindTransport, "open-failed", nil)
	}
}
