package transport

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"qflash/pkg/edl/edlerr"
)

// SerialTransport talks to the device through a raw file handle for the
// port (a /dev/ttyUSBx-shaped path, or the OS equivalent). Baud/DTR/RTS
// ceremony is asserted at open time; USB-CDC devices ignore the baud rate
// but the call is still made for parity with real UART adapters (§4.1).
type SerialTransport struct {
	mu     sync.Mutex
	file   *os.File
	name   string
	closed bool
}

func newSerialTransport() *SerialTransport {
	return &SerialTransport{}
}

// isBusyErr reports whether err indicates the port is locked by another
// process, mirroring the controller's own device-busy string match.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "device or resource busy") ||
		strings.Contains(s, "permission denied") ||
		strings.Contains(s, "resource temporarily unavailable")
}

func (t *SerialTransport) Open(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		if isBusyErr(err) {
			return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
		}
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}
	if err := applySerialSettings(f, DefaultBaud); err != nil {
		f.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}
	t.file = f
	t.name = name
	t.closed = false
	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *SerialTransport) closeLocked() error {
	if t.closed || t.file == nil {
		t.closed = true
		return nil
	}
	err := t.file.Close()
	t.closed = true
	return err
}

// ForceClose is the cancellation primitive: it closes the handle out from
// under any blocked Read/Write happening on another goroutine.
func (t *SerialTransport) ForceClose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *SerialTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed && t.file != nil
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	f := t.file
	closed := t.closed
	t.mu.Unlock()
	if closed || f == nil {
		return 0, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", nil)
	}
	n, err := f.Write(p)
	if err != nil {
		return n, edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	if n != len(p) {
		return n, edlerr.ErrShortWrite
	}
	return n, nil
}

func (t *SerialTransport) Read(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	f := t.file
	closed := t.closed
	t.mu.Unlock()
	if closed || f == nil {
		return 0, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", nil)
	}
	f.SetReadDeadline(time.Now().Add(timeout))
	n, err := f.Read(p)
	if err != nil {
		if os.IsTimeout(err) {
			return n, edlerr.ErrReadTimeout
		}
		return n, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", err)
	}
	return n, nil
}

func (t *SerialTransport) Purge() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	// Best-effort: drain whatever is immediately available without
	// blocking, matching the purge-both-directions contract of §4.1.
	buf := make([]byte, 4096)
	t.file.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, err := t.file.Read(buf)
		if n == 0 || err != nil {
			break
		}
	}
	return nil
}

// ReopenWithRetry reopens a port up to 3 times, 1s apart, used by the
// session when the OS reports the port as busy right after a previous
// close (§4.13, §7).
func ReopenWithRetry(t Transport, name string) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		err := t.Open(name)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyErr(unwrapCause(err)) {
			return err
		}
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("reopen %q: %w", name, lastErr)
}

func unwrapCause(err error) error {
	type causer interface{ Unwrap() error }
	if c, ok := err.(causer); ok {
		if cause := c.Unwrap(); cause != nil {
			return cause
		}
	}
	return err
}
