//go:build mips || mipsle

// gousb's cgo/libusb binding doesn't target these architectures, matching
// the teacher's own MIPS exclusion for its USB device file.
package transport

import (
	"time"

	"qflash/pkg/edl/edlerr"
)

type USBTransport struct{}

func newUSBTransport() *USBTransport { return &USBTransport{} }

func (t *USBTransport) Open(name string) error {
	return edlerr.Wrap(edlerr.KindTransport, "open-failed", edlerrUnsupported)
}
func (t *USBTransport) Close() error                                    { return nil }
func (t *USBTransport) ForceClose() error                               { return nil }
func (t *USBTransport) IsOpen() bool                                    { return false }
func (t *USBTransport) Write(p []byte) (int, error)                     { return 0, edlerrUnsupported }
func (t *USBTransport) Read(p []byte, timeout time.Duration) (int, error) { return 0, edlerrUnsupported }
func (t *USBTransport) Purge() error                                    { return nil }

var edlerrUnsupported = edlerr.Wrap(edlerr.KindTransport, "open-failed", nil)
