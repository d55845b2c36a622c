//go:build !mips && !mipsle

// USB-based transport for the high-throughput variant — direct endpoint
// access bypasses the OS's serial-port abstraction entirely, adapted from
// the teacher's Bitmain bulk-transfer USBDevice to a generic bulk byte
// stream. Excluded on MIPS builds, same constraint the teacher documents,
// since gousb's cgo/libusb binding doesn't target those architectures here.
package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"qflash/pkg/edl/edlerr"
)

// EDLVendorID/EDLProductID are the Qualcomm 9008-mode USB identifiers
// (VID:PID 0x05C6/0x9008, per spec.md's GLOSSARY entry for EDL).
const (
	EDLVendorID  = 0x05C6
	EDLProductID = 0x9008

	usbEndpointOut = 0x01
	usbEndpointIn  = 0x81
)

// USBTransport provides the high-throughput variant: large host-side
// queues and short timeouts, claimed directly against the PBL's bulk
// endpoints rather than through a tty layer.
type USBTransport struct {
	mu     sync.Mutex
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
	open   bool
}

func newUSBTransport() *USBTransport {
	return &USBTransport{}
}

// Open ignores name (VID:PID is fixed for EDL mode) and ignores baud (§4.1:
// "USB-CDC ignores it").
func (t *USBTransport) Open(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(EDLVendorID, EDLProductID)
	if err != nil {
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}
	if device == nil {
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed",
			fmt.Errorf("EDL device not found (VID:0x%04x PID:0x%04x)", EDLVendorID, EDLProductID))
	}

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}

	intf, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}

	epOut, err := intf.OutEndpoint(usbEndpointOut)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}

	epIn, err := intf.InEndpoint(usbEndpointIn)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return edlerr.Wrap(edlerr.KindTransport, "open-failed", err)
	}

	t.ctx, t.device, t.config, t.intf, t.epOut, t.epIn = ctx, device, config, intf, epOut, epIn
	t.open = true
	return nil
}

func (t *USBTransport) closeLocked() error {
	if t.intf != nil {
		t.intf.Close()
	}
	if t.config != nil {
		t.config.Close()
	}
	if t.device != nil {
		t.device.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	t.intf, t.config, t.device, t.ctx, t.epOut, t.epIn = nil, nil, nil, nil, nil, nil
	t.open = false
	return nil
}

func (t *USBTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *USBTransport) ForceClose() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *USBTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *USBTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	ep := t.epOut
	open := t.open
	t.mu.Unlock()
	if !open || ep == nil {
		return 0, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", nil)
	}
	n, err := ep.Write(p)
	if err != nil {
		return n, edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	if n != len(p) {
		return n, edlerr.ErrShortWrite
	}
	return n, nil
}

func (t *USBTransport) Read(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	ep := t.epIn
	open := t.open
	t.mu.Unlock()
	if !open || ep == nil {
		return 0, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", nil)
	}
	n, err := ep.ReadContext(deadlineContext(timeout), p)
	if err != nil {
		if err == gousb.TransferTimedOut {
			return n, edlerr.ErrReadTimeout
		}
		return n, edlerr.Wrap(edlerr.KindTransport, "closed-during-io", err)
	}
	return n, nil
}

func (t *USBTransport) Purge() error {
	t.mu.Lock()
	ep := t.epIn
	open := t.open
	t.mu.Unlock()
	if !open || ep == nil {
		return nil
	}
	buf := make([]byte, 4096)
	for {
		n, err := ep.ReadContext(deadlineContext(10*time.Millisecond), buf)
		if n == 0 || err != nil {
			break
		}
	}
	return nil
}
