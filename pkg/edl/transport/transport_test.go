package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// New's dispatch is the only mode-independent logic in this package; the
// rest of serial_*.go and usb_*.go need a real port or device to exercise
// (§4.1 design notes — left to manual/hardware testing).
func TestNewSelectsImplementationByMode(t *testing.T) {
	serial, err := New(ModeSerial)
	require.NoError(t, err)
	require.NotNil(t, serial)
	require.False(t, serial.IsOpen())

	usb, err := New(ModeUSBHighThroughput)
	require.NoError(t, err)
	require.NotNil(t, usb)
	require.False(t, usb.IsOpen())
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New(Mode(99))
	require.Error(t, err)
}
