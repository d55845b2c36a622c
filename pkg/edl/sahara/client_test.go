package sahara

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/edlerr"
)

// fakeTransport scripts a sequence of inbound packets and records every
// outbound write, enough to drive the Sahara client deterministically in
// tests without a real serial/USB device.
type fakeTransport struct {
	inbound [][]byte
	written [][]byte
}

func (f *fakeTransport) Open(name string) error    { return nil }
func (f *fakeTransport) Close() error               { return nil }
func (f *fakeTransport) ForceClose() error          { return nil }
func (f *fakeTransport) IsOpen() bool               { return true }
func (f *fakeTransport) Purge() error               { return nil }

func (f *fakeTransport) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.written = append(f.written, cp)
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if len(f.inbound) == 0 {
		return 0, edlerr.ErrReadTimeout
	}
	next := f.inbound[0]
	f.inbound = f.inbound[1:]
	n := copy(p, next)
	return n, nil
}

func buildReadData32(image, offset, length uint32) []byte {
	b := encodeHeader(CmdReadData32, 20)
	body := make([]byte, 12)
	putU32(body[0:4], image)
	putU32(body[4:8], offset)
	putU32(body[8:12], length)
	return append(b, body...)
}

func buildEndImageTx(status uint32) []byte {
	b := encodeHeader(CmdEndImageTx, 16)
	body := make([]byte, 8)
	putU32(body[0:4], 0)
	putU32(body[4:8], status)
	return append(b, body...)
}

func buildDoneResp(status uint32) []byte {
	b := encodeHeader(CmdDoneResp, 12)
	body := make([]byte, 4)
	putU32(body, status)
	return append(b, body...)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// TestLoaderUpload32Bit reproduces end-to-end scenario 5: the device asks
// for the whole 4096-byte loader in one ReadData32, then signals
// EndImageTx(status=0); the client must write the exact bytes, send Done,
// and accept the Success DoneResp.
func TestLoaderUpload32Bit(t *testing.T) {
	dir := t.TempDir()
	loaderPath := filepath.Join(dir, "loader.bin")
	loaderBytes := make([]byte, 4096)
	for i := range loaderBytes {
		loaderBytes[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(loaderPath, loaderBytes, 0o644))

	ft := &fakeTransport{
		inbound: [][]byte{
			buildReadData32(0x0E, 0, 4096),
			buildEndImageTx(0),
			buildDoneResp(0),
		},
	}
	c := NewClient(ft)

	err := c.uploadLoader(loaderPath)
	require.NoError(t, err)

	// Expect: loader bytes, then Done.
	require.Len(t, ft.written, 2)
	require.Equal(t, loaderBytes, ft.written[0])
	doneHdr, ok := decodeHeader(ft.written[1])
	require.True(t, ok)
	require.Equal(t, CmdDone, doneHdr.Command)
}

func TestLoaderUploadBadStatusFails(t *testing.T) {
	dir := t.TempDir()
	loaderPath := filepath.Join(dir, "loader.bin")
	require.NoError(t, os.WriteFile(loaderPath, make([]byte, 16), 0o644))

	ft := &fakeTransport{
		inbound: [][]byte{
			buildReadData32(0x0E, 0, 16),
			buildEndImageTx(7),
		},
	}
	c := NewClient(ft)

	err := c.uploadLoader(loaderPath)
	require.Error(t, err)
	var bs *edlerr.BadStatus
	require.ErrorAs(t, err, &bs)
	require.Equal(t, uint32(7), bs.Code)
}

func TestBeSwap32(t *testing.T) {
	wire := []byte{0x01, 0x00, 0x10, 0x00}
	// beSwap32 decodes the wire as little-endian then reverses byte order,
	// which is equivalent to reading the same bytes as big-endian.
	require.Equal(t, binary.BigEndian.Uint32(wire), beSwap32(wire))
}
