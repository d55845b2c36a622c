package sahara

import (
	"io"
	"os"
	"time"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/transport"
)

// PblInfo is the device identity extracted during command-mode queries
// (§3 SaharaPblInfo).
type PblInfo struct {
	Serial        string
	MsmID         uint32
	OemID         uint32
	ModelID       uint32
	PkHash        string
	ChipName      string
	SaharaVersion int
	Is64Bit       bool
}

// LoaderResolver maps a chip name/PK-hash to a loader file path when the
// caller hasn't supplied one explicitly (§4.2 step 5).
type LoaderResolver func(msmID uint32, pkHash string) (string, bool)

// Client is the Sahara synchronous state machine (§4.2).
type Client struct {
	t       transport.Transport
	readBuf [8192]byte
}

// NewClient wraps an already-open transport.
func NewClient(t transport.Transport) *Client {
	return &Client{t: t}
}

const helloTimeout = 10 * time.Second

// RequiresUserActionError is returned by SmartHandshake when no loader path
// is available and none can be auto-matched (§4.2 step 5): the caller must
// supply one without resetting the device.
type RequiresUserActionError struct {
	Guidance string
}

func (e *RequiresUserActionError) Error() string { return e.Guidance }

// HandshakeResult reports what the smart handshake learned.
type HandshakeResult struct {
	Pbl           *PblInfo // nil if command mode was refused
	LoaderUploaded bool
}

// SmartHandshake runs the full contract of §4.2: wait for Hello, attempt
// command mode, fall through to image upload, and upload the loader.
func (c *Client) SmartHandshake(loaderPath string, resolve LoaderResolver) (*HandshakeResult, error) {
	hello, err := c.waitHello(helloTimeout)
	if err != nil {
		return nil, err
	}

	result := &HandshakeResult{}

	// Try command mode first.
	if err := c.sendHelloResp(hello, ModeCommand); err != nil {
		return nil, err
	}
	next, err := c.readPacket(helloTimeout)
	if err != nil {
		return nil, err
	}
	hdr, ok := decodeHeader(next)
	if !ok {
		return nil, edlerr.ErrBadHeader
	}

	if hdr.Command == CmdCmdReady {
		pbl, err := c.queryCommandMode(hello)
		if err != nil {
			return nil, err
		}
		result.Pbl = pbl
	}
	// else: command mode refused (expected for Sahara V3/signed-only
	// devices) — fall through per §4.2 step 3, without assuming V3.

	// Switch back to image-tx-pending and wait for the next Hello.
	if err := c.sendSwitchMode(ModeImageTxPending); err != nil {
		return nil, err
	}
	hello2, err := c.waitHello(helloTimeout)
	if err != nil {
		return nil, err
	}

	if loaderPath == "" && resolve != nil && result.Pbl != nil {
		if p, ok := resolve(result.Pbl.MsmID, result.Pbl.PkHash); ok {
			loaderPath = p
		}
	}
	if loaderPath == "" {
		return result, &RequiresUserActionError{
			Guidance: "no Firehose loader supplied or auto-matched; device left receptive in image-tx-pending mode",
		}
	}

	if err := c.sendHelloResp(hello2, ModeImageTxPending); err != nil {
		return nil, err
	}
	if err := c.uploadLoader(loaderPath); err != nil {
		return nil, err
	}
	result.LoaderUploaded = true
	return result, nil
}

func (c *Client) waitHello(timeout time.Duration) (Hello, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		buf, err := c.readPacketTimeout(remaining)
		if err != nil {
			if err == edlerr.ErrReadTimeout {
				continue
			}
			return Hello{}, err
		}
		hdr, ok := decodeHeader(buf)
		if !ok || hdr.Command != CmdHello {
			continue
		}
		hello, ok := decodeHello(buf)
		if !ok {
			return Hello{}, edlerr.ErrBadHeader
		}
		return hello, nil
	}
	return Hello{}, edlerr.Wrap(edlerr.KindTransport, "hello-timeout", nil)
}

func (c *Client) sendHelloResp(hello Hello, mode uint32) error {
	pkt := encodeHelloResp(hello.Version, hello.VersionSupported, hello.MaxCmdPacketSize, mode)
	_, err := c.t.Write(pkt)
	if err != nil {
		return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	return nil
}

func (c *Client) sendSwitchMode(mode uint32) error {
	_, err := c.t.Write(encodeSwitchMode(mode))
	if err != nil {
		return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	return nil
}

// queryCommandMode runs SerialNumRead/MsmHwIdRead/OemPkHashRead via
// ExecCmd+ExecCmdData pairs and decodes the identity fields (§4.2 step 2).
func (c *Client) queryCommandMode(hello Hello) (*PblInfo, error) {
	info := &PblInfo{}

	serialBytes, err := c.execCmd(ExecSerialNumRead)
	if err != nil {
		return nil, err
	}
	if len(serialBytes) >= 4 {
		info.Serial = decimalString(beSwap32(serialBytes[0:4]))
	}

	msmBytes, err := c.execCmd(ExecMsmHwIdRead)
	if err != nil {
		return nil, err
	}
	if len(msmBytes) >= 4 {
		info.MsmID = beSwap32(msmBytes[0:4])
	}

	pkBytes, err := c.execCmd(ExecOemPkHashRead)
	if err != nil {
		return nil, err
	}
	info.PkHash = hexLower(pkBytes)

	return info, nil
}

func (c *Client) execCmd(cmdID uint32) ([]byte, error) {
	if _, err := c.t.Write(encodeExecCmd(cmdID)); err != nil {
		return nil, edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	respBuf, err := c.readPacket(helloTimeout)
	if err != nil {
		return nil, err
	}
	hdr, ok := decodeHeader(respBuf)
	if !ok || hdr.Command != CmdExecResp {
		return nil, edlerr.ErrUnexpectedResp
	}
	resp, ok := decodeExecResp(respBuf)
	if !ok {
		return nil, edlerr.ErrBadHeader
	}

	if _, err := c.t.Write(encodeExecData(cmdID)); err != nil {
		return nil, edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	data, err := c.readExact(int(resp.Length), helloTimeout)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// uploadLoader responds to ReadData32/ReadData64 requests by writing the
// requested byte slice, switching width mid-flight if the device asks for
// a different one, then waits for EndImageTx/Done/DoneResp (§4.2 step 6).
func (c *Client) uploadLoader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return edlerr.Wrap(edlerr.KindIO, "file-not-found", err)
	}
	defer f.Close()

	for {
		buf, err := c.readPacket(helloTimeout)
		if err != nil {
			return err
		}
		hdr, ok := decodeHeader(buf)
		if !ok {
			return edlerr.ErrBadHeader
		}

		switch hdr.Command {
		case CmdReadData32:
			rd, ok := decodeReadData32(buf)
			if !ok {
				return edlerr.ErrBadHeader
			}
			if err := c.serveLoaderChunk(f, int64(rd.Offset), int(rd.Length)); err != nil {
				return err
			}
		case CmdReadData64:
			rd, ok := decodeReadData64(buf)
			if !ok {
				return edlerr.ErrBadHeader
			}
			if err := c.serveLoaderChunk(f, int64(rd.Offset), int(rd.Length)); err != nil {
				return err
			}
		case CmdEndImageTx:
			end, ok := decodeEndImageTx(buf)
			if !ok {
				return edlerr.ErrBadHeader
			}
			if end.Status != StatusSuccess {
				return &edlerr.BadStatus{Code: end.Status}
			}
			if _, err := c.t.Write(encodeDone()); err != nil {
				return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
			}
			doneBuf, err := c.readPacket(helloTimeout)
			if err != nil {
				return err
			}
			dhdr, ok := decodeHeader(doneBuf)
			if !ok || dhdr.Command != CmdDoneResp {
				return edlerr.ErrUnexpectedResp
			}
			dr, ok := decodeDoneResp(doneBuf)
			if !ok {
				return edlerr.ErrBadHeader
			}
			if dr.Status != StatusSuccess {
				return &edlerr.BadStatus{Code: dr.Status}
			}
			return nil
		default:
			return edlerr.ErrUnexpectedResp
		}
	}
}

func (c *Client) serveLoaderChunk(f *os.File, offset int64, length int) error {
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return edlerr.Wrap(edlerr.KindIO, "short-read", err)
	}
	if n < length {
		// Pad a short final chunk with zeros rather than failing — some
		// loaders are requested in a round length larger than the file tail.
		for i := n; i < length; i++ {
			buf[i] = 0
		}
	}
	if _, err := c.t.Write(buf); err != nil {
		return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	return nil
}

// Reset sends the Sahara reset command (§4.2).
func (c *Client) Reset() error {
	_, err := c.t.Write(encodeReset())
	return err
}

func (c *Client) readPacket(timeout time.Duration) ([]byte, error) {
	return c.readPacketTimeout(timeout)
}

func (c *Client) readPacketTimeout(timeout time.Duration) ([]byte, error) {
	n, err := c.t.Read(c.readBuf[:], timeout)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.readBuf[:n])
	return out, nil
}

func (c *Client) readExact(n int, timeout time.Duration) ([]byte, error) {
	out := make([]byte, 0, n)
	deadline := time.Now().Add(timeout)
	for len(out) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, edlerr.ErrReadTimeout
		}
		chunk, err := c.readPacketTimeout(remaining)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out[:n], nil
}
