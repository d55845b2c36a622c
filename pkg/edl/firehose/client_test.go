package firehose

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/edlerr"
)

// scriptedTransport replies with one canned response per <data>...</data>
// it observes being written, letting tests drive the configure ladder and
// read/write flows without a real Firehose device.
type scriptedTransport struct {
	replies [][]byte
	idx     int
	written [][]byte
}

func (s *scriptedTransport) Open(name string) error { return nil }
func (s *scriptedTransport) Close() error            { return nil }
func (s *scriptedTransport) ForceClose() error       { return nil }
func (s *scriptedTransport) IsOpen() bool            { return true }
func (s *scriptedTransport) Purge() error            { return nil }

func (s *scriptedTransport) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	s.written = append(s.written, cp)
	return len(p), nil
}

func (s *scriptedTransport) Read(p []byte, timeout time.Duration) (int, error) {
	if s.idx >= len(s.replies) {
		return 0, edlerr.ErrReadTimeout
	}
	next := s.replies[s.idx]
	s.idx++
	n := copy(p, next)
	return n, nil
}

func ackResp(attrs string) []byte {
	return []byte(`<?xml version="1.0" ?><data><response value="ACK" ` + attrs + `/></data>`)
}

func nakResp(reason string) []byte {
	return []byte(`<?xml version="1.0" ?><data><response value="NAK"/><log value="` + reason + `"/></data>`)
}

func TestConfigureSucceedsOnFirstTry(t *testing.T) {
	ft := &scriptedTransport{
		replies: [][]byte{
			ackResp(`TargetName="8998" Version="2" MemoryName="ufs" MaxPayloadSizeToTargetInBytes="1048576" SectorSizeInBytes="4096"`),
		},
	}
	c := NewClient(ft)
	err := c.Configure("ufs", 4096)
	require.NoError(t, err)
	require.Equal(t, "ufs", c.Config().MemoryName)
	require.Equal(t, 4096, c.Config().SectorSize)
}

func TestConfigureFallsBackThroughLadder(t *testing.T) {
	ft := &scriptedTransport{
		replies: [][]byte{
			nakResp("Failed to open the SDCC Device"),
			ackResp(`MemoryName="emmc" SectorSizeInBytes="512"`),
		},
	}
	c := NewClient(ft)
	err := c.Configure("ufs", 4096)
	require.NoError(t, err)
	require.Equal(t, "emmc", c.Config().MemoryName)
}

func TestConfigureNeedsAuth(t *testing.T) {
	ft := &scriptedTransport{
		replies: [][]byte{
			nakResp("Authenticate first"),
		},
	}
	c := NewClient(ft)
	err := c.Configure("ufs", 4096)
	require.ErrorIs(t, err, edlerr.ErrNeedsAuth)
}

func TestReadChunksAndAssemblesSectors(t *testing.T) {
	sectorSize := 512
	payload := bytes.Repeat([]byte{0xAB}, sectorSize*2)
	ft := &scriptedTransport{
		replies: [][]byte{
			[]byte(`<?xml version="1.0" ?><data><response value="ACK" rawmode="true"/></data>`),
			payload,
			ackResp(``),
		},
	}
	c := NewClient(ft)
	c.cfg.SectorSize = sectorSize
	var out bytes.Buffer
	err := c.Read(0, 0, 2, &out, nil)
	require.NoError(t, err)
	require.Equal(t, payload, out.Bytes())
}

func TestDetectSupportedFunctionsParsesLogBlock(t *testing.T) {
	logFragment := `<?xml version="1.0" ?><data>` +
		`<log value="Supported functions"/>` +
		`<log value="program, read, erase"/>` +
		`<log value="end of supported functions"/>` +
		`<response value="ACK"/>` +
		`</data>`
	ft := &scriptedTransport{replies: [][]byte{[]byte(logFragment)}}
	c := NewClient(ft)
	fns, err := c.DetectSupportedFunctions()
	require.NoError(t, err)
	require.True(t, fns["erase"])
	require.True(t, c.Supports("erase"))
}
