package firehose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/edlerr"
)

// fakeTransport scripts inbound reads and records outbound writes, same
// shape used in the sahara package's tests.
type fakeTransport struct {
	inbound [][]byte
	written [][]byte
}

func (f *fakeTransport) Open(name string) error { return nil }
func (f *fakeTransport) Close() error            { return nil }
func (f *fakeTransport) ForceClose() error       { return nil }
func (f *fakeTransport) IsOpen() bool            { return true }
func (f *fakeTransport) Purge() error            { return nil }

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

// TestACKDetector verifies the testable property: the detector returns true
// iff the last complete response element carries value="ACK" or
// rawmode="true".
func TestACKDetector(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		wantACK  bool
		wantNAK  bool
		wantRaw  bool
	}{
		{
			name:     "plain ack",
			fragment: `<?xml version="1.0" ?><data><response value="ACK"/></data>`,
			wantACK:  true,
		},
		{
			name:     "plain nak",
			fragment: `<?xml version="1.0" ?><data><response value="NAK"/></data>`,
			wantNAK:  true,
		},
		{
			name:     "rawmode true counts as ack",
			fragment: `<?xml version="1.0" ?><data><response value="ACK" rawmode="true"/></data>`,
			wantACK:  true,
			wantRaw:  true,
		},
		{
			name:     "log lines ignored, last response wins",
			fragment: `<?xml version="1.0" ?><data><log value="some info"/><response value="NAK"/><response value="ACK"/></data>`,
			wantACK:  true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := parseResponse(tc.fragment)
			require.Equal(t, tc.wantACK, resp.IsACK)
			require.Equal(t, tc.wantNAK, resp.IsNAK)
			require.Equal(t, tc.wantRaw, resp.Rawmode)
		})
	}
}

func TestReadResponseAccumulatesUntilDataClose(t *testing.T) {
	ft := &fakeTransport{
		inbound: [][]byte{
			[]byte(`<?xml version="1.0" ?><data><respo`),
			[]byte(`nse value="ACK"/></data>`),
		},
	}
	f := NewFramer(ft)
	resp, err := f.ReadResponse(time.Second)
	require.NoError(t, err)
	require.True(t, resp.IsACK)
}

func TestReadResponseTimesOutAfterMaxEmptyPolls(t *testing.T) {
	ft := &fakeTransport{}
	f := NewFramer(ft)
	_, err := f.ReadResponse(time.Millisecond)
	require.Error(t, err)
}

func TestBuildElementEscapesAttributes(t *testing.T) {
	out := BuildElement("program", A("filename", `a"b&c<d>`))
	require.Contains(t, string(out), `filename="a&quot;b&amp;c&lt;d&gt;"`)
}
