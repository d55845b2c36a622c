// Package firehose implements the second-stage XML+raw protocol: packet
// framing, ACK/NAK detection, rawmode handoff (§4.3), and the full command
// set built on top of it (§4.4).
package firehose

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/transport"
)

// Attr is an ordered XML attribute; vendors are picky about exact
// attribute presence/types (not order), but building them in a stable
// order keeps wire traces reproducible.
type Attr struct {
	Name  string
	Value string
}

func A(name, value string) Attr { return Attr{name, value} }
func AI(name string, value int) Attr {
	return Attr{name, strconv.Itoa(value)}
}
func AU(name string, value uint64) Attr {
	return Attr{name, strconv.FormatUint(value, 10)}
}

// BuildElement renders a single self-closing XML element wrapped in the
// mandatory <?xml?><data>...</data> envelope (§4.3).
func BuildElement(tag string, attrs ...Attr) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" ?><data><`)
	b.WriteString(tag)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}
	b.WriteString(`/></data>`)
	return []byte(b.String())
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")
	return r.Replace(s)
}

var (
	responseRe = regexp.MustCompile(`<response\b([^>]*)/?>`)
	logRe      = regexp.MustCompile(`<log\b([^>]*)/?>`)
	attrRe     = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
)

// Response is the parsed view of one or more <response>/<log> elements
// accumulated between <data> and </data> (§4.3).
type Response struct {
	Raw      string
	Attrs    map[string]string
	IsACK    bool
	IsNAK    bool
	Rawmode  bool
	LogLines []string
}

// parseAttrs extracts attribute name/value pairs from an element's
// attribute substring, tolerant of missing fields (§4.3).
func parseAttrs(s string) map[string]string {
	out := map[string]string{}
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		out[m[1]] = m[2]
	}
	return out
}

// parseResponse extracts the ACK/NAK/rawmode verdict from a complete
// <data>...</data> fragment: the ACK/NAK detector returns true iff the last
// complete <response> element carries value="ACK" (or rawmode="true") per
// the testable property in §8.
func parseResponse(fragment string) *Response {
	r := &Response{Raw: fragment, Attrs: map[string]string{}}

	for _, m := range logRe.FindAllStringSubmatch(fragment, -1) {
		attrs := parseAttrs(m[1])
		if v, ok := attrs["value"]; ok {
			r.LogLines = append(r.LogLines, v)
		}
	}

	matches := responseRe.FindAllStringSubmatch(fragment, -1)
	if len(matches) == 0 {
		return r
	}
	last := matches[len(matches)-1]
	attrs := parseAttrs(last[1])
	r.Attrs = attrs
	switch attrs["value"] {
	case "ACK":
		r.IsACK = true
	case "NAK":
		r.IsNAK = true
	}
	if attrs["rawmode"] == "true" {
		r.Rawmode = true
		r.IsACK = true
	}
	return r
}

const (
	pollInterval  = 50 * time.Millisecond
	maxEmptyPolls = 50
)

// Framer reads/writes Firehose packets over a Transport.
type Framer struct {
	t   transport.Transport
	buf bytes.Buffer
}

func NewFramer(t transport.Transport) *Framer {
	return &Framer{t: t}
}

// SendElement writes one self-closing command element (§4.3).
func (f *Framer) SendElement(tag string, attrs ...Attr) error {
	_, err := f.t.Write(BuildElement(tag, attrs...))
	if err != nil {
		return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	return nil
}

// WriteRaw writes raw bytes directly to the transport (rawmode payload or
// VIP digest/signature stream, §4.4).
func (f *Framer) WriteRaw(p []byte) error {
	_, err := f.t.Write(p)
	if err != nil {
		return edlerr.Wrap(edlerr.KindTransport, "write-failed", err)
	}
	return nil
}

// ReadResponse reads until a complete <data>...</data> fragment has
// arrived, polling up to maxEmptyPolls times with pollInterval between
// empty reads before declaring a timeout (§4.3).
func (f *Framer) ReadResponse(readTimeout time.Duration) (*Response, error) {
	empty := 0
	tmp := make([]byte, 4096)
	for {
		n, err := f.t.Read(tmp, readTimeout)
		if err != nil {
			if err == edlerr.ErrReadTimeout {
				empty++
				if empty >= maxEmptyPolls {
					return nil, edlerr.Wrap(edlerr.KindProtocol, "rawmode-missing", nil)
				}
				time.Sleep(pollInterval)
				continue
			}
			return nil, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyPolls {
				return nil, edlerr.Wrap(edlerr.KindFraming, "unexpected-response", nil)
			}
			time.Sleep(pollInterval)
			continue
		}
		empty = 0
		f.buf.Write(tmp[:n])
		if idx := bytes.LastIndex(f.buf.Bytes(), []byte("</data>")); idx >= 0 {
			end := idx + len("</data>")
			fragment := f.buf.Bytes()[:end]
			resp := parseResponse(string(fragment))
			// Keep anything after this </data> for the next call (can
			// happen if rawmode bytes and the terminal ACK arrive in the
			// same read).
			rest := make([]byte, f.buf.Len()-end)
			copy(rest, f.buf.Bytes()[end:])
			f.buf.Reset()
			f.buf.Write(rest)
			return resp, nil
		}
	}
}

// ReadRaw pulls exactly n bytes of rawmode payload, first draining
// anything left over in the internal buffer from a previous ReadResponse.
func (f *Framer) ReadRaw(n int, readTimeout time.Duration) ([]byte, error) {
	out := make([]byte, 0, n)
	if f.buf.Len() > 0 {
		take := f.buf.Len()
		if take > n {
			take = n
		}
		out = append(out, f.buf.Next(take)...)
	}
	tmp := make([]byte, 65536)
	for len(out) < n {
		remaining := n - len(out)
		readLen := len(tmp)
		if readLen > remaining {
			readLen = remaining
		}
		read, err := f.t.Read(tmp[:readLen], readTimeout)
		if err != nil {
			return nil, err
		}
		out = append(out, tmp[:read]...)
	}
	return out, nil
}

// WriteRawInto is used when rawmode data must be written straight to a
// destination (a file, a hash) as it's read, without buffering the whole
// transfer in memory — callers pass a sink func.
func (f *Framer) ReadRawInto(n int, readTimeout time.Duration, sink func([]byte) error) error {
	remaining := n
	if f.buf.Len() > 0 {
		take := f.buf.Len()
		if take > remaining {
			take = remaining
		}
		chunk := f.buf.Next(take)
		if err := sink(chunk); err != nil {
			return err
		}
		remaining -= take
	}
	tmp := make([]byte, 65536)
	for remaining > 0 {
		readLen := len(tmp)
		if readLen > remaining {
			readLen = remaining
		}
		n, err := f.t.Read(tmp[:readLen], readTimeout)
		if err != nil {
			return err
		}
		if err := sink(tmp[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}
