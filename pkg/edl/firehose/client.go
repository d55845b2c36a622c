package firehose

import (
	"fmt"
	"io"
	"strings"
	"time"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/sparse"
	"qflash/pkg/edl/transport"
)

// Config is the negotiated session configuration (§3 FirehoseConfig).
type Config struct {
	TargetName           string
	Version              string
	MemoryName           string
	SectorSize           int
	MaxPayloadToTarget    int
	MaxPayloadFromTarget  int
	MaxXMLSize            int
	MaxLun                int
	NumPhysical           int
}

// Client drives the Firehose programmer over a Framer (§4.4).
type Client struct {
	f       *Framer
	cfg     Config
	timeout time.Duration

	// supportedFns is the set advertised by a <nop/> supported-functions
	// query (§4.4's "Supported-function detection").
	supportedFns map[string]bool
}

const defaultTimeout = 5 * time.Second

func NewClient(t transport.Transport) *Client {
	return &Client{f: NewFramer(t), timeout: defaultTimeout}
}

// ProgressFunc reports (bytesDone, bytesTotal); must be cheap and must not
// reenter the owning session (§5).
type ProgressFunc func(done, total int64)

// defaultMemoryNames is the configure retry ladder order (§4.4), starting
// from whatever the caller prefers.
func retryChain(preferred string) []string {
	order := []string{"ufs", "emmc", "nand"}
	chain := []string{preferred}
	for _, m := range order {
		if m != preferred {
			chain = append(chain, m)
		}
	}
	return chain
}

// Configure negotiates the session, retrying through the memory-type/
// sector-size ladder up to 4 levels per §4.4/§8.
func (c *Client) Configure(preferredMemory string, sectorSize int) error {
	if preferredMemory == "" {
		preferredMemory = "ufs"
	}
	if sectorSize == 0 {
		sectorSize = 4096
	}

	chain := retryChain(preferredMemory)
	attempts := 0
	memIdx := 0
	mem := chain[memIdx]
	size := sectorSize

	for attempts < 4 {
		attempts++
		resp, err := c.doConfigure(mem, size)
		if err != nil {
			return err
		}
		if resp.IsACK {
			c.applyConfigureAck(resp, mem, size)
			return nil
		}

		reason := resp.Attrs["value"]
		if reason == "" && len(resp.LogLines) > 0 {
			reason = resp.LogLines[len(resp.LogLines)-1]
		}
		switch {
		case strings.Contains(reason, "Authenticate"), strings.Contains(reason, "Only nop and sig tag can be"):
			return edlerr.ErrNeedsAuth
		case strings.Contains(reason, "Not support configure MemoryName eMMC"):
			mem = "ufs"
		case strings.Contains(reason, "Not support configure MemoryName UFS"),
			strings.Contains(reason, "Failed to open the SDCC Device"):
			mem = "emmc"
			size = 512
		case strings.Contains(reason, "Failed to set the IO options"):
			mem = "nand"
		case strings.Contains(reason, "sector") || strings.Contains(reason, "Sector"):
			if size == 512 {
				size = 4096
			} else {
				size = 512
			}
		default:
			return &edlerr.NAK{Reason: reason}
		}
	}
	return edlerr.Wrap(edlerr.KindConfig, "memory-not-supported", fmt.Errorf("configure ladder exhausted after %d attempts", attempts))
}

func (c *Client) doConfigure(mem string, sectorSize int) (*Response, error) {
	attrs := []Attr{
		A("MemoryName", mem),
		AI("MaxPayloadSizeToTargetInBytes", 1048576),
		AI("ZLPAwareHost", 1),
		AI("SkipStorageInit", 0),
		AI("SkipWrite", 0),
		AI("AlwaysValidate", 0),
		AI("Verbose", 0),
	}
	_ = sectorSize // sector size is requested implicitly via mem choice; ack carries the real value
	if err := c.f.SendElement("configure", attrs...); err != nil {
		return nil, err
	}
	return c.f.ReadResponse(c.timeout)
}

func (c *Client) applyConfigureAck(resp *Response, mem string, size int) {
	c.cfg.MemoryName = mem
	c.cfg.SectorSize = size
	if v, ok := resp.Attrs["TargetName"]; ok {
		c.cfg.TargetName = v
	}
	if v, ok := resp.Attrs["Version"]; ok {
		c.cfg.Version = v
	}
	if v, ok := resp.Attrs["MemoryName"]; ok {
		c.cfg.MemoryName = v
	}
	c.cfg.MaxPayloadToTarget = atoiOr(resp.Attrs["MaxPayloadSizeToTargetInBytesSupported"],
		atoiOr(resp.Attrs["MaxPayloadSizeToTargetInBytes"], 1048576))
	c.cfg.MaxPayloadFromTarget = atoiOr(resp.Attrs["MaxPayloadSizeFromTargetInBytes"], 1048576)
	c.cfg.MaxXMLSize = atoiOr(resp.Attrs["MaxXMLSizeInBytes"], 4096)
	if ss := atoiOr(resp.Attrs["SectorSizeInBytes"], 0); ss != 0 {
		c.cfg.SectorSize = ss
	}
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return def
	}
	return v
}

// Config returns the negotiated configuration.
func (c *Client) Config() Config { return c.cfg }

const chunkSectorsRead = 8192
const chunkSectorsWrite = 16384
const progressGranularity = 5 * 1024 * 1024

// Read pulls num sectors of partition lun starting at startSector into w,
// chunked to 8192 sectors per request (§4.4).
func (c *Client) Read(lun int, startSector uint64, numSectors uint64, w io.Writer, progress ProgressFunc) error {
	sectorSize := uint64(c.cfg.SectorSize)
	total := int64(numSectors * sectorSize)
	var done int64
	var sinceReport int64

	for numSectors > 0 {
		chunk := numSectors
		if chunk > chunkSectorsRead {
			chunk = chunkSectorsRead
		}
		attrs := []Attr{
			AU("SECTOR_SIZE_IN_BYTES", sectorSize),
			AU("num_partition_sectors", chunk),
			AI("physical_partition_number", lun),
			AU("start_sector", startSector),
			A("filename", ""),
		}
		if err := c.f.SendElement("read", attrs...); err != nil {
			return err
		}
		resp, err := c.f.ReadResponse(c.timeout)
		if err != nil {
			return err
		}
		if !resp.Rawmode {
			if resp.IsNAK {
				return &edlerr.NAK{Reason: resp.Attrs["value"]}
			}
			return edlerr.ErrRawmodeMissing
		}
		n := int(chunk * sectorSize)
		if err := c.f.ReadRawInto(n, c.timeout, func(b []byte) error {
			if _, err := w.Write(b); err != nil {
				return edlerr.Wrap(edlerr.KindIO, "short-write", err)
			}
			done += int64(len(b))
			sinceReport += int64(len(b))
			if progress != nil && sinceReport >= progressGranularity {
				progress(done, total)
				sinceReport = 0
			}
			return nil
		}); err != nil {
			return err
		}
		final, err := c.f.ReadResponse(c.timeout)
		if err != nil {
			return err
		}
		if !final.IsACK {
			return &edlerr.NAK{Reason: final.Attrs["value"]}
		}
		startSector += chunk
		numSectors -= chunk
	}
	if progress != nil {
		progress(total, total)
	}
	return nil
}

// Write programs source onto partition lun starting at startSector. If
// source is a flat image the final chunk is zero-padded to a sector
// boundary; if it's an Android Sparse image it is expanded on the fly
// (§4.4).
func (c *Client) Write(lun int, startSector uint64, source io.Reader, sourceLen int64, progress ProgressFunc) error {
	expander, isSparse, err := sparse.NewStreamExpander(source)
	if err != nil {
		return edlerr.Wrap(edlerr.KindIO, "short-read", err)
	}
	var r io.Reader = source
	var total int64 = sourceLen
	if isSparse {
		r = expander
		total = int64(expander.ExpandedSize())
	}
	return c.writeStream(lun, startSector, r, total, progress)
}

func (c *Client) writeStream(lun int, startSector uint64, r io.Reader, total int64, progress ProgressFunc) error {
	sectorSize := int64(c.cfg.SectorSize)
	var done int64
	var sinceReport int64
	buf := make([]byte, chunkSectorsWrite*sectorSize)

	for {
		n, rerr := io.ReadFull(r, buf)
		if n == 0 && rerr == io.EOF {
			break
		}
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			// Pad the final chunk to a sector boundary with zeros.
			if rem := int64(n) % sectorSize; rem != 0 {
				pad := sectorSize - rem
				for i := int64(0); i < pad; i++ {
					buf[int64(n)+i] = 0
				}
				n += int(pad)
			}
		} else if rerr != nil {
			return edlerr.Wrap(edlerr.KindIO, "short-read", rerr)
		}
		if n == 0 {
			break
		}
		sectors := uint64(int64(n) / sectorSize)

		attrs := []Attr{
			AU("SECTOR_SIZE_IN_BYTES", uint64(sectorSize)),
			AU("num_partition_sectors", sectors),
			AI("physical_partition_number", lun),
			AU("start_sector", startSector),
			A("filename", "DISK"),
		}
		if err := c.f.SendElement("program", attrs...); err != nil {
			return err
		}
		resp, err := c.f.ReadResponse(c.timeout)
		if err != nil {
			return err
		}
		if !resp.Rawmode {
			if resp.IsNAK {
				return &edlerr.NAK{Reason: resp.Attrs["value"]}
			}
			return edlerr.ErrRawmodeMissing
		}
		if err := c.f.WriteRaw(buf[:n]); err != nil {
			return err
		}
		final, err := c.f.ReadResponse(c.timeout)
		if err != nil {
			return err
		}
		if !final.IsACK {
			return &edlerr.NAK{Reason: final.Attrs["value"]}
		}

		done += int64(n)
		sinceReport += int64(n)
		if progress != nil && sinceReport >= progressGranularity {
			progress(done, total)
			sinceReport = 0
		}
		startSector += sectors
		time.Sleep(200 * time.Millisecond)

		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
	}
	if progress != nil {
		progress(total, total)
	}
	return nil
}

// Erase issues <erase .../> for the given range (§4.4).
func (c *Client) Erase(lun int, startSector, numSectors uint64) error {
	attrs := []Attr{
		AU("SECTOR_SIZE_IN_BYTES", uint64(c.cfg.SectorSize)),
		AU("num_partition_sectors", numSectors),
		AI("physical_partition_number", lun),
		AU("start_sector", startSector),
	}
	if err := c.f.SendElement("erase", attrs...); err != nil {
		return err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !resp.IsACK {
		return &edlerr.NAK{Reason: resp.Attrs["value"]}
	}
	return nil
}

// PatchEntry is a single parsed <patch> directive (§4.4).
type PatchEntry struct {
	SectorSizeInBytes int
	ByteOffset        uint64
	Filename          string
	PhysicalPartition int
	SizeInBytes       int
	StartSector       string
	Value             string
}

// PatchResult records the outcome of one patch entry; partial failure does
// not abort the batch (§4.4).
type PatchResult struct {
	Entry PatchEntry
	Err   error
}

// ApplyPatches applies a list of patch entries in document order.
func (c *Client) ApplyPatches(entries []PatchEntry) []PatchResult {
	results := make([]PatchResult, 0, len(entries))
	for _, e := range entries {
		err := c.applyOnePatch(e)
		results = append(results, PatchResult{Entry: e, Err: err})
	}
	return results
}

func (c *Client) applyOnePatch(e PatchEntry) error {
	attrs := []Attr{
		AI("SECTOR_SIZE_IN_BYTES", e.SectorSizeInBytes),
		AU("byte_offset", e.ByteOffset),
		A("filename", e.Filename),
		AI("physical_partition_number", e.PhysicalPartition),
		AI("size_in_bytes", e.SizeInBytes),
		A("start_sector", e.StartSector),
		A("value", e.Value),
	}
	if err := c.f.SendElement("patch", attrs...); err != nil {
		return err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !resp.IsACK {
		return &edlerr.NAK{Reason: resp.Attrs["value"]}
	}
	return nil
}

// Peek reads size bytes of device memory at addr via <peek/> (§4.4).
func (c *Client) Peek(addr uint64, size uint64) ([]byte, error) {
	attrs := []Attr{AU("address64", addr), AU("size_in_bytes", size)}
	if err := c.f.SendElement("peek", attrs...); err != nil {
		return nil, err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return nil, err
	}
	if !resp.IsACK {
		return nil, &edlerr.NAK{Reason: resp.Attrs["value"]}
	}
	hexVal := resp.Attrs["value"]
	return decodeHexValue(hexVal)
}

// Poke writes a hex-string value to device memory at addr (§4.4).
func (c *Client) Poke(addr uint64, size uint64, hexValue string) error {
	attrs := []Attr{AU("address64", addr), AU("size_in_bytes", size), A("value", hexValue)}
	if err := c.f.SendElement("poke", attrs...); err != nil {
		return err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !resp.IsACK {
		return &edlerr.NAK{Reason: resp.Attrs["value"]}
	}
	return nil
}

const peekWindow = 1024 * 1024

// DumpMemory iterates Peek in 1 MiB windows and writes to w (§4.4, §6).
func (c *Client) DumpMemory(addr, size uint64, w io.Writer, progress ProgressFunc) error {
	var done int64
	total := int64(size)
	for size > 0 {
		n := uint64(peekWindow)
		if n > size {
			n = size
		}
		data, err := c.Peek(addr, n)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return edlerr.Wrap(edlerr.KindIO, "short-write", err)
		}
		addr += n
		size -= n
		done += int64(n)
		if progress != nil {
			progress(done, total)
		}
	}
	return nil
}

func decodeHexValue(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		var b int
		if _, err := fmt.Sscanf(s[i*2:i*2+2], "%02x", &b); err != nil {
			return nil, edlerr.Wrap(edlerr.KindFraming, "xml-parse", err)
		}
		out[i] = byte(b)
	}
	return out, nil
}

// gptSectors returns how many sectors to back up/restore for the given
// sector size (§4.4): 6 sectors for 4 KiB geometry, 34 for 512 B geometry.
func gptSectors(sectorSize int) uint64 {
	if sectorSize >= 4096 {
		return 6
	}
	return 34
}

// BackupGPT reads the GPT geometry region of lun into w, using the special
// NUM_DISK_SECTORS-N. start-sector form isn't needed for a forward read of
// the primary GPT at sector 0 (§4.4).
func (c *Client) BackupGPT(lun int, w io.Writer) error {
	sectors := gptSectors(c.cfg.SectorSize)
	return c.Read(lun, 0, sectors, w, nil)
}

// RestoreGPT programs the backed-up GPT bytes back onto lun starting at
// sector 0.
func (c *Client) RestoreGPT(lun int, r io.Reader, length int64) error {
	return c.writeStream(lun, 0, r, length, nil)
}

// BackupGPTAtEnd reads the backup (secondary) GPT using the literal
// "NUM_DISK_SECTORS-k." start-sector form (§4.4, §6).
func (c *Client) BackupGPTAtEnd(lun int, k uint64, w io.Writer) error {
	sectors := gptSectors(c.cfg.SectorSize)
	attrs := []Attr{
		AU("SECTOR_SIZE_IN_BYTES", uint64(c.cfg.SectorSize)),
		AU("num_partition_sectors", sectors),
		AI("physical_partition_number", lun),
		A("start_sector", fmt.Sprintf("NUM_DISK_SECTORS-%d.", k)),
		A("filename", ""),
	}
	if err := c.f.SendElement("read", attrs...); err != nil {
		return err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !resp.Rawmode {
		return edlerr.ErrRawmodeMissing
	}
	n := int(sectors * uint64(c.cfg.SectorSize))
	if err := c.f.ReadRawInto(n, c.timeout, func(b []byte) error {
		_, err := w.Write(b)
		return err
	}); err != nil {
		return err
	}
	final, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !final.IsACK {
		return &edlerr.NAK{Reason: final.Attrs["value"]}
	}
	return nil
}

// VIPExchange performs the OPPO/OnePlus VIP digest+signature handshake
// (§4.4): write digest, verify ping, write signature, sha256init, each
// phase separated by a 200 ms pause. requireStepACK is the device-quirk
// toggle noted as an open question in §9.
func (c *Client) VIPExchange(digest, signature []byte, requireStepACK bool) error {
	steps := []func() error{
		func() error { return c.f.WriteRaw(digest) },
		func() error { return c.f.SendElement("verify", A("value", "ping"), AI("EnableVip", 1)) },
		func() error { return c.f.WriteRaw(signature) },
		func() error { return c.f.SendElement("sha256init", AI("Verbose", 1)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
		if requireStepACK {
			resp, err := c.f.ReadResponse(c.timeout)
			if err != nil {
				return err
			}
			if !resp.IsACK {
				return &edlerr.NAK{Reason: resp.Attrs["value"]}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !requireStepACK {
		resp, err := c.f.ReadResponse(c.timeout)
		if err != nil {
			return err
		}
		if !resp.IsACK {
			return &edlerr.NAK{Reason: resp.Attrs["value"]}
		}
	}
	return nil
}

// defaultSupportedFns is unioned with whatever a live <nop/> reports
// (§4.4's "Supported-function detection").
var defaultSupportedFns = []string{
	"program", "read", "erase", "patch", "peek", "poke", "nop", "power",
	"getstorageinfo", "setbootablestoragedrive", "configure",
}

// DetectSupportedFunctions sends <nop/> and parses the enumerated tokens
// between the "Supported functions" and "end of supported functions"
// markers, unioned with the embedded default list (§4.4).
func (c *Client) DetectSupportedFunctions() (map[string]bool, error) {
	if err := c.f.SendElement("nop"); err != nil {
		return nil, err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	for _, name := range defaultSupportedFns {
		set[name] = true
	}

	inBlock := false
	for _, line := range resp.LogLines {
		if strings.Contains(line, "Supported functions") {
			inBlock = true
			continue
		}
		if strings.Contains(line, "end of supported functions") {
			inBlock = false
			continue
		}
		if inBlock {
			for _, tok := range strings.Fields(line) {
				set[strings.Trim(tok, ",")] = true
			}
		}
	}
	c.supportedFns = set
	return set, nil
}

// Supports reports whether a tag was advertised by the last
// DetectSupportedFunctions call.
func (c *Client) Supports(tag string) bool {
	if c.supportedFns == nil {
		return false
	}
	return c.supportedFns[tag]
}

// SetBootableStorageDrive sets which LUN the device boots from.
func (c *Client) SetBootableStorageDrive(lun int) error {
	if err := c.f.SendElement("setbootablestoragedrive", AI("value", lun)); err != nil {
		return err
	}
	resp, err := c.f.ReadResponse(c.timeout)
	if err != nil {
		return err
	}
	if !resp.IsACK {
		return &edlerr.NAK{Reason: resp.Attrs["value"]}
	}
	return nil
}

// Power sends <power value="..."/>; value is one of reset/off or a reboot
// mode string (§10 supplement: reboot modes).
func (c *Client) Power(value string) error {
	if err := c.f.SendElement("power", A("value", value)); err != nil {
		return err
	}
	_, err := c.f.ReadResponse(c.timeout)
	return err
}

// Benchmark issues a bounded read-then-discard loop and reports MB/s (§10
// supplement, named but unelaborated in §2's component table).
func (c *Client) Benchmark(lun int, sectors uint64) (float64, error) {
	start := time.Now()
	if err := c.Read(lun, 0, sectors, io.Discard, nil); err != nil {
		return 0, err
	}
	elapsed := time.Since(start).Seconds()
	if elapsed == 0 {
		return 0, nil
	}
	bytes := float64(sectors * uint64(c.cfg.SectorSize))
	return (bytes / (1024 * 1024)) / elapsed, nil
}
