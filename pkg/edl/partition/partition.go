// Package partition manages the set of partitions known for a flashing
// session, built up from a rawprogram XML manifest, a parsed GPT, or
// partitions discovered live on the device (§4.10).
package partition

import (
	"regexp"
	"strconv"
	"strings"

	"qflash/pkg/edl/edlerr"
	"qflash/pkg/edl/gpt"
)

// Partition is one manifest entry or GPT entry, normalized to a common
// shape regardless of source.
type Partition struct {
	Name        string
	LUN         int
	StartSector uint64
	NumSectors  uint64
	Filename    string
	SparseFlag  bool
	Source      string // "rawprogram", "gpt", "live"
}

// Manager holds the partitions known for one flash session, keyed by
// (lun, name).
type Manager struct {
	partitions []Partition
}

func NewManager() *Manager { return &Manager{} }

// Add appends or replaces (by lun+name) a partition entry.
func (m *Manager) Add(p Partition) {
	for i, existing := range m.partitions {
		if existing.LUN == p.LUN && existing.Name == p.Name {
			m.partitions[i] = p
			return
		}
	}
	m.partitions = append(m.partitions, p)
}

// Find looks up a partition by name across all LUNs, preferring an exact
// lun match when lun >= 0.
func (m *Manager) Find(name string, lun int) (Partition, bool) {
	for _, p := range m.partitions {
		if p.Name != name {
			continue
		}
		if lun < 0 || p.LUN == lun {
			return p, true
		}
	}
	return Partition{}, false
}

// All returns every known partition.
func (m *Manager) All() []Partition { return m.partitions }

var rawprogramEntryRe = regexp.MustCompile(`<program\b([^>]*)/?>`)
var rawAttrRe = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

// LoadRawprogram ingests a rawprogramN.xml manifest's <program> elements
// (§4.10). Tolerant of missing optional fields, matching the Firehose
// framer's parsing stance.
func (m *Manager) LoadRawprogram(xml string, defaultLUN int) error {
	matches := rawprogramEntryRe.FindAllStringSubmatch(xml, -1)
	if matches == nil {
		return edlerr.ErrXMLParse
	}
	for _, match := range matches {
		attrs := map[string]string{}
		for _, am := range rawAttrRe.FindAllStringSubmatch(match[1], -1) {
			attrs[am[1]] = am[2]
		}
		lun := defaultLUN
		if v, ok := attrs["physical_partition_number"]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				lun = n
			}
		}
		start, _ := strconv.ParseUint(strings.TrimSuffix(attrs["start_sector"], "."), 10, 64)
		num, _ := parseFloatSectors(attrs["num_partition_sectors"])
		name := attrs["label"]
		if name == "" {
			name = InferLUNFromFilename(attrs["filename"]).Name
		}
		m.Add(Partition{
			Name:        name,
			LUN:         lun,
			StartSector: start,
			NumSectors:  num,
			Filename:    attrs["filename"],
			SparseFlag:  attrs["sparse"] == "true",
			Source:      "rawprogram",
		})
	}
	return nil
}

// parseFloatSectors handles rawprogram's occasional float-formatted sector
// counts (e.g. "2048.0") in addition to plain integers.
func parseFloatSectors(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strconv.ParseUint(s, 10, 64)
}

// LoadGPT ingests every named entry of a parsed GPT table as partitions on
// the given LUN.
func (m *Manager) LoadGPT(lun int, t *gpt.Table) {
	for _, e := range t.Entries {
		if e.Name == "" {
			continue
		}
		m.Add(Partition{
			Name:        e.Name,
			LUN:         lun,
			StartSector: e.FirstLBA,
			NumSectors:  e.LastLBA - e.FirstLBA + 1,
			Source:      "gpt",
		})
	}
}

// Inferred pairs a filename pattern with the partition name and LUN it
// implies, for images whose rawprogram entry omits an explicit label.
type Inferred struct {
	Name string
	LUN  int
}

var lunHintRe = regexp.MustCompile(`(?i)^(.*?)[_-]?lun0*(\d+)`)

// InferLUNFromFilename derives a partition name (and LUN, when the
// filename encodes one like "persist_lun3.img") from a rawprogram image
// filename (§10 supplement).
func InferLUNFromFilename(filename string) Inferred {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".img")
	base = strings.TrimSuffix(base, ".bin")
	base = strings.TrimSuffix(base, ".mbn")

	if m := lunHintRe.FindStringSubmatch(base); m != nil {
		lun, err := strconv.Atoi(m[2])
		if err == nil {
			name := strings.TrimRight(m[1], "_-")
			if name == "" {
				name = base
			}
			return Inferred{Name: name, LUN: lun}
		}
	}
	return Inferred{Name: base, LUN: -1}
}
