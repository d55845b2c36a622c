// Package lp parses Android's liblp "super" dynamic-partition metadata:
// the geometry block, one or more metadata slots, and each partition's
// extent list (§4.8).
package lp

import (
	"encoding/binary"

	"qflash/pkg/edl/edlerr"
)

const (
	geometryMagic = 0x616C4467 // "gDla" little-endian, liblp's LP_METADATA_GEOMETRY_MAGIC
	metadataMagic = 0x414C5030 // "0PLA" little-endian, liblp's LP_METADATA_HEADER_MAGIC

	logicalBlockSize = 4096
)

// Geometry is the fixed, replicated geometry block that precedes every
// metadata slot.
type Geometry struct {
	MetadataMaxSize  uint32
	MetadataSlotCount uint32
	LogicalBlockSize uint32
}

// Header is one metadata slot's header.
type Header struct {
	MajorVersion  uint16
	MinorVersion  uint16
	HeaderSize    uint32
	TablesSize    uint32
	PartitionsOff uint32
	PartitionsNum uint32
	PartitionsEntrySize uint32
	ExtentsOff    uint32
	ExtentsNum    uint32
	ExtentsEntrySize uint32
	BlockDeviceOff uint32
	BlockDeviceNum uint32
	BlockDeviceEntrySize uint32
}

// Extent is one contiguous run backing a partition, in either sectors
// (LINEAR) or a placeholder (ZERO).
type Extent struct {
	NumSectors     uint64
	TargetType     uint32
	TargetData     uint64 // start sector on the backing block device, for LINEAR
	TargetSource   uint32 // block device index
}

// Partition is one logical partition's name, attributes, and extents.
type Partition struct {
	Name       string
	Attributes uint32
	Extents    []Extent
}

// Metadata is one fully parsed super metadata slot.
type Metadata struct {
	Geometry   Geometry
	Header     Header
	Partitions []Partition
}

const (
	extentTypeZero   = 0
	extentTypeLinear = 1
)

// Parse decodes a super metadata image. unitSize resolves the open
// question of whether extent target_data is in 512-byte sectors (the
// on-disk convention) or Geometry.LogicalBlockSize units: Parse tries
// ×512 first, and if any extent's target_data appears out of range for
// the supplied deviceSectors, re-parses using ×LogicalBlockSize (§9).
func Parse(data []byte, deviceSectors uint64) (*Metadata, error) {
	geo, geoOff, err := parseGeometry(data)
	if err != nil {
		return nil, err
	}

	hdrOff := geoOff + 4096 // geometry block is padded to two 4 KiB copies; header follows
	if hdrOff+80 > len(data) {
		return nil, edlerr.ErrCorruptMetadata
	}
	hdr := parseHeader(data[hdrOff:])

	md, err := decodePartitions(data, hdrOff, hdr, geo, 512)
	if err != nil {
		return nil, err
	}
	if deviceSectors > 0 && !extentsInRange(md, deviceSectors) {
		md2, err2 := decodePartitions(data, hdrOff, hdr, geo, int(geo.LogicalBlockSize))
		if err2 == nil && extentsInRange(md2, deviceSectors) {
			return md2, nil
		}
	}
	return md, nil
}

func extentsInRange(md *Metadata, deviceSectors uint64) bool {
	for _, p := range md.Partitions {
		for _, e := range p.Extents {
			if e.TargetType == extentTypeLinear && e.TargetData+e.NumSectors > deviceSectors {
				return false
			}
		}
	}
	return true
}

func parseGeometry(data []byte) (Geometry, int, error) {
	// Geometry appears twice (primary at offset 4096, backup at 8192) for
	// redundancy; try primary then backup.
	for _, off := range []int{4096, 8192} {
		if off+32 > len(data) {
			continue
		}
		if binary.LittleEndian.Uint32(data[off:off+4]) != geometryMagic {
			continue
		}
		g := Geometry{
			MetadataMaxSize:   binary.LittleEndian.Uint32(data[off+8 : off+12]),
			MetadataSlotCount: binary.LittleEndian.Uint32(data[off+12 : off+16]),
			LogicalBlockSize:  binary.LittleEndian.Uint32(data[off+16 : off+20]),
		}
		if g.LogicalBlockSize == 0 {
			g.LogicalBlockSize = logicalBlockSize
		}
		return g, off, nil
	}
	return Geometry{}, 0, edlerr.ErrBadMagic
}

func parseHeader(b []byte) Header {
	return Header{
		MajorVersion:         binary.LittleEndian.Uint16(b[8:10]),
		MinorVersion:         binary.LittleEndian.Uint16(b[10:12]),
		HeaderSize:           binary.LittleEndian.Uint32(b[12:16]),
		TablesSize:           binary.LittleEndian.Uint32(b[48:52]),
		PartitionsOff:        binary.LittleEndian.Uint32(b[56:60]),
		PartitionsNum:        binary.LittleEndian.Uint32(b[60:64]),
		PartitionsEntrySize:  binary.LittleEndian.Uint32(b[64:68]),
		ExtentsOff:           binary.LittleEndian.Uint32(b[68:72]),
		ExtentsNum:           binary.LittleEndian.Uint32(b[72:76]),
		ExtentsEntrySize:     binary.LittleEndian.Uint32(b[76:80]),
	}
}

func decodePartitions(data []byte, hdrOff int, hdr Header, geo Geometry, extentUnit int) (*Metadata, error) {
	tablesStart := hdrOff + int(hdr.HeaderSize)

	partsOff := tablesStart + int(hdr.PartitionsOff)
	extOff := tablesStart + int(hdr.ExtentsOff)
	if partsOff+int(hdr.PartitionsNum)*int(hdr.PartitionsEntrySize) > len(data) {
		return nil, edlerr.ErrCorruptMetadata
	}
	if extOff+int(hdr.ExtentsNum)*int(hdr.ExtentsEntrySize) > len(data) {
		return nil, edlerr.ErrCorruptMetadata
	}

	extents := make([]Extent, hdr.ExtentsNum)
	for i := range extents {
		off := extOff + i*int(hdr.ExtentsEntrySize)
		e := data[off : off+int(hdr.ExtentsEntrySize)]
		numSectors := binary.LittleEndian.Uint64(e[0:8])
		targetType := binary.LittleEndian.Uint32(e[8:12])
		targetData := binary.LittleEndian.Uint64(e[16:24])
		targetSource := binary.LittleEndian.Uint32(e[24:28])
		if targetType == extentTypeLinear {
			targetData = targetData * uint64(extentUnit) / 512
		}
		extents[i] = Extent{
			NumSectors:   numSectors,
			TargetType:   targetType,
			TargetData:   targetData,
			TargetSource: targetSource,
		}
	}

	parts := make([]Partition, hdr.PartitionsNum)
	for i := range parts {
		off := partsOff + i*int(hdr.PartitionsEntrySize)
		e := data[off : off+int(hdr.PartitionsEntrySize)]
		name := decodeCString(e[0:36])
		attrs := binary.LittleEndian.Uint32(e[36:40])
		firstExtIdx := binary.LittleEndian.Uint32(e[40:44])
		numExtents := binary.LittleEndian.Uint32(e[44:48])

		var pe []Extent
		if int(firstExtIdx)+int(numExtents) <= len(extents) {
			pe = extents[firstExtIdx : firstExtIdx+numExtents]
		}
		parts[i] = Partition{Name: name, Attributes: attrs, Extents: pe}
	}

	return &Metadata{Geometry: geo, Header: hdr, Partitions: parts}, nil
}

func decodeCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// FindPartition returns the named logical partition.
func (m *Metadata) FindPartition(name string) (Partition, bool) {
	for _, p := range m.Partitions {
		if p.Name == name {
			return p, true
		}
	}
	return Partition{}, false
}

// TotalSectors sums a partition's extents, LINEAR and ZERO alike.
func (p Partition) TotalSectors() uint64 {
	var total uint64
	for _, e := range p.Extents {
		total += e.NumSectors
	}
	return total
}
