// Package gpt parses and rewrites GUID Partition Tables, autodetecting
// 512 or 4096 byte sector geometry from the protective MBR and header
// location (§4.6).
package gpt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"qflash/pkg/edl/edlerr"
)

const signature = "EFI PART"

// Header is the parsed GPT header (LBA1 of whichever sector size applies).
type Header struct {
	Signature           string
	Revision            uint32
	HeaderSize          uint32
	HeaderCRC32         uint32
	CurrentLBA          uint64
	BackupLBA           uint64
	FirstUsableLBA      uint64
	LastUsableLBA       uint64
	DiskGUID            [16]byte
	PartitionEntryLBA   uint64
	NumPartitionEntries uint32
	SizeOfPartitionEntry uint32
	PartitionArrayCRC32 uint32
}

// Entry is one 128-byte GPT partition entry.
type Entry struct {
	TypeGUID   [16]byte
	UniqueGUID [16]byte
	FirstLBA   uint64
	LastLBA    uint64
	Attributes uint64
	Name       string // decoded from UTF-16LE, trimmed of trailing NULs
}

// Table is a fully parsed GPT: header plus its partition entries.
type Table struct {
	SectorSize int
	Header     Header
	Entries    []Entry
	raw        []byte // the exact bytes this table was parsed from, for rewrite
}

// Detect tries 512 then 4096 byte sector sizes against the primary GPT
// region (LBA0 protective MBR + LBA1 header) and returns whichever one
// parses (§4.6, §9's open-question resolution: try the common size first).
func Detect(data []byte) (*Table, error) {
	for _, sectorSize := range []int{512, 4096} {
		if t, ok := tryParse(data, sectorSize); ok {
			return t, nil
		}
	}
	return nil, edlerr.ErrBadMagic
}

// ParseWithSectorSize parses assuming a known sector size, without
// autodetection.
func ParseWithSectorSize(data []byte, sectorSize int) (*Table, error) {
	t, ok := tryParse(data, sectorSize)
	if !ok {
		return nil, edlerr.ErrBadMagic
	}
	return t, nil
}

func tryParse(data []byte, sectorSize int) (*Table, bool) {
	if len(data) < sectorSize*2 {
		return nil, false
	}
	hdrOff := sectorSize
	if len(data) < hdrOff+92 {
		return nil, false
	}
	if !bytes.Equal(data[hdrOff:hdrOff+8], []byte(signature)) {
		return nil, false
	}
	h := decodeHeader(data[hdrOff : hdrOff+92])

	entriesStart := int(h.PartitionEntryLBA) * sectorSize
	entrySize := int(h.SizeOfPartitionEntry)
	if entrySize == 0 {
		entrySize = 128
	}
	numEntries := int(h.NumPartitionEntries)
	need := entriesStart + numEntries*entrySize
	if need > len(data) {
		return nil, false
	}

	entries := make([]Entry, 0, numEntries)
	for i := 0; i < numEntries; i++ {
		off := entriesStart + i*entrySize
		e := decodeEntry(data[off : off+128])
		if isZeroGUID(e.TypeGUID) {
			continue
		}
		entries = append(entries, e)
	}

	raw := make([]byte, len(data))
	copy(raw, data)
	return &Table{SectorSize: sectorSize, Header: h, Entries: entries, raw: raw}, true
}

func decodeHeader(b []byte) Header {
	return Header{
		Signature:            string(b[0:8]),
		Revision:             binary.LittleEndian.Uint32(b[8:12]),
		HeaderSize:           binary.LittleEndian.Uint32(b[12:16]),
		HeaderCRC32:          binary.LittleEndian.Uint32(b[16:20]),
		CurrentLBA:           binary.LittleEndian.Uint64(b[24:32]),
		BackupLBA:            binary.LittleEndian.Uint64(b[32:40]),
		FirstUsableLBA:       binary.LittleEndian.Uint64(b[40:48]),
		LastUsableLBA:        binary.LittleEndian.Uint64(b[48:56]),
		DiskGUID:             [16]byte(b[56:72]),
		PartitionEntryLBA:    binary.LittleEndian.Uint64(b[72:80]),
		NumPartitionEntries:  binary.LittleEndian.Uint32(b[80:84]),
		SizeOfPartitionEntry: binary.LittleEndian.Uint32(b[84:88]),
		PartitionArrayCRC32:  binary.LittleEndian.Uint32(b[88:92]),
	}
}

func decodeEntry(b []byte) Entry {
	e := Entry{
		TypeGUID:   [16]byte(b[0:16]),
		UniqueGUID: [16]byte(b[16:32]),
		FirstLBA:   binary.LittleEndian.Uint64(b[32:40]),
		LastLBA:    binary.LittleEndian.Uint64(b[40:48]),
		Attributes: binary.LittleEndian.Uint64(b[48:56]),
	}
	e.Name = decodeUTF16Name(b[56:128])
	return e
}

func decodeUTF16Name(b []byte) string {
	var runes []rune
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			break
		}
		runes = append(runes, rune(u))
	}
	return string(runes)
}

func isZeroGUID(g [16]byte) bool {
	for _, b := range g {
		if b != 0 {
			return false
		}
	}
	return true
}

// FindByName returns the entry whose name matches, case-sensitive (GPT
// names are case-sensitive UTF-16 in practice).
func (t *Table) FindByName(name string) (Entry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// RewriteChecksums recomputes the header and partition-array CRC32 values
// over t.raw and returns the patched bytes, used after an in-place
// partition edit so a restored GPT isn't rejected as corrupt (§10
// supplement: GPT CRC32 verification on write).
func (t *Table) RewriteChecksums() ([]byte, error) {
	if t.raw == nil {
		return nil, fmt.Errorf("gpt: table has no backing bytes to rewrite")
	}
	out := make([]byte, len(t.raw))
	copy(out, t.raw)

	sectorSize := t.SectorSize
	hdrOff := sectorSize
	entriesStart := int(t.Header.PartitionEntryLBA) * sectorSize
	entrySize := int(t.Header.SizeOfPartitionEntry)
	if entrySize == 0 {
		entrySize = 128
	}
	arrayLen := int(t.Header.NumPartitionEntries) * entrySize
	if entriesStart+arrayLen > len(out) {
		return nil, edlerr.ErrCorruptMetadata
	}

	arrayCRC := CRC32(out[entriesStart : entriesStart+arrayLen])
	binary.LittleEndian.PutUint32(out[hdrOff+88:hdrOff+92], arrayCRC)

	// Header CRC is computed over HeaderSize bytes with the CRC field
	// itself zeroed.
	hdrLen := int(t.Header.HeaderSize)
	if hdrLen == 0 || hdrOff+hdrLen > len(out) {
		hdrLen = 92
	}
	hdrBuf := make([]byte, hdrLen)
	copy(hdrBuf, out[hdrOff:hdrOff+hdrLen])
	hdrBuf[16], hdrBuf[17], hdrBuf[18], hdrBuf[19] = 0, 0, 0, 0
	headerCRC := CRC32(hdrBuf)
	binary.LittleEndian.PutUint32(out[hdrOff+16:hdrOff+20], headerCRC)

	return out, nil
}
