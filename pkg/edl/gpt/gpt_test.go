package gpt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMinimalGPT(sectorSize int) []byte {
	numEntries := 4
	entrySize := 128
	entriesLBA := 2
	total := sectorSize * (entriesLBA + numEntries*entrySize/sectorSize + 1)
	buf := make([]byte, total)

	hdrOff := sectorSize
	copy(buf[hdrOff:hdrOff+8], []byte(signature))
	binary.LittleEndian.PutUint32(buf[hdrOff+12:hdrOff+16], 92) // header size
	binary.LittleEndian.PutUint64(buf[hdrOff+72:hdrOff+80], uint64(entriesLBA))
	binary.LittleEndian.PutUint32(buf[hdrOff+80:hdrOff+84], uint32(numEntries))
	binary.LittleEndian.PutUint32(buf[hdrOff+84:hdrOff+88], uint32(entrySize))

	entOff := entriesLBA * sectorSize
	// entry 0: "boot"
	for i := 0; i < 16; i++ {
		buf[entOff+i] = 0xAA // non-zero type GUID
	}
	binary.LittleEndian.PutUint64(buf[entOff+32:entOff+40], 100)
	binary.LittleEndian.PutUint64(buf[entOff+40:entOff+48], 200)
	name := "boot"
	for i, r := range name {
		binary.LittleEndian.PutUint16(buf[entOff+56+i*2:entOff+58+i*2], uint16(r))
	}
	return buf
}

func TestDetectAutodetectsSectorSize(t *testing.T) {
	data := buildMinimalGPT(512)
	tbl, err := Detect(data)
	require.NoError(t, err)
	require.Equal(t, 512, tbl.SectorSize)
	e, ok := tbl.FindByName("boot")
	require.True(t, ok)
	require.Equal(t, uint64(100), e.FirstLBA)
	require.Equal(t, uint64(200), e.LastLBA)
}

func TestDetectRejectsGarbage(t *testing.T) {
	_, err := Detect(make([]byte, 4096))
	require.Error(t, err)
}

func TestRewriteChecksumsProducesConsistentCRC(t *testing.T) {
	data := buildMinimalGPT(512)
	tbl, err := Detect(data)
	require.NoError(t, err)

	out, err := tbl.RewriteChecksums()
	require.NoError(t, err)

	retbl, err := ParseWithSectorSize(out, 512)
	require.NoError(t, err)

	entriesStart := int(retbl.Header.PartitionEntryLBA) * 512
	arrayLen := int(retbl.Header.NumPartitionEntries) * int(retbl.Header.SizeOfPartitionEntry)
	wantArrayCRC := CRC32(out[entriesStart : entriesStart+arrayLen])
	require.Equal(t, wantArrayCRC, retbl.Header.PartitionArrayCRC32)
}
