package lp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSyntheticSuper() []byte {
	buf := make([]byte, 16384)

	binary.LittleEndian.PutUint32(buf[4096:4100], geometryMagic)
	binary.LittleEndian.PutUint32(buf[4096+8:4096+12], 65536)
	binary.LittleEndian.PutUint32(buf[4096+12:4096+16], 2)
	binary.LittleEndian.PutUint32(buf[4096+16:4096+20], logicalBlockSize)

	hdrOff := 4096 + 4096
	binary.LittleEndian.PutUint16(buf[hdrOff+8:hdrOff+10], 10)
	binary.LittleEndian.PutUint32(buf[hdrOff+12:hdrOff+16], 80) // header size

	tablesStart := hdrOff + 80
	partsOff := 0
	extOff := 64 // one partition entry (64 bytes) then extents
	binary.LittleEndian.PutUint32(buf[hdrOff+56:hdrOff+60], uint32(partsOff))
	binary.LittleEndian.PutUint32(buf[hdrOff+60:hdrOff+64], 1)  // partitions num
	binary.LittleEndian.PutUint32(buf[hdrOff+64:hdrOff+68], 64) // partition entry size
	binary.LittleEndian.PutUint32(buf[hdrOff+68:hdrOff+72], uint32(extOff))
	binary.LittleEndian.PutUint32(buf[hdrOff+72:hdrOff+76], 1)  // extents num
	binary.LittleEndian.PutUint32(buf[hdrOff+76:hdrOff+80], 32) // extent entry size

	// partition entry
	pOff := tablesStart + partsOff
	copy(buf[pOff:pOff+36], []byte("system_a"))
	binary.LittleEndian.PutUint32(buf[pOff+40:pOff+44], 0) // first_extent_index
	binary.LittleEndian.PutUint32(buf[pOff+44:pOff+48], 1) // num_extents

	// extent entry
	eOff := tablesStart + extOff
	binary.LittleEndian.PutUint64(buf[eOff:eOff+8], 2048) // num_sectors
	binary.LittleEndian.PutUint32(buf[eOff+8:eOff+12], extentTypeLinear)
	binary.LittleEndian.PutUint64(buf[eOff+16:eOff+24], 100) // target_data, ×512 units
	binary.LittleEndian.PutUint32(buf[eOff+24:eOff+28], 0)   // target_source

	return buf
}

func TestParseDecodesPartitionExtents(t *testing.T) {
	buf := buildSyntheticSuper()
	md, err := Parse(buf, 1_000_000)
	require.NoError(t, err)

	p, ok := md.FindPartition("system_a")
	require.True(t, ok)
	require.Len(t, p.Extents, 1)
	require.Equal(t, uint64(2048), p.TotalSectors())
	require.Equal(t, uint64(100), p.Extents[0].TargetData)
}

func TestParseRejectsBadGeometry(t *testing.T) {
	_, err := Parse(make([]byte, 16384), 1000)
	require.Error(t, err)
}
