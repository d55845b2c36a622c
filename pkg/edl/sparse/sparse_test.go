package sparse

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSparseImage(t *testing.T, blockSize uint32, chunks []byte, totalChunks uint32, totalBlocks uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint16(hdr[4:6], 1)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint16(hdr[8:10], headerSize)
	binary.LittleEndian.PutUint16(hdr[10:12], chunkHeader)
	binary.LittleEndian.PutUint32(hdr[12:16], blockSize)
	binary.LittleEndian.PutUint32(hdr[16:20], totalBlocks)
	binary.LittleEndian.PutUint32(hdr[20:24], totalChunks)
	binary.LittleEndian.PutUint32(hdr[24:28], 0)
	buf.Write(hdr)
	buf.Write(chunks)
	return buf.Bytes()
}

func chunkBytes(chunkType uint16, chunkSize, totalSize uint32, payload []byte) []byte {
	var buf bytes.Buffer
	hdr := make([]byte, chunkHeader)
	binary.LittleEndian.PutUint16(hdr[0:2], chunkType)
	binary.LittleEndian.PutUint16(hdr[2:4], 0)
	binary.LittleEndian.PutUint32(hdr[4:8], chunkSize)
	binary.LittleEndian.PutUint32(hdr[8:12], totalSize)
	buf.Write(hdr)
	buf.Write(payload)
	return buf.Bytes()
}

func TestIsSparseDetectsMagic(t *testing.T) {
	img := buildSparseImage(t, 4096, nil, 0, 0)
	require.True(t, IsSparse(img[:4]))
	require.False(t, IsSparse([]byte{0, 0, 0, 0}))
}

func TestNewStreamExpanderRejectsNonSparse(t *testing.T) {
	flat := bytes.Repeat([]byte{0x11}, 64)
	_, ok, err := NewStreamExpander(bytes.NewReader(flat))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamExpanderExpandsRawFillDontCare(t *testing.T) {
	blockSize := uint32(4)
	raw := chunkBytes(chunkTypeRaw, 1, 1, []byte{1, 2, 3, 4})
	fill := chunkBytes(chunkTypeFill, 2, 2, []byte{0xAA, 0xAA, 0xAA, 0xAA})
	dontCare := chunkBytes(chunkTypeDontCare, 1, 1, nil)
	img := buildSparseImage(t, blockSize, append(append(raw, fill...), dontCare...), 3, 4)

	exp, ok, err := NewStreamExpander(bytes.NewReader(img))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(16), exp.ExpandedSize())

	out, err := io.ReadAll(exp)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, out[0:4])
	require.Equal(t, []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, out[4:12])
	require.Equal(t, []byte{0, 0, 0, 0}, out[12:16])
}
