package fsdetect

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectSparse(t *testing.T) {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, sparseMagic)
	require.Equal(t, KindSparse, Detect(b))
}

func TestDetectEXT4(t *testing.T) {
	b := make([]byte, 2048)
	binary.LittleEndian.PutUint16(b[ext4SuperOffset+56:ext4SuperOffset+58], ext4Magic)
	require.Equal(t, KindEXT4, Detect(b))
}

func TestDetectEROFS(t *testing.T) {
	b := make([]byte, 2048)
	binary.LittleEndian.PutUint32(b[1024:1028], erofsMagic)
	require.Equal(t, KindEROFS, Detect(b))
}

func TestFindBuildPropExtractsKnownKey(t *testing.T) {
	blob := "\x00# comment\nro.build.version.release=14\nro.product.model=Find X6\x00"
	text, ok := FindBuildProp([]byte(blob))
	require.True(t, ok)
	props := ParseBuildProp(text)
	require.Equal(t, "14", props["ro.build.version.release"])
	require.Equal(t, "Find X6", props["ro.product.model"])
}
