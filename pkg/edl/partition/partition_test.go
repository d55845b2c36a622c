package partition

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRawprogramParsesEntries(t *testing.T) {
	xml := `<?xml version="1.0" ?><data>
<program SECTOR_SIZE_IN_BYTES="4096" filename="boot.img" label="boot"
  num_partition_sectors="256" physical_partition_number="0" start_sector="1000" sparse="false"/>
<program SECTOR_SIZE_IN_BYTES="4096" filename="super.img" label="super"
  num_partition_sectors="2048.0" physical_partition_number="0" start_sector="NUM_DISK_SECTORS-2048." sparse="true"/>
</data>`
	m := NewManager()
	require.NoError(t, m.LoadRawprogram(xml, 0))

	boot, ok := m.Find("boot", 0)
	require.True(t, ok)
	require.Equal(t, uint64(1000), boot.StartSector)
	require.Equal(t, uint64(256), boot.NumSectors)

	super, ok := m.Find("super", 0)
	require.True(t, ok)
	require.True(t, super.SparseFlag)
	require.Equal(t, uint64(2048), super.NumSectors)
}

func TestInferLUNFromFilenameFindsLunSuffix(t *testing.T) {
	got := InferLUNFromFilename("persist_lun3.img")
	require.Equal(t, "persist", got.Name)
	require.Equal(t, 3, got.LUN)
}

func TestInferLUNFromFilenameFallsBackToBaseName(t *testing.T) {
	got := InferLUNFromFilename("modem.bin")
	require.Equal(t, "modem", got.Name)
	require.Equal(t, -1, got.LUN)
}
