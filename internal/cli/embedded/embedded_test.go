package embedded

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceDBSnapshotDecodes(t *testing.T) {
	snap, err := DeviceDBSnapshot()
	require.NoError(t, err)
	require.NotEmpty(t, snap)

	found := false
	for _, ci := range snap {
		if ci.Chip == "sdm845" {
			found = true
			require.True(t, ci.Flagship)
		}
	}
	require.True(t, found, "expected sdm845 in embedded snapshot")
}

func TestLoaderManifestDataDecodes(t *testing.T) {
	m, err := LoaderManifestData()
	require.NoError(t, err)
	require.NotEmpty(t, m.GenericPatterns)
	require.Contains(t, m.KnownChipHints, "sdm845")
}

func TestListAssetsReturnsBothFiles(t *testing.T) {
	names, err := ListAssets()
	require.NoError(t, err)
	require.Contains(t, names, "devicedb.json")
	require.Contains(t, names, "loader_manifest.json")
}
