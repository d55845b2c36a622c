package devicedb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookupChipKnownID(t *testing.T) {
	ci, ok := LookupChip(0x00010063)
	require.True(t, ok)
	require.Equal(t, "sdm845", ci.Chip)
	require.True(t, ci.Flagship)
}

func TestLookupVendorPrefixMatch(t *testing.T) {
	hint, ok := LookupVendor("A1B2C3D4FFFF")
	require.True(t, ok)
	require.Equal(t, "oppo", hint.Vendor)
}

func TestPreferredStorageDefaultsToUFS(t *testing.T) {
	require.Equal(t, StorageUFS, PreferredStorage("unknown-chip"))
}

func TestFindMatchingLoaderPrefersChipHint(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, filepath.Join(dir, "prog_firehose_ddr.elf"), time.Now().Add(-time.Hour))
	writeAged(t, filepath.Join(dir, "sdm845_firehose.mbn"), time.Now())

	path, ok := FindMatchingLoader(dir, 0x00010063, "")
	require.True(t, ok)
	require.Contains(t, path, "sdm845_firehose.mbn")
}

func writeAged(t *testing.T, path string, modTime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}
