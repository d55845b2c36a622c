package task

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/partition"
)

func TestReadPartitionReturnsNotFoundForUnknownName(t *testing.T) {
	ex := NewExecutor(partition.NewManager())
	tsk := ex.ReadPartition("boot", 0)
	err := tsk(nil)
	require.Error(t, err)
}

func TestRestoreGPTReturnsNotFoundForMissingFile(t *testing.T) {
	tsk := RestoreGPT(0, filepath.Join(t.TempDir(), "does-not-exist.bin"))
	err := tsk(nil)
	require.Error(t, err)
}
