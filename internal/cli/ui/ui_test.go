package ui

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewModelStartsOnPrimaryMenu(t *testing.T) {
	m := NewModel(8422)
	require.Equal(t, PrimaryMenuView, m.CurrentView)
	require.NotNil(t, m.APIClient)
}

func TestBuildFormMatchesOperationShape(t *testing.T) {
	require.Len(t, buildForm("read_partition"), 2)
	require.Len(t, buildForm("write_partition"), 3)
	require.Len(t, buildForm("erase_partition"), 2)
	require.Len(t, buildForm("backup_gpt"), 2)
	require.Len(t, buildForm("dump_memory"), 3)
	require.Len(t, buildForm("reboot"), 1)
	require.Nil(t, buildForm("unknown"))
}

func TestRenderProgressBarClampsToWidth(t *testing.T) {
	bar := renderProgressBar(0.5, 10)
	require.Contains(t, bar, "█")
	full := renderProgressBar(2.0, 10)
	require.NotContains(t, full, "░")
}

func TestParseHexOrDecAcceptsBothForms(t *testing.T) {
	require.Equal(t, uint64(0x100000), parseHexOrDec("0x100000"))
	require.Equal(t, uint64(1048576), parseHexOrDec("1048576"))
}
