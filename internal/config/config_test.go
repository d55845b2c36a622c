package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseEnvFileAppliesKnownKeys(t *testing.T) {
	cfg := defaults()
	content := "# comment\nQFLASH_TRANSPORT_MODE=serial\nQFLASH_SERIAL_PORT=/dev/ttyUSB0\n\nQFLASH_SECTOR_SIZE=512\n"
	parseEnvFile(content, &cfg)

	require.Equal(t, "serial", cfg.TransportMode)
	require.Equal(t, "/dev/ttyUSB0", cfg.SerialPort)
	require.Equal(t, 512, cfg.SectorSize)
}

func TestParseEnvFileIgnoresMalformedLines(t *testing.T) {
	cfg := defaults()
	parseEnvFile("not-a-kv-pair\n=novalue\nQFLASH_VENDOR_HINT=xiaomi", &cfg)
	require.Equal(t, "xiaomi", cfg.VendorHint)
}

func TestApplyKeyIgnoresInvalidSectorSize(t *testing.T) {
	cfg := defaults()
	applyKey("QFLASH_SECTOR_SIZE", "not-a-number", &cfg)
	require.Equal(t, defaults().SectorSize, cfg.SectorSize)
}

func TestDefaultsMatchBaselineOperatorConfig(t *testing.T) {
	cfg := defaults()
	require.Equal(t, "usb", cfg.TransportMode)
	require.Equal(t, ":8422", cfg.ListenAddr)
}
