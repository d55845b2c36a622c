// Package config loads FlashConfig from a .env file in the project root
// plus environment-variable overrides, the same two-layer loader the
// teacher used for its device config (§2 [AMBIENT] config).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FlashConfig is the ambient configuration a flashd/flash-cli process
// reads at startup: which transport/loader/memory defaults to use, and
// where to look for vendor auth materials and loaders.
type FlashConfig struct {
	TransportMode string // "serial" or "usb"
	SerialPort    string
	LoaderDir     string
	DefaultMemory string
	SectorSize    int
	VendorHint    string
	ListenAddr    string // flashd's HTTP listen address
	LogLevel      string
}

var (
	loaded     *FlashConfig
	loadedOnce bool
)

func defaults() FlashConfig {
	return FlashConfig{
		TransportMode: "usb",
		LoaderDir:     "loaders",
		DefaultMemory: "ufs",
		SectorSize:    4096,
		ListenAddr:    ":8422",
		LogLevel:      "info",
	}
}

// Load reads ./.env (or the nearest ancestor containing go.mod) then
// applies QFLASH_* environment variable overrides. Results are cached
// after the first successful load.
func Load() (*FlashConfig, error) {
	if loaded != nil && loadedOnce {
		return loaded, nil
	}

	cfg := defaults()

	root := findProjectRoot()
	envPath := filepath.Join(root, ".env")
	if data, err := os.ReadFile(envPath); err == nil {
		parseEnvFile(string(data), &cfg)
	}

	applyEnvOverrides(&cfg)

	loaded = &cfg
	loadedOnce = true
	return loaded, nil
}

func parseEnvFile(content string, cfg *FlashConfig) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		applyKey(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), cfg)
	}
}

func applyEnvOverrides(cfg *FlashConfig) {
	for _, key := range []string{
		"QFLASH_TRANSPORT_MODE", "QFLASH_SERIAL_PORT", "QFLASH_LOADER_DIR",
		"QFLASH_DEFAULT_MEMORY", "QFLASH_SECTOR_SIZE", "QFLASH_VENDOR_HINT",
		"QFLASH_LISTEN_ADDR", "QFLASH_LOG_LEVEL",
	} {
		if v := os.Getenv(key); v != "" {
			applyKey(key, v, cfg)
		}
	}
}

func applyKey(key, value string, cfg *FlashConfig) {
	switch key {
	case "QFLASH_TRANSPORT_MODE":
		cfg.TransportMode = value
	case "QFLASH_SERIAL_PORT":
		cfg.SerialPort = value
	case "QFLASH_LOADER_DIR":
		cfg.LoaderDir = value
	case "QFLASH_DEFAULT_MEMORY":
		cfg.DefaultMemory = value
	case "QFLASH_SECTOR_SIZE":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.SectorSize = n
		}
	case "QFLASH_VENDOR_HINT":
		cfg.VendorHint = value
	case "QFLASH_LISTEN_ADDR":
		cfg.ListenAddr = value
	case "QFLASH_LOG_LEVEL":
		cfg.LogLevel = value
	}
}

func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
