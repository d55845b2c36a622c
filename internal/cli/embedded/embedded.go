// Package embedded bundles static data assets into flash-cli the same way
// the teacher embedded its compiled host binaries: go:embed at build time,
// extracted to the OS app-data directory on first use (§2 [DOMAIN]
// operator-surface daemon + CLI, "offline bootstrap" supplement).
//
// Unlike the teacher's binaries.go, these assets are JSON data, not
// executables: a bootstrap copy of the chip device database (so a
// freshly-installed CLI can recognize a device before its first network
// sync) and a manifest of known loader filename patterns used to seed
// devicedb.FindMatchingLoader when a loader directory is otherwise empty.
package embedded

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"qflash/pkg/edl/devicedb"
)

//go:embed assets/devicedb.json
var deviceDBAsset []byte

//go:embed assets/loader_manifest.json
var loaderManifestAsset []byte

// LoaderManifest lists known loader filename patterns, keyed by chip
// codename or vendor hint, used to seed a fresh loader directory.
type LoaderManifest struct {
	GenericPatterns []string            `json:"generic_patterns"`
	KnownChipHints  map[string][]string `json:"known_chip_hints"`
	KnownVendorHints map[string][]string `json:"known_vendor_hints"`
}

// DeviceDBSnapshot decodes the embedded bootstrap device database.
func DeviceDBSnapshot() ([]devicedb.ChipInfo, error) {
	var snap []devicedb.ChipInfo
	if err := json.Unmarshal(deviceDBAsset, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode embedded device database: %w", err)
	}
	return snap, nil
}

// LoaderManifestData decodes the embedded loader filename manifest.
func LoaderManifestData() (*LoaderManifest, error) {
	var m LoaderManifest
	if err := json.Unmarshal(loaderManifestAsset, &m); err != nil {
		return nil, fmt.Errorf("failed to decode embedded loader manifest: %w", err)
	}
	return &m, nil
}

// embeddedAssets lets WalkEmbedded inspect both asset files without
// exposing the two separate go:embed vars.
//
//go:embed assets
var embeddedAssets embed.FS

// GetAppDataDir returns the OS-specific application data directory flash-cli
// uses for its loader cache and device-db overlay, mirroring the teacher's
// GetAppDataDir for hasher's embedded binaries.
func GetAppDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			baseDir = xdg
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			baseDir = filepath.Join(home, ".local", "share")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, "Library", "Application Support")
	case "windows":
		baseDir = os.Getenv("LOCALAPPDATA")
		if baseDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			baseDir = filepath.Join(home, "AppData", "Local")
		}
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = home
	}

	return filepath.Join(baseDir, "qflash"), nil
}

// GetLoaderDir returns the directory flash-cli searches for Firehose
// loaders, creating it (and seeding it with nothing — loaders themselves
// are never embedded, only the manifest describing their expected names)
// on first use.
func GetLoaderDir() (string, error) {
	appDir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(appDir, "loaders")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create loader directory: %w", err)
	}
	return dir, nil
}

// EnsureDeviceDBOverlay writes the embedded bootstrap device database to
// the app data directory if no overlay file exists yet, so offline
// first-runs can still recognize known chips via internal/config.
func EnsureDeviceDBOverlay() (string, error) {
	appDir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	dest := filepath.Join(appDir, "devicedb.json")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.WriteFile(dest, deviceDBAsset, 0644); err != nil {
		return "", fmt.Errorf("failed to write device database overlay: %w", err)
	}
	return dest, nil
}

// ListAssets returns the names of every embedded asset file, for
// diagnostics (cmd/edl-probe --assets).
func ListAssets() ([]string, error) {
	entries, err := embeddedAssets.ReadDir("assets")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
