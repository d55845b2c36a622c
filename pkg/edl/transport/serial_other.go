//go:build !linux && !darwin

package transport

import "os"

// applySerialSettings is a no-op outside unix-like platforms in this
// exercise; Windows COM-port configuration would go through a separate
// syscall surface (CreateFile/SetCommState) not exercised here.
func applySerialSettings(f *os.File, baud int) error {
	return nil
}
