package sahara

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
)

// beSwap32 reads four little-endian wire bytes and returns the
// big-endian-swapped 32-bit value, per §4.2 step 2 ("decode MSM/OEM/model
// IDs (big-endian-swapped)").
func beSwap32(b []byte) uint32 {
	v := binary.LittleEndian.Uint32(b)
	return ((v & 0x000000FF) << 24) |
		((v & 0x0000FF00) << 8) |
		((v & 0x00FF0000) >> 8) |
		((v & 0xFF000000) >> 24)
}

func decimalString(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}

func hexLower(b []byte) string {
	return hex.EncodeToString(b)
}
