// Package fsdetect identifies the filesystem (or image container) format
// backing a partition image from its leading bytes, and scans an EXT4/
// EROFS image's root for a build.prop file (§4.9).
package fsdetect

import (
	"bytes"
	"encoding/binary"
	"strings"
)

// Kind names a detected format.
type Kind string

const (
	KindUnknown Kind = "unknown"
	KindSparse  Kind = "sparse"
	KindEXT4    Kind = "ext4"
	KindEROFS   Kind = "erofs"
	KindF2FS    Kind = "f2fs"
	KindRaw     Kind = "raw"
)

const (
	sparseMagic = 0xED26FF3A
	ext4SuperOffset = 1024
	ext4Magic       = 0xEF53
	erofsMagic      = 0xE0F5E1E2
	f2fsMagic       = 0xF2F52010
)

// Detect returns the best-guess Kind from the image's leading bytes. header
// should contain at least 4096 bytes when available (enough to reach the
// EXT4 superblock at offset 1024 and the F2FS superblock at 1024).
func Detect(header []byte) Kind {
	if len(header) >= 4 && binary.LittleEndian.Uint32(header[0:4]) == sparseMagic {
		return KindSparse
	}
	if len(header) >= ext4SuperOffset+58+2 {
		magic := binary.LittleEndian.Uint16(header[ext4SuperOffset+56 : ext4SuperOffset+58])
		if magic == ext4Magic {
			return KindEXT4
		}
	}
	if len(header) >= 1024+4 {
		magic := binary.LittleEndian.Uint32(header[1024 : 1024+4])
		if magic == erofsMagic {
			return KindEROFS
		}
		if magic == f2fsMagic {
			return KindF2FS
		}
	}
	if len(header) > 0 {
		return KindRaw
	}
	return KindUnknown
}

// FindBuildProp scans an EXT4/EROFS image buffer for an embedded
// build.prop by looking for its characteristic leading comment line; this
// is a heuristic scan, not a real filesystem walk (§4.9 explicitly scopes
// out full filesystem parsing).
func FindBuildProp(image []byte) (string, bool) {
	marker := []byte("ro.build.version")
	idx := bytes.Index(image, marker)
	if idx < 0 {
		return "", false
	}
	start := bytes.LastIndexByte(image[:idx], 0x00)
	if start < 0 {
		start = 0
	} else {
		start++
	}
	end := bytes.IndexByte(image[idx:], 0x00)
	if end < 0 {
		end = len(image)
	} else {
		end += idx
	}
	if end > len(image) {
		end = len(image)
	}
	if start > end {
		return "", false
	}
	return string(image[start:end]), true
}

// ParseBuildProp splits a build.prop blob into key/value pairs, tolerant of
// comment lines (#...) and blank lines.
func ParseBuildProp(blob string) map[string]string {
	props := map[string]string{}
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		props[line[:idx]] = line[idx+1:]
	}
	return props
}
