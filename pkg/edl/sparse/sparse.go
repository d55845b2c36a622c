// Package sparse implements the Android Sparse image format: detection,
// streaming expansion to a flat image, and composing/splitting sparse
// chunks without holding a whole image in memory (§4.7).
package sparse

import (
	"encoding/binary"
	"io"

	"qflash/pkg/edl/edlerr"
)

const (
	magic       = 0xED26FF3A
	headerSize  = 28
	chunkHeader = 12

	chunkTypeRaw     = 0xCAC1
	chunkTypeFill    = 0xCAC2
	chunkTypeDontCare = 0xCAC3
	chunkTypeCRC32   = 0xCAC4
)

// Header is the 28-byte Android sparse file header.
type Header struct {
	Magic          uint32
	MajorVersion   uint16
	MinorVersion   uint16
	FileHdrSize    uint16
	ChunkHdrSize   uint16
	BlockSize      uint32
	TotalBlocks    uint32
	TotalChunks    uint32
	ImageChecksum  uint32
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < headerSize {
		return Header{}, false
	}
	h := Header{
		Magic:         binary.LittleEndian.Uint32(b[0:4]),
		MajorVersion:  binary.LittleEndian.Uint16(b[4:6]),
		MinorVersion:  binary.LittleEndian.Uint16(b[6:8]),
		FileHdrSize:   binary.LittleEndian.Uint16(b[8:10]),
		ChunkHdrSize:  binary.LittleEndian.Uint16(b[10:12]),
		BlockSize:     binary.LittleEndian.Uint32(b[12:16]),
		TotalBlocks:   binary.LittleEndian.Uint32(b[16:20]),
		TotalChunks:   binary.LittleEndian.Uint32(b[20:24]),
		ImageChecksum: binary.LittleEndian.Uint32(b[24:28]),
	}
	if h.Magic != magic {
		return Header{}, false
	}
	return h, true
}

type chunkHdr struct {
	ChunkType uint16
	Reserved1 uint16
	ChunkSize uint32
	TotalSize uint32
}

func decodeChunkHeader(b []byte) chunkHdr {
	return chunkHdr{
		ChunkType: binary.LittleEndian.Uint16(b[0:2]),
		Reserved1: binary.LittleEndian.Uint16(b[2:4]),
		ChunkSize: binary.LittleEndian.Uint32(b[4:8]),
		TotalSize: binary.LittleEndian.Uint32(b[8:12]),
	}
}

// IsSparse reports whether the first 4 bytes are the sparse magic.
func IsSparse(header4 []byte) bool {
	return len(header4) >= 4 && binary.LittleEndian.Uint32(header4[0:4]) == magic
}

// StreamExpander reads a sparse image from an underlying reader and exposes
// it as a flat byte stream, expanding FILL/DONT_CARE chunks on the fly so
// the whole expanded image never needs to fit in memory (§4.7, §5).
type StreamExpander struct {
	src       io.Reader
	hdr       Header
	chunksLeft uint32

	// current chunk expansion state
	kind      uint16
	remaining uint32 // bytes of expanded output remaining for this chunk
	fillWord  [4]byte
	rawLeft   uint32 // compressed bytes left to copy verbatim for RAW chunks
}

// NewStreamExpander peeks the header of r. If it is not a sparse image, ok
// is false and the caller should treat r as a flat image instead — the
// first bytes consumed during the peek are NOT replayed, so callers must
// use the returned reader (wrapped back into a single stream) in that case.
// To keep call sites simple we instead require the header to be read first
// via a io.Reader that supports re-reading; see NewStreamExpanderFromBytes
// for the common case where the header was already sniffed.
func NewStreamExpander(r io.Reader) (*StreamExpander, bool, error) {
	hdrBuf := make([]byte, headerSize)
	n, err := io.ReadFull(r, hdrBuf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, false, nil
		}
		return nil, false, err
	}
	hdr, ok := decodeHeader(hdrBuf[:n])
	if !ok {
		return &StreamExpander{src: io.MultiReader(byteReader(hdrBuf), r)}, false, nil
	}
	return &StreamExpander{src: r, hdr: hdr, chunksLeft: hdr.TotalChunks}, true, nil
}

func byteReader(b []byte) io.Reader { return &staticReader{b: b} }

type staticReader struct{ b []byte }

func (s *staticReader) Read(p []byte) (int, error) {
	if len(s.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.b)
	s.b = s.b[n:]
	return n, nil
}

// ExpandedSize returns the fully expanded image size in bytes.
func (s *StreamExpander) ExpandedSize() uint64 {
	return uint64(s.hdr.TotalBlocks) * uint64(s.hdr.BlockSize)
}

// Read implements io.Reader, producing the expanded flat-image byte stream.
func (s *StreamExpander) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		if s.remaining == 0 && s.rawLeft == 0 {
			if s.chunksLeft == 0 {
				if total > 0 {
					return total, nil
				}
				return 0, io.EOF
			}
			if err := s.nextChunk(); err != nil {
				return total, err
			}
			continue
		}
		n, err := s.fillFrom(p[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *StreamExpander) nextChunk() error {
	hb := make([]byte, chunkHeader)
	if _, err := io.ReadFull(s.src, hb); err != nil {
		return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
	}
	ch := decodeChunkHeader(hb)
	s.chunksLeft--
	expandedBytes := ch.ChunkSize * s.hdr.BlockSize

	switch ch.ChunkType {
	case chunkTypeRaw:
		s.kind = chunkTypeRaw
		s.rawLeft = expandedBytes
	case chunkTypeFill:
		fw := make([]byte, 4)
		if _, err := io.ReadFull(s.src, fw); err != nil {
			return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
		s.kind = chunkTypeFill
		copy(s.fillWord[:], fw)
		s.remaining = expandedBytes
	case chunkTypeDontCare:
		s.kind = chunkTypeDontCare
		s.remaining = expandedBytes
	case chunkTypeCRC32:
		crcBuf := make([]byte, 4)
		if _, err := io.ReadFull(s.src, crcBuf); err != nil {
			return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
		return nil
	default:
		return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", nil)
	}
	return nil
}

func (s *StreamExpander) fillFrom(p []byte) (int, error) {
	switch s.kind {
	case chunkTypeRaw:
		want := len(p)
		if uint32(want) > s.rawLeft {
			want = int(s.rawLeft)
		}
		n, err := io.ReadFull(s.src, p[:want])
		s.rawLeft -= uint32(n)
		if err != nil {
			return n, edlerr.Wrap(edlerr.KindIO, "short-read", err)
		}
		return n, nil
	case chunkTypeFill, chunkTypeDontCare:
		want := len(p)
		if uint32(want) > s.remaining {
			want = int(s.remaining)
		}
		for i := 0; i < want; i++ {
			if s.kind == chunkTypeFill {
				p[i] = s.fillWord[i%4]
			} else {
				p[i] = 0
			}
		}
		s.remaining -= uint32(want)
		return want, nil
	}
	return 0, nil
}
