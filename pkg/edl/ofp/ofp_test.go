package ofp

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"qflash/pkg/edl/bruteforce"
)

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestDetectRecognizesOZIPHeader(t *testing.T) {
	data := append([]byte("OPPOENCRYPT!"), make([]byte, 20)...)
	det, err := Detect(byteReaderAt(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, FormatOZIP, det.Format)
}

func TestDetectRecognizesOPSHeader(t *testing.T) {
	data := append([]byte("OPS"), make([]byte, 30)...)
	det, err := Detect(byteReaderAt(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, FormatOPS, det.Format)
}

func TestDetectRecognizesPasswordZIPWhenNotOZIP(t *testing.T) {
	data := append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 60)...)
	det, err := Detect(byteReaderAt(data), int64(len(data)))
	require.NoError(t, err)
	require.Equal(t, FormatZIPPassword, det.Format)
}

func TestDetectProbesOFPTrailerMagic(t *testing.T) {
	pageSize := int64(4096)
	fileLength := int64(8192)
	data := make([]byte, fileLength)
	off := fileLength + 16 - pageSize
	binary.BigEndian.PutUint16(data[off:off+2], ofpMagic)

	det, err := Detect(byteReaderAt(data), fileLength)
	require.NoError(t, err)
	require.Equal(t, FormatOFP, det.Format)
	require.Equal(t, pageSize, det.PageSize)
}

func TestOZIPRoundTripsOverFirst64KiBOnly(t *testing.T) {
	plain := make([]byte, ozipDecryptWindow+32)
	for i := range plain {
		plain[i] = byte(i)
	}
	ct, err := encryptOZIPForTest(plain[:ozipDecryptWindow])
	require.NoError(t, err)
	ciphertext := append(ct, plain[ozipDecryptWindow:]...)

	pt, err := DecryptOZIP(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plain, pt)
}

func TestDecryptOPSSkipsHeaderAndDecryptsECB(t *testing.T) {
	key, err := hex.DecodeString(opsKeyHex)
	require.NoError(t, err)
	body := make([]byte, 32)
	for i := range body {
		body[i] = byte(i)
	}
	header := make([]byte, opsHeaderSize)
	ciphertext := encryptOPSForTest(key, header, body)

	pt, err := DecryptOPS(ciphertext)
	require.NoError(t, err)
	require.Equal(t, body, pt)
}

func TestIsZIPDetectsLocalFileHeader(t *testing.T) {
	require.True(t, IsZIP([]byte{'P', 'K', 0x03, 0x04, 0, 0}))
	require.False(t, IsZIP([]byte{0, 0, 0, 0}))
}

func TestDeobfuscateHexPairAppliesRot4Xor(t *testing.T) {
	out, err := DeobfuscateHexPair("3a", "c4")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, rot4(0x3a^0xc4), out[0])
}

func TestDeriveCandidateSimpleReturnsLiteralKeyIV(t *testing.T) {
	tmpl := Template{Kind: TemplateSimple, Key: []byte("0123456789ABCDEF"), IV: []byte("FEDCBA9876543210")}
	key, iv, err := DeriveCandidate(tmpl)
	require.NoError(t, err)
	require.Equal(t, tmpl.Key, key)
	require.Equal(t, tmpl.IV, iv)
}

func TestDeriveCandidateMTKProducesSixteenByteKeyAndIV(t *testing.T) {
	tmpl := Template{Kind: TemplateMTK, MC: "3a7c91e4b05d8f62", UserKey: "c48e0d1a9b3f6752", IVec: "5f2b8a4d9e0c1637"}
	key, iv, err := DeriveCandidate(tmpl)
	require.NoError(t, err)
	require.Len(t, key, 16)
	require.Len(t, iv, 16)
}

func TestFindProfileKeyLocatesKnownSimpleTemplate(t *testing.T) {
	tmpl := KnownTemplates[0]
	key, iv, err := DeriveCandidate(tmpl)
	require.NoError(t, err)

	plain := []byte("<?xml version=\"1.0\"?><profile/>\n")
	padded := make([]byte, roundUp16(int64(len(plain))))
	copy(padded, plain)
	ciphertext, err := encryptCFBForTest(key, iv, padded)
	require.NoError(t, err)

	budget := bruteforce.PhaseBudget{IncrementalCap: 16, RandomCount: 4}
	result, xmlBytes, err := FindProfileKey(ciphertext, int64(len(plain)), budget, 1)
	require.NoError(t, err)
	require.Equal(t, "simple", result.Phase)
	require.True(t, bytes.HasPrefix(xmlBytes, []byte("<?xml")))
}

func TestSmartExtractWritesParsedEntries(t *testing.T) {
	tmpl := KnownTemplates[0]
	key, iv, err := DeriveCandidate(tmpl)
	require.NoError(t, err)

	pageSize := int64(4096)
	payload := []byte("payload-bytes-12")

	profileXML := []byte(`<profile><item Name="Config" Path="nv.bin" FileOffsetInSrc="1" SizeInByteInSrc="16" SizeInSectorInSrc="16"/></profile>`)
	paddedProfile := make([]byte, roundUp16(int64(len(profileXML))))
	copy(paddedProfile, profileXML)
	profileCiphertext, err := encryptCFBForTest(key, iv, paddedProfile)
	require.NoError(t, err)

	encPayload, err := encryptCFBForTest(key, iv, payload)
	require.NoError(t, err)

	fileLength := pageSize*2 + int64(len(profileCiphertext))
	buf := make([]byte, fileLength)
	copy(buf[pageSize:], encPayload)
	copy(buf[pageSize*2:], profileCiphertext)

	footerAt := fileLength - pageSize + 20
	footer := make([]byte, 8)
	binary.BigEndian.PutUint32(footer[0:4], 2)
	binary.BigEndian.PutUint32(footer[4:8], uint32(len(profileXML)))
	copy(buf[footerAt:], footer)

	magicAt := fileLength + 16 - pageSize
	binary.BigEndian.PutUint16(buf[magicAt:magicAt+2], ofpMagic)

	var written []byte
	budget := bruteforce.PhaseBudget{IncrementalCap: 16, RandomCount: 4}
	_, err = SmartExtract(byteReaderAt(buf), fileLength, budget, 1, func(entry ProfileEntry, data io.Reader) error {
		b, err := io.ReadAll(data)
		if err != nil {
			return err
		}
		written = b
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, payload, written)
}

func TestMTKShuffleRoundTripsThroughInverse(t *testing.T) {
	data := []byte("MMMheaderbytes!!")
	key := []byte("geyixue")
	shuffled := MTKShuffle1(data, key)
	back := MTKShuffle2(shuffled, key)
	require.Equal(t, data, back)
}

func TestIsMTKOFPRecognizesShuffledMarker(t *testing.T) {
	plain := []byte("MMM")
	shuffled := MTKShuffle2(plain, mtkHeaderKey)
	require.True(t, IsMTKOFP(shuffled))
	require.False(t, IsMTKOFP([]byte{0, 0, 0}))
}
