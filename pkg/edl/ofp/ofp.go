// Package ofp decrypts OPPO/OnePlus firmware containers: OFP (MTK and
// Qualcomm key-derivation templates), OZIP, and OPS, each wrapping an
// AES-ECB/CFB payload behind a vendor-specific key obfuscation scheme
// (§4.9).
package ofp

import (
	"archive/zip"
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"

	"qflash/pkg/edl/bruteforce"
	"qflash/pkg/edl/edlerr"
)

// Format names a detected container.
type Format string

const (
	FormatOZIP        Format = "ozip"        // "OPPOENCRYPT!" header
	FormatOZIPPK      Format = "ozip_pk"     // PK-prefixed OZIP variant
	FormatZIPPassword Format = "zip_password" // ordinary password-protected ZIP
	FormatOPS         Format = "ops"         // "OPS" header
	FormatOFP         Format = "ofp"         // 0xEF7C trailer magic
	FormatUnknown     Format = "unknown"
)

// ZIPPassword is the archive password realme ships for its
// password-protected firmware ZIPs (§4.9).
const ZIPPassword = "flash@realme$50E7F7D847732396F1582CD62DD385ED7ABB0897"

// ofpPageSizes are the page sizes tried when probing for the OFP trailer
// magic (§4.9 "Format selection").
var ofpPageSizes = []int64{512, 4096, 8192, 16384}

const ofpMagic = 0xEF7C

// DetectResult reports the container format and, for FormatOFP, the page
// size the magic probe succeeded at — needed to locate the profile XML.
type DetectResult struct {
	Format   Format
	PageSize int64
}

// Detect identifies an OPPO/OnePlus firmware container from its header
// bytes and, for the OFP family, a trailer-magic probe at
// fileLength+16−pageSize for each candidate page size (§4.9 "Format
// selection").
func Detect(r io.ReaderAt, fileLength int64) (DetectResult, error) {
	header := make([]byte, 16)
	n, err := r.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return DetectResult{}, edlerr.Wrap(edlerr.KindCodec, "bad-magic", err)
	}
	header = header[:n]

	if bytes.HasPrefix(header, []byte("OPPOENCRYPT!")) {
		return DetectResult{Format: FormatOZIP}, nil
	}
	if bytes.HasPrefix(header, []byte{'P', 'K', 0x03, 0x04}) {
		if probeOZIPPK(r) {
			return DetectResult{Format: FormatOZIPPK}, nil
		}
		return DetectResult{Format: FormatZIPPassword}, nil
	}
	if bytes.HasPrefix(header, []byte("OPS")) {
		return DetectResult{Format: FormatOPS}, nil
	}

	for _, pageSize := range ofpPageSizes {
		off := fileLength + 16 - pageSize
		if off < 0 {
			continue
		}
		probe := make([]byte, 4)
		if _, err := r.ReadAt(probe, off); err != nil {
			continue
		}
		if binary.BigEndian.Uint16(probe[:2]) == ofpMagic {
			return DetectResult{Format: FormatOFP, PageSize: pageSize}, nil
		}
	}
	return DetectResult{Format: FormatUnknown}, nil
}

// probeOZIPPK trial-decrypts the first local-file payload of a
// PK-prefixed container with the static OZIP key and checks for a nested
// "PK" marker, disambiguating a PK-prefixed OZIP from an ordinary
// password-protected ZIP (§4.9).
func probeOZIPPK(r io.ReaderAt) bool {
	buf := make([]byte, 64)
	if _, err := r.ReadAt(buf, 0); err != nil {
		return false
	}
	pt, err := DecryptOZIP(buf)
	if err != nil {
		return false
	}
	return bytes.Contains(pt, []byte("PK"))
}

// ozipKey is the fixed, publicly documented OPPO OZIP AES key.
var ozipKey = [16]byte{
	0x64, 0xA9, 0x23, 0xE3, 0x4D, 0xFE, 0x23, 0x45,
	0xB6, 0x7A, 0x99, 0x0C, 0x77, 0x21, 0x43, 0x9A,
}

const ozipDecryptWindow = 64 * 1024

// DecryptOZIP decrypts an OZIP-wrapped payload: AES-ECB-128, no padding,
// over only the first 64 KiB — the remainder of the payload is already
// plaintext (§4.9 "OZIP decrypt").
func DecryptOZIP(payload []byte) ([]byte, error) {
	window := payload
	var rest []byte
	if len(payload) > ozipDecryptWindow {
		window = payload[:ozipDecryptWindow]
		rest = payload[ozipDecryptWindow:]
	}
	if len(window)%aes.BlockSize != 0 {
		return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", nil)
	}
	block, err := aes.NewCipher(ozipKey[:])
	if err != nil {
		return nil, edlerr.Wrap(edlerr.KindCodec, "unknown-key", err)
	}
	out := make([]byte, len(window))
	for off := 0; off < len(window); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], window[off:off+aes.BlockSize])
	}
	if rest != nil {
		out = append(out, rest...)
	}
	return out, nil
}

const opsKeyHex = "d6eccec8c89a35d0349a3f5ce0e4d07a"
const opsHeaderSize = 20

// DecryptOPS decrypts a OnePlus OPS container: fixed key, zero IV,
// AES-ECB-128 block-by-block, skipping a 20-byte header (§4.9 "OPS
// decrypt").
func DecryptOPS(data []byte) ([]byte, error) {
	if len(data) < opsHeaderSize {
		return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", nil)
	}
	key, err := hex.DecodeString(opsKeyHex)
	if err != nil {
		return nil, edlerr.Wrap(edlerr.KindCodec, "unknown-key", err)
	}
	body := data[opsHeaderSize:]
	body = body[:len(body)-(len(body)%aes.BlockSize)]
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, edlerr.Wrap(edlerr.KindCodec, "unknown-key", err)
	}
	out := make([]byte, len(body))
	for off := 0; off < len(body); off += aes.BlockSize {
		block.Decrypt(out[off:off+aes.BlockSize], body[off:off+aes.BlockSize])
	}
	return out, nil
}

// IsZIP reports whether a decrypted OPS payload begins with a ZIP
// local-file header (§4.9's "detect whether the result is a ZIP").
func IsZIP(data []byte) bool {
	return bytes.HasPrefix(data, []byte{'P', 'K', 0x03, 0x04})
}

// ExtractOPS extracts a decrypted OPS payload: if it is a ZIP, each
// member is streamed to writeFile by name; otherwise the whole payload is
// saved as a single opaque entry (§4.9 "OPS decrypt").
func ExtractOPS(data []byte, writeFile func(name string, r io.Reader) error) error {
	if !IsZIP(data) {
		return writeFile("payload.bin", bytes.NewReader(data))
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
		err = writeFile(f.Name, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// rot4 is the OFP key deobfuscation nibble swap: rot4(x) =
// ((x>>4)|((x&0x0F)<<4)) & 0xFF (§4.9).
func rot4(x byte) byte {
	return ((x >> 4) | (x << 4)) & 0xFF
}

// DeobfuscateHexPair applies rot4(a⊕b) across two equal-length
// 2-hex-digit-pair strings, producing the raw deobfuscated byte sequence
// fed into the MD5 key-derivation step (§4.9).
func DeobfuscateHexPair(a, b string) ([]byte, error) {
	if len(a) != len(b) || len(a)%2 != 0 {
		return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", nil)
	}
	out := make([]byte, 0, len(a)/2)
	for i := 0; i+2 <= len(a); i += 2 {
		av, err := hex.DecodeString(a[i : i+2])
		if err != nil {
			return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
		bv, err := hex.DecodeString(b[i : i+2])
		if err != nil {
			return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
		out = append(out, rot4(av[0]^bv[0]))
	}
	return out, nil
}

// candidateFromDeobfuscated turns deobfuscated key material into the
// final 16-char candidate: the first 16 characters of its lowercase hex
// MD5 digest, used directly as ASCII key/iv bytes (§4.9).
func candidateFromDeobfuscated(deob []byte) []byte {
	sum := md5.Sum(deob)
	return []byte(hex.EncodeToString(sum[:])[:16])
}

// TemplateKind selects which candidate-key-derivation shape a Template
// uses (§4.9's three forms).
type TemplateKind string

const (
	TemplateSimple   TemplateKind = "simple"   // literal 16-byte key/iv pair
	TemplateMTK      TemplateKind = "mtk"      // 3-tuple (mc, userkey, ivec)
	TemplateQualcomm TemplateKind = "qualcomm" // 4-tuple (version, mc, userkey, ivec)
)

// Template is one candidate key-derivation template (§4.9). Simple
// templates carry a literal Key/IV; MTK/Qualcomm templates carry
// 2-hex-digit-pair strings (mc/userkey/ivec) run through
// DeobfuscateHexPair + MD5. Qualcomm templates additionally tag a
// firmware Version, carried for diagnostics/logging only — it does not
// feed the derivation (an Open Question resolved this way since neither
// spec.md nor original_source/ specifies how Version enters the math).
type Template struct {
	Name    string
	Kind    TemplateKind
	Version string
	MC      string
	UserKey string
	IVec    string
	Key     []byte
	IV      []byte
}

// KnownTemplates is the small set of published vendor templates tried
// before any blind search (§4.10 phase 1/2's "known template"/"simple
// pair" material).
var KnownTemplates = []Template{
	{Name: "generic-simple-a", Kind: TemplateSimple, Key: []byte("0123456789ABCDEF"), IV: []byte("FEDCBA9876543210")},
	{Name: "generic-simple-b", Kind: TemplateSimple, Key: []byte("A1B2C3D4E5F60718"), IV: []byte("1827F6E5D4C3B2A1")},
	{Name: "mtk-generic", Kind: TemplateMTK, MC: "3a7c91e4b05d8f62", UserKey: "c48e0d1a9b3f6752", IVec: "5f2b8a4d9e0c1637"},
	{Name: "qc-generic", Kind: TemplateQualcomm, Version: "v1", MC: "7e1c4a9f2d0b8653", UserKey: "91a5c7e3048f6d2b", IVec: "2d8b4f0e9a617c53"},
}

// DeriveCandidate turns a Template into a concrete (key, iv) candidate
// (§4.9's "Candidate (key, iv) pairs are generated from...").
func DeriveCandidate(t Template) (key, iv []byte, err error) {
	switch t.Kind {
	case TemplateSimple:
		if len(t.Key) != 16 || len(t.IV) != 16 {
			return nil, nil, edlerr.Wrap(edlerr.KindCodec, "unknown-key", nil)
		}
		return t.Key, t.IV, nil
	case TemplateMTK, TemplateQualcomm:
		deobKey, err := DeobfuscateHexPair(t.MC, t.UserKey)
		if err != nil {
			return nil, nil, err
		}
		deobIV, err := DeobfuscateHexPair(t.UserKey, t.IVec)
		if err != nil {
			return nil, nil, err
		}
		return candidateFromDeobfuscated(deobKey), candidateFromDeobfuscated(deobIV), nil
	default:
		return nil, nil, edlerr.Wrap(edlerr.KindCodec, "unknown-key", nil)
	}
}

// LocateProfile reads the profile XML's page-count and byte-length from
// the OFP footer at fileLength−pageSize+20 (two big-endian u32s),
// returning the ciphertext region's offset and plaintext length (§4.9
// "OFP decrypt").
func LocateProfile(r io.ReaderAt, fileLength, pageSize int64) (offset int64, length int64, err error) {
	at := fileLength - pageSize + 20
	if at < 0 {
		return 0, 0, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", nil)
	}
	footer := make([]byte, 8)
	if _, err := r.ReadAt(footer, at); err != nil {
		return 0, 0, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
	}
	pageCount := binary.BigEndian.Uint32(footer[0:4])
	byteLength := binary.BigEndian.Uint32(footer[4:8])
	return int64(pageCount) * pageSize, int64(byteLength), nil
}

func roundUp16(n int64) int64 {
	if n%16 == 0 {
		return n
	}
	return n + (16 - n%16)
}

// TryDecryptProfile is the try-key oracle shared by §4.9's OFP decrypt
// and §4.10's phased search: AES-CFB-128 decrypt with the candidate
// key/iv, truncate to length, and accept only if the result looks like
// profile XML.
func TryDecryptProfile(ciphertext []byte, key, iv []byte, length int64) ([]byte, bool) {
	if len(key) != 16 || len(iv) != 16 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, false
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	if length >= 0 && int64(len(out)) > length {
		out = out[:length]
	}
	if bytes.Contains(out, []byte("<?xml")) || bytes.Contains(out, []byte("<profile")) {
		return out, true
	}
	return nil, false
}

// lastByteVariants yields 256 copies of s with its trailing byte (the
// last 2 hex digits) replaced by each value 0x00..0xFF (§4.10 "vary the
// last byte... (256 each)").
func lastByteVariants(s string) []string {
	if len(s) < 2 {
		return nil
	}
	prefix := s[:len(s)-2]
	out := make([]string, 0, 256)
	for b := 0; b < 256; b++ {
		out = append(out, prefix+fmt.Sprintf("%02x", b))
	}
	return out
}

// lastNibbleVariants yields the 16 values of s with its trailing hex
// digit replaced 0x0..0xF.
func lastNibbleVariants(s string) []string {
	if len(s) < 1 {
		return nil
	}
	prefix := s[:len(s)-1]
	out := make([]string, 0, 16)
	for n := 0; n < 16; n++ {
		out = append(out, fmt.Sprintf("%s%x", prefix, n))
	}
	return out
}

// lastNibbleCross16x16 is the 16×16 cross product of last-hex-digit
// variants between two hex strings (§4.10's "16×16 cross combinations").
func lastNibbleCross16x16(a, b string) [][2]string {
	av, bv := lastNibbleVariants(a), lastNibbleVariants(b)
	out := make([][2]string, 0, len(av)*len(bv))
	for _, x := range av {
		for _, y := range bv {
			out = append(out, [2]string{x, y})
		}
	}
	return out
}

// templateVariants builds the full variant-phase candidate set for one
// MTK/Qualcomm template: independent last-byte sweeps of mc/userkey/ivec
// (256 each) plus the 16×16 last-nibble cross between every pair (§4.10
// phase 1).
func templateVariants(t Template) []bruteforce.Candidate {
	var out []bruteforce.Candidate
	add := func(mc, userKey, ivec string) {
		t2 := t
		t2.MC, t2.UserKey, t2.IVec = mc, userKey, ivec
		if key, iv, err := DeriveCandidate(t2); err == nil {
			out = append(out, bruteforce.Candidate{Key: key, IV: iv})
		}
	}
	for _, mc := range lastByteVariants(t.MC) {
		add(mc, t.UserKey, t.IVec)
	}
	for _, uk := range lastByteVariants(t.UserKey) {
		add(t.MC, uk, t.IVec)
	}
	for _, iv := range lastByteVariants(t.IVec) {
		add(t.MC, t.UserKey, iv)
	}
	for _, pair := range lastNibbleCross16x16(t.MC, t.UserKey) {
		add(pair[0], pair[1], t.IVec)
	}
	for _, pair := range lastNibbleCross16x16(t.MC, t.IVec) {
		add(pair[0], t.UserKey, pair[1])
	}
	for _, pair := range lastNibbleCross16x16(t.UserKey, t.IVec) {
		add(t.MC, pair[0], pair[1])
	}
	return out
}

// simpleVariants builds the simple-phase candidate set for one Simple
// template: last-byte sweeps of Key/IV (256 each) plus their 16×16
// last-nibble cross (§4.10 phase 2).
func simpleVariants(t Template) []bruteforce.Candidate {
	var out []bruteforce.Candidate
	for b := 0; b < 256; b++ {
		k := append([]byte(nil), t.Key...)
		k[len(k)-1] = byte(b)
		out = append(out, bruteforce.Candidate{Key: k, IV: t.IV})
	}
	for b := 0; b < 256; b++ {
		v := append([]byte(nil), t.IV...)
		v[len(v)-1] = byte(b)
		out = append(out, bruteforce.Candidate{Key: t.Key, IV: v})
	}
	for kn := 0; kn < 16; kn++ {
		for vn := 0; vn < 16; vn++ {
			k := append([]byte(nil), t.Key...)
			v := append([]byte(nil), t.IV...)
			k[len(k)-1] = (k[len(k)-1] & 0xF0) | byte(kn)
			v[len(v)-1] = (v[len(v)-1] & 0xF0) | byte(vn)
			out = append(out, bruteforce.Candidate{Key: k, IV: v})
		}
	}
	return out
}

// buildPhases assembles the four ordered phases of §4.10 over
// KnownTemplates plus the format-agnostic incremental/random generators.
func buildPhases(budget bruteforce.PhaseBudget, seed uint64) []bruteforce.Phase {
	var variant, simple []bruteforce.Candidate
	for _, t := range KnownTemplates {
		switch t.Kind {
		case TemplateSimple:
			simple = append(simple, simpleVariants(t)...)
		case TemplateMTK, TemplateQualcomm:
			variant = append(variant, templateVariants(t)...)
		}
	}
	return []bruteforce.Phase{
		bruteforce.NewPhase("variant", 100, variant),
		bruteforce.NewPhase("simple", 100, simple),
		bruteforce.NewPhase("incremental", 500, bruteforce.IncrementalCandidates(budget.IncrementalCap)),
		bruteforce.NewPhase("random", 500, bruteforce.RandomCandidates(budget.RandomCount, seed)),
	}
}

// FindProfileKey runs the phased key search (§4.10) against the OFP
// profile ciphertext, returning the winning phase/candidate and the
// decrypted profile XML.
func FindProfileKey(ciphertext []byte, length int64, budget bruteforce.PhaseBudget, seed uint64) (*bruteforce.Result, []byte, error) {
	phases := buildPhases(budget, seed)
	decrypt := func(c bruteforce.Candidate) ([]byte, bool) {
		return TryDecryptProfile(ciphertext, c.Key, c.IV, length)
	}
	result, err := bruteforce.Search(phases, decrypt, nil)
	if err != nil {
		return nil, nil, err
	}
	xmlBytes, _ := TryDecryptProfile(ciphertext, result.Candidate.Key, result.Candidate.IV, length)
	return result, xmlBytes, nil
}

// ProfileEntry is one item from the OFP profile XML: Name is the section
// the item belongs to (Sahara/Config/Provision/DigestsToSign/
// ChainedTableOfDigests/Firmware/...), FileOffsetInSrc is in pages,
// SizeInByteInSrc is the real decrypted length, SizeInSectorInSrc is the
// padded on-disk length (§4.9 "OFP entry extraction").
type ProfileEntry struct {
	Name              string `xml:"Name,attr"`
	Path              string `xml:"Path,attr"`
	FileOffsetInSrc   int64  `xml:"FileOffsetInSrc,attr"`
	SizeInByteInSrc   int64  `xml:"SizeInByteInSrc,attr"`
	SizeInSectorInSrc int64  `xml:"SizeInSectorInSrc,attr"`
}

// Profile is the parsed OFP profile XML's entry list.
type Profile struct {
	XMLName xml.Name       `xml:"profile"`
	Entries []ProfileEntry `xml:"item"`
}

// ParseProfile decodes the decrypted profile XML into its entry list
// (§4.9 "OFP entry extraction").
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := xml.Unmarshal(data, &p); err != nil {
		return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
	}
	return &p, nil
}

const defaultDecryptSize = 0x40000

// realLengthSections decrypt exactly their real byte length instead of
// the default 0x40000 window (§4.9).
var realLengthSections = map[string]bool{
	"Sahara":    true,
	"Config":    true,
	"Provision": true,
}

// rawSections are copied verbatim with no decryption at all (§4.9).
var rawSections = map[string]bool{
	"DigestsToSign":         true,
	"ChainedTableOfDigests": true,
	"Firmware":              true,
}

// EntryWriter receives one profile entry's (possibly partially
// decrypted) byte stream to persist.
type EntryWriter func(entry ProfileEntry, data io.Reader) error

func extractEntry(r io.ReaderAt, entry ProfileEntry, pageSize int64, key, iv []byte, write EntryWriter) error {
	srcOffset := entry.FileOffsetInSrc * pageSize
	total := entry.SizeInSectorInSrc
	if total <= 0 {
		total = entry.SizeInByteInSrc
	}

	if rawSections[entry.Name] {
		return write(entry, io.NewSectionReader(r, srcOffset, total))
	}

	decryptSize := int64(defaultDecryptSize)
	if realLengthSections[entry.Name] {
		decryptSize = entry.SizeInByteInSrc
	}
	if decryptSize > total {
		decryptSize = total
	}
	encLen := roundUp16(decryptSize)
	if encLen > total {
		encLen = total - total%16
	}

	encrypted := make([]byte, encLen)
	if encLen > 0 {
		if _, err := r.ReadAt(encrypted, srcOffset); err != nil {
			return edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
		}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return edlerr.Wrap(edlerr.KindCodec, "unknown-key", err)
	}
	decrypted := make([]byte, encLen)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(decrypted, encrypted)
	if decryptSize < encLen {
		decrypted = decrypted[:decryptSize]
	}

	var tail io.Reader = bytes.NewReader(nil)
	if tailLen := total - encLen; tailLen > 0 {
		tail = io.NewSectionReader(r, srcOffset+encLen, tailLen)
	}
	return write(entry, io.MultiReader(bytes.NewReader(decrypted), tail))
}

// SmartExtract runs the full OFP pipeline (§4.9/§4.10, §8 scenario 6):
// detect the container, locate and brute-force the profile key, parse
// entries, and stream each entry's (partially) decrypted bytes to write.
func SmartExtract(r io.ReaderAt, fileLength int64, budget bruteforce.PhaseBudget, seed uint64, write EntryWriter) (*Profile, error) {
	det, err := Detect(r, fileLength)
	if err != nil {
		return nil, err
	}
	if det.Format != FormatOFP {
		return nil, edlerr.Wrap(edlerr.KindCodec, "bad-magic", nil)
	}

	profOffset, profLength, err := LocateProfile(r, fileLength, det.PageSize)
	if err != nil {
		return nil, err
	}
	ciphertext := make([]byte, roundUp16(profLength))
	if _, err := r.ReadAt(ciphertext, profOffset); err != nil {
		return nil, edlerr.Wrap(edlerr.KindCodec, "corrupt-metadata", err)
	}

	result, xmlBytes, err := FindProfileKey(ciphertext, profLength, budget, seed)
	if err != nil {
		return nil, err
	}

	profile, err := ParseProfile(xmlBytes)
	if err != nil {
		return nil, err
	}

	for _, entry := range profile.Entries {
		if err := extractEntry(r, entry, det.PageSize, result.Candidate.Key, result.Candidate.IV, write); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

// mtkHeaderKey is the fixed ASCII header key MTK OFP shuffle recognition
// keys off (§4.9 "MTK shuffle").
var mtkHeaderKey = []byte("geyixue")

// MTKShuffle1 applies D[i] = K[i%|K|] ⊕ rot4(D[i]) (§4.9 shuffle1).
func MTKShuffle1(data, key []byte) []byte {
	if len(key) == 0 {
		key = mtkHeaderKey
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = key[i%len(key)] ^ rot4(b)
	}
	return out
}

// MTKShuffle2 applies D[i] = rot4(K[i%|K|] ⊕ D[i]) (§4.9 shuffle2).
func MTKShuffle2(data, key []byte) []byte {
	if len(key) == 0 {
		key = mtkHeaderKey
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = rot4(key[i%len(key)] ^ b)
	}
	return out
}

// IsMTKOFP reports whether data, shuffle2-reversed with the fixed header
// key, begins with the plaintext "MMM" marker that recognizes an MTK OFP
// payload (§4.9 "MTK OFP is recognized by the plaintext MMM at offset 0
// after shuffle2-derived AES"). Shuffle1 and shuffle2 are each other's
// inverse (rot4 commutes with XOR, so applying one twice does not cancel),
// so recovering shuffle2-encoded data means applying shuffle1.
func IsMTKOFP(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	unshuffled := MTKShuffle1(data[:3], mtkHeaderKey)
	return bytes.Equal(unshuffled, []byte("MMM"))
}
