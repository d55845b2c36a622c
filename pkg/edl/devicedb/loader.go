package devicedb

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// FindMatchingLoader searches dir for the newest file matching the highest
// priority pattern for msmID/pkHash, following §4.11's priority list:
// vendor_chip_hint, chip_hint, vendor, generic prog_firehose_ddr*,
// xbl_s_devprg_ns*, *.mbn, *.elf.
func FindMatchingLoader(dir string, msmID uint32, pkHash string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	chip, _ := LookupChip(msmID)
	hint, hasHint := LookupVendor(pkHash)

	var patterns []string
	if hasHint && chip.Chip != "" {
		patterns = append(patterns, "*"+hint.Vendor+"_"+chip.Chip+"*")
	}
	if chip.Chip != "" {
		patterns = append(patterns, "*"+chip.Chip+"*")
	}
	if hasHint {
		patterns = append(patterns, "*"+hint.Vendor+"*")
	}
	patterns = append(patterns, "prog_firehose_ddr*", "xbl_s_devprg_ns*", "*.mbn", "*.elf")

	for _, pat := range patterns {
		best, ok := newestMatch(dir, entries, pat)
		if ok {
			return filepath.Join(dir, best), true
		}
	}
	return "", false
}

func newestMatch(dir string, entries []os.DirEntry, pattern string) (string, bool) {
	type candidate struct {
		name    string
		modTime int64
	}
	var matches []candidate
	re := globToRegexp(pattern)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !re.MatchString(strings.ToLower(e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		matches = append(matches, candidate{e.Name(), info.ModTime().UnixNano()})
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].modTime > matches[j].modTime })
	return matches[0].name, true
}

func globToRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(strings.ToLower(pattern))
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return regexp.MustCompile("^" + escaped + "$")
}
