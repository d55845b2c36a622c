// Package bruteforce runs a phased candidate key search in increasing
// cost order, stopping as soon as a candidate passes the caller's
// try-key oracle. It is format-agnostic: the variant/simple phases'
// candidates are built by the caller (pkg/edl/ofp knows how to vary its
// own key templates); this package only supplies the bounded
// incremental/random generators and the phase-driving loop (§4.10).
package bruteforce

import (
	"time"

	"qflash/pkg/edl/edlerr"
)

// Candidate is one (key, iv) pair to try against the oracle.
type Candidate struct {
	Key []byte
	IV  []byte
}

// DecryptFunc attempts a candidate against the protected probe and
// reports the recovered plaintext when it passes the oracle (§4.9's
// try-key check, reused verbatim by every phase per §4.10).
type DecryptFunc func(Candidate) (plaintext []byte, ok bool)

// ProgressFunc is called periodically during a phase so a caller can
// report search progress (§4.10: "every 100 (phase 1-2) or 500
// (phase 3)").
type ProgressFunc func(phase string, tried int)

// Phase drives one stage of the search: Next yields the next candidate,
// returning ok=false once exhausted. Progress is the report interval in
// tries (0 disables reporting for this phase).
type Phase struct {
	Name     string
	Progress int
	Next     func() (Candidate, bool)
}

// NewPhase wraps a precomputed candidate slice as a Phase.
func NewPhase(name string, progress int, candidates []Candidate) Phase {
	i := 0
	return Phase{
		Name:     name,
		Progress: progress,
		Next: func() (Candidate, bool) {
			if i >= len(candidates) {
				return Candidate{}, false
			}
			c := candidates[i]
			i++
			return c, true
		},
	}
}

// Result reports which phase and candidate succeeded, how many
// candidates were tried across the whole search, and how long it took
// (§4.10: "wall-clock and total tried are reported in the result").
type Result struct {
	Phase     string
	Candidate Candidate
	Tried     int
	Elapsed   time.Duration
}

// PhaseBudget bounds the incremental/random phases so worst-case search
// time stays predictable (§4.10 items 3-4).
type PhaseBudget struct {
	IncrementalCap int
	RandomCount    int
}

// DefaultBudget matches §4.10's stated caps: incremental capped at
// 10,000 tries, random at 5,000 keys.
func DefaultBudget() PhaseBudget {
	return PhaseBudget{IncrementalCap: 10000, RandomCount: 5000}
}

// Search runs each phase's candidates in order against decrypt, stopping
// at the first one the oracle accepts. Phases run in the order given by
// phases, matching §4.10's variant -> simple -> incremental -> random
// ordering when built via pkg/edl/ofp.buildPhases.
func Search(phases []Phase, decrypt DecryptFunc, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	tried := 0
	for _, ph := range phases {
		phaseTried := 0
		for {
			cand, ok := ph.Next()
			if !ok {
				break
			}
			tried++
			phaseTried++
			if _, ok := decrypt(cand); ok {
				return &Result{Phase: ph.Name, Candidate: cand, Tried: tried, Elapsed: time.Since(start)}, nil
			}
			if ph.Progress > 0 && phaseTried%ph.Progress == 0 && progress != nil {
				progress(ph.Name, phaseTried)
			}
		}
	}
	return nil, edlerr.ErrBruteExhausted
}

// incrementalBasePatterns are the published hex-digit patterns §4.10
// cross-products in the incremental phase.
var incrementalBasePatterns = []string{
	"0123456789ABCDEF",
	"FEDCBA9876543210",
}

// IncrementalCandidates builds the capped cross-product of sliding-offset
// rotations of the known hex-digit patterns, used directly as 16-byte
// ASCII key/iv material (§4.10 phase 3).
func IncrementalCandidates(cap int) []Candidate {
	var rotations []string
	for _, p := range incrementalBasePatterns {
		for off := 0; off < len(p); off++ {
			rotations = append(rotations, p[off:]+p[:off])
		}
	}
	out := make([]Candidate, 0, cap)
	for _, k := range rotations {
		for _, v := range rotations {
			if len(out) >= cap {
				return out
			}
			out = append(out, Candidate{Key: []byte(k), IV: []byte(v)})
		}
	}
	return out
}

// RandomCandidates yields count uniformly-distributed 16-byte key/iv
// pairs from a deterministic xorshift64 stream seeded by the caller, so
// the "random" phase stays reproducible given the same seed (§8's
// determinism requirement for testable properties; §4.10 phase 4).
func RandomCandidates(count int, seed uint64) []Candidate {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	state := seed
	next := func() uint64 {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		return state
	}
	fill := func(b []byte) {
		for off := 0; off < len(b); off += 8 {
			v := next()
			for j := 0; j < 8 && off+j < len(b); j++ {
				b[off+j] = byte(v >> (8 * j))
			}
		}
	}
	out := make([]Candidate, 0, count)
	for i := 0; i < count; i++ {
		key := make([]byte, 16)
		iv := make([]byte, 16)
		fill(key)
		fill(iv)
		out = append(out, Candidate{Key: key, IV: iv})
	}
	return out
}
