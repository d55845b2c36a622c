package bruteforce

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchFindsCandidateInIncrementalPhase(t *testing.T) {
	target := []byte("0123456789ABCDEF")

	phases := []Phase{
		NewPhase("variant", 0, nil),
		NewPhase("simple", 0, nil),
		NewPhase("incremental", 500, IncrementalCandidates(1000)),
		NewPhase("random", 500, RandomCandidates(10, 1)),
	}

	decrypt := func(c Candidate) ([]byte, bool) {
		return c.Key, bytes.Equal(c.Key, target)
	}

	result, err := Search(phases, decrypt, nil)
	require.NoError(t, err)
	require.Equal(t, "incremental", result.Phase)
	require.Equal(t, target, result.Candidate.Key)
}

func TestSearchExhaustsWhenNoCandidateMatches(t *testing.T) {
	phases := []Phase{
		NewPhase("variant", 0, nil),
		NewPhase("simple", 0, nil),
		NewPhase("incremental", 0, IncrementalCandidates(4)),
		NewPhase("random", 0, RandomCandidates(4, 1)),
	}
	decrypt := func(c Candidate) ([]byte, bool) { return nil, false }

	_, err := Search(phases, decrypt, nil)
	require.Error(t, err)
}

func TestRandomCandidatesDeterministicForSameSeed(t *testing.T) {
	a := RandomCandidates(5, 42)
	b := RandomCandidates(5, 42)
	require.Equal(t, a, b)
}

func TestIncrementalCandidatesRespectsCap(t *testing.T) {
	out := IncrementalCandidates(7)
	require.Len(t, out, 7)
}

func TestNewPhaseExhaustsAfterCandidates(t *testing.T) {
	ph := NewPhase("x", 0, []Candidate{{Key: []byte("a")}, {Key: []byte("b")}})
	_, ok := ph.Next()
	require.True(t, ok)
	_, ok = ph.Next()
	require.True(t, ok)
	_, ok = ph.Next()
	require.False(t, ok)
}
