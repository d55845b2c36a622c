package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhaseStringerCoversAllPhases(t *testing.T) {
	for p := PhaseConnect; p <= PhaseDone; p++ {
		s := p.String()
		require.NotContains(t, s, "phase(")
	}
}

func TestPhaseOrderIsSequential(t *testing.T) {
	require.Less(t, int(PhaseConnect), int(PhaseSahara))
	require.Less(t, int(PhaseSahara), int(PhaseFirehoseConfigure))
	require.Less(t, int(PhaseFirehoseConfigure), int(PhaseAuth))
	require.Less(t, int(PhaseAuth), int(PhaseExecute))
	require.Less(t, int(PhaseExecute), int(PhaseReboot))
	require.Less(t, int(PhaseReboot), int(PhaseDone))
}
