package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStateField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		state AcquisitionState
		ok    bool
	}{
		{"spacePadded", "RUNNING         ", StateRunning, true},
		{"nulPadded", "COMPLETED\x00\x00\x00\x00\x00\x00\x00", StateCompleted, true},
		{"lowercase", "cancelled       ", StateCancelled, true},
		{"mixedCase", "Cancelling      ", StateCancelling, true},
		{"unpadded", "FAILED", StateFailed, true},
		{"idle", "IDLE            ", StateIdle, true},
		{"unknown", "CALIBRATING     ", StateIdle, false},
		{"empty", "                ", StateIdle, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			state, ok := ParseStateField([]byte(test.field))
			require.Equal(t, test.ok, ok)
			require.Equal(t, test.state, state)
		})
	}
}

func TestStateFieldRoundTrip(t *testing.T) {
	require := require.New(t)

	states := []AcquisitionState{
		StateIdle, StateRunning, StateCancelling,
		StateCancelled, StateCompleted, StateFailed,
	}
	for _, s := range states {
		field := EncodeStateField(s)
		require.Len(field, StateFieldSize)

		parsed, ok := ParseStateField(field)
		require.True(ok, "state %s", s)
		require.Equal(s, parsed)
	}
}

func TestStateTerminal(t *testing.T) {
	require := require.New(t)

	require.False(StateIdle.Terminal())
	require.False(StateRunning.Terminal())
	require.False(StateCancelling.Terminal())
	require.True(StateCancelled.Terminal())
	require.True(StateCompleted.Terminal())
	require.True(StateFailed.Terminal())
}

func TestProgressPercent(t *testing.T) {
	require := require.New(t)

	require.Zero(AcquisitionProgress{}.Percent())
	require.Zero(AcquisitionProgress{Current: 5}.Percent())
	require.Equal(50.0, AcquisitionProgress{Current: 5, Total: 10}.Percent())
	require.Equal(100.0, AcquisitionProgress{Current: 10, Total: 10}.Percent())
	require.Equal("3/10 (30.0%)", AcquisitionProgress{Current: 3, Total: 10}.String())
}
