package scope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnStateString(t *testing.T) {
	require := require.New(t)

	require.Equal("disconnected", Disconnected.String())
	require.Equal("connected", Connected.String())
	require.Equal("shutting-down", ShuttingDown.String())
	require.Equal("unknown", ConnState(42).String())
}

func TestAtomicConnStateTransitions(t *testing.T) {
	require := require.New(t)

	var s atomicConnState
	require.Equal(Disconnected, s.get())

	// Only Connected can move to Disconnected.
	require.False(s.toDisconnected())

	require.True(s.toConnected())
	require.Equal(Connected, s.get())
	require.False(s.toConnected())

	require.True(s.toDisconnected())
	require.Equal(Disconnected, s.get())
}

func TestAtomicConnStateShutdown(t *testing.T) {
	require := require.New(t)

	var s atomicConnState
	s.toConnected()

	prev, ok := s.toShutdown()
	require.True(ok)
	require.Equal(Connected, prev)
	require.Equal(ShuttingDown, s.get())

	// Exactly one caller wins the transition.
	prev, ok = s.toShutdown()
	require.False(ok)
	require.Equal(ShuttingDown, prev)

	// Shutdown is final.
	require.False(s.toConnected())
	require.False(s.toDisconnected())
}
