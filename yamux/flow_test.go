package yamux

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlowControllerRejectsOverconsumption(t *testing.T) {
	fc := NewFlowController(64, 64, false)
	require.True(t, fc.DataReceived(64))
	require.False(t, fc.DataReceived(1))
}

func TestFlowControllerWindowUpdateAtHalfThreshold(t *testing.T) {
	fc := NewFlowController(100, 100, false)
	require.True(t, fc.DataReceived(100))

	_, ok := fc.DataConsumed(40)
	require.False(t, ok, "below half the advertised window, no update yet")

	delta, ok := fc.DataConsumed(20)
	require.True(t, ok)
	require.Equal(t, uint32(60), delta)
}

func TestFlowControllerNeverShrinksWindow(t *testing.T) {
	fc := NewFlowController(1024, 4096, true)
	require.Equal(t, uint32(1024), fc.CurrentWindow())
	require.True(t, fc.DataReceived(1024))
	delta, ok := fc.DataConsumed(1024)
	require.True(t, ok)
	require.GreaterOrEqual(t, delta, uint32(1024))
}
