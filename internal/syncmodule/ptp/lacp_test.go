package ptp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLACPBypassRebuildOpensFourSocketsPerMember(t *testing.T) {
	nextFd := 100
	open := func(member int32) (int, error) {
		nextFd++
		return nextFd, nil
	}
	probe := func(fd int) (int32, error) { return int32(fd), nil }

	l := newLACPBypass(1, []int32{2, 3}, open, probe)
	require.NoError(t, l.Rebuild())

	require.Len(t, l.sockets, 2*auxSocketsPerMember)
	require.Equal(t, 2*auxSocketsPerMember, l.ValidCount())
}

func TestLACPBypassCapsTotalAt64(t *testing.T) {
	open := func(member int32) (int, error) { return 1, nil }
	probe := func(fd int) (int32, error) { return 1, nil }

	members := make([]int32, 20) // 20*4 = 80 > 64
	for i := range members {
		members[i] = int32(i)
	}

	l := newLACPBypass(1, members, open, probe)
	require.NoError(t, l.Rebuild())
	require.LessOrEqual(t, len(l.sockets), maxAuxSockets)
}

func TestLACPBypassMarksBindFailure(t *testing.T) {
	open := func(member int32) (int, error) { return 0, fmt.Errorf("bind failed") }
	probe := func(fd int) (int32, error) { return 0, nil }

	l := newLACPBypass(1, []int32{2}, open, probe)
	require.NoError(t, l.Rebuild())
	require.Equal(t, 0, l.ValidCount())
	require.Equal(t, InvalidReasonBindFailed, l.sockets[0].reason)
}

func TestLACPBypassInvalidate(t *testing.T) {
	open := func(member int32) (int, error) { return 1, nil }
	probe := func(fd int) (int32, error) { return 1, nil }

	l := newLACPBypass(1, []int32{2}, open, probe)
	require.NoError(t, l.Rebuild())
	require.Equal(t, auxSocketsPerMember, l.ValidCount())

	require.NoError(t, l.Invalidate(0, InvalidReasonMemberRemoved))
	require.Equal(t, auxSocketsPerMember-1, l.ValidCount())
	require.False(t, l.Valid(0))
}

func TestLACPBypassRebuildsOnCompositionChange(t *testing.T) {
	calls := 0
	open := func(member int32) (int, error) { calls++; return calls, nil }
	probe := func(fd int) (int32, error) { return int32(fd), nil }

	l := newLACPBypass(1, []int32{2}, open, probe)
	require.NoError(t, l.Rebuild())
	firstCalls := calls

	require.NoError(t, l.OnCompositionChange([]int32{2})) // unchanged
	require.Equal(t, firstCalls, calls)

	require.NoError(t, l.OnCompositionChange([]int32{2, 3})) // changed
	require.Greater(t, calls, firstCalls)
}
