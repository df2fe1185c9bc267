package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

func slaveStatus(priority uint8, alarms syncmodule.AlarmBits, stepsRemoved uint16) syncmodule.SyncInstanceStatus {
	return syncmodule.SyncInstanceStatus{
		State:        syncmodule.StateSlave,
		AlarmBitmask: alarms,
		UserPriority: priority,
		Grandmaster:  syncmodule.GrandmasterDescriptor{ClockClass: 6, ClockAccuracy: 0x20, StepsRemoved: stepsRemoved},
	}
}

func TestSelectPriorityTieBreak(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, 0, 0)},
		{Name: "B", Status: slaveStatus(64, 0, 0)},
	}
	r := s.Select(candidates)
	require.Equal(t, 1, r.Index)
	require.Equal(t, "B", candidates[r.Index].Name)
	require.Equal(t, RelaxationNone, r.Relaxed)
}

func TestSelectBetterCandidateAlarmed(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, 0, 0)},
		{Name: "B", Status: slaveStatus(64, syncmodule.AlarmNoFollowUps, 0)},
	}
	r := s.Select(candidates)
	require.Equal(t, "A", candidates[r.Index].Name)
	require.Equal(t, RelaxationNone, r.Relaxed)
}

func TestSelectAllAlarmedFallsBackByPriority(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, syncmodule.AlarmNoFollowUps, 0)},
		{Name: "B", Status: slaveStatus(64, syncmodule.AlarmNoFollowUps, 0)},
	}
	r := s.Select(candidates)
	require.Equal(t, "B", candidates[r.Index].Name)
	require.Equal(t, RelaxationIgnoreAlarms, r.Relaxed)
}

func TestSelectStepsRemovedTieBreak(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, 0, 2)},
		{Name: "B", Status: slaveStatus(128, 0, 5)},
	}
	r := s.Select(candidates)
	require.Equal(t, "A", candidates[r.Index].Name)
}

func TestSelectFallsBackToNonSlaveWhenNoneSlave(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: syncmodule.SyncInstanceStatus{State: syncmodule.StateUncalibrated, Grandmaster: syncmodule.GrandmasterDescriptor{ClockClass: 6}}},
		{Name: "B", Status: syncmodule.SyncInstanceStatus{State: syncmodule.StateFaulty}},
	}
	r := s.Select(candidates)
	require.Equal(t, "A", candidates[r.Index].Name)
	require.Equal(t, RelaxationNonSlave, r.Relaxed)
}

func TestSelectReturnsNoCandidateWhenAllFaulty(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: syncmodule.SyncInstanceStatus{State: syncmodule.StateFaulty}},
		{Name: "B", Status: syncmodule.SyncInstanceStatus{State: syncmodule.StateDisabled}},
	}
	r := s.Select(candidates)
	require.Equal(t, -1, r.Index)
	require.Equal(t, RelaxationEmpty, r.Relaxed)
}

func TestSelectEmitsChangeOnlyWhenElectionDiffers(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, 0, 0)},
		{Name: "B", Status: slaveStatus(64, 0, 0)},
	}
	first := s.Select(candidates)
	require.True(t, first.Changed)

	second := s.Select(candidates)
	require.False(t, second.Changed)
	require.Equal(t, first.Index, second.Index)
}

func TestSelectManualOverridePinsSelection(t *testing.T) {
	s := New()
	candidates := []Candidate{
		{Name: "A", Status: slaveStatus(128, 0, 0)},
		{Name: "B", Status: slaveStatus(64, 0, 0)},
	}
	s.SetOverride("A")
	r := s.Select(candidates)
	require.Equal(t, "A", candidates[r.Index].Name)

	s.ClearOverride()
	r = s.Select(candidates)
	require.Equal(t, "B", candidates[r.Index].Name)
}
