package pps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
)

func TestObservePulseTracksOffset(t *testing.T) {
	registry := clockreg.New(nil)
	clock := registry.GetSystemClock()

	m := New(clock, nil, 10)
	before := time.Now()
	m.ObservePulse(before, 1)

	status, err := m.GetStatus()
	require.NoError(t, err)
	require.Equal(t, clock.Handle, status.ReferenceClock)
	require.Zero(t, status.AlarmBitmask)
}

func TestObservePulseDetectsLostPulses(t *testing.T) {
	registry := clockreg.New(nil)
	clock := registry.GetSystemClock()

	m := New(clock, nil, 10)
	m.ObservePulse(time.Now(), 1)
	m.ObservePulse(time.Now(), 5) // 3 pulses lost

	require.EqualValues(t, 3, m.lostPulses)

	status, err := m.GetStatus()
	require.NoError(t, err)
	require.NotZero(t, status.AlarmBitmask)
}

func TestStepClockUnsupported(t *testing.T) {
	registry := clockreg.New(nil)
	m := New(registry.GetSystemClock(), nil, 10)
	require.Error(t, m.StepClock(time.Second))
}
