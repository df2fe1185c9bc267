package engine

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/config"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

type fakeInstance struct {
	status      syncmodule.SyncInstanceStatus
	flags       syncmodule.ControlFlags
	grandmaster syncmodule.GrandmasterDescriptor
	leap59      bool
	stepErr     error
	stepCount   int
}

func (f *fakeInstance) Control(mask, flags syncmodule.ControlFlags) {
	f.flags = (f.flags &^ mask) | (flags & mask)
}
func (f *fakeInstance) GetStatus() (syncmodule.SyncInstanceStatus, error) { return f.status, nil }
func (f *fakeInstance) StepClock(time.Duration) error                     { f.stepCount++; return f.stepErr }
func (f *fakeInstance) UpdateGrandmaster(info syncmodule.GrandmasterDescriptor) {
	f.grandmaster = info
}
func (f *fakeInstance) UpdateLeap(leap59, leap61 bool) { f.leap59 = leap59 }
func (f *fakeInstance) SaveState(w io.Writer) error    { _, err := io.WriteString(w, "fake\n"); return err }
func (f *fakeInstance) WriteTopology(io.Writer) error  { return nil }

var _ syncmodule.Instance = (*fakeInstance)(nil)

func slaveStatus(priority uint8) syncmodule.SyncInstanceStatus {
	return syncmodule.SyncInstanceStatus{
		State:        syncmodule.StateSlave,
		UserPriority: priority,
		Grandmaster:  syncmodule.GrandmasterDescriptor{ClockClass: 6},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	registry := clockreg.New(nil)
	return New(config.Default(), registry, nil)
}

func TestTickElectsLowerPriorityAndSetsControlFlags(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	b := &fakeInstance{status: slaveStatus(64)}
	e.AddBinding("a", a, servo.New(servo.Default()))
	e.AddBinding("b", b, servo.New(servo.Default()))

	require.NoError(t, e.Tick(time.Now()))

	require.Equal(t, "b", e.ElectedName())
	require.True(t, b.flags&syncmodule.ClockControlEnabled != 0)
	require.True(t, b.flags&syncmodule.TimestampProcessing != 0)
	require.True(t, a.flags&syncmodule.ClockControlEnabled == 0)
	require.True(t, a.flags&syncmodule.TimestampProcessing != 0)
}

func TestTickDistributesGrandmasterToNonElected(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	b := &fakeInstance{status: slaveStatus(64)}
	b.status.Grandmaster.ClockIdentity = [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	e.AddBinding("a", a, nil)
	e.AddBinding("b", b, nil)

	require.NoError(t, e.Tick(time.Now()))
	require.Equal(t, b.status.Grandmaster, a.grandmaster)
}

func TestTickNoChangeOnSecondIdenticalTick(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	e.AddBinding("a", a, nil)

	require.NoError(t, e.Tick(time.Now()))
	require.Equal(t, "a", e.ElectedName())

	a.flags = 0 // simulate flags being cleared externally
	require.NoError(t, e.Tick(time.Now()))
	// No change event this time, so Tick should not touch flags again.
	require.Zero(t, a.flags)
}

func TestSelectInstanceOverridePinsElection(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	b := &fakeInstance{status: slaveStatus(64)}
	e.AddBinding("a", a, nil)
	e.AddBinding("b", b, nil)

	require.NoError(t, e.SelectInstance("a"))
	require.NoError(t, e.Tick(time.Now()))
	require.Equal(t, "a", e.ElectedName())
}

func TestSelectInstanceRejectsUnknownName(t *testing.T) {
	e := newTestEngine(t)
	require.Error(t, e.SelectInstance("nope"))
}

func TestStepClocksInvokesEveryBinding(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{}
	b := &fakeInstance{}
	e.AddBinding("a", a, nil)
	e.AddBinding("b", b, nil)

	require.NoError(t, e.StepClocks())
	require.Equal(t, 1, a.stepCount)
	require.Equal(t, 1, b.stepCount)
}

func TestTestModeSetsFlagOnEveryBinding(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{}
	e.AddBinding("a", a, nil)

	e.TestMode(3, 1, 2, 3)
	id, p0, p1, p2, ok := e.ActiveTestMode()
	require.True(t, ok)
	require.Equal(t, 3, id)
	require.Equal(t, 1.0, p0)
	require.Equal(t, 2.0, p1)
	require.Equal(t, 3.0, p2)
	require.True(t, a.flags&syncmodule.TestMode != 0)
}

func TestUpdateLeapPropagatesToBindings(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{}
	e.AddBinding("a", a, nil)

	e.UpdateLeap(true, false)
	require.True(t, a.leap59)
}

func TestDumpTablesMarksElectedInstance(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	e.AddBinding("a", a, nil)
	require.NoError(t, e.Tick(time.Now()))

	var sb strings.Builder
	require.NoError(t, e.DumpTables(&sb))
	require.Contains(t, sb.String(), "*a")
}

func TestCollectStatisticsMarksElectedInstance(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	b := &fakeInstance{status: slaveStatus(64)}
	e.AddBinding("a", a, servo.New(servo.Default()))
	e.AddBinding("b", b, servo.New(servo.Default()))
	require.NoError(t, e.Tick(time.Now()))

	stats := e.CollectStatistics()
	require.Len(t, stats, 2)
	for _, s := range stats {
		require.Equal(t, s.Name == "b", s.Elected)
	}
}

func TestEmitStatisticsCallsSinkWithSnapshot(t *testing.T) {
	e := newTestEngine(t)
	a := &fakeInstance{status: slaveStatus(128)}
	e.AddBinding("a", a, nil)
	require.NoError(t, e.Tick(time.Now()))

	var got []InstanceStatistics
	e.StatisticsSink = func(s []InstanceStatistics) { got = s }
	e.EmitStatistics()

	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Name)
	require.True(t, got[0].Elected)
}

func TestEmitStatisticsNoopWithoutSink(t *testing.T) {
	e := newTestEngine(t)
	e.AddBinding("a", &fakeInstance{status: slaveStatus(1)}, nil)
	e.EmitStatistics() // must not panic
}
