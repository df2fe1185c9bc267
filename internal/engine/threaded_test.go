package engine

import (
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/config"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// threadedFakeInstance is a minimal syncmodule.ThreadedInstance: a plain
// struct whose direct Instance methods panic once its thread is running,
// so a test can prove the engine routed a call through SendWait/OnMessage
// instead of calling the struct directly from the engine's own goroutine.
type threadedFakeInstance struct {
	rtloop.BaseHandlers

	mu      sync.Mutex
	status  syncmodule.SyncInstanceStatus
	flags   syncmodule.ControlFlags
	calls   int
	thread  *rtloop.Thread
	started bool
}

func (f *threadedFakeInstance) Thread() *rtloop.Thread { return f.thread }

func (f *threadedFakeInstance) start(t *testing.T) {
	t.Helper()
	th, err := rtloop.Spawn(nil, "threaded-fake", f, nil)
	require.NoError(t, err)
	f.thread = th
	f.started = true
}

func (f *threadedFakeInstance) OnMessage(t *rtloop.Thread, msg *rtloop.Envelope) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	switch msg.ID {
	case syncmodule.MsgGetStatus:
		t.Reply(msg, &rtloop.Envelope{Payload: syncmodule.StatusReply{Status: f.status}})
	case syncmodule.MsgControl:
		args, _ := msg.Payload.(syncmodule.ControlArgs)
		f.mu.Lock()
		f.flags = (f.flags &^ args.Mask) | (args.Flags & args.Mask)
		f.mu.Unlock()
		t.Reply(msg, &rtloop.Envelope{})
	default:
		t.Reply(msg, &rtloop.Envelope{})
	}
}

// Control, GetStatus, etc. implement syncmodule.Instance directly. Once
// the fake's thread has been started, calling any of these from another
// goroutine is a defect in engine's dispatch (it should have gone through
// SendWait/OnMessage above), so they panic to fail the test loudly rather
// than silently returning stale data.
func (f *threadedFakeInstance) Control(mask, flags syncmodule.ControlFlags) {
	if f.started {
		panic("Control called directly on a started ThreadedInstance")
	}
}
func (f *threadedFakeInstance) GetStatus() (syncmodule.SyncInstanceStatus, error) {
	if f.started {
		panic("GetStatus called directly on a started ThreadedInstance")
	}
	return f.status, nil
}
func (f *threadedFakeInstance) StepClock(time.Duration) error { return nil }
func (f *threadedFakeInstance) UpdateGrandmaster(syncmodule.GrandmasterDescriptor) {
}
func (f *threadedFakeInstance) UpdateLeap(bool, bool) {}
func (f *threadedFakeInstance) SaveState(w io.Writer) error {
	_, err := io.WriteString(w, "threaded-fake\n")
	return err
}
func (f *threadedFakeInstance) WriteTopology(io.Writer) error { return nil }

var (
	_ syncmodule.Instance         = (*threadedFakeInstance)(nil)
	_ syncmodule.ThreadedInstance = (*threadedFakeInstance)(nil)
)

// TestTickPollsThreadedInstanceViaSendWait proves engine.Engine.Tick
// drives a ThreadedInstance binding over rtloop.SendWait/OnMessage (spec
// §4.8 step 1: "Polls each sync-instance for its status via send_wait"),
// not by calling Instance's methods directly from the engine's own
// goroutine.
func TestTickPollsThreadedInstanceViaSendWait(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LockFilePath = filepath.Join(dir, "kernel_clock")
	cfg.ControlSocketPath = filepath.Join(dir, "control.sock")
	cfg.SelectionInterval = time.Hour
	cfg.StatisticsInterval = time.Hour

	e := New(cfg, clockreg.New(nil), nil)

	fake := &threadedFakeInstance{status: slaveStatus(1)}
	fake.start(t)
	defer fake.thread.Destroy()

	e.AddBinding("threaded", fake, servo.New(servo.Default()))

	thread, lock, control, err := e.Run(nil, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, Shutdown(thread, lock, control)) }()

	require.NoError(t, e.Tick(time.Now()))

	fake.mu.Lock()
	calls := fake.calls
	fake.mu.Unlock()
	require.Greater(t, calls, 0, "engine must have routed at least one call through OnMessage")
}

// TestInstanceControlFallsBackWithoutSelf exercises the plain-Instance
// fallback path used by tests/tools that never called e.Run (so e.self is
// nil): dispatch must recognize it cannot SendWait and call the Instance
// method directly instead of blocking forever.
func TestInstanceControlFallsBackWithoutSelf(t *testing.T) {
	e := newTestEngine(t)
	f := &fakeInstance{status: slaveStatus(1)}
	e.AddBinding("a", f, servo.New(servo.Default()))

	e.instanceControl(f, syncmodule.ClockControlEnabled, syncmodule.ClockControlEnabled)
	require.Equal(t, syncmodule.ClockControlEnabled, f.flags&syncmodule.ClockControlEnabled)
}
