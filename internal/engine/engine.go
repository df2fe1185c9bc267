// Package engine implements the C8 top-level coordinator of spec.md
// §4.8: it owns the clock registry, the bound servos, the sync-module
// instances, and the best-instance selector, and drives a fixed
// selection-interval tick that polls status, runs the selector, updates
// control flags, distributes grandmaster info, and feeds the winning
// instance's offset to its servo.
package engine

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/config"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/rtloop"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/selector"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/servo"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// Binding pairs a sync-instance with the servo that disciplines its
// reference clock and the name it is known by (spec §4.6's "instance
// name" used by selectinstance and the status/state files).
type Binding struct {
	Name     string
	Instance syncmodule.Instance
	Servo    *servo.Servo
}

// Engine is the C8 coordinator. It is safe for concurrent use: the
// control socket, a periodic tick, and the hotplug handler may all call
// into it from different goroutines.
type Engine struct {
	mu sync.Mutex

	cfg      *config.EngineConfig
	logger   logging.Logger
	registry *clockreg.Registry
	sel      *selector.Selector

	bindings []*Binding
	elected  int // index into bindings, or -1

	// self is the engine's own reactor thread, set once run.go's handlers
	// OnStartup runs. It is the caller side of SendWait for any bound
	// Instance that implements syncmodule.ThreadedInstance (spec §4.8 step
	// 1: "Polls each sync-instance for its status via send_wait"); nil
	// before the engine thread starts (e.g. in unit tests that call Tick
	// directly), in which case dispatch falls back to a direct call.
	self *rtloop.Thread

	// linkRing is the publication ring the engine releases a table back to
	// once a MsgLinkTableUpdated notification (see run.go's OnMessage) has
	// been rescanned. Set by SetLinkRing; nil if the engine was never
	// wired to a linkstate.Engine.
	linkRing *linkstate.Ring

	leap59, leap61 bool

	testMode testModeState

	// LogRotate is a seam for an external collaborator (spec §1 Non-goal:
	// log rotation mechanics are out of scope here) to hook the control
	// socket's "logrotate" command and the SIGHUP handler spec §5 names.
	LogRotate func() error

	// Daemonize is a seam: this package never forks or detaches from a
	// controlling terminal (spec §1 Non-goal), but a CLI wrapper consulting
	// this field can decide whether to do so before calling Run.
	Daemonize bool

	// StatisticsSink is a seam for an external collaborator (spec §1
	// Non-goal: "statistics file writers" are out of scope here) to
	// receive the periodic statistics snapshot this package only
	// collects. A nil sink means the 60s statistics tick collects
	// nothing and calls nothing.
	StatisticsSink func([]InstanceStatistics)
}

// InstanceStatistics is one binding's periodic statistics sample (spec
// §4.8: "emitting periodic statistics at a fixed interval"). It mirrors
// the subset of SyncInstanceStatus that is useful as a time series,
// rather than the full status snapshot DumpTables renders.
type InstanceStatistics struct {
	Name             string
	Elected          bool
	State            syncmodule.State
	OffsetFromMaster time.Duration
	AlarmBitmask     syncmodule.AlarmBits
	ClockSteps       uint64
}

type testModeState struct {
	active bool
	id     int
	params [3]float64
}

// New constructs an Engine bound to registry, with cfg's defaults applied.
// A nil cfg uses config.Default().
func New(cfg *config.EngineConfig, registry *clockreg.Registry, logger logging.Logger) *Engine {
	return &Engine{
		cfg:      cfg.WithDefaults(),
		logger:   logging.OrDefault(logger).With(logging.F("component", "engine")),
		registry: registry,
		sel:      selector.New(),
		elected:  -1,
	}
}

// setSelf records the engine's own reactor thread, called once from
// run.go's OnStartup handler so later ticks can SendWait into any
// ThreadedInstance binding.
func (e *Engine) setSelf(t *rtloop.Thread) {
	e.mu.Lock()
	e.self = t
	e.mu.Unlock()
}

// dispatch routes one Instance operation to inst via SendWait if inst
// implements syncmodule.ThreadedInstance and the engine's own thread is
// known; handled reports whether the SendWait path was taken (it may
// still be true with a non-nil err if the send_wait itself failed). When
// handled is false the caller must fall back to the direct Instance
// method call.
func (e *Engine) dispatch(inst syncmodule.Instance, id uint32, payload any) (reply any, handled bool, err error) {
	ti, ok := inst.(syncmodule.ThreadedInstance)
	if !ok {
		return nil, false, nil
	}
	e.mu.Lock()
	self := e.self
	e.mu.Unlock()
	thread := ti.Thread()
	if self == nil || thread == nil {
		return nil, false, nil
	}

	resp, err := self.SendWait(&rtloop.Envelope{Payload: payload}, thread, id)
	if err != nil {
		return nil, true, err
	}
	p := resp.Payload
	resp.Free()
	return p, true, nil
}

// instanceStatus polls inst for its status, preferring send_wait for a
// ThreadedInstance (spec §4.8 step 1).
func (e *Engine) instanceStatus(inst syncmodule.Instance) (syncmodule.SyncInstanceStatus, error) {
	if p, handled, err := e.dispatch(inst, syncmodule.MsgGetStatus, nil); handled {
		if err != nil {
			return syncmodule.SyncInstanceStatus{}, err
		}
		r, _ := p.(syncmodule.StatusReply)
		return r.Status, r.Err
	}
	return inst.GetStatus()
}

// instanceControl applies mask/flags to inst, preferring send_wait for a
// ThreadedInstance.
func (e *Engine) instanceControl(inst syncmodule.Instance, mask, flags syncmodule.ControlFlags) {
	if _, handled, err := e.dispatch(inst, syncmodule.MsgControl, syncmodule.ControlArgs{Mask: mask, Flags: flags}); handled {
		if err != nil {
			e.logger.Log(logging.LevelWarning, "send_wait control failed", logging.F("error", err))
		}
		return
	}
	inst.Control(mask, flags)
}

// instanceUpdateGrandmaster distributes gm to inst, preferring send_wait
// for a ThreadedInstance.
func (e *Engine) instanceUpdateGrandmaster(inst syncmodule.Instance, gm syncmodule.GrandmasterDescriptor) {
	if _, handled, err := e.dispatch(inst, syncmodule.MsgUpdateGrandmaster, gm); handled {
		if err != nil {
			e.logger.Log(logging.LevelWarning, "send_wait update_grandmaster failed", logging.F("error", err))
		}
		return
	}
	inst.UpdateGrandmaster(gm)
}

// instanceUpdateLeap propagates a leap-second announcement to inst,
// preferring send_wait for a ThreadedInstance.
func (e *Engine) instanceUpdateLeap(inst syncmodule.Instance, leap59, leap61 bool) {
	if _, handled, err := e.dispatch(inst, syncmodule.MsgUpdateLeap, syncmodule.LeapArgs{Leap59: leap59, Leap61: leap61}); handled {
		if err != nil {
			e.logger.Log(logging.LevelWarning, "send_wait update_leap failed", logging.F("error", err))
		}
		return
	}
	inst.UpdateLeap(leap59, leap61)
}

// instanceStepClock commands inst to step, preferring send_wait for a
// ThreadedInstance.
func (e *Engine) instanceStepClock(inst syncmodule.Instance, offset time.Duration) error {
	if p, handled, err := e.dispatch(inst, syncmodule.MsgStepClock, offset); handled {
		if err != nil {
			return err
		}
		r, _ := p.(syncmodule.ErrReply)
		return r.Err
	}
	return inst.StepClock(offset)
}

// instanceSaveState writes inst's state to w, preferring send_wait for a
// ThreadedInstance.
func (e *Engine) instanceSaveState(inst syncmodule.Instance, w io.Writer) error {
	if p, handled, err := e.dispatch(inst, syncmodule.MsgSaveState, w); handled {
		if err != nil {
			return err
		}
		r, _ := p.(syncmodule.ErrReply)
		return r.Err
	}
	return inst.SaveState(w)
}

// AddBinding registers a new sync-instance/servo pair under name. It is
// the caller's responsibility to ensure names are unique; a duplicate
// name shadows lookups by name (selectinstance, dump tables) but does not
// itself error, matching this core's general policy of surfacing
// misconfiguration via logs rather than panics at this layer.
func (e *Engine) AddBinding(name string, inst syncmodule.Instance, sv *servo.Servo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bindings = append(e.bindings, &Binding{Name: name, Instance: inst, Servo: sv})
}

// Bindings returns a snapshot of the currently registered bindings.
func (e *Engine) Bindings() []*Binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Binding, len(e.bindings))
	copy(out, e.bindings)
	return out
}

// Tick runs one selection interval (spec §4.8, steps 1-5):
//  1. polls each instance's status,
//  2. runs the selector,
//  3. on a change, sets CLOCK_CONTROL_ENABLED|TIMESTAMP_PROCESSING on the
//     elected instance and clears CLOCK_CONTROL_ENABLED (keeping
//     TIMESTAMP_PROCESSING) on the rest,
//  4. distributes grandmaster info to every non-elected instance,
//  5. drives the elected instance's servo with its offset-from-master.
func (e *Engine) Tick(now time.Time) error {
	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	if len(bindings) == 0 {
		return nil
	}

	candidates := make([]selector.Candidate, len(bindings))
	statuses := make([]syncmodule.SyncInstanceStatus, len(bindings))
	for i, b := range bindings {
		st, err := e.instanceStatus(b.Instance)
		if err != nil {
			e.logger.Log(logging.LevelWarning, "get_status failed",
				logging.F("instance", b.Name), logging.F("error", err))
			st = syncmodule.SyncInstanceStatus{State: syncmodule.StateFaulty}
		}
		statuses[i] = st
		candidates[i] = selector.Candidate{Name: b.Name, Status: st}
	}

	result := e.sel.Select(candidates)

	if result.Changed {
		e.logger.Log(logging.LevelNotice, "elected instance changed",
			logging.F("index", result.Index), logging.F("relaxed", int(result.Relaxed)))
		for i, b := range bindings {
			if i == result.Index {
				e.instanceControl(b.Instance, syncmodule.ClockControlEnabled|syncmodule.TimestampProcessing,
					syncmodule.ClockControlEnabled|syncmodule.TimestampProcessing)
				if b.Servo != nil {
					b.Servo.SetClockControlEnabled(true)
				}
				continue
			}
			e.instanceControl(b.Instance, syncmodule.ClockControlEnabled|syncmodule.TimestampProcessing,
				syncmodule.TimestampProcessing)
			if b.Servo != nil {
				b.Servo.SetClockControlEnabled(false)
			}
		}
	}

	e.mu.Lock()
	e.elected = result.Index
	e.mu.Unlock()

	if result.Index < 0 {
		return nil
	}

	elected := bindings[result.Index]
	gm := statuses[result.Index].Grandmaster
	for i, b := range bindings {
		if i == result.Index {
			continue
		}
		e.instanceUpdateGrandmaster(b.Instance, gm)
	}

	if elected.Servo != nil {
		corr := elected.Servo.Tick(statuses[result.Index].OffsetFromMaster, 0, now)
		if err := e.applyCorrection(statuses[result.Index].ReferenceClock, corr); err != nil {
			e.logger.Log(logging.LevelWarning, "clock correction failed",
				logging.F("instance", elected.Name), logging.F("error", err))
		}
	}

	return nil
}

// applyCorrection drives the registry's clock entry identified by handle
// per the servo's decision: a frequency trim for ActionSlew, an absolute
// step for ActionStep, nothing for ActionNone. This is the step that
// actually disciplines a clock as a consequence of a servo tick.
func (e *Engine) applyCorrection(handle clockreg.Handle, corr servo.Correction) error {
	if corr.Action == servo.ActionNone {
		return nil
	}
	c, err := e.registry.FindByHandle(handle)
	if err != nil {
		return err
	}
	switch corr.Action {
	case servo.ActionSlew:
		return e.registry.AdjustFrequency(c, corr.FrequencyPPB)
	case servo.ActionStep:
		now, err := c.Now()
		if err != nil {
			return err
		}
		return e.registry.SetTime(c, clockreg.SourceUnknown, now.Add(-corr.StepOffset), true)
	default:
		return nil
	}
}

// ElectedName returns the currently elected instance's name, or "" if
// none is elected.
func (e *Engine) ElectedName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.elected < 0 || e.elected >= len(e.bindings) {
		return ""
	}
	return e.bindings[e.elected].Name
}

// SelectInstance pins the selector's election to name until
// ClearOverride is called (control socket "selectinstance <name>").
func (e *Engine) SelectInstance(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range e.bindings {
		if b.Name == name {
			e.sel.SetOverride(name)
			return nil
		}
	}
	return fmt.Errorf("engine: no such instance %q", name)
}

// ClearSelectionOverride removes a manual override, resuming automatic
// selection from the next tick.
func (e *Engine) ClearSelectionOverride() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.ClearOverride()
}

// StepClocks commands every bound instance to perform an immediate
// one-off clock step (control socket "stepclocks", SIGUSR1 per spec §5).
// Errors from individual instances are logged and do not stop the loop,
// since a single uncooperative clock should not abort the others; the
// first such error is returned once every instance has been asked.
func (e *Engine) StepClocks() error {
	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	var firstErr error
	for _, b := range bindings {
		if err := e.instanceStepClock(b.Instance, 0); err != nil {
			e.logger.Log(logging.LevelWarning, "stepclocks failed",
				logging.F("instance", b.Name), logging.F("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// TestMode records a test-mode activation (control socket "testmode <id>
// <p0> <p1> <p2>"). spec §1/§6 scope the concrete per-mode behaviors to
// the sync-module variants, which consult ActiveTestMode; this method
// only records the request and propagates TestMode on every instance's
// control flags.
func (e *Engine) TestMode(id int, p0, p1, p2 float64) {
	e.mu.Lock()
	e.testMode = testModeState{active: true, id: id, params: [3]float64{p0, p1, p2}}
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	for _, b := range bindings {
		e.instanceControl(b.Instance, syncmodule.TestMode, syncmodule.TestMode)
	}
}

// ActiveTestMode returns the last TestMode activation, or ok=false if
// none is active.
func (e *Engine) ActiveTestMode() (id int, p0, p1, p2 float64, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.testMode.active {
		return 0, 0, 0, 0, false
	}
	return e.testMode.id, e.testMode.params[0], e.testMode.params[1], e.testMode.params[2], true
}

// PIDAdjust live-adjusts the PID gains of every servo selected by mask (a
// bitmask over binding index, control socket "pid_adjust <kp> <ki> <kd>
// <servo-mask> [reset]"), optionally also clearing accumulated
// integral/derivative state.
func (e *Engine) PIDAdjust(kP, kI, kD float64, mask uint64, reset bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, b := range e.bindings {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if b.Servo == nil {
			continue
		}
		b.Servo.SetGains(kP, kI, kD)
		if reset {
			b.Servo.Reset()
		}
	}
}

// UpdateLeap propagates a leap-second announcement to every bound
// instance and servo (spec §4.8: "propagating leap-second notifications").
func (e *Engine) UpdateLeap(leap59, leap61 bool) {
	e.mu.Lock()
	e.leap59, e.leap61 = leap59, leap61
	bindings := append([]*Binding(nil), e.bindings...)
	e.mu.Unlock()

	for _, b := range bindings {
		e.instanceUpdateLeap(b.Instance, leap59, leap61)
		if b.Servo != nil {
			b.Servo.SetLeapSecondGuard(leap59 || leap61)
		}
	}
}

// DumpTables writes a human-readable snapshot of every binding's status
// to w (control socket "dumptables").
func (e *Engine) DumpTables(w io.Writer) error {
	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	elected := e.elected
	e.mu.Unlock()

	for i, b := range bindings {
		st, err := e.instanceStatus(b.Instance)
		mark := " "
		if i == elected {
			mark = "*"
		}
		if err != nil {
			if _, werr := fmt.Fprintf(w, "%s%-16s error=%v\n", mark, b.Name, err); werr != nil {
				return werr
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s%-16s state=%s offset=%s alarms=%#x priority=%d\n",
			mark, b.Name, st.State, st.OffsetFromMaster, uint32(st.AlarmBitmask), st.UserPriority); err != nil {
			return err
		}
	}
	return nil
}

// CollectStatistics gathers one InstanceStatistics sample per binding
// (control-socket-adjacent periodic statistics, spec §4.8). It never
// returns an error: a binding whose GetStatus fails is left out of the
// returned slice.
func (e *Engine) CollectStatistics() []InstanceStatistics {
	e.mu.Lock()
	bindings := append([]*Binding(nil), e.bindings...)
	elected := e.elected
	e.mu.Unlock()

	out := make([]InstanceStatistics, 0, len(bindings))
	for i, b := range bindings {
		st, err := e.instanceStatus(b.Instance)
		if err != nil {
			continue
		}
		sample := InstanceStatistics{
			Name:             b.Name,
			Elected:          i == elected,
			State:            st.State,
			OffsetFromMaster: st.OffsetFromMaster,
			AlarmBitmask:     st.AlarmBitmask,
		}
		if b.Servo != nil {
			sample.ClockSteps = b.Servo.Counters().ClockSteps
		}
		out = append(out, sample)
	}
	return out
}

// EmitStatistics collects the current statistics snapshot and, if
// StatisticsSink is set, hands it off (called from the engine thread's
// statistics-interval timer; see run.go).
func (e *Engine) EmitStatistics() {
	if e.StatisticsSink == nil {
		return
	}
	e.StatisticsSink(e.CollectStatistics())
}

// SaveState writes every binding's persistent state record to the
// configured state directory (spec §6's "Persistent state"); see
// state.go.
func (e *Engine) SaveState() error {
	return e.saveState(e.cfg.StateDir)
}

// Rescan re-queries the clock registry against table and disables clock
// control on the servo of any binding whose reference clock disappeared
// (spec §4.8: "orchestrating hotplug"); see hotplug.go. It does not
// rebuild or rebind servos: bindings and their servos stay as they are.
func (e *Engine) Rescan(table *linkstate.LinkTable) {
	e.rescan(table)
}

// SetLinkRing wires the engine to ring's reference-counted publications: it
// is this ring that a MsgLinkTableUpdated notification's table belongs to,
// and Release is what the engine's OnMessage handler (run.go) calls once
// it has finished the hotplug rescan (spec §4.3: "each consumer must
// release(version) exactly once").
func (e *Engine) SetLinkRing(ring *linkstate.Ring) {
	e.mu.Lock()
	e.linkRing = ring
	e.mu.Unlock()
}
