// Package pps implements the PPS (pulse-per-second) sync-module variant
// of spec.md §4.6: a pulse consumer bound to a specific interface's
// hardware clock, maintaining accuracy on the order of tens of
// nanoseconds.
package pps

import (
	"fmt"
	"io"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/clockreg"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/syncmodule"
)

// assumedAccuracyNs is the steady-state 1-sigma accuracy a PPS source
// bound directly to a PHC's pulse input achieves (spec §4.6: "tens of ns").
const assumedAccuracyNs = 20.0

// pulseSource abstracts the kernel PPS character-device read the module
// consumes, so tests can substitute a fake without /dev/ppsN.
type pulseSource interface {
	// NextPulse blocks until the next pulse edge is reported, returning
	// its assert timestamp and the sequence number the kernel assigned.
	NextPulse() (assert time.Time, sequence uint32, err error)
	Close() error
}

// Module is the PPS sync-module instance.
type Module struct {
	syncmodule.Base

	clock    *clockreg.Clock
	source   pulseSource
	priority uint8

	lastOffset time.Duration
	lastSeq    uint32
	lostPulses uint64
}

// New constructs a PPS module bound to clock, consuming pulses from
// source.
func New(clock *clockreg.Clock, source pulseSource, priority uint8) *Module {
	return &Module{clock: clock, source: source, priority: priority}
}

// ObservePulse folds one pulse-edge observation into the module's state.
// It is the PPS equivalent of ptp.Port's packet handlers: called from the
// module's own thread whenever the kernel reports a new pulse.
func (m *Module) ObservePulse(assert time.Time, sequence uint32) {
	if m.lastSeq != 0 && sequence != m.lastSeq+1 {
		m.lostPulses += uint64(sequence - m.lastSeq - 1)
	}
	m.lastSeq = sequence

	now, err := m.clock.Now()
	if err != nil {
		return
	}
	m.lastOffset = now.Sub(assert)
}

// GetStatus implements syncmodule.Instance.
func (m *Module) GetStatus() (syncmodule.SyncInstanceStatus, error) {
	var alarms syncmodule.AlarmBits
	if m.lostPulses > 0 {
		alarms |= syncmodule.AlarmNoSyncPkts
	}
	return syncmodule.SyncInstanceStatus{
		State:              syncmodule.StateSlave,
		AlarmBitmask:       alarms,
		ReferenceClock:     m.clock.Handle,
		OffsetFromMaster:   m.lastOffset,
		ConfiguredPriority: m.priority,
		UserPriority:       m.priority,
		LocalAccuracy:      assumedAccuracyNs,
		Grandmaster: syncmodule.GrandmasterDescriptor{
			ClockClass:    timeSourceClockClass,
			TimeSource:    syncmodule.TimeSourceOther,
			ClockAccuracy: 0x21, // within 100ns, per IEEE 1588 clockAccuracy table
			StepsRemoved:  0,
		},
	}, nil
}

const timeSourceClockClass = 13 // "application specific time source", IEEE 1588 table 5

// StepClock is not supported by the PPS module and always returns an
// error; PPS adjusts the clock only through the servo.
func (m *Module) StepClock(offset time.Duration) error {
	return fmt.Errorf("pps: step_clock not supported, PPS disciplines via the servo only")
}

// SaveState writes a freeform text record of the module's pulse counters.
func (m *Module) SaveState(w io.Writer) error {
	_, err := fmt.Fprintf(w, "pps reference=%s lost_pulses=%d offset=%s\n", m.clock.Handle, m.lostPulses, m.lastOffset)
	return err
}

// WriteTopology writes a one-line topology record.
func (m *Module) WriteTopology(w io.Writer) error {
	_, err := fmt.Fprintf(w, "pps -> %s\n", m.clock.Handle)
	return err
}

var _ syncmodule.Instance = (*Module)(nil)
