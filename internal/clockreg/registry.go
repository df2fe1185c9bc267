// Package clockreg implements the C4 clock registry of spec.md §4.4: it
// enumerates candidate clocks from the current link table, probing each
// interface for a PHC or private timestamping ioctl, and exposes the
// read/step/adjust primitives the servo and sync-modules drive.
package clockreg

import (
	"fmt"
	"time"

	"github.com/Xilinx-CNS/sfptpd-sub004/internal/linkstate"
	"github.com/Xilinx-CNS/sfptpd-sub004/internal/logging"
)

// Registry is the process-wide clock registry, guarded by a single
// HardwareStateLock shared across every mutation and consistency-sensitive
// read (spec §4.4).
type Registry struct {
	lock   HardwareStateLock
	logger logging.Logger

	clocks map[Handle]*Clock
}

// New constructs a Registry containing only the system clock. Call Rescan
// with a link table to discover hardware clocks.
func New(logger logging.Logger) *Registry {
	r := &Registry{
		logger: logging.OrDefault(logger),
		clocks: make(map[Handle]*Clock),
	}
	r.clocks[SystemClockHandle] = &Clock{Handle: SystemClockHandle, Name: "system", PHCIndex: -1, LinkIndex: 0}
	return r
}

// GetSystemClock returns the always-present system clock entry.
func (r *Registry) GetSystemClock() *Clock {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()
	return r.clocks[SystemClockHandle]
}

// FindByHandle looks up a clock by its stable handle.
func (r *Registry) FindByHandle(h Handle) (*Clock, error) {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()
	c, ok := r.clocks[h]
	if !ok {
		return nil, ErrClockNotFound
	}
	return c, nil
}

// Rescan walks table and adds/updates/removes Clock entries to match the
// interfaces that currently report a PHC index (spec §4.4: "for each
// interface, probe for PHC and/or a private timestamping ioctl"). It is
// the registry's only writer of the clocks map besides New, and always
// takes the hardware-state lock itself (top-level entry point, never
// called re-entrantly).
func (r *Registry) Rescan(table *linkstate.LinkTable, open func(phcIndex int32) (phcDevice, error)) {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()

	seen := map[Handle]bool{SystemClockHandle: true}

	for i := range table.Rows {
		row := &table.Rows[i]
		if row.PHCIndex < 0 {
			continue
		}
		handle := phcHandle(row.PHCIndex)
		seen[handle] = true

		if existing, ok := r.clocks[handle]; ok {
			existing.LinkIndex = row.Index
			continue
		}

		dev, err := open(row.PHCIndex)
		if err != nil {
			r.logger.Log(logging.LevelWarning, "failed to open PHC device",
				logging.F("phc_index", row.PHCIndex), logging.F("interface", row.Name), logging.F("error", err))
			continue
		}
		r.clocks[handle] = &Clock{
			Handle:    handle,
			Name:      fmt.Sprintf("phc%d(%s)", row.PHCIndex, row.Name),
			PHCIndex:  row.PHCIndex,
			LinkIndex: row.Index,
			device:    dev,
		}
	}

	for handle, c := range r.clocks {
		if !seen[handle] {
			if c.device != nil {
				c.device.close()
			}
			delete(r.clocks, handle)
		}
	}
}

func phcHandle(phcIndex int32) Handle {
	return Handle(fmt.Sprintf("phc:%d", phcIndex))
}

// SetTime sets clock's time outright, recording which source requested it
// (spec §4.4: set_time(clock, source, offset, step_only?)). stepOnly is
// accepted for signature parity with the spec but is not itself a
// constraint SetTime enforces — step-vs-slew policy lives in the servo
// (spec §4.5); by the time SetTime is called the decision has been made.
func (r *Registry) SetTime(c *Clock, source Source, t time.Time, stepOnly bool) error {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()

	if c.IsSystemClock() {
		return fmt.Errorf("clockreg: SetTime on system clock requires host privilege, not implemented")
	}
	if !c.HasPHC() {
		return ErrNoPHC
	}
	if err := c.device.setTime(t); err != nil {
		return err
	}
	r.logger.Log(logging.LevelNotice, "clock stepped",
		logging.F("clock", string(c.Handle)), logging.F("source", int(source)))
	return nil
}

// AdjustTime applies a bounded time offset to clock (spec §4.4:
// adjust_time(clock, offset)).
func (r *Registry) AdjustTime(c *Clock, delta time.Duration) error {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()

	if !c.HasPHC() {
		return ErrNoPHC
	}
	return c.device.adjustTime(delta)
}

// AdjustFrequency applies a frequency correction in parts-per-billion to
// clock (spec §4.4: adjust_frequency(clock, ppb)).
func (r *Registry) AdjustFrequency(c *Clock, ppb float64) error {
	tok := &LockToken{}
	defer r.lock.Acquire(tok)()

	if !c.HasPHC() {
		return ErrNoPHC
	}
	return c.device.adjustFrequency(ppb)
}
