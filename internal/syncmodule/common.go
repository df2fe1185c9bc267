package syncmodule

import "sync"

// Base implements the control-flag and leap bookkeeping shared by every
// variant, so ptp.Port/pps.Module/freerun.Module/ntphelper.Client only
// need to embed it and fill in the parts specific to their own status
// surface. This mirrors internal/clockreg.Registry and internal/servo.Servo,
// which also guard their state with a plain sync.Mutex rather than routing
// every call through a message-passing round trip to the owning thread: an
// Instance is exclusively owned by one sync-module thread per spec §5's
// ownership summary, but diagnostic and engine-tick callers (GetStatus in
// particular, spec §4.8 step 1: "send_wait") still need a safe concurrent
// view, which a mutex gives for free.
type Base struct {
	mu sync.Mutex

	flags       ControlFlags
	leap59      bool
	leap61      bool
	grandmaster GrandmasterDescriptor
}

// Control applies flags to the bits selected by mask.
func (b *Base) Control(mask, flags ControlFlags) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flags = (b.flags &^ mask) | (flags & mask)
}

// Flags returns the current control flags.
func (b *Base) Flags() ControlFlags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

// HasFlag reports whether every bit in f is currently set.
func (b *Base) HasFlag(f ControlFlags) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags&f == f
}

// UpdateGrandmaster records grandmaster information distributed by the
// engine (spec §4.8 step 4) for the instance's own status reporting.
func (b *Base) UpdateGrandmaster(info GrandmasterDescriptor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.grandmaster = info
}

// Grandmaster returns the last grandmaster info the engine distributed.
func (b *Base) Grandmaster() GrandmasterDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grandmaster
}

// UpdateLeap records a pending leap-second announcement.
func (b *Base) UpdateLeap(leap59, leap61 bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leap59 = leap59
	b.leap61 = leap61
}

// Leap returns the currently pending leap-second flags.
func (b *Base) Leap() (leap59, leap61 bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.leap59, b.leap61
}
