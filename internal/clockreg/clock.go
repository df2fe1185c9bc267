package clockreg

import "time"

// Handle is a clock's stable hardware identity (spec §4.4: "a clock is
// uniquely keyed by its stable hardware id"). For PHC-backed clocks this is
// derived from the kernel PHC index ("phc:<N>" for /dev/ptpN), so it
// survives ifindex renumbering across a rescan; for the system clock it is
// the fixed SystemClockHandle.
type Handle string

// SystemClockHandle is the well-known handle of the host's system clock
// (CLOCK_REALTIME), always present in a Registry.
const SystemClockHandle Handle = "system"

// Source identifies who is asking for a time change, for diagnostics and
// for the step-policy decision the Servo makes before calling SetTime.
type Source int

const (
	SourceUnknown Source = iota
	SourcePTP
	SourcePPS
	SourceNTPHelper
	SourceFreerun
)

// Clock is one candidate clock discovered by the registry: either the
// system clock, or a PHC/private-ioctl hardware clock reachable via a
// network interface (spec §4.4).
type Clock struct {
	Handle Handle
	Name   string

	// PHCIndex is the kernel PHC index (/dev/ptpN), or -1 if this clock has
	// no PHC (system clock, or an interface with only a private ioctl).
	PHCIndex int32

	// LinkIndex is the ifindex this clock was discovered through, or 0 for
	// the system clock.
	LinkIndex int32

	device phcDevice
}

// IsSystemClock reports whether c is the host system clock.
func (c *Clock) IsSystemClock() bool { return c.Handle == SystemClockHandle }

// HasPHC reports whether c has a real PHC device backing it.
func (c *Clock) HasPHC() bool { return c.PHCIndex >= 0 && c.device != nil }

// Now returns the clock's current time. For the system clock this is
// time.Now(); for a PHC clock it is read via clock_gettime(FD_TO_CLOCKID(fd)).
func (c *Clock) Now() (time.Time, error) {
	if c.IsSystemClock() {
		return time.Now(), nil
	}
	if !c.HasPHC() {
		return time.Time{}, ErrNoPHC
	}
	return c.device.now()
}
