//go:build linux

package clockreg

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// fdToClockID implements the FD_TO_CLOCKID macro (clock_gettime(3)),
// grounded on other_examples' facebook-time phc-unix-linux.go FdToClockID.
func fdToClockID(fd int) int32 { return int32((^fd << 3) | 3) }

// ptpClockCaps mirrors struct ptp_clock_caps (linux/ptp_clock.h), trimmed
// to the fields the registry inspects.
type ptpClockCaps struct {
	MaxAdj           int32
	NAlarm           int32
	NExtTS           int32
	NPerOut          int32
	PPS              int32
	NPins            int32
	CrossTimestamping int32
	AdjustPhase      int32
	MaxPhaseAdj      int32
	_                [11]int32
}

// PTP_CLOCK_GETCAPS ioctl number (linux/ptp_clock.h); matches the value
// named in other_examples' facebook-time phc-unix-linux.go.
const ptpClockGetcaps = 0x80503d01

// linuxPHC opens a /dev/ptpN device and issues PHC ioctls plus
// clock_gettime/clock_settime/clock_adjtime against its derived clock id.
type linuxPHC struct {
	f        *os.File
	clockID  int32
}

// openPHC opens /dev/ptp<index> and probes its capabilities, grounded on
// other_examples' facebook-time phc-unix-linux.go (IoctlPtpClockGetcaps,
// FdToClockID).
func openPHC(index int32) (*linuxPHC, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/ptp%d", index), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("clockreg: open PHC %d: %w", index, err)
	}
	fd := int(f.Fd())

	var caps ptpClockCaps
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(ptpClockGetcaps), uintptr(unsafe.Pointer(&caps))); errno != 0 {
		f.Close()
		return nil, fmt.Errorf("clockreg: PTP_CLOCK_GETCAPS on PHC %d: %w", index, errno)
	}

	return &linuxPHC{f: f, clockID: fdToClockID(fd)}, nil
}

func (p *linuxPHC) now() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(p.clockID, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clockreg: clock_gettime: %w", err)
	}
	return time.Unix(ts.Sec, int64(ts.Nsec)), nil
}

// clockSettime wraps the CLOCK_SETTIME syscall directly: x/sys/unix does
// not expose a settable-arbitrary-clockid variant (only CLOCK_REALTIME via
// unix.Settimeofday), matching other_examples' facebook-time
// phc-unix-linux.go, which carries the same syscall wrapper for the same
// reason.
func clockSettime(clockID int32, ts *unix.Timespec) error {
	_, _, errno := unix.Syscall(unix.SYS_CLOCK_SETTIME, uintptr(clockID), uintptr(unsafe.Pointer(ts)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func (p *linuxPHC) setTime(t time.Time) error {
	ts := unix.NsecToTimespec(t.UnixNano())
	if err := clockSettime(p.clockID, &ts); err != nil {
		return fmt.Errorf("clockreg: clock_settime: %w", err)
	}
	return nil
}

func (p *linuxPHC) adjustTime(delta time.Duration) error {
	var tx unix.Timex
	tx.Modes = unix.ADJ_SETOFFSET | unix.ADJ_NANO
	ns := delta.Nanoseconds()
	sec := ns / int64(time.Second)
	nsRem := ns % int64(time.Second)
	if nsRem < 0 {
		sec--
		nsRem += int64(time.Second)
	}
	tx.Time.Sec = sec
	tx.Time.Usec = nsRem
	if _, err := unix.ClockAdjtime(p.clockID, &tx); err != nil {
		return fmt.Errorf("clockreg: clock_adjtime(ADJ_SETOFFSET): %w", err)
	}
	return nil
}

func (p *linuxPHC) adjustFrequency(ppb float64) error {
	var tx unix.Timex
	tx.Modes = unix.ADJ_FREQUENCY
	// Timex.Freq is in units of 2^-16 ppm; 1 ppb = 1e-3 ppm.
	tx.Freq = int64(ppb * (65536.0 / 1000.0))
	if _, err := unix.ClockAdjtime(p.clockID, &tx); err != nil {
		return fmt.Errorf("clockreg: clock_adjtime(ADJ_FREQUENCY): %w", err)
	}
	return nil
}

func (p *linuxPHC) close() error { return p.f.Close() }
