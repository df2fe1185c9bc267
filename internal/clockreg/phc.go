package clockreg

import "time"

// phcDevice abstracts the handful of PHC operations the registry needs,
// letting tests substitute a fake without opening /dev/ptpN (spec §4.4's
// set_time/adjust_time/adjust_frequency, plus a read path for Now).
type phcDevice interface {
	now() (time.Time, error)
	setTime(t time.Time) error
	adjustTime(delta time.Duration) error
	adjustFrequency(ppb float64) error
	close() error
}
