package clockreg

import "errors"

var (
	// ErrClockNotFound is returned by FindByHandle for an unknown handle.
	ErrClockNotFound = errors.New("clockreg: clock not found")
	// ErrNoPHC is returned when a clock has no hardware clock backing and
	// an operation requires one (e.g. AdjustFrequency on a pure software
	// clock that only supports stepping).
	ErrNoPHC = errors.New("clockreg: clock has no PHC device")
)
