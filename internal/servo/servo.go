// Package servo implements the C5 PID clock-discipline servo of spec.md
// §4.5: one controller per elected (master, slave) pair, with mean-path-
// delay, outlier, and FIR filter stages feeding a PID controller whose
// output is either a clock step or a frequency slew, subject to
// externally-set control flags.
package servo

import (
	"sync"
	"time"
)

// Action is what the servo decided to do with one tick's measurement.
type Action int

const (
	// ActionNone means the measurement was discarded (outlier) or
	// suppressed (leap-second guard, disciplining disabled).
	ActionNone Action = iota
	// ActionSlew means FrequencyPPB should be applied via
	// clockreg.Registry.AdjustFrequency.
	ActionSlew
	// ActionStep means StepOffset should be applied via
	// clockreg.Registry.AdjustTime (or SetTime, for the first step).
	ActionStep
)

// Correction is the outcome of one Servo.Tick call.
type Correction struct {
	Action       Action
	FrequencyPPB float64
	StepOffset   time.Duration
}

// Counters mirrors spec §4.5's required counters.
type Counters struct {
	ClockSteps         uint64
	Outliers           uint64
	OutliersNumSamples uint64
}

// Servo is one PID clock-discipline loop for a single (master, slave)
// clock pair (spec §4.5). It is safe for concurrent use; in practice all
// calls come from the owning sync-module's single reactor goroutine, but
// the mutex costs nothing on that path and removes a sharp edge for
// diagnostic readers calling Counters/Flags concurrently.
type Servo struct {
	mu sync.Mutex

	cfg *Config

	pid       *pidController
	mpd       *meanPathDelayFilter
	outlier   *outlierFilter
	fir       *firFilter
	mtie      *MTIEAccumulator
	sampleIdx int

	disciplining   bool
	leapGuard      bool
	clockControl   bool
	startupStepUsed bool

	lastTick time.Time

	counters Counters
}

// New constructs a Servo from cfg (nil-safe: missing fields use Default()).
func New(cfg *Config) *Servo {
	cfg = cfg.WithDefaults()
	return &Servo{
		cfg:          cfg,
		pid:          newPIDController(*cfg.ProportionalGain, *cfg.IntegralGain, *cfg.DerivativeGain, *cfg.IntegralLimit),
		mpd:          newMeanPathDelayFilter(*cfg.MeanPathDelaySize, *cfg.MeanPathDelayAgeing),
		outlier:      newOutlierFilter(*cfg.OutlierWindowSize, *cfg.OutlierThresholdSD),
		fir:          newFIRFilter(*cfg.FIRSize),
		mtie:         NewMTIEAccumulator(*cfg.MTIELevels),
		disciplining: true,
		clockControl: true,
	}
}

// SetDiscipliningEnabled toggles whether Tick produces any correction at
// all (spec §4.5 control flag: disciplining-enabled).
func (s *Servo) SetDiscipliningEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disciplining = enabled
}

// SetLeapSecondGuard toggles the leap-second guard. While held, Tick
// suppresses every adjustment regardless of magnitude (spec §4.5: "while
// leap-second-guard holds, all adjustments are suppressed"). Clearing it
// resumes discipline from the next measurement (spec §8 scenario 6);
// accumulated PID state from before the guard is not replayed.
func (s *Servo) SetLeapSecondGuard(held bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leapGuard = held
}

// SetClockControlEnabled toggles whether this servo's elected instance is
// permitted to actually drive the clock (spec §4.6's CLOCK_CONTROL_ENABLED
// status bit, set by the selector on the winning instance only). When
// false, Tick still runs the filters and PID (so state stays warm) but
// always returns ActionNone.
func (s *Servo) SetClockControlEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockControl = enabled
}

// SetGains live-adjusts the PID gains (control socket "pid_adjust"),
// leaving accumulated integral/derivative state untouched unless the
// caller also calls Reset.
func (s *Servo) SetGains(kP, kI, kD float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid.kP, s.pid.kI, s.pid.kD = kP, kI, kD
}

// Reset clears the PID's accumulated integral/derivative state (control
// socket "pid_adjust ... reset"), without otherwise disturbing the
// servo's filters or counters.
func (s *Servo) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pid.reset()
}

// Counters returns a snapshot of the servo's counters.
func (s *Servo) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// MTIE returns the current MTIE accumulator, for statistics reporting.
func (s *Servo) MTIE() *MTIEAccumulator {
	return s.mtie
}

// Tick folds one measurement into the servo and returns the resulting
// correction. offset is the measured offset-from-master (signed
// nanoseconds, slave minus master); pathDelay is the measured mean path
// delay (nanoseconds); now is the measurement timestamp (spec §4.5:
// "Inputs per tick: measured offset-from-master, measurement timestamp").
func (s *Servo) Tick(offset time.Duration, pathDelay time.Duration, now time.Time) Correction {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mpd.update(float64(pathDelay))
	s.mtie.Observe(s.sampleIdx, float64(offset))
	s.sampleIdx++

	if !s.disciplining || s.leapGuard {
		return Correction{Action: ActionNone}
	}

	if !s.outlier.accept(float64(offset)) {
		s.counters.Outliers, s.counters.OutliersNumSamples = s.outlier.counters()
		return Correction{Action: ActionNone}
	}
	s.counters.Outliers, s.counters.OutliersNumSamples = s.outlier.counters()

	filtered := s.fir.apply(float64(offset))

	threshold := *s.cfg.StepThreshold
	policy := *s.cfg.StepPolicy
	if step, consumesStartup := decideStep(policy, offset, threshold, s.startupStepUsed); step {
		if consumesStartup {
			s.startupStepUsed = true
		}
		s.pid.reset()
		s.lastTick = now
		if !s.clockControl {
			return Correction{Action: ActionNone}
		}
		s.counters.ClockSteps++
		return Correction{Action: ActionStep, StepOffset: offset}
	}

	dt := 1.0
	if !s.lastTick.IsZero() {
		dt = now.Sub(s.lastTick).Seconds()
	}
	s.lastTick = now

	ppb := s.pid.step(filtered, dt)
	if !s.clockControl {
		return Correction{Action: ActionNone}
	}
	return Correction{Action: ActionSlew, FrequencyPPB: ppb}
}
