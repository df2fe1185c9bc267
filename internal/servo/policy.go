package servo

import "time"

// StepPolicy governs how the servo reacts once the unfiltered offset
// magnitude exceeds StepThreshold (spec §4.5).
type StepPolicy int

const (
	// StepPolicySlewOnly never steps the clock; large offsets are slewed
	// through the PID's frequency correction instead.
	StepPolicySlewOnly StepPolicy = iota
	// StepPolicySlewAndStep steps the clock whenever the threshold is
	// exceeded, at any point during operation.
	StepPolicySlewAndStep
	// StepPolicyStepOnceAtStartup permits exactly one step, on the first
	// correction after the servo starts; subsequent large offsets slew.
	StepPolicyStepOnceAtStartup
)

// DefaultStepThreshold is spec §4.5's default step threshold (0.9s).
const DefaultStepThreshold = 900 * time.Millisecond

// MinStepThreshold and MaxStepThreshold bound the configurable range spec
// §4.5 allows (0.1s-10s).
const (
	MinStepThreshold = 100 * time.Millisecond
	MaxStepThreshold = 10 * time.Second
)

// ClampStepThreshold clamps d into the spec's configurable range.
func ClampStepThreshold(d time.Duration) time.Duration {
	if d < MinStepThreshold {
		return MinStepThreshold
	}
	if d > MaxStepThreshold {
		return MaxStepThreshold
	}
	return d
}

// decideStep reports whether offset (as a signed duration) should cause a
// clock step rather than a slew, given policy and whether a startup step
// has already been consumed.
func decideStep(policy StepPolicy, offset time.Duration, threshold time.Duration, startupStepUsed bool) (step bool, consumesStartupStep bool) {
	mag := offset
	if mag < 0 {
		mag = -mag
	}
	if mag <= threshold {
		return false, false
	}
	switch policy {
	case StepPolicySlewOnly:
		return false, false
	case StepPolicyStepOnceAtStartup:
		if startupStepUsed {
			return false, false
		}
		return true, true
	default: // StepPolicySlewAndStep
		return true, false
	}
}
