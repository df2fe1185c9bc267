package servo

import "time"

// Config parameterizes a Servo's filters, PID gains, and step policy. All
// fields are nil-safe via WithDefaults, matching the teacher's functional-
// default config pattern (internal/config.EngineConfig).
type Config struct {
	// PID gains.
	ProportionalGain *float64
	IntegralGain     *float64
	DerivativeGain   *float64
	IntegralLimit    *float64

	// Mean-path-delay filter.
	MeanPathDelaySize   *int
	MeanPathDelayAgeing *float64

	// Outlier filter.
	OutlierWindowSize  *int
	OutlierThresholdSD *float64

	// FIR smoothing filter.
	FIRSize *int

	// Step/slew policy.
	StepThreshold *time.Duration
	StepPolicy    *StepPolicy

	// MTIE accumulator depth.
	MTIELevels *int
}

func floatPtr(v float64) *float64    { return &v }
func intPtr(v int) *int              { return &v }
func durationPtr(v time.Duration) *time.Duration { return &v }
func stepPolicyPtr(v StepPolicy) *StepPolicy      { return &v }

// Default returns a Config with spec-documented defaults: step threshold
// 0.9s (spec §4.5), slew-and-step policy, modest PID gains, and window
// sizes chosen for reasonable warm-up latency.
func Default() *Config {
	return &Config{
		ProportionalGain:    floatPtr(0.7),
		IntegralGain:        floatPtr(0.3),
		DerivativeGain:      floatPtr(0.0),
		IntegralLimit:       floatPtr(1e9), // 1 second worth of ppb*s headroom

		MeanPathDelaySize:   intPtr(8),
		MeanPathDelayAgeing: floatPtr(0.25),

		OutlierWindowSize:  intPtr(16),
		OutlierThresholdSD: floatPtr(3.0),

		FIRSize: intPtr(4),

		StepThreshold: durationPtr(DefaultStepThreshold),
		StepPolicy:    stepPolicyPtr(StepPolicySlewAndStep),

		MTIELevels: intPtr(12), // covers 1..2048 samples
	}
}

// WithDefaults returns a copy of c with every nil field filled from
// Default(), so callers may supply a partial Config.
func (c *Config) WithDefaults() *Config {
	d := Default()
	if c == nil {
		return d
	}
	out := *c
	if out.ProportionalGain == nil {
		out.ProportionalGain = d.ProportionalGain
	}
	if out.IntegralGain == nil {
		out.IntegralGain = d.IntegralGain
	}
	if out.DerivativeGain == nil {
		out.DerivativeGain = d.DerivativeGain
	}
	if out.IntegralLimit == nil {
		out.IntegralLimit = d.IntegralLimit
	}
	if out.MeanPathDelaySize == nil {
		out.MeanPathDelaySize = d.MeanPathDelaySize
	}
	if out.MeanPathDelayAgeing == nil {
		out.MeanPathDelayAgeing = d.MeanPathDelayAgeing
	}
	if out.OutlierWindowSize == nil {
		out.OutlierWindowSize = d.OutlierWindowSize
	}
	if out.OutlierThresholdSD == nil {
		out.OutlierThresholdSD = d.OutlierThresholdSD
	}
	if out.FIRSize == nil {
		out.FIRSize = d.FIRSize
	}
	if out.StepThreshold == nil {
		out.StepThreshold = d.StepThreshold
	}
	if out.StepPolicy == nil {
		out.StepPolicy = d.StepPolicy
	}
	if out.MTIELevels == nil {
		out.MTIELevels = d.MTIELevels
	}
	return &out
}
