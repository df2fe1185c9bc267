package servo

// pidController is the one-PID-per-(master,slave)-pair controller of spec
// §4.5. Offset is in nanoseconds; output is a frequency correction in
// parts-per-billion.
type pidController struct {
	kP, kI, kD float64

	integral    float64
	lastOffset  float64
	hasLast     bool

	// integralLimit bounds the integral term to prevent windup during
	// sustained large offsets (e.g. while leap-second-guard suppresses
	// output and offset samples keep arriving).
	integralLimit float64
}

func newPIDController(kP, kI, kD, integralLimit float64) *pidController {
	return &pidController{kP: kP, kI: kI, kD: kD, integralLimit: integralLimit}
}

// step folds one filtered offset sample (nanoseconds) into the controller
// and returns the frequency correction (ppb) to apply. dtSeconds is the
// elapsed time since the previous step, used to scale the integral and
// derivative terms.
func (p *pidController) step(offsetNs float64, dtSeconds float64) float64 {
	if dtSeconds <= 0 {
		dtSeconds = 1
	}

	p.integral += offsetNs * dtSeconds
	if p.integralLimit > 0 {
		if p.integral > p.integralLimit {
			p.integral = p.integralLimit
		} else if p.integral < -p.integralLimit {
			p.integral = -p.integralLimit
		}
	}

	var derivative float64
	if p.hasLast {
		derivative = (offsetNs - p.lastOffset) / dtSeconds
	}
	p.lastOffset = offsetNs
	p.hasLast = true

	return p.kP*offsetNs + p.kI*p.integral + p.kD*derivative
}

// reset clears accumulated integral/derivative state, used after a clock
// step (the offset history from before the step is no longer meaningful)
// and is also what spec §8's "servo idempotence with zero offset" property
// implicitly assumes: stepping with a zero offset leaves the integral
// unchanged, which this implementation satisfies since integral +=
// 0*dt == 0.
func (p *pidController) reset() {
	p.integral = 0
	p.hasLast = false
	p.lastOffset = 0
}
