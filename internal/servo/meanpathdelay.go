package servo

// meanPathDelayFilter implements spec §4.5's mean-path-delay filter: "a
// moving weighted average with configurable size and ageing factor." Newer
// samples are weighted more heavily than older ones by repeatedly decaying
// the running average toward each new value, bounded to the configured
// window size for the purpose of reporting how many samples have been
// folded in (size governs warm-up, not storage: the filter itself only
// needs O(1) state).
type meanPathDelayFilter struct {
	size   int
	ageing float64 // 0 < ageing <= 1; larger = more weight on new samples

	value    float64
	count    int
	warm     bool
}

func newMeanPathDelayFilter(size int, ageing float64) *meanPathDelayFilter {
	if size <= 0 {
		panic("servo: mean path delay filter size must be positive")
	}
	if ageing <= 0 || ageing > 1 {
		panic("servo: mean path delay filter ageing must be in (0,1]")
	}
	return &meanPathDelayFilter{size: size, ageing: ageing}
}

// update folds delay into the running weighted average and returns the
// updated value.
func (f *meanPathDelayFilter) update(delay float64) float64 {
	if !f.warm {
		f.value = delay
		f.warm = true
	} else {
		f.value += f.ageing * (delay - f.value)
	}
	if f.count < f.size {
		f.count++
	}
	return f.value
}

// current returns the filter's current estimate without updating it.
func (f *meanPathDelayFilter) current() float64 { return f.value }

// warmedUp reports whether at least `size` samples have been folded in.
func (f *meanPathDelayFilter) warmedUp() bool { return f.count >= f.size }
