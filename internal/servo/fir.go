package servo

// firFilter implements spec §4.5's additional smoothing stage: a boxcar
// (unweighted moving average) FIR filter of configurable size. It is a
// simple, separate stage from meanPathDelayFilter's exponentially-weighted
// average: the two are independently configurable per spec §4.5's filter
// list.
type firFilter struct {
	win *window
}

func newFIRFilter(size int) *firFilter {
	return &firFilter{win: newWindow(size)}
}

// apply pushes sample into the filter and returns the smoothed output (the
// mean of the current window contents, sample included).
func (f *firFilter) apply(sample float64) float64 {
	f.win.push(sample)
	return f.win.mean()
}
