package servo

// outlierFilter implements spec §4.5's outlier filter: "rolling window of
// configurable size; samples exceeding an adaptive threshold derived from
// window std-dev are discarded and counted."
type outlierFilter struct {
	win       *window
	threshold float64 // multiplier on std-dev, e.g. 3.0

	outliers           uint64
	outliersNumSamples uint64
}

func newOutlierFilter(size int, thresholdStdDevs float64) *outlierFilter {
	return &outlierFilter{win: newWindow(size), threshold: thresholdStdDevs}
}

// accept reports whether sample should be kept. Until the window has at
// least two samples there is no meaningful std-dev, so every early sample
// is accepted and simply recorded.
func (f *outlierFilter) accept(sample float64) bool {
	f.outliersNumSamples++

	if f.win.len() >= 2 {
		mean := f.win.mean()
		sd := f.win.stddev()
		dev := sample - mean
		if dev < 0 {
			dev = -dev
		}
		if dev > f.threshold*sd {
			f.outliers++
			return false
		}
	}

	f.win.push(sample)
	return true
}

func (f *outlierFilter) counters() (outliers, numSamples uint64) {
	return f.outliers, f.outliersNumSamples
}
