package forecast

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// Resample aligns series on n points. An empty series yields zeros, an
// integer ratio repeats each value and anything else is linearly
// interpolated with both ends pinned.
func Resample(series []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	switch {
	case len(series) == 0:
		return out
	case len(series) == n:
		copy(out, series)
		return out
	case n == 1:
		out[0] = series[0]
		return out
	case n%len(series) == 0:
		factor := n / len(series)
		for i := range out {
			out[i] = series[i/factor]
		}
		return out
	}

	xOld := floats.Span(make([]float64, len(series)), 0, 1)
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xOld, series); err != nil {
		// Fit only fails on fewer than two points, which the repeat branch covers.
		for i := range out {
			out[i] = series[0]
		}
		return out
	}
	xNew := floats.Span(make([]float64, n), 0, 1)
	for i, x := range xNew {
		out[i] = pl.Predict(x)
	}
	return out
}
