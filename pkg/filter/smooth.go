package filter

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Smooth returns a centred moving average of values. Near the edges only
// the in-range neighbours are averaged. A window below 2 returns a copy.
// Even windows behave like the next odd size.
func Smooth(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}

	half := window / 2
	// Running sum over [lo, hi).
	var sum float64
	lo, hi := 0, 0
	for i := range values {
		for hi < len(values) && hi <= i+half {
			sum += values[hi]
			hi++
		}
		for lo < i-half {
			sum -= values[lo]
			lo++
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}

// RemoveDC returns values with their mean subtracted.
func RemoveDC(values []float64) []float64 {
	out := append([]float64(nil), values...)
	if len(out) == 0 {
		return out
	}
	floats.AddConst(-stat.Mean(out, nil), out)
	return out
}
