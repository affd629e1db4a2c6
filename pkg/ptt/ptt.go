// Package ptt computes pulse transit time between two measurement sites and
// the pulse wave velocity it implies.
package ptt

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Plausibility bounds for a single transit time, seconds (exclusive).
const (
	MinTransit = 0.0
	MaxTransit = 0.15
)

// DefaultMaxPairs is the trailing pair window used by the acquisition app.
const DefaultMaxPairs = 10

// Stats summarises the accepted transit times.
type Stats struct {
	PTTMeanMs float64 `json:"ptt_mean_ms"`
	PTTStdMs  float64 `json:"ptt_std_ms"`
	PWVMean   float64 `json:"pwv_mean_m_s"`
	PWVStd    float64 `json:"pwv_std_m_s"`
}

// Result is the outcome of one transit-time computation. Stats is nil when
// no pair survived the plausibility gate, in which case Pairs is zero.
type Result struct {
	Stats *Stats    `json:"stats"`
	Pairs int       `json:"n_pairs"`
	PTT   []float64 `json:"ptt_s,omitempty"` // accepted transit times, seconds
}

// Valid reports whether statistics are available.
func (r Result) Valid() bool {
	return r.Stats != nil
}

// Compute pairs the most recent fiducials of both channels position by
// position and derives PTT and PWV statistics.
//
// Fiducial indices outside times are ignored. At most maxPairs trailing
// fiducials of each channel are paired (maxPairs <= 0 means all of them).
// Only absolute differences strictly between MinTransit and MaxTransit are
// kept. Standard deviations are population deviations.
func Compute(times []float64, fid1, fid2 []int, vesselLengthCm float64, maxPairs int) Result {
	t1 := timesAt(times, fid1)
	t2 := timesAt(times, fid2)

	n := min(len(t1), len(t2))
	if maxPairs > 0 {
		n = min(n, maxPairs)
	}
	if n == 0 {
		return Result{}
	}
	t1 = t1[len(t1)-n:]
	t2 = t2[len(t2)-n:]

	var transit []float64
	for i := range n {
		d := math.Abs(t2[i] - t1[i])
		if d > MinTransit && d < MaxTransit {
			transit = append(transit, d)
		}
	}
	if len(transit) == 0 {
		return Result{}
	}

	length := vesselLengthCm / 100
	pwv := make([]float64, len(transit))
	for i, d := range transit {
		pwv[i] = length / d
	}

	pttMean, pttStd := stat.PopMeanStdDev(transit, nil)
	pwvMean, pwvStd := stat.PopMeanStdDev(pwv, nil)

	return Result{
		Stats: &Stats{
			PTTMeanMs: pttMean * 1000,
			PTTStdMs:  pttStd * 1000,
			PWVMean:   pwvMean,
			PWVStd:    pwvStd,
		},
		Pairs: len(transit),
		PTT:   transit,
	}
}

func timesAt(times []float64, idx []int) []float64 {
	out := make([]float64, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(times) {
			out = append(out, times[i])
		}
	}
	return out
}
