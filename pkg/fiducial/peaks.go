// Package fiducial locates per-beat reference points in a filtered pulse
// waveform: systolic peaks and the rising foot that precedes each peak.
package fiducial

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DetectPeaks returns the indices of strict local maxima: values[i] must be
// greater than every other value in [i-order, i+order]. Only indices with
// a full window on both sides are considered, so the result is empty when
// order <= 0 or len(values) <= 2*order.
func DetectPeaks(values []float64, order int) []int {
	n := len(values)
	if order <= 0 || n <= 2*order {
		return nil
	}

	var peaks []int
	for i := order; i < n-order; i++ {
		v := values[i]
		isMax := true
		for j := i - order; j <= i+order; j++ {
			if j != i && values[j] >= v {
				isMax = false
				break
			}
		}
		if isMax {
			peaks = append(peaks, i)
			// Nothing inside this window can be a peak as well.
			i += order
		}
	}
	return peaks
}

// DetectRisingFoot locates the start of the upstroke leading to peak.
//
// The baseline is the lowest value in values[0..peak]. The last index
// between the baseline and the peak that is still below
// baseline + (peak-baseline)*percent/100 anchors a line through the peak;
// the index whose timestamp is nearest to where that line crosses the
// baseline level is returned. It returns -1 if peak is out of range.
func DetectRisingFoot(times, values []float64, peak int, percent float64) int {
	if peak < 0 || peak >= len(values) || peak >= len(times) {
		return -1
	}

	baseIdx := floats.MinIdx(values[:peak+1])
	baseVal := values[baseIdx]
	peakVal := values[peak]
	target := baseVal + (peakVal-baseVal)*percent/100

	anchor := baseIdx
	for i := baseIdx; i < peak; i++ {
		if values[i] < target {
			anchor = i
		}
	}

	x0, y0 := times[anchor], values[anchor]
	x1, y1 := times[peak], values[peak]
	if x1 == x0 {
		return baseIdx
	}
	slope := (y1 - y0) / (x1 - x0)
	if slope == 0 {
		return anchor
	}
	cross := (baseVal-y0)/slope + x0

	return nearest(times, cross)
}

// nearest returns the first index whose time is closest to t.
func nearest(times []float64, t float64) int {
	idx := 0
	best := math.Inf(1)
	for i, ts := range times {
		if d := math.Abs(ts - t); d < best {
			best = d
			idx = i
		}
	}
	return idx
}
