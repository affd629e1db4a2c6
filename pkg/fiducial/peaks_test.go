package fiducial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// pulseTrain sums Gaussian pulses of width sigma samples centred on the
// given indices. Pulses are built from integer offsets so a shifted train
// is an exact shift of the samples.
func pulseTrain(n int, centres []int, sigma float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		for _, c := range centres {
			d := float64(i - c)
			out[i] += math.Exp(-d * d / (2 * sigma * sigma))
		}
	}
	return out
}

func timeAxis(n int, fs float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / fs
	}
	return t
}

func TestDetectPeaks(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		order  int
		want   []int
	}{
		{"two peaks", []float64{0, 3, 0, 2, 0}, 1, []int{1, 3}},
		// Each 1 is strictly above both neighbours, so order 1 keeps it
		// beside the 3. Reporting the 3 alone needs order 2.
		{"minor bumps are maxima at order 1", []float64{0, 1, 0, 1, 3, 1, 0, 1, 0}, 1, []int{1, 4, 7}},
		{"only the major peak at order 2", []float64{0, 1, 0, 1, 3, 1, 0, 1, 0}, 2, []int{4}},
		{"tie disqualifies", []float64{0, 1, 1, 0}, 1, nil},
		{"plateau", []float64{0, 2, 2, 2, 0}, 1, nil},
		{"edge maximum ignored", []float64{5, 0, 0, 0, 0}, 1, nil},
		{"wider order", []float64{0, 1, 0, 2, 0, 1, 0}, 2, []int{3}},
		{"order zero", []float64{0, 1, 0}, 0, nil},
		{"too short", []float64{0, 1, 0, 1}, 2, nil},
		{"empty", nil, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPeaks(tt.values, tt.order))
		})
	}
}

func TestDetectPeaksPulseTrain(t *testing.T) {
	centres := []int{500, 1500, 2500, 3500, 4500}
	values := pulseTrain(5000, centres, 50)

	assert.Equal(t, centres, DetectPeaks(values, 5))
	assert.Equal(t, centres, DetectPeaks(values, 200))
}

func TestDetectRisingFoot(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5, 6}
	values := []float64{3, 0, 0, 0, 2, 6, 9}

	tests := []struct {
		name    string
		percent float64
		want    int
	}{
		// target 0: nothing below, anchor stays at the baseline index.
		{"zero percent", 0, 1},
		// target 1.8: anchor 3, line (3,0)-(6,9) crosses 0 at t=3.
		{"twenty percent", 20, 3},
		// target 4.5: anchor 4, line (4,2)-(6,9) crosses 0 at t~3.43.
		{"fifty percent", 50, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRisingFoot(times, values, 6, tt.percent))
		})
	}
}

func TestDetectRisingFootDegenerate(t *testing.T) {
	// Peak is the first sample: baseline and peak share a timestamp.
	assert.Equal(t, 0, DetectRisingFoot([]float64{0, 1, 2}, []float64{5, 1, 0}, 0, 10))

	// Flat input: zero slope keeps the scanned index.
	assert.Equal(t, 0, DetectRisingFoot([]float64{0, 1, 2}, []float64{2, 2, 2}, 2, 10))

	// Duplicate timestamps between anchor and peak.
	assert.Equal(t, 1, DetectRisingFoot([]float64{0, 1, 1}, []float64{4, 0, 3}, 2, 50))

	assert.Equal(t, -1, DetectRisingFoot([]float64{0, 1}, []float64{0, 1}, 2, 10))
	assert.Equal(t, -1, DetectRisingFoot([]float64{0, 1}, []float64{0, 1}, -1, 10))
}

func TestDetectRisingFootCrossBeforeStart(t *testing.T) {
	// A steep anchor far from the baseline can project before t=0.
	times := []float64{0, 1, 2, 3}
	values := []float64{0, 0.5, 0.9, 1}
	assert.Equal(t, 0, DetectRisingFoot(times, values, 3, 95))
}
