// Package trace prepares two-channel waveforms for live display: decimation
// to a bounded point count, float32 conversion and y-axis auto-scaling.
package trace

import (
	"github.com/chewxy/math32"
)

// Trace is a display-ready snapshot of both channels.
type Trace struct {
	Start float64   // absolute time of the first point, seconds
	T     []float32 // seconds since Start
	Ch1   []float32
	Ch2   []float32

	XMax       float32 // x range is [0, XMax]
	YMin, YMax float32
}

// Len returns the number of points.
func (t *Trace) Len() int {
	return len(t.T)
}

// Build fills dst (allocating one if nil) from aligned time and channel
// slices. At most maxPoints points are kept. The x range covers at least
// minSpan seconds and the y range is padded by 10% on both sides.
func Build(dst *Trace, times, ch1, ch2 []float64, maxPoints int, minSpan float32) *Trace {
	if dst == nil {
		dst = &Trace{}
	}
	n := min(len(times), len(ch1), len(ch2))

	var scratch []float64
	scratch = Downsample(scratch, times[:n], maxPoints)
	dst.Start = 0
	if n > 0 {
		dst.Start = times[0]
	}
	dst.T = toFloat32(dst.T, scratch, dst.Start)

	scratch = Downsample(scratch, ch1[:n], maxPoints)
	dst.Ch1 = toFloat32(dst.Ch1, scratch, 0)
	scratch = Downsample(scratch, ch2[:n], maxPoints)
	dst.Ch2 = toFloat32(dst.Ch2, scratch, 0)

	dst.autoScale(minSpan)
	return dst
}

func toFloat32(dst []float32, src []float64, offset float64) []float32 {
	if cap(dst) < len(src) {
		dst = make([]float32, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float32(v - offset)
	}
	return dst
}

// autoScale calculates the axis ranges from the current data.
func (t *Trace) autoScale(minSpan float32) {
	t.XMax = minSpan
	if len(t.T) == 0 {
		t.YMin, t.YMax = 0, 1
		return
	}
	t.XMax = math32.Max(t.T[len(t.T)-1], minSpan)

	lo, hi := math32.Inf(1), math32.Inf(-1)
	for _, ch := range [][]float32{t.Ch1, t.Ch2} {
		for _, v := range ch {
			lo = math32.Min(lo, v)
			hi = math32.Max(hi, v)
		}
	}

	span := hi - lo
	if span == 0 {
		span = 1
	}
	margin := span * 0.1
	t.YMin = lo - margin
	t.YMax = hi + margin
}

// Project maps a data point into a w by h box with the origin at the top
// left, as a renderer would draw it.
func (t *Trace) Project(x, y, w, h float32) (px, py float32) {
	if t.XMax > 0 {
		px = x / t.XMax * w
	}
	if span := t.YMax - t.YMin; span > 0 {
		py = h - (y-t.YMin)/span*h
	}
	return px, py
}
