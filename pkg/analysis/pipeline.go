// Package analysis runs the filter, fiducial and transit-time stages over
// buffered windows of two-channel samples.
package analysis

import (
	"fmt"

	"github.com/kintad/PWV3/pkg/config"
	"github.com/kintad/PWV3/pkg/fiducial"
	"github.com/kintad/PWV3/pkg/filter"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/kintad/PWV3/pkg/ptt"
)

// Result is the analysis of one window. Fiducial indices refer to Times.
// RisingCh1 and RisingCh2 are nil outside rising mode.
type Result struct {
	Mode    fiducial.Mode `json:"mode"`
	Start   float64       `json:"start_s"`
	End     float64       `json:"end_s"`
	Samples int           `json:"samples"`

	PeaksCh1  []int `json:"peaks_ch1"`
	PeaksCh2  []int `json:"peaks_ch2"`
	RisingCh1 []int `json:"rising_ch1,omitempty"`
	RisingCh2 []int `json:"rising_ch2,omitempty"`

	PTT ptt.Result `json:"ptt"`

	Times     []float64 `json:"-"`
	Filtered1 []float64 `json:"-"`
	Filtered2 []float64 `json:"-"`
}

// Fiducials returns the per-channel indices used for timing.
func (r *Result) Fiducials() (ch1, ch2 []int) {
	if r.Mode == fiducial.ModeRising {
		return r.RisingCh1, r.RisingCh2
	}
	return r.PeaksCh1, r.PeaksCh2
}

// Pipeline holds the immutable per-run parameters. A Pipeline is safe for
// concurrent use.
//
// With RemoveDC set each channel has its window mean subtracted before the
// band-pass. The kernel's zero-padded edges then start from zero instead of
// from the raw baseline, which changes the filtered output within half a
// kernel of either window edge. Clear it to filter the raw samples.
type Pipeline struct {
	Kernel         *filter.Kernel
	Detector       fiducial.Detector
	VesselLengthCm float64
	MaxPairs       int
	RemoveDC       bool
}

// NewPipeline designs the filter kernel and detection policy from cfg.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	kernel, err := filter.Design(cfg.FilterSpec())
	if err != nil {
		return nil, fmt.Errorf("failed to design filter: %w", err)
	}
	det, err := cfg.Detector()
	if err != nil {
		return nil, fmt.Errorf("failed to configure detector: %w", err)
	}
	return &Pipeline{
		Kernel:         kernel,
		Detector:       det,
		VesselLengthCm: cfg.Analysis.VesselLengthCm,
		MaxPairs:       cfg.Analysis.MaxPairs,
		RemoveDC:       cfg.Filter.RemoveDC,
	}, nil
}

// Run analyses a window of samples. Heartbeats are ignored.
func (p *Pipeline) Run(samples []frame.Sample) Result {
	times, ch1, ch2 := frame.Series(samples)
	return p.RunSeries(times, ch1, ch2)
}

// RunSeries analyses aligned time and channel slices: optional mean removal,
// band-pass, fiducial detection, then transit-time pairing.
func (p *Pipeline) RunSeries(times, ch1, ch2 []float64) Result {
	res := Result{
		Mode:    p.Detector.Mode,
		Samples: len(times),
		Times:   times,
	}
	if len(times) > 0 {
		res.Start = times[0]
		res.End = times[len(times)-1]
	}

	res.Filtered1 = p.filter(ch1)
	res.Filtered2 = p.filter(ch2)

	res.PeaksCh1, res.RisingCh1 = p.Detector.Detect(times, res.Filtered1)
	res.PeaksCh2, res.RisingCh2 = p.Detector.Detect(times, res.Filtered2)

	fid1, fid2 := res.Fiducials()
	res.PTT = ptt.Compute(times, fid1, fid2, p.VesselLengthCm, p.MaxPairs)
	return res
}

func (p *Pipeline) filter(values []float64) []float64 {
	if p.RemoveDC {
		values = filter.RemoveDC(values)
	}
	return p.Kernel.Apply(values)
}
