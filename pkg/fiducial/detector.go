package fiducial

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unrecognised mode names.
var ErrUnknownMode = errors.New("fiducial: unknown mode")

// Mode selects which fiducial feeds the transit-time computation.
type Mode string

const (
	// ModePeak uses the systolic peaks directly.
	ModePeak Mode = "peak"
	// ModeRising uses the rising foot in front of each peak.
	ModeRising Mode = "rising"
)

// Default neighbourhood sizes for local-maximum search.
const (
	DefaultPeakOrder   = 5
	DefaultRisingOrder = 200
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePeak:
		return ModePeak, nil
	case ModeRising:
		return ModeRising, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Detector applies the detection policy of one mode.
type Detector struct {
	Mode        Mode
	Percent     float64 // rising threshold, 0-100
	PeakOrder   int     // local-maximum half window in peak mode
	RisingOrder int     // local-maximum half window in rising mode
}

// NewDetector returns a detector with the default orders.
func NewDetector(mode Mode, percent float64) Detector {
	return Detector{
		Mode:        mode,
		Percent:     percent,
		PeakOrder:   DefaultPeakOrder,
		RisingOrder: DefaultRisingOrder,
	}
}

// Order returns the local-maximum half window used by the current mode.
func (d Detector) Order() int {
	if d.Mode == ModeRising {
		if d.RisingOrder > 0 {
			return d.RisingOrder
		}
		return DefaultRisingOrder
	}
	if d.PeakOrder > 0 {
		return d.PeakOrder
	}
	return DefaultPeakOrder
}

// Detect finds the peaks of values and, in rising mode, the rising foot of
// each peak. rising is nil in peak mode. Rising indices are strictly
// increasing: a foot that does not advance past the previous one is dropped.
func (d Detector) Detect(times, values []float64) (peaks, rising []int) {
	peaks = DetectPeaks(values, d.Order())
	if d.Mode != ModeRising {
		return peaks, nil
	}

	percent := min(max(d.Percent, 0), 100)
	rising = make([]int, 0, len(peaks))
	for _, p := range peaks {
		idx := DetectRisingFoot(times, values, p, percent)
		if idx < 0 {
			continue
		}
		if n := len(rising); n > 0 && idx <= rising[n-1] {
			continue
		}
		rising = append(rising, idx)
	}
	return peaks, rising
}

// Fiducials returns the indices used for transit timing in this mode.
func (d Detector) Fiducials(peaks, rising []int) []int {
	if d.Mode == ModeRising {
		return rising
	}
	return peaks
}
