package frame

// ClockPeriod is the span of the device's 32-bit microsecond counter in seconds.
const ClockPeriod = float64(1<<32) / 1e6

// Unwrapper turns wrapping device timestamps into a monotonic timeline.
// A backwards jump larger than half the clock period is taken as a
// counter rollover. Smaller backwards steps are passed through as is.
type Unwrapper struct {
	last   float64
	offset float64
	primed bool
}

// Unwrap returns s with its timestamp adjusted for counter rollovers.
// Heartbeats are returned unchanged.
func (u *Unwrapper) Unwrap(s Sample) Sample {
	if s.IsHeartbeat() {
		return s
	}
	if u.primed && s.T+ClockPeriod/2 < u.last {
		u.offset += ClockPeriod
	}
	u.last = s.T
	u.primed = true
	s.T += u.offset
	return s
}

// Reset forgets any accumulated rollovers.
func (u *Unwrapper) Reset() {
	*u = Unwrapper{}
}
