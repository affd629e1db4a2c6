package frame

// HeartbeatTime is the timestamp carried by keep-alive samples.
const HeartbeatTime = -1.0

// Sample is one timestamped reading of both sensor nodes.
// T is device-clock seconds. Channel values are raw ADC counts.
type Sample struct {
	T   float64
	Ch1 float64
	Ch2 float64
}

// Heartbeat is the keep-alive marker. It carries no channel data.
var Heartbeat = Sample{T: HeartbeatTime}

// IsHeartbeat reports whether s is a keep-alive marker rather than data.
func (s Sample) IsHeartbeat() bool {
	return s.T == HeartbeatTime
}

// Series splits samples into time and channel slices, skipping heartbeats.
func Series(samples []Sample) (times, ch1, ch2 []float64) {
	times = make([]float64, 0, len(samples))
	ch1 = make([]float64, 0, len(samples))
	ch2 = make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.IsHeartbeat() {
			continue
		}
		times = append(times, s.T)
		ch1 = append(ch1, s.Ch1)
		ch2 = append(ch2, s.Ch2)
	}
	return times, ch1, ch2
}
