package device

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kintad/PWV3/pkg/config"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/sirupsen/logrus"
)

// mockTick is how often the generator catches up with wall time.
const mockTick = 20 * time.Millisecond

// Mock simulates the two-node sensor board. It synthesises a pulse wave on
// each node, node 2 lagging node 1 by the configured transit time, encodes
// the samples on the wire and decodes them with the real decoder.
type Mock struct {
	cfg      config.MockConfig
	protocol frame.Protocol
	log      logrus.FieldLogger

	mu        sync.RWMutex
	samples   chan frame.Sample
	errs      chan error
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool

	// Simulation state, owned by the generator goroutine.
	rng  *rand.Rand
	next int // index of the next sample to emit
}

// DefaultMockConfig returns the simulation used when NewMock gets nil.
func DefaultMockConfig() config.MockConfig {
	return config.Default().Mock
}

// NewMock creates a mocked device emitting frames in protocol p.
func NewMock(cfg *config.MockConfig, p frame.Protocol, log logrus.FieldLogger) *Mock {
	c := DefaultMockConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.SampleInterval <= 0 {
		c.SampleInterval = time.Millisecond
	}
	if p == "" {
		p = frame.ProtocolBinary
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Mock{
		cfg:      c,
		protocol: p,
		log:      log.WithFields(logrus.Fields{"port": "mock", "protocol": p}),
		samples:  closedSamples(),
		errs:     closedErrors(),
		rng:      rand.New(rand.NewPCG(1, 2)),
	}
}

// Connect starts generating samples.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	st, err := newStream(m.protocol, true, m.log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.samples = make(chan frame.Sample, DefaultBufferSize)
	m.errs = make(chan error, 1)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.connected = true
	m.next = 0

	go m.generate(ctx, st, m.samples, m.errs, m.done)

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.connected = false
	done := m.done
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(DefaultJoinTimeout):
		m.log.Warn("mock generator did not stop, leaking it")
	}
	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan frame.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.samples
}

// Errors returns the fault channel. The mock never faults.
func (m *Mock) Errors() <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errs
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generate emits every sample due since start on each tick.
func (m *Mock) generate(ctx context.Context, st *stream, samples chan<- frame.Sample, errs chan<- error, done chan<- struct{}) {
	defer close(done)
	defer close(samples)
	defer close(errs)

	ticker := time.NewTicker(mockTick)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due := int(now.Sub(start) / m.cfg.SampleInterval)
			wire := m.wire(nil, due)
			for _, s := range st.decode(wire) {
				select {
				case samples <- s:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// wire appends the encoding of samples up to (not including) index until,
// injecting corruption every CorruptEvery samples.
func (m *Mock) wire(dst []byte, until int) []byte {
	perSecond := int(time.Second / m.cfg.SampleInterval)
	for ; m.next < until; m.next++ {
		s := m.sample(m.next)

		if m.cfg.CorruptEvery > 0 && m.next > 0 && m.next%m.cfg.CorruptEvery == 0 {
			if m.protocol == frame.ProtocolText {
				dst = append(dst, "garbage\n"...)
			} else {
				dst = append(dst, byte(m.rng.IntN(frame.Header)))
			}
		}

		if m.protocol == frame.ProtocolText {
			if perSecond > 0 && m.next > 0 && m.next%perSecond == 0 {
				dst = append(dst, frame.FormatLine(frame.Heartbeat)...)
			}
			dst = append(dst, frame.FormatLine(s)...)
			continue
		}
		dst = frame.Encode(dst, s)
	}
	return dst
}

// sample synthesises sample i.
func (m *Mock) sample(i int) frame.Sample {
	t := float64(i) * m.cfg.SampleInterval.Seconds()
	delay := m.cfg.TransitTime.Seconds()

	return frame.Sample{
		T:   t,
		Ch1: m.adc(m.cfg.Amplitude * m.pulse(t)),
		Ch2: m.adc(0.8 * m.cfg.Amplitude * m.pulse(t-delay)),
	}
}

// pulse is a unit systolic peak followed by a smaller dicrotic wave.
func (m *Mock) pulse(t float64) float64 {
	if m.cfg.HeartRateBPM <= 0 {
		return 0
	}
	period := 60 / m.cfg.HeartRateBPM
	phase := math.Mod(t, period) / period
	if phase < 0 {
		phase++
	}
	systolic := math.Exp(-math.Pow((phase-0.2)/0.06, 2))
	dicrotic := 0.35 * math.Exp(-math.Pow((phase-0.45)/0.08, 2))
	return systolic + dicrotic
}

// adc adds baseline and noise and quantises to the 16-bit reading range.
func (m *Mock) adc(v float64) float64 {
	v += m.cfg.Baseline + m.rng.NormFloat64()*m.cfg.NoiseLevel
	return math.Round(math.Max(0, math.Min(math.MaxUint16, v)))
}
