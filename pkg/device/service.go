package device

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/sirupsen/logrus"
)

// DefaultSendTimeout bounds how long a full subscriber can stall delivery.
const DefaultSendTimeout = time.Second

// Subscription is an ordered feed of samples from a Service. C is closed
// when the subscription ends.
type Subscription struct {
	ID uuid.UUID
	C  <-chan frame.Sample

	ch  chan frame.Sample
	svc *Service

	// mu serialises sends with closing ch.
	mu     sync.Mutex
	closed bool
}

// Close ends the subscription.
func (s *Subscription) Close() {
	s.svc.Unsubscribe(s.ID)
}

// end closes ch once any in-flight send has finished.
func (s *Subscription) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Service owns a Device and fans its samples out to subscribers.
type Service struct {
	dev         Device
	sendTimeout time.Duration
	log         logrus.FieldLogger

	mu      sync.Mutex
	subs    map[uuid.UUID]*Subscription
	faults  chan error
	done    chan struct{}
	running bool

	dropped atomic.Uint64
}

// NewService creates a Service for dev. A non-positive sendTimeout uses
// DefaultSendTimeout.
func NewService(dev Device, sendTimeout time.Duration, log logrus.FieldLogger) *Service {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	done := make(chan struct{})
	close(done)
	return &Service{
		dev:         dev,
		sendTimeout: sendTimeout,
		log:         log.WithField("component", "service"),
		subs:        make(map[uuid.UUID]*Subscription),
		faults:      make(chan error, 4),
		done:        done,
	}
}

// Start connects the device and begins delivering samples.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyConnected
	}
	if err := s.dev.Connect(); err != nil {
		return fmt.Errorf("failed to connect device: %w", err)
	}
	s.running = true
	s.done = make(chan struct{})
	go s.run(s.dev.Samples(), s.dev.Errors(), s.done)
	return nil
}

// Subscribe registers a subscriber with a channel of the given capacity.
func (s *Service) Subscribe(size int) *Subscription {
	if size < 0 {
		size = 0
	}
	ch := make(chan frame.Sample, size)
	sub := &Subscription{ID: uuid.New(), C: ch, ch: ch, svc: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. A send already
// in progress to that subscriber finishes first. Unknown IDs are ignored.
func (s *Service) Unsubscribe(id uuid.UUID) {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	if ok {
		sub.end()
	}
}

// Faults returns the channel transport faults are surfaced on.
func (s *Service) Faults() <-chan error {
	return s.faults
}

// Done is closed once delivery has stopped and every subscription ended.
func (s *Service) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Dropped returns how many deliveries timed out.
func (s *Service) Dropped() uint64 {
	return s.dropped.Load()
}

// Stop closes the device and waits for delivery to end.
func (s *Service) Stop() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	err := s.dev.Close()

	select {
	case <-done:
	case <-time.After(s.sendTimeout + DefaultJoinTimeout):
		s.log.Warn("delivery did not stop in time")
		s.closeAll()
	}

	if err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	return nil
}

// run delivers samples until the device closes its samples channel.
func (s *Service) run(samples <-chan frame.Sample, errs <-chan error, done chan struct{}) {
	defer close(done)
	defer s.closeAll()

	timer := time.NewTimer(s.sendTimeout)
	timer.Stop()

	for {
		select {
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.fault(err)
		case smp, ok := <-samples:
			if !ok {
				// A fault is reported before the samples channel closes.
				select {
				case err, ok := <-errs:
					if ok {
						s.fault(err)
					}
				default:
				}
				return
			}
			s.deliver(smp, timer)
		}
	}
}

// deliver sends smp to every subscriber without holding the service lock,
// so a stalled subscriber only delays delivery.
func (s *Service) deliver(smp frame.Sample, timer *time.Timer) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.send(sub, smp, timer)
	}
}

func (s *Service) send(sub *Subscription, smp frame.Sample, timer *time.Timer) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return
	}
	select {
	case sub.ch <- smp:
		return
	default:
	}

	timer.Reset(s.sendTimeout)
	defer timer.Stop()
	select {
	case sub.ch <- smp:
	case <-timer.C:
		s.dropped.Add(1)
		s.log.WithField("subscriber", sub.ID).Warn("subscriber full, dropping sample")
	}
}

func (s *Service) fault(err error) {
	s.log.WithError(err).Error("transport fault")
	select {
	case s.faults <- err:
	default:
		s.log.Warn("fault channel full, dropping fault")
	}
}

func (s *Service) closeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[uuid.UUID]*Subscription)
	s.running = false
	s.mu.Unlock()

	for _, sub := range subs {
		sub.end()
	}
}
