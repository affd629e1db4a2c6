package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kintad/PWV3/pkg/frame"
	"github.com/sirupsen/logrus"
)

const readChunk = 512

// Serial represents a connection to the sensor board over a serial port.
type Serial struct {
	opts Options
	open Opener
	log  logrus.FieldLogger

	mu        sync.RWMutex
	conn      Port
	samples   chan frame.Sample
	errs      chan error
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewSerial creates a Serial device. A nil logger uses the logrus standard
// logger.
func NewSerial(opts Options, log logrus.FieldLogger) *Serial {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts = opts.withDefaults()
	return &Serial{
		opts: opts,
		open: OpenSerial,
		log: log.WithFields(logrus.Fields{
			"port":     opts.Port,
			"protocol": opts.Protocol,
		}),
		samples: closedSamples(),
		errs:    closedErrors(),
	}
}

// Connect opens the port and starts the reader goroutine.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	st, err := newStream(d.opts.Protocol, d.opts.Unwrap, d.log)
	if err != nil {
		return err
	}

	port, err := d.open(d.opts.Port, d.opts)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.opts.Port, err)
	}
	if err := port.SetReadTimeout(d.opts.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", d.opts.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.conn = port
	d.samples = make(chan frame.Sample, d.opts.BufferSize)
	d.errs = make(chan error, 1)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.connected = true

	go d.read(ctx, port, st, d.samples, d.errs, d.done)

	d.log.WithField("baud", d.opts.BaudRate).Info("serial port opened")
	return nil
}

// Close cancels the reader, closes the port and waits up to the join
// timeout for the reader to finish.
func (d *Serial) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.cancel()
	var err error
	if d.conn != nil {
		err = d.conn.Close()
		d.conn = nil
	}
	d.connected = false
	done := d.done
	d.mu.Unlock()

	select {
	case <-done:
	case <-time.After(d.opts.JoinTimeout):
		d.log.WithField("timeout", d.opts.JoinTimeout).Warn("serial reader did not stop, leaking it")
	}

	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", d.opts.Port, err)
	}
	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan frame.Sample {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.samples
}

// Errors returns the channel transport faults are reported on.
func (d *Serial) Errors() <-chan error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.errs
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Write sends raw bytes to the board.
func (d *Serial) Write(p []byte) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return 0, ErrNotConnected
	}
	n, err := d.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to write to %s: %w", d.opts.Port, err)
	}
	return n, nil
}

// read pulls bytes from the port until ctx is cancelled or a read fails.
// A zero-length read is a timeout and only re-checks ctx.
func (d *Serial) read(ctx context.Context, port Port, st *stream, samples chan<- frame.Sample, errs chan<- error, done chan<- struct{}) {
	defer close(done)
	defer close(samples)
	defer close(errs)

	buf := make([]byte, readChunk)
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.WithError(err).Error("serial read failed")
			errs <- fmt.Errorf("failed to read from %s: %w", d.opts.Port, err)
			d.release(port)
			return
		}
		if n == 0 {
			continue
		}

		for _, s := range st.decode(buf[:n]) {
			select {
			case samples <- s:
			case <-ctx.Done():
				return
			}
		}
	}

	stats := st.stats()
	d.log.WithFields(logrus.Fields{
		"samples":   stats.Samples,
		"dropped":   stats.Dropped,
		"malformed": stats.Malformed,
	}).Debug("serial reader stopped")
}

// release closes port after a transport fault unless Close got there first.
func (d *Serial) release(port Port) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != port {
		return
	}
	if err := port.Close(); err != nil {
		d.log.WithError(err).Warn("failed to close serial port")
	}
	d.conn = nil
	d.connected = false
	d.cancel()
}

func closedSamples() chan frame.Sample {
	ch := make(chan frame.Sample)
	close(ch)
	return ch
}

func closedErrors() chan error {
	ch := make(chan error)
	close(ch)
	return ch
}
