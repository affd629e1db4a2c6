// Package device connects to the two-node sensor board, or a simulation of
// it, and delivers decoded samples on ordered channels.
package device

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kintad/PWV3/pkg/config"
	"github.com/kintad/PWV3/pkg/frame"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	// ErrNotConnected is returned by operations that need an open device.
	ErrNotConnected = errors.New("device: not connected")
	// ErrAlreadyConnected is returned by Connect on an open device.
	ErrAlreadyConnected = errors.New("device: already connected")
)

const (
	// DefaultBaudRate matches the sensor board firmware.
	DefaultBaudRate = 500000
	// DefaultBufferSize is the default capacity of the samples channel.
	DefaultBufferSize = 1024
	// DefaultReadTimeout bounds a single port read.
	DefaultReadTimeout = 200 * time.Millisecond
	// DefaultJoinTimeout bounds how long Close waits for the reader.
	DefaultJoinTimeout = 500 * time.Millisecond
)

// Device defines the interface for sensor boards (real or mocked).
//
// Samples is closed when the device stops delivering, either after Close or
// after a transport fault. A fault is reported on Errors before Samples is
// closed. Both channels are replaced on every Connect.
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan frame.Sample
	Errors() <-chan error
	IsConnected() bool
}

var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
)

// Port is the part of a serial port the reader needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a port by name.
type Opener func(name string, opts Options) (Port, error)

// Options describes how to open and decode a serial port.
type Options struct {
	Port        string
	BaudRate    int
	Protocol    frame.Protocol
	ReadTimeout time.Duration
	JoinTimeout time.Duration
	BufferSize  int
	DTR         bool
	RTS         bool
	Unwrap      bool // undo 32-bit microsecond rollover
}

// OptionsFromConfig converts the serial section of a configuration.
func OptionsFromConfig(cfg *config.SerialConfig) (Options, error) {
	p, err := frame.ParseProtocol(cfg.Protocol)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Port:        cfg.Port,
		BaudRate:    cfg.BaudRate,
		Protocol:    p,
		ReadTimeout: cfg.ReadTimeout,
		JoinTimeout: cfg.JoinTimeout,
		BufferSize:  cfg.BufferSize,
		DTR:         cfg.DTR,
		RTS:         cfg.RTS,
		Unwrap:      cfg.UnwrapTimestamps,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.Protocol == "" {
		o.Protocol = frame.ProtocolBinary
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	return o
}

// OpenSerial opens a real serial port in 8N1 mode and applies the modem
// control lines from opts.
func OpenSerial(name string, opts Options) (Port, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := port.SetDTR(opts.DTR); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set DTR: %w", err)
	}
	if err := port.SetRTS(opts.RTS); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set RTS: %w", err)
	}
	return port, nil
}

// PortInfo describes a serial port.
type PortInfo struct {
	Name        string
	Description string
	USB         bool
	VID         string
	PID         string
	Serial      string
}

// Ports returns a list of available serial ports.
func Ports() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		desc := p.Product
		if desc == "" {
			desc = p.Name
		}
		result = append(result, PortInfo{
			Name:        p.Name,
			Description: desc,
			USB:         p.IsUSB,
			VID:         p.VID,
			PID:         p.PID,
			Serial:      p.SerialNumber,
		})
	}
	return result, nil
}
