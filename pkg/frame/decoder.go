package frame

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProtocol is returned when a wire protocol name is not recognised.
var ErrUnknownProtocol = errors.New("frame: unknown protocol")

// Protocol names a wire format.
type Protocol string

const (
	// ProtocolBinary is the fixed 9-byte packet format.
	ProtocolBinary Protocol = "binary"
	// ProtocolText is the newline-delimited CSV-like format.
	ProtocolText Protocol = "text"
)

// ParseProtocol converts a configuration string into a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.ToLower(strings.TrimSpace(s))) {
	case ProtocolBinary, "":
		return ProtocolBinary, nil
	case ProtocolText:
		return ProtocolText, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

// Decoder turns incrementally arriving bytes into samples.
//
// Feed appends p to an internal accumulator and returns every sample that
// could be fully decoded so far. Bytes belonging to an incomplete frame or
// line stay buffered for the next call. Corrupted input is never an error:
// it is skipped and counted in Stats.
type Decoder interface {
	Feed(p []byte) []Sample
	Stats() Stats
	Reset()
}

// Stats counts decoder activity.
type Stats struct {
	Samples   uint64 // samples emitted, heartbeats included
	Dropped   uint64 // bytes discarded while resynchronising
	Malformed uint64 // lines that could not be parsed
}

// NewDecoder returns a fresh decoder for the protocol.
func NewDecoder(p Protocol) (Decoder, error) {
	switch p {
	case ProtocolBinary:
		return NewBinary(), nil
	case ProtocolText:
		return NewText(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, string(p))
}

var (
	_ Decoder = (*Binary)(nil)
	_ Decoder = (*Text)(nil)
)
