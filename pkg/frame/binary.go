package frame

import "encoding/binary"

const (
	// FrameSize is the length of one binary wire frame.
	FrameSize = 9
	// Header is the sync byte that starts every binary frame.
	Header = 0xFF
)

// Binary decodes the 9-byte packet protocol:
//
//	byte 0    : 0xFF header
//	bytes 1-4 : uint32 little-endian timestamp, microseconds
//	bytes 5-6 : uint16 big-endian channel 1
//	bytes 7-8 : uint16 big-endian channel 2
type Binary struct {
	buf   []byte
	stats Stats
}

// NewBinary creates an empty binary decoder.
func NewBinary() *Binary {
	return &Binary{buf: make([]byte, 0, 4*FrameSize)}
}

// Feed implements Decoder.
func (d *Binary) Feed(p []byte) []Sample {
	d.buf = append(d.buf, p...)

	var out []Sample
	start := 0
	for len(d.buf)-start >= FrameSize {
		if d.buf[start] != Header {
			// Misaligned: drop one byte and look again.
			start++
			d.stats.Dropped++
			continue
		}
		out = append(out, decodeFrame(d.buf[start:start+FrameSize]))
		start += FrameSize
	}

	// Keep only the unconsumed tail, compacted to the front.
	n := copy(d.buf, d.buf[start:])
	d.buf = d.buf[:n]
	d.stats.Samples += uint64(len(out))
	return out
}

// Stats implements Decoder.
func (d *Binary) Stats() Stats {
	return d.stats
}

// Reset discards buffered bytes and counters.
func (d *Binary) Reset() {
	d.buf = d.buf[:0]
	d.stats = Stats{}
}

// Buffered returns the number of bytes waiting for a complete frame.
func (d *Binary) Buffered() int {
	return len(d.buf)
}

func decodeFrame(f []byte) Sample {
	us := binary.LittleEndian.Uint32(f[1:5])
	return Sample{
		T:   float64(us) / 1e6,
		Ch1: float64(binary.BigEndian.Uint16(f[5:7])),
		Ch2: float64(binary.BigEndian.Uint16(f[7:9])),
	}
}

// AppendFrame appends the wire encoding of a reading to dst.
// The timestamp is in microseconds and wraps like the device counter.
func AppendFrame(dst []byte, micros uint32, ch1, ch2 uint16) []byte {
	dst = append(dst, Header)
	dst = binary.LittleEndian.AppendUint32(dst, micros)
	dst = binary.BigEndian.AppendUint16(dst, ch1)
	dst = binary.BigEndian.AppendUint16(dst, ch2)
	return dst
}

// Encode appends the binary frame for s. Channel values are clamped to
// the uint16 range and the timestamp is reduced modulo the 32-bit clock.
func Encode(dst []byte, s Sample) []byte {
	us := uint64(s.T*1e6+0.5) & 0xFFFFFFFF
	return AppendFrame(dst, uint32(us), clampU16(s.Ch1), clampU16(s.Ch2))
}

func clampU16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 0xFFFF:
		return 0xFFFF
	}
	return uint16(v + 0.5)
}
