package frame

import (
	"bytes"
	"strconv"
	"strings"
)

// maxLineLength bounds the accumulator when a peer never sends a newline.
const maxLineLength = 4096

// Text decodes newline-delimited lines of the form
//
//	<seconds> <ch1> <ch2>
//
// where fields are separated by commas, spaces or tabs. A line equal to
// "HB" or "heartbeat" (any case) produces a Heartbeat sample.
type Text struct {
	buf   []byte
	stats Stats
}

// NewText creates an empty text decoder.
func NewText() *Text {
	return &Text{}
}

// Feed implements Decoder.
func (d *Text) Feed(p []byte) []Sample {
	d.buf = append(d.buf, p...)

	var out []Sample
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := string(d.buf[:i])
		d.buf = d.buf[i+1:]

		s, ok, blank := ParseLine(line)
		switch {
		case blank:
		case ok:
			out = append(out, s)
		default:
			d.stats.Malformed++
		}
	}

	if len(d.buf) > maxLineLength {
		d.stats.Dropped += uint64(len(d.buf))
		d.buf = nil
	}
	// Release the consumed prefix once nothing is pending.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	d.stats.Samples += uint64(len(out))
	return out
}

// Stats implements Decoder.
func (d *Text) Stats() Stats {
	return d.stats
}

// Reset discards buffered bytes and counters.
func (d *Text) Reset() {
	d.buf = nil
	d.stats = Stats{}
}

// ParseLine parses one text-protocol line. blank is true for lines with
// no content at all, which are skipped silently rather than counted.
func ParseLine(line string) (s Sample, ok, blank bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Sample{}, false, true
	}
	if strings.EqualFold(line, "hb") || strings.EqualFold(line, "heartbeat") {
		return Heartbeat, true, false
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) < 3 {
		return Sample{}, false, false
	}

	var vals [3]float64
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return Sample{}, false, false
		}
		vals[i] = v
	}
	return Sample{T: vals[0], Ch1: vals[1], Ch2: vals[2]}, true, false
}

// FormatLine renders s in the text protocol, newline terminated.
func FormatLine(s Sample) string {
	if s.IsHeartbeat() {
		return "HB\n"
	}
	return strconv.FormatFloat(s.T, 'f', 6, 64) + "," +
		strconv.FormatFloat(s.Ch1, 'f', -1, 64) + "," +
		strconv.FormatFloat(s.Ch2, 'f', -1, 64) + "\n"
}
