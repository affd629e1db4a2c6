package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kintad/PWV3/pkg/analysis"
	"github.com/kintad/PWV3/pkg/frame"
)

var (
	samplesHeader = []string{"Time(s)", "Node1", "Node2"}
	channelHeader = []string{"time", "value"}
	resultsHeader = []string{"time", "ptt_mean_ms", "ptt_std_ms", "pwv_mean_m_s", "pwv_std_m_s", "n_pairs"}
)

// CSV writes samples and results to two CSV streams. Times are shifted so
// the first recorded sample is at t=0.
type CSV struct {
	samples *csv.Writer
	results *csv.Writer
	files   []*os.File
	paths   []string

	t0      float64
	started bool
}

var _ Sink = (*CSV)(nil)

// NewCSV writes headers to the given streams. A nil writer disables that
// stream.
func NewCSV(samples, results io.Writer) (*CSV, error) {
	c := &CSV{}
	if samples != nil {
		c.samples = csv.NewWriter(samples)
		if err := c.samples.Write(samplesHeader); err != nil {
			return nil, fmt.Errorf("failed to write samples header: %w", err)
		}
	}
	if results != nil {
		c.results = csv.NewWriter(results)
		if err := c.results.Write(resultsHeader); err != nil {
			return nil, fmt.Errorf("failed to write results header: %w", err)
		}
	}
	return c, nil
}

// Create opens measurement_<millis>.csv and results_<millis>.csv in dir,
// named after now. Disabled streams are not created.
func Create(dir string, now time.Time, samples, results bool) (*CSV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	var files []*os.File
	var paths []string
	open := func(enabled bool, name string) (io.Writer, error) {
		if !enabled {
			return nil, nil
		}
		path := filepath.Join(dir, name+"_"+stamp+".csv")
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		files = append(files, f)
		paths = append(paths, path)
		return f, nil
	}
	cleanup := func() {
		for _, f := range files {
			f.Close()
		}
	}

	sw, err := open(samples, "measurement")
	if err != nil {
		cleanup()
		return nil, err
	}
	rw, err := open(results, "results")
	if err != nil {
		cleanup()
		return nil, err
	}

	c, err := NewCSV(sw, rw)
	if err != nil {
		cleanup()
		return nil, err
	}
	c.files = files
	c.paths = paths
	return c, nil
}

// Paths returns the files opened by Create.
func (c *CSV) Paths() []string {
	return c.paths
}

// WriteSample records s. Heartbeats are skipped.
func (c *CSV) WriteSample(s frame.Sample) error {
	if s.IsHeartbeat() {
		return nil
	}
	if !c.started {
		c.t0 = s.T
		c.started = true
	}
	if c.samples == nil {
		return nil
	}
	return c.samples.Write([]string{
		formatTime(s.T - c.t0),
		formatValue(s.Ch1),
		formatValue(s.Ch2),
	})
}

// WriteResult records the statistics of r, stamped with the end of its
// window. Absent statistics are written as empty fields.
func (c *CSV) WriteResult(r analysis.Result) error {
	if c.results == nil {
		return nil
	}
	row := []string{formatTime(r.End - c.t0), "", "", "", "", strconv.Itoa(r.PTT.Pairs)}
	if st := r.PTT.Stats; st != nil {
		row[1] = formatValue(st.PTTMeanMs)
		row[2] = formatValue(st.PTTStdMs)
		row[3] = formatValue(st.PWVMean)
		row[4] = formatValue(st.PWVStd)
	}
	if err := c.results.Write(row); err != nil {
		return err
	}
	// Results are rare; keep the file current.
	c.results.Flush()
	return c.results.Error()
}

// Close flushes both streams and closes any files opened by Create.
func (c *CSV) Close() error {
	var errs []error
	for _, w := range []*csv.Writer{c.samples, c.results} {
		if w == nil {
			continue
		}
		w.Flush()
		errs = append(errs, w.Error())
	}
	for _, f := range c.files {
		errs = append(errs, f.Close())
	}
	c.files = nil
	return errors.Join(errs...)
}

// WriteChannel writes a single series in the time,value layout, time
// normalised to the first entry.
func WriteChannel(w io.Writer, times, values []float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(channelHeader); err != nil {
		return err
	}
	n := min(len(times), len(values))
	for i := 0; i < n; i++ {
		if err := cw.Write([]string{formatTime(times[i] - times[0]), formatValue(values[i])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads a file written by CSV or WriteChannel. A time,value file
// yields samples with the value on channel 1 and zero on channel 2.
func Load(r io.Reader) ([]frame.Sample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrUnknownHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	switch {
	case equalHeader(header, samplesHeader), equalHeader(header, channelHeader):
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, header)
	}
	cr.FieldsPerRecord = len(header)

	var out []frame.Sample
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		vals := make([]float64, len(rec))
		for i, field := range rec {
			vals[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				line, _ := cr.FieldPos(i)
				return nil, fmt.Errorf("line %d: invalid number %q: %w", line, field, err)
			}
		}

		s := frame.Sample{T: vals[0], Ch1: vals[1]}
		if len(vals) > 2 {
			s.Ch2 = vals[2]
		}
		out = append(out, s)
	}
}

// LoadFile opens path and calls Load.
func LoadFile(path string) ([]frame.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		field := got[i]
		if i == 0 {
			// Spreadsheet exports sometimes prepend a byte order mark.
			field = strings.TrimPrefix(field, "\ufeff")
		}
		if field != want[i] {
			return false
		}
	}
	return true
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', 6, 64)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
