package record

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kintad/PWV3/pkg/analysis"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/kintad/PWV3/pkg/ptt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSamples(t *testing.T) {
	var samples bytes.Buffer
	c, err := NewCSV(&samples, nil)
	require.NoError(t, err)

	require.NoError(t, c.WriteSample(frame.Heartbeat))
	require.NoError(t, c.WriteSample(frame.Sample{T: 12.5, Ch1: 1000, Ch2: 2000}))
	require.NoError(t, c.WriteSample(frame.Sample{T: 12.501, Ch1: 1001, Ch2: 1999}))
	require.NoError(t, c.WriteSample(frame.Heartbeat))
	require.NoError(t, c.WriteResult(analysis.Result{End: 13}))
	require.NoError(t, c.Close())

	want := "Time(s),Node1,Node2\n" +
		"0.000000,1000,2000\n" +
		"0.001000,1001,1999\n"
	assert.Equal(t, want, samples.String())
}

func TestCSVResults(t *testing.T) {
	var results bytes.Buffer
	c, err := NewCSV(nil, &results)
	require.NoError(t, err)

	require.NoError(t, c.WriteSample(frame.Sample{T: 100}))
	require.NoError(t, c.WriteResult(analysis.Result{
		End: 110,
		PTT: ptt.Result{
			Pairs: 3,
			Stats: &ptt.Stats{PTTMeanMs: 50, PTTStdMs: 0, PWVMean: 4, PWVStd: 0},
		},
	}))
	require.NoError(t, c.WriteResult(analysis.Result{End: 120}))
	require.NoError(t, c.Close())

	want := "time,ptt_mean_ms,ptt_std_ms,pwv_mean_m_s,pwv_std_m_s,n_pairs\n" +
		"10.000000,50,0,4,0,3\n" +
		"20.000000,,,,,0\n"
	assert.Equal(t, want, results.String())
}

func TestWriteChannel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChannel(&buf, []float64{2, 2.5, 3}, []float64{7, 8}))
	assert.Equal(t, "time,value\n0.000000,7\n0.500000,8\n", buf.String())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []frame.Sample
	}{
		{
			name: "two channels",
			in:   "Time(s),Node1,Node2\n0.000000,1000,2000\n0.001000,1001,1999\n",
			want: []frame.Sample{{T: 0, Ch1: 1000, Ch2: 2000}, {T: 0.001, Ch1: 1001, Ch2: 1999}},
		},
		{
			name: "single channel",
			in:   "time,value\n0.5,7\n",
			want: []frame.Sample{{T: 0.5, Ch1: 7}},
		},
		{
			name: "byte order mark and spaces",
			in:   "\ufeffTime(s), Node1, Node2\n1, 2, 3\n",
			want: []frame.Sample{{T: 1, Ch1: 2, Ch2: 3}},
		},
		{
			name: "header only",
			in:   "Time(s),Node1,Node2\n",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"empty", "", ErrUnknownHeader},
		{"unknown header", "a,b,c\n1,2,3\n", ErrUnknownHeader},
		{"bad number", "time,value\n0,abc\n", nil},
		{"short row", "Time(s),Node1,Node2\n0,1\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.in))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCreateAndLoadFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	now := time.UnixMilli(1700000000123)

	c, err := Create(dir, now, true, true)
	require.NoError(t, err)
	require.Len(t, c.Paths(), 2)
	assert.Equal(t, filepath.Join(dir, "measurement_1700000000123.csv"), c.Paths()[0])
	assert.Equal(t, filepath.Join(dir, "results_1700000000123.csv"), c.Paths()[1])

	in := []frame.Sample{{T: 5, Ch1: 1, Ch2: 2}, {T: 5.25, Ch1: 3, Ch2: 4}}
	for _, s := range in {
		require.NoError(t, c.WriteSample(s))
	}
	require.NoError(t, c.Close())

	got, err := LoadFile(c.Paths()[0])
	require.NoError(t, err)
	assert.Equal(t, []frame.Sample{{T: 0, Ch1: 1, Ch2: 2}, {T: 0.25, Ch1: 3, Ch2: 4}}, got)

	data, err := os.ReadFile(c.Paths()[1])
	require.NoError(t, err)
	assert.Equal(t, "time,ptt_mean_ms,ptt_std_ms,pwv_mean_m_s,pwv_std_m_s,n_pairs\n", string(data))
}

func TestCreateSamplesOnly(t *testing.T) {
	c, err := Create(t.TempDir(), time.UnixMilli(1), true, false)
	require.NoError(t, err)
	assert.Len(t, c.Paths(), 1)
	require.NoError(t, c.WriteResult(analysis.Result{}))
	require.NoError(t, c.Close())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
