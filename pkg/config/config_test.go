package config

import (
	"os"
	"testing"
	"time"

	"github.com/kintad/PWV3/pkg/fiducial"
	"github.com/kintad/PWV3/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, 500000, cfg.Serial.BaudRate)
	assert.Equal(t, "binary", cfg.Serial.Protocol)
	assert.Equal(t, 200*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.JoinTimeout)
	assert.True(t, cfg.Serial.DTR)
	assert.True(t, cfg.Serial.RTS)
	assert.Equal(t, float64(1000), cfg.Filter.SampleRateHz)
	assert.Equal(t, 101, cfg.Filter.NumTaps)
	assert.Equal(t, 0.4, cfg.Filter.FLowHz)
	assert.Equal(t, float64(10), cfg.Filter.FHighHz)
	assert.Equal(t, 5, cfg.Filter.SmoothWindow)
	assert.True(t, cfg.Filter.RemoveDC)
	assert.Equal(t, "peak", cfg.Detection.Mode)
	assert.Equal(t, 5, cfg.Detection.PeakOrder)
	assert.Equal(t, 200, cfg.Detection.RisingOrder)
	assert.Equal(t, 10, cfg.Analysis.MaxPairs)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
  baud_rate: 115200
  protocol: text
  read_timeout: 50ms
  dtr: false

filter:
  sample_rate_hz: 500
  num_taps: 64
  f_low_hz: 0.5
  f_high_hz: 8
  remove_dc: false

detection:
  mode: rising
  percent: 25

analysis:
  vessel_length_cm: 42.5
  max_pairs: 5

mock:
  transit_time: 120ms
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "text", cfg.Serial.Protocol)
	assert.Equal(t, 50*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.False(t, cfg.Serial.DTR)
	assert.True(t, cfg.Serial.RTS) // default kept
	assert.Equal(t, filter.Spec{SampleRate: 500, Taps: 64, Low: 0.5, High: 8}, cfg.FilterSpec())
	assert.False(t, cfg.Filter.RemoveDC)
	assert.Equal(t, 42.5, cfg.Analysis.VesselLengthCm)
	assert.Equal(t, 5, cfg.Analysis.MaxPairs)
	assert.Equal(t, 120*time.Millisecond, cfg.Mock.TransitTime)

	det, err := cfg.Detector()
	require.NoError(t, err)
	assert.Equal(t, fiducial.ModeRising, det.Mode)
	assert.Equal(t, float64(25), det.Percent)
	assert.Equal(t, 200, det.RisingOrder)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyACM0"
filter:
  num_taps: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 500000, cfg.Serial.BaudRate)             // default
	assert.Equal(t, 101, cfg.Filter.NumTaps)                 // zero replaced
	assert.True(t, cfg.Filter.RemoveDC)                      // default
	assert.Equal(t, float64(10), cfg.Analysis.WindowSeconds) // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB1"
	cfg.Analysis.VesselLengthCm = 33
	cfg.Serial.JoinTimeout = 2 * time.Second

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", loaded.Serial.Port)
	assert.Equal(t, float64(33), loaded.Analysis.VesselLengthCm)
	assert.Equal(t, 2*time.Second, loaded.Serial.JoinTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted band", func(c *Config) { c.Filter.FLowHz, c.Filter.FHighHz = 10, 1 }},
		{"high above nyquist", func(c *Config) { c.Filter.FHighHz = 600 }},
		{"unknown protocol", func(c *Config) { c.Serial.Protocol = "i2c" }},
		{"unknown mode", func(c *Config) { c.Detection.Mode = "valley" }},
		{"percent above range", func(c *Config) { c.Detection.Percent = 101 }},
		{"percent below range", func(c *Config) { c.Detection.Percent = -1 }},
		{"zero vessel length", func(c *Config) { c.Analysis.VesselLengthCm = 0 }},
		{"negative baud", func(c *Config) { c.Serial.BaudRate = -9600 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestValidate_WrapsFilterError(t *testing.T) {
	cfg := Default()
	cfg.Filter.NumTaps = -1
	assert.ErrorIs(t, cfg.Validate(), filter.ErrInvalidSpec)
}

func TestDetector_UnknownMode(t *testing.T) {
	cfg := Default()
	cfg.Detection.Mode = "valley"
	_, err := cfg.Detector()
	assert.ErrorIs(t, err, fiducial.ErrUnknownMode)
}
