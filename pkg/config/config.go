package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kintad/PWV3/pkg/fiducial"
	"github.com/kintad/PWV3/pkg/filter"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/kintad/PWV3/pkg/ptt"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	Filter    FilterConfig    `yaml:"filter"`
	Detection DetectionConfig `yaml:"detection"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Output    OutputConfig    `yaml:"output"`
	Mock      MockConfig      `yaml:"mock"`
	Log       LogConfig       `yaml:"log"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port             string        `yaml:"port"`
	BaudRate         int           `yaml:"baud_rate"`
	Protocol         string        `yaml:"protocol"`     // binary or text
	ReadTimeout      time.Duration `yaml:"read_timeout"` // bound on a single port read
	JoinTimeout      time.Duration `yaml:"join_timeout"` // how long Close waits for the reader
	BufferSize       int           `yaml:"buffer_size"`  // sample queue capacity
	SendTimeout      time.Duration `yaml:"send_timeout"` // per-subscriber delivery bound
	DTR              bool          `yaml:"dtr"`
	RTS              bool          `yaml:"rts"`
	UnwrapTimestamps bool          `yaml:"unwrap_timestamps"` // undo 32-bit microsecond rollover
}

// FilterConfig contains band-pass and display smoothing parameters.
type FilterConfig struct {
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	NumTaps      int     `yaml:"num_taps"`
	FLowHz       float64 `yaml:"f_low_hz"`
	FHighHz      float64 `yaml:"f_high_hz"`
	SmoothWindow int     `yaml:"smooth_window"`
	RemoveDC     bool    `yaml:"remove_dc"` // subtract the window mean before filtering
}

// DetectionConfig selects the fiducial used for timing.
type DetectionConfig struct {
	Mode        string  `yaml:"mode"`    // peak or rising
	Percent     float64 `yaml:"percent"` // rising threshold, 0-100
	PeakOrder   int     `yaml:"peak_order"`
	RisingOrder int     `yaml:"rising_order"`
}

// AnalysisConfig contains windowing and PTT/PWV parameters.
type AnalysisConfig struct {
	VesselLengthCm float64 `yaml:"vessel_length_cm"`
	MaxPairs       int     `yaml:"max_pairs"`
	WindowSeconds  float64 `yaml:"window_seconds"`
	MinNewSamples  int     `yaml:"min_new_samples"` // samples between analysis runs
	DisplayPoints  int     `yaml:"display_points"`
	ResultsBuffer  int     `yaml:"results_buffer"`
}

// OutputConfig controls what a measurement writes to disk.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Samples   bool   `yaml:"samples"`
	Results   bool   `yaml:"results"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	HeartRateBPM   float64       `yaml:"heart_rate_bpm"`
	TransitTime    time.Duration `yaml:"transit_time"`    // delay between node 1 and node 2
	NoiseLevel     float64       `yaml:"noise_level"`     // ADC counts, standard deviation
	Amplitude      float64       `yaml:"amplitude"`       // pulse height, ADC counts
	Baseline       float64       `yaml:"baseline"`        // DC level, ADC counts
	SampleInterval time.Duration `yaml:"sample_interval"` // 1ms = 1 kHz
	CorruptEvery   int           `yaml:"corrupt_every"`   // inject a garbage byte every N frames, 0 = never
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:             "/dev/ttyUSB0",
			BaudRate:         500000,
			Protocol:         string(frame.ProtocolBinary),
			ReadTimeout:      200 * time.Millisecond,
			JoinTimeout:      500 * time.Millisecond,
			BufferSize:       1024,
			SendTimeout:      time.Second,
			DTR:              true,
			RTS:              true,
			UnwrapTimestamps: true,
		},
		Filter: FilterConfig{
			SampleRateHz: 1000,
			NumTaps:      101,
			FLowHz:       0.4,
			FHighHz:      10,
			SmoothWindow: 5,
			RemoveDC:     true,
		},
		Detection: DetectionConfig{
			Mode:        string(fiducial.ModePeak),
			Percent:     10,
			PeakOrder:   fiducial.DefaultPeakOrder,
			RisingOrder: fiducial.DefaultRisingOrder,
		},
		Analysis: AnalysisConfig{
			VesselLengthCm: 50,
			MaxPairs:       ptt.DefaultMaxPairs,
			WindowSeconds:  10,
			MinNewSamples:  1000,
			DisplayPoints:  1000,
			ResultsBuffer:  16,
		},
		Output: OutputConfig{
			Directory: ".",
			Samples:   true,
			Results:   true,
		},
		Mock: MockConfig{
			HeartRateBPM:   72,
			TransitTime:    80 * time.Millisecond,
			NoiseLevel:     4,
			Amplitude:      800,
			Baseline:       2000,
			SampleInterval: time.Millisecond,
			CorruptEvery:   500,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if err := c.FilterSpec().Validate(); err != nil {
		return fmt.Errorf("%w: filter: %w", ErrInvalid, err)
	}
	if _, err := frame.ParseProtocol(c.Serial.Protocol); err != nil {
		return fmt.Errorf("%w: serial: %w", ErrInvalid, err)
	}
	if _, err := fiducial.ParseMode(c.Detection.Mode); err != nil {
		return fmt.Errorf("%w: detection: %w", ErrInvalid, err)
	}
	if c.Detection.Percent < 0 || c.Detection.Percent > 100 {
		return fmt.Errorf("%w: detection: percent %g outside 0-100", ErrInvalid, c.Detection.Percent)
	}
	if c.Analysis.VesselLengthCm <= 0 {
		return fmt.Errorf("%w: analysis: vessel length %g cm must be positive", ErrInvalid, c.Analysis.VesselLengthCm)
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: serial: baud rate %d must be positive", ErrInvalid, c.Serial.BaudRate)
	}
	return nil
}

// FilterSpec returns the band-pass design parameters.
func (c *Config) FilterSpec() filter.Spec {
	return filter.Spec{
		SampleRate: c.Filter.SampleRateHz,
		Taps:       c.Filter.NumTaps,
		Low:        c.Filter.FLowHz,
		High:       c.Filter.FHighHz,
	}
}

// Detector returns the fiducial detection policy.
func (c *Config) Detector() (fiducial.Detector, error) {
	mode, err := fiducial.ParseMode(c.Detection.Mode)
	if err != nil {
		return fiducial.Detector{}, err
	}
	return fiducial.Detector{
		Mode:        mode,
		Percent:     c.Detection.Percent,
		PeakOrder:   c.Detection.PeakOrder,
		RisingOrder: c.Detection.RisingOrder,
	}, nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Protocol == "" {
		c.Serial.Protocol = def.Serial.Protocol
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}
	if c.Serial.JoinTimeout == 0 {
		c.Serial.JoinTimeout = def.Serial.JoinTimeout
	}
	if c.Serial.BufferSize == 0 {
		c.Serial.BufferSize = def.Serial.BufferSize
	}
	if c.Serial.SendTimeout == 0 {
		c.Serial.SendTimeout = def.Serial.SendTimeout
	}

	if c.Filter.SampleRateHz == 0 {
		c.Filter.SampleRateHz = def.Filter.SampleRateHz
	}
	if c.Filter.NumTaps == 0 {
		c.Filter.NumTaps = def.Filter.NumTaps
	}
	if c.Filter.FLowHz == 0 {
		c.Filter.FLowHz = def.Filter.FLowHz
	}
	if c.Filter.FHighHz == 0 {
		c.Filter.FHighHz = def.Filter.FHighHz
	}

	if c.Detection.Mode == "" {
		c.Detection.Mode = def.Detection.Mode
	}
	if c.Detection.PeakOrder == 0 {
		c.Detection.PeakOrder = def.Detection.PeakOrder
	}
	if c.Detection.RisingOrder == 0 {
		c.Detection.RisingOrder = def.Detection.RisingOrder
	}

	if c.Analysis.VesselLengthCm == 0 {
		c.Analysis.VesselLengthCm = def.Analysis.VesselLengthCm
	}
	if c.Analysis.WindowSeconds == 0 {
		c.Analysis.WindowSeconds = def.Analysis.WindowSeconds
	}
	if c.Analysis.MinNewSamples == 0 {
		c.Analysis.MinNewSamples = def.Analysis.MinNewSamples
	}
	if c.Analysis.DisplayPoints == 0 {
		c.Analysis.DisplayPoints = def.Analysis.DisplayPoints
	}
	if c.Analysis.ResultsBuffer == 0 {
		c.Analysis.ResultsBuffer = def.Analysis.ResultsBuffer
	}

	if c.Output.Directory == "" {
		c.Output.Directory = def.Output.Directory
	}

	if c.Mock.SampleInterval == 0 {
		c.Mock.SampleInterval = def.Mock.SampleInterval
	}
	if c.Mock.HeartRateBPM == 0 {
		c.Mock.HeartRateBPM = def.Mock.HeartRateBPM
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}
