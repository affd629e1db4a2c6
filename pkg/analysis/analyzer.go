package analysis

import (
	"sort"
	"sync"

	"github.com/kintad/PWV3/pkg/config"
	"github.com/kintad/PWV3/pkg/filter"
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/kintad/PWV3/pkg/trace"
	"github.com/sirupsen/logrus"
)

// Update is delivered on the Results channel after every analysis run.
type Update struct {
	Result Result
	Trace  *trace.Trace
}

// Options controls the windowing and cadence of an Analyzer.
type Options struct {
	WindowSeconds float64 // trailing window kept for analysis
	MinNewSamples int     // samples that must arrive between runs
	DisplayPoints int     // points per channel in the display trace
	SmoothWindow  int     // moving-average width for the display trace
	ResultsBuffer int     // capacity of the Results channel
}

// OptionsFromConfig extracts analyzer options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WindowSeconds: cfg.Analysis.WindowSeconds,
		MinNewSamples: cfg.Analysis.MinNewSamples,
		DisplayPoints: cfg.Analysis.DisplayPoints,
		SmoothWindow:  cfg.Filter.SmoothWindow,
		ResultsBuffer: cfg.Analysis.ResultsBuffer,
	}
}

// Stats counts analyzer activity.
type Stats struct {
	Samples    uint64 // data samples consumed
	Heartbeats uint64 // keep-alive markers skipped
	Runs       uint64 // pipeline invocations
	Dropped    uint64 // updates discarded because Results was full
	Resets     uint64 // window resets after the device clock went backwards
}

// Analyzer consumes an ordered sample stream, keeps a trailing time window
// and re-runs the pipeline every MinNewSamples samples.
//
// Internally the window is a FIFO slice trimmed by timestamp. Results are
// delivered on a bounded channel that is closed when the input closes.
type Analyzer struct {
	pipeline *Pipeline
	opts     Options
	log      logrus.FieldLogger

	mu      sync.RWMutex
	samples []frame.Sample
	latest  *Result
	pending int
	stats   Stats

	results chan Update
	once    sync.Once
}

// New creates an Analyzer. A nil logger uses the logrus standard logger.
func New(p *Pipeline, opts Options, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.MinNewSamples <= 0 {
		opts.MinNewSamples = 1
	}
	if opts.ResultsBuffer <= 0 {
		opts.ResultsBuffer = 1
	}
	return &Analyzer{
		pipeline: p,
		opts:     opts,
		log:      log.WithField("component", "analyzer"),
		results:  make(chan Update, opts.ResultsBuffer),
	}
}

// NewFromConfig builds the pipeline and analyzer described by cfg.
func NewFromConfig(cfg *config.Config, log logrus.FieldLogger) (*Analyzer, error) {
	p, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}
	return New(p, OptionsFromConfig(cfg), log), nil
}

// Results returns the channel analysis updates are delivered on.
func (a *Analyzer) Results() <-chan Update {
	return a.results
}

// Process consumes samples until in is closed. Samples still waiting for a
// run when the input closes are analysed once more before Results is closed.
// Process must be called at most once.
func (a *Analyzer) Process(in <-chan frame.Sample) {
	defer a.once.Do(func() { close(a.results) })

	for s := range in {
		if a.add(s) {
			a.run()
		}
	}

	a.mu.RLock()
	pending := a.pending
	a.mu.RUnlock()
	if pending > 0 {
		a.run()
	}
	a.log.WithFields(a.fields()).Debug("input closed")
}

// add appends s to the window and reports whether a run is due.
func (a *Analyzer) add(s frame.Sample) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.IsHeartbeat() {
		a.stats.Heartbeats++
		if a.stats.Heartbeats == 1 {
			a.log.Debug("heartbeat received")
		}
		return false
	}

	if n := len(a.samples); n > 0 && s.T < a.samples[n-1].T {
		a.log.WithFields(logrus.Fields{
			"last": a.samples[n-1].T,
			"t":    s.T,
		}).Warn("device clock went backwards, restarting window")
		a.samples = a.samples[:0]
		a.pending = 0
		a.stats.Resets++
	}

	a.samples = append(a.samples, s)
	a.stats.Samples++
	a.pending++

	// Drop everything at or before the start of the window.
	if a.opts.WindowSeconds > 0 {
		cutoff := s.T - a.opts.WindowSeconds
		idx := sort.Search(len(a.samples), func(i int) bool {
			return a.samples[i].T > cutoff
		})
		if idx > 0 {
			a.samples = a.samples[idx:]
		}
	}

	return a.pending >= a.opts.MinNewSamples
}

// run analyses a snapshot of the window and publishes the update.
func (a *Analyzer) run() {
	a.mu.Lock()
	window := make([]frame.Sample, len(a.samples))
	copy(window, a.samples)
	a.pending = 0
	a.stats.Runs++
	a.mu.Unlock()

	res := a.pipeline.Run(window)
	tr := trace.Build(nil, res.Times,
		filter.Smooth(res.Filtered1, a.opts.SmoothWindow),
		filter.Smooth(res.Filtered2, a.opts.SmoothWindow),
		a.opts.DisplayPoints, float32(a.opts.WindowSeconds))

	a.mu.Lock()
	a.latest = &res
	a.mu.Unlock()

	entry := a.log.WithFields(logrus.Fields{
		"samples": res.Samples,
		"peaks1":  len(res.PeaksCh1),
		"peaks2":  len(res.PeaksCh2),
		"pairs":   res.PTT.Pairs,
	})
	if res.PTT.Stats != nil {
		entry = entry.WithFields(logrus.Fields{
			"ptt_ms": res.PTT.Stats.PTTMeanMs,
			"pwv":    res.PTT.Stats.PWVMean,
		})
	}
	entry.Debug("analysis run")

	select {
	case a.results <- Update{Result: res, Trace: tr}:
	default:
		a.mu.Lock()
		a.stats.Dropped++
		a.mu.Unlock()
		a.log.Warn("results channel full, dropping update")
	}
}

// Samples returns a copy of the current window.
func (a *Analyzer) Samples() []frame.Sample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	result := make([]frame.Sample, len(a.samples))
	copy(result, a.samples)
	return result
}

// Latest returns the most recent result, if any run has completed.
func (a *Analyzer) Latest() (Result, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.latest == nil {
		return Result{}, false
	}
	return *a.latest, true
}

// Stats returns a snapshot of the activity counters.
func (a *Analyzer) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

func (a *Analyzer) fields() logrus.Fields {
	st := a.Stats()
	return logrus.Fields{
		"samples":    st.Samples,
		"heartbeats": st.Heartbeats,
		"runs":       st.Runs,
		"dropped":    st.Dropped,
	}
}
