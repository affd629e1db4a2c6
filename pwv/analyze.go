package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kintad/PWV3/pkg/analysis"
	"github.com/kintad/PWV3/pkg/record"
	"github.com/kintad/PWV3/pkg/report"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type analyzeFlags struct {
	mode    string
	percent float64
	vessel  float64
	plot    string
	json    bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze FILE.csv",
		Short: "Analyze a saved measurement",
		Long: `Analyze loads a CSV written by "pwv measure" (Time(s),Node1,Node2) or a
single-channel time,value file and runs the full analysis over it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("mode") {
				a.cfg.Detection.Mode = f.mode
			}
			if flags.Changed("percent") {
				a.cfg.Detection.Percent = f.percent
			}
			if flags.Changed("vessel") {
				a.cfg.Analysis.VesselLengthCm = f.vessel
			}
			return a.analyze(args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.mode, "mode", "", "fiducial mode (peak or rising)")
	cmd.Flags().Float64Var(&f.percent, "percent", 0, "rising threshold in percent of the pulse height")
	cmd.Flags().Float64Var(&f.vessel, "vessel", 0, "vessel length between the nodes in cm")
	cmd.Flags().StringVar(&f.plot, "plot", "", "write a PNG plot of the analysis to this path")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) analyze(path string, f analyzeFlags) error {
	if err := a.cfg.Validate(); err != nil {
		return a.fail(err, "invalid configuration")
	}

	samples, err := record.LoadFile(path)
	if err != nil {
		return a.fail(err, "failed to load measurement")
	}

	p, err := analysis.NewPipeline(a.cfg)
	if err != nil {
		return a.fail(err, "failed to build pipeline")
	}
	res := p.Run(samples)

	a.log.WithFields(logrus.Fields{
		"file":    path,
		"samples": res.Samples,
		"pairs":   res.PTT.Pairs,
	}).Debug("analysis complete")

	if f.plot != "" {
		opts := report.DefaultOptions()
		opts.Title = path
		if err := report.WritePNG(f.plot, res, opts); err != nil {
			return a.fail(err, "failed to write plot")
		}
		a.log.WithField("path", f.plot).Info("plot written")
	}

	if f.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	writeSummary(a.out, path, res)
	return nil
}

// writeSummary prints a human-readable report of res.
func writeSummary(w io.Writer, source string, res analysis.Result) {
	fid1, fid2 := res.Fiducials()

	fmt.Fprintf(w, "source:   %s\n", source)
	fmt.Fprintf(w, "samples:  %d (%.3f-%.3f s)\n", res.Samples, res.Start, res.End)
	fmt.Fprintf(w, "mode:     %s\n", res.Mode)
	fmt.Fprintf(w, "beats:    node1 %d, node2 %d\n", len(fid1), len(fid2))
	fmt.Fprintf(w, "pairs:    %d\n", res.PTT.Pairs)

	if !res.PTT.Valid() {
		fmt.Fprintln(w, "PTT/PWV:  no valid pairs")
		return
	}
	st := res.PTT.Stats
	fmt.Fprintf(w, "PTT:      %.1f ± %.1f ms\n", st.PTTMeanMs, st.PTTStdMs)
	fmt.Fprintf(w, "PWV:      %.2f ± %.2f m/s\n", st.PWVMean, st.PWVStd)
}
