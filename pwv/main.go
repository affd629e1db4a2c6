// Command pwv measures pulse transit time and pulse wave velocity from a
// two-node PPG sensor board, live or from a saved recording.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kintad/PWV3/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
	log *logrus.Logger
	out io.Writer

	// newRecorder overrides the CSV recorder measure writes to.
	newRecorder func(config.OutputConfig) (recorder, error)
}

func main() {
	if err := newRootCmd(&app{out: os.Stdout}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pwv",
		Short: "Pulse transit time and pulse wave velocity from two PPG nodes",
		Long: `pwv reads two photoplethysmography channels from the sensor board,
band-pass filters them, detects a fiducial point on every beat and reports
the pulse transit time between the nodes and the resulting pulse wave
velocity over the configured vessel length.

Commands:
  measure   acquire live from the board (or --mock) and record CSV
  analyze   run the analysis on a saved measurement CSV
  ports     list serial ports`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "configuration file path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(newMeasureCmd(a), newAnalyzeCmd(a), newPortsCmd(a))

	root.SetOut(a.out)
	return root
}

// setup loads the configuration and configures logging.
func (a *app) setup() error {
	a.log = logrus.New()
	a.log.SetOutput(os.Stderr)

	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.log.WithError(err).Error("failed to load configuration")
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	if err := configureLogger(a.log, level, cfg.Log.Format); err != nil {
		a.log.WithError(err).Error("invalid logging configuration")
		return err
	}
	return nil
}

func configureLogger(log *logrus.Logger, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// fail logs err and hands it back to cobra.
func (a *app) fail(err error, msg string) error {
	a.log.WithError(err).Error(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
