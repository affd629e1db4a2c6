package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kintad/PWV3/pkg/analysis"
	"github.com/kintad/PWV3/pkg/config"
	"github.com/kintad/PWV3/pkg/device"
	"github.com/kintad/PWV3/pkg/record"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const clearScreen = "\033[H\033[2J"

type measureFlags struct {
	port     string
	mock     bool
	protocol string
	duration time.Duration
	scope    bool
	width    int
	height   int
}

func newMeasureCmd(a *app) *cobra.Command {
	var f measureFlags

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Acquire from the sensor board and report PTT/PWV live",
		Long: `Measure connects to the sensor board, analyses a trailing window every
time enough new samples have arrived and records samples and results as
CSV in the output directory. Stop with Ctrl-C or --duration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.port != "" {
				a.cfg.Serial.Port = f.port
			}
			if f.protocol != "" {
				a.cfg.Serial.Protocol = f.protocol
			}
			if err := a.cfg.Validate(); err != nil {
				return a.fail(err, "invalid configuration")
			}

			dev, err := a.newDevice(f.mock)
			if err != nil {
				return a.fail(err, "failed to create device")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.duration)
				defer cancel()
			}

			view := func(u analysis.Update) {}
			if f.scope {
				view = func(u analysis.Update) {
					fmt.Fprint(a.out, clearScreen)
					renderScope(a.out, u.Trace, f.width, f.height)
					writeSummary(a.out, a.cfg.Serial.Port, u.Result)
				}
			}

			res, err := a.measure(ctx, dev, view)
			if err != nil {
				return err
			}
			writeSummary(a.out, a.cfg.Serial.Port, res)
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.port, "port", "p", "", "serial port override (e.g. COM3 or /dev/ttyACM0)")
	cmd.Flags().BoolVar(&f.mock, "mock", false, "use the simulated board instead of a serial port")
	cmd.Flags().StringVar(&f.protocol, "protocol", "", "wire protocol override (binary or text)")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&f.scope, "scope", true, "draw the filtered waveforms after every analysis run")
	cmd.Flags().IntVar(&f.width, "width", 100, "scope width in characters")
	cmd.Flags().IntVar(&f.height, "height", 20, "scope height in lines")
	return cmd
}

// recorder is the sink a measurement writes to.
type recorder interface {
	record.Sink
	Paths() []string
}

func (a *app) createRecorder(out config.OutputConfig) (recorder, error) {
	if a.newRecorder != nil {
		return a.newRecorder(out)
	}
	sink, err := record.Create(out.Directory, time.Now(), out.Samples, out.Results)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

func (a *app) newDevice(mock bool) (device.Device, error) {
	opts, err := device.OptionsFromConfig(&a.cfg.Serial)
	if err != nil {
		return nil, err
	}
	if mock {
		a.cfg.Serial.Port = "mock"
		return device.NewMock(&a.cfg.Mock, opts.Protocol, a.log), nil
	}
	return device.NewSerial(opts, a.log), nil
}

// measure runs the acquisition chain until ctx is done or the transport
// fails, and returns the last analysis result.
//
//	device -> service -> analyzer -> view, sink
//	                  \-> sink
func (a *app) measure(ctx context.Context, dev device.Device, view func(analysis.Update)) (analysis.Result, error) {
	an, err := analysis.NewFromConfig(a.cfg, a.log)
	if err != nil {
		return analysis.Result{}, a.fail(err, "failed to build analyzer")
	}

	svc := device.NewService(dev, a.cfg.Serial.SendTimeout, a.log)
	analysisSub := svc.Subscribe(a.cfg.Serial.BufferSize)

	var (
		sink      recorder
		recordSub *device.Subscription
	)
	out := a.cfg.Output
	if out.Samples || out.Results {
		sink, err = a.createRecorder(out)
		if err != nil {
			return analysis.Result{}, a.fail(err, "failed to create output files")
		}
		recordSub = svc.Subscribe(a.cfg.Serial.BufferSize)
	}

	if err := svc.Start(); err != nil {
		if sink != nil {
			sink.Close()
		}
		return analysis.Result{}, a.fail(err, "failed to start acquisition")
	}
	a.log.WithField("port", a.cfg.Serial.Port).Info("measurement started")

	go an.Process(analysisSub.C)

	results := make(chan analysis.Update, a.cfg.Analysis.ResultsBuffer)
	pumped := make(chan error, 1)
	if sink != nil {
		go func() {
			pumped <- record.Pump(context.Background(), recordSub.C, results, sink)
		}()
	}

	var fault, pumpErr error
	updates := an.Results()
	done := ctx.Done()
	stopped := false
	shutdown := func() {
		if !stopped {
			stopped = true
			a.stop(svc)
		}
	}

	for updates != nil {
		select {
		case <-done:
			done = nil
			shutdown()
		case err := <-svc.Faults():
			fault = err
			shutdown()
		case err := <-pumped:
			// The recorder gave up. Drop its feed so delivery does not wait
			// on it, then stop.
			pumpErr = err
			pumped = nil
			recordSub.Close()
			shutdown()
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			view(u)
			if sink == nil || pumped == nil {
				continue
			}
			select {
			case results <- u:
			default:
				a.log.Warn("recorder behind, dropping result")
			}
		}
	}
	shutdown()
	close(results)

	if sink != nil && pumped != nil {
		pumpErr = <-pumped
	}

	var errs []error
	if pumpErr != nil {
		errs = append(errs, a.fail(pumpErr, "failed to record measurement"))
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			errs = append(errs, a.fail(err, "failed to close output files"))
		}
		a.log.WithField("files", sink.Paths()).Info("measurement saved")
	}
	if fault != nil {
		errs = append(errs, fmt.Errorf("transport fault: %w", fault))
	}

	st := an.Stats()
	a.log.WithFields(logrus.Fields{
		"samples":    st.Samples,
		"heartbeats": st.Heartbeats,
		"runs":       st.Runs,
		"dropped":    st.Dropped,
	}).Info("measurement stopped")

	latest, _ := an.Latest()
	return latest, errors.Join(errs...)
}

func (a *app) stop(svc *device.Service) {
	if err := svc.Stop(); err != nil {
		a.log.WithError(err).Warn("failed to stop acquisition cleanly")
	}
}
