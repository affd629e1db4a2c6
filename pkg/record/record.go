// Package record persists samples and analysis results as CSV and reads
// saved measurements back.
package record

import (
	"context"
	"errors"

	"github.com/kintad/PWV3/pkg/analysis"
	"github.com/kintad/PWV3/pkg/frame"
)

// ErrUnknownHeader is returned by Load for a file it cannot interpret.
var ErrUnknownHeader = errors.New("record: unknown header")

// Sink receives everything a measurement produces.
type Sink interface {
	WriteSample(s frame.Sample) error
	WriteResult(r analysis.Result) error
	Close() error
}

// Pump drains samples and updates into sink until both channels are closed
// or ctx is done. Either channel may be nil. The first write error stops
// the pump. Pump does not close sink.
func Pump(ctx context.Context, samples <-chan frame.Sample, updates <-chan analysis.Update, sink Sink) error {
	for samples != nil || updates != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			if err := sink.WriteSample(s); err != nil {
				return err
			}
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if err := sink.WriteResult(u.Result); err != nil {
				return err
			}
		}
	}
	return nil
}
