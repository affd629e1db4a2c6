package device

import (
	"github.com/kintad/PWV3/pkg/frame"
	"github.com/sirupsen/logrus"
)

// stream decodes raw port bytes into samples. Framing corruption is only
// logged at debug level.
type stream struct {
	dec    frame.Decoder
	unwrap *frame.Unwrapper // nil when disabled
	log    logrus.FieldLogger
	last   frame.Stats
}

func newStream(p frame.Protocol, unwrap bool, log logrus.FieldLogger) (*stream, error) {
	dec, err := frame.NewDecoder(p)
	if err != nil {
		return nil, err
	}
	s := &stream{dec: dec, log: log}
	if unwrap {
		s.unwrap = &frame.Unwrapper{}
	}
	return s, nil
}

func (s *stream) decode(p []byte) []frame.Sample {
	out := s.dec.Feed(p)

	st := s.dec.Stats()
	if st.Dropped > s.last.Dropped || st.Malformed > s.last.Malformed {
		s.log.WithFields(logrus.Fields{
			"dropped":   st.Dropped - s.last.Dropped,
			"malformed": st.Malformed - s.last.Malformed,
		}).Debug("skipped corrupt input")
	}
	s.last = st

	if s.unwrap != nil {
		for i := range out {
			out[i] = s.unwrap.Unwrap(out[i])
		}
	}
	return out
}

func (s *stream) stats() frame.Stats {
	return s.dec.Stats()
}
