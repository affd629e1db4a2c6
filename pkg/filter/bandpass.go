package filter

import (
	"errors"
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"
)

// ErrInvalidSpec is returned by Design and Spec.Validate for unusable parameters.
var ErrInvalidSpec = errors.New("filter: invalid spec")

// Spec describes a band-pass FIR filter.
type Spec struct {
	SampleRate float64 // Hz
	Taps       int     // requested length, bumped to odd
	Low        float64 // lower cutoff, Hz
	High       float64 // upper cutoff, Hz
}

// Validate checks that the cutoffs are ordered and below Nyquist.
func (s Spec) Validate() error {
	switch {
	case s.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %g must be positive", ErrInvalidSpec, s.SampleRate)
	case s.Taps <= 0:
		return fmt.Errorf("%w: tap count %d must be positive", ErrInvalidSpec, s.Taps)
	case s.Low <= 0:
		return fmt.Errorf("%w: low cutoff %g must be positive", ErrInvalidSpec, s.Low)
	case s.Low >= s.High:
		return fmt.Errorf("%w: low cutoff %g must be below high cutoff %g", ErrInvalidSpec, s.Low, s.High)
	case s.High >= s.SampleRate/2:
		return fmt.Errorf("%w: high cutoff %g must be below Nyquist %g", ErrInvalidSpec, s.High, s.SampleRate/2)
	}
	return nil
}

// Kernel is a designed, immutable set of FIR coefficients.
// A Kernel may be shared between goroutines.
type Kernel struct {
	spec  Spec
	coeff []float64
	rev   []float64
}

// Design builds a Hamming-windowed sinc band-pass kernel.
func Design(spec Spec) (*Kernel, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	m := spec.Taps
	if m%2 == 0 {
		m++
	}
	fc1 := spec.Low / spec.SampleRate
	fc2 := spec.High / spec.SampleRate
	center := (m - 1) / 2

	h := make([]float64, m)
	for n := range h {
		k := float64(n - center)
		if k == 0 {
			h[n] = 2 * (fc2 - fc1)
			continue
		}
		h[n] = (math.Sin(2*math.Pi*fc2*k) - math.Sin(2*math.Pi*fc1*k)) / (math.Pi * k)
	}
	vecmath.MulBlockInPlace(h, hamming(m))

	rev := append([]float64(nil), h...)
	floats.Reverse(rev)

	return &Kernel{spec: spec, coeff: h, rev: rev}, nil
}

// hamming returns the symmetric Hamming window of length m.
func hamming(m int) []float64 {
	w := make([]float64, m)
	if m == 1 {
		w[0] = 1
		return w
	}
	for n := range w {
		w[n] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(n)/float64(m-1))
	}
	return w
}

// Len returns the number of taps.
func (k *Kernel) Len() int {
	return len(k.coeff)
}

// Spec returns the parameters the kernel was designed from.
func (k *Kernel) Spec() Spec {
	return k.spec
}

// Coefficients returns a copy of the taps.
func (k *Kernel) Coefficients() []float64 {
	return append([]float64(nil), k.coeff...)
}

// Apply filters values with zero phase shift: a centred convolution, then
// the same convolution over the time-reversed result. The output has the
// same length as the input. Inputs shorter than the kernel are returned
// as an unfiltered copy.
func (k *Kernel) Apply(values []float64) []float64 {
	if len(values) < len(k.coeff) {
		return append([]float64(nil), values...)
	}

	fwd := k.convolve(make([]float64, len(values)), values)
	floats.Reverse(fwd)
	out := k.convolve(make([]float64, len(values)), fwd)
	floats.Reverse(out)
	return out
}

// convolve writes the centred convolution of x with the kernel into dst.
// Taps that fall outside x contribute nothing.
func (k *Kernel) convolve(dst, x []float64) []float64 {
	n := len(x)
	nh := len(k.rev)
	half := nh / 2
	for i := range dst {
		lo := max(0, i+half-nh+1)
		hi := min(n-1, i+half)
		c := nh - 1 - i - half
		dst[i] = vecmath.DotProduct(k.rev[lo+c:hi+c+1], x[lo:hi+1])
	}
	return dst
}
