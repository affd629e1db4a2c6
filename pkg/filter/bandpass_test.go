package filter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func defaultSpec() Spec {
	return Spec{SampleRate: 1000, Taps: 101, Low: 0.4, High: 10}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"default", defaultSpec(), false},
		{"zero sample rate", Spec{SampleRate: 0, Taps: 101, Low: 0.4, High: 10}, true},
		{"zero taps", Spec{SampleRate: 1000, Taps: 0, Low: 0.4, High: 10}, true},
		{"zero low", Spec{SampleRate: 1000, Taps: 101, Low: 0, High: 10}, true},
		{"low equals high", Spec{SampleRate: 1000, Taps: 101, Low: 10, High: 10}, true},
		{"low above high", Spec{SampleRate: 1000, Taps: 101, Low: 20, High: 10}, true},
		{"high at nyquist", Spec{SampleRate: 1000, Taps: 101, Low: 1, High: 500}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDesignLength(t *testing.T) {
	tests := []struct {
		taps int
		want int
	}{
		{101, 101},
		{100, 101},
		{1, 1},
		{2, 3},
	}

	for _, tt := range tests {
		spec := defaultSpec()
		spec.Taps = tt.taps
		k, err := Design(spec)
		require.NoError(t, err)
		assert.Equal(t, tt.want, k.Len(), "taps=%d", tt.taps)
		assert.Equal(t, spec, k.Spec())
	}
}

func TestDesignCoefficients(t *testing.T) {
	spec := defaultSpec()
	k, err := Design(spec)
	require.NoError(t, err)

	h := k.Coefficients()
	m := len(h)
	center := m / 2

	// Hamming is exactly 1 at the centre of an odd window.
	assert.InDelta(t, 2*(spec.High-spec.Low)/spec.SampleRate, h[center], 1e-12)

	for i := 0; i < m/2; i++ {
		assert.InDelta(t, h[i], h[m-1-i], 1e-15, "tap %d not symmetric", i)
	}

	// Edge taps carry the 0.08 Hamming floor.
	kk := float64(-center)
	ideal := (math.Sin(2*math.Pi*spec.High/spec.SampleRate*kk) - math.Sin(2*math.Pi*spec.Low/spec.SampleRate*kk)) / (math.Pi * kk)
	assert.InDelta(t, 0.08*ideal, h[0], 1e-12)
}

func TestCoefficientsIsCopy(t *testing.T) {
	k, err := Design(defaultSpec())
	require.NoError(t, err)

	h := k.Coefficients()
	h[0] = 42
	assert.NotEqual(t, 42.0, k.Coefficients()[0])
}

func TestDesignInvalid(t *testing.T) {
	_, err := Design(Spec{SampleRate: 1000, Taps: 101, Low: 10, High: 5})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}

func TestApplyShortInput(t *testing.T) {
	k, err := Design(defaultSpec())
	require.NoError(t, err)

	in := []float64{1, 2, 3, 4}
	out := k.Apply(in)
	assert.Equal(t, in, out)

	out[0] = 99
	assert.Equal(t, 1.0, in[0], "short input must be copied, not aliased")

	assert.Empty(t, k.Apply(nil))
}

func TestApplyPreservesLength(t *testing.T) {
	k, err := Design(defaultSpec())
	require.NoError(t, err)

	for _, n := range []int{101, 102, 500, 2048} {
		assert.Len(t, k.Apply(make([]float64, n)), n)
	}
}

func TestApplyTimeReversalSymmetry(t *testing.T) {
	k, err := Design(Spec{SampleRate: 1000, Taps: 31, Low: 1, High: 40})
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	x := make([]float64, 300)
	for i := range x {
		x[i] = rng.NormFloat64()
	}

	y := k.Apply(x)

	xr := append([]float64(nil), x...)
	floats.Reverse(xr)
	yr := k.Apply(xr)
	floats.Reverse(yr)

	for i := range y {
		assert.InDelta(t, y[i], yr[i], 1e-9, "index %d", i)
	}
}

func TestApplyZeroPhaseImpulse(t *testing.T) {
	k, err := Design(defaultSpec())
	require.NoError(t, err)

	const n, p = 1001, 500
	x := make([]float64, n)
	x[p] = 1

	y := k.Apply(x)
	assert.Equal(t, p, floats.MaxIdx(y))
	for d := 1; d < 200; d++ {
		assert.InDelta(t, y[p-d], y[p+d], 1e-12, "offset %d", d)
	}
}

func TestApplyKeepsPeakPosition(t *testing.T) {
	k, err := Design(defaultSpec())
	require.NoError(t, err)

	const fs = 1000.0
	x := make([]float64, 5000)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * 1.0 * float64(i) / fs)
	}

	y := k.Apply(x)

	// Away from the edges the output is a scaled copy of the input.
	mid := x[1000:2000]
	assert.Equal(t, floats.MaxIdx(mid), floats.MaxIdx(y[1000:2000]))
}
