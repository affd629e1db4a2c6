package fiducial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"peak", ModePeak, false},
		{"Rising", ModeRising, false},
		{" PEAK ", ModePeak, false},
		{"foot", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectorOrder(t *testing.T) {
	assert.Equal(t, DefaultPeakOrder, Detector{Mode: ModePeak}.Order())
	assert.Equal(t, DefaultRisingOrder, Detector{Mode: ModeRising}.Order())
	assert.Equal(t, 7, Detector{Mode: ModePeak, PeakOrder: 7, RisingOrder: 9}.Order())
	assert.Equal(t, 9, Detector{Mode: ModeRising, PeakOrder: 7, RisingOrder: 9}.Order())
}

func TestDetectorPeakMode(t *testing.T) {
	centres := []int{500, 1500, 2500, 3500, 4500}
	values := pulseTrain(5000, centres, 50)

	d := NewDetector(ModePeak, 10)
	peaks, rising := d.Detect(timeAxis(5000, 1000), values)

	assert.Equal(t, centres, peaks)
	assert.Nil(t, rising)
	assert.Equal(t, peaks, d.Fiducials(peaks, rising))
}

func TestDetectorRisingMode(t *testing.T) {
	const n = 5000
	centres := []int{500, 1500, 2500, 3500, 4500}
	times := timeAxis(n, 1000)

	d := NewDetector(ModeRising, 10)
	peaks, rising := d.Detect(times, pulseTrain(n, centres, 50))

	require.Equal(t, centres, peaks)
	require.Len(t, rising, len(peaks))
	for i := range rising {
		assert.Less(t, rising[i], peaks[i])
		assert.Greater(t, rising[i], peaks[i]-250)
		if i > 0 {
			assert.Greater(t, rising[i], rising[i-1])
		}
	}
	assert.Equal(t, rising, d.Fiducials(peaks, rising))
}

func TestDetectorRisingShiftInvariant(t *testing.T) {
	const n, shift = 5000, 80
	times := timeAxis(n, 1000)

	c1 := []int{500, 1500, 2500, 3500}
	c2 := make([]int, len(c1))
	for i, c := range c1 {
		c2[i] = c + shift
	}

	d := NewDetector(ModeRising, 10)
	_, r1 := d.Detect(times, pulseTrain(n, c1, 50))
	_, r2 := d.Detect(times, pulseTrain(n, c2, 50))

	require.Len(t, r2, len(r1))
	for i := range r1 {
		assert.InDelta(t, shift, r2[i]-r1[i], 1, "beat %d", i)
	}
}

func TestDetectorRisingDropsNonAdvancing(t *testing.T) {
	// Two sharp peaks over a flat floor: the floor's first sample is the
	// baseline for both, so the second foot must not repeat the first.
	values := []float64{0, 0, 0, 5, 0, 0, 0, 5, 0, 0, 0}
	times := timeAxis(len(values), 1)

	d := Detector{Mode: ModeRising, Percent: 0, RisingOrder: 2}
	peaks, rising := d.Detect(times, values)

	assert.Equal(t, []int{3, 7}, peaks)
	assert.Equal(t, []int{0}, rising)
}

func TestDetectorPercentClamped(t *testing.T) {
	values := pulseTrain(3000, []int{1000, 2000}, 50)
	times := timeAxis(3000, 1000)

	_, over := Detector{Mode: ModeRising, Percent: 150, RisingOrder: 200}.Detect(times, values)
	_, full := Detector{Mode: ModeRising, Percent: 100, RisingOrder: 200}.Detect(times, values)
	assert.Equal(t, full, over)
}
