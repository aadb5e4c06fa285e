package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(24, Clamp(30, -24, 24))
	assert.Equal(-24, Clamp(-30, -24, 24))
	assert.Equal(0.5, Clamp(0.5, 0.25, 4.0))
}

func TestConversions(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(2.0, CentsToRatio(1200), 1e-12)
	assert.InDelta(1.0, CentsToRatio(0), 1e-12)
	assert.InDelta(-6.0, GainToDB(DBToGain(-6)), 1e-9)
	assert.True(math.IsInf(GainToDB(0), -1))
}

func TestFreqToPitchClass(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(9, FreqToPitchClass(440, 440))
	assert.Equal(0, FreqToPitchClass(261.63, 440))
	assert.Equal(7, FreqToPitchClass(392.0, 440))
	assert.Equal(9, FreqToPitchClass(55, 440))
	assert.Equal(-1, FreqToPitchClass(0, 440))
}

func TestStats(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)
	assert.Equal(0.0, Mean(nil))
	assert.InDelta(1.0, Correlation([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.Equal(0.0, Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}))

	data := []float64{0, 2, 4}
	assert.True(MaxNormalize(data, 1e-6))
	assert.Equal([]float64{0, 0.5, 1}, data)
	assert.False(MaxNormalize([]float64{0, 0}, 1e-6))
}

func TestParseInterpolation(t *testing.T) {
	for _, method := range []InterpolationType{Linear, Cubic} {
		got, err := ParseInterpolation(method.String())
		require.NoError(t, err)
		assert.Equal(t, method, got)
	}
	got, err := ParseInterpolation(" Cubic ")
	require.NoError(t, err)
	assert.Equal(t, Cubic, got)

	_, err = ParseInterpolation("sinc")
	assert.Error(t, err)
}

func TestInterpolator(t *testing.T) {
	assert := assert.New(t)
	data := []float64{0, 1, 2, 3}

	lin := NewInterpolator(Linear)
	assert.InDelta(1.5, lin.Interpolate(data, 1.5), 1e-12)
	assert.Equal(3.0, lin.Interpolate(data, 3))
	assert.Equal(0.0, lin.Interpolate(data, 10))
	assert.InDelta(1.5, lin.Interpolate(data, 3.5), 1e-12)

	cubic := NewInterpolator(Cubic)
	assert.InDelta(1.5, cubic.Interpolate(data, 1.5), 1e-12)
	assert.Equal(2.0, cubic.Interpolate(data, 2))
}
