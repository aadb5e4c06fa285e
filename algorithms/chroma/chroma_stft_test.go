package chroma

import (
	"context"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-stage/algorithms/windowing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(freqs []float64, sampleRate int, seconds float64) []float64 {
	n := int(seconds * float64(sampleRate))
	out := make([]float64, n)
	for i := range out {
		for _, f := range freqs {
			out[i] += math.Sin(2 * math.Pi * f * float64(i) / float64(sampleRate))
		}
	}
	return out
}

func TestChromaFoldsOctaves(t *testing.T) {
	const sr = 22050
	cs := NewChromaSTFT(sr, 440, nil)

	// A2, A3, A4 all land in the A bin
	signal := tone([]float64{110, 220, 440}, sr, 1)
	chromagram, err := cs.ComputeChroma(context.Background(), signal, 4096, 2048, windowing.NewHann(4096, true))
	require.NoError(t, err)
	require.NotEmpty(t, chromagram)

	profile := MeanProfile(chromagram, 1e-9)
	require.Len(t, profile, Bins)
	assert.Equal(t, 9, Dominant(profile))
	assert.InDelta(t, 1.0, profile[9], 1e-9)
	assert.Equal(t, "A", Labels[Dominant(profile)])
}

func TestChromaRange(t *testing.T) {
	const sr = 22050
	cs := NewChromaSTFT(sr, 440, nil)
	cs.SetRange(300, 5000)

	chromagram, err := cs.ComputeChroma(context.Background(), tone([]float64{220}, sr, 0.5), 2048, 1024, windowing.NewHann(2048, true))
	require.NoError(t, err)
	// only window leakage, orders of magnitude below the tone, reaches 300 Hz
	assert.Nil(t, MeanProfile(chromagram, 10))
}

func TestMeanProfileSkipsSilentFrames(t *testing.T) {
	frames := [][]float64{
		make([]float64, Bins),
		{4, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0},
	}
	profile := MeanProfile(frames, 1e-6)
	require.Len(t, profile, Bins)
	assert.InDelta(t, 0.5, profile[0], 1e-12)
	assert.InDelta(t, 0.25, profile[4], 1e-12)
	assert.InDelta(t, 0.5, profile[7], 1e-12)

	assert.Nil(t, MeanProfile(nil, 1e-6))
	assert.Equal(t, -1, Dominant(nil))
}
