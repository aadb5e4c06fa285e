package spectral

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-stage/algorithms/windowing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestPeakFrequency(t *testing.T) {
	f := NewFFT()
	assert.InDelta(t, 440.0, f.PeakFrequency(sine(440, 44100, 8192), 44100), 2.0)
	assert.InDelta(t, 1000.0, f.PeakFrequency(sine(1000, 22050, 4096), 22050), 3.0)
	assert.Equal(t, 0.0, f.PeakFrequency(nil, 44100))
}

func TestInverseRoundTrip(t *testing.T) {
	f := NewFFT()
	x := []float64{1, 2, 3, 4, 5}
	back := f.ComputeInverseReal(f.Compute(x))
	require.Len(t, back, len(x))
	for i := range x {
		assert.InDelta(t, x[i], back[i], 1e-9)
	}
}

func TestSTFTFindsTone(t *testing.T) {
	const (
		sr     = 8000
		window = 1024
		hop    = 512
	)
	signal := sine(1000, sr, sr)
	stft := NewSTFT(2)

	res, err := stft.ComputeWithWindow(context.Background(), signal, window, hop, sr, windowing.NewHann(window, true))
	require.NoError(t, err)

	assert.Equal(t, (sr-window)/hop+1, res.TimeFrames)
	assert.Equal(t, window/2+1, res.FreqBins)
	assert.InDelta(t, 7.8125, res.FreqResolution, 1e-9)

	want := int(math.Round(1000 / res.FreqResolution))
	for _, frame := range res.Magnitude {
		best := 0
		for k := range frame {
			if frame[k] > frame[best] {
				best = k
			}
		}
		assert.Equal(t, want, best)
	}
	assert.InDelta(t, 1000.0, res.BinFrequency(want), 1e-9)
}

func TestSTFTErrors(t *testing.T) {
	stft := NewSTFT(0)
	ctx := context.Background()

	_, err := stft.ComputeWithWindow(ctx, nil, 256, 128, 8000, nil)
	assert.Error(t, err)
	_, err = stft.ComputeWithWindow(ctx, make([]float64, 100), 256, 128, 8000, nil)
	assert.Error(t, err)
	_, err = stft.ComputeWithWindow(ctx, make([]float64, 1000), 256, 0, 8000, nil)
	assert.Error(t, err)

	// window of the wrong size fails every frame
	_, err = stft.ComputeWithWindow(ctx, make([]float64, 1000), 256, 128, 8000, windowing.NewHann(64, true))
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = stft.ComputeWithWindow(cancelled, make([]float64, 4096), 256, 128, 8000, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
