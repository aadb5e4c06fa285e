package stretch

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestGranularUnityReproducesInput(t *testing.T) {
	const sr = 8000
	src := tone(440, sr, sr)
	for i := range src {
		src[i] += 0.1 * math.Sin(float64(i)*0.013)
	}

	g := NewGranular(src, sr, DefaultGrainSeconds)
	require.Equal(t, 1440, g.GrainSize())

	// odd block size exercises the ready buffer across calls
	out := make([]float64, 0, len(src))
	block := make([]float64, 333)
	for len(out) < len(src) {
		n := g.Process(block)
		out = append(out, block[:n]...)
	}
	out = out[:len(src)]

	for i := range src {
		if math.Abs(src[i]-out[i]) > 1e-9 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], src[i])
		}
	}
	assert.True(t, g.Done())
}

func TestGranularCubicUnity(t *testing.T) {
	const sr = 8000
	src := tone(330, sr, sr/2)
	g := NewGranular(src, sr, DefaultGrainSeconds)
	g.SetInterpolation(common.Cubic)

	out := make([]float64, len(src)+g.GrainSize())
	n := g.Process(out)
	require.GreaterOrEqual(t, n, len(src))
	for i := range src {
		assert.InDelta(t, src[i], out[i], 1e-9)
	}
}

func TestGranularPitchShiftMovesPeak(t *testing.T) {
	const sr = 8000
	g := NewGranular(tone(440, sr, 2*sr), sr, DefaultGrainSeconds)
	g.SetPitchRatio(math.Pow(2, 3.0/12))

	out := make([]float64, 8192)
	g.Process(out)

	peak := spectral.NewFFT().PeakFrequency(out[2048:6144], sr)
	assert.InDelta(t, 523.25, peak, 15)
}

func TestGranularPitchCents(t *testing.T) {
	const sr = 8000
	g := NewGranular(tone(440, sr, 2*sr), sr, DefaultGrainSeconds)
	g.SetPitchCents(-1200)

	out := make([]float64, 8192)
	g.Process(out)

	peak := spectral.NewFFT().PeakFrequency(out[2048:6144], sr)
	assert.InDelta(t, 220, peak, 10)
}

func TestGranularTempoKeepsPitch(t *testing.T) {
	const sr = 8000
	g := NewGranular(tone(440, sr, 2*sr), sr, DefaultGrainSeconds)
	g.SetTempo(0.5)

	out := make([]float64, 8192)
	g.Process(out)

	peak := spectral.NewFFT().PeakFrequency(out[2048:6144], sr)
	assert.InDelta(t, 440, peak, 15)
	assert.InDelta(t, 4096, g.SourcePosition(), 1e-6)
}

func TestGranularTempoChangesDuration(t *testing.T) {
	const sr = 8000
	const length = 2 * sr
	g := NewGranular(tone(440, sr, length), sr, DefaultGrainSeconds)
	g.SetTempo(2)

	produced := 0
	block := make([]float64, 100)
	for !g.Done() && produced < 2*length {
		produced += g.Process(block)
	}
	assert.InDelta(t, length/2, produced, 100)
}

func TestGranularSeekAndClamp(t *testing.T) {
	const sr = 8000
	src := tone(440, sr, sr)
	g := NewGranular(src, sr, DefaultGrainSeconds)

	g.Seek(4000)
	assert.Equal(t, 4000.0, g.SourcePosition())

	out := make([]float64, 100)
	g.Process(out)
	for i := range out {
		assert.InDelta(t, src[4000+i], out[i], 1e-9)
	}

	g.Seek(-10)
	assert.Equal(t, 0.0, g.SourcePosition())
	g.Seek(len(src) + 50)
	assert.True(t, g.Done())

	g.SetTempo(100)
	g.SetPitchRatio(-1)
	g.Seek(0)
	g.Process(out)
	assert.InDelta(t, 100*MaxTempo, g.SourcePosition(), 1e-6)
}
