package tonal

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Southclaws/fault/fmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-stage/harmony"
)

func chord(freqs []float64, sampleRate int, seconds float64) []float64 {
	out := make([]float64, int(seconds*float64(sampleRate)))
	for i := range out {
		for _, f := range freqs {
			out[i] += math.Sin(2*math.Pi*f*float64(i)/float64(sampleRate)) / float64(len(freqs))
		}
	}
	return out
}

var (
	cMajorTriad = []float64{261.63, 329.63, 392.00}
	aMinorTriad = []float64{220.00, 261.63, 329.63}
)

func TestRotatePutsTonicOnRoot(t *testing.T) {
	major := profiles[KeyProfileTemperley].MajorProfile
	r := rotate(major, 7)
	assert.Equal(t, major[0], r[7])
	assert.Equal(t, major[4], r[11])
	assert.Equal(t, major[7], r[2])
}

func TestEstimateKeyFromChroma(t *testing.T) {
	ke := NewKeyEstimator(KeyProfileTemperley, harmony.Sharp)

	// C E G present, everything else silent
	vec := make([]float64, 12)
	vec[0], vec[4], vec[7] = 1, 1, 1

	res := ke.EstimateKey(vec)
	require.Len(t, res.Candidates, 24)
	assert.Equal(t, "C", res.Candidates[0].Key.String())
	assert.Equal(t, "Em", res.Candidates[1].Key.String())
	assert.Greater(t, res.Clarity, 0.0)

	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Confidence, res.Candidates[i].Confidence)
		assert.GreaterOrEqual(t, res.Correlations[i-1], res.Correlations[i])
	}
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 100.0)
	}

	assert.Empty(t, ke.EstimateKey(make([]float64, 12)).Candidates)
	assert.Empty(t, ke.EstimateKey([]float64{1, 2}).Candidates)
}

func TestConfidenceDampedWhenClose(t *testing.T) {
	ke := NewKeyEstimator(KeyProfileTemperley, harmony.Sharp)

	clear := make([]float64, 12)
	clear[0], clear[4], clear[7] = 1, 1, 1

	// relative major and minor share most notes
	blurred := make([]float64, 12)
	blurred[0], blurred[4], blurred[7], blurred[9] = 1, 1, 1, 1

	a := ke.EstimateKey(clear)
	b := ke.EstimateKey(blurred)
	require.NotEmpty(t, a.Candidates)
	require.NotEmpty(t, b.Candidates)

	assert.Less(t, b.Clarity, a.Clarity)
	assert.Less(t, b.Candidates[0].Confidence, 100*b.Correlations[0])
}

func TestDetectKeyFromBufferCMajorTriad(t *testing.T) {
	const sr = 22050
	candidates := DetectKeyFromBuffer(chord(cMajorTriad, sr, 3), sr)
	require.Len(t, candidates, 24)

	top := candidates[0]
	assert.Equal(t, harmony.PitchClass(0), top.Key.Root)
	assert.Equal(t, harmony.Major, top.Key.Quality)
	for _, c := range candidates[1:] {
		assert.Greater(t, top.Confidence, c.Confidence)
	}
}

func TestDetectorKrumhanslAMinor(t *testing.T) {
	const sr = 22050
	params := DefaultDetectorParams()
	params.Profile = KeyProfileKrumhansl
	params.WindowSize = 4096
	params.HopSize = 2048

	res, err := NewKeyDetector(params).Analyze(context.Background(), chord(aMinorTriad, sr, 2), sr)
	require.NoError(t, err)
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "Am", best.Key.String())
	assert.Equal(t, "krumhansl", res.Profile)
}

func TestDetectInconclusive(t *testing.T) {
	const sr = 22050
	det := NewKeyDetector(DefaultDetectorParams())
	ctx := context.Background()

	for name, buf := range map[string][]float64{
		"empty":  nil,
		"short":  make([]float64, 1000),
		"silent": make([]float64, sr*2),
	} {
		t.Run(name, func(t *testing.T) {
			candidates, err := det.Detect(ctx, buf, sr)
			assert.Empty(t, candidates)
			assert.True(t, errors.Is(err, ErrDetectionInconclusive))
			assert.Equal(t, "Could not detect key", fmsg.GetIssue(err))
			assert.Empty(t, DetectKeyFromBuffer(buf, sr))
		})
	}
}

func TestDetectCancelled(t *testing.T) {
	const sr = 22050
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewKeyDetector(DefaultDetectorParams()).Detect(ctx, chord(cMajorTriad, sr, 3), sr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCenterSegment(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i)
	}
	seg := centerSegment(samples, 10, 2)
	require.Len(t, seg, 20)
	assert.Equal(t, 40.0, seg[0])
	assert.Len(t, centerSegment(samples, 10, 0), 100)
	assert.Len(t, centerSegment(samples, 10, 60), 100)
}

func TestParseKeyProfile(t *testing.T) {
	p, err := ParseKeyProfile("Krumhansl")
	require.NoError(t, err)
	assert.Equal(t, KeyProfileKrumhansl, p)
	assert.Equal(t, "temperley", KeyProfileTemperley.String())

	_, err = ParseKeyProfile("edm")
	assert.Error(t, err)
}

func TestKeyRelations(t *testing.T) {
	c := harmony.NewKey(0, harmony.Major, harmony.Sharp)
	assert.Equal(t, "G", GetDominantKey(c).String())
	assert.Equal(t, "F", GetSubdominantKey(c).String())
	assert.True(t, IsKeyCompatible(c, GetDominantKey(c)))
}
