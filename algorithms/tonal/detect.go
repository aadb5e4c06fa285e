package tonal

import (
	"context"
	"errors"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/RyanBlaney/sonido-stage/algorithms/chroma"
	"github.com/RyanBlaney/sonido-stage/algorithms/spectral"
	"github.com/RyanBlaney/sonido-stage/algorithms/windowing"
	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
)

// ErrDetectionInconclusive is returned when a buffer is empty, shorter than
// one analysis window, or silent.
var ErrDetectionInconclusive = errors.New("key detection inconclusive")

// DetectorParams configures audio key detection
type DetectorParams struct {
	WindowSize     int              `json:"window_size"`
	HopSize        int              `json:"hop_size"`
	SegmentSeconds float64          `json:"segment_seconds"` // centre segment analysed, 0 for whole buffer
	MinFreq        float64          `json:"min_freq"`
	MaxFreq        float64          `json:"max_freq"`
	TuningFreq     float64          `json:"tuning_freq"`
	EnergyFloor    float64          `json:"energy_floor"` // frames with less peak chroma energy are skipped
	Profile        KeyProfile       `json:"profile"`
	Notation       harmony.Notation `json:"notation"`
	Workers        int              `json:"workers"`
}

// DefaultDetectorParams analyses the middle minute with 8192-sample frames
func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		WindowSize:     8192,
		HopSize:        4096,
		SegmentSeconds: 60,
		MinFreq:        60,
		MaxFreq:        5000,
		TuningFreq:     440,
		EnergyFloor:    1e-6,
		Profile:        KeyProfileTemperley,
		Notation:       harmony.Sharp,
	}
}

// KeyDetector runs the chroma and template pipeline over decoded audio
type KeyDetector struct {
	params    DetectorParams
	stft      *spectral.STFT
	estimator *KeyEstimator
	logger    logging.Logger
}

// NewKeyDetector creates a detector. Zero-valued sizes fall back to defaults.
func NewKeyDetector(params DetectorParams) *KeyDetector {
	def := DefaultDetectorParams()
	if params.WindowSize <= 0 {
		params.WindowSize = def.WindowSize
	}
	if params.HopSize <= 0 {
		params.HopSize = params.WindowSize / 2
	}
	if params.MaxFreq <= params.MinFreq {
		params.MinFreq, params.MaxFreq = def.MinFreq, def.MaxFreq
	}
	if params.TuningFreq <= 0 {
		params.TuningFreq = def.TuningFreq
	}
	return &KeyDetector{
		params:    params,
		stft:      spectral.NewSTFT(params.Workers),
		estimator: NewKeyEstimator(params.Profile, params.Notation),
		logger: logging.WithFields(logging.Fields{
			"component": "key_detector",
		}),
	}
}

// DetectKeyFromBuffer ranks all 24 keys for mono samples using the default
// parameters. Empty, short or silent input yields an empty list.
func DetectKeyFromBuffer(samples []float64, sampleRate int) []harmony.KeyCandidate {
	candidates, err := NewKeyDetector(DefaultDetectorParams()).Detect(context.Background(), samples, sampleRate)
	if err != nil {
		return []harmony.KeyCandidate{}
	}
	return candidates
}

// Detect ranks all 24 keys, highest confidence first. It scans the whole
// segment, so callers should run it off goroutines that serve playback.
func (kd *KeyDetector) Detect(ctx context.Context, samples []float64, sampleRate int) ([]harmony.KeyCandidate, error) {
	result, err := kd.Analyze(ctx, samples, sampleRate)
	if err != nil {
		return []harmony.KeyCandidate{}, err
	}
	return result.Candidates, nil
}

// Analyze is Detect returning the full estimation result
func (kd *KeyDetector) Analyze(ctx context.Context, samples []float64, sampleRate int) (KeyEstimationResult, error) {
	logger := kd.logger.WithContext(ctx).WithFields(logging.Fields{
		"function":    "Analyze",
		"samples":     len(samples),
		"sample_rate": sampleRate,
	})

	if sampleRate <= 0 || len(samples) < kd.params.WindowSize {
		logger.Debug("buffer too short for key detection")
		return KeyEstimationResult{}, inconclusive("buffer shorter than one analysis window")
	}

	segment := centerSegment(samples, sampleRate, kd.params.SegmentSeconds)
	if len(segment) < kd.params.WindowSize {
		segment = samples
	}

	cs := chroma.NewChromaSTFT(sampleRate, kd.params.TuningFreq, kd.stft)
	cs.SetRange(kd.params.MinFreq, kd.params.MaxFreq)

	window := windowing.NewHann(kd.params.WindowSize, true)
	chromagram, err := cs.ComputeChroma(ctx, segment, kd.params.WindowSize, kd.params.HopSize, window)
	if err != nil {
		if ctx.Err() != nil {
			return KeyEstimationResult{}, ctx.Err()
		}
		return KeyEstimationResult{}, fault.Wrap(err, fmsg.With("chroma extraction failed"))
	}

	profile := chroma.MeanProfile(chromagram, kd.params.EnergyFloor)
	if profile == nil {
		logger.Debug("no frame above energy floor")
		return KeyEstimationResult{}, inconclusive("buffer is silent")
	}

	result := kd.estimator.EstimateKey(profile)
	best, ok := result.Best()
	if !ok {
		return result, inconclusive("chroma correlates with no key")
	}

	logger.Debug("key detected", logging.Fields{
		"key":        best.Key.String(),
		"confidence": best.Confidence,
		"clarity":    result.Clarity,
		"frames":     len(chromagram),
	})
	return result, nil
}

func inconclusive(reason string) error {
	return fault.Wrap(ErrDetectionInconclusive,
		fmsg.WithDesc(reason, "Could not detect key"),
		ftag.With(ftag.NotFound),
	)
}

// centerSegment returns up to seconds of audio centred on the middle of
// samples. Non-positive seconds selects everything.
func centerSegment(samples []float64, sampleRate int, seconds float64) []float64 {
	if seconds <= 0 {
		return samples
	}
	n := int(seconds * float64(sampleRate))
	if n >= len(samples) {
		return samples
	}
	start := (len(samples) - n) / 2
	return samples[start : start+n]
}
