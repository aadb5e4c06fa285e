package temporal

import (
	"context"
	"errors"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
)

// ErrNoTempo is returned when a signal shows no periodic onsets in range
var ErrNoTempo = errors.New("no tempo found")

// TempoParams bounds the tempo search
type TempoParams struct {
	MinBPM       float64 `json:"min_bpm"`
	MaxBPM       float64 `json:"max_bpm"`
	FrameSeconds float64 `json:"frame_seconds"` // RMS frame length
	HopSeconds   float64 `json:"hop_seconds"`   // envelope resolution
}

// DefaultTempoParams searches 60-200 BPM with a 10 ms envelope
func DefaultTempoParams() TempoParams {
	return TempoParams{
		MinBPM:       60,
		MaxBPM:       200,
		FrameSeconds: 0.02,
		HopSeconds:   0.01,
	}
}

// TempoEstimation estimates a single BPM value for a whole signal
type TempoEstimation struct {
	params   TempoParams
	envelope *Envelope
}

// NewTempoEstimation creates a new tempo estimator
func NewTempoEstimation(params TempoParams) *TempoEstimation {
	def := DefaultTempoParams()
	if params.MinBPM <= 0 || params.MaxBPM <= params.MinBPM {
		params.MinBPM, params.MaxBPM = def.MinBPM, def.MaxBPM
	}
	if params.FrameSeconds <= 0 {
		params.FrameSeconds = def.FrameSeconds
	}
	if params.HopSeconds <= 0 {
		params.HopSeconds = def.HopSeconds
	}
	return &TempoEstimation{params: params, envelope: NewEnvelope()}
}

// TempoResult is a BPM estimate and the normalized autocorrelation at its
// period, 0..1
type TempoResult struct {
	BPM        float64 `json:"bpm"`
	Confidence float64 `json:"confidence"`
}

// EstimateBPM autocorrelates the onset strength of the RMS envelope and
// picks the strongest local peak inside the BPM range.
func (te *TempoEstimation) EstimateBPM(ctx context.Context, signal []float64, sampleRate int) (TempoResult, error) {
	if len(signal) == 0 || sampleRate <= 0 {
		return TempoResult{}, ErrNoTempo
	}

	frameSize := int(te.params.FrameSeconds * float64(sampleRate))
	hopSize := int(te.params.HopSeconds * float64(sampleRate))
	if frameSize <= 0 || hopSize <= 0 {
		return TempoResult{}, ErrNoTempo
	}

	onsets := te.envelope.OnsetStrength(te.envelope.ComputeRMS(signal, frameSize, hopSize))
	timePerFrame := float64(hopSize) / float64(sampleRate)

	minLag := max(1, int(60.0/te.params.MaxBPM/timePerFrame))
	maxLag := int(60.0 / te.params.MinBPM / timePerFrame)
	if maxLag+1 >= len(onsets) {
		return TempoResult{}, ErrNoTempo
	}

	autocorr := make([]float64, maxLag+2)
	for lag := range autocorr {
		if lag%64 == 0 && ctx.Err() != nil {
			return TempoResult{}, ctx.Err()
		}
		sum := 0.0
		for i := 0; i+lag < len(onsets); i++ {
			sum += onsets[i] * onsets[i+lag]
		}
		// biased estimate so multiples of the beat period score lower
		autocorr[lag] = sum / float64(len(onsets))
	}
	if autocorr[0] <= 0 {
		return TempoResult{}, ErrNoTempo
	}

	bestLag, bestVal := 0, 0.0
	for lag := max(minLag, 1); lag <= maxLag; lag++ {
		v := autocorr[lag]
		if v > autocorr[lag-1] && v >= autocorr[lag+1] && v > bestVal {
			bestLag, bestVal = lag, v
		}
	}
	if bestLag == 0 {
		return TempoResult{}, ErrNoTempo
	}

	return TempoResult{
		BPM:        60.0 / (float64(bestLag) * timePerFrame),
		Confidence: common.Clamp(bestVal/autocorr[0], 0, 1),
	}, nil
}
