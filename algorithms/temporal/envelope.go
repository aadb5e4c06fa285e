package temporal

import (
	"math"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
)

// Envelope provides amplitude envelope extraction
type Envelope struct{}

// NewEnvelope creates a new envelope extractor
func NewEnvelope() *Envelope {
	return &Envelope{}
}

func frameCount(n, frameSize, hopSize int) int {
	if n < frameSize || frameSize <= 0 || hopSize <= 0 {
		return 0
	}
	return (n-frameSize)/hopSize + 1
}

// ComputeRMS computes RMS envelope with given frame and hop sizes
func (e *Envelope) ComputeRMS(signal []float64, frameSize, hopSize int) []float64 {
	numFrames := frameCount(len(signal), frameSize, hopSize)
	envelope := make([]float64, numFrames)
	for i := range numFrames {
		start := i * hopSize
		envelope[i] = common.RMS(signal[start : start+frameSize])
	}
	return envelope
}

// ComputePeak computes the maximum absolute value per frame
func (e *Envelope) ComputePeak(signal []float64, frameSize, hopSize int) []float64 {
	numFrames := frameCount(len(signal), frameSize, hopSize)
	envelope := make([]float64, numFrames)
	for i := range numFrames {
		start := i * hopSize
		peak := 0.0
		for _, v := range signal[start : start+frameSize] {
			peak = math.Max(peak, math.Abs(v))
		}
		envelope[i] = peak
	}
	return envelope
}

// OnsetStrength is the half-wave rectified first difference of an envelope:
// it rises where energy rises and is zero where energy falls.
func (e *Envelope) OnsetStrength(envelope []float64) []float64 {
	if len(envelope) < 2 {
		return []float64{}
	}
	flux := make([]float64, len(envelope)-1)
	for i := 1; i < len(envelope); i++ {
		flux[i-1] = math.Max(envelope[i]-envelope[i-1], 0)
	}
	return flux
}
