package chroma

import (
	"context"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/spectral"
)

// Bins is the number of pitch classes in a chroma vector
const Bins = 12

// Labels are the chroma bin names, C first
var Labels = [Bins]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ChromaSTFT computes a chromagram from a magnitude spectrogram by folding
// every bin inside [minFreq, maxFreq] onto its nearest equal-tempered pitch
// class.
type ChromaSTFT struct {
	sampleRate int
	stft       *spectral.STFT
	tuningFreq float64 // A4 frequency
	minFreq    float64
	maxFreq    float64
}

// NewChromaSTFT creates a new STFT-based chromagram calculator
func NewChromaSTFT(sampleRate int, tuningFreq float64, stft *spectral.STFT) *ChromaSTFT {
	if tuningFreq <= 0 {
		tuningFreq = 440.0
	}
	if stft == nil {
		stft = spectral.NewSTFT(0)
	}
	return &ChromaSTFT{
		sampleRate: sampleRate,
		stft:       stft,
		tuningFreq: tuningFreq,
		minFreq:    60.0,
		maxFreq:    5000.0,
	}
}

// SetRange limits the frequencies folded into the chromagram
func (cs *ChromaSTFT) SetRange(minFreq, maxFreq float64) {
	cs.minFreq = minFreq
	cs.maxFreq = maxFreq
}

// ComputeChroma returns one 12-bin energy vector per STFT frame. Frames are
// not normalized.
func (cs *ChromaSTFT) ComputeChroma(ctx context.Context, signal []float64, windowSize, hopSize int, window spectral.Window) ([][]float64, error) {
	res, err := cs.stft.ComputeWithWindow(ctx, signal, windowSize, hopSize, cs.sampleRate, window)
	if err != nil {
		return nil, err
	}
	return cs.fold(res), nil
}

func (cs *ChromaSTFT) fold(res *spectral.STFTResult) [][]float64 {
	mapping := cs.chromaMapping(res)

	chromagram := make([][]float64, res.TimeFrames)
	for t, frame := range res.Magnitude {
		vec := make([]float64, Bins)
		for k, mag := range frame {
			if bin := mapping[k]; bin >= 0 {
				vec[bin] += mag * mag
			}
		}
		chromagram[t] = vec
	}
	return chromagram
}

// chromaMapping maps FFT bins to chroma bins, -1 outside the range
func (cs *ChromaSTFT) chromaMapping(res *spectral.STFTResult) []int {
	mapping := make([]int, res.FreqBins)
	for k := range mapping {
		freq := res.BinFrequency(k)
		if freq < cs.minFreq || freq > cs.maxFreq {
			mapping[k] = -1
			continue
		}
		mapping[k] = common.FreqToPitchClass(freq, cs.tuningFreq)
	}
	return mapping
}

// MeanProfile max-normalizes each frame so loud passages do not dominate,
// then averages. Frames whose peak energy is below floor are skipped. It
// returns nil when no frame survives.
func MeanProfile(chromagram [][]float64, floor float64) []float64 {
	mean := make([]float64, Bins)
	frame := make([]float64, Bins)
	used := 0
	for _, vec := range chromagram {
		if len(vec) != Bins {
			continue
		}
		copy(frame, vec)
		if !common.MaxNormalize(frame, floor) {
			continue
		}
		floats.Add(mean, frame)
		used++
	}
	if used == 0 {
		return nil
	}
	floats.Scale(1/float64(used), mean)
	return mean
}

// Dominant returns the strongest pitch class of a chroma vector
func Dominant(vec []float64) int {
	if len(vec) == 0 {
		return -1
	}
	return floats.MaxIdx(vec)
}
