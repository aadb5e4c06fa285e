package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT wraps mjibson/go-dsp. It is stateless and safe for concurrent use.
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal. go-dsp handles
// non-power-of-2 sizes.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverseReal computes the inverse FFT and keeps the real part
func (f *FFT) ComputeInverseReal(x []complex128) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	result := fft.IFFT(x)
	out := make([]float64, len(result))
	for i, val := range result {
		out[i] = real(val)
	}
	return out
}

// MagnitudeSpectrum returns |X(k)| for k in 0..N/2
func (f *FFT) MagnitudeSpectrum(x []float64) []float64 {
	spectrum := f.Compute(x)
	if len(spectrum) == 0 {
		return nil
	}
	bins := len(spectrum)/2 + 1
	mags := make([]float64, bins)
	for i := range bins {
		mags[i] = cmplx.Abs(spectrum[i])
	}
	return mags
}

// PeakFrequency returns the frequency of the strongest non-DC bin, refined
// by parabolic interpolation between neighbouring bins.
func (f *FFT) PeakFrequency(x []float64, sampleRate int) float64 {
	mags := f.MagnitudeSpectrum(x)
	if len(mags) < 3 || sampleRate <= 0 {
		return 0
	}

	peak := 1
	for i := 2; i < len(mags); i++ {
		if mags[i] > mags[peak] {
			peak = i
		}
	}

	offset := 0.0
	if peak > 0 && peak < len(mags)-1 {
		a, b, c := mags[peak-1], mags[peak], mags[peak+1]
		if denom := a - 2*b + c; denom != 0 {
			offset = 0.5 * (a - c) / denom
		}
	}
	return (float64(peak) + offset) * float64(sampleRate) / float64(len(x))
}
