package windowing

import (
	"fmt"

	"github.com/mjibson/go-dsp/window"
)

// Hann represents a Hann window function. Symmetric windows suit analysis;
// periodic windows sum to a constant at 50% overlap and suit overlap-add
// synthesis.
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

func (h *Hann) generate() {
	if h.size <= 0 {
		h.coefficients = nil
		return
	}
	if h.symmetric {
		h.coefficients = window.Hann(h.size)
		return
	}
	// periodic window of N is the symmetric window of N+1 without its last point
	h.coefficients = window.Hann(h.size + 1)[:h.size]
}

// Apply applies the window to a signal (creates new array)
func (h *Hann) Apply(signal []float64) []float64 {
	if len(signal) != h.size {
		return nil
	}

	windowed := make([]float64, h.size)
	for i := range h.size {
		windowed[i] = signal[i] * h.coefficients[i]
	}

	return windowed
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i := range h.size {
		signal[i] *= h.coefficients[i]
	}

	return nil
}

// Coefficient returns the window value at i
func (h *Hann) Coefficient(i int) float64 {
	return h.coefficients[i]
}

// GetCoefficients returns a copy of the window coefficients
func (h *Hann) GetCoefficients() []float64 {
	coeffs := make([]float64, len(h.coefficients))
	copy(coeffs, h.coefficients)
	return coeffs
}

// GetSize returns the window size
func (h *Hann) GetSize() int {
	return h.size
}
