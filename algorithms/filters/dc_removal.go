package filters

import "math"

// DCRemoval is a one-pole DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R * y[n-1]
//
// Decoded material with a DC offset would otherwise push the compressor's
// detector and waste headroom.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64 // x[n-1]
	y1 float64 // y[n-1]
}

// NewDCRemoval creates a filter with a -3 dB point at cutoffFreq. The pole
// is R = 1 - 2*pi*fc/fs, clamped to a stable range.
func NewDCRemoval(sampleRate int, cutoffFreq float64) *DCRemoval {
	r := 0.995
	if sampleRate > 0 && cutoffFreq > 0 {
		r = 1 - 2*math.Pi*cutoffFreq/float64(sampleRate)
	}
	return &DCRemoval{poleLocation: math.Min(math.Max(r, 0.9), 0.9999)}
}

// ProcessInPlace filters buf, carrying state across calls
func (dc *DCRemoval) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		y := x - dc.x1 + dc.poleLocation*dc.y1
		dc.x1, dc.y1 = x, y
		buf[i] = y
	}
}

// Reset clears the filter history, e.g. after a seek
func (dc *DCRemoval) Reset() {
	dc.x1, dc.y1 = 0, 0
}
