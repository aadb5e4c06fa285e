package common

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic statistical helpers shared by the analysis packages, backed by gonum

// Mean calculates the arithmetic mean of a slice
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 2) / math.Sqrt(float64(len(data)))
}

// Correlation returns the Pearson correlation of x and y, 0 for mismatched
// lengths or constant input
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0.0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0.0
	}
	return r
}

// MaxNormalize scales data in place so its largest value is 1. It reports
// false and leaves data untouched when the maximum is below floor.
func MaxNormalize(data []float64, floor float64) bool {
	if len(data) == 0 {
		return false
	}
	peak := floats.Max(data)
	if peak < floor || peak <= 0 {
		return false
	}
	floats.Scale(1/peak, data)
	return true
}

// Clamp limits value to [lo, hi]
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// DBToGain converts decibels to a linear amplitude factor
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// GainToDB converts a linear amplitude factor to decibels, -inf for silence
func GainToDB(gain float64) float64 {
	if gain <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(gain)
}

// CentsToRatio converts a pitch offset in cents to a playback-rate ratio
func CentsToRatio(cents float64) float64 {
	return math.Pow(2, cents/1200)
}

// FreqToPitchClass maps a frequency to its nearest equal-tempered pitch
// class relative to tuning (A4). Returns -1 for non-positive frequencies.
func FreqToPitchClass(freq, tuning float64) int {
	if freq <= 0 || tuning <= 0 {
		return -1
	}
	midi := int(math.Round(69 + 12*math.Log2(freq/tuning)))
	pc := midi % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}
