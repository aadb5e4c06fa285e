package common

import (
	"fmt"
	"math"
	"strings"
)

// InterpolationType selects how fractional sample positions are read
type InterpolationType int

const (
	Linear InterpolationType = iota
	Cubic
)

func (t InterpolationType) String() string {
	if t == Cubic {
		return "cubic"
	}
	return "linear"
}

// ParseInterpolation reads "linear" or "cubic"
func ParseInterpolation(s string) (InterpolationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "cubic":
		return Cubic, nil
	}
	return Linear, fmt.Errorf("unknown interpolation %q", s)
}

// Interpolator reads a signal at fractional indices. Positions outside the
// signal read as silence.
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{method: method}
}

// Interpolate returns data sampled at index
func (interp *Interpolator) Interpolate(data []float64, index float64) float64 {
	switch interp.method {
	case Cubic:
		return interp.cubicInterpolate(data, index)
	default:
		return interp.linearInterpolate(data, index)
	}
}

func at(data []float64, i int) float64 {
	if i < 0 || i >= len(data) {
		return 0
	}
	return data[i]
}

func (interp *Interpolator) linearInterpolate(data []float64, index float64) float64 {
	i := int(math.Floor(index))
	frac := index - float64(i)
	if frac == 0 {
		return at(data, i)
	}
	return at(data, i)*(1-frac) + at(data, i+1)*frac
}

// Catmull-Rom
func (interp *Interpolator) cubicInterpolate(data []float64, index float64) float64 {
	i := int(math.Floor(index))
	t := index - float64(i)
	if t == 0 {
		return at(data, i)
	}

	y0, y1, y2, y3 := at(data, i-1), at(data, i), at(data, i+1), at(data, i+2)
	a := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	b := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	c := -0.5*y0 + 0.5*y2
	return ((a*t+b)*t+c)*t + y1
}
