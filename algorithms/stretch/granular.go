package stretch

import (
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/windowing"
)

const (
	// DefaultGrainSeconds is the grain length used by the playback graph
	DefaultGrainSeconds = 0.18

	MinTempo = 0.25
	MaxTempo = 4.0
)

// Granular is an overlap-add grain player with independent pitch and tempo.
//
// Grains of a fixed length are cut from the source with a periodic Hann
// window at 50% overlap. Each grain is resampled by the pitch ratio while
// the read head advances hop*tempo source samples per hop of output, so
// tempo changes never alter pitch and pitch changes never alter duration.
// With pitch ratio 1 and tempo 1 the output reproduces the source exactly.
type Granular struct {
	mu sync.Mutex

	source []float64
	grain  int
	hop    int
	window []float64
	interp *common.Interpolator

	pitchRatio float64
	tempo      float64

	readPos   float64   // source index of the next grain's first sample
	acc       []float64 // overlap-add accumulator, len grain
	ready     []float64 // finished output not yet handed out
	readyIdx  int
	sourcePos float64 // source index aligned with the next output sample
}

// NewGranular creates a processor over source. Grain length is rounded to
// an even sample count so the hop divides it exactly.
func NewGranular(source []float64, sampleRate int, grainSeconds float64) *Granular {
	if grainSeconds <= 0 {
		grainSeconds = DefaultGrainSeconds
	}
	grain := int(grainSeconds * float64(sampleRate))
	if grain < 4 {
		grain = 4
	}
	grain -= grain % 2

	g := &Granular{
		source:     source,
		grain:      grain,
		hop:        grain / 2,
		window:     windowing.NewHann(grain, false).GetCoefficients(),
		interp:     common.NewInterpolator(common.Linear),
		pitchRatio: 1,
		tempo:      1,
		acc:        make([]float64, grain),
		ready:      make([]float64, grain/2),
	}
	g.seek(0)
	return g
}

// SetInterpolation selects how resampled grains read between source
// samples. Linear is the default.
func (g *Granular) SetInterpolation(method common.InterpolationType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.interp = common.NewInterpolator(method)
}

// GrainSize returns the grain length in samples
func (g *Granular) GrainSize() int {
	return g.grain
}

// SetPitchRatio sets the frequency ratio applied to every grain. A ratio of
// 2 is one octave up.
func (g *Granular) SetPitchRatio(ratio float64) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return
	}
	g.mu.Lock()
	g.pitchRatio = ratio
	g.mu.Unlock()
}

// SetPitchCents sets the pitch ratio from a detune in cents
func (g *Granular) SetPitchCents(cents float64) {
	g.SetPitchRatio(common.CentsToRatio(cents))
}

// SetTempo sets the playback rate, clamped to [MinTempo, MaxTempo]
func (g *Granular) SetTempo(tempo float64) {
	if math.IsNaN(tempo) {
		return
	}
	g.mu.Lock()
	g.tempo = common.Clamp(tempo, MinTempo, MaxTempo)
	g.mu.Unlock()
}

// Seek moves the read head to a source sample index and clears the output
// pipeline.
func (g *Granular) Seek(position int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seek(position)
}

func (g *Granular) seek(position int) {
	position = common.Clamp(position, 0, len(g.source))
	clear(g.acc)
	g.readyIdx = len(g.ready)

	// prime the accumulator with the grain that overlaps the seek point so
	// the first emitted hop is fully overlapped
	g.readPos = float64(position) - float64(g.hop)*g.tempo
	g.synthesize()
	g.readyIdx = len(g.ready)
	g.sourcePos = float64(position)
}

// SourcePosition returns the source sample index aligned with the next
// output sample.
func (g *Granular) SourcePosition() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sourcePos
}

// Done reports whether the output has caught up with the end of the source
func (g *Granular) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sourcePos >= float64(len(g.source))
}

// Process fills out with the next output samples and returns the number
// written. Past the end of the source the output is silence.
func (g *Granular) Process(out []float64) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	filled := 0
	for filled < len(out) {
		if g.readyIdx >= len(g.ready) {
			g.synthesize()
		}
		n := copy(out[filled:], g.ready[g.readyIdx:])
		g.readyIdx += n
		filled += n
		g.sourcePos += float64(n) * g.tempo
	}
	return filled
}

// synthesize overlap-adds one grain at readPos, moves the first hop of the
// accumulator into ready and advances the read head.
func (g *Granular) synthesize() {
	for i := 0; i < g.grain; i++ {
		idx := g.readPos + float64(i)*g.pitchRatio
		g.acc[i] += g.window[i] * g.interp.Interpolate(g.source, idx)
	}

	copy(g.ready, g.acc[:g.hop])
	g.readyIdx = 0
	copy(g.acc, g.acc[g.hop:])
	clear(g.acc[g.grain-g.hop:])

	g.readPos += float64(g.hop) * g.tempo
}
