package playback

import (
	"time"

	"github.com/RyanBlaney/sonido-stage/transcode"
)

// GraphParams are the live parameters of an audio graph
type GraphParams struct {
	DetuneCents float64
	Tempo       float64
	VolumeDB    float64
	ThresholdDB float64
	Ratio       float64
}

// Graph renders one loaded buffer. The engine owns it exclusively between a
// load and the next load or reset, and always calls Dispose.
type Graph interface {
	// Start begins rendering at offset seconds of source audio
	Start(offset float64) error
	// Stop halts rendering and keeps the buffer
	Stop() error
	SetParams(p GraphParams)
	Dispose() error
}

// GraphFactory builds a graph for decoded mono audio
type GraphFactory func(audio *transcode.AudioData) (Graph, error)

// Clock supplies the time used for position reporting
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// nullGraph renders nothing
type nullGraph struct{}

func (nullGraph) Start(float64) error   { return nil }
func (nullGraph) Stop() error           { return nil }
func (nullGraph) SetParams(GraphParams) {}
func (nullGraph) Dispose() error        { return nil }

// NullGraphFactory builds graphs with no audible output
func NullGraphFactory(*transcode.AudioData) (Graph, error) {
	return nullGraph{}, nil
}
