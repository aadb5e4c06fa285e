package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/filters"
	"github.com/RyanBlaney/sonido-stage/algorithms/stretch"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

// StreamConfig configures the rendering chain of a StreamGraph
type StreamConfig struct {
	GrainSeconds float64                  `json:"grain_seconds"`
	BlockSize    int                      `json:"block_size"` // samples per render tick
	DCCutoff     float64                  `json:"dc_cutoff"`  // Hz, 0 disables
	Compressor   filters.CompressorParams `json:"compressor"`

	// Interpolation is used when grains are resampled for pitch
	Interpolation common.InterpolationType `json:"-"`
}

// DefaultStreamConfig renders 1024-sample blocks through 180 ms grains
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		GrainSeconds: stretch.DefaultGrainSeconds,
		BlockSize:    1024,
		DCCutoff:     10,
		Compressor:   filters.DefaultCompressorParams(),
	}
}

// StreamGraph renders source audio through
// granular pitch/tempo -> DC blocker -> gain -> compressor -> sink
// on its own goroutine, paced to real time.
type StreamGraph struct {
	mu         sync.Mutex
	cfg        StreamConfig
	sampleRate int
	granular   *stretch.Granular
	dc         *filters.DCRemoval
	compressor *filters.Compressor
	gain       float64
	sink       Sink
	block      []float64

	stop chan struct{}
	done chan struct{}

	logger logging.Logger
}

// NewStreamGraph creates a graph over mono audio writing to sink
func NewStreamGraph(audio *transcode.AudioData, sink Sink, cfg StreamConfig) *StreamGraph {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultStreamConfig().BlockSize
	}
	g := &StreamGraph{
		cfg:        cfg,
		sampleRate: audio.SampleRate,
		granular:   stretch.NewGranular(audio.DownmixMono(), audio.SampleRate, cfg.GrainSeconds),
		compressor: filters.NewCompressor(audio.SampleRate, cfg.Compressor),
		gain:       1,
		sink:       sink,
		block:      make([]float64, cfg.BlockSize),
		logger: logging.WithFields(logging.Fields{
			"component": "stream_graph",
		}),
	}
	g.granular.SetInterpolation(cfg.Interpolation)
	if cfg.DCCutoff > 0 {
		g.dc = filters.NewDCRemoval(audio.SampleRate, cfg.DCCutoff)
	}
	return g
}

// StreamGraphFactory builds StreamGraphs with a fresh sink per load
func StreamGraphFactory(cfg StreamConfig, newSink SinkFactory) GraphFactory {
	return func(audio *transcode.AudioData) (Graph, error) {
		sink, err := newSink(audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("open audio sink: %w", err)
		}
		return NewStreamGraph(audio, sink, cfg), nil
	}
}

// Start seeks to offset and starts the render loop. Starting a running
// graph restarts it at the new offset.
func (g *StreamGraph) Start(offset float64) error {
	_ = g.Stop()

	g.mu.Lock()
	g.granular.Seek(int(offset * float64(g.sampleRate)))
	if g.dc != nil {
		g.dc.Reset()
	}
	g.compressor.Reset()
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	stop, done := g.stop, g.done
	g.mu.Unlock()

	go g.run(stop, done)
	return nil
}

func (g *StreamGraph) run(stop, done chan struct{}) {
	defer close(done)

	interval := time.Duration(float64(time.Second) * float64(g.cfg.BlockSize) / float64(g.sampleRate))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := g.sink.Write(g.Render()); err != nil {
				g.logger.Error(err, "Audio sink write failed")
				return
			}
		}
	}
}

// Render produces the next block of output. It is also safe to call on a
// stopped graph for offline rendering.
func (g *StreamGraph) Render() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.granular.Process(g.block)
	if g.dc != nil {
		g.dc.ProcessInPlace(g.block)
	}
	for i := range g.block {
		g.block[i] *= g.gain
	}
	g.compressor.ProcessInPlace(g.block)
	return g.block
}

// Stop halts the render loop and waits for it to exit
func (g *StreamGraph) Stop() error {
	g.mu.Lock()
	stop, done := g.stop, g.done
	g.stop, g.done = nil, nil
	g.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// SetParams applies live parameters without interrupting rendering
func (g *StreamGraph) SetParams(p GraphParams) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.granular.SetPitchCents(p.DetuneCents)
	if p.Tempo > 0 {
		g.granular.SetTempo(p.Tempo)
	}
	g.gain = common.DBToGain(p.VolumeDB)
	if p.Ratio > 0 {
		g.compressor.SetThreshold(p.ThresholdDB)
		g.compressor.SetRatio(p.Ratio)
	}
}

// SourcePosition returns the render position in seconds of source audio
func (g *StreamGraph) SourcePosition() float64 {
	return g.granular.SourcePosition() / float64(g.sampleRate)
}

// Done reports whether the source is exhausted
func (g *StreamGraph) Done() bool {
	return g.granular.Done()
}

// Dispose stops rendering and closes the sink
func (g *StreamGraph) Dispose() error {
	_ = g.Stop()
	if err := g.sink.Close(); err != nil {
		return fmt.Errorf("close audio sink: %w", err)
	}
	return nil
}
