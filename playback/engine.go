package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/filters"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

// Options wires an Engine to its collaborators
type Options struct {
	Fetch    FetchFunc
	Decode   DecodeFunc
	NewGraph GraphFactory
	Clock    Clock

	PollInterval time.Duration
	Limits       Limits
	Compressor   filters.CompressorParams
	CacheSize    int // decoded buffers kept by URL, 0 disables

	// DefaultVolumeDB is the volume of an idle engine. Nil means
	// DefaultVolume; use VolumeDB to pass an explicit value, 0 dB included.
	DefaultVolumeDB *float64

	// OnEnded is called without the engine lock held when playback reaches
	// the end of the buffer
	OnEnded func()
	Logger  logging.Logger
}

// DefaultVolume is the idle volume in dB
const DefaultVolume = -6.0

// VolumeDB returns a pointer to db for Options.DefaultVolumeDB
func VolumeDB(db float64) *float64 {
	return &db
}

// DefaultOptions fetches over HTTP or from disk, decodes with the default
// transcode decoder and renders into a null graph
func DefaultOptions() Options {
	return Options{
		Fetch:           NewFetcher(nil, 0),
		Decode:          transcode.NewDecoder(nil).Decode,
		NewGraph:        NullGraphFactory,
		Clock:           systemClock{},
		PollInterval:    50 * time.Millisecond,
		Limits:          DefaultLimits(),
		DefaultVolumeDB: VolumeDB(DefaultVolume),
		Compressor:      filters.DefaultCompressorParams(),
		CacheSize:       4,
	}
}

// Engine is the pitch-linked playback engine. It owns at most one audio
// graph; every method is safe for concurrent use, and fetch and decode run
// without the engine lock so transport calls never wait on a load.
type Engine struct {
	id     string
	opts   Options
	logger logging.Logger
	cache  *lru.Cache[string, *transcode.AudioData]

	mu         sync.Mutex
	state      PlaybackState
	audio      *transcode.AudioData
	graph      Graph
	generation uint64
	compressor filters.CompressorParams

	// position while playing is anchorPos + elapsed*tempo since anchorTime
	anchorPos  float64
	anchorTime time.Time
	pollStop   chan struct{}

	subs    map[uint64]chan PlaybackState
	nextSub uint64
}

// NewEngine creates an unloaded engine. Unset options take their defaults.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Fetch == nil {
		opts.Fetch = def.Fetch
	}
	if opts.Decode == nil {
		opts.Decode = def.Decode
	}
	if opts.NewGraph == nil {
		opts.NewGraph = def.NewGraph
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = def.Limits
	}
	if opts.Compressor.Ratio <= 0 {
		opts.Compressor = def.Compressor
	}
	if opts.DefaultVolumeDB == nil {
		opts.DefaultVolumeDB = def.DefaultVolumeDB
	}

	id := uuid.NewString()
	e := &Engine{
		id:         id,
		opts:       opts,
		compressor: opts.Compressor,
		subs:       make(map[uint64]chan PlaybackState),
	}
	e.logger = opts.Logger
	if e.logger == nil {
		e.logger = logging.WithFields(logging.Fields{
			"component": "playback_engine",
			"engine_id": id,
		})
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, *transcode.AudioData](opts.CacheSize)
		if err == nil {
			e.cache = cache
		}
	}
	e.state = e.idleState()
	return e
}

// ID identifies the engine in logs
func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) idleState() PlaybackState {
	return PlaybackState{
		Status:     StatusUnloaded,
		TempoRatio: 1,
		VolumeDB:   e.opts.Limits.volume(*e.opts.DefaultVolumeDB),
	}
}

// LoadFromURL fetches and decodes url and enters Ready with the given pitch.
// Loading the URL that is already loaded only applies the pitch. Any other
// load tears the current graph down first.
func (e *Engine) LoadFromURL(ctx context.Context, url string, initialPitch int) error {
	return e.load(ctx, url, initialPitch, false)
}

// ReloadFromURL loads url even when it is the one already loaded
func (e *Engine) ReloadFromURL(ctx context.Context, url string, initialPitch int) error {
	return e.load(ctx, url, initialPitch, true)
}

func (e *Engine) load(ctx context.Context, url string, initialPitch int, force bool) error {
	logger := e.logger.WithFields(logging.Fields{
		"function": "LoadFromURL",
		"url":      url,
	})

	if url == "" {
		return newLoadError(LoadErrorNetwork, url, errors.New("empty url"))
	}

	e.mu.Lock()
	if !force && url == e.state.URL && e.audio != nil {
		e.state.PitchSemitones = e.opts.Limits.ClampPitch(initialPitch)
		e.applyParamsLocked()
		e.publishLocked()
		e.mu.Unlock()
		logger.Debug("Audio already loaded, pitch updated")
		return nil
	}

	e.teardownLocked()
	e.generation++
	gen := e.generation
	e.state = e.idleStateKeeping(e.state)
	e.state.Status = StatusLoading
	e.state.URL = url
	e.publishLocked()
	e.mu.Unlock()

	logger.Debug("Loading audio")
	audio, err := e.fetchAndDecode(ctx, url)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		logger.Debug("Discarding superseded load", logging.Fields{"generation": gen})
		return ErrSuperseded
	}

	if err == nil {
		err = e.installLocked(audio, initialPitch)
	}
	if err != nil {
		e.state = e.idleStateKeeping(e.state)
		e.publishLocked()
		logger.Error(err, "Audio load failed")
		return err
	}

	e.state.URL = url
	e.publishLocked()
	logger.Info("Audio loaded", logging.Fields{
		"duration":    e.state.Duration,
		"sample_rate": audio.SampleRate,
		"pitch":       e.state.PitchSemitones,
	})
	return nil
}

func (e *Engine) fetchAndDecode(ctx context.Context, url string) (*transcode.AudioData, error) {
	if e.cache != nil {
		if audio, ok := e.cache.Get(url); ok {
			return audio, nil
		}
	}

	data, err := e.opts.Fetch(ctx, url)
	if err != nil {
		return nil, newLoadError(LoadErrorNetwork, url, err)
	}

	audio, err := e.opts.Decode(ctx, data)
	if err != nil {
		return nil, newLoadError(decodeErrorKind(err), url, err)
	}
	audio, err = monoAudio(audio)
	if err != nil {
		return nil, newLoadError(LoadErrorDecode, url, err)
	}

	if e.cache != nil {
		e.cache.Add(url, audio)
	}
	return audio, nil
}

func monoAudio(audio *transcode.AudioData) (*transcode.AudioData, error) {
	if audio == nil || len(audio.PCM) == 0 || audio.SampleRate <= 0 {
		return nil, errors.New("decoded audio is empty")
	}
	if audio.Channels <= 1 {
		return audio, nil
	}
	mono := *audio
	mono.PCM = audio.DownmixMono()
	mono.Channels = 1
	return &mono, nil
}

// LoadBuffer installs already-decoded audio
func (e *Engine) LoadBuffer(audio *transcode.AudioData, initialPitch int) error {
	mono, err := monoAudio(audio)
	if err != nil {
		return newLoadError(LoadErrorDecode, "", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked()
	e.generation++
	e.state = e.idleStateKeeping(e.state)
	if err := e.installLocked(mono, initialPitch); err != nil {
		e.publishLocked()
		e.logger.Error(err, "Buffer load failed")
		return err
	}
	e.publishLocked()
	return nil
}

func (e *Engine) installLocked(audio *transcode.AudioData, initialPitch int) error {
	graph, err := e.opts.NewGraph(audio)
	if err != nil {
		return newLoadError(LoadErrorUnavailable, e.state.URL, err)
	}

	e.audio = audio
	e.graph = graph
	e.state.Status = StatusReady
	e.state.IsLoaded = true
	e.state.IsPlaying = false
	e.state.Position = 0
	e.state.Duration = audio.Seconds()
	e.state.PitchSemitones = e.opts.Limits.ClampPitch(initialPitch)
	e.state.TempoRatio = 1
	e.state.FineTuneCents = 0
	e.applyParamsLocked()
	return nil
}

// idleStateKeeping is the unloaded state carrying over the settings that
// outlive a buffer
func (e *Engine) idleStateKeeping(prev PlaybackState) PlaybackState {
	s := e.idleState()
	s.VolumeDB = prev.VolumeDB
	s.PitchSemitones = prev.PitchSemitones
	s.IsPitchLinked = prev.IsPitchLinked
	return s
}

func (e *Engine) teardownLocked() {
	e.stopPollerLocked()
	if e.graph != nil {
		if e.state.Status == StatusPlaying {
			if err := e.graph.Stop(); err != nil {
				e.logger.Warn("Graph stop failed", logging.Fields{"error": err.Error()})
			}
		}
		if err := e.graph.Dispose(); err != nil {
			e.logger.Error(err, "Graph dispose failed")
		}
	}
	e.graph = nil
	e.audio = nil
}

// ResetEngine disposes the audio graph, abandons any in-flight load and
// returns to Unloaded
func (e *Engine) ResetEngine() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.teardownLocked()
	e.generation++
	e.state = e.idleStateKeeping(e.state)
	e.publishLocked()
	e.logger.Debug("Engine reset")
}

func (e *Engine) requireLoadedLocked(op string) error {
	if e.state.Status.loaded() {
		return nil
	}
	e.logger.Error(ErrNotLoaded, "Playback control called without audio", logging.Fields{
		"operation": op,
		"status":    e.state.Status.String(),
	})
	return ErrNotLoaded
}

// TogglePlayback starts playback from the current position, or pauses
// keeping buffer and position
func (e *Engine) TogglePlayback() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireLoadedLocked("TogglePlayback"); err != nil {
		return err
	}

	if e.state.Status == StatusPlaying {
		pos := e.positionLocked()
		if err := e.graph.Stop(); err != nil {
			return fmt.Errorf("stop graph: %w", err)
		}
		e.stopPollerLocked()
		e.state.Position = pos
		e.state.Status = StatusPaused
		e.state.IsPlaying = false
		e.publishLocked()
		return nil
	}

	if e.state.Position >= e.state.Duration {
		e.state.Position = 0
	}
	if err := e.graph.Start(e.state.Position); err != nil {
		return fmt.Errorf("start graph: %w", err)
	}
	e.anchorPos = e.state.Position
	e.anchorTime = e.opts.Clock.Now()
	e.state.Status = StatusPlaying
	e.state.IsPlaying = true
	e.startPollerLocked()
	e.publishLocked()
	return nil
}

// Stop halts playback and rewinds to the start
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireLoadedLocked("Stop"); err != nil {
		return err
	}
	e.stopLocked()
	e.publishLocked()
	return nil
}

func (e *Engine) stopLocked() {
	if e.state.Status == StatusPlaying {
		if err := e.graph.Stop(); err != nil {
			e.logger.Warn("Graph stop failed", logging.Fields{"error": err.Error()})
		}
		e.stopPollerLocked()
	}
	e.state.Status = StatusReady
	e.state.IsPlaying = false
	e.state.Position = 0
}

// SetPitch sets the transposition in semitones
func (e *Engine) SetPitch(n int) error {
	return e.update("SetPitch", func(s *PlaybackState) {
		s.PitchSemitones = e.opts.Limits.ClampPitch(n)
	})
}

// ShiftPitch moves the transposition by delta semitones
func (e *Engine) ShiftPitch(delta int) error {
	return e.update("ShiftPitch", func(s *PlaybackState) {
		s.PitchSemitones = e.opts.Limits.ClampPitch(s.PitchSemitones + delta)
	})
}

// SetFineTune sets the detune in cents on top of the semitone pitch
func (e *Engine) SetFineTune(cents float64) error {
	return e.update("SetFineTune", func(s *PlaybackState) {
		s.FineTuneCents = e.opts.Limits.fineTune(cents)
	})
}

// SetVolume sets the output gain in dB
func (e *Engine) SetVolume(db float64) error {
	return e.update("SetVolume", func(s *PlaybackState) {
		s.VolumeDB = e.opts.Limits.volume(db)
	})
}

// SetTempo sets the playback rate without changing pitch. The position
// keeps its meaning across the change.
func (e *Engine) SetTempo(ratio float64) error {
	return e.update("SetTempo", func(s *PlaybackState) {
		if s.Status == StatusPlaying {
			e.anchorPos = e.positionLocked()
			e.anchorTime = e.opts.Clock.Now()
		}
		s.TempoRatio = e.opts.Limits.tempo(ratio)
	})
}

// SetCompressor changes the output compressor threshold and ratio
func (e *Engine) SetCompressor(thresholdDB, ratio float64) error {
	return e.update("SetCompressor", func(*PlaybackState) {
		e.compressor.ThresholdDB = thresholdDB
		e.compressor.Ratio = max(ratio, 1)
	})
}

func (e *Engine) update(op string, fn func(s *PlaybackState)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireLoadedLocked(op); err != nil {
		return err
	}
	fn(&e.state)
	e.applyParamsLocked()
	e.publishLocked()
	return nil
}

func (e *Engine) applyParamsLocked() {
	if e.graph == nil {
		return
	}
	e.graph.SetParams(GraphParams{
		DetuneCents: e.state.DetuneCents(),
		Tempo:       e.state.TempoRatio,
		VolumeDB:    e.state.VolumeDB,
		ThresholdDB: e.compressor.ThresholdDB,
		Ratio:       e.compressor.Ratio,
	})
}

// SetProgress seeks to fraction of the duration, clamped to [0, 1]
func (e *Engine) SetProgress(fraction float64) error {
	e.mu.Lock()
	duration := e.state.Duration
	e.mu.Unlock()
	return e.Seek(common.Clamp(fraction, 0, 1) * duration)
}

// Seek moves to seconds, clamped to [0, duration]
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireLoadedLocked("Seek"); err != nil {
		return err
	}
	seconds = common.Clamp(seconds, 0, e.state.Duration)

	if e.state.Status == StatusPlaying {
		if err := e.graph.Start(seconds); err != nil {
			return fmt.Errorf("restart graph: %w", err)
		}
		e.anchorPos = seconds
		e.anchorTime = e.opts.Clock.Now()
	}
	e.state.Position = seconds
	e.publishLocked()
	return nil
}

// SetPitchLinked mirrors the song's pitch link flag into the state
func (e *Engine) SetPitchLinked(linked bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.IsPitchLinked = linked
	e.publishLocked()
}

func (e *Engine) positionLocked() float64 {
	if e.state.Status != StatusPlaying {
		return e.state.Position
	}
	elapsed := e.opts.Clock.Now().Sub(e.anchorTime).Seconds()
	return common.Clamp(e.anchorPos+elapsed*e.state.TempoRatio, 0, e.state.Duration)
}

// Snapshot returns a copy of the current state
func (e *Engine) Snapshot() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() PlaybackState {
	s := e.state
	s.Position = e.positionLocked()
	return s
}

// Subscribe returns a channel of state snapshots, starting with the current
// one. A subscriber that falls behind only sees the latest state. cancel
// closes the channel.
func (e *Engine) Subscribe(buffer int) (<-chan PlaybackState, func()) {
	ch := make(chan PlaybackState, max(buffer, 1))

	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	ch <- e.snapshotLocked()
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			close(ch)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) publishLocked() {
	s := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// drop the oldest pending state
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Poll samples the position while playing, publishes it, and handles the
// end of the buffer. The engine polls on its own timer; calling it directly
// is harmless.
func (e *Engine) Poll() {
	e.mu.Lock()
	if e.state.Status != StatusPlaying {
		e.mu.Unlock()
		return
	}

	pos := e.positionLocked()
	ended := pos >= e.state.Duration
	if ended {
		e.stopLocked()
		e.logger.Debug("Playback reached the end")
	} else {
		e.state.Position = pos
	}
	e.publishLocked()
	onEnded := e.opts.OnEnded
	e.mu.Unlock()

	if ended && onEnded != nil {
		onEnded()
	}
}

func (e *Engine) startPollerLocked() {
	if e.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	e.pollStop = stop
	interval := e.opts.PollInterval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.Poll()
			}
		}
	}()
}

func (e *Engine) stopPollerLocked() {
	if e.pollStop != nil {
		close(e.pollStop)
		e.pollStop = nil
	}
}
