package session

import (
	"context"
	"sync"
	"time"

	"github.com/RyanBlaney/sonido-stage/algorithms/temporal"
	"github.com/RyanBlaney/sonido-stage/algorithms/tonal"
	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

// DetectionResult is the outcome of one audio analysis job. KeyErr and
// TempoErr are set independently; a job can find a key and no tempo.
type DetectionResult struct {
	Generation uint64                 `json:"generation"`
	SongID     string                 `json:"song_id"`
	Candidates []harmony.KeyCandidate `json:"candidates"`
	Tempo      temporal.TempoResult   `json:"tempo"`
	KeyErr     error                  `json:"-"`
	TempoErr   error                  `json:"-"`
	Elapsed    time.Duration          `json:"elapsed"`
}

// Top returns at most n candidates
func (r DetectionResult) Top(n int) []harmony.KeyCandidate {
	if n < 0 || n > len(r.Candidates) {
		n = len(r.Candidates)
	}
	return r.Candidates[:n]
}

// KeyAnalyzer ranks keys for mono samples, e.g. *tonal.KeyDetector
type KeyAnalyzer interface {
	Detect(ctx context.Context, samples []float64, sampleRate int) ([]harmony.KeyCandidate, error)
}

// TempoAnalyzer estimates BPM for mono samples, e.g. *temporal.TempoEstimation
type TempoAnalyzer interface {
	EstimateBPM(ctx context.Context, signal []float64, sampleRate int) (temporal.TempoResult, error)
}

// Detector runs key and tempo analysis off the caller's goroutine. Starting
// a job supersedes the previous one: its context is cancelled and its
// result, should it still arrive, is dropped.
type Detector struct {
	keys  KeyAnalyzer
	tempo TempoAnalyzer

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc

	logger logging.Logger
}

// NewDetector creates a detector; nil analysers get defaults
func NewDetector(keys KeyAnalyzer, tempo TempoAnalyzer) *Detector {
	if keys == nil {
		keys = tonal.NewKeyDetector(tonal.DefaultDetectorParams())
	}
	if tempo == nil {
		tempo = temporal.NewTempoEstimation(temporal.DefaultTempoParams())
	}
	return &Detector{
		keys:  keys,
		tempo: tempo,
		logger: logging.WithFields(logging.Fields{
			"component": "key_detection_job",
		}),
	}
}

// Analyze runs a job on the calling goroutine
func (d *Detector) Analyze(ctx context.Context, songID string, audio *transcode.AudioData) DetectionResult {
	start := time.Now()
	mono := audio.DownmixMono()

	res := DetectionResult{SongID: songID}
	res.Candidates, res.KeyErr = d.keys.Detect(ctx, mono, audio.SampleRate)
	if ctx.Err() == nil {
		res.Tempo, res.TempoErr = d.tempo.EstimateBPM(ctx, mono, audio.SampleRate)
	} else {
		res.TempoErr = ctx.Err()
	}
	res.Elapsed = time.Since(start)
	return res
}

// Start launches a job and returns its generation. onResult is called on
// the job's goroutine only if no newer job or Cancel happened meanwhile.
func (d *Detector) Start(ctx context.Context, songID string, audio *transcode.AudioData, onResult func(DetectionResult)) uint64 {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.generation++
	gen := d.generation
	jobCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	logger := d.logger.WithFields(logging.Fields{
		"song_id":    songID,
		"generation": gen,
	})
	logger.Debug("Detection job started")

	go func() {
		defer cancel()
		res := d.Analyze(jobCtx, songID, audio)
		res.Generation = gen

		if !d.IsCurrent(gen) {
			logger.Debug("Dropping stale detection result")
			return
		}
		logger.Debug("Detection job finished", logging.Fields{
			"candidates": len(res.Candidates),
			"elapsed":    res.Elapsed.Seconds(),
		})
		if onResult != nil {
			onResult(res)
		}
	}()
	return gen
}

// Cancel abandons the running job, if any
func (d *Detector) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.generation++
}

// IsCurrent reports whether gen is the latest job
func (d *Detector) IsCurrent(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.generation
}

// Message is the performer-facing summary of a failed job, "" if both
// key and tempo were found
func (r DetectionResult) Message() string {
	switch {
	case r.KeyErr != nil && r.TempoErr != nil:
		return "Could not detect key or BPM"
	case r.KeyErr != nil:
		return "Could not detect key"
	case r.TempoErr != nil:
		return "Could not detect BPM"
	default:
		return ""
	}
}
