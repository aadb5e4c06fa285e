// Package config holds the settings of every component, their defaults and
// JSON loading.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/filters"
	"github.com/RyanBlaney/sonido-stage/algorithms/temporal"
	"github.com/RyanBlaney/sonido-stage/algorithms/tonal"
	"github.com/RyanBlaney/sonido-stage/chart"
	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/playback"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

type Config struct {
	Log       LogConfig       `json:"log"`
	Chart     ChartConfig     `json:"chart"`
	Detection DetectionConfig `json:"detection"`
	Playback  PlaybackConfig  `json:"playback"`
	Store     StoreConfig     `json:"store"`
}

type LogConfig struct {
	Level   string `json:"level"` // "debug", "info", "warn", "error"
	NoColor bool   `json:"no_color"`
}

// ChartConfig controls chord chart parsing and rendering
type ChartConfig struct {
	Notation       string  `json:"notation"` // "sharp", "flat", "neutral"
	NoiseThreshold float64 `json:"noise_threshold"`
	AmbiguityBand  float64 `json:"ambiguity_band"`
}

type DetectionConfig struct {
	Profile        string  `json:"profile"` // "temperley", "krumhansl", "diatonic"
	WindowSize     int     `json:"window_size"`
	HopSize        int     `json:"hop_size"`
	SegmentSeconds float64 `json:"segment_seconds"`
	MinFreq        float64 `json:"min_freq"`
	MaxFreq        float64 `json:"max_freq"`
	TuningFreq     float64 `json:"tuning_freq"`
	Workers        int     `json:"workers"`
	MinBPM         float64 `json:"min_bpm"`
	MaxBPM         float64 `json:"max_bpm"`
	Top            int     `json:"top"` // candidates shown
}

type PlaybackConfig struct {
	GrainSeconds     float64                  `json:"grain_seconds"`
	BlockSize        int                      `json:"block_size"`
	DCCutoff         float64                  `json:"dc_cutoff"`
	Interpolation    string                   `json:"interpolation"` // linear or cubic
	DefaultVolumeDB  float64                  `json:"default_volume_db"`
	Compressor       filters.CompressorParams `json:"compressor"`
	Limits           playback.Limits          `json:"limits"`
	CacheSize        int                      `json:"cache_size"`
	PollIntervalMs   int                      `json:"poll_interval_ms"`
	MaxFetchBytes    int64                    `json:"max_fetch_bytes"`
	SampleRate       int                      `json:"sample_rate"` // decode target
	FFmpegPath       string                   `json:"ffmpeg_path"`
	FFprobePath      string                   `json:"ffprobe_path"`
	FFplayPath       string                   `json:"ffplay_path"`
	DecodeTimeoutSec int                      `json:"decode_timeout_sec"`

	// LockConfirmedStageKey refuses stage key changes once confirmed
	LockConfirmedStageKey bool `json:"lock_confirmed_stage_key"`
	// NotifyDebounceMs is the quiet period before a song change is saved
	NotifyDebounceMs int `json:"notify_debounce_ms"`
}

type StoreConfig struct {
	Path string `json:"path"` // SQLite file, ":memory:" for a throwaway store
}

func Default() *Config {
	return &Config{
		Log:       DefaultLogConfig(),
		Chart:     DefaultChartConfig(),
		Detection: DefaultDetectionConfig(),
		Playback:  DefaultPlaybackConfig(),
		Store:     DefaultStoreConfig(),
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info"}
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Notation:       "sharp",
		NoiseThreshold: chart.DefaultNoiseThreshold,
		AmbiguityBand:  chart.DefaultAmbiguityBand,
	}
}

// DefaultDetectionConfig mirrors tonal.DefaultDetectorParams and
// temporal.DefaultTempoParams
func DefaultDetectionConfig() DetectionConfig {
	kp := tonal.DefaultDetectorParams()
	tp := temporal.DefaultTempoParams()
	return DetectionConfig{
		Profile:        kp.Profile.String(),
		WindowSize:     kp.WindowSize,
		HopSize:        kp.HopSize,
		SegmentSeconds: kp.SegmentSeconds,
		MinFreq:        kp.MinFreq,
		MaxFreq:        kp.MaxFreq,
		TuningFreq:     kp.TuningFreq,
		MinBPM:         tp.MinBPM,
		MaxBPM:         tp.MaxBPM,
		Top:            3,
	}
}

func DefaultPlaybackConfig() PlaybackConfig {
	opts := playback.DefaultOptions()
	stream := playback.DefaultStreamConfig()
	dec := transcode.DefaultDecoderConfig()
	return PlaybackConfig{
		GrainSeconds:     stream.GrainSeconds,
		BlockSize:        stream.BlockSize,
		DCCutoff:         stream.DCCutoff,
		Interpolation:    stream.Interpolation.String(),
		DefaultVolumeDB:  *opts.DefaultVolumeDB,
		Compressor:       opts.Compressor,
		Limits:           opts.Limits,
		CacheSize:        opts.CacheSize,
		PollIntervalMs:   int(opts.PollInterval / time.Millisecond),
		MaxFetchBytes:    playback.DefaultMaxFetchBytes,
		SampleRate:       dec.TargetSampleRate,
		FFmpegPath:       dec.FFmpegPath,
		FFprobePath:      dec.FFprobePath,
		FFplayPath:       "ffplay",
		DecodeTimeoutSec: int(dec.Timeout / time.Second),
		NotifyDebounceMs: 500,
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Path: "sonido-stage.db"}
}

// Load reads a JSON file over the defaults. Fields missing from the file
// keep their default values; unknown fields are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load for in-memory JSON
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := harmony.ParseNotation(c.Chart.Notation); err != nil {
		errs = append(errs, fmt.Errorf("chart.notation: %w", err))
	}
	if c.Chart.NoiseThreshold <= 0 || c.Chart.NoiseThreshold >= 1 {
		errs = append(errs, fmt.Errorf("chart.noise_threshold must be in (0, 1), got %g", c.Chart.NoiseThreshold))
	}

	d := c.Detection
	if _, err := tonal.ParseKeyProfile(d.Profile); err != nil {
		errs = append(errs, fmt.Errorf("detection.profile: %w", err))
	}
	if d.WindowSize <= 0 || d.WindowSize&(d.WindowSize-1) != 0 {
		errs = append(errs, fmt.Errorf("detection.window_size must be a power of two, got %d", d.WindowSize))
	}
	if d.HopSize <= 0 || d.HopSize > d.WindowSize {
		errs = append(errs, fmt.Errorf("detection.hop_size must be in 1..window_size, got %d", d.HopSize))
	}
	if d.MaxFreq <= d.MinFreq || d.MinFreq <= 0 {
		errs = append(errs, fmt.Errorf("detection frequency range %g-%g is empty", d.MinFreq, d.MaxFreq))
	}
	if d.MaxBPM <= d.MinBPM || d.MinBPM <= 0 {
		errs = append(errs, fmt.Errorf("detection BPM range %g-%g is empty", d.MinBPM, d.MaxBPM))
	}

	p := c.Playback
	if p.GrainSeconds <= 0 {
		errs = append(errs, fmt.Errorf("playback.grain_seconds must be positive, got %g", p.GrainSeconds))
	}
	if _, err := common.ParseInterpolation(p.Interpolation); err != nil {
		errs = append(errs, fmt.Errorf("playback.interpolation: %w", err))
	}
	if p.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("playback.block_size must be positive, got %d", p.BlockSize))
	}
	if p.Compressor.Ratio < 1 {
		errs = append(errs, fmt.Errorf("playback.compressor.ratio must be at least 1, got %g", p.Compressor.Ratio))
	}
	if p.Limits.MaxPitch < 11 {
		errs = append(errs, fmt.Errorf("playback.limits.max_pitch must cover an octave (11), got %d", p.Limits.MaxPitch))
	}
	if p.Limits.MinTempo <= 0 || p.Limits.MaxTempo < p.Limits.MinTempo {
		errs = append(errs, fmt.Errorf("playback.limits tempo range %g-%g is invalid", p.Limits.MinTempo, p.Limits.MaxTempo))
	}
	if p.Limits.MaxVolumeDB < p.Limits.MinVolumeDB {
		errs = append(errs, fmt.Errorf("playback.limits volume range %g-%g is invalid", p.Limits.MinVolumeDB, p.Limits.MaxVolumeDB))
	}
	if err := transcode.NewDecoder(p.DecoderConfig()).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback decoder: %w", err))
	}
	if p.PollIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("playback.poll_interval_ms must be positive, got %d", p.PollIntervalMs))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is empty"))
	}
	return errors.Join(errs...)
}

// Logger builds the logger described by the log section
func (c LogConfig) Logger() (logging.Logger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	var logger *logging.DefaultLogger
	if c.NoColor {
		logger = logging.NewDefaultLoggerNoColor()
	} else {
		logger = logging.NewDefaultLogger()
	}
	logger.SetLevel(level)
	return logger, nil
}

// NotationValue parses the configured notation
func (c ChartConfig) NotationValue() harmony.Notation {
	n, err := harmony.ParseNotation(c.Notation)
	if err != nil {
		return harmony.Sharp
	}
	return n
}

func (c ChartConfig) Classifier() chart.Classifier {
	return chart.NewHeuristicClassifier(c.NoiseThreshold, c.AmbiguityBand)
}

func (c DetectionConfig) KeyDetectorParams() (tonal.DetectorParams, error) {
	profile, err := tonal.ParseKeyProfile(c.Profile)
	if err != nil {
		return tonal.DetectorParams{}, err
	}
	params := tonal.DefaultDetectorParams()
	params.Profile = profile
	params.WindowSize = c.WindowSize
	params.HopSize = c.HopSize
	params.SegmentSeconds = c.SegmentSeconds
	params.MinFreq = c.MinFreq
	params.MaxFreq = c.MaxFreq
	params.TuningFreq = c.TuningFreq
	params.Workers = c.Workers
	return params, nil
}

func (c DetectionConfig) TempoParams() temporal.TempoParams {
	params := temporal.DefaultTempoParams()
	params.MinBPM = c.MinBPM
	params.MaxBPM = c.MaxBPM
	return params
}

// StreamConfig is the rendering chain of the playback section. Validate
// rejects unknown interpolation names; here they fall back to linear.
func (c PlaybackConfig) StreamConfig() playback.StreamConfig {
	interp, _ := common.ParseInterpolation(c.Interpolation)
	return playback.StreamConfig{
		GrainSeconds:  c.GrainSeconds,
		BlockSize:     c.BlockSize,
		DCCutoff:      c.DCCutoff,
		Compressor:    c.Compressor,
		Interpolation: interp,
	}
}

func (c PlaybackConfig) DecoderConfig() *transcode.DecoderConfig {
	dec := transcode.DefaultDecoderConfig()
	dec.TargetSampleRate = c.SampleRate
	dec.FFmpegPath = c.FFmpegPath
	dec.FFprobePath = c.FFprobePath
	if c.DecodeTimeoutSec > 0 {
		dec.Timeout = time.Duration(c.DecodeTimeoutSec) * time.Second
	}
	return dec
}

// EngineOptions wires an engine from the playback section. newSink nil
// renders into a null graph.
func (c PlaybackConfig) EngineOptions(newSink playback.SinkFactory) playback.Options {
	opts := playback.DefaultOptions()
	opts.Fetch = playback.NewFetcher(nil, c.MaxFetchBytes)
	opts.Decode = transcode.NewDecoder(c.DecoderConfig()).Decode
	if newSink != nil {
		opts.NewGraph = playback.StreamGraphFactory(c.StreamConfig(), newSink)
	}
	opts.PollInterval = time.Duration(c.PollIntervalMs) * time.Millisecond
	opts.Limits = c.Limits
	opts.DefaultVolumeDB = playback.VolumeDB(c.DefaultVolumeDB)
	opts.Compressor = c.Compressor
	opts.CacheSize = c.CacheSize
	return opts
}

// NotifyDebounce is the quiet period before a song change is saved
func (c PlaybackConfig) NotifyDebounce() time.Duration {
	return time.Duration(c.NotifyDebounceMs) * time.Millisecond
}
