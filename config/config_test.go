package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/algorithms/tonal"
	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/playback"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "temperley", cfg.Detection.Profile)
	assert.Equal(t, -6.0, cfg.Playback.DefaultVolumeDB)
	assert.Equal(t, 50, cfg.Playback.PollIntervalMs)
	assert.Equal(t, playback.DefaultLimits(), cfg.Playback.Limits)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"chart": {"notation": "flat"},
		"detection": {"profile": "krumhansl", "top": 5},
		"playback": {"compressor": {"threshold_db": -18, "ratio": 2}}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, harmony.Flat, cfg.Chart.NotationValue())
	assert.Equal(t, 5, cfg.Detection.Top)
	assert.Equal(t, 8192, cfg.Detection.WindowSize)
	assert.Equal(t, -18.0, cfg.Playback.Compressor.ThresholdDB)
	assert.Equal(t, 2.0, cfg.Playback.Compressor.Ratio)
	// attack and release were not in the file
	assert.Equal(t, 0.003, cfg.Playback.Compressor.Attack)
	assert.Equal(t, "info", cfg.Log.Level)

	params, err := cfg.Detection.KeyDetectorParams()
	require.NoError(t, err)
	assert.Equal(t, tonal.KeyProfileKrumhansl, params.Profile)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"playback": {"grain": 0.2}}`))
	assert.ErrorContains(t, err, "unknown field")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	cfg.Detection.WindowSize = 1000
	cfg.Playback.Compressor.Ratio = 0.5
	cfg.Playback.Limits.MaxPitch = 5
	cfg.Playback.SampleRate = 0
	cfg.Playback.Interpolation = "sinc"
	cfg.Store.Path = ""

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"log.level", "window_size", "compressor.ratio", "max_pitch", "target sample rate", "interpolation", "store.path"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestEngineOptions(t *testing.T) {
	pc := DefaultPlaybackConfig()
	pc.PollIntervalMs = 20
	pc.CacheSize = 2

	opts := pc.EngineOptions(nil)
	assert.Equal(t, 20*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 2, opts.CacheSize)
	assert.NotNil(t, opts.Fetch)
	assert.NotNil(t, opts.Decode)
	assert.NotNil(t, opts.NewGraph)
	require.NotNil(t, opts.DefaultVolumeDB)
	assert.Equal(t, -6.0, *opts.DefaultVolumeDB)

	pc.DefaultVolumeDB = 0
	assert.Equal(t, 0.0, playback.NewEngine(pc.EngineOptions(nil)).Snapshot().VolumeDB)

	withSink := pc.EngineOptions(func(int) (playback.Sink, error) { return &playback.NullSink{}, nil })
	assert.NotNil(t, withSink.NewGraph)

	assert.Equal(t, 500*time.Millisecond, pc.NotifyDebounce())
	assert.Equal(t, 60*time.Second, pc.DecoderConfig().Timeout)
	assert.Equal(t, pc.GrainSeconds, pc.StreamConfig().GrainSeconds)
	assert.Equal(t, common.Linear, pc.StreamConfig().Interpolation)
	pc.Interpolation = "cubic"
	assert.Equal(t, common.Cubic, pc.StreamConfig().Interpolation)
}

func TestLogger(t *testing.T) {
	logger, err := LogConfig{Level: "debug", NoColor: true}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = LogConfig{Level: "chatty"}.Logger()
	assert.Error(t, err)
}
