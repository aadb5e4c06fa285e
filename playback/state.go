package playback

import "github.com/RyanBlaney/sonido-stage/algorithms/common"

// Status is the engine lifecycle state
type Status int

const (
	StatusUnloaded Status = iota
	StatusLoading
	StatusReady
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// loaded reports whether transport calls are valid in s
func (s Status) loaded() bool {
	return s == StatusReady || s == StatusPlaying || s == StatusPaused
}

// PlaybackState is a snapshot of the engine. Position and Duration are in
// seconds of source audio.
type PlaybackState struct {
	Status         Status  `json:"status"`
	IsLoaded       bool    `json:"is_loaded"`
	IsPlaying      bool    `json:"is_playing"`
	Position       float64 `json:"position"`
	Duration       float64 `json:"duration"`
	PitchSemitones int     `json:"pitch_semitones"`
	FineTuneCents  float64 `json:"fine_tune_cents"`
	TempoRatio     float64 `json:"tempo_ratio"`
	VolumeDB       float64 `json:"volume_db"`
	IsPitchLinked  bool    `json:"is_pitch_linked"`
	URL            string  `json:"url,omitempty"`
}

// Progress is Position as a fraction of Duration
func (s PlaybackState) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.Position / s.Duration
}

// DetuneCents is the total pitch offset pushed to the audio graph
func (s PlaybackState) DetuneCents() float64 {
	return float64(s.PitchSemitones)*100 + s.FineTuneCents
}

// Limits bounds the performer controls
type Limits struct {
	MaxPitch    int     `json:"max_pitch"` // semitones either way
	MinTempo    float64 `json:"min_tempo"`
	MaxTempo    float64 `json:"max_tempo"`
	MaxFineTune float64 `json:"max_fine_tune"` // cents either way
	MinVolumeDB float64 `json:"min_volume_db"`
	MaxVolumeDB float64 `json:"max_volume_db"`
}

// DefaultLimits matches the stage controls: two octaves of transposition,
// quarter to quadruple speed
func DefaultLimits() Limits {
	return Limits{
		MaxPitch:    24,
		MinTempo:    0.25,
		MaxTempo:    4,
		MaxFineTune: 100,
		MinVolumeDB: -60,
		MaxVolumeDB: 12,
	}
}

// ClampPitch bounds n to the pitch range
func (l Limits) ClampPitch(n int) int {
	return common.Clamp(n, -l.MaxPitch, l.MaxPitch)
}

func (l Limits) tempo(r float64) float64 {
	return common.Clamp(r, l.MinTempo, l.MaxTempo)
}

func (l Limits) fineTune(c float64) float64 {
	return common.Clamp(c, -l.MaxFineTune, l.MaxFineTune)
}

func (l Limits) volume(db float64) float64 {
	return common.Clamp(db, l.MinVolumeDB, l.MaxVolumeDB)
}
