package session

import (
	"errors"
	"sync"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/playback"
)

// ErrStageKeyLocked is returned when a confirmed stage key may not change
var ErrStageKeyLocked = errors.New("stage key is confirmed and locked")

// Song is the caller-owned record the pitch link keeps consistent
type Song struct {
	ID             string      `json:"id"`
	Title          string      `json:"title,omitempty"`
	OriginalKey    harmony.Key `json:"original_key"`
	TargetKey      harmony.Key `json:"target_key"`
	PitchSemitones int         `json:"pitch_semitones"`
	IsPitchLinked  bool        `json:"is_pitch_linked"`
	IsKeyConfirmed bool        `json:"is_key_confirmed"`
	AudioURL       string      `json:"audio_url,omitempty"`
}

// LinkedPitch is the pitch implied by the keys: the upward distance from
// the original key to the stage key
func (s Song) LinkedPitch() int {
	return harmony.SemitoneDistance(s.OriginalKey, s.TargetKey)
}

// PitchSink receives pitch changes, normally a *playback.Engine
type PitchSink interface {
	SetPitch(n int) error
	SetPitchLinked(linked bool)
}

// LinkOptions configures a PitchLink
type LinkOptions struct {
	Sink PitchSink
	// Notify receives a copy of the song after every change, without the
	// link's lock held
	Notify func(Song)
	// LockConfirmedStageKey refuses stage key and pitch changes once the
	// stage key is confirmed
	LockConfirmedStageKey bool
	// Limits bounds manual pitch changes the same way the engine does.
	// The zero value uses playback.DefaultLimits.
	Limits playback.Limits
	Logger logging.Logger
}

// PitchLink keeps a song's pitch equal to the distance between its original
// and stage keys while linked, and pushes every pitch change to the sink.
type PitchLink struct {
	mu     sync.Mutex
	song   Song
	opts   LinkOptions
	logger logging.Logger
}

// NewPitchLink wraps song. A linked song has its pitch recomputed and
// pushed immediately.
func NewPitchLink(song Song, opts LinkOptions) *PitchLink {
	if opts.Limits == (playback.Limits{}) {
		opts.Limits = playback.DefaultLimits()
	}
	l := &PitchLink{song: song, opts: opts, logger: opts.Logger}
	if l.logger == nil {
		l.logger = logging.WithFields(logging.Fields{
			"component": "pitch_link",
			"song_id":   song.ID,
		})
	}

	l.mu.Lock()
	if l.song.IsPitchLinked {
		l.song.PitchSemitones = l.song.LinkedPitch()
	} else {
		l.song.PitchSemitones = opts.Limits.ClampPitch(l.song.PitchSemitones)
	}
	l.mirrorLocked()
	l.mu.Unlock()
	return l
}

// Song returns a copy of the current record
func (l *PitchLink) Song() Song {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.song
}

// SetOriginalKey changes the key the recording is in
func (l *PitchLink) SetOriginalKey(key harmony.Key) {
	l.change(func(s *Song) error {
		s.OriginalKey = key
		l.relinkLocked()
		return nil
	})
}

// SetTargetKey changes the stage key and marks it confirmed
func (l *PitchLink) SetTargetKey(key harmony.Key) error {
	return l.change(func(s *Song) error {
		if err := l.checkLockLocked(); err != nil {
			return err
		}
		s.TargetKey = key
		s.IsKeyConfirmed = true
		l.relinkLocked()
		return nil
	})
}

// ResetTargetKey sets the stage key back to the original and the pitch to 0
func (l *PitchLink) ResetTargetKey() error {
	return l.change(func(s *Song) error {
		if err := l.checkLockLocked(); err != nil {
			return err
		}
		s.TargetKey = s.OriginalKey
		s.PitchSemitones = 0
		return nil
	})
}

// SetLinked links or unlinks pitch from the keys. Linking recomputes the
// pitch from the current keys; unlinking leaves it as it is.
func (l *PitchLink) SetLinked(linked bool) {
	l.change(func(s *Song) error {
		s.IsPitchLinked = linked
		l.relinkLocked()
		return nil
	})
}

// SetPitch sets the pitch directly, clamped to the pitch limits. While
// linked the stage key follows it so the link stays consistent.
func (l *PitchLink) SetPitch(n int) error {
	return l.change(func(s *Song) error {
		if err := l.checkLockLocked(); err != nil {
			return err
		}
		n = l.opts.Limits.ClampPitch(n)
		s.PitchSemitones = n
		if s.IsPitchLinked && s.OriginalKey.Valid() {
			target := harmony.Transpose(s.OriginalKey, n)
			if s.TargetKey.Valid() {
				target.Notation = s.TargetKey.Notation
			}
			s.TargetKey = target
		}
		return nil
	})
}

// ShiftPitch moves the pitch by delta semitones
func (l *PitchLink) ShiftPitch(delta int) error {
	l.mu.Lock()
	n := l.song.PitchSemitones + delta
	l.mu.Unlock()
	return l.SetPitch(n)
}

// SetKeyConfirmed marks the stage key as confirmed or not. Clearing it
// releases the lock.
func (l *PitchLink) SetKeyConfirmed(confirmed bool) {
	l.change(func(s *Song) error {
		s.IsKeyConfirmed = confirmed
		return nil
	})
}

// Attach switches the sink, e.g. after a new engine is created, and pushes
// the current pitch into it
func (l *PitchLink) Attach(sink PitchSink) {
	l.mu.Lock()
	l.opts.Sink = sink
	l.mirrorLocked()
	l.mu.Unlock()
}

func (l *PitchLink) checkLockLocked() error {
	if l.opts.LockConfirmedStageKey && l.song.IsKeyConfirmed {
		return ErrStageKeyLocked
	}
	return nil
}

func (l *PitchLink) relinkLocked() {
	if l.song.IsPitchLinked {
		l.song.PitchSemitones = l.song.LinkedPitch()
	}
}

func (l *PitchLink) change(fn func(s *Song) error) error {
	l.mu.Lock()
	before := l.song
	if err := fn(&l.song); err != nil {
		l.mu.Unlock()
		l.logger.Debug("Song change refused", logging.Fields{"error": err.Error()})
		return err
	}
	after := l.song
	if after != before {
		l.mirrorLocked()
	}
	notify := l.opts.Notify
	l.mu.Unlock()

	if after != before && notify != nil {
		notify(after)
	}
	return nil
}

// mirrorLocked pushes pitch and link flag into the sink. An engine
// without audio picks the pitch up on its next load.
func (l *PitchLink) mirrorLocked() {
	sink := l.opts.Sink
	if sink == nil {
		return
	}
	sink.SetPitchLinked(l.song.IsPitchLinked)
	if err := sink.SetPitch(l.song.PitchSemitones); err != nil && !errors.Is(err, playback.ErrNotLoaded) {
		l.logger.Warn("Pitch not applied", logging.Fields{
			"pitch": l.song.PitchSemitones,
			"error": err.Error(),
		})
	}
}
