// Package songstore persists song records in SQLite.
package songstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/session"
)

// ErrNotFound is returned for an unknown song ID
var ErrNotFound = errors.New("song not found")

const schema = `
CREATE TABLE IF NOT EXISTS songs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	original_key TEXT NOT NULL,
	original_notation TEXT NOT NULL,
	target_key TEXT NOT NULL,
	target_notation TEXT NOT NULL,
	pitch_semitones INTEGER NOT NULL DEFAULT 0,
	is_pitch_linked INTEGER NOT NULL DEFAULT 1,
	is_key_confirmed INTEGER NOT NULL DEFAULT 0,
	audio_url TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_songs_updated_at ON songs(updated_at);
`

// Store is a song table in one SQLite database
type Store struct {
	db     *sql.DB
	now    func() time.Time
	logger logging.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open song store: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create songs table: %w", err)
	}
	return &Store{
		db:  db,
		now: time.Now,
		logger: logging.WithFields(logging.Fields{
			"component": "song_store",
			"path":      path,
		}),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores a new song, assigning an ID when it has none
func (s *Store) Create(ctx context.Context, song session.Song) (session.Song, error) {
	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	if err := s.Save(ctx, song); err != nil {
		return session.Song{}, err
	}
	return song, nil
}

// Save inserts or replaces song
func (s *Store) Save(ctx context.Context, song session.Song) error {
	if song.ID == "" {
		return errors.New("song has no id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO songs (
			id, title, original_key, original_notation, target_key, target_notation,
			pitch_semitones, is_pitch_linked, is_key_confirmed, audio_url, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		song.ID, song.Title,
		song.OriginalKey.String(), song.OriginalKey.Notation.String(),
		song.TargetKey.String(), song.TargetKey.Notation.String(),
		song.PitchSemitones, song.IsPitchLinked, song.IsKeyConfirmed,
		song.AudioURL, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save song %s: %w", song.ID, err)
	}
	s.logger.Debug("Song saved", logging.Fields{
		"song_id": song.ID,
		"pitch":   song.PitchSemitones,
	})
	return nil
}

// Get loads one song
func (s *Store) Get(ctx context.Context, id string) (session.Song, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, original_key, original_notation, target_key, target_notation,
			pitch_semitones, is_pitch_linked, is_key_confirmed, audio_url
		FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Song{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return song, err
}

// List returns all songs, most recently updated first
func (s *Store) List(ctx context.Context) ([]session.Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, original_key, original_notation, target_key, target_notation,
			pitch_semitones, is_pitch_linked, is_key_confirmed, audio_url
		FROM songs ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	var songs []session.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete song %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Persist saves song and logs failures; it fits session.DebouncedNotifier
func (s *Store) Persist(song session.Song) {
	if err := s.Save(context.Background(), song); err != nil {
		s.logger.Error(err, "Song change not persisted", logging.Fields{"song_id": song.ID})
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (session.Song, error) {
	var (
		song                      session.Song
		origKey, origNotation     string
		targetKey, targetNotation string
	)
	err := row.Scan(&song.ID, &song.Title, &origKey, &origNotation, &targetKey, &targetNotation,
		&song.PitchSemitones, &song.IsPitchLinked, &song.IsKeyConfirmed, &song.AudioURL)
	if err != nil {
		return session.Song{}, err
	}
	song.OriginalKey = decodeKey(origKey, origNotation)
	song.TargetKey = decodeKey(targetKey, targetNotation)
	return song, nil
}

// decodeKey restores a key and its preferred spelling. Unparseable labels,
// including "TBC", read back as harmony.Unknown.
func decodeKey(label, notation string) harmony.Key {
	key, err := harmony.ParseKey(label)
	if err != nil {
		return harmony.Unknown
	}
	if n, err := harmony.ParseNotation(notation); err == nil {
		key.Notation = n
	}
	return key
}
