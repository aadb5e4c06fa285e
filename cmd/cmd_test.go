package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/RyanBlaney/sonido-stage/logging"
	"github.com/RyanBlaney/sonido-stage/playback"
	"github.com/RyanBlaney/sonido-stage/session"
	"github.com/RyanBlaney/sonido-stage/transcode"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error", "--no-color"}, args...))
	err := root.Execute()
	return out.String(), err
}

func writeChart(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chart.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestTransposeCommand(t *testing.T) {
	path := writeChart(t, "[Verse]\nG  C  D\nHello world\n")

	out, err := run(t, "transpose", path, "-s", "2")
	require.NoError(t, err)
	assert.Equal(t, "[Verse]\nA  D  E\nHello world\n", out)

	out, err = run(t, "transpose", path, "--to", "A")
	require.NoError(t, err)
	assert.Equal(t, "[Verse]\nA  D  E\nHello world\n", out)

	out, err = run(t, "transpose", path, "-s", "3", "--notation", "flat")
	require.NoError(t, err)
	assert.Contains(t, out, "Bb  Eb  F")

	_, err = run(t, "transpose", path, "--notation", "sideways")
	assert.Error(t, err)

	lyrics := writeChart(t, "only words here\n")
	_, err = run(t, "transpose", lyrics, "--to", "C")
	assert.ErrorContains(t, err, "no chord tokens")
}

func TestKeyCommand(t *testing.T) {
	out, err := run(t, "key", writeChart(t, "Am Dm E Am\nthe words\nAm G F E\n"))
	require.NoError(t, err)
	assert.Equal(t, "Am\n", out)

	out, err = run(t, "key", writeChart(t, "no chords at all\n"))
	require.NoError(t, err)
	assert.Equal(t, "TBC\n", out)
}

func TestDistanceCommand(t *testing.T) {
	out, err := run(t, "distance", "A", "C")
	require.NoError(t, err)
	assert.Equal(t, "3 (shortest +3)\n", out)

	out, err = run(t, "distance", "C", "A")
	require.NoError(t, err)
	assert.Equal(t, "9 (shortest -3)\n", out)

	out, err = run(t, "distance", "TBC", "A")
	require.NoError(t, err)
	assert.Equal(t, "0 (shortest +0)\n", out)

	_, err = run(t, "distance", "H", "C")
	assert.Error(t, err)
}

func songID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) == 2 && f[0] == "id:" {
			return f[1]
		}
	}
	t.Fatalf("no id in %q", out)
	return ""
}

func TestSongCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "songs.db")

	out, err := run(t, "--db", db, "song", "add", "--title", "Hallelujah", "--key", "A", "--target", "C")
	require.NoError(t, err)
	assert.Contains(t, out, "pitch:    +3 (linked)")
	id := songID(t, out)

	out, err = run(t, "--db", db, "song", "set", id, "--target", "D")
	require.NoError(t, err)
	assert.Contains(t, out, "stage:    D, confirmed")
	assert.Contains(t, out, "pitch:    +5 (linked)")

	_, err = run(t, "--db", db, "song", "unlink", id)
	require.NoError(t, err)
	out, err = run(t, "--db", db, "song", "set", id, "--key", "G")
	require.NoError(t, err)
	assert.Contains(t, out, "pitch:    +5 (unlinked)")

	out, err = run(t, "--db", db, "song", "link", id)
	require.NoError(t, err)
	assert.Contains(t, out, "pitch:    +7 (linked)")

	out, err = run(t, "--db", db, "song", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "title:    Hallelujah")
	assert.Contains(t, out, "original: G")

	out, err = run(t, "--db", db, "song", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	require.NoError(t, func() error { _, err := run(t, "--db", db, "song", "delete", id); return err }())
	_, err = run(t, "--db", db, "song", "show", id)
	assert.ErrorContains(t, err, "song not found")
}

func newTestPerformer(t *testing.T) (*performer, *bytes.Buffer) {
	t.Helper()
	engine := playback.NewEngine(playback.Options{Logger: &logging.NoOpLogger{}})
	require.NoError(t, engine.LoadBuffer(&transcode.AudioData{
		PCM:        make([]float64, 1000),
		SampleRate: 100,
		Channels:   1,
	}, 0))

	a, _ := harmony.ParseKey("A")
	c, _ := harmony.ParseKey("C")
	link := session.NewPitchLink(session.Song{
		ID:            "s",
		OriginalKey:   a,
		TargetKey:     c,
		IsPitchLinked: true,
	}, session.LinkOptions{Sink: engine, Logger: &logging.NoOpLogger{}})

	var out bytes.Buffer
	return &performer{engine: engine, link: link, out: &out}, &out
}

func TestPerformerCommands(t *testing.T) {
	p, out := newTestPerformer(t)
	e := p.engine
	assert.Equal(t, 3, e.Snapshot().PitchSemitones)

	assert.True(t, p.handle("play"))
	assert.True(t, e.Snapshot().IsPlaying)
	assert.True(t, p.handle("play"))
	assert.True(t, e.Snapshot().IsPlaying)
	assert.True(t, p.handle("pause"))
	assert.False(t, e.Snapshot().IsPlaying)

	p.handle("pitch 5")
	assert.Equal(t, 5, e.Snapshot().PitchSemitones)
	assert.Equal(t, "D", p.link.Song().TargetKey.String())

	p.handle("shift -2")
	assert.Equal(t, 3, e.Snapshot().PitchSemitones)

	p.handle("target Bb")
	assert.Equal(t, 1, e.Snapshot().PitchSemitones)

	p.handle("unlink")
	p.handle("key G")
	assert.Equal(t, 1, e.Snapshot().PitchSemitones)
	p.handle("link")
	assert.Equal(t, 3, e.Snapshot().PitchSemitones)

	p.handle("tempo 2")
	p.handle("vol -12")
	p.handle("fine 30")
	s := e.Snapshot()
	assert.Equal(t, 2.0, s.TempoRatio)
	assert.Equal(t, -12.0, s.VolumeDB)
	assert.Equal(t, 30.0, s.FineTuneCents)

	p.handle("seek 50%")
	assert.InDelta(t, 5.0, e.Snapshot().Position, 1e-9)
	p.handle("seek 2")
	assert.InDelta(t, 2.0, e.Snapshot().Position, 1e-9)

	out.Reset()
	p.handle("pitch x")
	assert.Contains(t, out.String(), "missing or invalid argument")

	out.Reset()
	p.handle("transmogrify")
	assert.Contains(t, out.String(), "Unknown command")

	out.Reset()
	p.handle("status")
	assert.Contains(t, out.String(), "key G -> Bb")

	assert.True(t, p.handle("   "))
	assert.False(t, p.handle("quit"))
}

func TestPerformerReportsUnloadedEngine(t *testing.T) {
	p, out := newTestPerformer(t)
	p.engine.ResetEngine()

	out.Reset()
	p.handle("play")
	assert.Equal(t, "No audio loaded\n", out.String())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00", formatClock(-1))
	assert.Equal(t, "1:05", formatClock(65.9))
	assert.Equal(t, "12:00", formatClock(720))
}
