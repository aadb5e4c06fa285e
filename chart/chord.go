// Package chart reads chord-annotated song charts: it classifies lines,
// extracts chord tokens, transposes chords in place and guesses a key from
// the chords it finds.
package chart

import (
	"regexp"
	"strings"

	"github.com/RyanBlaney/sonido-stage/harmony"
)

// ChordToken is one chord symbol found on a chord line. Start and End are
// byte offsets of Raw within the line.
type ChordToken struct {
	Raw          string
	Root         harmony.PitchClass
	RootNotation harmony.Notation
	Quality      string
	Bass         harmony.PitchClass
	BassNotation harmony.Notation
	Start        int
	End          int
}

// HasBass reports whether the chord has a slash bass note.
func (c ChordToken) HasBass() bool {
	return c.Bass.Valid()
}

// IsMinor reports whether the suffix names a minor triad.
func (c ChordToken) IsMinor() bool {
	q := c.Quality
	switch {
	case strings.HasPrefix(q, "maj"):
		return false
	case strings.HasPrefix(q, "min"), strings.HasPrefix(q, "m"):
		return true
	}
	return false
}

// Transpose renders the chord moved by n semitones. Root and bass move
// independently by the same amount and the suffix is kept. With Neutral
// notation each note keeps the accidental style it was written with.
func (c ChordToken) Transpose(n int, notation harmony.Notation) string {
	var b strings.Builder
	b.WriteString(spell(c.Root, n, c.RootNotation, notation))
	b.WriteString(c.Quality)
	if c.HasBass() {
		b.WriteByte('/')
		b.WriteString(spell(c.Bass, n, c.BassNotation, notation))
	}
	return b.String()
}

func spell(p harmony.PitchClass, n int, written, requested harmony.Notation) string {
	moved := harmony.Transpose(harmony.Key{Root: p}, n).Root
	if requested == harmony.Neutral {
		requested = harmony.Sharp
		if written == harmony.Flat {
			requested = harmony.Flat
		}
	}
	return harmony.NoteName(moved, requested)
}

// root, accidental, suffix, bass letter, bass accidental
var chordPattern = regexp.MustCompile(
	`^([A-G])(#|b|♯|♭)?` +
		`((?:maj|min|dim|aug|sus|add|alt|no|M|m|\+|°|ø|Δ|[#b♯♭]?\d+|/\d+|\(|\)|,)*)` +
		`(?:/([A-G])(#|b|♯|♭)?)?$`)

// ParseChord parses a single chord symbol such as "F#m7/C#". It reports
// false for anything outside the chord grammar.
func ParseChord(s string) (ChordToken, bool) {
	m := chordPattern.FindStringSubmatch(s)
	if m == nil {
		return ChordToken{}, false
	}
	if strings.Count(m[3], "(") != strings.Count(m[3], ")") {
		return ChordToken{}, false
	}

	root, rootNotation, err := harmony.ParseNote(m[1] + m[2])
	if err != nil {
		return ChordToken{}, false
	}
	tok := ChordToken{
		Raw:          s,
		Root:         root,
		RootNotation: rootNotation,
		Quality:      m[3],
		Bass:         harmony.NoPitch,
		End:          len(s),
	}
	if m[4] != "" {
		bass, bassNotation, err := harmony.ParseNote(m[4] + m[5])
		if err != nil {
			return ChordToken{}, false
		}
		tok.Bass = bass
		tok.BassNotation = bassNotation
	}
	return tok, true
}

var repeatPattern = regexp.MustCompile(`^\(?(?:[xX]\d+|\d+[xX])\)?$`)

// isNeutralWord reports words that are neither chords nor lyrics: bar
// lines, repeat markers and no-chord marks.
func isNeutralWord(w string) bool {
	if strings.Trim(w, "|:/-%.~*") == "" {
		return true
	}
	if repeatPattern.MatchString(w) {
		return true
	}
	switch strings.Trim(w, "()") {
	case "N.C.", "N.C", "NC", "n.c.":
		return true
	}
	return false
}

// trimWord strips bar lines and unbalanced brackets around a chord so
// "|Am" and "(G)" still parse. It returns the offset of the core in w.
func trimWord(w string) (core string, offset int) {
	core = strings.TrimLeft(w, "|:(")
	offset = len(w) - len(core)
	core = strings.TrimRight(core, "|:,")
	for strings.HasSuffix(core, ")") && strings.Count(core, ")") > strings.Count(core, "(") {
		core = core[:len(core)-1]
	}
	return core, offset
}
