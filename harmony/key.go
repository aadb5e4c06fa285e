// Package harmony models musical keys: pitch classes, spelling, semitone
// distances and transposition. Everything here is pure and safe for
// concurrent use.
package harmony

import (
	"errors"
	"fmt"
	"strings"
)

// PitchClass is a pitch class in 0..11 with C = 0.
type PitchClass int

// NoPitch marks an unknown root.
const NoPitch PitchClass = -1

// Valid reports whether p is in 0..11.
func (p PitchClass) Valid() bool {
	return p >= 0 && p < 12
}

// Quality is the mode of a key.
type Quality int

const (
	Major Quality = iota
	Minor
	QualityUnknown
)

func (q Quality) String() string {
	switch q {
	case Major:
		return "major"
	case Minor:
		return "minor"
	default:
		return "unknown"
	}
}

// Notation selects the spelling used when rendering a pitch class.
type Notation int

const (
	Sharp Notation = iota
	Flat
	Neutral
)

func (n Notation) String() string {
	switch n {
	case Sharp:
		return "sharp"
	case Flat:
		return "flat"
	default:
		return "neutral"
	}
}

// ParseNotation accepts "sharp", "flat", "neutral" and the symbols "#" and "b".
func ParseNotation(s string) (Notation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sharp", "sharps", "#", "♯":
		return Sharp, nil
	case "flat", "flats", "b", "♭":
		return Flat, nil
	case "neutral", "":
		return Neutral, nil
	}
	return Neutral, fmt.Errorf("unknown notation %q", s)
}

// UnknownLabel is what an unknown or unparseable key renders as.
const UnknownLabel = "TBC"

var (
	sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
)

// ErrUnknownKey is returned when a key string names no key.
var ErrUnknownKey = errors.New("unknown key")

// Key is a tonal center. The zero value is C major spelled with sharps.
type Key struct {
	Root     PitchClass
	Quality  Quality
	Notation Notation
}

// Unknown is the key of a song whose key has not been established.
var Unknown = Key{Root: NoPitch, Quality: QualityUnknown, Notation: Neutral}

// NewKey builds a key, folding root into 0..11.
func NewKey(root int, quality Quality, notation Notation) Key {
	return Key{Root: PitchClass(mod12(root)), Quality: quality, Notation: notation}
}

// Valid reports whether k has a known root.
func (k Key) Valid() bool {
	return k.Root.Valid()
}

// String renders k with its own notation.
func (k Key) String() string {
	return Format(k, k.Notation)
}

// Format renders key with the given notation, "C#m" or "Db" style. Neutral
// uses sharp names. Invalid keys render as "TBC".
func Format(key Key, notation Notation) string {
	if !key.Valid() {
		return UnknownLabel
	}
	name := NoteName(key.Root, notation)
	if key.Quality == Minor {
		name += "m"
	}
	return name
}

// NoteName spells a pitch class. Invalid pitch classes render as "TBC".
func NoteName(p PitchClass, notation Notation) string {
	if !p.Valid() {
		return UnknownLabel
	}
	if notation == Flat {
		return flatNames[p]
	}
	return sharpNames[p]
}

// FormatString normalizes a free-form key string such as "D Major",
// "c minor" or "Bbm" and renders it with notation. Anything unparseable
// renders as "TBC".
func FormatString(s string, notation Notation) string {
	key, err := ParseKey(s)
	if err != nil {
		return UnknownLabel
	}
	return Format(key, notation)
}

// ParseKey parses "C", "C#m", "Eb minor", "a min", "F major" and similar.
// The returned key's notation reflects the accidental that was written.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, UnknownLabel) {
		return Unknown, ErrUnknownKey
	}

	root, notation, rest, err := parseNotePrefix(s)
	if err != nil {
		return Unknown, err
	}

	rest = strings.TrimSpace(rest)
	quality := Major
	switch {
	case rest == "" || rest == "M":
	case rest == "m" || rest == "-":
		quality = Minor
	default:
		switch strings.ToLower(rest) {
		case "maj", "major", "ionian":
		case "min", "minor", "aeolian":
			quality = Minor
		default:
			return Unknown, fmt.Errorf("%w: %q", ErrUnknownKey, s)
		}
	}

	return Key{Root: root, Quality: quality, Notation: notation}, nil
}

// ParseNote parses a bare note name such as "F#" or "Bb".
func ParseNote(s string) (PitchClass, Notation, error) {
	root, notation, rest, err := parseNotePrefix(strings.TrimSpace(s))
	if err != nil {
		return NoPitch, Neutral, err
	}
	if rest != "" {
		return NoPitch, Neutral, fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return root, notation, nil
}

var letterPitch = map[byte]PitchClass{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// parseNotePrefix reads a letter and an optional accidental from the front of s.
func parseNotePrefix(s string) (PitchClass, Notation, string, error) {
	if s == "" {
		return NoPitch, Neutral, "", ErrUnknownKey
	}
	letter := s[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	base, ok := letterPitch[letter]
	if !ok {
		return NoPitch, Neutral, "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}

	rest := s[1:]
	notation := Neutral
	switch {
	case strings.HasPrefix(rest, "#"):
		base++
		notation = Sharp
		rest = rest[1:]
	case strings.HasPrefix(rest, "♯"):
		base++
		notation = Sharp
		rest = rest[len("♯"):]
	case strings.HasPrefix(rest, "♭"):
		base--
		notation = Flat
		rest = rest[len("♭"):]
	case strings.HasPrefix(rest, "b"):
		base--
		notation = Flat
		rest = rest[1:]
	}

	return PitchClass(mod12(int(base))), notation, rest, nil
}

// SemitoneDistance is the upward distance from one key's root to the
// other's, in 0..11. It is 0 if either key is unknown.
func SemitoneDistance(from, to Key) int {
	if !from.Valid() || !to.Valid() {
		return 0
	}
	return mod12(int(to.Root) - int(from.Root))
}

// ShortestOffset is the signed offset in -5..6 that reaches to from from
// with the fewest semitones. It is 0 if either key is unknown.
func ShortestOffset(from, to Key) int {
	d := SemitoneDistance(from, to)
	if d > 6 {
		d -= 12
	}
	return d
}

// Transpose moves key by n semitones, keeping quality and notation.
// Unknown keys are returned unchanged.
func Transpose(key Key, n int) Key {
	if !key.Valid() {
		return key
	}
	key.Root = PitchClass(mod12(int(key.Root) + n))
	return key
}

// EnharmonicEqual compares roots only, so C# and Db are equal.
func EnharmonicEqual(a, b Key) bool {
	if !a.Valid() || !b.Valid() {
		return !a.Valid() && !b.Valid()
	}
	return a.Root == b.Root
}

// Relative returns the relative minor of a major key and the relative
// major of a minor key.
func Relative(key Key) Key {
	switch {
	case !key.Valid():
		return key
	case key.Quality == Minor:
		key = Transpose(key, 3)
		key.Quality = Major
	default:
		key = Transpose(key, 9)
		key.Quality = Minor
	}
	return key
}

// KeyCandidate is one ranked guess at a key, confidence in 0..100.
type KeyCandidate struct {
	Key        Key     `json:"key"`
	Confidence float64 `json:"confidence"`
}

func (c KeyCandidate) String() string {
	return fmt.Sprintf("%s (%.0f%%)", c.Key, c.Confidence)
}

func mod12(n int) int {
	n %= 12
	if n < 0 {
		n += 12
	}
	return n
}
