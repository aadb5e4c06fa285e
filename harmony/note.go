package harmony

import (
	"fmt"
	"strconv"
)

// Octave range tracked for a performer's high note.
const (
	MinOctave = 0
	MaxOctave = 8
)

// Pitch is a pitch class in a specific octave, "G5" style.
type Pitch struct {
	Class  PitchClass
	Octave int
}

// ParsePitch parses a note name followed by a single octave digit 0..8.
func ParsePitch(s string) (Pitch, Notation, error) {
	if len(s) < 2 {
		return Pitch{}, Neutral, fmt.Errorf("invalid pitch %q", s)
	}
	octave, err := strconv.Atoi(s[len(s)-1:])
	if err != nil || octave < MinOctave || octave > MaxOctave {
		return Pitch{}, Neutral, fmt.Errorf("invalid octave in pitch %q", s)
	}
	class, notation, err := ParseNote(s[:len(s)-1])
	if err != nil {
		return Pitch{}, Neutral, err
	}
	return Pitch{Class: class, Octave: octave}, notation, nil
}

// Semitones counts semitones from C0.
func (p Pitch) Semitones() int {
	return p.Octave*12 + int(p.Class)
}

// Transpose moves p by n semitones. The octave is clamped to 0..8 while
// the pitch class always moves by n.
func (p Pitch) Transpose(n int) Pitch {
	total := int(p.Class) + n
	octave := p.Octave + floorDiv(total, 12)
	if octave < MinOctave {
		octave = MinOctave
	}
	if octave > MaxOctave {
		octave = MaxOctave
	}
	return Pitch{Class: PitchClass(mod12(total)), Octave: octave}
}

// Format spells p, "Bb4" style.
func (p Pitch) Format(notation Notation) string {
	return NoteName(p.Class, notation) + strconv.Itoa(p.Octave)
}

// TransposeNote transposes a pitch string such as "G5" by n semitones and
// spells the result with notation. Strings that are not pitches are returned
// unchanged.
func TransposeNote(s string, n int, notation Notation) string {
	p, _, err := ParsePitch(s)
	if err != nil {
		return s
	}
	return p.Transpose(n).Format(notation)
}

// CompareNotes orders two pitch strings: negative when a is lower, positive
// when higher, 0 when enharmonically equal. Unparseable strings compare as C4.
func CompareNotes(a, b string) int {
	return pitchOrMiddleC(a).Semitones() - pitchOrMiddleC(b).Semitones()
}

func pitchOrMiddleC(s string) Pitch {
	p, _, err := ParsePitch(s)
	if err != nil {
		return Pitch{Class: 0, Octave: 4}
	}
	return p
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
