package chart

import (
	"errors"

	"github.com/RyanBlaney/sonido-stage/harmony"
)

// ErrNoChords is returned when a chart has no chord tokens to infer from.
var ErrNoChords = errors.New("no chord tokens found")

// Scoring weights for ExtractKey. Songs tend to open on the tonic and the
// final chord is a cadence.
const (
	occurrenceWeight = 1.0
	firstChordBonus  = 2.0
	lastChordBonus   = 1.0
)

// ExtractKey guesses a key from the chords of a chart. It reports false
// when the chart has no chord lines. Mode is a coarse call: minor only when
// minor chords on the winning root outnumber major ones.
func ExtractKey(text string) (harmony.Key, bool) {
	return ExtractKeyFromDocument(Parse(text))
}

// InferKey is ExtractKey returning ErrNoChords instead of false.
func InferKey(text string) (harmony.Key, error) {
	key, ok := ExtractKey(text)
	if !ok {
		return harmony.Unknown, ErrNoChords
	}
	return key, nil
}

// ExtractKeyFromDocument is ExtractKey on an already parsed chart.
func ExtractKeyFromDocument(doc Document) (harmony.Key, bool) {
	chords := doc.Chords()
	if len(chords) == 0 {
		return harmony.Unknown, false
	}

	var scores [12]float64
	firstSeen := [12]int{}
	for i := range firstSeen {
		firstSeen[i] = -1
	}
	for i, c := range chords {
		scores[c.Root] += occurrenceWeight
		if firstSeen[c.Root] < 0 {
			firstSeen[c.Root] = i
		}
	}
	scores[chords[0].Root] += firstChordBonus
	scores[chords[len(chords)-1].Root] += lastChordBonus

	best := chords[0].Root
	for pc := harmony.PitchClass(0); pc < 12; pc++ {
		if firstSeen[pc] < 0 {
			continue
		}
		if scores[pc] > scores[best] || (scores[pc] == scores[best] && firstSeen[pc] < firstSeen[best]) {
			best = pc
		}
	}

	minor, major := 0, 0
	notation := harmony.Neutral
	for _, c := range chords {
		if c.Root != best {
			continue
		}
		if notation == harmony.Neutral {
			notation = c.RootNotation
		}
		if c.IsMinor() {
			minor++
		} else {
			major++
		}
	}

	quality := harmony.Major
	if minor > major {
		quality = harmony.Minor
	}
	return harmony.Key{Root: best, Quality: quality, Notation: notation}, true
}
