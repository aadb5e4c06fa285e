package chart

import (
	"testing"

	"github.com/RyanBlaney/sonido-stage/harmony"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	cases := []struct {
		in      string
		root    harmony.PitchClass
		quality string
		bass    harmony.PitchClass
	}{
		{"C", 0, "", harmony.NoPitch},
		{"F#m7", 6, "m7", harmony.NoPitch},
		{"Bbmaj7", 10, "maj7", harmony.NoPitch},
		{"Dsus4", 2, "sus4", harmony.NoPitch},
		{"Cadd9", 0, "add9", harmony.NoPitch},
		{"Em/G", 4, "m", 7},
		{"E/G#", 4, "", 8},
		{"Am7b5", 9, "m7b5", harmony.NoPitch},
		{"G7(b9)", 7, "7(b9)", harmony.NoPitch},
		{"Bdim", 11, "dim", harmony.NoPitch},
		{"Caug", 0, "aug", harmony.NoPitch},
		{"C6/9", 0, "6/9", harmony.NoPitch},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			tok, ok := ParseChord(c.in)
			require.True(t, ok)
			assert.Equal(t, c.root, tok.Root)
			assert.Equal(t, c.quality, tok.Quality)
			assert.Equal(t, c.bass, tok.Bass)
		})
	}

	for _, bad := range []string{"", "H", "Day", "Add", "C7(b9", "follow", "Am/"} {
		_, ok := ParseChord(bad)
		assert.False(t, ok, bad)
	}
}

func TestIsChordLine(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsChordLine("Am G C F"))
	assert.True(IsChordLine("  | Am   | G  | C/E  | F  |  x2"))
	assert.True(IsChordLine("(G) N.C. D7"))
	assert.False(IsChordLine("I will follow you"))
	assert.False(IsChordLine("A DAY in the life"))
	assert.False(IsChordLine(""))
	assert.False(IsChordLine("[Chorus]"))
}

func TestClassify(t *testing.T) {
	c := NewHeuristicClassifier(0, -1)

	assert.Equal(t, Blank, c.Classify("   ").Kind)
	assert.Equal(t, SectionLabel, c.Classify(" [Verse 1] ").Kind)

	res := c.Classify("C G Am F hi")
	assert.Equal(t, ChordLine, res.Kind)
	assert.Len(t, res.Tokens, 4)
	assert.InDelta(t, 2.0/7.0, res.NoiseRatio, 1e-9)

	// 4 chord chars against 3 noise chars sits above 0.35 but inside the band
	amb := c.Classify("C G Am you")
	assert.Equal(t, LyricLine, amb.Kind)
	assert.True(t, amb.Ambiguous)
	assert.InDelta(t, 3.0/7.0, amb.NoiseRatio, 1e-9)

	lyric := c.Classify("Am I the only one")
	assert.Equal(t, LyricLine, lyric.Kind)
	assert.False(t, lyric.Ambiguous)
}

func TestClassifierFunc(t *testing.T) {
	allChords := ClassifierFunc(func(line string) Classification {
		return Classification{Kind: ChordLine, Tokens: Tokenize(line)}
	})
	out := Transposer{Classifier: allChords}.TransposeChords("A DAY", 2, harmony.Sharp)
	assert.Equal(t, "B DAY", out)
}

func TestTokenizeOffsets(t *testing.T) {
	line := "|Am  (G)  C/E"
	tokens := Tokenize(line)
	require.Len(t, tokens, 3)
	for _, tok := range tokens {
		assert.Equal(t, tok.Raw, line[tok.Start:tok.End])
	}
	assert.Equal(t, "G", tokens[1].Raw)
}

func TestTransposeChords(t *testing.T) {
	text := "[Verse]\nAm      G       C\nI will follow you\n| Bb  F/A |\r\n"

	got := TransposeChords(text, 2, harmony.Sharp)
	assert.Equal(t, "[Verse]\nBm      A       D\nI will follow you\n| C  G/B |\r\n", got)

	flat := TransposeChords("C  G/B  Am7", 1, harmony.Flat)
	assert.Equal(t, "Db  Ab/C  Bbm7", flat)

	neutral := TransposeChords("Eb  C#m", 2, harmony.Neutral)
	assert.Equal(t, "F  D#m", neutral)

	assert.Equal(t, text, TransposeChords(text, 0, harmony.Flat))
}

func TestTransposeChordsRoundTrip(t *testing.T) {
	text := "  C#m7   A/C#  |  E   B  x2\n\n[Chorus]\nF#  G#m  E\nwords stay put\r\nD  A/F#"
	for n := -14; n <= 14; n++ {
		up := TransposeChords(text, n, harmony.Sharp)
		back := TransposeChords(up, -n, harmony.Sharp)
		assert.Equal(t, text, back, "n=%d", n)
	}
}

func TestTransposeKeepsLineKind(t *testing.T) {
	c := NewHeuristicClassifier(0, -1)

	noisy := "C#m7 F# hi"
	assert.Equal(t, ChordLine, c.Classify(noisy).Kind)
	for n := -12; n <= 12; n++ {
		for _, notation := range []harmony.Notation{harmony.Sharp, harmony.Flat} {
			up := TransposeChords(noisy, n, notation)
			moved := c.Classify(up)
			assert.Equal(t, ChordLine, moved.Kind, "n=%d %q", n, up)
			assert.InDelta(t, c.Classify(noisy).NoiseRatio, moved.NoiseRatio, 1e-9)
			assert.Equal(t, noisy, TransposeChords(up, -n, harmony.Sharp), "n=%d", n)
		}
	}

	// accidentals never move a line across the threshold
	borderline := "C# F# hi"
	before := c.Classify(borderline)
	after := c.Classify(TransposeChords(borderline, 1, harmony.Sharp))
	assert.Equal(t, before.Kind, after.Kind)
	assert.Equal(t, before.Ambiguous, after.Ambiguous)
	assert.Equal(t, borderline, TransposeChords(TransposeChords(borderline, 1, harmony.Sharp), -1, harmony.Sharp))
}

func TestTransposeNeutralKeepsWrittenAccidentals(t *testing.T) {
	// each note keeps the accidental style it was written with; naturals use sharps
	got := TransposeChords("Bb  F#m  C/E", 1, harmony.Neutral)
	assert.Equal(t, "B  Gm  C#/F", got)

	got = TransposeChords("Eb/Bb  A", 1, harmony.Neutral)
	assert.Equal(t, "E/B  A#", got)

	assert.Equal(t, "Eb/Bb  A", TransposeChords(got, -1, harmony.Flat))
}

func TestDocument(t *testing.T) {
	doc := Parse("[Intro]\nC G\nla la\n")
	require.Len(t, doc.Lines, 3)
	assert.Equal(t, SectionLabel, doc.Lines[0].Kind)
	assert.Equal(t, ChordLine, doc.Lines[1].Kind)
	assert.Equal(t, LyricLine, doc.Lines[2].Kind)
	assert.Len(t, doc.Chords(), 2)
	assert.Equal(t, "[Intro]\nC G\nla la\n", doc.String())

	moved := doc.Transpose(5, harmony.Flat)
	chords := moved.Chords()
	assert.Equal(t, harmony.PitchClass(5), chords[0].Root)
	assert.Equal(t, "C", chords[1].Raw)
	assert.Equal(t, "F C", moved.Lines[1].Text[chords[0].Start:chords[1].End])
}

func TestExtractKey(t *testing.T) {
	key, ok := ExtractKey("C Am F G C")
	require.True(t, ok)
	assert.Equal(t, harmony.PitchClass(0), key.Root)
	assert.Equal(t, harmony.Major, key.Quality)

	_, ok = ExtractKey("")
	assert.False(t, ok)

	_, err := InferKey("just some lyrics here")
	assert.ErrorIs(t, err, ErrNoChords)

	minor, ok := ExtractKey("Am Dm E Am\nthe words\nAm G F E")
	require.True(t, ok)
	assert.Equal(t, "Am", minor.String())

	flat, ok := ExtractKey("Bb Eb F Bb")
	require.True(t, ok)
	assert.Equal(t, "Bb", flat.String())
}

func TestExtractKeyTieGoesToEarliest(t *testing.T) {
	// G: first bonus + 1, D: last bonus + 2 = tie at 3; G appears first
	key, ok := ExtractKey("G D D")
	require.True(t, ok)
	assert.Equal(t, harmony.PitchClass(7), key.Root)
}
