package chart

import (
	"strings"

	"github.com/RyanBlaney/sonido-stage/harmony"
)

// Line is one line of a chart. Text excludes the line ending, which is kept
// in EOL ("\n", "\r\n" or "" for the final line).
type Line struct {
	Text      string
	EOL       string
	Kind      LineKind
	Tokens    []ChordToken
	Ambiguous bool
}

// Document is a parsed chart, lines in order.
type Document struct {
	Lines []Line
}

// Parse splits text into lines and classifies each with the default classifier.
func Parse(text string) Document {
	return ParseWith(DefaultClassifier, text)
}

// ParseWith is Parse with a caller-supplied classifier.
func ParseWith(c Classifier, text string) Document {
	var doc Document
	for _, raw := range strings.SplitAfter(text, "\n") {
		if raw == "" {
			continue
		}
		line := Line{Text: raw}
		switch {
		case strings.HasSuffix(raw, "\r\n"):
			line.Text, line.EOL = raw[:len(raw)-2], "\r\n"
		case strings.HasSuffix(raw, "\n"):
			line.Text, line.EOL = raw[:len(raw)-1], "\n"
		}
		cl := c.Classify(line.Text)
		line.Kind = cl.Kind
		line.Tokens = cl.Tokens
		line.Ambiguous = cl.Ambiguous
		doc.Lines = append(doc.Lines, line)
	}
	return doc
}

// Chords returns the chord tokens of every chord line in order.
func (d Document) Chords() []ChordToken {
	var out []ChordToken
	for _, l := range d.Lines {
		if l.Kind == ChordLine {
			out = append(out, l.Tokens...)
		}
	}
	return out
}

// String reassembles the document byte for byte.
func (d Document) String() string {
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(l.Text)
		b.WriteString(l.EOL)
	}
	return b.String()
}

// Transpose returns the document with every chord line moved by n
// semitones. Other lines and everything between chords is unchanged.
func (d Document) Transpose(n int, notation harmony.Notation) Document {
	out := Document{Lines: make([]Line, len(d.Lines))}
	for i, l := range d.Lines {
		if l.Kind != ChordLine || len(l.Tokens) == 0 {
			out.Lines[i] = l
			continue
		}
		out.Lines[i] = transposeLine(l, n, notation)
	}
	return out
}

func transposeLine(l Line, n int, notation harmony.Notation) Line {
	var b strings.Builder
	tokens := make([]ChordToken, len(l.Tokens))
	last := 0
	for i, tok := range l.Tokens {
		b.WriteString(l.Text[last:tok.Start])
		rendered := tok.Transpose(n, notation)

		moved := tok
		moved.Raw = rendered
		moved.Root = harmony.Transpose(harmony.Key{Root: tok.Root}, n).Root
		if tok.HasBass() {
			moved.Bass = harmony.Transpose(harmony.Key{Root: tok.Bass}, n).Root
		}
		moved.Start = b.Len()
		b.WriteString(rendered)
		moved.End = b.Len()
		tokens[i] = moved

		last = tok.End
	}
	b.WriteString(l.Text[last:])

	return Line{
		Text:   b.String(),
		EOL:    l.EOL,
		Kind:   l.Kind,
		Tokens: tokens,
	}
}

// TransposeChords moves every chord in text by n semitones and spells the
// results with notation. Lyrics, section labels, spacing, bar lines and
// line endings are kept verbatim; columns are not realigned when a chord
// name changes length.
func TransposeChords(text string, n int, notation harmony.Notation) string {
	if n == 0 {
		return text
	}
	return Parse(text).Transpose(n, notation).String()
}

// Transposer transposes with a specific classifier.
type Transposer struct {
	Classifier Classifier
}

func (t Transposer) TransposeChords(text string, n int, notation harmony.Notation) string {
	if n == 0 {
		return text
	}
	c := t.Classifier
	if c == nil {
		c = DefaultClassifier
	}
	return ParseWith(c, text).Transpose(n, notation).String()
}
