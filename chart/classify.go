package chart

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/RyanBlaney/sonido-stage/logging"
)

// LineKind tags each line of a chart.
type LineKind int

const (
	Blank LineKind = iota
	LyricLine
	ChordLine
	SectionLabel
)

func (k LineKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case LyricLine:
		return "lyric"
	case ChordLine:
		return "chord"
	case SectionLabel:
		return "section"
	default:
		return "unknown"
	}
}

// Classification is a classifier's verdict on one line.
type Classification struct {
	Kind   LineKind
	Tokens []ChordToken

	// NoiseRatio is the share of non-chord characters among chord and
	// non-chord characters. Neutral marks and spaces count for neither, and
	// a chord's root and bass count one character each whatever their
	// accidental, so transposing a line never changes its ratio.
	NoiseRatio float64

	// Ambiguous is set when the line had chords but too much other text to
	// be sure. Such lines are classified as lyrics.
	Ambiguous bool
}

// Classifier decides what kind of line it is looking at. The heuristic
// accepts false positives such as "Am I" and misses typo'd chords;
// callers needing something stricter can supply their own.
type Classifier interface {
	Classify(line string) Classification
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(line string) Classification

func (f ClassifierFunc) Classify(line string) Classification {
	return f(line)
}

const (
	DefaultNoiseThreshold = 0.35
	DefaultAmbiguityBand  = 0.15
)

// HeuristicClassifier treats a line as chords when it has at least one chord
// token and at most NoiseThreshold of its characters belong to other words.
type HeuristicClassifier struct {
	NoiseThreshold float64
	AmbiguityBand  float64

	// Logger receives ambiguous-line reports. Nil uses the global logger.
	Logger logging.Logger
}

// NewHeuristicClassifier builds a classifier with the given thresholds.
// Non-positive values select the defaults.
func NewHeuristicClassifier(noiseThreshold, ambiguityBand float64) *HeuristicClassifier {
	if noiseThreshold <= 0 {
		noiseThreshold = DefaultNoiseThreshold
	}
	if ambiguityBand < 0 {
		ambiguityBand = DefaultAmbiguityBand
	}
	return &HeuristicClassifier{
		NoiseThreshold: noiseThreshold,
		AmbiguityBand:  ambiguityBand,
	}
}

func (h *HeuristicClassifier) log() logging.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return logging.WithFields(logging.Fields{"component": "chart_classifier"})
}

// DefaultClassifier is used by the package-level helpers.
var DefaultClassifier Classifier = NewHeuristicClassifier(DefaultNoiseThreshold, DefaultAmbiguityBand)

var sectionPattern = regexp.MustCompile(`^\s*\[[^\[\]]+\]\s*$`)

type word struct {
	text  string
	start int
}

func splitWords(line string) []word {
	var words []word
	start := -1
	for i, r := range line {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{text: line[start:i], start: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{text: line[start:], start: start})
	}
	return words
}

// Tokenize returns every chord token on line, whatever the line's kind.
func Tokenize(line string) []ChordToken {
	tokens, _, _ := scan(line)
	return tokens
}

func scan(line string) (tokens []ChordToken, chordChars, noiseChars int) {
	for _, w := range splitWords(line) {
		if isNeutralWord(w.text) {
			continue
		}
		core, offset := trimWord(w.text)
		if tok, ok := ParseChord(core); ok {
			tok.Start = w.start + offset
			tok.End = tok.Start + len(core)
			tokens = append(tokens, tok)
			chordChars += tok.weight()
			continue
		}
		noiseChars += utf8.RuneCountInString(w.text)
	}
	return tokens, chordChars, noiseChars
}

// weight is the spelling-independent length of a chord symbol.
func (c ChordToken) weight() int {
	n := 1 + utf8.RuneCountInString(c.Quality)
	if c.HasBass() {
		n += 2
	}
	return n
}

func (h *HeuristicClassifier) Classify(line string) Classification {
	if strings.TrimSpace(line) == "" {
		return Classification{Kind: Blank}
	}
	if sectionPattern.MatchString(line) {
		return Classification{Kind: SectionLabel}
	}

	tokens, chordChars, noiseChars := scan(line)
	if len(tokens) == 0 {
		return Classification{Kind: LyricLine, NoiseRatio: 1}
	}

	ratio := float64(noiseChars) / float64(chordChars+noiseChars)
	switch {
	case ratio <= h.NoiseThreshold:
		return Classification{Kind: ChordLine, Tokens: tokens, NoiseRatio: ratio}
	case ratio <= h.NoiseThreshold+h.AmbiguityBand:
		h.log().Debug("ambiguous chord line treated as lyric", logging.Fields{
			"line":        line,
			"noise_ratio": ratio,
			"chords":      len(tokens),
		})
		return Classification{Kind: LyricLine, NoiseRatio: ratio, Ambiguous: true}
	default:
		return Classification{Kind: LyricLine, NoiseRatio: ratio}
	}
}

// IsChordLine reports whether the default classifier reads line as chords.
func IsChordLine(line string) bool {
	return DefaultClassifier.Classify(line).Kind == ChordLine
}
