package tonal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-stage/algorithms/common"
	"github.com/RyanBlaney/sonido-stage/harmony"
)

// KeyProfile selects the major/minor reference templates
type KeyProfile int

const (
	KeyProfileTemperley KeyProfile = iota
	KeyProfileKrumhansl
	KeyProfileDiatonic
)

// KeyProfileTemplate holds C-rooted major and minor weights
type KeyProfileTemplate struct {
	MajorProfile []float64 `json:"major_profile"`
	MinorProfile []float64 `json:"minor_profile"`
	Name         string    `json:"name"`
}

var profiles = map[KeyProfile]KeyProfileTemplate{
	// corpus-derived, steadier than Krumhansl on pop and rock material
	KeyProfileTemperley: {
		MajorProfile: []float64{5.0, 2.0, 3.5, 2.0, 4.5, 4.0, 2.0, 4.5, 2.0, 3.5, 1.5, 4.0},
		MinorProfile: []float64{5.0, 2.0, 3.5, 4.5, 2.0, 4.0, 2.0, 4.5, 3.5, 2.0, 1.5, 4.0},
		Name:         "temperley",
	},
	// probe-tone listener ratings
	KeyProfileKrumhansl: {
		MajorProfile: []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88},
		MinorProfile: []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17},
		Name:         "krumhansl",
	},
	KeyProfileDiatonic: {
		MajorProfile: []float64{5.0, 0.0, 3.0, 0.0, 4.0, 3.5, 0.0, 4.5, 0.0, 3.0, 0.0, 2.0},
		MinorProfile: []float64{5.0, 0.0, 3.0, 3.5, 0.0, 3.5, 0.0, 4.5, 3.0, 0.0, 2.0, 0.0},
		Name:         "diatonic",
	},
}

// ParseKeyProfile maps a profile name to a KeyProfile
func ParseKeyProfile(name string) (KeyProfile, error) {
	for p, tmpl := range profiles {
		if strings.EqualFold(tmpl.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return KeyProfileTemperley, fmt.Errorf("unknown key profile %q", name)
}

func (p KeyProfile) String() string {
	if tmpl, ok := profiles[p]; ok {
		return tmpl.Name
	}
	return "unknown"
}

// KeyEstimationResult is the full ranking for one chroma vector
type KeyEstimationResult struct {
	Candidates   []harmony.KeyCandidate `json:"candidates"`
	Correlations []float64              `json:"correlations"` // sorted with Candidates
	Clarity      float64                `json:"clarity"`      // (best - second) / best
	ChromaVector []float64              `json:"chroma_vector"`
	Profile      string                 `json:"profile"`
}

// Best returns the top candidate
func (r KeyEstimationResult) Best() (harmony.KeyCandidate, bool) {
	if len(r.Candidates) == 0 {
		return harmony.KeyCandidate{}, false
	}
	return r.Candidates[0], true
}

// KeyEstimator correlates chroma vectors with 24 rotated key templates
type KeyEstimator struct {
	template KeyProfileTemplate
	notation harmony.Notation
}

// NewKeyEstimator creates an estimator using profile. Detected keys are
// spelled with notation.
func NewKeyEstimator(profile KeyProfile, notation harmony.Notation) *KeyEstimator {
	tmpl, ok := profiles[profile]
	if !ok {
		tmpl = profiles[KeyProfileTemperley]
	}
	return &KeyEstimator{template: tmpl, notation: notation}
}

// rotate places the template's tonic weight on root
func rotate(profile []float64, root int) []float64 {
	out := make([]float64, len(profile))
	for i := range profile {
		out[i] = profile[(i-root+12)%12]
	}
	return out
}

// EstimateKey ranks all 24 keys against a 12-bin chroma vector. A vector of
// the wrong size or with no variation yields an empty result.
func (ke *KeyEstimator) EstimateKey(chromaVector []float64) KeyEstimationResult {
	result := KeyEstimationResult{ChromaVector: chromaVector, Profile: ke.template.Name}
	if len(chromaVector) != 12 {
		return result
	}

	type scored struct {
		key harmony.Key
		r   float64
	}
	scores := make([]scored, 0, 24)
	for root := range 12 {
		major := common.Correlation(chromaVector, rotate(ke.template.MajorProfile, root))
		minor := common.Correlation(chromaVector, rotate(ke.template.MinorProfile, root))
		scores = append(scores,
			scored{harmony.NewKey(root, harmony.Major, ke.notation), major},
			scored{harmony.NewKey(root, harmony.Minor, ke.notation), minor},
		)
	}

	// stable so equal scores keep root order, majors first
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].r > scores[j].r })

	if scores[0].r <= 0 {
		return result
	}

	result.Clarity = calculateClarity(scores[0].r, scores[1].r)
	damping := 0.5 + 0.5*result.Clarity

	result.Candidates = make([]harmony.KeyCandidate, len(scores))
	result.Correlations = make([]float64, len(scores))
	for i, s := range scores {
		result.Correlations[i] = s.r
		result.Candidates[i] = harmony.KeyCandidate{
			Key:        s.key,
			Confidence: 100 * math.Max(s.r, 0) * damping,
		}
	}
	return result
}

func calculateClarity(best, second float64) float64 {
	if best <= 0 {
		return 0
	}
	return common.Clamp((best-second)/best, 0, 1)
}

// GetDominantKey returns the key a fifth above
func GetDominantKey(key harmony.Key) harmony.Key {
	return harmony.Transpose(key, 7)
}

// GetSubdominantKey returns the key a fifth below
func GetSubdominantKey(key harmony.Key) harmony.Key {
	return harmony.Transpose(key, 5)
}

// IsKeyCompatible reports keys a performer can move between without a
// jarring change: same, relative, dominant or subdominant
func IsKeyCompatible(a, b harmony.Key) bool {
	return harmony.IsAdjacent(a, b)
}
