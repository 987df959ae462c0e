package phonetics

import (
	"math"
	"strings"
	"unicode"

	"phonostat/domain/feature"
)

// MaxNameRunes caps input length; longer names are truncated with a recorded
// warning, not rejected.
const MaxNameRunes = 256

// Consonant classes are disjoint fixed lookup sets over ASCII letters.
// Non-ASCII letters are stripped during normalization so extraction never
// depends on locale tables.
var (
	vowels       = letterSet("aeiouy")
	plosives     = letterSet("bdgkpqt")
	sibilants    = letterSet("cfhjsvxz") // sibilants + fricatives
	liquidNasals = letterSet("lmnrw")
)

func letterSet(s string) [26]bool {
	var set [26]bool
	for _, r := range s {
		set[r-'a'] = true
	}
	return set
}

// English letter relative frequencies, used only for the uniqueness heuristic.
var letterFreq = [26]float64{
	0.0817, 0.0149, 0.0278, 0.0425, 0.1270, 0.0223, 0.0202, 0.0609, 0.0697,
	0.0015, 0.0077, 0.0403, 0.0241, 0.0675, 0.0751, 0.0193, 0.0010, 0.0599,
	0.0633, 0.0906, 0.0276, 0.0098, 0.0236, 0.0015, 0.0197, 0.0007,
}

const maxLetterFreq = 0.1270 // 'e'

// Extractor converts raw names into fixed-shape feature vectors. It is a pure
// function of the input string and the versioned weight constants; it holds no
// mutable state and never errors.
type Extractor struct {
	weights Weights
}

// New creates an extractor with the given weight constants
func New(weights Weights) *Extractor {
	return &Extractor{weights: weights}
}

// Version identifies the algorithm + weights producing the vectors
func (e *Extractor) Version() feature.Version {
	return feature.Version(e.weights.Version)
}

// Weights returns the weight constants in use
func (e *Extractor) Weights() Weights {
	return e.weights
}

// Extract computes the feature vector for a raw name. Total function: any
// UTF-8 string yields a vector. Empty-after-normalization input yields a
// sentinel all-default vector with DegenerateInput set.
func (e *Extractor) Extract(rawName string) feature.Vector {
	v := feature.Vector{
		RawName: rawName,
		Version: e.Version(),
	}

	runes := []rune(rawName)
	// Length features report the original input; the cap only bounds the
	// phonetic scan
	originalLen := len(runes)
	if len(runes) > MaxNameRunes {
		runes = runes[:MaxNameRunes]
		v.Warnings = append(v.Warnings, feature.WarnTruncatedInput)
	}
	working := string(runes)

	letters := normalize(working)
	if letters == "" {
		v.DegenerateInput = true
		return v
	}

	hasNumbers := 0.0
	for _, r := range working {
		if unicode.IsDigit(r) {
			hasNumbers = 1
			break
		}
	}

	tokens := strings.Fields(working)
	n := float64(len(letters))

	var vowelCount, plosiveCount, sibilantCount, liquidNasalCount int
	for _, r := range letters {
		idx := r - 'a'
		switch {
		case vowels[idx]:
			vowelCount++
		case plosives[idx]:
			plosiveCount++
		case sibilants[idx]:
			sibilantCount++
		case liquidNasals[idx]:
			liquidNasalCount++
		}
	}

	syllables := countSyllables(letters)
	clusters := countConsonantClusters(letters)
	vowelRatio := float64(vowelCount) / n

	v.SyllableCount = float64(syllables)
	v.CharLength = float64(originalLen)
	v.LetterCount = n
	v.WordCount = float64(len(tokens))
	v.VowelRatio = vowelRatio
	v.ConsonantClusterCount = float64(clusters)
	v.PlosiveCount = float64(plosiveCount)
	v.SibilantCount = float64(sibilantCount)
	v.LiquidNasalCount = float64(liquidNasalCount)
	v.HarshnessScore = e.harshness(plosiveCount, sibilantCount, int(n))
	v.MelodiousnessScore = e.melodiousness(vowelCount, liquidNasalCount, syllables)
	v.MemorabilityScore = e.memorability(int(n), syllables)
	v.PronounceabilityScore = e.pronounceability(clusters, int(n), vowelRatio)
	v.UniquenessScore = e.uniqueness(letters)
	v.AlphabeticalPosition = float64(letters[0]-'a') + 1
	v.HasNumbers = hasNumbers

	first, last := splitTokens(tokens)
	if first != "" {
		fp, fs := classCounts(first)
		v.FirstTokenSyllables = float64(countSyllables(first))
		v.FirstTokenHarshness = e.harshness(fp, fs, len(first))
	}
	if last != "" {
		lp, ls := classCounts(last)
		v.LastTokenSyllables = float64(countSyllables(last))
		v.LastTokenHarshness = e.harshness(lp, ls, len(last))
	}

	return v
}

// normalize lowercases and strips everything outside a-z. Phonetic counts use
// this form; length/display features use the raw input.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// countSyllables approximates syllables by counting vowel runs, subtracting
// one for a silent trailing "e". A deterministic heuristic, not a dictionary
// lookup: consistency across entities is the contract, not accuracy.
func countSyllables(letters string) int {
	if letters == "" {
		return 0
	}
	count := 0
	inRun := false
	for _, r := range letters {
		if vowels[r-'a'] {
			if !inRun {
				count++
			}
			inRun = true
		} else {
			inRun = false
		}
	}
	if count > 1 && strings.HasSuffix(letters, "e") && !vowels[letters[len(letters)-2]-'a'] {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

// countConsonantClusters counts runs of two or more consonants
func countConsonantClusters(letters string) int {
	clusters := 0
	run := 0
	for _, r := range letters {
		if vowels[r-'a'] {
			if run >= 2 {
				clusters++
			}
			run = 0
		} else {
			run++
		}
	}
	if run >= 2 {
		clusters++
	}
	return clusters
}

func classCounts(letters string) (plosiveCount, sibilantCount int) {
	for _, r := range letters {
		idx := r - 'a'
		if plosives[idx] {
			plosiveCount++
		} else if sibilants[idx] {
			sibilantCount++
		}
	}
	return plosiveCount, sibilantCount
}

func splitTokens(tokens []string) (first, last string) {
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		t := normalize(tokens[0])
		return t, t
	default:
		return normalize(tokens[0]), normalize(tokens[len(tokens)-1])
	}
}

// harshness scores weighted plosive + sibilant density on a [0,100] scale.
// Monotonic in both counts for fixed length.
func (e *Extractor) harshness(plosiveCount, sibilantCount, letterCount int) float64 {
	if letterCount == 0 {
		return 0
	}
	raw := (e.weights.PlosiveWeight*float64(plosiveCount) + e.weights.SibilantWeight*float64(sibilantCount)) / float64(letterCount)
	return clamp(raw * 100)
}

// melodiousness scores weighted vowel + liquid/nasal mass per syllable
func (e *Extractor) melodiousness(vowelCount, liquidNasalCount, syllables int) float64 {
	if syllables == 0 {
		return 0
	}
	raw := (e.weights.VowelWeight*float64(vowelCount) + e.weights.LiquidWeight*float64(liquidNasalCount)) / float64(syllables)
	return clamp(raw * 25)
}

// memorability penalizes letters beyond four and syllables beyond two.
// Heuristic proxy only; monotonically non-increasing in both.
func (e *Extractor) memorability(letterCount, syllables int) float64 {
	score := 100.0
	if letterCount > 4 {
		score -= e.weights.LengthPenalty * float64(letterCount-4)
	}
	if syllables > 2 {
		score -= e.weights.SyllablePenalty * float64(syllables-2)
	}
	return clamp(score)
}

// pronounceability penalizes consonant-cluster density and distance from a
// balanced vowel ratio
func (e *Extractor) pronounceability(clusters, letterCount int, vowelRatio float64) float64 {
	if letterCount == 0 {
		return 0
	}
	score := 100.0
	score -= e.weights.ClusterPenalty * 100 * float64(clusters) / float64(letterCount)
	score -= e.weights.ImbalancePenalty * math.Abs(vowelRatio-0.45)
	return clamp(score)
}

// uniqueness scores average letter rarity against English frequencies
func (e *Extractor) uniqueness(letters string) float64 {
	total := 0.0
	for _, r := range letters {
		total += 1 - letterFreq[r-'a']/maxLetterFreq
	}
	avg := total / float64(len(letters))
	return clamp(e.weights.RarityScale * avg * 100)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
