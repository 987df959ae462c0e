package feature

import (
	"phonostat/domain/core"
)

// Version identifies the extractor algorithm + weight constants that produced
// a vector. Vectors are cached by (raw_name, version); bumping the version is
// the only way to invalidate them.
type Version string

// Warning codes attached by the extractor. Extraction is total: degenerate or
// oversized input produces a sentinel vector plus a warning, never an error.
const (
	WarnTruncatedInput = "truncated_input"
)

// Vector is the fixed-shape numeric feature vector derived from one raw name.
// INVARIANT: for a fixed Version, Vector is a pure deterministic function of
// RawName alone - no locale, no randomness, no external state.
type Vector struct {
	RawName string  `json:"raw_name"`
	Version Version `json:"extractor_version"`

	SyllableCount         float64 `json:"syllable_count"`
	CharLength            float64 `json:"char_length"`
	LetterCount           float64 `json:"letter_count"`
	WordCount             float64 `json:"word_count"`
	VowelRatio            float64 `json:"vowel_ratio"`
	ConsonantClusterCount float64 `json:"consonant_cluster_count"`
	PlosiveCount          float64 `json:"plosive_count"`
	SibilantCount         float64 `json:"sibilant_count"`
	LiquidNasalCount      float64 `json:"liquid_nasal_count"`
	HarshnessScore        float64 `json:"harshness_score"`
	MelodiousnessScore    float64 `json:"melodiousness_score"`
	MemorabilityScore     float64 `json:"memorability_score"`
	PronounceabilityScore float64 `json:"pronounceability_score"`
	UniquenessScore       float64 `json:"uniqueness_score"`
	AlphabeticalPosition  float64 `json:"alphabetical_position"`
	HasNumbers            float64 `json:"has_numbers"`
	FirstTokenSyllables   float64 `json:"first_token_syllables"`
	LastTokenSyllables    float64 `json:"last_token_syllables"`
	FirstTokenHarshness   float64 `json:"first_token_harshness"`
	LastTokenHarshness    float64 `json:"last_token_harshness"`

	// DegenerateInput marks names that normalize to nothing (e.g. "123",
	// whitespace). All feature fields hold defaults; downstream consumers
	// filter on this flag instead of relying on errors.
	DegenerateInput bool `json:"degenerate_input"`

	Warnings []string `json:"warnings,omitempty"`
}

// Columns returns the canonical feature column ordering. The dataset builder
// and every statistical consumer depend on this order being stable.
func Columns() []core.ColumnKey {
	return []core.ColumnKey{
		"syllable_count",
		"char_length",
		"letter_count",
		"word_count",
		"vowel_ratio",
		"consonant_cluster_count",
		"plosive_count",
		"sibilant_count",
		"liquid_nasal_count",
		"harshness_score",
		"melodiousness_score",
		"memorability_score",
		"pronounceability_score",
		"uniqueness_score",
		"alphabetical_position",
		"has_numbers",
		"first_token_syllables",
		"last_token_syllables",
		"first_token_harshness",
		"last_token_harshness",
	}
}

// Values returns the feature values in canonical column order.
func (v Vector) Values() []float64 {
	return []float64{
		v.SyllableCount,
		v.CharLength,
		v.LetterCount,
		v.WordCount,
		v.VowelRatio,
		v.ConsonantClusterCount,
		v.PlosiveCount,
		v.SibilantCount,
		v.LiquidNasalCount,
		v.HarshnessScore,
		v.MelodiousnessScore,
		v.MemorabilityScore,
		v.PronounceabilityScore,
		v.UniquenessScore,
		v.AlphabeticalPosition,
		v.HasNumbers,
		v.FirstTokenSyllables,
		v.LastTokenSyllables,
		v.FirstTokenHarshness,
		v.LastTokenHarshness,
	}
}

// CacheKey returns the deterministic key identifying this vector for caching.
func CacheKey(rawName string, version Version) core.Hash {
	return core.HashOf("feature", string(version), rawName)
}
