package phonetics

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"phonostat/domain/core"
	"phonostat/internal/errors"
)

// Weights holds every scoring constant used by the extractor, versioned so two
// runs can be proven to use identical weights. The constants are heuristic:
// they are internally consistent scoring knobs, not validated linguistic
// ground truth, and the statistics downstream depend only on their
// consistency.
type Weights struct {
	Version string `json:"version"`

	// Harshness: weighted plosive + sibilant density
	PlosiveWeight  float64 `json:"plosive_weight"`
	SibilantWeight float64 `json:"sibilant_weight"`

	// Melodiousness: weighted vowel + liquid/nasal mass per syllable
	VowelWeight  float64 `json:"vowel_weight"`
	LiquidWeight float64 `json:"liquid_weight"`

	// Memorability: penalties for length and syllable count
	LengthPenalty   float64 `json:"length_penalty"`
	SyllablePenalty float64 `json:"syllable_penalty"`

	// Pronounceability: penalties for consonant clusters and vowel imbalance
	ClusterPenalty   float64 `json:"cluster_penalty"`
	ImbalancePenalty float64 `json:"imbalance_penalty"`

	// Uniqueness: scale applied to average letter rarity
	RarityScale float64 `json:"rarity_scale"`
}

// DefaultWeights returns the built-in v1 constants
func DefaultWeights() Weights {
	return Weights{
		Version:          "phonetic-v1",
		PlosiveWeight:    1.0,
		SibilantWeight:   0.6,
		VowelWeight:      1.0,
		LiquidWeight:     0.8,
		LengthPenalty:    4.0,
		SyllablePenalty:  6.0,
		ClusterPenalty:   1.2,
		ImbalancePenalty: 40.0,
		RarityScale:      1.0,
	}
}

// LoadWeights reads a weights artifact from a JSON file
func LoadWeights(path string) (Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, errors.Wrapf(err, "reading weights file %s", path)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return Weights{}, errors.Wrapf(err, "parsing weights file %s", path)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Validate checks the weights artifact is usable
func (w Weights) Validate() error {
	if strings.TrimSpace(w.Version) == "" {
		return errors.ConfigInvalid("weights version must be set")
	}
	for name, v := range map[string]float64{
		"plosive_weight":    w.PlosiveWeight,
		"sibilant_weight":   w.SibilantWeight,
		"vowel_weight":      w.VowelWeight,
		"liquid_weight":     w.LiquidWeight,
		"length_penalty":    w.LengthPenalty,
		"syllable_penalty":  w.SyllablePenalty,
		"cluster_penalty":   w.ClusterPenalty,
		"imbalance_penalty": w.ImbalancePenalty,
		"rarity_scale":      w.RarityScale,
	} {
		if v < 0 {
			return errors.ConfigInvalid("weight " + name + " must be non-negative")
		}
	}
	return nil
}

// Hash computes a deterministic fingerprint of the weight constants
func (w Weights) Hash() core.WeightsHash {
	parts := []string{
		w.Version,
		strconv.FormatFloat(w.PlosiveWeight, 'g', 17, 64),
		strconv.FormatFloat(w.SibilantWeight, 'g', 17, 64),
		strconv.FormatFloat(w.VowelWeight, 'g', 17, 64),
		strconv.FormatFloat(w.LiquidWeight, 'g', 17, 64),
		strconv.FormatFloat(w.LengthPenalty, 'g', 17, 64),
		strconv.FormatFloat(w.SyllablePenalty, 'g', 17, 64),
		strconv.FormatFloat(w.ClusterPenalty, 'g', 17, 64),
		strconv.FormatFloat(w.ImbalancePenalty, 'g', 17, 64),
		strconv.FormatFloat(w.RarityScale, 'g', 17, 64),
	}
	return core.NewWeightsHash([]byte(strings.Join(parts, "|")))
}
