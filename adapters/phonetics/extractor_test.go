package phonetics

import (
	"strings"
	"testing"

	"phonostat/domain/feature"
)

func TestExtractDeterministic(t *testing.T) {
	e := New(DefaultWeights())
	names := []string{"Katrina", "Bitcoin", "Zephyr Dynamics", "a", "Éclair Café", "xXx_99"}

	for _, name := range names {
		first := e.Extract(name)
		second := e.Extract(name)
		if !vectorsEqual(first, second) {
			t.Errorf("Extract(%q) not deterministic", name)
		}
	}
}

func vectorsEqual(a, b feature.Vector) bool {
	av, bv := a.Values(), b.Values()
	for i := range av {
		if av[i] != bv[i] {
			return false
		}
	}
	return a.DegenerateInput == b.DegenerateInput
}

func TestExtractEmptyStringDegenerate(t *testing.T) {
	e := New(DefaultWeights())

	for _, name := range []string{"", "   ", "123", "!!!", "42 7"} {
		v := e.Extract(name)
		if !v.DegenerateInput {
			t.Errorf("Extract(%q) should be degenerate", name)
		}
		for i, val := range v.Values() {
			if val != 0 {
				t.Errorf("Extract(%q) degenerate vector has non-default value at %d: %v", name, i, val)
			}
		}
	}
}

func TestHarshnessMonotoneInPlosives(t *testing.T) {
	e := New(DefaultWeights())

	// Successively replace liquid letters with plosives at fixed length
	names := []string{"lemon", "lekon", "tekon", "tekot"}
	prev := -1.0
	for _, name := range names {
		v := e.Extract(name)
		if v.HarshnessScore < prev {
			t.Errorf("harshness decreased from %.2f to %.2f at %q", prev, v.HarshnessScore, name)
		}
		prev = v.HarshnessScore
	}
}

func TestExtractTruncatesLongInput(t *testing.T) {
	e := New(DefaultWeights())
	long := strings.Repeat("ka", 300)

	v := e.Extract(long)
	if len(v.Warnings) == 0 || v.Warnings[0] != feature.WarnTruncatedInput {
		t.Errorf("expected truncated_input warning, got %v", v.Warnings)
	}
	if v.CharLength != 600 {
		t.Errorf("char length reports the original input, got %v", v.CharLength)
	}
	if v.LetterCount != MaxNameRunes {
		t.Errorf("phonetic counts scan only the capped input, got %v letters", v.LetterCount)
	}
	if v.DegenerateInput {
		t.Error("truncated input is not degenerate")
	}
}

func TestExtractBasicCounts(t *testing.T) {
	e := New(DefaultWeights())

	v := e.Extract("Katrina")
	if v.LetterCount != 7 {
		t.Errorf("expected 7 letters, got %v", v.LetterCount)
	}
	if v.SyllableCount != 3 {
		t.Errorf("expected 3 syllables for katrina, got %v", v.SyllableCount)
	}
	if v.WordCount != 1 {
		t.Errorf("expected 1 word, got %v", v.WordCount)
	}
	if v.AlphabeticalPosition != 11 {
		t.Errorf("expected position 11 for k, got %v", v.AlphabeticalPosition)
	}
	if v.HasNumbers != 0 {
		t.Errorf("expected has_numbers 0, got %v", v.HasNumbers)
	}

	v = e.Extract("R2 D2 Robotics")
	if v.HasNumbers != 1 {
		t.Errorf("expected has_numbers 1, got %v", v.HasNumbers)
	}
	if v.WordCount != 3 {
		t.Errorf("expected 3 words, got %v", v.WordCount)
	}
}

func TestExtractTokenFeatures(t *testing.T) {
	e := New(DefaultWeights())

	v := e.Extract("Bella Tempest")
	if v.FirstTokenSyllables != 2 {
		t.Errorf("expected 2 syllables in first token, got %v", v.FirstTokenSyllables)
	}
	if v.FirstTokenHarshness >= v.LastTokenHarshness {
		t.Errorf("tempest should out-harsh bella: %.2f vs %.2f",
			v.FirstTokenHarshness, v.LastTokenHarshness)
	}

	// Single token serves as both first and last
	v = e.Extract("Storm")
	if v.FirstTokenHarshness != v.LastTokenHarshness {
		t.Errorf("single token must have equal first/last harshness")
	}
}

func TestSilentTrailingE(t *testing.T) {
	e := New(DefaultWeights())

	v := e.Extract("blaze")
	if v.SyllableCount != 1 {
		t.Errorf("expected silent-e adjustment to give 1 syllable for blaze, got %v", v.SyllableCount)
	}
}

func TestVersionTracksWeights(t *testing.T) {
	e := New(DefaultWeights())
	if e.Version() == "" {
		t.Fatal("default weights must carry a version")
	}

	custom := DefaultWeights()
	custom.Version = "phonetic-v2-test"
	custom.PlosiveWeight = 2.0
	e2 := New(custom)

	if e.Version() == e2.Version() {
		t.Error("changed weights must change the version")
	}
	if e.Extract("katrina").HarshnessScore >= e2.Extract("katrina").HarshnessScore {
		t.Error("doubling the plosive weight must raise harshness")
	}
}

func TestWeightsHashStable(t *testing.T) {
	a := DefaultWeights()
	b := DefaultWeights()
	if a.Hash() != b.Hash() {
		t.Error("identical weights must hash identically")
	}
	b.SibilantWeight += 0.1
	if a.Hash() == b.Hash() {
		t.Error("changed weights must change the hash")
	}
}
