package meta

import (
	"math"
	"testing"

	"phonostat/domain/core"
	"phonostat/domain/result"
)

func threeDomains() []result.DomainEffect {
	return []result.DomainEffect{
		{Domain: "hurricanes", EffectSize: 0.10, StdErr: 0.05},
		{Domain: "cryptocurrencies", EffectSize: 0.20, StdErr: 0.05},
		{Domain: "racehorses", EffectSize: 0.40, StdErr: 0.05},
	}
}

func TestPoolEqualWeights(t *testing.T) {
	rec, err := New().Pool("harshness_score", threeDomains(), 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}

	// Equal SEs reduce inverse-variance pooling to the simple average
	if math.Abs(rec.PooledEffect-0.2333) > 0.001 {
		t.Errorf("expected pooled effect near 0.233, got %.4f", rec.PooledEffect)
	}
	if rec.ISquared <= 0 {
		t.Errorf("expected I² > 0 for spread effects, got %.2f", rec.ISquared)
	}
	if rec.QStatistic <= 0 {
		t.Errorf("expected positive Q, got %.3f", rec.QStatistic)
	}
	if rec.PooledCI.Lower >= rec.PooledEffect || rec.PooledCI.Upper <= rec.PooledEffect {
		t.Errorf("CI [%.4f, %.4f] must bracket the pooled effect", rec.PooledCI.Lower, rec.PooledCI.Upper)
	}
	if len(rec.PerDomain) != 3 {
		t.Errorf("expected 3 per-domain effects, got %d", len(rec.PerDomain))
	}
}

func TestPoolHomogeneousEffectsZeroHeterogeneity(t *testing.T) {
	effects := []result.DomainEffect{
		{Domain: "a", EffectSize: 0.25, StdErr: 0.05},
		{Domain: "b", EffectSize: 0.25, StdErr: 0.05},
		{Domain: "c", EffectSize: 0.25, StdErr: 0.05},
	}
	rec, err := New().Pool("melodiousness_score", effects, 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	if rec.ISquared != 0 {
		t.Errorf("identical effects should give I² = 0, got %.2f", rec.ISquared)
	}
	if math.Abs(rec.PooledEffect-0.25) > 1e-12 {
		t.Errorf("expected pooled 0.25, got %.4f", rec.PooledEffect)
	}
}

func TestPoolSingleDomainInsufficient(t *testing.T) {
	rec, err := New().Pool("harshness_score", threeDomains()[:1], 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	found := false
	for _, w := range rec.Warnings {
		if w == result.WarnInsufficientSample {
			found = true
		}
	}
	if !found {
		t.Errorf("expected insufficient_sample warning for one domain, got %v", rec.Warnings)
	}
}

func TestPoolDropsUnusableEffects(t *testing.T) {
	effects := append(threeDomains(),
		result.DomainEffect{Domain: "bad-se", EffectSize: 0.5, StdErr: 0},
		result.DomainEffect{Domain: "bad-effect", EffectSize: math.NaN(), StdErr: 0.05},
	)
	rec, err := New().Pool("harshness_score", effects, 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	if len(rec.PerDomain) != 3 {
		t.Errorf("unusable effects must be dropped before pooling, kept %d", len(rec.PerDomain))
	}
}

func TestModerateLowPowerWarning(t *testing.T) {
	a := New()
	effects := make([]result.DomainEffect, 0, 5)
	covariates := make(map[core.DomainKey]map[string]float64)
	for i := 0; i < 5; i++ {
		d := core.DomainKey(string(rune('a' + i)))
		effects = append(effects, result.DomainEffect{
			Domain: d, EffectSize: 0.1 * float64(i), StdErr: 0.05,
		})
		covariates[d] = map[string]float64{"age": float64(i)}
	}
	rec, err := a.Pool("harshness_score", effects, 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	if err := a.Moderate(&rec, []string{"age"}, covariates); err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}

	if rec.Moderator == nil {
		t.Fatal("expected moderator model")
	}
	if rec.Moderator.NDomains != 5 {
		t.Errorf("expected 5 domains in moderator fit, got %d", rec.Moderator.NDomains)
	}
	lowPower := false
	for _, w := range rec.Moderator.Warnings {
		if w == result.WarnLowPower {
			lowPower = true
		}
	}
	if !lowPower {
		t.Errorf("moderator regression over 5 domains must warn low_power, got %v", rec.Moderator.Warnings)
	}
	// Effect sizes rise linearly with age, so the slope should be positive
	if len(rec.Moderator.Coefficients) != 2 {
		t.Fatalf("expected intercept + age, got %d coefficients", len(rec.Moderator.Coefficients))
	}
	if rec.Moderator.Coefficients[1].Estimate <= 0 {
		t.Errorf("expected positive moderator slope, got %.4f", rec.Moderator.Coefficients[1].Estimate)
	}
}

func TestModerateTooFewDomains(t *testing.T) {
	a := New()
	rec, err := a.Pool("harshness_score", threeDomains(), 0.95)
	if err != nil {
		t.Fatalf("Pool failed: %v", err)
	}
	covariates := map[core.DomainKey]map[string]float64{
		"hurricanes":       {"age": 1, "size": 2},
		"cryptocurrencies": {"age": 2, "size": 3},
		"racehorses":       {"age": 3, "size": 4},
	}
	if err := a.Moderate(&rec, []string{"age", "size"}, covariates); err != nil {
		t.Fatalf("Moderate failed: %v", err)
	}
	// 3 domains cannot support 2 moderators + intercept with residual df
	if rec.Moderator == nil {
		t.Fatal("expected moderator model shell")
	}
	insufficient := false
	for _, w := range rec.Moderator.Warnings {
		if w == result.WarnInsufficientSample {
			insufficient = true
		}
	}
	if !insufficient {
		t.Errorf("expected insufficient_sample warning, got %v", rec.Moderator.Warnings)
	}
}
