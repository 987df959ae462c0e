package battery

import (
	"context"
	"fmt"
	"math"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// Defaults carries the configured statistical floors and iteration counts.
// TestSpec options override per test; zero option values fall back here.
type Defaults struct {
	MinSampleCorrelation int
	MinGroupSize         int
	PermutationShuffles  int
	BootstrapResamples   int
	CVFolds              int
	Alpha                float64
	CILevel              float64
	Workers              int
}

// StandardDefaults returns the documented engine defaults
func StandardDefaults() Defaults {
	return Defaults{
		MinSampleCorrelation: 10,
		MinGroupSize:         5,
		PermutationShuffles:  10000,
		BootstrapResamples:   2000,
		CVFolds:              5,
		Alpha:                0.05,
		CILevel:              0.95,
		Workers:              4,
	}
}

// Battery executes declarative test specs against datasets. Each test kind is
// an independent strategy; one numerically unstable test records a warning
// and never aborts the rest of a batch.
type Battery struct {
	defaults Defaults
}

// New creates a battery with the given defaults
func New(defaults Defaults) *Battery {
	if defaults.Workers <= 0 {
		defaults.Workers = 4
	}
	return &Battery{defaults: defaults}
}

// Run executes one spec. Config errors (unknown kind, missing column) return
// an error before computation; data conditions (underpower, instability)
// return a TestResult carrying null fields and warnings.
func (b *Battery) Run(ctx context.Context, s spec.TestSpec, table *dataset.Table, seed int64) (result.TestResult, error) {
	if err := s.Validate(); err != nil {
		return result.TestResult{}, err
	}

	keys := append([]core.ColumnKey{s.Target}, s.Predictors...)
	keys = append(keys, s.Controls...)
	for _, key := range keys {
		if _, ok := table.ColumnIndex(key); !ok {
			return result.TestResult{}, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
		}
	}

	// Test-scoped exclusion: only rows complete for the columns under test
	rows, err := table.CompleteRows(keys...)
	if err != nil {
		return result.TestResult{}, err
	}
	if s.Options.DropFlaggedOutliers {
		rows = table.FilterFlagged(rows, keys...)
	}

	res := result.New(s, seed)
	res.N = len(rows)

	switch s.Kind {
	case spec.TestPearson:
		b.runCorrelation(&res, s, table, rows, false)
	case spec.TestSpearman:
		b.runCorrelation(&res, s, table, rows, true)
	case spec.TestOLS:
		b.runOLS(&res, s, table, rows, seed)
	case spec.TestLogistic:
		b.runLogistic(&res, s, table, rows, seed)
	case spec.TestANOVAOneWay:
		b.runANOVAOneWay(&res, s, table, rows)
	case spec.TestANOVATwoWay:
		b.runANOVATwoWay(&res, s, table, rows)
	case spec.TestPermutation:
		b.runPermutation(ctx, &res, s, table, rows, seed)
	case spec.TestBootstrap:
		b.runBootstrap(ctx, &res, s, table, rows, seed)
	case spec.TestWelchTTest:
		b.runWelchTTest(&res, s, table, rows)
	case spec.TestChiSquare:
		b.runChiSquare(&res, s, table, rows)
	default:
		return result.TestResult{}, fmt.Errorf("%w: %q", core.ErrUnknownTestKind, s.Kind)
	}

	return res, nil
}

// Option fallbacks

func (b *Battery) minSample(s spec.TestSpec) int {
	if s.Options.MinSample > 0 {
		return s.Options.MinSample
	}
	return b.defaults.MinSampleCorrelation
}

func (b *Battery) minGroupSize(s spec.TestSpec) int {
	if s.Options.MinGroupSize > 0 {
		return s.Options.MinGroupSize
	}
	return b.defaults.MinGroupSize
}

func (b *Battery) iterations(s spec.TestSpec, fallback int) int {
	if s.Options.Iterations > 0 {
		return s.Options.Iterations
	}
	return fallback
}

func (b *Battery) folds(s spec.TestSpec) int {
	if s.Options.Folds > 1 {
		return s.Options.Folds
	}
	return b.defaults.CVFolds
}

func (b *Battery) ciLevel(s spec.TestSpec) float64 {
	if s.Options.CILevel > 0 {
		return s.Options.CILevel
	}
	return b.defaults.CILevel
}

// variance helpers shared across strategies

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, v := range xs {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}

func hasVariance(xs []float64) bool {
	if len(xs) < 2 {
		return false
	}
	first := xs[0]
	for _, v := range xs[1:] {
		if v != first {
			return true
		}
	}
	return true
}

func clampP(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	if math.IsNaN(p) {
		return 1
	}
	return p
}
