// Package correction applies multiple-comparisons adjustment to a batch of
// test results. The batch boundary is explicit: all results passed to Apply
// form one family, and nothing outside the call participates.
package correction

import (
	"sort"

	"phonostat/domain/core"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// Apply adjusts the p-values of one batch with the given method. Untested
// results (nil p-value) are carried through with nil adjusted p and counted
// as skipped; they never inflate or deflate the family size. Applying the
// same method twice yields the same batch because adjustment always starts
// from the raw p-values, never from previously adjusted ones.
func Apply(domain core.DomainKey, method spec.CorrectionMethod, alpha float64, results []result.TestResult) (result.CorrectionBatch, error) {
	if _, err := spec.ParseCorrectionMethod(string(method)); err != nil {
		return result.CorrectionBatch{}, err
	}

	batch := result.CorrectionBatch{
		BatchID:   core.NewBatchID(),
		Domain:    domain,
		Method:    method,
		Alpha:     alpha,
		Results:   results,
		AdjustedP: make([]*float64, len(results)),
		Survives:  make([]bool, len(results)),
		Requested: len(results),
		CreatedAt: core.Now(),
	}

	// Indices of tested results only; m is the family size
	tested := make([]int, 0, len(results))
	for i, r := range results {
		if r.Tested() {
			tested = append(tested, i)
		}
	}
	batch.Returned = len(tested)
	batch.Skipped = len(results) - len(tested)
	if len(tested) == 0 {
		return batch, nil
	}

	raw := make([]float64, len(tested))
	for j, i := range tested {
		raw[j] = *results[i].PValue
	}

	var adjusted []float64
	switch method {
	case spec.CorrectionBonferroni:
		adjusted = bonferroni(raw)
	case spec.CorrectionFDRBH:
		adjusted = benjaminiHochberg(raw)
	}

	for j, i := range tested {
		p := adjusted[j]
		batch.AdjustedP[i] = result.Float(p)
		// Inclusive boundary: a rank whose BH critical value equals its raw p
		// survives, which makes the adjusted p equal alpha exactly
		batch.Survives[i] = p <= alpha
	}
	return batch, nil
}

// bonferroni multiplies each raw p by the family size, capped at 1
func bonferroni(raw []float64) []float64 {
	m := float64(len(raw))
	adjusted := make([]float64, len(raw))
	for i, p := range raw {
		v := p * m
		if v > 1 {
			v = 1
		}
		adjusted[i] = v
	}
	return adjusted
}

// benjaminiHochberg computes step-up FDR-adjusted p-values. The cumulative
// minimum from the largest rank down enforces monotonicity: an adjusted p is
// never larger than the adjusted p of a larger raw p.
func benjaminiHochberg(raw []float64) []float64 {
	m := len(raw)
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return raw[order[a]] < raw[order[b]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m; rank >= 1; rank-- {
		i := order[rank-1]
		v := raw[i] * float64(m) / float64(rank)
		if v < running {
			running = v
		}
		adjusted[i] = running
	}
	return adjusted
}
