package battery

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// runCorrelation computes Pearson or Spearman correlation between the target
// and the single predictor. Floor: n >= MinSampleCorrelation (default 10,
// spec option overrides). Below the floor the result is null with an
// insufficient_sample warning, which callers must treat as "not tested".
func (b *Battery) runCorrelation(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int, rankBased bool) {
	floor := b.minSample(s)
	if len(rows) < floor {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}

	cols, err := table.Select(rows, s.Target, s.Predictors[0])
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	y, x := cols[0], cols[1]

	if !hasVariance(x) || !hasVariance(y) {
		res.AddWarning(result.WarnZeroVariance)
		return
	}

	effectKind := "r"
	if rankBased {
		x = ranks(x)
		y = ranks(y)
		effectKind = "rho"
	}

	r := stat.Correlation(x, y, nil)
	p := correlationPValue(r, len(rows))
	lo, hi := fisherCI(r, len(rows), b.ciLevel(s))

	res.Statistic = result.Float(r)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(r)
	res.EffectSizeKind = effectKind
	res.CI = &result.Interval{Lower: lo, Upper: hi, Level: b.ciLevel(s)}
}

// ranks converts values to ranks, averaging ties
func ranks(data []float64) []float64 {
	n := len(data)
	type pair struct {
		value float64
		index int
	}
	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{value: v, index: i}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	out := make([]float64, n)
	i := 0
	for i < n {
		j := i + 1
		for j < n && pairs[j].value == pairs[i].value {
			j++
		}
		avgRank := float64(i+1) + float64(j-i-1)/2.0
		for k := i; k < j; k++ {
			out[pairs[k].index] = avgRank
		}
		i = j
	}
	return out
}
