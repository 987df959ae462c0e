package battery

import (
	"math"
	"sort"

	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// runChiSquare tests independence of two categorical columns via a
// contingency table. Effect size is Cramér's V (phi for 2x2).
func (b *Battery) runChiSquare(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int) {
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
	x, y := cols[0], cols[1]

	xLevels := distinctLevels(x)
	yLevels := distinctLevels(y)
	if len(xLevels) < 2 || len(yLevels) < 2 {
		res.AddWarning(result.WarnDegenerateGroups)
		return
	}

	xIdx := levelIndex(xLevels)
	yIdx := levelIndex(yLevels)

	observed := make([][]float64, len(xLevels))
	for i := range observed {
		observed[i] = make([]float64, len(yLevels))
	}
	for i := range x {
		observed[xIdx[x[i]]][yIdx[y[i]]]++
	}

	n := float64(len(x))
	rowTotals := make([]float64, len(xLevels))
	colTotals := make([]float64, len(yLevels))
	for i := range observed {
		for j := range observed[i] {
			rowTotals[i] += observed[i][j]
			colTotals[j] += observed[i][j]
		}
	}

	chi2 := 0.0
	for i := range observed {
		for j := range observed[i] {
			expected := rowTotals[i] * colTotals[j] / n
			if expected > 0 {
				d := observed[i][j] - expected
				chi2 += d * d / expected
			}
		}
	}

	df := float64((len(xLevels) - 1) * (len(yLevels) - 1))
	p := chiSquarePValue(chi2, df)

	// Cramér's V
	minDim := float64(len(xLevels) - 1)
	if c := float64(len(yLevels) - 1); c < minDim {
		minDim = c
	}
	v := math.Sqrt(chi2 / (n * minDim))
	effectKind := "cramers_v"
	if len(xLevels) == 2 && len(yLevels) == 2 {
		effectKind = "phi"
	}

	res.Statistic = result.Float(chi2)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(v)
	res.EffectSizeKind = effectKind
	res.SetMetric("df", df)
	res.SetMetric("rows", float64(len(xLevels)))
	res.SetMetric("cols", float64(len(yLevels)))
}

func distinctLevels(vals []float64) []float64 {
	set := make(map[float64]bool)
	for _, v := range vals {
		set[v] = true
	}
	levels := make([]float64, 0, len(set))
	for v := range set {
		levels = append(levels, v)
	}
	sort.Float64s(levels)
	return levels
}

func levelIndex(levels []float64) map[float64]int {
	idx := make(map[float64]int, len(levels))
	for i, v := range levels {
		idx[v] = i
	}
	return idx
}
