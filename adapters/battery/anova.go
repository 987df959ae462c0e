package battery

import (
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// runANOVAOneWay runs a one-way ANOVA of the target across the groups defined
// by one grouping column. Requires at least two groups each meeting the
// minimum group size. Effect size is eta-squared.
func (b *Battery) runANOVAOneWay(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int) {
	cols, err := table.Select(rows, s.Target, s.Predictors[0])
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	y, g := cols[0], cols[1]

	groups := groupBy(y, g)
	floor := b.minGroupSize(s)
	usable := 0
	for _, vals := range groups {
		if len(vals) >= floor {
			usable++
		}
	}
	if len(groups) < 2 || usable < len(groups) {
		if len(groups) < 2 {
			res.AddWarning(result.WarnDegenerateGroups)
		} else {
			res.AddWarning(result.WarnInsufficientSample)
		}
		return
	}

	grand := mean(y)
	n := float64(len(y))
	k := float64(len(groups))

	ssBetween, ssWithin := 0.0, 0.0
	for _, vals := range groups {
		gm := mean(vals)
		d := gm - grand
		ssBetween += float64(len(vals)) * d * d
		for _, v := range vals {
			dv := v - gm
			ssWithin += dv * dv
		}
	}

	dfBetween := k - 1
	dfWithin := n - k
	if ssWithin == 0 {
		res.AddWarning(result.WarnZeroVariance)
		return
	}

	f := (ssBetween / dfBetween) / (ssWithin / dfWithin)
	p := fPValue(f, dfBetween, dfWithin)
	etaSquared := ssBetween / (ssBetween + ssWithin)

	res.Statistic = result.Float(f)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(etaSquared)
	res.EffectSizeKind = "eta_squared"
	res.SetMetric("df_between", dfBetween)
	res.SetMetric("df_within", dfWithin)
	res.SetMetric("ss_between", ssBetween)
	res.SetMetric("ss_within", ssWithin)
	res.SetMetric("num_groups", k)
}

// runANOVATwoWay runs a two-way ANOVA with interaction over two grouping
// columns. Reports the factor A F statistic as the primary statistic with
// factor B and interaction terms in Metrics; partial eta-squared for factor A
// is the effect size.
func (b *Battery) runANOVATwoWay(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int) {
	cols, err := table.Select(rows, s.Target, s.Predictors[0], s.Predictors[1])
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	y, a, c := cols[0], cols[1], cols[2]

	aLevels := distinctLevels(a)
	bLevels := distinctLevels(c)
	if len(aLevels) < 2 || len(bLevels) < 2 {
		res.AddWarning(result.WarnDegenerateGroups)
		return
	}

	// Cell means; every cell must be populated for the factorial decomposition
	type cellKey struct{ i, j int }
	aIdx := levelIndex(aLevels)
	bIdx := levelIndex(bLevels)
	cells := make(map[cellKey][]float64)
	for i := range y {
		key := cellKey{aIdx[a[i]], bIdx[c[i]]}
		cells[key] = append(cells[key], y[i])
	}
	floor := b.minGroupSize(s)
	if len(cells) != len(aLevels)*len(bLevels) {
		res.AddWarning(result.WarnDegenerateGroups)
		return
	}
	for _, vals := range cells {
		if len(vals) < floor {
			res.AddWarning(result.WarnInsufficientSample)
			return
		}
	}

	grand := mean(y)
	n := float64(len(y))

	// Marginal means
	aMeans := make([]float64, len(aLevels))
	aCounts := make([]float64, len(aLevels))
	bMeans := make([]float64, len(bLevels))
	bCounts := make([]float64, len(bLevels))
	for i := range y {
		ai, bi := aIdx[a[i]], bIdx[c[i]]
		aMeans[ai] += y[i]
		aCounts[ai]++
		bMeans[bi] += y[i]
		bCounts[bi]++
	}
	for i := range aMeans {
		aMeans[i] /= aCounts[i]
	}
	for i := range bMeans {
		bMeans[i] /= bCounts[i]
	}

	ssA, ssB, ssAB, ssE := 0.0, 0.0, 0.0, 0.0
	for i := range aMeans {
		d := aMeans[i] - grand
		ssA += aCounts[i] * d * d
	}
	for i := range bMeans {
		d := bMeans[i] - grand
		ssB += bCounts[i] * d * d
	}
	for key, vals := range cells {
		cm := mean(vals)
		d := cm - aMeans[key.i] - bMeans[key.j] + grand
		ssAB += float64(len(vals)) * d * d
		for _, v := range vals {
			dv := v - cm
			ssE += dv * dv
		}
	}

	dfA := float64(len(aLevels) - 1)
	dfB := float64(len(bLevels) - 1)
	dfAB := dfA * dfB
	dfE := n - float64(len(aLevels)*len(bLevels))
	if ssE == 0 || dfE <= 0 {
		res.AddWarning(result.WarnZeroVariance)
		return
	}
	msE := ssE / dfE

	fA := (ssA / dfA) / msE
	fB := (ssB / dfB) / msE
	fAB := (ssAB / dfAB) / msE

	res.Statistic = result.Float(fA)
	res.PValue = result.Float(fPValue(fA, dfA, dfE))
	res.EffectSize = result.Float(ssA / (ssA + ssE))
	res.EffectSizeKind = "partial_eta_squared"
	res.SetMetric("f_factor_b", fB)
	res.SetMetric("p_factor_b", fPValue(fB, dfB, dfE))
	res.SetMetric("f_interaction", fAB)
	res.SetMetric("p_interaction", fPValue(fAB, dfAB, dfE))
	res.SetMetric("df_error", dfE)
}

func groupBy(y, g []float64) map[float64][]float64 {
	groups := make(map[float64][]float64)
	for i := range y {
		groups[g[i]] = append(groups[g[i]], y[i])
	}
	return groups
}
