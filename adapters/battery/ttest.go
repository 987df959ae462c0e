package battery

import (
	"math"

	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// runWelchTTest compares the target across the two groups defined by a binary
// predictor column, with Welch's correction for unequal variances. Effect size
// is Cohen's d.
func (b *Battery) runWelchTTest(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int) {
	cols, err := table.Select(rows, s.Target, s.Predictors[0])
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	y, g := cols[0], cols[1]

	group1, group2, ok := splitTwoGroups(y, g)
	if !ok {
		res.AddWarning(result.WarnDegenerateGroups)
		return
	}

	floor := b.minGroupSize(s)
	if len(group1) < floor || len(group2) < floor {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}

	v1, v2 := sampleVariance(group1), sampleVariance(group2)
	if v1 == 0 && v2 == 0 {
		res.AddWarning(result.WarnZeroVariance)
		return
	}

	n1, n2 := float64(len(group1)), float64(len(group2))
	m1, m2 := mean(group1), mean(group2)

	se := math.Sqrt(v1/n1 + v2/n2)
	t := (m1 - m2) / se

	// Welch-Satterthwaite degrees of freedom
	num := math.Pow(v1/n1+v2/n2, 2)
	den := math.Pow(v1/n1, 2)/(n1-1) + math.Pow(v2/n2, 2)/(n2-1)
	df := num / den

	p := tTestPValue(t, df)

	// Cohen's d with pooled standard deviation
	pooledSD := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	d := 0.0
	if pooledSD > 0 {
		d = (m1 - m2) / pooledSD
	}

	level := b.ciLevel(s)
	q := normalQuantile(1 - (1-level)/2)
	diff := m1 - m2

	res.Statistic = result.Float(t)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(d)
	res.EffectSizeKind = "d"
	res.CI = &result.Interval{Lower: diff - q*se, Upper: diff + q*se, Level: level}
	res.SetMetric("group1_n", n1)
	res.SetMetric("group2_n", n2)
	res.SetMetric("group1_mean", m1)
	res.SetMetric("group2_mean", m2)
	res.SetMetric("welch_df", df)
}

// splitTwoGroups partitions y by the distinct values of g; exactly two
// distinct group codes are required
func splitTwoGroups(y, g []float64) (group1, group2 []float64, ok bool) {
	distinct := make(map[float64]bool)
	for _, v := range g {
		distinct[v] = true
		if len(distinct) > 2 {
			return nil, nil, false
		}
	}
	if len(distinct) != 2 {
		return nil, nil, false
	}

	// Lower code first so the direction of the difference is deterministic
	var lo, hi float64
	first := true
	for v := range distinct {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	for i, v := range g {
		if v == lo {
			group1 = append(group1, y[i])
		} else if v == hi {
			group2 = append(group2, y[i])
		}
	}
	return group1, group2, true
}
