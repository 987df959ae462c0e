// Package meta pools per-domain effect sizes into cross-domain summaries:
// inverse-variance pooling, Cochran's Q heterogeneity, I-squared, and an
// optional moderator regression over domain-level covariates.
package meta

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"phonostat/domain/core"
	"phonostat/domain/result"
)

// minDomains is the floor for pooling at all; below it a pooled estimate is
// not meaningful and the record is returned untested-style with a warning.
const minDomains = 2

// moderatorPowerFloor marks moderator regressions as low-power: with fewer
// domains than this the model still runs but the warning is mandatory.
const moderatorPowerFloor = 10

// Analyzer pools effects for one feature at a time
type Analyzer struct{}

func New() *Analyzer {
	return &Analyzer{}
}

// Pool computes the fixed-effect inverse-variance summary for one feature.
// Effects with non-finite or non-positive standard errors are dropped before
// pooling; the count of usable domains drives every downstream statistic.
func (a *Analyzer) Pool(featureName string, effects []result.DomainEffect, ciLevel float64) (result.MetaAnalysisRecord, error) {
	if featureName == "" {
		return result.MetaAnalysisRecord{}, fmt.Errorf("%w: feature name required", core.ErrInvalidSpec)
	}
	rec := result.MetaAnalysisRecord{
		FeatureName: featureName,
		CreatedAt:   core.Now(),
	}

	usable := make([]result.DomainEffect, 0, len(effects))
	for _, e := range effects {
		if e.StdErr > 0 && !math.IsNaN(e.EffectSize) && !math.IsInf(e.EffectSize, 0) {
			usable = append(usable, e)
		}
	}
	sort.Slice(usable, func(i, j int) bool { return usable[i].Domain < usable[j].Domain })
	rec.PerDomain = usable

	k := len(usable)
	if k < minDomains {
		rec.Warnings = append(rec.Warnings, result.WarnInsufficientSample)
		return rec, nil
	}

	// Fixed-effect inverse-variance weighting
	sumW, sumWE := 0.0, 0.0
	for _, e := range usable {
		w := 1 / (e.StdErr * e.StdErr)
		sumW += w
		sumWE += w * e.EffectSize
	}
	pooled := sumWE / sumW
	pooledSE := math.Sqrt(1 / sumW)

	z := normalQuantile(1 - (1-ciLevel)/2)
	rec.PooledEffect = pooled
	rec.PooledSE = pooledSE
	rec.PooledCI = result.Interval{
		Lower: pooled - z*pooledSE,
		Upper: pooled + z*pooledSE,
		Level: ciLevel,
	}

	// Cochran's Q against chi-squared with k-1 degrees of freedom
	q := 0.0
	for _, e := range usable {
		w := 1 / (e.StdErr * e.StdErr)
		d := e.EffectSize - pooled
		q += w * d * d
	}
	df := float64(k - 1)
	rec.QStatistic = q
	rec.QPValue = distuv.ChiSquared{K: df}.Survival(q)

	// I-squared: share of variability beyond sampling error, floored at zero
	if q > 0 {
		i2 := (q - df) / q * 100
		if i2 < 0 {
			i2 = 0
		}
		rec.ISquared = i2
	}

	return rec, nil
}

// Moderate fits an OLS regression of per-domain effect sizes on domain-level
// covariates. Each covariate map must carry a value for every named
// moderator; domains missing one are excluded. The unit of analysis is the
// domain, so n is small by construction and the low-power warning fires
// whenever fewer than ten domains contribute.
func (a *Analyzer) Moderate(rec *result.MetaAnalysisRecord, moderators []string, covariates map[core.DomainKey]map[string]float64) error {
	if len(moderators) == 0 {
		return fmt.Errorf("%w: at least one moderator required", core.ErrInvalidSpec)
	}

	var y []float64
	var x [][]float64
	for _, e := range rec.PerDomain {
		row, ok := covariates[e.Domain]
		if !ok {
			continue
		}
		xr := make([]float64, 0, len(moderators))
		complete := true
		for _, m := range moderators {
			v, ok := row[m]
			if !ok || math.IsNaN(v) {
				complete = false
				break
			}
			xr = append(xr, v)
		}
		if !complete {
			continue
		}
		y = append(y, e.EffectSize)
		x = append(x, xr)
	}

	n := len(y)
	p := len(moderators)
	model := &result.ModeratorModel{NDomains: n}
	if n < moderatorPowerFloor {
		model.Warnings = append(model.Warnings, result.WarnLowPower)
	}
	if n < p+2 {
		model.Warnings = append(model.Warnings, result.WarnInsufficientSample)
		rec.Moderator = model
		rec.Warnings = append(rec.Warnings, result.WarnInsufficientSample)
		return nil
	}

	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j, v := range x[i] {
			design.Set(i, j+1, v)
		}
	}
	beta, ok := solveLeastSquares(design, y)
	if !ok {
		model.Warnings = append(model.Warnings, result.WarnSingularMatrix)
		rec.Moderator = model
		rec.Warnings = append(rec.Warnings, result.WarnSingularMatrix)
		return nil
	}

	// R-squared over the domain-level fit
	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)
	ssTot, ssRes := 0.0, 0.0
	for i := 0; i < n; i++ {
		fitted := beta[0]
		for j := 0; j < p; j++ {
			fitted += beta[j+1] * x[i][j]
		}
		d := y[i] - fitted
		ssRes += d * d
		t := y[i] - yMean
		ssTot += t * t
	}
	if ssTot > 0 {
		model.RSquared = 1 - ssRes/ssTot
	}

	names := append([]string{"intercept"}, moderators...)
	stdErrs, tdf := coefficientStdErrs(design, ssRes, n, p)
	for j, name := range names {
		c := result.Coefficient{Name: name, Estimate: beta[j]}
		if stdErrs != nil {
			c.StdErr = stdErrs[j]
			if stdErrs[j] > 0 && tdf > 0 {
				t := math.Abs(beta[j] / stdErrs[j])
				pv := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: tdf}.Survival(t)
				if pv > 1 {
					pv = 1
				}
				c.PValue = result.Float(pv)
			}
		}
		model.Coefficients = append(model.Coefficients, c)
	}

	rec.Moderator = model
	if n < moderatorPowerFloor {
		rec.Warnings = append(rec.Warnings, result.WarnLowPower)
	}
	return nil
}

func solveLeastSquares(design *mat.Dense, y []float64) ([]float64, bool) {
	var qr mat.QR
	qr.Factorize(design)
	_, cols := design.Dims()
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(len(y), y)); err != nil {
		return nil, false
	}
	out := make([]float64, cols)
	for j := range out {
		v := beta.AtVec(j)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		out[j] = v
	}
	return out, true
}

// coefficientStdErrs computes OLS standard errors from (X'X)^-1; nil when the
// cross-product is singular or there are no residual degrees of freedom.
func coefficientStdErrs(design *mat.Dense, ssRes float64, n, p int) ([]float64, float64) {
	df := float64(n - p - 1)
	if df <= 0 {
		return nil, 0
	}
	sigma2 := ssRes / df

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, 0
	}
	out := make([]float64, p+1)
	for j := range out {
		v := sigma2 * inv.At(j, j)
		if v < 0 {
			v = 0
		}
		out[j] = math.Sqrt(v)
	}
	return out, df
}

// normalQuantile inverts the standard normal CDF via distuv
func normalQuantile(p float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: 1}.Quantile(p)
}
