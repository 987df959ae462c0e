package battery

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// runOLS fits ordinary least squares of the target on predictors + controls,
// reporting in-sample fit AND k-fold cross-validated out-of-sample R²
// together. If CV cannot run the result carries an in_sample_only warning so
// downstream consumers can flag it lower-confidence.
func (b *Battery) runOLS(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int, seed int64) {
	predictors := append(append([]core.ColumnKey{}, s.Predictors...), s.Controls...)
	keys := append([]core.ColumnKey{s.Target}, predictors...)
	cols, err := table.Select(rows, keys...)
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	y := cols[0]
	xCols := cols[1:]

	p := len(predictors) + 1 // with intercept
	n := len(y)
	if n < p+2 {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	if !hasVariance(y) {
		res.AddWarning(result.WarnZeroVariance)
		return
	}

	X := designMatrix(xCols, n)
	beta, ok := solveOLS(X, y)
	if !ok {
		res.AddWarning(result.WarnSingularMatrix)
		return
	}

	fitted := predictLinear(X, beta)
	ssRes, ssTot := 0.0, 0.0
	yMean := mean(y)
	for i := range y {
		d := y[i] - fitted[i]
		ssRes += d * d
		dt := y[i] - yMean
		ssTot += dt * dt
	}
	rSquared := 1 - ssRes/ssTot
	dfModel := float64(p - 1)
	dfResid := float64(n - p)
	adjR := 1 - (1-rSquared)*float64(n-1)/dfResid

	f := (rSquared / dfModel) / ((1 - rSquared) / dfResid)
	pVal := fPValue(f, dfModel, dfResid)

	res.Statistic = result.Float(f)
	res.PValue = result.Float(pVal)
	res.EffectSize = result.Float(rSquared)
	res.EffectSizeKind = "r_squared"
	res.SetMetric("adj_r_squared", adjR)
	res.SetMetric("df_model", dfModel)
	res.SetMetric("df_residual", dfResid)

	res.Coefficients = olsCoefficients(X, beta, ssRes, n, p, predictors)

	// Out-of-sample fit via seeded k-fold CV
	folds := b.folds(s)
	if n < folds*(p+1) {
		res.AddWarning(result.WarnInSampleOnly)
		return
	}
	cvR2 := crossValidateOLS(xCols, y, folds, core.DeriveSeed(seed, "cv", "ols"))
	if math.IsNaN(cvR2) {
		res.AddWarning(result.WarnInSampleOnly)
		return
	}
	res.SetMetric("cv_r_squared", cvR2)
	res.SetMetric("cv_folds", float64(folds))
}

// designMatrix builds [1 | x1 | x2 | ...] row-major
func designMatrix(xCols [][]float64, n int) *mat.Dense {
	p := len(xCols) + 1
	X := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, col := range xCols {
			X.Set(i, j+1, col[i])
		}
	}
	return X
}

// solveOLS solves the normal equations via QR; returns false on a singular
// design matrix
func solveOLS(X *mat.Dense, y []float64) ([]float64, bool) {
	n, p := X.Dims()
	if n < p {
		return nil, false
	}
	var qr mat.QR
	qr.Factorize(X)

	yVec := mat.NewVecDense(n, y)
	var betaVec mat.VecDense
	if err := qr.SolveVecTo(&betaVec, false, yVec); err != nil {
		return nil, false
	}

	beta := make([]float64, p)
	for i := range beta {
		v := betaVec.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		beta[i] = v
	}
	return beta, true
}

func predictLinear(X *mat.Dense, beta []float64) []float64 {
	n, p := X.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < p; j++ {
			sum += X.At(i, j) * beta[j]
		}
		out[i] = sum
	}
	return out
}

// olsCoefficients computes per-term estimates with standard errors and
// t-test p-values from (X'X)^-1
func olsCoefficients(X *mat.Dense, beta []float64, ssRes float64, n, p int, predictors []core.ColumnKey) []result.Coefficient {
	names := make([]string, p)
	names[0] = "intercept"
	for i, k := range predictors {
		names[i+1] = string(k)
	}

	coeffs := make([]result.Coefficient, p)
	for i := range coeffs {
		coeffs[i] = result.Coefficient{Name: names[i], Estimate: beta[i]}
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		// Estimates without inference when X'X is near-singular
		return coeffs
	}

	sigma2 := ssRes / float64(n-p)
	df := float64(n - p)
	for i := range coeffs {
		se := math.Sqrt(sigma2 * inv.At(i, i))
		coeffs[i].StdErr = se
		if se > 0 {
			t := beta[i] / se
			coeffs[i].PValue = result.Float(tTestPValue(t, df))
		}
	}
	return coeffs
}

// crossValidateOLS computes pooled out-of-sample R² over seeded k folds
func crossValidateOLS(xCols [][]float64, y []float64, folds int, seed int64) float64 {
	n := len(y)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	sse, sst := 0.0, 0.0
	for f := 0; f < folds; f++ {
		testIdx, trainIdx := foldSplit(perm, folds, f)
		if len(trainIdx) <= len(xCols)+1 || len(testIdx) == 0 {
			return math.NaN()
		}

		trainX := subsetCols(xCols, trainIdx)
		trainY := subset(y, trainIdx)
		X := designMatrix(trainX, len(trainIdx))
		beta, ok := solveOLS(X, trainY)
		if !ok {
			return math.NaN()
		}

		trainMean := mean(trainY)
		for _, i := range testIdx {
			pred := beta[0]
			for j, col := range xCols {
				pred += beta[j+1] * col[i]
			}
			d := y[i] - pred
			sse += d * d
			dt := y[i] - trainMean
			sst += dt * dt
		}
	}
	if sst == 0 {
		return math.NaN()
	}
	return 1 - sse/sst
}

// foldSplit partitions a permutation into the f-th test fold and the rest
func foldSplit(perm []int, folds, f int) (testIdx, trainIdx []int) {
	for i, idx := range perm {
		if i%folds == f {
			testIdx = append(testIdx, idx)
		} else {
			trainIdx = append(trainIdx, idx)
		}
	}
	return testIdx, trainIdx
}

func subset(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

func subsetCols(cols [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(cols))
	for c, col := range cols {
		out[c] = subset(col, idx)
	}
	return out
}
