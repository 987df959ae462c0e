package battery

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

const (
	irlsMaxIterations = 50
	irlsTolerance     = 1e-8
	separationBound   = 15.0 // |coefficient| beyond this signals quasi-separation
)

// runLogistic fits a logistic regression of a binary target on predictors +
// controls via IRLS, reporting the likelihood-ratio test in-sample and k-fold
// CV accuracy/AUC out-of-sample together. Perfect separation is caught and
// recorded as a warning, never raised.
func (b *Battery) runLogistic(res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int, seed int64) {
	predictors := append(append([]core.ColumnKey{}, s.Predictors...), s.Controls...)
	keys := append([]core.ColumnKey{s.Target}, predictors...)
	cols, err := table.Select(rows, keys...)
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}
	yRaw := cols[0]
	xCols := cols[1:]

	y, ok := binaryRecode(yRaw)
	if !ok {
		res.AddWarning(result.WarnDegenerateGroups)
		return
	}

	p := len(predictors) + 1
	n := len(y)
	if n < p+2 {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}

	X := designMatrix(xCols, n)
	fit := fitLogistic(X, y)
	switch fit.status {
	case logisticSingular:
		res.AddWarning(result.WarnSingularMatrix)
		return
	case logisticSeparated:
		res.AddWarning(result.WarnPerfectSeparation)
		return
	case logisticNoConverge:
		res.AddWarning(result.WarnNoConvergence)
		return
	}

	// Likelihood-ratio test against the intercept-only model
	p1 := mean(y)
	nullDeviance := 0.0
	if p1 > 0 && p1 < 1 {
		for _, yi := range y {
			mu := p1
			nullDeviance += -2 * (yi*math.Log(mu) + (1-yi)*math.Log(1-mu))
		}
	}
	lrChi2 := nullDeviance - fit.deviance
	if lrChi2 < 0 {
		lrChi2 = 0
	}
	dfModel := float64(p - 1)
	pVal := chiSquarePValue(lrChi2, dfModel)

	mcFadden := 0.0
	if nullDeviance > 0 {
		mcFadden = 1 - fit.deviance/nullDeviance
	}

	res.Statistic = result.Float(lrChi2)
	res.PValue = result.Float(pVal)
	res.EffectSize = result.Float(mcFadden)
	res.EffectSizeKind = "mcfadden_r_squared"
	res.SetMetric("deviance", fit.deviance)
	res.SetMetric("null_deviance", nullDeviance)
	res.SetMetric("irls_iterations", float64(fit.iterations))

	res.Coefficients = logisticCoefficients(fit, predictors)

	folds := b.folds(s)
	if n < folds*(p+1) {
		res.AddWarning(result.WarnInSampleOnly)
		return
	}
	acc, auc, cvOK := crossValidateLogistic(xCols, y, folds, core.DeriveSeed(seed, "cv", "logistic"))
	if !cvOK {
		res.AddWarning(result.WarnInSampleOnly)
		return
	}
	res.SetMetric("cv_accuracy", acc)
	res.SetMetric("cv_auc", auc)
	res.SetMetric("cv_folds", float64(folds))
}

// binaryRecode maps a two-level column onto {0,1} (lower code -> 0)
func binaryRecode(vals []float64) ([]float64, bool) {
	levels := distinctLevels(vals)
	if len(levels) != 2 {
		return nil, false
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == levels[1] {
			out[i] = 1
		}
	}
	return out, true
}

type logisticStatus int

const (
	logisticOK logisticStatus = iota
	logisticSingular
	logisticSeparated
	logisticNoConverge
)

type logisticFit struct {
	status     logisticStatus
	beta       []float64
	stdErr     []float64
	deviance   float64
	iterations int
}

// fitLogistic runs iteratively reweighted least squares
func fitLogistic(X *mat.Dense, y []float64) logisticFit {
	n, p := X.Dims()
	beta := make([]float64, p)

	for iter := 1; iter <= irlsMaxIterations; iter++ {
		mu := make([]float64, n)
		w := make([]float64, n)
		z := make([]float64, n)
		for i := 0; i < n; i++ {
			eta := 0.0
			for j := 0; j < p; j++ {
				eta += X.At(i, j) * beta[j]
			}
			m := 1 / (1 + math.Exp(-eta))
			// Guard against exact 0/1 fitted probabilities
			if m < 1e-10 {
				m = 1e-10
			}
			if m > 1-1e-10 {
				m = 1 - 1e-10
			}
			mu[i] = m
			w[i] = m * (1 - m)
			z[i] = eta + (y[i]-m)/w[i]
		}

		// Weighted normal equations: (X'WX) beta = X'Wz
		var xtwx mat.Dense
		xtwx.Mul(weightedT(X, w), X)
		xtwz := make([]float64, p)
		for j := 0; j < p; j++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += X.At(i, j) * w[i] * z[i]
			}
			xtwz[j] = sum
		}

		var inv mat.Dense
		if err := inv.Inverse(&xtwx); err != nil {
			return logisticFit{status: logisticSingular}
		}

		next := make([]float64, p)
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			sum := 0.0
			for k := 0; k < p; k++ {
				sum += inv.At(j, k) * xtwz[k]
			}
			next[j] = sum
			if d := math.Abs(next[j] - beta[j]); d > maxDelta {
				maxDelta = d
			}
		}
		beta = next

		for _, bj := range beta[1:] {
			if math.Abs(bj) > separationBound {
				return logisticFit{status: logisticSeparated}
			}
		}

		if maxDelta < irlsTolerance {
			deviance := 0.0
			for i := 0; i < n; i++ {
				deviance += -2 * (y[i]*math.Log(mu[i]) + (1-y[i])*math.Log(1-mu[i]))
			}
			stdErr := make([]float64, p)
			for j := 0; j < p; j++ {
				stdErr[j] = math.Sqrt(inv.At(j, j))
			}
			return logisticFit{
				status:     logisticOK,
				beta:       beta,
				stdErr:     stdErr,
				deviance:   deviance,
				iterations: iter,
			}
		}
	}

	return logisticFit{status: logisticNoConverge}
}

// weightedT computes X' with each column i scaled by w[i]
func weightedT(X *mat.Dense, w []float64) *mat.Dense {
	n, p := X.Dims()
	out := mat.NewDense(p, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			out.Set(j, i, X.At(i, j)*w[i])
		}
	}
	return out
}

func logisticCoefficients(fit logisticFit, predictors []core.ColumnKey) []result.Coefficient {
	names := make([]string, len(fit.beta))
	names[0] = "intercept"
	for i, k := range predictors {
		names[i+1] = string(k)
	}
	coeffs := make([]result.Coefficient, len(fit.beta))
	for i := range coeffs {
		coeffs[i] = result.Coefficient{
			Name:     names[i],
			Estimate: fit.beta[i],
			StdErr:   fit.stdErr[i],
		}
		if fit.stdErr[i] > 0 {
			// Wald z-test
			z := fit.beta[i] / fit.stdErr[i]
			coeffs[i].PValue = result.Float(clampP(2 * (1 - stdNormalCDF(math.Abs(z)))))
		}
	}
	return coeffs
}

func stdNormalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// crossValidateLogistic computes pooled held-out accuracy and AUC over seeded
// k folds
func crossValidateLogistic(xCols [][]float64, y []float64, folds int, seed int64) (accuracy, auc float64, ok bool) {
	n := len(y)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	correct, total := 0, 0
	scores := make([]float64, 0, n)
	labels := make([]float64, 0, n)

	for f := 0; f < folds; f++ {
		testIdx, trainIdx := foldSplit(perm, folds, f)
		if len(trainIdx) <= len(xCols)+1 || len(testIdx) == 0 {
			return 0, 0, false
		}
		trainX := subsetCols(xCols, trainIdx)
		trainY := subset(y, trainIdx)

		// Folds missing a class cannot train a classifier
		if !hasVariance(trainY) {
			return 0, 0, false
		}

		X := designMatrix(trainX, len(trainIdx))
		fit := fitLogistic(X, trainY)
		if fit.status != logisticOK {
			return 0, 0, false
		}

		for _, i := range testIdx {
			eta := fit.beta[0]
			for j, col := range xCols {
				eta += fit.beta[j+1] * col[i]
			}
			prob := 1 / (1 + math.Exp(-eta))
			pred := 0.0
			if prob >= 0.5 {
				pred = 1
			}
			if pred == y[i] {
				correct++
			}
			total++
			scores = append(scores, prob)
			labels = append(labels, y[i])
		}
	}

	if total == 0 {
		return 0, 0, false
	}
	return float64(correct) / float64(total), rankAUC(scores, labels), true
}

// rankAUC computes AUC via the rank-sum (Mann-Whitney) identity
func rankAUC(scores, labels []float64) float64 {
	type pair struct{ score, label float64 }
	pairs := make([]pair, len(scores))
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	var nPos, nNeg, rankSum float64
	i := 0
	for i < len(pairs) {
		j := i + 1
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSum += avgRank
				nPos++
			} else {
				nNeg++
			}
		}
		i = j
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}
