package battery

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Exact distribution helpers, all via gonum distuv. Every p-value in the
// battery flows through these so no approximation drift creeps in between
// test strategies.

// tTestPValue computes the two-tailed p-value for a t statistic
func tTestPValue(tStatistic float64, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(tStatistic) {
		return 1.0
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: degreesOfFreedom}
	return clampP(2 * (1 - tDist.CDF(math.Abs(tStatistic))))
}

// correlationPValue computes the two-tailed p-value for a correlation
// coefficient via the t transform
func correlationPValue(r float64, sampleSize int) float64 {
	if sampleSize < 3 {
		return 1.0
	}
	if math.Abs(r) >= 1 {
		return 0.0
	}
	df := float64(sampleSize - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return tTestPValue(t, df)
}

// fPValue computes the upper-tail p-value for an F statistic
func fPValue(fStatistic float64, df1, df2 float64) float64 {
	if df1 <= 0 || df2 <= 0 || math.IsNaN(fStatistic) || fStatistic < 0 {
		return 1.0
	}
	fDist := distuv.F{D1: df1, D2: df2}
	return clampP(1 - fDist.CDF(fStatistic))
}

// chiSquarePValue computes the upper-tail p-value for a chi-square statistic
func chiSquarePValue(chi2 float64, degreesOfFreedom float64) float64 {
	if degreesOfFreedom <= 0 || math.IsNaN(chi2) || chi2 < 0 {
		return 1.0
	}
	dist := distuv.ChiSquared{K: degreesOfFreedom}
	return clampP(1 - dist.CDF(chi2))
}

// normalQuantile returns the standard normal quantile for probability p
func normalQuantile(p float64) float64 {
	return distuv.Normal{Mu: 0, Sigma: 1}.Quantile(p)
}

// fisherCI computes a confidence interval for a correlation coefficient via
// the Fisher z-transform
func fisherCI(r float64, n int, level float64) (lower, upper float64) {
	if n < 4 {
		return -1, 1
	}
	if r >= 1 {
		return 1, 1
	}
	if r <= -1 {
		return -1, -1
	}
	z := 0.5 * math.Log((1+r)/(1-r))
	se := 1 / math.Sqrt(float64(n-3))
	q := normalQuantile(1 - (1-level)/2)
	lo := math.Tanh(z - q*se)
	hi := math.Tanh(z + q*se)
	return lo, hi
}
