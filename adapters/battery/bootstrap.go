package battery

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

const bootstrapFloor = 5

// runBootstrap resamples rows with replacement and reports a percentile
// confidence interval for the estimator: the target/predictor correlation
// when a predictor is given, the target mean otherwise. The reported p-value
// is the two-sided empirical probability that the estimator crosses zero,
// bounded below by 1/resamples.
//
// Seeding mirrors the permutation test: each resample draws from its own
// derived stream so parallel execution stays reproducible.
func (b *Battery) runBootstrap(ctx context.Context, res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int, seed int64) {
	floor := s.Options.MinSample
	if floor <= 0 {
		floor = bootstrapFloor
	}
	if len(rows) < floor {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}

	keys := []core.ColumnKey{s.Target}
	if len(s.Predictors) == 1 {
		keys = append(keys, s.Predictors[0])
	}
	cols, err := table.Select(rows, keys...)
	if err != nil {
		res.AddWarning(result.WarnInsufficientSample)
		return
	}

	var estimate func(idx []int) float64
	effectKind := "mean"
	if len(cols) == 2 {
		y, x := cols[0], cols[1]
		if !hasVariance(x) || !hasVariance(y) {
			res.AddWarning(result.WarnZeroVariance)
			return
		}
		effectKind = "r"
		estimate = func(idx []int) float64 {
			rx := make([]float64, len(idx))
			ry := make([]float64, len(idx))
			for j, i := range idx {
				rx[j] = x[i]
				ry[j] = y[i]
			}
			return stat.Correlation(rx, ry, nil)
		}
	} else {
		y := cols[0]
		estimate = func(idx []int) float64 {
			sum := 0.0
			for _, i := range idx {
				sum += y[i]
			}
			return sum / float64(len(idx))
		}
	}

	n := len(rows)
	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	observed := estimate(identity)

	resamples := b.iterations(s, b.defaults.BootstrapResamples)
	estimates := make([]float64, resamples)
	completed := make([]bool, resamples)

	g, gctx := errgroup.WithContext(ctx)
	workers := b.defaults.Workers
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			idx := make([]int, n)
			for i := w; i < resamples; i += workers {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				rng := rand.New(rand.NewSource(core.DeriveSeed(seed, "boot", strconv.Itoa(i))))
				for j := range idx {
					idx[j] = rng.Intn(n)
				}

				est := estimate(idx)
				if math.IsNaN(est) {
					// Degenerate resample (e.g. all-identical draw); skip it
					continue
				}
				estimates[i] = est
				completed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	dist := make([]float64, 0, resamples)
	for i := 0; i < resamples; i++ {
		if completed[i] {
			dist = append(dist, estimates[i])
		}
	}
	if len(dist) == 0 {
		res.AddWarning(result.WarnCancelled)
		return
	}
	if gctx.Err() != nil {
		res.AddWarning(result.WarnCancelled)
	}
	sort.Float64s(dist)

	level := b.ciLevel(s)
	lo := percentile(dist, (1-level)/2)
	hi := percentile(dist, 1-(1-level)/2)

	below, above := 0, 0
	for _, est := range dist {
		if est <= 0 {
			below++
		}
		if est >= 0 {
			above++
		}
	}
	tail := math.Min(float64(below), float64(above)) / float64(len(dist))
	p := clampP(2 * tail)
	if p < 1/float64(len(dist)) {
		p = 1 / float64(len(dist))
	}

	res.Statistic = result.Float(observed)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(observed)
	res.EffectSizeKind = effectKind
	res.CI = &result.Interval{Lower: lo, Upper: hi, Level: level}
	res.SetMetric("requested_resamples", float64(resamples))
	res.SetMetric("completed_resamples", float64(len(dist)))
}

// percentile interpolates linearly over a sorted slice
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
