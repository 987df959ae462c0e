package battery

import (
	"context"
	"math"
	"math/rand"
	"strconv"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

// permutationFloor is the minimum n for a permutation test; the procedure is
// meant for small/skewed samples so the floor sits below the parametric one.
const permutationFloor = 5

// runPermutation computes an empirical p-value by shuffling the outcome
// column (never the predictors) and recomputing the statistic each time.
//
// Determinism: every iteration derives its own seeded stream from (seed,
// iteration index), so the null distribution is reproducible regardless of
// worker scheduling. Cancellation is cooperative, checked between iterations;
// a cancelled run returns the partial null distribution with a cancelled
// warning instead of corrupting the batch.
func (b *Battery) runPermutation(ctx context.Context, res *result.TestResult, s spec.TestSpec, table *dataset.Table, rows []int, seed int64) {
	floor := s.Options.MinSample
	if floor <= 0 {
		floor = permutationFloor
	}
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

	statFn := permutationStatistic(s.Options.InnerKind)
	observed := statFn(x, y)
	iters := b.iterations(s, b.defaults.PermutationShuffles)

	nullStats := make([]float64, iters)
	completed := make([]bool, iters)

	g, gctx := errgroup.WithContext(ctx)
	workers := b.defaults.Workers
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			shuffled := make([]float64, len(y))
			for i := w; i < iters; i += workers {
				select {
				case <-gctx.Done():
					return nil
				default:
				}

				rng := rand.New(rand.NewSource(core.DeriveSeed(seed, "perm", strconv.Itoa(i))))
				copy(shuffled, y)
				for j := len(shuffled) - 1; j > 0; j-- {
					k := rng.Intn(j + 1)
					shuffled[j], shuffled[k] = shuffled[k], shuffled[j]
				}

				nullStats[i] = statFn(x, shuffled)
				completed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	done := 0
	extreme := 0
	absObserved := math.Abs(observed)
	for i := 0; i < iters; i++ {
		if !completed[i] {
			continue
		}
		done++
		if math.Abs(nullStats[i]) >= absObserved {
			extreme++
		}
	}

	if done == 0 {
		res.AddWarning(result.WarnCancelled)
		return
	}
	if done < iters {
		res.AddWarning(result.WarnCancelled)
	}

	p := clampP(float64(extreme) / float64(done))
	effectKind := "r"
	if s.Options.InnerKind == spec.TestSpearman {
		effectKind = "rho"
	}

	res.Statistic = result.Float(observed)
	res.PValue = result.Float(p)
	res.EffectSize = result.Float(observed)
	res.EffectSizeKind = effectKind
	res.SetMetric("requested_iterations", float64(iters))
	res.SetMetric("completed_iterations", float64(done))
}

func permutationStatistic(inner spec.TestKind) func(x, y []float64) float64 {
	if inner == spec.TestSpearman {
		return func(x, y []float64) float64 {
			return stat.Correlation(ranks(x), ranks(y), nil)
		}
	}
	return func(x, y []float64) float64 {
		return stat.Correlation(x, y, nil)
	}
}
