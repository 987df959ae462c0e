package builder

import (
	"context"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/entity"
	"phonostat/domain/feature"
	"phonostat/ports"
)

// Builder owns dataset construction: it joins entities with their feature
// vectors into a domain-scoped analysis table, flags outliers, and reports
// every exclusion. It enforces no statistical floors; that is the battery's
// job.
type Builder struct {
	extractor ports.ExtractorPort
	cache     ports.FeatureCachePort
	outlierZ  float64
	workers   int
}

// New creates a builder. outlierZ is the z-score beyond which numeric values
// are flagged (flagged, never removed; removal is a per-test decision).
func New(extractor ports.ExtractorPort, cache ports.FeatureCachePort, outlierZ float64, workers int) *Builder {
	if workers <= 0 {
		workers = 4
	}
	return &Builder{
		extractor: extractor,
		cache:     cache,
		outlierZ:  outlierZ,
		workers:   workers,
	}
}

// Build assembles the analysis table for one domain. Entities whose names
// normalize to nothing are excluded and counted in the report, never silently
// dropped.
func (b *Builder) Build(ctx context.Context, domain core.DomainKey, entities []entity.NamedEntity) (*dataset.Table, *dataset.BuildReport, error) {
	report := dataset.NewBuildReport(domain)
	report.TotalEntities = len(entities)

	vectors := make([]feature.Vector, len(entities))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i := range entities {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			vectors[i] = b.cache.GetOrCompute(entities[i].RawName, b.extractor)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Row set: entities with resolvable features
	included := make([]int, 0, len(entities))
	seen := make(map[core.EntityID]bool, len(entities))
	for i, vec := range vectors {
		if vec.DegenerateInput {
			report.Exclude(entities[i].ID, dataset.ExclusionDegenerateName)
			continue
		}
		if seen[entities[i].ID] {
			report.Exclude(entities[i].ID, dataset.ExclusionDuplicateID)
			continue
		}
		seen[entities[i].ID] = true
		included = append(included, i)
	}
	report.IncludedRows = len(included)

	table := dataset.NewTable(domain, b.extractor.Version())
	table.EntityIDs = make([]core.EntityID, len(included))
	for row, i := range included {
		table.EntityIDs[row] = entities[i].ID
	}

	// Feature columns in canonical order
	featureCols := feature.Columns()
	for colIdx, key := range featureCols {
		values := make([]float64, len(included))
		for row, i := range included {
			values[row] = vectors[i].Values()[colIdx]
		}
		colType := dataset.TypeNumeric
		if key == "has_numbers" {
			colType = dataset.TypeBinary
		}
		meta := dataset.ColumnMeta{Key: key, Role: dataset.RoleFeature, Type: colType}
		if err := table.AddColumn(meta, values); err != nil {
			return nil, nil, err
		}
	}

	// Outcome columns (union across entities, NaN where missing)
	for _, name := range outcomeNames(entities, included) {
		values := make([]float64, len(included))
		for row, i := range included {
			if v, ok := entities[i].Outcome(name); ok {
				values[row] = v
			} else {
				values[row] = math.NaN()
			}
		}
		meta := dataset.ColumnMeta{Key: core.ColumnKey(name), Role: dataset.RoleOutcome, Type: dataset.TypeNumeric}
		if err := table.AddColumn(meta, values); err != nil {
			return nil, nil, err
		}
	}

	// Covariate columns: numeric pass through, strings are label-encoded
	if err := b.addCovariates(table, entities, included); err != nil {
		return nil, nil, err
	}

	// Outlier flag columns for every numeric column
	if err := b.flagOutliers(table, report); err != nil {
		return nil, nil, err
	}

	// Prospective per-column sample sizes (reported, not enforced)
	for _, col := range table.Columns {
		if col.Role == dataset.RoleOutlierFlag {
			continue
		}
		vals, _ := table.Column(col.Key)
		n := 0
		for _, v := range vals {
			if !math.IsNaN(v) {
				n++
			}
		}
		report.CandidateN[col.Key] = n
	}

	return table, report, nil
}

func outcomeNames(entities []entity.NamedEntity, included []int) []string {
	set := make(map[string]bool)
	for _, i := range included {
		for name := range entities[i].Outcomes {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Builder) addCovariates(table *dataset.Table, entities []entity.NamedEntity, included []int) error {
	set := make(map[string]bool)
	for _, i := range included {
		for name := range entities[i].Covariates {
			set[name] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		numeric := true
		labels := make(map[string]bool)
		for _, i := range included {
			switch v := entities[i].Covariates[name].(type) {
			case nil:
			case float64, int, int64:
				_ = v
			case string:
				numeric = false
				labels[v] = true
			default:
				numeric = false
			}
		}

		values := make([]float64, len(included))
		meta := dataset.ColumnMeta{Key: core.ColumnKey(name), Role: dataset.RoleCovariate}

		if numeric {
			meta.Type = dataset.TypeNumeric
			for row, i := range included {
				switch v := entities[i].Covariates[name].(type) {
				case float64:
					values[row] = v
				case int:
					values[row] = float64(v)
				case int64:
					values[row] = float64(v)
				default:
					values[row] = math.NaN()
				}
			}
		} else {
			// Label-encode: codes assigned over the sorted label set so the
			// encoding is deterministic for a fixed entity set
			sorted := make([]string, 0, len(labels))
			for l := range labels {
				sorted = append(sorted, l)
			}
			sort.Strings(sorted)
			codes := make(map[string]float64, len(sorted))
			for code, l := range sorted {
				codes[l] = float64(code)
			}

			meta.Type = dataset.TypeCategorical
			meta.Labels = sorted
			if len(sorted) == 2 {
				meta.Type = dataset.TypeBinary
			}
			for row, i := range included {
				if s, ok := entities[i].Covariates[name].(string); ok {
					values[row] = codes[s]
				} else {
					values[row] = math.NaN()
				}
			}
		}

		if err := table.AddColumn(meta, values); err != nil {
			return err
		}
	}
	return nil
}

// flagOutliers appends a binary flag column per numeric column marking values
// beyond the z-score threshold. Flagging only; removal is always an explicit
// TestSpec option.
func (b *Builder) flagOutliers(table *dataset.Table, report *dataset.BuildReport) error {
	numericCols := make([]dataset.ColumnMeta, 0, len(table.Columns))
	for _, col := range table.Columns {
		if col.Type == dataset.TypeNumeric && col.Role != dataset.RoleOutlierFlag {
			numericCols = append(numericCols, col)
		}
	}

	for _, col := range numericCols {
		vals, _ := table.Column(col.Key)
		present := make([]float64, 0, len(vals))
		for _, v := range vals {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}

		flags := make([]float64, len(vals))
		if len(present) >= 3 {
			mean, _ := stats.Mean(present)
			sd, _ := stats.StandardDeviationSample(present)
			if sd > 0 {
				for i, v := range vals {
					if !math.IsNaN(v) && math.Abs(v-mean)/sd > b.outlierZ {
						flags[i] = 1
						report.OutlierFlags[col.Key]++
					}
				}
			}
		}

		meta := dataset.ColumnMeta{
			Key:  dataset.OutlierFlagKey(col.Key),
			Role: dataset.RoleOutlierFlag,
			Type: dataset.TypeBinary,
		}
		if err := table.AddColumn(meta, flags); err != nil {
			return err
		}
	}
	return nil
}
