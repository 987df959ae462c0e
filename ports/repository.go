package ports

import (
	"context"

	"phonostat/domain/core"
	"phonostat/domain/feature"
	"phonostat/domain/result"
)

// FeatureRepository persists feature vectors keyed by (raw_name, version).
// Everything stored is pure and reproducible, so implementations are free to
// evict at will.
type FeatureRepository interface {
	Get(ctx context.Context, rawName string, version feature.Version) (*feature.Vector, error)
	Put(ctx context.Context, v feature.Vector) error
	DeleteVersion(ctx context.Context, version feature.Version) (int64, error)
}

// ResultRepository persists test results keyed by (dataset_hash, spec_hash, seed)
type ResultRepository interface {
	Get(ctx context.Context, datasetHash core.DatasetHash, specHash core.SpecHash, seed int64) (*result.TestResult, error)
	Put(ctx context.Context, datasetHash core.DatasetHash, r result.TestResult) error
}
