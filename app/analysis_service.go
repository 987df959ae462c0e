package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"phonostat/adapters/correction"
	"phonostat/adapters/meta"
	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/entity"
	"phonostat/domain/feature"
	"phonostat/domain/result"
	"phonostat/domain/spec"
	"phonostat/internal"
	"phonostat/internal/builder"
	"phonostat/ports"
)

// AnalysisService orchestrates one full analysis run: fetch entities, build
// the feature table, fan the test battery out over specs, and correct the
// resulting batch.
type AnalysisService struct {
	source     ports.EntitySourcePort
	builder    *builder.Builder
	battery    ports.BatteryPort
	extractor  ports.ExtractorPort
	cache      ports.FeatureCachePort
	resultRepo ports.ResultRepository
	analyzer   *meta.Analyzer
	logger     *internal.Logger
	workers    int
}

// AnalysisRequest defines one batch run. Seed is the base seed; each spec
// derives its own stream from it, so reordering specs never changes any
// individual result.
type AnalysisRequest struct {
	Domain     core.DomainKey
	Entities   []entity.NamedEntity // used when non-empty, otherwise fetched from the source
	Specs      []spec.TestSpec
	Correction spec.CorrectionMethod
	Alpha      float64
	CILevel    float64
	Seed       int64
}

// AnalysisResult carries the corrected batch plus the build audit trail
type AnalysisResult struct {
	RunID       core.RunID
	DatasetHash core.DatasetHash
	Build       *dataset.BuildReport
	Batch       result.CorrectionBatch
	RuntimeMs   int64
}

// MetaRequest pools one feature's effects across completed per-domain batches
type MetaRequest struct {
	FeatureName string
	Effects     []result.DomainEffect
	CILevel     float64
	Moderators  []string
	Covariates  map[core.DomainKey]map[string]float64
}

// NewAnalysisService creates an analysis service
func NewAnalysisService(
	source ports.EntitySourcePort,
	b *builder.Builder,
	battery ports.BatteryPort,
	extractor ports.ExtractorPort,
	cache ports.FeatureCachePort,
	resultRepo ports.ResultRepository,
	logger *internal.Logger,
	workers int,
) *AnalysisService {
	if workers <= 0 {
		workers = 4
	}
	return &AnalysisService{
		source:     source,
		builder:    b,
		battery:    battery,
		extractor:  extractor,
		cache:      cache,
		resultRepo: resultRepo,
		analyzer:   meta.New(),
		logger:     logger,
		workers:    workers,
	}
}

// Run executes the request. Spec validation is all-or-nothing before any
// computation starts: a malformed spec fails the whole request rather than
// producing a partial batch.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	startTime := time.Now()

	if len(req.Specs) == 0 {
		return nil, core.NewSpecError("specs", "at least one test spec required")
	}
	for i, ts := range req.Specs {
		if err := ts.Validate(); err != nil {
			return nil, fmt.Errorf("spec %d: %w", i, err)
		}
	}
	method := req.Correction
	if method == "" {
		method = spec.CorrectionFDRBH
	}
	if _, err := spec.ParseCorrectionMethod(string(method)); err != nil {
		return nil, err
	}
	alpha := req.Alpha
	if alpha <= 0 {
		alpha = 0.05
	}

	entities := req.Entities
	if len(entities) == 0 {
		fetched, err := s.source.Fetch(ctx, req.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entities for %s: %w", req.Domain, err)
		}
		entities = fetched
	}

	table, buildReport, err := s.builder.Build(ctx, req.Domain, entities)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset for %s: %w", req.Domain, err)
	}
	datasetHash := table.Fingerprint()
	s.logger.Info("dataset built: domain=%s rows=%d excluded=%d",
		req.Domain, buildReport.IncludedRows, buildReport.ExcludedCount())

	// Fan out over specs; results land at their spec's index so batch order
	// is the request order regardless of completion order
	results := make([]result.TestResult, len(req.Specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ts := range req.Specs {
		g.Go(func() error {
			seed := core.DeriveSeed(req.Seed, string(ts.Hash()))
			if cached := s.lookupResult(gctx, datasetHash, ts, seed); cached != nil {
				results[i] = *cached
				return nil
			}
			res, err := s.battery.Run(gctx, ts, table, seed)
			if err != nil {
				return fmt.Errorf("spec %d (%s): %w", i, ts.Kind, err)
			}
			results[i] = res
			s.storeResult(gctx, datasetHash, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch, err := correction.Apply(req.Domain, method, alpha, results)
	if err != nil {
		return nil, fmt.Errorf("failed to apply correction: %w", err)
	}
	s.logger.Info("batch complete: domain=%s requested=%d returned=%d skipped=%d",
		req.Domain, batch.Requested, batch.Returned, batch.Skipped)

	return &AnalysisResult{
		RunID:       core.NewRunID(),
		DatasetHash: datasetHash,
		Build:       buildReport,
		Batch:       batch,
		RuntimeMs:   time.Since(startTime).Milliseconds(),
	}, nil
}

// MetaAnalyze pools per-domain effects and optionally fits the moderator model
func (s *AnalysisService) MetaAnalyze(ctx context.Context, req MetaRequest) (*result.MetaAnalysisRecord, error) {
	ciLevel := req.CILevel
	if ciLevel <= 0 {
		ciLevel = 0.95
	}
	rec, err := s.analyzer.Pool(req.FeatureName, req.Effects, ciLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to pool %s: %w", req.FeatureName, err)
	}
	if len(req.Moderators) > 0 {
		if err := s.analyzer.Moderate(&rec, req.Moderators, req.Covariates); err != nil {
			return nil, fmt.Errorf("failed to fit moderator model for %s: %w", req.FeatureName, err)
		}
	}
	return &rec, nil
}

// Extract resolves one name's feature vector through the compute-once cache
func (s *AnalysisService) Extract(rawName string) feature.Vector {
	return s.cache.GetOrCompute(rawName, s.extractor)
}

// ExtractorVersion reports the active algorithm + weights version
func (s *AnalysisService) ExtractorVersion() feature.Version {
	return s.extractor.Version()
}

// lookupResult is a best-effort read from the result store; persistence is an
// optimization, so failures log and fall through to recomputation.
func (s *AnalysisService) lookupResult(ctx context.Context, datasetHash core.DatasetHash, ts spec.TestSpec, seed int64) *result.TestResult {
	if s.resultRepo == nil {
		return nil
	}
	cached, err := s.resultRepo.Get(ctx, datasetHash, ts.Hash(), seed)
	if err != nil {
		if !core.IsNotFoundError(err) {
			s.logger.Warn("result lookup failed: %v", err)
		}
		return nil
	}
	return cached
}

func (s *AnalysisService) storeResult(ctx context.Context, datasetHash core.DatasetHash, res result.TestResult) {
	if s.resultRepo == nil {
		return
	}
	if err := s.resultRepo.Put(ctx, datasetHash, res); err != nil {
		s.logger.Warn("result store failed: %v", err)
	}
}
