package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"phonostat/adapters/battery"
	"phonostat/adapters/featurecache"
	"phonostat/adapters/phonetics"
	"phonostat/domain/core"
	"phonostat/domain/entity"
	"phonostat/domain/result"
	"phonostat/domain/spec"
	"phonostat/internal"
	"phonostat/internal/builder"
	"phonostat/internal/testkit"
	"phonostat/ports"
)

type memorySource struct {
	entities []entity.NamedEntity
}

func (m *memorySource) Fetch(_ context.Context, _ core.DomainKey) ([]entity.NamedEntity, error) {
	return m.entities, nil
}

type memoryResultRepo struct {
	mu      sync.Mutex
	results map[core.Hash]result.TestResult
	gets    int
	hits    int
}

func newMemoryResultRepo() *memoryResultRepo {
	return &memoryResultRepo{results: make(map[core.Hash]result.TestResult)}
}

func (m *memoryResultRepo) Get(_ context.Context, datasetHash core.DatasetHash, specHash core.SpecHash, seed int64) (*result.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	r, ok := m.results[result.CacheKey(datasetHash, specHash, seed)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrResultNotFound, specHash)
	}
	m.hits++
	return &r, nil
}

func (m *memoryResultRepo) Put(_ context.Context, datasetHash core.DatasetHash, r result.TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.CacheKey(datasetHash, r.SpecHash, r.Seed)] = r
	return nil
}

func newService(t *testing.T, source ports.EntitySourcePort, repo ports.ResultRepository) *AnalysisService {
	t.Helper()
	extractor := phonetics.New(phonetics.DefaultWeights())
	cache := featurecache.New()
	b := builder.New(extractor, cache, 3.0, 2)
	bat := battery.New(battery.StandardDefaults())
	logger := internal.NewLogger(internal.LogLevelError)
	return NewAnalysisService(source, b, bat, extractor, cache, repo, logger, 2)
}

func syntheticEntities(t *testing.T, count int) []entity.NamedEntity {
	t.Helper()
	gen := testkit.NewGenerator(testkit.GeneratorConfig{Domain: "synthetic", EntityCount: count, Seed: 42})
	return gen.GenerateLinear("damage", 2.0, 1.5, 1.0)
}

func pearsonOn(target, predictor core.ColumnKey) spec.TestSpec {
	return spec.TestSpec{
		Kind:       spec.TestPearson,
		Domain:     "synthetic",
		Target:     target,
		Predictors: []core.ColumnKey{predictor},
	}
}

func TestRunRecoversPlantedLinearEffect(t *testing.T) {
	svc := newService(t, &memorySource{entities: syntheticEntities(t, 120)}, nil)

	res, err := svc.Run(context.Background(), AnalysisRequest{
		Domain: "synthetic",
		Specs:  []spec.TestSpec{pearsonOn("damage", "char_length")},
		Seed:   7,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.DatasetHash == "" {
		t.Error("expected a dataset fingerprint")
	}
	if got := len(res.Batch.Results); got != 1 {
		t.Fatalf("expected 1 result, got %d", got)
	}
	r := res.Batch.Results[0]
	if !r.Tested() {
		t.Fatalf("expected test to run on 120 rows, warnings: %v", r.Warnings)
	}
	if *r.Statistic < 0.5 {
		t.Errorf("planted slope 1.5 on char_length should give strong r, got %v", *r.Statistic)
	}
	if *r.PValue > 0.001 {
		t.Errorf("expected significant p-value, got %v", *r.PValue)
	}
	if res.Batch.Requested != 1 || res.Batch.Returned != 1 || res.Batch.Skipped != 0 {
		t.Errorf("unexpected batch counts: requested=%d returned=%d skipped=%d",
			res.Batch.Requested, res.Batch.Returned, res.Batch.Skipped)
	}
}

func TestRunFailsWholeRequestOnBadSpec(t *testing.T) {
	svc := newService(t, &memorySource{entities: syntheticEntities(t, 50)}, nil)

	specs := []spec.TestSpec{
		pearsonOn("damage", "char_length"),
		{Kind: "made_up_test", Domain: "synthetic", Target: "damage"},
	}
	_, err := svc.Run(context.Background(), AnalysisRequest{Domain: "synthetic", Specs: specs, Seed: 7})
	if err == nil {
		t.Fatal("expected validation error for unknown test kind")
	}
	if !core.IsConfigError(err) {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestRunRejectsEmptySpecs(t *testing.T) {
	svc := newService(t, &memorySource{entities: syntheticEntities(t, 50)}, nil)
	_, err := svc.Run(context.Background(), AnalysisRequest{Domain: "synthetic", Seed: 7})
	if err == nil {
		t.Fatal("expected error for empty spec list")
	}
}

func TestRunSeedsAreSpecOrderIndependent(t *testing.T) {
	entities := syntheticEntities(t, 80)
	specA := spec.TestSpec{
		Kind:       spec.TestPermutation,
		Domain:     "synthetic",
		Target:     "damage",
		Predictors: []core.ColumnKey{"char_length"},
		Options:    spec.Options{Iterations: 500},
	}
	specB := spec.TestSpec{
		Kind:       spec.TestPermutation,
		Domain:     "synthetic",
		Target:     "damage",
		Predictors: []core.ColumnKey{"harshness_score"},
		Options:    spec.Options{Iterations: 500},
	}

	run := func(specs []spec.TestSpec) map[core.SpecHash]result.TestResult {
		svc := newService(t, &memorySource{entities: entities}, nil)
		res, err := svc.Run(context.Background(), AnalysisRequest{Domain: "synthetic", Specs: specs, Seed: 99})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		byHash := make(map[core.SpecHash]result.TestResult)
		for _, r := range res.Batch.Results {
			byHash[r.SpecHash] = r
		}
		return byHash
	}

	forward := run([]spec.TestSpec{specA, specB})
	reversed := run([]spec.TestSpec{specB, specA})

	for hash, fr := range forward {
		rr, ok := reversed[hash]
		if !ok {
			t.Fatalf("spec %s missing from reversed run", hash)
		}
		if fr.Seed != rr.Seed {
			t.Errorf("spec %s seed changed with ordering: %d vs %d", hash, fr.Seed, rr.Seed)
		}
		if fr.PValue == nil || rr.PValue == nil {
			t.Fatalf("spec %s was not tested in one ordering", hash)
		}
		if *fr.PValue != *rr.PValue {
			t.Errorf("spec %s p-value changed with ordering: %v vs %v", hash, *fr.PValue, *rr.PValue)
		}
	}
}

func TestRunUsesResultRepository(t *testing.T) {
	entities := syntheticEntities(t, 60)
	repo := newMemoryResultRepo()
	specs := []spec.TestSpec{pearsonOn("damage", "char_length")}

	svc := newService(t, &memorySource{entities: entities}, repo)
	first, err := svc.Run(context.Background(), AnalysisRequest{Domain: "synthetic", Specs: specs, Seed: 7})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if repo.hits != 0 {
		t.Fatalf("first run should not hit the cache, got %d hits", repo.hits)
	}
	if len(repo.results) != 1 {
		t.Fatalf("expected 1 stored result, got %d", len(repo.results))
	}

	second, err := svc.Run(context.Background(), AnalysisRequest{Domain: "synthetic", Specs: specs, Seed: 7})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if repo.hits != 1 {
		t.Errorf("second identical run should hit the cache, got %d hits", repo.hits)
	}
	f, s := first.Batch.Results[0], second.Batch.Results[0]
	if *f.Statistic != *s.Statistic || *f.PValue != *s.PValue {
		t.Errorf("cached result diverged: (%v, %v) vs (%v, %v)",
			*f.Statistic, *f.PValue, *s.Statistic, *s.PValue)
	}
}

func TestRunSkipsUnderpoweredSpecInBatch(t *testing.T) {
	svc := newService(t, &memorySource{entities: syntheticEntities(t, 3)}, nil)

	res, err := svc.Run(context.Background(), AnalysisRequest{
		Domain: "synthetic",
		Specs:  []spec.TestSpec{pearsonOn("damage", "char_length")},
		Seed:   7,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	r := res.Batch.Results[0]
	if r.Tested() {
		t.Error("3 rows is under the correlation floor, result should be null")
	}
	if !r.HasWarning(result.WarnInsufficientSample) {
		t.Errorf("expected insufficient_sample warning, got %v", r.Warnings)
	}
	if res.Batch.Skipped != 1 || res.Batch.Returned != 0 {
		t.Errorf("underpowered result must be skipped, not counted: returned=%d skipped=%d",
			res.Batch.Returned, res.Batch.Skipped)
	}
}

func TestMetaAnalyzeThroughService(t *testing.T) {
	svc := newService(t, &memorySource{}, nil)

	rec, err := svc.MetaAnalyze(context.Background(), MetaRequest{
		FeatureName: "harshness_score",
		Effects: []result.DomainEffect{
			{Domain: "hurricanes", EffectSize: 0.10, StdErr: 0.05},
			{Domain: "bands", EffectSize: 0.20, StdErr: 0.05},
			{Domain: "racehorses", EffectSize: 0.40, StdErr: 0.05},
		},
	})
	if err != nil {
		t.Fatalf("MetaAnalyze failed: %v", err)
	}
	if len(rec.PerDomain) != 3 {
		t.Fatalf("expected 3 per-domain effects, got %d", len(rec.PerDomain))
	}
	if rec.PooledSE <= 0 {
		t.Errorf("expected positive pooled SE, got %v", rec.PooledSE)
	}
	if rec.PooledCI.Level != 0.95 {
		t.Errorf("expected default 0.95 CI level, got %v", rec.PooledCI.Level)
	}
}
