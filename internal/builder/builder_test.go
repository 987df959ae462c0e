package builder

import (
	"context"
	"math"
	"testing"

	"phonostat/adapters/featurecache"
	"phonostat/adapters/phonetics"
	"phonostat/domain/core"
	"phonostat/domain/dataset"
	"phonostat/domain/entity"
	"phonostat/domain/feature"
	"phonostat/internal/testkit"
)

func newBuilder() *Builder {
	extractor := phonetics.New(phonetics.DefaultWeights())
	return New(extractor, featurecache.New(), 3.0, 2)
}

func mustEntity(t *testing.T, id, name string, outcomes map[string]*float64, covariates map[string]interface{}) entity.NamedEntity {
	t.Helper()
	e, err := entity.New(core.EntityID(id), name, "test", outcomes, covariates)
	if err != nil {
		t.Fatalf("entity.New(%q) failed: %v", name, err)
	}
	return e
}

func f(v float64) *float64 { return &v }

func TestBuildExcludesDegenerateAndDuplicate(t *testing.T) {
	entities := []entity.NamedEntity{
		mustEntity(t, "e1", "Katrina", map[string]*float64{"damage": f(10)}, nil),
		mustEntity(t, "e2", "123", map[string]*float64{"damage": f(20)}, nil),
		mustEntity(t, "e1", "Tempest", map[string]*float64{"damage": f(30)}, nil),
	}

	table, report, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if report.TotalEntities != 3 || report.IncludedRows != 1 {
		t.Errorf("expected 3 total, 1 included; got %d/%d", report.TotalEntities, report.IncludedRows)
	}
	if report.Exclusions[dataset.ExclusionDegenerateName] != 1 {
		t.Errorf("expected 1 degenerate exclusion, got %v", report.Exclusions)
	}
	if report.Exclusions[dataset.ExclusionDuplicateID] != 1 {
		t.Errorf("expected 1 duplicate exclusion, got %v", report.Exclusions)
	}
	if table.RowCount() != 1 {
		t.Errorf("expected 1 row, got %d", table.RowCount())
	}
}

func TestBuildFeatureColumnsCanonicalOrder(t *testing.T) {
	entities := []entity.NamedEntity{
		mustEntity(t, "e1", "Katrina", nil, nil),
	}
	table, _, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	want := feature.Columns()
	for i, key := range want {
		if table.Columns[i].Key != key {
			t.Fatalf("column %d: expected %s, got %s", i, key, table.Columns[i].Key)
		}
		if table.Columns[i].Role != dataset.RoleFeature {
			t.Errorf("column %s should be a feature column", key)
		}
	}
}

func TestBuildMissingOutcomeIsNaN(t *testing.T) {
	entities := []entity.NamedEntity{
		mustEntity(t, "e1", "Katrina", map[string]*float64{"damage": f(10)}, nil),
		mustEntity(t, "e2", "Tempest", map[string]*float64{"damage": nil}, nil),
		mustEntity(t, "e3", "Zephyr", map[string]*float64{"deaths": f(2)}, nil),
	}
	table, report, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	damage, ok := table.Column("damage")
	if !ok {
		t.Fatal("expected damage column")
	}
	if !math.IsNaN(damage[1]) || !math.IsNaN(damage[2]) {
		t.Errorf("missing outcomes must be NaN, got %v", damage)
	}
	if report.CandidateN["damage"] != 1 {
		t.Errorf("expected candidate n=1 for damage, got %d", report.CandidateN["damage"])
	}
	if report.CandidateN["deaths"] != 1 {
		t.Errorf("expected candidate n=1 for deaths, got %d", report.CandidateN["deaths"])
	}
}

func TestBuildCategoricalCovariateDeterministicEncoding(t *testing.T) {
	build := func(order []string) *dataset.Table {
		entities := make([]entity.NamedEntity, len(order))
		for i, label := range order {
			entities[i] = mustEntity(t, string(rune('a'+i)), "Name"+label,
				nil, map[string]interface{}{"region": label})
		}
		table, _, err := newBuilder().Build(context.Background(), "test", entities)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		return table
	}

	first := build([]string{"west", "east", "north"})
	meta, ok := first.Meta("region")
	if !ok {
		t.Fatal("expected region column")
	}
	if meta.Type != dataset.TypeCategorical {
		t.Errorf("three labels should be categorical, got %s", meta.Type)
	}
	// Labels sorted, codes follow the sorted order
	if len(meta.Labels) != 3 || meta.Labels[0] != "east" || meta.Labels[2] != "west" {
		t.Errorf("expected sorted labels [east north west], got %v", meta.Labels)
	}

	vals, _ := first.Column("region")
	// west=2, east=0, north=1 per sorted encoding
	want := []float64{2, 0, 1}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("row %d: expected code %v, got %v", i, want[i], vals[i])
		}
	}
}

func TestBuildBinaryCovariate(t *testing.T) {
	entities := []entity.NamedEntity{
		mustEntity(t, "e1", "Katrina", nil, map[string]interface{}{"listed": "yes"}),
		mustEntity(t, "e2", "Tempest", nil, map[string]interface{}{"listed": "no"}),
	}
	table, _, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	meta, _ := table.Meta("listed")
	if meta.Type != dataset.TypeBinary {
		t.Errorf("two labels should be binary, got %s", meta.Type)
	}
}

func TestBuildFlagsOutliersWithoutRemoving(t *testing.T) {
	gen := testkit.NewGenerator(testkit.GeneratorConfig{Domain: "test", EntityCount: 60, Seed: 1})
	entities := gen.GenerateLinear("damage", 0, 0, 1)
	// Plant one absurd value
	spike := 1e6
	entities[0].Outcomes["damage"] = &spike

	table, report, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	flagKey := dataset.OutlierFlagKey("damage")
	flags, ok := table.Column(flagKey)
	if !ok {
		t.Fatalf("expected %s column", flagKey)
	}
	if flags[0] != 1 {
		t.Error("planted spike must be flagged")
	}
	if report.OutlierFlags["damage"] < 1 {
		t.Errorf("expected outlier count >= 1, got %d", report.OutlierFlags["damage"])
	}
	// The row itself survives; flagging never removes
	if table.RowCount() != 60 {
		t.Errorf("expected all 60 rows kept, got %d", table.RowCount())
	}
}

func TestBuildDeterministicFingerprint(t *testing.T) {
	gen := testkit.NewGenerator(testkit.GeneratorConfig{Domain: "test", EntityCount: 25, Seed: 9})
	entities := gen.GenerateLinear("damage", 1, 2, 0.5)

	first, _, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, _, err := newBuilder().Build(context.Background(), "test", entities)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Error("same entities must build a byte-identical table fingerprint")
	}
}
