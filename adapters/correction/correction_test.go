package correction

import (
	"math"
	"testing"

	"phonostat/domain/result"
	"phonostat/domain/spec"
)

func testedResults(ps []float64) []result.TestResult {
	out := make([]result.TestResult, len(ps))
	for i, p := range ps {
		out[i] = result.TestResult{
			Kind:      spec.TestPearson,
			Statistic: result.Float(1.0),
			PValue:    result.Float(p),
		}
	}
	return out
}

func TestBenjaminiHochbergScenario(t *testing.T) {
	ps := []float64{0.001, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.3, 0.5, 0.9}
	batch, err := Apply("test", spec.CorrectionFDRBH, 0.05, testedResults(ps))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// BH critical values are (rank/10)*0.05: 0.005, 0.010, 0.015, ... The
	// largest rank with p <= critical is rank 2 (0.01 <= 0.010, inclusive),
	// so exactly ranks 1-2 survive.
	wantSurvives := []bool{true, true, false, false, false, false, false, false, false, false}
	for i, want := range wantSurvives {
		if batch.Survives[i] != want {
			t.Errorf("survives[%d] (p=%.3f): expected %v, got %v", i, ps[i], want, batch.Survives[i])
		}
	}

	// Hand-computed step-up adjusted values with monotonicity:
	// 0.001*10/1 = 0.01, 0.01*10/2 = 0.05, 0.02*10/3 = 0.0666...
	wantAdjusted := []float64{0.01, 0.05, 0.2 / 3.0}
	for i, want := range wantAdjusted {
		if math.Abs(*batch.AdjustedP[i]-want) > 1e-12 {
			t.Errorf("adjusted[%d]: expected %.6f, got %.6f", i, want, *batch.AdjustedP[i])
		}
	}

	// Adjusted values must be monotone in the raw ordering here (input
	// already sorted ascending)
	for i := 1; i < len(ps); i++ {
		if *batch.AdjustedP[i] < *batch.AdjustedP[i-1]-1e-12 {
			t.Errorf("adjusted p not monotone at %d: %.6f < %.6f",
				i, *batch.AdjustedP[i], *batch.AdjustedP[i-1])
		}
	}
}

func TestSurvivalBoundaryInclusive(t *testing.T) {
	// Rank 2's critical value is (2/10)*0.05 = 0.01, equal to its raw p, so
	// its adjusted p lands on alpha exactly and must still survive
	ps := []float64{0.001, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.3, 0.5, 0.9}
	batch, err := Apply("test", spec.CorrectionFDRBH, 0.05, testedResults(ps))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if math.Abs(*batch.AdjustedP[1]-0.05) > 1e-12 {
		t.Fatalf("expected adjusted p exactly 0.05, got %.12f", *batch.AdjustedP[1])
	}
	if !batch.Survives[1] {
		t.Error("adjusted p equal to alpha must survive")
	}

	// Same boundary for Bonferroni: 0.025 * 2 = 0.05
	batch, err = Apply("test", spec.CorrectionBonferroni, 0.05, testedResults([]float64{0.025, 0.9}))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !batch.Survives[0] {
		t.Error("bonferroni-adjusted p equal to alpha must survive")
	}
}

func TestBonferroni(t *testing.T) {
	ps := []float64{0.001, 0.02, 0.9}
	batch, err := Apply("test", spec.CorrectionBonferroni, 0.05, testedResults(ps))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []float64{0.003, 0.06, 1.0}
	for i := range want {
		if math.Abs(*batch.AdjustedP[i]-want[i]) > 1e-12 {
			t.Errorf("adjusted[%d]: expected %.4f, got %.4f", i, want[i], *batch.AdjustedP[i])
		}
	}
	if !batch.Survives[0] || batch.Survives[1] || batch.Survives[2] {
		t.Errorf("unexpected survival pattern: %v", batch.Survives)
	}
}

func TestUntestedResultsSkippedNotCounted(t *testing.T) {
	results := testedResults([]float64{0.004, 0.004})
	// Two untested results: nulls from a below-floor test
	results = append(results, result.TestResult{Kind: spec.TestPearson,
		Warnings: []result.WarningCode{result.WarnInsufficientSample}})
	results = append(results, result.TestResult{Kind: spec.TestSpearman,
		Warnings: []result.WarningCode{result.WarnZeroVariance}})

	batch, err := Apply("test", spec.CorrectionBonferroni, 0.05, results)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if batch.Requested != 4 || batch.Returned != 2 || batch.Skipped != 2 {
		t.Errorf("expected requested=4 returned=2 skipped=2, got %d/%d/%d",
			batch.Requested, batch.Returned, batch.Skipped)
	}
	// Family size is 2, not 4: 0.004 * 2 = 0.008
	if math.Abs(*batch.AdjustedP[0]-0.008) > 1e-12 {
		t.Errorf("untested results must not inflate the family: got %.4f", *batch.AdjustedP[0])
	}
	if batch.AdjustedP[2] != nil || batch.AdjustedP[3] != nil {
		t.Error("untested results must carry nil adjusted p")
	}
	if batch.Survives[2] || batch.Survives[3] {
		t.Error("untested results must not survive")
	}
}

func TestCorrectionIdempotent(t *testing.T) {
	ps := []float64{0.001, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06, 0.3, 0.5, 0.9}
	first, err := Apply("test", spec.CorrectionFDRBH, 0.05, testedResults(ps))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	second, err := Apply("test", spec.CorrectionFDRBH, 0.05, testedResults(ps))
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	for i := range ps {
		if *first.AdjustedP[i] != *second.AdjustedP[i] {
			t.Errorf("adjustment must be a pure function of inputs at %d: %.6f vs %.6f",
				i, *first.AdjustedP[i], *second.AdjustedP[i])
		}
		if first.Survives[i] != second.Survives[i] {
			t.Errorf("survival must be reproducible at %d", i)
		}
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	_, err := Apply("test", "holm", 0.05, testedResults([]float64{0.01}))
	if err == nil {
		t.Fatal("expected error for unknown correction method")
	}
}

func TestEmptyBatch(t *testing.T) {
	batch, err := Apply("test", spec.CorrectionFDRBH, 0.05, nil)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if batch.Requested != 0 || batch.Returned != 0 || batch.Skipped != 0 {
		t.Errorf("expected empty counters, got %d/%d/%d", batch.Requested, batch.Returned, batch.Skipped)
	}
}
