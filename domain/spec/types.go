package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"phonostat/domain/core"
)

// TestKind defines the statistical procedure requested
type TestKind string

const (
	TestPearson     TestKind = "pearson"
	TestSpearman    TestKind = "spearman"
	TestOLS         TestKind = "ols_regression"
	TestLogistic    TestKind = "logistic_regression"
	TestANOVAOneWay TestKind = "anova_oneway"
	TestANOVATwoWay TestKind = "anova_twoway"
	TestPermutation TestKind = "permutation"
	TestBootstrap   TestKind = "bootstrap"
	TestWelchTTest  TestKind = "welch_ttest"
	TestChiSquare   TestKind = "chi_square"
)

// KnownKinds lists every supported test kind
func KnownKinds() []TestKind {
	return []TestKind{
		TestPearson, TestSpearman, TestOLS, TestLogistic,
		TestANOVAOneWay, TestANOVATwoWay, TestPermutation,
		TestBootstrap, TestWelchTTest, TestChiSquare,
	}
}

// CorrectionMethod defines the multiple-comparisons correction applied to a batch
type CorrectionMethod string

const (
	CorrectionBonferroni CorrectionMethod = "bonferroni"
	CorrectionFDRBH      CorrectionMethod = "fdr_bh"
)

// ParseCorrectionMethod validates a correction method name
func ParseCorrectionMethod(s string) (CorrectionMethod, error) {
	switch CorrectionMethod(s) {
	case CorrectionBonferroni, CorrectionFDRBH:
		return CorrectionMethod(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownCorrection, s)
}

// Options carries per-test tuning. Zero values mean "use engine defaults";
// defaults come from configuration, not from code scattered across tests.
type Options struct {
	MinSample           int      `json:"min_sample,omitempty"`
	MinGroupSize        int      `json:"min_group_size,omitempty"`
	Iterations          int      `json:"iterations,omitempty"` // permutation shuffles / bootstrap resamples
	Folds               int      `json:"folds,omitempty"`      // k for cross-validation
	Alpha               float64  `json:"alpha,omitempty"`
	CILevel             float64  `json:"ci_level,omitempty"`
	DropFlaggedOutliers bool     `json:"drop_flagged_outliers,omitempty"`
	InnerKind           TestKind `json:"inner_kind,omitempty"` // statistic recomputed inside permutation/bootstrap
}

// TestSpec declaratively describes one statistical test. A spec has no state:
// given a fixed dataset and seed its execution replays exactly.
type TestSpec struct {
	Kind       TestKind         `json:"test_kind"`
	Domain     core.DomainKey   `json:"domain"`
	Target     core.ColumnKey   `json:"target_column"`
	Predictors []core.ColumnKey `json:"predictor_columns,omitempty"`
	Controls   []core.ColumnKey `json:"control_columns,omitempty"`
	Options    Options          `json:"options,omitempty"`
}

// Validate fails fast on programmer/config errors before any computation
// starts. Data conditions (small n, zero variance) are not errors and are
// handled by the battery as warnings.
func (s TestSpec) Validate() error {
	known := false
	for _, k := range KnownKinds() {
		if s.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", core.ErrUnknownTestKind, s.Kind)
	}
	if strings.TrimSpace(string(s.Target)) == "" {
		return core.NewSpecError("target_column", "must be set")
	}
	if strings.TrimSpace(string(s.Domain)) == "" {
		return core.NewSpecError("domain", "must be set")
	}

	switch s.Kind {
	case TestPearson, TestSpearman, TestWelchTTest, TestChiSquare:
		if len(s.Predictors) != 1 {
			return core.NewSpecError("predictor_columns",
				fmt.Sprintf("%s requires exactly one predictor, got %d", s.Kind, len(s.Predictors)))
		}
	case TestOLS, TestLogistic:
		if len(s.Predictors) == 0 {
			return core.NewSpecError("predictor_columns",
				fmt.Sprintf("%s requires at least one predictor", s.Kind))
		}
	case TestANOVAOneWay:
		if len(s.Predictors) != 1 {
			return core.NewSpecError("predictor_columns", "one-way ANOVA requires exactly one grouping column")
		}
	case TestANOVATwoWay:
		if len(s.Predictors) != 2 {
			return core.NewSpecError("predictor_columns", "two-way ANOVA requires exactly two grouping columns")
		}
	case TestPermutation:
		if len(s.Predictors) != 1 {
			return core.NewSpecError("predictor_columns", "permutation test requires exactly one predictor")
		}
		if s.Options.InnerKind != "" && s.Options.InnerKind != TestPearson && s.Options.InnerKind != TestSpearman {
			return core.NewSpecError("inner_kind", "permutation statistic must be pearson or spearman")
		}
	case TestBootstrap:
		if len(s.Predictors) > 1 {
			return core.NewSpecError("predictor_columns", "bootstrap accepts at most one predictor")
		}
	}

	if s.Options.Alpha < 0 || s.Options.Alpha >= 1 {
		return core.NewSpecError("alpha", "must be in [0, 1)")
	}
	if s.Options.CILevel < 0 || s.Options.CILevel >= 1 {
		return core.NewSpecError("ci_level", "must be in [0, 1)")
	}
	if s.Options.Iterations < 0 || s.Options.Folds < 0 {
		return core.NewSpecError("options", "iterations and folds must be non-negative")
	}
	return nil
}

// Hash computes a deterministic spec hash. Combined with a dataset hash and a
// seed it identifies a cached TestResult.
func (s TestSpec) Hash() core.SpecHash {
	var b strings.Builder
	b.WriteString(string(s.Kind))
	b.WriteString("|")
	b.WriteString(string(s.Domain))
	b.WriteString("|")
	b.WriteString(string(s.Target))

	write := func(keys []core.ColumnKey) {
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = string(k)
		}
		sort.Strings(parts)
		b.WriteString("|")
		b.WriteString(strings.Join(parts, ","))
	}
	write(s.Predictors)
	write(s.Controls)

	b.WriteString("|")
	b.WriteString(strconv.Itoa(s.Options.MinSample))
	b.WriteString(",")
	b.WriteString(strconv.Itoa(s.Options.MinGroupSize))
	b.WriteString(",")
	b.WriteString(strconv.Itoa(s.Options.Iterations))
	b.WriteString(",")
	b.WriteString(strconv.Itoa(s.Options.Folds))
	b.WriteString(",")
	b.WriteString(strconv.FormatFloat(s.Options.Alpha, 'g', 17, 64))
	b.WriteString(",")
	b.WriteString(strconv.FormatFloat(s.Options.CILevel, 'g', 17, 64))
	b.WriteString(",")
	b.WriteString(strconv.FormatBool(s.Options.DropFlaggedOutliers))
	b.WriteString(",")
	b.WriteString(string(s.Options.InnerKind))

	return core.NewSpecHash([]byte(b.String()))
}
