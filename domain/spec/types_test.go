package spec

import (
	"testing"

	"phonostat/domain/core"
)

func valid(kind TestKind, predictors ...core.ColumnKey) TestSpec {
	return TestSpec{
		Kind:       kind,
		Domain:     "test",
		Target:     "damage",
		Predictors: predictors,
	}
}

func TestValidateArity(t *testing.T) {
	cases := []struct {
		name string
		spec TestSpec
		ok   bool
	}{
		{"pearson one predictor", valid(TestPearson, "x"), true},
		{"pearson no predictor", valid(TestPearson), false},
		{"pearson two predictors", valid(TestPearson, "x", "y"), false},
		{"ols multiple predictors", valid(TestOLS, "x", "y", "z"), true},
		{"ols no predictor", valid(TestOLS), false},
		{"oneway anova one group column", valid(TestANOVAOneWay, "group"), true},
		{"twoway anova two group columns", valid(TestANOVATwoWay, "a", "b"), true},
		{"twoway anova one group column", valid(TestANOVATwoWay, "a"), false},
		{"bootstrap no predictor", valid(TestBootstrap), true},
		{"bootstrap one predictor", valid(TestBootstrap, "x"), true},
		{"bootstrap two predictors", valid(TestBootstrap, "x", "y"), false},
		{"chi square one predictor", valid(TestChiSquare, "flag"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.spec.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	s := valid("kolmogorov", "x")
	err := s.Validate()
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !core.IsConfigError(err) {
		t.Errorf("unknown kind should classify as a config error, got %v", err)
	}
}

func TestValidateRequiresTargetAndDomain(t *testing.T) {
	s := valid(TestPearson, "x")
	s.Target = " "
	if err := s.Validate(); err == nil {
		t.Error("blank target must fail")
	}

	s = valid(TestPearson, "x")
	s.Domain = ""
	if err := s.Validate(); err == nil {
		t.Error("empty domain must fail")
	}
}

func TestValidatePermutationInnerKind(t *testing.T) {
	s := valid(TestPermutation, "x")
	s.Options.InnerKind = TestSpearman
	if err := s.Validate(); err != nil {
		t.Errorf("spearman inner statistic is allowed, got %v", err)
	}
	s.Options.InnerKind = TestOLS
	if err := s.Validate(); err == nil {
		t.Error("ols is not a valid permutation statistic")
	}
}

func TestHashIgnoresPredictorOrder(t *testing.T) {
	a := valid(TestOLS, "x", "y")
	b := valid(TestOLS, "y", "x")
	if a.Hash() != b.Hash() {
		t.Error("predictor order must not change the spec hash")
	}
}

func TestHashSensitivity(t *testing.T) {
	base := valid(TestPearson, "x")
	same := valid(TestPearson, "x")
	if base.Hash() != same.Hash() {
		t.Fatal("identical specs must hash equal")
	}

	changed := base
	changed.Options.Iterations = 500
	if base.Hash() == changed.Hash() {
		t.Error("options must participate in the hash")
	}

	other := base
	other.Target = "revenue"
	if base.Hash() == other.Hash() {
		t.Error("target must participate in the hash")
	}
}

func TestParseCorrectionMethod(t *testing.T) {
	for _, name := range []string{"bonferroni", "fdr_bh"} {
		if _, err := ParseCorrectionMethod(name); err != nil {
			t.Errorf("%s should parse, got %v", name, err)
		}
	}
	if _, err := ParseCorrectionMethod("holm"); err == nil {
		t.Error("unsupported method must be rejected")
	}
}
