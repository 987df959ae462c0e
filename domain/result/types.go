package result

import (
	"strconv"

	"phonostat/domain/core"
	"phonostat/domain/spec"
)

// WarningCode represents structured warning types attached to results.
// Warnings are data, not errors: an underpowered or numerically unstable test
// still yields a result record so batches stay complete.
type WarningCode string

const (
	WarnInsufficientSample WarningCode = "insufficient_sample"
	WarnInSampleOnly       WarningCode = "in_sample_only"
	WarnSingularMatrix     WarningCode = "singular_matrix"
	WarnPerfectSeparation  WarningCode = "perfect_separation"
	WarnZeroVariance       WarningCode = "zero_variance"
	WarnNoConvergence      WarningCode = "no_convergence"
	WarnCancelled          WarningCode = "cancelled"
	WarnLowPower           WarningCode = "low_power"
	WarnDegenerateGroups   WarningCode = "degenerate_groups"
)

// Interval is a confidence interval at a given level
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"level"`
}

// Coefficient is one fitted model term
type Coefficient struct {
	Name     string   `json:"name"`
	Estimate float64  `json:"estimate"`
	StdErr   float64  `json:"std_err"`
	PValue   *float64 `json:"p_value"`
}

// TestResult is the immutable outcome of executing one TestSpec. Statistic and
// PValue are nil when the test did not run (e.g. below the minimum-n floor);
// nil means "not tested", which callers must keep distinct from "tested, not
// significant".
type TestResult struct {
	Kind           spec.TestKind      `json:"test_kind"`
	Domain         core.DomainKey     `json:"domain"`
	Target         core.ColumnKey     `json:"target_column"`
	Predictors     []core.ColumnKey   `json:"predictor_columns,omitempty"`
	Statistic      *float64           `json:"statistic"`
	PValue         *float64           `json:"p_value"`
	EffectSize     *float64           `json:"effect_size"`
	EffectSizeKind string             `json:"effect_size_kind,omitempty"` // "r", "d", "eta_squared", "phi", ...
	CI             *Interval          `json:"confidence_interval,omitempty"`
	N              int                `json:"n"`
	Coefficients   []Coefficient      `json:"coefficients,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"` // CV scores, F components, iteration counts
	Warnings       []WarningCode      `json:"warnings,omitempty"`
	Seed           int64              `json:"seed"`
	SpecHash       core.SpecHash      `json:"spec_hash"`
	ComputedAt     core.Timestamp     `json:"computed_at"`
}

// New creates a result shell for a spec execution
func New(s spec.TestSpec, seed int64) TestResult {
	return TestResult{
		Kind:       s.Kind,
		Domain:     s.Domain,
		Target:     s.Target,
		Predictors: s.Predictors,
		Seed:       seed,
		SpecHash:   s.Hash(),
		ComputedAt: core.Now(),
	}
}

// Float returns a pointer to a float value, for populating nullable fields
func Float(v float64) *float64 {
	return &v
}

// AddWarning appends a warning code, deduplicating
func (r *TestResult) AddWarning(code WarningCode) {
	for _, w := range r.Warnings {
		if w == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}

// HasWarning reports whether a warning code is present
func (r *TestResult) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w == code {
			return true
		}
	}
	return false
}

// Tested reports whether the procedure actually ran (null statistic means it
// was skipped, e.g. under the minimum-n floor)
func (r *TestResult) Tested() bool {
	return r.Statistic != nil && r.PValue != nil
}

// SetMetric records an auxiliary named metric
func (r *TestResult) SetMetric(name string, v float64) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]float64)
	}
	r.Metrics[name] = v
}

// CacheKey identifies this result for the persistence boundary: everything is
// pure given (dataset, spec, seed), so storage may evict and recompute freely.
func CacheKey(datasetHash core.DatasetHash, specHash core.SpecHash, seed int64) core.Hash {
	return core.HashOf("result", string(datasetHash), string(specHash), strconv.FormatInt(seed, 10))
}

// CorrectionBatch aggregates the results of one logical batch (all tests run
// for one domain in one analysis session) with adjusted p-values. The batch
// boundary is explicit in the request; correction is never applied across
// unrelated historical runs.
type CorrectionBatch struct {
	BatchID   core.BatchID          `json:"batch_id"`
	Domain    core.DomainKey        `json:"domain"`
	Method    spec.CorrectionMethod `json:"correction_method"`
	Alpha     float64               `json:"alpha"`
	Results   []TestResult          `json:"results"`
	AdjustedP []*float64            `json:"adjusted_p_values"` // parallel to Results, nil where untested
	Survives  []bool                `json:"survives"`          // parallel to Results
	Requested int                   `json:"requested"`
	Returned  int                   `json:"returned"`
	Skipped   int                   `json:"skipped"`
	CreatedAt core.Timestamp        `json:"created_at"`
}

// DomainEffect is one domain's contribution to a meta-analysis
type DomainEffect struct {
	Domain     core.DomainKey `json:"domain"`
	EffectSize float64        `json:"effect_size"`
	StdErr     float64        `json:"se"`
}

// ModeratorModel is the second-order regression predicting per-domain effect
// sizes from domain covariates. n here is the number of domains, so power is
// intrinsically low and must be surfaced, not suppressed.
type ModeratorModel struct {
	RSquared     float64       `json:"r_squared"`
	Coefficients []Coefficient `json:"coefficients"`
	NDomains     int           `json:"n_domains"`
	Warnings     []WarningCode `json:"warnings,omitempty"`
}

// MetaAnalysisRecord pools a common feature's effect sizes across domains
type MetaAnalysisRecord struct {
	FeatureName  string          `json:"feature_name"`
	PerDomain    []DomainEffect  `json:"per_domain_effect_sizes"`
	PooledEffect float64         `json:"pooled_effect"`
	PooledSE     float64         `json:"pooled_se"`
	PooledCI     Interval        `json:"pooled_ci"`
	ISquared     float64         `json:"i_squared"`
	QStatistic   float64         `json:"q_statistic"`
	QPValue      float64         `json:"q_p_value"`
	Moderator    *ModeratorModel `json:"moderator_model,omitempty"`
	Warnings     []WarningCode   `json:"warnings,omitempty"`
	CreatedAt    core.Timestamp  `json:"created_at"`
}
