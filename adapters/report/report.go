// Package report serializes analysis output. Numeric values round to six
// significant digits on the wire; null statistics and p-values serialize as
// JSON null so consumers can tell "not tested" from "tested, not significant".
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"phonostat/domain/dataset"
	"phonostat/domain/result"
)

// Number is a float64 that marshals with six significant digits
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', 6, 64)), nil
}

func num(v float64) Number { return Number(v) }

func numPtr(v *float64) *Number {
	if v == nil {
		return nil
	}
	n := Number(*v)
	return &n
}

// Interval mirrors result.Interval with wire-rounded bounds
type Interval struct {
	Lower Number  `json:"lower"`
	Upper Number  `json:"upper"`
	Level float64 `json:"level"`
}

type Coefficient struct {
	Name     string  `json:"name"`
	Estimate Number  `json:"estimate"`
	StdErr   Number  `json:"std_err"`
	PValue   *Number `json:"p_value"`
}

// TestResult is the wire form of one executed test. AdjustedP and Survives
// are present only when the result came through a correction batch.
type TestResult struct {
	Kind           string               `json:"test_kind"`
	Domain         string               `json:"domain"`
	Target         string               `json:"target_column"`
	Predictors     []string             `json:"predictor_columns,omitempty"`
	Statistic      *Number              `json:"statistic"`
	PValue         *Number              `json:"p_value"`
	AdjustedP      *Number              `json:"adjusted_p_value,omitempty"`
	Survives       *bool                `json:"survives_correction,omitempty"`
	EffectSize     *Number              `json:"effect_size"`
	EffectSizeKind string               `json:"effect_size_kind,omitempty"`
	CI             *Interval            `json:"confidence_interval,omitempty"`
	N              int                  `json:"n"`
	Coefficients   []Coefficient        `json:"coefficients,omitempty"`
	Metrics        map[string]Number    `json:"metrics,omitempty"`
	Warnings       []result.WarningCode `json:"warnings"`
	Seed           int64                `json:"seed"`
	SpecHash       string               `json:"spec_hash"`
	ComputedAt     string               `json:"computed_at"`
}

type BatchReport struct {
	BatchID   string       `json:"batch_id"`
	Domain    string       `json:"domain"`
	Method    string       `json:"correction_method"`
	Alpha     float64      `json:"alpha"`
	Requested int          `json:"requested"`
	Returned  int          `json:"returned"`
	Skipped   int          `json:"skipped"`
	Results   []TestResult `json:"results"`
	CreatedAt string       `json:"created_at"`
}

type DomainEffect struct {
	Domain     string `json:"domain"`
	EffectSize Number `json:"effect_size"`
	StdErr     Number `json:"se"`
}

type ModeratorModel struct {
	RSquared     Number               `json:"r_squared"`
	Coefficients []Coefficient        `json:"coefficients"`
	NDomains     int                  `json:"n_domains"`
	Warnings     []result.WarningCode `json:"warnings,omitempty"`
}

type MetaReport struct {
	FeatureName  string               `json:"feature_name"`
	PerDomain    []DomainEffect       `json:"per_domain_effect_sizes"`
	PooledEffect Number               `json:"pooled_effect"`
	PooledSE     Number               `json:"pooled_se"`
	PooledCI     Interval             `json:"pooled_ci"`
	ISquared     Number               `json:"i_squared"`
	QStatistic   Number               `json:"q_statistic"`
	QPValue      Number               `json:"q_p_value"`
	Moderator    *ModeratorModel      `json:"moderator_model,omitempty"`
	Warnings     []result.WarningCode `json:"warnings,omitempty"`
	CreatedAt    string               `json:"created_at"`
}

type BuildSummary struct {
	TotalEntities int            `json:"total_entities"`
	IncludedRows  int            `json:"included_rows"`
	Exclusions    map[string]int `json:"exclusions,omitempty"`
	ExcludedIDs   []string       `json:"excluded_entity_ids,omitempty"`
}

// Document is the full output of one analysis run
type Document struct {
	RunID   string        `json:"run_id"`
	Build   *BuildSummary `json:"build_summary,omitempty"`
	Batches []BatchReport `json:"batches"`
	Meta    []MetaReport  `json:"meta_analyses,omitempty"`
}

// FromResult converts a single test result to wire form
func FromResult(r result.TestResult) TestResult {
	out := TestResult{
		Kind:           string(r.Kind),
		Domain:         string(r.Domain),
		Target:         string(r.Target),
		Statistic:      numPtr(r.Statistic),
		PValue:         numPtr(r.PValue),
		EffectSize:     numPtr(r.EffectSize),
		EffectSizeKind: r.EffectSizeKind,
		N:              r.N,
		Warnings:       r.Warnings,
		Seed:           r.Seed,
		SpecHash:       string(r.SpecHash),
		ComputedAt:     r.ComputedAt.String(),
	}
	if out.Warnings == nil {
		out.Warnings = []result.WarningCode{}
	}
	for _, p := range r.Predictors {
		out.Predictors = append(out.Predictors, string(p))
	}
	if r.CI != nil {
		out.CI = &Interval{Lower: num(r.CI.Lower), Upper: num(r.CI.Upper), Level: r.CI.Level}
	}
	for _, c := range r.Coefficients {
		out.Coefficients = append(out.Coefficients, Coefficient{
			Name:     c.Name,
			Estimate: num(c.Estimate),
			StdErr:   num(c.StdErr),
			PValue:   numPtr(c.PValue),
		})
	}
	if len(r.Metrics) > 0 {
		out.Metrics = make(map[string]Number, len(r.Metrics))
		for k, v := range r.Metrics {
			out.Metrics[k] = num(v)
		}
	}
	return out
}

// FromBatch converts a correction batch, attaching adjusted p-values and
// survival flags to each result
func FromBatch(b result.CorrectionBatch) BatchReport {
	out := BatchReport{
		BatchID:   b.BatchID.String(),
		Domain:    string(b.Domain),
		Method:    string(b.Method),
		Alpha:     b.Alpha,
		Requested: b.Requested,
		Returned:  b.Returned,
		Skipped:   b.Skipped,
		Results:   make([]TestResult, 0, len(b.Results)),
		CreatedAt: b.CreatedAt.String(),
	}
	for i, r := range b.Results {
		wr := FromResult(r)
		if i < len(b.AdjustedP) {
			wr.AdjustedP = numPtr(b.AdjustedP[i])
		}
		if i < len(b.Survives) && b.AdjustedP[i] != nil {
			s := b.Survives[i]
			wr.Survives = &s
		}
		out.Results = append(out.Results, wr)
	}
	return out
}

// FromMeta converts a meta-analysis record to wire form
func FromMeta(m result.MetaAnalysisRecord) MetaReport {
	out := MetaReport{
		FeatureName:  m.FeatureName,
		PooledEffect: num(m.PooledEffect),
		PooledSE:     num(m.PooledSE),
		PooledCI:     Interval{Lower: num(m.PooledCI.Lower), Upper: num(m.PooledCI.Upper), Level: m.PooledCI.Level},
		ISquared:     num(m.ISquared),
		QStatistic:   num(m.QStatistic),
		QPValue:      num(m.QPValue),
		Warnings:     m.Warnings,
		CreatedAt:    m.CreatedAt.String(),
	}
	for _, e := range m.PerDomain {
		out.PerDomain = append(out.PerDomain, DomainEffect{
			Domain:     string(e.Domain),
			EffectSize: num(e.EffectSize),
			StdErr:     num(e.StdErr),
		})
	}
	if m.Moderator != nil {
		mm := &ModeratorModel{
			RSquared: num(m.Moderator.RSquared),
			NDomains: m.Moderator.NDomains,
			Warnings: m.Moderator.Warnings,
		}
		for _, c := range m.Moderator.Coefficients {
			mm.Coefficients = append(mm.Coefficients, Coefficient{
				Name:     c.Name,
				Estimate: num(c.Estimate),
				StdErr:   num(c.StdErr),
				PValue:   numPtr(c.PValue),
			})
		}
		out.Moderator = mm
	}
	return out
}

// FromBuildReport converts a dataset build report to wire form
func FromBuildReport(br dataset.BuildReport) *BuildSummary {
	out := &BuildSummary{
		TotalEntities: br.TotalEntities,
		IncludedRows:  br.IncludedRows,
	}
	if len(br.Exclusions) > 0 {
		out.Exclusions = make(map[string]int, len(br.Exclusions))
		for reason, n := range br.Exclusions {
			out.Exclusions[reason] = n
		}
	}
	for _, id := range br.ExcludedIDs {
		out.ExcludedIDs = append(out.ExcludedIDs, id.String())
	}
	return out
}

// Emit writes the document as indented JSON
func Emit(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
