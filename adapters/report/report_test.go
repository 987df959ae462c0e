package report

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonostat/domain/core"
	"phonostat/domain/result"
	"phonostat/domain/spec"
)

func TestNumberSixSignificantDigits(t *testing.T) {
	cases := map[float64]string{
		0.123456789:      "0.123457",
		1234567.89:       "1.23457e+06",
		0.05:             "0.05",
		-0.000123456789:  "-0.000123457",
		3:                "3",
	}
	for in, want := range cases {
		out, err := json.Marshal(Number(in))
		require.NoError(t, err)
		assert.Equal(t, want, string(out), "marshal of %v", in)
	}
}

func TestNumberNonFiniteIsNull(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		out, err := json.Marshal(Number(v))
		require.NoError(t, err)
		assert.Equal(t, "null", string(out))
	}
}

func TestUntestedResultSerializesExplicitNulls(t *testing.T) {
	r := result.TestResult{
		Kind:     spec.TestPearson,
		Domain:   "test",
		Target:   "damage",
		N:        3,
		Warnings: []result.WarningCode{result.WarnInsufficientSample},
	}

	payload, err := json.Marshal(FromResult(r))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	// Null must be present, not omitted: "not tested" is distinct from absent
	for _, field := range []string{"statistic", "p_value", "effect_size"} {
		v, ok := decoded[field]
		assert.True(t, ok, "field %s must be serialized", field)
		assert.Nil(t, v, "field %s must be null", field)
	}
	warnings, ok := decoded["warnings"].([]interface{})
	require.True(t, ok, "warnings must always be an array")
	assert.Equal(t, []interface{}{"insufficient_sample"}, warnings)
}

func TestBatchCountsSurviveSerialization(t *testing.T) {
	tested := result.TestResult{
		Kind:      spec.TestPearson,
		Domain:    "test",
		Target:    "damage",
		Statistic: result.Float(0.9),
		PValue:    result.Float(0.001),
		N:         50,
	}
	skipped := result.TestResult{
		Kind:     spec.TestSpearman,
		Domain:   "test",
		Target:   "damage",
		Warnings: []result.WarningCode{result.WarnInsufficientSample},
	}
	batch := result.CorrectionBatch{
		BatchID:   core.NewBatchID(),
		Domain:    "test",
		Method:    spec.CorrectionFDRBH,
		Alpha:     0.05,
		Results:   []result.TestResult{tested, skipped},
		AdjustedP: []*float64{result.Float(0.001), nil},
		Survives:  []bool{true, false},
		Requested: 2,
		Returned:  1,
		Skipped:   1,
		CreatedAt: core.Now(),
	}

	wire := FromBatch(batch)
	assert.Equal(t, 2, wire.Requested)
	assert.Equal(t, 1, wire.Returned)
	assert.Equal(t, 1, wire.Skipped)
	require.Len(t, wire.Results, 2)

	require.NotNil(t, wire.Results[0].AdjustedP)
	require.NotNil(t, wire.Results[0].Survives)
	assert.True(t, *wire.Results[0].Survives)

	assert.Nil(t, wire.Results[1].AdjustedP)
	assert.Nil(t, wire.Results[1].Survives, "untested results carry no survival verdict")
}

func TestEmitProducesValidDocument(t *testing.T) {
	doc := Document{
		RunID: "run-1",
		Batches: []BatchReport{{
			BatchID: "batch-1",
			Domain:  "test",
			Method:  "fdr_bh",
			Alpha:   0.05,
			Results: []TestResult{{
				Kind:      "pearson",
				Statistic: numPtr(result.Float(0.98643)),
				PValue:    numPtr(result.Float(0.0017)),
				Warnings:  []result.WarningCode{},
			}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Emit(&buf, doc))

	var decoded Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Batches, 1)
	assert.InDelta(t, 0.98643, float64(*decoded.Batches[0].Results[0].Statistic), 1e-6)
}

func TestFromMetaCarriesHeterogeneity(t *testing.T) {
	rec := result.MetaAnalysisRecord{
		FeatureName: "harshness_score",
		PerDomain: []result.DomainEffect{
			{Domain: "a", EffectSize: 0.1, StdErr: 0.05},
			{Domain: "b", EffectSize: 0.4, StdErr: 0.05},
		},
		PooledEffect: 0.25,
		PooledSE:     0.0353553,
		PooledCI:     result.Interval{Lower: 0.18, Upper: 0.32, Level: 0.95},
		ISquared:     88.9,
		QStatistic:   9.0,
		QPValue:      0.0027,
		CreatedAt:    core.Now(),
	}

	wire := FromMeta(rec)
	assert.Equal(t, "harshness_score", wire.FeatureName)
	assert.Len(t, wire.PerDomain, 2)
	assert.InDelta(t, 88.9, float64(wire.ISquared), 1e-9)
	assert.Nil(t, wire.Moderator)
}
