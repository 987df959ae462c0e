package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"phonostat/domain/core"
	"phonostat/domain/feature"
)

// StatisticalType defines variable types for analysis
type StatisticalType string

const (
	TypeNumeric     StatisticalType = "numeric"
	TypeCategorical StatisticalType = "categorical"
	TypeBinary      StatisticalType = "binary"
)

// ColumnRole describes what a column represents in the joined table
type ColumnRole string

const (
	RoleFeature     ColumnRole = "feature"
	RoleOutcome     ColumnRole = "outcome"
	RoleCovariate   ColumnRole = "covariate"
	RoleOutlierFlag ColumnRole = "outlier_flag"
)

// ColumnMeta carries metadata for one table column
type ColumnMeta struct {
	Key    core.ColumnKey  `json:"key"`
	Role   ColumnRole      `json:"role"`
	Type   StatisticalType `json:"type"`
	Labels []string        `json:"labels,omitempty"` // categorical code -> label
}

// Table is a domain-scoped analysis view: one row per entity, columns are the
// union of features, outcomes, covariates, and derived outlier flags. Missing
// values are NaN. A Table is built fresh per analysis run; it is a view, not a
// source of record.
type Table struct {
	Domain           core.DomainKey  `json:"domain"`
	ExtractorVersion feature.Version `json:"extractor_version"`
	EntityIDs        []core.EntityID `json:"entity_ids"`
	Columns          []ColumnMeta    `json:"columns"`
	Data             [][]float64     `json:"data"` // rows=entities, cols=variables
	CreatedAt        core.Timestamp  `json:"created_at"`
}

// NewTable creates an empty table for a domain
func NewTable(domain core.DomainKey, version feature.Version) *Table {
	return &Table{
		Domain:           domain,
		ExtractorVersion: version,
		CreatedAt:        core.Now(),
	}
}

// AddColumn appends a column of values. Values must match the current row
// count unless the table is empty, in which case the column defines it.
func (t *Table) AddColumn(meta ColumnMeta, values []float64) error {
	if len(t.Data) == 0 && len(t.Columns) == 0 {
		t.Data = make([][]float64, len(values))
		for i := range t.Data {
			t.Data[i] = make([]float64, 0, 8)
		}
	}
	if len(values) != len(t.Data) {
		return core.NewValidationError(string(meta.Key),
			fmt.Sprintf("column has %d values, table has %d rows", len(values), len(t.Data)))
	}
	for i, v := range values {
		t.Data[i] = append(t.Data[i], v)
	}
	t.Columns = append(t.Columns, meta)
	return nil
}

// ColumnIndex returns the index of a column by key
func (t *Table) ColumnIndex(key core.ColumnKey) (int, bool) {
	for i, c := range t.Columns {
		if c.Key == key {
			return i, true
		}
	}
	return -1, false
}

// Meta returns the metadata for a column
func (t *Table) Meta(key core.ColumnKey) (ColumnMeta, bool) {
	idx, ok := t.ColumnIndex(key)
	if !ok {
		return ColumnMeta{}, false
	}
	return t.Columns[idx], true
}

// Column returns all values for one column (NaN where missing)
func (t *Table) Column(key core.ColumnKey) ([]float64, bool) {
	idx, ok := t.ColumnIndex(key)
	if !ok {
		return nil, false
	}
	vals := make([]float64, len(t.Data))
	for i, row := range t.Data {
		vals[i] = row[idx]
	}
	return vals, true
}

// CompleteRows returns the indices of rows with non-NaN values in every listed
// column. Exclusion is per column set, never table-wide: one incomplete
// outcome must not shrink the sample for unrelated tests.
func (t *Table) CompleteRows(keys ...core.ColumnKey) ([]int, error) {
	idxs := make([]int, len(keys))
	for i, key := range keys {
		idx, ok := t.ColumnIndex(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
		}
		idxs[i] = idx
	}

	rows := make([]int, 0, len(t.Data))
	for r, row := range t.Data {
		complete := true
		for _, idx := range idxs {
			if math.IsNaN(row[idx]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Select extracts the values of the listed columns restricted to the given
// rows, one slice per column in request order.
func (t *Table) Select(rows []int, keys ...core.ColumnKey) ([][]float64, error) {
	out := make([][]float64, len(keys))
	for i, key := range keys {
		idx, ok := t.ColumnIndex(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrColumnNotFound, key)
		}
		vals := make([]float64, len(rows))
		for j, r := range rows {
			vals[j] = t.Data[r][idx]
		}
		out[i] = vals
	}
	return out, nil
}

// OutlierFlagKey names the auxiliary flag column derived for a numeric column
func OutlierFlagKey(key core.ColumnKey) core.ColumnKey {
	return core.ColumnKey(string(key) + "_outlier")
}

// FilterFlagged removes rows whose outlier flag column is set for any of the
// listed base columns. Removal is always an explicit TestSpec decision; the
// builder only ever flags.
func (t *Table) FilterFlagged(rows []int, keys ...core.ColumnKey) []int {
	flagIdxs := make([]int, 0, len(keys))
	for _, key := range keys {
		if idx, ok := t.ColumnIndex(OutlierFlagKey(key)); ok {
			flagIdxs = append(flagIdxs, idx)
		}
	}
	if len(flagIdxs) == 0 {
		return rows
	}

	kept := make([]int, 0, len(rows))
	for _, r := range rows {
		flagged := false
		for _, idx := range flagIdxs {
			if t.Data[r][idx] == 1 {
				flagged = true
				break
			}
		}
		if !flagged {
			kept = append(kept, r)
		}
	}
	return kept
}

// RowCount returns the number of entities (rows)
func (t *Table) RowCount() int {
	return len(t.Data)
}

// ColumnCount returns the number of columns
func (t *Table) ColumnCount() int {
	return len(t.Columns)
}

// Validate ensures the table is internally consistent
func (t *Table) Validate() error {
	if len(t.Data) == 0 {
		return core.ErrEmptyDataset
	}
	if len(t.EntityIDs) != len(t.Data) {
		return core.NewValidationError("entity_ids", "length mismatch with data rows")
	}
	for i, row := range t.Data {
		if len(row) != len(t.Columns) {
			return core.NewValidationError("data",
				fmt.Sprintf("row %d has %d columns, expected %d", i, len(row), len(t.Columns)))
		}
	}
	return nil
}

// Fingerprint computes a deterministic hash of the table contents. Together
// with a spec hash and a seed it identifies a cached TestResult.
func (t *Table) Fingerprint() core.DatasetHash {
	var b strings.Builder
	b.WriteString(string(t.Domain))
	b.WriteString("|")
	b.WriteString(string(t.ExtractorVersion))

	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = string(c.Key)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
	}

	for _, row := range t.Data {
		for _, v := range row {
			b.WriteString("|")
			if math.IsNaN(v) {
				b.WriteString("nan")
			} else {
				b.WriteString(strconv.FormatFloat(v, 'g', 17, 64))
			}
		}
	}

	return core.NewDatasetHash([]byte(b.String()))
}
