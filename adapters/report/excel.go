package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes an analysis document to an .xlsx workbook with one
// sheet of test results and, when present, one of meta-analysis summaries.
type ExcelExporter struct{}

func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

var resultHeaders = []string{
	"batch_id", "domain", "test_kind", "target", "predictors", "n",
	"statistic", "p_value", "adjusted_p", "survives", "effect_size",
	"effect_size_kind", "ci_lower", "ci_upper", "warnings", "seed",
}

var metaHeaders = []string{
	"feature", "n_domains", "pooled_effect", "pooled_se",
	"ci_lower", "ci_upper", "i_squared", "q_statistic", "q_p_value", "warnings",
}

// Export writes the document to path, overwriting any existing file
func (e *ExcelExporter) Export(doc Document, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const resultsSheet = "Results"
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeRow(f, resultsSheet, 1, headerCells(resultHeaders)); err != nil {
		return err
	}

	rowNum := 2
	for _, batch := range doc.Batches {
		for _, r := range batch.Results {
			cells := []interface{}{
				batch.BatchID, r.Domain, r.Kind, r.Target,
				strings.Join(r.Predictors, ","), r.N,
				cellNum(r.Statistic), cellNum(r.PValue), cellNum(r.AdjustedP),
				cellBool(r.Survives), cellNum(r.EffectSize), r.EffectSizeKind,
			}
			if r.CI != nil {
				cells = append(cells, float64(r.CI.Lower), float64(r.CI.Upper))
			} else {
				cells = append(cells, "", "")
			}
			cells = append(cells, warningCell(r.Warnings), strconv.FormatInt(r.Seed, 10))
			if err := writeRow(f, resultsSheet, rowNum, cells); err != nil {
				return err
			}
			rowNum++
		}
	}

	if len(doc.Meta) > 0 {
		const metaSheet = "Meta"
		if _, err := f.NewSheet(metaSheet); err != nil {
			return fmt.Errorf("failed to create meta sheet: %w", err)
		}
		if err := writeRow(f, metaSheet, 1, headerCells(metaHeaders)); err != nil {
			return err
		}
		for i, m := range doc.Meta {
			cells := []interface{}{
				m.FeatureName, len(m.PerDomain),
				float64(m.PooledEffect), float64(m.PooledSE),
				float64(m.PooledCI.Lower), float64(m.PooledCI.Upper),
				float64(m.ISquared), float64(m.QStatistic), float64(m.QPValue),
				warningCell(m.Warnings),
			}
			if err := writeRow(f, metaSheet, i+2, cells); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell address: %w", err)
	}
	if err := f.SetSheetRow(sheet, addr, &cells); err != nil {
		return fmt.Errorf("failed to write row %d on %s: %w", row, sheet, err)
	}
	return nil
}

func headerCells(headers []string) []interface{} {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}

// cellNum renders a nullable number; empty cell means untested
func cellNum(n *Number) interface{} {
	if n == nil {
		return ""
	}
	return float64(*n)
}

func cellBool(b *bool) interface{} {
	if b == nil {
		return ""
	}
	return *b
}

func warningCell[T ~string](warnings []T) string {
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = string(w)
	}
	return strings.Join(parts, ",")
}
