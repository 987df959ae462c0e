// Package ingest reads entity batches from delimited files. The file is the
// collector boundary: rows are validated and deduplicated here so everything
// downstream can assume well-typed entities.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"phonostat/domain/core"
	"phonostat/domain/entity"
	"phonostat/internal"
	"phonostat/ports"
)

// Column conventions: "name" is required, "id" optional (generated when
// absent). Columns prefixed "cov_" become covariates; every other column is
// an outcome. Unparseable outcome cells become missing values, not errors.
const (
	nameColumn      = "name"
	idColumn        = "id"
	covariatePrefix = "cov_"
)

// FileSource implements EntitySourcePort over a CSV or XLSX file
type FileSource struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewFileSource creates a source for the given path, dispatching on extension
func NewFileSource(filePath string, logger *internal.Logger) *FileSource {
	fileType := "csv"
	if ext := strings.ToLower(filepath.Ext(filePath)); ext == ".xlsx" || ext == ".xlsm" {
		fileType = "xlsx"
	}
	return &FileSource{filePath: filePath, fileType: fileType, logger: logger}
}

var _ ports.EntitySourcePort = (*FileSource)(nil)

// Fetch reads the file and returns validated entities tagged with the domain
func (s *FileSource) Fetch(ctx context.Context, domain core.DomainKey) ([]entity.NamedEntity, error) {
	if _, err := os.Stat(s.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: source file %s", core.ErrNotFound, s.filePath)
	}

	var rows [][]string
	var err error
	switch s.fileType {
	case "xlsx":
		rows, err = s.readExcelRows()
	default:
		rows, err = s.readCSVRows()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: need a header row and at least one data row", core.ErrEmptyDataset)
	}

	return s.parseRows(ctx, domain, rows)
}

func (s *FileSource) readCSVRows() ([][]string, error) {
	file, err := os.Open(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func (s *FileSource) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func (s *FileSource) parseRows(ctx context.Context, domain core.DomainKey, rows [][]string) ([]entity.NamedEntity, error) {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	nameIdx, idIdx := -1, -1
	for i, h := range headers {
		switch h {
		case nameColumn:
			nameIdx = i
		case idColumn:
			idIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: missing required %q column", core.ErrInvalidRecord, nameColumn)
	}

	entities := make([]entity.NamedEntity, 0, len(rows)-1)
	seen := make(map[core.EntityID]bool)
	skipped := 0

	for rowNum, row := range rows[1:] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if isBlankRow(row) {
			continue
		}

		name := cell(row, nameIdx)
		var id core.EntityID
		if idIdx >= 0 && cell(row, idIdx) != "" {
			id = core.EntityID(cell(row, idIdx))
		} else {
			id = core.EntityID(core.NewID())
		}

		outcomes := make(map[string]*float64)
		covariates := make(map[string]interface{})
		for i, h := range headers {
			if i == nameIdx || i == idIdx || h == "" {
				continue
			}
			raw := cell(row, i)
			if key, ok := strings.CutPrefix(h, covariatePrefix); ok {
				if raw != "" {
					covariates[key] = covariateValue(raw)
				}
				continue
			}
			if raw == "" {
				outcomes[h] = nil
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				// Unparseable outcome is a missing value for that row
				outcomes[h] = nil
				continue
			}
			outcomes[h] = &v
		}

		e, err := entity.New(id, name, domain, outcomes, covariates)
		if err != nil {
			if core.IsIngestionError(err) {
				s.logger.Warn("row %d rejected: %v", rowNum+2, err)
				skipped++
				continue
			}
			return nil, fmt.Errorf("row %d: %w", rowNum+2, err)
		}
		if seen[e.ID] {
			s.logger.Warn("row %d rejected: duplicate id %s", rowNum+2, e.ID)
			skipped++
			continue
		}
		seen[e.ID] = true
		entities = append(entities, e)
	}

	s.logger.Info("source read: file=%s rows=%d accepted=%d skipped=%d",
		s.filePath, len(rows)-1, len(entities), skipped)
	return entities, nil
}

// covariateValue keeps numerics numeric so the builder can pass them through;
// everything else stays a categorical label
func covariateValue(raw string) interface{} {
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
