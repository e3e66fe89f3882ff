package vector

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a rectangular attribute source: one header row plus records.
// Both CSV and spreadsheet sources land here so the measurement
// ingesters can treat them alike.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable loads a CSV or XLSX file. For spreadsheets, sheet picks the
// worksheet; empty means the first one.
func ReadTable(path, sheet string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVTable(path)
	case ".xlsx", ".xlsm":
		return readXLSXTable(path, sheet)
	case ".parquet":
		return readParquetTable(path)
	default:
		return nil, fmt.Errorf("open table %s: no reader for %s", path, filepath.Ext(path))
	}
}

func readCSVTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv %s is empty", path)
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "﻿")
	}
	return &Table{Header: header, Rows: records[1:]}, nil
}

func readXLSXTable(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet %s has no worksheets", path)
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q of %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("worksheet %q of %s is empty", sheet, path)
	}
	header := rows[0]
	// GetRows drops trailing empty cells, so pad records out to the
	// header width.
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		for len(row) < len(header) {
			row = append(row, "")
		}
		body = append(body, row)
	}
	return &Table{Header: header, Rows: body}, nil
}

// HeaderIndex maps trimmed, lower-cased column names to positions and
// fails when a required column is missing from the header.
func (t *Table) HeaderIndex(required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := idx[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

// Field reads the named column from a record, empty when the record is
// short or the column is unknown.
func Field(row []string, idx map[string]int, name string) string {
	i, ok := idx[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
