package exporter

import (
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

// ReportTables lists the tables of r in workbook order.
func ReportTables(r Report) ([]Table, error) {
	var tables []Table
	if len(r.Banks) > 0 {
		tables = append(tables, StartingPositionsTable(r.Banks), BucketRWATable(r.Banks))
	}
	if r.Results != nil {
		tables = append(tables, SystemResultsTable(r.Results))
	}
	if r.Trough != nil {
		tables = append(tables, TroughTable(r.Trough))
	}
	if r.Losses != nil {
		tables = append(tables, LossesByBucketTable(r.Losses))
	}
	tables = append(tables, ScenarioTables(r.Scenarios)...)
	if r.LossRates != nil {
		lr, err := LossRateTables(r.LossRates)
		if err != nil {
			return nil, err
		}
		tables = append(tables, lr...)
	}
	return tables, nil
}

// WriteWorkbook writes every table of r to one .xlsx file, a sheet per table.
func WriteWorkbook(path string, r Report) error {
	tables, err := ReportTables(r)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return apperrors.NewValidationError("report has no tables to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	for i, t := range tables {
		name := t.Name
		if len(name) > maxSheetName {
			name = name[:maxSheetName]
		}
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return apperrors.NewStorageError("failed to name sheet "+name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return apperrors.NewStorageError("failed to add sheet "+name, err)
		}
		if err := writeSheet(f, name, t); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err)
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save workbook "+path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t Table) error {
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return apperrors.NewStorageError("failed to write header of "+sheet, err)
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return apperrors.NewStorageError("bad cell reference", err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = sheetValue(v)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return apperrors.NewStorageError("failed to write row of "+sheet, err)
		}
	}
	return nil
}

func sheetValue(v interface{}) interface{} {
	switch x := v.(type) {
	case quarter.Quarter:
		return x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return v
	}
}
