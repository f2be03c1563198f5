package panel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

// IndexColumn is the header of the quarter column in tabular files.
const IndexColumn = "quarter"

// FormatValue renders v with the shortest representation that parses back to
// the same float. NaN is written as an empty cell.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadRecords reads a CSV table and splits off its header row. A leading
// byte-order mark is removed from the first header cell. Rows may differ in
// length; callers check the fields they need.
func ReadRecords(r io.Reader) (header []string, records [][]string, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	all, err := cr.ReadAll()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("failed to read csv", err)
	}
	if len(all) == 0 {
		return nil, nil, apperrors.NewParsingError("csv has no header row", nil)
	}
	header = all[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, all[1:], nil
}

// ReadRecordsFile is ReadRecords on the file at path. A file that cannot be
// opened is a Storage error.
func ReadRecordsFile(path string) (header []string, records [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to open "+path, err)
	}
	defer f.Close()
	header, records, err = ReadRecords(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return header, records, nil
}

// Records flattens the frame into a header row and one record per quarter.
func (f *Frame) Records() (header []string, records [][]string) {
	header = append([]string{IndexColumn}, f.Columns()...)
	records = make([][]string, 0, f.Len())
	for i, q := range f.Index() {
		rec := make([]string, 0, len(header))
		rec = append(rec, q.String())
		for _, c := range f.columns {
			rec = append(rec, FormatValue(f.data[c][i]))
		}
		records = append(records, rec)
	}
	return header, records
}

// FromRecords parses the layout written by Records. The first column holds
// quarters; blank cells become NaN. A leading byte-order mark is tolerated.
func FromRecords(header []string, records [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, apperrors.NewValidationError("table has no header")
	}
	first := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff"))
	if !strings.EqualFold(first, IndexColumn) {
		return nil, apperrors.NewValidationError("first column must be %q, got %q", IndexColumn, first)
	}

	cols := make([]string, 0, len(header)-1)
	for _, h := range header[1:] {
		cols = append(cols, strings.TrimSpace(h))
	}
	index := make([]quarter.Quarter, 0, len(records))
	values := make(map[string][]float64, len(cols))
	for _, c := range cols {
		values[c] = make([]float64, 0, len(records))
	}

	for line, rec := range records {
		if len(rec) != len(header) {
			return nil, apperrors.NewValidationError("row %d has %d fields, want %d", line+1, len(rec), len(header))
		}
		q, err := quarter.Parse(rec[0])
		if err != nil {
			return nil, err
		}
		index = append(index, q)
		for j, c := range cols {
			cell := strings.TrimSpace(rec[j+1])
			v := math.NaN()
			if cell != "" {
				if v, err = strconv.ParseFloat(cell, 64); err != nil {
					return nil, apperrors.NewValidationError("row %d: %s is not a number: %q", line+1, c, cell)
				}
			}
			values[c] = append(values[c], v)
		}
	}
	return New(index, cols, values)
}
