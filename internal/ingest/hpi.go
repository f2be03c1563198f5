package ingest

import (
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// HPISheet is the sheet of the UK HPI workbook holding the average price index.
const HPISheet = "1"

// hpiSkipRows counts the header row plus the two note rows under it.
const hpiSkipRows = 3

var (
	revisionMarker = regexp.MustCompile(`\s*\[[rpRP]\]\s*$`)
	longMonth      = regexp.MustCompile(`^([A-Za-z]{3})[A-Za-z]*\s+(\d{4})$`)
	leadingDay     = regexp.MustCompile(`^\d{1,2}\s+`)
)

// parseMonth accepts "Jan 2005", "January 2005" and "JANUARY 2005 [r]".
func parseMonth(label string) (time.Time, error) {
	s := strings.TrimSpace(revisionMarker.ReplaceAllString(label, ""))
	if m := longMonth.FindStringSubmatch(s); m != nil {
		s = strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:]) + " " + m[2]
	}
	t, err := time.Parse("Jan 2006", s)
	if err != nil {
		return time.Time{}, apperrors.NewParsingError("unrecognised month "+strconv.Quote(label), err)
	}
	return t, nil
}

// hpiMonth reads the month column, which is either text or an Excel date serial.
func hpiMonth(cell string) (time.Time, error) {
	if serial, err := strconv.ParseFloat(cell, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, apperrors.NewParsingError("bad excel date "+cell, err)
		}
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	return parseMonth(cell)
}

// ParseHPIWorkbook reads the monthly UK HPI workbook and returns quarterly
// house price growth: the mean index per quarter, then the change on the
// previous quarter.
func ParseHPIWorkbook(r io.Reader, column string) (*panel.Frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open HPI workbook", err)
	}
	defer f.Close()

	rows, err := f.GetRows(HPISheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.NewParsingError("HPI workbook has no sheet "+strconv.Quote(HPISheet), err)
	}
	return hpiGrowth(rows, column)
}

func hpiGrowth(rows [][]string, column string) (*panel.Frame, error) {
	var data [][]string
	for _, row := range rows {
		if strings.TrimSpace(strings.Join(row, "")) != "" {
			data = append(data, row)
		}
	}
	if len(data) <= hpiSkipRows {
		return nil, apperrors.NewParsingError("HPI sheet has no data rows", nil)
	}

	type obs struct {
		month time.Time
		index float64
	}
	var monthly []obs
	for _, row := range data[hpiSkipRows:] {
		if len(row) < 2 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		month, err := hpiMonth(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil || math.IsNaN(v) {
			continue
		}
		monthly = append(monthly, obs{month, v})
	}
	sort.SliceStable(monthly, func(i, j int) bool { return monthly[i].month.Before(monthly[j].month) })

	sums := make(map[quarter.Quarter]float64)
	counts := make(map[quarter.Quarter]int)
	for _, o := range monthly {
		q := quarter.FromTime(o.month)
		sums[q] += o.index
		counts[q]++
	}

	growth := make(map[quarter.Quarter]float64)
	for q, sum := range sums {
		prev := q.Add(-1)
		if counts[prev] == 0 {
			continue
		}
		growth[q] = (sum/float64(counts[q]))/(sums[prev]/float64(counts[prev])) - 1
	}
	if len(growth) == 0 {
		return nil, apperrors.NewParsingError("HPI sheet spans fewer than two quarters", nil)
	}
	return seriesFrame(column, growth)
}
