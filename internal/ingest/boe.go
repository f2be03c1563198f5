package ingest

import (
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// Bank of England IADB series codes.
const (
	BankRateCode = "IUMABEDR"
	Gilt10YCode  = "IUMAMNZC"
)

// ParseBoEMonthly reads an IADB CSV export with a DATE column ("31 Jan 1990")
// and one column per series code. The quarterly value is the last reported
// month of each quarter, converted from percent to decimal.
func ParseBoEMonthly(r io.Reader, code, column string) (*panel.Frame, error) {
	records, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read BoE csv", err)
	}
	if len(records) == 0 {
		return nil, apperrors.NewParsingError("BoE csv is empty", nil)
	}

	dateCol, valueCol := -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "DATE":
			dateCol = i
		case code:
			valueCol = i
		}
	}
	var missing []string
	if dateCol < 0 {
		missing = append(missing, "DATE")
	}
	if valueCol < 0 {
		missing = append(missing, code)
	}
	if len(missing) > 0 {
		return nil, apperrors.NewLookupError("BoE csv columns", missing...)
	}

	type obs struct {
		month time.Time
		value float64
	}
	var monthly []obs
	for _, rec := range records[1:] {
		if len(rec) <= dateCol || len(rec) <= valueCol || strings.TrimSpace(rec[dateCol]) == "" {
			continue
		}
		month, err := parseMonth(leadingDay.ReplaceAllString(strings.TrimSpace(rec[dateCol]), ""))
		if err != nil {
			return nil, err
		}
		monthly = append(monthly, obs{month, percent(rec[valueCol])})
	}
	sort.SliceStable(monthly, func(i, j int) bool { return monthly[i].month.Before(monthly[j].month) })

	last := make(map[quarter.Quarter]float64)
	for _, o := range monthly {
		if !math.IsNaN(o.value) {
			last[quarter.FromTime(o.month)] = o.value
		}
	}
	if len(last) == 0 {
		return nil, apperrors.NewParsingError("no observations for "+strconv.Quote(code)+" in BoE csv", nil)
	}
	return seriesFrame(column, last)
}
