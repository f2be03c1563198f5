// Package trough finds the worst quarter of each capital trajectory and the
// capital needed to restore it to a regulatory hurdle.
//
// The hurdle and every ratio are decimal fractions, so a hurdle of 0.07 is
// compared directly against a trough ratio such as 0.065.
package trough

import (
	"math"
	"strconv"
	"strings"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// DefaultHurdle is the CET1 ratio hurdle.
const DefaultHurdle = 0.07

// Columns is the column order of a trough summary table.
var Columns = []string{
	"scenario", "bank", "start_cet1_ratio", "trough_quarter",
	"trough_cet1", "trough_cet1_ratio", "breach", "shortfall",
}

// Row summarises one (scenario, bank) trajectory.
type Row struct {
	Scenario        string          `json:"scenario"`
	Bank            string          `json:"bank"`
	StartCET1Ratio  float64         `json:"start_cet1_ratio"` // decimal, 0.14 = 14%
	TroughQuarter   quarter.Quarter `json:"trough_quarter"`
	TroughCET1      float64         `json:"trough_cet1"`       // £bn
	TroughCET1Ratio float64         `json:"trough_cet1_ratio"` // decimal
	Breach          bool            `json:"breach"`
	Shortfall       float64         `json:"shortfall"` // £bn
}

type groupKey struct{ scenario, bank string }

// ComputeTroughSummary returns one row per (scenario, bank) in the order the
// groups first appear. The trough is the minimum CET1 ratio; on ties the
// earliest quarter wins. Rows with a non-finite CET1 or ratio are skipped, and a
// group with no finite row is a Validation error. A bank in results that is not
// in banks is a Lookup error.
func ComputeTroughSummary(results *capital.SystemResults, banks []*balancesheet.Bank, hurdle float64) ([]Row, error) {
	if results == nil {
		return nil, apperrors.NewValidationError("system results are required")
	}
	if !(hurdle >= 0 && hurdle < 1) {
		return nil, apperrors.NewValidationError("hurdle must be a decimal ratio in [0,1), got %g", hurdle)
	}

	byName := make(map[string]*balancesheet.Bank, len(banks))
	for _, b := range banks {
		byName[b.Name()] = b
	}

	var order []groupKey
	seen := make(map[groupKey]bool)
	troughs := make(map[groupKey]capital.ResultRow)
	for _, row := range results.Rows() {
		k := groupKey{row.Scenario, row.Bank}
		if !seen[k] {
			seen[k] = true
			order = append(order, k)
		}
		if !finite(row.CET1) || !finite(row.CET1Ratio) {
			continue
		}
		cur, ok := troughs[k]
		if !ok || row.CET1Ratio < cur.CET1Ratio || (row.CET1Ratio == cur.CET1Ratio && row.Quarter.Before(cur.Quarter)) {
			troughs[k] = row
		}
	}
	for _, k := range order {
		if _, ok := troughs[k]; !ok {
			return nil, apperrors.NewValidationError("scenario %s, bank %s: no finite CET1 ratio", k.scenario, k.bank)
		}
	}

	var unknown []string
	for _, k := range order {
		if _, ok := byName[k.bank]; !ok {
			unknown = append(unknown, k.bank)
		}
	}
	if len(unknown) > 0 {
		return nil, apperrors.NewLookupError("banks referenced in results", dedupe(unknown)...)
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		bank := byName[k.bank]
		t := troughs[k]
		rwa := bank.TotalRWA()
		out = append(out, Row{
			Scenario:        k.scenario,
			Bank:            k.bank,
			StartCET1Ratio:  bank.CET1() / rwa,
			TroughQuarter:   t.Quarter,
			TroughCET1:      t.CET1,
			TroughCET1Ratio: t.CET1Ratio,
			Breach:          t.CET1Ratio < hurdle,
			Shortfall:       math.Max(0, hurdle*rwa-t.CET1),
		})
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// SystemShortfall sums shortfall per scenario.
func SystemShortfall(rows []Row) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range rows {
		out[r.Scenario] += r.Shortfall
	}
	return out
}

// Breaches returns only the rows whose trough breaches the hurdle.
func Breaches(rows []Row) []Row {
	var out []Row
	for _, r := range rows {
		if r.Breach {
			out = append(out, r)
		}
	}
	return out
}

// LoadResults reads a system_results.csv file into a result panel.
func LoadResults(path string) (*capital.SystemResults, error) {
	header, records, err := panel.ReadRecordsFile(path)
	if err != nil {
		return nil, err
	}
	return TableFromRecords(header, records)
}

// TableFromRecords rebuilds a result panel from a header and string records,
// such as a previously written system_results.csv. Extra columns are ignored;
// NaN and infinite values are Validation errors.
func TableFromRecords(header []string, records [][]string) (*capital.SystemResults, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, c := range capital.ResultColumns {
		if _, ok := pos[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewLookupError("result columns", missing...)
	}

	rows := make([]capital.ResultRow, 0, len(records))
	for line, rec := range records {
		get := func(col string) (string, error) {
			i := pos[col]
			if i >= len(rec) {
				return "", apperrors.NewValidationError("row %d: missing value for %s", line+1, col)
			}
			return strings.TrimSpace(rec[i]), nil
		}
		num := func(col string) (float64, error) {
			s, err := get(col)
			if err != nil {
				return 0, err
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, apperrors.NewValidationError("row %d: %s is not a number: %q", line+1, col, s)
			}
			if !finite(v) {
				return 0, apperrors.NewValidationError("row %d: %s is not finite: %q", line+1, col, s)
			}
			return v, nil
		}

		var row capital.ResultRow
		var err error
		if row.Scenario, err = get("scenario"); err != nil {
			return nil, err
		}
		if row.Bank, err = get("bank"); err != nil {
			return nil, err
		}
		qs, err := get("quarter")
		if err != nil {
			return nil, err
		}
		if row.Quarter, err = quarter.Parse(qs); err != nil {
			return nil, err
		}
		if row.TotalLosses, err = num("total_losses"); err != nil {
			return nil, err
		}
		if row.CET1, err = num("cet1"); err != nil {
			return nil, err
		}
		if row.CET1Ratio, err = num("cet1_ratio"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return capital.NewSystemResults(rows), nil
}
