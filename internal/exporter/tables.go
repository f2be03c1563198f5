package exporter

import (
	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	"macrostress/internal/panel"
	"macrostress/internal/projection"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
	"macrostress/internal/trough"
)

// Output file names.
const (
	StartingPositionsFile = "bank_starting_positions.csv"
	SystemResultsFile     = "system_results.csv"
	TroughSummaryFile     = "trough_summary.csv"
	LossesByBucketFile    = "losses_by_bucket.csv"
	BucketRWAFile         = "bucket_rwa.csv"
	RunLogFile            = "run_log.csv"
)

// LossRatesFile names the projected loss-rate table of a scenario.
func LossRatesFile(scenarioName string) string {
	return "loss_rates_" + scenarioName + ".csv"
}

// ScenarioFile names the macro path table of a scenario.
func ScenarioFile(scenarioName string) string {
	return "scenario_" + scenarioName + ".csv"
}

// Table is a named header and rows of typed cells: string, float64, bool or
// quarter.Quarter. Missing floats are NaN.
type Table struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// Records renders the rows as CSV strings.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, cell := range row {
			rec[i] = cellString(cell)
		}
		out = append(out, rec)
	}
	return out
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case string:
		return v
	case float64:
		return formatFloat(v)
	case bool:
		return formatBool(v)
	case quarter.Quarter:
		return v.String()
	case nil:
		return ""
	default:
		panic("exporter: unsupported cell type")
	}
}

const overlayPrefix = "overlay__"

// StartingPositionsTable lists each bank's headline position and overlay shares.
// Overlay columns appear in first-seen order; a bank without an overlay gets NaN.
func StartingPositionsTable(banks []*balancesheet.Bank) Table {
	var overlays []string
	seen := make(map[string]bool)
	for _, b := range banks {
		for _, k := range b.OverlayKeys() {
			if !seen[k] {
				seen[k] = true
				overlays = append(overlays, k)
			}
		}
	}

	header := []string{"bank", "total_ead_bn", "total_rwa_bn", "cet1_bn", "cet1_ratio"}
	for _, k := range overlays {
		header = append(header, overlayPrefix+k)
	}
	t := Table{Name: "starting_positions", Header: header}
	for _, b := range banks {
		row := []interface{}{b.Name(), b.TotalEAD(), b.TotalRWA(), b.CET1(), b.CET1Ratio()}
		shares := b.Overlays()
		for _, k := range overlays {
			v, ok := shares[k]
			if !ok {
				row = append(row, nil)
				continue
			}
			row = append(row, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// BucketRWATable lists every bucket with its bucket-level RWA, which is
// reported separately from the ratio-implied total.
func BucketRWATable(banks []*balancesheet.Bank) Table {
	t := Table{Name: "bucket_rwa", Header: []string{"bank", "bucket", "ead_bn", "rw", "rwa_bn", "lgd"}}
	for _, b := range banks {
		for _, bk := range b.Buckets() {
			t.Rows = append(t.Rows, []interface{}{b.Name(), bk.Name(), bk.EAD(), bk.RiskWeight(), bk.RWA(), bk.LGD()})
		}
	}
	return t
}

// SystemResultsTable is the full (scenario, bank, quarter) capital panel.
func SystemResultsTable(results *capital.SystemResults) Table {
	t := Table{Name: "system_results", Header: capital.ResultColumns}
	for _, r := range results.Rows() {
		t.Rows = append(t.Rows, []interface{}{r.Scenario, r.Bank, r.Quarter, r.TotalLosses, r.CET1, r.CET1Ratio})
	}
	return t
}

// TroughTable is the trough summary.
func TroughTable(rows []trough.Row) Table {
	t := Table{Name: "trough_summary", Header: trough.Columns}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{
			r.Scenario, r.Bank, r.StartCET1Ratio, r.TroughQuarter,
			r.TroughCET1, r.TroughCET1Ratio, r.Breach, r.Shortfall,
		})
	}
	return t
}

// LossesByBucketTable is the per-bucket loss panel.
func LossesByBucketTable(rows []capital.BucketLoss) Table {
	t := Table{Name: "losses_by_bucket", Header: capital.BucketLossColumns}
	for _, r := range rows {
		t.Rows = append(t.Rows, []interface{}{r.Scenario, r.Bank, r.Quarter, r.Bucket, r.LossRate, r.Losses})
	}
	return t
}

// FrameTable converts a quarter-indexed frame into a table.
func FrameTable(name string, f *panel.Frame) Table {
	cols := f.Columns()
	t := Table{Name: name, Header: append([]string{panel.IndexColumn}, cols...)}
	for i, q := range f.Index() {
		row := make([]interface{}, 0, len(cols)+1)
		row = append(row, q)
		for _, c := range cols {
			row = append(row, f.At(i, c))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ScenarioTables returns one table per scenario path.
func ScenarioTables(set scenario.Set) []Table {
	out := make([]Table, 0, len(set))
	for _, s := range set {
		out = append(out, FrameTable("scenario_"+s.Name, s.Path))
	}
	return out
}

// LossRateTables returns one table per projected scenario.
func LossRateTables(p *projection.Projected) ([]Table, error) {
	names := p.Names()
	out := make([]Table, 0, len(names))
	for _, name := range names {
		f, err := p.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, FrameTable("loss_rates_"+name, f))
	}
	return out, nil
}
