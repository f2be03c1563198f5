package capital

import (
	"fmt"

	"macrostress/internal/balancesheet"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/projection"
	"macrostress/internal/quarter"
)

// ResultColumns is the column order of a system result table.
var ResultColumns = []string{"scenario", "bank", "quarter", "total_losses", "cet1", "cet1_ratio"}

// ResultRow is one (scenario, bank, quarter) observation.
type ResultRow struct {
	Scenario    string          `json:"scenario"`
	Bank        string          `json:"bank"`
	Quarter     quarter.Quarter `json:"quarter"`
	TotalLosses float64         `json:"total_losses"` // £bn
	CET1        float64         `json:"cet1"`         // £bn
	CET1Ratio   float64         `json:"cet1_ratio"`   // decimal, 0.14 = 14%
}

// SystemResults is the tidy result panel. Rows are grouped by scenario, then
// bank, then quarter in time order.
type SystemResults struct {
	rows []ResultRow
}

// NewSystemResults wraps rows without reordering them.
func NewSystemResults(rows []ResultRow) *SystemResults {
	return &SystemResults{rows: append([]ResultRow(nil), rows...)}
}

// Rows returns a copy of the rows.
func (r *SystemResults) Rows() []ResultRow {
	if r == nil {
		return nil
	}
	return append([]ResultRow(nil), r.rows...)
}

// Len is the number of rows.
func (r *SystemResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// Filter returns rows for one scenario and bank. Blank arguments match all.
func (r *SystemResults) Filter(scenarioName, bank string) []ResultRow {
	var out []ResultRow
	for _, row := range r.rows {
		if (scenarioName == "" || row.Scenario == scenarioName) && (bank == "" || row.Bank == bank) {
			out = append(out, row)
		}
	}
	return out
}

// RunSystem runs every bank through every projected scenario, scenarios in
// projection order and banks in the order given.
func RunSystem(banks []*balancesheet.Bank, projected *projection.Projected) (*SystemResults, error) {
	if len(banks) == 0 {
		return nil, apperrors.NewValidationError("no banks supplied")
	}
	if projected == nil || len(projected.Names()) == 0 {
		return nil, apperrors.NewValidationError("no projected scenarios supplied")
	}

	var rows []ResultRow
	for _, name := range projected.Names() {
		lossRates, err := projected.Get(name)
		if err != nil {
			return nil, err
		}
		for _, bank := range banks {
			run, err := RunBank(bank, lossRates)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", name, err)
			}
			for i, q := range run.Index {
				rows = append(rows, ResultRow{
					Scenario:    name,
					Bank:        run.Bank,
					Quarter:     q,
					TotalLosses: run.Losses.Total[i],
					CET1:        run.CET1[i],
					CET1Ratio:   run.CET1Ratio[i],
				})
			}
		}
	}
	return &SystemResults{rows: rows}, nil
}

// BucketLoss is one (scenario, bank, quarter, bucket) observation.
type BucketLoss struct {
	Scenario string          `json:"scenario"`
	Bank     string          `json:"bank"`
	Quarter  quarter.Quarter `json:"quarter"`
	Bucket   string          `json:"bucket"`
	LossRate float64         `json:"loss_rate"` // decimal, 0.02 = 2% of EAD
	Losses   float64         `json:"losses"`    // £bn
}

// BucketLossColumns is the column order of a losses-by-bucket table.
var BucketLossColumns = []string{"scenario", "bank", "quarter", "bucket", "loss_rate", "losses"}

// ComputeLossesByBucket expands losses to bucket granularity: banks in the
// order given, scenarios in projection order, then quarter and bucket.
func ComputeLossesByBucket(banks []*balancesheet.Bank, projected *projection.Projected) ([]BucketLoss, error) {
	if projected == nil {
		return nil, apperrors.NewValidationError("no projected scenarios supplied")
	}
	var out []BucketLoss
	for _, bank := range banks {
		for _, name := range projected.Names() {
			lossRates, err := projected.Get(name)
			if err != nil {
				return nil, err
			}
			losses, err := ComputeCreditLosses(bank.EADByBucket(), lossRates)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: bank %s: %w", name, bank.Name(), err)
			}
			buckets := lossRates.Columns()
			for i, q := range lossRates.Index() {
				for _, bucket := range buckets {
					out = append(out, BucketLoss{
						Scenario: name,
						Bank:     bank.Name(),
						Quarter:  q,
						Bucket:   bucket,
						LossRate: lossRates.At(i, bucket),
						Losses:   losses.ByBucket.At(i, bucket),
					})
				}
			}
		}
	}
	return out, nil
}
