// Package capital converts projected loss rates into credit losses and CET1
// capital paths.
//
// All ratios are decimal fractions: a CET1 ratio of 0.14 means 14%. Amounts
// are £bn. No capital is ever replenished, so every CET1 path is non-increasing
// whenever losses are non-negative.
package capital

import (
	"fmt"

	"macrostress/internal/balancesheet"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// Losses holds per-bucket and total credit losses for one bank and scenario.
type Losses struct {
	// ByBucket mirrors the loss-rate panel's shape with EAD × rate values.
	ByBucket *panel.Frame
	// Total sums ByBucket across buckets for each quarter.
	Total []float64
}

// ComputeCreditLosses multiplies every loss-rate column by the matching EAD.
// Every column must have an EAD entry; the error lists all that do not.
func ComputeCreditLosses(ead map[string]float64, lossRates *panel.Frame) (*Losses, error) {
	if lossRates == nil {
		return nil, apperrors.NewValidationError("loss-rate panel is required")
	}
	var missing []string
	for _, bucket := range lossRates.Columns() {
		if _, ok := ead[bucket]; !ok {
			missing = append(missing, bucket)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewLookupError("EAD for buckets", missing...)
	}

	total := make([]float64, lossRates.Len())
	values := make(map[string][]float64, len(lossRates.Columns()))
	for _, bucket := range lossRates.Columns() {
		rates, _ := lossRates.Column(bucket)
		for i, r := range rates {
			rates[i] = ead[bucket] * r
			total[i] += rates[i]
		}
		values[bucket] = rates
	}
	byBucket, err := panel.New(lossRates.Index(), lossRates.Columns(), values)
	if err != nil {
		return nil, err
	}
	return &Losses{ByBucket: byBucket, Total: total}, nil
}

// SimulateCET1Path returns CET1_t = cet1 − Σ_{s≤t} losses_s.
func SimulateCET1Path(cet1 float64, totalLosses []float64) []float64 {
	path := make([]float64, len(totalLosses))
	cum := 0.0
	for i, l := range totalLosses {
		cum += l
		path[i] = cet1 - cum
	}
	return path
}

// ComputeCET1Ratio divides the capital path by total RWA.
func ComputeCET1Ratio(path []float64, totalRWA float64) ([]float64, error) {
	if !(totalRWA > 0) {
		return nil, apperrors.NewArithmeticError("RWA must be positive, got %g", totalRWA)
	}
	out := make([]float64, len(path))
	for i, c := range path {
		out[i] = c / totalRWA
	}
	return out, nil
}

// BankRun is one bank's capital trajectory under one scenario.
type BankRun struct {
	Bank      string
	Index     []quarter.Quarter
	Losses    *Losses
	CET1      []float64
	CET1Ratio []float64
}

// RunBank composes losses, capital path and ratio for one bank.
func RunBank(bank *balancesheet.Bank, lossRates *panel.Frame) (*BankRun, error) {
	if bank == nil {
		return nil, apperrors.NewValidationError("bank is required")
	}
	losses, err := ComputeCreditLosses(bank.EADByBucket(), lossRates)
	if err != nil {
		return nil, fmt.Errorf("bank %s: %w", bank.Name(), err)
	}
	path := SimulateCET1Path(bank.CET1(), losses.Total)
	ratio, err := ComputeCET1Ratio(path, bank.TotalRWA())
	if err != nil {
		return nil, fmt.Errorf("bank %s: %w", bank.Name(), err)
	}
	return &BankRun{
		Bank:      bank.Name(),
		Index:     lossRates.Index(),
		Losses:    losses,
		CET1:      path,
		CET1Ratio: ratio,
	}, nil
}
