package trough

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

func hsbc(t *testing.T) *balancesheet.Bank {
	t.Helper()
	cfg, err := balancesheet.DefaultConfig()
	require.NoError(t, err)
	b, err := balancesheet.MakeBank(cfg, balancesheet.HSBC)
	require.NoError(t, err)
	return b
}

func row(scenario, q string, cet1, ratio float64) capital.ResultRow {
	return capital.ResultRow{
		Scenario:  scenario,
		Bank:      balancesheet.HSBC,
		Quarter:   quarter.MustParse(q),
		CET1:      cet1,
		CET1Ratio: ratio,
	}
}

func TestComputeTroughSummary_DecreasingRatio(t *testing.T) {
	bank := hsbc(t)
	rwa := bank.TotalRWA()

	tests := []struct {
		name          string
		troughRatio   float64
		wantBreach    bool
		wantShortfall float64
	}{
		{"above hurdle", 0.10, false, 0},
		{"at hurdle", 0.07, false, 0},
		{"below hurdle", 0.05, true, 0.02 * rwa},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := capital.NewSystemResults([]capital.ResultRow{
				row("adverse", "2025Q4", 0.12*rwa, 0.12),
				row("adverse", "2026Q1", tt.troughRatio*rwa, tt.troughRatio),
			})

			rows, err := ComputeTroughSummary(results, []*balancesheet.Bank{bank}, DefaultHurdle)
			require.NoError(t, err)
			require.Len(t, rows, 1)

			r := rows[0]
			assert.Equal(t, "2026Q1", r.TroughQuarter.String())
			assert.InDelta(t, 0.14, r.StartCET1Ratio, 1e-12)
			assert.Equal(t, tt.wantBreach, r.Breach)
			assert.InDelta(t, tt.wantShortfall, r.Shortfall, 1e-9)
			assert.GreaterOrEqual(t, r.Shortfall, 0.0)
		})
	}
}

func TestComputeTroughSummary_TiePicksEarliest(t *testing.T) {
	bank := hsbc(t)
	results := capital.NewSystemResults([]capital.ResultRow{
		row("baseline", "2025Q4", 70, 0.13),
		row("baseline", "2026Q1", 60, 0.11),
		row("baseline", "2026Q2", 60, 0.11),
		row("baseline", "2026Q3", 65, 0.12),
	})

	rows, err := ComputeTroughSummary(results, []*balancesheet.Bank{bank}, DefaultHurdle)
	require.NoError(t, err)
	assert.Equal(t, "2026Q1", rows[0].TroughQuarter.String())
}

func TestComputeTroughSummary_GroupOrder(t *testing.T) {
	bank := hsbc(t)
	results := capital.NewSystemResults([]capital.ResultRow{
		row("baseline", "2025Q4", 70, 0.13),
		row("adverse", "2025Q4", 60, 0.11),
	})

	rows, err := ComputeTroughSummary(results, []*balancesheet.Bank{bank}, DefaultHurdle)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "baseline", rows[0].Scenario)
	assert.Equal(t, "adverse", rows[1].Scenario)
}

func TestComputeTroughSummary_Errors(t *testing.T) {
	results := capital.NewSystemResults([]capital.ResultRow{row("adverse", "2025Q4", 70, 0.13)})

	_, err := ComputeTroughSummary(results, nil, DefaultHurdle)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), balancesheet.HSBC)

	// a percentage hurdle is rejected rather than silently compared against decimals
	_, err = ComputeTroughSummary(results, []*balancesheet.Bank{hsbc(t)}, 7)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = ComputeTroughSummary(nil, nil, DefaultHurdle)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestComputeTroughSummary_SkipsNonFiniteRows(t *testing.T) {
	bank := hsbc(t)
	results := capital.NewSystemResults([]capital.ResultRow{
		row("adverse", "2025Q4", math.NaN(), math.NaN()),
		row("adverse", "2026Q1", 10, 0.01),
		row("adverse", "2026Q2", math.Inf(-1), math.Inf(-1)),
	})

	rows, err := ComputeTroughSummary(results, []*balancesheet.Bank{bank}, DefaultHurdle)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026Q1", rows[0].TroughQuarter.String())
	assert.Equal(t, 0.01, rows[0].TroughCET1Ratio)
	assert.True(t, rows[0].Breach)
	assert.InDelta(t, DefaultHurdle*bank.TotalRWA()-10, rows[0].Shortfall, 1e-9)

	allNaN := capital.NewSystemResults([]capital.ResultRow{
		row("adverse", "2025Q4", math.NaN(), math.NaN()),
		row("adverse", "2026Q1", 10, math.NaN()),
	})
	_, err = ComputeTroughSummary(allNaN, []*balancesheet.Bank{bank}, DefaultHurdle)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestSystemShortfallAndBreaches(t *testing.T) {
	rows := []Row{
		{Scenario: "adverse", Bank: "A", Breach: true, Shortfall: 2.5},
		{Scenario: "adverse", Bank: "B", Breach: true, Shortfall: 1.5},
		{Scenario: "baseline", Bank: "A"},
	}

	assert.Equal(t, map[string]float64{"adverse": 4, "baseline": 0}, SystemShortfall(rows))
	assert.Len(t, Breaches(rows), 2)
}

func TestTableFromRecords(t *testing.T) {
	header := []string{"\ufeffscenario", "bank", "quarter", "total_losses", "cet1", "cet1_ratio", "note"}
	records := [][]string{
		{"adverse", "HSBC", "2025Q4", "8.5", "71.3", "0.125", "x"},
		{"adverse", "HSBC", "2026Q1", "7", "64.3", "0.1128", ""},
	}

	results, err := TableFromRecords(header, records)
	require.NoError(t, err)
	require.Equal(t, 2, results.Len())

	rows := results.Rows()
	assert.Equal(t, "HSBC", rows[1].Bank)
	assert.Equal(t, "2026Q1", rows[1].Quarter.String())
	assert.Equal(t, 0.1128, rows[1].CET1Ratio)

	summary, err := ComputeTroughSummary(results, []*balancesheet.Bank{hsbc(t)}, DefaultHurdle)
	require.NoError(t, err)
	assert.Equal(t, 64.3, summary[0].TroughCET1)
}

func TestTableFromRecords_Errors(t *testing.T) {
	_, err := TableFromRecords([]string{"scenario", "bank", "quarter"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), "cet1, cet1_ratio, total_losses")

	header := capital.ResultColumns
	_, err = TableFromRecords(header, [][]string{{"a", "HSBC", "2025Q4", "x", "1", "0.1"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = TableFromRecords(header, [][]string{{"a", "HSBC", "2025Q9", "1", "1", "0.1"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = TableFromRecords(header, [][]string{{"a", "HSBC"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	for _, bad := range []string{"NaN", "Inf", "-Inf"} {
		_, err = TableFromRecords(header, [][]string{
			{"a", "HSBC", "2025Q4", "1", bad, bad},
			{"a", "HSBC", "2026Q1", "1", "10", "0.01"},
		})
		require.Error(t, err, bad)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		assert.Contains(t, err.Error(), "not finite")
	}
}

func TestLoadResults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system_results.csv")
	data := "\ufeffscenario,bank,quarter,total_losses,cet1,cet1_ratio\n" +
		"adverse,HSBC,2025Q4,8.5,71.3,0.125\n" +
		"adverse,HSBC,2026Q1,7,30,0.05\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	results, err := LoadResults(path)
	require.NoError(t, err)
	rows, err := ComputeTroughSummary(results, []*balancesheet.Bank{hsbc(t)}, DefaultHurdle)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026Q1", rows[0].TroughQuarter.String())
	assert.True(t, rows[0].Breach)

	_, err = LoadResults(filepath.Join(dir, "missing.csv"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
