package operations_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/balancesheet"
	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/exporter"
	"macrostress/internal/infrastructure"
	"macrostress/internal/ingest"
	"macrostress/internal/operations"
	"macrostress/internal/operations/testutil"
	"macrostress/internal/scenario"
	"macrostress/internal/synthetic"
)

func syntheticRequest() operations.RunRequest {
	return operations.RunRequest{
		Scenario: scenario.DefaultParams(),
		Hurdle:   0.07,
		History: operations.HistoryRequest{
			Source:  config.HistorySynthetic,
			Start:   synthetic.DefaultStart,
			Periods: synthetic.DefaultPeriods,
			Seed:    synthetic.DefaultSeed,
		},
	}
}

func newStressManager(t *testing.T, hub operations.WebSocketHub) *operations.Manager {
	t.Helper()
	tel := infrastructure.NoopTelemetry()
	registry, err := operations.NewStressTestRegistry(nil, &operations.StageOptions{Metrics: tel.Metrics})
	require.NoError(t, err)
	m := operations.NewManager(hub, registry, nil, operations.WithTelemetry(tel))
	t.Cleanup(m.Close)
	return m
}

func TestStressPipeline_Synthetic(t *testing.T) {
	hub := &testutil.MockWebSocketHub{}
	m := newStressManager(t, hub)

	resp, err := m.Execute(context.Background(), syntheticRequest())
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	assert.Equal(t, operations.StepStatusSkipped, resp.Step(operations.StageIDWriteReports).Status)

	a := resp.Artefacts
	require.NotNil(t, a)
	assert.Equal(t, config.HistorySynthetic, a.HistorySource)
	assert.Equal(t, synthetic.DefaultPeriods, a.Macro.Len())
	assert.Len(t, a.Banks, 3)
	assert.Equal(t, []string{scenario.Baseline, scenario.Adverse}, a.Scenarios.Names())
	assert.Len(t, a.Models, len(balancesheet.Categories()))
	assert.Equal(t, []string{scenario.Baseline, scenario.Adverse}, a.Projected.Names())

	// one row per scenario, bank and quarter
	assert.Equal(t, 2*3*scenario.DefaultHorizon, a.Results.Len())
	require.Len(t, a.Trough, 6)
	assert.Equal(t, scenario.Baseline, a.Trough[0].Scenario)
	assert.Empty(t, a.Written)

	for _, row := range a.Trough {
		assert.LessOrEqual(t, row.TroughCET1Ratio, row.StartCET1Ratio+1e-12)
		assert.Equal(t, row.TroughCET1Ratio < 0.07, row.Breach)
	}
}

func TestStressPipeline_Reproducible(t *testing.T) {
	m := newStressManager(t, nil)

	first, err := m.Execute(context.Background(), syntheticRequest())
	require.NoError(t, err)
	second, err := m.Execute(context.Background(), syntheticRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Artefacts.Trough, second.Artefacts.Trough)
	assert.Equal(t, first.Artefacts.Results.Rows(), second.Artefacts.Results.Rows())
}

func TestStressPipeline_SingleBank(t *testing.T) {
	m := newStressManager(t, nil)
	req := syntheticRequest()
	req.Bank = "hsbc"

	resp, err := m.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Artefacts.Banks, 1)
	assert.Equal(t, balancesheet.HSBC, resp.Artefacts.Banks[0].Name())
	assert.Len(t, resp.Artefacts.Trough, 2)
}

func TestStressPipeline_WritesReports(t *testing.T) {
	dir := t.TempDir()
	m := newStressManager(t, nil)
	req := syntheticRequest()
	req.WriteReports = true
	req.WriteWorkbook = true
	req.OutputDir = dir

	resp, err := m.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, operations.StepStatusCompleted, resp.Step(operations.StageIDWriteReports).Status)

	written := resp.Artefacts.Written
	require.NotEmpty(t, written)
	assert.Contains(t, written, filepath.Join(dir, config.WorkbookFile))
	for _, path := range written {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}
	_, err = os.Stat(filepath.Join(dir, exporter.LossRatesFile(scenario.Adverse)))
	assert.NoError(t, err)
}

func TestStressPipeline_ProcessedHistory(t *testing.T) {
	macro, _, err := synthetic.MakeHistory(synthetic.DefaultStart, 60, 9)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), ingest.MacroHistoryFile)
	require.NoError(t, ingest.SaveMacroHistory(path, macro))

	m := newStressManager(t, nil)
	req := syntheticRequest()
	req.History = operations.HistoryRequest{Source: config.HistoryProcessed, MacroPath: path, Seed: 9}

	resp, err := m.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, config.HistoryProcessed, resp.Artefacts.HistorySource)
	assert.Equal(t, 60, resp.Artefacts.Macro.Len())
	assert.Equal(t, 60, resp.Artefacts.LossRates.Len())
}

func TestStressPipeline_Failures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*operations.RunRequest)
		step     string
		errType  apperrors.ErrorType
		opType   operations.ErrorType
		skipped  []string
	}{
		{
			name: "missing processed history",
			mutate: func(r *operations.RunRequest) {
				r.History = operations.HistoryRequest{
					Source:    config.HistoryProcessed,
					MacroPath: filepath.Join(os.TempDir(), "does-not-exist", "macro_hist.csv"),
				}
			},
			step:    operations.StageIDLoadHistory,
			errType: apperrors.ErrTypeStorage,
			opType:  operations.ErrorTypeExecution,
			skipped: []string{operations.StageIDBuildBanks, operations.StageIDTroughSummary},
		},
		{
			name:    "unknown history source",
			mutate:  func(r *operations.RunRequest) { r.History.Source = "database" },
			step:    operations.StageIDLoadHistory,
			errType: apperrors.ErrTypeValidation,
			opType:  operations.ErrorTypeValidation,
		},
		{
			name:    "unknown bank",
			mutate:  func(r *operations.RunRequest) { r.Bank = "Barclays" },
			step:    operations.StageIDBuildBanks,
			errType: apperrors.ErrTypeLookup,
			opType:  operations.ErrorTypeExecution,
			skipped: []string{operations.StageIDGenerateScenarios, operations.StageIDRunCapital},
		},
		{
			name:    "zero horizon",
			mutate:  func(r *operations.RunRequest) { r.Scenario.Horizon = 0 },
			step:    operations.StageIDGenerateScenarios,
			errType: apperrors.ErrTypeValidation,
			opType:  operations.ErrorTypeExecution,
			skipped: []string{operations.StageIDFitModels},
		},
		{
			name:    "hurdle given in percent",
			mutate:  func(r *operations.RunRequest) { r.Hurdle = 7 },
			step:    operations.StageIDTroughSummary,
			errType: apperrors.ErrTypeValidation,
			opType:  operations.ErrorTypeExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newStressManager(t, nil)
			req := syntheticRequest()
			tt.mutate(&req)

			resp, err := m.Execute(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.step, operations.FailedStep(err))
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
			assert.Equal(t, tt.opType, operations.GetErrorType(err))

			require.NotNil(t, resp)
			assert.Equal(t, operations.OperationStatusFailed, resp.Status)
			assert.Equal(t, operations.StepStatusFailed, resp.Step(tt.step).Status)
			for _, id := range tt.skipped {
				assert.Equal(t, operations.StepStatusSkipped, resp.Step(id).Status, id)
			}
		})
	}
}
