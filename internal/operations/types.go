package operations

import (
	"time"

	"macrostress/internal/balancesheet"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
)

// Stress test step identifiers, in execution order.
const (
	StageIDLoadHistory       = "load_history"
	StageIDBuildBanks        = "build_banks"
	StageIDGenerateScenarios = "generate_scenarios"
	StageIDFitModels         = "fit_models"
	StageIDProjectLosses     = "project_losses"
	StageIDRunCapital        = "run_capital"
	StageIDTroughSummary     = "trough_summary"
	StageIDWriteReports      = "write_reports"
)

// Step names
const (
	StageNameLoadHistory       = "Load Macro History"
	StageNameBuildBanks        = "Build Bank Balance Sheets"
	StageNameGenerateScenarios = "Generate Scenarios"
	StageNameFitModels         = "Fit Satellite Models"
	StageNameProjectLosses     = "Project Loss Rates"
	StageNameRunCapital        = "Run Capital Paths"
	StageNameTroughSummary     = "Trough Summary"
	StageNameWriteReports      = "Write Reports"
)

// Context keys for operation state
const (
	ContextKeyHistoryRows     = "history_rows"
	ContextKeyRSquared        = "r_squared"
	ContextKeyBreaches        = "breaches"
	ContextKeySystemShortfall = "system_shortfall"
	ContextKeyFilesWritten    = "files_written"
)

// WebSocket event types
const (
	EventTypeOperationSnapshot = "operation:snapshot"
)

// Default timeouts
const (
	DefaultStageTimeout       = 5 * time.Minute
	DefaultLoadHistoryTimeout = 10 * time.Minute
	DefaultWriteReportTimeout = 2 * time.Minute
)

// Reason recorded on steps skipped because an earlier step failed.
const skipReasonAborted = "skipped: an earlier step failed"

// RunRequest is everything one stress test run needs. Services build it from
// configuration and caller input; the manager does not read configuration.
type RunRequest struct {
	ID string `json:"id,omitempty"`

	Scenario scenario.Params `json:"scenario"`
	Hurdle   float64         `json:"hurdle"`

	// Bank restricts the run to one bank; empty runs the whole system.
	Bank string `json:"bank,omitempty"`
	// BankConfig overrides the built-in balance sheet configuration.
	BankConfig *balancesheet.Config `json:"-"`

	History HistoryRequest `json:"history"`

	WriteReports  bool   `json:"write_reports"`
	WriteWorkbook bool   `json:"write_workbook"`
	OutputDir     string `json:"output_dir,omitempty"`
	WorkbookPath  string `json:"workbook_path,omitempty"`
}

// HistoryRequest selects where the fitting history comes from.
type HistoryRequest struct {
	Source  string          `json:"source"`
	Start   quarter.Quarter `json:"start"`
	Periods int             `json:"periods"`
	Seed    uint64          `json:"seed"`

	// MacroPath is read for the processed source and written after a raw
	// ingest when non-empty.
	MacroPath string `json:"macro_path,omitempty"`
	RawDir    string `json:"raw_dir,omitempty"`
}

// OperationResponse represents the response from a operation execution
type OperationResponse struct {
	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
	Steps     []*StepState         `json:"steps"`
	Error     string               `json:"error,omitempty"`

	// Artefacts holds the run outputs. Nil fields were not produced.
	Artefacts *Artefacts `json:"-"`
}

// Step returns the state of step id, or nil.
func (r *OperationResponse) Step(id string) *StepState {
	for _, s := range r.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}
