package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/exporter"
	"macrostress/internal/infrastructure"
	"macrostress/internal/operations"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
	"macrostress/internal/trough"
)

// RunRequest is a caller's stress test request. Unset fields take the
// configured run defaults.
type RunRequest struct {
	Start         string          `json:"start,omitempty"`
	Horizon       *int            `json:"horizon,omitempty" validate:"omitempty,gt=0,lte=400"`
	Severity      *float64        `json:"severity,omitempty" validate:"omitempty,gte=0,lte=10"`
	Persistence   *float64        `json:"persistence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Hurdle        *float64        `json:"hurdle,omitempty" validate:"omitempty,gte=0,lt=1"`
	Shocks        scenario.Shocks `json:"shocks,omitempty" validate:"omitempty,dive"`
	Bank          string          `json:"bank,omitempty" validate:"omitempty,max=100"`
	HistorySource string          `json:"history_source,omitempty" validate:"omitempty,oneof=synthetic processed raw"`
	Seed          *uint64         `json:"seed,omitempty"`
	WriteReports  *bool           `json:"write_reports,omitempty"`
	WriteWorkbook *bool           `json:"write_workbook,omitempty"`
}

// ScenarioRequest previews a scenario set without running the models.
type ScenarioRequest struct {
	Start       string   `json:"start,omitempty"`
	Horizon     *int     `json:"horizon,omitempty" validate:"omitempty,gt=0,lte=400"`
	Severity    *float64 `json:"severity,omitempty" validate:"omitempty,gte=0,lte=10"`
	Persistence *float64 `json:"persistence,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// RunSummary condenses a finished run.
type RunSummary struct {
	Banks           int                `json:"banks"`
	Scenarios       []string           `json:"scenarios"`
	ResultRows      int                `json:"result_rows"`
	Breaches        int                `json:"breaches"`
	SystemShortfall map[string]float64 `json:"system_shortfall"`
	Files           []string           `json:"files,omitempty"`
}

// RunResult is the outcome of one run as served to callers.
type RunResult struct {
	ID            string                          `json:"id"`
	Status        operations.OperationStatusValue `json:"status"`
	StartedAt     time.Time                       `json:"started_at"`
	DurationMS    int64                           `json:"duration_ms"`
	Scenario      scenario.Params                 `json:"scenario"`
	Hurdle        float64                         `json:"hurdle"`
	HistorySource string                          `json:"history_source"`
	Steps         []*operations.StepState         `json:"steps"`
	Summary       RunSummary                      `json:"summary"`
	Trough        []trough.Row                    `json:"trough"`
	Error         string                          `json:"error,omitempty"`

	artefacts *operations.Artefacts
}

// Results returns the full capital path table, or nil.
func (r *RunResult) Results() *capital.SystemResults {
	if r.artefacts == nil {
		return nil
	}
	return r.artefacts.Results
}

// Losses returns the per-bucket loss breakdown.
func (r *RunResult) Losses() []capital.BucketLoss {
	if r.artefacts == nil {
		return nil
	}
	return r.artefacts.Losses
}

// Banks returns the banks the run stressed.
func (r *RunResult) Banks() []*balancesheet.Bank {
	if r.artefacts == nil {
		return nil
	}
	return r.artefacts.Banks
}

// LossRates returns the projected bucket loss rates under one scenario.
func (r *RunResult) LossRates(scenarioName string) (*panel.Frame, error) {
	if r.artefacts == nil || r.artefacts.Projected == nil {
		return nil, apperrors.NewLookupError("scenario", scenarioName)
	}
	return r.artefacts.Projected.Get(scenarioName)
}

func newRunResult(resp *operations.OperationResponse, req operations.RunRequest) *RunResult {
	res := &RunResult{
		ID:            resp.ID,
		Status:        resp.Status,
		StartedAt:     resp.StartedAt,
		DurationMS:    resp.Duration.Milliseconds(),
		Scenario:      req.Scenario,
		Hurdle:        req.Hurdle,
		HistorySource: req.History.Source,
		Steps:         resp.Steps,
		Error:         resp.Error,
		artefacts:     resp.Artefacts,
	}
	a := resp.Artefacts
	if a == nil {
		return res
	}
	res.Trough = a.Trough
	res.Summary = RunSummary{
		Banks:           len(a.Banks),
		Scenarios:       a.Scenarios.Names(),
		Breaches:        len(trough.Breaches(a.Trough)),
		SystemShortfall: trough.SystemShortfall(a.Trough),
		Files:           a.Written,
	}
	if a.Results != nil {
		res.Summary.ResultRows = a.Results.Len()
	}
	return res
}

// StressTestService runs stress tests and keeps the latest successful result.
type StressTestService struct {
	manager    *operations.Manager
	defaults   config.RunConfig
	paths      *config.Paths
	bankConfig *balancesheet.Config
	validate   *validator.Validate
	logger     *slog.Logger

	mu     sync.RWMutex
	latest *RunResult
}

// NewStressTestService builds the step registry and manager. hub and tel may
// be nil.
func NewStressTestService(cfg *config.Config, paths *config.Paths, hub operations.WebSocketHub, tel *infrastructure.Telemetry, logger *slog.Logger) (*StressTestService, error) {
	logger = infrastructure.WithComponent(logger, "stress_service")

	banksFile := cfg.Run.BanksFile
	if banksFile == "" {
		if p := filepath.Join(paths.DataDir, config.BanksConfigFile); config.FileExists(p) {
			banksFile = p
		}
	}
	bankConfig, err := loadBankConfig(banksFile)
	if err != nil {
		return nil, err
	}

	var metrics *infrastructure.StressMetrics
	if tel != nil {
		metrics = tel.Metrics
	}
	registry, err := operations.NewStressTestRegistry(logger, &operations.StageOptions{Metrics: metrics})
	if err != nil {
		return nil, err
	}
	opCfg := operations.NewConfig()
	opCfg.RunTimeout = cfg.Server.RunTimeout

	manager := operations.NewManager(hub, registry, opCfg,
		operations.WithLogger(logger),
		operations.WithTelemetry(tel))

	logger.Info("stress_service_initialized",
		slog.String("banks_file", banksFile),
		slog.String("history_source", cfg.Run.History.Source),
		slog.String("output_dir", paths.OutputDir))

	return &StressTestService{
		manager:    manager,
		defaults:   cfg.Run,
		paths:      paths,
		bankConfig: bankConfig,
		validate:   validator.New(),
		logger:     logger,
	}, nil
}

func loadBankConfig(path string) (*balancesheet.Config, error) {
	if path == "" {
		return balancesheet.DefaultConfig()
	}
	return balancesheet.LoadConfig(path)
}

// Close stops the manager's broadcaster.
func (s *StressTestService) Close() {
	s.manager.Close()
}

// Run validates req, executes the pipeline and, on success, records the run
// as the latest. A failed run still returns its partial result.
func (s *StressTestService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	opReq, err := s.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := s.manager.Execute(ctx, opReq)
	if resp == nil {
		return nil, err
	}
	result := newRunResult(resp, opReq)
	if err != nil {
		return result, err
	}

	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()

	if opReq.WriteReports {
		s.appendRunLog(ctx, result)
	}
	s.logger.InfoContext(ctx, "stress_run_finished",
		slog.String("run_id", result.ID),
		slog.Int("breaches", result.Summary.Breaches),
		slog.Int64("duration_ms", result.DurationMS))
	return result, nil
}

func (s *StressTestService) appendRunLog(ctx context.Context, r *RunResult) {
	total := 0.0
	for _, v := range r.Summary.SystemShortfall {
		total += v
	}
	entry := exporter.RunLogEntry{
		RunID:           r.ID,
		FinishedAt:      r.StartedAt.Add(time.Duration(r.DurationMS) * time.Millisecond),
		HistorySource:   r.HistorySource,
		Scenarios:       len(r.Summary.Scenarios),
		Banks:           r.Summary.Banks,
		Breaches:        r.Summary.Breaches,
		SystemShortfall: total,
	}
	if _, err := exporter.AppendRunLog(exporter.NewCSVWriter(s.paths.OutputDir), entry); err != nil {
		s.logger.WarnContext(ctx, "run_log_append_failed", slog.String("error", err.Error()))
	}
}

func (s *StressTestService) buildRequest(req RunRequest) (operations.RunRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return operations.RunRequest{}, apperrors.NewValidationError("invalid run request: %v", err)
	}

	params, err := s.scenarioParams(ScenarioRequest{
		Start:       req.Start,
		Horizon:     req.Horizon,
		Severity:    req.Severity,
		Persistence: req.Persistence,
	})
	if err != nil {
		return operations.RunRequest{}, err
	}
	params.Shocks = req.Shocks

	histStart, err := s.defaults.History.StartQuarter()
	if err != nil {
		return operations.RunRequest{}, apperrors.NewValidationError("invalid history start %q", s.defaults.History.Start)
	}

	out := operations.RunRequest{
		Scenario:      params,
		Hurdle:        pick(req.Hurdle, s.defaults.Hurdle),
		Bank:          req.Bank,
		BankConfig:    s.bankConfig,
		WriteReports:  pick(req.WriteReports, s.defaults.WriteReports),
		WriteWorkbook: pick(req.WriteWorkbook, s.defaults.WriteWorkbook),
		OutputDir:     s.paths.OutputDir,
		WorkbookPath:  s.paths.OutputPath(config.WorkbookFile),
		History: operations.HistoryRequest{
			Source:    s.defaults.History.Source,
			Start:     histStart,
			Periods:   s.defaults.History.Periods,
			Seed:      pick(req.Seed, s.defaults.History.Seed),
			MacroPath: s.paths.MacroHistoryPath(),
			RawDir:    s.paths.RawDir,
		},
	}
	if req.HistorySource != "" {
		out.History.Source = req.HistorySource
	}
	return out, nil
}

func pick[T any](v *T, fallback T) T {
	if v != nil {
		return *v
	}
	return fallback
}

func (s *StressTestService) scenarioParams(req ScenarioRequest) (scenario.Params, error) {
	if err := s.validate.Struct(req); err != nil {
		return scenario.Params{}, apperrors.NewValidationError("invalid scenario request: %v", err)
	}
	startText := req.Start
	if startText == "" {
		startText = s.defaults.Start
	}
	start, err := quarter.Parse(startText)
	if err != nil {
		return scenario.Params{}, apperrors.NewValidationError("invalid start quarter %q", startText)
	}
	return scenario.Params{
		Start:       start,
		Horizon:     pick(req.Horizon, s.defaults.Horizon),
		Severity:    pick(req.Severity, s.defaults.Severity),
		Persistence: pick(req.Persistence, s.defaults.Persistence),
	}, nil
}

// Scenarios generates the baseline and adverse paths for req.
func (s *StressTestService) Scenarios(req ScenarioRequest) (scenario.Set, error) {
	params, err := s.scenarioParams(req)
	if err != nil {
		return nil, err
	}
	return scenario.Generate(params)
}

// Banks builds the configured banks' starting positions.
func (s *StressTestService) Banks() ([]*balancesheet.Bank, error) {
	return balancesheet.MakeBanks(s.bankConfig)
}

// Bank returns one configured bank, matched case-insensitively.
func (s *StressTestService) Bank(name string) (*balancesheet.Bank, error) {
	banks, err := s.Banks()
	if err != nil {
		return nil, err
	}
	selected, err := balancesheet.SelectBanks(banks, name)
	if err != nil {
		return nil, err
	}
	return selected[0], nil
}

// Latest returns the most recent successful run.
func (s *StressTestService) Latest() (*RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, apperrors.NewNotFoundError("stress test run")
	}
	return s.latest, nil
}

// Cancel stops a run in progress.
func (s *StressTestService) Cancel(runID string) error {
	return s.manager.CancelOperation(runID)
}

// ActiveRuns counts runs in progress.
func (s *StressTestService) ActiveRuns() int {
	return len(s.manager.ListOperations())
}
