package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	"macrostress/internal/config"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/exporter"
	"macrostress/internal/infrastructure"
	"macrostress/internal/ingest"
	"macrostress/internal/panel"
	"macrostress/internal/projection"
	"macrostress/internal/satellite"
	"macrostress/internal/scenario"
	"macrostress/internal/synthetic"
	"macrostress/internal/trough"
)

// StageOptions carries the optional collaborators of the stress test steps.
type StageOptions struct {
	Metrics *infrastructure.StressMetrics
}

func stageLogger(logger *slog.Logger, id string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("step", id))
}

// LoadHistoryStage loads the macro history and the loss rates the satellite
// models are fitted on.
type LoadHistoryStage struct {
	BaseStage
	logger *slog.Logger
}

// NewLoadHistoryStage creates the load_history step.
func NewLoadHistoryStage(logger *slog.Logger) *LoadHistoryStage {
	return &LoadHistoryStage{
		BaseStage: NewBaseStage(StageIDLoadHistory, StageNameLoadHistory, nil),
		logger:    stageLogger(logger, StageIDLoadHistory),
	}
}

// Validate checks that the history source has what it needs.
func (s *LoadHistoryStage) Validate(state *OperationState) error {
	h := state.Request.History
	switch h.Source {
	case config.HistorySynthetic:
		if h.Periods <= 0 {
			return apperrors.NewValidationError("synthetic history needs a positive period count, got %d", h.Periods)
		}
	case config.HistoryProcessed:
		if h.MacroPath == "" {
			return apperrors.NewValidationError("processed history needs a macro history path")
		}
	case config.HistoryRaw:
		if h.RawDir == "" {
			return apperrors.NewValidationError("raw history needs a raw data directory")
		}
	default:
		return apperrors.NewValidationError("unknown history source %q", h.Source)
	}
	return nil
}

// Execute loads or generates the history.
func (s *LoadHistoryStage) Execute(ctx context.Context, state *OperationState) error {
	h := state.Request.History
	var (
		macro, lossRates *panel.Frame
		err              error
	)

	switch h.Source {
	case config.HistorySynthetic:
		start := h.Start
		if start.IsZero() {
			start = synthetic.DefaultStart
		}
		macro, lossRates, err = synthetic.MakeHistory(start, h.Periods, h.Seed)
		if err != nil {
			return err
		}
	case config.HistoryProcessed:
		macro, err = ingest.LoadMacroHistory(h.MacroPath)
		if err != nil {
			return err
		}
	case config.HistoryRaw:
		macro, err = ingest.ProcessRawDir(h.RawDir)
		if err != nil {
			return err
		}
		if h.MacroPath != "" {
			if err := ingest.SaveMacroHistory(h.MacroPath, macro); err != nil {
				return err
			}
			s.logger.InfoContext(ctx, "macro_history_saved", slog.String("path", h.MacroPath))
		}
	}
	if macro.Empty() {
		return apperrors.NewValidationError("macro history from %s source is empty", h.Source)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if lossRates == nil {
		state.ReportProgress(s.ID(), 60, "synthesising loss rates")
		if lossRates, err = synthetic.LossRatesFor(macro, h.Seed); err != nil {
			return err
		}
	}

	a := state.Artefacts
	a.HistorySource = h.Source
	a.Macro = macro
	a.LossRates = lossRates
	state.SetContext(ContextKeyHistoryRows, macro.Len())

	s.logger.InfoContext(ctx, "history_loaded",
		slog.String("source", h.Source),
		slog.Int("rows", macro.Len()),
		slog.String("first", macro.Index()[0].String()),
		slog.String("last", macro.Index()[macro.Len()-1].String()))
	return nil
}

// BuildBanksStage builds the starting balance sheets.
type BuildBanksStage struct {
	BaseStage
	logger *slog.Logger
}

// NewBuildBanksStage creates the build_banks step.
func NewBuildBanksStage(logger *slog.Logger) *BuildBanksStage {
	return &BuildBanksStage{
		BaseStage: NewBaseStage(StageIDBuildBanks, StageNameBuildBanks, nil),
		logger:    stageLogger(logger, StageIDBuildBanks),
	}
}

// Execute builds every configured bank, or only the requested one.
func (s *BuildBanksStage) Execute(ctx context.Context, state *OperationState) error {
	cfg := state.Request.BankConfig
	if cfg == nil {
		var err error
		if cfg, err = balancesheet.DefaultConfig(); err != nil {
			return err
		}
	}

	banks, err := balancesheet.MakeBanks(cfg)
	if err != nil {
		return err
	}
	banks, err = balancesheet.SelectBanks(banks, state.Request.Bank)
	if err != nil {
		return err
	}
	state.Artefacts.Banks = banks

	names := make([]string, len(banks))
	for i, b := range banks {
		names[i] = b.Name()
	}
	s.logger.InfoContext(ctx, "banks_built",
		slog.Int("count", len(banks)),
		slog.String("banks", strings.Join(names, ", ")))
	return nil
}

// GenerateScenariosStage builds the baseline and adverse macro paths.
type GenerateScenariosStage struct {
	BaseStage
	logger *slog.Logger
}

// NewGenerateScenariosStage creates the generate_scenarios step.
func NewGenerateScenariosStage(logger *slog.Logger) *GenerateScenariosStage {
	return &GenerateScenariosStage{
		BaseStage: NewBaseStage(StageIDGenerateScenarios, StageNameGenerateScenarios, nil),
		logger:    stageLogger(logger, StageIDGenerateScenarios),
	}
}

// Execute generates the scenario set.
func (s *GenerateScenariosStage) Execute(ctx context.Context, state *OperationState) error {
	set, err := scenario.Generate(state.Request.Scenario)
	if err != nil {
		return err
	}
	state.Artefacts.Scenarios = set

	p := state.Request.Scenario
	s.logger.InfoContext(ctx, "scenarios_generated",
		slog.String("scenarios", strings.Join(set.Names(), ", ")),
		slog.Int("horizon", p.Horizon),
		slog.Float64("severity", p.Severity),
		slog.Float64("persistence", p.Persistence))
	return nil
}

// FitModelsStage fits one satellite model per portfolio bucket.
type FitModelsStage struct {
	BaseStage
	logger *slog.Logger
}

// NewFitModelsStage creates the fit_models step.
func NewFitModelsStage(logger *slog.Logger) *FitModelsStage {
	return &FitModelsStage{
		BaseStage: NewBaseStage(StageIDFitModels, StageNameFitModels, []string{StageIDLoadHistory}),
		logger:    stageLogger(logger, StageIDFitModels),
	}
}

// Validate requires the loaded history.
func (s *FitModelsStage) Validate(state *OperationState) error {
	if state.Artefacts.Macro == nil || state.Artefacts.LossRates == nil {
		return apperrors.NewValidationError("no history loaded")
	}
	return nil
}

// Execute fits the models.
func (s *FitModelsStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artefacts
	models, err := satellite.FitBucketModels(a.Macro, a.LossRates, balancesheet.Categories())
	if err != nil {
		return err
	}
	a.Models = models

	rSquared := make(map[string]float64, len(models))
	for _, bucket := range satellite.SortedBuckets(models) {
		ols, ok := models[bucket].(*satellite.OLSModel)
		if !ok {
			continue
		}
		rSquared[bucket] = ols.RSquared()
		s.logger.DebugContext(ctx, "model_fitted",
			slog.String("bucket", bucket),
			slog.Int("nobs", ols.NObs()),
			slog.Int("rank", ols.Rank()),
			slog.Float64("r_squared", ols.RSquared()))
	}
	state.SetContext(ContextKeyRSquared, rSquared)

	s.logger.InfoContext(ctx, "models_fitted", slog.Int("buckets", len(models)))
	return nil
}

// ProjectLossesStage projects bucket loss rates under every scenario.
type ProjectLossesStage struct {
	BaseStage
	logger *slog.Logger
}

// NewProjectLossesStage creates the project_losses step.
func NewProjectLossesStage(logger *slog.Logger) *ProjectLossesStage {
	return &ProjectLossesStage{
		BaseStage: NewBaseStage(StageIDProjectLosses, StageNameProjectLosses,
			[]string{StageIDFitModels, StageIDGenerateScenarios}),
		logger: stageLogger(logger, StageIDProjectLosses),
	}
}

// Execute projects the loss rates.
func (s *ProjectLossesStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artefacts
	projected, err := projection.ProjectScenarios(a.Models, a.Scenarios)
	if err != nil {
		return err
	}
	a.Projected = projected

	s.logger.InfoContext(ctx, "losses_projected",
		slog.String("scenarios", strings.Join(projected.Names(), ", ")))
	return nil
}

// RunCapitalStage runs every bank's CET1 path under every scenario.
type RunCapitalStage struct {
	BaseStage
	logger *slog.Logger
}

// NewRunCapitalStage creates the run_capital step.
func NewRunCapitalStage(logger *slog.Logger) *RunCapitalStage {
	return &RunCapitalStage{
		BaseStage: NewBaseStage(StageIDRunCapital, StageNameRunCapital,
			[]string{StageIDProjectLosses, StageIDBuildBanks}),
		logger: stageLogger(logger, StageIDRunCapital),
	}
}

// Validate requires at least one bank.
func (s *RunCapitalStage) Validate(state *OperationState) error {
	if len(state.Artefacts.Banks) == 0 {
		return apperrors.NewValidationError("no banks to stress")
	}
	return nil
}

// Execute runs the capital engine and the per-bucket loss breakdown.
func (s *RunCapitalStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artefacts
	results, err := capital.RunSystem(a.Banks, a.Projected)
	if err != nil {
		return err
	}
	state.ReportProgress(s.ID(), 50, fmt.Sprintf("%d result rows", results.Len()))

	losses, err := capital.ComputeLossesByBucket(a.Banks, a.Projected)
	if err != nil {
		return err
	}
	a.Results = results
	a.Losses = losses

	s.logger.InfoContext(ctx, "capital_paths_computed",
		slog.Int("rows", results.Len()),
		slog.Int("bucket_losses", len(losses)))
	return nil
}

// TroughSummaryStage finds each bank's lowest CET1 ratio per scenario.
type TroughSummaryStage struct {
	BaseStage
	logger  *slog.Logger
	metrics *infrastructure.StressMetrics
}

// NewTroughSummaryStage creates the trough_summary step.
func NewTroughSummaryStage(logger *slog.Logger, options *StageOptions) *TroughSummaryStage {
	if options == nil {
		options = &StageOptions{}
	}
	return &TroughSummaryStage{
		BaseStage: NewBaseStage(StageIDTroughSummary, StageNameTroughSummary, []string{StageIDRunCapital}),
		logger:    stageLogger(logger, StageIDTroughSummary),
		metrics:   options.Metrics,
	}
}

// Execute summarises the results against the request's hurdle.
func (s *TroughSummaryStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artefacts
	rows, err := trough.ComputeTroughSummary(a.Results, a.Banks, state.Request.Hurdle)
	if err != nil {
		return err
	}
	a.Trough = rows

	perScenario := make(map[string]int)
	for _, r := range trough.Breaches(rows) {
		perScenario[r.Scenario]++
	}
	for _, name := range a.Scenarios.Names() {
		s.metrics.RecordBreaches(ctx, name, perScenario[name])
	}

	breaches := len(trough.Breaches(rows))
	shortfall := trough.SystemShortfall(rows)
	state.SetContext(ContextKeyBreaches, breaches)
	state.SetContext(ContextKeySystemShortfall, shortfall)

	for _, r := range rows {
		s.logger.DebugContext(ctx, "trough",
			slog.String("scenario", r.Scenario),
			slog.String("bank", r.Bank),
			slog.String("quarter", r.TroughQuarter.String()),
			slog.Float64("ratio", r.TroughCET1Ratio),
			slog.Bool("breach", r.Breach))
	}
	s.logger.InfoContext(ctx, "trough_summary_computed",
		slog.Int("rows", len(rows)),
		slog.Int("breaches", breaches),
		slog.Float64("hurdle", state.Request.Hurdle))
	return nil
}

// WriteReportsStage writes the CSV tables and, if asked, the workbook.
type WriteReportsStage struct {
	BaseStage
	logger *slog.Logger
}

// NewWriteReportsStage creates the write_reports step.
func NewWriteReportsStage(logger *slog.Logger) *WriteReportsStage {
	return &WriteReportsStage{
		BaseStage: NewBaseStage(StageIDWriteReports, StageNameWriteReports, []string{StageIDTroughSummary}),
		logger:    stageLogger(logger, StageIDWriteReports),
	}
}

// Enabled reports whether the request asked for files.
func (s *WriteReportsStage) Enabled(state *OperationState) (bool, string) {
	if !state.Request.WriteReports && !state.Request.WriteWorkbook {
		return false, "not requested"
	}
	return true, ""
}

// Validate requires an output directory.
func (s *WriteReportsStage) Validate(state *OperationState) error {
	if state.Request.OutputDir == "" {
		return apperrors.NewValidationError("no output directory for reports")
	}
	return nil
}

// Execute writes the report files.
func (s *WriteReportsStage) Execute(ctx context.Context, state *OperationState) error {
	a := state.Artefacts
	report := exporter.Report{
		Banks:     a.Banks,
		Scenarios: a.Scenarios,
		LossRates: a.Projected,
		Results:   a.Results,
		Trough:    a.Trough,
		Losses:    a.Losses,
	}

	var written []string
	if state.Request.WriteReports {
		files, err := exporter.WriteReport(exporter.NewCSVWriter(state.Request.OutputDir), report)
		written = append(written, files...)
		if err != nil {
			a.Written = written
			return err
		}
		state.ReportProgress(s.ID(), 70, fmt.Sprintf("%d tables written", len(files)))
	}
	if state.Request.WriteWorkbook {
		path := state.Request.WorkbookPath
		if path == "" {
			path = filepath.Join(state.Request.OutputDir, config.WorkbookFile)
		}
		if err := exporter.WriteWorkbook(path, report); err != nil {
			a.Written = written
			return err
		}
		written = append(written, path)
	}
	a.Written = written
	state.SetContext(ContextKeyFilesWritten, len(written))

	s.logger.InfoContext(ctx, "reports_written",
		slog.Int("files", len(written)),
		slog.String("dir", state.Request.OutputDir))
	return nil
}

// StageFactory returns the stress test steps in registration order.
func StageFactory(logger *slog.Logger, options *StageOptions) []Step {
	return []Step{
		NewLoadHistoryStage(logger),
		NewBuildBanksStage(logger),
		NewGenerateScenariosStage(logger),
		NewFitModelsStage(logger),
		NewProjectLossesStage(logger),
		NewRunCapitalStage(logger),
		NewTroughSummaryStage(logger, options),
		NewWriteReportsStage(logger),
	}
}

// NewStressTestRegistry registers the stress test steps.
func NewStressTestRegistry(logger *slog.Logger, options *StageOptions) (*Registry, error) {
	registry := NewRegistry()
	for _, step := range StageFactory(logger, options) {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	if err := registry.ValidateDependencies(); err != nil {
		return nil, err
	}
	return registry, nil
}
