package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"macrostress/internal/infrastructure"
)

// Manager runs the registered steps of a stress test in dependency order.
// Steps run one at a time. The first failure aborts the run and marks every
// step after it skipped; nothing is retried because every step is
// deterministic in its inputs.
type Manager struct {
	registry    *Registry
	config      *Config
	broadcaster *StatusBroadcaster
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *infrastructure.StressMetrics

	mu         sync.RWMutex
	operations map[string]*OperationState
	cancels    map[string]context.CancelFunc
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTelemetry records run and stage spans and metrics on t.
func WithTelemetry(t *infrastructure.Telemetry) ManagerOption {
	return func(m *Manager) {
		if t == nil {
			return
		}
		if t.Tracer != nil {
			m.tracer = t.Tracer
		}
		m.metrics = t.Metrics
	}
}

// NewManager creates a manager. hub may be nil.
func NewManager(hub WebSocketHub, registry *Registry, config *Config, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	m := &Manager{
		registry:   registry,
		config:     config,
		logger:     slog.Default(),
		tracer:     otel.Tracer(infrastructure.InstrumentationName),
		operations: make(map[string]*OperationState),
		cancels:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = infrastructure.WithComponent(m.logger, "operations")
	m.broadcaster = NewStatusBroadcaster(hub, m.logger)
	return m
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Close stops the status broadcaster.
func (m *Manager) Close() {
	m.broadcaster.Stop()
}

// Execute runs every registered step for req and returns the run's response.
// The response is non-nil whenever the run started, including failed and
// cancelled runs, and carries whatever artefacts were produced.
func (m *Manager) Execute(ctx context.Context, req RunRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		m.logger.ErrorContext(ctx, "invalid_step_graph", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to get dependency order: %w", err)
	}

	var cancel context.CancelFunc
	if m.config.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, m.config.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	state := NewOperationState(req.ID, req)
	if err := m.storeOperation(state, cancel); err != nil {
		return nil, err
	}
	defer m.removeOperation(req.ID)

	ctx, span := m.tracer.Start(ctx, "stress_test.run",
		trace.WithAttributes(
			attribute.String("run.id", req.ID),
			attribute.String("run.history_source", req.History.Source),
			attribute.Int("run.horizon", req.Scenario.Horizon),
			attribute.Float64("run.severity", req.Scenario.Severity),
			attribute.Float64("run.hurdle", req.Hurdle),
		))
	defer span.End()
	done := m.metrics.RunStarted(ctx)
	defer done()

	ids := make([]string, len(steps))
	names := make([]string, len(steps))
	for i, step := range steps {
		ids[i] = step.ID()
		names[i] = step.Name()
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	state.setProgressFunc(func(stepID string, progress float64, message string) {
		m.broadcaster.UpdateStepProgress(req.ID, stepID, int(progress), message)
	})

	m.broadcaster.CreateOperation(req.ID, ids, names)
	state.Start()
	m.broadcaster.StartOperation(req.ID)
	m.logger.InfoContext(ctx, "operation_started",
		slog.String("operation_id", req.ID),
		slog.Int("step_count", len(steps)))

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err == nil:
		state.Complete()
		m.broadcaster.CompleteOperation(req.ID, "Stress test completed")
		m.logger.InfoContext(ctx, "operation_completed",
			slog.String("operation_id", req.ID),
			slog.Duration("duration", state.Duration()))
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel(err)
		m.broadcaster.CancelOperation(req.ID)
		m.logger.WarnContext(ctx, "operation_cancelled",
			slog.String("operation_id", req.ID),
			slog.String("step", FailedStep(err)))
	default:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
		m.logger.ErrorContext(ctx, "operation_failed",
			slog.String("operation_id", req.ID),
			slog.String("step", FailedStep(err)),
			slog.String("error", err.Error()))
	}
	m.metrics.RecordRun(ctx, state.Duration(), err)
	infrastructure.RecordError(ctx, err)

	return m.createResponse(state), err
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		stepState := state.GetStage(step.ID())
		if stepState.GetStatus() == StepStatusSkipped {
			m.logger.InfoContext(ctx, "stage_skipped",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("reason", stepState.Clone().Message))
			continue
		}

		if err := ctx.Err(); err != nil {
			m.skipSteps(state, steps[i:], "skipped: run cancelled")
			return NewCancellationError(step.ID(), err)
		}

		if opt, ok := step.(Optional); ok {
			if enabled, reason := opt.Enabled(state); !enabled {
				m.skip(state, step.ID(), reason)
				m.skipDependentStages(state, steps, step.ID())
				continue
			}
		}

		if err := m.checkDependencies(state, step); err != nil {
			stepState.Fail(err)
			m.broadcaster.FailStep(state.ID, step.ID(), err)
			m.skipSteps(state, steps[i+1:], skipReasonAborted)
			return err
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(steps)))

		if err := m.executeStage(ctx, state, step); err != nil {
			m.logger.ErrorContext(ctx, "stage_failed",
				slog.String("operation_id", state.ID),
				slog.String("step", step.ID()),
				slog.String("error", err.Error()))
			m.skipSteps(state, steps[i+1:], skipReasonAborted)
			return err
		}

		m.logger.InfoContext(ctx, "stage_completed_successfully",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Duration("duration", stepState.Duration()))
	}

	m.logger.InfoContext(ctx, "all_stages_completed", slog.String("operation_id", state.ID))
	return nil
}

func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	id := step.ID()
	stepState := state.GetStage(id)

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(id, err)
		stepState.Fail(err)
		m.broadcaster.FailStep(state.ID, id, err)
		m.metrics.RecordStage(ctx, id, 0, verr)
		return verr
	}

	timeout := m.config.GetStageTimeout(id)
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stageCtx, span := m.tracer.Start(stageCtx, "stress_test.stage."+id,
		trace.WithAttributes(
			attribute.String("run.id", state.ID),
			attribute.String("stage.id", id),
		))
	defer span.End()

	stepState.Start()
	m.broadcaster.StartStep(state.ID, id)

	start := time.Now()
	err := step.Execute(stageCtx, state)
	duration := time.Since(start)
	m.metrics.RecordStage(ctx, id, duration, err)

	if err != nil {
		var opErr *OperationError
		switch {
		case ctx.Err() != nil:
			opErr = NewCancellationError(id, err)
		case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
			opErr = NewTimeoutError(id, timeout.String(), err)
		default:
			opErr = NewExecutionError(id, err)
		}
		infrastructure.RecordError(stageCtx, opErr)
		stepState.Fail(err)
		m.broadcaster.FailStep(state.ID, id, err)
		return opErr
	}

	stepState.Complete()
	m.broadcaster.CompleteStep(state.ID, id, "completed")
	return nil
}

func (m *Manager) skip(state *OperationState, stepID, reason string) {
	if s := state.GetStage(stepID); s != nil && !s.GetStatus().IsTerminal() {
		s.Skip(reason)
		m.broadcaster.SkipStep(state.ID, stepID, reason)
	}
}

func (m *Manager) skipSteps(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		m.skip(state, step.ID(), reason)
	}
}

// skipDependentStages skips every step that transitively depends on stepID.
func (m *Manager) skipDependentStages(state *OperationState, steps []Step, stepID string) {
	for _, step := range steps {
		for _, dep := range step.GetDependencies() {
			if dep == stepID {
				m.skip(state, step.ID(), fmt.Sprintf("skipped: dependency %s did not run", stepID))
				m.skipDependentStages(state, steps, step.ID())
				break
			}
		}
	}
}

func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil || depState.GetStatus() != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep)
		}
	}
	return nil
}

func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:        snapshot.ID,
		Status:    snapshot.Status,
		StartedAt: snapshot.StartTime,
		Duration:  snapshot.Duration(),
		Steps:     snapshot.StepsInOrder(),
		Artefacts: snapshot.Artefacts,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}
	return resp
}

// GetOperation returns a copy of a running operation's state.
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.operations[id]
	if !exists {
		return nil, ErrOperationNotFound
	}
	return state.Clone(), nil
}

// ListOperations returns all active operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	operations := make([]*OperationState, 0, len(m.operations))
	for _, state := range m.operations {
		operations = append(operations, state.Clone())
	}
	return operations
}

// CancelOperation cancels a running operation. The run stops before its next
// step and Execute returns a cancellation error.
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	cancel, exists := m.cancels[id]
	m.mu.RUnlock()
	if !exists {
		return ErrOperationNotRunning
	}
	cancel()
	return nil
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.operations[state.ID]; exists {
		return &OperationError{
			Type:    ErrorTypeInvalidState,
			Message: fmt.Sprintf("operation %s is already running", state.ID),
		}
	}
	m.operations[state.ID] = state
	m.cancels[state.ID] = cancel
	return nil
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
	delete(m.cancels, id)
}
