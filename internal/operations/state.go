package operations

import (
	"sync"
	"time"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	"macrostress/internal/panel"
	"macrostress/internal/projection"
	"macrostress/internal/satellite"
	"macrostress/internal/scenario"
	"macrostress/internal/trough"
)

// OperationStatusValue represents the overall operation status enum
type OperationStatusValue string

const (
	OperationStatusPending   OperationStatusValue = "pending"
	OperationStatusRunning   OperationStatusValue = "running"
	OperationStatusCompleted OperationStatusValue = "completed"
	OperationStatusFailed    OperationStatusValue = "failed"
	OperationStatusCancelled OperationStatusValue = "cancelled"
)

// Artefacts are the values steps hand to each other. Each step writes its own
// fields; steps run one at a time so the struct needs no lock of its own.
type Artefacts struct {
	HistorySource string
	Macro         *panel.Frame
	LossRates     *panel.Frame

	Banks     []*balancesheet.Bank
	Scenarios scenario.Set
	Models    map[string]satellite.Model
	Projected *projection.Projected

	Results *capital.SystemResults
	Losses  []capital.BucketLoss
	Trough  []trough.Row

	Written []string
}

// ProgressFunc receives step progress between 0 and 100.
type ProgressFunc func(stepID string, progress float64, message string)

// OperationState represents the complete state of a operation execution
type OperationState struct {
	mu sync.RWMutex

	ID        string               `json:"id"`
	Status    OperationStatusValue `json:"status"`
	StartTime time.Time            `json:"start_time"`
	EndTime   *time.Time           `json:"end_time,omitempty"`

	Request   RunRequest `json:"request"`
	Artefacts *Artefacts `json:"-"`

	Steps map[string]*StepState `json:"steps"`
	// order lists step IDs in execution order.
	order []string

	// Context carries small run facts for logging and progress events.
	Context map[string]interface{} `json:"context"`

	Error error `json:"-"`

	progress ProgressFunc
}

// NewOperationState creates a new operation state
func NewOperationState(id string, req RunRequest) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		Request:   req,
		Artefacts: &Artefacts{},
		Steps:     make(map[string]*StepState),
		Context:   make(map[string]interface{}),
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	p.Error = err
}

// Cancel marks the operation as cancelled
func (p *OperationState) Cancel(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCancelled
	p.Error = err
}

// GetStatus returns the run status.
func (p *OperationState) GetStatus() OperationStatusValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status
}

// GetStage returns the state of a specific Step
func (p *OperationState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage registers the state of a step; the first registration fixes its
// position in StepsInOrder.
func (p *OperationState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.Steps[stageID]; !exists {
		p.order = append(p.order, stageID)
	}
	p.Steps[stageID] = state
}

// StepsInOrder returns copies of the step states in execution order.
func (p *OperationState) StepsInOrder() []*StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*StepState, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.Steps[id].Clone())
	}
	return out
}

// GetContext retrieves a value from the operation context
func (p *OperationState) GetContext(key string) (interface{}, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.Context[key]
	return val, ok
}

// SetContext sets a value in the operation context
func (p *OperationState) SetContext(key string, value interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Context[key] = value
}

// ReportProgress forwards step progress to the run's listener, if any.
func (p *OperationState) ReportProgress(stepID string, progress float64, message string) {
	if s := p.GetStage(stepID); s != nil {
		s.UpdateProgress(progress, message)
	}
	p.mu.RLock()
	fn := p.progress
	p.mu.RUnlock()
	if fn != nil {
		fn(stepID, progress, message)
	}
}

func (p *OperationState) setProgressFunc(fn ProgressFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = fn
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// HasFailures returns true if any Step has failed
func (p *OperationState) HasFailures() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, step := range p.Steps {
		if step.GetStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}

// IsComplete returns true if all steps are completed or skipped
func (p *OperationState) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, step := range p.Steps {
		if !step.GetStatus().IsTerminal() {
			return false
		}
	}
	return true
}

// Clone copies the state for readers. Artefacts are shared, not copied.
func (p *OperationState) Clone() *OperationState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clone := &OperationState{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Request:   p.Request,
		Artefacts: p.Artefacts,
		Steps:     make(map[string]*StepState, len(p.Steps)),
		order:     append([]string(nil), p.order...),
		Context:   make(map[string]interface{}, len(p.Context)),
		Error:     p.Error,
	}
	if p.EndTime != nil {
		endTime := *p.EndTime
		clone.EndTime = &endTime
	}
	for k, v := range p.Steps {
		clone.Steps[k] = v.Clone()
	}
	for k, v := range p.Context {
		clone.Context[k] = v
	}
	return clone
}
