package operations

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster owns the progress snapshots of every run and pushes the
// complete snapshot to the hub after each change. Updates are applied one at
// a time by a single goroutine.
type StatusBroadcaster struct {
	mu         sync.RWMutex
	operations map[string]*OperationSnapshot
	hub        WebSocketHub
	logger     *slog.Logger
	updates    chan updateRequest
	stop       chan struct{}
	stopOnce   sync.Once
}

// OperationSnapshot is the progress view of one run sent to clients.
type OperationSnapshot struct {
	OperationID string         `json:"operation_id"`
	Status      string         `json:"status"`   // pending|running|completed|failed|cancelled
	Progress    int            `json:"progress"` // 0-100
	CurrentStep string         `json:"current_step"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single step
type StepSnapshot struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Status   string                 `json:"status"` // pending|active|completed|failed|skipped
	Progress int                    `json:"progress"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type updateRequest struct {
	operationID string
	updateFunc  func(*OperationSnapshot)
	done        chan struct{}
}

// NewStatusBroadcaster starts a broadcaster. hub may be nil, in which case
// snapshots are kept but not pushed anywhere.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		operations: make(map[string]*OperationSnapshot),
		hub:        hub,
		logger:     logger,
		updates:    make(chan updateRequest, 100),
		stop:       make(chan struct{}),
	}
	go sb.processUpdates()
	return sb
}

func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.operations[req.operationID]
	if !exists {
		now := time.Now()
		snapshot = &OperationSnapshot{
			OperationID: req.operationID,
			Status:      string(OperationStatusPending),
			StartedAt:   now,
			UpdatedAt:   now,
			Steps:       []StepSnapshot{},
		}
		sb.operations[req.operationID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if len(snapshot.Steps) > 0 {
		total := 0
		for _, step := range snapshot.Steps {
			total += step.Progress
		}
		snapshot.Progress = total / len(snapshot.Steps)
	}

	if isTerminalStatus(snapshot.Status) && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}
	out := snapshot.clone()
	sb.mu.Unlock()

	sb.broadcast(out)
}

func isTerminalStatus(status string) bool {
	switch OperationStatusValue(status) {
	case OperationStatusCompleted, OperationStatusFailed, OperationStatusCancelled:
		return true
	}
	return false
}

func (sb *StatusBroadcaster) broadcast(snapshot *OperationSnapshot) {
	if sb.hub == nil {
		return
	}
	sb.logger.Debug("broadcasting operation snapshot",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", snapshot.Status),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep),
	)
	sb.hub.BroadcastUpdate(EventTypeOperationSnapshot, snapshot.OperationID, snapshot.Status, snapshot)
}

// UpdateStatus applies updateFunc to the operation's snapshot and waits for
// the broadcast. After Stop it returns without applying anything.
func (sb *StatusBroadcaster) UpdateStatus(operationID string, updateFunc func(*OperationSnapshot)) {
	req := updateRequest{
		operationID: operationID,
		updateFunc:  updateFunc,
		done:        make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}
	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// CreateOperation initializes a snapshot whose steps are identified by the
// given stable step IDs, with their display names.
func (sb *StatusBroadcaster) CreateOperation(operationID string, stepIDs, stepNames []string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusPending)
		snapshot.Progress = 0
		snapshot.Steps = make([]StepSnapshot, len(stepIDs))
		for i, id := range stepIDs {
			name := id
			if i < len(stepNames) && stepNames[i] != "" {
				name = stepNames[i]
			}
			snapshot.Steps[i] = StepSnapshot{
				ID:     id,
				Name:   name,
				Status: string(StepStatusPending),
			}
		}
		snapshot.Message = "Operation created"
	})
}

// StartOperation marks an operation as running
func (sb *StatusBroadcaster) StartOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusRunning)
		snapshot.Message = "Operation started"
	})
}

func (sb *StatusBroadcaster) updateStep(operationID, stepID string, fn func(*OperationSnapshot, *StepSnapshot)) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		for i := range snapshot.Steps {
			if snapshot.Steps[i].ID == stepID {
				fn(snapshot, &snapshot.Steps[i])
				return
			}
		}
		sb.logger.Warn("progress for unknown step",
			slog.String("operation_id", operationID),
			slog.String("step", stepID))
	})
}

// StartStep marks a step as active.
func (sb *StatusBroadcaster) StartStep(operationID, stepID string) {
	sb.updateStep(operationID, stepID, func(op *OperationSnapshot, step *StepSnapshot) {
		step.Status = string(StepStatusActive)
		step.Progress = 0
		op.CurrentStep = step.Name
	})
}

// UpdateStepProgress updates a running step. Progress never moves backwards.
func (sb *StatusBroadcaster) UpdateStepProgress(operationID, stepID string, progress int, message string) {
	sb.UpdateStepWithMetadata(operationID, stepID, progress, message, nil)
}

// UpdateStepWithMetadata is UpdateStepProgress with metadata attached.
func (sb *StatusBroadcaster) UpdateStepWithMetadata(operationID, stepID string, progress int, message string, metadata map[string]interface{}) {
	progress = min(max(progress, 0), 99)
	sb.updateStep(operationID, stepID, func(op *OperationSnapshot, step *StepSnapshot) {
		if progress > step.Progress {
			step.Progress = progress
		}
		step.Message = message
		if metadata != nil {
			step.Metadata = metadata
		}
		step.Status = string(StepStatusActive)
		op.CurrentStep = step.Name
	})
}

// CompleteStep marks a step as completed
func (sb *StatusBroadcaster) CompleteStep(operationID, stepID string, message string) {
	sb.updateStep(operationID, stepID, func(_ *OperationSnapshot, step *StepSnapshot) {
		step.Status = string(StepStatusCompleted)
		step.Progress = 100
		step.Message = message
	})
}

// SkipStep marks a step as skipped. Skipped steps count as done for overall
// progress.
func (sb *StatusBroadcaster) SkipStep(operationID, stepID string, reason string) {
	sb.updateStep(operationID, stepID, func(_ *OperationSnapshot, step *StepSnapshot) {
		step.Status = string(StepStatusSkipped)
		step.Progress = 100
		step.Message = reason
	})
}

// FailStep marks a step as failed
func (sb *StatusBroadcaster) FailStep(operationID, stepID string, err error) {
	sb.updateStep(operationID, stepID, func(_ *OperationSnapshot, step *StepSnapshot) {
		step.Status = string(StepStatusFailed)
		if err != nil {
			step.Error = err.Error()
		}
	})
}

// CompleteOperation marks an operation as completed
func (sb *StatusBroadcaster) CompleteOperation(operationID string, message string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCompleted)
		snapshot.CurrentStep = ""
		snapshot.Message = message
	})
}

// FailOperation marks an operation as failed
func (sb *StatusBroadcaster) FailOperation(operationID string, err error) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusFailed)
		snapshot.Error = err.Error()
		snapshot.CurrentStep = ""
	})
}

// CancelOperation marks an operation as cancelled
func (sb *StatusBroadcaster) CancelOperation(operationID string) {
	sb.UpdateStatus(operationID, func(snapshot *OperationSnapshot) {
		snapshot.Status = string(OperationStatusCancelled)
		snapshot.CurrentStep = ""
		snapshot.Message = "Operation cancelled"
	})
}

// GetSnapshot returns a copy of the current snapshot for an operation.
func (sb *StatusBroadcaster) GetSnapshot(operationID string) (*OperationSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.operations[operationID]
	if !exists {
		return nil, false
	}
	return snapshot.clone(), true
}

// GetAllSnapshots returns all current operation snapshots
func (sb *StatusBroadcaster) GetAllSnapshots() []*OperationSnapshot {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshots := make([]*OperationSnapshot, 0, len(sb.operations))
	for _, snapshot := range sb.operations {
		snapshots = append(snapshots, snapshot.clone())
	}
	return snapshots
}

// CleanupOldOperations drops finished snapshots older than maxAge.
func (sb *StatusBroadcaster) CleanupOldOperations(ctx context.Context, maxAge time.Duration) int {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, snapshot := range sb.operations {
		if !isTerminalStatus(snapshot.Status) || snapshot.CompletedAt == nil {
			continue
		}
		if age := now.Sub(*snapshot.CompletedAt); age > maxAge {
			delete(sb.operations, id)
			removed++
			sb.logger.InfoContext(ctx, "cleaned up old operation",
				slog.String("operation_id", id),
				slog.String("status", snapshot.Status),
				slog.Duration("age", age),
			)
		}
	}
	return removed
}

// Stop shuts down the broadcaster. It is safe to call more than once.
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() { close(sb.stop) })
}

func (s *OperationSnapshot) clone() *OperationSnapshot {
	c := *s
	c.Steps = make([]StepSnapshot, len(s.Steps))
	copy(c.Steps, s.Steps)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
