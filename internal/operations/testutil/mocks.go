package testutil

import (
	"context"
	"sync"
	"time"

	"macrostress/internal/operations"
)

// MockWebSocketHub captures broadcast events.
type MockWebSocketHub struct {
	mu       sync.Mutex
	Messages []WebSocketMessage
}

// WebSocketMessage is one captured broadcast.
type WebSocketMessage struct {
	EventType string
	Step      string
	Status    string
	Metadata  interface{}
	Time      time.Time
}

// BroadcastUpdate records the event.
func (m *MockWebSocketHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, WebSocketMessage{
		EventType: eventType,
		Step:      step,
		Status:    status,
		Metadata:  metadata,
		Time:      time.Now(),
	})
}

// GetMessages returns all captured messages
func (m *MockWebSocketHub) GetMessages() []WebSocketMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := make([]WebSocketMessage, len(m.Messages))
	copy(messages, m.Messages)
	return messages
}

// LastSnapshot returns the most recent operation snapshot, or nil.
func (m *MockWebSocketHub) LastSnapshot() *operations.OperationSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.Messages) - 1; i >= 0; i-- {
		if snap, ok := m.Messages[i].Metadata.(*operations.OperationSnapshot); ok {
			return snap
		}
	}
	return nil
}

// MockStage is a configurable Step.
type MockStage struct {
	IDValue           string
	NameValue         string
	DependenciesValue []string
	ExecuteFunc       func(ctx context.Context, state *operations.OperationState) error
	ValidateFunc      func(state *operations.OperationState) error

	mu    sync.Mutex
	calls int
}

func (m *MockStage) ID() string   { return m.IDValue }
func (m *MockStage) Name() string { return m.NameValue }

func (m *MockStage) GetDependencies() []string { return m.DependenciesValue }

func (m *MockStage) Execute(ctx context.Context, state *operations.OperationState) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, state)
	}
	return nil
}

func (m *MockStage) Validate(state *operations.OperationState) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(state)
	}
	return nil
}

// Calls returns how many times Execute ran.
func (m *MockStage) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
