package testutil

import (
	"context"
	"errors"

	"macrostress/internal/operations"
)

// CreateSuccessfulStage returns a step that reports half progress and succeeds.
func CreateSuccessfulStage(id, name string, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			state.ReportProgress(id, 50, "working")
			return nil
		},
	}
}

// CreateFailingStage returns a step that fails with err.
func CreateFailingStage(id, name string, err error, deps ...string) *MockStage {
	if err == nil {
		err = errors.New("step failed")
	}
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			return err
		},
	}
}

// CreateBlockingStage returns a step that waits for ctx to end.
func CreateBlockingStage(id, name string, started chan<- struct{}, deps ...string) *MockStage {
	return &MockStage{
		IDValue:           id,
		NameValue:         name,
		DependenciesValue: deps,
		ExecuteFunc: func(ctx context.Context, state *operations.OperationState) error {
			if started != nil {
				close(started)
			}
			<-ctx.Done()
			return ctx.Err()
		},
	}
}
