package http

import (
	"context"

	"macrostress/internal/balancesheet"
	"macrostress/internal/scenario"
	"macrostress/internal/services"
)

// StressService is the part of services.StressTestService the handlers use.
type StressService interface {
	Run(ctx context.Context, req services.RunRequest) (*services.RunResult, error)
	Latest() (*services.RunResult, error)
	Cancel(runID string) error
	Scenarios(req services.ScenarioRequest) (scenario.Set, error)
	Banks() ([]*balancesheet.Bank, error)
	Bank(name string) (*balancesheet.Bank, error)
}

var _ StressService = (*services.StressTestService)(nil)
