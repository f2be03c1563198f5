package scenario

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// Params controls Generate.
type Params struct {
	Start       quarter.Quarter `json:"start"`
	Horizon     int             `json:"horizon" validate:"gt=0,lte=400"`
	Severity    float64         `json:"severity" validate:"gte=0,lte=10"`
	Persistence float64         `json:"persistence" validate:"gte=0,lte=1"`
	Shocks      Shocks          `json:"shocks,omitempty" validate:"omitempty,dive"`
}

// DefaultParams returns the standard baseline/adverse configuration.
func DefaultParams() Params {
	return Params{
		Start:       DefaultStart,
		Horizon:     DefaultHorizon,
		Severity:    DefaultSeverity,
		Persistence: DefaultPersistence,
	}
}

// Named is one generated macro path.
type Named struct {
	Name string
	Path *panel.Frame
}

// Set holds scenarios in run order.
type Set []Named

// Names lists the scenario names in order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, n := range s {
		names[i] = n.Name
	}
	return names
}

// Get returns the named path.
func (s Set) Get(name string) (*panel.Frame, error) {
	for _, n := range s {
		if n.Name == name {
			return n.Path, nil
		}
	}
	return nil, apperrors.NewLookupError("scenario", name)
}

var validate = validator.New()

// Generate builds the baseline and adverse scenarios.
func Generate(p Params) (Set, error) {
	if err := validate.Struct(p); err != nil {
		return nil, apperrors.NewValidationError("invalid scenario parameters: %v", err)
	}
	if p.Start.IsZero() {
		p.Start = DefaultStart
	}
	shocks := p.Shocks
	if len(shocks) == 0 {
		shocks = DefaultShocks()
	}

	baseline, err := MakeBaseline(p.Start, p.Horizon)
	if err != nil {
		return nil, fmt.Errorf("baseline scenario: %w", err)
	}
	adverse, err := MakeAdverseWithShocks(baseline, shocks, p.Severity, p.Persistence)
	if err != nil {
		return nil, fmt.Errorf("adverse scenario: %w", err)
	}
	return Set{
		{Name: Baseline, Path: baseline},
		{Name: Adverse, Path: adverse},
	}, nil
}
