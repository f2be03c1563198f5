// Package projection applies fitted satellite models to scenario macro paths to
// produce loss-rate panels.
package projection

import (
	"fmt"
	"math"

	"macrostress/internal/balancesheet"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/satellite"
	"macrostress/internal/scenario"
)

// ProjectLossRates predicts the model's loss rate for every scenario quarter and
// clips the result into [0,1]. A non-finite regressor or prediction is a
// Validation error.
func ProjectLossRates(m satellite.Model, path *panel.Frame) (panel.Series, error) {
	if m == nil {
		return panel.Series{}, apperrors.NewValidationError("model is required")
	}
	if path.Empty() {
		return panel.Series{}, apperrors.NewValidationError("scenario panel must be non-empty")
	}
	if err := path.Require(m.Regressors()...); err != nil {
		return panel.Series{}, fmt.Errorf("scenario: %w", err)
	}
	x, err := path.Select(m.Regressors()...)
	if err != nil {
		return panel.Series{}, err
	}
	idx := path.Index()
	for _, name := range x.Columns() {
		col, _ := x.Column(name)
		for i, v := range col {
			if !isFinite(v) {
				return panel.Series{}, apperrors.NewValidationError(
					"scenario regressor %s is not finite at %s: %g", name, idx[i], v)
			}
		}
	}
	pred, err := m.Predict(x)
	if err != nil {
		return panel.Series{}, err
	}
	for i, v := range pred {
		if !isFinite(v) {
			return panel.Series{}, apperrors.NewValidationError(
				"predicted loss rate is not finite at %s: %g", idx[i], v)
		}
		pred[i] = panel.Clip(v, 0, 1)
	}
	return panel.Series{Index: path.Index(), Values: pred}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ProjectLossRatesAllBuckets builds a loss-rate panel with one column per model,
// in category order.
func ProjectLossRatesAllBuckets(models map[string]satellite.Model, path *panel.Frame) (*panel.Frame, error) {
	if len(models) == 0 {
		return nil, apperrors.NewValidationError("no satellite models supplied")
	}
	buckets := balancesheet.OrderBuckets(satellite.SortedBuckets(models))
	values := make(map[string][]float64, len(buckets))
	for _, bucket := range buckets {
		s, err := ProjectLossRates(models[bucket], path)
		if err != nil {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
		values[bucket] = s.Values
	}
	return panel.New(path.Index(), buckets, values)
}

// Projected maps scenario name to its loss-rate panel and remembers the order
// scenarios were projected in.
type Projected struct {
	order  []string
	panels map[string]*panel.Frame
}

// NewProjected builds a Projected from explicit panels, in the order given.
func NewProjected(names []string, panels map[string]*panel.Frame) (*Projected, error) {
	p := &Projected{panels: make(map[string]*panel.Frame, len(names))}
	for _, n := range names {
		f, ok := panels[n]
		if !ok {
			return nil, apperrors.NewLookupError("loss-rate panel for scenario", n)
		}
		if _, dup := p.panels[n]; dup {
			return nil, apperrors.NewValidationError("duplicate scenario %q", n)
		}
		p.order = append(p.order, n)
		p.panels[n] = f
	}
	return p, nil
}

// Names returns scenario names in projection order.
func (p *Projected) Names() []string { return append([]string(nil), p.order...) }

// Get returns the loss-rate panel for a scenario.
func (p *Projected) Get(name string) (*panel.Frame, error) {
	f, ok := p.panels[name]
	if !ok {
		return nil, apperrors.NewLookupError("scenario", name)
	}
	return f, nil
}

// ProjectScenarios projects every scenario in the set.
func ProjectScenarios(models map[string]satellite.Model, set scenario.Set) (*Projected, error) {
	panels := make(map[string]*panel.Frame, len(set))
	for _, s := range set {
		f, err := ProjectLossRatesAllBuckets(models, s.Path)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		panels[s.Name] = f
	}
	return NewProjected(set.Names(), panels)
}
