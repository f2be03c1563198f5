package panel

import (
	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

// Series is a single named column with its own quarter index.
type Series struct {
	Name   string
	Index  []quarter.Quarter
	Values []float64
}

// NewSeries validates that index and values line up.
func NewSeries(name string, index []quarter.Quarter, values []float64) (Series, error) {
	if len(index) != len(values) {
		return Series{}, apperrors.NewValidationError("series %q has %d values for %d quarters", name, len(values), len(index))
	}
	return Series{
		Name:   name,
		Index:  append([]quarter.Quarter(nil), index...),
		Values: append([]float64(nil), values...),
	}, nil
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Values) }

// Frame converts the series into a one-column Frame.
func (s Series) Frame() (*Frame, error) {
	return New(s.Index, []string{s.Name}, map[string][]float64{s.Name: s.Values})
}
