// Package satellite fits the loss-rate regressions that link macro conditions to
// credit outcomes, one independent linear model per portfolio bucket.
package satellite

import (
	"math"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/scenario"
)

// Const is the name of the intercept column and coefficient.
const Const = "const"

// DefaultRegressors returns the macro columns every bucket model is fitted on.
func DefaultRegressors() []string {
	return []string{scenario.GDPGrowth, scenario.UnemploymentRate, scenario.HousePriceGrowth}
}

// Coefficient is one named parameter of a fitted model.
type Coefficient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Model is a fitted loss-rate model. Implementations must be immutable and
// Predict must be a pure function of its input.
type Model interface {
	// Regressors lists the macro columns Predict needs, without the intercept.
	Regressors() []string
	// Coefficients returns every parameter, intercept first when present.
	Coefficients() []Coefficient
	// Coefficient looks up a parameter by name.
	Coefficient(name string) (float64, bool)
	// Predict evaluates the model row by row over x.
	Predict(x *panel.Frame) ([]float64, error)
}

// OLSModel is an ordinary-least-squares fit.
type OLSModel struct {
	names     []string
	beta      []float64
	intercept bool
	nobs      int
	rank      int
	rSquared  float64
	stdErr    float64
}

var _ Model = (*OLSModel)(nil)

// Regressors implements Model.
func (m *OLSModel) Regressors() []string {
	out := make([]string, 0, len(m.names))
	for _, n := range m.names {
		if n != Const {
			out = append(out, n)
		}
	}
	return out
}

// Coefficients implements Model.
func (m *OLSModel) Coefficients() []Coefficient {
	out := make([]Coefficient, len(m.names))
	for i, n := range m.names {
		out[i] = Coefficient{Name: n, Value: m.beta[i]}
	}
	return out
}

// Coefficient implements Model.
func (m *OLSModel) Coefficient(name string) (float64, bool) {
	for i, n := range m.names {
		if n == name {
			return m.beta[i], true
		}
	}
	return 0, false
}

// Predict implements Model. A const column in x is ignored; the intercept is
// always applied as 1.
func (m *OLSModel) Predict(x *panel.Frame) ([]float64, error) {
	if err := x.Require(m.Regressors()...); err != nil {
		return nil, err
	}
	out := make([]float64, x.Len())
	for j, n := range m.names {
		if n == Const {
			for i := range out {
				out[i] += m.beta[j]
			}
			continue
		}
		col, _ := x.Column(n)
		for i, v := range col {
			out[i] += m.beta[j] * v
		}
	}
	return out, nil
}

// NObs is the number of observations used in the fit.
func (m *OLSModel) NObs() int { return m.nobs }

// Rank is the numerical rank of the design matrix.
func (m *OLSModel) Rank() int { return m.rank }

// RSquared is the coefficient of determination. It is 1 for a perfect fit of a
// constant target and 0 for any other fit of one.
func (m *OLSModel) RSquared() float64 { return m.rSquared }

// ResidualStdErr is sqrt(SSR / (n - rank)), or 0 without residual degrees of freedom.
func (m *OLSModel) ResidualStdErr() float64 { return m.stdErr }

// HasIntercept reports whether the model was fitted with a const column.
func (m *OLSModel) HasIntercept() bool { return m.intercept }

func finite(vals []float64) error {
	for _, v := range vals {
		if math.IsInf(v, 0) {
			return apperrors.NewValidationError("regression input contains infinite values")
		}
	}
	return nil
}
