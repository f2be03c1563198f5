// Package synthetic generates reproducible macro and loss-rate histories for
// fitting satellite models when no downloaded history is available, and
// synthesises loss rates on top of a real macro history.
package synthetic

import (
	"math/rand/v2"

	"macrostress/internal/balancesheet"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
)

// Defaults for MakeHistory.
const (
	DefaultPeriods = 80
	DefaultSeed    = 184
)

// DefaultStart is the first synthetic quarter.
var DefaultStart = quarter.Quarter{Year: 2005, Q: 1}

// loading is one term of a loss-rate equation: coef × variable.
type loading struct {
	variable string
	coef     float64
}

// equation is intercept + Σ loadings + noise × N(0,1).
type equation struct {
	bucket    string
	intercept float64
	loadings  []loading
	noise     float64
}

// lossEquations are evaluated in this order, which fixes the draw order.
var lossEquations = []equation{
	{
		bucket:    balancesheet.MortgagesOO,
		intercept: 0.003,
		loadings:  []loading{{scenario.UnemploymentRate, 0.20}, {scenario.HousePriceGrowth, -0.10}},
		noise:     0.002,
	},
	{
		bucket:    balancesheet.ConsumerUnsecured,
		intercept: 0.006,
		loadings:  []loading{{scenario.UnemploymentRate, 0.35}, {scenario.GDPGrowth, -0.05}},
		noise:     0.003,
	},
	{
		bucket:    balancesheet.SMELoans,
		intercept: 0.005,
		loadings:  []loading{{scenario.GDPGrowth, -0.20}, {scenario.UnemploymentRate, 0.25}},
		noise:     0.003,
	},
	{
		bucket:    balancesheet.LargeCorpLoans,
		intercept: 0.002,
		loadings:  []loading{{scenario.GDPGrowth, -0.25}, {scenario.UnemploymentRate, 0.15}},
		noise:     0.002,
	},
}

// macroProcess is mean + sd × N(0,1), drawn in this order.
var macroProcess = []struct {
	variable string
	mean, sd float64
}{
	{scenario.GDPGrowth, 0.02, 0.01},
	{scenario.UnemploymentRate, 0.05, 0.01},
	{scenario.HousePriceGrowth, 0.03, 0.015},
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func draws(r *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = r.NormFloat64()
	}
	return out
}

// MakeHistory returns periods quarters of synthetic macro history and matching
// loss rates. Identical arguments always produce identical panels.
func MakeHistory(start quarter.Quarter, periods int, seed uint64) (macro, lossRates *panel.Frame, err error) {
	if periods <= 0 {
		return nil, nil, apperrors.NewValidationError("periods must be positive, got %d", periods)
	}
	r := newRand(seed)
	idx := quarter.Range(start, periods)

	cols := make([]string, 0, len(macroProcess))
	values := make(map[string][]float64, len(macroProcess))
	for _, p := range macroProcess {
		z := draws(r, periods)
		for i := range z {
			z[i] = p.mean + p.sd*z[i]
		}
		cols = append(cols, p.variable)
		values[p.variable] = z
	}
	macro, err = panel.New(idx, cols, values)
	if err != nil {
		return nil, nil, err
	}
	lossRates, err = lossRatesFrom(macro, r)
	if err != nil {
		return nil, nil, err
	}
	return macro, lossRates, nil
}

// LossRatesFor applies the loss-rate process to an existing macro history,
// seeding the noise with seed.
func LossRatesFor(macro *panel.Frame, seed uint64) (*panel.Frame, error) {
	if macro.Empty() {
		return nil, apperrors.NewValidationError("macro history must be non-empty")
	}
	return lossRatesFrom(macro, newRand(seed))
}

func lossRatesFrom(macro *panel.Frame, r *rand.Rand) (*panel.Frame, error) {
	needed := []string{scenario.GDPGrowth, scenario.UnemploymentRate, scenario.HousePriceGrowth}
	if err := macro.Require(needed...); err != nil {
		return nil, err
	}
	n := macro.Len()
	cols := make([]string, 0, len(lossEquations))
	values := make(map[string][]float64, len(lossEquations))
	for _, eq := range lossEquations {
		out := make([]float64, n)
		for i := range out {
			out[i] = eq.intercept
		}
		for _, l := range eq.loadings {
			x, _ := macro.Column(l.variable)
			for i, v := range x {
				out[i] += l.coef * v
			}
		}
		eps := draws(r, n)
		for i := range out {
			out[i] = panel.Clip(out[i]+eq.noise*eps[i], 0, 1)
		}
		cols = append(cols, eq.bucket)
		values[eq.bucket] = out
	}
	return panel.New(macro.Index(), cols, values)
}
