package scenario

import "macrostress/internal/quarter"

// Macro variable column names.
const (
	GDPGrowth        = "gdp_growth"
	UnemploymentRate = "unemployment_rate"
	HousePriceGrowth = "house_price_growth"
	PolicyRate       = "policy_rate"
	Gilt10Y          = "gilt_10y"
)

// Scenario names.
const (
	Baseline = "baseline"
	Adverse  = "adverse"
)

// Generator defaults.
const (
	DefaultHorizon     = 12
	DefaultSeverity    = 1.0
	DefaultPersistence = 0.85
)

// DefaultStart is the first projected quarter.
var DefaultStart = quarter.Quarter{Year: 2025, Q: 4}

// Variables returns the required scenario columns in canonical order.
func Variables() []string {
	return []string{GDPGrowth, UnemploymentRate, HousePriceGrowth, PolicyRate, Gilt10Y}
}

// Levels maps each variable to its baseline level.
type Levels map[string]float64

// DefaultLevels returns the baseline levels.
func DefaultLevels() Levels {
	return Levels{
		GDPGrowth:        0.004,
		UnemploymentRate: 0.045,
		HousePriceGrowth: 0.003,
		PolicyRate:       0.035,
		Gilt10Y:          0.040,
	}
}

// Shock is the initial deviation applied to one variable at unit severity.
type Shock struct {
	Variable string  `yaml:"variable" json:"variable" validate:"required"`
	Impact   float64 `yaml:"impact" json:"impact" validate:"gte=-1,lte=1"`
}

// Shocks is applied in slice order.
type Shocks []Shock

// DefaultShocks returns the adverse impact map.
func DefaultShocks() Shocks {
	return Shocks{
		{Variable: GDPGrowth, Impact: -0.020},
		{Variable: UnemploymentRate, Impact: 0.010},
		{Variable: HousePriceGrowth, Impact: -0.030},
		{Variable: PolicyRate, Impact: -0.005},
		{Variable: Gilt10Y, Impact: -0.003},
	}
}

// Names returns the generated scenario names in run order.
func Names() []string {
	return []string{Baseline, Adverse}
}
