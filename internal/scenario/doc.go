// Package scenario generates the quarterly macroeconomic paths the stress test
// runs banks through.
//
// # Variables
//
// Every scenario is a panel.Frame with five columns, all decimal fractions:
//
//   - gdp_growth: real GDP, quarter-on-quarter
//   - unemployment_rate: level
//   - house_price_growth: nominal, quarter-on-quarter
//   - policy_rate: Bank Rate level
//   - gilt_10y: 10-year gilt yield level
//
// # Paths
//
// The baseline holds each variable at a fixed level for the whole horizon.
// The adverse path adds a decaying shock to the baseline: the deviation at step
// t is impact × severity × persistence^t. Unemployment is floored at zero.
//
// Both generators validate their output before returning it, so a Frame
// returned from this package always satisfies ValidateScenario.
//
// # Usage
//
//	set, err := scenario.Generate(scenario.DefaultParams())
//	if err != nil {
//	    return err
//	}
//	for _, s := range set {
//	    fmt.Println(s.Name, s.Path.Len())
//	}
package scenario
