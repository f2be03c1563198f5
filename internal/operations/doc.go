// Package operations runs a stress test as a sequence of steps.
//
// A Registry holds the steps and orders them by their declared dependencies,
// keeping registration order among steps that become runnable together. The
// Manager executes that order one step at a time:
//
//	load_history -> build_banks -> generate_scenarios -> fit_models ->
//	project_losses -> run_capital -> trough_summary -> write_reports
//
// Steps exchange their outputs through the run's OperationState.Artefacts.
// The first step to fail ends the run: every later step is marked skipped and
// Execute returns an *OperationError naming the step and wrapping the step's
// own error, so errors.As on the domain error type still works. Steps that
// implement Optional (write_reports) are skipped when the request does not
// ask for them.
//
// Progress flows through a StatusBroadcaster, which keeps one snapshot per run
// and pushes the whole snapshot to a WebSocketHub after every change.
package operations
