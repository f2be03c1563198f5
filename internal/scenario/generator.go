package scenario

import (
	"fmt"
	"math"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

// MakeBaseline returns horizon quarters from start with every variable held at
// its default level.
func MakeBaseline(start quarter.Quarter, horizon int) (*panel.Frame, error) {
	return MakeBaselineWithLevels(start, horizon, DefaultLevels())
}

// MakeBaselineWithLevels is MakeBaseline with caller-supplied levels.
func MakeBaselineWithLevels(start quarter.Quarter, horizon int, levels Levels) (*panel.Frame, error) {
	if horizon <= 0 {
		return nil, apperrors.NewValidationError("horizon must be positive, got %d", horizon)
	}
	f, err := panel.Constant(quarter.Range(start, horizon), Variables(), levels)
	if err != nil {
		return nil, fmt.Errorf("build baseline: %w", err)
	}
	if err := ValidateScenario(f); err != nil {
		return nil, err
	}
	return f, nil
}

// ApplyPersistentShock returns shock × persistence^t for t in [0, horizon).
// A non-positive horizon yields an empty path regardless of persistence.
func ApplyPersistentShock(horizon int, shock, persistence float64) ([]float64, error) {
	if horizon <= 0 {
		return []float64{}, nil
	}
	if !(persistence >= 0 && persistence <= 1) {
		return nil, apperrors.NewArithmeticError("persistence must be in [0,1], got %g", persistence)
	}
	path := make([]float64, horizon)
	for t := range path {
		path[t] = shock * math.Pow(persistence, float64(t))
	}
	return path, nil
}

// MakeAdverse applies the default shocks to baseline.
func MakeAdverse(baseline *panel.Frame, severity, persistence float64) (*panel.Frame, error) {
	return MakeAdverseWithShocks(baseline, DefaultShocks(), severity, persistence)
}

// MakeAdverseWithShocks adds each shock, scaled by severity and decaying with
// persistence, to the matching baseline column. Columns without a shock are
// copied unchanged.
func MakeAdverseWithShocks(baseline *panel.Frame, shocks Shocks, severity, persistence float64) (*panel.Frame, error) {
	if baseline.Empty() {
		return nil, apperrors.NewValidationError("baseline must be a non-empty panel")
	}
	if math.IsNaN(severity) || math.IsInf(severity, 0) {
		return nil, apperrors.NewValidationError("severity must be finite, got %g", severity)
	}

	vars := make([]string, 0, len(shocks))
	for _, s := range shocks {
		vars = append(vars, s.Variable)
	}
	if err := baseline.Require(vars...); err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	adverse := baseline.Clone()
	horizon := baseline.Len()
	for _, s := range shocks {
		path, err := ApplyPersistentShock(horizon, s.Impact*severity, persistence)
		if err != nil {
			return nil, err
		}
		col, _ := adverse.Column(s.Variable)
		for i := range col {
			col[i] += path[i]
		}
		if adverse, err = adverse.WithColumn(s.Variable, col); err != nil {
			return nil, err
		}
	}

	if adverse.HasColumn(UnemploymentRate) {
		floored, err := adverse.Map(func(v float64) float64 { return math.Max(v, 0) }, UnemploymentRate)
		if err != nil {
			return nil, err
		}
		adverse = floored
	}

	if err := ValidateScenario(adverse); err != nil {
		return nil, err
	}
	return adverse, nil
}

// ValidateScenario checks that f is non-empty, carries every scenario variable,
// is indexed by contiguous increasing quarters and holds only finite values.
func ValidateScenario(f *panel.Frame) error {
	if f.Empty() {
		return apperrors.NewValidationError("scenario panel must be non-empty")
	}
	if err := f.Require(Variables()...); err != nil {
		verr := apperrors.NewValidationError("scenario panel is missing required columns")
		verr.Cause = err
		if appErr, ok := err.(*apperrors.AppError); ok {
			verr.WithContext("missing", appErr.Context["missing"])
		}
		return verr
	}
	if err := f.CheckQuarterly(); err != nil {
		return err
	}
	if f.HasNA() {
		return apperrors.NewValidationError("scenario panel contains missing values")
	}
	if f.HasNonFinite() {
		return apperrors.NewValidationError("scenario panel contains infinite values")
	}
	return nil
}
