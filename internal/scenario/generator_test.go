package scenario

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
)

func TestMakeBaseline(t *testing.T) {
	f, err := MakeBaseline(DefaultStart, DefaultHorizon)
	require.NoError(t, err)

	assert.Equal(t, 12, f.Len())
	assert.Equal(t, Variables(), f.Columns())
	idx := f.Index()
	assert.Equal(t, "2025Q4", idx[0].String())
	assert.Equal(t, "2028Q3", idx[11].String())

	for name, level := range DefaultLevels() {
		col, err := f.Column(name)
		require.NoError(t, err)
		for _, v := range col {
			assert.Equal(t, level, v, name)
		}
	}
}

func TestMakeBaseline_NonPositiveHorizon(t *testing.T) {
	for _, h := range []int{0, -3} {
		_, err := MakeBaseline(DefaultStart, h)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	}
}

func TestApplyPersistentShock(t *testing.T) {
	tests := []struct {
		name        string
		horizon     int
		shock       float64
		persistence float64
		want        []float64
		wantErr     bool
	}{
		{"decays geometrically", 3, -0.02, 0.5, []float64{-0.02, -0.01, -0.005}, false},
		{"full persistence", 2, 0.01, 1, []float64{0.01, 0.01}, false},
		{"zero persistence", 3, 0.01, 0, []float64{0.01, 0, 0}, false},
		{"empty horizon skips persistence check", 0, 0.01, 5, []float64{}, false},
		{"negative horizon", -1, 0.01, 0.5, []float64{}, false},
		{"persistence above one", 2, 0.01, 1.2, nil, true},
		{"negative persistence", 2, 0.01, -0.1, nil, true},
		{"nan persistence", 2, 0.01, math.NaN(), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyPersistentShock(tt.horizon, tt.shock, tt.persistence)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeArithmetic))
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-15)
			assert.Len(t, got, len(tt.want))
		})
	}
}

func TestMakeAdverse_DirectionAndShape(t *testing.T) {
	baseline, err := MakeBaseline(DefaultStart, DefaultHorizon)
	require.NoError(t, err)

	adverse, err := MakeAdverse(baseline, DefaultSeverity, DefaultPersistence)
	require.NoError(t, err)

	assert.Equal(t, baseline.Len(), adverse.Len())
	assert.Equal(t, baseline.Index(), adverse.Index())
	assert.Equal(t, baseline.Columns(), adverse.Columns())

	assert.LessOrEqual(t, adverse.At(0, GDPGrowth), baseline.At(0, GDPGrowth))
	assert.LessOrEqual(t, adverse.At(0, HousePriceGrowth), baseline.At(0, HousePriceGrowth))
	assert.GreaterOrEqual(t, adverse.At(0, UnemploymentRate), baseline.At(0, UnemploymentRate))

	assert.InDelta(t, 0.004-0.020, adverse.At(0, GDPGrowth), 1e-12)
	assert.InDelta(t, 0.045+0.010*0.85, adverse.At(1, UnemploymentRate), 1e-12)

	// input untouched
	assert.Equal(t, 0.004, baseline.At(0, GDPGrowth))
}

func TestMakeAdverse_FloorsUnemployment(t *testing.T) {
	baseline, err := MakeBaseline(DefaultStart, 4)
	require.NoError(t, err)

	// a severity of -10 turns the unemployment shock into -0.10
	adverse, err := MakeAdverse(baseline, -10, 0.5)
	require.NoError(t, err)

	u, err := adverse.Column(UnemploymentRate)
	require.NoError(t, err)
	assert.Equal(t, 0.0, u[0])
	for _, v := range u {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestMakeAdverse_Errors(t *testing.T) {
	empty, err := panel.New(nil, Variables(), map[string][]float64{
		GDPGrowth: {}, UnemploymentRate: {}, HousePriceGrowth: {}, PolicyRate: {}, Gilt10Y: {},
	})
	require.NoError(t, err)

	_, err = MakeAdverse(empty, 1, 0.85)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = MakeAdverse(nil, 1, 0.85)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	partial, err := panel.Constant(quarter.Range(DefaultStart, 2), []string{GDPGrowth}, map[string]float64{GDPGrowth: 0.01})
	require.NoError(t, err)
	_, err = MakeAdverse(partial, 1, 0.85)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), Gilt10Y)

	baseline, err := MakeBaseline(DefaultStart, 2)
	require.NoError(t, err)
	_, err = MakeAdverse(baseline, 1, 1.5)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeArithmetic))
}

func TestMakeAdverse_NonFiniteSeverity(t *testing.T) {
	baseline, err := MakeBaseline(DefaultStart, 4)
	require.NoError(t, err)

	for _, severity := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		_, err := MakeAdverse(baseline, severity, DefaultPersistence)
		require.Error(t, err, "severity %g", severity)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	}

	p := DefaultParams()
	p.Severity = math.Inf(1)
	_, err = Generate(p)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	p.Severity = 11
	_, err = Generate(p)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	p = DefaultParams()
	p.Shocks = Shocks{{Variable: GDPGrowth, Impact: math.Inf(-1)}}
	_, err = Generate(p)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestValidateScenario(t *testing.T) {
	good, err := MakeBaseline(DefaultStart, 3)
	require.NoError(t, err)
	assert.NoError(t, ValidateScenario(good))

	missing, err := good.Select(GDPGrowth, UnemploymentRate)
	require.NoError(t, err)
	err = ValidateScenario(missing)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	withNaN, err := good.WithColumn(Gilt10Y, []float64{0.04, math.NaN(), 0.04})
	require.NoError(t, err)
	assert.Error(t, ValidateScenario(withNaN))

	inf := math.Inf(-1)
	withInf, err := good.WithColumn(GDPGrowth, []float64{inf, inf, inf})
	require.NoError(t, err)
	err = ValidateScenario(withInf)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "infinite")

	gapIdx := []quarter.Quarter{quarter.MustParse("2025Q4"), quarter.MustParse("2026Q2")}
	gapped, err := panel.Constant(gapIdx, Variables(), DefaultLevels())
	require.NoError(t, err)
	assert.Error(t, ValidateScenario(gapped))
}

func TestGenerate(t *testing.T) {
	set, err := Generate(DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, Names(), set.Names())
	adverse, err := set.Get(Adverse)
	require.NoError(t, err)
	assert.Equal(t, DefaultHorizon, adverse.Len())

	_, err = set.Get("severely_adverse")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))

	p := DefaultParams()
	p.Horizon = 0
	_, err = Generate(p)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	p = DefaultParams()
	p.Shocks = Shocks{{Variable: GDPGrowth, Impact: -0.05}}
	set, err = Generate(p)
	require.NoError(t, err)
	adverse, _ = set.Get(Adverse)
	assert.InDelta(t, 0.004-0.05, adverse.At(0, GDPGrowth), 1e-12)
	assert.Equal(t, 0.045, adverse.At(0, UnemploymentRate))
}
