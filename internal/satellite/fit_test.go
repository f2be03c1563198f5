package satellite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
)

func varyingMacro(t *testing.T, start string, n int) *panel.Frame {
	t.Helper()
	g := make([]float64, n)
	u := make([]float64, n)
	h := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		g[i] = 0.01 * math.Sin(x)
		u[i] = 0.05 + 0.01*math.Cos(1.7*x)
		h[i] = 0.02 * math.Sin(0.3*x+1)
	}
	f, err := panel.New(quarter.Range(quarter.MustParse(start), n), DefaultRegressors(), map[string][]float64{
		scenario.GDPGrowth:        g,
		scenario.UnemploymentRate: u,
		scenario.HousePriceGrowth: h,
	})
	require.NoError(t, err)
	return f
}

func constantMacro(t *testing.T, start string, n int) *panel.Frame {
	t.Helper()
	f, err := panel.Constant(quarter.Range(quarter.MustParse(start), n), DefaultRegressors(), map[string]float64{
		scenario.GDPGrowth:        0.01,
		scenario.UnemploymentRate: 0.05,
		scenario.HousePriceGrowth: 0.0,
	})
	require.NoError(t, err)
	return f
}

func constantSeries(t *testing.T, name, start string, n int, v float64) panel.Series {
	t.Helper()
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	s, err := panel.NewSeries(name, quarter.Range(quarter.MustParse(start), n), vals)
	require.NoError(t, err)
	return s
}

func TestPrepareRegressionData(t *testing.T) {
	macro := varyingMacro(t, "2010Q1", 8)
	loss := constantSeries(t, "loss_rate", "2010Q3", 8, 0.01)

	x, y, err := PrepareRegressionData(macro, loss, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{Const, scenario.GDPGrowth, scenario.UnemploymentRate, scenario.HousePriceGrowth}, x.Columns())
	assert.Equal(t, x.Index(), y.Index)
	assert.Equal(t, 6, x.Len())
	assert.Equal(t, "loss_rate", y.Name)
	c, _ := x.Column(Const)
	for _, v := range c {
		assert.Equal(t, 1.0, v)
	}
}

func TestPrepareRegressionData_DropsMissing(t *testing.T) {
	macro := varyingMacro(t, "2010Q1", 4)
	loss, err := panel.NewSeries("loss_rate", macro.Index(), []float64{0.01, math.NaN(), 0.02, 0.03})
	require.NoError(t, err)

	x, y, err := PrepareRegressionData(macro, loss, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, x.Len())
	assert.Equal(t, []float64{0.01, 0.02, 0.03}, y.Values)
}

func TestPrepareRegressionData_MissingRegressor(t *testing.T) {
	macro := varyingMacro(t, "2010Q1", 4)
	loss := constantSeries(t, "loss_rate", "2010Q1", 4, 0.01)

	_, _, err := PrepareRegressionData(macro, loss, []string{scenario.GDPGrowth, scenario.PolicyRate})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), scenario.PolicyRate)
}

func TestFitSatelliteModel_RecoversCoefficients(t *testing.T) {
	macro := varyingMacro(t, "2005Q1", 40)
	u, _ := macro.Column(scenario.UnemploymentRate)
	h, _ := macro.Column(scenario.HousePriceGrowth)
	y := make([]float64, len(u))
	for i := range y {
		y[i] = 0.003 + 0.20*u[i] - 0.10*h[i]
	}
	loss, err := panel.NewSeries(scenario.UnemploymentRate+"_loss", macro.Index(), y)
	require.NoError(t, err)

	x, yy, err := PrepareRegressionData(macro, loss, nil)
	require.NoError(t, err)
	m, err := FitSatelliteModel(x, yy)
	require.NoError(t, err)

	tests := []struct {
		name string
		want float64
	}{
		{Const, 0.003},
		{scenario.GDPGrowth, 0},
		{scenario.UnemploymentRate, 0.20},
		{scenario.HousePriceGrowth, -0.10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Coefficient(tt.name)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	assert.Equal(t, 40, m.NObs())
	assert.Equal(t, 4, m.Rank())
	assert.InDelta(t, 1.0, m.RSquared(), 1e-9)
	assert.True(t, m.HasIntercept())
	assert.Equal(t, Const, m.Coefficients()[0].Name)
	assert.Equal(t, DefaultRegressors(), m.Regressors())
}

func TestFitSatelliteModel_ConstantTarget(t *testing.T) {
	macro := varyingMacro(t, "2005Q1", 30)
	loss := constantSeries(t, "mortgages_oo", "2005Q1", 30, 0.012)

	x, y, err := PrepareRegressionData(macro, loss, nil)
	require.NoError(t, err)
	m, err := FitSatelliteModel(x, y)
	require.NoError(t, err)

	intercept, _ := m.Coefficient(Const)
	assert.InDelta(t, 0.012, intercept, 1e-9)
	for _, r := range DefaultRegressors() {
		slope, _ := m.Coefficient(r)
		assert.InDelta(t, 0, slope, 1e-9, r)
	}
	assert.InDelta(t, 0, m.ResidualStdErr(), 1e-12)
}

func TestFitSatelliteModel_RankDeficientDesign(t *testing.T) {
	macro := constantMacro(t, "2010Q1", 8)
	loss := constantSeries(t, "loss_rate", "2010Q1", 8, 0.01)

	x, y, err := PrepareRegressionData(macro, loss, nil)
	require.NoError(t, err)
	m, err := FitSatelliteModel(x, y)
	require.NoError(t, err)

	assert.Equal(t, 1, m.Rank())
	pred, err := m.Predict(constantMacro(t, "2025Q1", 4))
	require.NoError(t, err)
	for _, p := range pred {
		assert.InDelta(t, 0.01, p, 1e-12)
	}
}

func TestFitSatelliteModel_NoOverlap(t *testing.T) {
	macro := varyingMacro(t, "2000Q1", 4)
	x, _, err := PrepareRegressionData(macro, constantSeries(t, "y", "2000Q1", 4, 0.01), nil)
	require.NoError(t, err)

	_, err = FitSatelliteModel(x, constantSeries(t, "y", "2010Q1", 4, 0.01))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAlignment))
}

func TestOLSModel_PredictMissingRegressor(t *testing.T) {
	macro := varyingMacro(t, "2005Q1", 12)
	x, y, err := PrepareRegressionData(macro, constantSeries(t, "y", "2005Q1", 12, 0.02), nil)
	require.NoError(t, err)
	m, err := FitSatelliteModel(x, y)
	require.NoError(t, err)

	scen, err := macro.Select(scenario.GDPGrowth)
	require.NoError(t, err)
	_, err = m.Predict(scen)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
}

func TestFitBucketModels(t *testing.T) {
	macro := constantMacro(t, "2010Q1", 20)
	idx := macro.Index()
	levels := map[string]float64{
		"mortgages_oo":       0.01,
		"consumer_unsecured": 0.02,
		"sme_loans":          0.015,
		"large_corp_loans":   0.005,
	}
	buckets := []string{"mortgages_oo", "consumer_unsecured", "sme_loans", "large_corp_loans"}
	loss, err := panel.Constant(idx, buckets, levels)
	require.NoError(t, err)

	models, err := FitBucketModels(macro, loss, nil)
	require.NoError(t, err)
	require.Len(t, models, 4)
	assert.Equal(t, []string{"consumer_unsecured", "large_corp_loans", "mortgages_oo", "sme_loans"}, SortedBuckets(models))

	for bucket, m := range models {
		_, ok := m.Coefficient(Const)
		assert.True(t, ok, bucket)
		pred, err := m.Predict(macro)
		require.NoError(t, err)
		assert.InDelta(t, levels[bucket], pred[0], 1e-12, bucket)
	}

	subset, err := FitBucketModels(macro, loss, []string{"sme_loans"})
	require.NoError(t, err)
	assert.Len(t, subset, 1)

	_, err = FitBucketModels(macro, loss, []string{"sme_loans", "credit_cards"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), "credit_cards")
}
