package synthetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/balancesheet"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/satellite"
	"macrostress/internal/scenario"
)

func frameBits(t *testing.T, f *panel.Frame) map[string][]uint64 {
	t.Helper()
	out := make(map[string][]uint64)
	for _, c := range f.Columns() {
		col, err := f.Column(c)
		require.NoError(t, err)
		bits := make([]uint64, len(col))
		for i, v := range col {
			bits[i] = math.Float64bits(v)
		}
		out[c] = bits
	}
	return out
}

func TestMakeHistory_Reproducible(t *testing.T) {
	m1, l1, err := MakeHistory(DefaultStart, DefaultPeriods, DefaultSeed)
	require.NoError(t, err)
	m2, l2, err := MakeHistory(DefaultStart, DefaultPeriods, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, frameBits(t, m1), frameBits(t, m2))
	assert.Equal(t, frameBits(t, l1), frameBits(t, l2))
	assert.Equal(t, m1.Index(), l1.Index())

	m3, _, err := MakeHistory(DefaultStart, DefaultPeriods, DefaultSeed+1)
	require.NoError(t, err)
	assert.NotEqual(t, frameBits(t, m1), frameBits(t, m3))
}

func TestMakeHistory_Shape(t *testing.T) {
	macro, loss, err := MakeHistory(DefaultStart, DefaultPeriods, DefaultSeed)
	require.NoError(t, err)

	assert.Equal(t, DefaultPeriods, macro.Len())
	idx := macro.Index()
	assert.Equal(t, "2005Q1", idx[0].String())
	assert.Equal(t, "2024Q4", idx[len(idx)-1].String())
	assert.NoError(t, macro.CheckQuarterly())
	assert.Equal(t, satellite.DefaultRegressors(), macro.Columns())
	assert.Equal(t, balancesheet.Categories(), loss.Columns())
	assert.False(t, loss.HasNA())

	for _, c := range loss.Columns() {
		col, _ := loss.Column(c)
		for _, v := range col {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	u, _ := macro.Column(scenario.UnemploymentRate)
	mean := 0.0
	for _, v := range u {
		mean += v
	}
	mean /= float64(len(u))
	assert.InDelta(t, 0.05, mean, 0.01)
}

func TestMakeHistory_FittedSlopesHaveExpectedSigns(t *testing.T) {
	macro, loss, err := MakeHistory(DefaultStart, DefaultPeriods, DefaultSeed)
	require.NoError(t, err)

	models, err := satellite.FitBucketModels(macro, loss, nil)
	require.NoError(t, err)

	for _, bucket := range balancesheet.Categories() {
		slope, ok := models[bucket].Coefficient(scenario.UnemploymentRate)
		require.True(t, ok)
		assert.Greater(t, slope, 0.0, bucket)
	}
}

func TestMakeHistory_InvalidPeriods(t *testing.T) {
	_, _, err := MakeHistory(DefaultStart, 0, DefaultSeed)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestLossRatesFor(t *testing.T) {
	macro, _, err := MakeHistory(DefaultStart, 20, 7)
	require.NoError(t, err)

	a, err := LossRatesFor(macro, DefaultSeed)
	require.NoError(t, err)
	b, err := LossRatesFor(macro, DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, frameBits(t, a), frameBits(t, b))
	assert.Equal(t, macro.Index(), a.Index())

	partial, err := macro.Select(scenario.GDPGrowth)
	require.NoError(t, err)
	_, err = LossRatesFor(partial, DefaultSeed)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))

	_, err = LossRatesFor(nil, DefaultSeed)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}
