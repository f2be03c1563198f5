package operations_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/operations"
	"macrostress/internal/operations/testutil"
)

func stepIDs(steps []operations.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID()
	}
	return ids
}

func TestRegistry_Register(t *testing.T) {
	r := operations.NewRegistry()

	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("a", "A")))
	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(testutil.CreateSuccessfulStage("", "empty")))
	assert.Error(t, r.Register(testutil.CreateSuccessfulStage("a", "again")))

	assert.True(t, r.Has("a"))
	assert.Equal(t, 1, r.Count())
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestRegistry_GetDependencyOrder(t *testing.T) {
	tests := []struct {
		name    string
		steps   []*testutil.MockStage
		want    []string
		wantErr bool
	}{
		{
			name: "registration order for independent steps",
			steps: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("c", "C"),
				testutil.CreateSuccessfulStage("a", "A"),
				testutil.CreateSuccessfulStage("b", "B"),
			},
			want: []string{"c", "a", "b"},
		},
		{
			name: "dependencies come first",
			steps: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("report", "Report", "calc"),
				testutil.CreateSuccessfulStage("calc", "Calc", "load"),
				testutil.CreateSuccessfulStage("load", "Load"),
			},
			want: []string{"load", "calc", "report"},
		},
		{
			name: "missing dependency",
			steps: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("a", "A", "ghost"),
			},
			wantErr: true,
		},
		{
			name: "cycle",
			steps: []*testutil.MockStage{
				testutil.CreateSuccessfulStage("a", "A", "b"),
				testutil.CreateSuccessfulStage("b", "B", "a"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := operations.NewRegistry()
			for _, s := range tt.steps {
				require.NoError(t, r.Register(s))
			}
			ordered, err := r.GetDependencyOrder()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Error(t, r.ValidateDependencies())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, stepIDs(ordered))
			assert.NoError(t, r.ValidateDependencies())
		})
	}
}

func TestRegistry_GetDependents(t *testing.T) {
	r := operations.NewRegistry()
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("load", "Load")))
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("fit", "Fit", "load")))
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("plot", "Plot", "load")))
	require.NoError(t, r.Register(testutil.CreateSuccessfulStage("other", "Other")))

	assert.Equal(t, []string{"fit", "plot"}, stepIDs(r.GetDependents("load")))
	assert.Empty(t, r.GetDependents("other"))
}

func TestNewStressTestRegistry_Order(t *testing.T) {
	r, err := operations.NewStressTestRegistry(nil, nil)
	require.NoError(t, err)

	ordered, err := r.GetDependencyOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{
		operations.StageIDLoadHistory,
		operations.StageIDBuildBanks,
		operations.StageIDGenerateScenarios,
		operations.StageIDFitModels,
		operations.StageIDProjectLosses,
		operations.StageIDRunCapital,
		operations.StageIDTroughSummary,
		operations.StageIDWriteReports,
	}, stepIDs(ordered))
}
