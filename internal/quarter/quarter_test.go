package quarter

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "macrostress/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Quarter
		wantErr bool
	}{
		{"2025Q4", Quarter{2025, 4}, false},
		{"2008 Q1", Quarter{2008, 1}, false},
		{"2010-q3", Quarter{2010, 3}, false},
		{" 1999Q2 ", Quarter{1999, 2}, false},
		{"2025Q5", Quarter{}, true},
		{"2025Q0", Quarter{}, true},
		{"Q4", Quarter{}, true},
		{"2025", Quarter{}, true},
		{"abcdQ1", Quarter{}, true},
		{"2025Q12", Quarter{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuarter_Arithmetic(t *testing.T) {
	q := MustParse("2025Q4")

	assert.Equal(t, "2026Q1", q.Next().String())
	assert.Equal(t, "2025Q1", q.Add(-3).String())
	assert.Equal(t, "2028Q3", q.Add(11).String())
	assert.Equal(t, 12, MustParse("2028Q4").Sub(q))
	assert.True(t, q.Before(q.Next()))
	assert.False(t, q.Before(q))
	assert.Equal(t, 0, q.Compare(Quarter{2025, 4}))
	assert.Equal(t, -1, q.Compare(q.Next()))
	assert.Equal(t, 1, q.Next().Compare(q))
}

func TestQuarter_Dates(t *testing.T) {
	q := MustParse("2024Q1")

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), q.Start())
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), q.End())
	assert.Equal(t, q, FromTime(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, MustParse("2024Q4"), FromTime(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestRange(t *testing.T) {
	qs := Range(MustParse("2005Q1"), 80)

	require.Len(t, qs, 80)
	assert.Equal(t, "2005Q1", qs[0].String())
	assert.Equal(t, "2024Q4", qs[79].String())
	assert.True(t, IsContiguous(qs))
	assert.Nil(t, Range(MustParse("2005Q1"), 0))
}

func TestIsContiguous(t *testing.T) {
	gap := []Quarter{MustParse("2020Q1"), MustParse("2020Q3")}
	reversed := []Quarter{MustParse("2020Q2"), MustParse("2020Q1")}

	assert.False(t, IsContiguous(gap))
	assert.False(t, IsContiguous(reversed))
	assert.True(t, IsContiguous(nil))
}

func TestQuarter_JSON(t *testing.T) {
	type row struct {
		Quarter Quarter `json:"quarter"`
	}
	data, err := json.Marshal(row{MustParse("2025Q4")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"quarter":"2025Q4"}`, string(data))

	var back row
	require.NoError(t, json.Unmarshal([]byte(`{"quarter":"2026 Q2"}`), &back))
	assert.Equal(t, Quarter{2026, 2}, back.Quarter)
}
