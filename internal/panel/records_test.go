package panel

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "macrostress/internal/errors"
)

func TestRecords_RoundTrip(t *testing.T) {
	f, err := New(quarters("2008Q3", 3), []string{"gdp_growth", "policy_rate"}, map[string][]float64{
		"gdp_growth":  {-0.017, 0.1 + 0.2, math.NaN()},
		"policy_rate": {0.05, 0.045, 0.02},
	})
	require.NoError(t, err)

	header, records := f.Records()
	assert.Equal(t, []string{"quarter", "gdp_growth", "policy_rate"}, header)
	assert.Equal(t, []string{"2008Q3", "-0.017", "0.05"}, records[0])
	assert.Equal(t, "", records[2][1])

	back, err := FromRecords(header, records)
	require.NoError(t, err)
	assert.Equal(t, f.Index(), back.Index())
	got, _ := back.Column("gdp_growth")
	assert.Equal(t, 0.1+0.2, got[1])
	assert.True(t, math.IsNaN(got[2]))
}

func TestFromRecords_Errors(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		records [][]string
	}{
		{"no header", nil, nil},
		{"wrong index column", []string{"date", "x"}, nil},
		{"short row", []string{"quarter", "x"}, [][]string{{"2020Q1"}}},
		{"bad number", []string{"quarter", "x"}, [][]string{{"2020Q1", "abc"}}},
		{"bad quarter", []string{"quarter", "x"}, [][]string{{"2020Q5", "1"}}},
		{"unordered", []string{"quarter", "x"}, [][]string{{"2020Q2", "1"}, {"2020Q1", "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromRecords(tt.header, tt.records)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
		})
	}
}

func TestFromRecords_ByteOrderMark(t *testing.T) {
	f, err := FromRecords([]string{"\ufeffQuarter", " x "}, [][]string{{"2020 Q1", "0.5"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, f.Columns())
	assert.Equal(t, 0.5, f.At(0, "x"))
}

func TestReadRecords(t *testing.T) {
	header, records, err := ReadRecords(strings.NewReader("\ufeffscenario,bank\nadverse,HSBC,extra\nbaseline\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"scenario", "bank"}, header)
	assert.Equal(t, [][]string{{"adverse", "HSBC", "extra"}, {"baseline"}}, records)

	_, _, err = ReadRecords(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	_, _, err = ReadRecords(strings.NewReader("a,\"b\nc"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestReadRecordsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("quarter,x\n2020Q1,0.5\n"), 0o644))

	header, records, err := ReadRecordsFile(path)
	require.NoError(t, err)
	f, err := FromRecords(header, records)
	require.NoError(t, err)
	assert.Equal(t, 0.5, f.At(0, "x"))

	_, _, err = ReadRecordsFile(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, _, err = ReadRecordsFile(empty)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
	assert.Contains(t, err.Error(), empty)
}
