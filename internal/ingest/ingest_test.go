package ingest

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/quarter"
	"macrostress/internal/scenario"
)

const onsGDP = `"Title","Gross Domestic Product: Quarter on Quarter growth: CVM SA %"
"CDID","IHYQ"
"Source dataset ID","UKEA"
"PreUnit",""
"Unit","%"
"Release date","30-06-2025"
"Important notes",""
"2019","1.6"
"2019 Q4","0.2"
"2020 Q1","-2.5"
"2020 Q2","-20.3"
"2020 JAN","0.1"
"2020 Q3",""
`

const onsUnemployment = `"Title","Unemployment rate (aged 16 and over, seasonally adjusted): %"
"CDID","MGSX"
"2019 Q4","3.8"
"2020 Q1","4.0"
"2020 Q2","4.1"
"2020 Q3","4.8"
`

const boeBankRate = `DATE,IUMABEDR
31 Jan 2020,0.75
29 Feb 2020,0.75
31 Mar 2020,0.10
30 Apr 2020,0.1
31 May 2020,
30 Jun 2020,
31 Jul 2020,0.1
`

const boeGilt = `DATE,IUMAMNZC
31 Dec 2019,0.8
31 Mar 2020,0.4
30 Jun 2020,0.2
30 Sep 2020,0.3
`

func hpiWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", HPISheet))

	rows := [][]interface{}{
		{"Period", "Average price index"},
		{"Note", "2015=100"},
		{"", "Source: HM Land Registry"},
		{"Oct 2019", 95.0},
		{"Nov 2019", 95.0},
		{"Dec 2019", 95.0},
		{"Jan 2020", 100.0},
		{"February 2020 [r]", 100.0},
		{"MARCH 2020", 100.0},
		{"Apr 2020", 110.0},
		{"May 2020", "x"},
		{"Jun 2020 [p]", 110.0},
		{time.Date(2020, time.July, 1, 0, 0, 0, 0, time.UTC), 121.0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(HPISheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseONSQuarterly(t *testing.T) {
	f, err := ParseONSQuarterly(strings.NewReader(onsGDP), scenario.GDPGrowth)
	require.NoError(t, err)

	assert.Equal(t, []string{scenario.GDPGrowth}, f.Columns())
	require.Equal(t, 4, f.Len())
	assert.Equal(t, quarter.MustParse("2019Q4"), f.Index()[0])
	assert.InDelta(t, -0.203, f.At(2, scenario.GDPGrowth), 1e-12)
	assert.True(t, math.IsNaN(f.At(3, scenario.GDPGrowth)))

	_, err = ParseONSQuarterly(strings.NewReader(`"Title","x"`), scenario.GDPGrowth)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in   string
		want time.Month
	}{
		{"Jan 2005", time.January},
		{"September 2005", time.September},
		{"SEPT 2005 [r]", time.September},
		{"dec 2005 [P]", time.December},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMonth(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Month())
			assert.Equal(t, 2005, got.Year())
		})
	}

	_, err := parseMonth("2005-01")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseHPIWorkbook(t *testing.T) {
	f, err := ParseHPIWorkbook(bytes.NewReader(hpiWorkbook(t)), scenario.HousePriceGrowth)
	require.NoError(t, err)

	require.Equal(t, 3, f.Len())
	assert.Equal(t, quarter.MustParse("2020Q1"), f.Index()[0])
	growth, _ := f.Column(scenario.HousePriceGrowth)
	assert.InDelta(t, 100.0/95-1, growth[0], 1e-12)
	assert.InDelta(t, 0.1, growth[1], 1e-12)
	assert.InDelta(t, 0.1, growth[2], 1e-12)
}

func TestParseHPIWorkbook_NotAWorkbook(t *testing.T) {
	_, err := ParseHPIWorkbook(strings.NewReader("not a zip"), scenario.HousePriceGrowth)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))
}

func TestParseBoEMonthly(t *testing.T) {
	f, err := ParseBoEMonthly(strings.NewReader(boeBankRate), BankRateCode, scenario.PolicyRate)
	require.NoError(t, err)

	require.Equal(t, 3, f.Len())
	rates, _ := f.Column(scenario.PolicyRate)
	assert.InDeltaSlice(t, []float64{0.001, 0.001, 0.001}, rates, 1e-15)
	assert.Equal(t, "2020Q3", f.Index()[2].String())

	_, err = ParseBoEMonthly(strings.NewReader(boeBankRate), Gilt10YCode, scenario.Gilt10Y)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLookup))
	assert.Contains(t, err.Error(), Gilt10YCode)
}

func TestBuildMacroHistory(t *testing.T) {
	gdp, err := ParseONSQuarterly(strings.NewReader(onsGDP), scenario.GDPGrowth)
	require.NoError(t, err)
	unemp, err := ParseONSQuarterly(strings.NewReader(onsUnemployment), scenario.UnemploymentRate)
	require.NoError(t, err)

	hist, err := BuildMacroHistory(gdp, unemp)
	require.NoError(t, err)
	// 2020Q3 has no GDP value
	assert.Equal(t, 3, hist.Len())
	assert.False(t, hist.HasNA())

	_, err = BuildMacroHistory()
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	later, err := panel.Constant(quarter.Range(quarter.MustParse("2030Q1"), 2), []string{"x"}, map[string]float64{"x": 1})
	require.NoError(t, err)
	_, err = BuildMacroHistory(gdp, later)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAlignment))
}

func writeRaw(t *testing.T, dir string) {
	t.Helper()
	files := map[string][]byte{
		GDPFile:          []byte(onsGDP),
		UnemploymentFile: []byte(onsUnemployment),
		HPIFile:          hpiWorkbook(t),
		BankRateFile:     []byte(boeBankRate),
		Gilt10YFile:      []byte(boeGilt),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}

func TestProcessRawDir(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir)

	hist, err := ProcessRawDir(dir)
	require.NoError(t, err)
	assert.Equal(t, scenario.Variables(), hist.Columns())
	// only 2020Q1 and 2020Q2 are complete across all five series
	assert.Equal(t, []quarter.Quarter{quarter.MustParse("2020Q1"), quarter.MustParse("2020Q2")}, hist.Index())
	assert.InDelta(t, 0.004, hist.At(0, scenario.Gilt10Y), 1e-15)

	require.NoError(t, os.Remove(filepath.Join(dir, HPIFile)))
	_, err = ProcessRawDir(dir)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestMacroHistory_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	writeRaw(t, dir)
	hist, err := ProcessRawDir(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "processed", MacroHistoryFile)
	require.NoError(t, SaveMacroHistory(path, hist))

	loaded, err := LoadMacroHistory(path)
	require.NoError(t, err)
	assert.Equal(t, hist.Index(), loaded.Index())
	assert.Equal(t, hist.Columns(), loaded.Columns())
	for _, c := range hist.Columns() {
		want, _ := hist.Column(c)
		got, _ := loaded.Column(c)
		assert.Equal(t, want, got, c)
	}

	_, err = LoadMacroHistory(filepath.Join(dir, "missing.csv"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}
