package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/panel"
	"macrostress/internal/scenario"
)

// Raw file names inside the raw data directory.
const (
	GDPFile          = "gdp_growth.csv"
	UnemploymentFile = "unemployment_rate.csv"
	HPIFile          = "house_price_index.xlsx"
	BankRateFile     = "policy_rate.csv"
	Gilt10YFile      = "gilt_10y.csv"
)

// MacroHistoryFile is the processed macro history inside the processed directory.
const MacroHistoryFile = "macro_hist.csv"

// RawFiles lists every file ProcessRawDir reads.
func RawFiles() []string {
	return []string{GDPFile, UnemploymentFile, HPIFile, BankRateFile, Gilt10YFile}
}

// BuildMacroHistory outer-joins the series and keeps only quarters where every
// series has a value.
func BuildMacroHistory(series ...*panel.Frame) (*panel.Frame, error) {
	if len(series) == 0 {
		return nil, apperrors.NewValidationError("at least one macro series is required")
	}
	for i, s := range series {
		if s.Empty() {
			return nil, apperrors.NewValidationError("macro series %d is empty", i)
		}
	}
	joined, err := panel.OuterJoin(series...)
	if err != nil {
		return nil, err
	}
	hist := joined.DropNA()
	if hist.Empty() {
		return nil, apperrors.NewAlignmentError("macro series %v share no complete quarter", joined.Columns())
	}
	return hist, nil
}

// ProcessRawDir parses the five raw downloads in dir into a macro history.
func ProcessRawDir(dir string) (*panel.Frame, error) {
	type source struct {
		file  string
		parse func(io.Reader) (*panel.Frame, error)
	}
	sources := []source{
		{GDPFile, func(r io.Reader) (*panel.Frame, error) { return ParseONSQuarterly(r, scenario.GDPGrowth) }},
		{UnemploymentFile, func(r io.Reader) (*panel.Frame, error) { return ParseONSQuarterly(r, scenario.UnemploymentRate) }},
		{HPIFile, func(r io.Reader) (*panel.Frame, error) { return ParseHPIWorkbook(r, scenario.HousePriceGrowth) }},
		{BankRateFile, func(r io.Reader) (*panel.Frame, error) { return ParseBoEMonthly(r, BankRateCode, scenario.PolicyRate) }},
		{Gilt10YFile, func(r io.Reader) (*panel.Frame, error) { return ParseBoEMonthly(r, Gilt10YCode, scenario.Gilt10Y) }},
	}

	frames := make([]*panel.Frame, 0, len(sources))
	for _, src := range sources {
		path := filepath.Join(dir, src.file)
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to open raw file "+path, err)
		}
		frame, err := src.parse(f)
		f.Close()
		if err != nil {
			return nil, apperrors.NewParsingError(src.file, err)
		}
		frames = append(frames, frame)
	}
	return BuildMacroHistory(frames...)
}

// ReadMacroCSV reads a processed macro history written by WriteMacroCSV.
func ReadMacroCSV(r io.Reader) (*panel.Frame, error) {
	header, records, err := panel.ReadRecords(r)
	if err != nil {
		return nil, fmt.Errorf("macro history: %w", err)
	}
	return panel.FromRecords(header, records)
}

// WriteMacroCSV writes f with a leading quarter column.
func WriteMacroCSV(w io.Writer, f *panel.Frame) error {
	header, records := f.Records()
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}

// LoadMacroHistory reads a processed macro history file.
func LoadMacroHistory(path string) (*panel.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open macro history "+path, err)
	}
	defer f.Close()
	return ReadMacroCSV(f)
}

// SaveMacroHistory writes the macro history to path, creating parent directories.
func SaveMacroHistory(path string, hist *panel.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.NewStorageError("failed to create "+path, err)
	}
	if err := WriteMacroCSV(f, hist); err != nil {
		f.Close()
		return apperrors.NewStorageError("failed to write "+path, err)
	}
	return f.Close()
}
