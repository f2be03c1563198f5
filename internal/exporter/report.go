package exporter

import (
	"log/slog"
	"time"

	"macrostress/internal/balancesheet"
	"macrostress/internal/capital"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/projection"
	"macrostress/internal/scenario"
	"macrostress/internal/trough"
)

// Report carries everything a run produced. Nil fields are skipped by
// WriteReport and WriteWorkbook.
type Report struct {
	Banks     []*balancesheet.Bank
	Scenarios scenario.Set
	LossRates *projection.Projected
	Results   *capital.SystemResults
	Trough    []trough.Row
	Losses    []capital.BucketLoss
}

// TableOptions selects the standard tables written by WriteResultsTables.
type TableOptions struct {
	WriteStarting bool
	WriteResults  bool
}

// WriteResultsTables writes the starting positions and/or the system results
// and trough summary. Results are required when WriteResults is set.
func WriteResultsTables(w *CSVWriter, banks []*balancesheet.Bank, results *capital.SystemResults, troughRows []trough.Row, opts TableOptions) ([]string, error) {
	var written []string

	if opts.WriteStarting {
		path, err := w.writeTable(StartingPositionsFile, StartingPositionsTable(banks))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if opts.WriteResults {
		if results == nil || troughRows == nil {
			return written, apperrors.NewValidationError("system results and trough summary are required when writing results")
		}
		for _, tbl := range []struct {
			file  string
			table Table
		}{
			{SystemResultsFile, SystemResultsTable(results)},
			{TroughSummaryFile, TroughTable(troughRows)},
		} {
			path, err := w.writeTable(tbl.file, tbl.table)
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// WriteReport writes every table present in r and returns the paths written.
func WriteReport(w *CSVWriter, r Report) ([]string, error) {
	written, err := WriteResultsTables(w, r.Banks, r.Results, r.Trough, TableOptions{
		WriteStarting: len(r.Banks) > 0,
		WriteResults:  r.Results != nil,
	})
	if err != nil {
		return written, err
	}

	if len(r.Banks) > 0 {
		path, err := w.writeTable(BucketRWAFile, BucketRWATable(r.Banks))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if r.Losses != nil {
		path, err := w.streamTable(LossesByBucketFile, LossesByBucketTable(r.Losses))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	for _, s := range r.Scenarios {
		path, err := w.writeTable(ScenarioFile(s.Name), FrameTable("scenario_"+s.Name, s.Path))
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if r.LossRates != nil {
		for _, name := range r.LossRates.Names() {
			f, err := r.LossRates.Get(name)
			if err != nil {
				return written, err
			}
			path, err := w.writeTable(LossRatesFile(name), FrameTable("loss_rates_"+name, f))
			if err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	slog.Info("report_written", slog.String("dir", w.Dir()), slog.Int("files", len(written)))
	return written, nil
}

func (w *CSVWriter) writeTable(name string, t Table) (string, error) {
	return w.WriteSimpleCSV(name, t.Header, t.Records())
}

func (w *CSVWriter) streamTable(name string, t Table) (string, error) {
	stream, err := w.CreateStreamWriter(name, t.Header)
	if err != nil {
		return "", err
	}
	for _, rec := range t.Records() {
		if err := stream.WriteRecord(rec); err != nil {
			stream.Close()
			return "", apperrors.NewStorageError("failed to write "+name, err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", err
	}
	return stream.Path(), nil
}

// RunLogColumns is the header of the run log.
var RunLogColumns = []string{"run_id", "finished_at", "history_source", "scenarios", "banks", "breaches", "system_shortfall_bn"}

// RunLogEntry is one line of the run log.
type RunLogEntry struct {
	RunID           string
	FinishedAt      time.Time
	HistorySource   string
	Scenarios       int
	Banks           int
	Breaches        int
	SystemShortfall float64
}

// AppendRunLog appends entry to the run log in the writer's directory.
func AppendRunLog(w *CSVWriter, entry RunLogEntry) (string, error) {
	rec := []interface{}{
		entry.RunID,
		entry.FinishedAt.UTC().Format(time.RFC3339),
		entry.HistorySource,
		float64(entry.Scenarios),
		float64(entry.Banks),
		float64(entry.Breaches),
		entry.SystemShortfall,
	}
	t := Table{Header: RunLogColumns, Rows: [][]interface{}{rec}}
	return w.AppendToCSV(RunLogFile, t.Header, t.Records())
}
