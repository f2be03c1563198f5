// Package exporter writes stress test outputs as CSV tables, an Excel
// workbook and plain-text bank summaries.
//
// CSVWriter handles directory creation, the optional UTF-8 BOM, appends and
// streaming. The table builders (StartingPositionsTable, SystemResultsTable,
// TroughTable, LossesByBucketTable, FrameTable) turn run artefacts into typed
// rows that both the CSV and workbook writers render.
//
// Example usage:
//
//	w := exporter.NewCSVWriter("outputs")
//	paths, err := exporter.WriteResultsTables(w, banks, results, troughRows,
//		exporter.TableOptions{WriteStarting: true, WriteResults: true})
//
//	fmt.Println(exporter.FormatBankSummaries(banks))
package exporter
