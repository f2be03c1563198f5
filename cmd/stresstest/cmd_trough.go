package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"macrostress/internal/exporter"
	"macrostress/internal/trough"
)

func newTroughCmd(root *rootOptions) *cobra.Command {
	var (
		resultsFile string
		hurdle      float64
		write       bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "trough",
		Short: "Summarise trough capital from a saved results file",
		Long: `Read a system_results.csv written by an earlier run and recompute the trough
CET1 ratio, breach flag and shortfall of every (scenario, bank) pair against
the hurdle. Banks are taken from the current bank configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("hurdle") {
				hurdle = env.cfg.Run.Hurdle
			}

			results, err := trough.LoadResults(resultsFile)
			if err != nil {
				return err
			}

			svc, err := env.stressService()
			if err != nil {
				return err
			}
			defer svc.Close()
			banks, err := svc.Banks()
			if err != nil {
				return err
			}

			rows, err := trough.ComputeTroughSummary(results, banks, hurdle)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(env.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rows); err != nil {
					return err
				}
			} else {
				printTrough(env.out, rows)
			}

			if write {
				t := exporter.TroughTable(rows)
				path, err := exporter.NewCSVWriter(env.paths.OutputDir).
					WriteSimpleCSV(exporter.TroughSummaryFile, t.Header, t.Records())
				if err != nil {
					return err
				}
				fmt.Fprintf(env.out, "Wrote: %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&resultsFile, "results", "", "Path to system_results.csv (required)")
	cmd.Flags().Float64Var(&hurdle, "hurdle", 0, "CET1 ratio hurdle as a decimal (default: run.hurdle)")
	cmd.Flags().BoolVar(&write, "write", false, "Write trough_summary.csv to the output directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}
