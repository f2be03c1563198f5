package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"macrostress/internal/balancesheet"
	"macrostress/internal/exporter"
)

func newBanksCmd(root *rootOptions) *cobra.Command {
	var (
		bank     string
		writeCSV bool
	)
	cmd := &cobra.Command{
		Use:   "banks",
		Short: "Print bank starting positions",
		Long: `Print the starting balance sheet of each configured bank: totals, CET1,
overlays and the portfolio bucket table.

With --write-csv the headline positions are also written to
bank_starting_positions.csv in the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := root.load(cmd)
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
			if bank != "" {
				if banks, err = balancesheet.SelectBanks(banks, bank); err != nil {
					return err
				}
			}
			fmt.Fprintln(env.out, exporter.FormatBankSummaries(banks))

			if !writeCSV {
				return nil
			}
			written, err := exporter.WriteResultsTables(exporter.NewCSVWriter(env.paths.OutputDir),
				banks, nil, nil, exporter.TableOptions{WriteStarting: true})
			if err != nil {
				return err
			}
			for _, path := range written {
				fmt.Fprintf(env.out, "\nWrote: %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bank, "bank", "", "Only this bank (case-insensitive name)")
	cmd.Flags().BoolVar(&writeCSV, "write-csv", false, "Write bank_starting_positions.csv")
	return cmd
}
