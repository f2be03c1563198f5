package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"macrostress/internal/exporter"
	"macrostress/internal/services"
	"macrostress/internal/trough"
)

type runOptions struct {
	start       string
	horizon     int
	severity    float64
	persistence float64
	hurdle      float64
	bank        string
	history     string
	seed        uint64
	workbook    bool
	noReports   bool
	asJSON      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full stress test",
		Long: `Generate the baseline and adverse scenarios, fit the satellite models on the
macro history, project loss rates and CET1 paths, and summarise the trough
capital position of every bank against the hurdle.

Unset flags take the run section of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStressTest(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.start, "start", "", "First projected quarter, e.g. 2025Q4")
	f.IntVar(&opts.horizon, "horizon", 0, "Number of projected quarters")
	f.Float64Var(&opts.severity, "severity", 0, "Multiplier on the adverse shocks")
	f.Float64Var(&opts.persistence, "persistence", 0, "Quarterly shock persistence in [0,1]")
	f.Float64Var(&opts.hurdle, "hurdle", 0, "CET1 ratio hurdle as a decimal, e.g. 0.07")
	f.StringVar(&opts.bank, "bank", "", "Run a single bank (case-insensitive name)")
	f.StringVar(&opts.history, "history", "", "Macro history source: synthetic, processed or raw")
	f.Uint64Var(&opts.seed, "seed", 0, "Seed for the synthetic history")
	f.BoolVar(&opts.workbook, "workbook", false, "Also write the xlsx workbook")
	f.BoolVar(&opts.noReports, "no-reports", false, "Do not write CSV reports")
	f.BoolVar(&opts.asJSON, "json", false, "Print the run result as JSON")
	return cmd
}

// request maps the flags the user actually set onto a RunRequest.
func (o *runOptions) request(cmd *cobra.Command) services.RunRequest {
	changed := cmd.Flags().Changed
	req := services.RunRequest{
		Start:         o.start,
		Bank:          o.bank,
		HistorySource: o.history,
	}
	if changed("horizon") {
		req.Horizon = &o.horizon
	}
	if changed("severity") {
		req.Severity = &o.severity
	}
	if changed("persistence") {
		req.Persistence = &o.persistence
	}
	if changed("hurdle") {
		req.Hurdle = &o.hurdle
	}
	if changed("seed") {
		req.Seed = &o.seed
	}
	if changed("workbook") {
		req.WriteWorkbook = &o.workbook
	}
	if changed("no-reports") {
		write := !o.noReports
		req.WriteReports = &write
	}
	return req
}

func runStressTest(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	env, err := root.load(cmd)
	if err != nil {
		return err
	}
	if err := env.paths.EnsureDirectories(); err != nil {
		return err
	}
	svc, err := env.stressService()
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Run(cmd.Context(), opts.request(cmd))
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(env.out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printRunSummary(env.out, result)
	return nil
}

func printRunSummary(w io.Writer, r *services.RunResult) {
	fmt.Fprintf(w, "Run %s: %d banks, %d quarters from %s, hurdle %s\n\n",
		r.ID, r.Summary.Banks, r.Scenario.Horizon, r.Scenario.Start, exporter.FormatPct(r.Hurdle))
	printTrough(w, r.Trough)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Breaches: %d\n", r.Summary.Breaches)
	names := make([]string, 0, len(r.Summary.SystemShortfall))
	for name := range r.Summary.SystemShortfall {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "System shortfall (%s): %s\n", name, exporter.FormatMoneyBn(r.Summary.SystemShortfall[name]))
	}
	for _, f := range r.Summary.Files {
		fmt.Fprintf(w, "Wrote: %s\n", f)
	}
}

func printTrough(w io.Writer, rows []trough.Row) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tBANK\tSTART\tTROUGH QUARTER\tTROUGH\tBREACH\tSHORTFALL")
	for _, row := range rows {
		breach := "no"
		if row.Breach {
			breach = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Scenario, row.Bank,
			exporter.FormatPct(row.StartCET1Ratio),
			row.TroughQuarter,
			exporter.FormatPct(row.TroughCET1Ratio),
			breach,
			exporter.FormatMoneyBn(row.Shortfall))
	}
	tw.Flush()
}
