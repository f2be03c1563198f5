package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"macrostress/internal/acquire"
	"macrostress/internal/files"
	"macrostress/internal/ingest"
)

func newFetchCmd(root *rootOptions) *cobra.Command {
	var thenIngest bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download raw macro series",
		Long: `Download GDP and unemployment from the ONS, the UK house price index
workbook, and Bank Rate and the 10-year gilt yield from the Bank of England
into the raw data directory. Endpoints, timeout and request rate come from
the acquire section of the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := root.load(cmd)
			if err != nil {
				return err
			}
			fetcher := acquire.NewFetcher(env.cfg.Acquire, nil, env.logger)
			downloads, err := fetcher.FetchAll(cmd.Context(), env.paths.RawDir)
			if err != nil {
				return err
			}
			for _, d := range downloads {
				fmt.Fprintf(env.out, "Downloaded %s (%d bytes)\n", d.Path, d.Bytes)
			}
			if thenIngest {
				return ingestRaw(env)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&thenIngest, "ingest", false, "Build the processed macro history after downloading")
	return cmd
}

func newIngestCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Build the quarterly macro history from raw files",
		Long: `Parse the raw files in the raw data directory, convert them to quarterly
series and write the joined macro history CSV to the processed directory.
Runs with --history processed read that file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := root.load(cmd)
			if err != nil {
				return err
			}
			return ingestRaw(env)
		},
	}
}

func ingestRaw(env *environment) error {
	inv, err := files.Scan(env.paths)
	if err != nil {
		return err
	}
	if err := inv.RequireRaw(); err != nil {
		return err
	}
	hist, err := ingest.ProcessRawDir(env.paths.RawDir)
	if err != nil {
		return err
	}
	path := env.paths.MacroHistoryPath()
	if err := ingest.SaveMacroHistory(path, hist); err != nil {
		return err
	}
	fmt.Fprintf(env.out, "Wrote: %s (%d quarters; %s)\n",
		path, hist.Len(), strings.Join(hist.Columns(), ", "))
	return nil
}
