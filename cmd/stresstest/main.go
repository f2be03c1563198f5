// Command stresstest runs the macro-financial bank stress test from the
// command line and manages its input data.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"macrostress/internal/config"
	"macrostress/internal/infrastructure"
	"macrostress/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are the flags every subcommand shares.
type rootOptions struct {
	configPath string
	baseDir    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "stresstest",
		Short: "Macro-financial stress test for UK banks",
		Long: `stresstest projects credit losses and CET1 capital ratios for a set of
stylised UK banks under a baseline and an adverse macroeconomic scenario.

Examples:
  stresstest run
  stresstest run --horizon 8 --severity 1.5 --bank HSBC
  stresstest banks --bank "Lloyds Banking Group" --write-csv
  stresstest trough --results outputs/system_results.csv --hurdle 0.08
  stresstest fetch --ingest`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: config.yaml or configs/config.yaml if present)")
	pf.StringVar(&opts.baseDir, "dir", "", "Base directory for relative data and output paths (default: working directory)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr (debug|info|warn|error)")

	root.AddCommand(
		newRunCmd(opts),
		newBanksCmd(opts),
		newTroughCmd(opts),
		newFetchCmd(opts),
		newIngestCmd(opts),
	)
	return root
}

// environment is what a subcommand needs after config loading.
type environment struct {
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger
	out    io.Writer
}

func (o *rootOptions) load(cmd *cobra.Command) (*environment, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	paths, err := config.ResolvePaths(cfg.Paths, o.baseDir)
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:    cfg,
		paths:  paths,
		logger: infrastructure.NewLogger(o.logLevel, cmd.ErrOrStderr()),
		out:    cmd.OutOrStdout(),
	}, nil
}

// stressService builds a service without a websocket hub or exported
// telemetry.
func (e *environment) stressService() (*services.StressTestService, error) {
	return services.NewStressTestService(e.cfg, e.paths, nil, infrastructure.NoopTelemetry(), e.logger)
}
