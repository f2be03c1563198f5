// Command web serves the stress test HTTP API, Prometheus metrics and the
// websocket progress stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"macrostress/internal/app"
	"macrostress/internal/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = config.AppVersion

func main() {
	configPath := flag.String("config", "", "config file (default: config.yaml or configs/config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.NewApplication(cfg, app.WithVersion(Version))
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		application.Logger.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
