// Package config loads application configuration and resolves data paths.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//  1. default struct tags (creasty/defaults)
//  2. a YAML file: the path given to Load, $STRESS_CONFIG, or the first of
//     config.yaml and configs/config.yaml found
//  3. STRESS_* environment variables (envconfig)
//
// An environment variable whose value equals the built-in default cannot
// override a different value from the file.
//
// # Environment Variables
//
//	STRESS_SERVER_PORT=8080
//	STRESS_LOGGING_LEVEL=debug
//	STRESS_RUN_HURDLE=0.08
//	STRESS_RUN_HISTORY_SOURCE=processed
//	STRESS_ACQUIRE_RPS=1
//
// # Paths
//
// Paths resolves the configured data, raw, processed, output and log
// directories to absolute paths:
//
//	cfg, err := config.Load("")
//	paths, err := cfg.GetPaths()
//	hist, err := ingest.LoadMacroHistory(paths.MacroHistoryPath())
package config
