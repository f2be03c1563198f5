package config

import (
	"log/slog"
	"os"
	"path/filepath"

	apperrors "macrostress/internal/errors"
	"macrostress/internal/ingest"
)

// Paths holds every resolved directory the application reads or writes.
// All fields are absolute.
type Paths struct {
	BaseDir      string
	DataDir      string
	RawDir       string
	ProcessedDir string
	OutputDir    string
	LogsDir      string
}

// ResolvePaths resolves the configured directories against base. An empty
// base means the current working directory.
func ResolvePaths(pc PathsConfig, base string) (*Paths, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, apperrors.NewConfigError("failed to get working directory", err)
		}
		base = wd
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to resolve base directory", err)
	}

	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(base, p)
	}

	return &Paths{
		BaseDir:      base,
		DataDir:      resolve(pc.DataDir),
		RawDir:       resolve(pc.RawDir),
		ProcessedDir: resolve(pc.ProcessedDir),
		OutputDir:    resolve(pc.OutputDir),
		LogsDir:      resolve(pc.LogsDir),
	}, nil
}

// GetPaths resolves the configured directories against the working directory.
func (c *Config) GetPaths() (*Paths, error) {
	return ResolvePaths(c.Paths, "")
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.RawDir, p.ProcessedDir, p.OutputDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.NewStorageError("failed to create directory "+dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// RawPath returns the path of a downloaded source file.
func (p *Paths) RawPath(filename string) string {
	return filepath.Join(p.RawDir, filename)
}

// ProcessedPath returns the path of a processed data file.
func (p *Paths) ProcessedPath(filename string) string {
	return filepath.Join(p.ProcessedDir, filename)
}

// OutputPath returns the path of a report file.
func (p *Paths) OutputPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// MacroHistoryPath is where the processed macro history lives.
func (p *Paths) MacroHistoryPath() string {
	return p.ProcessedPath(ingest.MacroHistoryFile)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogPathResolution logs the resolved directories at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("raw", p.RawDir),
			slog.String("processed", p.ProcessedDir),
			slog.String("output", p.OutputDir),
			slog.String("logs", p.LogsDir),
		),
		slog.Bool("macro_history_exists", FileExists(p.MacroHistoryPath())),
	)
}
