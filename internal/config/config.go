package config

import (
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"macrostress/internal/acquire"
	apperrors "macrostress/internal/errors"
	"macrostress/internal/quarter"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Run       RunConfig       `yaml:"run" envconfig:"RUN"`
	Acquire   acquire.Options `yaml:"acquire" envconfig:"ACQUIRE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RunTimeout      time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" default:"5m" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"20" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"40" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/stresstest.log"`
}

// PathsConfig contains file system paths configuration. Relative paths are
// resolved against the working directory.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"data/raw"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" default:"data/processed"`
	OutputDir    string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"outputs"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// History sources for RunConfig.History.Source.
const (
	HistorySynthetic = "synthetic"
	HistoryProcessed = "processed"
	HistoryRaw       = "raw"
)

// RunConfig holds the stress test defaults used by the CLI and the API.
type RunConfig struct {
	Start         string        `yaml:"start" envconfig:"START" default:"2025Q4"`
	Horizon       int           `yaml:"horizon" envconfig:"HORIZON" default:"12" validate:"gt=0,lte=400"`
	Severity      float64       `yaml:"severity" envconfig:"SEVERITY" default:"1" validate:"gte=0,lte=10"`
	Persistence   float64       `yaml:"persistence" envconfig:"PERSISTENCE" default:"0.85" validate:"gte=0,lte=1"`
	Hurdle        float64       `yaml:"hurdle" envconfig:"HURDLE" default:"0.07" validate:"gte=0,lt=1"`
	BanksFile     string        `yaml:"banks_file" envconfig:"BANKS_FILE"`
	WriteReports  bool          `yaml:"write_reports" envconfig:"WRITE_REPORTS" default:"true"`
	WriteWorkbook bool          `yaml:"write_workbook" envconfig:"WRITE_WORKBOOK" default:"false"`
	History       HistoryConfig `yaml:"history" envconfig:"HISTORY"`
}

// HistoryConfig selects where the satellite-model history comes from.
type HistoryConfig struct {
	Source  string `yaml:"source" envconfig:"SOURCE" default:"synthetic" validate:"oneof=synthetic processed raw"`
	Start   string `yaml:"start" envconfig:"START" default:"2005Q1"`
	Periods int    `yaml:"periods" envconfig:"PERIODS" default:"80" validate:"gt=0"`
	Seed    uint64 `yaml:"seed" envconfig:"SEED" default:"184"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" default:"macrostress"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT" default:"false"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" default:"1024"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" default:"1024"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" default:"30s"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" default:"60s"`
}

// StartQuarter parses Run.Start.
func (r RunConfig) StartQuarter() (quarter.Quarter, error) {
	return quarter.Parse(r.Start)
}

// StartQuarter parses History.Start.
func (h HistoryConfig) StartQuarter() (quarter.Quarter, error) {
	return quarter.Parse(h.Start)
}

// Default returns the configuration built from default tags alone.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic("config: invalid default tags: " + err.Error())
	}
	// envconfig splits slice defaults on commas, so this one is set here.
	cfg.Security.AllowedOrigins = []string{"http://localhost:8080"}
	return cfg
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first config file found when path is empty), then STRESS_*
// environment variables, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep
// their current values.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewConfigError("failed to read config file "+path, err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return apperrors.NewParsingError("failed to parse config file "+path, err)
	}
	return nil
}

// applyEnv overlays STRESS_* variables. envconfig fills unset variables from
// default tags, so it runs against a pristine default config and only the
// fields it changed are copied onto cfg.
func applyEnv(cfg *Config) error {
	env := Default()
	if err := envconfig.Process(EnvPrefix, env); err != nil {
		return apperrors.NewConfigError("failed to load config from env", err)
	}
	mergeChanged(reflect.ValueOf(cfg).Elem(), reflect.ValueOf(env).Elem(), reflect.ValueOf(Default()).Elem())
	return nil
}

// mergeChanged copies every leaf of src that differs from base into dst.
func mergeChanged(dst, src, base reflect.Value) {
	if dst.Kind() == reflect.Struct && dst.Type() != reflect.TypeOf(time.Time{}) {
		for i := 0; i < dst.NumField(); i++ {
			mergeChanged(dst.Field(i), src.Field(i), base.Field(i))
		}
		return
	}
	if !reflect.DeepEqual(src.Interface(), base.Interface()) {
		dst.Set(src)
	}
}

var validate = validator.New()

// validate validates the configuration
func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}
	if _, err := c.Run.StartQuarter(); err != nil {
		return apperrors.NewConfigError("run.start", err)
	}
	if _, err := c.Run.History.StartQuarter(); err != nil {
		return apperrors.NewConfigError("run.history.start", err)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("logging.file_path is required when output includes a file", nil)
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	return nil
}

// getConfigFilePath returns the first config file found in the usual places,
// or "" when there is none.
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
		"../../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}
