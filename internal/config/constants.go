package config

// Application constants
const (
	AppName    = "macrostress"
	AppVersion = "0.3.0"

	// EnvPrefix namespaces every environment variable, e.g. STRESS_SERVER_PORT.
	EnvPrefix = "STRESS"
)

// Routes
const (
	APIBasePath       = "/api"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// Names of the well-known files under the data directories.
const (
	BanksConfigFile = "banks.yaml"
	WorkbookFile    = "stress_test.xlsx"
)
