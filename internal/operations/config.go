package operations

import (
	"time"
)

// Config controls how the manager executes a run.
type Config struct {
	// StageTimeouts bounds individual steps; missing entries use
	// DefaultStageTimeout.
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// RunTimeout bounds a whole run. Zero means no bound beyond the
	// caller's context.
	RunTimeout time.Duration `json:"run_timeout"`
}

// NewConfig returns the default operation configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StageIDLoadHistory:  DefaultLoadHistoryTimeout,
			StageIDWriteReports: DefaultWriteReportTimeout,
		},
	}
}

// GetStageTimeout returns the timeout for a specific Step
func (c *Config) GetStageTimeout(stageID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stageID]; ok && timeout > 0 {
		return timeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific Step
func (c *Config) SetStageTimeout(stageID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stageID] = timeout
}
