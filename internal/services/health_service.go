package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"macrostress/internal/config"
	"macrostress/internal/infrastructure"
)

// Health states reported by the checks.
const (
	StatusOK       = "ok"
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	stress    *StressTestService
	clients   ClientCounter
	runtime   *infrastructure.RuntimeStats
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                          `json:"status"`
	Timestamp time.Time                       `json:"timestamp"`
	Version   string                          `json:"version"`
	Runtime   *infrastructure.RuntimeSnapshot `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth        `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// VersionInfo describes the running build.
type VersionInfo struct {
	App       string    `json:"app"`
	Version   string    `json:"version"`
	GoVersion string    `json:"go_version"`
	OS        string    `json:"os"`
	Arch      string    `json:"arch"`
	StartTime time.Time `json:"start_time"`
}

// NewHealthService creates a health service. stress, clients and rt may be nil.
func NewHealthService(version string, paths *config.Paths, stress *StressTestService, clients ClientCounter, rt *infrastructure.RuntimeStats, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		paths:     paths,
		stress:    stress,
		clients:   clients,
		runtime:   rt,
		startTime: time.Now(),
		logger:    infrastructure.WithComponent(logger, "health_service"),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := hs.ReadinessCheck(ctx)
	if status.Status == StatusReady {
		status.Status = StatusOK
	}
	status.Runtime = hs.snapshot()
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   hs.snapshot(),
	}
}

// ReadinessCheck reports whether the stress test service can take runs.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"stress_test": hs.checkStressService(),
			"output":      hs.checkOutputDir(),
			"websocket":   hs.checkWebSocket(),
		},
	}
	for name, s := range status.Services {
		if s.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "service_not_ready",
				slog.String("service", name),
				slog.String("message", s.Message))
		}
	}
	return status
}

// Version returns version information
func (hs *HealthService) Version() VersionInfo {
	return VersionInfo{
		App:       config.AppName,
		Version:   hs.version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		StartTime: hs.startTime,
	}
}

func (hs *HealthService) snapshot() *infrastructure.RuntimeSnapshot {
	if hs.runtime == nil {
		return nil
	}
	s := hs.runtime.Snapshot()
	return &s
}

func (hs *HealthService) checkStressService() ServiceHealth {
	if hs.stress == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "stress test service not initialized"}
	}
	if _, err := hs.stress.Banks(); err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("bank configuration: %v", err)}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d run(s) in progress", hs.stress.ActiveRuns()),
	}
}

func (hs *HealthService) checkOutputDir() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: StatusNotReady, Message: "paths not resolved"}
	}
	info, err := os.Stat(hs.paths.OutputDir)
	if err != nil {
		return ServiceHealth{Status: StatusNotReady, Message: fmt.Sprintf("output directory: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: StatusNotReady, Message: hs.paths.OutputDir + " is not a directory"}
	}
	return ServiceHealth{Status: StatusReady}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: StatusReady, Message: "disabled"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: fmt.Sprintf("%d client(s)", hs.clients.ClientCount()),
	}
}
