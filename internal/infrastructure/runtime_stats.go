package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats exposes process statistics as observable gauges and as a
// snapshot for the health endpoint.
type RuntimeStats struct {
	startTime time.Time
}

// RuntimeSnapshot is a point-in-time view of the process.
type RuntimeSnapshot struct {
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	GCCount       uint32  `json:"gc_count"`
	CPUCount      int     `json:"cpu_count"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewRuntimeStats registers the gauges on meter.
func NewRuntimeStats(meter metric.Meter) (*RuntimeStats, error) {
	rs := &RuntimeStats{startTime: time.Now()}

	goroutines, err := meter.Int64ObservableGauge("process_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return nil, err
	}
	heap, err := meter.Int64ObservableGauge("process_heap_alloc_bytes",
		metric.WithDescription("Bytes of allocated heap objects"), metric.WithUnit("By"))
	if err != nil {
		return nil, err
	}
	uptime, err := meter.Float64ObservableGauge("process_uptime_seconds",
		metric.WithDescription("Seconds since the process started"), metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		o.ObserveInt64(goroutines, int64(runtime.NumGoroutine()))
		o.ObserveInt64(heap, int64(mem.HeapAlloc))
		o.ObserveFloat64(uptime, time.Since(rs.startTime).Seconds())
		return nil
	}, goroutines, heap, uptime)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// Snapshot reads the current statistics.
func (rs *RuntimeStats) Snapshot() RuntimeSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeSnapshot{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(mem.HeapAlloc) / (1 << 20),
		SysMB:         float64(mem.Sys) / (1 << 20),
		GCCount:       mem.NumGC,
		CPUCount:      runtime.NumCPU(),
		UptimeSeconds: time.Since(rs.startTime).Seconds(),
	}
}

// Uptime returns the time since the stats were created.
func (rs *RuntimeStats) Uptime() time.Duration {
	return time.Since(rs.startTime)
}
