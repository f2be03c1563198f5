package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"macrostress/internal/config"
)

// InstrumentationName names the tracer and meter.
const InstrumentationName = "macrostress"

// Telemetry holds the OpenTelemetry providers and the metric instruments
// used across the application.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *StressMetrics
	Runtime        *RuntimeStats
	// MetricsHandler serves the Prometheus scrape endpoint.
	MetricsHandler http.Handler

	logger *slog.Logger
}

// InitializeTelemetry sets up tracing and Prometheus-backed metrics. With
// telemetry disabled every instrument is a no-op and the metrics handler
// serves an empty registry. traceOut receives pretty-printed spans when
// cfg.TraceStdout is set; nil means stdout.
func InitializeTelemetry(cfg config.TelemetryConfig, version string, traceOut io.Writer, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = GetLogger()
	}
	t := &Telemetry{logger: logger.With("component", "telemetry")}
	registry := prometheus.NewRegistry()
	t.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	if !cfg.Enabled {
		t.Tracer = tracenoop.NewTracerProvider().Tracer(InstrumentationName)
		t.Meter = noop.NewMeterProvider().Meter(InstrumentationName)
		return t, t.createInstruments()
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceStdout {
		if traceOut == nil {
			traceOut = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
	}
	t.TracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	t.Tracer = t.TracerProvider.Tracer(InstrumentationName, trace.WithInstrumentationVersion(version))
	otel.SetTracerProvider(t.TracerProvider)

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	t.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.Meter = t.MeterProvider.Meter(InstrumentationName, metric.WithInstrumentationVersion(version))
	otel.SetMeterProvider(t.MeterProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := t.createInstruments(); err != nil {
		return nil, err
	}

	t.logger.Info("telemetry_initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("version", version),
		slog.Bool("trace_stdout", cfg.TraceStdout))
	return t, nil
}

// NoopTelemetry returns disabled telemetry, for tests and tools that do not
// export anything.
func NoopTelemetry() *Telemetry {
	t, err := InitializeTelemetry(config.TelemetryConfig{}, "", nil, slog.Default())
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Telemetry) createInstruments() error {
	metrics, err := NewStressMetrics(t.Meter)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	t.Metrics = metrics

	runtimeStats, err := NewRuntimeStats(t.Meter)
	if err != nil {
		return fmt.Errorf("failed to create runtime metrics: %w", err)
	}
	t.Runtime = runtimeStats
	return nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}
	return nil
}

// StressMetrics are the run, stage and HTTP instruments. A nil receiver
// records nothing.
type StressMetrics struct {
	RunsTotal       metric.Int64Counter
	RunDuration     metric.Float64Histogram
	ActiveRuns      metric.Int64UpDownCounter
	StagesTotal     metric.Int64Counter
	StageDuration   metric.Float64Histogram
	CapitalBreaches metric.Int64Counter

	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
}

// NewStressMetrics creates the instruments on meter.
func NewStressMetrics(meter metric.Meter) (*StressMetrics, error) {
	m := &StressMetrics{}
	var err error

	if m.RunsTotal, err = meter.Int64Counter("stress_runs_total",
		metric.WithDescription("Stress test runs by outcome")); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram("stress_run_duration_seconds",
		metric.WithDescription("Stress test run duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ActiveRuns, err = meter.Int64UpDownCounter("stress_active_runs",
		metric.WithDescription("Stress test runs in progress")); err != nil {
		return nil, err
	}
	if m.StagesTotal, err = meter.Int64Counter("stress_stages_total",
		metric.WithDescription("Pipeline stages executed by stage and outcome")); err != nil {
		return nil, err
	}
	if m.StageDuration, err = meter.Float64Histogram("stress_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.CapitalBreaches, err = meter.Int64Counter("stress_capital_breaches_total",
		metric.WithDescription("Bank-scenario pairs whose trough CET1 ratio fell below the hurdle")); err != nil {
		return nil, err
	}
	if m.HTTPRequestsTotal, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return attribute.String("status", "failure")
	}
	return attribute.String("status", "success")
}

// RecordRun records a finished run.
func (m *StressMetrics) RecordRun(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(statusAttr(err))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
}

// RunStarted adjusts the active run gauge; call the returned func when done.
func (m *StressMetrics) RunStarted(ctx context.Context) func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRuns.Add(ctx, 1)
	return func() { m.ActiveRuns.Add(ctx, -1) }
}

// RecordStage records one executed pipeline stage.
func (m *StressMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("stage", stage), statusAttr(err))
	m.StagesTotal.Add(ctx, 1, attrs)
	m.StageDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordBreaches records hurdle breaches for one scenario.
func (m *StressMetrics) RecordBreaches(ctx context.Context, scenario string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CapitalBreaches.Add(ctx, int64(n), metric.WithAttributes(attribute.String("scenario", scenario)))
}

// RecordHTTPRequest records a served request. route is the chi route pattern.
func (m *StressMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("code", strconv.Itoa(status)),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, d.Seconds(), attrs)
}

func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the active span's trace ID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError marks the current span as failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
