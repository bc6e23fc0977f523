package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/ingestkit/ingestkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "dev",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments for job and pipeline execution.
type Metrics struct {
	jobTotal         metric.Int64Counter
	jobDuration      metric.Float64Histogram
	pipelineTotal    metric.Int64Counter
	pipelineDuration metric.Float64Histogram
	retryTotal       metric.Int64Counter
	rowsTotal        metric.Int64Counter
	errorTotal       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	jobTotal, err := meter.Int64Counter("job.runs.total",
		metric.WithDescription("Total number of job runs by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job.runs.total counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("job.run.duration",
		metric.WithDescription("Wall-clock duration of job runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating job.run.duration histogram: %w", err)
	}

	pipelineTotal, err := meter.Int64Counter("pipeline.runs.total",
		metric.WithDescription("Total number of pipeline attempts by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.runs.total counter: %w", err)
	}

	pipelineDuration, err := meter.Float64Histogram("pipeline.run.duration",
		metric.WithDescription("Duration of pipeline attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.run.duration histogram: %w", err)
	}

	retryTotal, err := meter.Int64Counter("pipeline.retries.total",
		metric.WithDescription("Total pipeline retry attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.retries.total counter: %w", err)
	}

	rowsTotal, err := meter.Int64Counter("rows.processed.total",
		metric.WithDescription("Total rows moved by pipeline"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rows.processed.total counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	return &Metrics{
		jobTotal:         jobTotal,
		jobDuration:      jobDuration,
		pipelineTotal:    pipelineTotal,
		pipelineDuration: pipelineDuration,
		retryTotal:       retryTotal,
		rowsTotal:        rowsTotal,
		errorTotal:       errorTotal,
	}, nil
}

// RecordJob records a finished job run.
func (m *Metrics) RecordJob(ctx context.Context, job, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrJob, job),
		attribute.String(AttrStatus, status),
	)
	m.jobTotal.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrJob, job),
	))
}

// RecordPipeline records a finished pipeline attempt.
func (m *Metrics) RecordPipeline(ctx context.Context, pipeline, status string, duration time.Duration, rows int64) {
	attrs := metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.String(AttrStatus, status),
	)
	m.pipelineTotal.Add(ctx, 1, attrs)
	m.pipelineDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
	))
	if rows > 0 {
		m.rowsTotal.Add(ctx, rows, metric.WithAttributes(
			attribute.String(AttrPipeline, pipeline),
		))
	}
}

// RecordRetry records one retry of a pipeline.
func (m *Metrics) RecordRetry(ctx context.Context, pipeline string, attempt int) {
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPipeline, pipeline),
		attribute.Int(AttrAttempt, attempt),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}
