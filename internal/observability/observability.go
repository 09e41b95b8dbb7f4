package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/cseils/breeze.tooling"

// Option configures the observability setup.
type Option func(*Config)

// WithTracerProvider sets the OpenTelemetry tracer provider. Without one,
// span creation is a no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the OpenTelemetry meter provider. Without one,
// metric recording is a no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name reported on telemetry.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version reported on telemetry.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used for observability diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// Config holds the initialized tracing and metrics state shared by the
// metadata and save paths.
type Config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	serviceVersion string
	logger         *slog.Logger

	tracer trace.Tracer
	meter  metric.Meter

	buildCounter  metric.Int64Counter
	buildDuration metric.Float64Histogram
	saveCounter   metric.Int64Counter
	saveEntities  metric.Int64Counter
}

// NewConfig applies the options. Call Initialize before use.
func NewConfig(opts ...Option) *Config {
	c := &Config{serviceName: "breeze-metadata"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates the tracer, meter, and instruments. Missing providers
// fall back to no-op implementations, so recording is always safe.
func (c *Config) Initialize() error {
	tp := c.tracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	c.tracer = tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion))

	mp := c.meterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	c.meter = mp.Meter(instrumentationName)

	var err error
	if c.buildCounter, err = c.meter.Int64Counter("breeze.metadata.builds",
		metric.WithDescription("Completed metadata document builds")); err != nil {
		return fmt.Errorf("create build counter: %w", err)
	}
	if c.buildDuration, err = c.meter.Float64Histogram("breeze.metadata.build.duration",
		metric.WithDescription("Metadata build duration"), metric.WithUnit("ms")); err != nil {
		return fmt.Errorf("create build duration histogram: %w", err)
	}
	if c.saveCounter, err = c.meter.Int64Counter("breeze.save.requests",
		metric.WithDescription("Save requests processed")); err != nil {
		return fmt.Errorf("create save counter: %w", err)
	}
	if c.saveEntities, err = c.meter.Int64Counter("breeze.save.entities",
		metric.WithDescription("Entities written by save requests")); err != nil {
		return fmt.Errorf("create save entity counter: %w", err)
	}
	return nil
}

// Enabled reports whether a real tracer or meter provider was supplied.
func (c *Config) Enabled() bool {
	return c != nil && (c.tracerProvider != nil || c.meterProvider != nil)
}

// Logger returns the configured logger, or nil.
func (c *Config) Logger() *slog.Logger {
	if c == nil {
		return nil
	}
	return c.logger
}

// StartSpan opens a span named after the operation. Safe on a nil or
// uninitialized Config.
func (c *Config) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if c == nil || c.tracer == nil {
		return tracenoop.NewTracerProvider().Tracer(instrumentationName).Start(ctx, name)
	}
	return c.tracer.Start(ctx, name,
		trace.WithAttributes(append(attrs, attribute.String("service.name", c.serviceName))...))
}

// EndSpan records the error state and closes the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordBuild counts one metadata build and its duration.
func (c *Config) RecordBuild(ctx context.Context, typeCount int, elapsed time.Duration, err error) {
	if c == nil || c.buildCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Int("breeze.types", typeCount),
		attribute.Bool("error", err != nil),
	)
	c.buildCounter.Add(ctx, 1, attrs)
	c.buildDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// RecordSave counts one save request and the entities it carried.
func (c *Config) RecordSave(ctx context.Context, entityCount int, err error) {
	if c == nil || c.saveCounter == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("error", err != nil))
	c.saveCounter.Add(ctx, 1, attrs)
	c.saveEntities.Add(ctx, int64(entityCount), attrs)
}
