// Package tracing wires OpenTelemetry into the pipeline stages, the
// service clients and the MCP tools.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	ServiceName = "osmgender"
	TracerName  = "github.com/NERVsystems/osmgender"
)

// Tracer is replaced by Init. It is a no-op until then.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(TracerName)

// Config selects the exporter. An empty Endpoint disables export.
type Config struct {
	Endpoint    string
	Version     string
	Environment string
	// SampleRatio is the share of root spans kept, 1 keeps all and 0 none.
	SampleRatio float64
}

// Init installs the tracer described by cfg and returns the function
// that flushes pending spans.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		Tracer = noop.NewTracerProvider().Tracer(TracerName)
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	))
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	Tracer = tp.Tracer(TracerName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer.Start(ctx, name, opts...)
}

// StartStage starts the root span of a pipeline stage.
func StartStage(ctx context.Context, stage, city, runID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "stage."+stage, trace.WithAttributes(StageAttributes(stage, city, runID)...))
}

// EndWithError sets the span status from err and ends it.
func EndWithError(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// recording returns the span of ctx when it records, nil otherwise.
func recording(ctx context.Context) trace.Span {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		return span
	}
	return nil
}

func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	if span := recording(ctx); span != nil {
		span.RecordError(err, opts...)
	}
}

func AddEvent(ctx context.Context, name string, opts ...trace.EventOption) {
	if span := recording(ctx); span != nil {
		span.AddEvent(name, opts...)
	}
}

func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := recording(ctx); span != nil {
		span.SetAttributes(attrs...)
	}
}
