package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useRecorder routes spans to an in-memory recorder for one test.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	old := Tracer
	Tracer = tp.Tracer(TracerName)
	t.Cleanup(func() { Tracer = old })
	return recorder
}

func TestInitWithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, Config{Version: "test"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "noop")
	defer span.End()
	if span.IsRecording() {
		t.Error("expected a no-op span")
	}

	// helpers accept a non-recording span
	SetAttributes(ctx, attribute.String("k", "v"))
	AddEvent(ctx, "event")
	RecordError(ctx, errors.New("boom"))
}

func TestStageSpans(t *testing.T) {
	recorder := useRecorder(t)
	ctx := context.Background()

	ctx1, span := StartStage(ctx, "geojson", "gent", "run-1")
	AddEvent(ctx1, "collection_written")
	EndWithError(span, errors.New("failed"))

	_, span = StartStage(ctx, "wikidata", "gent", "run-2")
	EndWithError(span, nil)

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("got %d spans, expected 2", len(ended))
	}

	tests := []struct {
		name   string
		status codes.Code
		events int
	}{
		{"stage.geojson", codes.Error, 2},
		{"stage.wikidata", codes.Ok, 0},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ended[i]
			if s.Name() != tt.name {
				t.Errorf("name = %s, expected %s", s.Name(), tt.name)
			}
			if s.Status().Code != tt.status {
				t.Errorf("status = %v, expected %v", s.Status().Code, tt.status)
			}
			// RecordError adds an exception event
			if len(s.Events()) != tt.events {
				t.Errorf("got %d events, expected %d", len(s.Events()), tt.events)
			}
			if len(s.Attributes()) != 3 {
				t.Errorf("got %d attributes, expected stage, city and run id", len(s.Attributes()))
			}
		})
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{2, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		got := sampler(tt.ratio).Description()
		if len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
			t.Errorf("sampler(%v) = %s, expected prefix %s", tt.ratio, got, tt.want)
		}
	}
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int
	}{
		{"collection", CollectionAttributes("way", 10, 1, 2), 4},
		{"mcp tool", MCPToolAttributes("find_streets", StatusSuccess, 12, 34), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.attrs) != tt.want {
				t.Errorf("got %d attributes, expected %d", len(tt.attrs), tt.want)
			}
		})
	}
}
