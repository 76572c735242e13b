// Package monitoring holds the Prometheus metrics recorded by the build
// stages and the MCP server. Batch runs dump them to a textfile that a node
// exporter can pick up.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServiceName prefixes every metric.
const ServiceName = "osmgender"

// MCP tools
var (
	MCPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Subsystem: "mcp",
		Name:      "requests_total",
		Help:      "MCP tool calls by tool and outcome.",
	}, []string{"tool", "status"})

	MCPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ServiceName,
		Subsystem: "mcp",
		Name:      "request_duration_seconds",
		Help:      "MCP tool call latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 7),
	}, []string{"tool"})
)

// Overpass and Wikidata traffic
var (
	ExternalServiceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Subsystem: "external_service",
		Name:      "requests_total",
		Help:      "Requests sent to Overpass and Wikidata by outcome.",
	}, []string{"service", "operation", "status"})

	ExternalServiceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ServiceName,
		Subsystem: "external_service",
		Name:      "request_duration_seconds",
		Help:      "Latency of Overpass and Wikidata requests. City-wide Overpass queries take minutes.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 300},
	}, []string{"service", "operation"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Subsystem: "external_service",
		Name:      "retries_total",
		Help:      "Requests sent again after a retryable failure.",
	}, []string{"service"})

	RateLimitWaitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ServiceName,
		Name:      "rate_limit_wait_duration_seconds",
		Help:      "Time spent waiting for a service rate limiter.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
	}, []string{"service"})
)

// Wikidata entity cache
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "cache_hits_total",
		Help:      "Entity lookups answered from memory.",
	}, []string{"cache_type"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "cache_misses_total",
		Help:      "Entity lookups that read the document from disk.",
	}, []string{"cache_type"})

	CacheSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ServiceName,
		Name:      "cache_size",
		Help:      "Entities held in memory.",
	}, []string{"cache_type"})
)

// Build stages
var (
	FeaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "features_total",
		Help:      "Street features written by element type, attribution source and gender.",
	}, []string{"element_type", "source", "gender"})

	GeometriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "geometries_total",
		Help:      "Resolved street geometries by GeoJSON type.",
	}, []string{"kind"})

	WarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "warnings_total",
		Help:      "Data quality warnings by stage.",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ServiceName,
		Name:      "stage_duration_seconds",
		Help:      "Duration of the overpass, wikidata and geojson stages.",
		Buckets:   []float64{0.1, 1, 5, 15, 60, 300, 900},
	}, []string{"stage", "status"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: ServiceName,
		Name:      "errors_total",
		Help:      "Errors by component and error code.",
	}, []string{"component", "error_type"})

	SystemInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ServiceName,
		Name:      "system_info",
		Help:      "Build information of the running binary.",
	}, []string{"version", "go_version", "build_commit", "build_date"})
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordMCPRequest(tool string, took time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, outcome(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(took.Seconds())
}

func RecordExternalServiceRequest(service, operation string, took time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, outcome(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(took.Seconds())
}

func RecordRetry(service string) {
	RetriesTotal.WithLabelValues(service).Inc()
}

func RecordRateLimitWait(service string, waited time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(waited.Seconds())
}

func RecordCacheHit(cacheType string)  { CacheHits.WithLabelValues(cacheType).Inc() }
func RecordCacheMiss(cacheType string) { CacheMisses.WithLabelValues(cacheType).Inc() }

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

// RecordFeature counts a written feature. A missing gender is labelled "-".
func RecordFeature(elementType, source string, gender *string) {
	g := "-"
	if gender != nil {
		g = *gender
	}
	FeaturesTotal.WithLabelValues(elementType, source, g).Inc()
}

func RecordGeometry(kind string) {
	GeometriesTotal.WithLabelValues(kind).Inc()
}

func RecordWarnings(stage string, count int) {
	if count > 0 {
		WarningsTotal.WithLabelValues(stage).Add(float64(count))
	}
}

func RecordStage(stage string, took time.Duration, success bool) {
	StageDuration.WithLabelValues(stage, outcome(success)).Observe(took.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// SetSystemInfo publishes the build information of the running binary,
// replacing any earlier series.
func SetSystemInfo(version, goVersion, commit, date string) {
	SystemInfo.Reset()
	SystemInfo.WithLabelValues(version, goVersion, commit, date).Set(1)
}

// WriteTextfile writes every registered metric to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
