package tracing

import "go.opentelemetry.io/otel/attribute"

// Pipeline
const (
	AttrStage       = "osmgender.stage"
	AttrCity        = "osmgender.city"
	AttrRunID       = "osmgender.run_id"
	AttrElementType = "osm.element.type"
	AttrFeatures    = "osmgender.features"
	AttrExcluded    = "osmgender.excluded"
	AttrWarnings    = "osmgender.warnings"
	AttrWikidataID  = "wikidata.id"
	AttrCacheHit    = "wikidata.cache.hit"
)

// MCP tools and the HTTP transport
const (
	AttrMCPToolName     = "mcp.tool.name"
	AttrMCPToolStatus   = "mcp.tool.status"
	AttrMCPToolDuration = "mcp.tool.duration_ms"
	AttrMCPResultSize   = "mcp.tool.result_size"
	AttrHTTPMethod      = "http.method"
	AttrHTTPPath        = "http.path"
	AttrHTTPStatusCode  = "http.status_code"
	AttrHTTPSessionID   = "mcp.session.id"
)

// Overpass and Wikidata clients
const (
	AttrServiceName      = "osmgender.service"
	AttrRateLimitService = "osmgender.ratelimit.service"
	AttrRateLimitWaitMs  = "osmgender.ratelimit.wait_ms"

	ServiceOverpass = "overpass"
	ServiceWikidata = "wikidata"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func StageAttributes(stage, city, runID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStage, stage),
		attribute.String(AttrCity, city),
		attribute.String(AttrRunID, runID),
	}
}

// CollectionAttributes describes a built FeatureCollection.
func CollectionAttributes(elementType string, features, excluded, warnings int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrElementType, elementType),
		attribute.Int(AttrFeatures, features),
		attribute.Int(AttrExcluded, excluded),
		attribute.Int(AttrWarnings, warnings),
	}
}

func MCPToolAttributes(tool, status string, durationMs int64, resultSize int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrMCPToolName, tool),
		attribute.String(AttrMCPToolStatus, status),
		attribute.Int64(AttrMCPToolDuration, durationMs),
		attribute.Int(AttrMCPResultSize, resultSize),
	}
}
