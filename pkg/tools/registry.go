// Package tools provides the MCP tools querying the attributed streets of a city.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/codes"

	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/tracing"
)

// Registry builds the tools answering from one set of collections.
type Registry struct {
	logger  *slog.Logger
	streets Streets
}

func NewRegistry(logger *slog.Logger, streets Streets) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, streets: streets}
}

// Tools returns the tools in registration order, without instrumentation.
func (r *Registry) Tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: GetVersionTool(), Handler: HandleGetVersion},
		{Tool: StreetAttributionTool(), Handler: jsonTool("street_attribution", r.handleStreetAttribution)},
		{Tool: FindStreetsTool(), Handler: jsonTool("find_streets", r.handleFindStreets)},
		{Tool: GenderStatisticsTool(), Handler: jsonTool("gender_statistics", r.handleGenderStatistics)},
	}
}

// Names lists the tool names in registration order.
func (r *Registry) Names() []string {
	var names []string
	for _, t := range r.Tools() {
		names = append(names, t.Tool.Name)
	}
	return names
}

// RegisterTools adds every tool to s, each traced and counted.
func (r *Registry) RegisterTools(s *server.MCPServer) {
	all := r.Tools()
	for i := range all {
		all[i].Handler = r.instrument(all[i].Tool.Name, all[i].Handler)
	}
	s.AddTools(all...)
	r.logger.Info("tools registered", "tools", r.Names())
}

// instrument runs handler in a span and records the call outcome. An
// error result counts as a failure.
func (r *Registry) instrument(name string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+name)
		defer span.End()

		start := time.Now()
		result, err := handler(ctx, req)
		took := time.Since(start)

		failed := err != nil || (result != nil && result.IsError)
		status := tracing.StatusSuccess
		if failed {
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool call failed")
			if err != nil {
				span.RecordError(err)
			}
		}

		size := resultSize(result)
		span.SetAttributes(tracing.MCPToolAttributes(name, status, took.Milliseconds(), size)...)
		monitoring.RecordMCPRequest(name, took, !failed)
		r.logger.Debug("tool call", "tool", name, "status", status, "duration", took, "bytes", size)

		return result, err
	}
}

func resultSize(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	raw, err := json.Marshal(result.Content)
	if err != nil {
		return 0
	}
	return len(raw)
}

