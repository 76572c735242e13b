package tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgender/pkg/version"
)

func GetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the version and build information of the osmgender server"),
		mcp.WithReadOnlyHintAnnotation(true),
	)
}

// HandleGetVersion reports the build of the running binary.
func HandleGetVersion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return textResult(version.Get(), slog.Default().With("tool", "get_version")), nil
}
