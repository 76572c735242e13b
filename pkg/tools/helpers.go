package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmgender/pkg/core"
)

// decodeArguments binds the arguments of req to a T.
func decodeArguments[T any](req mcp.CallToolRequest) (T, error) {
	var args T
	if err := req.BindArguments(&args); err != nil {
		return args, core.NewError(core.ErrInvalidArguments, "invalid arguments").
			WithGuidance("Check the argument types against the tool schema").
			Wrap(err)
	}
	return args, nil
}

// jsonTool adapts a typed handler to mcp-go. Its result is returned as a
// JSON text. A *core.Error becomes a structured error result; any other
// error is reported without its details.
func jsonTool[T any](name string, fn func(ctx context.Context, args T, logger *slog.Logger) (any, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", name)

		args, err := decodeArguments[T](req)
		if err == nil {
			var out any
			if out, err = fn(ctx, args, logger); err == nil {
				return textResult(out, logger), nil
			}
		}

		var coded *core.Error
		if errors.As(err, &coded) {
			logger.Debug("call rejected", "code", coded.Code, "error", err)
			return coded.ToMCPResult(), nil
		}
		logger.Error("call failed", "error", err)
		return mcp.NewToolResultError("Failed to process request"), nil
	}
}

func textResult(v any, logger *slog.Logger) *mcp.CallToolResult {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal result", "error", err)
		return mcp.NewToolResultError("Failed to generate result")
	}
	return mcp.NewToolResultText(string(raw))
}
