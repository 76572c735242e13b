// Package server exposes the attributed streets of a city as an MCP server,
// over stdio or HTTP+SSE.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/NERVsystems/osmgender/pkg/tools"
	"github.com/NERVsystems/osmgender/pkg/version"
)

const ServerName = "osmgender"

// Server answers MCP tool calls from the collections of one city.
type Server struct {
	mcp    *mcpserver.MCPServer
	logger *slog.Logger
}

// NewServer registers the street tools over streets.
func NewServer(streets tools.Streets, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcp := mcpserver.NewMCPServer(ServerName, version.BuildVersion,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	tools.NewRegistry(logger, streets).RegisterTools(mcp)

	logger.Info("MCP server ready", "name", ServerName, "version", version.BuildVersion)
	return &Server{mcp: mcp, logger: logger}
}

// Serve reads JSON-RPC messages from in and writes the responses to out
// until in is exhausted or ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeStdio serves the process stdin and stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// MCP returns the underlying server, for the HTTP transport.
func (s *Server) MCP() *mcpserver.MCPServer {
	return s.mcp
}
