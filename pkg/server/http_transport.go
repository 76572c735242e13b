package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/version"
)

// HTTPTransportConfig configures the HTTP+SSE transport. Empty paths and a
// zero body limit take the defaults.
type HTTPTransportConfig struct {
	Addr string
	// BaseURL is the public origin announced to SSE clients.
	BaseURL string
	// AuthToken guards the MCP endpoints with a bearer token when set.
	AuthToken   string
	SSEPath     string
	MessagePath string
	// RateLimit is in requests per second per client IP, 0 disables it.
	RateLimit    float64
	RateBurst    int
	MaxBodyBytes int64
}

func DefaultHTTPTransportConfig() HTTPTransportConfig {
	return HTTPTransportConfig{
		Addr:         ":7082",
		SSEPath:      "/sse",
		MessagePath:  "/message",
		RateLimit:    10,
		RateBurst:    20,
		MaxBodyBytes: 1 << 20,
	}
}

func (c HTTPTransportConfig) withDefaults() HTTPTransportConfig {
	d := DefaultHTTPTransportConfig()
	if c.SSEPath == "" {
		c.SSEPath = d.SSEPath
	}
	if c.MessagePath == "" {
		c.MessagePath = d.MessagePath
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = d.MaxBodyBytes
	}
	return c
}

// HTTPTransport serves the MCP server over SSE, next to /health, /metrics
// and a discovery document at the root.
type HTTPTransport struct {
	cfg     HTTPTransportConfig
	logger  *slog.Logger
	sse     *mcpserver.SSEServer
	limiter *ClientLimiter
	handler http.Handler

	mu  sync.Mutex
	srv *http.Server
}

func NewHTTPTransport(mcp *mcpserver.MCPServer, cfg HTTPTransportConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if cfg.AuthToken != "" && weakToken(cfg.AuthToken) {
		logger.Warn("weak authentication token", "min_length", minTokenLength)
	}

	t := &HTTPTransport{
		cfg:    cfg,
		logger: logger,
		sse: mcpserver.NewSSEServer(mcp,
			mcpserver.WithSSEEndpoint(cfg.SSEPath),
			mcpserver.WithMessageEndpoint(cfg.MessagePath),
			mcpserver.WithBaseURL(cfg.BaseURL),
		),
	}
	if cfg.RateLimit > 0 {
		t.limiter = NewClientLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	t.handler = chain(t.routes(),
		RequestSizeLimiter(cfg.MaxBodyBytes),
		SecurityHeaders,
		LoggingMiddleware(logger),
		TracingMiddleware(),
	)
	return t
}

func (t *HTTPTransport) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", t.discovery)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle(t.cfg.SSEPath, t.guard(t.sse.SSEHandler()))
	mux.Handle(t.cfg.MessagePath, t.guard(t.sse.MessageHandler()))
	return mux
}

// guard applies the bearer token, then the per-client rate limit.
func (t *HTTPTransport) guard(next http.Handler) http.Handler {
	if t.cfg.AuthToken != "" {
		next = requireBearer(t.cfg.AuthToken, t.logger, next)
	}
	if t.limiter != nil {
		next = t.limiter.Middleware(next)
	}
	return next
}

type discoveryDocument struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Transport string            `json:"transport"`
	Endpoints map[string]string `json:"endpoints"`
	Auth      struct {
		Required bool   `json:"required"`
		Type     string `json:"type"`
	} `json:"auth"`
}

func (t *HTTPTransport) discovery(w http.ResponseWriter, r *http.Request) {
	doc := discoveryDocument{
		Service:   ServerName,
		Version:   version.BuildVersion,
		Transport: "HTTP+SSE",
		Endpoints: map[string]string{
			"sse":     t.cfg.BaseURL + t.cfg.SSEPath,
			"message": t.cfg.BaseURL + t.cfg.MessagePath,
			"health":  t.cfg.BaseURL + "/health",
			"metrics": t.cfg.BaseURL + "/metrics",
		},
	}
	doc.Auth.Required = t.cfg.AuthToken != ""
	doc.Auth.Type = "bearer"
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func (t *HTTPTransport) Handler() http.Handler {
	return t.handler
}

func (t *HTTPTransport) Config() HTTPTransportConfig {
	return t.cfg
}

// Start listens on the configured address until Shutdown.
func (t *HTTPTransport) Start() error {
	t.mu.Lock()
	if t.srv != nil {
		t.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP transport already started")
	}
	srv := &http.Server{
		Addr:              t.cfg.Addr,
		Handler:           t.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	t.srv = srv
	t.mu.Unlock()

	t.logger.Info("listening",
		"addr", t.cfg.Addr,
		"sse", t.cfg.SSEPath,
		"message", t.cfg.MessagePath,
		"auth", t.cfg.AuthToken != "",
		"rate_limit", t.cfg.RateLimit)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes the SSE sessions, then drains the HTTP server.
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	srv := t.srv
	t.srv = nil
	t.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := t.sse.Shutdown(ctx); err != nil {
		t.logger.Error("failed to close SSE sessions", "error", err)
	}
	return srv.Shutdown(ctx)
}
