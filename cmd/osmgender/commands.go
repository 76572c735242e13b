package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NERVsystems/osmgender/pkg/config"
	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/pipeline"
	"github.com/NERVsystems/osmgender/pkg/server"
	"github.com/NERVsystems/osmgender/pkg/tracing"
	"github.com/NERVsystems/osmgender/pkg/version"
)

const shutdownTimeout = 30 * time.Second

// Transports accepted by the serve command
const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

// env is the process environment shared by the subcommands.
type env struct {
	logger   *slog.Logger
	settings *config.Settings
	pipeline *pipeline.Pipeline

	shutdownTracing func(context.Context) error
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// setup configures logging, tracing and metrics, reads the settings and
// loads the pipeline of the selected city.
func setup(ctx context.Context, flags *globalFlags) (*env, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(flags.logLevel)}))
	slog.SetDefault(logger)

	if flags.city == "" {
		return nil, fmt.Errorf("--city is required")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		settings.DataDir = flags.dataDir
	}
	if flags.metricsFile != "" {
		settings.MetricsFile = flags.metricsFile
	}

	e := &env{logger: logger, settings: settings}

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    settings.OTLPEndpoint,
		Version:     version.BuildVersion,
		Environment: settings.Environment,
		SampleRatio: settings.TraceSampleRatio,
	})
	if err != nil {
		// tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		e.shutdownTracing = shutdown
		if settings.OTLPEndpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", settings.OTLPEndpoint)
		}
	}

	info := version.Get()
	monitoring.SetSystemInfo(info.Version, info.GoVersion, info.Commit, info.Date)
	core.SetMonitoringHooks(&core.MonitoringHooks{
		OnResponse: func(service, operation string, duration time.Duration, success bool) {
			monitoring.RecordExternalServiceRequest(service, operation, duration, success)
		},
		OnRateLimit: func(service string, wait time.Duration) {
			monitoring.RecordRateLimitWait(service, wait)
		},
		OnRetry: func(service string, attempt int) {
			monitoring.RecordRetry(service)
		},
		OnError: func(service, errorType string) {
			monitoring.RecordError(service, errorType)
		},
	})

	layout := pipeline.NewLayout(settings.DataDir, flags.city)
	p, err := pipeline.Load(layout, settings, logger)
	if err != nil {
		e.close(ctx)
		return nil, err
	}
	e.pipeline = p

	logger.Info("city loaded",
		"version", info.Version,
		"data_dir", settings.DataDir,
		"city", flags.city,
		"config", p.City().Describe())
	return e, nil
}

// close flushes the metrics textfile and the pending spans.
func (e *env) close(ctx context.Context) {
	if e.settings.MetricsFile != "" {
		if err := monitoring.WriteTextfile(e.settings.MetricsFile); err != nil {
			e.logger.Error("failed to write metrics", "path", e.settings.MetricsFile, "error", err)
		} else {
			e.logger.Debug("metrics written", "path", e.settings.MetricsFile)
		}
	}
	if e.shutdownTracing != nil {
		if err := e.shutdownTracing(ctx); err != nil {
			e.logger.Error("error shutting down tracing", "error", err)
		}
	}
}

// runStage runs one pipeline stage by name.
func runStage(ctx context.Context, p *pipeline.Pipeline, stage string) error {
	switch stage {
	case pipeline.StageOverpass:
		return p.Overpass(ctx)
	case pipeline.StageWikidata:
		return p.Wikidata(ctx)
	case pipeline.StageGeoJSON:
		_, err := p.GeoJSON(ctx)
		return err
	}
	return fmt.Errorf("unknown stage %q", stage)
}

func stageCmd(flags *globalFlags, stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   stage,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.close(context.Background())

			return runStage(ctx, e.pipeline, stage)
		},
	}
}

func allCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run the overpass, wikidata and geojson stages in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.close(context.Background())

			for _, stage := range []string{pipeline.StageOverpass, pipeline.StageWikidata, pipeline.StageGeoJSON} {
				if err := runStage(ctx, e.pipeline, stage); err != nil {
					return fmt.Errorf("%s: %w", stage, err)
				}
			}
			return nil
		},
	}
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		transport string
		addr      string
		baseURL   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build the collections in memory and serve them over MCP",
		Long: `serve runs the geojson stage without writing files and exposes the
collections through MCP tools: street_attribution, find_streets and
gender_statistics.

The stdio transport is meant to be launched by an MCP client. The http
transport serves SSE with /health and /metrics next to it; set
OSMGENDER_HTTP_TOKEN to require a bearer token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transport != transportStdio && transport != transportHTTP {
				return fmt.Errorf("unknown transport %q, expected %s or %s", transport, transportStdio, transportHTTP)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := setup(ctx, flags)
			if err != nil {
				return err
			}
			defer e.close(context.Background())

			if addr != "" {
				e.settings.HTTPAddr = addr
			}
			if baseURL != "" {
				e.settings.HTTPBaseURL = baseURL
			}
			return serve(ctx, e, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "MCP transport (stdio, http)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default $OSMGENDER_HTTP_ADDR or :7082)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL advertised to SSE clients (auto-detected if empty)")

	return cmd
}

func serve(ctx context.Context, e *env, transport string) error {
	result, err := e.pipeline.Build(ctx)
	if err != nil {
		return err
	}

	s := server.NewServer(result, e.logger)

	if transport == transportStdio {
		e.logger.Info("transport_enabled", "type", transportStdio)
		return s.ServeStdio(ctx)
	}

	cfg := server.DefaultHTTPTransportConfig()
	cfg.Addr = e.settings.HTTPAddr
	cfg.BaseURL = e.settings.HTTPBaseURL
	cfg.AuthToken = e.settings.HTTPToken
	cfg.RateLimit = e.settings.HTTPRateLimit
	cfg.RateBurst = e.settings.HTTPRateBurst

	httpTransport := server.NewHTTPTransport(s.MCP(), cfg, e.logger)

	errCh := make(chan error, 1)
	go func() {
		e.logger.Info("transport_enabled", "type", transportHTTP, "addr", cfg.Addr)
		errCh <- httpTransport.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		e.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpTransport.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP transport: %w", err)
	}
	e.logger.Info("server stopped")
	return nil
}
