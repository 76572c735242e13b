// Package pipeline runs the stages that turn a city into GeoJSON: fetch the
// streets from Overpass, download their etymologies from Wikidata, then
// assemble the attributed feature collections.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/NERVsystems/osmgender/pkg/config"
	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/tracing"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// Stage names, also used as command names.
const (
	StageOverpass = "overpass"
	StageWikidata = "wikidata"
	StageGeoJSON  = "geojson"
)

// Kinds are the element types turned into collections, in build order.
var Kinds = []osm.ElementType{osm.TypeRelation, osm.TypeWay}

// Pipeline runs the stages of one city.
type Pipeline struct {
	layout   Layout
	city     *config.City
	settings *config.Settings
	runID    string
	logger   *slog.Logger

	overpass *osm.OverpassClient
	wikidata *wikidata.Client
}

// New creates a pipeline for the city at layout. The HTTP clients are
// built from settings.
func New(layout Layout, city *config.City, settings *config.Settings, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("city", layout.City, "run_id", runID)

	overpassHTTP := core.NewServiceClient(tracing.ServiceOverpass, "query", settings.UserAgent, settings.OverpassRPS, settings.OverpassBurst)
	wikidataHTTP := core.NewServiceClient(tracing.ServiceWikidata, "entity", settings.UserAgent, settings.WikidataRPS, settings.WikidataBurst)

	return &Pipeline{
		layout:   layout,
		city:     city,
		settings: settings,
		runID:    runID,
		logger:   logger,
		overpass: osm.NewOverpassClient(settings.OverpassURL, overpassHTTP, logger),
		wikidata: wikidata.NewClient(settings.WikidataURL, wikidataHTTP),
	}
}

// Load reads the city configuration of layout and creates its pipeline.
func Load(layout Layout, settings *config.Settings, logger *slog.Logger) (*Pipeline, error) {
	city, err := config.LoadCity(layout.ConfigPath())
	if err != nil {
		return nil, err
	}
	return New(layout, city, settings, logger), nil
}

// WithRetryOptions overrides the retry policy of both HTTP clients.
func (p *Pipeline) WithRetryOptions(options core.RetryOptions) *Pipeline {
	p.overpass.WithRetryOptions(options)
	p.wikidata.WithRetryOptions(options)
	return p
}

// Layout returns the file layout of the pipeline.
func (p *Pipeline) Layout() Layout {
	return p.layout
}

// City returns the city configuration.
func (p *Pipeline) City() *config.City {
	return p.city
}

// RunID identifies this run in logs and traces.
func (p *Pipeline) RunID() string {
	return p.runID
}

// runStage wraps a stage with its span, duration metric and logs.
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracing.StartStage(ctx, stage, p.layout.City, p.runID)
	defer func() { tracing.EndWithError(span, err) }()

	start := time.Now()
	p.logger.Info("stage started", "stage", stage)

	err = fn(ctx)

	duration := time.Since(start)
	monitoring.RecordStage(stage, duration, err == nil)
	if err != nil {
		monitoring.RecordError(stage, errorType(err))
		return err
	}
	p.logger.Info("stage done", "stage", stage, "duration", duration)
	return nil
}

func errorType(err error) string {
	for _, code := range []core.ErrorCode{
		core.ErrMissingDocument, core.ErrParseError, core.ErrAmbiguousMapping,
		core.ErrInvalidConfig, core.ErrNotFound, core.ErrRateLimit,
		core.ErrServiceTimeout, core.ErrServiceUnavailable, core.ErrNetworkError,
	} {
		if core.IsCode(err, code) {
			return string(code)
		}
	}
	return "other"
}

// loadDocument reads an Overpass document written by the overpass stage.
func loadDocument(path string) (*osm.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.MissingDocument(path, StageOverpass, err)
	}
	defer f.Close()

	doc, err := osm.DecodeDocument(f)
	if err != nil {
		return nil, core.ParseFailure(path, err)
	}
	return doc, nil
}

// writeFile writes data to path through a temporary file so readers never
// see a partial document.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
