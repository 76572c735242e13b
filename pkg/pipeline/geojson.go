package pipeline

import (
	"context"
	"errors"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/feature"
	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/tracing"
	"github.com/NERVsystems/osmgender/pkg/warnings"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// Result holds the collections of a build.
type Result struct {
	Collections map[osm.ElementType]*feature.Collection
	Warnings    map[osm.ElementType][]string
}

// Collection returns the collection of kind, or nil.
func (r *Result) Collection(kind osm.ElementType) *feature.Collection {
	return r.Collections[kind]
}

// GeoJSON builds the collections and writes them to the output directory.
func (p *Pipeline) GeoJSON(ctx context.Context) (*Result, error) {
	var result *Result
	err := p.runStage(ctx, StageGeoJSON, func(ctx context.Context) error {
		var err error
		result, err = p.build(ctx)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(p.layout.OutputDir, 0o755); err != nil {
			return err
		}
		for _, kind := range Kinds {
			path := p.layout.GeoJSONPath(kind)
			if err := result.Collections[kind].WriteFile(path); err != nil {
				return err
			}
			p.logger.Info("collection written", "type", kind, "path", path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Build assembles the collections in memory without writing them.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	return p.build(ctx)
}

func (p *Pipeline) build(ctx context.Context) (*Result, error) {
	events, err := p.loadEvents()
	if err != nil {
		return nil, err
	}

	entities, err := wikidata.NewStore(p.layout.WikidataDir(), p.settings.CacheSize, p.logger)
	if err != nil {
		return nil, err
	}

	chain := attribution.NewChain(
		&attribution.WikidataStrategy{
			Entities:  entities,
			Extractor: wikidata.Extractor{Instances: p.city.Instances, Languages: p.city.Languages},
		},
		&attribution.ConfigStrategy{Genders: p.city.GenderOverrides()},
		&attribution.EventStrategy{Events: events},
	)

	result := &Result{
		Collections: make(map[osm.ElementType]*feature.Collection, len(Kinds)),
		Warnings:    make(map[osm.ElementType][]string, len(Kinds)),
	}
	for _, kind := range Kinds {
		coll, items, err := p.buildCollection(ctx, kind, chain)
		if err != nil {
			return nil, err
		}
		result.Collections[kind] = coll
		result.Warnings[kind] = items
	}
	return result, nil
}

// buildCollection builds the collection of kind from its own Overpass
// document, applies the exclusions and reports warnings and statistics.
func (p *Pipeline) buildCollection(ctx context.Context, kind osm.ElementType, chain attribution.Chain) (coll *feature.Collection, items []string, err error) {
	ctx, span := tracing.StartSpan(ctx, "collection.build",
		trace.WithAttributes(attribute.String(tracing.AttrElementType, string(kind))),
	)
	defer func() { tracing.EndWithError(span, err) }()

	doc, err := loadDocument(p.layout.OverpassPath(kind))
	if err != nil {
		return nil, nil, err
	}
	store := osm.NewStore(doc.Elements)
	p.logger.Info("building collection",
		"type", kind,
		"nodes", store.Count(osm.TypeNode),
		"ways", store.Count(osm.TypeWay),
		"relations", store.Count(osm.TypeRelation),
	)

	sink := warnings.NewSink()
	assembler := feature.NewAssembler(store, chain,
		feature.WithConcurrency(p.settings.BuildConcurrency),
		feature.WithLogger(p.logger),
	)
	built, err := assembler.Build(ctx, kind, sink)
	if err != nil {
		return nil, nil, err
	}
	coll = built.Exclude(p.city.Excluded(kind))
	excluded := len(built.Features) - len(coll.Features)

	sink.Log(p.logger, "type", kind)

	for _, f := range coll.Features {
		monitoring.RecordFeature(string(kind), string(f.Properties.Source), f.Properties.Gender)
		if f.Geometry != nil {
			monitoring.RecordGeometry(string(f.Geometry.Type))
		}
	}
	monitoring.RecordWarnings(StageGeoJSON, sink.Len())

	stats := feature.Summarize(coll)
	span.SetAttributes(tracing.CollectionAttributes(string(kind), len(coll.Features), excluded, sink.Len())...)
	p.logger.Info("collection built",
		"type", kind,
		"features", len(coll.Features),
		"excluded", excluded,
		"warnings", sink.Len(),
		"by_gender", stats.ByGender,
		"by_source", stats.BySource,
	)
	return coll, sink.Items(), nil
}

// loadEvents reads the event CSV of the city. A configured file that does
// not exist is skipped.
func (p *Pipeline) loadEvents() (*attribution.EventMap, error) {
	if p.city.Event.CSV == "" {
		return nil, nil
	}
	path := p.layout.CityFile(p.city.Event.CSV)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("event CSV not found, skipping", "path", path)
		return nil, nil
	}

	events, err := attribution.LoadEventFile(path)
	if err != nil {
		return nil, err
	}
	p.logger.Info("event CSV loaded", "path", path, "names", events.Len())
	return events, nil
}
