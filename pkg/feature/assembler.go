package feature

import (
	"context"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/geometry"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/tracing"
	"github.com/NERVsystems/osmgender/pkg/warnings"
)

// Assembler builds the feature collections of an Overpass document.
type Assembler struct {
	store       *osm.Store
	geometry    *geometry.Resolver
	attribution attribution.Chain
	concurrency int
	logger      *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithConcurrency bounds the number of features built in parallel.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// NewAssembler creates an assembler over store.
func NewAssembler(store *osm.Store, chain attribution.Chain, opts ...Option) *Assembler {
	a := &Assembler{
		store:       store,
		geometry:    geometry.NewResolver(store),
		attribution: chain,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build creates one feature per element of kind, in store order. Features
// are built concurrently, each with its own warning sink; the sinks are
// merged into sink in feature order so the warnings read the same as a
// sequential build. The first attribution error aborts the build.
func (a *Assembler) Build(ctx context.Context, kind osm.ElementType, sink *warnings.Sink) (coll *Collection, err error) {
	ctx, span := tracing.StartSpan(ctx, "feature.build",
		trace.WithAttributes(attribute.String(tracing.AttrElementType, string(kind))),
	)
	defer func() { tracing.EndWithError(span, err) }()

	elements := a.store.Elements(kind)
	features := make([]Feature, len(elements))
	sinks := make([]*warnings.Sink, len(elements))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, el := range elements {
		g.Go(func() error {
			sinks[i] = warnings.NewSink()
			f, err := a.feature(ctx, el, sinks[i])
			if err != nil {
				return err
			}
			features[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range sinks {
		sink.Merge(s)
	}

	a.logger.Debug("collection built", "type", kind, "features", len(features))
	return &Collection{Kind: kind, Features: features}, nil
}

func (a *Assembler) feature(ctx context.Context, el *osm.Element, sink *warnings.Sink) (Feature, error) {
	rec, err := a.attribution.Resolve(ctx, el, sink)
	if err != nil {
		return Feature{}, err
	}

	return Feature{
		Kind: el.Type,
		ID:   el.ID,
		Properties: Properties{
			Name:     el.Tags.Optional(osm.TagName),
			Wikidata: el.Tags.Optional(osm.TagWikidata),
			Record:   rec,
		},
		Geometry: a.geometry.Resolve(el, sink),
	}, nil
}
