package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/monitoring"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/warnings"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// reference is an etymology identifier and the first element tagging it.
type reference struct {
	id      string
	element string
}

// Wikidata downloads the entity of every etymology identifier found in the
// Overpass documents. Documents already on disk are kept.
func (p *Pipeline) Wikidata(ctx context.Context) error {
	return p.runStage(ctx, StageWikidata, func(ctx context.Context) error {
		sink := warnings.NewSink()

		var refs []reference
		seen := make(map[string]bool)
		for _, kind := range Kinds {
			doc, err := loadDocument(p.layout.OverpassPath(kind))
			if err != nil {
				return err
			}
			for _, r := range etymologies(doc, sink) {
				if !seen[r.id] {
					seen[r.id] = true
					refs = append(refs, r)
				}
			}
		}

		store, err := wikidata.NewStore(p.layout.WikidataDir(), 1, p.logger)
		if err != nil {
			return err
		}

		sinks := make([]*warnings.Sink, len(refs))
		downloaded := make([]bool, len(refs))

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(p.settings.WikidataConcurrency)
		for i, r := range refs {
			if store.Exists(r.id) {
				continue
			}
			g.Go(func() error {
				sinks[i] = warnings.NewSink()
				raw, err := p.wikidata.Fetch(ctx, r.id)
				if core.IsCode(err, core.ErrNotFound) {
					sinks[i].Add("Wikidata item %s for %s does not exist", r.id, r.element)
					return nil
				}
				if err != nil {
					return err
				}
				if err := writeFile(store.Path(r.id), raw); err != nil {
					return err
				}
				downloaded[i] = true
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		count := 0
		for i := range refs {
			sink.Merge(sinks[i])
			if downloaded[i] {
				count++
			}
		}

		sink.Log(p.logger, "stage", StageWikidata)
		monitoring.RecordWarnings(StageWikidata, sink.Len())
		p.logger.Info("wikidata documents ready",
			"identifiers", len(refs),
			"downloaded", count,
			"warnings", sink.Len(),
		)
		return nil
	})
}

// etymologies lists the valid etymology identifiers of doc in document
// order. Invalid identifiers are reported and skipped.
func etymologies(doc *osm.Document, sink *warnings.Sink) []reference {
	var refs []reference
	for i := range doc.Elements {
		el := &doc.Elements[i]
		tag, ok := el.Tags.Get(osm.TagEtymologyWikidata)
		if !ok {
			continue
		}
		for _, id := range attribution.SplitIdentifiers(tag) {
			if !wikidata.ValidIdentifier(id) {
				sink.Add("format of %s is invalid (%q) for %s", osm.TagEtymologyWikidata, id, el)
				continue
			}
			refs = append(refs, reference{id: id, element: el.String()})
		}
	}
	return refs
}
