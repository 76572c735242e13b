package attribution

import (
	"context"
	"strings"

	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/warnings"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// Strategy is one attribution source. ok is false when the source has
// nothing to say about el, in which case the next one is tried.
type Strategy interface {
	Source() Source
	Resolve(ctx context.Context, el *osm.Element, sink *warnings.Sink) (rec Record, ok bool, err error)
}

// Chain tries its strategies in order.
type Chain []Strategy

// NewChain builds a chain, skipping nil strategies.
func NewChain(strategies ...Strategy) Chain {
	chain := make(Chain, 0, len(strategies))
	for _, s := range strategies {
		if s != nil {
			chain = append(chain, s)
		}
	}
	return chain
}

// Resolve returns the record of the first strategy that knows el, or None.
// Errors are fatal and stop the chain.
func (c Chain) Resolve(ctx context.Context, el *osm.Element, sink *warnings.Sink) (Record, error) {
	for _, s := range c {
		rec, ok, err := s.Resolve(ctx, el, sink)
		if err != nil {
			return Record{}, err
		}
		if ok {
			return rec, nil
		}
	}
	return None(), nil
}

// EntitySource gives access to Wikidata entities by identifier.
type EntitySource interface {
	Entity(ctx context.Context, id string) (*wikidata.Entity, error)
}

// WikidataStrategy attributes streets carrying a name:etymology:wikidata tag.
type WikidataStrategy struct {
	Entities  EntitySource
	Extractor wikidata.Extractor
}

func (s *WikidataStrategy) Source() Source { return SourceWikidata }

// Resolve loads every etymology of el. A missing or unreadable entity
// document is returned as an error.
func (s *WikidataStrategy) Resolve(ctx context.Context, el *osm.Element, sink *warnings.Sink) (Record, bool, error) {
	tag, ok := el.Tags.Get(osm.TagEtymologyWikidata)
	if !ok {
		return Record{}, false, nil
	}

	ids := SplitIdentifiers(tag)
	details := make([]wikidata.Details, 0, len(ids))
	for _, id := range ids {
		if !wikidata.ValidIdentifier(id) {
			sink.Add("invalid Wikidata identifier %q (tagged in %s)", id, el)
			continue
		}

		entity, err := s.Entities.Entity(ctx, id)
		if err != nil {
			return Record{}, false, err
		}
		if entity.ID != id {
			sink.Add("entity %q is (probably) redirected to %q (tagged in %s)", id, entity.ID, el)
		}
		details = append(details, s.Extractor.Details(entity, sink))
	}

	return Record{
		Source:  SourceWikidata,
		Gender:  aggregateGender(details),
		Details: details,
	}, true, nil
}

// SplitIdentifiers splits a ;-separated tag value into trimmed identifiers.
func SplitIdentifiers(tag string) []string {
	parts := strings.Split(tag, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ConfigStrategy applies per-city gender overrides keyed by element type and id.
type ConfigStrategy struct {
	Genders map[osm.ElementType]map[int64]string
}

func (s *ConfigStrategy) Source() Source { return SourceConfig }

func (s *ConfigStrategy) Resolve(_ context.Context, el *osm.Element, _ *warnings.Sink) (Record, bool, error) {
	g, ok := s.Genders[el.Type][el.ID]
	if !ok {
		return Record{}, false, nil
	}
	return Record{Source: SourceConfig, Gender: &g}, true, nil
}

// EventStrategy looks the street names up in an event map, French name
// first, then Dutch, then the default name.
type EventStrategy struct {
	Events *EventMap
}

func (s *EventStrategy) Source() Source { return SourceEvent }

func (s *EventStrategy) Resolve(_ context.Context, el *osm.Element, _ *warnings.Sink) (Record, bool, error) {
	if s.Events.Len() == 0 {
		return Record{}, false, nil
	}
	for _, key := range []string{osm.TagNameFR, osm.TagNameNL, osm.TagName} {
		name, ok := el.Tags.Get(key)
		if !ok {
			continue
		}
		if g, hit := s.Events.Lookup(name); hit {
			return Record{Source: SourceEvent, Gender: &g}, true, nil
		}
	}
	return Record{}, false, nil
}
