package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/warnings"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// fakeEntities serves entities from memory. Identifiers mapped to another
// id simulate a redirect.
type fakeEntities struct {
	entities  map[string]*wikidata.Entity
	redirects map[string]string
	calls     []string
}

func (f *fakeEntities) Entity(_ context.Context, id string) (*wikidata.Entity, error) {
	f.calls = append(f.calls, id)
	if target, ok := f.redirects[id]; ok {
		id = target
	}
	e, ok := f.entities[id]
	if !ok {
		return nil, core.MissingDocument(id+".json", "wikidata", errors.New("no such file"))
	}
	return e, nil
}

func itemClaim(prop, id string) wikidata.Claim {
	return wikidata.Claim{
		MainSnak: wikidata.Snak{
			SnakType: "value",
			Property: prop,
			DataValue: &wikidata.DataValue{
				Type:  "wikibase-entityid",
				Value: json.RawMessage(fmt.Sprintf(`{"id": %q}`, id)),
			},
		},
		Rank: "normal",
	}
}

func person(id, gender string) *wikidata.Entity {
	claims := map[string][]wikidata.Claim{
		wikidata.PropInstanceOf: {itemClaim(wikidata.PropInstanceOf, "Q5")},
	}
	if gender != "" {
		claims[wikidata.PropGender] = []wikidata.Claim{itemClaim(wikidata.PropGender, gender)}
	}
	return &wikidata.Entity{ID: id, Claims: claims}
}

func thing(id string) *wikidata.Entity {
	return &wikidata.Entity{
		ID: id,
		Claims: map[string][]wikidata.Claim{
			wikidata.PropInstanceOf: {itemClaim(wikidata.PropInstanceOf, "Q1549591")},
		},
	}
}

const (
	male   = "Q6581097"
	female = "Q6581072"
)

func newFakeEntities() *fakeEntities {
	return &fakeEntities{
		entities: map[string]*wikidata.Entity{
			"Q1":  person("Q1", male),
			"Q2":  person("Q2", female),
			"Q3":  thing("Q3"),
			"Q4":  person("Q4", male),
			"Q5":  person("Q5", ""),
			"Q60": person("Q60", female),
			"Q7":  {ID: "Q7"},
		},
		redirects: map[string]string{"Q6": "Q60"},
	}
}

func newWikidataStrategy(entities EntitySource) *WikidataStrategy {
	return &WikidataStrategy{
		Entities:  entities,
		Extractor: wikidata.Extractor{Instances: []string{"Q5"}, Languages: []string{"fr", "nl"}},
	}
}

func street(id int64, tags osm.Tags) *osm.Element {
	return &osm.Element{Type: osm.TypeWay, ID: id, Tags: tags}
}

func strp(s string) *string { return &s }

func TestWikidataStrategyAggregateGender(t *testing.T) {
	tests := []struct {
		name        string
		tag         string
		wantGender  *string
		wantDetails int
	}{
		{"single male person", "Q1", strp("M"), 1},
		{"two persons of different gender", "Q1;Q2", strp(MixedGender), 2},
		{"two persons of the same gender", "Q1; Q4", strp("M"), 2},
		{"single non-person", "Q3", nil, 1},
		{"person and non-person", "Q1;Q3", nil, 2},
		{"person without gender", "Q5", nil, 1},
		{"known and unknown gender", "Q1;Q5", strp(MixedGender), 2},
		{"unclassified entity", "Q7", nil, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := newWikidataStrategy(newFakeEntities())

			rec, ok, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagEtymologyWikidata: tt.tag}), warnings.NewSink())

			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, SourceWikidata, rec.Source)
			assert.Equal(t, tt.wantGender, rec.Gender)
			assert.Len(t, rec.Details, tt.wantDetails)
		})
	}
}

func TestWikidataStrategyDetailsShape(t *testing.T) {
	strategy := newWikidataStrategy(newFakeEntities())

	single, _, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagEtymologyWikidata: "Q3"}), warnings.NewSink())
	require.NoError(t, err)
	detail, ok := single.DetailsPayload().(wikidata.Details)
	require.True(t, ok, "single etymology must not be wrapped in a list")
	assert.Equal(t, "Q3", detail.Wikidata)
	assert.False(t, detail.Person)

	multi, _, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagEtymologyWikidata: "Q2;Q1"}), warnings.NewSink())
	require.NoError(t, err)
	list, ok := multi.DetailsPayload().([]wikidata.Details)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "Q2", list[0].Wikidata)
	assert.Equal(t, "Q1", list[1].Wikidata)
}

func TestWikidataStrategyWarnings(t *testing.T) {
	strategy := newWikidataStrategy(newFakeEntities())
	sink := warnings.NewSink()

	rec, ok, err := strategy.Resolve(context.Background(), street(12, osm.Tags{osm.TagEtymologyWikidata: "Q6;foo;Q7"}), sink)

	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, rec.Details, 2)
	assert.Equal(t, []string{
		`entity "Q6" is (probably) redirected to "Q60" (tagged in way(12))`,
		`invalid Wikidata identifier "foo" (tagged in way(12))`,
		`no instance or subclass for "Q7"`,
	}, sink.Items())
}

func TestWikidataStrategyMissingDocumentIsFatal(t *testing.T) {
	strategy := newWikidataStrategy(newFakeEntities())

	_, _, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagEtymologyWikidata: "Q1;Q404"}), warnings.NewSink())

	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.ErrMissingDocument))
}

func TestWikidataStrategyWithoutTag(t *testing.T) {
	entities := newFakeEntities()
	strategy := newWikidataStrategy(entities)

	_, ok, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagWikidata: "Q1"}), warnings.NewSink())

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, entities.calls)
}

func TestChainPrecedence(t *testing.T) {
	events := NewEventMap()
	require.NoError(t, events.Add("Rue X", "F"))

	chain := NewChain(
		newWikidataStrategy(newFakeEntities()),
		&ConfigStrategy{Genders: map[osm.ElementType]map[int64]string{
			osm.TypeWay: {1: "M", 2: "M"},
		}},
		&EventStrategy{Events: events},
	)

	tests := []struct {
		name       string
		el         *osm.Element
		wantSource Source
		wantGender *string
	}{
		{
			name:       "wikidata beats config",
			el:         street(1, osm.Tags{osm.TagEtymologyWikidata: "Q2", osm.TagNameFR: "Rue X"}),
			wantSource: SourceWikidata,
			wantGender: strp("F"),
		},
		{
			name:       "config beats event",
			el:         street(2, osm.Tags{osm.TagNameFR: "Rue X"}),
			wantSource: SourceConfig,
			wantGender: strp("M"),
		},
		{
			name:       "event",
			el:         street(3, osm.Tags{osm.TagNameFR: "Rue X"}),
			wantSource: SourceEvent,
			wantGender: strp("F"),
		},
		{
			name:       "config keyed by type",
			el:         &osm.Element{Type: osm.TypeRelation, ID: 2},
			wantSource: SourceNone,
		},
		{
			name:       "nothing",
			el:         street(4, osm.Tags{osm.TagName: "Rue Y"}),
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := chain.Resolve(context.Background(), tt.el, warnings.NewSink())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, rec.Source)
			assert.Equal(t, tt.wantGender, rec.Gender)
			if rec.Source != SourceWikidata {
				assert.Nil(t, rec.DetailsPayload())
			}
		})
	}
}

func TestChainStopsOnError(t *testing.T) {
	chain := NewChain(
		newWikidataStrategy(&fakeEntities{}),
		&ConfigStrategy{Genders: map[osm.ElementType]map[int64]string{osm.TypeWay: {1: "M"}}},
	)

	_, err := chain.Resolve(context.Background(), street(1, osm.Tags{osm.TagEtymologyWikidata: "Q1"}), warnings.NewSink())

	assert.True(t, core.IsCode(err, core.ErrMissingDocument))
}

func TestEventStrategyProbeOrder(t *testing.T) {
	events := NewEventMap()
	require.NoError(t, events.Add("Rue A", "F"))
	require.NoError(t, events.Add("Straat B", "M"))
	require.NoError(t, events.Add("Place C", "X"))
	strategy := &EventStrategy{Events: events}

	tests := []struct {
		name string
		tags osm.Tags
		want *string
	}{
		{"french first", osm.Tags{osm.TagNameFR: "Rue A", osm.TagNameNL: "Straat B", osm.TagName: "Place C"}, strp("F")},
		{"dutch when french misses", osm.Tags{osm.TagNameFR: "Rue Z", osm.TagNameNL: "Straat B", osm.TagName: "Place C"}, strp("M")},
		{"default name last", osm.Tags{osm.TagName: "Place C"}, strp("X")},
		{"no match", osm.Tags{osm.TagName: "Place D"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok, err := strategy.Resolve(context.Background(), street(1, tt.tags), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want != nil, ok)
			if ok {
				assert.Equal(t, tt.want, rec.Gender)
			}
		})
	}
}

func TestEventStrategyEmptyMap(t *testing.T) {
	strategy := &EventStrategy{}
	_, ok, err := strategy.Resolve(context.Background(), street(1, osm.Tags{osm.TagName: "Rue A"}), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSplitIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"Q1"}, SplitIdentifiers("Q1"))
	assert.Equal(t, []string{"Q1", "Q2"}, SplitIdentifiers(" Q1 ;Q2"))
	assert.Equal(t, []string{"Q1", ""}, SplitIdentifiers("Q1;"))
}

func TestDetailsPayloadEmptyList(t *testing.T) {
	rec := Record{Source: SourceWikidata}
	raw, err := json.Marshal(rec.DetailsPayload())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
