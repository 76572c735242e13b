package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/config"
	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/warnings"
)

var testRetry = core.RetryOptions{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}

const waysDocument = `{"version":0.6,"elements":[
{"type":"node","id":1,"lat":50.1,"lon":4.1},
{"type":"node","id":2,"lat":50.2,"lon":4.2},
{"type":"node","id":3,"lat":50.3,"lon":4.3},
{"type":"way","id":10,"nodes":[1,2],"tags":{"highway":"residential","name":"Rue Marie Curie","name:etymology:wikidata":"Q1"}},
{"type":"way","id":11,"nodes":[2,3],"tags":{"highway":"residential","name":"Rue Inconnue","name:etymology:wikidata":"Q1;bad"}},
{"type":"way","id":12,"nodes":[1,3],"tags":{"highway":"residential","name":"Place Royale","name:etymology:wikidata":"Q1; Q2"}},
{"type":"way","id":13,"nodes":[1,3],"tags":{"highway":"residential","name":"Rue Exclue"}},
{"type":"way","id":14,"nodes":[3,1],"tags":{"highway":"residential","name":"Rue du Conseil"}},
{"type":"way","id":15,"nodes":[2,1],"tags":{"highway":"residential","name":"Rue de la Paix","name:fr":"Rue de la Paix","name:nl":"Vredestraat"}},
{"type":"way","id":16,"nodes":[3,2],"tags":{"highway":"residential","name":"Rue Sans Nom"}}
]}`

const relationsDocument = `{"version":0.6,"elements":[
{"type":"relation","id":30,"members":[{"type":"way","ref":20,"role":"street"}],"tags":{"type":"associatedStreet","name":"Rue Leopold","name:etymology:wikidata":"Q2"}},
{"type":"node","id":1,"lat":50.1,"lon":4.1},
{"type":"node","id":2,"lat":50.2,"lon":4.2},
{"type":"way","id":20,"nodes":[1,2]}
]}`

const cityConfig = `instances: [Q5]
languages: [fr, nl]
gender:
  way:
    "14": X
exclude:
  way: [13]
overpass:
  area: 54094
  timeout: 60
event:
  csv: event.csv
`

type harness struct {
	t        *testing.T
	dataDir  string
	layout   Layout
	settings *config.Settings

	mu       sync.Mutex
	queries  []string
	entities []string
	missing  map[string]bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, dataDir: t.TempDir(), missing: map[string]bool{}}
	h.layout = NewLayout(h.dataDir, "brussels")

	overpass := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.FormValue("data")
		h.mu.Lock()
		h.queries = append(h.queries, query)
		h.mu.Unlock()
		if strings.Contains(query, "relation[") {
			_, _ = w.Write([]byte(relationsDocument))
			return
		}
		_, _ = w.Write([]byte(waysDocument))
	}))
	t.Cleanup(overpass.Close)

	wikidata := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), ".json")
		h.mu.Lock()
		h.entities = append(h.entities, id)
		missing := h.missing[id]
		h.mu.Unlock()
		raw, err := os.ReadFile(filepath.Join("..", "wikidata", "testdata", id+".json"))
		if missing || err != nil {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(raw)
	}))
	t.Cleanup(wikidata.Close)

	h.settings = &config.Settings{
		DataDir:             h.dataDir,
		UserAgent:           "osmgender-test",
		OverpassURL:         overpass.URL,
		WikidataURL:         wikidata.URL,
		OverpassRPS:         1000,
		OverpassBurst:       10,
		WikidataRPS:         1000,
		WikidataBurst:       10,
		WikidataConcurrency: 2,
		CacheSize:           16,
	}

	h.writeCityFile(config.FileName, cityConfig)
	h.writeCityFile("event.csv", "Rue de la Paix,Vredestraat,F\n")
	return h
}

func (h *harness) writeCityFile(name, content string) {
	h.t.Helper()
	path := h.layout.CityFile(name)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
}

func (h *harness) pipeline() *Pipeline {
	h.t.Helper()
	p, err := Load(h.layout, h.settings, nil)
	require.NoError(h.t, err)
	return p.WithRetryOptions(testRetry)
}

func (h *harness) requested() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entities...)
}

func TestLayout(t *testing.T) {
	l := NewLayout("/data", "brussels")

	assert.Equal(t, "/data/cities/brussels/config.yaml", l.ConfigPath())
	assert.Equal(t, "/data/process/brussels/overpass/way.json", l.OverpassPath(osm.TypeWay))
	assert.Equal(t, "/data/process/brussels/wikidata", l.WikidataDir())
	assert.Equal(t, "/data/output/brussels/relations.geojson", l.GeoJSONPath(osm.TypeRelation))
	assert.Equal(t, "/data/cities/brussels/event.csv", l.CityFile("event.csv"))
	assert.Equal(t, "/tmp/event.csv", l.CityFile("/tmp/event.csv"))
}

func TestPipelineRun(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()
	ctx := context.Background()

	require.NoError(t, p.Overpass(ctx))
	require.Len(t, h.queries, 2)
	for _, q := range h.queries {
		assert.Contains(t, q, "area(id:3600054094)")
		assert.Contains(t, q, "[timeout:60]")
	}
	assert.FileExists(t, h.layout.OverpassPath(osm.TypeWay))
	assert.FileExists(t, h.layout.OverpassPath(osm.TypeRelation))

	require.NoError(t, p.Wikidata(ctx))
	assert.ElementsMatch(t, []string{"Q1", "Q2"}, h.requested())
	assert.FileExists(t, filepath.Join(h.layout.WikidataDir(), "Q1.json"))
	assert.FileExists(t, filepath.Join(h.layout.WikidataDir(), "Q2.json"))

	// documents on disk are not downloaded again
	require.NoError(t, p.Wikidata(ctx))
	assert.Len(t, h.requested(), 2)

	result, err := p.GeoJSON(ctx)
	require.NoError(t, err)

	ways := result.Collection(osm.TypeWay)
	require.NotNil(t, ways)
	ids := make([]int64, 0, len(ways.Features))
	for _, f := range ways.Features {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []int64{10, 11, 12, 14, 15, 16}, ids)

	tests := []struct {
		id     int64
		source attribution.Source
		gender *string
	}{
		{10, attribution.SourceWikidata, ptr("F")},
		{11, attribution.SourceWikidata, ptr("F")},
		{12, attribution.SourceWikidata, ptr(attribution.MixedGender)},
		{14, attribution.SourceConfig, ptr("X")},
		{15, attribution.SourceEvent, ptr("F")},
		{16, attribution.SourceNone, nil},
	}
	for _, tt := range tests {
		f, ok := ways.Lookup(tt.id)
		require.True(t, ok, "way %d", tt.id)
		assert.Equal(t, tt.source, f.Properties.Source, "way %d", tt.id)
		assert.Equal(t, tt.gender, f.Properties.Gender, "way %d", tt.id)
		assert.NotNil(t, f.Geometry, "way %d", tt.id)
	}
	assert.Contains(t, result.Warnings[osm.TypeWay], `invalid Wikidata identifier "bad" (tagged in way(11))`)

	relations := result.Collection(osm.TypeRelation)
	require.Len(t, relations.Features, 1)
	rel := relations.Features[0]
	assert.Equal(t, int64(30), rel.ID)
	assert.Equal(t, ptr("M"), rel.Properties.Gender)

	raw, err := os.ReadFile(h.layout.GeoJSONPath(osm.TypeWay))
	require.NoError(t, err)
	var written struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &written))
	assert.Equal(t, "FeatureCollection", written.Type)
	assert.Len(t, written.Features, 6)
}

func TestPipelineMissingEntity(t *testing.T) {
	h := newHarness(t)
	h.missing["Q2"] = true
	p := h.pipeline()
	ctx := context.Background()

	require.NoError(t, p.Overpass(ctx))
	require.NoError(t, p.Wikidata(ctx))
	assert.NoFileExists(t, filepath.Join(h.layout.WikidataDir(), "Q2.json"))

	_, err := p.GeoJSON(ctx)
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.ErrMissingDocument))
	assert.Contains(t, err.Error(), "Q2.json")
}

func TestPipelineStagePrerequisites(t *testing.T) {
	h := newHarness(t)
	p := h.pipeline()
	ctx := context.Background()

	err := p.Wikidata(ctx)
	assert.True(t, core.IsCode(err, core.ErrMissingDocument))

	_, err = p.GeoJSON(ctx)
	assert.True(t, core.IsCode(err, core.ErrMissingDocument))

	require.NoError(t, os.MkdirAll(filepath.Dir(h.layout.OverpassPath(osm.TypeWay)), 0o755))
	require.NoError(t, os.WriteFile(h.layout.OverpassPath(osm.TypeRelation), []byte(`{"elements":[`), 0o644))
	_, err = p.GeoJSON(ctx)
	assert.True(t, core.IsCode(err, core.ErrParseError))
}

func TestPipelineOverpassWithoutArea(t *testing.T) {
	h := newHarness(t)
	h.writeCityFile(config.FileName, "instances: [Q5]\n")

	err := h.pipeline().Overpass(context.Background())

	assert.True(t, core.IsCode(err, core.ErrInvalidConfig))
	assert.Empty(t, h.queries)
}

func TestPipelineEventCSV(t *testing.T) {
	tests := []struct {
		name     string
		csv      *string
		wantCode core.ErrorCode
		want     attribution.Source
	}{
		{name: "missing file is skipped", csv: nil, want: attribution.SourceNone},
		{name: "ambiguous mapping", csv: ptr("Rue de la Paix,,F\nRue de la Paix,,M\n"), wantCode: core.ErrAmbiguousMapping},
		{name: "short row", csv: ptr("Rue de la Paix,F\n"), wantCode: core.ErrParseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			require.NoError(t, os.Remove(h.layout.CityFile("event.csv")))
			if tt.csv != nil {
				h.writeCityFile("event.csv", *tt.csv)
			}
			p := h.pipeline()
			ctx := context.Background()
			require.NoError(t, p.Overpass(ctx))
			require.NoError(t, p.Wikidata(ctx))

			result, err := p.Build(ctx)

			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, core.IsCode(err, tt.wantCode), err.Error())
				return
			}
			require.NoError(t, err)
			f, ok := result.Collection(osm.TypeWay).Lookup(15)
			require.True(t, ok)
			assert.Equal(t, tt.want, f.Properties.Source)
			assert.NoFileExists(t, h.layout.GeoJSONPath(osm.TypeWay))
		})
	}
}

func TestEtymologies(t *testing.T) {
	doc := &osm.Document{Elements: []osm.Element{
		{Type: osm.TypeWay, ID: 1, Tags: osm.Tags{osm.TagEtymologyWikidata: "Q1;Q 2"}},
		{Type: osm.TypeWay, ID: 2, Tags: osm.Tags{osm.TagWikidata: "Q3"}},
		{Type: osm.TypeRelation, ID: 3, Tags: osm.Tags{osm.TagEtymologyWikidata: "Q4"}},
	}}
	sink := warnings.NewSink()

	refs := etymologies(doc, sink)

	assert.Equal(t, []reference{{id: "Q1", element: "way(1)"}, {id: "Q4", element: "relation(3)"}}, refs)
	assert.Equal(t, []string{`format of name:etymology:wikidata is invalid ("Q 2") for way(1)`}, sink.Items())
}

func ptr[T any](v T) *T {
	return &v
}
