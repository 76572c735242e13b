package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NERVsystems/osmgender/pkg/pipeline"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestRootCommands(t *testing.T) {
	cmd := rootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"overpass", "wikidata", "geojson", "all", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "osmgender")
}

func TestStageRequiresCity(t *testing.T) {
	_, err := execute(t, "geojson", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--city")
}

func TestStageMissingCityConfig(t *testing.T) {
	_, err := execute(t, "geojson", "--data-dir", t.TempDir(), "--city", "nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_CONFIG")
}

func TestServeUnknownTransport(t *testing.T) {
	_, err := execute(t, "serve", "--city", "gent", "--transport", "carrier-pigeon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGeoJSONCommand(t *testing.T) {
	dataDir := t.TempDir()
	layout := pipeline.NewLayout(dataDir, "gent")

	writeFile(t, layout.ConfigPath(), "instances: [Q5]\nlanguages: [en]\noverpass:\n  area: 897671\n")
	writeFile(t, layout.OverpassPath("way"), `{"elements":[
{"type":"node","id":1,"lat":51.05,"lon":3.72},
{"type":"node","id":2,"lat":51.06,"lon":3.73},
{"type":"way","id":10,"nodes":[1,2],"tags":{"highway":"residential","name":"Q1 Street","name:etymology:wikidata":"Q1"}}
]}`)
	writeFile(t, layout.OverpassPath("relation"), `{"elements":[]}`)

	entity, err := os.ReadFile(filepath.Join("..", "..", "pkg", "wikidata", "testdata", "Q1.json"))
	require.NoError(t, err)
	writeFile(t, filepath.Join(layout.WikidataDir(), "Q1.json"), string(entity))

	metrics := filepath.Join(dataDir, "osmgender.prom")
	_, err = execute(t, "geojson", "--data-dir", dataDir, "--city", "gent", "--metrics-file", metrics, "--log-level", "error")
	require.NoError(t, err)

	raw, err := os.ReadFile(layout.GeoJSONPath("way"))
	require.NoError(t, err)
	var collection struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal(raw, &collection))
	assert.Equal(t, "FeatureCollection", collection.Type)
	assert.Len(t, collection.Features, 1)
	assert.FileExists(t, layout.GeoJSONPath("relation"))

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "osmgender_features_total")
	assert.Contains(t, string(prom), "osmgender_system_info")
}
