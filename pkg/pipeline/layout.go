package pipeline

import (
	"path/filepath"

	"github.com/NERVsystems/osmgender/pkg/config"
	"github.com/NERVsystems/osmgender/pkg/osm"
)

// Layout locates the files of one city:
//
//	<data>/cities/<city>/config.yaml   static configuration, event CSV
//	<data>/process/<city>/overpass/    way.json, relation.json
//	<data>/process/<city>/wikidata/    <Q>.json
//	<data>/output/<city>/              ways.geojson, relations.geojson
type Layout struct {
	City      string
	CityDir   string
	WorkDir   string
	OutputDir string
}

// NewLayout returns the layout of city under dataDir.
func NewLayout(dataDir, city string) Layout {
	return Layout{
		City:      city,
		CityDir:   filepath.Join(dataDir, "cities", city),
		WorkDir:   filepath.Join(dataDir, "process", city),
		OutputDir: filepath.Join(dataDir, "output", city),
	}
}

// ConfigPath returns the city configuration file.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.CityDir, config.FileName)
}

// OverpassPath returns the Overpass document holding the streets of kind.
func (l Layout) OverpassPath(kind osm.ElementType) string {
	return filepath.Join(l.WorkDir, "overpass", string(kind)+".json")
}

// WikidataDir returns the directory of the downloaded entity documents.
func (l Layout) WikidataDir() string {
	return filepath.Join(l.WorkDir, "wikidata")
}

// GeoJSONPath returns the output collection of kind.
func (l Layout) GeoJSONPath(kind osm.ElementType) string {
	return filepath.Join(l.OutputDir, string(kind)+"s.geojson")
}

// CityFile resolves a path relative to the city directory.
func (l Layout) CityFile(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.CityDir, rel)
}
