// Package feature turns attributed OSM streets into GeoJSON features.
package feature

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/geometry"
	"github.com/NERVsystems/osmgender/pkg/osm"
)

// Properties are the GeoJSON properties of a street.
type Properties struct {
	Name     *string
	Wikidata *string
	attribution.Record
}

type propertiesJSON struct {
	Name     *string             `json:"name"`
	Wikidata *string             `json:"wikidata"`
	Source   *attribution.Source `json:"source"`
	Gender   *string             `json:"gender"`
	Details  any                 `json:"details"`
}

// MarshalJSON writes the properties in their published shape. An
// unattributed street has a null source.
func (p Properties) MarshalJSON() ([]byte, error) {
	out := propertiesJSON{
		Name:     p.Name,
		Wikidata: p.Wikidata,
		Gender:   p.Gender,
		Details:  p.DetailsPayload(),
	}
	if p.Source != attribution.SourceNone && p.Source != "" {
		src := p.Source
		out.Source = &src
	}
	return json.Marshal(out)
}

// Feature is a GeoJSON feature for one way or relation.
type Feature struct {
	Kind       osm.ElementType    `json:"-"`
	ID         int64              `json:"id"`
	Properties Properties         `json:"properties"`
	Geometry   *geometry.Geometry `json:"geometry"`
}

// MarshalJSON adds the GeoJSON type member.
func (f Feature) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       string             `json:"type"`
		ID         int64              `json:"id"`
		Properties Properties         `json:"properties"`
		Geometry   *geometry.Geometry `json:"geometry"`
	}{"Feature", f.ID, f.Properties, f.Geometry})
}

// Collection is a GeoJSON FeatureCollection of one element type.
type Collection struct {
	Kind     osm.ElementType
	Features []Feature
}

// MarshalJSON writes the collection. An empty collection has an empty
// features array.
func (c *Collection) MarshalJSON() ([]byte, error) {
	features := c.Features
	if features == nil {
		features = []Feature{}
	}
	return json.Marshal(struct {
		Type     string    `json:"type"`
		Features []Feature `json:"features"`
	}{"FeatureCollection", features})
}

// Lookup returns the feature with id.
func (c *Collection) Lookup(id int64) (*Feature, bool) {
	for i := range c.Features {
		if c.Features[i].ID == id {
			return &c.Features[i], true
		}
	}
	return nil, false
}

// Exclude returns a collection without the features whose id is listed,
// keeping the order of the others.
func (c *Collection) Exclude(ids []int64) *Collection {
	excluded := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		excluded[id] = struct{}{}
	}

	kept := make([]Feature, 0, len(c.Features))
	for _, f := range c.Features {
		if _, drop := excluded[f.ID]; !drop {
			kept = append(kept, f)
		}
	}
	return &Collection{Kind: c.Kind, Features: kept}
}

// WriteFile writes the collection as GeoJSON to path.
func (c *Collection) WriteFile(path string) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding %s collection: %w", c.Kind, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
