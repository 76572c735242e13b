// Package geometry rebuilds linear GeoJSON geometry from OSM ways and
// relations held in an osm.Store.
package geometry

import (
	"encoding/json"
	"fmt"
)

// Type is a GeoJSON geometry type name.
type Type string

// Geometry types produced by the resolver
const (
	TypeLineString      Type = "LineString"
	TypeMultiLineString Type = "MultiLineString"
)

// Position is a GeoJSON position in [lon, lat] order.
type Position [2]float64

// Line is an ordered list of positions.
type Line []Position

// Geometry is either a LineString or a MultiLineString.
type Geometry struct {
	Type  Type
	Lines []Line // exactly one line for a LineString
}

// NewLineString wraps a single line.
func NewLineString(line Line) *Geometry {
	return &Geometry{Type: TypeLineString, Lines: []Line{line}}
}

// NewMultiLineString wraps several lines.
func NewMultiLineString(lines []Line) *Geometry {
	return &Geometry{Type: TypeMultiLineString, Lines: lines}
}

// FromLines returns nil for no lines, a LineString for one and a
// MultiLineString otherwise.
func FromLines(lines []Line) *Geometry {
	switch len(lines) {
	case 0:
		return nil
	case 1:
		return NewLineString(lines[0])
	default:
		return NewMultiLineString(lines)
	}
}

// PositionCount returns the number of positions across all lines.
func (g *Geometry) PositionCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, l := range g.Lines {
		n += len(l)
	}
	return n
}

type wireGeometry struct {
	Type        Type            `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON implements json.Marshaler
func (g *Geometry) MarshalJSON() ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}

	var coords any
	switch g.Type {
	case TypeLineString:
		if len(g.Lines) != 1 {
			return nil, fmt.Errorf("LineString needs exactly one line, got %d", len(g.Lines))
		}
		coords = g.Lines[0]
	case TypeMultiLineString:
		coords = g.Lines
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}

	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireGeometry{Type: g.Type, Coordinates: raw})
}

// UnmarshalJSON implements json.Unmarshaler
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var w wireGeometry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch w.Type {
	case TypeLineString:
		var line Line
		if err := json.Unmarshal(w.Coordinates, &line); err != nil {
			return fmt.Errorf("decoding LineString coordinates: %w", err)
		}
		*g = Geometry{Type: w.Type, Lines: []Line{line}}
	case TypeMultiLineString:
		var lines []Line
		if err := json.Unmarshal(w.Coordinates, &lines); err != nil {
			return fmt.Errorf("decoding MultiLineString coordinates: %w", err)
		}
		*g = Geometry{Type: w.Type, Lines: lines}
	default:
		return fmt.Errorf("unsupported geometry type %q", w.Type)
	}
	return nil
}
