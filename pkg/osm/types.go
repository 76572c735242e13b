// Package osm provides the OpenStreetMap element model, the in-memory entity
// store and the Overpass client.
package osm

import (
	"encoding/json"
	"fmt"
	"io"
)

// ElementType discriminates OSM elements.
type ElementType string

// Possible values are node, way and relation.
const (
	TypeNode     ElementType = "node"
	TypeWay      ElementType = "way"
	TypeRelation ElementType = "relation"
)

// Valid reports whether t is one of the three OSM element kinds.
func (t ElementType) Valid() bool {
	switch t {
	case TypeNode, TypeWay, TypeRelation:
		return true
	}
	return false
}

// Tag keys read by the pipeline
const (
	TagName              = "name"
	TagNameFR            = "name:fr"
	TagNameNL            = "name:nl"
	TagWikidata          = "wikidata"
	TagEtymologyWikidata = "name:etymology:wikidata"
	TagHighway           = "highway"
	TagType              = "type"
)

// Member roles that carry street geometry in a relation
const (
	RoleStreet = "street"
	RoleOuter  = "outer"
)

// Tags is the key/value tag set of an element.
type Tags map[string]string

// Get returns the value of key and whether it is present.
func (t Tags) Get(key string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t[key]
	return v, ok
}

// Optional returns a pointer to the value of key, or nil when absent.
func (t Tags) Optional(key string) *string {
	v, ok := t.Get(key)
	if !ok {
		return nil
	}
	return &v
}

// Member is a relation member reference.
type Member struct {
	Type ElementType `json:"type"`
	Ref  int64       `json:"ref"`
	Role string      `json:"role"`
}

// Element represents an element returned from the Overpass API
type Element struct {
	Type    ElementType `json:"type"`
	ID      int64       `json:"id"`
	Lat     float64     `json:"lat,omitempty"`
	Lon     float64     `json:"lon,omitempty"`
	Tags    Tags        `json:"tags,omitempty"`
	Nodes   []int64     `json:"nodes,omitempty"`   // For ways, ordered node ids
	Members []Member    `json:"members,omitempty"` // For relations
}

// String renders the element as type(id), the form used in warnings.
func (e *Element) String() string {
	return fmt.Sprintf("%s(%d)", e.Type, e.ID)
}

// Document is the Overpass JSON response envelope.
type Document struct {
	Version   float64   `json:"version,omitempty"`
	Generator string    `json:"generator,omitempty"`
	Remark    string    `json:"remark,omitempty"` // set by Overpass on runtime errors
	Elements  []Element `json:"elements"`
}

// DecodeDocument reads an Overpass JSON document.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding overpass document: %w", err)
	}
	for i := range doc.Elements {
		if !doc.Elements[i].Type.Valid() {
			return nil, fmt.Errorf("decoding overpass document: element %d has unknown type %q", i, doc.Elements[i].Type)
		}
	}
	return &doc, nil
}
