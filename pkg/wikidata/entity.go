// Package wikidata is a small, typed reader for Wikidata entity documents
// as served by Special:EntityData. It only understands the fields the
// street attribution needs.
package wikidata

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
)

// Properties read from entity claims
const (
	PropInstanceOf = "P31"
	PropSubclassOf = "P279"
	PropGender     = "P21"
	PropBirth      = "P569"
	PropDeath      = "P570"
	PropImage      = "P18"
	PropNickname   = "P1449"
)

var identifierPattern = regexp.MustCompile(`^Q\d+$`)

// ValidIdentifier reports whether id looks like a Wikidata item identifier.
func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

// Document is the Special:EntityData envelope.
type Document struct {
	Entities map[string]*Entity `json:"entities"`
}

// DecodeDocument reads an entity document.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("document has no entities")
	}
	return &doc, nil
}

// Entity returns the entity stored for id. A redirected identifier is
// served under its target id, so a document holding a single entity
// returns it whatever its id.
func (d *Document) Entity(id string) (*Entity, error) {
	if e, ok := d.Entities[id]; ok && e != nil {
		return e, nil
	}
	if len(d.Entities) == 1 {
		for _, e := range d.Entities {
			if e != nil {
				return e, nil
			}
		}
	}
	keys := make([]string, 0, len(d.Entities))
	for k := range d.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("entity %s not found in document (has %v)", id, keys)
}

// LocalizedValue is a label, description, alias or monolingual text.
type LocalizedValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Sitelink is a link to a page on a Wikimedia site.
type Sitelink struct {
	Site  string `json:"site"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Entity is a Wikidata item.
type Entity struct {
	ID           string                      `json:"id"`
	Type         string                      `json:"type,omitempty"`
	Labels       map[string]LocalizedValue   `json:"labels,omitempty"`
	Descriptions map[string]LocalizedValue   `json:"descriptions,omitempty"`
	Aliases      map[string][]LocalizedValue `json:"aliases,omitempty"`
	Sitelinks    map[string]Sitelink         `json:"sitelinks,omitempty"`
	Claims       map[string][]Claim          `json:"claims,omitempty"`
}

// Claim is a statement about an entity.
type Claim struct {
	MainSnak Snak   `json:"mainsnak"`
	Rank     string `json:"rank,omitempty"`
}

// Snak holds the value of a claim. DataValue is nil for "novalue" and
// "somevalue" snaks.
type Snak struct {
	SnakType  string     `json:"snaktype"`
	Property  string     `json:"property"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue is a typed claim value. Value stays raw until read through one
// of the typed accessors.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Values returns the data values of property, skipping deprecated claims
// and snaks without a value.
func (e *Entity) Values(property string) []*DataValue {
	claims := e.Claims[property]
	out := make([]*DataValue, 0, len(claims))
	for _, c := range claims {
		if c.Rank == "deprecated" || c.MainSnak.SnakType != "value" || c.MainSnak.DataValue == nil {
			continue
		}
		out = append(out, c.MainSnak.DataValue)
	}
	return out
}

// HasClaims reports whether the entity has at least one claim for property.
func (e *Entity) HasClaims(property string) bool {
	return len(e.Claims[property]) > 0
}

// EntityID reads a wikibase-entityid value.
func (v *DataValue) EntityID() (string, bool) {
	if v == nil || v.Type != "wikibase-entityid" {
		return "", false
	}
	var ref struct {
		ID        string `json:"id"`
		NumericID int64  `json:"numeric-id"`
	}
	if err := json.Unmarshal(v.Value, &ref); err != nil {
		return "", false
	}
	if ref.ID != "" {
		return ref.ID, true
	}
	if ref.NumericID > 0 {
		return "Q" + strconv.FormatInt(ref.NumericID, 10), true
	}
	return "", false
}

// Time reads the ISO-like time string of a time value, e.g. "+1850-03-01T00:00:00Z".
func (v *DataValue) Time() (string, bool) {
	if v == nil || v.Type != "time" {
		return "", false
	}
	var t struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(v.Value, &t); err != nil || t.Time == "" {
		return "", false
	}
	return t.Time, true
}

// StringValue reads a plain string value (commonsMedia, external ids...).
func (v *DataValue) StringValue() (string, bool) {
	if v == nil || v.Type != "string" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return "", false
	}
	return s, true
}

// MonolingualText reads a monolingualtext value.
func (v *DataValue) MonolingualText() (LocalizedValue, bool) {
	if v == nil || v.Type != "monolingualtext" {
		return LocalizedValue{}, false
	}
	var m struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.Unmarshal(v.Value, &m); err != nil {
		return LocalizedValue{}, false
	}
	return LocalizedValue{Language: m.Language, Value: m.Text}, true
}
