// Package queries builds the Overpass QL queries of the street extraction.
package queries

import (
	"fmt"
	"regexp"
	"strings"
)

// TagFilter matches a tag. No values means the key only has to be present;
// several values are matched as an anchored alternation.
type TagFilter struct {
	Key    string
	Values []string
}

// Has matches elements carrying key.
func Has(key string) TagFilter {
	return TagFilter{Key: key}
}

// Is matches elements whose key equals one of values.
func Is(key string, values ...string) TagFilter {
	return TagFilter{Key: key, Values: values}
}

func (f TagFilter) String() string {
	switch len(f.Values) {
	case 0:
		return fmt.Sprintf("[%q]", f.Key)
	case 1:
		return fmt.Sprintf("[%q=%q]", f.Key, f.Values[0])
	default:
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			quoted[i] = regexp.QuoteMeta(v)
		}
		return fmt.Sprintf("[%q~%q]", f.Key, "^("+strings.Join(quoted, "|")+")$")
	}
}

// OverpassBuilder provides a fluent interface for building area-bound
// Overpass queries whose result includes every node and way needed to
// rebuild geometry.
type OverpassBuilder struct {
	timeout  int
	area     int64
	elements []string
}

// NewOverpassBuilder creates a new builder. Queries request JSON output.
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{timeout: 180}
}

// WithTimeout sets the server side timeout in seconds.
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	if seconds > 0 {
		b.timeout = seconds
	}
	return b
}

// InArea restricts every element filter to an Overpass area.
func (b *OverpassBuilder) InArea(areaID int64) *OverpassBuilder {
	b.area = areaID
	return b
}

// WithWay adds a way filter.
func (b *OverpassBuilder) WithWay(tags ...TagFilter) *OverpassBuilder {
	return b.with("way", tags)
}

// WithRelation adds a relation filter.
func (b *OverpassBuilder) WithRelation(tags ...TagFilter) *OverpassBuilder {
	return b.with("relation", tags)
}

func (b *OverpassBuilder) with(kind string, tags []TagFilter) *OverpassBuilder {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, t := range tags {
		sb.WriteString(t.String())
	}
	if b.area != 0 {
		sb.WriteString("(area.searchArea)")
	}
	b.elements = append(b.elements, sb.String())
	return b
}

// Build returns the query. Matched elements are printed with their tags,
// then recursed down to their members and nodes.
func (b *OverpassBuilder) Build() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];", b.timeout)
	if b.area != 0 {
		fmt.Fprintf(&sb, "area(id:%d)->.searchArea;", b.area)
	}
	sb.WriteString("(")
	for _, e := range b.elements {
		sb.WriteString(e)
		sb.WriteString(";")
	}
	sb.WriteString(");out body;>;out skel qt;")
	return sb.String()
}

// StreetWays returns the query for the named highways of an area.
func StreetWays(areaID int64, timeout int) string {
	return NewOverpassBuilder().
		WithTimeout(timeout).
		InArea(areaID).
		WithWay(Has("highway"), Has("name")).
		Build()
}

// StreetRelations returns the query for the named street relations of an
// area. Multipolygons only qualify when they are highways.
func StreetRelations(areaID int64, timeout int) string {
	return NewOverpassBuilder().
		WithTimeout(timeout).
		InArea(areaID).
		WithRelation(Is("type", "associatedStreet", "street"), Has("name")).
		WithRelation(Is("type", "multipolygon"), Has("highway"), Has("name")).
		Build()
}
