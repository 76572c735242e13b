package tools

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmgender/pkg/attribution"
	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/feature"
	"github.com/NERVsystems/osmgender/pkg/geometry"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// Limits of find_streets
const (
	DefaultStreetLimit = 20
	MaxStreetLimit     = 500
)

// Streets gives the tools read access to the built collections.
type Streets interface {
	Collection(kind osm.ElementType) *feature.Collection
}

// kinds lists the collections in build order.
var kinds = []osm.ElementType{osm.TypeRelation, osm.TypeWay}

// genderFilters are the values accepted by the gender filter of find_streets.
var genderFilters = map[string]bool{
	wikidata.GenderMale:              true,
	wikidata.GenderFemale:            true,
	wikidata.GenderOther:             true,
	wikidata.GenderTransgenderFemale: true,
	wikidata.GenderTransgenderMale:   true,
	attribution.MixedGender:          true,
	feature.UnknownGender:            true,
}

func parseKind(s string) (osm.ElementType, error) {
	kind := osm.ElementType(s)
	if kind != osm.TypeWay && kind != osm.TypeRelation {
		return "", core.Errorf(core.ErrInvalidIdentifier, "type must be %q or %q, got %q", osm.TypeWay, osm.TypeRelation, s).
			WithGuidance("Streets are either ways or relations")
	}
	return kind, nil
}

// StreetAttributionTool returns the tool definition of street_attribution.
func StreetAttributionTool() mcp.Tool {
	return mcp.NewTool("street_attribution",
		mcp.WithDescription("Get the gender attribution of one street: its name, source, gender, Wikidata details and geometry type"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("OSM element type of the street: way or relation"),
			mcp.Enum(string(osm.TypeWay), string(osm.TypeRelation)),
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("OSM id of the way or relation"),
		),
	)
}

// StreetAttributionInput is the input of street_attribution.
type StreetAttributionInput struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// StreetAttributionOutput is the attribution of one street.
type StreetAttributionOutput struct {
	Type         osm.ElementType    `json:"type"`
	ID           int64              `json:"id"`
	Properties   feature.Properties `json:"properties"`
	GeometryType *geometry.Type     `json:"geometry_type"`
	Positions    int                `json:"positions"`
}

func (r *Registry) handleStreetAttribution(_ context.Context, input StreetAttributionInput, logger *slog.Logger) (any, error) {
	kind, err := parseKind(input.Type)
	if err != nil {
		return nil, err
	}

	var (
		f  *feature.Feature
		ok bool
	)
	if coll := r.streets.Collection(kind); coll != nil {
		f, ok = coll.Lookup(input.ID)
	}
	if !ok {
		return nil, core.Errorf(core.ErrNotFound, "%s(%d) is not in the built collection", kind, input.ID).
			WithGuidance("The street may be unnamed, outside the city area or excluded in config.yaml")
	}

	out := StreetAttributionOutput{
		Type:       kind,
		ID:         f.ID,
		Properties: f.Properties,
	}
	if f.Geometry != nil {
		out.GeometryType = &f.Geometry.Type
		out.Positions = f.Geometry.PositionCount()
	}
	logger.Debug("street found", "type", kind, "id", f.ID, "source", f.Properties.Source)
	return out, nil
}

// FindStreetsTool returns the tool definition of find_streets.
func FindStreetsTool() mcp.Tool {
	return mcp.NewTool("find_streets",
		mcp.WithDescription("Find streets by name (case-insensitive substring), optionally filtered by gender"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Part of the street name"),
		),
		mcp.WithString("gender",
			mcp.Description("Gender filter: M, F, X, FX, MX, + (mixed) or - (unknown)"),
		),
		mcp.WithString("type",
			mcp.Description("Restrict to way or relation"),
			mcp.Enum(string(osm.TypeWay), string(osm.TypeRelation)),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return"),
			mcp.DefaultNumber(DefaultStreetLimit),
		),
	)
}

// FindStreetsInput is the input of find_streets.
type FindStreetsInput struct {
	Name   string `json:"name"`
	Gender string `json:"gender,omitempty"`
	Type   string `json:"type,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// StreetSummary identifies a matching street.
type StreetSummary struct {
	Type   osm.ElementType    `json:"type"`
	ID     int64              `json:"id"`
	Name   *string            `json:"name"`
	Source attribution.Source `json:"source"`
	Gender *string            `json:"gender"`
}

// FindStreetsOutput lists the matches, Total counts them before the limit.
type FindStreetsOutput struct {
	Streets []StreetSummary `json:"streets"`
	Total   int             `json:"total"`
}

func (r *Registry) handleFindStreets(_ context.Context, input FindStreetsInput, logger *slog.Logger) (any, error) {
	needle := strings.ToLower(strings.TrimSpace(input.Name))
	if needle == "" {
		return nil, core.NewError(core.ErrInvalidIdentifier, "name must not be empty")
	}
	if input.Gender != "" && !genderFilters[input.Gender] {
		return nil, core.Errorf(core.ErrInvalidIdentifier, "unknown gender filter %q", input.Gender).
			WithGuidance("Use one of M, F, X, FX, MX, + or -")
	}

	search := kinds
	if input.Type != "" {
		kind, err := parseKind(input.Type)
		if err != nil {
			return nil, err
		}
		search = []osm.ElementType{kind}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultStreetLimit
	}
	if limit > MaxStreetLimit {
		limit = MaxStreetLimit
	}

	out := FindStreetsOutput{Streets: []StreetSummary{}}
	for _, kind := range search {
		coll := r.streets.Collection(kind)
		if coll == nil {
			continue
		}
		for _, f := range coll.Features {
			if f.Properties.Name == nil || !strings.Contains(strings.ToLower(*f.Properties.Name), needle) {
				continue
			}
			if input.Gender != "" && feature.GenderLabel(f.Properties.Gender) != input.Gender {
				continue
			}
			out.Total++
			if len(out.Streets) < limit {
				out.Streets = append(out.Streets, StreetSummary{
					Type:   kind,
					ID:     f.ID,
					Name:   f.Properties.Name,
					Source: f.Properties.Source,
					Gender: f.Properties.Gender,
				})
			}
		}
	}

	logger.Debug("streets found", "name", input.Name, "total", out.Total, "returned", len(out.Streets))
	return out, nil
}

// GenderStatisticsTool returns the tool definition of gender_statistics.
func GenderStatisticsTool() mcp.Tool {
	return mcp.NewTool("gender_statistics",
		mcp.WithDescription("Count the streets of the city per gender and per attribution source"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithString("type",
			mcp.Description("Restrict to way or relation, both when omitted"),
			mcp.Enum(string(osm.TypeWay), string(osm.TypeRelation)),
		),
	)
}

// GenderStatisticsInput is the input of gender_statistics.
type GenderStatisticsInput struct {
	Type string `json:"type,omitempty"`
}

// GenderStatisticsOutput holds per collection statistics and their sum.
type GenderStatisticsOutput struct {
	Collections map[osm.ElementType]feature.Stats `json:"collections"`
	Total       feature.Stats                     `json:"total"`
}

func (r *Registry) handleGenderStatistics(_ context.Context, input GenderStatisticsInput, _ *slog.Logger) (any, error) {
	search := kinds
	if input.Type != "" {
		kind, err := parseKind(input.Type)
		if err != nil {
			return nil, err
		}
		search = []osm.ElementType{kind}
	}

	out := GenderStatisticsOutput{Collections: make(map[osm.ElementType]feature.Stats, len(search))}
	for _, kind := range search {
		coll := r.streets.Collection(kind)
		if coll == nil {
			continue
		}
		stats := feature.Summarize(coll)
		out.Collections[kind] = stats
		out.Total.Add(stats)
	}
	if out.Total.ByGender == nil {
		out.Total = feature.Summarize(&feature.Collection{})
	}
	return out, nil
}
