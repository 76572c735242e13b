// Package config loads the per-city configuration file and the process
// settings read from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// FileName is the name of the city configuration file in a city directory.
const FileName = "config.yaml"

// City is the static configuration of one city.
type City struct {
	// Instances lists the Wikidata items whose instances or subclasses are persons.
	Instances []string `yaml:"instances"`
	// Languages selects the labels, descriptions and sitelinks kept in details.
	Languages []string `yaml:"languages"`
	// Gender overrides the gender of streets, keyed by element id.
	Gender GenderMap `yaml:"gender"`
	// Exclude drops streets from the output.
	Exclude TypedList `yaml:"exclude"`

	Overpass OverpassConfig `yaml:"overpass"`
	Event    EventConfig    `yaml:"event"`
}

// GenderMap holds per element type genders keyed by element id. YAML
// keys are read as strings and checked by Validate.
type GenderMap struct {
	Way      map[string]string `yaml:"way"`
	Relation map[string]string `yaml:"relation"`
}

// TypedList holds per element type id lists.
type TypedList struct {
	Way      []int64 `yaml:"way"`
	Relation []int64 `yaml:"relation"`
}

// OverpassConfig configures the street extraction.
type OverpassConfig struct {
	// Area is the OSM relation (or Overpass area) id of the city boundary.
	Area int64 `yaml:"area"`
	// Timeout is the Overpass server side timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// EventConfig points to an optional gender event CSV.
type EventConfig struct {
	// CSV is relative to the city directory.
	CSV string `yaml:"csv"`
}

// DefaultCity returns a configuration with the defaults applied before loading.
func DefaultCity() *City {
	return &City{
		Instances: []string{"Q5"},
		Languages: []string{"en"},
		Overpass:  OverpassConfig{Timeout: 180},
	}
}

// LoadCity reads and validates the configuration file at path. JSON is
// accepted as well since it is valid YAML.
func LoadCity(path string) (*City, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewError(core.ErrInvalidConfig, "can't read city configuration").WithPath(path).Wrap(err)
	}
	city, err := ParseCity(bytes.NewReader(raw))
	if err != nil {
		var coded *core.Error
		if errors.As(err, &coded) && coded.Path == "" {
			coded.Path = path
		}
		return nil, err
	}
	return city, nil
}

// ParseCity decodes and validates a city configuration.
func ParseCity(r io.Reader) (*City, error) {
	city := DefaultCity()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(city); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.NewError(core.ErrInvalidConfig, "invalid city configuration").Wrap(err)
	}
	if err := city.Validate(); err != nil {
		return nil, err
	}
	return city, nil
}

// Validate checks identifiers, languages and override keys.
func (c *City) Validate() error {
	if len(c.Instances) == 0 {
		return core.NewError(core.ErrInvalidConfig, "instances must not be empty")
	}
	for _, id := range c.Instances {
		if !wikidata.ValidIdentifier(id) {
			return core.Errorf(core.ErrInvalidConfig, "instances: %q is not a Wikidata item identifier", id)
		}
	}
	for _, lang := range c.Languages {
		if _, err := language.Parse(lang); err != nil {
			return core.Errorf(core.ErrInvalidConfig, "languages: %q is not a valid language tag", lang).Wrap(err)
		}
	}
	for _, m := range []map[string]string{c.Gender.Way, c.Gender.Relation} {
		for key := range m {
			if _, err := strconv.ParseInt(key, 10, 64); err != nil {
				return core.Errorf(core.ErrInvalidConfig, "gender: key %q is not an element id", key)
			}
		}
	}
	if c.Overpass.Timeout < 0 {
		return core.Errorf(core.ErrInvalidConfig, "overpass.timeout must be positive, got %d", c.Overpass.Timeout)
	}
	return nil
}

// GenderOverrides returns the gender overrides keyed by element type and id.
func (c *City) GenderOverrides() map[osm.ElementType]map[int64]string {
	return map[osm.ElementType]map[int64]string{
		osm.TypeWay:      parseKeys(c.Gender.Way),
		osm.TypeRelation: parseKeys(c.Gender.Relation),
	}
}

// Excluded returns the ids excluded from the collection of kind.
func (c *City) Excluded(kind osm.ElementType) []int64 {
	switch kind {
	case osm.TypeWay:
		return c.Exclude.Way
	case osm.TypeRelation:
		return c.Exclude.Relation
	}
	return nil
}

// Describe summarizes the configuration for logs.
func (c *City) Describe() string {
	return fmt.Sprintf("instances=%v languages=%v overrides=%d/%d excluded=%d/%d",
		c.Instances, c.Languages,
		len(c.Gender.Way), len(c.Gender.Relation),
		len(c.Exclude.Way), len(c.Exclude.Relation))
}

func parseKeys(m map[string]string) map[int64]string {
	out := make(map[int64]string, len(m))
	for k, v := range m {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}
