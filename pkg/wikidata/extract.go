package wikidata

import (
	"strconv"
	"strings"

	"github.com/NERVsystems/osmgender/pkg/warnings"
)

// Gender values written to features
const (
	GenderMale              = "M"
	GenderFemale            = "F"
	GenderOther             = "X"
	GenderTransgenderFemale = "FX"
	GenderTransgenderMale   = "MX"
)

// genders maps sex-or-gender (P21) items to the values written to features.
var genders = map[string]string{
	"Q6581097": GenderMale,
	"Q6581072": GenderFemale,
	"Q1097630": GenderOther, // intersex
	"Q48270":   GenderOther, // non-binary
	"Q1052281": GenderTransgenderFemale,
	"Q2449503": GenderTransgenderMale,
}

// Details is the per-identifier record attached to a feature.
type Details struct {
	Wikidata     string                    `json:"wikidata"`
	Person       bool                      `json:"person"`
	Gender       *string                   `json:"gender"`
	Labels       map[string]LocalizedValue `json:"labels"`
	Descriptions map[string]LocalizedValue `json:"descriptions"`
	Nicknames    []LocalizedValue          `json:"nicknames"`
	Birth        *int                      `json:"birth"`
	Death        *int                      `json:"death"`
	Sitelinks    map[string]Sitelink       `json:"sitelinks"`
	Image        *string                   `json:"image"`
}

// Extractor builds Details for the configured person classes and languages.
type Extractor struct {
	Instances []string
	Languages []string
}

// Details extracts the record for e. An entity that can't be classified
// is reported to sink and treated as not being a person.
func (x Extractor) Details(e *Entity, sink *warnings.Sink) Details {
	person, classified := IsPerson(e, x.Instances)
	if !classified {
		sink.Add("no instance or subclass for %q", e.ID)
		person = false
	}

	return Details{
		Wikidata:     e.ID,
		Person:       person,
		Gender:       Gender(e),
		Labels:       Labels(e, x.Languages),
		Descriptions: Descriptions(e, x.Languages),
		Nicknames:    Nicknames(e, x.Languages),
		Birth:        BirthYear(e),
		Death:        DeathYear(e),
		Sitelinks:    Sitelinks(e, x.Languages),
		Image:        Image(e),
	}
}

// IsPerson classifies e against the accepted instance-of / subclass-of
// items. classified is false when e has neither property.
func IsPerson(e *Entity, instances []string) (person bool, classified bool) {
	if !e.HasClaims(PropInstanceOf) && !e.HasClaims(PropSubclassOf) {
		return false, false
	}

	accepted := make(map[string]struct{}, len(instances))
	for _, id := range instances {
		accepted[id] = struct{}{}
	}

	for _, prop := range []string{PropInstanceOf, PropSubclassOf} {
		for _, v := range e.Values(prop) {
			if id, ok := v.EntityID(); ok {
				if _, hit := accepted[id]; hit {
					return true, true
				}
			}
		}
	}
	return false, true
}

// Gender returns the gender of the first P21 claim, or nil.
func Gender(e *Entity) *string {
	for _, v := range e.Values(PropGender) {
		id, ok := v.EntityID()
		if !ok {
			continue
		}
		if g, known := genders[id]; known {
			return &g
		}
		return nil
	}
	return nil
}

// BirthYear returns the year of the first date of birth, or nil.
func BirthYear(e *Entity) *int {
	return firstYear(e, PropBirth)
}

// DeathYear returns the year of the first date of death, or nil.
func DeathYear(e *Entity) *int {
	return firstYear(e, PropDeath)
}

func firstYear(e *Entity, prop string) *int {
	for _, v := range e.Values(prop) {
		if t, ok := v.Time(); ok {
			return parseYear(t)
		}
	}
	return nil
}

// parseYear reads the signed year at the start of a Wikidata time string.
func parseYear(t string) *int {
	if len(t) < 2 {
		return nil
	}
	end := strings.IndexByte(t[1:], '-')
	if end < 0 {
		return nil
	}
	year, err := strconv.Atoi(t[:end+1])
	if err != nil {
		return nil
	}
	return &year
}

// Labels returns the labels of e in the given languages.
func Labels(e *Entity, languages []string) map[string]LocalizedValue {
	return pick(e.Labels, languages)
}

// Descriptions returns the descriptions of e in the given languages.
func Descriptions(e *Entity, languages []string) map[string]LocalizedValue {
	return pick(e.Descriptions, languages)
}

func pick(values map[string]LocalizedValue, languages []string) map[string]LocalizedValue {
	out := make(map[string]LocalizedValue, len(languages))
	for _, lang := range languages {
		if v, ok := values[lang]; ok {
			out[lang] = v
		}
	}
	return out
}

// Nicknames returns the P1449 values of e written in one of the languages.
func Nicknames(e *Entity, languages []string) []LocalizedValue {
	wanted := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		wanted[lang] = struct{}{}
	}

	out := []LocalizedValue{}
	for _, v := range e.Values(PropNickname) {
		text, ok := v.MonolingualText()
		if !ok {
			continue
		}
		if _, keep := wanted[text.Language]; keep {
			out = append(out, text)
		}
	}
	return out
}

// Sitelinks returns the Wikipedia links of e for the given languages, keyed by site.
func Sitelinks(e *Entity, languages []string) map[string]Sitelink {
	out := make(map[string]Sitelink, len(languages))
	for _, lang := range languages {
		site := lang + "wiki"
		if link, ok := e.Sitelinks[site]; ok {
			out[site] = link
		}
	}
	return out
}

// Image returns the first P18 file name, or nil.
func Image(e *Entity) *string {
	for _, v := range e.Values(PropImage) {
		if s, ok := v.StringValue(); ok {
			return &s
		}
	}
	return nil
}
