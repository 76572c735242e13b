// Package attribution decides which gender a street is attributed to and on
// what grounds. Sources are tried in priority order and the first one that
// knows about a street wins.
package attribution

import (
	"github.com/NERVsystems/osmgender/pkg/wikidata"
)

// Source tells where an attribution comes from.
type Source string

const (
	SourceWikidata Source = "wikidata"
	SourceConfig   Source = "config"
	SourceEvent    Source = "event"
	SourceNone     Source = "none"
)

// MixedGender is the aggregate gender of a street named after several
// persons who don't share the same gender.
const MixedGender = "+"

// Record is the attribution of one street. Gender is always nil when
// Source is SourceNone. Details is only set by the wikidata source.
type Record struct {
	Source  Source
	Gender  *string
	Details []wikidata.Details
}

// None is the record of a street no source knows about.
func None() Record {
	return Record{Source: SourceNone}
}

// DetailsPayload returns the details in their published shape: nil for
// sources other than wikidata, the record itself when the street has a
// single etymology, the ordered list otherwise.
func (r Record) DetailsPayload() any {
	if r.Source != SourceWikidata {
		return nil
	}
	if len(r.Details) == 1 {
		return r.Details[0]
	}
	if r.Details == nil {
		return []wikidata.Details{}
	}
	return r.Details
}

// aggregateGender merges the genders of the etymology details. A gender is
// only given when every detail is a person. Several distinct genders, an
// unknown one included, give MixedGender.
func aggregateGender(details []wikidata.Details) *string {
	if len(details) == 0 {
		return nil
	}

	var (
		first *string
		mixed bool
	)
	for i, d := range details {
		if !d.Person {
			return nil
		}
		if i == 0 {
			first = d.Gender
			continue
		}
		if !sameGender(first, d.Gender) {
			mixed = true
		}
	}

	if mixed {
		g := MixedGender
		return &g
	}
	if first == nil {
		return nil
	}
	g := *first
	return &g
}

func sameGender(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
