package feature

import "github.com/NERVsystems/osmgender/pkg/attribution"

// UnknownGender labels features without a gender in statistics.
const UnknownGender = "-"

// Stats counts the features of a collection.
type Stats struct {
	Total    int                        `json:"total"`
	ByGender map[string]int             `json:"by_gender"`
	BySource map[attribution.Source]int `json:"by_source"`
}

// Summarize counts the features of c per gender and per source.
func Summarize(c *Collection) Stats {
	stats := Stats{
		ByGender: make(map[string]int),
		BySource: make(map[attribution.Source]int),
	}
	for _, f := range c.Features {
		stats.Total++
		stats.ByGender[GenderLabel(f.Properties.Gender)]++
		stats.BySource[f.Properties.Source]++
	}
	return stats
}

// Add merges other into s.
func (s *Stats) Add(other Stats) {
	if s.ByGender == nil {
		s.ByGender = make(map[string]int)
	}
	if s.BySource == nil {
		s.BySource = make(map[attribution.Source]int)
	}
	s.Total += other.Total
	for k, v := range other.ByGender {
		s.ByGender[k] += v
	}
	for k, v := range other.BySource {
		s.BySource[k] += v
	}
}

// GenderLabel returns gender, or UnknownGender when nil.
func GenderLabel(gender *string) string {
	if gender == nil {
		return UnknownGender
	}
	return *gender
}
