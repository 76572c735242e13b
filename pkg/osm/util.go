package osm

const (
	// API endpoints
	OverpassBaseURL = "https://overpass-api.de/api/interpreter"
	WikidataBaseURL = "https://www.wikidata.org/wiki/Special:EntityData/"

	// UserAgent identifies the pipeline to Overpass and Wikidata.
	UserAgent = "osmgender/0.1 (+https://github.com/NERVsystems/osmgender)"
)

// AreaID returns the Overpass area id of an OSM relation. Overpass derives
// area ids of relations by adding 3600000000.
func AreaID(relationID int64) int64 {
	if relationID >= areaOffset {
		return relationID
	}
	return relationID + areaOffset
}

const areaOffset = 3600000000
