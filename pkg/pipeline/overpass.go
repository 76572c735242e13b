package pipeline

import (
	"context"

	"github.com/NERVsystems/osmgender/pkg/core"
	"github.com/NERVsystems/osmgender/pkg/osm"
	"github.com/NERVsystems/osmgender/pkg/osm/queries"
)

// Overpass downloads the street ways and relations of the city area.
func (p *Pipeline) Overpass(ctx context.Context) error {
	return p.runStage(ctx, StageOverpass, func(ctx context.Context) error {
		if p.city.Overpass.Area == 0 {
			return core.NewError(core.ErrInvalidConfig, "overpass.area is not set").
				WithPath(p.layout.ConfigPath()).
				WithGuidance("Set overpass.area to the OSM relation id of the city boundary")
		}
		area := osm.AreaID(p.city.Overpass.Area)

		for _, kind := range Kinds {
			query := queries.StreetWays(area, p.city.Overpass.Timeout)
			if kind == osm.TypeRelation {
				query = queries.StreetRelations(area, p.city.Overpass.Timeout)
			}

			raw, doc, err := p.overpass.Query(ctx, query)
			if err != nil {
				return err
			}

			path := p.layout.OverpassPath(kind)
			if err := writeFile(path, raw); err != nil {
				return err
			}

			store := osm.NewStore(doc.Elements)
			p.logger.Info("overpass document saved",
				"type", kind,
				"path", path,
				"nodes", store.Count(osm.TypeNode),
				"ways", store.Count(osm.TypeWay),
				"relations", store.Count(osm.TypeRelation),
			)
		}
		return nil
	})
}
