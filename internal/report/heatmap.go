package report

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// Heatmap builds a FeatureCollection with one point per district weighted by
// demand. Rows lacking a coordinate or demand are excluded.
func Heatmap(rows []domain.EnrichedRow) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(rows))}
	for _, r := range rows {
		if !r.HasMapFields() {
			continue
		}
		props := map[string]any{
			"name":       r.Name,
			"population": r.Population,
			"demand":     *r.Demand,
		}
		if r.Region != nil {
			props["region"] = *r.Region
		}
		if r.DrivingMinutes != nil {
			props["driving_minutes"] = *r.DrivingMinutes
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         r.Name,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{*r.Longitude, *r.Latitude}),
			Properties: props,
		})
	}
	return fc
}

// HeatmapGeoJSON encodes Heatmap(rows) as GeoJSON.
func HeatmapGeoJSON(rows []domain.EnrichedRow) ([]byte, error) {
	data, err := json.Marshal(Heatmap(rows))
	if err != nil {
		return nil, fmt.Errorf("encode heatmap: %w", err)
	}
	return data, nil
}
