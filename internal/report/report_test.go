package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

type rowOpt func(*domain.EnrichedRow)

func withDemand(d float64) rowOpt { return func(r *domain.EnrichedRow) { r.Demand = floatPtr(d) } }

func withTimes(driving, transit *int) rowOpt {
	return func(r *domain.EnrichedRow) {
		r.DrivingMinutes, r.TransitMinutes = driving, transit
	}
}

func withCoords(lat, lon float64) rowOpt {
	return func(r *domain.EnrichedRow) { r.Latitude, r.Longitude = floatPtr(lat), floatPtr(lon) }
}

func district(name, region string, population int64, opts ...rowOpt) domain.EnrichedRow {
	r := domain.EnrichedRow{DemandRecord: domain.DemandRecord{
		AdministrativeRow: domain.AdministrativeRow{
			Geography:  domain.GeographyUnitaryAuthority,
			Name:       name,
			Population: population,
		},
	}}
	if region != "" {
		r.Region = strPtr(region)
	}
	for _, o := range opts {
		o(&r)
	}
	return r
}

func names(rows []domain.EnrichedRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func gapNames(rows []TransitGapRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func sample() []domain.EnrichedRow {
	return []domain.EnrichedRow{
		district("Westminster", "LONDON", 200, withDemand(520), withTimes(intPtr(30), intPtr(45)), withCoords(51.49, -0.13)),
		district("Slough", "SOUTH EAST", 150, withDemand(277.5), withTimes(intPtr(25), intPtr(49)), withCoords(51.51, -0.59)),
		district("Cardiff", "WALES", 360, withDemand(378), withTimes(intPtr(150), intPtr(210)), withCoords(51.48, -3.18)),
		district("Leeds", "YORKSHIRE AND THE HUMBER", 800, withDemand(1040), withTimes(intPtr(200), nil)),
		district("Orphan", "", 50),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())

	assert.Equal(t, 5, s.Districts)
	assert.Equal(t, int64(1560), s.TotalPopulation)
	assert.InDelta(t, 2215.5, s.TotalDemand, 1e-9)
	assert.Equal(t, 4, s.WithDemand)
	assert.Equal(t, 3, s.WithCoordinates)
	assert.Equal(t, 4, s.WithDriving)
	assert.Equal(t, 3, s.WithTransit)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestDemandByRegion(t *testing.T) {
	rows := append(sample(), district("Camden", "LONDON", 100, withDemand(260)))

	got := DemandByRegion(rows)

	require.Len(t, got, 4)
	assert.Equal(t, "YORKSHIRE AND THE HUMBER", got[0].Region)
	assert.Equal(t, "LONDON", got[1].Region)
	assert.InDelta(t, 780, got[1].Demand, 1e-9)

	var share float64
	for _, rd := range got {
		share += rd.Share
	}
	assert.InDelta(t, 1.0, share, 1e-9)
}

func TestTopByDemand(t *testing.T) {
	assert.Equal(t, []string{"Leeds", "Westminster"}, names(TopByDemand(sample(), 2)))
	assert.Len(t, TopByDemand(sample(), 10), 4, "nil demand excluded")
}

func TestMedianDemand(t *testing.T) {
	m, ok := MedianDemand(sample())
	require.True(t, ok)
	assert.InDelta(t, (378.0+520.0)/2, m, 1e-9)

	_, ok = MedianDemand([]domain.EnrichedRow{district("Orphan", "", 1)})
	assert.False(t, ok)
}

func TestHighDemandNearby(t *testing.T) {
	// Median is 449: Westminster (520, 30 min) qualifies; Leeds is too far.
	assert.Equal(t, []string{"Westminster"}, names(HighDemandNearby(sample())))
	assert.Nil(t, HighDemandNearby(nil))
}

func TestTransitGap(t *testing.T) {
	got := TransitGap(sample(), 10)

	assert.Equal(t, []string{"Cardiff", "Slough", "Westminster"}, gapNames(got))
	assert.Equal(t, 60, got[0].GapMinutes)
	assert.Equal(t, 24, got[1].GapMinutes)
	assert.Len(t, TransitGap(sample(), 1), 1)
}

func TestDrivingHistogram(t *testing.T) {
	bins := DrivingHistogram(sample(), 5)

	require.Len(t, bins, 5)
	assert.InDelta(t, 25, bins[0].Lower, 1e-9)
	assert.InDelta(t, 150, bins[4].Upper, 1e-9)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 3, total, "only rows with both times")
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 1, bins[4].Count, "max value lands in the last bin")
}

func TestDrivingHistogram_SingleValue(t *testing.T) {
	rows := []domain.EnrichedRow{district("Slough", "SOUTH EAST", 1, withTimes(intPtr(25), intPtr(49)))}

	bins := DrivingHistogram(rows, 20)
	require.Len(t, bins, 20)
	assert.Equal(t, 1, bins[0].Count)
}

func TestDrivingHistogram_NoData(t *testing.T) {
	assert.Nil(t, DrivingHistogram(nil, 20))
	assert.Nil(t, DrivingHistogram(sample(), 0))
}

func TestHeatmapGeoJSON(t *testing.T) {
	data, err := HeatmapGeoJSON(sample())
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string    `json:"type"`
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3, "rows without coordinates or demand are dropped")
	first := fc.Features[0]
	assert.Equal(t, "Westminster", first.ID)
	assert.Equal(t, "Point", first.Geometry.Type)
	assert.Equal(t, []float64{-0.13, 51.49}, first.Geometry.Coordinates)
	assert.InDelta(t, 520.0, first.Properties["demand"], 1e-9)
	assert.Equal(t, "LONDON", first.Properties["region"])
}

func TestHeatmap_Empty(t *testing.T) {
	data, err := HeatmapGeoJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
}
