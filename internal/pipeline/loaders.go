package pipeline

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/report"
)

// outputRow is the enriched CSV layout. Shared columns keep the input
// sheet's names.
type outputRow struct {
	Geography      string `csv:"Geography"`
	Name           string `csv:"Name"`
	Population     int64  `csv:"Mid-2023"`
	Region         string `csv:"Region"`
	County         string `csv:"County"`
	Rate           string `csv:"Rate"`
	Demand         string `csv:"Annual Air Travel Demand"`
	Latitude       string `csv:"Latitude"`
	Longitude      string `csv:"Longitude"`
	DrivingMinutes string `csv:"Driving Time (mins)"`
	TransitMinutes string `csv:"Transit Time (mins)"`
}

func toOutputRow(r domain.EnrichedRow) outputRow {
	return outputRow{
		Geography:      string(r.Geography),
		Name:           r.Name,
		Population:     r.Population,
		Region:         deref(r.Region),
		County:         deref(r.County),
		Rate:           formatFloat(r.Rate),
		Demand:         formatFloat(r.Demand),
		Latitude:       formatFloat(r.Latitude),
		Longitude:      formatFloat(r.Longitude),
		DrivingMinutes: formatInt(r.DrivingMinutes),
		TransitMinutes: formatInt(r.TransitMinutes),
	}
}

// CSVLoader writes enriched rows to a CSV file, replacing it.
type CSVLoader struct {
	path string
}

// NewCSVLoader returns a CSVLoader for path.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{path: path}
}

// Name identifies the loader in logs.
func (l *CSVLoader) Name() string { return "csv" }

// LoadBatch implements BatchLoader.
func (l *CSVLoader) LoadBatch(_ context.Context, rows []domain.EnrichedRow) error {
	out := make([]outputRow, len(rows))
	for i, r := range rows {
		out[i] = toOutputRow(r)
	}
	data, err := csvutil.Marshal(out)
	if err != nil {
		return fmt.Errorf("encode enriched csv: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return nil
}

// GeoJSONLoader writes the demand heatmap as a GeoJSON FeatureCollection.
type GeoJSONLoader struct {
	path string
}

// NewGeoJSONLoader returns a GeoJSONLoader for path.
func NewGeoJSONLoader(path string) *GeoJSONLoader {
	return &GeoJSONLoader{path: path}
}

// Name identifies the loader in logs.
func (l *GeoJSONLoader) Name() string { return "geojson" }

// LoadBatch implements BatchLoader.
func (l *GeoJSONLoader) LoadBatch(_ context.Context, rows []domain.EnrichedRow) error {
	data, err := report.HeatmapGeoJSON(rows)
	if err != nil {
		return err
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
