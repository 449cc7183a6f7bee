// Package filestore persists the enrichment caches as local files. The CSV
// stores stay compatible with the coordinates_cache.csv and
// travel_time_cache.csv files written by earlier versions of the tool.
package filestore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jszwec/csvutil"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

type geoRow struct {
	Town      string   `csv:"Town"`
	Latitude  *float64 `csv:"Latitude"`
	Longitude *float64 `csv:"Longitude"`
}

// Travel times are decoded as floats because files written by spreadsheet
// tools render whole minutes as "45.0" once a column contains blanks.
type travelRow struct {
	Town    string   `csv:"Town"`
	Driving *float64 `csv:"Driving"`
	Transit *float64 `csv:"Transit"`
}

// CSVGeoStore is a cache.Store of coordinates backed by a CSV file with the
// header Town,Latitude,Longitude.
type CSVGeoStore struct {
	path string
}

// NewCSVGeoStore returns a CSVGeoStore for path.
func NewCSVGeoStore(path string) *CSVGeoStore {
	return &CSVGeoStore{path: path}
}

// Load reads the file. A missing file yields an empty map. Rows without both
// coordinates are dropped.
func (s *CSVGeoStore) Load(_ context.Context) (map[string]domain.Coordinates, error) {
	rows, err := readRows[geoRow](s.path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Coordinates, len(rows))
	for _, r := range rows {
		if r.Town == "" || r.Latitude == nil || r.Longitude == nil {
			continue
		}
		out[r.Town] = domain.Coordinates{Lat: *r.Latitude, Lon: *r.Longitude}
	}
	return out, nil
}

// Save rewrites the file with entries sorted by town.
func (s *CSVGeoStore) Save(_ context.Context, entries map[string]domain.Coordinates) error {
	rows := make([]geoRow, 0, len(entries))
	for _, town := range sortedKeys(entries) {
		c := entries[town]
		lat, lon := c.Lat, c.Lon
		rows = append(rows, geoRow{Town: town, Latitude: &lat, Longitude: &lon})
	}
	return writeRows(s.path, rows)
}

// CSVTravelStore is a cache.Store of travel times backed by a CSV file with the
// header Town,Driving,Transit. Empty cells are unavailable modes.
type CSVTravelStore struct {
	path string
}

// NewCSVTravelStore returns a CSVTravelStore for path.
func NewCSVTravelStore(path string) *CSVTravelStore {
	return &CSVTravelStore{path: path}
}

// Load reads the file. A missing file yields an empty map.
func (s *CSVTravelStore) Load(_ context.Context) (map[string]domain.TravelTimes, error) {
	rows, err := readRows[travelRow](s.path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.TravelTimes, len(rows))
	for _, r := range rows {
		if r.Town == "" {
			continue
		}
		out[r.Town] = domain.TravelTimes{
			DrivingMinutes: wholeMinutes(r.Driving),
			TransitMinutes: wholeMinutes(r.Transit),
		}
	}
	return out, nil
}

// Save rewrites the file with entries sorted by town.
func (s *CSVTravelStore) Save(_ context.Context, entries map[string]domain.TravelTimes) error {
	rows := make([]travelRow, 0, len(entries))
	for _, town := range sortedKeys(entries) {
		t := entries[town]
		rows = append(rows, travelRow{
			Town:    town,
			Driving: floatMinutes(t.DrivingMinutes),
			Transit: floatMinutes(t.TransitMinutes),
		})
	}
	return writeRows(s.path, rows)
}

func wholeMinutes(f *float64) *int {
	if f == nil {
		return nil
	}
	m := int(*f)
	return &m
}

func floatMinutes(m *int) *float64 {
	if m == nil {
		return nil
	}
	f := float64(*m)
	return &f
}

func readRows[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s header: %w", path, err)
	}

	var rows []T
	if err := dec.Decode(&rows); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}

// writeRows replaces path atomically so an interrupted run never leaves a
// truncated cache behind.
func writeRows[T any](path string, rows []T) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}
