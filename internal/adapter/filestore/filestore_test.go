package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-demand-etl/internal/cache"
	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

var (
	_ cache.Store[domain.Coordinates] = (*CSVGeoStore)(nil)
	_ cache.Store[domain.TravelTimes] = (*CSVTravelStore)(nil)
	_ cache.Store[domain.Coordinates] = (*JSONStore[domain.Coordinates])(nil)
)

func intPtr(v int) *int { return &v }

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCSVGeoStore_MissingFileIsEmpty(t *testing.T) {
	s := NewCSVGeoStore(filepath.Join(t.TempDir(), "coordinates_cache.csv"))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVGeoStore_EmptyFileIsEmpty(t *testing.T) {
	s := NewCSVGeoStore(writeFile(t, "coordinates_cache.csv", ""))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVGeoStore_LoadsExistingFile(t *testing.T) {
	path := writeFile(t, "coordinates_cache.csv",
		"Town,Latitude,Longitude\n"+
			"Slough,51.5105,-0.595\n"+
			"Nowhere,,\n")

	got, err := NewCSVGeoStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinates{"Slough": {Lat: 51.5105, Lon: -0.595}}, got)
}

func TestCSVGeoStore_LoadsQuotedTownNames(t *testing.T) {
	path := writeFile(t, "coordinates_cache.csv",
		"Town,Latitude,Longitude\n"+
			"\"Bristol, City of\",51.4545,-2.5879\n"+
			"\"Herefordshire, County of\",52.0765,-2.6544\n")

	got, err := NewCSVGeoStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]domain.Coordinates{
		"Bristol, City of":         {Lat: 51.4545, Lon: -2.5879},
		"Herefordshire, County of": {Lat: 52.0765, Lon: -2.6544},
	}, got)
}

func TestCSVGeoStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinates_cache.csv")
	s := NewCSVGeoStore(path)
	ctx := context.Background()
	want := map[string]domain.Coordinates{
		"Slough":  {Lat: 51.5105, Lon: -0.595},
		"Reading": {Lat: 51.4543, Lon: -0.9781},
	}

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Town,Latitude,Longitude\nReading,51.4543,-0.9781\nSlough,51.5105,-0.595\n", string(data))
}

func TestCSVGeoStore_MalformedFile(t *testing.T) {
	path := writeFile(t, "coordinates_cache.csv", "Town,Latitude,Longitude\nSlough,north,west\n")

	_, err := NewCSVGeoStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestCSVTravelStore_LoadsFloatMinutesAndBlanks(t *testing.T) {
	path := writeFile(t, "travel_time_cache.csv",
		"Town,Driving,Transit\n"+
			"Slough,25.0,49.0\n"+
			"Stornoway,,\n"+
			"Reading,40,\n")

	got, err := NewCSVTravelStore(path).Load(context.Background())
	require.NoError(t, err)

	want := map[string]domain.TravelTimes{
		"Slough":    {DrivingMinutes: intPtr(25), TransitMinutes: intPtr(49)},
		"Stornoway": {},
		"Reading":   {DrivingMinutes: intPtr(40)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("load mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVTravelStore_RoundTripKeepsNilModes(t *testing.T) {
	s := NewCSVTravelStore(filepath.Join(t.TempDir(), "travel_time_cache.csv"))
	ctx := context.Background()
	want := map[string]domain.TravelTimes{
		"Slough":    {DrivingMinutes: intPtr(25), TransitMinutes: intPtr(49)},
		"Stornoway": {},
	}

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVTravelStore(filepath.Join(dir, "travel_time_cache.csv"))

	require.NoError(t, s.Save(context.Background(), map[string]domain.TravelTimes{"Slough": {}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "travel_time_cache.csv", entries[0].Name())
}

func TestJSONStore_RoundTrip(t *testing.T) {
	s := NewJSONStore[domain.TravelTimes](filepath.Join(t.TempDir(), "travel.json"))
	ctx := context.Background()
	want := map[string]domain.TravelTimes{
		"Slough":    {DrivingMinutes: intPtr(25)},
		"Stornoway": {},
	}

	require.NoError(t, s.Save(ctx, want))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONStore_MissingFileIsEmpty(t *testing.T) {
	s := NewJSONStore[domain.Coordinates](filepath.Join(t.TempDir(), "geo.json"))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestJSONStore_Malformed(t *testing.T) {
	s := NewJSONStore[domain.Coordinates](writeFile(t, "geo.json", "{not json"))

	_, err := s.Load(context.Background())
	require.Error(t, err)
}
