package domain

import "strings"

// GeographyType is the value of the sheet's Geography column.
type GeographyType string

const (
	GeographyRegion                  GeographyType = "Region"
	GeographyCounty                  GeographyType = "County"
	GeographyUnitaryAuthority        GeographyType = "Unitary Authority"
	GeographyMetropolitanDistrict    GeographyType = "Metropolitan District"
	GeographyNonMetropolitanDistrict GeographyType = "Non-metropolitan District"
	GeographyLondonBorough           GeographyType = "London Borough"
)

// IsDistrict reports whether g is one of the four district-level kinds.
func (g GeographyType) IsDistrict() bool {
	switch g {
	case GeographyUnitaryAuthority, GeographyMetropolitanDistrict,
		GeographyNonMetropolitanDistrict, GeographyLondonBorough:
		return true
	}
	return false
}

// AdministrativeRow is one row of the population sheet.
type AdministrativeRow struct {
	Geography  GeographyType `json:"geography"`
	Name       string        `json:"name"`
	Population int64         `json:"population"`
	Region     *string       `json:"region"`
	County     *string       `json:"county"`
}

// RegionKey returns the upper-cased region used for rate lookups, or "" when
// the row has no region.
func (r AdministrativeRow) RegionKey() string {
	if r.Region == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(*r.Region))
}

// DemandRecord is a district row with its estimated annual air-travel demand.
// Rate is the region multiplier or trip rate that produced Demand; both are
// nil when the region is not in the model's table.
type DemandRecord struct {
	AdministrativeRow
	Rate   *float64 `json:"rate"`
	Demand *float64 `json:"annual_air_travel_demand"`
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TravelTimes holds whole-minute journey times to the reference airport.
// A nil field means the mode is unavailable or was never resolved.
type TravelTimes struct {
	DrivingMinutes *int `json:"driving_minutes"`
	TransitMinutes *int `json:"transit_minutes"`
}

// Complete reports whether both modes are known.
func (t TravelTimes) Complete() bool {
	return t.DrivingMinutes != nil && t.TransitMinutes != nil
}

// Enrichment is the set of externally sourced fields joined onto a district.
type Enrichment struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	TravelTimes
}

// MissingCoordinates reports whether either coordinate is unknown.
func (e Enrichment) MissingCoordinates() bool {
	return e.Latitude == nil || e.Longitude == nil
}

// MissingTravelTimes reports whether either travel time is unknown.
func (e Enrichment) MissingTravelTimes() bool {
	return !e.TravelTimes.Complete()
}

// SetCoordinates stamps c when ok, otherwise clears both coordinates.
func (e *Enrichment) SetCoordinates(c Coordinates, ok bool) {
	if !ok {
		e.Latitude, e.Longitude = nil, nil
		return
	}
	lat, lon := c.Lat, c.Lon
	e.Latitude, e.Longitude = &lat, &lon
}

// EnrichedRow is a DemandRecord joined with its enrichment by district name.
type EnrichedRow struct {
	DemandRecord
	Enrichment
}

// HasMapFields reports whether the row can be placed on a demand heatmap.
func (r EnrichedRow) HasMapFields() bool {
	return r.Latitude != nil && r.Longitude != nil && r.Demand != nil
}
