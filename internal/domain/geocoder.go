package domain

import (
	"context"
	"time"
)

// GeocodingResult contains location data returned by a geocoding provider.
// Found is false when the provider returned no match for the query.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	Found            bool
}

// Coordinates returns the result's position.
func (r GeocodingResult) Coordinates() Coordinates {
	return Coordinates{Lat: r.Lat, Lon: r.Lon}
}

// Geocoder resolves free-text place queries to coordinates.
type Geocoder interface {
	// ForwardGeocode converts a place query such as "Slough, UK" to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}

// TravelMode selects how a journey is routed.
type TravelMode string

const (
	ModeDriving TravelMode = "driving"
	ModeTransit TravelMode = "transit"
)

// RouteStatusOK is the per-route status reported when a duration is available.
const RouteStatusOK = "OK"

// RouteQuery describes a single origin to destination journey.
type RouteQuery struct {
	Origin        string
	Destination   string
	Mode          TravelMode
	DepartureTime time.Time
}

// RouteResult is the routing service's answer for one RouteQuery. Duration
// is only meaningful when Status is RouteStatusOK.
type RouteResult struct {
	Status          string
	DurationSeconds int
}

// OK reports whether the route has a usable duration.
func (r RouteResult) OK() bool { return r.Status == RouteStatusOK }

// Minutes returns the duration floored to whole minutes.
func (r RouteResult) Minutes() int { return r.DurationSeconds / 60 }

// Router reports journey durations. A returned error means the request as a
// whole failed; a non-OK Status is a definitive per-route answer.
type Router interface {
	TravelTime(ctx context.Context, q RouteQuery) (RouteResult, error)
}
