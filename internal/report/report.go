// Package report aggregates enriched district rows into the figures shown on
// the demand dashboard. Every function tolerates nil fields and skips rows
// that lack the values it needs.
package report

import (
	"cmp"
	"slices"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// Summary holds headline totals for a selection of districts.
type Summary struct {
	Districts       int     `json:"districts"`
	TotalPopulation int64   `json:"total_population"`
	TotalDemand     float64 `json:"total_demand"`
	WithDemand      int     `json:"with_demand"`
	WithCoordinates int     `json:"with_coordinates"`
	WithDriving     int     `json:"with_driving"`
	WithTransit     int     `json:"with_transit"`
}

// Summarize totals population and demand. Rows with nil demand count towards
// population only.
func Summarize(rows []domain.EnrichedRow) Summary {
	s := Summary{Districts: len(rows)}
	for _, r := range rows {
		s.TotalPopulation += r.Population
		if r.Demand != nil {
			s.TotalDemand += *r.Demand
			s.WithDemand++
		}
		if !r.MissingCoordinates() {
			s.WithCoordinates++
		}
		if r.DrivingMinutes != nil {
			s.WithDriving++
		}
		if r.TransitMinutes != nil {
			s.WithTransit++
		}
	}
	return s
}

// RegionDemand is one region's slice of total demand.
type RegionDemand struct {
	Region string  `json:"region"`
	Demand float64 `json:"demand"`
	Share  float64 `json:"share"`
}

// DemandByRegion sums demand per region, largest first. Rows without a
// region or demand are left out, as is their contribution to the shares.
func DemandByRegion(rows []domain.EnrichedRow) []RegionDemand {
	totals := make(map[string]float64)
	var order []string
	var total float64
	for _, r := range rows {
		if r.Region == nil || r.Demand == nil {
			continue
		}
		if _, seen := totals[*r.Region]; !seen {
			order = append(order, *r.Region)
		}
		totals[*r.Region] += *r.Demand
		total += *r.Demand
	}

	out := make([]RegionDemand, 0, len(order))
	for _, region := range order {
		rd := RegionDemand{Region: region, Demand: totals[region]}
		if total > 0 {
			rd.Share = rd.Demand / total
		}
		out = append(out, rd)
	}
	slices.SortStableFunc(out, func(a, b RegionDemand) int { return cmp.Compare(b.Demand, a.Demand) })
	return out
}

// TopByDemand returns up to n rows with the highest demand, largest first.
// Ties keep sheet order.
func TopByDemand(rows []domain.EnrichedRow, n int) []domain.EnrichedRow {
	withDemand := make([]domain.EnrichedRow, 0, len(rows))
	for _, r := range rows {
		if r.Demand != nil {
			withDemand = append(withDemand, r)
		}
	}
	slices.SortStableFunc(withDemand, byDemandDesc)
	return head(withDemand, n)
}

// MedianDemand returns the median of the non-nil demand values.
func MedianDemand(rows []domain.EnrichedRow) (float64, bool) {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Demand != nil {
			values = append(values, *r.Demand)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}

// HighDemandNearby returns rows within the driving limit whose demand is
// above the selection's median demand, largest demand first.
func HighDemandNearby(rows []domain.EnrichedRow) []domain.EnrichedRow {
	median, ok := MedianDemand(rows)
	if !ok {
		return nil
	}
	var out []domain.EnrichedRow
	for _, r := range rows {
		if r.DrivingMinutes == nil || *r.DrivingMinutes > domain.MaxDrivingMinutes {
			continue
		}
		if r.Demand == nil || *r.Demand <= median {
			continue
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, byDemandDesc)
	return out
}

// TransitGapRow pairs a district with how much longer transit takes than
// driving.
type TransitGapRow struct {
	domain.EnrichedRow
	GapMinutes int `json:"gap_minutes"`
}

// TransitGap returns up to n rows with the largest transit minus driving
// time. Only rows with both times are considered.
func TransitGap(rows []domain.EnrichedRow, n int) []TransitGapRow {
	var out []TransitGapRow
	for _, r := range rows {
		if !r.TravelTimes.Complete() {
			continue
		}
		out = append(out, TransitGapRow{EnrichedRow: r, GapMinutes: *r.TransitMinutes - *r.DrivingMinutes})
	}
	slices.SortStableFunc(out, func(a, b TransitGapRow) int { return cmp.Compare(b.GapMinutes, a.GapMinutes) })
	return head(out, n)
}

// Bin is one histogram bucket covering [Lower, Upper). The last bucket also
// includes its upper edge.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// DrivingHistogram buckets driving minutes into equal-width bins spanning
// the observed range. Rows missing either travel time are excluded.
func DrivingHistogram(rows []domain.EnrichedRow, bins int) []Bin {
	if bins <= 0 {
		return nil
	}
	var values []float64
	for _, r := range rows {
		if r.TravelTimes.Complete() {
			values = append(values, float64(*r.DrivingMinutes))
		}
	}
	if len(values) == 0 {
		return nil
	}

	lo, hi := slices.Min(values), slices.Max(values)
	width := (hi - lo) / float64(bins)
	if width == 0 {
		width = 1
	}

	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

func byDemandDesc(a, b domain.EnrichedRow) int {
	return cmp.Compare(*b.Demand, *a.Demand)
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
