package domain

import "strings"

// MaxDrivingMinutes is the "within 2 hours" driving-time threshold.
const MaxDrivingMinutes = 120

// CapitalRegion is the region removed by the ExcludeLondon filter.
const CapitalRegion = "LONDON"

// Filter is the set of user-selected predicates over the enriched table.
// Empty slices and false flags are inactive; active predicates are ANDed.
type Filter struct {
	Regions       []string `json:"regions,omitempty"`
	Counties      []string `json:"counties,omitempty"`
	Districts     []string `json:"districts,omitempty"`
	Within2Hours  bool     `json:"within_2_hours,omitempty"`
	ExcludeLondon bool     `json:"exclude_london,omitempty"`
}

// Apply returns the rows matching every active predicate, in input order.
func (f Filter) Apply(rows []EnrichedRow) []EnrichedRow {
	regions := toSet(f.Regions)
	counties := toSet(f.Counties)
	districts := toSet(f.Districts)

	out := make([]EnrichedRow, 0, len(rows))
	for _, row := range rows {
		if f.match(row, regions, counties, districts) {
			out = append(out, row)
		}
	}
	return out
}

// Match reports whether a single row passes every active predicate.
func (f Filter) Match(row EnrichedRow) bool {
	return f.match(row, toSet(f.Regions), toSet(f.Counties), toSet(f.Districts))
}

func (f Filter) match(row EnrichedRow, regions, counties, districts map[string]struct{}) bool {
	if regions != nil && !inSet(regions, row.Region) {
		return false
	}
	if counties != nil && !inSet(counties, row.County) {
		return false
	}
	if districts != nil && !inSet(districts, &row.Name) {
		return false
	}
	if f.Within2Hours && (row.DrivingMinutes == nil || *row.DrivingMinutes > MaxDrivingMinutes) {
		return false
	}
	if f.ExcludeLondon && row.Region != nil && strings.EqualFold(strings.TrimSpace(*row.Region), CapitalRegion) {
		return false
	}
	return true
}

// RegionOptions lists the distinct non-nil regions in first-seen order.
func RegionOptions(rows []EnrichedRow) []string {
	return distinct(rows, func(r EnrichedRow) *string { return r.Region })
}

// CountyOptions lists the distinct non-nil counties in first-seen order.
func CountyOptions(rows []EnrichedRow) []string {
	return distinct(rows, func(r EnrichedRow) *string { return r.County })
}

// DistrictOptions lists district names belonging to the selected counties,
// or every district when no county is selected.
func DistrictOptions(rows []EnrichedRow, counties []string) []string {
	selected := toSet(counties)
	return distinct(rows, func(r EnrichedRow) *string {
		if selected != nil && !inSet(selected, r.County) {
			return nil
		}
		return &r.Name
	})
}

func distinct(rows []EnrichedRow, value func(EnrichedRow) *string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		v := value(row)
		if v == nil {
			continue
		}
		if _, ok := seen[*v]; ok {
			continue
		}
		seen[*v] = struct{}{}
		out = append(out, *v)
	}
	return out
}

// toSet returns nil for an empty selection so callers can treat nil as inactive.
func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func inSet(set map[string]struct{}, v *string) bool {
	if v == nil {
		return false
	}
	_, ok := set[*v]
	return ok
}
