package domain

// ResolveHierarchy stamps Region and County onto every non-header row using a
// single ordered pass over the sheet. A Region header resets the current
// county; a County header replaces it. Rows seen before the first Region keep
// a nil region.
//
// The fold depends on sheet order and must not be reordered or parallelized.
// The input slice is not modified.
func ResolveHierarchy(rows []AdministrativeRow) []AdministrativeRow {
	out := make([]AdministrativeRow, len(rows))
	var region, county *string

	for i, row := range rows {
		switch row.Geography {
		case GeographyRegion:
			region = stringPtr(row.Name)
			county = nil
		case GeographyCounty:
			county = stringPtr(row.Name)
		default:
			row.Region = region
			row.County = county
		}
		out[i] = row
	}
	return out
}

// FilterDistricts keeps only district-level rows, preserving order.
func FilterDistricts(rows []AdministrativeRow) []AdministrativeRow {
	out := make([]AdministrativeRow, 0, len(rows))
	for _, row := range rows {
		if row.Geography.IsDistrict() {
			out = append(out, row)
		}
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
