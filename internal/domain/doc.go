// Package domain models ONS mid-year population estimates for UK local
// authorities and the air-travel demand derived from them.
//
// # Data Source
//
// The input is the ONS "Mid-2023" population estimates sheet: one row per
// geography, listed top-down so that each Region header is followed by its
// Counties and districts. The sheet is flat; membership is implied only by
// row order.
//
//	Geography                  Name             Mid-2023
//	Region                     SOUTH EAST       9379833
//	County                     Kent             1610251
//	Non-metropolitan District  Ashford          137440
//	Unitary Authority          Slough           158496
//
// A County header applies until the next County or Region header. A Region
// header clears the current county, so unitary authorities listed directly
// under a region have no county.
//
// # District Kinds
//
// Four geography types are treated as the unit of analysis:
//
//	Unitary Authority
//	Metropolitan District
//	Non-metropolitan District
//	London Borough
//
// Every other row (Region, County, Country, ...) is used only to resolve
// the hierarchy and is dropped afterwards.
//
// # Demand
//
// Annual air-travel demand is population multiplied by a per-region rate.
// Region keys are upper-case ("SOUTH EAST"). A region missing from the rate
// table yields a nil demand; consumers must treat nil as "unknown" and skip
// it in sums and charts.
//
// # Enrichment
//
// Districts are joined to coordinates and travel times to the reference
// airport by district name. Every enrichment field is optional: a nil
// latitude keeps a row off the heatmap, a nil driving time fails the
// "within 2 hours" filter.
package domain
