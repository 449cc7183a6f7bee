package domain

import (
	"fmt"
	"strings"
)

// Demand model names accepted by NewDemandModel.
const (
	DemandModelMultiplier = "multiplier"
	DemandModelTripRate   = "trip_rate"
)

// DemandModel estimates annual air-travel demand for a set of district rows.
// Estimate returns one record per input row, in input order.
type DemandModel interface {
	Name() string
	Estimate(rows []AdministrativeRow) []DemandRecord
}

// DefaultRegionMultipliers returns the tuned per-region demand multipliers.
func DefaultRegionMultipliers() map[string]float64 {
	return map[string]float64{
		"LONDON":                   2.6,
		"SOUTH EAST":               1.85,
		"SOUTH WEST":               1.45,
		"EAST":                     1.65,
		"WEST MIDLANDS":            1.3,
		"EAST MIDLANDS":            1.4,
		"YORKSHIRE AND THE HUMBER": 1.3,
		"NORTH WEST":               1.5,
		"NORTH EAST":               1.1,
		"WALES":                    1.05,
	}
}

// DefaultAnnualTrips returns observed annual air trips by region of residence.
func DefaultAnnualTrips() map[string]float64 {
	return map[string]float64{
		"LONDON":                   36_000_000,
		"SOUTH EAST":               22_000_000,
		"SOUTH WEST":               9_000_000,
		"EAST":                     12_500_000,
		"WEST MIDLANDS":            8_500_000,
		"EAST MIDLANDS":            6_800_000,
		"YORKSHIRE AND THE HUMBER": 7_700_000,
		"NORTH WEST":               11_000_000,
		"NORTH EAST":               2_900_000,
		"WALES":                    3_300_000,
	}
}

// NewDemandModel builds the named model over table. A nil table selects the
// model's default table.
func NewDemandModel(name string, table map[string]float64) (DemandModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DemandModelMultiplier, "":
		if table == nil {
			table = DefaultRegionMultipliers()
		}
		return NewMultiplierModel(table), nil
	case DemandModelTripRate, "triprate":
		if table == nil {
			table = DefaultAnnualTrips()
		}
		return NewTripRateModel(table), nil
	default:
		return nil, fmt.Errorf("unknown demand model %q", name)
	}
}

// MultiplierModel computes demand = population * multiplier[region].
type MultiplierModel struct {
	multipliers map[string]float64
}

// NewMultiplierModel creates a MultiplierModel. Table keys are upper-cased.
func NewMultiplierModel(multipliers map[string]float64) *MultiplierModel {
	return &MultiplierModel{multipliers: upperKeys(multipliers)}
}

func (m *MultiplierModel) Name() string { return DemandModelMultiplier }

func (m *MultiplierModel) Estimate(rows []AdministrativeRow) []DemandRecord {
	out := make([]DemandRecord, len(rows))
	for i, row := range rows {
		out[i] = DemandRecord{AdministrativeRow: row}
		if rate, ok := m.multipliers[row.RegionKey()]; ok {
			out[i] = withRate(row, rate)
		}
	}
	return out
}

// TripRateModel derives a per-capita trip rate for each region from observed
// annual trips and the region's summed district population, then computes
// demand = population * tripRate[region].
type TripRateModel struct {
	annualTrips map[string]float64
}

// NewTripRateModel creates a TripRateModel. Table keys are upper-cased.
func NewTripRateModel(annualTrips map[string]float64) *TripRateModel {
	return &TripRateModel{annualTrips: upperKeys(annualTrips)}
}

func (m *TripRateModel) Name() string { return DemandModelTripRate }

func (m *TripRateModel) Estimate(rows []AdministrativeRow) []DemandRecord {
	rates := m.TripRates(rows)

	out := make([]DemandRecord, len(rows))
	for i, row := range rows {
		out[i] = DemandRecord{AdministrativeRow: row}
		if rate, ok := rates[row.RegionKey()]; ok {
			out[i] = withRate(row, rate)
		}
	}
	return out
}

// TripRates returns trips per resident for every region that appears in both
// rows and the trips table and has a positive total population.
func (m *TripRateModel) TripRates(rows []AdministrativeRow) map[string]float64 {
	population := make(map[string]int64)
	for _, row := range rows {
		if key := row.RegionKey(); key != "" {
			population[key] += row.Population
		}
	}

	rates := make(map[string]float64, len(population))
	for region, total := range population {
		trips, ok := m.annualTrips[region]
		if !ok || total <= 0 {
			continue
		}
		rates[region] = trips / float64(total)
	}
	return rates
}

func withRate(row AdministrativeRow, rate float64) DemandRecord {
	demand := float64(row.Population) * rate
	return DemandRecord{AdministrativeRow: row, Rate: &rate, Demand: &demand}
}

func upperKeys(table map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(table))
	for k, v := range table {
		out[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return out
}
