package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func district(name, region string, pop int64) AdministrativeRow {
	r := AdministrativeRow{Geography: GeographyUnitaryAuthority, Name: name, Population: pop}
	if region != "" {
		r.Region = &region
	}
	return r
}

func TestMultiplierModel_SloughExample(t *testing.T) {
	rows := ResolveHierarchy([]AdministrativeRow{
		{Geography: GeographyRegion, Name: "SOUTH EAST"},
		{Geography: "District", Name: "Slough", Population: 150_000},
	})
	require.Equal(t, "SOUTH EAST", *rows[1].Region)

	got := NewMultiplierModel(DefaultRegionMultipliers()).Estimate(rows[1:])

	require.NotNil(t, got[0].Rate)
	require.NotNil(t, got[0].Demand)
	assert.InDelta(t, 1.85, *got[0].Rate, 1e-9)
	assert.InDelta(t, 277_500.0, *got[0].Demand, 1e-6)
}

func TestMultiplierModel_CaseInsensitiveRegion(t *testing.T) {
	m := NewMultiplierModel(map[string]float64{"north east": 1.1})

	got := m.Estimate([]AdministrativeRow{district("Darlington", "North East", 100)})

	require.NotNil(t, got[0].Demand)
	assert.InDelta(t, 110.0, *got[0].Demand, 1e-9)
}

func TestMultiplierModel_UnknownRegionYieldsNilDemand(t *testing.T) {
	m := NewMultiplierModel(DefaultRegionMultipliers())

	got := m.Estimate([]AdministrativeRow{
		district("Belfast", "NORTHERN IRELAND", 345_000),
		district("Orphan", "", 10),
		district("Cardiff", "WALES", 372_000),
	})

	require.Len(t, got, 3)
	assert.Nil(t, got[0].Demand)
	assert.Nil(t, got[0].Rate)
	assert.Nil(t, got[1].Demand)
	require.NotNil(t, got[2].Demand)
	assert.InDelta(t, 372_000*1.05, *got[2].Demand, 1e-6)
}

func TestTripRateModel_RateFromRegionPopulation(t *testing.T) {
	m := NewTripRateModel(map[string]float64{"EAST": 1_000})

	got := m.Estimate([]AdministrativeRow{
		district("Luton", "EAST", 300),
		district("Norwich", "EAST", 700),
	})

	require.NotNil(t, got[0].Rate)
	assert.InDelta(t, 1.0, *got[0].Rate, 1e-9)
	assert.InDelta(t, 300.0, *got[0].Demand, 1e-9)
	assert.InDelta(t, 700.0, *got[1].Demand, 1e-9)
}

func TestTripRateModel_MissingRegionAndZeroPopulation(t *testing.T) {
	m := NewTripRateModel(map[string]float64{"WALES": 500, "EAST": 100})

	got := m.Estimate([]AdministrativeRow{
		district("Belfast", "NORTHERN IRELAND", 345_000),
		district("Empty", "WALES", 0),
		district("Nowhere", "", 12),
	})

	for _, rec := range got {
		assert.Nil(t, rec.Demand, rec.Name)
		assert.Nil(t, rec.Rate, rec.Name)
	}
}

func TestDemandModels_MonotonicInPopulation(t *testing.T) {
	rows := []AdministrativeRow{
		district("A", "NORTH WEST", 10_000),
		district("B", "NORTH WEST", 50_000),
		district("C", "NORTH WEST", 50_001),
		district("D", "NORTH WEST", 400_000),
	}

	models := []DemandModel{
		NewMultiplierModel(DefaultRegionMultipliers()),
		NewTripRateModel(DefaultAnnualTrips()),
	}
	for _, m := range models {
		t.Run(m.Name(), func(t *testing.T) {
			got := m.Estimate(rows)
			for i := 1; i < len(got); i++ {
				require.NotNil(t, got[i].Demand)
				assert.GreaterOrEqual(t, *got[i].Demand, *got[i-1].Demand)
			}
		})
	}
}

func TestNewDemandModel(t *testing.T) {
	m, err := NewDemandModel("multiplier", nil)
	require.NoError(t, err)
	assert.Equal(t, DemandModelMultiplier, m.Name())

	m, err = NewDemandModel("trip_rate", nil)
	require.NoError(t, err)
	assert.Equal(t, DemandModelTripRate, m.Name())

	m, err = NewDemandModel("", map[string]float64{"LONDON": 3})
	require.NoError(t, err)
	got := m.Estimate([]AdministrativeRow{district("Camden", "LONDON", 2)})
	assert.InDelta(t, 6.0, *got[0].Demand, 1e-9)

	_, err = NewDemandModel("gravity", nil)
	assert.Error(t, err)
}
