package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

var testNow = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func newTestTravelCache(store Store[domain.TravelTimes], r domain.Router, opts ...TravelOption) *TravelTimeCache {
	opts = append([]TravelOption{WithClock(clockwork.NewFakeClockAt(testNow))}, opts...)
	return NewTravelTimeCache(store, r, discardLogger(), observability.NewMetricsForTesting(), opts...)
}

func routeOK(seconds int) domain.RouteResult {
	return domain.RouteResult{Status: domain.RouteStatusOK, DurationSeconds: seconds}
}

func intPtr(v int) *int { return &v }

func TestTravelTimeCache_FetchesBothModes(t *testing.T) {
	r := newCountingRouter()
	r.set("Slough, UK", domain.ModeDriving, routeOK(1530))
	r.set("Slough, UK", domain.ModeTransit, routeOK(2999))
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r)

	times := c.LookupOrFetch(context.Background(), "Slough")

	require.NotNil(t, times.DrivingMinutes)
	require.NotNil(t, times.TransitMinutes)
	assert.Equal(t, 25, *times.DrivingMinutes)
	assert.Equal(t, 49, *times.TransitMinutes)

	require.Len(t, r.queries, 2)
	for _, q := range r.queries {
		assert.Equal(t, "Slough, UK", q.Origin)
		assert.Equal(t, DefaultDestination, q.Destination)
		assert.Equal(t, testNow.Add(time.Hour), q.DepartureTime)
	}
	assert.Equal(t, domain.ModeDriving, r.queries[0].Mode)
	assert.Equal(t, domain.ModeTransit, r.queries[1].Mode)
}

func TestTravelTimeCache_SecondLookupIsCached(t *testing.T) {
	r := newCountingRouter()
	r.set("Slough, UK", domain.ModeDriving, routeOK(1500))
	r.set("Slough, UK", domain.ModeTransit, routeOK(3000))
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r)
	ctx := context.Background()

	first := c.LookupOrFetch(ctx, "Slough")
	second := c.LookupOrFetch(ctx, "Slough")

	assert.Equal(t, first, second)
	assert.Equal(t, 2, r.count())
}

func TestTravelTimeCache_NonOKStatusIsCachedAsNil(t *testing.T) {
	r := newCountingRouter()
	r.set("Stornoway, UK", domain.ModeDriving, domain.RouteResult{Status: "ZERO_RESULTS"})
	r.set("Stornoway, UK", domain.ModeTransit, domain.RouteResult{Status: "ZERO_RESULTS"})
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r)
	ctx := context.Background()

	times := c.LookupOrFetch(ctx, "Stornoway")
	assert.Nil(t, times.DrivingMinutes)
	assert.Nil(t, times.TransitMinutes)

	cached, found := c.Lookup("Stornoway")
	require.True(t, found)
	assert.Equal(t, domain.TravelTimes{}, cached)

	c.LookupOrFetch(ctx, "Stornoway")
	assert.Equal(t, 2, r.count(), "all-nil entry is final under the default policy")

	assert.Equal(t, []string{
		"no driving route for Stornoway: ZERO_RESULTS",
		"no transit route for Stornoway: ZERO_RESULTS",
	}, c.Warnings())
}

func TestTravelTimeCache_PartialEntryIsFinalByDefault(t *testing.T) {
	store := NewMemoryStore(map[string]domain.TravelTimes{
		"Reading": {DrivingMinutes: intPtr(40)},
	})
	r := newCountingRouter()
	c := newTestTravelCache(store, r)
	c.Load(context.Background())

	times := c.LookupOrFetch(context.Background(), "Reading")

	assert.Equal(t, 40, *times.DrivingMinutes)
	assert.Nil(t, times.TransitMinutes)
	assert.Zero(t, r.count())
}

func TestTravelTimeCache_PartialRetryRefetches(t *testing.T) {
	store := NewMemoryStore(map[string]domain.TravelTimes{
		"Reading": {DrivingMinutes: intPtr(40)},
		"Crawley": {DrivingMinutes: intPtr(35), TransitMinutes: intPtr(70)},
	})
	r := newCountingRouter()
	r.set("Reading, UK", domain.ModeDriving, routeOK(2400))
	r.set("Reading, UK", domain.ModeTransit, routeOK(3600))
	c := newTestTravelCache(store, r, WithPartialPolicy(PartialRetry))
	ctx := context.Background()
	c.Load(ctx)

	reading := c.LookupOrFetch(ctx, "Reading")
	require.NotNil(t, reading.TransitMinutes)
	assert.Equal(t, 60, *reading.TransitMinutes)
	assert.Equal(t, 2, r.count())

	c.LookupOrFetch(ctx, "Crawley")
	assert.Equal(t, 2, r.count(), "complete entries are never refetched")
}

func TestTravelTimeCache_PartialRetryFetchesOncePerLoad(t *testing.T) {
	r := newCountingRouter()
	r.set("Stornoway, UK", domain.ModeDriving, routeOK(3600))
	r.set("Stornoway, UK", domain.ModeTransit, domain.RouteResult{Status: "ZERO_RESULTS"})
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r, WithPartialPolicy(PartialRetry))
	ctx := context.Background()

	for range 3 {
		times := c.LookupOrFetch(ctx, "Stornoway")
		require.NotNil(t, times.DrivingMinutes)
		assert.Equal(t, 60, *times.DrivingMinutes)
		assert.Nil(t, times.TransitMinutes)
	}
	assert.Equal(t, 2, r.count())
}

func TestTravelTimeCache_PartialRetryRefetchesLoadedEntryOnce(t *testing.T) {
	store := NewMemoryStore(map[string]domain.TravelTimes{
		"Stornoway": {DrivingMinutes: intPtr(60)},
	})
	r := newCountingRouter()
	r.set("Stornoway, UK", domain.ModeDriving, routeOK(3600))
	r.set("Stornoway, UK", domain.ModeTransit, domain.RouteResult{Status: "ZERO_RESULTS"})
	c := newTestTravelCache(store, r, WithPartialPolicy(PartialRetry))
	ctx := context.Background()
	c.Load(ctx)

	c.LookupOrFetch(ctx, "Stornoway")
	c.LookupOrFetch(ctx, "Stornoway")
	assert.Equal(t, 2, r.count())

	c.Load(ctx)
	c.LookupOrFetch(ctx, "Stornoway")
	assert.Equal(t, 4, r.count(), "a reload makes incomplete entries eligible again")
}

func TestTravelTimeCache_CallErrorIsNotCached(t *testing.T) {
	r := newCountingRouter()
	r.set("Slough, UK", domain.ModeDriving, routeOK(1500))
	r.set("Slough, UK", domain.ModeTransit, routeOK(3000))
	r.errs[domain.ModeTransit] = errUpstream
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r)
	ctx := context.Background()

	times := c.LookupOrFetch(ctx, "Slough")
	assert.Equal(t, domain.TravelTimes{}, times)
	_, found := c.Lookup("Slough")
	assert.False(t, found)

	c.LookupOrFetch(ctx, "Slough")
	assert.Equal(t, 4, r.count())
	assert.Len(t, c.Warnings(), 1, "repeated failures are reported once")
}

func TestTravelTimeCache_DriveErrorSkipsTransit(t *testing.T) {
	r := newCountingRouter()
	r.errs[domain.ModeDriving] = errUpstream
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r)

	c.LookupOrFetch(context.Background(), "Slough")
	assert.Equal(t, 1, r.count())
}

func TestTravelTimeCache_Options(t *testing.T) {
	r := newCountingRouter()
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), r,
		WithDestination("Gatwick Airport, UK"),
		WithDepartureOffset(30*time.Minute),
	)

	c.LookupOrFetch(context.Background(), "Crawley")

	require.NotEmpty(t, r.queries)
	assert.Equal(t, "Gatwick Airport, UK", r.queries[0].Destination)
	assert.Equal(t, testNow.Add(30*time.Minute), r.queries[0].DepartureTime)
}

func TestTravelTimeCache_NilRouter(t *testing.T) {
	c := newTestTravelCache(NewMemoryStore[domain.TravelTimes](nil), nil)

	assert.Equal(t, domain.TravelTimes{}, c.LookupOrFetch(context.Background(), "Slough"))
	assert.Zero(t, c.Len())
}

func TestTravelTimeCache_FlushRoundTrip(t *testing.T) {
	store := NewMemoryStore[domain.TravelTimes](nil)
	r := newCountingRouter()
	r.set("Slough, UK", domain.ModeDriving, routeOK(1500))
	c := newTestTravelCache(store, r)
	ctx := context.Background()

	require.NoError(t, c.Flush(ctx))
	assert.Zero(t, store.Saves())

	c.LookupOrFetch(ctx, "Slough")
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, store.Saves())

	warm := newTestTravelCache(store, nil)
	warm.Load(ctx)
	times, found := warm.Lookup("Slough")
	require.True(t, found)
	assert.Equal(t, 25, *times.DrivingMinutes)
	assert.Nil(t, times.TransitMinutes)
}

func TestParsePartialPolicy(t *testing.T) {
	p, err := ParsePartialPolicy("retry")
	require.NoError(t, err)
	assert.Equal(t, PartialRetry, p)

	p, err = ParsePartialPolicy("")
	require.NoError(t, err)
	assert.Equal(t, PartialFinal, p)

	_, err = ParsePartialPolicy("never")
	require.Error(t, err)
}
