package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

// TravelCacheName labels travel-time cache metrics and logs.
const TravelCacheName = "travel"

// DefaultDestination is the airport every journey is routed to.
const DefaultDestination = "Heathrow Airport, London, UK"

// DefaultDepartureOffset is how far after "now" journeys are scheduled to
// depart, which keeps transit queries inside the timetable window.
const DefaultDepartureOffset = time.Hour

// PartialPolicy decides whether a cached entry with one mode missing is
// served as-is or refetched.
type PartialPolicy int

const (
	// PartialFinal treats any cached entry as a hit, even with nil fields.
	PartialFinal PartialPolicy = iota
	// PartialRetry treats loaded entries with a nil field as misses. Each
	// name is refetched at most once per load.
	PartialRetry
)

// ParsePartialPolicy maps "final" and "retry" to a PartialPolicy.
func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch s {
	case "", "final":
		return PartialFinal, nil
	case "retry":
		return PartialRetry, nil
	default:
		return PartialFinal, fmt.Errorf("unknown partial policy %q", s)
	}
}

// TravelOption configures a TravelTimeCache.
type TravelOption func(*TravelTimeCache)

// WithDestination overrides the destination every journey is routed to.
func WithDestination(dest string) TravelOption {
	return func(c *TravelTimeCache) { c.destination = dest }
}

// WithDepartureOffset overrides how far in the future journeys depart.
func WithDepartureOffset(d time.Duration) TravelOption {
	return func(c *TravelTimeCache) { c.departureOffset = d }
}

// WithPartialPolicy sets how entries with a missing mode are treated.
func WithPartialPolicy(p PartialPolicy) TravelOption {
	return func(c *TravelTimeCache) { c.policy = p }
}

// WithClock sets the clock used to compute departure times.
func WithClock(clock clockwork.Clock) TravelOption {
	return func(c *TravelTimeCache) { c.clock = clock }
}

// TravelTimeCache maps district names to driving and transit minutes,
// querying the router on a miss.
type TravelTimeCache struct {
	entries *table[domain.TravelTimes]
	router  domain.Router
	logger  *slog.Logger

	destination     string
	departureOffset time.Duration
	policy          PartialPolicy
	clock           clockwork.Clock

	fetchedMu sync.Mutex
	fetched   map[string]struct{}

	warnMu   sync.Mutex
	warned   map[string]struct{}
	warnings []string
}

// NewTravelTimeCache creates a travel-time cache. A nil router makes every
// miss return empty times without caching them.
func NewTravelTimeCache(store Store[domain.TravelTimes], router domain.Router, logger *slog.Logger, metrics *observability.Metrics, opts ...TravelOption) *TravelTimeCache {
	c := &TravelTimeCache{
		entries:         newTable(TravelCacheName, store, logger, metrics),
		router:          router,
		logger:          logger,
		destination:     DefaultDestination,
		departureOffset: DefaultDepartureOffset,
		policy:          PartialFinal,
		clock:           clockwork.NewRealClock(),
		fetched:         make(map[string]struct{}),
		warned:          make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory map with the store's contents. It never fails.
func (c *TravelTimeCache) Load(ctx context.Context) {
	c.entries.load(ctx)

	c.fetchedMu.Lock()
	c.fetched = make(map[string]struct{})
	c.fetchedMu.Unlock()
}

// Lookup returns a cached entry without contacting the router.
func (c *TravelTimeCache) Lookup(name string) (domain.TravelTimes, bool) {
	return c.entries.get(name)
}

// LookupOrFetch returns the travel times from "<name>, UK" to the
// destination. A miss issues one driving and one transit query. Modes the
// router has no route for come back nil and the combined record is still
// cached; a failed call caches nothing and returns empty times.
func (c *TravelTimeCache) LookupOrFetch(ctx context.Context, name string) domain.TravelTimes {
	if times, ok := c.entries.get(name); ok && c.servable(name, times) {
		c.entries.lookup(true)
		return times
	}
	c.entries.lookup(false)

	if c.router == nil {
		return domain.TravelTimes{}
	}

	departure := c.clock.Now().Add(c.departureOffset)
	origin := name + ", UK"

	driving, err := c.fetch(ctx, name, origin, domain.ModeDriving, departure)
	if err != nil {
		return domain.TravelTimes{}
	}
	transit, err := c.fetch(ctx, name, origin, domain.ModeTransit, departure)
	if err != nil {
		return domain.TravelTimes{}
	}

	times := domain.TravelTimes{DrivingMinutes: driving, TransitMinutes: transit}
	c.entries.put(name, times)
	c.fetchedMu.Lock()
	c.fetched[name] = struct{}{}
	c.fetchedMu.Unlock()
	return times
}

// servable reports whether a cached entry can be returned without a fetch.
func (c *TravelTimeCache) servable(name string, times domain.TravelTimes) bool {
	if c.policy == PartialFinal || times.Complete() {
		return true
	}
	c.fetchedMu.Lock()
	defer c.fetchedMu.Unlock()
	_, ok := c.fetched[name]
	return ok
}

func (c *TravelTimeCache) fetch(ctx context.Context, name, origin string, mode domain.TravelMode, departure time.Time) (*int, error) {
	res, err := c.router.TravelTime(ctx, domain.RouteQuery{
		Origin:        origin,
		Destination:   c.destination,
		Mode:          mode,
		DepartureTime: departure,
	})
	if err != nil {
		c.warnOnce(fmt.Sprintf("%s travel time lookup failed for %s: %v", mode, name, err))
		return nil, err
	}
	if !res.OK() {
		c.warnOnce(fmt.Sprintf("no %s route for %s: %s", mode, name, res.Status))
		return nil, nil
	}
	minutes := res.Minutes()
	return &minutes, nil
}

// warnOnce logs msg the first time it is seen during the cache's lifetime.
func (c *TravelTimeCache) warnOnce(msg string) {
	c.warnMu.Lock()
	if _, seen := c.warned[msg]; seen {
		c.warnMu.Unlock()
		return
	}
	c.warned[msg] = struct{}{}
	c.warnings = append(c.warnings, msg)
	c.warnMu.Unlock()

	c.logger.Warn(msg)
}

// Warnings returns the distinct diagnostics logged so far, in first-seen order.
func (c *TravelTimeCache) Warnings() []string {
	c.warnMu.Lock()
	defer c.warnMu.Unlock()
	return append([]string(nil), c.warnings...)
}

// Len returns the number of cached entries.
func (c *TravelTimeCache) Len() int {
	return c.entries.size()
}

// Flush persists the cache. It is a no-op when the cache is empty.
func (c *TravelTimeCache) Flush(ctx context.Context) error {
	return c.entries.flush(ctx)
}
