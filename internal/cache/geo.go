package cache

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

// GeoCacheName labels geocoding cache metrics and logs.
const GeoCacheName = "geo"

// GeoCache maps district names to coordinates, geocoding on a miss.
type GeoCache struct {
	entries  *table[domain.Coordinates]
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewGeoCache creates a geocoding cache. A nil geocoder makes every miss a
// permanent miss, which is how the pipeline runs with the APIs disabled.
func NewGeoCache(store Store[domain.Coordinates], geocoder domain.Geocoder, logger *slog.Logger, metrics *observability.Metrics) *GeoCache {
	return &GeoCache{
		entries:  newTable(GeoCacheName, store, logger, metrics),
		geocoder: geocoder,
		logger:   logger,
	}
}

// Load replaces the in-memory map with the store's contents. It never fails;
// an unreadable store yields an empty cache.
func (c *GeoCache) Load(ctx context.Context) {
	c.entries.load(ctx)
}

// Lookup returns a cached position without contacting the geocoder.
func (c *GeoCache) Lookup(name string) (domain.Coordinates, bool) {
	return c.entries.get(name)
}

// LookupOrFetch returns the cached position for name, geocoding "<name>, UK"
// on a miss. Failed and empty lookups return false and are not cached, so
// they are retried on the next run.
func (c *GeoCache) LookupOrFetch(ctx context.Context, name string) (domain.Coordinates, bool) {
	if coords, ok := c.entries.get(name); ok {
		c.entries.lookup(true)
		return coords, true
	}
	c.entries.lookup(false)

	if c.geocoder == nil {
		return domain.Coordinates{}, false
	}

	result, err := c.geocoder.ForwardGeocode(ctx, name+", UK")
	if err != nil {
		c.logger.Warn("geocoding failed", "town", name, "error", err)
		return domain.Coordinates{}, false
	}
	if !result.Found {
		c.logger.Info("no geocoding result", "town", name)
		return domain.Coordinates{}, false
	}

	coords := result.Coordinates()
	c.entries.put(name, coords)
	return coords, true
}

// Len returns the number of cached positions.
func (c *GeoCache) Len() int {
	return c.entries.size()
}

// Flush persists the cache. It is a no-op when the cache is empty.
func (c *GeoCache) Flush(ctx context.Context) error {
	return c.entries.flush(ctx)
}
