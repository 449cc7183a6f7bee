package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/air-demand-etl/internal/adapter/filestore"
	"github.com/couchcryptid/air-demand-etl/internal/adapter/google"
	kafkaadapter "github.com/couchcryptid/air-demand-etl/internal/adapter/kafka"
	"github.com/couchcryptid/air-demand-etl/internal/adapter/mapbox"
	redisstore "github.com/couchcryptid/air-demand-etl/internal/adapter/redis"
	"github.com/couchcryptid/air-demand-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/air-demand-etl/internal/cache"
	"github.com/couchcryptid/air-demand-etl/internal/config"
	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
	"github.com/couchcryptid/air-demand-etl/internal/pipeline"
	"github.com/couchcryptid/air-demand-etl/internal/sheet"
)

// pipelineEnv holds the caches, clients and pipeline used by the enrich,
// serve and summary commands.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Geo      *cache.GeoCache
	Travel   *cache.TravelTimeCache
	closers  []func() error
}

// Close releases the cache backend and any sink connections.
func (e *pipelineEnv) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// envOptions selects which parts of the environment are built.
type envOptions struct {
	// offline skips the mapping API clients so only cached and sheet values
	// are used.
	offline bool
	// noLoaders skips every output sink.
	noLoaders bool
}

// newPipelineEnv builds the pipeline described by c. Callers should defer
// env.Close().
func newPipelineEnv(ctx context.Context, c *config.Config, logger *slog.Logger, metrics *observability.Metrics, opts envOptions) (*pipelineEnv, error) {
	model, err := domain.NewDemandModel(c.DemandModel, c.DemandTable)
	if err != nil {
		return nil, err
	}
	policy, err := cache.ParsePartialPolicy(c.TravelCachePolicy)
	if err != nil {
		return nil, err
	}

	stores, err := openStores(ctx, c)
	if err != nil {
		return nil, err
	}
	env := &pipelineEnv{}
	if stores.close != nil {
		env.closers = append(env.closers, stores.close)
	}

	var geocoder domain.Geocoder
	var router domain.Router
	if c.MapsEnabled && !opts.offline {
		geocoder, router = newMapClients(c, logger, metrics)
	} else {
		logger.Info("mapping APIs disabled, using cached and sheet values only")
	}

	env.Geo = cache.NewGeoCache(stores.geo, geocoder, logger, metrics)
	env.Travel = cache.NewTravelTimeCache(stores.travel, router, logger, metrics,
		cache.WithDestination(c.Destination),
		cache.WithDepartureOffset(c.DepartureOffset),
		cache.WithPartialPolicy(policy),
	)

	var loaders []pipeline.BatchLoader
	if !opts.noLoaders {
		loaders = append(loaders, pipeline.NewCSVLoader(c.OutputPath))
		if c.GeoJSONPath != "" {
			loaders = append(loaders, pipeline.NewGeoJSONLoader(c.GeoJSONPath))
		}
		if len(c.KafkaBrokers) > 0 {
			writer := kafkaadapter.NewWriter(c, logger)
			loaders = append(loaders, writer)
			env.closers = append(env.closers, writer.Close)
			logger.Info("kafka sink enabled", "topic", c.KafkaTopic, "brokers", c.KafkaBrokers)
		}
	}

	env.Pipeline = pipeline.New(sheet.FileSource{Path: c.InputPath}, model, env.Geo, env.Travel, logger, metrics,
		pipeline.WithLoaders(loaders...),
		pipeline.WithConcurrency(c.FetchConcurrency),
	)
	return env, nil
}

// newMapClients returns the configured geocoder and the Google router.
// Mapbox only geocodes, so travel times always come from Google.
func newMapClients(c *config.Config, logger *slog.Logger, metrics *observability.Metrics) (domain.Geocoder, domain.Router) {
	gmaps := google.NewClient(c.GoogleMapsKey, c.MapsTimeout, c.MapsRateLimit, logger, metrics)
	if c.GeocoderProvider == config.GeocoderMapbox {
		logger.Info("mapbox geocoding enabled", "timeout", c.MapsTimeout)
		return mapbox.NewClient(c.MapboxToken, c.MapsTimeout, logger, metrics), gmaps
	}
	logger.Info("google geocoding enabled", "timeout", c.MapsTimeout, "rate_limit", c.MapsRateLimit)
	return gmaps, gmaps
}

type cacheStores struct {
	geo    cache.Store[domain.Coordinates]
	travel cache.Store[domain.TravelTimes]
	close  func() error
}

func openStores(ctx context.Context, c *config.Config) (cacheStores, error) {
	switch c.CacheFormat {
	case config.CacheFormatCSV, "":
		return cacheStores{
			geo:    filestore.NewCSVGeoStore(c.GeoCachePath),
			travel: filestore.NewCSVTravelStore(c.TravelCachePath),
		}, nil
	case config.CacheFormatJSON:
		return cacheStores{
			geo:    filestore.NewJSONStore[domain.Coordinates](withExt(c.GeoCachePath, ".json")),
			travel: filestore.NewJSONStore[domain.TravelTimes](withExt(c.TravelCachePath, ".json")),
		}, nil
	case config.CacheFormatSQLite:
		db, err := sqlite.Open(ctx, c.SQLitePath)
		if err != nil {
			return cacheStores{}, err
		}
		return cacheStores{geo: db.GeoStore(), travel: db.TravelStore(), close: db.Close}, nil
	case config.CacheFormatRedis:
		client := redisstore.NewClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
		geo := redisstore.NewStore[domain.Coordinates](client, redisstore.GeoKey)
		if err := geo.CheckReadiness(ctx); err != nil {
			_ = client.Close()
			return cacheStores{}, fmt.Errorf("connect to redis at %s: %w", c.RedisAddr, err)
		}
		return cacheStores{
			geo:    geo,
			travel: redisstore.NewStore[domain.TravelTimes](client, redisstore.TravelKey),
			close:  client.Close,
		}, nil
	default:
		return cacheStores{}, fmt.Errorf("invalid cache format %q", c.CacheFormat)
	}
}

// withExt swaps the extension of path, so the default CSV cache names can
// be reused for the JSON backend.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
