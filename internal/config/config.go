package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// Cache storage formats.
const (
	CacheFormatCSV    = "csv"
	CacheFormatJSON   = "json"
	CacheFormatSQLite = "sqlite"
	CacheFormatRedis  = "redis"
)

// Travel-time cache policies for entries with a missing mode.
const (
	PartialPolicyFinal = "final"
	PartialPolicyRetry = "retry"
)

// Geocoding providers.
const (
	GeocoderGoogle = "google"
	GeocoderMapbox = "mapbox"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPath       string
	OutputPath      string
	GeoJSONPath     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapping API configuration.
	MapsEnabled      bool
	GoogleMapsKey    string
	GeocoderProvider string
	MapboxToken      string
	MapsTimeout      time.Duration
	MapsRateLimit    float64
	Destination      string
	DepartureOffset  time.Duration
	FetchConcurrency int

	// Demand model configuration. DemandTable is nil unless DemandTablePath
	// points at a YAML override.
	DemandModel     string
	DemandTablePath string
	DemandTable     map[string]float64

	// Cache storage configuration.
	CacheFormat       string
	GeoCachePath      string
	TravelCachePath   string
	SQLitePath        string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	TravelCachePolicy string

	// Optional Kafka sink for enriched rows; disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapsTimeout, err := parsePositiveDuration("MAPS_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	departureOffset, err := parseDuration("DEPARTURE_OFFSET", "1h")
	if err != nil {
		return nil, err
	}
	rateLimit, err := parsePositiveFloat("MAPS_RATE_LIMIT", "10")
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("FETCH_CONCURRENCY", "1")
	if err != nil {
		return nil, err
	}
	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	googleKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	mapsEnabled := googleKey != ""
	if v := os.Getenv("MAPS_ENABLED"); v != "" {
		mapsEnabled = v == "true"
	}

	cfg := &Config{
		InputPath:       sharedcfg.EnvOrDefault("INPUT_PATH", "2023popestimates.xlsx"),
		OutputPath:      sharedcfg.EnvOrDefault("OUTPUT_PATH", "enriched_districts.csv"),
		GeoJSONPath:     os.Getenv("GEOJSON_PATH"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapsEnabled:      mapsEnabled,
		GoogleMapsKey:    googleKey,
		GeocoderProvider: strings.ToLower(sharedcfg.EnvOrDefault("GEOCODER_PROVIDER", GeocoderGoogle)),
		MapboxToken:      os.Getenv("MAPBOX_TOKEN"),
		MapsTimeout:      mapsTimeout,
		MapsRateLimit:    rateLimit,
		Destination:      sharedcfg.EnvOrDefault("DESTINATION", "Heathrow Airport, London, UK"),
		DepartureOffset:  departureOffset,
		FetchConcurrency: concurrency,

		DemandModel:     strings.ToLower(sharedcfg.EnvOrDefault("DEMAND_MODEL", domain.DemandModelMultiplier)),
		DemandTablePath: os.Getenv("DEMAND_TABLE_PATH"),

		CacheFormat:       strings.ToLower(sharedcfg.EnvOrDefault("CACHE_FORMAT", CacheFormatCSV)),
		GeoCachePath:      sharedcfg.EnvOrDefault("GEO_CACHE_PATH", "coordinates_cache.csv"),
		TravelCachePath:   sharedcfg.EnvOrDefault("TRAVEL_CACHE_PATH", "travel_time_cache.csv"),
		SQLitePath:        sharedcfg.EnvOrDefault("SQLITE_PATH", "air_demand_cache.db"),
		RedisAddr:         sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		TravelCachePolicy: strings.ToLower(sharedcfg.EnvOrDefault("TRAVEL_CACHE_POLICY", PartialPolicyFinal)),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "enriched-districts"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.DemandTablePath != "" {
		table, err := LoadDemandTable(cfg.DemandTablePath, cfg.DemandModel)
		if err != nil {
			return nil, err
		}
		cfg.DemandTable = table
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheFormat {
	case CacheFormatCSV, CacheFormatJSON, CacheFormatSQLite, CacheFormatRedis:
	default:
		return fmt.Errorf("invalid CACHE_FORMAT %q", c.CacheFormat)
	}
	switch c.TravelCachePolicy {
	case PartialPolicyFinal, PartialPolicyRetry:
	default:
		return fmt.Errorf("invalid TRAVEL_CACHE_POLICY %q", c.TravelCachePolicy)
	}
	switch c.DemandModel {
	case domain.DemandModelMultiplier, domain.DemandModelTripRate:
	default:
		return fmt.Errorf("invalid DEMAND_MODEL %q", c.DemandModel)
	}
	switch c.GeocoderProvider {
	case GeocoderGoogle, GeocoderMapbox:
	default:
		return fmt.Errorf("invalid GEOCODER_PROVIDER %q", c.GeocoderProvider)
	}
	if c.MapsEnabled && c.GoogleMapsKey == "" {
		return errors.New("MAPS_ENABLED is true but GOOGLE_MAPS_API_KEY is not set")
	}
	if c.MapsEnabled && c.GeocoderProvider == GeocoderMapbox && c.MapboxToken == "" {
		return errors.New("GEOCODER_PROVIDER is mapbox but MAPBOX_TOKEN is not set")
	}
	if c.DepartureOffset < 0 {
		return errors.New("DEPARTURE_OFFSET must not be negative")
	}
	return nil
}

// demandTableFile is the YAML layout of DEMAND_TABLE_PATH.
type demandTableFile struct {
	Multipliers map[string]float64 `yaml:"multipliers"`
	AnnualTrips map[string]float64 `yaml:"annual_trips"`
}

// LoadDemandTable reads the table section for the named demand model from a
// YAML file.
func LoadDemandTable(path, model string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read demand table: %w", err)
	}

	var file demandTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse demand table %s: %w", path, err)
	}

	table := file.Multipliers
	if model == domain.DemandModelTripRate {
		table = file.AnnualTrips
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("demand table %s has no entries for model %q", path, model)
	}
	return table, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parsePositiveFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parsePositiveInt(key, def string) (int, error) {
	v, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
