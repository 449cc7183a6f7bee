// Package sqlite stores the enrichment caches in a SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// DB is an open cache database.
type DB struct {
	db *sql.DB
}

// Open opens the SQLite database at dsn, configures WAL mode and creates the
// cache tables when missing.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}
	d := &DB{db: db}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS geo_cache (
	town       TEXT PRIMARY KEY,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS travel_time_cache (
	town            TEXT PRIMARY KEY,
	driving_minutes INTEGER,
	transit_minutes INTEGER,
	updated_at      DATETIME NOT NULL
);
`

func (d *DB) migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// CheckReadiness pings the database.
func (d *DB) CheckReadiness(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// GeoStore returns the coordinates cache table as a cache.Store.
func (d *DB) GeoStore() *GeoStore {
	return &GeoStore{db: d.db}
}

// TravelStore returns the travel-time cache table as a cache.Store.
func (d *DB) TravelStore() *TravelStore {
	return &TravelStore{db: d.db}
}

// GeoStore persists coordinates in the geo_cache table.
type GeoStore struct {
	db *sql.DB
}

// Load reads every row of geo_cache.
func (s *GeoStore) Load(ctx context.Context) (map[string]domain.Coordinates, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT town, latitude, longitude FROM geo_cache`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query geo_cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Coordinates)
	for rows.Next() {
		var town string
		var c domain.Coordinates
		if err := rows.Scan(&town, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("sqlite: scan geo_cache: %w", err)
		}
		out[town] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate geo_cache: %w", err)
	}
	return out, nil
}

// Save upserts entries into geo_cache in a single transaction.
func (s *GeoStore) Save(ctx context.Context, entries map[string]domain.Coordinates) error {
	now := time.Now().UTC()
	return withTx(ctx, s.db, `
		INSERT INTO geo_cache (town, latitude, longitude, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(town) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`,
		func(stmt *sql.Stmt) error {
			for town, c := range entries {
				if _, err := stmt.ExecContext(ctx, town, c.Lat, c.Lon, now); err != nil {
					return fmt.Errorf("sqlite: upsert geo_cache %s: %w", town, err)
				}
			}
			return nil
		})
}

// TravelStore persists travel times in the travel_time_cache table. NULL
// columns are unavailable modes.
type TravelStore struct {
	db *sql.DB
}

// Load reads every row of travel_time_cache.
func (s *TravelStore) Load(ctx context.Context) (map[string]domain.TravelTimes, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT town, driving_minutes, transit_minutes FROM travel_time_cache`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query travel_time_cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.TravelTimes)
	for rows.Next() {
		var town string
		var driving, transit sql.NullInt64
		if err := rows.Scan(&town, &driving, &transit); err != nil {
			return nil, fmt.Errorf("sqlite: scan travel_time_cache: %w", err)
		}
		out[town] = domain.TravelTimes{
			DrivingMinutes: fromNull(driving),
			TransitMinutes: fromNull(transit),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate travel_time_cache: %w", err)
	}
	return out, nil
}

// Save upserts entries into travel_time_cache in a single transaction.
func (s *TravelStore) Save(ctx context.Context, entries map[string]domain.TravelTimes) error {
	now := time.Now().UTC()
	return withTx(ctx, s.db, `
		INSERT INTO travel_time_cache (town, driving_minutes, transit_minutes, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(town) DO UPDATE SET
			driving_minutes = excluded.driving_minutes,
			transit_minutes = excluded.transit_minutes,
			updated_at = excluded.updated_at`,
		func(stmt *sql.Stmt) error {
			for town, t := range entries {
				if _, err := stmt.ExecContext(ctx, town, toNull(t.DrivingMinutes), toNull(t.TransitMinutes), now); err != nil {
					return fmt.Errorf("sqlite: upsert travel_time_cache %s: %w", town, err)
				}
			}
			return nil
		})
}

func withTx(ctx context.Context, db *sql.DB, query string, fn func(*sql.Stmt) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func fromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func toNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
