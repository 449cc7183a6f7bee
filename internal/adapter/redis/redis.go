// Package redis stores the enrichment caches as Redis hashes, one field per
// town with a JSON value, so several runners can share a warm cache.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Hash keys used for the two caches.
const (
	GeoKey    = "airdemand:geo"
	TravelKey = "airdemand:travel"
)

// NewClient opens a Redis client.
func NewClient(addr, password string, db int) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
}

// Store is a cache.Store backed by a single Redis hash.
type Store[V any] struct {
	client *goredis.Client
	key    string
}

// NewStore returns a Store over the hash at key.
func NewStore[V any](client *goredis.Client, key string) *Store[V] {
	return &Store[V]{client: client, key: key}
}

// Load reads every field of the hash. A missing key yields an empty map.
func (s *Store[V]) Load(ctx context.Context) (map[string]V, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hgetall %s: %w", s.key, err)
	}

	out := make(map[string]V, len(fields))
	for town, raw := range fields {
		var v V
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("redis: decode %s[%s]: %w", s.key, town, err)
		}
		out[town] = v
	}
	return out, nil
}

// Save writes entries into the hash with one HSET.
func (s *Store[V]) Save(ctx context.Context, entries map[string]V) error {
	if len(entries) == 0 {
		return nil
	}
	values := make(map[string]any, len(entries))
	for town, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: encode %s[%s]: %w", s.key, town, err)
		}
		values[town] = data
	}
	if err := s.client.HSet(ctx, s.key, values).Err(); err != nil {
		return fmt.Errorf("redis: hset %s: %w", s.key, err)
	}
	return nil
}

// CheckReadiness pings the server.
func (s *Store[V]) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
