// Package cache holds the lookup-or-fetch caches that sit in front of the
// geocoding and routing APIs. Entries never expire; they are loaded from a
// Store at the start of a run and written back at the end.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

// Store persists a cache's entries between runs. Load must return an empty
// map, not an error, when nothing has been saved yet.
type Store[V any] interface {
	Load(ctx context.Context) (map[string]V, error)
	Save(ctx context.Context, entries map[string]V) error
}

// MemoryStore is a Store that keeps entries in process memory.
type MemoryStore[V any] struct {
	mu      sync.Mutex
	entries map[string]V
	saves   int
}

// NewMemoryStore returns a MemoryStore seeded with a copy of entries.
func NewMemoryStore[V any](entries map[string]V) *MemoryStore[V] {
	return &MemoryStore[V]{entries: maps.Clone(entries)}
}

// Load implements Store.
func (s *MemoryStore[V]) Load(context.Context) (map[string]V, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := maps.Clone(s.entries)
	if out == nil {
		out = make(map[string]V)
	}
	return out, nil
}

// Save implements Store.
func (s *MemoryStore[V]) Save(_ context.Context, entries map[string]V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = maps.Clone(entries)
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *MemoryStore[V]) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// table is the mutex-guarded map shared by both caches.
type table[V any] struct {
	name    string
	store   Store[V]
	logger  *slog.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	entries map[string]V
}

func newTable[V any](name string, store Store[V], logger *slog.Logger, metrics *observability.Metrics) *table[V] {
	return &table[V]{
		name:    name,
		store:   store,
		logger:  logger,
		metrics: metrics,
		entries: make(map[string]V),
	}
}

// load replaces the in-memory entries with the store's contents. A failing
// store degrades to an empty cache.
func (t *table[V]) load(ctx context.Context) {
	entries, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("cache load failed, starting empty", "cache", t.name, "error", err)
		entries = nil
	}
	if entries == nil {
		entries = make(map[string]V)
	}

	t.mu.Lock()
	t.entries = entries
	n := len(entries)
	t.mu.Unlock()

	t.metrics.CacheEntries.WithLabelValues(t.name).Set(float64(n))
	t.logger.Info("cache loaded", "cache", t.name, "entries", n)
}

func (t *table[V]) get(key string) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.entries[key]
	return v, ok
}

func (t *table[V]) put(key string, v V) {
	t.mu.Lock()
	t.entries[key] = v
	n := len(t.entries)
	t.mu.Unlock()
	t.metrics.CacheEntries.WithLabelValues(t.name).Set(float64(n))
}

func (t *table[V]) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *table[V]) snapshot() map[string]V {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.entries)
}

func (t *table[V]) lookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	t.metrics.CacheLookups.WithLabelValues(t.name, result).Inc()
}

// flush writes all entries to the store. Nothing is written when the cache
// is empty, so an existing file is never truncated by a run that resolved
// nothing.
func (t *table[V]) flush(ctx context.Context) error {
	entries := t.snapshot()
	if len(entries) == 0 {
		t.metrics.CacheFlushes.WithLabelValues(t.name, "skipped").Inc()
		return nil
	}
	if err := t.store.Save(ctx, entries); err != nil {
		t.metrics.CacheFlushes.WithLabelValues(t.name, "error").Inc()
		return fmt.Errorf("save %s cache: %w", t.name, err)
	}
	t.metrics.CacheFlushes.WithLabelValues(t.name, "written").Inc()
	t.logger.Info("cache flushed", "cache", t.name, "entries", len(entries))
	return nil
}
