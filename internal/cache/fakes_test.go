package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

var errUpstream = errors.New("upstream unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingGeocoder answers from a fixed table and counts calls per query.
type countingGeocoder struct {
	mu      sync.Mutex
	results map[string]domain.GeocodingResult
	err     error
	calls   map[string]int
}

func newCountingGeocoder(results map[string]domain.GeocodingResult) *countingGeocoder {
	return &countingGeocoder{results: results, calls: make(map[string]int)}
}

func (g *countingGeocoder) ForwardGeocode(_ context.Context, query string) (domain.GeocodingResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[query]++
	if g.err != nil {
		return domain.GeocodingResult{}, g.err
	}
	return g.results[query], nil
}

func (g *countingGeocoder) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

// countingRouter answers per origin and mode and records every query.
type countingRouter struct {
	mu      sync.Mutex
	results map[string]map[domain.TravelMode]domain.RouteResult
	errs    map[domain.TravelMode]error
	queries []domain.RouteQuery
}

func newCountingRouter() *countingRouter {
	return &countingRouter{
		results: make(map[string]map[domain.TravelMode]domain.RouteResult),
		errs:    make(map[domain.TravelMode]error),
	}
}

func (r *countingRouter) set(origin string, mode domain.TravelMode, res domain.RouteResult) {
	if r.results[origin] == nil {
		r.results[origin] = make(map[domain.TravelMode]domain.RouteResult)
	}
	r.results[origin][mode] = res
}

func (r *countingRouter) TravelTime(_ context.Context, q domain.RouteQuery) (domain.RouteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if err := r.errs[q.Mode]; err != nil {
		return domain.RouteResult{}, err
	}
	if res, ok := r.results[q.Origin][q.Mode]; ok {
		return res, nil
	}
	return domain.RouteResult{Status: "NOT_FOUND"}, nil
}

func (r *countingRouter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queries)
}

// failingStore fails every operation.
type failingStore[V any] struct{}

func (failingStore[V]) Load(context.Context) (map[string]V, error) { return nil, errUpstream }

func (failingStore[V]) Save(context.Context, map[string]V) error { return errUpstream }
