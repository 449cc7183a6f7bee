package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/air-demand-etl/internal/cache"
	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
	"github.com/couchcryptid/air-demand-etl/internal/sheet"
)

// BatchLoader writes a run's enriched rows to a destination.
type BatchLoader interface {
	Name() string
	LoadBatch(ctx context.Context, rows []domain.EnrichedRow) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoaders sets the destinations enriched rows are written to.
func WithLoaders(loaders ...BatchLoader) Option {
	return func(p *Pipeline) { p.loaders = loaders }
}

// WithConcurrency sets how many distinct districts are fetched in parallel
// before the join. Values below 2 fetch sequentially during the join.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) { p.concurrency = n }
}

// WithClock sets the clock used for run timing.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// Pipeline reads a population sheet, estimates demand for each district and
// joins coordinates and travel times from the caches.
type Pipeline struct {
	source      sheet.Source
	model       domain.DemandModel
	geo         *cache.GeoCache
	travel      *cache.TravelTimeCache
	loaders     []BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	concurrency int

	ready atomic.Bool
	mu    sync.RWMutex
	rows  []domain.EnrichedRow
}

// New creates a Pipeline with the given stages and observability.
func New(source sheet.Source, model domain.DemandModel, geo *cache.GeoCache, travel *cache.TravelTimeCache,
	logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		model:       model,
		geo:         geo,
		travel:      travel,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no enrichment run has completed yet")
	}
	return nil
}

// Rows returns the enriched rows of the last successful run.
func (p *Pipeline) Rows() []domain.EnrichedRow {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rows
}

// Run performs one enrichment pass. Enrichment failures degrade to nil
// fields; only an unreadable sheet, a failed cache flush or a failed loader
// make Run return an error. Caches are flushed even when ctx is cancelled
// part-way so fetched results are kept.
func (p *Pipeline) Run(ctx context.Context) ([]domain.EnrichedRow, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := p.clock.Now()
	logger.Info("enrichment run started", "model", p.model.Name(), "concurrency", p.concurrency)

	rows, err := p.run(ctx, logger)
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.PipelineRuns.WithLabelValues("error").Inc()
		logger.Error("enrichment run failed", "error", err)
		return rows, err
	}

	p.metrics.PipelineRuns.WithLabelValues("success").Inc()
	p.mu.Lock()
	p.rows = rows
	p.mu.Unlock()
	p.ready.Store(true)
	logger.Info("enrichment run finished", "districts", len(rows), "duration", p.clock.Since(start))
	return rows, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger) ([]domain.EnrichedRow, error) {
	records, err := p.source.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	p.metrics.RowsRead.Add(float64(len(records)))

	districts, known := resolveDistricts(records)
	demand := p.model.Estimate(districts)
	logger.Info("districts resolved", "rows", len(records), "districts", len(districts))

	p.geo.Load(ctx)
	p.travel.Load(ctx)

	// After a prefetch every name has had its one fetch attempt, so the
	// join reads the caches without calling the APIs again.
	prefetched := p.concurrency > 1
	if prefetched {
		p.prefetch(ctx, logger, demand, known)
	}

	rows := make([]domain.EnrichedRow, len(demand))
	for i, rec := range demand {
		rows[i] = domain.EnrichedRow{DemandRecord: rec, Enrichment: p.enrich(ctx, rec.Name, known[i], !prefetched)}
	}
	p.recordGaps(rows)

	// Keep whatever was fetched even if the run was interrupted.
	flushCtx := context.WithoutCancel(ctx)
	var errs []error
	if err := p.geo.Flush(flushCtx); err != nil {
		errs = append(errs, err)
	}
	if err := p.travel.Flush(flushCtx); err != nil {
		errs = append(errs, err)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
		return rows, errors.Join(errs...)
	}

	for _, l := range p.loaders {
		if err := l.LoadBatch(ctx, rows); err != nil {
			errs = append(errs, fmt.Errorf("%s loader: %w", l.Name(), err))
			continue
		}
		logger.Info("rows loaded", "loader", l.Name(), "count", len(rows))
	}

	p.metrics.DistrictsEnriched.Add(float64(len(rows)))
	return rows, errors.Join(errs...)
}

// resolveDistricts folds the hierarchy over the whole sheet and keeps the
// district rows together with the enrichment already present for them.
func resolveDistricts(records []sheet.Record) ([]domain.AdministrativeRow, []domain.Enrichment) {
	all := make([]domain.AdministrativeRow, len(records))
	for i, r := range records {
		all[i] = r.Row
	}
	resolved := domain.ResolveHierarchy(all)

	districts := make([]domain.AdministrativeRow, 0, len(resolved))
	known := make([]domain.Enrichment, 0, len(resolved))
	for i, row := range resolved {
		if !row.Geography.IsDistrict() {
			continue
		}
		districts = append(districts, row)
		known = append(known, records[i].Known)
	}
	return districts, known
}

// enrich fills the fields missing from e. Coordinates are replaced when
// either one is missing; travel times are replaced together when either mode
// is missing and the lookup resolved at least one.
// With fetch false only cached values are used.
func (p *Pipeline) enrich(ctx context.Context, name string, e domain.Enrichment, fetch bool) domain.Enrichment {
	if e.MissingCoordinates() {
		var coords domain.Coordinates
		var ok bool
		if fetch {
			coords, ok = p.geo.LookupOrFetch(ctx, name)
		} else {
			coords, ok = p.geo.Lookup(name)
		}
		e.SetCoordinates(coords, ok)
	}
	if e.MissingTravelTimes() {
		var times domain.TravelTimes
		if fetch {
			times = p.travel.LookupOrFetch(ctx, name)
		} else {
			times, _ = p.travel.Lookup(name)
		}
		// A lookup that resolved neither mode leaves the sheet's values alone.
		if times.DrivingMinutes != nil || times.TransitMinutes != nil {
			e.TravelTimes = times
		}
	}
	return e
}

// prefetch warms both caches for the distinct district names the join will
// ask for, with at most p.concurrency lookups in flight.
func (p *Pipeline) prefetch(ctx context.Context, logger *slog.Logger, demand []domain.DemandRecord, known []domain.Enrichment) {
	needGeo := make(map[string]struct{})
	needTravel := make(map[string]struct{})
	for i, rec := range demand {
		if known[i].MissingCoordinates() {
			if _, cached := p.geo.Lookup(rec.Name); !cached {
				needGeo[rec.Name] = struct{}{}
			}
		}
		if known[i].MissingTravelTimes() {
			needTravel[rec.Name] = struct{}{}
		}
	}
	if len(needGeo) == 0 && len(needTravel) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for name := range needGeo {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.geo.LookupOrFetch(gctx, name)
			return nil
		})
	}
	for name := range needTravel {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p.travel.LookupOrFetch(gctx, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("prefetch interrupted", "error", err)
	}
	logger.Info("prefetch finished", "geocoded", len(needGeo), "routed", len(needTravel))
}

func (p *Pipeline) recordGaps(rows []domain.EnrichedRow) {
	for _, r := range rows {
		if r.MissingCoordinates() {
			p.metrics.EnrichmentGaps.WithLabelValues("coordinates").Inc()
		}
		if r.DrivingMinutes == nil {
			p.metrics.EnrichmentGaps.WithLabelValues("driving").Inc()
		}
		if r.TransitMinutes == nil {
			p.metrics.EnrichmentGaps.WithLabelValues("transit").Inc()
		}
		if r.Demand == nil {
			p.metrics.EnrichmentGaps.WithLabelValues("demand").Inc()
		}
	}
}
