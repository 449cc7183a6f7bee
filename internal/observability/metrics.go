package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "air_demand"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// enrichment pipeline.
type Metrics struct {
	RowsRead          prometheus.Counter
	DistrictsEnriched prometheus.Counter
	EnrichmentGaps    *prometheus.CounterVec // labels: field={coordinates,driving,transit,demand}
	PipelineRuns      *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration       prometheus.Histogram

	// Cache metrics.
	CacheLookups *prometheus.CounterVec // labels: cache={geo,travel}, result={hit,miss}
	CacheEntries *prometheus.GaugeVec   // labels: cache={geo,travel}
	CacheFlushes *prometheus.CounterVec // labels: cache={geo,travel}, outcome={written,skipped,error}

	// External API metrics.
	APIRequests *prometheus.CounterVec   // labels: method={geocode,driving,transit}, outcome={success,empty,error}
	APIDuration *prometheus.HistogramVec // labels: method={geocode,driving,transit}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RowsRead,
		m.DistrictsEnriched,
		m.EnrichmentGaps,
		m.PipelineRuns,
		m.RunDuration,
		m.CacheLookups,
		m.CacheEntries,
		m.CacheFlushes,
		m.APIRequests,
		m.APIDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_rows_read_total",
			Help:      "Total rows read from population sheets.",
		}),
		DistrictsEnriched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "districts_enriched_total",
			Help:      "Total district rows passed through enrichment.",
		}),
		EnrichmentGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_gaps_total",
			Help:      "District rows left without a value after enrichment, by field.",
		}, []string{"field"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Enrichment runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Duration of a complete enrichment run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		CacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Entries currently held in memory per cache.",
		}, []string{"cache"}),
		CacheFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_flushes_total",
			Help:      "Cache flushes to persistent storage by outcome.",
		}, []string{"cache", "outcome"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maps_api_requests_total",
			Help:      "Mapping API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "maps_api_duration_seconds",
			Help:      "Mapping API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
	}
}
