package httpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/report"
)

const (
	topN          = 10
	histogramBins = 20
)

// Dataset is the enriched table the API serves. It is ready once an
// enrichment run has completed.
type Dataset interface {
	sharedobs.ReadinessChecker
	Rows() []domain.EnrichedRow
}

// Server exposes health, readiness, metrics and the district query API.
type Server struct {
	httpServer *http.Server
	data       Dataset
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api routes.
func NewServer(addr string, data Dataset, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		data:   data,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(data))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/districts", s.withFilter(s.handleDistricts))
	mux.HandleFunc("GET /api/summary", s.withFilter(s.handleSummary))
	mux.HandleFunc("GET /api/heatmap.geojson", s.withFilter(s.handleHeatmap))
	mux.HandleFunc("GET /api/options", s.handleOptions)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type filteredHandler func(w http.ResponseWriter, r *http.Request, rows []domain.EnrichedRow)

// withFilter parses the filter query parameters and hands the matching rows
// to next.
func (s *Server) withFilter(next filteredHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		next(w, r, f.Apply(s.data.Rows()))
	}
}

func (s *Server) handleDistricts(w http.ResponseWriter, _ *http.Request, rows []domain.EnrichedRow) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(rows),
		"districts": rows,
	})
}

type summaryResponse struct {
	Summary          report.Summary         `json:"summary"`
	MedianDemand     *float64               `json:"median_demand"`
	ByRegion         []report.RegionDemand  `json:"by_region"`
	Top              []domain.EnrichedRow   `json:"top"`
	HighDemandNearby []domain.EnrichedRow   `json:"high_demand_nearby"`
	TransitGap       []report.TransitGapRow `json:"transit_gap"`
	DrivingHistogram []report.Bin           `json:"driving_histogram"`
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request, rows []domain.EnrichedRow) {
	resp := summaryResponse{
		Summary:          report.Summarize(rows),
		ByRegion:         report.DemandByRegion(rows),
		Top:              report.TopByDemand(rows, topN),
		HighDemandNearby: report.HighDemandNearby(rows),
		TransitGap:       report.TransitGap(rows, topN),
		DrivingHistogram: report.DrivingHistogram(rows, histogramBins),
	}
	if median, ok := report.MedianDemand(rows); ok {
		resp.MedianDemand = &median
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, _ *http.Request, rows []domain.EnrichedRow) {
	data, err := report.HeatmapGeoJSON(rows)
	if err != nil {
		s.logger.Error("heatmap encoding failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "heatmap encoding failed"})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client may have gone away
}

// handleOptions lists the values the dashboard selectors offer. District
// options narrow to the counties passed as county parameters.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	rows := s.data.Rows()
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{
		"regions":   nonNil(domain.RegionOptions(rows)),
		"counties":  nonNil(domain.CountyOptions(rows)),
		"districts": nonNil(domain.DistrictOptions(rows, r.URL.Query()["county"])),
	})
}

func parseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{
		Regions:   q["region"],
		Counties:  q["county"],
		Districts: q["district"],
	}
	var err error
	if f.Within2Hours, err = parseFlag(q.Get("within_2h")); err != nil {
		return domain.Filter{}, fmt.Errorf("within_2h: %w", err)
	}
	if f.ExcludeLondon, err = parseFlag(q.Get("exclude_london")); err != nil {
		return domain.Filter{}, fmt.Errorf("exclude_london: %w", err)
	}
	return f, nil
}

func parseFlag(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
