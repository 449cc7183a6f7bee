package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/air-demand-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
)

var serveRefresh time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Enrich the sheet and serve the district API",
	Long: `Starts the HTTP server, runs an enrichment pass and then serves the
enriched table under /api alongside /healthz, /readyz and /metrics. /readyz
reports ready once the first pass has completed. With --refresh the pass is
repeated on that interval, reusing the warm caches.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := newPipelineEnv(ctx, cfg, logger, observability.NewMetrics(), envOptions{})
		if err != nil {
			return fmt.Errorf("serve: init pipeline: %w", err)
		}
		defer func() {
			if err := env.Close(); err != nil {
				logger.Error("close pipeline resources", "error", err)
			}
		}()

		srv := httpadapter.NewServer(cfg.HTTPAddr, env.Pipeline, logger)

		// Start HTTP server.
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()

		// Run the enrichment pipeline.
		refreshDone := make(chan struct{})
		go func() {
			defer close(refreshDone)
			refreshLoop(ctx, logger, func(ctx context.Context) error {
				_, err := env.Pipeline.Run(ctx)
				return err
			}, serveRefresh)
		}()

		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		// Caches are flushed and closed by env.Close, so the in-flight pass
		// has to finish first.
		if !waitFor(shutdownCtx, refreshDone) {
			logger.Error("enrichment pass did not stop before shutdown timeout", "timeout", cfg.ShutdownTimeout)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// refreshLoop runs once, then every interval until ctx is done. A zero
// interval runs once.
func refreshLoop(ctx context.Context, logger *slog.Logger, run func(context.Context) error, interval time.Duration) {
	for {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("pipeline error", "error", err)
		}
		if interval <= 0 || !retry.SleepWithContext(ctx, interval) {
			return
		}
	}
}

// waitFor blocks until done is closed or ctx ends, reporting whether done
// closed first.
func waitFor(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func init() {
	serveCmd.Flags().DurationVar(&serveRefresh, "refresh", 0, "re-run enrichment on this interval (0 runs once)")
	rootCmd.AddCommand(serveCmd)
}
