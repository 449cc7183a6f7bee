package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/air-demand-etl/internal/config"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	flagInput       string
	flagOutput      string
	flagGeoJSON     string
	flagCacheFormat string
	flagConcurrency int
)

var rootCmd = &cobra.Command{
	Use:   "airdemand",
	Short: "Estimate annual air-travel demand for UK local authorities",
	Long: `Reads the ONS mid-year population sheet, stamps each district with its
region and county, estimates annual air-travel demand and joins coordinates
and travel times to the airport from persistent caches backed by the mapping
APIs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlags(cmd, c)
		cfg = c
		logger = sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		c.InputPath = flagInput
	}
	if flags.Changed("output") {
		c.OutputPath = flagOutput
	}
	if flags.Changed("geojson") {
		c.GeoJSONPath = flagGeoJSON
	}
	if flags.Changed("cache-format") {
		c.CacheFormat = flagCacheFormat
	}
	if flags.Changed("concurrency") {
		c.FetchConcurrency = flagConcurrency
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagInput, "input", "i", "", "population sheet (.csv or .xlsx), overrides INPUT_PATH")
	pf.StringVarP(&flagOutput, "output", "o", "", "enriched CSV output path, overrides OUTPUT_PATH")
	pf.StringVar(&flagGeoJSON, "geojson", "", "also write the demand heatmap as GeoJSON to this path")
	pf.StringVar(&flagCacheFormat, "cache-format", "", "cache backend: csv, json, sqlite or redis")
	pf.IntVar(&flagConcurrency, "concurrency", 1, "distinct districts fetched in parallel")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
