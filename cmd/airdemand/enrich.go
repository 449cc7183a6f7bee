package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/observability"
	"github.com/couchcryptid/air-demand-etl/internal/report"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run one enrichment pass and write the enriched table",
	Long: `Runs the full pipeline once: hierarchy resolution, demand estimation,
coordinate and travel-time enrichment through the caches, then writes the
enriched CSV (plus GeoJSON and Kafka when configured).

Examples:
  airdemand enrich --input 2023popestimates.xlsx
  airdemand enrich --cache-format sqlite --concurrency 4 --geojson heatmap.geojson`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := newPipelineEnv(ctx, cfg, logger, observability.NewMetrics(), envOptions{})
		if err != nil {
			return fmt.Errorf("enrich: init pipeline: %w", err)
		}
		defer func() {
			if err := env.Close(); err != nil {
				logger.Error("close pipeline resources", "error", err)
			}
		}()

		rows, err := env.Pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("enrich: %w", err)
		}
		printEnrichResult(cmd.OutOrStdout(), rows, env.Travel.Warnings())
		return nil
	},
}

func printEnrichResult(out io.Writer, rows []domain.EnrichedRow, warnings []string) {
	s := report.Summarize(rows)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Districts\t%d\n", s.Districts)
	fmt.Fprintf(w, "With demand\t%d\n", s.WithDemand)
	fmt.Fprintf(w, "With coordinates\t%d\n", s.WithCoordinates)
	fmt.Fprintf(w, "With driving time\t%d\n", s.WithDriving)
	fmt.Fprintf(w, "With transit time\t%d\n", s.WithTransit)
	fmt.Fprintf(w, "Total demand\t%.0f\n", s.TotalDemand)
	w.Flush() //nolint:errcheck // terminal output
	if len(warnings) > 0 {
		fmt.Fprintf(out, "\n%d routing warnings (see log)\n", len(warnings))
	}
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
