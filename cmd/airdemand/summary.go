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

var (
	summaryFilter domain.Filter
	summaryTop    int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print demand figures for a selection of districts",
	Long: `Builds the enriched table from the sheet and the caches without calling
the mapping APIs, applies the selection flags and prints the dashboard
figures: totals, demand by region, top districts, high-demand districts
within two hours of the airport and the largest transit gaps.

Examples:
  airdemand summary --region "SOUTH EAST" --within-2h
  airdemand summary --county Surrey --county Kent --top 5`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := newPipelineEnv(ctx, cfg, logger, observability.NewMetrics(), envOptions{offline: true, noLoaders: true})
		if err != nil {
			return fmt.Errorf("summary: init pipeline: %w", err)
		}
		defer func() {
			if err := env.Close(); err != nil {
				logger.Error("close pipeline resources", "error", err)
			}
		}()

		rows, err := env.Pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		printSummary(cmd.OutOrStdout(), summaryFilter.Apply(rows), summaryTop)
		return nil
	},
}

func printSummary(out io.Writer, rows []domain.EnrichedRow, top int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush() //nolint:errcheck // terminal output

	s := report.Summarize(rows)
	fmt.Fprintf(w, "Districts\t%d\n", s.Districts)
	fmt.Fprintf(w, "Total population\t%d\n", s.TotalPopulation)
	fmt.Fprintf(w, "Total demand\t%.0f\n", s.TotalDemand)
	if median, ok := report.MedianDemand(rows); ok {
		fmt.Fprintf(w, "Median demand\t%.0f\n", median)
	}

	fmt.Fprintln(w, "\nREGION\tDEMAND\tSHARE")
	for _, rd := range report.DemandByRegion(rows) {
		fmt.Fprintf(w, "%s\t%.0f\t%.1f%%\n", rd.Region, rd.Demand, rd.Share*100)
	}

	fmt.Fprintln(w, "\nTOP DISTRICTS\tDEMAND\tDRIVING")
	for _, r := range report.TopByDemand(rows, top) {
		fmt.Fprintf(w, "%s\t%.0f\t%s\n", r.Name, *r.Demand, minutes(r.DrivingMinutes))
	}

	fmt.Fprintln(w, "\nHIGH DEMAND WITHIN 2H\tDEMAND\tDRIVING")
	for _, r := range report.HighDemandNearby(rows) {
		fmt.Fprintf(w, "%s\t%.0f\t%s\n", r.Name, *r.Demand, minutes(r.DrivingMinutes))
	}

	fmt.Fprintln(w, "\nTRANSIT GAP\tDRIVING\tTRANSIT\tGAP")
	for _, g := range report.TransitGap(rows, top) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", g.Name, minutes(g.DrivingMinutes), minutes(g.TransitMinutes), g.GapMinutes)
	}
}

func minutes(m *int) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%d min", *m)
}

func init() {
	f := summaryCmd.Flags()
	f.StringArrayVar(&summaryFilter.Regions, "region", nil, "keep districts in these regions (repeatable)")
	f.StringArrayVar(&summaryFilter.Counties, "county", nil, "keep districts in these counties (repeatable)")
	f.StringArrayVar(&summaryFilter.Districts, "district", nil, "keep only these districts (repeatable)")
	f.BoolVar(&summaryFilter.Within2Hours, "within-2h", false, "keep districts within a 2 hour drive")
	f.BoolVar(&summaryFilter.ExcludeLondon, "exclude-london", false, "drop London boroughs")
	f.IntVar(&summaryTop, "top", 10, "rows in the top-demand and transit-gap tables")
	rootCmd.AddCommand(summaryCmd)
}
