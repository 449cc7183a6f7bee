package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
	"github.com/couchcryptid/air-demand-etl/internal/sheet"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the population sheet before an enrichment run",
	Long: `Parses the input sheet and reports, phase by phase, anything that would
make the enriched table incomplete: rows the hierarchy cannot place,
districts whose region has no rate in the demand model, implausible
populations and duplicate district names. Exits non-zero when a phase fails.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		model, err := domain.NewDemandModel(cfg.DemandModel, cfg.DemandTable)
		if err != nil {
			return err
		}
		if code := runValidate(cmd.Context(), cmd.OutOrStdout(), cfg.InputPath, model); code != 0 {
			return errValidationFailed
		}
		return nil
	},
}

var errValidationFailed = errors.New("validation failed")

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runValidate(ctx context.Context, out io.Writer, path string, model domain.DemandModel) int {
	fmt.Fprintf(out, "=== Population Sheet Validation: %s ===\n\n", path)

	records, err := sheet.ReadFile(ctx, path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read sheet: %v\n", err)
		return 1
	}
	rows := make([]domain.AdministrativeRow, len(records))
	for i, r := range records {
		rows[i] = r.Row
	}
	resolved := domain.ResolveHierarchy(rows)
	districts := domain.FilterDistricts(resolved)

	phases := []*phase{
		validateHierarchy(resolved),
		validateRates(districts, model),
		validatePopulation(districts),
		validateNames(districts),
		enrichmentCoverage(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mWARN (%d)\033[0m", len(p.warnings))
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nRows: %d sheet, %d districts\n", len(records), len(districts))

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Fprintf(out, "  (warn) %s\n", w)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// validateHierarchy fails when the sheet has no Region rows at all and warns
// about districts that appear before the first one.
func validateHierarchy(rows []domain.AdministrativeRow) *phase {
	p := &phase{name: "Phase 1: Region/county hierarchy"}
	regions := 0
	for _, r := range rows {
		switch {
		case r.Geography == domain.GeographyRegion:
			regions++
		case r.Geography.IsDistrict() && r.Region == nil:
			p.warnf("%s %q appears before any Region row", r.Geography, r.Name)
		}
	}
	if regions == 0 {
		p.errorf("sheet has no Region rows")
	}
	return p
}

func validateRates(districts []domain.AdministrativeRow, model domain.DemandModel) *phase {
	p := &phase{name: fmt.Sprintf("Phase 2: Demand rates (%s model)", model.Name())}
	missing := make(map[string]int)
	var order []string
	for _, rec := range model.Estimate(districts) {
		if rec.Rate != nil || rec.Region == nil {
			continue
		}
		if missing[*rec.Region] == 0 {
			order = append(order, *rec.Region)
		}
		missing[*rec.Region]++
	}
	for _, region := range order {
		p.errorf("region %q has no rate (%d districts without demand)", region, missing[region])
	}
	return p
}

func validatePopulation(districts []domain.AdministrativeRow) *phase {
	p := &phase{name: "Phase 3: District populations"}
	for _, d := range districts {
		if d.Population <= 0 {
			p.errorf("%s has population %d", d.Name, d.Population)
		}
	}
	return p
}

// validateNames warns about repeated district names, which share one cache
// entry and so one set of coordinates and travel times.
func validateNames(districts []domain.AdministrativeRow) *phase {
	p := &phase{name: "Phase 4: District names"}
	seen := make(map[string]int, len(districts))
	for _, d := range districts {
		if d.Name == "" {
			p.errorf("%s row with an empty name", d.Geography)
			continue
		}
		seen[d.Name]++
		if seen[d.Name] == 2 {
			p.warnf("%q appears more than once and will share cached enrichment", d.Name)
		}
	}
	return p
}

// enrichmentCoverage reports how much enrichment the sheet already carries.
// It never fails.
func enrichmentCoverage(records []sheet.Record) *phase {
	p := &phase{name: "Phase 5: Pre-filled enrichment"}
	var districts, coords, times int
	for _, r := range records {
		if !r.Row.Geography.IsDistrict() {
			continue
		}
		districts++
		if !r.Known.MissingCoordinates() {
			coords++
		}
		if !r.Known.MissingTravelTimes() {
			times++
		}
	}
	if districts > 0 && coords < districts {
		p.warnf("%d of %d districts need geocoding", districts-coords, districts)
	}
	if districts > 0 && times < districts {
		p.warnf("%d of %d districts need travel times", districts-times, districts)
	}
	return p
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
