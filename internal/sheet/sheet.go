// Package sheet reads ONS mid-year population estimate sheets.
//
// The first row is the header. The Geography, Name and Mid-2023 columns are
// required; Latitude, Longitude, Driving Time (mins) and Transit Time (mins)
// are optional and carry enrichment forward from a previously written sheet.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/air-demand-etl/internal/domain"
)

// Column headers recognised in the input sheet.
const (
	ColGeography  = "Geography"
	ColName       = "Name"
	ColPopulation = "Mid-2023"
	ColLatitude   = "Latitude"
	ColLongitude  = "Longitude"
	ColDriving    = "Driving Time (mins)"
	ColTransit    = "Transit Time (mins)"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported sheet format")

// Record is one parsed sheet row plus any enrichment already present in it.
type Record struct {
	Row   domain.AdministrativeRow
	Known domain.Enrichment
}

// Source yields the rows of a population sheet.
type Source interface {
	Read(ctx context.Context) ([]Record, error)
}

// FileSource reads a sheet from disk, choosing the parser by extension.
type FileSource struct {
	Path string
}

// Read implements Source.
func (s FileSource) Read(ctx context.Context) ([]Record, error) {
	return ReadFile(ctx, s.Path)
}

// ReadFile parses a .csv/.txt (ISO-8859-1) or .xlsx sheet.
func ReadFile(ctx context.Context, path string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSVFile(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

type columns struct {
	geography, name, population int
	latitude, longitude         int
	driving, transit            int
}

func locateColumns(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}

	var missing []string
	required := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			return -1
		}
		return i
	}
	optional := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return -1
	}

	cols := columns{
		geography:  required(ColGeography),
		name:       required(ColName),
		population: required(ColPopulation),
		latitude:   optional(ColLatitude),
		longitude:  optional(ColLongitude),
		driving:    optional(ColDriving),
		transit:    optional(ColTransit),
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

// parseTable converts a header row and data rows into records. Rows with
// neither a geography nor a name are skipped. A blank population is read as
// zero on non-district rows and rejected on district rows.
func parseTable(table [][]string) ([]Record, error) {
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: empty sheet", ErrMissingColumn)
	}
	cols, err := locateColumns(table[0])
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(table)-1)
	for i, cells := range table[1:] {
		line := i + 2
		geography := cell(cells, cols.geography)
		name := cell(cells, cols.name)
		if geography == "" && name == "" {
			continue
		}

		rawPopulation := cell(cells, cols.population)
		var population int64
		var err error
		// Region and county subtotals may be left blank; only districts
		// are counted.
		if rawPopulation != "" || domain.GeographyType(geography).IsDistrict() {
			population, err = parsePopulation(rawPopulation)
		}
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", line, name, err)
		}

		known, err := parseEnrichment(cells, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", line, name, err)
		}

		records = append(records, Record{
			Row: domain.AdministrativeRow{
				Geography:  domain.GeographyType(geography),
				Name:       name,
				Population: population,
			},
			Known: known,
		})
	}
	return records, nil
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func parsePopulation(s string) (int64, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty %s value", ColPopulation)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	// Spreadsheet exports occasionally render integers as floats.
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid %s value %q", ColPopulation, s)
	}
	return int64(f), nil
}

func parseEnrichment(cells []string, cols columns) (domain.Enrichment, error) {
	var e domain.Enrichment
	var err error
	if e.Latitude, err = optionalFloat(cells, cols.latitude, ColLatitude); err != nil {
		return e, err
	}
	if e.Longitude, err = optionalFloat(cells, cols.longitude, ColLongitude); err != nil {
		return e, err
	}
	if e.DrivingMinutes, err = optionalMinutes(cells, cols.driving, ColDriving); err != nil {
		return e, err
	}
	if e.TransitMinutes, err = optionalMinutes(cells, cols.transit, ColTransit); err != nil {
		return e, err
	}
	return e, nil
}

func optionalFloat(cells []string, i int, col string) (*float64, error) {
	s := cell(cells, i)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q", col, s)
	}
	return &f, nil
}

func optionalMinutes(cells []string, i int, col string) (*int, error) {
	f, err := optionalFloat(cells, i, col)
	if err != nil || f == nil {
		return nil, err
	}
	m := int(*f)
	return &m, nil
}
