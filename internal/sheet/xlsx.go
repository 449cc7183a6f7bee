package sheet

import (
	"fmt"

	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX parses the first worksheet of an XLSX workbook.
func ReadXLSX(path string) ([]Record, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx sheet: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("xlsx sheet %s has no worksheets", path)
	}

	ws := f.Sheets[0]
	table := make([][]string, 0, len(ws.Rows))
	for _, row := range ws.Rows {
		if row == nil {
			table = append(table, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		table = append(table, cells)
	}
	return parseTable(table)
}
