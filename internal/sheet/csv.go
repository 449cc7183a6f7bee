package sheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ReadCSVFile opens and parses a CSV sheet.
func ReadCSVFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a CSV sheet. ONS exports are ISO-8859-1, storing names
// such as "Ynys Môn" as single Latin-1 bytes; input that is already valid
// UTF-8, such as a file written by this tool, is read as-is.
func ReadCSV(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv sheet: %w", err)
	}
	if !utf8.Valid(data) {
		if data, err = charmap.ISO8859_1.NewDecoder().Bytes(data); err != nil {
			return nil, fmt.Errorf("decode csv sheet: %w", err)
		}
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1

	table, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv sheet: %w", err)
	}
	return parseTable(table)
}
