// Package source reads the tabular feedback export that feeds the import.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Record is a single row of the export. It is never mutated after reading;
// the AI gate derives enhanced copies instead.
type Record struct {
	Title       string
	Description string
	Status      string
	TotalLikes  int
	RequestedBy string
	CreatedAt   string
}

// Column headers are an exact contract with the exporting system.
var requiredColumns = []string{"title", "description", "status", "Total Likes", "Requested By", "created_at"}

// ErrEmptyFile is returned when the export contains no header row.
var ErrEmptyFile = errors.New("export file is empty")

// ReadFile loads all records from the CSV export at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses records from r. The header row must contain every required
// column; extra columns are ignored.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []Record
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// mapColumns builds a header-name to index map and verifies the contract.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("export missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (Record, error) {
	field := func(name string) string {
		idx := cols[name]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	likes := 0
	if raw := field("Total Likes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Record{}, fmt.Errorf("invalid Total Likes %q: %w", raw, err)
		}
		if n < 0 {
			return Record{}, fmt.Errorf("negative Total Likes %d", n)
		}
		likes = n
	}

	return Record{
		Title:       field("title"),
		Description: field("description"),
		Status:      field("status"),
		TotalLikes:  likes,
		RequestedBy: field("Requested By"),
		CreatedAt:   field("created_at"),
	}, nil
}
