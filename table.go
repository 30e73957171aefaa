package main

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is the in-memory form of one export: the raw rows plus a
// normalized header index. Column names are lowercased and stripped of
// spaces, underscores and dashes, so exports with cosmetic header
// differences resolve to the same columns.
type Table struct {
	headers map[string]int
	rows    [][]string
}

// loadTable reads a .csv or .csv.gz export. Exports are
// semicolon-separated; when the header collapses into a single column
// the file is re-parsed comma-separated.
func loadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		raw, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
		if err := gz.Close(); err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
	}

	tbl, err := parseTable(raw, ';')
	if err == nil && len(tbl.headers) > 1 {
		return tbl, nil
	}
	return parseTable(raw, ',')
}

func parseTable(raw []byte, sep rune) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	tbl := &Table{headers: normalizeHeaders(headers)}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		tbl.rows = append(tbl.rows, record)
	}
	return tbl, nil
}

// Len reports the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// column resolves the first of the given names to a column index.
func (t *Table) column(names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := t.headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

// hasColumn reports whether any of the given column names is present.
func (t *Table) hasColumn(names ...string) bool {
	_, ok := t.column(names...)
	return ok
}

// value returns the trimmed cell at (row, col); absent columns and
// ragged rows yield "".
func (t *Table) value(row int, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 {
		return ""
	}
	record := t.rows[row]
	if col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
