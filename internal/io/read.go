// Package io loads heterogeneous spreadsheet exports (CSV, XLSX, delimited
// text) into raw row maps. Readers guess nothing about column meaning; that
// is the schema mapper's job. They do handle the messy parts of real
// exports: unknown delimiters, non-UTF-8 encodings, and workbooks where the
// interesting sheet is not the first one.
package io

import (
	"os"
	"path/filepath"
	"strings"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/model"
)

// Table is one parsed tabular file: the header names in file order plus one
// raw row map per data row. Downstream header resolution depends on this
// order, so it always reflects the file, never map iteration.
type Table struct {
	Headers []string
	Rows    []model.RawRow
}

// Options carries per-file reading hints. The zero value is valid: delimiter
// is sniffed and the first sheet is used.
type Options struct {
	// Delimiter forces a field delimiter for CSV/TXT input. 0 means sniff
	// among comma, semicolon and tab.
	Delimiter rune
	// SheetName selects an exact sheet in a workbook.
	SheetName string
	// SheetContains selects the first sheet whose header row contains a
	// column matching this text (case-insensitive substring). Ignored when
	// SheetName is set.
	SheetContains string
}

// ReadTable loads a tabular file, dispatching on extension. The first row is
// treated as the header and is returned in file order. Failure semantics:
//   - missing path: the os.Stat error (satisfies errors.Is(err, fs.ErrNotExist))
//   - unsupported extension: *FormatError
//   - supported extension but unparseable content: *ReadError with cause
//
// The source file is never modified.
func ReadTable(path string, opts Options) (Table, error) {
	if _, err := os.Stat(path); err != nil {
		return Table{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return readDelimited(path, opts.Delimiter)
	case ".txt", ".tsv":
		// Plain text exports are tab-delimited unless told otherwise.
		delim := opts.Delimiter
		if delim == 0 {
			delim = '\t'
		}
		return readDelimited(path, delim)
	case ".xlsx", ".xlsm", ".xls":
		return readWorkbook(path, opts)
	default:
		return Table{}, &FormatError{Path: path, Ext: ext}
	}
}

// tableFromGrid converts a header row plus data rows into a Table. Empty
// headers are skipped (their columns are ignored); a header repeated in a
// later column keeps the first column; short rows are padded with empty
// strings so every row exposes the full header set.
func tableFromGrid(path string, grid [][]string) Table {
	if len(grid) < 2 {
		if len(grid) <= 1 {
			logging.Logf(logging.Warning, "File '%s' has no data rows", path)
		}
		return Table{Headers: []string{}, Rows: []model.RawRow{}}
	}

	headers := make([]string, 0, len(grid[0]))
	columns := make(map[string]int, len(grid[0]))
	for i, h := range grid[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			logging.Logf(logging.Warning, "Empty header in column %d of '%s'; column ignored", i+1, path)
			continue
		}
		if _, dup := columns[h]; dup {
			logging.Logf(logging.Warning, "Header '%s' repeats in column %d of '%s'; first column wins", h, i+1, path)
			continue
		}
		columns[h] = i
		headers = append(headers, h)
	}
	if len(headers) == 0 {
		logging.Logf(logging.Warning, "No valid headers in '%s'", path)
		return Table{Headers: []string{}, Rows: []model.RawRow{}}
	}

	rows := make([]model.RawRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(model.RawRow, len(headers))
		for _, header := range headers {
			if idx := columns[header]; idx < len(cells) {
				row[header] = cells[idx]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}
}
