package io

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"fleet-recon/internal/logging"
)

// sniffSampleSize bounds how much of the file the delimiter sniffer looks at.
const sniffSampleSize = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readDelimited loads a CSV/TXT file. A zero delimiter is sniffed from the
// first ~1KB. Bytes that are not valid UTF-8 are re-decoded as Windows-1252
// (a superset of Latin-1) rather than rejected; these legacy encodings are
// common in fleet exports.
func readDelimited(path string, delimiter rune) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}

	text, err := decodeBytes(raw)
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}

	if delimiter == 0 {
		delimiter = sniffDelimiter(text)
		logging.Logf(logging.Debug, "Sniffed delimiter %q for '%s'", string(delimiter), path)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	grid, err := reader.ReadAll()
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}

	table := tableFromGrid(path, grid)
	logging.Logf(logging.Debug, "Loaded %d rows from '%s'", len(table.Rows), path)
	return table, nil
}

// decodeBytes returns the file content as UTF-8 text, stripping a BOM and
// falling back to Windows-1252 when the bytes are not valid UTF-8.
func decodeBytes(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	logging.Logf(logging.Debug, "Input is not UTF-8; decoded as Windows-1252")
	return string(decoded), nil
}

// sniffDelimiter picks the delimiter among comma, semicolon and tab by
// counting occurrences in the sample's first line. Quoted fields are rare
// enough in header rows that a plain count is reliable; ties and empty
// samples fall back to comma.
func sniffDelimiter(text string) rune {
	sample := text
	if len(sample) > sniffSampleSize {
		sample = sample[:sniffSampleSize]
	}
	if i := strings.IndexByte(sample, '\n'); i >= 0 {
		sample = sample[:i]
	}

	best := ','
	bestCount := strings.Count(sample, ",")
	for _, candidate := range []rune{';', '\t'} {
		if n := strings.Count(sample, string(candidate)); n > bestCount {
			best = candidate
			bestCount = n
		}
	}
	return best
}
