package io

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"fleet-recon/internal/logging"
)

// readWorkbook loads one sheet of an Excel workbook. Sheet selection order:
// explicit SheetName, then the first sheet whose header row matches
// SheetContains, then the first sheet.
func readWorkbook(path string, opts Options) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Logf(logging.Error, "Failed to close workbook '%s': %v", path, cerr)
		}
	}()

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}
	logging.Logf(logging.Debug, "Reading sheet '%s' of '%s'", sheet, path)

	grid, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, &ReadError{Path: path, Err: err}
	}

	table := tableFromGrid(path, grid)
	logging.Logf(logging.Debug, "Loaded %d rows from sheet '%s' of '%s'", len(table.Rows), sheet, path)
	return table, nil
}

func pickSheet(f *excelize.File, opts Options) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook contains no sheets")
	}

	if opts.SheetName != "" {
		for _, name := range sheets {
			if name == opts.SheetName {
				return name, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found (available: %s)", opts.SheetName, strings.Join(sheets, ", "))
	}

	if opts.SheetContains != "" {
		probe := strings.ToLower(opts.SheetContains)
		for _, name := range sheets {
			table, err := f.GetRows(name)
			if err != nil || len(table) == 0 {
				continue
			}
			for _, header := range table[0] {
				if strings.Contains(strings.ToLower(header), probe) {
					return name, nil
				}
			}
		}
		logging.Logf(logging.Warning, "No sheet with a header matching '%s'; using first sheet '%s'", opts.SheetContains, sheets[0])
	}

	return sheets[0], nil
}
