package io

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"
)

func writeTemp(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestReadTableCSV(t *testing.T) {
	testCases := []struct {
		name        string
		file        string
		content     string
		opts        Options
		wantRows    int
		wantHeaders []string
		check       func(t *testing.T, tbl Table)
	}{
		{
			name:        "Comma delimited",
			file:        "a.csv",
			content:     "Driver,Hrs\nJohn Smith,8.5\nJane Doe,7\n",
			wantRows:    2,
			wantHeaders: []string{"Driver", "Hrs"},
			check: func(t *testing.T, tbl Table) {
				if tbl.Rows[0]["Driver"] != "John Smith" || tbl.Rows[0]["Hrs"] != "8.5" {
					t.Errorf("unexpected first row: %v", tbl.Rows[0])
				}
			},
		},
		{
			name:     "Semicolon sniffed",
			file:     "b.csv",
			content:  "Driver;Hrs\nJohn;8\n",
			wantRows: 1,
			check: func(t *testing.T, tbl Table) {
				if tbl.Rows[0]["Driver"] != "John" {
					t.Errorf("semicolon sniffing failed: %v", tbl.Rows[0])
				}
			},
		},
		{
			name:     "Tab sniffed",
			file:     "c.csv",
			content:  "Driver\tHrs\nJohn\t8\n",
			wantRows: 1,
			check: func(t *testing.T, tbl Table) {
				if tbl.Rows[0]["Hrs"] != "8" {
					t.Errorf("tab sniffing failed: %v", tbl.Rows[0])
				}
			},
		},
		{
			name:     "TXT defaults to tab",
			file:     "d.txt",
			content:  "Driver\tHrs\nJohn\t8\n",
			wantRows: 1,
		},
		{
			name:     "Header only",
			file:     "e.csv",
			content:  "Driver,Hrs\n",
			wantRows: 0,
		},
		{
			name:     "Short row padded",
			file:     "f.csv",
			content:  "Driver,Hrs,Rate\nJohn,8\n",
			wantRows: 1,
			check: func(t *testing.T, tbl Table) {
				if v, ok := tbl.Rows[0]["Rate"]; !ok || v != "" {
					t.Errorf("short row not padded: %v", tbl.Rows[0])
				}
			},
		},
		{
			name:        "Empty header column ignored",
			file:        "g.csv",
			content:     "Driver,,Hrs\nJohn,x,8\n",
			wantRows:    1,
			wantHeaders: []string{"Driver", "Hrs"},
			check: func(t *testing.T, tbl Table) {
				if len(tbl.Rows[0]) != 2 {
					t.Errorf("expected 2 columns, got %v", tbl.Rows[0])
				}
			},
		},
		{
			name:        "Repeated header keeps first column",
			file:        "h.csv",
			content:     "Driver,Hrs,Driver\nJohn,8,Jane\n",
			wantRows:    1,
			wantHeaders: []string{"Driver", "Hrs"},
			check: func(t *testing.T, tbl Table) {
				if tbl.Rows[0]["Driver"] != "John" {
					t.Errorf("later duplicate column leaked through: %v", tbl.Rows[0])
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTemp(t, tc.file, []byte(tc.content))
			tbl, err := ReadTable(path, tc.opts)
			if err != nil {
				t.Fatalf("ReadTable: %v", err)
			}
			if len(tbl.Rows) != tc.wantRows {
				t.Fatalf("got %d rows, want %d", len(tbl.Rows), tc.wantRows)
			}
			if tc.wantHeaders != nil && !reflect.DeepEqual(tbl.Headers, tc.wantHeaders) {
				t.Errorf("headers = %v, want %v", tbl.Headers, tc.wantHeaders)
			}
			if tc.check != nil {
				tc.check(t, tbl)
			}
		})
	}
}

// Header order must come from the file, not from map iteration, because
// downstream alias resolution is first-match-wins over that order.
func TestReadTableHeaderOrder(t *testing.T) {
	content := "Zulu,Alpha,Mike,Bravo\n1,2,3,4\n"
	want := []string{"Zulu", "Alpha", "Mike", "Bravo"}
	for i := 0; i < 20; i++ {
		path := writeTemp(t, "order.csv", []byte(content))
		tbl, err := ReadTable(path, Options{})
		if err != nil {
			t.Fatalf("ReadTable: %v", err)
		}
		if !reflect.DeepEqual(tbl.Headers, want) {
			t.Fatalf("headers = %v, want %v", tbl.Headers, want)
		}
	}
}

func TestReadTableEncodingFallback(t *testing.T) {
	// "José" in Windows-1252: é is 0xE9, invalid as UTF-8.
	content := append([]byte("Driver,Hrs\nJos"), 0xE9)
	content = append(content, []byte(",8\n")...)
	path := writeTemp(t, "latin.csv", content)

	tbl, err := ReadTable(path, Options{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if len(tbl.Rows) != 1 || tbl.Rows[0]["Driver"] != "José" {
		t.Errorf("Windows-1252 fallback failed: %v", tbl.Rows)
	}
}

func TestReadTableBOMStripped(t *testing.T) {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Driver,Hrs\nJohn,8\n")...)
	path := writeTemp(t, "bom.csv", content)

	tbl, err := ReadTable(path, Options{})
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if tbl.Rows[0]["Driver"] != "John" {
		t.Errorf("BOM not stripped; headers: %v", tbl.Rows[0])
	}
}

func TestReadTableErrors(t *testing.T) {
	t.Run("Missing file", func(t *testing.T) {
		_, err := ReadTable(filepath.Join(t.TempDir(), "nope.csv"), Options{})
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("want fs.ErrNotExist, got %v", err)
		}
	})

	t.Run("Unsupported extension", func(t *testing.T) {
		path := writeTemp(t, "data.pdf", []byte("not a table"))
		_, err := ReadTable(path, Options{})
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("want *FormatError, got %v", err)
		}
		if fe.Ext != ".pdf" {
			t.Errorf("FormatError.Ext = %q, want .pdf", fe.Ext)
		}
	})

	t.Run("Corrupt workbook", func(t *testing.T) {
		path := writeTemp(t, "broken.xlsx", []byte("this is not a zip archive"))
		_, err := ReadTable(path, Options{})
		var re *ReadError
		if !errors.As(err, &re) {
			t.Fatalf("want *ReadError, got %v", err)
		}
		if re.Unwrap() == nil {
			t.Error("ReadError should carry the original cause")
		}
	})

	t.Run("Malformed quoting", func(t *testing.T) {
		// Bare quote inside an unquoted field is tolerated via LazyQuotes,
		// but an unterminated quoted field spanning EOF is not.
		path := writeTemp(t, "bad.csv", []byte("a,b\n\"unterminated,1\n"))
		if _, err := ReadTable(path, Options{}); err != nil {
			var re *ReadError
			if !errors.As(err, &re) {
				t.Errorf("parse failure should surface as *ReadError, got %T", err)
			}
		}
	})
}

func TestReadTableWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.xlsx")

	f := excelize.NewFile()
	// Sheet1: an irrelevant summary tab. Sheet2: the asset list.
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Summary", "Totals"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewSheet("Assets"); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Assets", "A1", &[]interface{}{"Asset ID", "Driver", "Hrs"}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSheetRow("Assets", "A2", &[]interface{}{"EX-210", "Smith, John", 8.5}); err != nil {
		t.Fatal(err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}

	t.Run("First sheet by default", func(t *testing.T) {
		tbl, err := ReadTable(path, Options{})
		if err != nil {
			t.Fatalf("ReadTable: %v", err)
		}
		if len(tbl.Rows) != 0 {
			t.Errorf("expected empty summary sheet, got %d rows", len(tbl.Rows))
		}
	})

	t.Run("Sheet probe by header", func(t *testing.T) {
		tbl, err := ReadTable(path, Options{SheetContains: "asset id"})
		if err != nil {
			t.Fatalf("ReadTable: %v", err)
		}
		if len(tbl.Rows) != 1 {
			t.Fatalf("got %d rows, want 1", len(tbl.Rows))
		}
		if tbl.Rows[0]["Driver"] != "Smith, John" {
			t.Errorf("unexpected row: %v", tbl.Rows[0])
		}
		if !reflect.DeepEqual(tbl.Headers, []string{"Asset ID", "Driver", "Hrs"}) {
			t.Errorf("headers = %v, want sheet column order", tbl.Headers)
		}
	})

	t.Run("Explicit sheet name", func(t *testing.T) {
		tbl, err := ReadTable(path, Options{SheetName: "Assets"})
		if err != nil {
			t.Fatalf("ReadTable: %v", err)
		}
		if len(tbl.Rows) != 1 {
			t.Errorf("got %d rows, want 1", len(tbl.Rows))
		}
	})

	t.Run("Unknown sheet name", func(t *testing.T) {
		_, err := ReadTable(path, Options{SheetName: "Missing"})
		var re *ReadError
		if !errors.As(err, &re) {
			t.Errorf("want *ReadError for unknown sheet, got %v", err)
		}
	})
}
