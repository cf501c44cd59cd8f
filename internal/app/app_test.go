package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"fleet-recon/internal/config"
	"fleet-recon/internal/reconcile"
	"fleet-recon/internal/report"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func fixtureConfig(t *testing.T, dir string) string {
	billing := writeFile(t, dir, "billing.csv",
		"Employee Name,Date,Hours,Rate\n\"Smith, John\",2025-05-18,8,50\n")
	history := writeFile(t, dir, "history.csv",
		"Driver Name,Date,Key On,Key Off\n\"Smith, John\",2025-05-18,07:05,16:45\n")

	return writeFile(t, dir, "run.yaml", `
logging:
  level: error
sources:
  - {name: billing, role: primary, file: `+billing+`}
  - {name: history, role: secondary, file: `+history+`}
destination:
  format: json
`)
}

func TestRunNoArgsShowsUsage(t *testing.T) {
	if err := NewAppRunner().Run(nil); err != nil {
		t.Fatalf("Run with no args should print usage and succeed: %v", err)
	}
}

func TestRunConfigNotFound(t *testing.T) {
	err := NewAppRunner().Run([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")})
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	err := NewAppRunner().Run([]string{"-bogus"})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("err = %v, want ErrUsage", err)
	}
}

func TestRunBatchToFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := fixtureConfig(t, dir)
	outPath := filepath.Join(dir, "out", "report.json")

	err := NewAppRunner().Run([]string{"-config", cfgPath, "-output", outPath, "-loglevel", "error"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var payload report.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if payload.Summary.TotalPrimary != 1 {
		t.Errorf("summary = %+v, want one primary record", payload.Summary)
	}
}

func TestRunBatchToStdout(t *testing.T) {
	originalStdout := stdout
	defer func() { stdout = originalStdout }()
	var buf bytes.Buffer
	stdout = &buf

	dir := t.TempDir()
	err := NewAppRunner().Run([]string{"-config", fixtureConfig(t, dir), "-loglevel", "error"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var payload report.Payload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("stdout is not a JSON payload: %v", err)
	}
}

func TestRunServeMode(t *testing.T) {
	original := listenAndServeFunc
	defer func() { listenAndServeFunc = original }()

	var gotAddr string
	listenAndServeFunc = func(addr string, handler http.Handler) error {
		gotAddr = addr
		if handler == nil {
			t.Error("handler must not be nil")
		}
		return nil
	}

	dir := t.TempDir()
	err := NewAppRunner().Run([]string{"-config", fixtureConfig(t, dir), "-serve", ":8080", "-loglevel", "error"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotAddr != ":8080" {
		t.Errorf("served on %q, want :8080", gotAddr)
	}
}

func TestNewLookupStore(t *testing.T) {
	originalPG := newPostgresStoreFunc
	defer func() { newPostgresStoreFunc = originalPG }()

	var gotConnStr string
	newPostgresStoreFunc = func(ctx context.Context, connStr, query string) (reconcile.RateSource, error) {
		gotConnStr = connStr
		return nil, errors.New("not reached further")
	}

	t.Run("Nil config", func(t *testing.T) {
		store, err := newLookupStore(context.Background(), nil, "")
		if store != nil || err != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", store, err)
		}
	})

	t.Run("Static", func(t *testing.T) {
		store, err := newLookupStore(context.Background(), &config.LookupConfig{
			Type:  config.LookupTypeStatic,
			Rates: map[string]float64{"a": 10},
		}, "")
		if err != nil {
			t.Fatalf("newLookupStore: %v", err)
		}
		if rate, ok := store.Rate("a"); !ok || rate != 10 {
			t.Errorf("Rate(a) = (%v, %t)", rate, ok)
		}
	})

	t.Run("Postgres flag precedence", func(t *testing.T) {
		t.Setenv("DB_CREDENTIALS", "postgres://env@db/r")
		cfg := &config.LookupConfig{Type: config.LookupTypePostgres, ConnStr: "postgres://cfg@db/r", Query: "q"}

		_, _ = newLookupStore(context.Background(), cfg, "postgres://flag@db/r")
		if gotConnStr != "postgres://flag@db/r" {
			t.Errorf("flag should win, got %s", gotConnStr)
		}
		_, _ = newLookupStore(context.Background(), cfg, "")
		if gotConnStr != "postgres://cfg@db/r" {
			t.Errorf("config should beat env, got %s", gotConnStr)
		}
		cfg.ConnStr = ""
		_, _ = newLookupStore(context.Background(), cfg, "")
		if gotConnStr != "postgres://env@db/r" {
			t.Errorf("env fallback failed, got %s", gotConnStr)
		}
	})

	t.Run("Postgres without connection string", func(t *testing.T) {
		t.Setenv("DB_CREDENTIALS", "")
		cfg := &config.LookupConfig{Type: config.LookupTypePostgres, Query: "q"}
		if _, err := newLookupStore(context.Background(), cfg, ""); err == nil {
			t.Error("expected error without any connection string")
		}
	})

	t.Run("Unknown type", func(t *testing.T) {
		if _, err := newLookupStore(context.Background(), &config.LookupConfig{Type: "redis"}, ""); err == nil {
			t.Error("expected error for unknown lookup type")
		}
	})
}
