package lookup

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/util"
)

// SQLiteStore is a rate table loaded from a local SQLite file, the common
// deployed-cache case where no database server is reachable from the field.
type SQLiteStore struct {
	rates map[string]float64
}

// NewSQLiteStore opens the database file, runs the query and loads the full
// rate table. The query's first column is the identity key, the second the
// hourly rate. The file handle is closed before returning.
func NewSQLiteStore(ctx context.Context, path, query string) (*SQLiteStore, error) {
	expandedPath := util.ExpandEnvUniversal(path)
	logging.Logf(logging.Debug, "SQLiteStore loading rates from '%s' using query: %s", expandedPath, query)

	ctx, cancel := context.WithTimeout(ctx, defaultDbTimeout)
	defer cancel()

	db, err := sql.Open("sqlite3", expandedPath)
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore failed to open '%s': %w", expandedPath, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SQLiteStore failed to execute query '%s' against '%s': %w", query, expandedPath, err)
	}
	defer rows.Close()

	rates := make(map[string]float64)
	for rows.Next() {
		var key sql.NullString
		var rate sql.NullFloat64
		if err := rows.Scan(&key, &rate); err != nil {
			return nil, fmt.Errorf("SQLiteStore failed to scan row: %w", err)
		}
		if !key.Valid || !rate.Valid {
			logging.Logf(logging.Warning, "SQLiteStore skipping row with NULL key or rate")
			continue
		}
		addRate(rates, key.String, rate.Float64)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SQLiteStore error during row iteration: %w", err)
	}

	logging.Logf(logging.Info, "SQLiteStore loaded %d rates from '%s'", len(rates), expandedPath)
	return &SQLiteStore{rates: rates}, nil
}

// Rate implements Store.
func (ss *SQLiteStore) Rate(key string) (float64, bool) {
	r, ok := ss.rates[storeKey(key)]
	return r, ok
}

// Len reports the number of loaded rates.
func (ss *SQLiteStore) Len() int {
	return len(ss.rates)
}
