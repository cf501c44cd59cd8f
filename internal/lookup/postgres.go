package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"fleet-recon/internal/logging"
	"fleet-recon/internal/util"
)

// pgxConnectFunc allows overriding pgx.Connect for testing.
var pgxConnectFunc = pgx.Connect

// Default database connection and query timeout.
const defaultDbTimeout = 30 * time.Second

// PostgresStore is a rate table loaded from a PostgreSQL query. The query's
// first column is the identity key, the second the hourly rate.
type PostgresStore struct {
	rates map[string]float64
}

// NewPostgresStore connects, runs the query and loads the full rate table.
// The connection is closed before returning.
func NewPostgresStore(ctx context.Context, connStr, query string) (*PostgresStore, error) {
	logging.Logf(logging.Debug, "PostgresStore loading rates using query: %s", query)
	ctx, cancel := context.WithTimeout(ctx, defaultDbTimeout)
	defer cancel()

	expandedConnStr := util.ExpandEnvUniversal(connStr)
	conn, err := pgxConnectFunc(ctx, expandedConnStr)
	if err != nil {
		maskedConnStr := util.MaskCredentials(expandedConnStr)
		logging.Logf(logging.Error, "PostgresStore failed to connect using connection string: %s", maskedConnStr)
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("PostgresStore database connection timed out: %w", ctx.Err())
		}
		return nil, fmt.Errorf("PostgresStore failed to connect to database (using %s): %w", maskedConnStr, err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("PostgresStore failed to execute query '%s': %w", query, err)
	}
	defer rows.Close()

	if len(rows.FieldDescriptions()) < 2 {
		return nil, fmt.Errorf("PostgresStore query '%s' must return at least key and rate columns", query)
	}

	rates := make(map[string]float64)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("PostgresStore failed to scan row values: %w", err)
		}
		key, _ := values[0].(string)
		addRate(rates, key, values[1])
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("PostgresStore query timed out during row iteration: %w", ctx.Err())
		}
		return nil, fmt.Errorf("PostgresStore error during row iteration: %w", err)
	}

	logging.Logf(logging.Info, "PostgresStore loaded %d rates", len(rates))
	return &PostgresStore{rates: rates}, nil
}

// Rate implements Store.
func (ps *PostgresStore) Rate(key string) (float64, bool) {
	r, ok := ps.rates[storeKey(key)]
	return r, ok
}

// Len reports the number of loaded rates.
func (ps *PostgresStore) Len() int {
	return len(ps.rates)
}
