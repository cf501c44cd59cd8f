package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"fleet-recon/internal/config"
	"fleet-recon/internal/logging"
	"fleet-recon/internal/lookup"
	"fleet-recon/internal/pipeline"
	"fleet-recon/internal/reconcile"
	"fleet-recon/internal/report"
	"fleet-recon/internal/server"
	"fleet-recon/internal/util"
)

// Define common application-level errors.
var (
	ErrUsage          = errors.New("usage error")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// --- Factory Variables (Allow Overriding for Testing) ---
var (
	newPostgresStoreFunc = func(ctx context.Context, connStr, query string) (reconcile.RateSource, error) {
		return lookup.NewPostgresStore(ctx, connStr, query)
	}
	newSQLiteStoreFunc = func(ctx context.Context, path, query string) (reconcile.RateSource, error) {
		return lookup.NewSQLiteStore(ctx, path, query)
	}
	pipelineRunFunc    = pipeline.Run
	listenAndServeFunc = http.ListenAndServe
	osStatFunc         = os.Stat
)

// stdout is swapped for a buffer in tests.
var stdout io.Writer = os.Stdout

// AppRunner encapsulates the application's execution logic.
type AppRunner struct{}

// NewAppRunner creates a new instance of the application runner.
func NewAppRunner() *AppRunner {
	return &AppRunner{}
}

// usageText defines the command-line help information.
const usageText = `Usage:
  fleet-recon [options]

Options:
  -config string
        YAML run configuration file (default "config/run.yaml")
  -output string
        Override report output path from config (stdout if neither is set)
  -format string
        Override report format from config (json, csv, xlsx)
  -db string
        PostgreSQL connection string for the rate lookup
        (overrides DB_CREDENTIALS env var and the configured connStr)
  -loglevel string
        Logging level (none, error, warn, info, debug) (default "info")
  -serve string
        Run as an HTTP server on the given address (e.g. ":8080")
        instead of a one-shot batch run
  -help
        Show help

Environment Variables:
  DB_CREDENTIALS   PostgreSQL connection string (used if -db is not set)
  Any VAR          Can be used in config paths/connection strings via $VAR/${VAR} or %VAR%

Examples:
  fleet-recon -config=configs/weekly.yaml -loglevel=debug
  fleet-recon -config=configs/weekly.yaml -output=/tmp/report.xlsx -format=xlsx
  fleet-recon -config=configs/weekly.yaml -serve=:8080
`

// Usage prints the command-line help information to the specified writer.
func (a *AppRunner) Usage(writer io.Writer) {
	fmt.Fprint(writer, usageText)
}

// Run parses command-line arguments and executes a batch reconciliation or
// starts the HTTP server.
func (a *AppRunner) Run(args []string) error {
	fs := flag.NewFlagSet("fleet-recon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configFile := fs.String("config", "config/run.yaml", "YAML run configuration file")
	flagOutputFile := fs.String("output", "", "Override report output path from config")
	flagFormat := fs.String("format", "", "Override report format from config")
	dbConnStr := fs.String("db", "", "PostgreSQL connection string for the rate lookup")
	logLevelStr := fs.String("loglevel", "info", "Logging level")
	serveAddr := fs.String("serve", "", "Run as an HTTP server on the given address")
	helpFlag := fs.Bool("help", false, "Show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			a.Usage(os.Stderr)
			return nil
		}
		logging.Logf(logging.Error, "Failed to parse args: %v", err)
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *helpFlag || len(args) == 0 {
		a.Usage(os.Stderr)
		return nil
	}

	logging.SetupLogging(*logLevelStr)
	if _, err := osStatFunc(*configFile); err != nil {
		if os.IsNotExist(err) {
			logging.Logf(logging.Error, "Config file '%s' not found.", *configFile)
			return ErrConfigNotFound
		}
		return fmt.Errorf("failed to stat config file '%s': %w", *configFile, err)
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logging.Logf(logging.Error, "Error loading/validating config '%s': %v", *configFile, err)
		return err
	}
	if !isFlagSet(fs, "loglevel") && cfg.Logging.Level != "" {
		logging.SetupLogging(cfg.Logging.Level)
	}
	logging.Logf(logging.Info, "Starting fleet-recon with config: %s", *configFile)

	ctx := context.Background()
	rates, err := newLookupStore(ctx, cfg.Lookup, *dbConnStr)
	if err != nil {
		return fmt.Errorf("failed to initialize rate lookup: %w", err)
	}

	if *serveAddr != "" {
		srv := server.NewServer(cfg, rates)
		logging.Logf(logging.Info, "Listening on %s", *serveAddr)
		return listenAndServeFunc(*serveAddr, srv.Handler())
	}

	payload, err := pipelineRunFunc(ctx, cfg, rates)
	if err != nil {
		return err
	}

	format := cfg.Destination.Format
	if *flagFormat != "" {
		format = *flagFormat
	}
	outputFile := cfg.Destination.File
	if *flagOutputFile != "" {
		outputFile = *flagOutputFile
	}
	outputFile = util.ExpandEnvUniversal(outputFile)

	if outputFile == "" {
		data, err := report.Emit(payload, format)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}
	return report.WriteFile(payload, format, outputFile)
}

// newLookupStore builds the configured rate source. The -db flag takes
// precedence over the configured connection string, which in turn falls back
// to the DB_CREDENTIALS environment variable.
func newLookupStore(ctx context.Context, cfg *config.LookupConfig, dbFlag string) (reconcile.RateSource, error) {
	if cfg == nil {
		return nil, nil
	}
	switch strings.ToLower(cfg.Type) {
	case config.LookupTypeStatic:
		return lookup.NewStaticStore(cfg.Rates), nil
	case config.LookupTypePostgres:
		connStr := dbFlag
		if connStr == "" {
			connStr = cfg.ConnStr
		}
		if connStr == "" {
			connStr = os.Getenv("DB_CREDENTIALS")
		}
		if connStr == "" {
			return nil, fmt.Errorf("postgres lookup requires a connection string (-db flag, connStr, or DB_CREDENTIALS)")
		}
		return newPostgresStoreFunc(ctx, connStr, cfg.Query)
	case config.LookupTypeSQLite:
		return newSQLiteStoreFunc(ctx, cfg.File, cfg.Query)
	default:
		return nil, fmt.Errorf("unknown lookup type '%s'", cfg.Type)
	}
}

// isFlagSet reports whether the named flag was explicitly provided.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
