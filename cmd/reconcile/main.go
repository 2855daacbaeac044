/*
main.go - Monthly fuel quota reconciliation CLI

PURPOSE:
  Prints one driver's quota-vs-dispensed reconciliation for a month,
  reading the same SQLite registry the server uses.

COMMAND-LINE FLAGS:
  -config  Optional YAML config file (database path and log settings)
  -db      SQLite database path (overrides config)
  -driver  Driver name (required)
  -month   Month as YYYY-MM (default: previous month)
  -format  table (default), json or csv

EXIT CODES:
  0 success, 1 bad arguments, 2 registry unavailable, 3 other failure

EXAMPLES:
  ./reconcile -db=./data/fleet.db -driver="Nguyen Van An" -month=2026-01
  ./reconcile -driver=An -month=2026-01 -format=csv > an-2026-01.csv
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warp/fuel-quota/config"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/logging"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/sqlite"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	dbPath := fs.String("db", "", "SQLite database path (overrides config)")
	driver := fs.String("driver", "", "driver name")
	month := fs.String("month", "", "month as YYYY-MM (default: previous month)")
	format := fs.String("format", "table", "output format: table, json or csv")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	// Logs go to stderr so stdout stays machine-readable.
	logger, err := logging.New(cfg.Log.Level, "console", "fuel-quota-reconcile")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if *driver == "" {
		fmt.Fprintln(os.Stderr, "-driver is required")
		fs.Usage()
		return 1
	}
	period := generic.MonthPeriod(time.Now().Year(), time.Now().Month()).PreviousMonth()
	if *month != "" {
		if period, err = generic.ParseMonth(*month); err != nil {
			fmt.Fprintf(os.Stderr, "-month: %v\n", err)
			return 1
		}
	}
	if !validFormat(*format) {
		fmt.Fprintf(os.Stderr, "unknown -format %q\n", *format)
		return 1
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", zap.String("path", cfg.Database.Path), zap.Error(err))
		return 3
	}
	defer store.Close()

	rep, err := quota.NewReconciler(store, quota.WithLogger(logger)).Report(context.Background(), *driver, period)
	if err != nil {
		if generic.IsRegistryUnavailable(err) {
			return 2
		}
		return 3
	}

	if err := render(os.Stdout, rep, *format); err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		return 3
	}
	return 0
}
