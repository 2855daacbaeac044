/*
Package sqlite provides a SQLite-backed fleet registry.

PURPOSE:
  Implements fleet.Registry and fleet.Snapshotter on SQLite, plus the small
  write surface used to populate the registries and persist reconciliation
  runs. In production the same schema runs on PostgreSQL with only dialect
  changes.

INTERFACES IMPLEMENTED:
  fleet.Registry:    All read-only lookups the quota engine needs
  fleet.Snapshotter: Consistent reads for a batch (one read transaction)

APPEND-ONLY DATA:
  diesel_price_history and route_prices are append-only. A second price for
  the same date is rejected (ErrDuplicateEffectiveDate). Assignments are
  never deleted; a handover closes the current row by setting end_date.

NO FOREIGN KEYS AT THE TRIP LAYER:
  trips reference vehicles by plate and drivers by name. The engine tolerates
  dangling references and reports them as VehicleNotFound/DriverNotFound.

KEY TABLES:
  vehicles, employees, vehicle_assignments, routes, daily_route_logs,
  diesel_price_history, route_prices, trips, fuel_records,
  reconciliation_runs

ERRORS:
  Every failed read is returned as *generic.RegistryError so callers can tell
  a storage outage from "not found" (which is (nil, nil)).

USAGE:
  store, err := sqlite.New("./data/fleet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  report, err := quota.NewReconciler(store).Report(ctx, "An", month)

SEE ALSO:
  - fleet/registry.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// Store implements the registry interfaces using SQLite. Reads are promoted
// from the embedded reader; writes serialise on mu.
type Store struct {
	reader

	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an already opened database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{reader: reader{q: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL UNIQUE,
		vehicle_type TEXT NOT NULL,
		consumption_norm TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Half-open intervals [assignment_date, end_date). Overlaps are not
	-- prevented here; the resolver filters.
	CREATE TABLE IF NOT EXISTS vehicle_assignments (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		assignment_date TEXT NOT NULL,
		end_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_vehicle_date
		ON vehicle_assignments(vehicle_id, assignment_date);

	CREATE TABLE IF NOT EXISTS diesel_price_history (
		id TEXT PRIMARY KEY,
		application_date TEXT NOT NULL UNIQUE,
		unit_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_routes_name ON routes(name);

	CREATE TABLE IF NOT EXISTS route_prices (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL,
		application_date TEXT NOT NULL,
		price TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(route_id, application_date)
	);

	-- Several entries per (route, date, plate) are allowed.
	CREATE TABLE IF NOT EXISTS daily_route_logs (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL,
		log_date TEXT NOT NULL,
		plate TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_daily_route_logs_lookup
		ON daily_route_logs(route_id, log_date, plate);

	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		trip_date TEXT,
		route_code TEXT NOT NULL DEFAULT '',
		route_name TEXT NOT NULL DEFAULT '',
		plate TEXT NOT NULL DEFAULT '',
		driver_name TEXT NOT NULL DEFAULT '',
		distance_km TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT '',
		trip_code TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trips_driver_date
		ON trips(driver_name, trip_date);

	CREATE TABLE IF NOT EXISTS fuel_records (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL,
		record_date TEXT NOT NULL,
		litres TEXT NOT NULL,
		cost TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fuel_records_plate_date
		ON fuel_records(plate, record_date);

	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		driver_name TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		quota_litres TEXT NOT NULL DEFAULT '0',
		quota_cost TEXT NOT NULL DEFAULT '0',
		dispensed_litres TEXT NOT NULL DEFAULT '0',
		dispensed_cost TEXT NOT NULL DEFAULT '0',
		trip_count INTEGER NOT NULL DEFAULT 0,
		eligible_count INTEGER NOT NULL DEFAULT 0,
		skip_counts_json TEXT,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_status
		ON reconciliation_runs(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_reconciliation_runs_unique
		ON reconciliation_runs(driver_name, period_start, period_end);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT (fleet.Snapshotter)
// =============================================================================

// Snapshot runs fn inside one read transaction so every read of a batch sees
// the same committed state. The transaction is always rolled back.
func (s *Store) Snapshot(ctx context.Context, fn func(fleet.Registry) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.WrapRegistry("begin snapshot", err)
	}
	defer tx.Rollback()

	return fn(reader{q: tx})
}

// =============================================================================
// HELPERS
// =============================================================================

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func formatDate(tp generic.TimePoint) string { return tp.String() }

func formatDatePtr(tp *generic.TimePoint) sql.NullString {
	if tp == nil || tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s string) (generic.TimePoint, error) {
	return generic.ParseDate(s)
}

func parseDatePtr(ns sql.NullString) (*generic.TimePoint, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func parseDecimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalPtrString(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
