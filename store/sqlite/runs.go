package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/generic"
)

// =============================================================================
// RECONCILIATION RUNS STORE
// =============================================================================

// Run statuses.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// ReconciliationRun is a persisted monthly quota-vs-dispensed reconciliation.
type ReconciliationRun struct {
	ID              string
	DriverName      string
	PeriodStart     generic.TimePoint
	PeriodEnd       generic.TimePoint
	Status          string // pending, running, completed, failed
	QuotaLitres     decimal.Decimal
	QuotaCost       decimal.Decimal
	DispensedLitres decimal.Decimal
	DispensedCost   decimal.Decimal
	TripCount       int
	EligibleCount   int
	SkipCounts      map[string]int
	Error           string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
}

// SaveReconciliationRun inserts a run or replaces the one already recorded
// for the same driver and period. The row takes the latest run's ID.
func (s *Store) SaveReconciliationRun(ctx context.Context, r ReconciliationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reconciliation_runs (id, driver_name, period_start, period_end, status,
			quota_litres, quota_cost, dispensed_litres, dispensed_cost, trip_count, eligible_count,
			skip_counts_json, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(driver_name, period_start, period_end) DO UPDATE SET
			id = excluded.id,
			status = excluded.status,
			quota_litres = excluded.quota_litres,
			quota_cost = excluded.quota_cost,
			dispensed_litres = excluded.dispensed_litres,
			dispensed_cost = excluded.dispensed_cost,
			trip_count = excluded.trip_count,
			eligible_count = excluded.eligible_count,
			skip_counts_json = excluded.skip_counts_json,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var startedAt, completedAt *string
	if r.StartedAt != nil {
		v := r.StartedAt.UTC().Format(time.RFC3339)
		startedAt = &v
	}
	if r.CompletedAt != nil {
		v := r.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &v
	}

	var skipJSON sql.NullString
	if len(r.SkipCounts) > 0 {
		b, err := json.Marshal(r.SkipCounts)
		if err != nil {
			return err
		}
		skipJSON = sql.NullString{String: string(b), Valid: true}
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.DriverName, formatDate(r.PeriodStart), formatDate(r.PeriodEnd), r.Status,
		r.QuotaLitres.String(), r.QuotaCost.String(), r.DispensedLitres.String(), r.DispensedCost.String(),
		r.TripCount, r.EligibleCount, skipJSON, nullString(r.Error),
		startedAt, completedAt, createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetReconciliationRuns returns runs, newest first, optionally filtered by
// status and driver.
func (s *Store) GetReconciliationRuns(ctx context.Context, status, driverName string) ([]ReconciliationRun, error) {
	query := `
		SELECT id, driver_name, period_start, period_end, status,
			quota_litres, quota_cost, dispensed_litres, dispensed_cost, trip_count, eligible_count,
			skip_counts_json, error, started_at, completed_at, created_at
		FROM reconciliation_runs
		WHERE 1 = 1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if driverName != "" {
		query += ` AND driver_name = ?`
		args = append(args, driverName)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.WrapRegistry("reconciliation runs", err)
	}
	defer rows.Close()

	var runs []ReconciliationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, generic.WrapRegistry("reconciliation runs", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, generic.WrapRegistry("reconciliation runs", err)
	}
	return runs, nil
}

// IsReconciliationComplete checks whether a completed run exists for the
// driver and period.
func (s *Store) IsReconciliationComplete(ctx context.Context, driverName string, period generic.Period) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reconciliation_runs
		WHERE driver_name = ? AND period_start = ? AND period_end = ? AND status = ?
	`, driverName, formatDate(period.Start), formatDate(period.End), RunCompleted).Scan(&count)
	if err != nil {
		return false, generic.WrapRegistry("reconciliation complete", err)
	}
	return count > 0, nil
}

func scanRun(rows *sql.Rows) (ReconciliationRun, error) {
	var r ReconciliationRun
	var periodStart, periodEnd string
	var quotaLitres, quotaCost, dispLitres, dispCost string
	var skipJSON, runErr, startedAt, completedAt sql.NullString
	var createdAt string
	if err := rows.Scan(
		&r.ID, &r.DriverName, &periodStart, &periodEnd, &r.Status,
		&quotaLitres, &quotaCost, &dispLitres, &dispCost, &r.TripCount, &r.EligibleCount,
		&skipJSON, &runErr, &startedAt, &completedAt, &createdAt,
	); err != nil {
		return r, err
	}

	var err error
	if r.PeriodStart, err = parseDate(periodStart); err != nil {
		return r, fmt.Errorf("run %s period_start: %w", r.ID, err)
	}
	if r.PeriodEnd, err = parseDate(periodEnd); err != nil {
		return r, fmt.Errorf("run %s period_end: %w", r.ID, err)
	}
	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"quota_litres", quotaLitres, &r.QuotaLitres},
		{"quota_cost", quotaCost, &r.QuotaCost},
		{"dispensed_litres", dispLitres, &r.DispensedLitres},
		{"dispensed_cost", dispCost, &r.DispensedCost},
	}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.raw); err != nil {
			return r, fmt.Errorf("run %s %s: %w", r.ID, a.name, err)
		}
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return r, fmt.Errorf("run %s created_at: %w", r.ID, err)
	}
	r.Error = runErr.String
	if skipJSON.Valid {
		if err := json.Unmarshal([]byte(skipJSON.String), &r.SkipCounts); err != nil {
			return r, fmt.Errorf("run %s skip_counts: %w", r.ID, err)
		}
	}
	if r.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return r, fmt.Errorf("run %s started_at: %w", r.ID, err)
	}
	if r.CompletedAt, err = parseTimestamp(completedAt); err != nil {
		return r, fmt.Errorf("run %s completed_at: %w", r.ID, err)
	}
	return r, nil
}

func parseTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
