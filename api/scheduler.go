/*
scheduler.go - Automated monthly reconciliation scheduler

PURPOSE:
  Periodically reconciles every active driver's quota for the previous
  month against fuel dispensed, and records the outcome as a run.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Targets the calendar month before the current one
  - Skips drivers whose month already has a completed run
  - Records runs (running -> completed/failed) for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreateReconciliationRun endpoint (manual reconciliation)
  - quota/reconcile.go: Reconciler
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/sqlite"
	"go.uber.org/zap"
)

// ReconciliationScheduler handles automated month-end reconciliation.
type ReconciliationScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock; tests replace it.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store *sqlite.Store, handler *Handler) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	logger := rs.Handler.logger.Named("scheduler")
	if !rs.Enabled {
		logger.Info("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run()

	logger.Info("started", zap.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.Handler.logger.Named("scheduler").Info("stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check and returns how many drivers were
// processed and skipped.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (processed, skipped int) {
	return rs.checkAndProcess(ctx)
}

// TargetPeriod is the month the scheduler reconciles: the one before now.
func (rs *ReconciliationScheduler) TargetPeriod() generic.Period {
	today := generic.FromTime(rs.Now())
	return generic.MonthPeriod(today.Year(), today.Month()).PreviousMonth()
}

func (rs *ReconciliationScheduler) checkAndProcess(ctx context.Context) (processed, skipped int) {
	logger := rs.Handler.logger.Named("scheduler")
	period := rs.TargetPeriod()

	drivers, err := rs.Store.ListDrivers(ctx)
	if err != nil {
		logger.Error("listing drivers", zap.Error(err))
		return 0, 0
	}

	for _, d := range drivers {
		if !d.Active {
			continue
		}

		done, err := rs.Store.IsReconciliationComplete(ctx, d.Name, period)
		if err != nil {
			logger.Error("checking reconciliation status", zap.String("driver", d.Name), zap.Error(err))
			continue
		}
		if done {
			skipped++
			continue
		}

		if _, err := rs.Handler.processReconciliation(ctx, d.Name, period); err != nil {
			logger.Error("reconciliation failed",
				zap.String("driver", d.Name),
				zap.String("period", period.Month()),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	if processed > 0 || skipped > 0 {
		logger.Info("check completed",
			zap.String("period", period.Month()),
			zap.Int("processed", processed),
			zap.Int("skipped", skipped),
		)
	}
	return processed, skipped
}

// processReconciliation computes one driver's report and persists it as a
// run. A failed report is recorded as a failed run and returned as an error.
func (h *Handler) processReconciliation(ctx context.Context, driver string, period generic.Period) (sqlite.ReconciliationRun, error) {
	startTime := time.Now()

	run := sqlite.ReconciliationRun{
		ID:          uuid.NewString(),
		DriverName:  driver,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Status:      sqlite.RunRunning,
		StartedAt:   &startTime,
		CreatedAt:   startTime,
	}
	if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to save run record: %w", err)
	}

	rep, err := h.reconciler().Report(ctx, driver, period)
	if err != nil {
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
		if saveErr := h.Store.SaveReconciliationRun(ctx, run); saveErr != nil {
			h.logger.Error("failed to record failed run", zap.Error(saveErr))
		}
		return run, err
	}

	completedTime := time.Now()
	applyReport(&run, rep)
	run.Status = sqlite.RunCompleted
	run.CompletedAt = &completedTime

	if err := h.Store.SaveReconciliationRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to update run record: %w", err)
	}

	h.logger.Info("reconciliation run recorded",
		zap.String("run_id", run.ID),
		zap.String("driver", driver),
		zap.String("period", period.Month()),
		zap.String("quota_litres", run.QuotaLitres.StringFixed(2)),
		zap.String("dispensed_litres", run.DispensedLitres.StringFixed(2)),
	)
	return run, nil
}

func applyReport(run *sqlite.ReconciliationRun, rep *quota.Report) {
	run.QuotaLitres = rep.QuotaLitres.Value
	run.QuotaCost = rep.QuotaCost.Value
	run.DispensedLitres = rep.DispensedLitres.Value
	run.DispensedCost = rep.DispensedCost.Value
	run.TripCount = rep.TripCount
	run.EligibleCount = rep.EligibleCount
	run.SkipCounts = skipCounts(rep.SkipCounts)
	run.Error = ""
}
