package quota

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"go.uber.org/zap"
)

// =============================================================================
// REPORT
// =============================================================================

type AnomalyKind string

const (
	// AnomalyOffWithDistance: trip marked OFF but with distance logged.
	AnomalyOffWithDistance AnomalyKind = "off_with_distance"
	// AnomalyDuplicateAssignment: more than one assignment row covers the trip.
	AnomalyDuplicateAssignment AnomalyKind = "duplicate_assignment"
	// AnomalyMultipleDailyLogs: several daily-log entries for (route, date, plate).
	AnomalyMultipleDailyLogs AnomalyKind = "multiple_daily_logs"
)

// Anomaly is a data-quality warning. Anomalies never change a trip's result.
type Anomaly struct {
	TripID  string
	Date    *generic.TimePoint
	Kind    AnomalyKind
	Message string
}

// TripLine is one row of the per-trip breakdown.
type TripLine struct {
	Trip  fleet.TripRecord
	Class fleet.StatusClass

	// Result is set for every ON-family trip. OFF and other-status trips are
	// not computed and carry only their SkipReason.
	Result *Result
	Skip   SkipReason

	// RoutePrice is the route's price effective on the trip date, if any.
	RoutePrice *decimal.Decimal
}

// Report reconciles one driver's quota for a period against fuel dispensed.
type Report struct {
	DriverName string
	Period     generic.Period
	Lines      []TripLine

	// Plates lists every distinct plate on the driver's trips in the period.
	Plates []string

	QuotaLitres     generic.Amount
	QuotaCost       generic.Amount
	DispensedLitres generic.Amount
	DispensedCost   generic.Amount

	// Deltas are quota minus dispensed.
	DeltaLitres generic.Amount
	DeltaCost   generic.Amount

	TripCount     int
	EligibleCount int
	SkipCounts    map[SkipReason]int
	Anomalies     []Anomaly
}

func newReport(driverName string, period generic.Period) *Report {
	counts := make(map[SkipReason]int, len(AllSkipReasons))
	for _, r := range AllSkipReasons {
		counts[r] = 0
	}
	return &Report{
		DriverName:      driverName,
		Period:          period,
		QuotaLitres:     generic.ZeroAmount(generic.UnitLitres),
		QuotaCost:       generic.ZeroAmount(generic.UnitCurrency),
		DispensedLitres: generic.ZeroAmount(generic.UnitLitres),
		DispensedCost:   generic.ZeroAmount(generic.UnitCurrency),
		SkipCounts:      counts,
	}
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler builds driver/month reports. All reads of one report go
// through a single registry snapshot.
type Reconciler struct {
	Source fleet.Snapshotter

	opts options
}

func NewReconciler(source fleet.Snapshotter, opts ...Option) *Reconciler {
	return &Reconciler{Source: source, opts: buildOptions(opts)}
}

// Report computes the reconciliation for driverName over period.
//
// Trips are partitioned by status class. ON-family trips run through the
// Calculator and eligible litres/cost are summed (litres are summed as
// already-rounded per-trip values). OFF trips count as off_status and are
// flagged when they carry distance. Other statuses count as other_status.
// Dispensed fuel is summed over every plate the driver used in the period.
//
// A failed registry read aborts the whole report.
func (r *Reconciler) Report(ctx context.Context, driverName string, period generic.Period) (*Report, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	driverName = fleet.NormalizeName(driverName)
	start := time.Now()

	var report *Report
	err := r.Source.Snapshot(ctx, func(reg fleet.Registry) error {
		var err error
		report, err = r.build(ctx, reg, driverName, period)
		return err
	})
	if err != nil {
		r.opts.logger.Error("reconciliation aborted",
			zap.String("driver", driverName),
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return nil, err
	}

	r.opts.metrics.observeReconciliation(time.Since(start))
	r.opts.logger.Info("reconciliation complete",
		zap.String("driver", driverName),
		zap.String("period", period.String()),
		zap.Int("trips", report.TripCount),
		zap.Int("eligible", report.EligibleCount),
		zap.String("quota_litres", report.QuotaLitres.Value.StringFixed(2)),
		zap.String("delta_litres", report.DeltaLitres.Value.StringFixed(2)),
		zap.Int("anomalies", len(report.Anomalies)),
	)
	return report, nil
}

func (r *Reconciler) build(ctx context.Context, reg fleet.Registry, driverName string, period generic.Period) (*Report, error) {
	report := newReport(driverName, period)

	trips, err := reg.Trips(ctx, fleet.TripFilter{DriverName: driverName, Period: period})
	if err != nil {
		return nil, err
	}

	calc := NewCalculator(reg, WithLogger(r.opts.logger), WithMetrics(r.opts.metrics))
	plates := make(map[string]bool)

	for _, trip := range trips {
		if p := fleet.NormalizePlate(trip.Plate); p != "" {
			plates[p] = true
		}

		line := TripLine{Trip: trip, Class: fleet.ClassifyStatus(trip.Status)}
		switch line.Class {
		case fleet.StatusOff:
			line.Skip = SkipOffStatus
			if trip.DistanceKm.IsPositive() {
				report.Anomalies = append(report.Anomalies, Anomaly{
					TripID:  trip.ID,
					Date:    trip.Date,
					Kind:    AnomalyOffWithDistance,
					Message: fmt.Sprintf("status OFF but %s km logged", trip.DistanceKm.String()),
				})
			}
		case fleet.StatusOther:
			line.Skip = SkipOtherStatus
		case fleet.StatusOn:
			res, err := calc.Calculate(ctx, trip)
			if err != nil {
				return nil, err
			}
			line.Result = &res
			line.Skip = res.Skip
			report.addAnomalies(trip, res)
			if res.Eligible() {
				report.EligibleCount++
				report.QuotaLitres = report.QuotaLitres.Add(generic.NewAmountFromDecimal(res.Litres, generic.UnitLitres))
				report.QuotaCost = report.QuotaCost.Add(generic.NewAmountFromDecimal(res.Cost, generic.UnitCurrency))
			}
		}

		if line.Skip != SkipNone {
			report.SkipCounts[line.Skip]++
		}

		price, err := r.routePrice(ctx, calc, trip)
		if err != nil {
			return nil, err
		}
		line.RoutePrice = price

		report.Lines = append(report.Lines, line)
	}
	report.TripCount = len(trips)

	for p := range plates {
		report.Plates = append(report.Plates, p)
	}
	sort.Strings(report.Plates)

	if len(report.Plates) > 0 {
		totals, err := reg.FuelDispensed(ctx, report.Plates, period)
		if err != nil {
			return nil, err
		}
		report.DispensedLitres = generic.NewAmountFromDecimal(totals.Litres, generic.UnitLitres)
		report.DispensedCost = generic.NewAmountFromDecimal(totals.Cost, generic.UnitCurrency)
	}

	report.DeltaLitres = report.QuotaLitres.Sub(report.DispensedLitres)
	report.DeltaCost = report.QuotaCost.Sub(report.DispensedCost)
	return report, nil
}

func (r *Reconciler) routePrice(ctx context.Context, calc *Calculator, trip fleet.TripRecord) (*decimal.Decimal, error) {
	if trip.Date == nil {
		return nil, nil
	}
	route, err := calc.Routes.FindRoute(ctx, trip.RouteCode, trip.RouteName)
	if err != nil || route == nil {
		return nil, err
	}
	return calc.Prices.RoutePriceAsOf(ctx, route.ID, *trip.Date)
}

func (rep *Report) addAnomalies(trip fleet.TripRecord, res Result) {
	if res.Assignment.Matches > 1 {
		rep.Anomalies = append(rep.Anomalies, Anomaly{
			TripID:  trip.ID,
			Date:    trip.Date,
			Kind:    AnomalyDuplicateAssignment,
			Message: fmt.Sprintf("%d assignment rows cover this trip", res.Assignment.Matches),
		})
	}
	if res.RouteLogEntries > 1 {
		rep.Anomalies = append(rep.Anomalies, Anomaly{
			TripID:  trip.ID,
			Date:    trip.Date,
			Kind:    AnomalyMultipleDailyLogs,
			Message: fmt.Sprintf("%d daily-log entries for route/day/plate", res.RouteLogEntries),
		})
	}
}
