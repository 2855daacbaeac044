package quota_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/memory"
)

// januaryFleet adds a month of An's trips to the reference fleet:
//
//	t1 2026-01-10 V1 Onl 150 km  -> 30.00 L, 540,000
//	t2 2026-01-11 V1 OFF  40 km  -> off_status + anomaly
//	t3 2026-01-12 V1 ON    0 km  -> no_distance
//	t4 2026-01-13 P1 ON  100 km  -> not_owned_fleet
//	t5 2026-01-14 V1 pending     -> other_status
//	t6 2026-01-20 V1 online 45.5 -> 9.10 L, 163,800
//	x1 2026-02-01 V1 ON  (outside month)
//	y1 2026-01-10 V1 ON  (other driver)
func januaryFleet() *memory.Registry {
	reg := newFleet()
	reg.AddRoutePrice(fleet.RoutePrice{RouteID: "r1", ApplicationDate: date("2026-01-01"), Price: dec("250000")})

	add := func(id, day, plate, status, km string) {
		reg.AddTrip(fleet.TripRecord{ID: id, Date: datePtr(day), RouteCode: "R1", Plate: plate,
			DriverName: "An", DistanceKm: dec(km), Status: status})
	}
	add("t1", "2026-01-10", "V1", "Onl", "150")
	add("t2", "2026-01-11", "V1", "OFF", "40")
	add("t3", "2026-01-12", "V1", "ON", "0")
	add("t4", "2026-01-13", "P1", "ON", "100")
	add("t5", "2026-01-14", "V1", "pending", "80")
	add("t6", "2026-01-20", "V1", "online", "45.5")
	add("x1", "2026-02-01", "V1", "ON", "100")
	reg.AddTrip(fleet.TripRecord{ID: "y1", Date: datePtr("2026-01-10"), Plate: "V1",
		DriverName: "Binh", DistanceKm: dec("70"), Status: "ON"})

	reg.AddFuelRecord(fleet.FuelRecord{ID: "f1", Plate: "V1", Date: date("2026-01-09"), Litres: dec("25"), Cost: dec("450000")})
	reg.AddFuelRecord(fleet.FuelRecord{ID: "f2", Plate: "P1", Date: date("2026-01-13"), Litres: dec("10"), Cost: dec("180000")})
	reg.AddFuelRecord(fleet.FuelRecord{ID: "f3", Plate: "V1", Date: date("2026-02-02"), Litres: dec("99"), Cost: dec("1")})
	return reg
}

func january() generic.Period { return generic.MonthPeriod(2026, time.January) }

func TestReport_Totals(t *testing.T) {
	// GIVEN: A month of mixed trips for An
	// WHEN: Reconciling January
	// THEN: Only eligible trips are summed, dispensed fuel covers V1 and P1

	rep, err := quota.NewReconciler(januaryFleet()).Report(context.Background(), "An", january())
	require.NoError(t, err)

	assert.Equal(t, 6, rep.TripCount)
	assert.Equal(t, 2, rep.EligibleCount)
	assert.Equal(t, "39.10", rep.QuotaLitres.Value.StringFixed(2))
	assert.True(t, rep.QuotaCost.Value.Equal(dec("703800")), "cost = %s", rep.QuotaCost.Value)

	assert.Equal(t, []string{"P1", "V1"}, rep.Plates)
	assert.True(t, rep.DispensedLitres.Value.Equal(dec("35")))
	assert.True(t, rep.DispensedCost.Value.Equal(dec("630000")))
	assert.Equal(t, "4.10", rep.DeltaLitres.Value.StringFixed(2))
	assert.True(t, rep.DeltaCost.Value.Equal(dec("73800")))
}

func TestReport_SkipCounters(t *testing.T) {
	rep, err := quota.NewReconciler(januaryFleet()).Report(context.Background(), "An", january())
	require.NoError(t, err)

	assert.Equal(t, 1, rep.SkipCounts[quota.SkipOffStatus])
	assert.Equal(t, 1, rep.SkipCounts[quota.SkipNoDistance])
	assert.Equal(t, 1, rep.SkipCounts[quota.SkipNotOwnedFleet])
	assert.Equal(t, 1, rep.SkipCounts[quota.SkipOtherStatus])
	assert.Equal(t, 0, rep.SkipCounts[quota.SkipNoPrice])
	assert.Equal(t, 0, rep.SkipCounts[quota.SkipNoConsumptionNorm])

	// Every counter is present even at zero.
	for _, r := range quota.AllSkipReasons {
		_, ok := rep.SkipCounts[r]
		assert.True(t, ok, "missing counter %s", r)
	}
}

func TestReport_OffWithDistanceFlagged(t *testing.T) {
	rep, err := quota.NewReconciler(januaryFleet()).Report(context.Background(), "An", january())
	require.NoError(t, err)

	require.Len(t, rep.Anomalies, 1)
	assert.Equal(t, quota.AnomalyOffWithDistance, rep.Anomalies[0].Kind)
	assert.Equal(t, "t2", rep.Anomalies[0].TripID)
}

func TestReport_LinesCarryResultsAndRoutePrice(t *testing.T) {
	rep, err := quota.NewReconciler(januaryFleet()).Report(context.Background(), "An", january())
	require.NoError(t, err)
	require.Len(t, rep.Lines, 6)

	first := rep.Lines[0]
	assert.Equal(t, "t1", first.Trip.ID)
	require.NotNil(t, first.Result)
	assert.Equal(t, "30.00", first.Result.Litres.StringFixed(2))
	require.NotNil(t, first.RoutePrice)
	assert.True(t, first.RoutePrice.Equal(dec("250000")))

	off := rep.Lines[1]
	assert.Equal(t, fleet.StatusOff, off.Class)
	assert.Nil(t, off.Result, "OFF trips are not computed")
	assert.Equal(t, quota.SkipOffStatus, off.Skip)
}

func TestReport_SumsRoundedPerTripLitres(t *testing.T) {
	// Three trips of 10.025 km each round to 2.01 L; the total is 6.03 L,
	// not round(30.075 * 20 / 100, 2) = 6.02.
	reg := newFleet()
	for i, day := range []string{"2026-01-10", "2026-01-11", "2026-01-12"} {
		reg.AddTrip(fleet.TripRecord{ID: string(rune('a' + i)), Date: datePtr(day), Plate: "V1",
			DriverName: "An", DistanceKm: dec("10.025"), Status: "ON"})
	}

	rep, err := quota.NewReconciler(reg).Report(context.Background(), "An", january())
	require.NoError(t, err)

	assert.Equal(t, "6.03", rep.QuotaLitres.Value.StringFixed(2))
}

func TestReport_DuplicateAssignmentAndDailyLogAnomalies(t *testing.T) {
	reg := newFleet()
	reg.AddAssignment(fleet.Assignment{ID: "a1-dup", VehicleID: "v1", DriverID: "d-an", AssignmentDate: date("2026-01-02")})
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "ON"})
	reg.AddDailyLog(fleet.DailyLog{ID: "l2", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "ON"})
	reg.AddTrip(referenceTrip())

	rep, err := quota.NewReconciler(reg).Report(context.Background(), "An", january())
	require.NoError(t, err)

	kinds := make([]quota.AnomalyKind, 0, len(rep.Anomalies))
	for _, a := range rep.Anomalies {
		kinds = append(kinds, a.Kind)
	}
	assert.ElementsMatch(t, []quota.AnomalyKind{quota.AnomalyDuplicateAssignment, quota.AnomalyMultipleDailyLogs}, kinds)
	assert.Equal(t, 1, rep.EligibleCount, "anomalies never change results")
}

func TestReport_NoTrips(t *testing.T) {
	rep, err := quota.NewReconciler(newFleet()).Report(context.Background(), "An", january())
	require.NoError(t, err)

	assert.Zero(t, rep.TripCount)
	assert.Empty(t, rep.Plates)
	assert.True(t, rep.DeltaLitres.Value.IsZero())
}

func TestReport_InvalidPeriod(t *testing.T) {
	bad := generic.Period{Start: date("2026-02-01"), End: date("2026-01-01")}
	_, err := quota.NewReconciler(newFleet()).Report(context.Background(), "An", bad)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestReport_RegistryUnavailable_AbortsBatch(t *testing.T) {
	// GIVEN: The store fails mid-way
	// THEN: No report at all, rather than one full of zeroes

	reg := januaryFleet()
	reg.Fail(errors.New("i/o timeout"))

	rep, err := quota.NewReconciler(reg).Report(context.Background(), "An", january())

	assert.Nil(t, rep)
	assert.True(t, generic.IsRegistryUnavailable(err))
}

func TestReport_SnapshotIgnoresLaterWrites(t *testing.T) {
	// A price appended after the snapshot was taken is not seen by the batch.
	reg := januaryFleet()

	err := reg.Snapshot(context.Background(), func(snap fleet.Registry) error {
		reg.AddFuelPrice(date("2026-01-10"), dec("99999"))
		calc := quota.NewCalculator(snap)
		res, err := calc.Calculate(context.Background(), referenceTrip())
		if err != nil {
			return err
		}
		assert.True(t, res.FuelPrice.Equal(dec("18000")))
		return nil
	})
	require.NoError(t, err)
}

func TestReport_RecordsMetrics(t *testing.T) {
	metrics := quota.NewMetrics(prometheus.NewRegistry())

	_, err := quota.NewReconciler(januaryFleet(), quota.WithMetrics(metrics)).
		Report(context.Background(), "An", january())
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.TripsEvaluated.WithLabelValues("eligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TripsEvaluated.WithLabelValues(string(quota.SkipNotOwnedFleet))))
	assert.InDelta(t, 39.10, testutil.ToFloat64(metrics.Litres), 0.0001)
}
