package quota_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/memory"
)

func calculate(t *testing.T, reg *memory.Registry, trip fleet.TripRecord) quota.Result {
	t.Helper()
	res, err := quota.NewCalculator(reg).Calculate(context.Background(), trip)
	require.NoError(t, err)
	return res
}

func assertZero(t *testing.T, res quota.Result) {
	t.Helper()
	assert.True(t, res.Litres.IsZero(), "litres should be 0, got %s", res.Litres)
	assert.True(t, res.Cost.IsZero(), "cost should be 0, got %s", res.Cost)
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestCalculate_ReferenceTrip(t *testing.T) {
	// GIVEN: V1 (owned, 20 L/100km), diesel 18,000 effective on 2026-01-10,
	//        V1 assigned to An from 2026-01-01 open-ended
	// WHEN: An drives 150 km on V1 on 2026-01-10 with status "Onl"
	// THEN: 30.00 litres, 540,000 cost, assignment Valid, no warning

	res := calculate(t, newFleet(), referenceTrip())

	assert.Equal(t, quota.SkipNone, res.Skip)
	assert.True(t, res.Eligible())
	assert.Equal(t, "30.00", res.Litres.StringFixed(2))
	assert.True(t, res.Cost.Equal(dec("540000")), "cost = %s", res.Cost)
	require.NotNil(t, res.FuelPrice)
	assert.True(t, res.FuelPrice.Equal(dec("18000")))
	require.NotNil(t, res.ConsumptionNorm)
	assert.True(t, res.ConsumptionNorm.Equal(dec("20")))
	assert.Equal(t, "Valid", res.Assignment.String())
	assert.Empty(t, res.Warning)
	assert.Equal(t, "t1", res.TripID)
}

func TestCalculate_UsesPriceEffectiveOnTripDate(t *testing.T) {
	// GIVEN: Price changed from 17,000 to 18,000 on 2026-01-05
	// WHEN: Trip on 2026-01-04
	// THEN: Old price applies

	trip := referenceTrip()
	trip.Date = datePtr("2026-01-04")

	res := calculate(t, newFleet(), trip)

	require.NotNil(t, res.FuelPrice)
	assert.True(t, res.FuelPrice.Equal(dec("17000")))
	assert.True(t, res.Cost.Equal(dec("510000")), "cost = %s", res.Cost)
}

// =============================================================================
// SHORT-CIRCUITS
// =============================================================================

func TestCalculate_OffStatus_AlwaysZero(t *testing.T) {
	for _, status := range []string{"OFF", "off", "  Off  "} {
		t.Run(status, func(t *testing.T) {
			trip := referenceTrip()
			trip.Status = status
			trip.DistanceKm = dec("500")

			res := calculate(t, newFleet(), trip)

			assertZero(t, res)
			assert.Equal(t, quota.SkipOffStatus, res.Skip)
			assert.Empty(t, res.Warning, "OFF is an expected path")
			assert.Equal(t, quota.AssignmentUnchecked, res.Assignment.Status)
		})
	}
}

func TestCalculate_OffStatus_EvenWithBrokenRegistry(t *testing.T) {
	// OFF short-circuits before any registry read.
	reg := newFleet()
	reg.Fail(errors.New("connection refused"))

	trip := referenceTrip()
	trip.Status = "OFF"

	res := calculate(t, reg, trip)
	assertZero(t, res)
}

func TestCalculate_NonPositiveDistance(t *testing.T) {
	for _, d := range []string{"0", "-5"} {
		t.Run(d, func(t *testing.T) {
			trip := referenceTrip()
			trip.DistanceKm = dec(d)

			res := calculate(t, newFleet(), trip)

			assertZero(t, res)
			assert.Equal(t, quota.SkipNoDistance, res.Skip)
			assert.Empty(t, res.Warning)
		})
	}
}

func TestCalculate_MissingDateOrPlate(t *testing.T) {
	noDate := referenceTrip()
	noDate.Date = nil

	noPlate := referenceTrip()
	noPlate.Plate = "   "

	for name, trip := range map[string]fleet.TripRecord{"no date": noDate, "no plate": noPlate} {
		t.Run(name, func(t *testing.T) {
			res := calculate(t, newFleet(), trip)
			assertZero(t, res)
			assert.Equal(t, quota.SkipMissingData, res.Skip)
			assert.Empty(t, res.Warning)
		})
	}
}

func TestCalculate_RouteOff(t *testing.T) {
	// GIVEN: The daily log marks R1 OFF for V1 on the trip date
	// WHEN: Calculating an ON trip on R1
	// THEN: Zero with the route-OFF warning

	reg := newFleet()
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "OFF"})

	res := calculate(t, reg, referenceTrip())

	assertZero(t, res)
	assert.Equal(t, quota.SkipRouteOff, res.Skip)
	assert.Equal(t, quota.WarnRouteOff, res.Warning)
}

func TestCalculate_RouteOff_FallsBackToRouteName(t *testing.T) {
	reg := newFleet()
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "off"})

	trip := referenceTrip()
	trip.RouteCode = ""
	trip.RouteName = "City Loop"

	res := calculate(t, reg, trip)
	assert.Equal(t, quota.SkipRouteOff, res.Skip)
}

func TestCalculate_RouteOff_NamePrefersActiveRoute(t *testing.T) {
	// GIVEN: A retired route registered before the active one, both named "City Loop"
	// WHEN: Calculating a trip identified only by route name while the active route is OFF
	// THEN: The active route is used and the trip is zeroed

	reg := newFleetWithRoutes(
		fleet.Route{ID: "r0", Code: "R0-OLD", Name: "City Loop", Active: false},
		fleet.Route{ID: "r1", Code: "R1", Name: "City Loop", Active: true},
	)
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "OFF"})

	trip := referenceTrip()
	trip.RouteCode = ""
	trip.RouteName = "City Loop"

	res := calculate(t, reg, trip)

	assertZero(t, res)
	assert.Equal(t, quota.SkipRouteOff, res.Skip)
}

func TestCalculate_RouteOnAndOffEntries_NotOff(t *testing.T) {
	reg := newFleet()
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "OFF"})
	reg.AddDailyLog(fleet.DailyLog{ID: "l2", RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: "ON"})

	res := calculate(t, reg, referenceTrip())

	assert.True(t, res.Eligible())
	assert.Equal(t, 2, res.RouteLogEntries)
}

func TestCalculate_PartnerVehicle(t *testing.T) {
	// GIVEN: Same trip on a partner vehicle
	// THEN: Zero, Invalid(PartnerVehicle), litres not computed

	trip := referenceTrip()
	trip.Plate = "P1"

	res := calculate(t, newFleet(), trip)

	assertZero(t, res)
	assert.Equal(t, quota.AssignmentInvalid, res.Assignment.Status)
	assert.Equal(t, quota.ReasonPartnerVehicle, res.Assignment.Reason)
	assert.Equal(t, "Invalid(PartnerVehicle)", res.Assignment.String())
	assert.Equal(t, quota.SkipNotOwnedFleet, res.Skip)
	assert.Nil(t, res.ConsumptionNorm)
	assert.Nil(t, res.FuelPrice)
}

func TestCalculate_WrongDriver_SuppressesLitres(t *testing.T) {
	trip := referenceTrip()
	trip.DriverName = "Binh"

	res := calculate(t, newFleet(), trip)

	assertZero(t, res)
	assert.Equal(t, quota.ReasonWrongDriverOrPeriod, res.Assignment.Reason)
	assert.Equal(t, quota.SkipInvalidAssignment, res.Skip)
	assert.Equal(t, quota.ReasonWrongDriverOrPeriod.Message(), res.Warning)
}

func TestCalculate_NoConsumptionNorm(t *testing.T) {
	for name, norm := range map[string]string{"missing": "", "zero": "0"} {
		t.Run(name, func(t *testing.T) {
			reg := newFleet()
			v := fleet.Vehicle{ID: "v1", Plate: "V1", Type: fleet.OwnedFleet, Active: true}
			if norm != "" {
				v.ConsumptionNorm = decPtr(norm)
			}
			reg.AddVehicle(v)

			res := calculate(t, reg, referenceTrip())

			assertZero(t, res)
			assert.Equal(t, quota.SkipNoConsumptionNorm, res.Skip)
			assert.Equal(t, quota.WarnNoNorm, res.Warning)
			assert.Equal(t, quota.AssignmentValid, res.Assignment.Status)
			assert.Nil(t, res.FuelPrice)
		})
	}
}

func TestCalculate_NoFuelPrice(t *testing.T) {
	// GIVEN: No price entry on or before 2026-01-10
	// THEN: litres 0, norm populated, cost 0, warning "no fuel price for date"

	reg := memory.New()
	reg.AddVehicle(fleet.Vehicle{ID: "v1", Plate: "V1", Type: fleet.OwnedFleet, ConsumptionNorm: decPtr("20"), Active: true})
	reg.AddDriver(fleet.Driver{ID: "d-an", Name: "An", Active: true})
	reg.AddAssignment(fleet.Assignment{ID: "a1", VehicleID: "v1", DriverID: "d-an", AssignmentDate: date("2026-01-01")})
	reg.AddFuelPrice(date("2026-02-01"), dec("19000"))

	res := calculate(t, reg, referenceTrip())

	assertZero(t, res)
	require.NotNil(t, res.ConsumptionNorm)
	assert.True(t, res.ConsumptionNorm.Equal(dec("20")))
	assert.Nil(t, res.FuelPrice)
	assert.Equal(t, quota.WarnNoPrice, res.Warning)
	assert.Equal(t, "no fuel price for date", res.Warning)
	assert.Equal(t, quota.SkipNoPrice, res.Skip)
}

// =============================================================================
// ROUNDING
// =============================================================================

func TestLitres_RoundsHalfUpToTwoPlaces(t *testing.T) {
	// 10.025 km * 20 / 100 = 2.005 -> 2.01
	assert.Equal(t, "2.01", quota.Litres(dec("10.025"), dec("20")).StringFixed(2))
	// 10.0249 km * 20 / 100 = 2.00498 -> 2.00
	assert.Equal(t, "2.00", quota.Litres(dec("10.0249"), dec("20")).StringFixed(2))
}

func TestCost_RoundsHalfUpToWholeUnits(t *testing.T) {
	// 0.25 L * 18,002 = 4500.5 -> 4501
	assert.True(t, quota.Cost(dec("0.25"), dec("18002")).Equal(dec("4501")))
	// 0.25 L * 18,001 = 4500.25 -> 4500
	assert.True(t, quota.Cost(dec("0.25"), dec("18001")).Equal(dec("4500")))
}

func TestCalculate_CostUsesRoundedLitres(t *testing.T) {
	// 10.025 km -> 2.01 L (not 2.005) -> 2.01 * 18,000 = 36,180
	trip := referenceTrip()
	trip.DistanceKm = dec("10.025")

	res := calculate(t, newFleet(), trip)

	assert.Equal(t, "2.01", res.Litres.StringFixed(2))
	assert.True(t, res.Cost.Equal(dec("36180")), "cost = %s", res.Cost)
}

// =============================================================================
// PURITY AND FAILURE
// =============================================================================

func TestCalculate_Idempotent(t *testing.T) {
	reg := newFleet()
	calc := quota.NewCalculator(reg)
	ctx := context.Background()

	first, err := calc.Calculate(ctx, referenceTrip())
	require.NoError(t, err)
	second, err := calc.Calculate(ctx, referenceTrip())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_RegistryUnavailable_IsError(t *testing.T) {
	// GIVEN: The store cannot be reached
	// WHEN: Calculating an ON trip
	// THEN: A registry error, never a silent zero

	reg := newFleet()
	reg.Fail(errors.New("connection refused"))

	_, err := quota.NewCalculator(reg).Calculate(context.Background(), referenceTrip())

	require.Error(t, err)
	assert.True(t, generic.IsRegistryUnavailable(err))
	var regErr *generic.RegistryError
	assert.ErrorAs(t, err, &regErr)
}
