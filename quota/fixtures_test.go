package quota_test

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/store/memory"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func datePtr(s string) *generic.TimePoint {
	d := date(s)
	return &d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// newFleet builds the reference registry:
//   - V1: owned, 20 L/100km, assigned to "An" from 2026-01-01, open-ended
//   - P1: partner vehicle, 25 L/100km, assigned to "An" from 2026-01-01
//   - diesel 17,000 from 2025-12-01, 18,000 from 2026-01-05
//   - route R1 "City Loop", active, no daily logs
func newFleet() *memory.Registry {
	return newFleetWithRoutes(fleet.Route{ID: "r1", Code: "R1", Name: "City Loop", Active: true})
}

// newFleetWithRoutes builds the same fleet with routes registered in order.
func newFleetWithRoutes(routes ...fleet.Route) *memory.Registry {
	reg := memory.New()

	reg.AddVehicle(fleet.Vehicle{ID: "v1", Plate: "V1", Type: fleet.OwnedFleet, ConsumptionNorm: decPtr("20"), Active: true})
	reg.AddVehicle(fleet.Vehicle{ID: "p1", Plate: "P1", Type: fleet.PartnerFleet, ConsumptionNorm: decPtr("25"), Active: true})
	reg.AddDriver(fleet.Driver{ID: "d-an", Name: "An", Active: true})
	reg.AddDriver(fleet.Driver{ID: "d-binh", Name: "Binh", Active: true})

	reg.AddAssignment(fleet.Assignment{ID: "a1", VehicleID: "v1", DriverID: "d-an", AssignmentDate: date("2026-01-01")})
	reg.AddAssignment(fleet.Assignment{ID: "a2", VehicleID: "p1", DriverID: "d-an", AssignmentDate: date("2026-01-01")})

	reg.AddFuelPrice(date("2025-12-01"), dec("17000"))
	reg.AddFuelPrice(date("2026-01-05"), dec("18000"))

	for _, r := range routes {
		reg.AddRoute(r)
	}
	return reg
}

// referenceTrip is the worked example: 150 km on V1 by An on 2026-01-10.
func referenceTrip() fleet.TripRecord {
	return fleet.TripRecord{
		ID:         "t1",
		Date:       datePtr("2026-01-10"),
		RouteCode:  "R1",
		Plate:      "V1",
		DriverName: "An",
		DistanceKm: dec("150"),
		Status:     "Onl",
		TripCode:   "TC-001",
	}
}
