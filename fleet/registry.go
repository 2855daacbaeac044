/*
registry.go - Read-only registry interfaces consumed by the quota engine

PURPOSE:
  The engine never reaches into a global store. Every registry it needs is
  passed in explicitly as one of these interfaces, so computations are pure
  functions of (trip, registry snapshot) and tests run against in-memory
  fixtures.

LOOKUP CONTRACT:
  Single-record lookups return (nil, nil) when the record does not exist.
  A non-nil error always means the store could not answer and must be a
  *generic.RegistryError. Callers treat "not found" as data and errors as
  outages.

CONSISTENCY:
  A batch must read through one Snapshot so that a price append or an
  assignment handover landing mid-batch cannot produce a mixed report.

IMPLEMENTATIONS:
  - store/memory: In-memory fixtures
  - store/sqlite: SQLite, snapshot = one read transaction
*/
package fleet

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/generic"
)

type VehicleReader interface {
	// VehicleByPlate looks a vehicle up by normalised plate, active or not.
	VehicleByPlate(ctx context.Context, plate string) (*Vehicle, error)
}

type DriverReader interface {
	// DriverByName looks a driver up by normalised name, active or not.
	DriverByName(ctx context.Context, name string) (*Driver, error)
}

type AssignmentReader interface {
	// AssignmentsForVehicle returns every assignment ever recorded for the
	// vehicle, for any driver, ordered by AssignmentDate.
	AssignmentsForVehicle(ctx context.Context, vehicleID string) ([]Assignment, error)
}

// RouteReader returns an active route ahead of retired ones sharing the
// same code or name.
type RouteReader interface {
	RouteByCode(ctx context.Context, code string) (*Route, error)
	RouteByName(ctx context.Context, name string) (*Route, error)

	// DailyLogs returns all daily status entries for (route, date, plate).
	DailyLogs(ctx context.Context, routeID string, date generic.TimePoint, plate string) ([]DailyLog, error)
}

type FuelPriceReader interface {
	// FuelPriceHistory returns the full diesel price series.
	FuelPriceHistory(ctx context.Context) (generic.Series[decimal.Decimal], error)
}

type RoutePriceReader interface {
	// RoutePriceHistory returns the price series of one route.
	RoutePriceHistory(ctx context.Context, routeID string) (generic.Series[decimal.Decimal], error)
}

// TripFilter selects trip records for a batch.
type TripFilter struct {
	DriverName string
	Period     generic.Period

	// Statuses restricts results to these classes. Empty means all.
	Statuses []StatusClass
}

type TripReader interface {
	// Trips returns matching records ordered by date, then id.
	Trips(ctx context.Context, filter TripFilter) ([]TripRecord, error)
	TripByID(ctx context.Context, id string) (*TripRecord, error)
}

type FuelDispensedReader interface {
	// FuelDispensed sums dispensed litres and cost for the plates over the period.
	FuelDispensed(ctx context.Context, plates []string, period generic.Period) (FuelTotals, error)
}

// Registry is everything one quota computation or batch may read.
type Registry interface {
	VehicleReader
	DriverReader
	AssignmentReader
	RouteReader
	FuelPriceReader
	RoutePriceReader
	TripReader
	FuelDispensedReader
}

// Snapshotter runs fn against a consistent point-in-time view of the registry.
type Snapshotter interface {
	Snapshot(ctx context.Context, fn func(Registry) error) error
}

// MatchesStatuses reports whether status falls into one of classes.
// An empty class list matches everything.
func MatchesStatuses(status string, classes []StatusClass) bool {
	if len(classes) == 0 {
		return true
	}
	c := ClassifyStatus(status)
	for _, want := range classes {
		if c == want {
			return true
		}
	}
	return false
}
