/*
Package fleet defines the fleet-operations data model consumed by the quota engine.

PURPOSE:
  Vehicles, drivers, vehicle-to-driver assignments, routes with their daily
  status log, trip records, price series and dispensed-fuel records. Trip
  records reference vehicles and drivers by plate and name strings, not by
  registry ids; the engine resolves those strings once per trip.

KEY CONCEPTS:
  VehicleType:
    OwnedFleet vehicles may accrue fuel quota. PartnerFleet vehicles never do.

  Assignment:
    A half-open interval [AssignmentDate, EndDate) during which a vehicle is
    operated by a driver. EndDate == nil means the assignment is current.
    Assignments are never deleted, only closed.

  TripRecord:
    One logged trip. Status is the authoritative switch for inclusion in
    quota computation (see status.go).

SEE ALSO:
  - registry.go: Read-only interfaces the engine depends on
  - status.go: ON/OFF status normalisation
*/
package fleet

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/generic"
)

// =============================================================================
// VEHICLES
// =============================================================================

type VehicleType string

const (
	OwnedFleet   VehicleType = "owned"
	PartnerFleet VehicleType = "partner"
)

// Valid reports whether t is a known ownership class.
func (t VehicleType) Valid() bool {
	return t == OwnedFleet || t == PartnerFleet
}

type Vehicle struct {
	ID    string
	Plate string
	Type  VehicleType

	// ConsumptionNorm is litres per 100 km. nil when no norm was recorded.
	ConsumptionNorm *decimal.Decimal
	Active          bool
}

// =============================================================================
// DRIVERS
// =============================================================================

type Driver struct {
	ID     string
	Name   string
	Active bool
}

// =============================================================================
// ASSIGNMENTS - Vehicle-to-driver intervals
// =============================================================================

type Assignment struct {
	ID             string
	VehicleID      string
	DriverID       string
	AssignmentDate generic.TimePoint  // inclusive
	EndDate        *generic.TimePoint // exclusive, nil = open-ended
}

// IsActive returns true if the assignment covers the given day.
// The end date is exclusive: a handover on day D belongs to the next driver.
func (a Assignment) IsActive(at generic.TimePoint) bool {
	if at.Before(a.AssignmentDate) {
		return false
	}
	if a.EndDate != nil && !at.Before(*a.EndDate) {
		return false
	}
	return true
}

// =============================================================================
// ROUTES
// =============================================================================

type Route struct {
	ID     string
	Code   string
	Name   string
	Active bool
}

// DailyLog is one per-day operational status entry for a route and vehicle.
// Several entries may exist for the same (route, date, plate).
type DailyLog struct {
	ID      string
	RouteID string
	Date    generic.TimePoint
	Plate   string
	Status  string
}

// RoutePrice is one step of a route's effective-dated price series.
type RoutePrice struct {
	RouteID         string
	ApplicationDate generic.TimePoint
	Price           decimal.Decimal
}

// =============================================================================
// TRIPS AND FUEL
// =============================================================================

type TripRecord struct {
	ID string

	// Date is nil when the entry was logged without one.
	Date       *generic.TimePoint
	RouteCode  string
	RouteName  string
	Plate      string
	DriverName string
	DistanceKm decimal.Decimal
	Status     string
	TripCode   string
	Notes      string
}

// FuelRecord is fuel actually dispensed to a vehicle. It never feeds the
// quota computation; it is only compared against it.
type FuelRecord struct {
	ID     string
	Plate  string
	Date   generic.TimePoint
	Litres decimal.Decimal
	Cost   decimal.Decimal
}

// FuelTotals is the sum of dispensed fuel over a set of plates and a period.
type FuelTotals struct {
	Litres decimal.Decimal
	Cost   decimal.Decimal
}

// =============================================================================
// KEY NORMALISATION
// =============================================================================

// NormalizePlate trims and upper-cases a plate so "51c-123.45 " and
// "51C-123.45" resolve to the same vehicle.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// NormalizeName trims a driver name and collapses inner whitespace runs.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
