/*
Package quota computes the fuel quota owed for logged trips.

PURPOSE:
  For every trip the engine decides whether litres and cost should be
  attributed to the driver, based on the trip's status, the route's daily
  status, the vehicle-to-driver assignment valid on the trip date, the
  vehicle's consumption norm and the diesel price effective on that date.

KEY CONCEPTS:
  Result:
    Litres and cost due for one trip plus everything needed to explain it:
    resolved price and norm, a human-readable warning, the assignment
    resolution and a SkipReason when nothing is owed.

  Resolution:
    Outcome of the assignment check. Invalid resolutions carry a Reason that
    says which precondition failed first.

  SkipReason:
    Machine-readable reason a trip earned no quota. Batch reports count these.

NOTHING HERE IS AN ERROR:
  Missing prices, norms, routes or assignments are routine and surface as
  reasons. The only error path is a failed registry read, which is returned
  as-is so a storage outage is never reported as "no quota owed".

FLOW:
  Reconciler.Report
    -> Calculator.Calculate (per trip)
         -> RouteStatusChecker.Check
         -> Resolver.Resolve
         -> PriceLookup.FuelPriceAsOf -> generic.AsOf

SEE ALSO:
  - calculator.go: Decision sequence
  - reconcile.go: Driver/month batch report
*/
package quota

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
)

// =============================================================================
// ASSIGNMENT RESOLUTION
// =============================================================================

type AssignmentStatus string

const (
	// AssignmentUnchecked means the calculator stopped before resolving.
	AssignmentUnchecked AssignmentStatus = "unchecked"
	AssignmentValid     AssignmentStatus = "valid"
	AssignmentInvalid   AssignmentStatus = "invalid"
)

// Reason says why an assignment is invalid. Checks run in the order the
// constants are declared and stop at the first failure.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonMissingPlate        Reason = "MissingPlate"
	ReasonMissingDriver       Reason = "MissingDriver"
	ReasonMissingDate         Reason = "MissingDate"
	ReasonVehicleNotFound     Reason = "VehicleNotFound"
	ReasonPartnerVehicle      Reason = "PartnerVehicle"
	ReasonDriverNotFound      Reason = "DriverNotFound"
	ReasonNeverAssigned       Reason = "NeverAssigned"
	ReasonWrongDriverOrPeriod Reason = "WrongDriverOrPeriod"
)

var reasonMessages = map[Reason]string{
	ReasonMissingPlate:        "trip has no vehicle plate",
	ReasonMissingDriver:       "trip has no driver name",
	ReasonMissingDate:         "trip has no date",
	ReasonVehicleNotFound:     "vehicle not found or inactive",
	ReasonPartnerVehicle:      "partner vehicle, not eligible for quota",
	ReasonDriverNotFound:      "driver not found or inactive",
	ReasonNeverAssigned:       "vehicle was never assigned to any driver",
	ReasonWrongDriverOrPeriod: "vehicle not assigned to this driver on this date",
}

// Message is the operator-facing description of the reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

type Resolution struct {
	Status AssignmentStatus
	Reason Reason

	// Resolved registry records, filled in as far as the checks got.
	Vehicle    *fleet.Vehicle
	Driver     *fleet.Driver
	Assignment *fleet.Assignment

	// Matches counts assignment rows covering the trip date for this
	// vehicle and driver. More than one is a data-quality anomaly.
	Matches int
}

func (r Resolution) Valid() bool { return r.Status == AssignmentValid }

// String renders "Valid", "Invalid(PartnerVehicle)" or "Unchecked".
func (r Resolution) String() string {
	switch r.Status {
	case AssignmentValid:
		return "Valid"
	case AssignmentInvalid:
		return "Invalid(" + string(r.Reason) + ")"
	default:
		return "Unchecked"
	}
}

func invalid(reason Reason) Resolution {
	return Resolution{Status: AssignmentInvalid, Reason: reason}
}

// =============================================================================
// SKIP REASONS AND WARNINGS
// =============================================================================

type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipOffStatus         SkipReason = "off_status"
	SkipMissingData       SkipReason = "missing_data"
	SkipNoDistance        SkipReason = "no_distance"
	SkipRouteOff          SkipReason = "route_off"
	SkipNotOwnedFleet     SkipReason = "not_owned_fleet"
	SkipInvalidAssignment SkipReason = "invalid_assignment"
	SkipNoConsumptionNorm SkipReason = "no_consumption_norm"
	SkipNoPrice           SkipReason = "no_price"
	SkipOtherStatus       SkipReason = "other_status"
)

// AllSkipReasons lists every counter a reconciliation report carries.
var AllSkipReasons = []SkipReason{
	SkipOffStatus,
	SkipMissingData,
	SkipNoDistance,
	SkipRouteOff,
	SkipNotOwnedFleet,
	SkipInvalidAssignment,
	SkipNoConsumptionNorm,
	SkipNoPrice,
	SkipOtherStatus,
}

const (
	WarnRouteOff = "route OFF this day"
	WarnNoNorm   = "no consumption norm"
	WarnNoPrice  = "no fuel price for date"
)

// =============================================================================
// RESULT
// =============================================================================

// Result is the quota computed for one trip. Litres and Cost are zero
// whenever Skip is set.
type Result struct {
	TripID string

	Litres decimal.Decimal // rounded to 2 places
	Cost   decimal.Decimal // rounded to whole currency units

	FuelPrice       *decimal.Decimal
	ConsumptionNorm *decimal.Decimal
	Warning         string

	Assignment Resolution
	Skip       SkipReason

	// RouteLogEntries is how many daily-log entries were consulted for the
	// route-OFF check. More than one is reported as an anomaly.
	RouteLogEntries int
}

// Eligible reports whether quota was attributed.
func (r Result) Eligible() bool { return r.Skip == SkipNone }

func zeroResult(tripID string, skip SkipReason) Result {
	return Result{
		TripID:     tripID,
		Litres:     decimal.Zero,
		Cost:       decimal.Zero,
		Assignment: Resolution{Status: AssignmentUnchecked},
		Skip:       skip,
	}
}
