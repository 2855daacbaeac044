package quota

import (
	"context"

	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// Resolver decides whether a vehicle is validly assigned to a driver on a
// date. Plate and name strings from the trip are resolved to registry
// records first; everything after that works on registry ids.
type Resolver struct {
	Vehicles    fleet.VehicleReader
	Drivers     fleet.DriverReader
	Assignments fleet.AssignmentReader
}

// Resolve runs the checks in order and stops at the first failure:
//
//  1. plate present                     MissingPlate
//  2. driver name present               MissingDriver
//  3. date present                      MissingDate
//  4. vehicle exists and is active      VehicleNotFound
//  5. vehicle is not a partner vehicle  PartnerVehicle
//  6. driver exists and is active       DriverNotFound
//  7. an assignment of this vehicle to this driver covers the date,
//     else NeverAssigned if the vehicle has no assignment rows at all,
//     else WrongDriverOrPeriod
//
// Assignment rows are filtered, never assumed unique: overlapping rows for
// the same pair are counted in Resolution.Matches.
func (r *Resolver) Resolve(ctx context.Context, plate, driverName string, date *generic.TimePoint) (Resolution, error) {
	plate = fleet.NormalizePlate(plate)
	driverName = fleet.NormalizeName(driverName)

	switch {
	case plate == "":
		return invalid(ReasonMissingPlate), nil
	case driverName == "":
		return invalid(ReasonMissingDriver), nil
	case date == nil || date.IsZero():
		return invalid(ReasonMissingDate), nil
	}

	vehicle, err := r.Vehicles.VehicleByPlate(ctx, plate)
	if err != nil {
		return Resolution{}, err
	}
	if vehicle == nil || !vehicle.Active {
		return invalid(ReasonVehicleNotFound), nil
	}
	if vehicle.Type == fleet.PartnerFleet {
		res := invalid(ReasonPartnerVehicle)
		res.Vehicle = vehicle
		return res, nil
	}

	driver, err := r.Drivers.DriverByName(ctx, driverName)
	if err != nil {
		return Resolution{}, err
	}
	if driver == nil || !driver.Active {
		res := invalid(ReasonDriverNotFound)
		res.Vehicle = vehicle
		return res, nil
	}

	assignments, err := r.Assignments.AssignmentsForVehicle(ctx, vehicle.ID)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Vehicle: vehicle, Driver: driver}
	if len(assignments) == 0 {
		res.Status = AssignmentInvalid
		res.Reason = ReasonNeverAssigned
		return res, nil
	}

	for i := range assignments {
		a := assignments[i]
		if a.DriverID != driver.ID || !a.IsActive(*date) {
			continue
		}
		res.Matches++
		// Latest start wins when rows overlap.
		if res.Assignment == nil || a.AssignmentDate.AfterOrEqual(res.Assignment.AssignmentDate) {
			res.Assignment = &a
		}
	}

	if res.Matches == 0 {
		res.Status = AssignmentInvalid
		res.Reason = ReasonWrongDriverOrPeriod
		return res, nil
	}
	res.Status = AssignmentValid
	return res, nil
}
