package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// reader implements fleet.Registry over either the database or a snapshot
// transaction.
type reader struct {
	q querier
}

var _ fleet.Registry = reader{}

// =============================================================================
// VEHICLES AND DRIVERS
// =============================================================================

func (r reader) VehicleByPlate(ctx context.Context, plate string) (*fleet.Vehicle, error) {
	var v fleet.Vehicle
	var vType string
	var norm sql.NullString
	err := r.q.QueryRowContext(ctx, `
		SELECT id, plate, vehicle_type, consumption_norm, active
		FROM vehicles WHERE plate = ?
	`, fleet.NormalizePlate(plate)).Scan(&v.ID, &v.Plate, &vType, &norm, &v.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, generic.WrapRegistry("vehicle by plate", err)
	}
	v.Type = fleet.VehicleType(vType)
	if v.ConsumptionNorm, err = parseDecimalPtr(norm); err != nil {
		return nil, generic.WrapRegistry("vehicle by plate", fmt.Errorf("consumption_norm: %w", err))
	}
	return &v, nil
}

func (r reader) DriverByName(ctx context.Context, name string) (*fleet.Driver, error) {
	var d fleet.Driver
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, active FROM employees WHERE name = ?
	`, fleet.NormalizeName(name)).Scan(&d.ID, &d.Name, &d.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, generic.WrapRegistry("driver by name", err)
	}
	return &d, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (r reader) AssignmentsForVehicle(ctx context.Context, vehicleID string) ([]fleet.Assignment, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, vehicle_id, driver_id, assignment_date, end_date
		FROM vehicle_assignments
		WHERE vehicle_id = ?
		ORDER BY assignment_date, created_at, id
	`, vehicleID)
	if err != nil {
		return nil, generic.WrapRegistry("assignments for vehicle", err)
	}
	defer rows.Close()

	result, err := scanAssignments(rows)
	if err != nil {
		return nil, generic.WrapRegistry("assignments for vehicle", err)
	}
	return result, nil
}

func scanAssignments(rows *sql.Rows) ([]fleet.Assignment, error) {
	var result []fleet.Assignment
	for rows.Next() {
		var a fleet.Assignment
		var start string
		var end sql.NullString
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.DriverID, &start, &end); err != nil {
			return nil, err
		}
		var err error
		if a.AssignmentDate, err = parseDate(start); err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		if a.EndDate, err = parseDatePtr(end); err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// =============================================================================
// ROUTES AND DAILY LOGS
// =============================================================================

func (r reader) RouteByCode(ctx context.Context, code string) (*fleet.Route, error) {
	return r.routeWhere(ctx, "route by code", "code = ?", code)
}

func (r reader) RouteByName(ctx context.Context, name string) (*fleet.Route, error) {
	return r.routeWhere(ctx, "route by name", "name = ?", name)
}

func (r reader) routeWhere(ctx context.Context, op, where string, arg any) (*fleet.Route, error) {
	var route fleet.Route
	err := r.q.QueryRowContext(ctx, `
		SELECT id, code, name, active FROM routes WHERE `+where+`
		ORDER BY active DESC, created_at, id LIMIT 1
	`, arg).Scan(&route.ID, &route.Code, &route.Name, &route.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, generic.WrapRegistry(op, err)
	}
	return &route, nil
}

func (r reader) DailyLogs(ctx context.Context, routeID string, date generic.TimePoint, plate string) ([]fleet.DailyLog, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, route_id, log_date, plate, status
		FROM daily_route_logs
		WHERE route_id = ? AND log_date = ? AND plate = ?
		ORDER BY created_at, id
	`, routeID, formatDate(date), fleet.NormalizePlate(plate))
	if err != nil {
		return nil, generic.WrapRegistry("daily logs", err)
	}
	defer rows.Close()

	var result []fleet.DailyLog
	for rows.Next() {
		var l fleet.DailyLog
		var d string
		if err := rows.Scan(&l.ID, &l.RouteID, &d, &l.Plate, &l.Status); err != nil {
			return nil, generic.WrapRegistry("daily logs", err)
		}
		if l.Date, err = parseDate(d); err != nil {
			return nil, generic.WrapRegistry("daily logs", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, generic.WrapRegistry("daily logs", err)
	}
	return result, nil
}

// =============================================================================
// PRICE HISTORIES
// =============================================================================

func (r reader) FuelPriceHistory(ctx context.Context) (generic.Series[decimal.Decimal], error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT application_date, unit_price
		FROM diesel_price_history
		ORDER BY application_date, created_at
	`)
	if err != nil {
		return nil, generic.WrapRegistry("fuel price history", err)
	}
	defer rows.Close()

	series, err := scanSeries(rows)
	if err != nil {
		return nil, generic.WrapRegistry("fuel price history", err)
	}
	return series, nil
}

func (r reader) RoutePriceHistory(ctx context.Context, routeID string) (generic.Series[decimal.Decimal], error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT application_date, price
		FROM route_prices
		WHERE route_id = ?
		ORDER BY application_date, created_at
	`, routeID)
	if err != nil {
		return nil, generic.WrapRegistry("route price history", err)
	}
	defer rows.Close()

	series, err := scanSeries(rows)
	if err != nil {
		return nil, generic.WrapRegistry("route price history", err)
	}
	return series, nil
}

func scanSeries(rows *sql.Rows) (generic.Series[decimal.Decimal], error) {
	var series generic.Series[decimal.Decimal]
	for rows.Next() {
		var d, v string
		if err := rows.Scan(&d, &v); err != nil {
			return nil, err
		}
		from, err := parseDate(d)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("price on %s: %w", d, err)
		}
		series = append(series, generic.Effective[decimal.Decimal]{From: from, Value: price})
	}
	return series, rows.Err()
}

// =============================================================================
// TRIPS
// =============================================================================

const tripColumns = `id, trip_date, route_code, route_name, plate, driver_name,
	distance_km, status, trip_code, notes`

// Trips filters on driver and period in SQL and on status class in Go, since
// classification trims and folds case.
func (r reader) Trips(ctx context.Context, filter fleet.TripFilter) ([]fleet.TripRecord, error) {
	query := `SELECT ` + tripColumns + ` FROM trips
		WHERE trip_date IS NOT NULL AND trip_date >= ? AND trip_date <= ?`
	args := []any{formatDate(filter.Period.Start), formatDate(filter.Period.End)}
	if driver := fleet.NormalizeName(filter.DriverName); driver != "" {
		query += ` AND driver_name = ?`
		args = append(args, driver)
	}
	query += ` ORDER BY trip_date, id`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, generic.WrapRegistry("trips", err)
	}
	defer rows.Close()

	var result []fleet.TripRecord
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, generic.WrapRegistry("trips", err)
		}
		if fleet.MatchesStatuses(t.Status, filter.Statuses) {
			result = append(result, *t)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, generic.WrapRegistry("trips", err)
	}
	return result, nil
}

func (r reader) TripByID(ctx context.Context, id string) (*fleet.TripRecord, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id)
	if err != nil {
		return nil, generic.WrapRegistry("trip by id", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, generic.WrapRegistry("trip by id", err)
		}
		return nil, nil
	}
	t, err := scanTrip(rows)
	if err != nil {
		return nil, generic.WrapRegistry("trip by id", err)
	}
	return t, nil
}

func scanTrip(rows *sql.Rows) (*fleet.TripRecord, error) {
	var t fleet.TripRecord
	var date sql.NullString
	var distance string
	if err := rows.Scan(&t.ID, &date, &t.RouteCode, &t.RouteName, &t.Plate, &t.DriverName,
		&distance, &t.Status, &t.TripCode, &t.Notes); err != nil {
		return nil, err
	}
	var err error
	if t.Date, err = parseDatePtr(date); err != nil {
		return nil, fmt.Errorf("trip %s: %w", t.ID, err)
	}
	if t.DistanceKm, err = decimal.NewFromString(distance); err != nil {
		return nil, fmt.Errorf("trip %s distance: %w", t.ID, err)
	}
	return &t, nil
}

// =============================================================================
// FUEL DISPENSED
// =============================================================================

// FuelDispensed sums in Go because amounts are stored as decimal text.
func (r reader) FuelDispensed(ctx context.Context, plates []string, period generic.Period) (fleet.FuelTotals, error) {
	totals := fleet.FuelTotals{Litres: decimal.Zero, Cost: decimal.Zero}
	if len(plates) == 0 {
		return totals, nil
	}

	args := make([]any, 0, len(plates)+2)
	for _, p := range plates {
		args = append(args, fleet.NormalizePlate(p))
	}
	args = append(args, formatDate(period.Start), formatDate(period.End))

	rows, err := r.q.QueryContext(ctx, `
		SELECT litres, cost FROM fuel_records
		WHERE plate IN (`+placeholders(len(plates))+`)
		AND record_date >= ? AND record_date <= ?
	`, args...)
	if err != nil {
		return fleet.FuelTotals{}, generic.WrapRegistry("fuel dispensed", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l, c string
		if err := rows.Scan(&l, &c); err != nil {
			return fleet.FuelTotals{}, generic.WrapRegistry("fuel dispensed", err)
		}
		litres, err := decimal.NewFromString(l)
		if err != nil {
			return fleet.FuelTotals{}, generic.WrapRegistry("fuel dispensed", err)
		}
		cost, err := decimal.NewFromString(c)
		if err != nil {
			return fleet.FuelTotals{}, generic.WrapRegistry("fuel dispensed", err)
		}
		totals.Litres = totals.Litres.Add(litres)
		totals.Cost = totals.Cost.Add(cost)
	}
	if err := rows.Err(); err != nil {
		return fleet.FuelTotals{}, generic.WrapRegistry("fuel dispensed", err)
	}
	return totals, nil
}
