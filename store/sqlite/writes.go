package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// =============================================================================
// VEHICLES
// =============================================================================

// SaveVehicle inserts or updates a vehicle keyed by plate. The plate is
// normalised and an empty ID is generated.
func (s *Store) SaveVehicle(ctx context.Context, v fleet.Vehicle) (fleet.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.Plate = fleet.NormalizePlate(v.Plate)
	if v.Plate == "" {
		return fleet.Vehicle{}, fmt.Errorf("vehicle plate is required")
	}
	if !v.Type.Valid() {
		return fleet.Vehicle{}, fmt.Errorf("invalid vehicle type %q", v.Type)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO vehicles (id, plate, vehicle_type, consumption_norm, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(plate) DO UPDATE SET
			vehicle_type = excluded.vehicle_type,
			consumption_norm = excluded.consumption_norm,
			active = excluded.active
		RETURNING id
	`, v.ID, v.Plate, string(v.Type), decimalPtrString(v.ConsumptionNorm), v.Active, now()).Scan(&v.ID)
	if err != nil {
		return fleet.Vehicle{}, err
	}
	return v, nil
}

// ListVehicles returns all vehicles ordered by plate.
func (s *Store) ListVehicles(ctx context.Context) ([]fleet.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plate, vehicle_type, consumption_norm, active
		FROM vehicles ORDER BY plate
	`)
	if err != nil {
		return nil, generic.WrapRegistry("list vehicles", err)
	}
	defer rows.Close()

	var vehicles []fleet.Vehicle
	for rows.Next() {
		var v fleet.Vehicle
		var vType string
		var norm sql.NullString
		if err := rows.Scan(&v.ID, &v.Plate, &vType, &norm, &v.Active); err != nil {
			return nil, generic.WrapRegistry("list vehicles", err)
		}
		v.Type = fleet.VehicleType(vType)
		if v.ConsumptionNorm, err = parseDecimalPtr(norm); err != nil {
			return nil, generic.WrapRegistry("list vehicles", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// =============================================================================
// DRIVERS
// =============================================================================

// SaveDriver inserts or updates a driver keyed by normalised name.
func (s *Store) SaveDriver(ctx context.Context, d fleet.Driver) (fleet.Driver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.Name = fleet.NormalizeName(d.Name)
	if d.Name == "" {
		return fleet.Driver{}, fmt.Errorf("driver name is required")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO employees (id, name, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET active = excluded.active
		RETURNING id
	`, d.ID, d.Name, d.Active, now()).Scan(&d.ID)
	if err != nil {
		return fleet.Driver{}, err
	}
	return d, nil
}

// ListDrivers returns all drivers ordered by name.
func (s *Store) ListDrivers(ctx context.Context) ([]fleet.Driver, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, active FROM employees ORDER BY name`)
	if err != nil {
		return nil, generic.WrapRegistry("list drivers", err)
	}
	defer rows.Close()

	var drivers []fleet.Driver
	for rows.Next() {
		var d fleet.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Active); err != nil {
			return nil, generic.WrapRegistry("list drivers", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// SaveAssignment records a new vehicle-to-driver interval.
func (s *Store) SaveAssignment(ctx context.Context, a fleet.Assignment) (fleet.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.VehicleID == "" || a.DriverID == "" {
		return fleet.Assignment{}, fmt.Errorf("vehicle and driver are required")
	}
	if a.AssignmentDate.IsZero() {
		return fleet.Assignment{}, fmt.Errorf("assignment date is required")
	}
	if a.EndDate != nil && !a.EndDate.After(a.AssignmentDate) {
		return fleet.Assignment{}, generic.ErrInvalidPeriod
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicle_assignments (id, vehicle_id, driver_id, assignment_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.VehicleID, a.DriverID, formatDate(a.AssignmentDate), formatDatePtr(a.EndDate), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fleet.Assignment{}, generic.ErrDuplicateKey
		}
		return fleet.Assignment{}, err
	}
	return a, nil
}

// CloseAssignment sets the exclusive end date of an open assignment.
func (s *Store) CloseAssignment(ctx context.Context, id string, end generic.TimePoint) (fleet.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result fleet.Assignment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, vehicle_id, driver_id, assignment_date, end_date
			FROM vehicle_assignments WHERE id = ?
		`, id)
		if err != nil {
			return err
		}
		found, err := scanAssignments(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return generic.ErrNotFound
		}
		a := found[0]
		if a.EndDate != nil {
			return generic.ErrAssignmentClosed
		}
		if !end.After(a.AssignmentDate) {
			return generic.ErrInvalidPeriod
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE vehicle_assignments SET end_date = ? WHERE id = ?
		`, formatDate(end), id); err != nil {
			return err
		}
		a.EndDate = &end
		result = a
		return nil
	})
	return result, err
}

// ListAssignments returns assignments, optionally for one vehicle.
func (s *Store) ListAssignments(ctx context.Context, vehicleID string) ([]fleet.Assignment, error) {
	if vehicleID != "" {
		return s.AssignmentsForVehicle(ctx, vehicleID)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vehicle_id, driver_id, assignment_date, end_date
		FROM vehicle_assignments
		ORDER BY vehicle_id, assignment_date, id
	`)
	if err != nil {
		return nil, generic.WrapRegistry("list assignments", err)
	}
	defer rows.Close()

	result, err := scanAssignments(rows)
	if err != nil {
		return nil, generic.WrapRegistry("list assignments", err)
	}
	return result, nil
}

// =============================================================================
// PRICES (append-only)
// =============================================================================

// AppendFuelPrice adds a step to the diesel price series.
func (s *Store) AppendFuelPrice(ctx context.Context, from generic.TimePoint, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendFuelPrice(ctx, s.db, from, price)
}

// AppendFuelPrices adds several steps atomically.
func (s *Store) AppendFuelPrices(ctx context.Context, prices generic.Series[decimal.Decimal]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range prices {
			if err := appendFuelPrice(ctx, tx, p.From, p.Value); err != nil {
				return fmt.Errorf("price on %s: %w", p.From, err)
			}
		}
		return nil
	})
}

func appendFuelPrice(ctx context.Context, db execer, from generic.TimePoint, price decimal.Decimal) error {
	if from.IsZero() {
		return fmt.Errorf("application date is required")
	}
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO diesel_price_history (id, application_date, unit_price, created_at)
		VALUES (?, ?, ?, ?)
	`, uuid.NewString(), formatDate(from), price.String(), now())
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateEffectiveDate
	}
	return err
}

// AppendRoutePrice adds a step to one route's price series.
func (s *Store) AppendRoutePrice(ctx context.Context, p fleet.RoutePrice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.RouteID == "" || p.ApplicationDate.IsZero() {
		return fmt.Errorf("route and application date are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO route_prices (id, route_id, application_date, price, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), p.RouteID, formatDate(p.ApplicationDate), p.Price.String(), now())
	if isUniqueConstraintError(err) {
		return generic.ErrDuplicateEffectiveDate
	}
	return err
}

// =============================================================================
// ROUTES AND DAILY LOGS
// =============================================================================

// SaveRoute inserts or updates a route keyed by code.
func (s *Store) SaveRoute(ctx context.Context, r fleet.Route) (fleet.Route, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.Code = strings.TrimSpace(r.Code)
	r.Name = strings.TrimSpace(r.Name)
	if r.Code == "" {
		return fleet.Route{}, fmt.Errorf("route code is required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO routes (id, code, name, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			active = excluded.active
		RETURNING id
	`, r.ID, r.Code, r.Name, r.Active, now()).Scan(&r.ID)
	if err != nil {
		return fleet.Route{}, err
	}
	return r, nil
}

// SaveDailyLog records one status entry for (route, date, plate).
func (s *Store) SaveDailyLog(ctx context.Context, l fleet.DailyLog) (fleet.DailyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Plate = fleet.NormalizePlate(l.Plate)
	if l.RouteID == "" || l.Plate == "" || l.Date.IsZero() {
		return fleet.DailyLog{}, fmt.Errorf("route, plate and date are required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_route_logs (id, route_id, log_date, plate, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.ID, l.RouteID, formatDate(l.Date), l.Plate, strings.TrimSpace(l.Status), now())
	if err != nil {
		return fleet.DailyLog{}, err
	}
	return l, nil
}

// =============================================================================
// TRIPS AND FUEL RECORDS
// =============================================================================

// SaveTrips stores trip records atomically. Records with an existing ID are
// replaced. Driver names are stored normalised.
func (s *Store) SaveTrips(ctx context.Context, trips []fleet.TripRecord) ([]fleet.TripRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]fleet.TripRecord, 0, len(trips))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range trips {
			if t.ID == "" {
				t.ID = uuid.NewString()
			}
			t.DriverName = fleet.NormalizeName(t.DriverName)
			t.Plate = strings.TrimSpace(t.Plate)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO trips (`+tripColumns+`, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					trip_date = excluded.trip_date,
					route_code = excluded.route_code,
					route_name = excluded.route_name,
					plate = excluded.plate,
					driver_name = excluded.driver_name,
					distance_km = excluded.distance_km,
					status = excluded.status,
					trip_code = excluded.trip_code,
					notes = excluded.notes
			`, t.ID, formatDatePtr(t.Date), t.RouteCode, t.RouteName, t.Plate, t.DriverName,
				t.DistanceKm.String(), t.Status, t.TripCode, t.Notes, now())
			if err != nil {
				return fmt.Errorf("trip %s: %w", t.ID, err)
			}
			saved = append(saved, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SaveFuelRecord stores one dispensing event.
func (s *Store) SaveFuelRecord(ctx context.Context, f fleet.FuelRecord) (fleet.FuelRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.Plate = fleet.NormalizePlate(f.Plate)
	if f.Plate == "" || f.Date.IsZero() {
		return fleet.FuelRecord{}, fmt.Errorf("plate and date are required")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fuel_records (id, plate, record_date, litres, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.Plate, formatDate(f.Date), f.Litres.String(), f.Cost.String(), now())
	if err != nil {
		if isUniqueConstraintError(err) {
			return fleet.FuelRecord{}, generic.ErrDuplicateKey
		}
		return fleet.FuelRecord{}, err
	}
	return f, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// withTx runs fn inside a transaction. Callers hold s.mu.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
