// Package memory provides an in-memory fleet registry for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// =============================================================================
// MEMORY REGISTRY - In-memory implementation of fleet.Registry
// =============================================================================

type Registry struct {
	mu sync.RWMutex

	vehicles    map[string]fleet.Vehicle // by plate
	drivers     map[string]fleet.Driver  // by name
	assignments []fleet.Assignment
	routes      []fleet.Route
	dailyLogs   []fleet.DailyLog
	fuelPrices  generic.Series[decimal.Decimal]
	routePrices []fleet.RoutePrice
	trips       []fleet.TripRecord
	fuel        []fleet.FuelRecord

	// failure, when set, is returned (wrapped) from every read.
	failure error
}

func New() *Registry {
	return &Registry{
		vehicles: make(map[string]fleet.Vehicle),
		drivers:  make(map[string]fleet.Driver),
	}
}

// Fail makes every subsequent read return err as a registry error.
// Pass nil to recover.
func (m *Registry) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// =============================================================================
// WRITES - Fixture setup
// =============================================================================

func (m *Registry) AddVehicle(v fleet.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v.Plate = fleet.NormalizePlate(v.Plate)
	if v.ID == "" {
		v.ID = v.Plate
	}
	m.vehicles[v.Plate] = v
}

func (m *Registry) AddDriver(d fleet.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Name = fleet.NormalizeName(d.Name)
	if d.ID == "" {
		d.ID = d.Name
	}
	m.drivers[d.Name] = d
}

func (m *Registry) AddAssignment(a fleet.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, a)
}

func (m *Registry) AddRoute(r fleet.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = r.Code
	}
	m.routes = append(m.routes, r)
}

func (m *Registry) AddDailyLog(l fleet.DailyLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.Plate = fleet.NormalizePlate(l.Plate)
	m.dailyLogs = append(m.dailyLogs, l)
}

func (m *Registry) AddFuelPrice(from generic.TimePoint, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fuelPrices = append(m.fuelPrices, generic.Effective[decimal.Decimal]{From: from, Value: price})
}

func (m *Registry) AddRoutePrice(p fleet.RoutePrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routePrices = append(m.routePrices, p)
}

func (m *Registry) AddTrip(t fleet.TripRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append(m.trips, t)
}

func (m *Registry) AddFuelRecord(f fleet.FuelRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Plate = fleet.NormalizePlate(f.Plate)
	m.fuel = append(m.fuel, f)
}

// =============================================================================
// READS - fleet.Registry
// =============================================================================

func (m *Registry) VehicleByPlate(_ context.Context, plate string) (*fleet.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("vehicle by plate"); err != nil {
		return nil, err
	}
	v, ok := m.vehicles[fleet.NormalizePlate(plate)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *Registry) DriverByName(_ context.Context, name string) (*fleet.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("driver by name"); err != nil {
		return nil, err
	}
	d, ok := m.drivers[fleet.NormalizeName(name)]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Registry) AssignmentsForVehicle(_ context.Context, vehicleID string) ([]fleet.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("assignments for vehicle"); err != nil {
		return nil, err
	}
	var result []fleet.Assignment
	for _, a := range m.assignments {
		if a.VehicleID == vehicleID {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].AssignmentDate.Before(result[j].AssignmentDate)
	})
	return result, nil
}

func (m *Registry) RouteByCode(_ context.Context, code string) (*fleet.Route, error) {
	return m.findRoute("route by code", func(r fleet.Route) bool { return r.Code == code })
}

func (m *Registry) RouteByName(_ context.Context, name string) (*fleet.Route, error) {
	return m.findRoute("route by name", func(r fleet.Route) bool { return r.Name == name })
}

func (m *Registry) findRoute(op string, match func(fleet.Route) bool) (*fleet.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed(op); err != nil {
		return nil, err
	}
	var found *fleet.Route
	for _, r := range m.routes {
		if !match(r) {
			continue
		}
		if r.Active {
			route := r
			return &route, nil
		}
		if found == nil {
			route := r
			found = &route
		}
	}
	return found, nil
}

func (m *Registry) DailyLogs(_ context.Context, routeID string, date generic.TimePoint, plate string) ([]fleet.DailyLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("daily logs"); err != nil {
		return nil, err
	}
	plate = fleet.NormalizePlate(plate)
	var result []fleet.DailyLog
	for _, l := range m.dailyLogs {
		if l.RouteID == routeID && l.Date.Equal(date) && l.Plate == plate {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *Registry) FuelPriceHistory(_ context.Context) (generic.Series[decimal.Decimal], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("fuel price history"); err != nil {
		return nil, err
	}
	return m.fuelPrices.Sorted(), nil
}

func (m *Registry) RoutePriceHistory(_ context.Context, routeID string) (generic.Series[decimal.Decimal], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("route price history"); err != nil {
		return nil, err
	}
	var series generic.Series[decimal.Decimal]
	for _, p := range m.routePrices {
		if p.RouteID == routeID {
			series = append(series, generic.Effective[decimal.Decimal]{From: p.ApplicationDate, Value: p.Price})
		}
	}
	return series.Sorted(), nil
}

func (m *Registry) Trips(_ context.Context, filter fleet.TripFilter) ([]fleet.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("trips"); err != nil {
		return nil, err
	}
	driver := fleet.NormalizeName(filter.DriverName)
	var result []fleet.TripRecord
	for _, t := range m.trips {
		if driver != "" && fleet.NormalizeName(t.DriverName) != driver {
			continue
		}
		if t.Date == nil || !filter.Period.Contains(*t.Date) {
			continue
		}
		if !fleet.MatchesStatuses(t.Status, filter.Statuses) {
			continue
		}
		result = append(result, t)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(*result[j].Date) {
			return result[i].Date.Before(*result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Registry) TripByID(_ context.Context, id string) (*fleet.TripRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("trip by id"); err != nil {
		return nil, err
	}
	for _, t := range m.trips {
		if t.ID == id {
			trip := t
			return &trip, nil
		}
	}
	return nil, nil
}

func (m *Registry) FuelDispensed(_ context.Context, plates []string, period generic.Period) (fleet.FuelTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failed("fuel dispensed"); err != nil {
		return fleet.FuelTotals{}, err
	}
	want := make(map[string]bool, len(plates))
	for _, p := range plates {
		want[fleet.NormalizePlate(p)] = true
	}
	totals := fleet.FuelTotals{Litres: decimal.Zero, Cost: decimal.Zero}
	for _, f := range m.fuel {
		if want[f.Plate] && period.Contains(f.Date) {
			totals.Litres = totals.Litres.Add(f.Litres)
			totals.Cost = totals.Cost.Add(f.Cost)
		}
	}
	return totals, nil
}

func (m *Registry) failed(op string) error {
	if m.failure == nil {
		return nil
	}
	return generic.WrapRegistry(op, m.failure)
}

// =============================================================================
// SNAPSHOT - fleet.Snapshotter
// =============================================================================

// Snapshot runs fn against a frozen copy of the registry, so writes made
// while fn runs are not observed.
func (m *Registry) Snapshot(_ context.Context, fn func(fleet.Registry) error) error {
	m.mu.RLock()
	frozen := m.cloneLocked()
	m.mu.RUnlock()
	return fn(frozen)
}

func (m *Registry) cloneLocked() *Registry {
	c := &Registry{
		vehicles:    make(map[string]fleet.Vehicle, len(m.vehicles)),
		drivers:     make(map[string]fleet.Driver, len(m.drivers)),
		assignments: append([]fleet.Assignment(nil), m.assignments...),
		routes:      append([]fleet.Route(nil), m.routes...),
		dailyLogs:   append([]fleet.DailyLog(nil), m.dailyLogs...),
		fuelPrices:  append(generic.Series[decimal.Decimal](nil), m.fuelPrices...),
		routePrices: append([]fleet.RoutePrice(nil), m.routePrices...),
		trips:       append([]fleet.TripRecord(nil), m.trips...),
		fuel:        append([]fleet.FuelRecord(nil), m.fuel...),
		failure:     m.failure,
	}
	for k, v := range m.vehicles {
		c.vehicles[k] = v
	}
	for k, v := range m.drivers {
		c.drivers[k] = v
	}
	return c
}
