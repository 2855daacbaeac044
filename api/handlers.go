/*
handlers.go - HTTP API handlers for the fuel quota service

PURPOSE:
  Exposes the registries and the quota engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the quota package.

ENDPOINTS:
  Registry:
    GET/POST /api/vehicles                  List / create vehicles
    GET/POST /api/drivers                   List / create drivers
    GET/POST /api/assignments               List / create assignments
    POST     /api/assignments/{id}/close    Close an assignment (sets end date)
    GET/POST /api/fuel-prices               Price history / append a price
    POST     /api/routes                    Create route
    POST     /api/routes/{code}/prices      Append a route price
    POST     /api/routes/{code}/logs        Record a daily route status
    GET/POST /api/trips                     List / store trip records
    POST     /api/fuel-records              Record dispensed fuel

  Quota:
    GET  /api/trips/{id}/quota              Quota for a stored trip
    POST /api/quota/calculate               Quota for an ad hoc trip
    GET  /api/fuel-prices/as-of?date=       Effective diesel price
    GET  /api/routes/{code}/status          Route OFF check for a day and plate

  Reconciliation:
    GET  /api/reconciliation?driver=&month= Monthly report
    GET  /api/reconciliation/runs           Persisted runs
    POST /api/reconciliation/runs           Compute and persist a run

  Import:
    POST /api/trips/import                  Trip CSV
    POST /api/fuel-prices/import            Diesel price CSV

ERROR HANDLING:
  Errors are returned as JSON {error, details} with:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Duplicate effective date, duplicate key, assignment already closed
  - 503: Registry unavailable
  - 500: Internal errors
  A trip that cannot be computed is NOT an error: it is a 200 with a
  skip_reason.

SEE ALSO:
  - dto.go: Request/response data structures
  - import.go: CSV import
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Metrics *quota.Metrics

	logger *zap.Logger
}

// NewHandler creates a new handler. logger and metrics may be nil.
func NewHandler(store *sqlite.Store, logger *zap.Logger, metrics *quota.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Store: store, Metrics: metrics, logger: logger}
}

func (h *Handler) calculator(reg fleet.Registry) *quota.Calculator {
	return quota.NewCalculator(reg, quota.WithLogger(h.logger), quota.WithMetrics(h.Metrics))
}

func (h *Handler) reconciler() *quota.Reconciler {
	return quota.NewReconciler(h.Store, quota.WithLogger(h.logger), quota.WithMetrics(h.Metrics))
}

// Health reports whether the database answers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DB().PingContext(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// VEHICLES AND DRIVERS
// =============================================================================

// ListVehicles returns all vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.Store.ListVehicles(r.Context())
	if err != nil {
		h.fail(w, "Failed to list vehicles", err)
		return
	}
	dtos := make([]VehicleDTO, 0, len(vehicles))
	for _, v := range vehicles {
		dtos = append(dtos, toVehicleDTO(v))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateVehicle creates or updates a vehicle by plate.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	v := fleet.Vehicle{
		ID:     req.ID,
		Plate:  req.Plate,
		Type:   fleet.VehicleType(strings.ToLower(strings.TrimSpace(req.Type))),
		Active: req.Active == nil || *req.Active,
	}
	if !v.Type.Valid() {
		writeError(w, http.StatusBadRequest, "vehicle_type must be owned or partner", nil)
		return
	}
	if req.ConsumptionNorm != nil && strings.TrimSpace(*req.ConsumptionNorm) != "" {
		norm, err := decimal.NewFromString(strings.TrimSpace(*req.ConsumptionNorm))
		if err != nil || norm.IsNegative() {
			writeError(w, http.StatusBadRequest, "Invalid consumption_norm", err)
			return
		}
		v.ConsumptionNorm = &norm
	}

	saved, err := h.Store.SaveVehicle(r.Context(), v)
	if err != nil {
		h.fail(w, "Failed to save vehicle", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleDTO(saved))
}

// ListDrivers returns all drivers.
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Store.ListDrivers(r.Context())
	if err != nil {
		h.fail(w, "Failed to list drivers", err)
		return
	}
	dtos := make([]DriverDTO, 0, len(drivers))
	for _, d := range drivers {
		dtos = append(dtos, toDriverDTO(d))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDriver creates or updates a driver by name.
func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req CreateDriverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if fleet.NormalizeName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	saved, err := h.Store.SaveDriver(r.Context(), fleet.Driver{
		ID:     req.ID,
		Name:   req.Name,
		Active: req.Active == nil || *req.Active,
	})
	if err != nil {
		h.fail(w, "Failed to save driver", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDriverDTO(saved))
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// ListAssignments returns assignments, optionally filtered by vehicle_id.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListAssignments(r.Context(), r.URL.Query().Get("vehicle_id"))
	if err != nil {
		h.fail(w, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, 0, len(rows))
	for _, a := range rows {
		dtos = append(dtos, toAssignmentDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssignment records a vehicle-to-driver interval.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := generic.ParseDate(req.AssignmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid assignment_date format (use YYYY-MM-DD)", err)
		return
	}
	if strings.TrimSpace(req.VehicleID) == "" || strings.TrimSpace(req.DriverID) == "" {
		writeError(w, http.StatusBadRequest, "vehicle_id and driver_id are required", nil)
		return
	}
	a := fleet.Assignment{ID: req.ID, VehicleID: req.VehicleID, DriverID: req.DriverID, AssignmentDate: start}
	if req.EndDate != nil && strings.TrimSpace(*req.EndDate) != "" {
		end, err := generic.ParseDate(*req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
		a.EndDate = &end
	}

	saved, err := h.Store.SaveAssignment(r.Context(), a)
	if err != nil {
		h.fail(w, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(saved))
}

// CloseAssignment ends an open assignment. Assignments are never deleted.
func (h *Handler) CloseAssignment(w http.ResponseWriter, r *http.Request) {
	var req CloseAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	closed, err := h.Store.CloseAssignment(r.Context(), chi.URLParam(r, "id"), end)
	if err != nil {
		h.fail(w, "Failed to close assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(closed))
}

// =============================================================================
// FUEL PRICES
// =============================================================================

// ListFuelPrices returns the diesel price history in date order.
func (h *Handler) ListFuelPrices(w http.ResponseWriter, r *http.Request) {
	series, err := h.Store.FuelPriceHistory(r.Context())
	if err != nil {
		h.fail(w, "Failed to load fuel prices", err)
		return
	}
	dtos := make([]FuelPriceDTO, 0, len(series))
	for _, p := range series {
		dtos = append(dtos, FuelPriceDTO{ApplicationDate: p.From.String(), UnitPrice: p.Value.String()})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateFuelPrice appends a price. A second price for the same date is a 409.
func (h *Handler) CreateFuelPrice(w http.ResponseWriter, r *http.Request) {
	var req FuelPriceDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := generic.ParseDate(req.ApplicationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application_date format (use YYYY-MM-DD)", err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
		return
	}

	if err := h.Store.AppendFuelPrice(r.Context(), from, price); err != nil {
		h.fail(w, "Failed to append fuel price", err)
		return
	}
	writeJSON(w, http.StatusCreated, FuelPriceDTO{ApplicationDate: from.String(), UnitPrice: price.String()})
}

// FuelPriceAsOf returns the price effective on ?date=.
func (h *Handler) FuelPriceAsOf(w http.ResponseWriter, r *http.Request) {
	at, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	lookup := &quota.PriceLookup{Fuel: h.Store}
	price, err := lookup.FuelPriceAsOf(r.Context(), at)
	if err != nil {
		h.fail(w, "Failed to resolve fuel price", err)
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, quota.WarnNoPrice, nil)
		return
	}
	writeJSON(w, http.StatusOK, FuelPriceDTO{ApplicationDate: at.String(), UnitPrice: price.String()})
}

// =============================================================================
// ROUTES
// =============================================================================

// CreateRoute creates or updates a route by code.
func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req CreateRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required", nil)
		return
	}

	saved, err := h.Store.SaveRoute(r.Context(), fleet.Route{
		ID:     req.ID,
		Code:   req.Code,
		Name:   req.Name,
		Active: req.Active == nil || *req.Active,
	})
	if err != nil {
		h.fail(w, "Failed to save route", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteDTO(saved))
}

// routeFromPath loads the {code} route, writing a 404 when it is missing.
func (h *Handler) routeFromPath(w http.ResponseWriter, r *http.Request) (*fleet.Route, bool) {
	code := chi.URLParam(r, "code")
	route, err := h.Store.RouteByCode(r.Context(), code)
	if err != nil {
		h.fail(w, "Failed to load route", err)
		return nil, false
	}
	if route == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Route %s not found", code), nil)
		return nil, false
	}
	return route, true
}

// CreateRoutePrice appends a price to a route's series.
func (h *Handler) CreateRoutePrice(w http.ResponseWriter, r *http.Request) {
	var req RoutePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := generic.ParseDate(req.ApplicationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid application_date format (use YYYY-MM-DD)", err)
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	route, ok := h.routeFromPath(w, r)
	if !ok {
		return
	}
	if err := h.Store.AppendRoutePrice(r.Context(), fleet.RoutePrice{RouteID: route.ID, ApplicationDate: from, Price: price}); err != nil {
		h.fail(w, "Failed to append route price", err)
		return
	}
	writeJSON(w, http.StatusCreated, RoutePriceRequest{ApplicationDate: from.String(), Price: price.String()})
}

// CreateDailyLog records one status entry for the route.
func (h *Handler) CreateDailyLog(w http.ResponseWriter, r *http.Request) {
	var req DailyLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if fleet.NormalizePlate(req.Plate) == "" {
		writeError(w, http.StatusBadRequest, "plate is required", nil)
		return
	}

	route, ok := h.routeFromPath(w, r)
	if !ok {
		return
	}
	saved, err := h.Store.SaveDailyLog(r.Context(), fleet.DailyLog{RouteID: route.ID, Date: day, Plate: req.Plate, Status: req.Status})
	if err != nil {
		h.fail(w, "Failed to save daily log", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDailyLogDTO(saved))
}

// RouteStatus reports whether the route is OFF for ?date= and ?plate=.
func (h *Handler) RouteStatus(w http.ResponseWriter, r *http.Request) {
	day, err := generic.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	plate := fleet.NormalizePlate(r.URL.Query().Get("plate"))
	if plate == "" {
		writeError(w, http.StatusBadRequest, "plate is required", nil)
		return
	}
	code := chi.URLParam(r, "code")

	checker := &quota.RouteStatusChecker{Routes: h.Store}
	route, err := checker.FindRoute(r.Context(), code, "")
	if err != nil {
		h.fail(w, "Failed to load route", err)
		return
	}
	routeDay, err := checker.Check(r.Context(), route, day, plate)
	if err != nil {
		h.fail(w, "Failed to check route status", err)
		return
	}

	dto := RouteStatusDTO{RouteCode: code, Date: day.String(), Plate: plate, Off: routeDay.Off, Entries: []DailyLogDTO{}}
	if route != nil {
		dto.RouteID = route.ID
		logs, err := h.Store.DailyLogs(r.Context(), route.ID, day, plate)
		if err != nil {
			h.fail(w, "Failed to load daily logs", err)
			return
		}
		for _, l := range logs {
			dto.Entries = append(dto.Entries, toDailyLogDTO(l))
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// TRIPS AND FUEL RECORDS
// =============================================================================

// ListTrips returns trips for ?driver= in ?month=.
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	period, err := generic.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}
	trips, err := h.Store.Trips(r.Context(), fleet.TripFilter{DriverName: r.URL.Query().Get("driver"), Period: period})
	if err != nil {
		h.fail(w, "Failed to list trips", err)
		return
	}
	dtos := make([]TripDTO, 0, len(trips))
	for _, t := range trips {
		dtos = append(dtos, toTripDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTrips stores one trip object or an array of them atomically.
func (h *Handler) CreateTrips(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	var reqs []TripDTO
	if trimmed := strings.TrimSpace(string(raw)); strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &reqs); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	} else {
		var one TripDTO
		if err := json.Unmarshal(raw, &one); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		reqs = []TripDTO{one}
	}

	trips := make([]fleet.TripRecord, 0, len(reqs))
	for i, req := range reqs {
		trip, err := tripFromDTO(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid trip at index %d", i), err)
			return
		}
		trips = append(trips, trip)
	}

	saved, err := h.Store.SaveTrips(r.Context(), trips)
	if err != nil {
		h.fail(w, "Failed to save trips", err)
		return
	}
	dtos := make([]TripDTO, 0, len(saved))
	for _, t := range saved {
		dtos = append(dtos, toTripDTO(t))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// CreateFuelRecord records fuel dispensed to a vehicle.
func (h *Handler) CreateFuelRecord(w http.ResponseWriter, r *http.Request) {
	var req FuelRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if fleet.NormalizePlate(req.Plate) == "" {
		writeError(w, http.StatusBadRequest, "plate is required", nil)
		return
	}
	litres, err := decimal.NewFromString(strings.TrimSpace(req.Litres))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid litres", err)
		return
	}
	cost, err := decimal.NewFromString(strings.TrimSpace(req.Cost))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid cost", err)
		return
	}

	saved, err := h.Store.SaveFuelRecord(r.Context(), fleet.FuelRecord{ID: req.ID, Plate: req.Plate, Date: day, Litres: litres, Cost: cost})
	if err != nil {
		h.fail(w, "Failed to save fuel record", err)
		return
	}
	writeJSON(w, http.StatusCreated, FuelRecordDTO{
		ID:     saved.ID,
		Plate:  saved.Plate,
		Date:   saved.Date.String(),
		Litres: saved.Litres.String(),
		Cost:   saved.Cost.String(),
	})
}

// =============================================================================
// QUOTA
// =============================================================================

// TripQuota computes the quota for a stored trip.
func (h *Handler) TripQuota(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trip, err := h.Store.TripByID(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load trip", err)
		return
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Trip %s not found", id), nil)
		return
	}

	res, err := h.calculator(h.Store).Calculate(r.Context(), *trip)
	if err != nil {
		h.fail(w, "Failed to calculate quota", err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(res))
}

// CalculateQuota computes the quota for a trip given in the body without
// storing it.
func (h *Handler) CalculateQuota(w http.ResponseWriter, r *http.Request) {
	var req TripDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	trip, err := tripFromDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid trip", err)
		return
	}

	res, err := h.calculator(h.Store).Calculate(r.Context(), trip)
	if err != nil {
		h.fail(w, "Failed to calculate quota", err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTO(res))
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// GetReconciliation builds the monthly report for ?driver= and ?month=.
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	driver := fleet.NormalizeName(r.URL.Query().Get("driver"))
	if driver == "" {
		writeError(w, http.StatusBadRequest, "driver is required", nil)
		return
	}
	period, err := generic.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	rep, err := h.reconciler().Report(r.Context(), driver, period)
	if err != nil {
		h.fail(w, "Failed to build reconciliation report", err)
		return
	}
	writeJSON(w, http.StatusOK, NewReportDTO(rep))
}

// ListReconciliationRuns returns run history, filtered by ?status= and ?driver=.
func (h *Handler) ListReconciliationRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := h.Store.GetReconciliationRuns(r.Context(), q.Get("status"), fleet.NormalizeName(q.Get("driver")))
	if err != nil {
		h.fail(w, "Failed to list reconciliation runs", err)
		return
	}
	dtos := make([]ReconciliationRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReconciliationRun computes a report and persists it as a run.
func (h *Handler) CreateReconciliationRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	driver := fleet.NormalizeName(req.Driver)
	if driver == "" {
		writeError(w, http.StatusBadRequest, "driver is required", nil)
		return
	}
	period, err := generic.ParseMonth(req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	run, err := h.processReconciliation(r.Context(), driver, period)
	if err != nil {
		h.fail(w, "Reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// =============================================================================
// HELPERS
// =============================================================================

// tripFromDTO validates shape only. Missing date, plate or driver are kept
// as-is so the calculator can report them.
func tripFromDTO(dto TripDTO) (fleet.TripRecord, error) {
	trip := fleet.TripRecord{
		ID:         strings.TrimSpace(dto.ID),
		RouteCode:  strings.TrimSpace(dto.RouteCode),
		RouteName:  strings.TrimSpace(dto.RouteName),
		Plate:      strings.TrimSpace(dto.Plate),
		DriverName: fleet.NormalizeName(dto.DriverName),
		DistanceKm: decimal.Zero,
		Status:     strings.TrimSpace(dto.Status),
		TripCode:   strings.TrimSpace(dto.TripCode),
		Notes:      dto.Notes,
	}
	if dto.Date != nil && strings.TrimSpace(*dto.Date) != "" {
		d, err := generic.ParseDate(*dto.Date)
		if err != nil {
			return fleet.TripRecord{}, fmt.Errorf("date: %w", err)
		}
		trip.Date = &d
	}
	if s := strings.TrimSpace(dto.DistanceKm); s != "" {
		km, err := decimal.NewFromString(s)
		if err != nil {
			return fleet.TripRecord{}, fmt.Errorf("distance_km: %w", err)
		}
		trip.DistanceKm = km
	}
	return trip, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsRegistryUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrDuplicateEffectiveDate),
		errors.Is(err, generic.ErrDuplicateKey),
		errors.Is(err, generic.ErrAssignmentClosed):
		return http.StatusConflict
	case errors.Is(err, generic.ErrInvalidPeriod):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
