/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  registry and quota types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

FORMATS:
  Dates are "YYYY-MM-DD", months "YYYY-MM". Decimal quantities are strings
  so no precision is lost: litres with 2 places, currency in whole units.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/sqlite"
)

// =============================================================================
// REGISTRY
// =============================================================================

type VehicleDTO struct {
	ID              string  `json:"id"`
	Plate           string  `json:"plate"`
	Type            string  `json:"vehicle_type"`
	ConsumptionNorm *string `json:"consumption_norm"`
	Active          bool    `json:"active"`
}

type CreateVehicleRequest struct {
	ID              string  `json:"id"`
	Plate           string  `json:"plate"`
	Type            string  `json:"vehicle_type"`
	ConsumptionNorm *string `json:"consumption_norm"`
	Active          *bool   `json:"active"`
}

type DriverDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreateDriverRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type AssignmentDTO struct {
	ID             string  `json:"id"`
	VehicleID      string  `json:"vehicle_id"`
	DriverID       string  `json:"driver_id"`
	AssignmentDate string  `json:"assignment_date"`
	EndDate        *string `json:"end_date"`
}

type CreateAssignmentRequest struct {
	ID             string  `json:"id"`
	VehicleID      string  `json:"vehicle_id"`
	DriverID       string  `json:"driver_id"`
	AssignmentDate string  `json:"assignment_date"`
	EndDate        *string `json:"end_date"`
}

type CloseAssignmentRequest struct {
	EndDate string `json:"end_date"`
}

type FuelPriceDTO struct {
	ApplicationDate string `json:"application_date"`
	UnitPrice       string `json:"unit_price"`
}

type RouteDTO struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type CreateRouteRequest struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type RoutePriceRequest struct {
	ApplicationDate string `json:"application_date"`
	Price           string `json:"price"`
}

type DailyLogRequest struct {
	Date   string `json:"date"`
	Plate  string `json:"plate"`
	Status string `json:"status"`
}

type DailyLogDTO struct {
	ID      string `json:"id"`
	RouteID string `json:"route_id"`
	Date    string `json:"date"`
	Plate   string `json:"plate"`
	Status  string `json:"status"`
}

// TripDTO is used both ways: as a request body for stored and ad hoc trips
// and in responses.
type TripDTO struct {
	ID         string  `json:"id"`
	Date       *string `json:"date"`
	RouteCode  string  `json:"route_code"`
	RouteName  string  `json:"route_name"`
	Plate      string  `json:"plate"`
	DriverName string  `json:"driver"`
	DistanceKm string  `json:"distance_km"`
	Status     string  `json:"status"`
	TripCode   string  `json:"trip_code,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

type FuelRecordRequest struct {
	ID     string `json:"id"`
	Plate  string `json:"plate"`
	Date   string `json:"date"`
	Litres string `json:"litres"`
	Cost   string `json:"cost"`
}

type FuelRecordDTO struct {
	ID     string `json:"id"`
	Plate  string `json:"plate"`
	Date   string `json:"date"`
	Litres string `json:"litres"`
	Cost   string `json:"cost"`
}

// =============================================================================
// QUOTA
// =============================================================================

type AssignmentResolutionDTO struct {
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Display      string `json:"display"`
	AssignmentID string `json:"assignment_id,omitempty"`
	Matches      int    `json:"matches"`
}

type QuotaResultDTO struct {
	TripID          string                  `json:"trip_id"`
	Litres          string                  `json:"litres"`
	Cost            string                  `json:"cost"`
	Eligible        bool                    `json:"eligible"`
	Skip            string                  `json:"skip_reason,omitempty"`
	FuelPrice       *string                 `json:"fuel_price"`
	ConsumptionNorm *string                 `json:"consumption_norm"`
	Warning         string                  `json:"warning,omitempty"`
	Assignment      AssignmentResolutionDTO `json:"assignment"`
}

type RouteStatusDTO struct {
	RouteCode string        `json:"route_code"`
	RouteID   string        `json:"route_id,omitempty"`
	Date      string        `json:"date"`
	Plate     string        `json:"plate"`
	Off       bool          `json:"off"`
	Entries   []DailyLogDTO `json:"entries"`
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type TripLineDTO struct {
	Trip       TripDTO         `json:"trip"`
	Class      string          `json:"status_class"`
	Skip       string          `json:"skip_reason,omitempty"`
	Result     *QuotaResultDTO `json:"result,omitempty"`
	RoutePrice *string         `json:"route_price"`
}

type AnomalyDTO struct {
	TripID  string  `json:"trip_id"`
	Date    *string `json:"date"`
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
}

type ReportDTO struct {
	Driver          string         `json:"driver"`
	PeriodStart     string         `json:"period_start"`
	PeriodEnd       string         `json:"period_end"`
	Plates          []string       `json:"plates"`
	TripCount       int            `json:"trip_count"`
	EligibleCount   int            `json:"eligible_count"`
	QuotaLitres     string         `json:"quota_litres"`
	QuotaCost       string         `json:"quota_cost"`
	DispensedLitres string         `json:"dispensed_litres"`
	DispensedCost   string         `json:"dispensed_cost"`
	DeltaLitres     string         `json:"delta_litres"`
	DeltaCost       string         `json:"delta_cost"`
	SkipCounts      map[string]int `json:"skip_counts"`
	Anomalies       []AnomalyDTO   `json:"anomalies"`
	Lines           []TripLineDTO  `json:"lines"`
}

type ReconciliationRunDTO struct {
	ID              string         `json:"id"`
	Driver          string         `json:"driver"`
	PeriodStart     string         `json:"period_start"`
	PeriodEnd       string         `json:"period_end"`
	Status          string         `json:"status"`
	QuotaLitres     string         `json:"quota_litres"`
	QuotaCost       string         `json:"quota_cost"`
	DispensedLitres string         `json:"dispensed_litres"`
	DispensedCost   string         `json:"dispensed_cost"`
	TripCount       int            `json:"trip_count"`
	EligibleCount   int            `json:"eligible_count"`
	SkipCounts      map[string]int `json:"skip_counts,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       *string        `json:"started_at,omitempty"`
	CompletedAt     *string        `json:"completed_at,omitempty"`
}

type CreateRunRequest struct {
	Driver string `json:"driver"`
	Month  string `json:"month"`
}

// =============================================================================
// IMPORT AND ERRORS
// =============================================================================

type ImportRowError struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

type ImportResponse struct {
	Imported int              `json:"imported"`
	Rejected []ImportRowError `json:"rejected"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func litresString(d decimal.Decimal) string { return d.StringFixed(2) }
func costString(d decimal.Decimal) string   { return d.StringFixed(0) }

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func datePtrString(tp *generic.TimePoint) *string {
	if tp == nil || tp.IsZero() {
		return nil
	}
	s := tp.String()
	return &s
}

func toVehicleDTO(v fleet.Vehicle) VehicleDTO {
	return VehicleDTO{
		ID:              v.ID,
		Plate:           v.Plate,
		Type:            string(v.Type),
		ConsumptionNorm: decimalPtrString(v.ConsumptionNorm),
		Active:          v.Active,
	}
}

func toDriverDTO(d fleet.Driver) DriverDTO {
	return DriverDTO{ID: d.ID, Name: d.Name, Active: d.Active}
}

func toAssignmentDTO(a fleet.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:             a.ID,
		VehicleID:      a.VehicleID,
		DriverID:       a.DriverID,
		AssignmentDate: a.AssignmentDate.String(),
		EndDate:        datePtrString(a.EndDate),
	}
}

func toRouteDTO(r fleet.Route) RouteDTO {
	return RouteDTO{ID: r.ID, Code: r.Code, Name: r.Name, Active: r.Active}
}

func toDailyLogDTO(l fleet.DailyLog) DailyLogDTO {
	return DailyLogDTO{ID: l.ID, RouteID: l.RouteID, Date: l.Date.String(), Plate: l.Plate, Status: l.Status}
}

func toTripDTO(t fleet.TripRecord) TripDTO {
	return TripDTO{
		ID:         t.ID,
		Date:       datePtrString(t.Date),
		RouteCode:  t.RouteCode,
		RouteName:  t.RouteName,
		Plate:      t.Plate,
		DriverName: t.DriverName,
		DistanceKm: t.DistanceKm.String(),
		Status:     t.Status,
		TripCode:   t.TripCode,
		Notes:      t.Notes,
	}
}

func toResultDTO(r quota.Result) QuotaResultDTO {
	dto := QuotaResultDTO{
		TripID:          r.TripID,
		Litres:          litresString(r.Litres),
		Cost:            costString(r.Cost),
		Eligible:        r.Eligible(),
		Skip:            string(r.Skip),
		FuelPrice:       decimalPtrString(r.FuelPrice),
		ConsumptionNorm: decimalPtrString(r.ConsumptionNorm),
		Warning:         r.Warning,
		Assignment: AssignmentResolutionDTO{
			Status:  string(r.Assignment.Status),
			Reason:  string(r.Assignment.Reason),
			Display: r.Assignment.String(),
			Matches: r.Assignment.Matches,
		},
	}
	if r.Assignment.Assignment != nil {
		dto.Assignment.AssignmentID = r.Assignment.Assignment.ID
	}
	return dto
}

// NewReportDTO converts a report for JSON output.
func NewReportDTO(rep *quota.Report) ReportDTO {
	dto := ReportDTO{
		Driver:          rep.DriverName,
		PeriodStart:     rep.Period.Start.String(),
		PeriodEnd:       rep.Period.End.String(),
		Plates:          append([]string{}, rep.Plates...),
		TripCount:       rep.TripCount,
		EligibleCount:   rep.EligibleCount,
		QuotaLitres:     litresString(rep.QuotaLitres.Value),
		QuotaCost:       costString(rep.QuotaCost.Value),
		DispensedLitres: litresString(rep.DispensedLitres.Value),
		DispensedCost:   costString(rep.DispensedCost.Value),
		DeltaLitres:     litresString(rep.DeltaLitres.Value),
		DeltaCost:       costString(rep.DeltaCost.Value),
		SkipCounts:      skipCounts(rep.SkipCounts),
		Anomalies:       []AnomalyDTO{},
		Lines:           make([]TripLineDTO, 0, len(rep.Lines)),
	}
	for _, a := range rep.Anomalies {
		dto.Anomalies = append(dto.Anomalies, AnomalyDTO{
			TripID:  a.TripID,
			Date:    datePtrString(a.Date),
			Kind:    string(a.Kind),
			Message: a.Message,
		})
	}
	for _, l := range rep.Lines {
		line := TripLineDTO{
			Trip:       toTripDTO(l.Trip),
			Class:      l.Class.String(),
			Skip:       string(l.Skip),
			RoutePrice: decimalPtrString(l.RoutePrice),
		}
		if l.Result != nil {
			res := toResultDTO(*l.Result)
			line.Result = &res
		}
		dto.Lines = append(dto.Lines, line)
	}
	return dto
}

func skipCounts(in map[quota.SkipReason]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func toRunDTO(r sqlite.ReconciliationRun) ReconciliationRunDTO {
	dto := ReconciliationRunDTO{
		ID:              r.ID,
		Driver:          r.DriverName,
		PeriodStart:     r.PeriodStart.String(),
		PeriodEnd:       r.PeriodEnd.String(),
		Status:          r.Status,
		QuotaLitres:     litresString(r.QuotaLitres),
		QuotaCost:       costString(r.QuotaCost),
		DispensedLitres: litresString(r.DispensedLitres),
		DispensedCost:   costString(r.DispensedCost),
		TripCount:       r.TripCount,
		EligibleCount:   r.EligibleCount,
		SkipCounts:      r.SkipCounts,
		Error:           r.Error,
	}
	if r.StartedAt != nil {
		s := r.StartedAt.UTC().Format(time.RFC3339)
		dto.StartedAt = &s
	}
	if r.CompletedAt != nil {
		s := r.CompletedAt.UTC().Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
