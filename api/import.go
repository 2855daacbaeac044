package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
	"go.uber.org/zap"
)

// maxImportBytes bounds an uploaded CSV.
const maxImportBytes = 10 << 20

// TripRow is one line of a trip CSV.
type TripRow struct {
	Date       string `csv:"date"`
	RouteCode  string `csv:"route_code"`
	RouteName  string `csv:"route_name,omitempty"`
	Plate      string `csv:"plate"`
	Driver     string `csv:"driver"`
	DistanceKm string `csv:"distance_km"`
	Status     string `csv:"status"`
	TripCode   string `csv:"trip_code,omitempty"`
	Notes      string `csv:"notes,omitempty"`
}

// FuelPriceRow is one line of a diesel price CSV.
type FuelPriceRow struct {
	ApplicationDate string `csv:"application_date"`
	UnitPrice       string `csv:"unit_price"`
}

// ParseTripsCSV decodes trip rows. Rows that fail validation are returned
// as ImportRowErrors with their 1-based line number; a malformed file is an
// error.
func ParseTripsCSV(r io.Reader) ([]fleet.TripRecord, []ImportRowError, error) {
	var trips []fleet.TripRecord
	rejected, err := decodeRows(r, func(row TripRow) error {
		trip, err := tripFromDTO(TripDTO{
			Date:       &row.Date,
			RouteCode:  row.RouteCode,
			RouteName:  row.RouteName,
			Plate:      row.Plate,
			DriverName: row.Driver,
			DistanceKm: row.DistanceKm,
			Status:     row.Status,
			TripCode:   row.TripCode,
			Notes:      row.Notes,
		})
		if err != nil {
			return err
		}
		trips = append(trips, trip)
		return nil
	})
	return trips, rejected, err
}

// ParseFuelPricesCSV decodes price rows. Both columns are required per row.
func ParseFuelPricesCSV(r io.Reader) (generic.Series[decimal.Decimal], []ImportRowError, error) {
	var series generic.Series[decimal.Decimal]
	rejected, err := decodeRows(r, func(row FuelPriceRow) error {
		from, err := generic.ParseDate(row.ApplicationDate)
		if err != nil {
			return fmt.Errorf("application_date: %w", err)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(row.UnitPrice))
		if err != nil {
			return fmt.Errorf("unit_price: %w", err)
		}
		if price.IsNegative() {
			return errors.New("unit_price must not be negative")
		}
		series = append(series, generic.Effective[decimal.Decimal]{From: from, Value: price})
		return nil
	})
	return series, rejected, err
}

func decodeRows[T any](r io.Reader, accept func(T) error) ([]ImportRowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty CSV")
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	rejected := []ImportRowError{}
	for line := 2; ; line++ {
		var row T
		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			rejected = append(rejected, ImportRowError{Line: line, Error: err.Error()})
			continue
		}
		if err := accept(row); err != nil {
			rejected = append(rejected, ImportRowError{Line: line, Error: err.Error()})
		}
	}
	return rejected, nil
}

// csvBody returns the uploaded CSV: the "file" part of a multipart form, or
// the raw request body.
func csvBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return http.MaxBytesReader(w, r.Body, maxImportBytes), nil
	}
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	return file, nil
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportTrips stores every valid row of a trip CSV in one transaction and
// reports the rejected lines.
func (h *Handler) ImportTrips(w http.ResponseWriter, r *http.Request) {
	body, err := csvBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer body.Close()

	trips, rejected, err := ParseTripsCSV(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	if len(trips) > 0 {
		if _, err := h.Store.SaveTrips(r.Context(), trips); err != nil {
			h.fail(w, "Failed to import trips", err)
			return
		}
	}

	h.logger.Info("trips imported", zap.Int("imported", len(trips)), zap.Int("rejected", len(rejected)))
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(trips), Rejected: rejected})
}

// ImportFuelPrices appends every valid row of a price CSV atomically. A date
// that already has a price fails the whole import with 409.
func (h *Handler) ImportFuelPrices(w http.ResponseWriter, r *http.Request) {
	body, err := csvBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer body.Close()

	series, rejected, err := ParseFuelPricesCSV(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid CSV", err)
		return
	}
	if len(series) > 0 {
		if err := h.Store.AppendFuelPrices(r.Context(), series); err != nil {
			h.fail(w, "Failed to import fuel prices", err)
			return
		}
	}

	h.logger.Info("fuel prices imported", zap.Int("imported", len(series)), zap.Int("rejected", len(rejected)))
	writeJSON(w, http.StatusOK, ImportResponse{Imported: len(series), Rejected: rejected})
}
