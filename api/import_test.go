package api_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/api"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

const tripsCSV = `date,route_code,route_name,plate,driver,distance_km,status,trip_code,notes
2026-01-10,R1,City Loop,V1,An,150,Onl,TC-001,
2026-01-11,R1,City Loop,v1,An,far,ON,TC-002,bad distance
10/01/2026,R1,City Loop,V1,An,20,ON,TC-003,bad date
,R1,City Loop,V1,An,20,ON,TC-004,no date
`

func TestParseTripsCSV_ReportsBadLines(t *testing.T) {
	trips, rejected, err := api.ParseTripsCSV(strings.NewReader(tripsCSV))
	require.NoError(t, err)

	require.Len(t, trips, 2)
	assert.Equal(t, "TC-001", trips[0].TripCode)
	assert.True(t, trips[0].DistanceKm.Equal(dec("150")))
	assert.Nil(t, trips[1].Date, "an empty date is kept and reported by the calculator")

	require.Len(t, rejected, 2)
	assert.Equal(t, 3, rejected[0].Line)
	assert.Contains(t, rejected[0].Error, "distance_km")
	assert.Equal(t, 4, rejected[1].Line)
}

func TestParseTripsCSV_WrongFieldCountIsRowError(t *testing.T) {
	csv := "date,route_code,plate,driver,distance_km,status\n2026-01-10,R1,V1\n2026-01-10,R1,V1,An,10,ON\n"

	trips, rejected, err := api.ParseTripsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, trips, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, 2, rejected[0].Line)
}

func TestParseTripsCSV_Empty(t *testing.T) {
	_, _, err := api.ParseTripsCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestImportTrips_StoresValidRows(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/trips/import", tripsCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[api.ImportResponse](t, rec)
	assert.Equal(t, 2, resp.Imported)
	assert.Len(t, resp.Rejected, 2)

	trips, err := s.store.Trips(context.Background(), fleet.TripFilter{
		DriverName: "An",
		Period:     generic.MonthPeriod(2026, time.January),
	})
	require.NoError(t, err)
	assert.Len(t, trips, 1, "the undated row is stored but outside every period")
}

func TestImportFuelPrices_Multipart(t *testing.T) {
	s := newServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "prices.csv")
	require.NoError(t, err)
	part.Write([]byte("application_date,unit_price\n2025-12-01,17000\n2026-01-05,18000\n2026-02-01,-5\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/fuel-prices/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.ImportResponse](t, rec)
	assert.Equal(t, 2, resp.Imported)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 4, resp.Rejected[0].Line)

	series, err := s.store.FuelPriceHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestImportFuelPrices_DuplicateDateRejectsWholeFile(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/fuel-prices/import", "application_date,unit_price\n2026-01-05,18000\n")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/fuel-prices/import", "application_date,unit_price\n2026-02-01,18500\n2026-01-05,19000\n")
	assert.Equal(t, http.StatusConflict, rec.Code)

	series, err := s.store.FuelPriceHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, series, 1)
}
