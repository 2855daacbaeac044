package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
	"github.com/warp/fuel-quota/api"
	"github.com/warp/fuel-quota/quota"
)

func validFormat(f string) bool {
	return f == "table" || f == "json" || f == "csv"
}

// lineRow is one CSV row of the per-trip breakdown.
type lineRow struct {
	TripID     string `csv:"trip_id"`
	Date       string `csv:"date"`
	RouteCode  string `csv:"route_code"`
	Plate      string `csv:"plate"`
	DistanceKm string `csv:"distance_km"`
	Status     string `csv:"status"`
	Litres     string `csv:"litres"`
	Cost       string `csv:"cost"`
	FuelPrice  string `csv:"fuel_price"`
	RoutePrice string `csv:"route_price"`
	Skip       string `csv:"skip_reason"`
	Assignment string `csv:"assignment"`
	Warning    string `csv:"warning"`
}

func rows(rep *quota.Report) []lineRow {
	out := make([]lineRow, 0, len(rep.Lines))
	for _, l := range rep.Lines {
		row := lineRow{
			TripID:     l.Trip.ID,
			RouteCode:  l.Trip.RouteCode,
			Plate:      l.Trip.Plate,
			DistanceKm: l.Trip.DistanceKm.String(),
			Status:     l.Trip.Status,
			Litres:     "0.00",
			Cost:       "0",
			Skip:       string(l.Skip),
		}
		if l.Trip.Date != nil {
			row.Date = l.Trip.Date.String()
		}
		if l.RoutePrice != nil {
			row.RoutePrice = l.RoutePrice.String()
		}
		if res := l.Result; res != nil {
			row.Litres = res.Litres.StringFixed(2)
			row.Cost = res.Cost.StringFixed(0)
			row.Assignment = res.Assignment.String()
			row.Warning = res.Warning
			if res.FuelPrice != nil {
				row.FuelPrice = res.FuelPrice.String()
			}
		}
		out = append(out, row)
	}
	return out
}

func render(w io.Writer, rep *quota.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewReportDTO(rep))
	case "csv":
		data, err := csvutil.Marshal(rows(rep))
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return renderTable(w, rep)
	}
}

func renderTable(w io.Writer, rep *quota.Report) error {
	fmt.Fprintf(w, "Driver: %s\nPeriod: %s to %s\nPlates: %v\n\n",
		rep.DriverName, rep.Period.Start, rep.Period.End, rep.Plates)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIP\tDATE\tROUTE\tPLATE\tKM\tSTATUS\tLITRES\tCOST\tSKIP")
	for _, r := range rows(rep) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TripID, r.Date, r.RouteCode, r.Plate, r.DistanceKm, r.Status, r.Litres, r.Cost, r.Skip)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTrips: %d  Eligible: %d\n", rep.TripCount, rep.EligibleCount)
	fmt.Fprintf(w, "Quota:     %s L  %s\n", rep.QuotaLitres.Value.StringFixed(2), rep.QuotaCost.Value.StringFixed(0))
	fmt.Fprintf(w, "Dispensed: %s L  %s\n", rep.DispensedLitres.Value.StringFixed(2), rep.DispensedCost.Value.StringFixed(0))
	fmt.Fprintf(w, "Delta:     %s L  %s\n", rep.DeltaLitres.Value.StringFixed(2), rep.DeltaCost.Value.StringFixed(0))

	var reasons []string
	for reason, n := range rep.SkipCounts {
		if n > 0 {
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
		}
	}
	sort.Strings(reasons)
	if len(reasons) > 0 {
		fmt.Fprintf(w, "Skipped:   %v\n", reasons)
	}
	for _, a := range rep.Anomalies {
		fmt.Fprintf(w, "Anomaly:   %s %s %s\n", a.TripID, a.Kind, a.Message)
	}
	return nil
}
