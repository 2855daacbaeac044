package quota

import (
	"context"
	"strings"

	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// RouteDay is the outcome of checking one route on one day for one vehicle.
type RouteDay struct {
	Route   *fleet.Route
	Off     bool
	Entries int
}

// RouteStatusChecker decides whether a route was non-operational (OFF) on a
// day for a vehicle, based on the daily route log.
//
// The rule is conjunctive: the route is OFF only when at least one log entry
// exists for (route, date, plate) and EVERY such entry has a non-ON status.
// A single ON/ONLINE entry among any number of OFF entries means the route
// ran. Missing route metadata or a day with no entries is never OFF.
type RouteStatusChecker struct {
	Routes fleet.RouteReader
}

// FindRoute looks up an active route by code, falling back to name.
// Returns nil when neither resolves to an active route.
func (c *RouteStatusChecker) FindRoute(ctx context.Context, code, name string) (*fleet.Route, error) {
	if code = strings.TrimSpace(code); code != "" {
		route, err := c.Routes.RouteByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if route != nil && route.Active {
			return route, nil
		}
	}
	if name = strings.TrimSpace(name); name != "" {
		route, err := c.Routes.RouteByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if route != nil && route.Active {
			return route, nil
		}
	}
	return nil, nil
}

// IsRouteOffOnDate reports whether the route with the given code was OFF on
// date for plate.
func (c *RouteStatusChecker) IsRouteOffOnDate(ctx context.Context, routeCode string, date generic.TimePoint, plate string) (bool, error) {
	route, err := c.FindRoute(ctx, routeCode, "")
	if err != nil {
		return false, err
	}
	day, err := c.Check(ctx, route, date, plate)
	if err != nil {
		return false, err
	}
	return day.Off, nil
}

// Check evaluates an already resolved route. A nil route is not OFF.
func (c *RouteStatusChecker) Check(ctx context.Context, route *fleet.Route, date generic.TimePoint, plate string) (RouteDay, error) {
	day := RouteDay{Route: route}
	if route == nil {
		return day, nil
	}

	logs, err := c.Routes.DailyLogs(ctx, route.ID, date, fleet.NormalizePlate(plate))
	if err != nil {
		return day, err
	}
	day.Entries = len(logs)
	if len(logs) == 0 {
		return day, nil
	}

	for _, l := range logs {
		if fleet.IsRouteLogOn(l.Status) {
			return day, nil
		}
	}
	day.Off = true
	return day, nil
}
