package quota

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Calculator computes the quota for single trips against one registry view.
// It holds no state besides the price cache of its PriceLookup, so two
// calculations of the same trip over the same view return the same Result.
type Calculator struct {
	Resolver *Resolver
	Routes   *RouteStatusChecker
	Prices   *PriceLookup

	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a Calculator or Reconciler.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewCalculator wires a calculator to every reader it needs from reg.
func NewCalculator(reg fleet.Registry, opts ...Option) *Calculator {
	o := buildOptions(opts)
	return &Calculator{
		Resolver: &Resolver{Vehicles: reg, Drivers: reg, Assignments: reg},
		Routes:   &RouteStatusChecker{Routes: reg},
		Prices:   &PriceLookup{Fuel: reg, Routes: reg},
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Calculate returns the litres and cost due for one trip.
//
// Decision sequence, each step ending in a zero result that still says why:
//
//  1. status OFF                               -> off_status, no warning
//  2. no date, no plate, or distance <= 0      -> missing_data / no_distance
//  3. route (code, else name) OFF on that day  -> route_off
//  4. assignment not valid                     -> not_owned_fleet / invalid_assignment
//  5. no consumption norm, or norm <= 0        -> no_consumption_norm
//  6. no fuel price effective on the date      -> no_price (norm still reported)
//  7. litres = round(distance * norm / 100, 2)
//  8. cost   = round(litres * price, 0)
//
// Litres are not computed when the assignment is invalid: eligibility gates
// both figures.
//
// The only error is a failed registry read.
func (c *Calculator) Calculate(ctx context.Context, trip fleet.TripRecord) (Result, error) {
	res, err := c.calculate(ctx, trip)
	if err != nil {
		c.metrics.registryError()
		return Result{}, err
	}
	c.metrics.observe(res)
	c.logger.Debug("trip quota evaluated",
		zap.String("trip_id", trip.ID),
		zap.String("plate", trip.Plate),
		zap.String("driver", trip.DriverName),
		zap.String("skip", string(res.Skip)),
		zap.String("assignment", res.Assignment.String()),
		zap.String("litres", res.Litres.StringFixed(2)),
		zap.String("cost", res.Cost.String()),
	)
	return res, nil
}

func (c *Calculator) calculate(ctx context.Context, trip fleet.TripRecord) (Result, error) {
	// 1. OFF is an expected path, not a warning.
	if fleet.IsOff(trip.Status) {
		return zeroResult(trip.ID, SkipOffStatus), nil
	}

	// 2. Nothing to attribute.
	plate := fleet.NormalizePlate(trip.Plate)
	if trip.Date == nil || trip.Date.IsZero() || plate == "" {
		return zeroResult(trip.ID, SkipMissingData), nil
	}
	if !trip.DistanceKm.IsPositive() {
		return zeroResult(trip.ID, SkipNoDistance), nil
	}
	date := *trip.Date

	// 3. Route OFF for this vehicle on this day.
	route, err := c.Routes.FindRoute(ctx, trip.RouteCode, trip.RouteName)
	if err != nil {
		return Result{}, err
	}
	day, err := c.Routes.Check(ctx, route, date, plate)
	if err != nil {
		return Result{}, err
	}
	if day.Off {
		res := zeroResult(trip.ID, SkipRouteOff)
		res.Warning = WarnRouteOff
		res.RouteLogEntries = day.Entries
		return res, nil
	}

	// 4. Assignment.
	resolution, err := c.Resolver.Resolve(ctx, plate, trip.DriverName, trip.Date)
	if err != nil {
		return Result{}, err
	}
	if !resolution.Valid() {
		skip := SkipInvalidAssignment
		if resolution.Reason == ReasonPartnerVehicle {
			skip = SkipNotOwnedFleet
		}
		res := zeroResult(trip.ID, skip)
		res.Assignment = resolution
		res.Warning = resolution.Reason.Message()
		res.RouteLogEntries = day.Entries
		return res, nil
	}

	res := zeroResult(trip.ID, SkipNone)
	res.Assignment = resolution
	res.RouteLogEntries = day.Entries

	// 5. Consumption norm.
	norm := resolution.Vehicle.ConsumptionNorm
	if norm == nil || !norm.IsPositive() {
		res.Skip = SkipNoConsumptionNorm
		res.Warning = WarnNoNorm
		return res, nil
	}
	n := *norm
	res.ConsumptionNorm = &n

	// 6. Fuel price effective on the trip date.
	price, err := c.Prices.FuelPriceAsOf(ctx, date)
	if err != nil {
		return Result{}, err
	}
	if price == nil {
		res.Skip = SkipNoPrice
		res.Warning = WarnNoPrice
		return res, nil
	}
	res.FuelPrice = price

	// 7-8. Round litres first; cost is derived from the rounded litres.
	res.Litres = Litres(trip.DistanceKm, n)
	res.Cost = Cost(res.Litres, *price)
	return res, nil
}

// Litres returns distanceKm * norm / 100 rounded half-up to 2 places.
func Litres(distanceKm, normPer100 decimal.Decimal) decimal.Decimal {
	return distanceKm.Mul(normPer100).Div(hundred).Round(2)
}

// Cost returns litres * unitPrice rounded half-up to a whole currency unit.
func Cost(litres, unitPrice decimal.Decimal) decimal.Decimal {
	return litres.Mul(unitPrice).Round(0)
}
