package quota

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/generic"
)

// PriceLookup resolves fuel and route prices as of a date. Both go through
// generic.AsOf; series are loaded once per lookup and reused, which is safe
// because a lookup lives inside a single registry snapshot.
type PriceLookup struct {
	Fuel   fleet.FuelPriceReader
	Routes fleet.RoutePriceReader

	mu          sync.Mutex
	fuelSeries  generic.Series[decimal.Decimal]
	fuelLoaded  bool
	routeSeries map[string]generic.Series[decimal.Decimal]
}

// FuelPriceAsOf returns the diesel price effective on date, or nil when the
// date precedes every recorded price.
func (p *PriceLookup) FuelPriceAsOf(ctx context.Context, date generic.TimePoint) (*decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.fuelLoaded {
		series, err := p.Fuel.FuelPriceHistory(ctx)
		if err != nil {
			return nil, err
		}
		p.fuelSeries = series
		p.fuelLoaded = true
	}
	return priceAsOf(p.fuelSeries, date), nil
}

// RoutePriceAsOf returns the route's price effective on date, or nil.
func (p *PriceLookup) RoutePriceAsOf(ctx context.Context, routeID string, date generic.TimePoint) (*decimal.Decimal, error) {
	if p.Routes == nil {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.routeSeries == nil {
		p.routeSeries = make(map[string]generic.Series[decimal.Decimal])
	}
	series, ok := p.routeSeries[routeID]
	if !ok {
		var err error
		series, err = p.Routes.RoutePriceHistory(ctx, routeID)
		if err != nil {
			return nil, err
		}
		p.routeSeries[routeID] = series
	}
	return priceAsOf(series, date), nil
}

func priceAsOf(series generic.Series[decimal.Decimal], date generic.TimePoint) *decimal.Decimal {
	entry, ok := series.AsOf(date)
	if !ok {
		return nil
	}
	price := entry.Value
	return &price
}
