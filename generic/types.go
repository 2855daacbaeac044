/*
Package generic provides the domain-agnostic building blocks of the fuel-quota engine.

PURPOSE:
  Everything here is independent of vehicles, drivers and routes. The package
  owns the calendar-day time model, closed periods, effective-dated series and
  exact decimal quantities. The fleet and quota packages build on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 30.00 litres, 540000 currency)
  - Unit: What an Amount measures

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so litres and cost round exactly
  2. Rounding at the source: per-trip litres are rounded when computed, and
     totals are sums of already-rounded values
  3. Type Safety: Units are carried with values so litres never add to cost

USAGE:
  total := generic.ZeroAmount(generic.UnitLitres)
  total = total.Add(generic.NewAmountFromDecimal(tripLitres, generic.UnitLitres))
  delta := total.Sub(dispensed)

SEE ALSO:
  - series.go: Effective-dated series and the AsOf lookup
  - time.go: TimePoint
  - errors.go: Sentinel errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitLitres   Unit = "litres"
	UnitCurrency Unit = "currency"
)

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// ZeroAmount returns 0 in the given unit.
func ZeroAmount(unit Unit) Amount {
	return Amount{Value: decimal.Zero, Unit: unit}
}

func (a Amount) Add(b Amount) Amount { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }

// Round rounds half away from zero to the given number of decimal places.
// Quantities in this system are non-negative, so this is plain half-up.
func (a Amount) Round(places int32) Amount {
	return Amount{Value: a.Value.Round(places), Unit: a.Unit}
}

func (a Amount) String() string { return a.Value.String() + " " + string(a.Unit) }
