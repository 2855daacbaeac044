package generic_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/generic"
)

func TestParseDate(t *testing.T) {
	tp, err := generic.ParseDate(" 2026-01-15 ")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-15", tp.String())

	_, err = generic.ParseDate("15/01/2026")
	assert.Error(t, err)
}

func TestFromTime_DropsClock(t *testing.T) {
	tp := generic.FromTime(time.Date(2026, 1, 15, 23, 59, 0, 0, time.UTC))
	assert.True(t, tp.Equal(generic.NewTimePoint(2026, time.January, 15)))
}

func TestParseMonth(t *testing.T) {
	p, err := generic.ParseMonth("2026-02")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", p.Start.String())
	assert.Equal(t, "2026-02-28", p.End.String())
	assert.Equal(t, "2026-02", p.Month())
	assert.Equal(t, "2026-01", p.PreviousMonth().Month())

	_, err = generic.ParseMonth("2026-13")
	assert.Error(t, err)
}

func TestPeriod_ContainsIsInclusive(t *testing.T) {
	p := generic.MonthPeriod(2026, time.January)
	assert.True(t, p.Contains(day("2026-01-01")))
	assert.True(t, p.Contains(day("2026-01-31")))
	assert.False(t, p.Contains(day("2026-02-01")))
	assert.Len(t, p.Days(), 31)
}

func TestPeriod_Validate(t *testing.T) {
	bad := generic.Period{Start: day("2026-02-01"), End: day("2026-01-01")}
	assert.ErrorIs(t, bad.Validate(), generic.ErrInvalidPeriod)
}

func TestAmount_RoundHalfAwayFromZero(t *testing.T) {
	a := generic.NewAmountFromDecimal(decimal.RequireFromString("2.005"), generic.UnitLitres)
	assert.Equal(t, "2.01", a.Round(2).Value.StringFixed(2))

	c := generic.NewAmountFromDecimal(decimal.RequireFromString("4500.5"), generic.UnitCurrency)
	assert.Equal(t, "4501", c.Round(0).Value.String())
}

func TestAmount_TotalsKeepUnit(t *testing.T) {
	total := generic.ZeroAmount(generic.UnitLitres)
	total = total.Add(generic.NewAmountFromDecimal(decimal.RequireFromString("30.00"), generic.UnitLitres))
	total = total.Add(generic.NewAmountFromDecimal(decimal.RequireFromString("9.10"), generic.UnitLitres))

	delta := total.Sub(generic.NewAmountFromDecimal(decimal.RequireFromString("40"), generic.UnitLitres))

	assert.Equal(t, generic.UnitLitres, delta.Unit)
	assert.Equal(t, "-0.90", delta.Value.StringFixed(2))
}

func TestRegistryError_Unwraps(t *testing.T) {
	cause := assert.AnError
	err := generic.WrapRegistry("vehicle by plate", cause)

	assert.ErrorIs(t, err, generic.ErrRegistryUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, generic.IsRegistryUnavailable(err))
	assert.Same(t, err, generic.WrapRegistry("outer", err), "already wrapped")
	assert.NoError(t, generic.WrapRegistry("noop", nil))
}
