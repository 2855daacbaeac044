package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/generic"
)

func day(s string) generic.TimePoint { return generic.MustParseDate(s) }

func prices() generic.Series[int] {
	// Deliberately unsorted.
	return generic.Series[int]{
		{From: day("2026-01-05"), Value: 18000},
		{From: day("2025-12-01"), Value: 17000},
		{From: day("2026-02-01"), Value: 19000},
	}
}

func TestAsOf_BeforeFirstEntry_NotFound(t *testing.T) {
	_, ok := prices().AsOf(day("2025-11-30"))
	assert.False(t, ok, "no backward extrapolation")
}

func TestAsOf_ExactEffectiveDate(t *testing.T) {
	e, ok := prices().AsOf(day("2026-01-05"))
	require.True(t, ok)
	assert.Equal(t, 18000, e.Value)
}

func TestAsOf_BetweenEntries_TakesLatestNotAfter(t *testing.T) {
	e, ok := prices().AsOf(day("2026-01-31"))
	require.True(t, ok)
	assert.Equal(t, 18000, e.Value)
	assert.True(t, e.From.Equal(day("2026-01-05")))
}

func TestAsOf_AfterLastEntry_HoldsLastValue(t *testing.T) {
	e, ok := prices().AsOf(day("2030-01-01"))
	require.True(t, ok)
	assert.Equal(t, 19000, e.Value)
}

func TestAsOf_DuplicateDate_LastAppendedWins(t *testing.T) {
	s := append(prices(), generic.Effective[int]{From: day("2026-01-05"), Value: 18500})

	e, ok := s.AsOf(day("2026-01-10"))
	require.True(t, ok)
	assert.Equal(t, 18500, e.Value)
}

func TestAsOf_EmptySeries(t *testing.T) {
	_, ok := generic.AsOf[int](nil, day("2026-01-01"))
	assert.False(t, ok)
}

func TestAsOf_MonotonicInQueryDate(t *testing.T) {
	// For d1 < d2 the effective date found for d2 is never earlier than the
	// one found for d1.
	s := prices()
	period := generic.Period{Start: day("2025-11-25"), End: day("2026-02-10")}

	var last *generic.TimePoint
	for _, d := range period.Days() {
		e, ok := s.AsOf(d)
		if !ok {
			assert.Nil(t, last, "once found, a later date must also be found")
			continue
		}
		if last != nil {
			assert.False(t, e.From.Before(*last), "regressed at %s", d)
		}
		from := e.From
		last = &from
	}
	require.NotNil(t, last)
}

func TestSorted_StableForEqualDates(t *testing.T) {
	s := generic.Series[string]{
		{From: day("2026-01-02"), Value: "b"},
		{From: day("2026-01-01"), Value: "a"},
		{From: day("2026-01-02"), Value: "c"},
	}
	sorted := s.Sorted()

	assert.Equal(t, []string{"a", "b", "c"}, []string{sorted[0].Value, sorted[1].Value, sorted[2].Value})
	assert.Equal(t, "b", s[0].Value, "original untouched")
}
