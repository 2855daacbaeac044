package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range used to scope batch reads
// =============================================================================

// Period is the closed range [Start, End]. Reconciliation always runs over a
// calendar month, but registry reads accept any period.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// MonthPeriod returns the calendar month containing year/month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// ParseMonth parses "YYYY-MM" into the matching calendar month.
func ParseMonth(s string) (Period, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return MonthPeriod(t.Year(), t.Month()), nil
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// Month names the period by its starting month, e.g. "2026-01".
func (p Period) Month() string {
	return p.Start.Time.Format(MonthLayout)
}

// PreviousMonth returns the calendar month before the one containing p.Start.
func (p Period) PreviousMonth() Period {
	prev := StartOfMonth(p.Start.Year(), p.Start.Month()).AddMonths(-1)
	return MonthPeriod(prev.Year(), prev.Month())
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
