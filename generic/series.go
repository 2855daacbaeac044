package generic

import "sort"

// =============================================================================
// EFFECTIVE-DATED SERIES - Step functions over calendar days
// =============================================================================

// Effective is one step of a step function: Value applies from From
// (inclusive) until the next entry's From.
type Effective[T any] struct {
	From  TimePoint
	Value T
}

// Series is an append-only list of effective-dated values. Entries need not
// be sorted and storage is not trusted to keep From unique.
type Series[T any] []Effective[T]

// AsOf returns the entry with the greatest From that is not after at.
// When several entries share that date the one appended last wins.
// It never interpolates and never looks forward: a date before the first
// entry yields ok == false.
func AsOf[T any](entries []Effective[T], at TimePoint) (Effective[T], bool) {
	var (
		best  Effective[T]
		found bool
	)
	for _, e := range entries {
		if e.From.After(at) {
			continue
		}
		if !found || e.From.AfterOrEqual(best.From) {
			best = e
			found = true
		}
	}
	return best, found
}

// AsOf is the method form of the package-level AsOf.
func (s Series[T]) AsOf(at TimePoint) (Effective[T], bool) {
	return AsOf(s, at)
}

// Sorted returns a copy ordered by From ascending, preserving append order
// between equal dates.
func (s Series[T]) Sorted() Series[T] {
	out := make(Series[T], len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].From.Before(out[j].From)
	})
	return out
}
