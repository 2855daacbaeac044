/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Registry errors - the backing store could not answer a read. These are
     the only hard failures of a quota computation and abort a batch.
  2. Input errors - malformed periods, dates or identifiers supplied by callers.
  3. Write errors - uniqueness violations on the registry write surface.

  Missing prices, norms or assignments are NOT errors. They are reported as
  reason codes on quota results.

USAGE:
  if errors.Is(err, generic.ErrRegistryUnavailable) {
      // storage outage: do not report zero quota
  }

SEE ALSO:
  - store/sqlite/sqlite.go: Wraps driver failures in RegistryError
  - quota/reconcile.go: Propagates RegistryError to callers
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRegistryUnavailable is returned when the underlying data store
	// cannot be reached or a read fails.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrDuplicateEffectiveDate is returned when appending a second price for
	// a date that already has one.
	ErrDuplicateEffectiveDate = errors.New("duplicate effective date")

	// ErrDuplicateKey is returned when a registry record's natural key
	// (plate, driver name, route code) already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by write operations that reference a missing record.
	ErrNotFound = errors.New("not found")

	// ErrAssignmentClosed is returned when closing an assignment that already has an end date.
	ErrAssignmentClosed = errors.New("assignment already closed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RegistryError records which read failed and why.
type RegistryError struct {
	Op  string // e.g., "vehicle by plate"
	Err error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry unavailable: %s: %v", e.Op, e.Err)
}

func (e *RegistryError) Unwrap() []error {
	return []error{ErrRegistryUnavailable, e.Err}
}

// WrapRegistry wraps err as a RegistryError unless it is nil or already one.
func WrapRegistry(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRegistryUnavailable) {
		return err
	}
	return &RegistryError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRegistryUnavailable returns true if the error came from a failed registry read.
func IsRegistryUnavailable(err error) bool {
	return errors.Is(err, ErrRegistryUnavailable)
}
