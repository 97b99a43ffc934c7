/*
errors.go - Centralized error types for the plan engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Outer layers classify with errors.Is and the helpers at the bottom.

ERROR CATEGORIES:
  1. Configuration errors - Fatal; calculation refuses to run
  2. Validation errors - Recoverable; surfaced inline, block save/calculate
  3. Transition errors - Illegal version-state change, no state mutation
  4. Staleness - Never user-visible; superseded async results are dropped

SEE ALSO:
  - bounds.go: BoundsViolationError construction
  - version.go: InvalidTransitionError construction
*/
package plan

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfigurationUnavailable means required business policy could not be
	// loaded. Fatal for calculation: the engine must refuse rather than fall
	// back to hardcoded policy.
	ErrConfigurationUnavailable = errors.New("configuration unavailable")

	// ErrValidation is the base for recoverable input problems.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is the base for illegal version-state changes.
	ErrInvalidTransition = errors.New("invalid version transition")

	// ErrStaleResultDiscarded marks an async result superseded by a newer
	// request. Callers drop it silently; it never reaches the user.
	ErrStaleResultDiscarded = errors.New("stale result discarded")

	// ErrCalculationService is a transient calculation failure. Retry is
	// user-initiated, never automatic.
	ErrCalculationService = errors.New("calculation service error")

	// ErrPersistenceConflict means another version became primary (or the
	// record changed) concurrently; the caller must reload.
	ErrPersistenceConflict = errors.New("persistence conflict")

	// ErrVersionNotFound is returned when a referenced version doesn't exist.
	ErrVersionNotFound = errors.New("plan version not found")

	// ErrItemNotFound is returned when a referenced schedule item doesn't exist.
	ErrItemNotFound = errors.New("schedule item not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError names the attempted and actual states so callers
// can surface exactly what was refused. No state is mutated on failure.
type InvalidTransitionError struct {
	VersionID VersionID
	Operation string // e.g. "activate", "suspend", "delete"
	Actual    VersionStatus
	Attempted VersionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s version %s: status is %q, wanted %q",
		e.Operation, e.VersionID, e.Actual, e.Attempted)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// BoundsViolationError reports a target payment outside configured bounds.
// Clamping is never silent: the applied value and the clamped delta are both
// carried so the caller can inform the user.
type BoundsViolationError struct {
	Field     string
	Requested decimal.Decimal
	Applied   decimal.Decimal
	Delta     decimal.Decimal
}

func (e *BoundsViolationError) Error() string {
	return fmt.Sprintf("%s out of bounds: requested %s, applied %s (delta %s)",
		e.Field, e.Requested, e.Applied, e.Delta)
}

func (e *BoundsViolationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal returns true if the error must disable calculation entry points.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfigurationUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrItemNotFound)
}

// IsConflict returns true if the caller should reload and retry deliberately.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPersistenceConflict)
}
