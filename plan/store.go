/*
store.go - Persistence interfaces for plan versions and wire fees

PURPOSE:
  Defines the interface between the engine and the database. Versions are
  append-only records: lifecycle operations insert new versions or flip
  status/primary flags; schedule rows are replaced wholesale only while the
  owning version is a Draft.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - plan/store/memory.go:   In-memory for testing

SEE ALSO:
  - version.go: The lifecycle state machine using VersionStore
  - wirefee.go: Ancillary fee ledger using WireFeeStore
*/
package plan

import "context"

// =============================================================================
// VERSION STORE
// =============================================================================

// VersionStore persists plan versions and their schedule items.
type VersionStore interface {
	// SaveVersion inserts a new version together with its items.
	SaveVersion(ctx context.Context, v PlanVersion) error

	// GetVersion returns a version with its items, or ErrVersionNotFound.
	GetVersion(ctx context.Context, id VersionID) (*PlanVersion, error)

	// ListVersions returns all versions for a case, newest version first.
	ListVersions(ctx context.Context, caseID CaseID) ([]PlanVersion, error)

	// UpdateVersionStatus flips a version's lifecycle status in place.
	UpdateVersionStatus(ctx context.Context, id VersionID, status VersionStatus) error

	// ReplaceItems swaps the full item set of a version (Draft edits only;
	// the caller enforces editability).
	ReplaceItems(ctx context.Context, id VersionID, items []ScheduleItem) error

	// UpdateItemStatus changes a single row's status (e.g. Scheduled -> Cleared).
	UpdateItemStatus(ctx context.Context, id ItemID, status ItemStatus) error

	// SetPrimary makes the version the case's single primary, demoting any
	// previous primary atomically.
	SetPrimary(ctx context.Context, caseID CaseID, id VersionID) error

	// DeleteVersion removes a version and its items.
	DeleteVersion(ctx context.Context, id VersionID) error

	// NextVersionNumber returns the next monotonic version number for a case.
	NextVersionNumber(ctx context.Context, caseID CaseID) (int, error)
}

// =============================================================================
// WIRE FEE STORE
// =============================================================================

// WireFeeStore persists ancillary fees keyed by schedule item.
type WireFeeStore interface {
	AddWireFee(ctx context.Context, fee WireFee) error
	ListWireFees(ctx context.Context, itemID ItemID) ([]WireFee, error)

	// ReassignWireFees re-keys every fee on one item to another. Used when
	// lifecycle operations copy a row forward under a new ID, so attached
	// fees follow the copy. No fees on the source item is not an error.
	ReassignWireFees(ctx context.Context, from, to ItemID) error
}
