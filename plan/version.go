/*
version.go - Append-only lifecycle of plan versions

PURPOSE:
  Owns the version state machine. Every operation either inserts a new
  immutable version or flips a status flag; schedule history is never
  rewritten. Exactly one version per case may be primary.

TRANSITIONS:
  create       -> new Draft (primary only if the case has no versions yet)
  recalculate  Draft|Active -> new Draft; only Scheduled rows regenerate,
               frozen rows are copied forward verbatim; old version Archived
  activate     Draft -> Active (rows keep their status; edit permission is
               governed by the IsEditable predicate)
  suspend      Active -> new Suspended version with Scheduled rows Cancelled;
               old version Archived
  setPrimary   Draft|Active -> becomes the case primary, previous demoted
  delete       Draft|Archived and not primary only

  Anything else fails with InvalidTransitionError naming the attempted and
  actual states. Callers must not coerce state.

SEE ALSO:
  - store.go: VersionStore persistence contract
  - calculator.go: Regeneration math
*/
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager drives the version lifecycle over a VersionStore.
type Manager struct {
	Store VersionStore
	Calc  *Calculator

	// Fees, when set, lets lifecycle operations move wire fees onto rows
	// they copy forward, so attachments survive recalculate and suspend.
	Fees WireFeeStore

	// Overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func NewManager(store VersionStore, calc *Calculator) *Manager {
	return &Manager{
		Store: store,
		Calc:  calc,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

func (m *Manager) withItemIDs(items []ScheduleItem) []ScheduleItem {
	out := make([]ScheduleItem, len(items))
	for i, it := range items {
		it.ID = ItemID(m.NewID())
		out[i] = it
	}
	return out
}

// carryForward copies rows into a new version under fresh IDs and re-keys
// any wire fees attached to the originals onto the copies.
func (m *Manager) carryForward(ctx context.Context, items []ScheduleItem) ([]ScheduleItem, error) {
	out := make([]ScheduleItem, len(items))
	for i, it := range items {
		oldID := it.ID
		it.ID = ItemID(m.NewID())
		if m.Fees != nil && oldID != "" {
			if err := m.Fees.ReassignWireFees(ctx, oldID, it.ID); err != nil {
				return nil, err
			}
		}
		out[i] = it
	}
	return out, nil
}

// =============================================================================
// CREATE
// =============================================================================

// Create calculates a fresh schedule and persists it as a new Draft.
// The first version of a case becomes primary; later ones do not.
func (m *Manager) Create(ctx context.Context, caseID CaseID, cfg PlanConfiguration, totals CaseTotals, createdBy string) (*PlanVersion, error) {
	items, _, err := m.Calc.Generate(CalculationInput{Config: cfg, Totals: totals})
	if err != nil {
		return nil, err
	}

	existing, err := m.Store.ListVersions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	number, err := m.Store.NextVersionNumber(ctx, caseID)
	if err != nil {
		return nil, err
	}

	v := PlanVersion{
		ID:            VersionID(m.NewID()),
		CaseID:        caseID,
		VersionNumber: number,
		Status:        VersionDraft,
		IsPrimary:     len(existing) == 0,
		Config:        cfg,
		Totals:        totals,
		Items:         m.withItemIDs(items),
		CreatedAt:     m.Now(),
		CreatedBy:     createdBy,
	}
	if err := m.Store.SaveVersion(ctx, v); err != nil {
		return nil, err
	}
	return &v, nil
}

// =============================================================================
// RECALCULATE
// =============================================================================

// Recalculate regenerates only the Scheduled rows of a version into a new
// Draft. Cleared/NSF/Cancelled rows are copied forward verbatim and excluded
// from regeneration; cleared contributions reduce the remaining program cost,
// and wire fees attached to carried rows follow their copies.
// The old version is archived, not mutated; primary carries over.
func (m *Manager) Recalculate(ctx context.Context, id VersionID) (*PlanVersion, error) {
	old, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != VersionDraft && old.Status != VersionActive {
		return nil, &InvalidTransitionError{
			VersionID: id, Operation: "recalculate",
			Actual: old.Status, Attempted: VersionDraft,
		}
	}

	weekly, bound, err := WeeklyTarget(old.Config, old.Totals)
	if err != nil {
		return nil, err
	}
	summary, err := m.Calc.DurationFromAmount(old.Config, old.Totals, weekly)
	if err != nil {
		return nil, err
	}
	summary.Bound = bound

	// Frozen rows survive verbatim; cleared rows fund part of the program.
	var frozen []ScheduleItem
	remaining := summary.ChargedCost
	lastDate := TimePoint{}
	maxSeq := 0
	for _, it := range old.Items {
		if !it.IsLocked() {
			continue
		}
		frozen = append(frozen, it)
		if it.Status == ItemCleared {
			remaining = remaining.Sub(it.NetContribution())
		}
		if it.PaymentDate.After(lastDate) {
			lastDate = it.PaymentDate
		}
		if it.SequenceNumber > maxSeq {
			maxSeq = it.SequenceNumber
		}
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	first := old.Config.FirstPaymentDate
	if !lastDate.IsZero() {
		first = nextPaymentDate(lastDate, old.Config.PaymentFrequency)
	}

	regenerated, err := m.regenerate(old.Config, summary, remaining, first, maxSeq)
	if err != nil {
		return nil, err
	}
	carried, err := m.carryForward(ctx, frozen)
	if err != nil {
		return nil, err
	}

	number, err := m.Store.NextVersionNumber(ctx, old.CaseID)
	if err != nil {
		return nil, err
	}

	next := PlanVersion{
		ID:            VersionID(m.NewID()),
		CaseID:        old.CaseID,
		VersionNumber: number,
		Status:        VersionDraft,
		IsPrimary:     old.IsPrimary,
		Config:        old.Config,
		Totals:        old.Totals,
		Items:         append(carried, m.withItemIDs(regenerated)...),
		CreatedAt:     m.Now(),
		CreatedBy:     old.CreatedBy,
	}
	if err := m.Store.SaveVersion(ctx, next); err != nil {
		return nil, err
	}
	if err := m.Store.UpdateVersionStatus(ctx, old.ID, VersionArchived); err != nil {
		return nil, err
	}
	if old.IsPrimary {
		if err := m.Store.SetPrimary(ctx, next.CaseID, next.ID); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// regenerate produces fresh Scheduled rows funding the remaining cost.
func (m *Manager) regenerate(cfg PlanConfiguration, summary Summary, remaining decimal.Decimal, first TimePoint, seqOffset int) ([]ScheduleItem, error) {
	if !remaining.IsPositive() {
		return nil, nil
	}
	count := int(remaining.Div(summary.NetPerPeriod).Ceil().IntPart())
	dates, err := PaymentDates(first, cfg.PaymentFrequency, count, cfg.PreferredWeekday)
	if err != nil {
		return nil, err
	}

	dec := NewDecomposer(cfg, m.Calc.Policy)
	items := make([]ScheduleItem, 0, count)
	for i := 0; i < count && remaining.IsPositive(); i++ {
		net := summary.NetPerPeriod
		if net.GreaterThan(remaining) {
			net = remaining
		}
		item := dec.Row(seqOffset+i+1, dates[i], net, remaining)
		remaining = item.RunningBalance
		items = append(items, item)
	}
	return items, nil
}

func nextPaymentDate(last TimePoint, freq PaymentFrequency) TimePoint {
	if freq == FrequencyMonthly {
		return last.AddMonths(1)
	}
	return last.AddDays(7)
}

// =============================================================================
// ACTIVATE / SUSPEND
// =============================================================================

// Activate promotes a Draft to Active.
func (m *Manager) Activate(ctx context.Context, id VersionID) (*PlanVersion, error) {
	v, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != VersionDraft {
		return nil, &InvalidTransitionError{
			VersionID: id, Operation: "activate",
			Actual: v.Status, Attempted: VersionActive,
		}
	}
	if err := m.Store.UpdateVersionStatus(ctx, id, VersionActive); err != nil {
		return nil, err
	}
	v.Status = VersionActive
	return v, nil
}

// Suspend cancels all Scheduled rows of an Active version into a new
// Suspended version. Frozen rows are unchanged; the old version is archived.
func (m *Manager) Suspend(ctx context.Context, id VersionID) (*PlanVersion, error) {
	old, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Status != VersionActive {
		return nil, &InvalidTransitionError{
			VersionID: id, Operation: "suspend",
			Actual: old.Status, Attempted: VersionSuspended,
		}
	}

	items := make([]ScheduleItem, len(old.Items))
	for i, it := range old.Items {
		if it.Status == ItemScheduled {
			it.Status = ItemCancelled
		}
		items[i] = it
	}
	carried, err := m.carryForward(ctx, items)
	if err != nil {
		return nil, err
	}

	number, err := m.Store.NextVersionNumber(ctx, old.CaseID)
	if err != nil {
		return nil, err
	}
	next := PlanVersion{
		ID:            VersionID(m.NewID()),
		CaseID:        old.CaseID,
		VersionNumber: number,
		Status:        VersionSuspended,
		IsPrimary:     old.IsPrimary,
		Config:        old.Config,
		Totals:        old.Totals,
		Items:         carried,
		CreatedAt:     m.Now(),
		CreatedBy:     old.CreatedBy,
	}
	if err := m.Store.SaveVersion(ctx, next); err != nil {
		return nil, err
	}
	if err := m.Store.UpdateVersionStatus(ctx, old.ID, VersionArchived); err != nil {
		return nil, err
	}
	if old.IsPrimary {
		if err := m.Store.SetPrimary(ctx, next.CaseID, next.ID); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// =============================================================================
// PRIMARY / DELETE
// =============================================================================

// SetPrimary makes the version the case's single primary. Only Draft and
// Active versions are eligible; the previous primary is demoted, not deleted.
func (m *Manager) SetPrimary(ctx context.Context, id VersionID) error {
	v, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	if v.Status != VersionDraft && v.Status != VersionActive {
		return &InvalidTransitionError{
			VersionID: id, Operation: "set primary",
			Actual: v.Status, Attempted: VersionActive,
		}
	}
	return m.Store.SetPrimary(ctx, v.CaseID, id)
}

// Delete removes a version. Permitted only for non-primary Draft or
// Archived versions.
func (m *Manager) Delete(ctx context.Context, id VersionID) error {
	v, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	if v.Status != VersionDraft && v.Status != VersionArchived {
		return &InvalidTransitionError{
			VersionID: id, Operation: "delete",
			Actual: v.Status, Attempted: VersionArchived,
		}
	}
	if v.IsPrimary {
		return fmt.Errorf("%w: version %s is primary", ErrPersistenceConflict, id)
	}
	return m.Store.DeleteVersion(ctx, id)
}

// =============================================================================
// EDITS
// =============================================================================

// SaveItems replaces a version's rows after grid edits. Only Draft versions
// (or Active ones when policy allows) accept row replacement, and frozen
// rows must come back unchanged.
func (m *Manager) SaveItems(ctx context.Context, id VersionID, items []ScheduleItem) error {
	v, err := m.Store.GetVersion(ctx, id)
	if err != nil {
		return err
	}
	editable := v.Status == VersionDraft ||
		(v.Status == VersionActive && m.Calc.Policy.ActiveRowsEditable)
	if !editable {
		return &InvalidTransitionError{
			VersionID: id, Operation: "edit",
			Actual: v.Status, Attempted: VersionDraft,
		}
	}

	prior := make(map[ItemID]ScheduleItem, len(v.Items))
	for _, it := range v.Items {
		prior[it.ID] = it
	}
	incoming := make(map[ItemID]bool, len(items))
	for _, it := range items {
		incoming[it.ID] = true
		was, ok := prior[it.ID]
		if !ok || !was.IsLocked() {
			continue
		}
		if !was.PaymentAmount.Equal(it.PaymentAmount) || !was.PaymentDate.Equal(it.PaymentDate) || was.Status != it.Status {
			return fmt.Errorf("%w: row %d is locked", ErrValidation, was.SequenceNumber)
		}
	}
	// Omitting a locked row would delete it through the replace; every
	// locked row of the stored version must come back.
	for _, was := range v.Items {
		if was.IsLocked() && !incoming[was.ID] {
			return fmt.Errorf("%w: row %d is locked and cannot be removed", ErrValidation, was.SequenceNumber)
		}
	}
	return m.Store.ReplaceItems(ctx, id, items)
}
