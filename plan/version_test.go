package plan_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/plan-engine/plan"
	"github.com/warp/plan-engine/plan/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestManager() (*plan.Manager, *store.Memory) {
	mem := store.NewMemory()
	m := plan.NewManager(mem, &plan.Calculator{Policy: testPolicy()})
	m.Fees = mem
	m.NewID = seqIDs()
	m.Now = func() time.Time { return time.Date(2026, time.January, 2, 12, 0, 0, 0, time.UTC) }
	return m, mem
}

func mustCreate(t *testing.T, m *plan.Manager, caseID plan.CaseID) *plan.PlanVersion {
	t.Helper()
	v, err := m.Create(context.Background(), caseID, stdConfig(), stdTotals(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return v
}

func countByStatus(items []plan.ScheduleItem) map[plan.ItemStatus]int {
	counts := make(map[plan.ItemStatus]int)
	for _, it := range items {
		counts[it.Status]++
	}
	return counts
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_FirstVersionIsPrimary(t *testing.T) {
	// GIVEN: A case with no versions
	// WHEN: Creating two versions
	// THEN: Only the first is primary; numbers are monotonic

	m, _ := newTestManager()
	ctx := context.Background()

	v1 := mustCreate(t, m, "case-1")
	v2, err := m.Create(ctx, "case-1", stdConfig(), stdTotals(), "tester")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if !v1.IsPrimary {
		t.Error("first version should be primary")
	}
	if v2.IsPrimary {
		t.Error("second version should not be primary")
	}
	if v1.VersionNumber != 1 || v2.VersionNumber != 2 {
		t.Errorf("version numbers: got %d and %d, want 1 and 2", v1.VersionNumber, v2.VersionNumber)
	}
	if v1.Status != plan.VersionDraft {
		t.Errorf("status: got %s, want draft", v1.Status)
	}
	if len(v1.Items) != 78 {
		t.Errorf("items: got %d, want 78", len(v1.Items))
	}
}

// =============================================================================
// ACTIVATE
// =============================================================================

func TestActivate_DraftOnly(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")

	activated, err := m.Activate(ctx, v.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != plan.VersionActive {
		t.Errorf("status: got %s, want active", activated.Status)
	}

	// Activating again is an illegal transition, reported with both states.
	_, err = m.Activate(ctx, v.ID)
	var ite *plan.InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("got %v, want InvalidTransitionError", err)
	}
	if ite.Actual != plan.VersionActive || ite.Operation != "activate" {
		t.Errorf("error context: actual=%s op=%s", ite.Actual, ite.Operation)
	}
	if !errors.Is(err, plan.ErrInvalidTransition) {
		t.Error("should unwrap to ErrInvalidTransition")
	}
}

// =============================================================================
// SUSPEND
// =============================================================================

func TestSuspend_CancelsScheduledPreservesCleared(t *testing.T) {
	// GIVEN: An active version with 3 cleared rows and the rest scheduled
	// WHEN: Suspending it
	// THEN: A new Suspended version holds 3 cleared + the rest cancelled,
	//       zero scheduled; the old version is archived and primary moves

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if _, err := m.Activate(ctx, v.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	for _, it := range v.Items[:3] {
		if err := mem.UpdateItemStatus(ctx, it.ID, plan.ItemCleared); err != nil {
			t.Fatalf("clear item: %v", err)
		}
	}

	next, err := m.Suspend(ctx, v.ID)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}

	if next.Status != plan.VersionSuspended {
		t.Errorf("status: got %s, want suspended", next.Status)
	}
	counts := countByStatus(next.Items)
	if counts[plan.ItemCleared] != 3 {
		t.Errorf("cleared: got %d, want 3", counts[plan.ItemCleared])
	}
	if counts[plan.ItemScheduled] != 0 {
		t.Errorf("scheduled: got %d, want 0", counts[plan.ItemScheduled])
	}
	if counts[plan.ItemCancelled] != len(v.Items)-3 {
		t.Errorf("cancelled: got %d, want %d", counts[plan.ItemCancelled], len(v.Items)-3)
	}

	old, err := mem.GetVersion(ctx, v.ID)
	if err != nil {
		t.Fatalf("get old: %v", err)
	}
	if old.Status != plan.VersionArchived {
		t.Errorf("old status: got %s, want archived", old.Status)
	}
	if old.IsPrimary || !mustGet(t, mem, next.ID).IsPrimary {
		t.Error("primary should move to the suspended version")
	}
}

func TestSuspend_RequiresActive(t *testing.T) {
	m, _ := newTestManager()
	v := mustCreate(t, m, "case-1")

	_, err := m.Suspend(context.Background(), v.ID)
	if !errors.Is(err, plan.ErrInvalidTransition) {
		t.Errorf("suspending a draft: got %v, want invalid transition", err)
	}
}

func mustGet(t *testing.T, mem *store.Memory, id plan.VersionID) *plan.PlanVersion {
	t.Helper()
	v, err := mem.GetVersion(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return v
}

// =============================================================================
// RECALCULATE
// =============================================================================

func TestRecalculate_FrozenRowsSurviveVerbatim(t *testing.T) {
	// GIVEN: A draft where the first 3 rows cleared
	// WHEN: Recalculating
	// THEN: Cleared rows carry over with their amounts and dates, new
	//       scheduled rows fund only the remaining cost, and the old version
	//       is archived with primary transferred

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	for _, it := range v.Items[:3] {
		if err := mem.UpdateItemStatus(ctx, it.ID, plan.ItemCleared); err != nil {
			t.Fatalf("clear item: %v", err)
		}
	}

	next, err := m.Recalculate(ctx, v.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	if next.Status != plan.VersionDraft {
		t.Errorf("status: got %s, want draft", next.Status)
	}
	counts := countByStatus(next.Items)
	if counts[plan.ItemCleared] != 3 {
		t.Fatalf("cleared carried over: got %d, want 3", counts[plan.ItemCleared])
	}
	for i := 0; i < 3; i++ {
		was, now := v.Items[i], next.Items[i]
		if !now.PaymentAmount.Equal(was.PaymentAmount) || !now.PaymentDate.Equal(was.PaymentDate) {
			t.Errorf("frozen row %d changed: %s@%s -> %s@%s",
				i, was.PaymentAmount, was.PaymentDate, now.PaymentAmount, now.PaymentDate)
		}
	}

	// New rows continue the sequence and the date cadence.
	firstNew := next.Items[3]
	if firstNew.SequenceNumber != 4 {
		t.Errorf("first new sequence: got %d, want 4", firstNew.SequenceNumber)
	}
	if !firstNew.PaymentDate.Equal(v.Items[2].PaymentDate.AddDays(7)) {
		t.Errorf("first new date: got %s, want %s", firstNew.PaymentDate, v.Items[2].PaymentDate.AddDays(7))
	}

	// Scheduled rows fund the charged cost minus cleared contributions.
	if last := next.Items[len(next.Items)-1]; !last.RunningBalance.IsZero() {
		t.Errorf("final balance: got %s, want 0", last.RunningBalance)
	}

	old := mustGet(t, mem, v.ID)
	if old.Status != plan.VersionArchived {
		t.Errorf("old status: got %s, want archived", old.Status)
	}
	if !mustGet(t, mem, next.ID).IsPrimary {
		t.Error("primary should transfer to the new draft")
	}
}

func TestRecalculate_WireFeesFollowCarriedRows(t *testing.T) {
	// GIVEN: A cleared row with a wire fee attached
	// WHEN: Recalculating and then suspending
	// THEN: The fee lists under each successive copy of the row, never
	//       orphaned under the archived original

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if err := mem.UpdateItemStatus(ctx, v.Items[0].ID, plan.ItemCleared); err != nil {
		t.Fatalf("clear item: %v", err)
	}
	ledger := plan.NewWireFeeLedger(mem)
	if _, err := ledger.Attach(ctx, v.Items[0].ID, "wire", dec("25")); err != nil {
		t.Fatalf("attach fee: %v", err)
	}

	next, err := m.Recalculate(ctx, v.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	fees, err := mem.ListWireFees(ctx, next.Items[0].ID)
	if err != nil {
		t.Fatalf("list fees: %v", err)
	}
	if len(fees) != 1 || !fees[0].Amount.Equal(dec("25")) {
		t.Fatalf("fees on carried row: got %v, want one of 25", fees)
	}
	if orphaned, _ := mem.ListWireFees(ctx, v.Items[0].ID); len(orphaned) != 0 {
		t.Errorf("fees left on archived row: %v", orphaned)
	}

	// The fee keeps following through a suspend of the new version.
	if _, err := m.Activate(ctx, next.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	suspended, err := m.Suspend(ctx, next.ID)
	if err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if fees, _ := mem.ListWireFees(ctx, suspended.Items[0].ID); len(fees) != 1 {
		t.Errorf("fees after suspend: got %d, want 1", len(fees))
	}
}

func TestRecalculate_RefusesArchived(t *testing.T) {
	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if err := mem.UpdateVersionStatus(ctx, v.ID, plan.VersionArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if _, err := m.Recalculate(ctx, v.ID); !errors.Is(err, plan.ErrInvalidTransition) {
		t.Errorf("got %v, want invalid transition", err)
	}
}

// =============================================================================
// PRIMARY / DELETE
// =============================================================================

func TestSetPrimary_DemotesPrevious(t *testing.T) {
	m, mem := newTestManager()
	ctx := context.Background()
	v1 := mustCreate(t, m, "case-1")
	v2, err := m.Create(ctx, "case-1", stdConfig(), stdTotals(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.SetPrimary(ctx, v2.ID); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	if mustGet(t, mem, v1.ID).IsPrimary {
		t.Error("previous primary should be demoted")
	}
	if !mustGet(t, mem, v2.ID).IsPrimary {
		t.Error("new primary not set")
	}
}

func TestSetPrimary_RefusesArchived(t *testing.T) {
	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if err := mem.UpdateVersionStatus(ctx, v.ID, plan.VersionArchived); err != nil {
		t.Fatalf("archive: %v", err)
	}

	if err := m.SetPrimary(ctx, v.ID); !errors.Is(err, plan.ErrInvalidTransition) {
		t.Errorf("got %v, want invalid transition", err)
	}
}

func TestDelete_Guards(t *testing.T) {
	m, mem := newTestManager()
	ctx := context.Background()
	v1 := mustCreate(t, m, "case-1")
	v2, err := m.Create(ctx, "case-1", stdConfig(), stdTotals(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Primary draft: refused as a conflict, not silently demoted.
	if err := m.Delete(ctx, v1.ID); !plan.IsConflict(err) {
		t.Errorf("deleting primary: got %v, want conflict", err)
	}

	// Active version: illegal status for deletion.
	if _, err := m.Activate(ctx, v2.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := m.Delete(ctx, v2.ID); !errors.Is(err, plan.ErrInvalidTransition) {
		t.Errorf("deleting active: got %v, want invalid transition", err)
	}

	// Non-primary draft: allowed.
	v3, err := m.Create(ctx, "case-1", stdConfig(), stdTotals(), "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Delete(ctx, v3.ID); err != nil {
		t.Fatalf("deleting non-primary draft: %v", err)
	}
	if _, err := mem.GetVersion(ctx, v3.ID); !plan.IsNotFound(err) {
		t.Errorf("deleted version still present: %v", err)
	}
}

func TestDelete_MissingVersion(t *testing.T) {
	m, _ := newTestManager()
	if err := m.Delete(context.Background(), "nope"); !plan.IsNotFound(err) {
		t.Errorf("got %v, want not found", err)
	}
}

// =============================================================================
// SAVE ITEMS
// =============================================================================

func TestSaveItems_RejectsLockedRowChanges(t *testing.T) {
	// GIVEN: A draft with one cleared row
	// WHEN: Saving items that change the cleared row's amount
	// THEN: The save is refused; changing only scheduled rows succeeds

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if err := mem.UpdateItemStatus(ctx, v.Items[0].ID, plan.ItemCleared); err != nil {
		t.Fatalf("clear item: %v", err)
	}
	current := mustGet(t, mem, v.ID)

	tampered := append([]plan.ScheduleItem(nil), current.Items...)
	tampered[0].PaymentAmount = dec("999")
	if err := m.SaveItems(ctx, v.ID, tampered); !plan.IsClientError(err) {
		t.Errorf("locked change: got %v, want validation error", err)
	}

	edited := append([]plan.ScheduleItem(nil), current.Items...)
	edited[1].PaymentAmount = dec("300")
	if err := m.SaveItems(ctx, v.ID, edited); err != nil {
		t.Fatalf("scheduled change: %v", err)
	}
	if got := mustGet(t, mem, v.ID).Items[1].PaymentAmount; !got.Equal(dec("300")) {
		t.Errorf("saved amount: got %s, want 300", got)
	}
}

func TestSaveItems_RejectsOmittedLockedRow(t *testing.T) {
	// GIVEN: A draft whose first row cleared
	// WHEN: Saving a payload that leaves the cleared row out entirely
	// THEN: The save is refused and the cleared row survives in the store

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if err := mem.UpdateItemStatus(ctx, v.Items[0].ID, plan.ItemCleared); err != nil {
		t.Fatalf("clear item: %v", err)
	}
	current := mustGet(t, mem, v.ID)

	if err := m.SaveItems(ctx, v.ID, current.Items[1:]); !plan.IsClientError(err) {
		t.Errorf("omitting locked row: got %v, want validation error", err)
	}

	after := mustGet(t, mem, v.ID)
	if len(after.Items) != len(current.Items) {
		t.Errorf("rows: got %d, want %d", len(after.Items), len(current.Items))
	}
	if after.Items[0].Status != plan.ItemCleared {
		t.Error("cleared row should survive the refused save")
	}

	// Dropping a scheduled row is an ordinary edit and goes through.
	if err := m.SaveItems(ctx, v.ID, append([]plan.ScheduleItem{current.Items[0]}, current.Items[2:]...)); err != nil {
		t.Fatalf("dropping a scheduled row: %v", err)
	}
}

func TestSaveItems_ActiveGovernedByPolicy(t *testing.T) {
	// GIVEN: An active version
	// WHEN: Saving items with and without the active-edit policy flag
	// THEN: The flag decides; status alone does not

	m, mem := newTestManager()
	ctx := context.Background()
	v := mustCreate(t, m, "case-1")
	if _, err := m.Activate(ctx, v.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	items := mustGet(t, mem, v.ID).Items

	if err := m.SaveItems(ctx, v.ID, items); !errors.Is(err, plan.ErrInvalidTransition) {
		t.Errorf("active without flag: got %v, want invalid transition", err)
	}

	m.Calc.Policy.ActiveRowsEditable = true
	if err := m.SaveItems(ctx, v.ID, items); err != nil {
		t.Errorf("active with flag: %v", err)
	}
}
