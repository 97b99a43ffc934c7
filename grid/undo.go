package grid

import (
	"sync"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// UNDO BUFFER - Optimistic update with commit-or-rollback
// =============================================================================

// UndoBuffer remembers the last persisted value of each tentatively changed
// row. On save success the entry is committed (dropped); on failure the
// prior value is restored. One generic buffer replaces per-field revert
// logic.
type UndoBuffer struct {
	mu    sync.Mutex
	prior map[plan.ItemID]plan.ScheduleItem
}

func NewUndoBuffer() *UndoBuffer {
	return &UndoBuffer{prior: make(map[plan.ItemID]plan.ScheduleItem)}
}

// Remember stores the pre-edit value once; later edits to the same row keep
// the original baseline.
func (u *UndoBuffer) Remember(item plan.ScheduleItem) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.prior[item.ID]; !ok {
		u.prior[item.ID] = item
	}
}

// Commit drops the baseline after a successful save.
func (u *UndoBuffer) Commit(id plan.ItemID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.prior, id)
}

// Rollback returns the baseline value for a failed save, if one exists.
func (u *UndoBuffer) Rollback(id plan.ItemID) (plan.ScheduleItem, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	item, ok := u.prior[id]
	delete(u.prior, id)
	return item, ok
}

// Clear empties the buffer (version switch, editor close).
func (u *UndoBuffer) Clear() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prior = make(map[plan.ItemID]plan.ScheduleItem)
}
