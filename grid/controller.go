/*
controller.go - Named transitions over the editor state

PURPOSE:
  The controller is the only writer of EditorState. Every user gesture is a
  method: select, fill-drag, keystroke, blur commit, add/delete row, status
  change. The debounced recompute fires on a timer goroutine, so every
  method serializes through the controller mutex; the recompute callback
  itself runs outside the lock on a snapshot of the visible rows and is
  checked by the staleness guard on the way back in.

EDIT RULES:
  - A row is editable iff EditorState.RowEditable says so (single predicate).
  - Fill drags never touch locked rows, even inside the drag range.
  - New rows take their fee defaults from the configuration collaborator,
    never from neighboring rows.
  - Deleting a persisted row is a soft delete; a never-saved row disappears.

SEE ALSO:
  - state.go: The state value and field accessors
  - staleness.go, debounce.go: Async discipline
*/
package grid

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// RecalcFunc starts an asynchronous recompute/save for the given rows. The
// sequence number must be handed back to ApplyResult/ApplyError.
type RecalcFunc func(seq uint64, items []plan.ScheduleItem)

// RowDefaults are the fee values given to newly inserted rows. They come
// from the program policy, not from adjacent rows, so insertion order does
// not change results.
type RowDefaults struct {
	BankingFee          decimal.Decimal
	SecondaryBankingFee decimal.Decimal
	AdditionalProducts  decimal.Decimal
}

// =============================================================================
// CONTROLLER
// =============================================================================

type Controller struct {
	// mu guards state and undo. Methods run on the UI goroutine and the
	// debounce timer goroutine; every state access takes the lock.
	mu sync.Mutex

	state    EditorState
	guard    *StalenessGuard
	debounce *Debouncer
	undo     *UndoBuffer
	recalc   RecalcFunc
	defaults RowDefaults
	newID    func() string
}

// NewController builds an editor over a loaded version.
func NewController(version plan.PlanVersion, defaults RowDefaults, allowActiveEdits bool, recalc RecalcFunc, newID func() string) *Controller {
	c := &Controller{
		guard:    &StalenessGuard{},
		debounce: NewDebouncer(DefaultDebounce),
		undo:     NewUndoBuffer(),
		recalc:   recalc,
		defaults: defaults,
		newID:    newID,
	}
	c.load(version, allowActiveEdits)
	return c
}

func (c *Controller) load(version plan.PlanVersion, allowActiveEdits bool) {
	rows := make([]Row, len(version.Items))
	for i, it := range version.Items {
		rows[i] = Row{Item: it, Persisted: true}
	}
	c.state = EditorState{
		Version:          version,
		Rows:             rows,
		AllowActiveEdits: allowActiveEdits,
	}
}

// State returns a copy for rendering.
func (c *Controller) State() EditorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Rows = append([]Row(nil), c.state.Rows...)
	return s
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectCell makes the cell the single active selection. Selecting a locked
// row is a no-op; selecting a new cell clears the previous selection.
func (c *Controller) SelectCell(row int, f Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.RowEditable(row) {
		return false
	}
	c.state.Selection = &CellRef{Row: row, Field: f}
	return true
}

// =============================================================================
// FILL-HANDLE DRAG
// =============================================================================

// BeginFillDrag starts a drag from the given source cell.
func (c *Controller) BeginFillDrag(row int, f Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.RowEditable(row) {
		return false
	}
	c.state.Drag = &DragState{Source: CellRef{Row: row, Field: f}, PointerRow: row}
	return true
}

// UpdateFillDrag moves the drag pointer; the highlighted range is
// State().Drag.Range().
func (c *Controller) UpdateFillDrag(pointerRow int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Drag == nil {
		return
	}
	if pointerRow < 0 {
		pointerRow = 0
	}
	if pointerRow >= len(c.state.Rows) {
		pointerRow = len(c.state.Rows) - 1
	}
	c.state.Drag.PointerRow = pointerRow
}

// EndFillDrag copies the source cell's value into every unlocked row in the
// drag range and returns the affected row indexes. Locked rows inside the
// range stay untouched and unmodified.
func (c *Controller) EndFillDrag() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	drag := c.state.Drag
	c.state.Drag = nil
	if drag == nil {
		return nil
	}

	source := c.state.Rows[drag.Source.Row].Item
	value := fieldValue(source, drag.Source.Field)

	lo, hi := drag.Range()
	var affected []int
	for i := lo; i <= hi; i++ {
		if i == drag.Source.Row || !c.state.RowEditable(i) {
			continue
		}
		c.undo.Remember(c.state.Rows[i].Item)
		setFieldValue(&c.state.Rows[i].Item, drag.Source.Field, value)
		if drag.Source.Field.Monetary() && drag.Source.Field != FieldEscrowAmount {
			recomputeEscrow(&c.state.Rows[i].Item)
		}
		c.state.Rows[i].Modified = true
		affected = append(affected, i)
	}
	if len(affected) > 0 {
		c.scheduleRecalc()
	}
	return affected
}

// =============================================================================
// CELL EDITING
// =============================================================================

// EditCell records a keystroke. Monetary fields recompute the row's escrow
// live; the network-bound recompute stays debounced so typing never floods
// the calculation call.
func (c *Controller) EditCell(row int, f Field, raw string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.RowEditable(row) {
		return false
	}
	c.undo.Remember(c.state.Rows[row].Item)
	c.state.Buffer = &EditBuffer{Cell: CellRef{Row: row, Field: f}, Raw: raw}

	if f.Monetary() {
		if v, err := parseMoney(raw); err == nil {
			setFieldValue(&c.state.Rows[row].Item, f, v)
			if f != FieldEscrowAmount {
				recomputeEscrow(&c.state.Rows[row].Item)
			}
		}
	}
	c.scheduleRecalc()
	return true
}

// CommitCell finalizes the edit buffer on blur, normalizing numeric text to
// a 2-decimal canonical value.
func (c *Controller) CommitCell(row int, f Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := c.state.Buffer
	c.state.Buffer = nil
	if buf == nil || buf.Cell.Row != row || buf.Cell.Field != f {
		return false
	}
	if !c.state.RowEditable(row) {
		return false
	}

	item := &c.state.Rows[row].Item
	if f == FieldPaymentDate {
		d, err := plan.ParseDate(strings.TrimSpace(buf.Raw))
		if err != nil {
			return false
		}
		item.PaymentDate = d
	} else {
		v, err := parseMoney(buf.Raw)
		if err != nil {
			return false
		}
		setFieldValue(item, f, plan.RoundCents(v))
		if f != FieldEscrowAmount {
			recomputeEscrow(item)
		}
	}
	c.state.Rows[row].Modified = true
	c.scheduleRecalc()
	return true
}

func parseMoney(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

// =============================================================================
// ROW ADD / DELETE / STATUS
// =============================================================================

// AddRow appends a new Scheduled row with policy-default fees and returns
// its index. The row is not persisted until the next save.
func (c *Controller) AddRow() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	date := c.state.Version.Config.FirstPaymentDate
	seq := 0
	for _, r := range c.state.Rows {
		if r.Deleted {
			continue
		}
		if r.Item.SequenceNumber > seq {
			seq = r.Item.SequenceNumber
		}
		if r.Item.PaymentDate.After(date) {
			date = r.Item.PaymentDate
		}
	}
	if seq > 0 {
		if c.state.Version.Config.PaymentFrequency == plan.FrequencyMonthly {
			date = date.AddMonths(1)
		} else {
			date = date.AddDays(7)
		}
	}

	item := plan.ScheduleItem{
		ID:                         plan.ItemID(c.newID()),
		SequenceNumber:             seq + 1,
		PaymentDate:                date,
		BankingFeePortion:          c.defaults.BankingFee,
		SecondaryBankingFeePortion: c.defaults.SecondaryBankingFee,
		AdditionalProductsPortion:  c.defaults.AdditionalProducts,
		Status:                     plan.ItemScheduled,
	}
	c.state.Rows = append(c.state.Rows, Row{Item: item, Modified: true})
	return len(c.state.Rows) - 1
}

// DeleteRow soft-deletes a persisted row (filtered from views and excluded
// from resubmission) and removes a never-persisted row outright.
func (c *Controller) DeleteRow(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.state.Rows) {
		return false
	}
	if !c.state.Rows[i].Persisted {
		c.state.Rows = append(c.state.Rows[:i], c.state.Rows[i+1:]...)
		return true
	}
	if c.state.Rows[i].Item.IsLocked() {
		return false
	}
	c.state.Rows[i].Deleted = true
	c.scheduleRecalc()
	return true
}

// MarkStatus changes a row's status through the explicit control. This is
// allowed even on locked rows (e.g. correcting Cleared back to Scheduled);
// amount/date fields stay governed by RowEditable.
func (c *Controller) MarkStatus(i int, status plan.ItemStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.state.Rows) || !status.Valid() {
		return false
	}
	c.undo.Remember(c.state.Rows[i].Item)
	c.state.Rows[i].Item.Status = status
	c.state.Rows[i].Modified = true
	return true
}

// =============================================================================
// ASYNC RECOMPUTE DISCIPLINE
// =============================================================================

func (c *Controller) scheduleRecalc() {
	if c.recalc == nil {
		return
	}
	c.debounce.Schedule(c.fireRecalc)
}

// FlushRecalc runs any pending debounced recompute immediately. It must not
// hold the controller lock: fireRecalc takes it.
func (c *Controller) FlushRecalc() { c.debounce.Flush() }

// fireRecalc runs on the debounce timer goroutine. It snapshots the visible
// rows under the lock and invokes the recompute callback outside it, so a
// callback that re-enters the controller cannot deadlock.
func (c *Controller) fireRecalc() {
	c.mu.Lock()
	seq := c.guard.Issue()
	visible := c.state.VisibleRows()
	items := make([]plan.ScheduleItem, len(visible))
	for i, r := range visible {
		items[i] = r.Item
	}
	c.mu.Unlock()
	c.recalc(seq, items)
}

// ApplyResult installs a recompute result if it is still the latest; stale
// results are discarded and the method reports false.
func (c *Controller) ApplyResult(seq uint64, items []plan.ScheduleItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.guard.Accept(seq) {
		return false
	}
	byID := make(map[plan.ItemID]plan.ScheduleItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for i := range c.state.Rows {
		r := &c.state.Rows[i]
		if r.Deleted || r.Item.IsLocked() {
			continue
		}
		if updated, ok := byID[r.Item.ID]; ok {
			r.Item = updated
			r.Modified = false
			c.undo.Commit(updated.ID)
		}
	}
	return true
}

// ApplyError handles a failed recompute. A stale error is swallowed; it
// must not surface or revert state a newer in-flight call will overwrite.
// A current error rolls tentative rows back and is returned for surfacing.
func (c *Controller) ApplyError(seq uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.guard.Accept(seq) {
		return nil // superseded; discard silently
	}
	for i := range c.state.Rows {
		if prior, ok := c.undo.Rollback(c.state.Rows[i].Item.ID); ok {
			c.state.Rows[i].Item = prior
			c.state.Rows[i].Modified = false
		}
	}
	return err
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// SwitchVersion cancels pending timers, supersedes in-flight calls, and
// loads the new version. Results from calls issued before the switch can
// no longer apply.
func (c *Controller) SwitchVersion(version plan.PlanVersion, allowActiveEdits bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounce.Cancel()
	c.guard.Invalidate()
	c.undo.Clear()
	c.load(version, allowActiveEdits)
}

// Close shuts the editor down; outstanding async results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debounce.Cancel()
	c.guard.Invalidate()
	c.undo.Clear()
}
