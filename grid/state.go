package grid

import (
	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// CELL ADDRESSING
// =============================================================================

// Field names one editable column of the grid.
type Field string

const (
	FieldPaymentAmount       Field = "payment_amount"
	FieldPaymentDate         Field = "payment_date"
	FieldSetupFee            Field = "setup_fee_portion"
	FieldProgramFee          Field = "program_fee_portion"
	FieldBankingFee          Field = "banking_fee_portion"
	FieldSecondaryBankingFee Field = "secondary_banking_fee_portion"
	FieldAdditionalProducts  Field = "additional_products_portion"
	FieldEscrowAmount        Field = "escrow_amount"
)

// Monetary reports whether edits to the field should trigger the live
// escrow recompute.
func (f Field) Monetary() bool { return f != FieldPaymentDate }

// CellRef addresses one cell by row index and field name.
type CellRef struct {
	Row   int
	Field Field
}

// =============================================================================
// ROWS AND DRAG STATE
// =============================================================================

// Row wraps a schedule item with its editor-side flags.
type Row struct {
	Item     plan.ScheduleItem
	Modified bool
	Deleted  bool // soft delete; filtered from views and resubmission

	// Persisted is false for rows added in this session and never saved;
	// deleting such a row removes it outright.
	Persisted bool
}

// DragState tracks an in-progress fill-handle drag.
type DragState struct {
	Source     CellRef
	PointerRow int
}

// Range returns the contiguous row span between source and pointer,
// direction-aware (dragging up or down).
func (d DragState) Range() (lo, hi int) {
	lo, hi = d.Source.Row, d.PointerRow
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// EditBuffer holds raw keystrokes for the cell being edited, before the
// blur commit normalizes them.
type EditBuffer struct {
	Cell CellRef
	Raw  string
}

// =============================================================================
// EDITOR STATE - Single explicit value, mutated only by named transitions
// =============================================================================

// EditorState is the whole editor as one value object. The controller's
// methods are the only mutations; there are no ad hoc field writes spread
// across call sites.
type EditorState struct {
	Version plan.PlanVersion
	Rows    []Row

	Selection *CellRef
	Drag      *DragState
	Buffer    *EditBuffer

	// AllowActiveEdits mirrors the program policy's decision on editing
	// Scheduled rows of an Active version.
	AllowActiveEdits bool
}

// RowEditable is the one editability decision the grid uses everywhere.
func (s EditorState) RowEditable(i int) bool {
	if i < 0 || i >= len(s.Rows) {
		return false
	}
	r := s.Rows[i]
	if r.Deleted {
		return false
	}
	return plan.IsEditable(r.Item, s.Version, s.AllowActiveEdits)
}

// VisibleRows filters out soft-deleted rows.
func (s EditorState) VisibleRows() []Row {
	out := make([]Row, 0, len(s.Rows))
	for _, r := range s.Rows {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// FIELD ACCESS
// =============================================================================

func fieldValue(item plan.ScheduleItem, f Field) decimal.Decimal {
	switch f {
	case FieldPaymentAmount:
		return item.PaymentAmount
	case FieldSetupFee:
		return item.SetupFeePortion
	case FieldProgramFee:
		return item.ProgramFeePortion
	case FieldBankingFee:
		return item.BankingFeePortion
	case FieldSecondaryBankingFee:
		return item.SecondaryBankingFeePortion
	case FieldAdditionalProducts:
		return item.AdditionalProductsPortion
	case FieldEscrowAmount:
		return item.EscrowAmount
	default:
		return decimal.Zero
	}
}

func setFieldValue(item *plan.ScheduleItem, f Field, v decimal.Decimal) {
	switch f {
	case FieldPaymentAmount:
		item.PaymentAmount = v
	case FieldSetupFee:
		item.SetupFeePortion = v
	case FieldProgramFee:
		item.ProgramFeePortion = v
	case FieldBankingFee:
		item.BankingFeePortion = v
	case FieldSecondaryBankingFee:
		item.SecondaryBankingFeePortion = v
	case FieldAdditionalProducts:
		item.AdditionalProductsPortion = v
	case FieldEscrowAmount:
		item.EscrowAmount = v
	}
}

// recomputeEscrow applies the live derivation while the user types:
// escrow = payment - every fee portion. Escrow is the residual, so the row
// keeps satisfying the portion-sum invariant between recomputes.
func recomputeEscrow(item *plan.ScheduleItem) {
	item.EscrowAmount = item.PaymentAmount.
		Sub(item.BankingFeePortion).
		Sub(item.SecondaryBankingFeePortion).
		Sub(item.ProgramFeePortion).
		Sub(item.SetupFeePortion).
		Sub(item.AdditionalProductsPortion)
}
