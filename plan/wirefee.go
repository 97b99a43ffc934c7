/*
wirefee.go - Ancillary fee ledger

PURPOSE:
  Attaches zero-or-more side fees (wire fees, expedite fees, ...) to a
  schedule item without touching primary schedule math. Fees reference rows
  weakly: deleting a row does not delete its fees, and fees pointing at a
  row that no longer exists are skipped, never fatal.
*/
package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WireFeeLedger is a thin service over the WireFeeStore.
type WireFeeLedger struct {
	Store WireFeeStore
	NewID func() string
}

func NewWireFeeLedger(store WireFeeStore) *WireFeeLedger {
	return &WireFeeLedger{Store: store, NewID: uuid.NewString}
}

// Attach records an ancillary fee against a schedule item.
func (l *WireFeeLedger) Attach(ctx context.Context, itemID ItemID, feeType string, amount decimal.Decimal) (*WireFee, error) {
	if feeType == "" {
		return nil, fmt.Errorf("%w: fee type is required", ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: fee amount must be positive", ErrValidation)
	}
	fee := WireFee{
		ID:             WireFeeID(l.NewID()),
		ScheduleItemID: itemID,
		FeeType:        feeType,
		Amount:         RoundCents(amount),
	}
	if err := l.Store.AddWireFee(ctx, fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

// For returns the fees attached to one schedule item.
func (l *WireFeeLedger) For(ctx context.Context, itemID ItemID) ([]WireFee, error) {
	return l.Store.ListWireFees(ctx, itemID)
}

// MatchFees pairs fees with the rows they reference. Orphaned fees (rows
// regenerated or deleted since attachment) are silently dropped.
func MatchFees(items []ScheduleItem, fees []WireFee) map[ItemID][]WireFee {
	known := make(map[ItemID]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	matched := make(map[ItemID][]WireFee)
	for _, f := range fees {
		if known[f.ScheduleItemID] {
			matched[f.ScheduleItemID] = append(matched[f.ScheduleItemID], f)
		}
	}
	return matched
}
