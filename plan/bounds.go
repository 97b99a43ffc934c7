/*
bounds.go - Target payment clamping and frequency conversion

PURPOSE:
  Validates and clamps the operator's target payment (percent or amount)
  against the program's configured bounds. All bound checks happen in weekly
  space; the weekly-to-monthly factor converts for monthly display/entry.

RULES:
  Percent:  clamped to [MinPercent, MaxPercent].
  Amount:   weekly floor = max(MinWeeklyTarget, currentPayment*MinPercent/100),
            applied only when currentPayment is known (> 0).
            ceiling = currentPayment*MaxPercent/100, only when currentPayment > 0.
  Rounding: half-up to 2 decimals after any derived computation.

Clamping is reported, never silent: the outcome carries the requested value,
the applied value, and the delta between them.

SEE ALSO:
  - calculator.go: Uses WeeklyTarget to seed the schedule math
*/
package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BOUND OUTCOME
// =============================================================================

// BoundOutcome is the result of clamping one input against program bounds.
type BoundOutcome struct {
	Requested decimal.Decimal
	Applied   decimal.Decimal
	Clamped   bool
	Delta     decimal.Decimal // Applied - Requested; zero when not clamped

	Floor   decimal.Decimal  // effective weekly floor (zero when none applied)
	Ceiling *decimal.Decimal // effective weekly ceiling; nil when unbounded
}

// Violation converts a clamped outcome into a surfaceable validation error.
// Returns nil when nothing was clamped.
func (o BoundOutcome) Violation(field string) *BoundsViolationError {
	if !o.Clamped {
		return nil
	}
	return &BoundsViolationError{
		Field:     field,
		Requested: o.Requested,
		Applied:   o.Applied,
		Delta:     o.Delta,
	}
}

// =============================================================================
// PERCENT AND AMOUNT ENFORCEMENT
// =============================================================================

// EnforcePercent clamps a target percent to [MinPercent, MaxPercent].
func EnforcePercent(requested decimal.Decimal, b Bounds) BoundOutcome {
	applied := requested
	if applied.LessThan(b.MinPercent) {
		applied = b.MinPercent
	}
	if applied.GreaterThan(b.MaxPercent) {
		applied = b.MaxPercent
	}
	return outcome(requested, applied)
}

// EnforceWeeklyAmount clamps a weekly target amount. The floor and ceiling
// are derived from the current payment; when the current payment is unknown
// (zero), no floor or ceiling applies.
func EnforceWeeklyAmount(requested, currentPayment decimal.Decimal, b Bounds) BoundOutcome {
	applied := requested

	var floor decimal.Decimal
	var ceiling *decimal.Decimal

	if currentPayment.IsPositive() {
		floor = RoundCents(currentPayment.Mul(b.MinPercent).Div(hundred))
		if b.MinWeeklyTarget.GreaterThan(floor) {
			floor = b.MinWeeklyTarget
		}
		c := RoundCents(currentPayment.Mul(b.MaxPercent).Div(hundred))
		ceiling = &c

		if applied.LessThan(floor) {
			applied = floor
		}
		if applied.GreaterThan(*ceiling) {
			applied = *ceiling
		}
	}

	out := outcome(requested, applied)
	out.Floor = floor
	out.Ceiling = ceiling
	return out
}

func outcome(requested, applied decimal.Decimal) BoundOutcome {
	return BoundOutcome{
		Requested: requested,
		Applied:   applied,
		Clamped:   !applied.Equal(requested),
		Delta:     applied.Sub(requested),
	}
}

// =============================================================================
// FREQUENCY CONVERSION - Canonical storage is weekly
// =============================================================================

func WeeklyToMonthly(weekly, factor decimal.Decimal) decimal.Decimal {
	return RoundCents(weekly.Mul(factor))
}

func MonthlyToWeekly(monthly, factor decimal.Decimal) decimal.Decimal {
	return RoundCents(monthly.Div(factor))
}

// =============================================================================
// WEEKLY TARGET DERIVATION
// =============================================================================

// WeeklyTarget derives the bounded weekly target payment from the
// configuration's calculation mode. The returned outcome reports any clamp.
func WeeklyTarget(cfg PlanConfiguration, totals CaseTotals) (decimal.Decimal, BoundOutcome, error) {
	switch cfg.CalculationMode {
	case ModePercentOfCurrent:
		if !totals.CurrentPayment.IsPositive() {
			return decimal.Zero, BoundOutcome{}, fmt.Errorf(
				"%w: percent-of-current mode requires a known current payment", ErrValidation)
		}
		out := EnforcePercent(cfg.TargetPercent, cfg.Bounds)
		weekly := RoundCents(totals.CurrentPayment.Mul(out.Applied).Div(hundred))
		return weekly, out, nil

	case ModeDesiredAmount:
		out := EnforceWeeklyAmount(cfg.TargetAmount, totals.CurrentPayment, cfg.Bounds)
		return RoundCents(out.Applied), out, nil

	default:
		return decimal.Zero, BoundOutcome{}, fmt.Errorf(
			"%w: unknown calculation mode %q", ErrValidation, cfg.CalculationMode)
	}
}
