/*
calculator.go - Schedule math: forward (amount -> duration) and inverse

PURPOSE:
  Pure calculation of a settlement schedule from a configuration and case
  totals. No I/O, no side effects; safe to call repeatedly during typing and
  dragging. The two directions are mathematically inverse of one another
  within rounding tolerance:

  Forward:  given a weekly target payment, how many periods does the program
            need? numberOfPeriods = ceil(totalProgramCost / netPerPeriod),
            clamped to the policy's [MinProgramWeeks, MaxProgramWeeks].
  Inverse:  given a desired period count, what payment funds it?
            netPerPeriod = totalProgramCost / numberOfPeriods (exact
            division), payment = net + banking fee.

NO-FEE SIZING:
  A no-fee program charges $0 program fee but still sizes its duration from
  a baseline (non-zero) program fee percent carried in policy, so the
  schedule length matches the fee-charging equivalent. The charged cost
  (settlement only) is what the rows actually collect, so generation stops
  once it is funded.

SEE ALSO:
  - bounds.go: WeeklyTarget derivation
  - fees.go: Per-row decomposition used during generation
  - dates.go: Payment date series
*/
package plan

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator is the calculation service. It is pure and idempotent for
// identical inputs.
type Calculator struct {
	Policy ProgramPolicy
}

// CalculationInput bundles everything one calculation needs.
type CalculationInput struct {
	Config PlanConfiguration
	Totals CaseTotals
}

// Summary carries the derived program economics alongside a schedule.
type Summary struct {
	SettlementAmount decimal.Decimal
	ProgramFee       decimal.Decimal // charged; zero for no-fee programs
	BaselineFee      decimal.Decimal // sizing fee; equals ProgramFee unless no-fee

	// TotalProgramCost sizes the duration (settlement + baseline fee).
	// ChargedCost is what the rows collect (settlement + charged fee).
	TotalProgramCost decimal.Decimal
	ChargedCost      decimal.Decimal

	NetPerPeriod    decimal.Decimal // contribution per period, period space
	PeriodPayment   decimal.Decimal // net + banking fee surcharge
	NumberOfPeriods int
	PeriodsClamped  bool

	// Bound reports any clamp applied to the operator's target.
	Bound BoundOutcome
}

// =============================================================================
// PROGRAM COSTS
// =============================================================================

func (c *Calculator) costs(cfg PlanConfiguration, totals CaseTotals) (settlement, charged, baseline decimal.Decimal, err error) {
	if !totals.TotalDebt.IsPositive() {
		return decimal.Zero, decimal.Zero, decimal.Zero,
			fmt.Errorf("%w: total debt must be positive", ErrValidation)
	}

	settlement = RoundCents(totals.TotalDebt.Mul(totals.SettlementPercent).Div(hundred))

	feePercent := totals.ProgramFeePercent
	if cfg.NoFeeProgram {
		// Duration is sized from the baseline percent even though $0 is charged.
		if feePercent.IsZero() {
			feePercent = c.Policy.BaselineProgramFeePercent
		}
		if feePercent.IsZero() {
			return decimal.Zero, decimal.Zero, decimal.Zero, fmt.Errorf(
				"%w: no-fee program requires a baseline program fee percent", ErrConfigurationUnavailable)
		}
	}

	baseline = RoundCents(totals.TotalDebt.Mul(feePercent).Div(hundred))
	charged = baseline
	if cfg.NoFeeProgram {
		charged = decimal.Zero
	}
	return settlement, charged, baseline, nil
}

// periodBounds converts the policy's week clamp into the schedule's period
// space (weeks stay weeks; months divide by the configured factor).
func (c *Calculator) periodBounds(freq PaymentFrequency) (min, max int) {
	min, max = c.Policy.MinProgramWeeks, c.Policy.MaxProgramWeeks
	if freq == FrequencyMonthly {
		factor := c.Policy.WeeklyToMonthlyFactor
		min = int(decimal.NewFromInt(int64(min)).Div(factor).Ceil().IntPart())
		max = int(decimal.NewFromInt(int64(max)).Div(factor).IntPart())
	}
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	return min, max
}

// =============================================================================
// FORWARD - amount to duration
// =============================================================================

// DurationFromAmount sizes the schedule from a weekly target contribution.
// The banking fee is a surcharge on top of the target, not part of it.
func (c *Calculator) DurationFromAmount(cfg PlanConfiguration, totals CaseTotals, weeklyNet decimal.Decimal) (Summary, error) {
	if err := c.Policy.Validate(); err != nil {
		return Summary{}, err
	}
	if !weeklyNet.IsPositive() {
		return Summary{}, fmt.Errorf("%w: target payment must be positive", ErrValidation)
	}

	settlement, charged, baseline, err := c.costs(cfg, totals)
	if err != nil {
		return Summary{}, err
	}
	sizingCost := settlement.Add(baseline)

	periodNet := weeklyNet
	if cfg.PaymentFrequency == FrequencyMonthly {
		periodNet = WeeklyToMonthly(weeklyNet, c.Policy.WeeklyToMonthlyFactor)
	}

	periods := int(sizingCost.Div(periodNet).Ceil().IntPart())
	minP, maxP := c.periodBounds(cfg.PaymentFrequency)
	clamped := false
	if periods < minP {
		periods, clamped = minP, true
	}
	if periods > maxP {
		periods, clamped = maxP, true
	}

	return Summary{
		SettlementAmount: settlement,
		ProgramFee:       charged,
		BaselineFee:      baseline,
		TotalProgramCost: sizingCost,
		ChargedCost:      settlement.Add(charged),
		NetPerPeriod:     periodNet,
		PeriodPayment:    RoundCents(periodNet.Add(cfg.BankingFee)),
		NumberOfPeriods:  periods,
		PeriodsClamped:   clamped,
	}, nil
}

// =============================================================================
// INVERSE - duration to amount
// =============================================================================

// AmountFromDuration derives the per-period payment that funds the program
// in exactly numberOfPeriods periods. Exact division, no ceiling.
func (c *Calculator) AmountFromDuration(cfg PlanConfiguration, totals CaseTotals, numberOfPeriods int) (Summary, error) {
	if err := c.Policy.Validate(); err != nil {
		return Summary{}, err
	}
	minP, maxP := c.periodBounds(cfg.PaymentFrequency)
	periods := numberOfPeriods
	clamped := false
	if periods < minP {
		periods, clamped = minP, true
	}
	if periods > maxP {
		periods, clamped = maxP, true
	}

	settlement, charged, baseline, err := c.costs(cfg, totals)
	if err != nil {
		return Summary{}, err
	}
	sizingCost := settlement.Add(baseline)

	periodNet := RoundCents(sizingCost.Div(decimal.NewFromInt(int64(periods))))

	return Summary{
		SettlementAmount: settlement,
		ProgramFee:       charged,
		BaselineFee:      baseline,
		TotalProgramCost: sizingCost,
		ChargedCost:      settlement.Add(charged),
		NetPerPeriod:     periodNet,
		PeriodPayment:    RoundCents(periodNet.Add(cfg.BankingFee)),
		NumberOfPeriods:  periods,
		PeriodsClamped:   clamped,
	}, nil
}

// =============================================================================
// GENERATION - Config + totals to a concrete schedule
// =============================================================================

// Generate produces the dated, fee-decomposed schedule for the input. Rows
// stop as soon as the charged cost is funded, so the running balance of the
// final row is exactly zero.
func (c *Calculator) Generate(input CalculationInput) ([]ScheduleItem, Summary, error) {
	cfg, totals := input.Config, input.Totals
	if err := cfg.Validate(); err != nil {
		return nil, Summary{}, err
	}

	weekly, bound, err := WeeklyTarget(cfg, totals)
	if err != nil {
		return nil, Summary{}, err
	}

	summary, err := c.DurationFromAmount(cfg, totals, weekly)
	if err != nil {
		return nil, Summary{}, err
	}
	summary.Bound = bound

	dates, err := PaymentDates(cfg.FirstPaymentDate, cfg.PaymentFrequency, summary.NumberOfPeriods, cfg.PreferredWeekday)
	if err != nil {
		return nil, Summary{}, err
	}

	dec := NewDecomposer(cfg, c.Policy)
	items := make([]ScheduleItem, 0, summary.NumberOfPeriods)
	remaining := summary.ChargedCost

	for i := 0; i < summary.NumberOfPeriods && remaining.IsPositive(); i++ {
		net := summary.NetPerPeriod
		if net.GreaterThan(remaining) {
			net = remaining // trim the final row to land at zero
		}
		item := dec.Row(i+1, dates[i], net, remaining)
		remaining = item.RunningBalance
		items = append(items, item)
	}

	return items, summary, nil
}
