/*
fees.go - Per-row fee decomposition

PURPOSE:
  Splits each scheduled payment into its portions: setup fee, banking fees,
  additional recurring products, and the net contribution which divides into
  program fee and escrow (savings) per the configured split ratio.

INVARIANTS:
  - For every freshly generated row, the portions sum exactly to the
    payment amount (escrow absorbs the split rounding remainder).
  - Running balance decreases by the row's net contribution and is monotonic,
    reaching zero at the final scheduled row.

SEE ALSO:
  - calculator.go: Drives decomposition during generation
*/
package plan

import (
	"github.com/shopspring/decimal"
)

// Decomposer computes row portions for one configuration. Pure.
type Decomposer struct {
	cfg    PlanConfiguration
	policy ProgramPolicy

	setupPer  decimal.Decimal // even setup portion for rows 1..N-1
	setupLast decimal.Decimal // row N takes the rounding remainder
}

func NewDecomposer(cfg PlanConfiguration, policy ProgramPolicy) Decomposer {
	d := Decomposer{cfg: cfg, policy: policy}
	if n := cfg.SetupFee.NumberOfPayments; n > 0 {
		count := decimal.NewFromInt(int64(n))
		d.setupPer = RoundCents(cfg.SetupFee.Total.Div(count))
		d.setupLast = cfg.SetupFee.Total.Sub(d.setupPer.Mul(count.Sub(decimal.NewFromInt(1))))
	}
	return d
}

// SetupPortion returns the setup fee charged on the given row (1-based).
// Rows beyond the configured window carry zero.
func (d Decomposer) SetupPortion(sequence int) decimal.Decimal {
	n := d.cfg.SetupFee.NumberOfPayments
	switch {
	case n <= 0 || sequence > n:
		return decimal.Zero
	case sequence == n:
		return d.setupLast
	default:
		return d.setupPer
	}
}

// additionalPortion scales the weekly product fees to the schedule period.
func (d Decomposer) additionalPortion() decimal.Decimal {
	if d.cfg.PaymentFrequency == FrequencyMonthly {
		return WeeklyToMonthly(d.cfg.AdditionalWeeklyProductsTotal, d.policy.WeeklyToMonthlyFactor)
	}
	return RoundCents(d.cfg.AdditionalWeeklyProductsTotal)
}

// SplitNet divides a net contribution into program fee and escrow portions.
// Escrow takes the rounding remainder so the two always sum to net.
func (d Decomposer) SplitNet(net decimal.Decimal) (program, escrow decimal.Decimal) {
	program = RoundCents(net.Mul(d.cfg.ProgramSplitRatio))
	escrow = net.Sub(program)
	return program, escrow
}

// Row builds one schedule row from its net contribution and the charged
// balance remaining before this row.
func (d Decomposer) Row(sequence int, date TimePoint, net, remainingBefore decimal.Decimal) ScheduleItem {
	setup := d.SetupPortion(sequence)
	additional := d.additionalPortion()
	program, escrow := d.SplitNet(net)

	payment := net.
		Add(setup).
		Add(d.cfg.BankingFee).
		Add(d.cfg.SecondaryBankingFee).
		Add(additional)

	return ScheduleItem{
		SequenceNumber:             sequence,
		PaymentDate:                date,
		PaymentAmount:              RoundCents(payment),
		SetupFeePortion:            setup,
		ProgramFeePortion:          program,
		BankingFeePortion:          d.cfg.BankingFee,
		SecondaryBankingFeePortion: d.cfg.SecondaryBankingFee,
		AdditionalProductsPortion:  additional,
		EscrowAmount:               escrow,
		RunningBalance:             remainingBefore.Sub(net),
		Status:                     ItemScheduled,
	}
}
