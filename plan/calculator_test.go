package plan_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return plan.MustDecimal(s) }

func testPolicy() plan.ProgramPolicy {
	return plan.ProgramPolicy{
		ProgramType: plan.ProgramStandardSplit,
		Bounds: plan.Bounds{
			MinWeeklyTarget: dec("25"),
			MinPercent:      dec("50"),
			MaxPercent:      dec("125"),
		},
		WeeklyToMonthlyFactor:      dec("4.33"),
		MinProgramWeeks:            12,
		MaxProgramWeeks:            260,
		BaselineProgramFeePercent:  dec("35"),
		DefaultBankingFee:          dec("35"),
		DefaultSecondaryBankingFee: dec("0"),
	}
}

func stdConfig() plan.PlanConfiguration {
	return plan.PlanConfiguration{
		ProgramType:       plan.ProgramStandardSplit,
		PaymentFrequency:  plan.FrequencyWeekly,
		CalculationMode:   plan.ModeDesiredAmount,
		TargetAmount:      dec("171.19"),
		BankingFee:        dec("35"),
		ProgramSplitRatio: dec("0.35"),
		EscrowSplitRatio:  dec("0.65"),
		FirstPaymentDate:  plan.NewTimePoint(2026, time.January, 5),
		Bounds:            testPolicy().Bounds,
	}
}

func stdTotals() plan.CaseTotals {
	return plan.CaseTotals{
		TotalDebt:         dec("14000"),
		CurrentPayment:    dec("200"),
		SettlementPercent: dec("60"),
		ProgramFeePercent: dec("35"),
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

func eq(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: got %s, want %s", name, got, want)
	}
}

// =============================================================================
// FORWARD - amount to duration
// =============================================================================

func TestDurationFromAmount_StandardProgram(t *testing.T) {
	// GIVEN: $14,000 debt, 60% settlement, 35% program fee, $171.19 weekly net
	// WHEN: Sizing the schedule from the weekly amount
	// THEN: Cost is $13,300 and 78 weekly payments fund it

	calc := &plan.Calculator{Policy: testPolicy()}

	summary, err := calc.DurationFromAmount(stdConfig(), stdTotals(), dec("171.19"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eq(t, "settlement", summary.SettlementAmount, "8400")
	eq(t, "program fee", summary.ProgramFee, "4900")
	eq(t, "total cost", summary.TotalProgramCost, "13300")
	eq(t, "charged cost", summary.ChargedCost, "13300")
	eq(t, "net per period", summary.NetPerPeriod, "171.19")
	eq(t, "period payment", summary.PeriodPayment, "206.19")
	if summary.NumberOfPeriods != 78 {
		t.Errorf("periods: got %d, want 78", summary.NumberOfPeriods)
	}
	if summary.PeriodsClamped {
		t.Error("periods should not be clamped")
	}
}

func TestDurationFromAmount_MonthlyFrequency(t *testing.T) {
	// GIVEN: The same case paid monthly with a 4.33 weekly-to-monthly factor
	// WHEN: Sizing from the canonical weekly amount
	// THEN: The monthly net is 171.19 * 4.33 and the count shrinks accordingly

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	cfg.PaymentFrequency = plan.FrequencyMonthly

	summary, err := calc.DurationFromAmount(cfg, stdTotals(), dec("171.19"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eq(t, "monthly net", summary.NetPerPeriod, "741.25")
	// ceil(13300 / 741.25) = 18 months
	if summary.NumberOfPeriods != 18 {
		t.Errorf("periods: got %d, want 18", summary.NumberOfPeriods)
	}
}

func TestDurationFromAmount_ClampsToProgramMaximum(t *testing.T) {
	// GIVEN: A tiny weekly amount that would need far more than 260 weeks
	// WHEN: Sizing the schedule
	// THEN: The count clamps to the policy maximum and reports it

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	totals := stdTotals()
	totals.CurrentPayment = decimal.Zero // no amount bounds apply

	summary, err := calc.DurationFromAmount(cfg, totals, dec("10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.NumberOfPeriods != 260 {
		t.Errorf("periods: got %d, want 260", summary.NumberOfPeriods)
	}
	if !summary.PeriodsClamped {
		t.Error("expected PeriodsClamped")
	}
}

func TestDurationFromAmount_RejectsNonPositiveInputs(t *testing.T) {
	calc := &plan.Calculator{Policy: testPolicy()}

	if _, err := calc.DurationFromAmount(stdConfig(), stdTotals(), decimal.Zero); !plan.IsClientError(err) {
		t.Errorf("zero target: got %v, want validation error", err)
	}

	totals := stdTotals()
	totals.TotalDebt = decimal.Zero
	if _, err := calc.DurationFromAmount(stdConfig(), totals, dec("100")); !plan.IsClientError(err) {
		t.Errorf("zero debt: got %v, want validation error", err)
	}
}

// =============================================================================
// INVERSE - duration to amount
// =============================================================================

func TestAmountFromDuration_ExactDivision(t *testing.T) {
	// GIVEN: The standard case and a requested 100-period schedule
	// WHEN: Deriving the per-period amount
	// THEN: Net is exactly cost/periods, payment adds the banking fee

	calc := &plan.Calculator{Policy: testPolicy()}

	summary, err := calc.AmountFromDuration(stdConfig(), stdTotals(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eq(t, "net per period", summary.NetPerPeriod, "133")
	eq(t, "period payment", summary.PeriodPayment, "168")
	if summary.NumberOfPeriods != 100 {
		t.Errorf("periods: got %d, want 100", summary.NumberOfPeriods)
	}
}

func TestAmountFromDuration_ClampsRequestedPeriods(t *testing.T) {
	calc := &plan.Calculator{Policy: testPolicy()}

	summary, err := calc.AmountFromDuration(stdConfig(), stdTotals(), 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.NumberOfPeriods != 260 || !summary.PeriodsClamped {
		t.Errorf("got %d periods (clamped=%v), want 260 clamped", summary.NumberOfPeriods, summary.PeriodsClamped)
	}
	eq(t, "net per period", summary.NetPerPeriod, "51.15")
}

func TestForwardInverse_RoundTrip(t *testing.T) {
	// GIVEN: A duration derived from an amount
	// WHEN: Deriving the amount back from that duration
	// THEN: The amounts agree within one rounding step per period

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg, totals := stdConfig(), stdTotals()

	forward, err := calc.DurationFromAmount(cfg, totals, dec("171.19"))
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	inverse, err := calc.AmountFromDuration(cfg, totals, forward.NumberOfPeriods)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}

	diff := inverse.NetPerPeriod.Sub(forward.NetPerPeriod).Abs()
	if diff.GreaterThan(forward.TotalProgramCost.Div(decimal.NewFromInt(int64(forward.NumberOfPeriods * forward.NumberOfPeriods)))) {
		t.Errorf("round trip drifted: forward %s, inverse %s", forward.NetPerPeriod, inverse.NetPerPeriod)
	}
	if inverse.NetPerPeriod.GreaterThan(forward.NetPerPeriod) {
		t.Errorf("inverse amount %s should not exceed the forward target %s", inverse.NetPerPeriod, forward.NetPerPeriod)
	}
}

// =============================================================================
// GENERATION
// =============================================================================

func TestGenerate_RunningBalanceLandsAtZero(t *testing.T) {
	// GIVEN: The standard case
	// WHEN: Generating the full schedule
	// THEN: The balance decreases monotonically and the final row hits zero,
	//       with the final net trimmed rather than overshooting

	calc := &plan.Calculator{Policy: testPolicy()}

	items, summary, err := calc.Generate(plan.CalculationInput{Config: stdConfig(), Totals: stdTotals()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 78 {
		t.Fatalf("rows: got %d, want 78", len(items))
	}

	prev := summary.ChargedCost
	for _, it := range items {
		if it.RunningBalance.GreaterThanOrEqual(prev) {
			t.Fatalf("row %d: balance %s did not decrease from %s", it.SequenceNumber, it.RunningBalance, prev)
		}
		prev = it.RunningBalance
	}
	if !items[len(items)-1].RunningBalance.IsZero() {
		t.Errorf("final balance: got %s, want 0", items[len(items)-1].RunningBalance)
	}

	// 77 full rows then the trimmed remainder.
	last := items[len(items)-1]
	eq(t, "trimmed final net", last.NetContribution(), "118.37")
}

func TestGenerate_PortionsSumToPayment(t *testing.T) {
	// GIVEN: A schedule with setup fees, banking fees, and product fees
	// WHEN: Generating rows
	// THEN: Every row's portions sum exactly to its payment amount

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	cfg.SetupFee = plan.SetupFee{Total: dec("500"), NumberOfPayments: 3}
	cfg.SecondaryBankingFee = dec("2.50")
	cfg.AdditionalWeeklyProductsTotal = dec("4.99")

	items, _, err := calc.Generate(plan.CalculationInput{Config: cfg, Totals: stdTotals()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, it := range items {
		if !it.PortionSum().Equal(it.PaymentAmount) {
			t.Errorf("row %d: portions sum %s != payment %s", it.SequenceNumber, it.PortionSum(), it.PaymentAmount)
		}
	}
}

func TestGenerate_SetupFeeSpreadWithRemainder(t *testing.T) {
	// GIVEN: A $500 setup fee over 3 payments (500/3 does not divide evenly)
	// WHEN: Generating the schedule
	// THEN: Rows 1-2 carry 166.67, row 3 carries the 166.66 remainder,
	//       rows beyond carry zero, and the portions total exactly 500

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	cfg.SetupFee = plan.SetupFee{Total: dec("500"), NumberOfPayments: 3}

	items, _, err := calc.Generate(plan.CalculationInput{Config: cfg, Totals: stdTotals()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eq(t, "row 1 setup", items[0].SetupFeePortion, "166.67")
	eq(t, "row 2 setup", items[1].SetupFeePortion, "166.67")
	eq(t, "row 3 setup", items[2].SetupFeePortion, "166.66")
	eq(t, "row 4 setup", items[3].SetupFeePortion, "0")

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.SetupFeePortion)
	}
	eq(t, "setup total", total, "500")
}

func TestGenerate_SplitRatioWithEscrowRemainder(t *testing.T) {
	// GIVEN: A 35/65 program/escrow split
	// WHEN: Decomposing the net contribution
	// THEN: The program portion rounds and escrow absorbs the remainder

	calc := &plan.Calculator{Policy: testPolicy()}

	items, _, err := calc.Generate(plan.CalculationInput{Config: stdConfig(), Totals: stdTotals()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := items[0]
	eq(t, "program portion", first.ProgramFeePortion, "59.92") // 171.19 * 0.35 rounded
	eq(t, "escrow portion", first.EscrowAmount, "111.27")      // remainder
	eq(t, "net", first.NetContribution(), "171.19")
}

func TestGenerate_NoFeeProgramSizedFromBaseline(t *testing.T) {
	// GIVEN: A no-fee program; the policy carries a 35% baseline for sizing
	// WHEN: Generating the schedule
	// THEN: Rows charge $0 program fee and stop once the settlement alone is
	//       funded, well before the baseline-sized duration

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	cfg.NoFeeProgram = true
	cfg.ProgramSplitRatio = decimal.Zero
	cfg.EscrowSplitRatio = decimal.NewFromInt(1)
	totals := stdTotals()
	totals.ProgramFeePercent = decimal.Zero

	items, summary, err := calc.Generate(plan.CalculationInput{Config: cfg, Totals: totals})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eq(t, "charged cost", summary.ChargedCost, "8400")
	eq(t, "sizing cost", summary.TotalProgramCost, "13300")
	if summary.NumberOfPeriods != 78 {
		t.Errorf("sized periods: got %d, want 78", summary.NumberOfPeriods)
	}
	// 49 full rows at 171.19 fund 8388.31; row 50 collects the 11.69 tail.
	if len(items) != 50 {
		t.Fatalf("generated rows: got %d, want 50", len(items))
	}
	for _, it := range items {
		if !it.ProgramFeePortion.IsZero() {
			t.Errorf("row %d: charged program fee %s on a no-fee program", it.SequenceNumber, it.ProgramFeePortion)
		}
	}
	if !items[len(items)-1].RunningBalance.IsZero() {
		t.Errorf("final balance: got %s, want 0", items[len(items)-1].RunningBalance)
	}
}

func TestGenerate_NoFeeWithoutBaselineRefuses(t *testing.T) {
	// GIVEN: A no-fee program and no baseline percent anywhere
	// WHEN: Generating
	// THEN: The engine refuses rather than inventing a default

	pol := testPolicy()
	pol.BaselineProgramFeePercent = decimal.Zero
	calc := &plan.Calculator{Policy: pol}
	cfg := stdConfig()
	cfg.NoFeeProgram = true
	cfg.ProgramSplitRatio = decimal.Zero
	cfg.EscrowSplitRatio = decimal.NewFromInt(1)
	totals := stdTotals()
	totals.ProgramFeePercent = decimal.Zero

	_, _, err := calc.Generate(plan.CalculationInput{Config: cfg, Totals: totals})
	if !plan.IsFatal(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestGenerate_PercentModeClampsAndReports(t *testing.T) {
	// GIVEN: Percent-of-current mode asking for 130% against a 125% cap
	// WHEN: Generating
	// THEN: The applied percent is clamped and the summary reports it

	calc := &plan.Calculator{Policy: testPolicy()}
	cfg := stdConfig()
	cfg.CalculationMode = plan.ModePercentOfCurrent
	cfg.TargetPercent = dec("130")

	_, summary, err := calc.Generate(plan.CalculationInput{Config: cfg, Totals: stdTotals()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !summary.Bound.Clamped {
		t.Fatal("expected the bound outcome to report a clamp")
	}
	eq(t, "applied percent", summary.Bound.Applied, "125")
	eq(t, "net per period", summary.NetPerPeriod, "250") // 200 * 125%
}

// =============================================================================
// DATE SERIES
// =============================================================================

func TestPaymentDates_WeeklyPreferredWeekday(t *testing.T) {
	// GIVEN: A Monday start with Friday as the preferred draft day
	// WHEN: Generating weekly dates
	// THEN: Every date is a Friday, 7 days apart

	friday := time.Friday
	first := plan.NewTimePoint(2026, time.January, 5) // a Monday

	dates, err := plan.PaymentDates(first, plan.FrequencyWeekly, 4, &friday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 4 {
		t.Fatalf("dates: got %d, want 4", len(dates))
	}
	for i, d := range dates {
		if d.Weekday() != time.Friday {
			t.Errorf("date %d: %s is a %s, want Friday", i, d, d.Weekday())
		}
		if i > 0 && !d.Equal(dates[i-1].AddDays(7)) {
			t.Errorf("date %d: %s is not 7 days after %s", i, d, dates[i-1])
		}
	}
}

func TestPaymentDates_MonthlySnapsToPreferredWeekday(t *testing.T) {
	friday := time.Friday
	first := plan.NewTimePoint(2026, time.January, 15) // a Thursday

	dates, err := plan.PaymentDates(first, plan.FrequencyMonthly, 3, &friday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, d := range dates {
		if d.Weekday() != time.Friday {
			t.Errorf("date %d: %s is a %s, want Friday", i, d, d.Weekday())
		}
		if i > 0 && !d.After(dates[i-1]) {
			t.Errorf("date %d: %s does not advance past %s", i, d, dates[i-1])
		}
	}
}

func TestPaymentDates_RejectsEmptySeries(t *testing.T) {
	if _, err := plan.PaymentDates(plan.NewTimePoint(2026, time.January, 5), plan.FrequencyWeekly, 0, nil); !plan.IsClientError(err) {
		t.Errorf("got %v, want validation error", err)
	}
	if _, err := plan.PaymentDates(plan.TimePoint{}, plan.FrequencyWeekly, 3, nil); !plan.IsClientError(err) {
		t.Errorf("zero start: got %v, want validation error", err)
	}
}
