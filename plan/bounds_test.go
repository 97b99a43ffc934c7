package plan_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// PERCENT BOUNDS
// =============================================================================

func TestEnforcePercent_ClampsBothEnds(t *testing.T) {
	b := testPolicy().Bounds

	low := plan.EnforcePercent(dec("30"), b)
	if !low.Clamped {
		t.Fatal("30% below the 50% floor should clamp")
	}
	eq(t, "applied", low.Applied, "50")
	eq(t, "delta", low.Delta, "20")

	high := plan.EnforcePercent(dec("150"), b)
	if !high.Clamped {
		t.Fatal("150% above the 125% ceiling should clamp")
	}
	eq(t, "applied", high.Applied, "125")
	eq(t, "delta", high.Delta, "-25")

	ok := plan.EnforcePercent(dec("80"), b)
	if ok.Clamped {
		t.Error("80% inside bounds should not clamp")
	}
	if !ok.Delta.IsZero() {
		t.Errorf("unclamped delta: got %s, want 0", ok.Delta)
	}
}

func TestBoundOutcome_ViolationOnlyWhenClamped(t *testing.T) {
	b := testPolicy().Bounds

	if v := plan.EnforcePercent(dec("80"), b).Violation("target_percent"); v != nil {
		t.Errorf("unclamped outcome produced a violation: %v", v)
	}

	v := plan.EnforcePercent(dec("30"), b).Violation("target_percent")
	if v == nil {
		t.Fatal("clamped outcome should produce a violation")
	}
	if !plan.IsClientError(v) {
		t.Errorf("violation should classify as a client error")
	}
	eq(t, "requested", v.Requested, "30")
	eq(t, "applied", v.Applied, "50")
}

// =============================================================================
// AMOUNT BOUNDS
// =============================================================================

func TestEnforceWeeklyAmount_FloorFromCurrentPayment(t *testing.T) {
	// GIVEN: Current payment $200, MinPercent 50%, MinWeeklyTarget $25
	// WHEN: Requesting $80/week
	// THEN: The floor is max(25, 100) = 100 and the request clamps up

	b := testPolicy().Bounds
	out := plan.EnforceWeeklyAmount(dec("80"), dec("200"), b)

	if !out.Clamped {
		t.Fatal("expected a clamp to the floor")
	}
	eq(t, "floor", out.Floor, "100")
	eq(t, "applied", out.Applied, "100")
	if out.Ceiling == nil {
		t.Fatal("ceiling should be set when current payment is known")
	}
	eq(t, "ceiling", *out.Ceiling, "250")
}

func TestEnforceWeeklyAmount_MinTargetWinsOverPercentFloor(t *testing.T) {
	// GIVEN: A small current payment where 50% of it is below the $25 minimum
	// WHEN: Requesting $10/week
	// THEN: The $25 absolute floor applies

	b := testPolicy().Bounds
	out := plan.EnforceWeeklyAmount(dec("10"), dec("40"), b)
	eq(t, "floor", out.Floor, "25")
	eq(t, "applied", out.Applied, "25")
}

func TestEnforceWeeklyAmount_NoBoundsWithoutCurrentPayment(t *testing.T) {
	// GIVEN: The current payment is unknown (zero)
	// WHEN: Requesting any amount
	// THEN: No floor or ceiling applies

	b := testPolicy().Bounds
	out := plan.EnforceWeeklyAmount(dec("5"), decimal.Zero, b)
	if out.Clamped {
		t.Error("no clamp should apply without a current payment")
	}
	if out.Ceiling != nil {
		t.Errorf("ceiling should be nil, got %s", *out.Ceiling)
	}
	eq(t, "applied", out.Applied, "5")
}

// =============================================================================
// FREQUENCY CONVERSION
// =============================================================================

func TestWeeklyMonthlyConversion(t *testing.T) {
	factor := dec("4.33")
	eq(t, "weekly to monthly", plan.WeeklyToMonthly(dec("171.19"), factor), "741.25")
	eq(t, "monthly to weekly", plan.MonthlyToWeekly(dec("741.25"), factor), "171.19")
}

// =============================================================================
// TARGET DERIVATION
// =============================================================================

func TestWeeklyTarget_PercentModeRequiresCurrentPayment(t *testing.T) {
	cfg := stdConfig()
	cfg.CalculationMode = plan.ModePercentOfCurrent
	cfg.TargetPercent = dec("100")
	totals := stdTotals()
	totals.CurrentPayment = decimal.Zero

	if _, _, err := plan.WeeklyTarget(cfg, totals); !plan.IsClientError(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestWeeklyTarget_PercentModeDerivesFromCurrent(t *testing.T) {
	cfg := stdConfig()
	cfg.CalculationMode = plan.ModePercentOfCurrent
	cfg.TargetPercent = dec("75")

	weekly, out, err := plan.WeeklyTarget(cfg, stdTotals())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eq(t, "weekly", weekly, "150") // 200 * 75%
	if out.Clamped {
		t.Error("75% inside bounds should not clamp")
	}
}

func TestWeeklyTarget_AmountModeAppliesBounds(t *testing.T) {
	cfg := stdConfig()
	cfg.TargetAmount = dec("500") // above the 250 ceiling

	weekly, out, err := plan.WeeklyTarget(cfg, stdTotals())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eq(t, "weekly", weekly, "250")
	if !out.Clamped {
		t.Error("expected a ceiling clamp")
	}
}
