package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/warp/plan-engine/plan"
	"github.com/warp/plan-engine/policy"
)

const validDoc = `{
  "programs": {
    "standard_split": {
      "bounds": {
        "min_weekly_target": "25",
        "min_percent": "50",
        "max_percent": "125"
      },
      "weekly_to_monthly_factor": "4.33",
      "min_program_weeks": 12,
      "max_program_weeks": 260,
      "baseline_program_fee_percent": "35",
      "default_banking_fee": "35"
    }
  }
}`

func TestParse_ValidCatalog(t *testing.T) {
	cat, err := policy.Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := cat.PolicyFor(plan.ProgramStandardSplit)
	if err != nil {
		t.Fatalf("policy lookup: %v", err)
	}
	if p.ProgramType != plan.ProgramStandardSplit {
		t.Errorf("program type: got %s", p.ProgramType)
	}
	if p.MinProgramWeeks != 12 || p.MaxProgramWeeks != 260 {
		t.Errorf("week bounds: got [%d,%d]", p.MinProgramWeeks, p.MaxProgramWeeks)
	}
	if !p.WeeklyToMonthlyFactor.Equal(plan.MustDecimal("4.33")) {
		t.Errorf("factor: got %s", p.WeeklyToMonthlyFactor)
	}
}

func TestParse_FailuresAreFatalConfiguration(t *testing.T) {
	// GIVEN: Malformed, empty, and structurally invalid policy documents
	// WHEN: Parsing each
	// THEN: Every failure classifies as configuration-unavailable, so the
	//       engine refuses to calculate rather than defaulting

	cases := map[string]string{
		"bad json":       `{not json`,
		"no programs":    `{"programs": {}}`,
		"invalid factor": `{"programs": {"standard_split": {"weekly_to_monthly_factor": "0.5", "min_program_weeks": 12, "max_program_weeks": 260}}}`,
		"inverted weeks": `{"programs": {"standard_split": {"weekly_to_monthly_factor": "4.33", "min_program_weeks": 100, "max_program_weeks": 12}}}`,
	}
	for name, doc := range cases {
		if _, err := policy.Parse([]byte(doc)); !plan.IsFatal(err) {
			t.Errorf("%s: got %v, want configuration error", name, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := policy.Load(filepath.Join(t.TempDir(), "absent.json")); !plan.IsFatal(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestLoad_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cat, err := policy.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cat.PolicyFor(plan.ProgramStandardSplit); err != nil {
		t.Errorf("policy lookup: %v", err)
	}
}

func TestPolicyFor_UnknownProgram(t *testing.T) {
	cat, err := policy.Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cat.PolicyFor(plan.ProgramNoFeeVariant); !plan.IsFatal(err) {
		t.Errorf("got %v, want configuration error", err)
	}
}

func TestStatic_WrapsBuiltPolicies(t *testing.T) {
	cat := policy.Static(plan.ProgramPolicy{
		ProgramType:           plan.ProgramDebtFocused,
		WeeklyToMonthlyFactor: plan.MustDecimal("4.33"),
		MinProgramWeeks:       12,
		MaxProgramWeeks:       260,
	})
	if _, err := cat.PolicyFor(plan.ProgramDebtFocused); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
