/*
Package policy loads program policy from configuration.

PURPOSE:
  The engine never invents business policy. Fee percentages, payment bounds,
  the weekly-to-monthly factor, and program length limits all come from a
  policy document managed outside the codebase. A missing or invalid policy
  is a fatal precondition: the engine refuses to calculate rather than fall
  back to hardcoded defaults.

FORMAT:
  JSON, one entry per program type. Decimal fields are strings to avoid
  float drift:

    {
      "programs": {
        "standard_split": {
          "bounds": {"min_weekly_target": "25", "min_percent": "50", "max_percent": "125"},
          "weekly_to_monthly_factor": "4.33",
          "min_program_weeks": 12,
          "max_program_weeks": 260,
          "baseline_program_fee_percent": "35",
          "default_banking_fee": "10",
          "default_secondary_banking_fee": "0",
          "active_rows_editable": false
        }
      }
    }

  baseline_program_fee_percent sizes no-fee programs and is required for
  them. Per-plan split ratios live on the plan configuration, not here.

SEE ALSO:
  - plan/types.go: ProgramPolicy shape and validation
*/
package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/plan-engine/plan"
)

// Source supplies program policy to the engine.
type Source interface {
	PolicyFor(programType plan.ProgramType) (plan.ProgramPolicy, error)
}

// =============================================================================
// CATALOG - JSON-backed policy source
// =============================================================================

type Catalog struct {
	programs map[plan.ProgramType]plan.ProgramPolicy
}

type catalogJSON struct {
	Programs map[plan.ProgramType]plan.ProgramPolicy `json:"programs"`
}

// Load reads and validates a policy file. Any failure (missing file, bad
// JSON, incomplete policy) wraps ErrConfigurationUnavailable.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", plan.ErrConfigurationUnavailable, path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw policy JSON.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrConfigurationUnavailable, err)
	}
	if len(doc.Programs) == 0 {
		return nil, fmt.Errorf("%w: no programs configured", plan.ErrConfigurationUnavailable)
	}
	for pt, p := range doc.Programs {
		p.ProgramType = pt
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("program %q: %w", pt, err)
		}
		doc.Programs[pt] = p
	}
	return &Catalog{programs: doc.Programs}, nil
}

// Static wraps already-built policies. Used by tests and by operator tooling
// that embeds its own defaults; this engine never does.
func Static(policies ...plan.ProgramPolicy) *Catalog {
	m := make(map[plan.ProgramType]plan.ProgramPolicy, len(policies))
	for _, p := range policies {
		m[p.ProgramType] = p
	}
	return &Catalog{programs: m}
}

// PolicyFor returns the policy for a program type, or
// ErrConfigurationUnavailable when none is configured.
func (c *Catalog) PolicyFor(programType plan.ProgramType) (plan.ProgramPolicy, error) {
	p, ok := c.programs[programType]
	if !ok {
		return plan.ProgramPolicy{}, fmt.Errorf(
			"%w: no policy for program %q", plan.ErrConfigurationUnavailable, programType)
	}
	return p, nil
}
