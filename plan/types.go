/*
Package plan provides the core settlement payment plan engine.

PURPOSE:
  This package contains the domain types and algorithms for building and
  maintaining debt-settlement payment schedules: turning a case's totals and
  a small set of financial parameters into a dated, fee-decomposed sequence
  of payment rows, and managing the append-only lifecycle of plan versions.

KEY CONCEPTS IN THIS FILE (types.go):
  - PlanConfiguration: Immutable inputs to one calculation
  - CaseTotals: Debt and fee percentages supplied per case
  - ScheduleItem: One dated, fee-decomposed payment row
  - PlanVersion: One immutable-once-activated snapshot of a schedule
  - WireFee: Ancillary fee attached to a row, outside schedule math

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: Calculation is synchronous and side-effect-free
  3. Append-only: Versions are superseded, never mutated in place
  4. Policy comes from configuration, never from hardcoded defaults

SEE ALSO:
  - bounds.go: Target payment clamping
  - calculator.go: Forward/inverse schedule math
  - fees.go: Per-row fee decomposition
  - version.go: Version lifecycle state machine
*/
package plan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENUMS
// =============================================================================

type ProgramType string

const (
	ProgramStandardSplit ProgramType = "standard_split"
	ProgramDebtFocused   ProgramType = "debt_focused"
	ProgramNoFeeVariant  ProgramType = "no_fee_variant"
)

type PaymentFrequency string

const (
	FrequencyWeekly  PaymentFrequency = "weekly"
	FrequencyMonthly PaymentFrequency = "monthly"
)

type CalculationMode string

const (
	ModePercentOfCurrent CalculationMode = "percent_of_current"
	ModeDesiredAmount    CalculationMode = "desired_amount"
)

// ItemStatus is the lifecycle status of a single schedule row.
// Scheduled is the only editable status; everything else is frozen.
type ItemStatus string

const (
	ItemScheduled ItemStatus = "scheduled"
	ItemCleared   ItemStatus = "cleared"
	ItemNSF       ItemStatus = "nsf"
	ItemCancelled ItemStatus = "cancelled"
)

// Locked reports whether the row is excluded from edit and regeneration.
func (s ItemStatus) Locked() bool { return s != ItemScheduled }

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemScheduled, ItemCleared, ItemNSF, ItemCancelled:
		return true
	}
	return false
}

type VersionStatus string

const (
	VersionDraft     VersionStatus = "draft"
	VersionActive    VersionStatus = "active"
	VersionSuspended VersionStatus = "suspended"
	VersionArchived  VersionStatus = "archived"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CaseID string
type VersionID string
type ItemID string
type WireFeeID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

// RoundCents rounds a monetary value to 2 decimals, half up.
// Applied after every derived computation per the rounding discipline.
func RoundCents(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var hundred = decimal.NewFromInt(100)

// =============================================================================
// CONFIGURATION INPUTS
// =============================================================================

// SetupFee is spread evenly across the first NumberOfPayments rows.
type SetupFee struct {
	Total            decimal.Decimal `json:"total"`
	NumberOfPayments int             `json:"number_of_payments"`
}

// Bounds are the program-specific limits on the target payment.
// All amount bounds are in weekly space.
type Bounds struct {
	MinWeeklyTarget decimal.Decimal `json:"min_weekly_target"`
	MinPercent      decimal.Decimal `json:"min_percent"`
	MaxPercent      decimal.Decimal `json:"max_percent"`
}

// PlanConfiguration is the immutable input to one schedule calculation.
type PlanConfiguration struct {
	ProgramType      ProgramType      `json:"program_type"`
	PaymentFrequency PaymentFrequency `json:"payment_frequency"`
	CalculationMode  CalculationMode  `json:"calculation_mode"`

	// Target payment, interpreted per CalculationMode. TargetAmount is
	// canonical weekly regardless of PaymentFrequency.
	TargetPercent decimal.Decimal `json:"target_percent"`
	TargetAmount  decimal.Decimal `json:"target_amount"`

	SetupFee            SetupFee        `json:"setup_fee"`
	BankingFee          decimal.Decimal `json:"banking_fee"`
	SecondaryBankingFee decimal.Decimal `json:"secondary_banking_fee"`

	// Net split. Must sum to 1, unless NoFeeProgram (escrow takes all).
	ProgramSplitRatio decimal.Decimal `json:"program_split_ratio"`
	EscrowSplitRatio  decimal.Decimal `json:"escrow_split_ratio"`

	FirstPaymentDate TimePoint     `json:"first_payment_date"`
	PreferredWeekday *time.Weekday `json:"preferred_weekday,omitempty"`

	NoFeeProgram                 bool            `json:"no_fee_program"`
	AdditionalWeeklyProductsTotal decimal.Decimal `json:"additional_weekly_products_total"`

	Bounds Bounds `json:"bounds"`
}

// Validate checks the structural invariants of the configuration.
func (c PlanConfiguration) Validate() error {
	switch c.PaymentFrequency {
	case FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("%w: unknown payment frequency %q", ErrValidation, c.PaymentFrequency)
	}
	switch c.CalculationMode {
	case ModePercentOfCurrent, ModeDesiredAmount:
	default:
		return fmt.Errorf("%w: unknown calculation mode %q", ErrValidation, c.CalculationMode)
	}
	if c.FirstPaymentDate.IsZero() {
		return fmt.Errorf("%w: first payment date is required", ErrValidation)
	}
	if c.NoFeeProgram {
		if !c.EscrowSplitRatio.Equal(decimal.NewFromInt(1)) || !c.ProgramSplitRatio.IsZero() {
			return fmt.Errorf("%w: no-fee program requires escrow split 1 and program split 0", ErrValidation)
		}
		return nil
	}
	if !c.ProgramSplitRatio.Add(c.EscrowSplitRatio).Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: program and escrow split ratios must sum to 1", ErrValidation)
	}
	return nil
}

// CaseTotals are the per-case financials the schedule funds.
// Percentages are whole numbers (60 means 60%).
type CaseTotals struct {
	TotalDebt         decimal.Decimal `json:"total_debt"`
	CurrentPayment    decimal.Decimal `json:"current_payment"` // weekly; zero when unknown
	SettlementPercent decimal.Decimal `json:"settlement_percent"`
	ProgramFeePercent decimal.Decimal `json:"program_fee_percent"`
}

// =============================================================================
// SCHEDULE ITEM - One payment row
// =============================================================================

type ScheduleItem struct {
	ID             ItemID          `json:"id"`
	SequenceNumber int             `json:"sequence_number"`
	PaymentDate    TimePoint       `json:"payment_date"`
	PaymentAmount  decimal.Decimal `json:"payment_amount"`

	SetupFeePortion            decimal.Decimal `json:"setup_fee_portion"`
	ProgramFeePortion          decimal.Decimal `json:"program_fee_portion"`
	BankingFeePortion          decimal.Decimal `json:"banking_fee_portion"`
	SecondaryBankingFeePortion decimal.Decimal `json:"secondary_banking_fee_portion"`
	AdditionalProductsPortion  decimal.Decimal `json:"additional_products_portion"`

	// EscrowAmount is the savings portion retained toward settlement funding.
	EscrowAmount   decimal.Decimal `json:"escrow_amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`

	Status ItemStatus `json:"status"`
}

// IsLocked reports whether the row is excluded from edit and regeneration.
func (it ScheduleItem) IsLocked() bool { return it.Status.Locked() }

// NetContribution is the part of the payment that funds settlement + program.
func (it ScheduleItem) NetContribution() decimal.Decimal {
	return it.ProgramFeePortion.Add(it.EscrowAmount)
}

// PortionSum recomposes the payment from its parts. Equals PaymentAmount for
// freshly generated rows; human edits may break this locally until recompute.
func (it ScheduleItem) PortionSum() decimal.Decimal {
	return it.SetupFeePortion.
		Add(it.ProgramFeePortion).
		Add(it.BankingFeePortion).
		Add(it.SecondaryBankingFeePortion).
		Add(it.AdditionalProductsPortion).
		Add(it.EscrowAmount)
}

// =============================================================================
// PLAN VERSION - One snapshot of schedule + configuration
// =============================================================================

type PlanVersion struct {
	ID            VersionID         `json:"id"`
	CaseID        CaseID            `json:"case_id"`
	VersionNumber int               `json:"version_number"`
	Status        VersionStatus     `json:"status"`
	IsPrimary     bool              `json:"is_primary"`
	Config        PlanConfiguration `json:"config"`
	Totals        CaseTotals        `json:"totals"`
	Items         []ScheduleItem    `json:"items"`
	CreatedAt     time.Time         `json:"created_at"`
	CreatedBy     string            `json:"created_by"`
}

// IsEditable is the single editability predicate: a row may be edited iff its
// own status is Scheduled and the version allows edits. Whether an Active
// version's Scheduled rows stay editable is a policy decision, passed in as
// allowActiveEdits rather than decided at call sites.
func IsEditable(item ScheduleItem, version PlanVersion, allowActiveEdits bool) bool {
	if item.Status != ItemScheduled {
		return false
	}
	switch version.Status {
	case VersionDraft:
		return true
	case VersionActive:
		return allowActiveEdits
	default:
		return false
	}
}

// =============================================================================
// WIRE FEE - Ancillary fee attached to a row
// =============================================================================

// WireFee references a ScheduleItem by id but is owned independently.
// It never affects primary schedule math; orphans are ignorable, not fatal.
type WireFee struct {
	ID             WireFeeID       `json:"id"`
	ScheduleItemID ItemID          `json:"schedule_item_id"`
	FeeType        string          `json:"fee_type"`
	Amount         decimal.Decimal `json:"amount"`
}

// =============================================================================
// PROGRAM POLICY - Supplied by the configuration collaborator
// =============================================================================

// ProgramPolicy carries the business policy for one program type. The engine
// treats it as a required input: a missing policy disables calculation, it is
// never substituted with defaults invented here.
type ProgramPolicy struct {
	ProgramType ProgramType `json:"program_type"`

	Bounds Bounds `json:"bounds"`

	// Conversion factor between weekly and monthly amounts (typically ~4.33).
	WeeklyToMonthlyFactor decimal.Decimal `json:"weekly_to_monthly_factor"`

	// Schedule length clamp, in weeks.
	MinProgramWeeks int `json:"min_program_weeks"`
	MaxProgramWeeks int `json:"max_program_weeks"`

	// Baseline program fee percent used to size no-fee schedules. Required
	// when the program charges no fee; the charged fee stays zero.
	BaselineProgramFeePercent decimal.Decimal `json:"baseline_program_fee_percent"`

	// Defaults handed to newly inserted grid rows.
	DefaultBankingFee          decimal.Decimal `json:"default_banking_fee"`
	DefaultSecondaryBankingFee decimal.Decimal `json:"default_secondary_banking_fee"`

	// Whether Scheduled rows of an Active version remain editable.
	ActiveRowsEditable bool `json:"active_rows_editable"`
}

// Validate checks that the policy is complete enough to calculate with.
func (p ProgramPolicy) Validate() error {
	if p.WeeklyToMonthlyFactor.LessThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: weekly-to-monthly factor must exceed 1", ErrConfigurationUnavailable)
	}
	if p.MinProgramWeeks <= 0 || p.MaxProgramWeeks < p.MinProgramWeeks {
		return fmt.Errorf("%w: program week bounds are invalid", ErrConfigurationUnavailable)
	}
	if p.Bounds.MaxPercent.LessThan(p.Bounds.MinPercent) {
		return fmt.Errorf("%w: percent bounds are inverted", ErrConfigurationUnavailable)
	}
	return nil
}
