/*
dto.go - API request/response data structures

PURPOSE:
  Defines the JSON shapes exchanged over the REST API, decoupled from the
  domain types. Monetary values cross the wire as strings so clients never
  see float drift; dates use YYYY-MM-DD.

SEE ALSO:
  - handlers.go: Handler implementations using these DTOs
  - plan/types.go: The domain types these map to
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/plan-engine/plan"
)

// =============================================================================
// REQUEST DTOS
// =============================================================================

// ConfigDTO carries a plan configuration over the wire.
type ConfigDTO struct {
	ProgramType      string `json:"program_type"`
	PaymentFrequency string `json:"payment_frequency"`
	CalculationMode  string `json:"calculation_mode"`

	TargetPercent string `json:"target_percent,omitempty"`
	TargetAmount  string `json:"target_amount,omitempty"`

	SetupFeeTotal    string `json:"setup_fee_total,omitempty"`
	SetupFeePayments int    `json:"setup_fee_payments,omitempty"`

	BankingFee          string `json:"banking_fee,omitempty"`
	SecondaryBankingFee string `json:"secondary_banking_fee,omitempty"`

	ProgramSplitRatio string `json:"program_split_ratio,omitempty"`
	EscrowSplitRatio  string `json:"escrow_split_ratio,omitempty"`

	FirstPaymentDate string `json:"first_payment_date"`
	PreferredWeekday string `json:"preferred_weekday,omitempty"`

	NoFeeProgram                  bool   `json:"no_fee_program,omitempty"`
	AdditionalWeeklyProductsTotal string `json:"additional_weekly_products_total,omitempty"`
}

// TotalsDTO carries the case financials over the wire.
type TotalsDTO struct {
	TotalDebt         string `json:"total_debt"`
	CurrentPayment    string `json:"current_payment,omitempty"`
	SettlementPercent string `json:"settlement_percent"`
	ProgramFeePercent string `json:"program_fee_percent,omitempty"`
}

// CalculateRequest drives both the preview endpoint and version creation.
type CalculateRequest struct {
	Config    ConfigDTO `json:"config"`
	Totals    TotalsDTO `json:"totals"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// ItemStatusRequest changes one row's status.
type ItemStatusRequest struct {
	Status string `json:"status"`
}

// WireFeeRequest attaches an ancillary fee to a row.
type WireFeeRequest struct {
	FeeType string `json:"fee_type"`
	Amount  string `json:"amount"`
}

// SaveItemsRequest replaces a version's rows after grid edits.
type SaveItemsRequest struct {
	Items []ScheduleItemDTO `json:"items"`
}

// =============================================================================
// RESPONSE DTOS
// =============================================================================

type ScheduleItemDTO struct {
	ID             string `json:"id,omitempty"`
	SequenceNumber int    `json:"sequence_number"`
	PaymentDate    string `json:"payment_date"`
	PaymentAmount  string `json:"payment_amount"`

	SetupFeePortion            string `json:"setup_fee_portion"`
	ProgramFeePortion          string `json:"program_fee_portion"`
	BankingFeePortion          string `json:"banking_fee_portion"`
	SecondaryBankingFeePortion string `json:"secondary_banking_fee_portion"`
	AdditionalProductsPortion  string `json:"additional_products_portion"`

	EscrowAmount   string `json:"escrow_amount"`
	RunningBalance string `json:"running_balance"`

	Status string `json:"status"`
}

type SummaryDTO struct {
	SettlementAmount string `json:"settlement_amount"`
	ProgramFee       string `json:"program_fee"`
	TotalProgramCost string `json:"total_program_cost"`
	NetPerPeriod     string `json:"net_per_period"`
	PeriodPayment    string `json:"period_payment"`
	NumberOfPeriods  int    `json:"number_of_periods"`
	PeriodsClamped   bool   `json:"periods_clamped"`

	// Bound reporting: present only when the target was clamped.
	TargetClamped   bool   `json:"target_clamped"`
	TargetRequested string `json:"target_requested,omitempty"`
	TargetApplied   string `json:"target_applied,omitempty"`
	TargetDelta     string `json:"target_delta,omitempty"`
}

type CalculateResponse struct {
	Summary SummaryDTO        `json:"summary"`
	Items   []ScheduleItemDTO `json:"items"`
}

type VersionDTO struct {
	ID            string            `json:"id"`
	CaseID        string            `json:"case_id"`
	VersionNumber int               `json:"version_number"`
	Status        string            `json:"status"`
	IsPrimary     bool              `json:"is_primary"`
	CreatedAt     string            `json:"created_at"`
	CreatedBy     string            `json:"created_by,omitempty"`
	Items         []ScheduleItemDTO `json:"items"`
}

type WireFeeDTO struct {
	ID             string `json:"id"`
	ScheduleItemID string `json:"schedule_item_id"`
	FeeType        string `json:"fee_type"`
	Amount         string `json:"amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS - wire to domain
// =============================================================================

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", plan.ErrValidation, field, err)
	}
	return d, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

func (d ConfigDTO) toDomain() (plan.PlanConfiguration, error) {
	cfg := plan.PlanConfiguration{
		ProgramType:      plan.ProgramType(d.ProgramType),
		PaymentFrequency: plan.PaymentFrequency(d.PaymentFrequency),
		CalculationMode:  plan.CalculationMode(d.CalculationMode),
		NoFeeProgram:     d.NoFeeProgram,
	}
	cfg.SetupFee.NumberOfPayments = d.SetupFeePayments

	var err error
	for field, dst := range map[string]*decimal.Decimal{
		"target_percent":                   &cfg.TargetPercent,
		"target_amount":                    &cfg.TargetAmount,
		"setup_fee_total":                  &cfg.SetupFee.Total,
		"banking_fee":                      &cfg.BankingFee,
		"secondary_banking_fee":            &cfg.SecondaryBankingFee,
		"program_split_ratio":              &cfg.ProgramSplitRatio,
		"escrow_split_ratio":               &cfg.EscrowSplitRatio,
		"additional_weekly_products_total": &cfg.AdditionalWeeklyProductsTotal,
	} {
		raw := map[string]string{
			"target_percent":                   d.TargetPercent,
			"target_amount":                    d.TargetAmount,
			"setup_fee_total":                  d.SetupFeeTotal,
			"banking_fee":                      d.BankingFee,
			"secondary_banking_fee":            d.SecondaryBankingFee,
			"program_split_ratio":              d.ProgramSplitRatio,
			"escrow_split_ratio":               d.EscrowSplitRatio,
			"additional_weekly_products_total": d.AdditionalWeeklyProductsTotal,
		}[field]
		if *dst, err = parseDecimal(field, raw); err != nil {
			return plan.PlanConfiguration{}, err
		}
	}

	if cfg.FirstPaymentDate, err = plan.ParseDate(d.FirstPaymentDate); err != nil {
		return plan.PlanConfiguration{}, fmt.Errorf("%w: first_payment_date: %v", plan.ErrValidation, err)
	}
	if d.PreferredWeekday != "" {
		wd, ok := weekdayNames[strings.ToLower(d.PreferredWeekday)]
		if !ok {
			return plan.PlanConfiguration{}, fmt.Errorf("%w: unknown weekday %q", plan.ErrValidation, d.PreferredWeekday)
		}
		cfg.PreferredWeekday = &wd
	}
	return cfg, nil
}

func (d TotalsDTO) toDomain() (plan.CaseTotals, error) {
	var t plan.CaseTotals
	var err error
	if t.TotalDebt, err = parseDecimal("total_debt", d.TotalDebt); err != nil {
		return t, err
	}
	if t.CurrentPayment, err = parseDecimal("current_payment", d.CurrentPayment); err != nil {
		return t, err
	}
	if t.SettlementPercent, err = parseDecimal("settlement_percent", d.SettlementPercent); err != nil {
		return t, err
	}
	if t.ProgramFeePercent, err = parseDecimal("program_fee_percent", d.ProgramFeePercent); err != nil {
		return t, err
	}
	return t, nil
}

func (d ScheduleItemDTO) toDomain() (plan.ScheduleItem, error) {
	it := plan.ScheduleItem{
		ID:             plan.ItemID(d.ID),
		SequenceNumber: d.SequenceNumber,
		Status:         plan.ItemStatus(d.Status),
	}
	var err error
	if it.PaymentDate, err = plan.ParseDate(d.PaymentDate); err != nil {
		return it, fmt.Errorf("%w: payment_date: %v", plan.ErrValidation, err)
	}
	for field, pair := range map[string]struct {
		raw string
		dst *decimal.Decimal
	}{
		"payment_amount":                {d.PaymentAmount, &it.PaymentAmount},
		"setup_fee_portion":             {d.SetupFeePortion, &it.SetupFeePortion},
		"program_fee_portion":           {d.ProgramFeePortion, &it.ProgramFeePortion},
		"banking_fee_portion":           {d.BankingFeePortion, &it.BankingFeePortion},
		"secondary_banking_fee_portion": {d.SecondaryBankingFeePortion, &it.SecondaryBankingFeePortion},
		"additional_products_portion":   {d.AdditionalProductsPortion, &it.AdditionalProductsPortion},
		"escrow_amount":                 {d.EscrowAmount, &it.EscrowAmount},
		"running_balance":               {d.RunningBalance, &it.RunningBalance},
	} {
		if *pair.dst, err = parseDecimal(field, pair.raw); err != nil {
			return it, err
		}
	}
	return it, nil
}

// =============================================================================
// CONVERSION HELPERS - domain to wire
// =============================================================================

func toItemDTO(it plan.ScheduleItem) ScheduleItemDTO {
	return ScheduleItemDTO{
		ID:                         string(it.ID),
		SequenceNumber:             it.SequenceNumber,
		PaymentDate:                it.PaymentDate.String(),
		PaymentAmount:              it.PaymentAmount.StringFixed(2),
		SetupFeePortion:            it.SetupFeePortion.StringFixed(2),
		ProgramFeePortion:          it.ProgramFeePortion.StringFixed(2),
		BankingFeePortion:          it.BankingFeePortion.StringFixed(2),
		SecondaryBankingFeePortion: it.SecondaryBankingFeePortion.StringFixed(2),
		AdditionalProductsPortion:  it.AdditionalProductsPortion.StringFixed(2),
		EscrowAmount:               it.EscrowAmount.StringFixed(2),
		RunningBalance:             it.RunningBalance.StringFixed(2),
		Status:                     string(it.Status),
	}
}

func toItemDTOs(items []plan.ScheduleItem) []ScheduleItemDTO {
	dtos := make([]ScheduleItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toItemDTO(it)
	}
	return dtos
}

func toSummaryDTO(s plan.Summary) SummaryDTO {
	dto := SummaryDTO{
		SettlementAmount: s.SettlementAmount.StringFixed(2),
		ProgramFee:       s.ProgramFee.StringFixed(2),
		TotalProgramCost: s.TotalProgramCost.StringFixed(2),
		NetPerPeriod:     s.NetPerPeriod.StringFixed(2),
		PeriodPayment:    s.PeriodPayment.StringFixed(2),
		NumberOfPeriods:  s.NumberOfPeriods,
		PeriodsClamped:   s.PeriodsClamped,
		TargetClamped:    s.Bound.Clamped,
	}
	if s.Bound.Clamped {
		dto.TargetRequested = s.Bound.Requested.StringFixed(2)
		dto.TargetApplied = s.Bound.Applied.StringFixed(2)
		dto.TargetDelta = s.Bound.Delta.StringFixed(2)
	}
	return dto
}

func toVersionDTO(v plan.PlanVersion) VersionDTO {
	return VersionDTO{
		ID:            string(v.ID),
		CaseID:        string(v.CaseID),
		VersionNumber: v.VersionNumber,
		Status:        string(v.Status),
		IsPrimary:     v.IsPrimary,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
		CreatedBy:     v.CreatedBy,
		Items:         toItemDTOs(v.Items),
	}
}

func toWireFeeDTO(f plan.WireFee) WireFeeDTO {
	return WireFeeDTO{
		ID:             string(f.ID),
		ScheduleItemID: string(f.ScheduleItemID),
		FeeType:        f.FeeType,
		Amount:         f.Amount.StringFixed(2),
	}
}
