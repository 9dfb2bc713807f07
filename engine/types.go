/*
Package engine provides the payroll calculation engine.

PURPOSE:
  Turns an employee's contractual terms, worked time and attendance events
  into an auditable payroll record (gross pay, statutory deductions, net
  pay) for one pay period. Every stage is a pure function of its inputs
  plus the active RuleTableVersion. Nothing in this package performs I/O.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money helpers: decimal arithmetic with a single round-half-up per line
  - EmployeeCompensationProfile: contractual terms supplied by the caller
  - AttendanceRecord: one day of attendance as recorded upstream
  - PayItem: caller-supplied allowance or bonus
  - PayrollCalculationResult: the immutable output aggregate

DESIGN PRINCIPLES:
  1. Precision: all amounts are decimal.Decimal, never float64
  2. Rounding: each line item is rounded exactly once, sub-totals never
  3. Immutability: results are never updated, a correction is a new result
  4. Auditability: every result carries provenance (rule table + input hash)

PIPELINE:
  Assembler -> Aggregator -> Overtime + Gross -> Statutory -> Validator

SEE ALSO:
  - ruletable.go: jurisdiction constants
  - assembler.go: orchestration
  - errors.go: error kinds
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - decimal helpers
// =============================================================================

var sixty = decimal.NewFromInt(60)

// RoundMoney rounds half-up (away from zero) to the currency's minor unit.
// Only call it once per line item.
func RoundMoney(d decimal.Decimal, scale int32) decimal.Decimal {
	return d.Round(scale)
}

// MustDecimal parses s or panics. Intended for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string

// ContractCategory decides which rules bind an employee (e.g. the
// minimum-wage floor only binds permanent contracts by default).
type ContractCategory string

const (
	ContractPermanent ContractCategory = "permanent"
	ContractProbation ContractCategory = "probation"
	ContractFixedTerm ContractCategory = "fixed_term"
	ContractPartTime  ContractCategory = "part_time"
)

func (c ContractCategory) Valid() bool {
	switch c {
	case ContractPermanent, ContractProbation, ContractFixedTerm, ContractPartTime:
		return true
	}
	return false
}

// =============================================================================
// EMPLOYEE COMPENSATION PROFILE
// =============================================================================

// EmployeeCompensationProfile is supplied by the caller and never mutated.
type EmployeeCompensationProfile struct {
	EmployeeID           EmployeeID       `json:"employee_id"`
	CompanyID            string           `json:"company_id,omitempty"`
	BaseSalary           decimal.Decimal  `json:"base_salary"` // monthly
	Category             ContractCategory `json:"category"`
	ScheduledWeeklyHours decimal.Decimal  `json:"scheduled_weekly_hours"`
	HireDate             time.Time        `json:"hire_date"`
	TerminationDate      *time.Time       `json:"termination_date,omitempty"`
}

// =============================================================================
// ATTENDANCE RECORDS - input events
// =============================================================================

type AttendanceType string

const (
	AttendancePresent     AttendanceType = "present"
	AttendancePaidLeave   AttendanceType = "paid_leave"
	AttendanceUnpaidLeave AttendanceType = "unpaid_leave"
	AttendanceAbsent      AttendanceType = "absent"
	AttendanceRestDay     AttendanceType = "rest_day"
	AttendanceHoliday     AttendanceType = "holiday"
)

func (t AttendanceType) Valid() bool {
	switch t {
	case AttendancePresent, AttendancePaidLeave, AttendanceUnpaidLeave,
		AttendanceAbsent, AttendanceRestDay, AttendanceHoliday:
		return true
	}
	return false
}

type AttendanceStatus string

const (
	StatusOnTime         AttendanceStatus = "on_time"
	StatusLate           AttendanceStatus = "late"
	StatusEarlyDeparture AttendanceStatus = "early_departure"
	StatusLateAndEarly   AttendanceStatus = "late_and_early"
)

func (s AttendanceStatus) isLate() bool {
	return s == StatusLate || s == StatusLateAndEarly
}

func (s AttendanceStatus) leftEarly() bool {
	return s == StatusEarlyDeparture || s == StatusLateAndEarly
}

// AttendanceRecord is one day of attendance. Times are absolute instants;
// Date identifies the calendar day (UTC).
type AttendanceRecord struct {
	Date           time.Time        `json:"date"`
	Type           AttendanceType   `json:"type"`
	Status         AttendanceStatus `json:"status,omitempty"`
	ScheduledStart *time.Time       `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time       `json:"scheduled_end,omitempty"`
	ActualStart    *time.Time       `json:"actual_start,omitempty"`
	ActualEnd      *time.Time       `json:"actual_end,omitempty"`
	BreakMinutes   int              `json:"break_minutes,omitempty"`
}

func (r AttendanceRecord) scheduled() bool {
	return r.ScheduledStart != nil && r.ScheduledEnd != nil
}

func (r AttendanceRecord) hasActuals() bool {
	return r.ActualStart != nil && r.ActualEnd != nil
}

// =============================================================================
// PAY ITEMS - allowances and bonuses
// =============================================================================

// PayItem is an allowance or bonus, already validated by the caller.
type PayItem struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

func sumItems(items []PayItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// =============================================================================
// CALCULATION REQUEST / RESULT
// =============================================================================

// CalculationRequest carries everything one calculation needs. Attendance is
// treated as a read-only sequence.
//
// Holidays, when non-nil, is the calendar for this calculation and replaces
// the engine's. The holidays that fall on the period's weekdays are part of
// the input hash either way.
type CalculationRequest struct {
	Profile       EmployeeCompensationProfile
	Period        PayPeriod
	Attendance    []AttendanceRecord
	Allowances    []PayItem
	Bonuses       []PayItem
	EffectiveDate time.Time
	Holidays      []Holiday
}

// DeductionLine is one statutory withholding.
type DeductionLine struct {
	Code   string          `json:"code"`
	Base   decimal.Decimal `json:"base"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Provenance records exactly which inputs and rules produced a result.
type Provenance struct {
	RuleTableID      string    `json:"rule_table_id"`
	RuleTableVersion string    `json:"rule_table_version"`
	InputHash        string    `json:"input_hash"`
	EngineVersion    string    `json:"engine_version"`
	CalculatedAt     time.Time `json:"calculated_at"`
}

// PayrollCalculationResult is the immutable output of one calculation.
//
// Invariant: NetSalary == GrossSalary - TotalDeductions exactly, and every
// monetary field is non-negative. DelayPenalty and AbsenceDeduction are
// already netted into GrossSalary; TotalDeductions is statutory only.
type PayrollCalculationResult struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Period     PayPeriod  `json:"period"`
	Currency   string     `json:"currency"`

	BaseSalary       decimal.Decimal `json:"base_salary"`
	EarnedBaseSalary decimal.Decimal `json:"earned_base_salary"`
	HourlyRate       decimal.Decimal `json:"hourly_rate"`
	DailyRate        decimal.Decimal `json:"daily_rate"`

	OvertimeHours decimal.Decimal  `json:"overtime_hours"`
	OvertimePay   decimal.Decimal  `json:"overtime_pay"`
	OvertimeTiers []TierAllocation `json:"overtime_tiers,omitempty"`

	Allowances decimal.Decimal `json:"allowances"`
	Bonuses    decimal.Decimal `json:"bonuses"`

	DelayPenalty     decimal.Decimal `json:"delay_penalty"`
	AbsenceDeduction decimal.Decimal `json:"absence_deduction"`

	GrossSalary     decimal.Decimal `json:"gross_salary"`
	IncomeTax       DeductionLine   `json:"income_tax"`
	Contributions   []DeductionLine `json:"contributions"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`
	NetSalary       decimal.Decimal `json:"net_salary"`

	Attendance AttendanceSummary `json:"attendance"`
	Provenance Provenance        `json:"provenance"`
}

// Outcome is a successful calculation plus its non-blocking violations.
type Outcome struct {
	Result   PayrollCalculationResult `json:"result"`
	Warnings []ValidationViolation    `json:"warnings,omitempty"`
}
