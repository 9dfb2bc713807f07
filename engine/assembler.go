/*
assembler.go - Payroll record assembly

PURPOSE:
  Engine.Calculate is the single entry point of the package. It validates
  the request, resolves the rule table for the effective date, runs every
  stage in order and assembles the immutable PayrollCalculationResult.

PIPELINE:
  1. validate request          -> *InvalidInputError (all problems)
  2. resolve rule table        -> *RuleTableUnresolvedError
  3. pre-checks                -> warnings
  4. aggregate attendance
  5. overtime                  -> pay + cap warning
  6. gross                     -> earned base, penalties, gross
  7. statutory deductions      -> tax + contributions
  8. post-checks               -> blocking => *CalculationError
  9. invariant check           -> *ArithmeticInconsistencyError
  10. provenance               -> input hash + clock

The engine holds no mutable state, so one Engine may serve concurrent
calls.
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// rateDisplayScale is the precision hourly and daily rates are reported at.
// The unrounded rates are used for every calculation.
const rateDisplayScale = 4

// Engine assembles payroll results.
type Engine struct {
	RuleTables RuleTableProvider
	Calendar   HolidayCalendar
	Now        func() time.Time
}

// NewEngine creates an engine. A nil calendar means no holidays. The
// calendar is consulted during calculation, so it must not perform I/O;
// callers with stored holidays load them onto the request instead.
func NewEngine(rules RuleTableProvider, cal HolidayCalendar) *Engine {
	if cal == nil {
		cal = NoHolidays{}
	}
	return &Engine{
		RuleTables: rules,
		Calendar:   cal,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Calculate produces the payroll result for one employee and period.
func (e *Engine) Calculate(ctx context.Context, req CalculationRequest) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if problems := validateRequest(req); len(problems) > 0 {
		return nil, &InvalidInputError{Problems: problems}
	}

	rt, err := e.RuleTables.Resolve(req.EffectiveDate)
	if err != nil {
		var unresolved *RuleTableUnresolvedError
		if errors.As(err, &unresolved) {
			return nil, unresolved
		}
		return nil, fmt.Errorf("resolve rule table: %w", err)
	}
	if rt == nil {
		return nil, &RuleTableUnresolvedError{EffectiveDate: req.EffectiveDate}
	}

	if problems := validateAmounts(req, rt); len(problems) > 0 {
		return nil, &InvalidInputError{Problems: problems}
	}

	violations := PreCheck(req.Profile, rt)

	summary := AggregateAttendance(req.Attendance)
	cal := e.calendarFor(req)
	span := Employment(cal, req.Profile, req.Period)
	hourly := HourlyRate(req.Profile, rt)

	overtime := CalculateOvertime(summary.OvertimeMinutes, hourly, rt)
	violations = append(violations, overtime.Violations...)

	gross := ComputeGross(GrossInput{
		Profile:    req.Profile,
		Employment: span,
		Attendance: summary,
		Overtime:   overtime,
		HourlyRate: hourly,
		Allowances: req.Allowances,
		Bonuses:    req.Bonuses,
	}, rt)

	statutory := CalculateStatutory(gross.Gross, rt)
	net := gross.Gross.Sub(statutory.Total)

	violations = append(violations, PostCheck(ValidationInput{
		Profile:    req.Profile,
		Employment: span,
		Attendance: summary,
		Gross:      gross.Gross,
		Net:        net,
	}, rt)...)

	blockers, warnings := splitViolations(violations)
	if len(blockers) > 0 {
		return nil, &CalculationError{
			EmployeeID: req.Profile.EmployeeID,
			Period:     req.Period,
			Violations: blockers,
		}
	}

	contributions := statutory.Contributions
	if contributions == nil {
		contributions = []DeductionLine{}
	}
	result := PayrollCalculationResult{
		EmployeeID:       req.Profile.EmployeeID,
		Period:           req.Period,
		Currency:         rt.Currency,
		BaseSalary:       req.Profile.BaseSalary,
		EarnedBaseSalary: gross.EarnedBase,
		HourlyRate:       hourly.Round(rateDisplayScale),
		DailyRate:        gross.DailyRate.Round(rateDisplayScale),
		OvertimeHours:    overtime.Hours,
		OvertimePay:      overtime.Pay,
		OvertimeTiers:    overtime.Tiers,
		Allowances:       gross.Allowances,
		Bonuses:          gross.Bonuses,
		DelayPenalty:     gross.DelayPenalty,
		AbsenceDeduction: gross.AbsenceDeduction,
		GrossSalary:      gross.Gross,
		IncomeTax:        statutory.IncomeTax,
		Contributions:    contributions,
		TotalDeductions:  statutory.Total,
		NetSalary:        net,
		Attendance:       summary,
	}

	if err := checkInvariants(&result); err != nil {
		return nil, err
	}

	hash, err := InputHash(req, rt, cal)
	if err != nil {
		return nil, err
	}
	result.Provenance = Provenance{
		RuleTableID:      rt.ID,
		RuleTableVersion: rt.Version,
		InputHash:        hash,
		EngineVersion:    EngineVersion,
		CalculatedAt:     e.now(),
	}

	return &Outcome{Result: result, Warnings: warnings}, nil
}

// calendarFor prefers the holidays carried on the request.
func (e *Engine) calendarFor(req CalculationRequest) HolidayCalendar {
	if req.Holidays != nil {
		return NewStaticCalendar(req.Holidays)
	}
	if e.Calendar == nil {
		return NoHolidays{}
	}
	return e.Calendar
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now()
}

// =============================================================================
// INPUT VALIDATION
// =============================================================================

// validateRequest checks everything that does not need the rule table.
func validateRequest(req CalculationRequest) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	p := req.Profile
	if p.EmployeeID == "" {
		add("employee_id is required")
	}
	if p.BaseSalary.IsNegative() {
		add("base_salary must not be negative")
	}
	if !p.Category.Valid() {
		add("unknown contract category %q", p.Category)
	}
	if !p.ScheduledWeeklyHours.IsPositive() {
		add("scheduled_weekly_hours must be positive")
	}
	if p.HireDate.IsZero() {
		add("hire_date is required")
	}
	if p.TerminationDate != nil && DateOnly(*p.TerminationDate).Before(DateOnly(p.HireDate)) {
		add("termination_date before hire_date")
	}
	if !req.Period.Valid() {
		add("invalid pay period")
	}
	if req.EffectiveDate.IsZero() {
		add("effective_date is required")
	}

	seen := make(map[time.Time]bool)
	for i, rec := range req.Attendance {
		day := DateOnly(rec.Date)
		label := fmt.Sprintf("attendance[%d] %s", i, day.Format("2006-01-02"))
		if rec.Date.IsZero() {
			add("attendance[%d]: date is required", i)
			continue
		}
		if req.Period.Valid() && !req.Period.Contains(rec.Date) {
			add("%s: outside pay period %s", label, req.Period)
		}
		if seen[day] {
			add("%s: duplicate date", label)
		}
		seen[day] = true

		if !rec.Type.Valid() {
			add("%s: unknown attendance type %q", label, rec.Type)
		}
		switch rec.Status {
		case "", StatusOnTime, StatusLate, StatusEarlyDeparture, StatusLateAndEarly:
		default:
			add("%s: unknown attendance status %q", label, rec.Status)
		}
		if rec.BreakMinutes < 0 {
			add("%s: break_minutes must not be negative", label)
		}
		if (rec.ScheduledStart == nil) != (rec.ScheduledEnd == nil) {
			add("%s: scheduled start and end must both be set", label)
		}
		if rec.scheduled() && !rec.ScheduledEnd.After(*rec.ScheduledStart) {
			add("%s: scheduled end not after scheduled start", label)
		}
		if rec.hasActuals() && rec.ActualEnd.Before(*rec.ActualStart) {
			add("%s: actual end before actual start", label)
		}
	}

	for i, it := range req.Allowances {
		if it.Code == "" {
			add("allowances[%d]: code is required", i)
		}
	}
	for i, it := range req.Bonuses {
		if it.Code == "" {
			add("bonuses[%d]: code is required", i)
		}
	}
	return problems
}

// validateAmounts checks monetary inputs against the table's currency.
func validateAmounts(req CalculationRequest, rt *RuleTableVersion) []string {
	var problems []string
	check := func(field string, d decimal.Decimal) {
		if d.IsNegative() {
			problems = append(problems, fmt.Sprintf("%s must not be negative", field))
		}
		if !d.Equal(d.Round(rt.CurrencyScale)) {
			problems = append(problems, fmt.Sprintf("%s has more than %d decimal places", field, rt.CurrencyScale))
		}
	}
	check("base_salary", req.Profile.BaseSalary)
	for i, it := range req.Allowances {
		check(fmt.Sprintf("allowances[%d] %s", i, it.Code), it.Amount)
	}
	for i, it := range req.Bonuses {
		check(fmt.Sprintf("bonuses[%d] %s", i, it.Code), it.Amount)
	}
	return problems
}

// =============================================================================
// INVARIANTS
// =============================================================================

func checkInvariants(r *PayrollCalculationResult) error {
	earnings := r.EarnedBaseSalary.Add(r.OvertimePay).Add(r.Allowances).Add(r.Bonuses)
	if !earnings.Sub(r.AbsenceDeduction).Sub(r.DelayPenalty).Equal(r.GrossSalary) {
		return &ArithmeticInconsistencyError{
			Check:  "gross",
			Detail: fmt.Sprintf("earnings %s - absence %s - delay %s != gross %s", earnings, r.AbsenceDeduction, r.DelayPenalty, r.GrossSalary),
		}
	}

	withheld := r.IncomeTax.Amount
	for _, c := range r.Contributions {
		withheld = withheld.Add(c.Amount)
	}
	if !withheld.Equal(r.TotalDeductions) {
		return &ArithmeticInconsistencyError{
			Check:  "deductions",
			Detail: fmt.Sprintf("tax + contributions %s != total %s", withheld, r.TotalDeductions),
		}
	}

	if !r.GrossSalary.Sub(r.TotalDeductions).Equal(r.NetSalary) {
		return &ArithmeticInconsistencyError{
			Check:  "net",
			Detail: fmt.Sprintf("gross %s - deductions %s != net %s", r.GrossSalary, r.TotalDeductions, r.NetSalary),
		}
	}

	fields := map[string]decimal.Decimal{
		"earned_base_salary": r.EarnedBaseSalary,
		"overtime_pay":       r.OvertimePay,
		"allowances":         r.Allowances,
		"bonuses":            r.Bonuses,
		"delay_penalty":      r.DelayPenalty,
		"absence_deduction":  r.AbsenceDeduction,
		"gross_salary":       r.GrossSalary,
		"income_tax":         r.IncomeTax.Amount,
		"total_deductions":   r.TotalDeductions,
	}
	for name, v := range fields {
		if v.IsNegative() {
			return &ArithmeticInconsistencyError{Check: "non_negative", Detail: fmt.Sprintf("%s is %s", name, v)}
		}
	}
	return nil
}
