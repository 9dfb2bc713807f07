/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as decimal strings ("150000.00"), never JSON numbers, so
  no client float parsing can change a value.

TIMES:
  Attendance dates are "YYYY-MM-DD". Clock times are "HH:MM" on that date
  (UTC); an end time earlier than its start falls on the next day.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/ruletable.go: RuleTableJSON type
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Email                string `json:"email,omitempty"`
	CompanyID            string `json:"company_id,omitempty"`
	BaseSalary           string `json:"base_salary"`
	Category             string `json:"category"`
	ScheduledWeeklyHours string `json:"scheduled_weekly_hours"`
	HireDate             string `json:"hire_date"`
	TerminationDate      string `json:"termination_date,omitempty"`
	CreatedAt            string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request body for creating an employee.
type CreateEmployeeRequest struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Email                string `json:"email"`
	CompanyID            string `json:"company_id"`
	BaseSalary           string `json:"base_salary"`
	Category             string `json:"category"`
	ScheduledWeeklyHours string `json:"scheduled_weekly_hours"`
	HireDate             string `json:"hire_date"`
	TerminationDate      string `json:"termination_date,omitempty"`
}

// AttendanceDTO is one day of attendance.
type AttendanceDTO struct {
	Date           string `json:"date"`
	Type           string `json:"type"`
	Status         string `json:"status,omitempty"`
	ScheduledStart string `json:"scheduled_start,omitempty"`
	ScheduledEnd   string `json:"scheduled_end,omitempty"`
	ActualStart    string `json:"actual_start,omitempty"`
	ActualEnd      string `json:"actual_end,omitempty"`
	BreakMinutes   int    `json:"break_minutes,omitempty"`
}

// PayItemDTO is an allowance or bonus.
type PayItemDTO struct {
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

// CalculateRequest is the request body for a single calculation.
type CalculateRequest struct {
	EmployeeID    string       `json:"employee_id"`
	Period        string       `json:"period"`                   // YYYY-MM
	EffectiveDate string       `json:"effective_date,omitempty"` // defaults to the period start
	Allowances    []PayItemDTO `json:"allowances,omitempty"`
	Bonuses       []PayItemDTO `json:"bonuses,omitempty"`
	DryRun        bool         `json:"dry_run,omitempty"` // calculate without saving
}

// CalculationResponse wraps a calculated result.
type CalculationResponse struct {
	ResultID     string                          `json:"result_id,omitempty"`
	SupersededBy string                          `json:"superseded_by,omitempty"`
	CreatedAt    string                          `json:"created_at,omitempty"`
	Result       engine.PayrollCalculationResult `json:"result"`
	Warnings     []engine.ValidationViolation    `json:"warnings,omitempty"`
}

// RunRequest is the request body for a payroll run.
type RunRequest struct {
	Period string `json:"period"`
}

// RunDTO represents a payroll run.
type RunDTO struct {
	ID          string `json:"id"`
	Period      string `json:"period"`
	Status      string `json:"status"`
	Total       int    `json:"total"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// RunResponse is a finished run plus its per-employee outcomes.
type RunResponse struct {
	Run      RunDTO          `json:"run"`
	Outcomes map[string]int  `json:"outcomes"`
	Failures []RunFailureDTO `json:"failures,omitempty"`
}

// RunFailureDTO is one employee the run could not pay.
type RunFailureDTO struct {
	EmployeeID string                       `json:"employee_id"`
	Outcome    string                       `json:"outcome"`
	Error      string                       `json:"error"`
	Violations []engine.ValidationViolation `json:"violations,omitempty"`
}

// RuleTableDTO summarizes a loaded rule table.
type RuleTableDTO struct {
	ID            string `json:"id"`
	Version       string `json:"version"`
	Jurisdiction  string `json:"jurisdiction,omitempty"`
	Currency      string `json:"currency"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to,omitempty"`
}

// HolidayDTO represents a holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id,omitempty"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// AuditDTO is one audit trail entry.
type AuditDTO struct {
	EmployeeID       string                       `json:"employee_id"`
	Period           string                       `json:"period"`
	Outcome          string                       `json:"outcome"`
	RuleTableID      string                       `json:"rule_table_id,omitempty"`
	RuleTableVersion string                       `json:"rule_table_version,omitempty"`
	InputHash        string                       `json:"input_hash,omitempty"`
	Violations       []engine.ValidationViolation `json:"violations,omitempty"`
	Error            string                       `json:"error,omitempty"`
	DurationMS       float64                      `json:"duration_ms"`
	RecordedAt       string                       `json:"recorded_at"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Period      string `json:"period"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error      string                       `json:"error"`
	Code       string                       `json:"code,omitempty"`
	Details    any                          `json:"details,omitempty"`
	Violations []engine.ValidationViolation `json:"violations,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e sqlite.Employee) EmployeeDTO {
	p := e.Profile
	dto := EmployeeDTO{
		ID:                   string(p.EmployeeID),
		Name:                 e.Name,
		Email:                e.Email,
		CompanyID:            p.CompanyID,
		BaseSalary:           p.BaseSalary.String(),
		Category:             string(p.Category),
		ScheduledWeeklyHours: p.ScheduledWeeklyHours.String(),
		HireDate:             p.HireDate.Format(dateLayout),
	}
	if p.TerminationDate != nil {
		dto.TerminationDate = p.TerminationDate.Format(dateLayout)
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// toEmployee converts a create request, collecting every field error.
func (req CreateEmployeeRequest) toEmployee() (sqlite.Employee, []string) {
	var problems []string
	dec := func(field, s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %q is not a decimal", field, s))
		}
		return d
	}
	day := func(field, s string) time.Time {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %q is not YYYY-MM-DD", field, s))
		}
		return t
	}

	if req.ID == "" {
		problems = append(problems, "id is required")
	}
	if req.Name == "" {
		problems = append(problems, "name is required")
	}
	category := engine.ContractCategory(req.Category)
	if category == "" {
		category = engine.ContractPermanent
	}
	hours := req.ScheduledWeeklyHours
	if hours == "" {
		hours = "40"
	}

	emp := sqlite.Employee{
		Name:  req.Name,
		Email: req.Email,
		Profile: engine.EmployeeCompensationProfile{
			EmployeeID:           engine.EmployeeID(req.ID),
			CompanyID:            req.CompanyID,
			BaseSalary:           dec("base_salary", req.BaseSalary),
			Category:             category,
			ScheduledWeeklyHours: dec("scheduled_weekly_hours", hours),
			HireDate:             day("hire_date", req.HireDate),
		},
	}
	if !category.Valid() {
		problems = append(problems, fmt.Sprintf("category: unknown contract category %q", req.Category))
	}
	if req.TerminationDate != "" {
		t := day("termination_date", req.TerminationDate)
		emp.Profile.TerminationDate = &t
	}
	return emp, problems
}

func toAttendanceDTO(r engine.AttendanceRecord) AttendanceDTO {
	clock := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("15:04")
	}
	return AttendanceDTO{
		Date:           r.Date.Format(dateLayout),
		Type:           string(r.Type),
		Status:         string(r.Status),
		ScheduledStart: clock(r.ScheduledStart),
		ScheduledEnd:   clock(r.ScheduledEnd),
		ActualStart:    clock(r.ActualStart),
		ActualEnd:      clock(r.ActualEnd),
		BreakMinutes:   r.BreakMinutes,
	}
}

// toRecord converts one attendance day. Clock times are placed on the
// record's date; an end before its start rolls over to the next day.
func (dto AttendanceDTO) toRecord() (engine.AttendanceRecord, error) {
	date, err := time.Parse(dateLayout, dto.Date)
	if err != nil {
		return engine.AttendanceRecord{}, fmt.Errorf("date %q is not YYYY-MM-DD", dto.Date)
	}
	clock := func(field, s string) (*time.Time, error) {
		if s == "" {
			return nil, nil
		}
		hm, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("%s %q is not HH:MM", field, s)
		}
		t := date.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
		return &t, nil
	}

	rec := engine.AttendanceRecord{
		Date:         date,
		Type:         engine.AttendanceType(dto.Type),
		Status:       engine.AttendanceStatus(dto.Status),
		BreakMinutes: dto.BreakMinutes,
	}
	if rec.ScheduledStart, err = clock("scheduled_start", dto.ScheduledStart); err != nil {
		return rec, err
	}
	if rec.ScheduledEnd, err = clock("scheduled_end", dto.ScheduledEnd); err != nil {
		return rec, err
	}
	if rec.ActualStart, err = clock("actual_start", dto.ActualStart); err != nil {
		return rec, err
	}
	if rec.ActualEnd, err = clock("actual_end", dto.ActualEnd); err != nil {
		return rec, err
	}
	rec.ScheduledEnd = rollOver(rec.ScheduledStart, rec.ScheduledEnd)
	rec.ActualEnd = rollOver(rec.ActualStart, rec.ActualEnd)
	return rec, nil
}

func rollOver(start, end *time.Time) *time.Time {
	if start == nil || end == nil || !end.Before(*start) {
		return end
	}
	next := end.AddDate(0, 0, 1)
	return &next
}

func toPayItems(field string, dtos []PayItemDTO) ([]engine.PayItem, []string) {
	var problems []string
	items := make([]engine.PayItem, 0, len(dtos))
	for i, dto := range dtos {
		amount, err := decimal.NewFromString(dto.Amount)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s[%d]: amount %q is not a decimal", field, i, dto.Amount))
			continue
		}
		items = append(items, engine.PayItem{Code: dto.Code, Amount: amount})
	}
	return items, problems
}

func toCalculationResponse(rec sqlite.ResultRecord) CalculationResponse {
	return CalculationResponse{
		ResultID:     rec.ID,
		SupersededBy: rec.SupersededBy,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
		Result:       rec.Outcome.Result,
		Warnings:     rec.Outcome.Warnings,
	}
}

func toRunDTO(r sqlite.PayrollRun) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Period:    r.Period.String(),
		Status:    r.Status,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Error:     r.Error,
	}
	if r.StartedAt != nil {
		dto.StartedAt = r.StartedAt.Format(time.RFC3339)
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toRuleTableDTO(rt *engine.RuleTableVersion) RuleTableDTO {
	dto := RuleTableDTO{
		ID:            rt.ID,
		Version:       rt.Version,
		Jurisdiction:  rt.Jurisdiction,
		Currency:      rt.Currency,
		EffectiveFrom: rt.EffectiveFrom.Format(dateLayout),
	}
	if rt.EffectiveTo != nil {
		dto.EffectiveTo = rt.EffectiveTo.Format(dateLayout)
	}
	return dto
}

func toHolidayDTO(h engine.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		CompanyID: h.CompanyID,
		Date:      h.Date.Format(dateLayout),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

func toAuditDTO(rec engine.AuditRecord) AuditDTO {
	return AuditDTO{
		EmployeeID:       string(rec.EmployeeID),
		Period:           rec.Period.String(),
		Outcome:          rec.Outcome,
		RuleTableID:      rec.RuleTableID,
		RuleTableVersion: rec.RuleTableVersion,
		InputHash:        rec.InputHash,
		Violations:       rec.Violations,
		Error:            rec.Error,
		DurationMS:       float64(rec.Duration) / float64(time.Millisecond),
		RecordedAt:       rec.RecordedAt.Format(time.RFC3339),
	}
}
