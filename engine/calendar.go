package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOLIDAY CALENDAR - Company-specific public holidays
// =============================================================================

// Holiday is a non-working day that does not count toward pro-rating.
type Holiday struct {
	ID        string
	CompanyID string // empty = applies to every company
	Date      time.Time
	Name      string
	Recurring bool // same month/day every year
}

// HolidayCalendar answers holiday lookups. Implementations must be
// read-only during a calculation.
type HolidayCalendar interface {
	IsHoliday(companyID string, date time.Time) bool
}

// NoHolidays is a calendar with no holidays.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(string, time.Time) bool { return false }

// StaticCalendar is an immutable in-memory holiday list.
type StaticCalendar struct {
	holidays []Holiday
}

func NewStaticCalendar(holidays []Holiday) *StaticCalendar {
	cp := make([]Holiday, len(holidays))
	copy(cp, holidays)
	return &StaticCalendar{holidays: cp}
}

func (c *StaticCalendar) IsHoliday(companyID string, date time.Time) bool {
	date = DateOnly(date)
	for _, h := range c.holidays {
		if h.CompanyID != "" && h.CompanyID != companyID {
			continue
		}
		hd := DateOnly(h.Date)
		if h.Recurring {
			if hd.Month() == date.Month() && hd.Day() == date.Day() {
				return true
			}
			continue
		}
		if hd.Equal(date) {
			return true
		}
	}
	return false
}

// =============================================================================
// WORKING DAYS
// =============================================================================

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkday reports whether date is a weekday that is not a holiday.
func IsWorkday(cal HolidayCalendar, companyID string, date time.Time) bool {
	if isWeekend(date) {
		return false
	}
	if cal != nil && cal.IsHoliday(companyID, date) {
		return false
	}
	return true
}

// WorkingDays counts working days in [from, to] inclusive.
func WorkingDays(cal HolidayCalendar, companyID string, from, to time.Time) int {
	from, to = DateOnly(from), DateOnly(to)
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if IsWorkday(cal, companyID, d) {
			n++
		}
	}
	return n
}

// EmploymentSpan is how many of the period's working days the employee was
// employed for.
type EmploymentSpan struct {
	EmployedDays int `json:"employed_days"`
	PeriodDays   int `json:"period_days"`
}

// Full reports whether the employee was employed for the whole period.
func (e EmploymentSpan) Full() bool {
	return e.EmployedDays == e.PeriodDays
}

// Prorate scales amount by EmployedDays/PeriodDays, multiplying before
// dividing so a full period returns amount unchanged.
func (e EmploymentSpan) Prorate(amount decimal.Decimal) decimal.Decimal {
	if e.Full() {
		return amount
	}
	if e.PeriodDays == 0 || e.EmployedDays == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(e.EmployedDays))).Div(decimal.NewFromInt(int64(e.PeriodDays)))
}

// Employment computes the employee's span within the period from the hire
// and termination dates.
func Employment(cal HolidayCalendar, profile EmployeeCompensationProfile, period PayPeriod) EmploymentSpan {
	total := WorkingDays(cal, profile.CompanyID, period.Start(), period.End())

	from := period.Start()
	if hire := DateOnly(profile.HireDate); hire.After(from) {
		from = hire
	}
	to := period.End()
	if profile.TerminationDate != nil {
		if term := DateOnly(*profile.TerminationDate); term.Before(to) {
			to = term
		}
	}
	if from.After(to) {
		return EmploymentSpan{EmployedDays: 0, PeriodDays: total}
	}
	return EmploymentSpan{EmployedDays: WorkingDays(cal, profile.CompanyID, from, to), PeriodDays: total}
}
