package jurisdiction

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// CONTRACT PRESETS
// =============================================================================

// FullTimeContract returns a permanent 40h/week profile.
func FullTimeContract(id engine.EmployeeID, baseSalary decimal.Decimal, hired time.Time) engine.EmployeeCompensationProfile {
	return engine.EmployeeCompensationProfile{
		EmployeeID:           id,
		BaseSalary:           baseSalary,
		Category:             engine.ContractPermanent,
		ScheduledWeeklyHours: decimal.NewFromInt(40),
		HireDate:             hired,
	}
}

// ProbationContract returns a 40h/week probation profile. The minimum wage
// floor does not bind it in the demo tables.
func ProbationContract(id engine.EmployeeID, baseSalary decimal.Decimal, hired time.Time) engine.EmployeeCompensationProfile {
	p := FullTimeContract(id, baseSalary, hired)
	p.Category = engine.ContractProbation
	return p
}

// PartTimeContract returns a part-time profile with the given weekly hours.
func PartTimeContract(id engine.EmployeeID, baseSalary decimal.Decimal, weeklyHours int64, hired time.Time) engine.EmployeeCompensationProfile {
	p := FullTimeContract(id, baseSalary, hired)
	p.Category = engine.ContractPartTime
	p.ScheduledWeeklyHours = decimal.NewFromInt(weeklyHours)
	return p
}

// FixedTermContract returns a 40h/week profile ending on end.
func FixedTermContract(id engine.EmployeeID, baseSalary decimal.Decimal, hired, end time.Time) engine.EmployeeCompensationProfile {
	p := FullTimeContract(id, baseSalary, hired)
	p.Category = engine.ContractFixedTerm
	p.TerminationDate = &end
	return p
}

// =============================================================================
// SHIFT PATTERNS
// =============================================================================

// Shift is a scheduled start and end in minutes after midnight UTC.
type Shift struct {
	StartMinute  int
	EndMinute    int
	BreakMinutes int
}

// OfficeShift is 09:00-18:00 with a one hour break.
var OfficeShift = Shift{StartMinute: 9 * 60, EndMinute: 18 * 60, BreakMinutes: 60}

// Scheduled returns an attendance record for date with the shift's
// schedule and no actual times. Set Type, Status and actuals on the result.
func (s Shift) Scheduled(date time.Time, typ engine.AttendanceType) engine.AttendanceRecord {
	day := engine.DateOnly(date)
	start := day.Add(time.Duration(s.StartMinute) * time.Minute)
	end := day.Add(time.Duration(s.EndMinute) * time.Minute)
	return engine.AttendanceRecord{
		Date:           day,
		Type:           typ,
		ScheduledStart: &start,
		ScheduledEnd:   &end,
		BreakMinutes:   s.BreakMinutes,
	}
}

// Worked returns a present record with actual times offset from the
// schedule: lateBy minutes after the start and stayedBy minutes after the
// end (negative for early departure). Status is derived from the offsets.
func (s Shift) Worked(date time.Time, lateBy, stayedBy int) engine.AttendanceRecord {
	rec := s.Scheduled(date, engine.AttendancePresent)
	actualStart := rec.ScheduledStart.Add(time.Duration(lateBy) * time.Minute)
	actualEnd := rec.ScheduledEnd.Add(time.Duration(stayedBy) * time.Minute)
	rec.ActualStart = &actualStart
	rec.ActualEnd = &actualEnd

	late, early := lateBy > 0, stayedBy < 0
	switch {
	case late && early:
		rec.Status = engine.StatusLateAndEarly
	case late:
		rec.Status = engine.StatusLate
	case early:
		rec.Status = engine.StatusEarlyDeparture
	default:
		rec.Status = engine.StatusOnTime
	}
	return rec
}

// WorkMonth returns an on-time record for every working day of period.
func (s Shift) WorkMonth(cal engine.HolidayCalendar, companyID string, period engine.PayPeriod) []engine.AttendanceRecord {
	var out []engine.AttendanceRecord
	for _, day := range period.Days() {
		if engine.IsWorkday(cal, companyID, day) {
			out = append(out, s.Worked(day, 0, 0))
		}
	}
	return out
}
