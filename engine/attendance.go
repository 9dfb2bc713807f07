/*
attendance.go - Time and attendance aggregation

PURPOSE:
  Reduces a period's attendance records into the AttendanceSummary the
  later stages read: scheduled/actual/overtime time, delay and
  early-departure minutes, and absence/leave day counts.

PER-DAY RULES:
  present, both actual times  -> actual vs scheduled, overtime, lateness
  present, a time missing     -> unauthorized absence if the day was scheduled
  absent                      -> unauthorized absence if the day was scheduled
  paid_leave                  -> paid leave day, no overtime, no deduction
  unpaid_leave                -> unpaid leave day (authorized)
  rest_day / holiday          -> ignored

All time is tracked in whole minutes so hours never carry repeating
decimals into money math. Days are sorted by date, so the summary does not
depend on input order.
*/
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DailyAttendance is the per-day reduction of one AttendanceRecord.
type DailyAttendance struct {
	Date                  time.Time      `json:"date"`
	Type                  AttendanceType `json:"type"`
	ScheduledMinutes      int            `json:"scheduled_minutes"`
	ActualMinutes         int            `json:"actual_minutes"`
	OvertimeMinutes       int            `json:"overtime_minutes"`
	DelayMinutes          int            `json:"delay_minutes"`
	EarlyDepartureMinutes int            `json:"early_departure_minutes"`
	UnauthorizedAbsence   bool           `json:"unauthorized_absence,omitempty"`
}

// AttendanceSummary is built once per calculation and read-only afterward.
type AttendanceSummary struct {
	ScheduledMinutes        int               `json:"scheduled_minutes"`
	ActualMinutes           int               `json:"actual_minutes"`
	OvertimeMinutes         int               `json:"overtime_minutes"`
	DelayMinutes            int               `json:"delay_minutes"`
	EarlyDepartureMinutes   int               `json:"early_departure_minutes"`
	UnauthorizedAbsenceDays int               `json:"unauthorized_absence_days"`
	UnpaidLeaveDays         int               `json:"unpaid_leave_days"`
	PaidLeaveDays           int               `json:"paid_leave_days"`
	Days                    []DailyAttendance `json:"days,omitempty"`
}

func minutesToHours(m int) decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Div(sixty)
}

func (s AttendanceSummary) ScheduledHours() decimal.Decimal { return minutesToHours(s.ScheduledMinutes) }
func (s AttendanceSummary) ActualHours() decimal.Decimal    { return minutesToHours(s.ActualMinutes) }
func (s AttendanceSummary) OvertimeHours() decimal.Decimal  { return minutesToHours(s.OvertimeMinutes) }

// UnpaidAbsenceDays is every day that reduces pay: unauthorized absence plus
// authorized unpaid leave.
func (s AttendanceSummary) UnpaidAbsenceDays() int {
	return s.UnauthorizedAbsenceDays + s.UnpaidLeaveDays
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// AggregateAttendance reduces records into a summary. Records are assumed
// validated (one per day, inside the period, intervals ordered).
func AggregateAttendance(records []AttendanceRecord) AttendanceSummary {
	sorted := make([]AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return DateOnly(sorted[i].Date).Before(DateOnly(sorted[j].Date))
	})

	var summary AttendanceSummary
	for _, rec := range sorted {
		day := aggregateDay(rec)
		summary.ScheduledMinutes += day.ScheduledMinutes
		summary.ActualMinutes += day.ActualMinutes
		summary.OvertimeMinutes += day.OvertimeMinutes
		summary.DelayMinutes += day.DelayMinutes
		summary.EarlyDepartureMinutes += day.EarlyDepartureMinutes
		if day.UnauthorizedAbsence {
			summary.UnauthorizedAbsenceDays++
		}
		switch rec.Type {
		case AttendancePaidLeave:
			summary.PaidLeaveDays++
		case AttendanceUnpaidLeave:
			summary.UnpaidLeaveDays++
		}
		summary.Days = append(summary.Days, day)
	}
	return summary
}

func aggregateDay(rec AttendanceRecord) DailyAttendance {
	day := DailyAttendance{Date: DateOnly(rec.Date), Type: rec.Type}

	scheduled := 0
	if rec.scheduled() {
		scheduled = netMinutes(*rec.ScheduledStart, *rec.ScheduledEnd, rec.BreakMinutes)
	}

	switch rec.Type {
	case AttendancePresent:
		day.ScheduledMinutes = scheduled
		if !rec.hasActuals() {
			day.UnauthorizedAbsence = rec.scheduled()
			return day
		}
		day.ActualMinutes = netMinutes(*rec.ActualStart, *rec.ActualEnd, rec.BreakMinutes)
		if day.ActualMinutes > scheduled {
			day.OvertimeMinutes = day.ActualMinutes - scheduled
		}
		if rec.scheduled() && rec.Status.isLate() {
			day.DelayMinutes = positiveMinutes(rec.ActualStart.Sub(*rec.ScheduledStart))
		}
		if rec.scheduled() && rec.Status.leftEarly() {
			day.EarlyDepartureMinutes = positiveMinutes(rec.ScheduledEnd.Sub(*rec.ActualEnd))
		}

	case AttendanceAbsent:
		day.ScheduledMinutes = scheduled
		day.UnauthorizedAbsence = rec.scheduled()

	case AttendancePaidLeave, AttendanceUnpaidLeave:
		day.ScheduledMinutes = scheduled
	}
	return day
}

func netMinutes(start, end time.Time, breakMinutes int) int {
	m := int(end.Sub(start)/time.Minute) - breakMinutes
	if m < 0 {
		return 0
	}
	return m
}

func positiveMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// weeklyActualMinutes groups actual minutes by ISO week, in week order.
func weeklyActualMinutes(days []DailyAttendance) []weekTotal {
	var weeks []weekTotal
	index := make(map[[2]int]int)
	for _, d := range days {
		y, w := d.Date.ISOWeek()
		key := [2]int{y, w}
		i, ok := index[key]
		if !ok {
			i = len(weeks)
			index[key] = i
			weeks = append(weeks, weekTotal{Year: y, Week: w})
		}
		weeks[i].Minutes += d.ActualMinutes
	}
	return weeks
}

type weekTotal struct {
	Year, Week int
	Minutes    int
}
