package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// BUSINESS RULE VALIDATOR
// =============================================================================

// ValidationInput is the calculated state the post-calculation checks read.
type ValidationInput struct {
	Profile    EmployeeCompensationProfile
	Employment EmploymentSpan
	Attendance AttendanceSummary
	Gross      decimal.Decimal
	Net        decimal.Decimal
}

// PreCheck runs the checks that only need the profile and the rule table.
func PreCheck(profile EmployeeCompensationProfile, rt *RuleTableVersion) []ValidationViolation {
	var out []ValidationViolation
	if profile.ScheduledWeeklyHours.GreaterThan(rt.MaxWeeklyHours) {
		out = append(out, warning(
			RuleScheduledHoursExceed, profile.ScheduledWeeklyHours.String(),
			"scheduled %s hours per week exceed the legal maximum of %s",
			profile.ScheduledWeeklyHours.String(), rt.MaxWeeklyHours.String(),
		))
	}
	return out
}

// PostCheck runs every post-calculation rule and returns all violations,
// blocking and non-blocking, in a stable order.
func PostCheck(in ValidationInput, rt *RuleTableVersion) []ValidationViolation {
	var out []ValidationViolation
	if v, ok := checkMinimumWage(in, rt); ok {
		out = append(out, v)
	}
	out = append(out, checkWeeklyHours(in.Attendance, rt)...)
	out = append(out, checkDailyHours(in.Attendance, rt)...)
	if in.Net.IsNegative() {
		out = append(out, warning(RuleNegativeNet, in.Net.String(),
			"net salary %s is negative", in.Net.StringFixed(rt.CurrencyScale)))
	}
	return out
}

// MinimumWageFloor is the minimum wage earned the way base salary is:
// prorated by employed working days, less unpaidDays at the daily rate
// (monthly / MonthlyWorkingDays). Both parts are rounded like the matching
// gross lines, so a base equal to the minimum wage never falls below it.
func MinimumWageFloor(span EmploymentSpan, unpaidDays int, rt *RuleTableVersion) decimal.Decimal {
	scale := rt.CurrencyScale
	earned := RoundMoney(span.Prorate(rt.MinimumWage.Monthly), scale)
	daily := rt.MinimumWage.Monthly.Div(rt.MonthlyWorkingDays)
	unpaid := RoundMoney(decimal.NewFromInt(int64(unpaidDays)).Mul(daily), scale)
	return maxDecimal(decimal.Zero, earned.Sub(unpaid))
}

// fullTime reports whether the contract is full-time under rt.
func fullTime(profile EmployeeCompensationProfile, rt *RuleTableVersion) bool {
	return !profile.ScheduledWeeklyHours.LessThan(rt.FullTimeWeeklyHours)
}

func checkMinimumWage(in ValidationInput, rt *RuleTableVersion) (ValidationViolation, bool) {
	if !rt.MinimumWage.binds(in.Profile.Category) || !fullTime(in.Profile, rt) {
		return ValidationViolation{}, false
	}
	floor := MinimumWageFloor(in.Employment, in.Attendance.UnpaidAbsenceDays(), rt)
	if !in.Gross.LessThan(floor) {
		return ValidationViolation{}, false
	}
	return blocking(RuleMinimumWage, in.Gross.String(),
		"gross %s is below the minimum wage floor of %s",
		in.Gross.StringFixed(rt.CurrencyScale), floor.StringFixed(rt.CurrencyScale)), true
}

func checkWeeklyHours(summary AttendanceSummary, rt *RuleTableVersion) []ValidationViolation {
	limit := rt.MaxWeeklyHours.Mul(sixty)
	var out []ValidationViolation
	for _, w := range weeklyActualMinutes(summary.Days) {
		if decimal.NewFromInt(int64(w.Minutes)).GreaterThan(limit) {
			hours := minutesToHours(w.Minutes)
			out = append(out, warning(RuleWeeklyHoursExceeded, hours.String(),
				"worked %s hours in ISO week %d-W%02d, legal maximum is %s",
				hours.StringFixed(2), w.Year, w.Week, rt.MaxWeeklyHours.String()))
		}
	}
	return out
}

func checkDailyHours(summary AttendanceSummary, rt *RuleTableVersion) []ValidationViolation {
	limit := rt.MaxDailyHours.Mul(sixty)
	var out []ValidationViolation
	for _, d := range summary.Days {
		if decimal.NewFromInt(int64(d.ActualMinutes)).GreaterThan(limit) {
			hours := minutesToHours(d.ActualMinutes)
			out = append(out, warning(RuleDailyHoursExceeded, hours.String(),
				"worked %s hours on %s, legal maximum is %s",
				hours.StringFixed(2), d.Date.Format("2006-01-02"), rt.MaxDailyHours.String()))
		}
	}
	return out
}
