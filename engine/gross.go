package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// GROSS SALARY COMPUTER
// =============================================================================

// GrossInput is everything the gross stage reads. It is built by the
// assembler from the previous stages' outputs.
type GrossInput struct {
	Profile    EmployeeCompensationProfile
	Employment EmploymentSpan
	Attendance AttendanceSummary
	Overtime   OvertimeResult
	HourlyRate decimal.Decimal
	Allowances []PayItem
	Bonuses    []PayItem
}

// GrossResult holds the gross salary and the two attendance deduction lines
// already netted into it.
type GrossResult struct {
	EarnedBase       decimal.Decimal
	DailyRate        decimal.Decimal
	Allowances       decimal.Decimal
	Bonuses          decimal.Decimal
	DelayPenalty     decimal.Decimal
	AbsenceDeduction decimal.Decimal
	Gross            decimal.Decimal
}

// DailyRate is base salary divided by the legal monthly working days.
func DailyRate(profile EmployeeCompensationProfile, rt *RuleTableVersion) decimal.Decimal {
	return profile.BaseSalary.Div(rt.MonthlyWorkingDays)
}

// ComputeGross combines earnings and applies attendance deductions.
//
// Gross = earned base + overtime + allowances + bonuses - absence - delay,
// floored at zero. When the floor bites, absence is clamped first and delay
// second, so the reported lines always sum to Gross.
func ComputeGross(in GrossInput, rt *RuleTableVersion) GrossResult {
	scale := rt.CurrencyScale
	daily := DailyRate(in.Profile, rt)

	res := GrossResult{
		EarnedBase: RoundMoney(in.Employment.Prorate(in.Profile.BaseSalary), scale),
		DailyRate:  daily,
		Allowances: sumItems(in.Allowances),
		Bonuses:    sumItems(in.Bonuses),
	}

	earnings := res.EarnedBase.Add(in.Overtime.Pay).Add(res.Allowances).Add(res.Bonuses)

	absence := RoundMoney(decimal.NewFromInt(int64(in.Attendance.UnpaidAbsenceDays())).Mul(daily), scale)
	delay := DelayPenalty(in.Attendance, in.HourlyRate, daily, rt)

	res.AbsenceDeduction = minDecimal(absence, earnings)
	res.DelayPenalty = minDecimal(delay, earnings.Sub(res.AbsenceDeduction))
	res.Gross = earnings.Sub(res.AbsenceDeduction).Sub(res.DelayPenalty)
	return res
}

// DelayPenalty converts penalized minutes to an hourly-rate-proportional
// amount, capping each day at DelayPenaltyDailyCapFraction x daily rate.
// A zero cap fraction disables the cap. The total is rounded once.
func DelayPenalty(summary AttendanceSummary, hourlyRate, dailyRate decimal.Decimal, rt *RuleTableVersion) decimal.Decimal {
	dayCap := rt.DelayPenaltyDailyCapFraction.Mul(dailyRate)
	capped := rt.DelayPenaltyDailyCapFraction.IsPositive()

	total := decimal.Zero
	for _, day := range summary.Days {
		minutes := day.DelayMinutes
		if rt.PenalizeEarlyDeparture {
			minutes += day.EarlyDepartureMinutes
		}
		if minutes == 0 {
			continue
		}
		penalty := decimal.NewFromInt(int64(minutes)).
			Mul(hourlyRate).
			Mul(rt.DelayPenaltyMultiplier).
			Div(sixty)
		if capped {
			penalty = minDecimal(penalty, dayCap)
		}
		total = total.Add(penalty)
	}
	return RoundMoney(total, rt.CurrencyScale)
}
