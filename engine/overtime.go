package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// OVERTIME CALCULATOR - Progressive tiered premium
// =============================================================================

// TierAllocation is the share of overtime paid at one tier's multiplier.
type TierAllocation struct {
	FromHour   decimal.Decimal `json:"from_hour"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Hours      decimal.Decimal `json:"hours"`
}

// OvertimeResult is the overtime pay line and its breakdown.
type OvertimeResult struct {
	Hours      decimal.Decimal
	Pay        decimal.Decimal // rounded once
	Tiers      []TierAllocation
	Violations []ValidationViolation
}

// HourlyRate is base salary divided by scheduled monthly hours
// (weekly hours x weeks per month). Unrounded.
func HourlyRate(profile EmployeeCompensationProfile, rt *RuleTableVersion) decimal.Decimal {
	monthlyHours := profile.ScheduledWeeklyHours.Mul(rt.WeeksPerMonth)
	if !monthlyHours.IsPositive() {
		return decimal.Zero
	}
	return profile.BaseSalary.Div(monthlyHours)
}

// CalculateOvertime splits overtime minutes across the tiers in ascending
// order. Minutes inside [tier_i.FromHour, tier_i+1.FromHour) are paid at
// tier_i's multiplier only; a higher multiplier never reaches lower hours.
func CalculateOvertime(overtimeMinutes int, hourlyRate decimal.Decimal, rt *RuleTableVersion) OvertimeResult {
	total := decimal.NewFromInt(int64(overtimeMinutes))
	result := OvertimeResult{Hours: minutesToHours(overtimeMinutes), Pay: decimal.Zero}

	unrounded := decimal.Zero
	for i, tier := range rt.OvertimeTiers {
		start := tier.FromHour.Mul(sixty)
		if !total.GreaterThan(start) {
			break
		}
		end := total
		if i+1 < len(rt.OvertimeTiers) {
			end = minDecimal(total, rt.OvertimeTiers[i+1].FromHour.Mul(sixty))
		}
		minutes := end.Sub(start)
		if !minutes.IsPositive() {
			continue
		}
		result.Tiers = append(result.Tiers, TierAllocation{
			FromHour:   tier.FromHour,
			Multiplier: tier.Multiplier,
			Hours:      minutes.Div(sixty),
		})
		unrounded = unrounded.Add(minutes.Mul(hourlyRate).Mul(tier.Multiplier))
	}
	result.Pay = RoundMoney(unrounded.Div(sixty), rt.CurrencyScale)

	if rt.MaxOvertimeHoursPerPeriod.IsPositive() && result.Hours.GreaterThan(rt.MaxOvertimeHoursPerPeriod) {
		result.Violations = append(result.Violations, warning(
			RuleOvertimeCapExceeded, result.Hours.String(),
			"overtime of %s hours exceeds the legal cap of %s hours per period",
			result.Hours.StringFixed(2), rt.MaxOvertimeHoursPerPeriod.String(),
		))
	}
	return result
}
