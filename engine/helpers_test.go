package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var fixedNow = time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return engine.MustDecimal(s) }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// at returns a pointer to hh:mm on the given March 2025 day.
func at(day, hh, mm int) *time.Time {
	t := time.Date(2025, time.March, day, hh, mm, 0, 0, time.UTC)
	return &t
}

// testTable is a fixed jurisdiction used by every engine test:
//
//	tiers        0h x1.25, 8h x1.5
//	tax          0 / 10% from 30,000 / 20% from 100,000, after contributions
//	social       5% capped at 120,000
//	health       2% uncapped
//	minimum wage 30,000 (permanent, 40h+)
func testTable() *engine.RuleTableVersion {
	ceiling := d("120000")
	return &engine.RuleTableVersion{
		ID:                        "test-2025",
		Version:                   "1.0.0",
		Jurisdiction:              "TEST",
		Currency:                  "XTS",
		CurrencyScale:             2,
		EffectiveFrom:             date(2025, time.January, 1),
		MinimumWage:               engine.MinimumWage{Monthly: d("30000"), AppliesTo: []engine.ContractCategory{engine.ContractPermanent}},
		FullTimeWeeklyHours:       d("40"),
		WeeksPerMonth:             d("4"),
		MonthlyWorkingDays:        d("22"),
		MaxDailyHours:             d("12"),
		MaxWeeklyHours:            d("48"),
		MaxOvertimeHoursPerPeriod: d("32"),
		OvertimeTiers: []engine.OvertimeTier{
			{FromHour: d("0"), Multiplier: d("1.25")},
			{FromHour: d("8"), Multiplier: d("1.5")},
		},
		TaxBrackets: []engine.TaxBracket{
			{LowerBound: d("0"), Rate: d("0")},
			{LowerBound: d("30000"), Rate: d("0.10")},
			{LowerBound: d("100000"), Rate: d("0.20")},
		},
		TaxAfterContributions: true,
		Contributions: []engine.ContributionScheme{
			{Code: "social", Name: "Social security", Rate: d("0.05"), Ceiling: &ceiling},
			{Code: "health", Name: "Health insurance", Rate: d("0.02")},
		},
		DelayPenaltyMultiplier:       d("1"),
		DelayPenaltyDailyCapFraction: d("0.5"),
		PenalizeEarlyDeparture:       true,
	}
}

func providerFor(tables ...*engine.RuleTableVersion) engine.RuleTableProvider {
	return engine.RuleTableProviderFunc(func(effective time.Time) (*engine.RuleTableVersion, error) {
		var best *engine.RuleTableVersion
		for _, rt := range tables {
			if rt.AppliesOn(effective) && (best == nil || engine.Newer(rt, best)) {
				best = rt
			}
		}
		if best == nil {
			return nil, &engine.RuleTableUnresolvedError{EffectiveDate: effective}
		}
		return best, nil
	})
}

func newTestEngine(rt *engine.RuleTableVersion, cal engine.HolidayCalendar) *engine.Engine {
	e := engine.NewEngine(providerFor(rt), cal)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func permanentProfile(base string) engine.EmployeeCompensationProfile {
	return engine.EmployeeCompensationProfile{
		EmployeeID:           "emp-1",
		BaseSalary:           d(base),
		Category:             engine.ContractPermanent,
		ScheduledWeeklyHours: d("40"),
		HireDate:             date(2020, time.January, 6),
	}
}

func march2025() engine.PayPeriod { return engine.NewPayPeriod(2025, time.March) }

func request(profile engine.EmployeeCompensationProfile, records ...engine.AttendanceRecord) engine.CalculationRequest {
	return engine.CalculationRequest{
		Profile:       profile,
		Period:        march2025(),
		Attendance:    records,
		EffectiveDate: date(2025, time.March, 1),
	}
}

// workday is a scheduled 09:00-18:00 day with a 60 minute break (8h).
func workday(day int, start, end *time.Time, status engine.AttendanceStatus) engine.AttendanceRecord {
	return engine.AttendanceRecord{
		Date:           date(2025, time.March, day),
		Type:           engine.AttendancePresent,
		Status:         status,
		ScheduledStart: at(day, 9, 0),
		ScheduledEnd:   at(day, 18, 0),
		ActualStart:    start,
		ActualEnd:      end,
		BreakMinutes:   60,
	}
}

func scheduledDay(day int, typ engine.AttendanceType) engine.AttendanceRecord {
	return engine.AttendanceRecord{
		Date:           date(2025, time.March, day),
		Type:           typ,
		ScheduledStart: at(day, 9, 0),
		ScheduledEnd:   at(day, 18, 0),
		BreakMinutes:   60,
	}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(d(want)), "want %s, got %s", want, got.String())
}

func rules(vs []engine.ValidationViolation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Rule
	}
	return out
}
