package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// GOLDEN SCENARIO
// =============================================================================

func TestCalculate_Golden_OvertimeAndStatutory(t *testing.T) {
	// GIVEN: 150,000 base, 40h x 4 weeks = 160h, one day with 3h overtime
	// WHEN: Calculating March 2025
	// THEN: OT = 3 x 937.5 x 1.25 = 3,515.63, gross = 153,515.63
	//       social  = 120,000 x 5%           = 6,000.00
	//       health  = 153,515.63 x 2%        = 3,070.31
	//       tax     = 7,000 + 44,445.32 x 20% = 15,889.06
	//       net     = 153,515.63 - 24,959.37 = 128,556.26

	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		workday(3, at(3, 9, 0), at(3, 21, 0), engine.StatusOnTime),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	r := out.Result

	assertMoney(t, "937.5", r.HourlyRate)
	assertMoney(t, "3", r.OvertimeHours)
	assertMoney(t, "3515.63", r.OvertimePay)
	assertMoney(t, "150000", r.EarnedBaseSalary)
	assertMoney(t, "153515.63", r.GrossSalary)

	require.Len(t, r.Contributions, 2)
	assert.Equal(t, "social", r.Contributions[0].Code)
	assertMoney(t, "120000", r.Contributions[0].Base)
	assertMoney(t, "6000", r.Contributions[0].Amount)
	assertMoney(t, "3070.31", r.Contributions[1].Amount)

	assertMoney(t, "144445.32", r.IncomeTax.Base)
	assertMoney(t, "15889.06", r.IncomeTax.Amount)
	assertMoney(t, "0.2", r.IncomeTax.Rate)
	assertMoney(t, "24959.37", r.TotalDeductions)
	assertMoney(t, "128556.26", r.NetSalary)

	assert.Empty(t, out.Warnings)
	assert.Equal(t, "test-2025", r.Provenance.RuleTableID)
	assert.Equal(t, "1.0.0", r.Provenance.RuleTableVersion)
	assert.Equal(t, engine.EngineVersion, r.Provenance.EngineVersion)
	assert.Equal(t, fixedNow, r.Provenance.CalculatedAt)
	assert.Len(t, r.Provenance.InputHash, 64)
}

func TestCalculate_NetIdentity(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("85000"),
		workday(3, at(3, 9, 20), at(3, 19, 0), engine.StatusLate),
		scheduledDay(4, engine.AttendanceAbsent),
		scheduledDay(5, engine.AttendancePaidLeave),
	)
	req.Allowances = []engine.PayItem{{Code: "transport", Amount: d("2500")}}
	req.Bonuses = []engine.PayItem{{Code: "quarterly", Amount: d("10000.50")}}

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	r := out.Result

	assert.True(t, r.NetSalary.Equal(r.GrossSalary.Sub(r.TotalDeductions)))
	sum := r.IncomeTax.Amount
	for _, c := range r.Contributions {
		sum = sum.Add(c.Amount)
	}
	assert.True(t, sum.Equal(r.TotalDeductions))
}

// =============================================================================
// ATTENDANCE-DRIVEN DEDUCTIONS
// =============================================================================

func TestCalculate_DelayPenalty_CappedAtDailyFraction(t *testing.T) {
	// GIVEN: 15 minutes late with a punitive x100 multiplier
	//        naive penalty = 15/60 x 937.5 x 100 = 23,437.50
	//        cap = 0.5 x 150,000/22 = 3,409.09
	// WHEN: Calculating
	// THEN: The penalty stops at the cap

	rt := testTable()
	rt.DelayPenaltyMultiplier = d("100")
	eng := newTestEngine(rt, nil)
	req := request(permanentProfile("150000"),
		workday(4, at(4, 9, 15), at(4, 18, 0), engine.StatusLate),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 15, out.Result.Attendance.DelayMinutes)
	assertMoney(t, "3409.09", out.Result.DelayPenalty)
	assertMoney(t, "146590.91", out.Result.GrossSalary)
}

func TestCalculate_DelayPenalty_ProportionalUnderCap(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		workday(4, at(4, 9, 15), at(4, 18, 0), engine.StatusLate),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	// 15/60 x 937.5 = 234.375
	assertMoney(t, "234.38", out.Result.DelayPenalty)
}

func TestCalculate_EarlyDeparture_PenalizedWhenConfigured(t *testing.T) {
	rt := testTable()
	eng := newTestEngine(rt, nil)
	req := request(permanentProfile("150000"),
		workday(4, at(4, 9, 0), at(4, 17, 30), engine.StatusEarlyDeparture),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 30, out.Result.Attendance.EarlyDepartureMinutes)
	assertMoney(t, "468.75", out.Result.DelayPenalty)

	rt.PenalizeEarlyDeparture = false
	out, err = newTestEngine(rt, nil).Calculate(context.Background(), req)
	require.NoError(t, err)
	assertMoney(t, "0", out.Result.DelayPenalty)
}

func TestCalculate_UnauthorizedAbsence_DeductsDailyRate(t *testing.T) {
	// GIVEN: One absent day and one present day with no clock-out
	// THEN: Two days x 150,000/22 = 13,636.36

	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		scheduledDay(4, engine.AttendanceAbsent),
		workday(5, at(5, 9, 0), nil, engine.StatusOnTime),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.Attendance.UnauthorizedAbsenceDays)
	assertMoney(t, "13636.36", out.Result.AbsenceDeduction)
	assertMoney(t, "136363.64", out.Result.GrossSalary)
}

func TestCalculate_PaidLeave_NoDeductionNoOvertime(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		scheduledDay(4, engine.AttendancePaidLeave),
		scheduledDay(5, engine.AttendancePaidLeave),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.Attendance.PaidLeaveDays)
	assertMoney(t, "0", out.Result.AbsenceDeduction)
	assertMoney(t, "0", out.Result.OvertimePay)
	assertMoney(t, "150000", out.Result.GrossSalary)
}

func TestCalculate_UnpaidLeave_DeductedSeparatelyTracked(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"), scheduledDay(4, engine.AttendanceUnpaidLeave))

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, out.Result.Attendance.UnpaidLeaveDays)
	assert.Equal(t, 0, out.Result.Attendance.UnauthorizedAbsenceDays)
	assertMoney(t, "6818.18", out.Result.AbsenceDeduction)
}

func TestCalculate_GrossFlooredAtZero(t *testing.T) {
	// GIVEN: More unpaid days than the salary covers
	// THEN: Gross is zero and the printed lines still sum to it

	rt := testTable()
	rt.MonthlyWorkingDays = d("2")
	eng := newTestEngine(rt, nil)
	profile := permanentProfile("1000")
	profile.Category = engine.ContractProbation
	req := request(profile,
		scheduledDay(3, engine.AttendanceAbsent),
		scheduledDay(4, engine.AttendanceAbsent),
		scheduledDay(5, engine.AttendanceAbsent),
		workday(6, at(6, 9, 30), at(6, 18, 0), engine.StatusLate),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	r := out.Result

	assertMoney(t, "0", r.GrossSalary)
	assertMoney(t, "1000", r.AbsenceDeduction)
	assertMoney(t, "0", r.DelayPenalty)
	assertMoney(t, "0", r.NetSalary)
}

// =============================================================================
// PRO-RATING
// =============================================================================

func TestCalculate_NewHire_ZeroAttendance_ProRated(t *testing.T) {
	// GIVEN: Hired Monday 17 March 2025, no attendance records
	//        working days employed: 17-21, 24-28, 31 = 11 of 21
	// THEN: Earned base = 150,000 x 11/21 = 78,571.43

	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("150000")
	profile.HireDate = date(2025, time.March, 17)

	out, err := eng.Calculate(context.Background(), request(profile))
	require.NoError(t, err)

	assertMoney(t, "78571.43", out.Result.EarnedBaseSalary)
	assertMoney(t, "78571.43", out.Result.GrossSalary)
	assert.True(t, out.Result.GrossSalary.LessThan(profile.BaseSalary))
}

func TestCalculate_Termination_ProRated(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("150000")
	term := date(2025, time.March, 14)
	profile.TerminationDate = &term

	out, err := eng.Calculate(context.Background(), request(profile))
	require.NoError(t, err)

	// 10 of 21 working days
	assertMoney(t, "71428.57", out.Result.EarnedBaseSalary)
}

func TestCalculate_Holidays_ExcludedFromProRating(t *testing.T) {
	// GIVEN: 31 March is a holiday, so March has 20 working days
	// THEN: Hire on the 17th earns 10/20 of base

	cal := engine.NewStaticCalendar([]engine.Holiday{
		{ID: "h1", Date: date(2025, time.March, 31), Name: "Spring holiday"},
	})
	eng := newTestEngine(testTable(), cal)
	profile := permanentProfile("150000")
	profile.HireDate = date(2025, time.March, 17)

	out, err := eng.Calculate(context.Background(), request(profile))
	require.NoError(t, err)
	assertMoney(t, "75000", out.Result.EarnedBaseSalary)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCalculate_MinimumWage_Blocking(t *testing.T) {
	eng := newTestEngine(testTable(), nil)

	_, err := eng.Calculate(context.Background(), request(permanentProfile("20000")))

	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrBlockingViolation))
	var calcErr *engine.CalculationError
	require.ErrorAs(t, err, &calcErr)
	require.Len(t, calcErr.Violations, 1)
	assert.Equal(t, engine.RuleMinimumWage, calcErr.Violations[0].Rule)
	assert.Equal(t, engine.SeverityBlocking, calcErr.Violations[0].Severity)
	assert.Equal(t, engine.EmployeeID("emp-1"), calcErr.EmployeeID)
}

func TestCalculate_MinimumWage_NotBindingForPartTimeOrUnboundCategory(t *testing.T) {
	eng := newTestEngine(testTable(), nil)

	partTime := permanentProfile("20000")
	partTime.ScheduledWeeklyHours = d("20")
	_, err := eng.Calculate(context.Background(), request(partTime))
	assert.NoError(t, err)

	probation := permanentProfile("20000")
	probation.Category = engine.ContractProbation
	_, err = eng.Calculate(context.Background(), request(probation))
	assert.NoError(t, err)
}

func TestCalculate_MinimumWage_ProRatedForNewHire(t *testing.T) {
	// 20,000 x 11/21 = 10,476.19 against a floor of 30,000 x 11/21 = 15,714.29
	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("20000")
	profile.HireDate = date(2025, time.March, 17)

	_, err := eng.Calculate(context.Background(), request(profile))
	assert.ErrorIs(t, err, engine.ErrBlockingViolation)

	profile.BaseSalary = d("30000")
	_, err = eng.Calculate(context.Background(), request(profile))
	assert.NoError(t, err)
}

func TestCalculate_MinimumWage_UnpaidDayInLongMonth(t *testing.T) {
	// GIVEN: July 2025 has 23 working days, base equals the minimum wage
	// WHEN: One unpaid leave day is deducted at base / 22
	// THEN: The floor drops by the same daily amount, so nothing blocks

	july := engine.NewPayPeriod(2025, time.July)
	leave := engine.AttendanceRecord{
		Date: date(2025, time.July, 7),
		Type: engine.AttendanceUnpaidLeave,
	}
	req := func(base string) engine.CalculationRequest {
		return engine.CalculationRequest{
			Profile:       permanentProfile(base),
			Period:        july,
			Attendance:    []engine.AttendanceRecord{leave},
			EffectiveDate: date(2025, time.July, 1),
		}
	}
	eng := newTestEngine(testTable(), nil)

	out, err := eng.Calculate(context.Background(), req("30000"))
	require.NoError(t, err)
	assertMoney(t, "28636.36", out.Result.GrossSalary)

	_, err = eng.Calculate(context.Background(), req("29000"))
	assert.ErrorIs(t, err, engine.ErrBlockingViolation)
}

func TestMinimumWageFloor_MatchesGrossRounding(t *testing.T) {
	rt := testTable()

	full := engine.EmploymentSpan{EmployedDays: 23, PeriodDays: 23}
	assertMoney(t, "30000", engine.MinimumWageFloor(full, 0, rt))
	assertMoney(t, "28636.36", engine.MinimumWageFloor(full, 1, rt))

	// 30,000 x 11/21 = 15,714.29
	partial := engine.EmploymentSpan{EmployedDays: 11, PeriodDays: 21}
	assertMoney(t, "15714.29", engine.MinimumWageFloor(partial, 0, rt))

	assertMoney(t, "0", engine.MinimumWageFloor(full, 40, rt))
}

func TestCalculate_OvertimeCap_WarningStillPaid(t *testing.T) {
	rt := testTable()
	rt.MaxOvertimeHoursPerPeriod = d("2")
	eng := newTestEngine(rt, nil)
	req := request(permanentProfile("150000"),
		workday(3, at(3, 9, 0), at(3, 21, 0), engine.StatusOnTime),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Contains(t, rules(out.Warnings), engine.RuleOvertimeCapExceeded)
	assertMoney(t, "3515.63", out.Result.OvertimePay)
}

func TestCalculate_HourLimits_Warnings(t *testing.T) {
	// GIVEN: 13h on one day, 10h on four more days of the same ISO week
	// THEN: A daily warning for the 13h day and a weekly warning (53h > 48h)

	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		workday(3, at(3, 8, 0), at(3, 22, 0), engine.StatusOnTime),
		workday(4, at(4, 8, 0), at(4, 19, 0), engine.StatusOnTime),
		workday(5, at(5, 8, 0), at(5, 19, 0), engine.StatusOnTime),
		workday(6, at(6, 8, 0), at(6, 19, 0), engine.StatusOnTime),
		workday(7, at(7, 8, 0), at(7, 19, 0), engine.StatusOnTime),
	)

	out, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	got := rules(out.Warnings)
	assert.Contains(t, got, engine.RuleDailyHoursExceeded)
	assert.Contains(t, got, engine.RuleWeeklyHoursExceeded)
	for _, w := range out.Warnings {
		assert.False(t, w.Blocking())
	}
}

func TestCalculate_ScheduledHoursAboveLegalMax_Warning(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("150000")
	profile.ScheduledWeeklyHours = d("50")

	out, err := eng.Calculate(context.Background(), request(profile))
	require.NoError(t, err)
	assert.Equal(t, []string{engine.RuleScheduledHoursExceed}, rules(out.Warnings))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestCalculate_InvalidInput_ReportsEveryProblem(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("-1")
	profile.Category = "contractor"
	req := request(profile,
		scheduledDay(4, engine.AttendanceAbsent),
		scheduledDay(4, engine.AttendanceAbsent),
		engine.AttendanceRecord{Date: date(2025, time.April, 1), Type: engine.AttendanceAbsent},
	)

	_, err := eng.Calculate(context.Background(), req)

	var inputErr *engine.InvalidInputError
	require.ErrorAs(t, err, &inputErr)
	assert.GreaterOrEqual(t, len(inputErr.Problems), 4)
	assert.True(t, engine.IsClientError(err))
}

func TestCalculate_InvalidInput_TooManyDecimals(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000.125"))

	_, err := eng.Calculate(context.Background(), req)
	assert.ErrorIs(t, err, engine.ErrInvalidInput)
}

func TestCalculate_NoRuleTable_Unresolved(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"))
	req.Period = engine.NewPayPeriod(2024, time.June)
	req.EffectiveDate = date(2024, time.June, 1)

	_, err := eng.Calculate(context.Background(), req)

	var unresolved *engine.RuleTableUnresolvedError
	require.ErrorAs(t, err, &unresolved)
	assert.True(t, engine.IsNotFound(err))
	assert.Equal(t, date(2024, time.June, 1), unresolved.EffectiveDate)
}

func TestCalculate_CancelledContext(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Calculate(ctx, request(permanentProfile("150000")))
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// DETERMINISM
// =============================================================================

func TestCalculate_Idempotent(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	req := request(permanentProfile("150000"),
		workday(3, at(3, 9, 0), at(3, 21, 0), engine.StatusOnTime),
		workday(4, at(4, 9, 15), at(4, 18, 0), engine.StatusLate),
	)

	first, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	second, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Result.Provenance, second.Result.Provenance)
	assert.True(t, first.Result.NetSalary.Equal(second.Result.NetSalary))
	assert.True(t, first.Result.GrossSalary.Equal(second.Result.GrossSalary))
}

func TestCalculate_AttendanceOrder_DoesNotChangeResult(t *testing.T) {
	eng := newTestEngine(testTable(), nil)
	a := workday(3, at(3, 9, 0), at(3, 21, 0), engine.StatusOnTime)
	b := workday(4, at(4, 9, 15), at(4, 18, 0), engine.StatusLate)
	c := scheduledDay(5, engine.AttendanceAbsent)

	first, err := eng.Calculate(context.Background(), request(permanentProfile("150000"), a, b, c))
	require.NoError(t, err)
	second, err := eng.Calculate(context.Background(), request(permanentProfile("150000"), c, a, b))
	require.NoError(t, err)

	assert.Equal(t, first.Result.Provenance.InputHash, second.Result.Provenance.InputHash)
	assert.Equal(t, first.Result.Attendance, second.Result.Attendance)
	assert.True(t, first.Result.NetSalary.Equal(second.Result.NetSalary))
}

func TestCalculate_InputHash_ChangesWithRuleTableVersion(t *testing.T) {
	req := request(permanentProfile("150000"))
	v1 := testTable()
	v2 := testTable()
	v2.Version = "1.0.1"

	h1, err := engine.InputHash(req, v1, nil)
	require.NoError(t, err)
	h2, err := engine.InputHash(req, v2, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestCalculate_InputHash_ChangesWithHolidayInsideEmployment(t *testing.T) {
	// GIVEN: Hired Wednesday 5 March 2025, employed 19 of 21 working days
	// WHEN: A holiday on Monday 10 March is added to the request
	// THEN: Pay becomes 18 of 20 days and the hash records the difference

	eng := newTestEngine(testTable(), nil)
	profile := permanentProfile("150000")
	profile.HireDate = date(2025, time.March, 5)

	plain := request(profile)
	withHoliday := request(profile)
	withHoliday.Holidays = []engine.Holiday{{ID: "h1", Date: date(2025, time.March, 10), Name: "Founders day"}}

	a, err := eng.Calculate(context.Background(), plain)
	require.NoError(t, err)
	b, err := eng.Calculate(context.Background(), withHoliday)
	require.NoError(t, err)

	assertMoney(t, "135714.29", a.Result.GrossSalary)
	assertMoney(t, "135000", b.Result.GrossSalary)
	assert.NotEqual(t, a.Result.Provenance.InputHash, b.Result.Provenance.InputHash)
}

func TestCalculate_RequestHolidays_ReplaceEngineCalendar(t *testing.T) {
	// GIVEN: The engine calendar marks 31 March, the request carries no holidays
	// THEN: An empty non-nil list overrides the engine calendar

	cal := engine.NewStaticCalendar([]engine.Holiday{{ID: "h1", Date: date(2025, time.March, 31)}})
	eng := newTestEngine(testTable(), cal)
	profile := permanentProfile("150000")
	profile.HireDate = date(2025, time.March, 17)

	fromEngine, err := eng.Calculate(context.Background(), request(profile))
	require.NoError(t, err)
	assertMoney(t, "75000", fromEngine.Result.EarnedBaseSalary)

	req := request(profile)
	req.Holidays = []engine.Holiday{}
	fromRequest, err := eng.Calculate(context.Background(), req)
	require.NoError(t, err)
	assertMoney(t, "78571.43", fromRequest.Result.EarnedBaseSalary)
	assert.NotEqual(t, fromEngine.Result.Provenance.InputHash, fromRequest.Result.Provenance.InputHash)
}

func TestInputHash_IgnoresWeekendHolidays(t *testing.T) {
	req := request(permanentProfile("150000"))
	weekend := engine.NewStaticCalendar([]engine.Holiday{{ID: "sat", Date: date(2025, time.March, 8)}})

	h1, err := engine.InputHash(req, testTable(), nil)
	require.NoError(t, err)
	h2, err := engine.InputHash(req, testTable(), weekend)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestInputHash_SameInstantsInAnotherZone(t *testing.T) {
	// GIVEN: The same attendance and termination instants written in UTC+7
	// THEN: The hash is unchanged

	zone := time.FixedZone("UTC+7", 7*3600)
	in := func(t *time.Time) *time.Time {
		z := t.In(zone)
		return &z
	}

	profile := permanentProfile("150000")
	term := date(2025, time.March, 28)
	profile.TerminationDate = &term
	rec := workday(3, at(3, 9, 5), at(3, 18, 0), engine.StatusLate)
	utcReq := request(profile, rec)

	zonedProfile := profile
	zonedProfile.HireDate = profile.HireDate.In(zone)
	zonedProfile.TerminationDate = in(profile.TerminationDate)
	zonedRec := rec
	zonedRec.Date = rec.Date.In(zone)
	zonedRec.ScheduledStart = in(rec.ScheduledStart)
	zonedRec.ScheduledEnd = in(rec.ScheduledEnd)
	zonedRec.ActualStart = in(rec.ActualStart)
	zonedRec.ActualEnd = in(rec.ActualEnd)
	zonedReq := request(zonedProfile, zonedRec)

	h1, err := engine.InputHash(utcReq, testTable(), nil)
	require.NoError(t, err)
	h2, err := engine.InputHash(zonedReq, testTable(), nil)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

// =============================================================================
// REQUEST SOURCES
// =============================================================================

type fakeSources struct {
	profile     engine.EmployeeCompensationProfile
	holidays    []engine.Holiday
	holidaysErr error
}

func (f fakeSources) Profile(context.Context, engine.EmployeeID) (engine.EmployeeCompensationProfile, error) {
	return f.profile, nil
}

func (f fakeSources) AttendanceRecords(context.Context, engine.EmployeeID, engine.PayPeriod) ([]engine.AttendanceRecord, error) {
	return nil, nil
}

func (f fakeSources) ListHolidays(context.Context, string) ([]engine.Holiday, error) {
	return f.holidays, f.holidaysErr
}

func TestBuildRequest_HolidayLoadErrorSurfaces(t *testing.T) {
	src := fakeSources{profile: permanentProfile("150000"), holidaysErr: errors.New("holidays table locked")}

	_, err := engine.BuildRequest(context.Background(), src, src, src, "emp-1", march2025())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "holidays table locked")
}

func TestBuildRequest_EmptyHolidaySourceStillPinsCalendar(t *testing.T) {
	src := fakeSources{profile: permanentProfile("150000")}

	req, err := engine.BuildRequest(context.Background(), src, src, src, "emp-1", march2025())

	require.NoError(t, err)
	assert.NotNil(t, req.Holidays)
	assert.Empty(t, req.Holidays)
}
