package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func employee(id string) sqlite.Employee {
	return sqlite.Employee{
		Name:  "Alice " + id,
		Email: id + "@example.com",
		Profile: engine.EmployeeCompensationProfile{
			EmployeeID:           engine.EmployeeID(id),
			CompanyID:            "acme",
			BaseSalary:           decimal.RequireFromString("150000.00"),
			Category:             engine.ContractPermanent,
			ScheduledWeeklyHours: decimal.NewFromInt(40),
			HireDate:             date(2020, time.January, 6),
		},
	}
}

func TestEmployees_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	// GIVEN: an employee with a termination date
	emp := employee("e1")
	emp.Profile.TerminationDate = ptr(date(2025, time.March, 14))
	require.NoError(t, store.SaveEmployee(ctx, emp))

	// WHEN: loaded as a profile
	profile, err := store.Profile(ctx, "e1")
	require.NoError(t, err)

	// THEN: every field survives
	assert.True(t, profile.BaseSalary.Equal(decimal.RequireFromString("150000")))
	assert.True(t, profile.ScheduledWeeklyHours.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, engine.ContractPermanent, profile.Category)
	assert.Equal(t, "acme", profile.CompanyID)
	assert.True(t, profile.HireDate.Equal(date(2020, time.January, 6)))
	require.NotNil(t, profile.TerminationDate)
	assert.True(t, profile.TerminationDate.Equal(date(2025, time.March, 14)))

	// AND: updates overwrite
	emp.Profile.BaseSalary = decimal.NewFromInt(160000)
	emp.Profile.TerminationDate = nil
	require.NoError(t, store.SaveEmployee(ctx, emp))
	profile, err = store.Profile(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, profile.BaseSalary.Equal(decimal.NewFromInt(160000)))
	assert.Nil(t, profile.TerminationDate)

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, employees, 1)
}

func TestEmployees_MissingProfile(t *testing.T) {
	store := newStore(t)

	emp, err := store.GetEmployee(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, emp)

	_, err = store.Profile(context.Background(), "nobody")
	assert.ErrorIs(t, err, sqlite.ErrNotFound)
}

func TestAttendance_UpsertAndPeriodFilter(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SaveEmployee(ctx, employee("e1")))

	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveAttendance(ctx, "e1",
		engine.AttendanceRecord{Date: date(2025, time.March, 4), Type: engine.AttendanceAbsent},
		engine.AttendanceRecord{
			Date: date(2025, time.March, 3), Type: engine.AttendancePresent, Status: engine.StatusOnTime,
			ScheduledStart: ptr(start), ScheduledEnd: ptr(end),
			ActualStart: ptr(start), ActualEnd: ptr(end.Add(time.Hour)),
			BreakMinutes: 60,
		},
		engine.AttendanceRecord{Date: date(2025, time.April, 1), Type: engine.AttendancePaidLeave},
	))

	// a second save for the same day replaces the first
	require.NoError(t, store.SaveAttendance(ctx, "e1",
		engine.AttendanceRecord{Date: date(2025, time.March, 4), Type: engine.AttendancePaidLeave},
	))

	records, err := store.AttendanceRecords(ctx, "e1", engine.NewPayPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.True(t, records[0].Date.Equal(date(2025, time.March, 3)))
	require.NotNil(t, records[0].ActualEnd)
	assert.True(t, records[0].ActualEnd.Equal(end.Add(time.Hour)))
	assert.Equal(t, 60, records[0].BreakMinutes)
	assert.Equal(t, engine.AttendancePaidLeave, records[1].Type)
	assert.Nil(t, records[1].ScheduledStart)

	require.NoError(t, store.DeleteAttendance(ctx, "e1", date(2025, time.March, 4)))
	records, err = store.AttendanceRecords(ctx, "e1", engine.NewPayPeriod(2025, time.March))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHolidays_CompanyGlobalAndRecurring(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	require.NoError(t, store.SaveHoliday(ctx, engine.Holiday{ID: "h1", CompanyID: "acme", Date: date(2025, time.March, 31), Name: "Founders Day"}))
	require.NoError(t, store.SaveHoliday(ctx, engine.Holiday{ID: "h2", Date: date(2020, time.May, 1), Name: "Labour Day", Recurring: true}))

	calendar := func(companyID string) engine.HolidayCalendar {
		holidays, err := store.ListHolidays(ctx, companyID)
		require.NoError(t, err)
		return engine.NewStaticCalendar(holidays)
	}

	acme := calendar("acme")
	assert.True(t, acme.IsHoliday("acme", date(2025, time.March, 31)))
	assert.False(t, acme.IsHoliday("acme", date(2025, time.May, 2)))
	assert.True(t, acme.IsHoliday("acme", date(2027, time.May, 1)))

	other := calendar("other")
	assert.False(t, other.IsHoliday("other", date(2025, time.March, 31)))
	assert.True(t, other.IsHoliday("other", date(2027, time.May, 1)))

	holidays, err := store.ListHolidays(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, holidays, 2)

	require.NoError(t, store.DeleteHoliday(ctx, "h1"))
	assert.False(t, calendar("acme").IsHoliday("acme", date(2025, time.March, 31)))
}

func TestHolidays_BuildRequestCarriesCompanyCalendar(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	profile := engine.EmployeeCompensationProfile{
		EmployeeID: "e1", CompanyID: "acme", BaseSalary: engine.MustDecimal("100000"),
		Category: engine.ContractPermanent, ScheduledWeeklyHours: engine.MustDecimal("40"),
		HireDate: date(2020, time.January, 6),
	}
	require.NoError(t, store.SaveEmployee(ctx, sqlite.Employee{Name: "E One", Profile: profile}))

	// no holidays yet: the request still carries an empty calendar
	req, err := engine.BuildRequest(ctx, store, store, store, "e1", engine.NewPayPeriod(2025, time.March))
	require.NoError(t, err)
	require.NotNil(t, req.Holidays)
	assert.Empty(t, req.Holidays)

	require.NoError(t, store.SaveHoliday(ctx, engine.Holiday{ID: "h1", CompanyID: "acme", Date: date(2025, time.March, 31), Name: "Founders Day"}))
	require.NoError(t, store.SaveHoliday(ctx, engine.Holiday{ID: "h2", CompanyID: "globex", Date: date(2025, time.March, 28), Name: "Globex Day"}))

	req, err = engine.BuildRequest(ctx, store, store, store, "e1", engine.NewPayPeriod(2025, time.March))
	require.NoError(t, err)
	require.Len(t, req.Holidays, 1)
	assert.Equal(t, "h1", req.Holidays[0].ID)
}

func TestHolidays_ReduceWorkingDays(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.SaveHoliday(context.Background(),
		engine.Holiday{ID: "h1", Date: date(2025, time.March, 31), Name: "Holiday"}))

	// March 2025 has 21 weekdays
	holidays, err := store.ListHolidays(context.Background(), "acme")
	require.NoError(t, err)
	got := engine.WorkingDays(engine.NewStaticCalendar(holidays), "acme", date(2025, time.March, 1), date(2025, time.March, 31))
	assert.Equal(t, 20, got)
}

func TestRuleTables_ImmutableVersions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	rec := sqlite.RuleTableRecord{ID: "demo", Version: "1.0.0", EffectiveFrom: date(2025, time.January, 1), ConfigJSON: `{"id":"demo"}`}
	require.NoError(t, store.SaveRuleTable(ctx, rec))
	err := store.SaveRuleTable(ctx, rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	rec.Version = "1.1.0"
	require.NoError(t, store.SaveRuleTable(ctx, rec))

	all, err := store.ListRuleTables(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "1.0.0", all[0].Version)
	assert.True(t, all[1].EffectiveFrom.Equal(date(2025, time.January, 1)))
}

func outcome(employeeID string, net string) engine.Outcome {
	return engine.Outcome{
		Result: engine.PayrollCalculationResult{
			EmployeeID:  engine.EmployeeID(employeeID),
			Period:      engine.NewPayPeriod(2025, time.March),
			Currency:    "XAF",
			GrossSalary: decimal.RequireFromString("150000.00"),
			NetSalary:   decimal.RequireFromString(net),
			IncomeTax:   engine.DeductionLine{Code: engine.IncomeTaxCode, Amount: decimal.RequireFromString("100.00")},
			Provenance: engine.Provenance{
				RuleTableID:      "demo",
				RuleTableVersion: "1.0.0",
				InputHash:        "abc",
				EngineVersion:    engine.EngineVersion,
			},
		},
		Warnings: []engine.ValidationViolation{{Rule: engine.RuleOvertimeCapExceeded, Severity: engine.SeverityWarning}},
	}
}

func TestResults_AppendOnlyWithSupersession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	period := engine.NewPayPeriod(2025, time.March)

	// GIVEN: a first result
	first, err := store.SaveResult(ctx, outcome("e1", "120000.00"))
	require.NoError(t, err)

	// WHEN: the period is recalculated
	second, err := store.SaveResult(ctx, outcome("e1", "121000.00"))
	require.NoError(t, err)

	// THEN: the new result is current and the old one points at it
	current, err := store.CurrentResult(ctx, "e1", period)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.ID, current.ID)
	assert.True(t, current.Current())
	assert.True(t, current.Outcome.Result.NetSalary.Equal(decimal.RequireFromString("121000")))
	require.Len(t, current.Outcome.Warnings, 1)
	assert.Equal(t, engine.RuleOvertimeCapExceeded, current.Outcome.Warnings[0].Rule)

	old, err := store.GetResult(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, second.ID, old.SupersededBy)
	assert.True(t, old.Outcome.Result.NetSalary.Equal(decimal.RequireFromString("120000")), "old figures untouched")

	history, err := store.ResultHistory(ctx, "e1", period)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = store.SaveResult(ctx, outcome("e2", "90000.00"))
	require.NoError(t, err)
	listed, err := store.ListResults(ctx, period)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, engine.EmployeeID("e1"), listed[0].Outcome.Result.EmployeeID)
	assert.Equal(t, "demo", listed[0].Outcome.Result.Provenance.RuleTableID)
}

func TestResults_Missing(t *testing.T) {
	store := newStore(t)

	rec, err := store.GetResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = store.CurrentResult(context.Background(), "e1", engine.NewPayPeriod(2025, time.March))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAudit_SinkThroughMiddleware(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	failing := engine.CalculatorFunc(func(context.Context, engine.CalculationRequest) (*engine.Outcome, error) {
		return nil, &engine.CalculationError{Violations: []engine.ValidationViolation{
			{Rule: engine.RuleMinimumWage, Severity: engine.SeverityBlocking, Message: "below floor"},
		}}
	})
	calc := engine.Chain(failing, engine.WithAudit(store))

	req := engine.CalculationRequest{
		Profile: engine.EmployeeCompensationProfile{EmployeeID: "e1"},
		Period:  engine.NewPayPeriod(2025, time.March),
	}
	_, err := calc.Calculate(ctx, req)
	require.Error(t, err)

	trail, err := store.AuditLog(ctx, "e1", 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, "blocked", trail[0].Outcome)
	assert.Equal(t, engine.NewPayPeriod(2025, time.March), trail[0].Period)
	require.Len(t, trail[0].Violations, 1)
	assert.Equal(t, engine.RuleMinimumWage, trail[0].Violations[0].Rule)
	assert.NotEmpty(t, trail[0].Error)

	all, err := store.AuditLog(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRuns_CompletionTracking(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	period := engine.NewPayPeriod(2025, time.March)

	run := sqlite.PayrollRun{ID: "run-1", Period: period, Status: sqlite.RunRunning, CreatedAt: time.Now()}
	require.NoError(t, store.SaveRun(ctx, run))

	done, err := store.IsRunComplete(ctx, period)
	require.NoError(t, err)
	assert.False(t, done)

	now := time.Now()
	run.Status = sqlite.RunCompleted
	run.Total, run.Succeeded, run.Failed = 3, 2, 1
	run.CompletedAt = &now
	require.NoError(t, store.SaveRun(ctx, run))

	done, err = store.IsRunComplete(ctx, period)
	require.NoError(t, err)
	assert.True(t, done)

	runs, err := store.GetRuns(ctx, sqlite.RunCompleted)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Succeeded)
	assert.Equal(t, period, runs[0].Period)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.SaveEmployee(ctx, employee("e1")))
	_, err := store.SaveResult(ctx, outcome("e1", "1.00"))
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	employees, err := store.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Empty(t, employees)
}
