package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/engine/store"
)

func table(id, version string, from time.Time) *engine.RuleTableVersion {
	dec := engine.MustDecimal
	return &engine.RuleTableVersion{
		ID:                  id,
		Version:             version,
		Currency:            "XTS",
		CurrencyScale:       2,
		EffectiveFrom:       from,
		MinimumWage:         engine.MinimumWage{Monthly: dec("1000")},
		FullTimeWeeklyHours: dec("40"),
		WeeksPerMonth:       dec("4"),
		MonthlyWorkingDays:  dec("22"),
		MaxDailyHours:       dec("10"),
		MaxWeeklyHours:      dec("48"),
		OvertimeTiers:       []engine.OvertimeTier{{FromHour: decimal.Zero, Multiplier: dec("1.5")}},
		TaxBrackets:         []engine.TaxBracket{{LowerBound: decimal.Zero, Rate: dec("0.1")}},
	}
}

func TestRuleTables_ResolveByEffectiveDate(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	jul := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)

	reg, err := store.NewRuleTables(table("h2", "1.0.0", jul), table("h1", "1.0.0", jan))
	require.NoError(t, err)

	rt, err := reg.Resolve(time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "h1", rt.ID)

	rt, err = reg.Resolve(time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "h2", rt.ID)

	_, err = reg.Resolve(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, engine.ErrRuleTableUnresolved)

	all := reg.All()
	require.Len(t, all, 2)
	assert.Equal(t, "h1", all[0].ID)
}

func TestRuleTables_SameDateHigherVersionWins(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	reg, err := store.NewRuleTables(table("t", "1.2.0", jan), table("t", "1.10.0", jan))
	require.NoError(t, err)

	rt, err := reg.Resolve(jan)
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", rt.Version)
}

func TestRuleTables_Load_RejectsInvalidAtomically(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	reg, err := store.NewRuleTables()
	require.NoError(t, err)

	bad := table("bad", "1.0.0", jan)
	bad.TaxBrackets = nil

	err = reg.Load(table("good", "1.0.0", jan), bad)
	assert.ErrorIs(t, err, engine.ErrInvalidRuleTable)
	assert.Empty(t, reg.All())

	require.NoError(t, reg.Load(table("good", "1.0.0", jan)))
	assert.Error(t, reg.Load(table("good", "1.0.0", jan)), "duplicate id@version")
}

func TestRuleTables_Load_RejectsDuplicateWithinBatch(t *testing.T) {
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	reg, err := store.NewRuleTables()
	require.NoError(t, err)

	err = reg.Load(table("t", "1.0.0", jan), table("t", "1.0.0", jan))

	assert.Error(t, err)
	assert.Empty(t, reg.All())
}

func TestRuleTables_Load_LeavesCallerTablesUntouched(t *testing.T) {
	// GIVEN: A table whose tax brackets are out of order
	// WHEN: It is loaded
	// THEN: The registry holds a sorted copy and the caller's slice is unchanged

	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec := engine.MustDecimal
	rt := table("t", "1.0.0", jan)
	rt.TaxBrackets = []engine.TaxBracket{
		{LowerBound: dec("50000"), Rate: dec("0.2")},
		{LowerBound: decimal.Zero, Rate: dec("0.1")},
	}

	reg, err := store.NewRuleTables()
	require.NoError(t, err)
	require.NoError(t, reg.Load(rt))

	assert.True(t, rt.TaxBrackets[0].LowerBound.Equal(dec("50000")))

	stored, err := reg.Resolve(jan)
	require.NoError(t, err)
	assert.NotSame(t, rt, stored)
	assert.True(t, stored.TaxBrackets[0].LowerBound.IsZero())
}

func TestMemory_SourcesAndAudit(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	march := engine.NewPayPeriod(2025, time.March)

	_, err := mem.Profile(ctx, "emp-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mem.SaveProfile(ctx, engine.EmployeeCompensationProfile{EmployeeID: "emp-1"}))
	require.NoError(t, mem.AddAttendance(ctx, "emp-1",
		engine.AttendanceRecord{Date: time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), Type: engine.AttendanceAbsent},
		engine.AttendanceRecord{Date: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), Type: engine.AttendanceAbsent},
	))

	req, err := engine.BuildRequest(ctx, mem, mem, nil, "emp-1", march)
	require.NoError(t, err)
	assert.Len(t, req.Attendance, 1)
	assert.Equal(t, march.Start(), req.EffectiveDate)

	require.NoError(t, mem.RecordCalculation(ctx, engine.AuditRecord{EmployeeID: "emp-1", Outcome: "success"}))
	assert.Len(t, mem.AuditTrail(), 1)
}
