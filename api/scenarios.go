/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates employees and attendance that
	exercise specific payroll rules under the demo rule tables.

AVAILABLE SCENARIOS:
	standard-month:    Three employees, overtime, lateness and an absence
	new-hire:          Pro-rated base for a mid-month hire
	minimum-wage:      Full-time pay below the floor (blocked) vs probation
	mid-year-revision: The H2 rule table raises the floor for fixed-term
	holidays:          Company and public holidays shrink the working month

HOW SCENARIOS WORK:
 1. Reset database (clear all data, rule tables re-saved from the registry)
 2. Create employees from jurisdiction contract presets
 3. Record attendance from jurisdiction shift presets
 4. Optionally add holidays

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "standard-month"}

	then POST /api/payroll/runs {"period": "2025-03"}

NOTE:
	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - jurisdiction/presets.go: Contract and shift presets
  - jurisdiction/tables.go: Demo rule tables and holidays
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/store/sqlite"
)

const demoCompany = "acme"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-month",
		Name:        "Standard Month",
		Description: "Three employees: overtime, late arrivals and an unauthorized absence",
		Period:      "2025-03",
	},
	{
		ID:          "new-hire",
		Name:        "Mid-Month Hire",
		Description: "Base salary pro-rated by working days employed",
		Period:      "2025-03",
	},
	{
		ID:          "minimum-wage",
		Name:        "Minimum Wage Floor",
		Description: "Full-time pay below the floor is blocked, probation is exempt",
		Period:      "2025-03",
	},
	{
		ID:          "mid-year-revision",
		Name:        "Mid-Year Rule Revision",
		Description: "The H2 table raises the floor and extends it to fixed-term contracts",
		Period:      "2025-09",
	},
	{
		ID:          "holidays",
		Name:        "Holidays",
		Description: "A company holiday and public holidays reduce working days",
		Period:      "2025-03",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	loaders := map[string]func(context.Context) error{
		"standard-month":    h.loadStandardMonthScenario,
		"new-hire":          h.loadNewHireScenario,
		"minimum-wage":      h.loadMinimumWageScenario,
		"mid-year-revision": h.loadMidYearRevisionScenario,
		"holidays":          h.loadHolidaysScenario,
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data. Loaded rule tables survive.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	return h.LoadRuleTables(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (h *Handler) seed(ctx context.Context, name, email string, profile engine.EmployeeCompensationProfile, records []engine.AttendanceRecord) error {
	profile.CompanyID = demoCompany
	if err := h.Store.SaveEmployee(ctx, sqlite.Employee{Name: name, Email: email, Profile: profile}); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return h.Store.SaveAttendance(ctx, profile.EmployeeID, records...)
}

// replaceDays swaps in records for the days they cover.
func replaceDays(month []engine.AttendanceRecord, changes ...engine.AttendanceRecord) []engine.AttendanceRecord {
	byDate := make(map[time.Time]engine.AttendanceRecord, len(changes))
	for _, c := range changes {
		byDate[engine.DateOnly(c.Date)] = c
	}
	out := make([]engine.AttendanceRecord, len(month))
	for i, rec := range month {
		if c, ok := byDate[engine.DateOnly(rec.Date)]; ok {
			rec = c
		}
		out[i] = rec
	}
	return out
}

// demoCalendar is the demo company's stored holiday calendar.
func (h *Handler) demoCalendar(ctx context.Context) (engine.HolidayCalendar, error) {
	holidays, err := h.Store.ListHolidays(ctx, demoCompany)
	if err != nil {
		return nil, err
	}
	return engine.NewStaticCalendar(holidays), nil
}

func (h *Handler) loadStandardMonthScenario(ctx context.Context) error {
	cal, err := h.demoCalendar(ctx)
	if err != nil {
		return err
	}
	march := engine.NewPayPeriod(2025, time.March)
	shift := jurisdiction.OfficeShift
	month := shift.WorkMonth(cal, demoCompany, march)
	hired := day(2022, time.September, 1)

	// Alice: three evenings of overtime
	alice := replaceDays(month,
		shift.Worked(day(2025, time.March, 5), 0, 60),
		shift.Worked(day(2025, time.March, 12), 0, 90),
		shift.Worked(day(2025, time.March, 19), 0, 30),
	)
	if err := h.seed(ctx, "Alice Martin", "alice@acme.test",
		jurisdiction.FullTimeContract("emp-alice", engine.MustDecimal("150000"), hired), alice); err != nil {
		return err
	}

	// Bob: two late arrivals, an early departure and one unauthorized absence
	bob := replaceDays(month,
		shift.Worked(day(2025, time.March, 3), 25, 0),
		shift.Worked(day(2025, time.March, 10), 45, 0),
		shift.Worked(day(2025, time.March, 14), 0, -60),
		shift.Scheduled(day(2025, time.March, 20), engine.AttendanceAbsent),
	)
	if err := h.seed(ctx, "Bob Nguyen", "bob@acme.test",
		jurisdiction.FullTimeContract("emp-bob", engine.MustDecimal("120000"), hired), bob); err != nil {
		return err
	}

	// Carol: part-time mornings with one day of paid leave
	mornings := jurisdiction.Shift{StartMinute: 9 * 60, EndMinute: 13 * 60}
	carol := replaceDays(mornings.WorkMonth(cal, demoCompany, march),
		mornings.Scheduled(day(2025, time.March, 7), engine.AttendancePaidLeave),
	)
	return h.seed(ctx, "Carol Diaz", "carol@acme.test",
		jurisdiction.PartTimeContract("emp-carol", engine.MustDecimal("60000"), 20, hired), carol)
}

func (h *Handler) loadNewHireScenario(ctx context.Context) error {
	cal, err := h.demoCalendar(ctx)
	if err != nil {
		return err
	}
	march := engine.NewPayPeriod(2025, time.March)
	hired := day(2025, time.March, 17)

	var records []engine.AttendanceRecord
	for _, rec := range jurisdiction.OfficeShift.WorkMonth(cal, demoCompany, march) {
		if !rec.Date.Before(hired) {
			records = append(records, rec)
		}
	}
	return h.seed(ctx, "Dan Okafor", "dan@acme.test",
		jurisdiction.FullTimeContract("emp-dan", engine.MustDecimal("110000"), hired), records)
}

func (h *Handler) loadMinimumWageScenario(ctx context.Context) error {
	cal, err := h.demoCalendar(ctx)
	if err != nil {
		return err
	}
	march := engine.NewPayPeriod(2025, time.March)
	month := jurisdiction.OfficeShift.WorkMonth(cal, demoCompany, march)
	hired := day(2024, time.June, 3)

	if err := h.seed(ctx, "Erin Walsh", "erin@acme.test",
		jurisdiction.FullTimeContract("emp-erin", engine.MustDecimal("28000"), hired), month); err != nil {
		return err
	}
	return h.seed(ctx, "Frank Osei", "frank@acme.test",
		jurisdiction.ProbationContract("emp-frank", engine.MustDecimal("28000"), hired), month)
}

func (h *Handler) loadMidYearRevisionScenario(ctx context.Context) error {
	cal, err := h.demoCalendar(ctx)
	if err != nil {
		return err
	}
	june := engine.NewPayPeriod(2025, time.June)
	sept := engine.NewPayPeriod(2025, time.September)
	shift := jurisdiction.OfficeShift

	records := append(shift.WorkMonth(cal, demoCompany, june), shift.WorkMonth(cal, demoCompany, sept)...)
	profile := jurisdiction.FixedTermContract("emp-gina", engine.MustDecimal("31000"),
		day(2025, time.January, 6), day(2025, time.December, 31))
	return h.seed(ctx, "Gina Rossi", "gina@acme.test", profile, records)
}

func (h *Handler) loadHolidaysScenario(ctx context.Context) error {
	for _, hol := range jurisdiction.DemoHolidays(2025) {
		if err := h.Store.SaveHoliday(ctx, hol); err != nil {
			return err
		}
	}
	if err := h.Store.SaveHoliday(ctx, engine.Holiday{
		ID: "acme-founders-day", CompanyID: demoCompany, Date: day(2025, time.March, 31), Name: "Founders Day",
	}); err != nil {
		return err
	}

	// attendance follows the calendar, so March 31 is not scheduled
	cal, err := h.demoCalendar(ctx)
	if err != nil {
		return err
	}
	march := engine.NewPayPeriod(2025, time.March)
	return h.seed(ctx, "Hank Mueller", "hank@acme.test",
		jurisdiction.FullTimeContract("emp-hank", engine.MustDecimal("150000"), day(2021, time.February, 1)),
		jurisdiction.OfficeShift.WorkMonth(cal, demoCompany, march))
}
