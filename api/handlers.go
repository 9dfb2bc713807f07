/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the store.

ENDPOINTS:
  Employees:
    GET    /api/employees                      List all employees
    POST   /api/employees                      Create or update employee
    GET    /api/employees/{id}                 Get employee details
    DELETE /api/employees/{id}                 Delete employee
    GET    /api/employees/{id}/attendance      Attendance for ?period=YYYY-MM
    POST   /api/employees/{id}/attendance      Upsert attendance days
    GET    /api/employees/{id}/results         Result history for ?period=

  Rule tables:
    GET    /api/rule-tables                    List loaded tables
    POST   /api/rule-tables                    Add a table (JSON or YAML body)
    GET    /api/rule-tables/resolve            Table in force on ?date=

  Payroll (payroll.go):
    POST   /api/payroll/calculate              Calculate one employee
    POST   /api/payroll/runs                   Calculate every employee
    GET    /api/payroll/runs                   List runs
    GET    /api/payroll/results                Current results for ?period=
    GET    /api/payroll/results/{id}           One result
    GET    /api/payroll/results/{id}/payslip   Payslip PDF

  Holidays, audit and scenarios.

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (also the engine's profile, attendance,
    holiday and audit collaborator)
  - RuleTables: load-once registry the engine resolves against
  - Calculator: engine wrapped in logging, telemetry and audit middleware

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate rule table version)
  - 422: No rule table in force, or blocking business rule violation
  - 500: Internal errors, arithmetic inconsistency

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - payroll.go: Calculation and payroll run handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/engine/store"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/jurisdiction"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/store/sqlite"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Factory    *factory.RuleTableFactory
	RuleTables *store.RuleTables
	Calculator engine.Calculator
	Payslips   payslip.Renderer
	PayslipDir string // payroll runs also write PDFs here when set
	Workers    int
	Logger     *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler whose engine resolves tables from tables.
// Holidays are loaded from db onto each request before calculating. Every calculation is logged, traced and audited.
func NewHandler(db *sqlite.Store, tables *store.RuleTables, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	eng := engine.NewEngine(tables, nil)
	return &Handler{
		Store:      db,
		Factory:    factory.NewRuleTableFactory(),
		RuleTables: tables,
		Calculator: engine.Chain(eng,
			engine.WithLogging(logger),
			engine.WithTelemetry(),
			engine.WithAudit(db),
		),
		Workers: 4,
		Logger:  logger,
	}
}

// LoadRuleTables reconciles the registry with the database: stored tables
// missing from the registry are loaded, and registry tables missing from
// the database are saved.
func (h *Handler) LoadRuleTables(ctx context.Context) error {
	records, err := h.Store.ListRuleTables(ctx)
	if err != nil {
		return err
	}

	loaded := make(map[string]bool)
	for _, rt := range h.RuleTables.All() {
		loaded[tableKey(rt.ID, rt.Version)] = true
	}

	stored := make(map[string]bool)
	for _, rec := range records {
		key := tableKey(rec.ID, rec.Version)
		stored[key] = true
		if loaded[key] {
			continue
		}
		rt, err := h.Factory.ParseJSON([]byte(rec.ConfigJSON))
		if err != nil {
			h.Logger.Warn("skipping invalid stored rule table", slog.String("table", key), slog.Any("error", err))
			continue
		}
		if err := h.RuleTables.Load(rt); err != nil {
			h.Logger.Warn("skipping stored rule table", slog.String("table", key), slog.Any("error", err))
		}
	}

	for _, rt := range h.RuleTables.All() {
		if stored[tableKey(rt.ID, rt.Version)] {
			continue
		}
		if err := h.persistRuleTable(ctx, rt); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) persistRuleTable(ctx context.Context, rt *engine.RuleTableVersion) error {
	doc, err := h.Factory.MarshalJSON(rt)
	if err != nil {
		return err
	}
	return h.Store.SaveRuleTable(ctx, sqlite.RuleTableRecord{
		ID:            rt.ID,
		Version:       rt.Version,
		EffectiveFrom: rt.EffectiveFrom,
		ConfigJSON:    string(doc),
	})
}

func tableKey(id, version string) string { return id + "@" + version }

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.loadEmployee(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// CreateEmployee creates or updates an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	emp, problems := req.toEmployee()
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid employee", Code: "invalid_input", Details: problems})
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// DeleteEmployee removes an employee and their attendance. Results and the
// audit trail are kept.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	if err := h.Store.DeleteEmployee(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete employee", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadEmployee(w http.ResponseWriter, r *http.Request) (*sqlite.Employee, bool) {
	id := engine.EmployeeID(chi.URLParam(r, "id"))
	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return nil, false
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return nil, false
	}
	return emp, true
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

// GetAttendance returns an employee's attendance for ?period=YYYY-MM.
func (h *Handler) GetAttendance(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.loadEmployee(w, r)
	if !ok {
		return
	}
	period, ok := periodParam(w, r)
	if !ok {
		return
	}

	records, err := h.Store.AttendanceRecords(r.Context(), emp.ID(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load attendance", err)
		return
	}
	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveAttendance upserts attendance days. Records are checked for shape
// here; the engine validates them against the period when calculating.
func (h *Handler) SaveAttendance(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.loadEmployee(w, r)
	if !ok {
		return
	}
	var dtos []AttendanceDTO
	if !decodeBody(w, r, &dtos) {
		return
	}

	var problems []string
	records := make([]engine.AttendanceRecord, 0, len(dtos))
	seen := make(map[string]bool)
	for i, dto := range dtos {
		rec, err := dto.toRecord()
		if err != nil {
			problems = append(problems, fmt.Sprintf("attendance[%d]: %v", i, err))
			continue
		}
		if !rec.Type.Valid() {
			problems = append(problems, fmt.Sprintf("attendance[%d]: unknown type %q", i, dto.Type))
		}
		if seen[dto.Date] {
			problems = append(problems, fmt.Sprintf("attendance[%d]: duplicate date %s", i, dto.Date))
		}
		seen[dto.Date] = true
		records = append(records, rec)
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid attendance", Code: "invalid_input", Details: problems})
		return
	}

	if err := h.Store.SaveAttendance(r.Context(), emp.ID(), records...); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"saved": len(records)})
}

// =============================================================================
// RULE TABLE HANDLERS
// =============================================================================

// ListRuleTables returns every loaded table in effective order.
func (h *Handler) ListRuleTables(w http.ResponseWriter, r *http.Request) {
	tables := h.RuleTables.All()
	dtos := make([]RuleTableDTO, len(tables))
	for i, rt := range tables {
		dtos[i] = toRuleTableDTO(rt)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRuleTable adds a rule table version. The body is JSON, or YAML when
// the Content-Type says so. Versions are immutable: re-posting an existing
// id and version is a conflict.
func (h *Handler) CreateRuleTable(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	var rt *engine.RuleTableVersion
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		rt, err = h.Factory.ParseYAML(body)
	} else {
		rt, err = h.Factory.ParseJSON(body)
	}
	if err != nil {
		var invalid *engine.InvalidRuleTableError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid rule table", Code: "invalid_rule_table", Details: invalid.Problems})
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid rule table", err)
		return
	}

	if err := h.RuleTables.Load(rt); err != nil {
		writeError(w, http.StatusConflict, "Rule table version already loaded", err)
		return
	}
	if err := h.persistRuleTable(r.Context(), rt); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule table", err)
		return
	}

	h.Logger.Info("rule table loaded",
		slog.String("id", rt.ID),
		slog.String("version", rt.Version),
		slog.String("effective_from", rt.EffectiveFrom.Format(dateLayout)),
	)
	writeJSON(w, http.StatusCreated, toRuleTableDTO(rt))
}

// ResolveRuleTable returns the full table in force on ?date=YYYY-MM-DD.
func (h *Handler) ResolveRuleTable(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	rt, err := h.RuleTables.Resolve(date)
	if err != nil {
		writeCalculationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Factory.ToJSON(rt))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns holidays for ?company_id= (global ones included).
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayDTO
	if !decodeBody(w, r, &req) {
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	holiday := engine.Holiday{ID: req.ID, CompanyID: req.CompanyID, Date: date, Name: req.Name, Recurring: req.Recurring}
	if err := h.Store.SaveHoliday(r.Context(), holiday); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(holiday))
}

// AddDefaultHolidays adds the demo jurisdiction's public holidays for
// ?year= (default: the current year).
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	holidays := jurisdiction.DemoHolidays(year)
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		if err := h.Store.SaveHoliday(r.Context(), hol); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
			return
		}
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusCreated, dtos)
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAudit returns the audit trail, newest first. Filters: ?employee_id=
// and ?limit= (default 100).
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	trail, err := h.Store.AuditLog(r.Context(), engine.EmployeeID(r.URL.Query().Get("employee_id")), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}
	dtos := make([]AuditDTO, len(trail))
	for i, rec := range trail {
		dtos[i] = toAuditDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeCalculationError maps engine errors to HTTP statuses.
func writeCalculationError(w http.ResponseWriter, err error) {
	var inputErr *engine.InvalidInputError
	var calcErr *engine.CalculationError
	switch {
	case errors.As(err, &inputErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Invalid payroll input", Code: engine.OutcomeLabel(err), Details: inputErr.Problems,
		})
	case errors.Is(err, engine.ErrRuleTableUnresolved):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "No rule table in force", Code: engine.OutcomeLabel(err), Details: err.Error(),
		})
	case errors.As(err, &calcErr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Payroll blocked by business rules", Code: engine.OutcomeLabel(err), Violations: calcErr.Violations,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "Calculation cancelled", Code: engine.OutcomeLabel(err), Details: err.Error(),
		})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Calculation failed", Code: engine.OutcomeLabel(err), Details: err.Error(),
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func periodParam(w http.ResponseWriter, r *http.Request) (engine.PayPeriod, bool) {
	period, err := engine.ParsePayPeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return engine.PayPeriod{}, false
	}
	return period, true
}
