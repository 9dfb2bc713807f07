package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payslip"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// CALCULATION
// =============================================================================

// Calculate runs the engine for one employee and period. The profile and
// attendance come from the store; allowances and bonuses from the body.
// The result is saved (superseding any earlier one) unless dry_run is set.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	var problems []string
	period, err := engine.ParsePayPeriod(req.Period)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if req.EmployeeID == "" {
		problems = append(problems, "employee_id is required")
	}
	allowances, p := toPayItems("allowances", req.Allowances)
	problems = append(problems, p...)
	bonuses, p := toPayItems("bonuses", req.Bonuses)
	problems = append(problems, p...)
	var effective time.Time
	if req.EffectiveDate != "" {
		if effective, err = time.Parse(dateLayout, req.EffectiveDate); err != nil {
			problems = append(problems, fmt.Sprintf("effective_date %q is not YYYY-MM-DD", req.EffectiveDate))
		}
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Code: "invalid_input", Details: problems})
		return
	}

	calcReq, err := engine.BuildRequest(ctx, h.Store, h.Store, h.Store, engine.EmployeeID(req.EmployeeID), period)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Employee not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load calculation inputs", err)
		return
	}
	calcReq.Allowances = allowances
	calcReq.Bonuses = bonuses
	if !effective.IsZero() {
		calcReq.EffectiveDate = effective
	}

	out, err := h.Calculator.Calculate(ctx, calcReq)
	if err != nil {
		writeCalculationError(w, err)
		return
	}

	if req.DryRun {
		writeJSON(w, http.StatusOK, CalculationResponse{Result: out.Result, Warnings: out.Warnings})
		return
	}

	rec, err := h.Store.SaveResult(ctx, *out)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save result", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCalculationResponse(rec))
}

// =============================================================================
// PAYROLL RUNS
// =============================================================================

// RunPayroll calculates every employee employed during period, saves the
// successful results and records the run. One employee failing never stops
// the others. Payslips are written to PayslipDir when it is set.
func (h *Handler) RunPayroll(ctx context.Context, period engine.PayPeriod) (sqlite.PayrollRun, []engine.BatchItem, error) {
	started := time.Now().UTC()
	run := sqlite.PayrollRun{
		ID:        uuid.New().String(),
		Period:    period,
		Status:    sqlite.RunRunning,
		StartedAt: &started,
		CreatedAt: started,
	}
	if err := h.Store.SaveRun(ctx, run); err != nil {
		return run, nil, fmt.Errorf("failed to record run: %w", err)
	}

	employees, err := h.Store.ListEmployees(ctx)
	if err != nil {
		return h.finishRun(ctx, run, nil, err)
	}

	names := make(map[engine.EmployeeID]payslip.Employee, len(employees))
	var reqs []engine.CalculationRequest
	var unbuilt []engine.BatchItem
	for _, emp := range employees {
		if !employedDuring(emp.Profile, period) {
			continue
		}
		names[emp.ID()] = payslip.Employee{Name: emp.Name, Email: emp.Email}
		req, err := engine.BuildRequest(ctx, h.Store, h.Store, h.Store, emp.ID(), period)
		if err != nil {
			unbuilt = append(unbuilt, engine.BatchItem{
				Request: engine.CalculationRequest{Profile: emp.Profile, Period: period},
				Err:     err,
			})
			continue
		}
		reqs = append(reqs, req)
	}

	items := append(engine.RunBatch(ctx, h.Calculator, reqs, h.Workers), unbuilt...)
	for i := range items {
		if items[i].Err != nil {
			continue
		}
		if _, err := h.Store.SaveResult(ctx, *items[i].Outcome); err != nil {
			items[i].Outcome, items[i].Err = nil, fmt.Errorf("failed to save result: %w", err)
			continue
		}
		if h.PayslipDir != "" {
			emp := names[items[i].Request.Profile.EmployeeID]
			if _, err := h.Payslips.WriteFile(h.PayslipDir, emp, *items[i].Outcome); err != nil {
				h.Logger.Warn("payslip not written",
					slog.String("employee_id", string(items[i].Request.Profile.EmployeeID)),
					slog.Any("error", err),
				)
			}
		}
	}
	return h.finishRun(ctx, run, items, ctx.Err())
}

func (h *Handler) finishRun(ctx context.Context, run sqlite.PayrollRun, items []engine.BatchItem, runErr error) (sqlite.PayrollRun, []engine.BatchItem, error) {
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.Total = len(items)
	for _, it := range items {
		if it.Err == nil {
			run.Succeeded++
		} else {
			run.Failed++
		}
	}
	run.Status = sqlite.RunCompleted
	if runErr != nil {
		run.Status = sqlite.RunFailed
		run.Error = runErr.Error()
	}

	// recorded even when ctx was cancelled mid-run
	if err := h.Store.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return run, items, fmt.Errorf("failed to record run: %w", err)
	}

	h.Logger.Info("payroll run finished",
		slog.String("run_id", run.ID),
		slog.String("period", run.Period.String()),
		slog.String("status", run.Status),
		slog.Int("succeeded", run.Succeeded),
		slog.Int("failed", run.Failed),
	)
	return run, items, nil
}

// employedDuring reports whether the employee's contract overlaps period.
func employedDuring(p engine.EmployeeCompensationProfile, period engine.PayPeriod) bool {
	if engine.DateOnly(p.HireDate).After(period.End()) {
		return false
	}
	return p.TerminationDate == nil || !engine.DateOnly(*p.TerminationDate).Before(period.Start())
}

// StartRun runs payroll for the period in the body.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if !decodeBody(w, r, &req) {
		return
	}
	period, err := engine.ParsePayPeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	run, items, err := h.RunPayroll(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Payroll run failed", err)
		return
	}

	resp := RunResponse{Run: toRunDTO(run), Outcomes: engine.BatchSummary(items)}
	for _, it := range items {
		if it.Err == nil {
			continue
		}
		failure := RunFailureDTO{
			EmployeeID: string(it.Request.Profile.EmployeeID),
			Outcome:    engine.OutcomeLabel(it.Err),
			Error:      it.Err.Error(),
		}
		var calcErr *engine.CalculationError
		if errors.As(it.Err, &calcErr) {
			failure.Violations = calcErr.Violations
		}
		resp.Failures = append(resp.Failures, failure)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRuns returns payroll runs, optionally filtered by ?status=.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.GetRuns(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESULTS AND PAYSLIPS
// =============================================================================

// ListResults returns the current result of every employee for ?period=.
func (h *Handler) ListResults(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	records, err := h.Store.ListResults(r.Context(), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results", err)
		return
	}
	writeResults(w, records)
}

// GetResultHistory returns every result for an employee and ?period=,
// superseded ones included, oldest first.
func (h *Handler) GetResultHistory(w http.ResponseWriter, r *http.Request) {
	period, ok := periodParam(w, r)
	if !ok {
		return
	}
	records, err := h.Store.ResultHistory(r.Context(), engine.EmployeeID(chi.URLParam(r, "id")), period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load results", err)
		return
	}
	writeResults(w, records)
}

// GetResult returns one stored result.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCalculationResponse(*rec))
}

// GetPayslip renders a stored result as a PDF.
func (h *Handler) GetPayslip(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadResult(w, r)
	if !ok {
		return
	}

	emp := payslip.Employee{Name: string(rec.Outcome.Result.EmployeeID)}
	stored, err := h.Store.GetEmployee(r.Context(), rec.Outcome.Result.EmployeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if stored != nil {
		emp = payslip.Employee{Name: stored.Name, Email: stored.Email}
	}

	data, err := h.Payslips.Render(emp, rec.Outcome)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render payslip", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", payslip.FileName(rec.Outcome.Result)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) loadResult(w http.ResponseWriter, r *http.Request) (*sqlite.ResultRecord, bool) {
	rec, err := h.Store.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load result", err)
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Result not found", nil)
		return nil, false
	}
	return rec, true
}

func writeResults(w http.ResponseWriter, records []sqlite.ResultRecord) {
	dtos := make([]CalculationResponse, len(records))
	for i, rec := range records {
		dtos[i] = toCalculationResponse(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// summarizeFailures joins failed employee ids for run logs.
func summarizeFailures(items []engine.BatchItem) string {
	var ids []string
	for _, it := range items {
		if it.Err != nil {
			ids = append(ids, string(it.Request.Profile.EmployeeID))
		}
	}
	return strings.Join(ids, ", ")
}
