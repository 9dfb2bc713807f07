package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// PAYROLL RESULTS STORE (append-only)
// =============================================================================

// ResultRecord is a stored payroll result. SupersededBy is set once a later
// calculation for the same employee and period replaces this one.
type ResultRecord struct {
	ID           string
	Outcome      engine.Outcome
	SupersededBy string
	CreatedAt    time.Time
}

// Current reports whether no later result replaced this one.
func (r ResultRecord) Current() bool { return r.SupersededBy == "" }

// SaveResult appends an outcome. A previous current result for the same
// employee and period is linked to the new row through superseded_by;
// nothing else about it changes.
func (s *Store) SaveResult(ctx context.Context, out engine.Outcome) (ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := out.Result
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	var warningsJSON sql.NullString
	if len(out.Warnings) > 0 {
		b, err := json.Marshal(out.Warnings)
		if err != nil {
			return ResultRecord{}, fmt.Errorf("failed to marshal warnings: %w", err)
		}
		warningsJSON = nullString(string(b))
	}

	rec := ResultRecord{
		ID:        uuid.New().String(),
		Outcome:   out,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM payroll_results
		WHERE employee_id = ? AND period = ? AND superseded_by IS NULL
	`, res.EmployeeID, res.Period.String()).Scan(&previous)
	if err != nil && err != sql.ErrNoRows {
		return ResultRecord{}, fmt.Errorf("failed to look up current result: %w", err)
	}

	// the partial unique index forbids two current rows, so the old one is
	// marked before the new one lands
	if previous.Valid {
		if _, err := tx.ExecContext(ctx,
			"UPDATE payroll_results SET superseded_by = ? WHERE id = ?", rec.ID, previous.String,
		); err != nil {
			return ResultRecord{}, fmt.Errorf("failed to supersede result %s: %w", previous.String, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payroll_results (id, employee_id, period, rule_table_id, rule_table_version,
			input_hash, gross_salary, net_salary, result_json, warnings_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, res.EmployeeID, res.Period.String(),
		res.Provenance.RuleTableID, res.Provenance.RuleTableVersion, res.Provenance.InputHash,
		res.GrossSalary.String(), res.NetSalary.String(),
		string(resultJSON), warningsJSON, rec.CreatedAt.Format(timestampLayout),
	)
	if err != nil {
		return ResultRecord{}, fmt.Errorf("failed to insert result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ResultRecord{}, fmt.Errorf("failed to commit: %w", err)
	}
	return rec, nil
}

const resultColumns = "id, result_json, warnings_json, superseded_by, created_at"

// GetResult retrieves a result by ID. Returns nil when absent.
func (s *Store) GetResult(ctx context.Context, id string) (*ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+resultColumns+" FROM payroll_results WHERE id = ?", id)
	rec, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CurrentResult returns the non-superseded result for an employee and
// period. Returns nil when none has been calculated.
func (s *Store) CurrentResult(ctx context.Context, employeeID engine.EmployeeID, period engine.PayPeriod) (*ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+resultColumns+` FROM payroll_results
		WHERE employee_id = ? AND period = ? AND superseded_by IS NULL`,
		employeeID, period.String())
	rec, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListResults returns the current results of a period ordered by employee.
func (s *Store) ListResults(ctx context.Context, period engine.PayPeriod) ([]ResultRecord, error) {
	return s.queryResults(ctx, "SELECT "+resultColumns+` FROM payroll_results
		WHERE period = ? AND superseded_by IS NULL
		ORDER BY employee_id`, period.String())
}

// ResultHistory returns every result for an employee and period, oldest
// first, including superseded ones.
func (s *Store) ResultHistory(ctx context.Context, employeeID engine.EmployeeID, period engine.PayPeriod) ([]ResultRecord, error) {
	return s.queryResults(ctx, "SELECT "+resultColumns+` FROM payroll_results
		WHERE employee_id = ? AND period = ?
		ORDER BY created_at ASC, rowid ASC`, employeeID, period.String())
}

func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanResult(row scanner) (ResultRecord, error) {
	var rec ResultRecord
	var resultJSON, createdAt string
	var warningsJSON, supersededBy sql.NullString
	if err := row.Scan(&rec.ID, &resultJSON, &warningsJSON, &supersededBy, &createdAt); err != nil {
		return ResultRecord{}, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &rec.Outcome.Result); err != nil {
		return ResultRecord{}, fmt.Errorf("failed to decode result %s: %w", rec.ID, err)
	}
	if warningsJSON.Valid {
		if err := json.Unmarshal([]byte(warningsJSON.String), &rec.Outcome.Warnings); err != nil {
			return ResultRecord{}, fmt.Errorf("failed to decode warnings %s: %w", rec.ID, err)
		}
	}
	rec.SupersededBy = supersededBy.String
	rec.CreatedAt, _ = time.Parse(timestampLayout, createdAt)
	return rec, nil
}

// =============================================================================
// AUDIT LOG (implements engine.AuditSink)
// =============================================================================

// RecordCalculation implements engine.AuditSink.
func (s *Store) RecordCalculation(ctx context.Context, rec engine.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var violations sql.NullString
	if len(rec.Violations) > 0 {
		b, err := json.Marshal(rec.Violations)
		if err != nil {
			return fmt.Errorf("failed to marshal violations: %w", err)
		}
		violations = nullString(string(b))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, employee_id, period, outcome, rule_table_id, rule_table_version,
			input_hash, violations_json, error, duration_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(), rec.EmployeeID, rec.Period.String(), rec.Outcome,
		nullString(rec.RuleTableID), nullString(rec.RuleTableVersion), nullString(rec.InputHash),
		violations, nullString(rec.Error),
		float64(rec.Duration)/float64(time.Millisecond),
		rec.RecordedAt.UTC().Format(timestampLayout),
	)
	return err
}

// AuditLog returns the latest audit records, newest first. A limit of zero
// returns everything.
func (s *Store) AuditLog(ctx context.Context, employeeID engine.EmployeeID, limit int) ([]engine.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT employee_id, period, outcome, rule_table_id, rule_table_version,
			input_hash, violations_json, error, duration_ms, recorded_at
		FROM audit_log
		WHERE (? = '' OR employee_id = ?)
		ORDER BY recorded_at DESC, rowid DESC
	`
	args := []any{employeeID, employeeID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.AuditRecord
	for rows.Next() {
		var rec engine.AuditRecord
		var period, recordedAt string
		var tableID, tableVersion, inputHash, violations, errMsg sql.NullString
		var durationMS float64
		if err := rows.Scan(&rec.EmployeeID, &period, &rec.Outcome, &tableID, &tableVersion,
			&inputHash, &violations, &errMsg, &durationMS, &recordedAt); err != nil {
			return nil, err
		}
		rec.Period, _ = engine.ParsePayPeriod(period)
		rec.RuleTableID = tableID.String
		rec.RuleTableVersion = tableVersion.String
		rec.InputHash = inputHash.String
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMS * float64(time.Millisecond))
		rec.RecordedAt, _ = time.Parse(timestampLayout, recordedAt)
		if violations.Valid {
			if err := json.Unmarshal([]byte(violations.String), &rec.Violations); err != nil {
				return nil, fmt.Errorf("failed to decode violations: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// PAYROLL RUNS STORE
// =============================================================================

// Run status values.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// PayrollRun is one batch calculation over every employee for a period.
type PayrollRun struct {
	ID          string
	Period      engine.PayPeriod
	Status      string // pending, running, completed, failed
	Total       int
	Succeeded   int
	Failed      int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// SaveRun creates or updates a payroll run.
func (s *Store) SaveRun(ctx context.Context, r PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payroll_runs (id, period, status, total, succeeded, failed, error,
			started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			total = excluded.total,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Period.String(), r.Status, r.Total, r.Succeeded, r.Failed, nullString(r.Error),
		nullTime(r.StartedAt), nullTime(r.CompletedAt), r.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetRuns returns payroll runs, newest first, optionally filtered by status.
func (s *Store) GetRuns(ctx context.Context, status string) ([]PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, period, status, total, succeeded, failed, error, started_at, completed_at, created_at
		FROM payroll_runs
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []PayrollRun
	for rows.Next() {
		var r PayrollRun
		var period, createdAt string
		var errMsg, startedAt, completedAt sql.NullString
		if err := rows.Scan(
			&r.ID, &period, &r.Status, &r.Total, &r.Succeeded, &r.Failed,
			&errMsg, &startedAt, &completedAt, &createdAt,
		); err != nil {
			return nil, err
		}
		r.Period, _ = engine.ParsePayPeriod(period)
		r.Error = errMsg.String
		r.StartedAt = parseNullTime(startedAt)
		r.CompletedAt = parseNullTime(completedAt)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// IsRunComplete checks if a period has already been run to completion.
func (s *Store) IsRunComplete(ctx context.Context, period engine.PayPeriod) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM payroll_runs WHERE period = ? AND status = ?",
		period.String(), RunCompleted,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
