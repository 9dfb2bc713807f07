/*
Package sqlite provides a SQLite-backed implementation of the payroll
collaborator interfaces.

PURPOSE:
  Persists everything around the engine: employees and their compensation
  profiles, attendance records, rule table documents, holidays, payroll
  results, the audit trail and payroll runs. In production the same
  patterns apply to PostgreSQL with minor dialect differences.

INTERFACES IMPLEMENTED:
  engine.ProfileSource:    compensation profiles
  engine.AttendanceSource: attendance records per employee and period
  engine.HolidaySource:    company and global holidays
  engine.AuditSink:        one audit row per calculation attempt

APPEND-ONLY RESULTS:
  Payroll results are never updated in place. Saving a new result for an
  (employee, period) that already has one links the old row to the new one
  through superseded_by. Exactly one current (non-superseded) result exists
  per (employee, period), enforced by a partial unique index.

KEY TABLES:
  employees:          profile + contact details
  attendance_records: one row per employee per day
  rule_tables:        rule table documents keyed by (id, version)
  holidays:           company-specific ('' = global) holidays
  payroll_results:    calculated results with provenance, append-only
  audit_log:          every calculation attempt and its outcome
  payroll_runs:       batch runs started by the API or the scheduler

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, database-level
  concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - engine/source.go: collaborator interfaces
  - engine/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
)

const (
	dateLayout      = "2006-01-02"
	// fixed-width so lexical order matches time order
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store implements the payroll storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Employees and their compensation profile
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		company_id TEXT NOT NULL DEFAULT '',
		base_salary TEXT NOT NULL,
		category TEXT NOT NULL,
		weekly_hours TEXT NOT NULL,
		hire_date TEXT NOT NULL,
		termination_date TEXT,
		created_at TEXT NOT NULL
	);

	-- Attendance (one row per employee per day)
	CREATE TABLE IF NOT EXISTS attendance_records (
		employee_id TEXT NOT NULL REFERENCES employees(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		scheduled_start TEXT,
		scheduled_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		break_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, date)
	);

	-- Rule table documents
	CREATE TABLE IF NOT EXISTS rule_tables (
		id TEXT NOT NULL,
		version TEXT NOT NULL,
		effective_from TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (id, version)
	);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		UNIQUE(company_id, date, name)
	);

	-- Payroll results (append-only, superseded_by links corrections)
	CREATE TABLE IF NOT EXISTS payroll_results (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		rule_table_id TEXT NOT NULL,
		rule_table_version TEXT NOT NULL,
		input_hash TEXT NOT NULL,
		gross_salary TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		result_json TEXT NOT NULL,
		warnings_json TEXT,
		superseded_by TEXT REFERENCES payroll_results(id) DEFERRABLE INITIALLY DEFERRED,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_employee_period
		ON payroll_results(employee_id, period, created_at);

	-- CRITICAL: exactly one current result per employee and period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_results_current
		ON payroll_results(employee_id, period)
		WHERE superseded_by IS NULL;

	-- Audit trail
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		period TEXT NOT NULL,
		outcome TEXT NOT NULL,
		rule_table_id TEXT,
		rule_table_version TEXT,
		input_hash TEXT,
		violations_json TEXT,
		error TEXT,
		duration_ms REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_employee
		ON audit_log(employee_id, period);

	-- Payroll runs
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period TEXT NOT NULL,
		status TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_period
		ON payroll_runs(period, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// Employee is an employee record with its compensation profile.
type Employee struct {
	Name      string
	Email     string
	Profile   engine.EmployeeCompensationProfile
	CreatedAt time.Time
}

// ID returns the employee's identifier.
func (e Employee) ID() engine.EmployeeID { return e.Profile.EmployeeID }

// SaveEmployee creates or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, company_id, base_salary, category, weekly_hours,
			hire_date, termination_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			company_id = excluded.company_id,
			base_salary = excluded.base_salary,
			category = excluded.category,
			weekly_hours = excluded.weekly_hours,
			hire_date = excluded.hire_date,
			termination_date = excluded.termination_date
	`

	p := emp.Profile
	_, err := s.db.ExecContext(ctx, query,
		p.EmployeeID, emp.Name, emp.Email, p.CompanyID,
		p.BaseSalary.String(), string(p.Category), p.ScheduledWeeklyHours.String(),
		p.HireDate.Format(dateLayout), nullDate(p.TerminationDate),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

const employeeColumns = `id, name, email, company_id, base_salary, category, weekly_hours,
	hire_date, termination_date, created_at`

// GetEmployee retrieves an employee by ID. Returns nil when absent.
func (s *Store) GetEmployee(ctx context.Context, id engine.EmployeeID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+employeeColumns+" FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// DeleteEmployee removes an employee and their attendance.
func (s *Store) DeleteEmployee(ctx context.Context, id engine.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	return err
}

// Profile implements engine.ProfileSource.
func (s *Store) Profile(ctx context.Context, id engine.EmployeeID) (engine.EmployeeCompensationProfile, error) {
	emp, err := s.GetEmployee(ctx, id)
	if err != nil {
		return engine.EmployeeCompensationProfile{}, err
	}
	if emp == nil {
		return engine.EmployeeCompensationProfile{}, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return emp.Profile, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (Employee, error) {
	var emp Employee
	var email, termination sql.NullString
	var baseSalary, category, weeklyHours, hireDate, createdAt string
	if err := row.Scan(
		&emp.Profile.EmployeeID, &emp.Name, &email, &emp.Profile.CompanyID,
		&baseSalary, &category, &weeklyHours, &hireDate, &termination, &createdAt,
	); err != nil {
		return Employee{}, err
	}
	emp.Email = email.String
	emp.Profile.BaseSalary = parseDecimal(baseSalary)
	emp.Profile.Category = engine.ContractCategory(category)
	emp.Profile.ScheduledWeeklyHours = parseDecimal(weeklyHours)
	emp.Profile.HireDate, _ = time.Parse(dateLayout, hireDate)
	emp.Profile.TerminationDate = parseNullDate(termination)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return emp, nil
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

// SaveAttendance upserts records for an employee, one per day.
func (s *Store) SaveAttendance(ctx context.Context, employeeID engine.EmployeeID, records ...engine.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO attendance_records (employee_id, date, type, status, scheduled_start, scheduled_end,
			actual_start, actual_end, break_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, date) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			scheduled_start = excluded.scheduled_start,
			scheduled_end = excluded.scheduled_end,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			break_minutes = excluded.break_minutes
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, query,
			employeeID, engine.DateOnly(r.Date).Format(dateLayout), string(r.Type), string(r.Status),
			nullTime(r.ScheduledStart), nullTime(r.ScheduledEnd),
			nullTime(r.ActualStart), nullTime(r.ActualEnd),
			r.BreakMinutes, now,
		); err != nil {
			return fmt.Errorf("failed to save attendance for %s: %w", r.Date.Format(dateLayout), err)
		}
	}
	return tx.Commit()
}

// AttendanceRecords implements engine.AttendanceSource.
func (s *Store) AttendanceRecords(ctx context.Context, employeeID engine.EmployeeID, period engine.PayPeriod) ([]engine.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT date, type, status, scheduled_start, scheduled_end, actual_start, actual_end, break_minutes
		FROM attendance_records
		WHERE employee_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, employeeID,
		period.Start().Format(dateLayout), period.End().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []engine.AttendanceRecord
	for rows.Next() {
		var r engine.AttendanceRecord
		var date, typ, status string
		var schedStart, schedEnd, actStart, actEnd sql.NullString
		if err := rows.Scan(&date, &typ, &status, &schedStart, &schedEnd, &actStart, &actEnd, &r.BreakMinutes); err != nil {
			return nil, err
		}
		r.Date, _ = time.Parse(dateLayout, date)
		r.Type = engine.AttendanceType(typ)
		r.Status = engine.AttendanceStatus(status)
		r.ScheduledStart = parseNullTime(schedStart)
		r.ScheduledEnd = parseNullTime(schedEnd)
		r.ActualStart = parseNullTime(actStart)
		r.ActualEnd = parseNullTime(actEnd)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteAttendance removes one day's record.
func (s *Store) DeleteAttendance(ctx context.Context, employeeID engine.EmployeeID, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM attendance_records WHERE employee_id = ? AND date = ?",
		employeeID, engine.DateOnly(date).Format(dateLayout))
	return err
}

// =============================================================================
// RULE TABLE STORE
// =============================================================================

// RuleTableRecord is a stored rule table document.
type RuleTableRecord struct {
	ID            string
	Version       string
	EffectiveFrom time.Time
	ConfigJSON    string
	CreatedAt     time.Time
}

// SaveRuleTable stores a rule table document. A version is immutable once
// saved; saving the same (id, version) again is an error.
func (s *Store) SaveRuleTable(ctx context.Context, r RuleTableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rule_tables (id, version, effective_from, config_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Version, r.EffectiveFrom.Format(dateLayout), r.ConfigJSON,
		time.Now().UTC().Format(time.RFC3339),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("rule table %s@%s already exists", r.ID, r.Version)
	}
	return err
}

// ListRuleTables returns every stored document ordered by effective date.
func (s *Store) ListRuleTables(ctx context.Context) ([]RuleTableRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, version, effective_from, config_json, created_at FROM rule_tables ORDER BY effective_from, id, version",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RuleTableRecord
	for rows.Next() {
		var r RuleTableRecord
		var from, createdAt string
		if err := rows.Scan(&r.ID, &r.Version, &from, &r.ConfigJSON, &createdAt); err != nil {
			return nil, err
		}
		r.EffectiveFrom, _ = time.Parse(dateLayout, from)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h engine.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, company_id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id, date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.CompanyID,
		h.Date.Format(dateLayout),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	return err
}

// ListHolidays returns a company's holidays plus global ones. It implements
// engine.HolidaySource.
func (s *Store) ListHolidays(ctx context.Context, companyID string) ([]engine.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_id, date, name, recurring
		FROM holidays
		WHERE company_id = ? OR company_id = ''
		ORDER BY date ASC
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []engine.Holiday
	for rows.Next() {
		var h engine.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &h.CompanyID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("holiday %s: invalid date %q: %w", h.ID, dateStr, err)
		}
		h.Date = date
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset deletes all data (for demo purposes).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"audit_log", "payroll_runs", "payroll_results", "attendance_records", "holidays", "rule_tables", "employees"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(t.Format(dateLayout))
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return nullString(t.UTC().Format(time.RFC3339))
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
