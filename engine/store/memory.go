// Package store provides in-memory implementations of the engine's
// collaborator interfaces, for tests and development.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/payroll-engine/engine"
)

// =============================================================================
// RULE TABLE REGISTRY - load once, read-only afterwards
// =============================================================================

// RuleTables holds every loaded RuleTableVersion, ordered by EffectiveFrom.
// Tables are copied, normalized and validated on Load and never modified
// after.
type RuleTables struct {
	mu     sync.RWMutex
	tables []*engine.RuleTableVersion
}

func NewRuleTables(tables ...*engine.RuleTableVersion) (*RuleTables, error) {
	r := &RuleTables{}
	if err := r.Load(tables...); err != nil {
		return nil, err
	}
	return r, nil
}

// Load adds tables atomically: if any table is invalid or duplicates an
// id@version, loaded or elsewhere in the batch, none are added. The registry
// keeps normalized copies, so callers' tables are never modified.
func (r *RuleTables) Load(tables ...*engine.RuleTableVersion) error {
	prepared := make([]*engine.RuleTableVersion, 0, len(tables))
	inBatch := make(map[string]bool, len(tables))
	for _, rt := range tables {
		cp := rt.Clone()
		cp.Normalize()
		if err := cp.Validate(); err != nil {
			return err
		}
		key := cp.ID + "@" + cp.Version
		if inBatch[key] {
			return fmt.Errorf("rule table %s appears twice in one load", key)
		}
		inBatch[key] = true
		prepared = append(prepared, cp)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range prepared {
		for _, existing := range r.tables {
			if existing.ID == rt.ID && existing.Version == rt.Version {
				return fmt.Errorf("rule table %s@%s already loaded", rt.ID, rt.Version)
			}
		}
	}
	for _, rt := range prepared {
		r.insertLocked(rt)
	}
	return nil
}

func (r *RuleTables) insertLocked(rt *engine.RuleTableVersion) {
	// Binary search for insertion point
	i := sort.Search(len(r.tables), func(i int) bool {
		return r.tables[i].EffectiveFrom.After(rt.EffectiveFrom)
	})
	r.tables = append(r.tables, nil)
	copy(r.tables[i+1:], r.tables[i:])
	r.tables[i] = rt
}

// Resolve returns the table in force on effectiveDate. When several apply,
// engine.Newer picks the winner.
func (r *RuleTables) Resolve(effectiveDate time.Time) (*engine.RuleTableVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *engine.RuleTableVersion
	for _, rt := range r.tables {
		if !rt.AppliesOn(effectiveDate) {
			continue
		}
		if best == nil || engine.Newer(rt, best) {
			best = rt
		}
	}
	if best == nil {
		return nil, &engine.RuleTableUnresolvedError{EffectiveDate: effectiveDate}
	}
	return best, nil
}

// All returns every loaded table in EffectiveFrom order.
func (r *RuleTables) All() []*engine.RuleTableVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*engine.RuleTableVersion, len(r.tables))
	copy(out, r.tables)
	return out
}

// =============================================================================
// MEMORY STORE - profiles, attendance and audit trail
// =============================================================================

// ErrNotFound is returned for unknown employees.
var ErrNotFound = errors.New("not found")

type attendanceKey struct {
	EmployeeID engine.EmployeeID
	Period     engine.PayPeriod
}

// Memory implements engine.ProfileSource, engine.AttendanceSource and
// engine.AuditSink.
type Memory struct {
	mu         sync.RWMutex
	profiles   map[engine.EmployeeID]engine.EmployeeCompensationProfile
	attendance map[attendanceKey][]engine.AttendanceRecord
	audit      []engine.AuditRecord
}

func NewMemory() *Memory {
	return &Memory{
		profiles:   make(map[engine.EmployeeID]engine.EmployeeCompensationProfile),
		attendance: make(map[attendanceKey][]engine.AttendanceRecord),
	}
}

func (m *Memory) SaveProfile(_ context.Context, p engine.EmployeeCompensationProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.EmployeeID] = p
	return nil
}

func (m *Memory) Profile(_ context.Context, id engine.EmployeeID) (engine.EmployeeCompensationProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return engine.EmployeeCompensationProfile{}, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// AddAttendance appends records, keyed by the period each date falls in.
func (m *Memory) AddAttendance(_ context.Context, id engine.EmployeeID, records ...engine.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		k := attendanceKey{EmployeeID: id, Period: engine.PeriodOf(rec.Date)}
		m.attendance[k] = append(m.attendance[k], rec)
	}
	return nil
}

func (m *Memory) AttendanceRecords(_ context.Context, id engine.EmployeeID, period engine.PayPeriod) ([]engine.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.attendance[attendanceKey{EmployeeID: id, Period: period}]
	out := make([]engine.AttendanceRecord, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) RecordCalculation(_ context.Context, rec engine.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, rec)
	return nil
}

// AuditTrail returns a copy of every audit record in write order.
func (m *Memory) AuditTrail() []engine.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.AuditRecord, len(m.audit))
	copy(out, m.audit)
	return out
}
