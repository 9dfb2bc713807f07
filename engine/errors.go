/*
errors.go - Error kinds for the payroll engine

ERROR CATEGORIES:
  1. InvalidInput            - malformed compensation/attendance data,
                               surfaced before any stage runs
  2. RuleTableUnresolved     - no rule table for the effective date (fatal)
  3. BlockingRuleViolation   - calculation ran but the result is refused
  4. ArithmeticInconsistency - an internal invariant failed (a bug signal)

Structured errors carry every problem found, not just the first, and
Unwrap to their sentinel so callers can use errors.Is.

USAGE:
  outcome, err := eng.Calculate(ctx, req)
  var calcErr *engine.CalculationError
  if errors.As(err, &calcErr) {
      for _, v := range calcErr.Violations { ... }
  }
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidInput            = errors.New("invalid payroll input")
	ErrRuleTableUnresolved     = errors.New("no rule table for effective date")
	ErrBlockingViolation       = errors.New("blocking business rule violation")
	ErrArithmeticInconsistency = errors.New("arithmetic inconsistency")
	ErrInvalidRuleTable        = errors.New("invalid rule table")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidInputError lists every input problem found.
type InvalidInputError struct {
	Problems []string
}

func (e *InvalidInputError) Error() string {
	return "invalid payroll input: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// RuleTableUnresolvedError means no table is in force on EffectiveDate.
type RuleTableUnresolvedError struct {
	EffectiveDate time.Time
}

func (e *RuleTableUnresolvedError) Error() string {
	return fmt.Sprintf("no rule table for %s", e.EffectiveDate.Format("2006-01-02"))
}

func (e *RuleTableUnresolvedError) Unwrap() error { return ErrRuleTableUnresolved }

// CalculationError is returned when validation produced BLOCKING
// violations. Violations holds all of them.
type CalculationError struct {
	EmployeeID EmployeeID
	Period     PayPeriod
	Violations []ValidationViolation
}

func (e *CalculationError) Error() string {
	rules := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		rules[i] = v.Rule
	}
	return fmt.Sprintf("payroll for %s %s refused: %s", e.EmployeeID, e.Period, strings.Join(rules, ", "))
}

func (e *CalculationError) Unwrap() error { return ErrBlockingViolation }

// ArithmeticInconsistencyError signals a failed internal invariant. It is
// never expected in correct operation.
type ArithmeticInconsistencyError struct {
	Check  string
	Detail string
}

func (e *ArithmeticInconsistencyError) Error() string {
	return fmt.Sprintf("arithmetic inconsistency (%s): %s", e.Check, e.Detail)
}

func (e *ArithmeticInconsistencyError) Unwrap() error { return ErrArithmeticInconsistency }

// InvalidRuleTableError is returned when a rule table fails Validate.
type InvalidRuleTableError struct {
	ID       string
	Problems []string
}

func (e *InvalidRuleTableError) Error() string {
	return fmt.Sprintf("invalid rule table %q: %s", e.ID, strings.Join(e.Problems, "; "))
}

func (e *InvalidRuleTableError) Unwrap() error { return ErrInvalidRuleTable }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if correcting the input could fix the error.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrBlockingViolation) ||
		errors.Is(err, ErrInvalidRuleTable)
}

// IsNotFound returns true if a required rule table is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleTableUnresolved)
}
