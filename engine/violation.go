package engine

import "fmt"

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
)

// Rule names reported in ValidationViolation.Rule.
const (
	RuleMinimumWage          = "minimum_wage_floor"
	RuleWeeklyHoursExceeded  = "weekly_hours_exceeded"
	RuleDailyHoursExceeded   = "daily_hours_exceeded"
	RuleScheduledHoursExceed = "scheduled_hours_exceed_legal_max"
	RuleOvertimeCapExceeded  = "overtime_cap_exceeded"
	RuleNegativeNet          = "negative_net_salary"
)

// ValidationViolation is a business-rule failure. Only SeverityBlocking
// prevents a result from being emitted.
type ValidationViolation struct {
	Rule           string   `json:"rule"`
	Severity       Severity `json:"severity"`
	Message        string   `json:"message"`
	OffendingValue string   `json:"offending_value"`
}

func (v ValidationViolation) Blocking() bool { return v.Severity == SeverityBlocking }

func (v ValidationViolation) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", v.Severity, v.Rule, v.Message, v.OffendingValue)
}

func warning(rule, value, format string, args ...any) ValidationViolation {
	return ValidationViolation{Rule: rule, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), OffendingValue: value}
}

func blocking(rule, value, format string, args ...any) ValidationViolation {
	return ValidationViolation{Rule: rule, Severity: SeverityBlocking, Message: fmt.Sprintf(format, args...), OffendingValue: value}
}

// splitViolations separates blocking from non-blocking, preserving order.
func splitViolations(vs []ValidationViolation) (blockers, warnings []ValidationViolation) {
	for _, v := range vs {
		if v.Blocking() {
			blockers = append(blockers, v)
		} else {
			warnings = append(warnings, v)
		}
	}
	return blockers, warnings
}
