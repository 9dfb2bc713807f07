package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// PAY PERIOD - one calendar month
// =============================================================================

// PayPeriod identifies exactly one calculation per employee.
type PayPeriod struct {
	Year  int
	Month time.Month
}

func NewPayPeriod(year int, month time.Month) PayPeriod {
	return PayPeriod{Year: year, Month: month}
}

// PeriodOf returns the pay period containing t.
func PeriodOf(t time.Time) PayPeriod {
	t = t.UTC()
	return PayPeriod{Year: t.Year(), Month: t.Month()}
}

// ParsePayPeriod parses "YYYY-MM".
func ParsePayPeriod(s string) (PayPeriod, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return PayPeriod{}, fmt.Errorf("invalid pay period %q (use YYYY-MM): %w", s, err)
	}
	return PayPeriod{Year: t.Year(), Month: t.Month()}, nil
}

func (p PayPeriod) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Start returns the first day of the period (UTC midnight).
func (p PayPeriod) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the period (UTC midnight).
func (p PayPeriod) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Contains reports whether t's calendar day falls in the period.
func (p PayPeriod) Contains(t time.Time) bool {
	t = t.UTC()
	return t.Year() == p.Year && t.Month() == p.Month
}

// Days returns every calendar day in the period.
func (p PayPeriod) Days() []time.Time {
	var days []time.Time
	for d := p.Start(); !d.After(p.End()); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (p PayPeriod) Next() PayPeriod     { return PeriodOf(p.Start().AddDate(0, 1, 0)) }
func (p PayPeriod) Previous() PayPeriod { return PeriodOf(p.Start().AddDate(0, -1, 0)) }

func (p PayPeriod) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p PayPeriod) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *PayPeriod) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePayPeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DateOnly truncates t to its UTC calendar day.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
