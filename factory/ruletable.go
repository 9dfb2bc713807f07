/*
Package factory converts rule table documents into engine.RuleTableVersion.

PURPOSE:
  Jurisdiction constants are data. Payroll administrators maintain them as
  JSON or YAML documents (one file per table version) and the factory turns
  them into validated, normalized engine.RuleTableVersion values. Nothing
  numeric is hard-coded in the engine.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  id: demo-2025
  version: 1.0.0
  jurisdiction: DEMO
  currency: DMO
  currency_scale: 2
  effective_from: 2025-01-01
  minimum_wage:
    monthly: "30000"
    applies_to: [permanent]
  full_time_weekly_hours: "40"
  weeks_per_month: "4"
  monthly_working_days: "22"
  limits: {max_daily_hours: "12", max_weekly_hours: "48", max_overtime_hours: "32"}
  overtime_tiers: [{from_hour: "0", multiplier: "1.25"}, {from_hour: "8", multiplier: "1.5"}]
  tax_brackets:   [{lower_bound: "0", rate: "0"}, {lower_bound: "30000", rate: "0.1"}]
  tax_after_contributions: true
  contributions:  [{code: social, name: Social security, rate: "0.05", ceiling: "120000"}]
  attendance: {delay_penalty_multiplier: "1", daily_cap_fraction: "0.5", penalize_early_departure: true}

Amounts are decimal strings. JSON numbers are accepted too but strings
avoid float rounding in editors.

USAGE:
  f := factory.NewRuleTableFactory()
  rt, err := f.ParseYAML(data)
  tables, err := f.LoadDir("rules/")

SEE ALSO:
  - engine/ruletable.go: RuleTableVersion and its validation
  - jurisdiction/tables.go: demo documents
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// Number is a decimal written as a string or a bare JSON number.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	if string(data) == "null" {
		*n = ""
		return nil
	}
	*n = Number(data)
	return nil
}

func (n Number) decimal(field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %q is not a decimal", field, string(n))
	}
	return d, nil
}

func numberOf(d decimal.Decimal) Number { return Number(d.String()) }

// RuleTableJSON is the document representation of a rule table.
type RuleTableJSON struct {
	ID                    string             `json:"id" yaml:"id"`
	Version               string             `json:"version" yaml:"version"`
	Jurisdiction          string             `json:"jurisdiction" yaml:"jurisdiction"`
	Currency              string             `json:"currency" yaml:"currency"`
	CurrencyScale         *int32             `json:"currency_scale,omitempty" yaml:"currency_scale,omitempty"`
	EffectiveFrom         string             `json:"effective_from" yaml:"effective_from"`
	EffectiveTo           string             `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
	MinimumWage           MinimumWageJSON    `json:"minimum_wage" yaml:"minimum_wage"`
	FullTimeWeeklyHours   Number             `json:"full_time_weekly_hours" yaml:"full_time_weekly_hours"`
	WeeksPerMonth         Number             `json:"weeks_per_month" yaml:"weeks_per_month"`
	MonthlyWorkingDays    Number             `json:"monthly_working_days" yaml:"monthly_working_days"`
	Limits                LimitsJSON         `json:"limits" yaml:"limits"`
	OvertimeTiers         []OvertimeTierJSON `json:"overtime_tiers" yaml:"overtime_tiers"`
	TaxBrackets           []TaxBracketJSON   `json:"tax_brackets" yaml:"tax_brackets"`
	TaxAfterContributions bool               `json:"tax_after_contributions,omitempty" yaml:"tax_after_contributions,omitempty"`
	Contributions         []ContributionJSON `json:"contributions,omitempty" yaml:"contributions,omitempty"`
	Attendance            AttendanceJSON     `json:"attendance" yaml:"attendance"`
}

// MinimumWageJSON is the monthly floor. AppliesTo defaults to permanent.
type MinimumWageJSON struct {
	Monthly   Number   `json:"monthly" yaml:"monthly"`
	AppliesTo []string `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`
}

// LimitsJSON holds the legal hour limits.
type LimitsJSON struct {
	MaxDailyHours    Number `json:"max_daily_hours" yaml:"max_daily_hours"`
	MaxWeeklyHours   Number `json:"max_weekly_hours" yaml:"max_weekly_hours"`
	MaxOvertimeHours Number `json:"max_overtime_hours,omitempty" yaml:"max_overtime_hours,omitempty"` // 0 = no cap
}

type OvertimeTierJSON struct {
	FromHour   Number `json:"from_hour" yaml:"from_hour"`
	Multiplier Number `json:"multiplier" yaml:"multiplier"`
}

type TaxBracketJSON struct {
	LowerBound Number `json:"lower_bound" yaml:"lower_bound"`
	Rate       Number `json:"rate" yaml:"rate"`
}

type ContributionJSON struct {
	Code    string `json:"code" yaml:"code"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Rate    Number `json:"rate" yaml:"rate"`
	Ceiling Number `json:"ceiling,omitempty" yaml:"ceiling,omitempty"`
}

// AttendanceJSON holds the delay penalty rules.
type AttendanceJSON struct {
	DelayPenaltyMultiplier Number `json:"delay_penalty_multiplier" yaml:"delay_penalty_multiplier"`
	DailyCapFraction       Number `json:"daily_cap_fraction" yaml:"daily_cap_fraction"` // 0 = uncapped
	PenalizeEarlyDeparture bool   `json:"penalize_early_departure,omitempty" yaml:"penalize_early_departure,omitempty"`
}

// =============================================================================
// RULE TABLE FACTORY
// =============================================================================

// RuleTableFactory converts rule table documents to engine values.
type RuleTableFactory struct{}

// NewRuleTableFactory creates a new rule table factory.
func NewRuleTableFactory() *RuleTableFactory {
	return &RuleTableFactory{}
}

// ParseJSON parses a JSON document into a validated rule table.
func (f *RuleTableFactory) ParseJSON(data []byte) (*engine.RuleTableVersion, error) {
	var doc RuleTableJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rule table JSON: %w", err)
	}
	return f.FromJSON(doc)
}

// ParseYAML parses a YAML document into a validated rule table.
func (f *RuleTableFactory) ParseYAML(data []byte) (*engine.RuleTableVersion, error) {
	var doc RuleTableJSON
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rule table YAML: %w", err)
	}
	return f.FromJSON(doc)
}

// ParseFile picks the decoder from the file extension.
func (f *RuleTableFactory) ParseFile(path string) (*engine.RuleTableVersion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return f.ParseJSON(data)
	case ".yaml", ".yml":
		return f.ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported rule table file %s", path)
	}
}

// LoadDir parses every .json, .yaml and .yml file in dir, in name order.
func (f *RuleTableFactory) LoadDir(dir string) ([]*engine.RuleTableVersion, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule table dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tables := make([]*engine.RuleTableVersion, 0, len(names))
	for _, name := range names {
		rt, err := f.ParseFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		tables = append(tables, rt)
	}
	return tables, nil
}

// FromJSON converts a document to a rule table, then normalizes and
// validates it.
func (f *RuleTableFactory) FromJSON(doc RuleTableJSON) (*engine.RuleTableVersion, error) {
	p := &parser{}

	rt := &engine.RuleTableVersion{
		ID:                     doc.ID,
		Version:                doc.Version,
		Jurisdiction:           doc.Jurisdiction,
		Currency:               doc.Currency,
		CurrencyScale:          2,
		EffectiveFrom:          p.date("effective_from", doc.EffectiveFrom),
		FullTimeWeeklyHours:    p.dec("full_time_weekly_hours", doc.FullTimeWeeklyHours),
		WeeksPerMonth:          p.dec("weeks_per_month", doc.WeeksPerMonth),
		MonthlyWorkingDays:     p.dec("monthly_working_days", doc.MonthlyWorkingDays),
		MaxDailyHours:          p.dec("limits.max_daily_hours", doc.Limits.MaxDailyHours),
		MaxWeeklyHours:         p.dec("limits.max_weekly_hours", doc.Limits.MaxWeeklyHours),
		TaxAfterContributions:  doc.TaxAfterContributions,
		PenalizeEarlyDeparture: doc.Attendance.PenalizeEarlyDeparture,
	}
	if doc.CurrencyScale != nil {
		rt.CurrencyScale = *doc.CurrencyScale
	}
	if doc.EffectiveTo != "" {
		to := p.date("effective_to", doc.EffectiveTo)
		rt.EffectiveTo = &to
	}
	rt.MaxOvertimeHoursPerPeriod = p.dec("limits.max_overtime_hours", doc.Limits.MaxOvertimeHours)
	rt.DelayPenaltyMultiplier = p.dec("attendance.delay_penalty_multiplier", doc.Attendance.DelayPenaltyMultiplier)
	rt.DelayPenaltyDailyCapFraction = p.dec("attendance.daily_cap_fraction", doc.Attendance.DailyCapFraction)

	rt.MinimumWage.Monthly = p.dec("minimum_wage.monthly", doc.MinimumWage.Monthly)
	appliesTo := doc.MinimumWage.AppliesTo
	if len(appliesTo) == 0 {
		appliesTo = []string{string(engine.ContractPermanent)}
	}
	for _, c := range appliesTo {
		cat := engine.ContractCategory(c)
		if !cat.Valid() {
			p.fail("minimum_wage.applies_to: unknown category %q", c)
		}
		rt.MinimumWage.AppliesTo = append(rt.MinimumWage.AppliesTo, cat)
	}

	for i, t := range doc.OvertimeTiers {
		rt.OvertimeTiers = append(rt.OvertimeTiers, engine.OvertimeTier{
			FromHour:   p.dec(fmt.Sprintf("overtime_tiers[%d].from_hour", i), t.FromHour),
			Multiplier: p.dec(fmt.Sprintf("overtime_tiers[%d].multiplier", i), t.Multiplier),
		})
	}
	for i, b := range doc.TaxBrackets {
		rt.TaxBrackets = append(rt.TaxBrackets, engine.TaxBracket{
			LowerBound: p.dec(fmt.Sprintf("tax_brackets[%d].lower_bound", i), b.LowerBound),
			Rate:       p.dec(fmt.Sprintf("tax_brackets[%d].rate", i), b.Rate),
		})
	}
	for i, c := range doc.Contributions {
		scheme := engine.ContributionScheme{
			Code: c.Code,
			Name: c.Name,
			Rate: p.dec(fmt.Sprintf("contributions[%d].rate", i), c.Rate),
		}
		if c.Ceiling != "" {
			ceiling := p.dec(fmt.Sprintf("contributions[%d].ceiling", i), c.Ceiling)
			scheme.Ceiling = &ceiling
		}
		rt.Contributions = append(rt.Contributions, scheme)
	}

	if len(p.problems) > 0 {
		return nil, &engine.InvalidRuleTableError{ID: doc.ID, Problems: p.problems}
	}

	rt.Normalize()
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return rt, nil
}

// ToJSON converts a rule table back to its document form.
func (f *RuleTableFactory) ToJSON(rt *engine.RuleTableVersion) RuleTableJSON {
	scale := rt.CurrencyScale
	doc := RuleTableJSON{
		ID:                    rt.ID,
		Version:               rt.Version,
		Jurisdiction:          rt.Jurisdiction,
		Currency:              rt.Currency,
		CurrencyScale:         &scale,
		EffectiveFrom:         rt.EffectiveFrom.Format(dateLayout),
		FullTimeWeeklyHours:   numberOf(rt.FullTimeWeeklyHours),
		WeeksPerMonth:         numberOf(rt.WeeksPerMonth),
		MonthlyWorkingDays:    numberOf(rt.MonthlyWorkingDays),
		TaxAfterContributions: rt.TaxAfterContributions,
		MinimumWage:           MinimumWageJSON{Monthly: numberOf(rt.MinimumWage.Monthly)},
		Limits: LimitsJSON{
			MaxDailyHours:    numberOf(rt.MaxDailyHours),
			MaxWeeklyHours:   numberOf(rt.MaxWeeklyHours),
			MaxOvertimeHours: numberOf(rt.MaxOvertimeHoursPerPeriod),
		},
		Attendance: AttendanceJSON{
			DelayPenaltyMultiplier: numberOf(rt.DelayPenaltyMultiplier),
			DailyCapFraction:       numberOf(rt.DelayPenaltyDailyCapFraction),
			PenalizeEarlyDeparture: rt.PenalizeEarlyDeparture,
		},
	}
	if rt.EffectiveTo != nil {
		doc.EffectiveTo = rt.EffectiveTo.Format(dateLayout)
	}
	for _, c := range rt.MinimumWage.AppliesTo {
		doc.MinimumWage.AppliesTo = append(doc.MinimumWage.AppliesTo, string(c))
	}
	for _, t := range rt.OvertimeTiers {
		doc.OvertimeTiers = append(doc.OvertimeTiers, OvertimeTierJSON{FromHour: numberOf(t.FromHour), Multiplier: numberOf(t.Multiplier)})
	}
	for _, b := range rt.TaxBrackets {
		doc.TaxBrackets = append(doc.TaxBrackets, TaxBracketJSON{LowerBound: numberOf(b.LowerBound), Rate: numberOf(b.Rate)})
	}
	for _, c := range rt.Contributions {
		cj := ContributionJSON{Code: c.Code, Name: c.Name, Rate: numberOf(c.Rate)}
		if c.Ceiling != nil {
			cj.Ceiling = numberOf(*c.Ceiling)
		}
		doc.Contributions = append(doc.Contributions, cj)
	}
	return doc
}

// MarshalJSON renders rt as an indented JSON document.
func (f *RuleTableFactory) MarshalJSON(rt *engine.RuleTableVersion) ([]byte, error) {
	return json.MarshalIndent(f.ToJSON(rt), "", "  ")
}

// =============================================================================
// HELPERS
// =============================================================================

// parser collects every field error instead of stopping at the first.
type parser struct {
	problems []string
}

func (p *parser) fail(format string, args ...any) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

func (p *parser) dec(field string, n Number) decimal.Decimal {
	d, err := n.decimal(field)
	if err != nil {
		p.problems = append(p.problems, err.Error())
	}
	return d
}

func (p *parser) date(field, s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		p.fail("%s: %q is not a YYYY-MM-DD date", field, s)
	}
	return t
}
