/*
ruletable.go - Versioned jurisdiction constants

PURPOSE:
  A RuleTableVersion is an immutable snapshot of every constant the
  calculation depends on: minimum wage, overtime tiers, tax brackets,
  contribution schemes, legal hour limits and attendance penalty rules.
  The engine never reads a "current" table from ambient state; the table is
  resolved per call by a RuleTableProvider and passed explicitly to each
  stage.

RESOLUTION:
  Tables are looked up by effective date. A provider must be total: it
  returns a table or a *RuleTableUnresolvedError, never a silent default.
  When two tables share the same EffectiveFrom, the higher semantic
  Version wins (a re-issued correction).

SEE ALSO:
  - store/memory.go: load-once registry implementing RuleTableProvider
  - factory/ruletable.go: JSON/YAML -> RuleTableVersion
*/
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE TABLE VERSION
// =============================================================================

// TaxBracket applies Rate to the slice of income from LowerBound up to the
// next bracket's LowerBound.
type TaxBracket struct {
	LowerBound decimal.Decimal
	Rate       decimal.Decimal
}

// ContributionScheme is a mandatory social contribution. A nil Ceiling means
// the whole gross is the base.
type ContributionScheme struct {
	Code    string
	Name    string
	Rate    decimal.Decimal
	Ceiling *decimal.Decimal
}

// OvertimeTier pays Multiplier for overtime hours from FromHour up to the
// next tier's FromHour.
type OvertimeTier struct {
	FromHour   decimal.Decimal
	Multiplier decimal.Decimal
}

// MinimumWage is the monthly floor and the contract categories it binds.
type MinimumWage struct {
	Monthly   decimal.Decimal
	AppliesTo []ContractCategory
}

func (m MinimumWage) binds(c ContractCategory) bool {
	for _, cat := range m.AppliesTo {
		if cat == c {
			return true
		}
	}
	return false
}

// RuleTableVersion is immutable once constructed. Slices are sorted by the
// provider at load time and must not be modified afterwards.
type RuleTableVersion struct {
	ID            string
	Version       string // semantic version
	Jurisdiction  string
	Currency      string
	CurrencyScale int32
	EffectiveFrom time.Time
	EffectiveTo   *time.Time

	MinimumWage         MinimumWage
	FullTimeWeeklyHours decimal.Decimal
	WeeksPerMonth       decimal.Decimal
	MonthlyWorkingDays  decimal.Decimal

	MaxDailyHours             decimal.Decimal
	MaxWeeklyHours            decimal.Decimal
	MaxOvertimeHoursPerPeriod decimal.Decimal
	OvertimeTiers             []OvertimeTier

	TaxBrackets           []TaxBracket
	TaxAfterContributions bool
	Contributions         []ContributionScheme

	DelayPenaltyMultiplier       decimal.Decimal
	DelayPenaltyDailyCapFraction decimal.Decimal
	PenalizeEarlyDeparture       bool
}

// AppliesOn reports whether the table is in force on date.
func (rt *RuleTableVersion) AppliesOn(date time.Time) bool {
	date = DateOnly(date)
	if date.Before(DateOnly(rt.EffectiveFrom)) {
		return false
	}
	if rt.EffectiveTo != nil && date.After(DateOnly(*rt.EffectiveTo)) {
		return false
	}
	return true
}

// SemVer parses Version.
func (rt *RuleTableVersion) SemVer() (*semver.Version, error) {
	return semver.NewVersion(rt.Version)
}

// Clone returns a deep copy that shares no slices or pointers with rt.
func (rt *RuleTableVersion) Clone() *RuleTableVersion {
	cp := *rt
	if rt.EffectiveTo != nil {
		to := *rt.EffectiveTo
		cp.EffectiveTo = &to
	}
	cp.MinimumWage.AppliesTo = append([]ContractCategory(nil), rt.MinimumWage.AppliesTo...)
	cp.OvertimeTiers = append([]OvertimeTier(nil), rt.OvertimeTiers...)
	cp.TaxBrackets = append([]TaxBracket(nil), rt.TaxBrackets...)
	cp.Contributions = make([]ContributionScheme, len(rt.Contributions))
	for i, c := range rt.Contributions {
		if c.Ceiling != nil {
			ceiling := *c.Ceiling
			c.Ceiling = &ceiling
		}
		cp.Contributions[i] = c
	}
	return &cp
}

// Normalize sorts brackets and tiers ascending. Call once before sharing.
func (rt *RuleTableVersion) Normalize() {
	sort.SliceStable(rt.TaxBrackets, func(i, j int) bool {
		return rt.TaxBrackets[i].LowerBound.LessThan(rt.TaxBrackets[j].LowerBound)
	})
	sort.SliceStable(rt.OvertimeTiers, func(i, j int) bool {
		return rt.OvertimeTiers[i].FromHour.LessThan(rt.OvertimeTiers[j].FromHour)
	})
}

// Validate checks the table's internal consistency and returns every
// problem found.
func (rt *RuleTableVersion) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if rt.ID == "" {
		add("id is required")
	}
	if _, err := rt.SemVer(); err != nil {
		add("version %q is not a semantic version", rt.Version)
	}
	if rt.EffectiveFrom.IsZero() {
		add("effective_from is required")
	}
	if rt.EffectiveTo != nil && rt.EffectiveTo.Before(rt.EffectiveFrom) {
		add("effective_to before effective_from")
	}
	if rt.CurrencyScale < 0 || rt.CurrencyScale > 4 {
		add("currency_scale %d out of range [0,4]", rt.CurrencyScale)
	}
	if rt.MinimumWage.Monthly.IsNegative() {
		add("minimum wage must not be negative")
	}
	if !rt.WeeksPerMonth.IsPositive() {
		add("weeks_per_month must be positive")
	}
	if !rt.MonthlyWorkingDays.IsPositive() {
		add("monthly_working_days must be positive")
	}
	if !rt.MaxWeeklyHours.IsPositive() || !rt.MaxDailyHours.IsPositive() {
		add("legal hour limits must be positive")
	}
	if rt.MaxOvertimeHoursPerPeriod.IsNegative() {
		add("max_overtime_hours must not be negative")
	}

	if len(rt.OvertimeTiers) == 0 {
		add("at least one overtime tier is required")
	}
	for i, tier := range rt.OvertimeTiers {
		if i == 0 && !tier.FromHour.IsZero() {
			add("first overtime tier must start at hour 0")
		}
		if i > 0 && !tier.FromHour.GreaterThan(rt.OvertimeTiers[i-1].FromHour) {
			add("overtime tier %d does not start above tier %d", i, i-1)
		}
		if tier.Multiplier.LessThan(decimal.NewFromInt(1)) {
			add("overtime tier %d multiplier below 1", i)
		}
	}

	if len(rt.TaxBrackets) == 0 {
		add("at least one tax bracket is required")
	}
	for i, b := range rt.TaxBrackets {
		if i == 0 && !b.LowerBound.IsZero() {
			add("first tax bracket must start at 0")
		}
		if i > 0 && !b.LowerBound.GreaterThan(rt.TaxBrackets[i-1].LowerBound) {
			add("tax bracket %d does not start above bracket %d", i, i-1)
		}
		if b.Rate.IsNegative() || b.Rate.GreaterThan(decimal.NewFromInt(1)) {
			add("tax bracket %d rate out of range [0,1]", i)
		}
	}

	seen := make(map[string]bool)
	for i, c := range rt.Contributions {
		if c.Code == "" {
			add("contribution %d has no code", i)
		}
		if seen[c.Code] {
			add("duplicate contribution code %q", c.Code)
		}
		seen[c.Code] = true
		if c.Rate.IsNegative() || c.Rate.GreaterThan(decimal.NewFromInt(1)) {
			add("contribution %q rate out of range [0,1]", c.Code)
		}
		if c.Ceiling != nil && c.Ceiling.IsNegative() {
			add("contribution %q ceiling must not be negative", c.Code)
		}
	}

	withheld := decimal.Zero
	for _, c := range rt.Contributions {
		withheld = withheld.Add(c.Rate)
	}
	topRate := decimal.Zero
	for _, b := range rt.TaxBrackets {
		topRate = maxDecimal(topRate, b.Rate)
	}
	if withheld.Add(topRate).GreaterThan(decimal.NewFromInt(1)) {
		add("contribution rates plus top tax rate exceed 1, net salary could go negative")
	}

	if rt.DelayPenaltyMultiplier.IsNegative() {
		add("delay_penalty_multiplier must not be negative")
	}
	if rt.DelayPenaltyDailyCapFraction.IsNegative() || rt.DelayPenaltyDailyCapFraction.GreaterThan(decimal.NewFromInt(1)) {
		add("delay_penalty_daily_cap_fraction out of range [0,1]")
	}

	if len(problems) > 0 {
		return &InvalidRuleTableError{ID: rt.ID, Problems: problems}
	}
	return nil
}

// =============================================================================
// PROVIDER
// =============================================================================

// RuleTableProvider resolves the table in force on an effective date. It
// must be total: a table or a *RuleTableUnresolvedError.
type RuleTableProvider interface {
	Resolve(effectiveDate time.Time) (*RuleTableVersion, error)
}

// RuleTableProviderFunc adapts a function to RuleTableProvider.
type RuleTableProviderFunc func(effectiveDate time.Time) (*RuleTableVersion, error)

func (f RuleTableProviderFunc) Resolve(effectiveDate time.Time) (*RuleTableVersion, error) {
	return f(effectiveDate)
}

// Newer reports whether a should win over b when both apply on the same
// date: later EffectiveFrom first, then higher semantic version.
func Newer(a, b *RuleTableVersion) bool {
	af, bf := DateOnly(a.EffectiveFrom), DateOnly(b.EffectiveFrom)
	if !af.Equal(bf) {
		return af.After(bf)
	}
	av, errA := a.SemVer()
	bv, errB := b.SemVer()
	if errA != nil || errB != nil {
		return a.Version > b.Version
	}
	return av.GreaterThan(bv)
}
