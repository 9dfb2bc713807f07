/*
Package jurisdiction provides demo rule table documents and contract presets.

The numbers here are DEMO DATA for a fictional jurisdiction ("DEMO",
currency "DMO"). Deployments load their real regulatory tables from
RULE_TABLES_DIR instead. These documents construct JSON and YAML directly
so the package does not import factory.

USAGE:
  doc := jurisdiction.DemoTableJSON("demo-2025", "1.0.0", "2025-01-01")
  rt, err := factory.NewRuleTableFactory().ParseJSON([]byte(doc))
*/
package jurisdiction

import (
	"encoding/json"
	"time"

	"github.com/warp/payroll-engine/engine"
)

// DemoTableJSON returns the demo jurisdiction's rule table as JSON:
// two overtime tiers, three tax brackets applied after contributions, a
// capped pension contribution and an uncapped health contribution.
func DemoTableJSON(id, version, effectiveFrom string) string {
	doc := map[string]interface{}{
		"id":             id,
		"version":        version,
		"jurisdiction":   "DEMO",
		"currency":       "DMO",
		"currency_scale": 2,
		"effective_from": effectiveFrom,
		"minimum_wage": map[string]interface{}{
			"monthly":    "30000",
			"applies_to": []string{"permanent"},
		},
		"full_time_weekly_hours": "40",
		"weeks_per_month":        "4",
		"monthly_working_days":   "22",
		"limits": map[string]interface{}{
			"max_daily_hours":    "12",
			"max_weekly_hours":   "48",
			"max_overtime_hours": "32",
		},
		"overtime_tiers": []map[string]interface{}{
			{"from_hour": "0", "multiplier": "1.25"},
			{"from_hour": "8", "multiplier": "1.5"},
		},
		"tax_brackets": []map[string]interface{}{
			{"lower_bound": "0", "rate": "0"},
			{"lower_bound": "30000", "rate": "0.10"},
			{"lower_bound": "100000", "rate": "0.20"},
		},
		"tax_after_contributions": true,
		"contributions": []map[string]interface{}{
			{"code": "pension", "name": "Pension", "rate": "0.05", "ceiling": "120000"},
			{"code": "health", "name": "Health insurance", "rate": "0.02"},
		},
		"attendance": map[string]interface{}{
			"delay_penalty_multiplier": "1",
			"daily_cap_fraction":       "0.5",
			"penalize_early_departure": true,
		},
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}

// DemoTableH2YAML is the mid-year revision of the demo jurisdiction: a
// higher minimum wage and a third overtime tier from 1 July 2025.
const DemoTableH2YAML = `id: demo-2025-h2
version: "1.1.0"
jurisdiction: DEMO
currency: DMO
currency_scale: 2
effective_from: "2025-07-01"
minimum_wage:
  monthly: "32000"
  applies_to: [permanent, fixed_term]
full_time_weekly_hours: "40"
weeks_per_month: "4"
monthly_working_days: "22"
limits:
  max_daily_hours: "12"
  max_weekly_hours: "48"
  max_overtime_hours: "32"
overtime_tiers:
  - {from_hour: "0", multiplier: "1.25"}
  - {from_hour: "8", multiplier: "1.5"}
  - {from_hour: "20", multiplier: "2"}
tax_brackets:
  - {lower_bound: "0", rate: "0"}
  - {lower_bound: "32000", rate: "0.10"}
  - {lower_bound: "100000", rate: "0.20"}
tax_after_contributions: true
contributions:
  - {code: pension, name: Pension, rate: "0.05", ceiling: "120000"}
  - {code: health, name: Health insurance, rate: "0.02"}
attendance:
  delay_penalty_multiplier: "1"
  daily_cap_fraction: "0.5"
  penalize_early_departure: true
`

// DemoHolidays returns the demo jurisdiction's public holidays for year.
func DemoHolidays(year int) []engine.Holiday {
	day := func(m time.Month, d int) time.Time { return time.Date(year, m, d, 0, 0, 0, 0, time.UTC) }
	return []engine.Holiday{
		{ID: "new-year", Date: day(time.January, 1), Name: "New Year's Day", Recurring: true},
		{ID: "labour-day", Date: day(time.May, 1), Name: "Labour Day", Recurring: true},
		{ID: "independence", Date: day(time.August, 17), Name: "Independence Day", Recurring: true},
		{ID: "christmas", Date: day(time.December, 25), Name: "Christmas Day", Recurring: true},
	}
}
