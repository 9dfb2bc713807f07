package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"
)

// EngineVersion is stamped on every result's provenance.
const EngineVersion = "payroll-engine/1.4.0"

// hashInput is the shape hashed into Provenance.InputHash. It has no
// timestamp.
type hashInput struct {
	Profile          EmployeeCompensationProfile `json:"profile"`
	Period           PayPeriod                   `json:"period"`
	Attendance       []AttendanceRecord          `json:"attendance"`
	Allowances       []PayItem                   `json:"allowances"`
	Bonuses          []PayItem                   `json:"bonuses"`
	EffectiveDate    string                      `json:"effective_date"`
	RuleTableID      string                      `json:"rule_table_id"`
	RuleTableVersion string                      `json:"rule_table_version"`
	Holidays         []string                    `json:"holidays"`
}

// InputHash returns the hex SHA-256 of the RFC 8785 canonical JSON of the
// request, the table identity and the holidays cal places on the period's
// weekdays. Attendance is sorted by date first so record order does not
// change the hash, and every instant is hashed in UTC.
func InputHash(req CalculationRequest, rt *RuleTableVersion, cal HolidayCalendar) (string, error) {
	attendance := make([]AttendanceRecord, len(req.Attendance))
	for i, rec := range req.Attendance {
		attendance[i] = utcRecord(rec)
	}
	sort.SliceStable(attendance, func(i, j int) bool {
		return DateOnly(attendance[i].Date).Before(DateOnly(attendance[j].Date))
	})

	in := hashInput{
		Profile:          req.Profile,
		Period:           req.Period,
		Attendance:       attendance,
		Allowances:       nonNilItems(req.Allowances),
		Bonuses:          nonNilItems(req.Bonuses),
		EffectiveDate:    DateOnly(req.EffectiveDate).Format("2006-01-02"),
		RuleTableID:      rt.ID,
		RuleTableVersion: rt.Version,
		Holidays:         periodHolidays(cal, req.Profile.CompanyID, req.Period),
	}
	in.Profile.HireDate = in.Profile.HireDate.UTC()
	in.Profile.TerminationDate = utcPtr(in.Profile.TerminationDate)

	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal provenance input: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize provenance input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func nonNilItems(items []PayItem) []PayItem {
	if items == nil {
		return []PayItem{}
	}
	return items
}

// periodHolidays lists the weekday holidays in period, the only ones that
// change working-day counts.
func periodHolidays(cal HolidayCalendar, companyID string, period PayPeriod) []string {
	days := []string{}
	if cal == nil {
		return days
	}
	for _, day := range period.Days() {
		if !isWeekend(day) && cal.IsHoliday(companyID, day) {
			days = append(days, day.Format("2006-01-02"))
		}
	}
	return days
}

func utcRecord(rec AttendanceRecord) AttendanceRecord {
	rec.Date = rec.Date.UTC()
	rec.ScheduledStart = utcPtr(rec.ScheduledStart)
	rec.ScheduledEnd = utcPtr(rec.ScheduledEnd)
	rec.ActualStart = utcPtr(rec.ActualStart)
	rec.ActualEnd = utcPtr(rec.ActualEnd)
	return rec
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
