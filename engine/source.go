package engine

import (
	"context"
	"fmt"
)

// AttendanceSource supplies the attendance records for one employee and
// period. Implementations are read-only.
type AttendanceSource interface {
	AttendanceRecords(ctx context.Context, employeeID EmployeeID, period PayPeriod) ([]AttendanceRecord, error)
}

// ProfileSource supplies compensation profiles.
type ProfileSource interface {
	Profile(ctx context.Context, employeeID EmployeeID) (EmployeeCompensationProfile, error)
}

// HolidaySource supplies a company's holidays, global ones included.
type HolidaySource interface {
	ListHolidays(ctx context.Context, companyID string) ([]Holiday, error)
}

// BuildRequest loads the profile, attendance and holidays for employeeID and
// returns a request effective on the first day of the period. With a nil
// holidays source the request leaves the calendar to the engine.
func BuildRequest(ctx context.Context, profiles ProfileSource, attendance AttendanceSource, holidays HolidaySource, employeeID EmployeeID, period PayPeriod) (CalculationRequest, error) {
	profile, err := profiles.Profile(ctx, employeeID)
	if err != nil {
		return CalculationRequest{}, err
	}
	records, err := attendance.AttendanceRecords(ctx, employeeID, period)
	if err != nil {
		return CalculationRequest{}, err
	}
	req := CalculationRequest{
		Profile:       profile,
		Period:        period,
		Attendance:    records,
		EffectiveDate: period.Start(),
	}
	if holidays != nil {
		list, err := holidays.ListHolidays(ctx, profile.CompanyID)
		if err != nil {
			return CalculationRequest{}, fmt.Errorf("load holidays: %w", err)
		}
		req.Holidays = append([]Holiday{}, list...)
	}
	return req, nil
}
