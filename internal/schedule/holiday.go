package schedule

import (
	"time"

	"labsched/internal/model"
)

// HolidayResolver decides whether a candidate meeting date is a non-meeting
// day. Fixed federal rules are checked first; the override list (sheet- or
// feed-sourced) only supplements them and never shadows a fixed rule.
//
// The fixed rules only fire for dates on the configured meeting weekday, so
// e.g. July 4th on a non-meeting day never produces a holiday row.
type HolidayResolver struct {
	weekday   time.Weekday
	overrides map[time.Time]string // keyed by model.Day(date)
}

// FederalHolidayName is the display name used for all fixed-rule holidays.
const FederalHolidayName = "Federal Holiday/BCM observed"

// NewHolidayResolver builds a resolver for the given meeting weekday.
// Override dates are normalized to civil days once, here, rather than on
// every lookup.
func NewHolidayResolver(weekday time.Weekday, overrides []model.Override) *HolidayResolver {
	m := make(map[time.Time]string, len(overrides))
	for _, o := range overrides {
		m[model.Day(o.Date)] = o.Name
	}
	return &HolidayResolver{weekday: weekday, overrides: m}
}

// IsHoliday reports whether date is a holiday and, if so, its display name.
// Rules are evaluated in order; the first match wins.
func (r *HolidayResolver) IsHoliday(date time.Time) (bool, string) {
	date = model.Day(date)
	onMeetingDay := date.Weekday() == r.weekday
	month, day := date.Month(), date.Day()

	if onMeetingDay {
		switch {
		// New Year's: first meeting day of January.
		case month == time.January && day <= 7:
			return true, FederalHolidayName
		// Independence Day: July 4th when it lands on the meeting day.
		case month == time.July && day == 4:
			return true, FederalHolidayName
		// Thanksgiving: fourth occurrence of the meeting day in November.
		case month == time.November && day >= 22 && day <= 28:
			return true, FederalHolidayName
		// Year-end: last meeting day of December, measured against the
		// actual month length rather than a fixed day-of-month.
		case month == time.December && day >= daysInMonth(date.Year(), time.December)-6:
			return true, FederalHolidayName
		}
	}

	if name, ok := r.overrides[date]; ok {
		return true, name
	}
	return false, ""
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
