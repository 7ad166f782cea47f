package schedule

import (
	"testing"
	"time"

	"labsched/internal/model"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestFixedHolidayRules(t *testing.T) {
	r := NewHolidayResolver(time.Thursday, nil)

	cases := []struct {
		date    string
		holiday bool
	}{
		{"2025-01-02", true},  // first Thursday of January
		{"2025-01-09", false}, // second Thursday
		{"2024-07-04", true},  // July 4th lands on Thursday in 2024
		{"2024-07-11", false},
		{"2024-11-28", true},  // fourth Thursday of November
		{"2024-11-21", false}, // third Thursday
		{"2024-12-26", true},  // last Thursday of December (31-6=25)
		{"2024-12-19", false},
		{"2026-12-31", true}, // Dec 31 2026 is a Thursday
		{"2024-03-07", false},
	}
	for _, tc := range cases {
		got, name := r.IsHoliday(mustDate(t, tc.date))
		if got != tc.holiday {
			t.Errorf("IsHoliday(%s) = %v, want %v", tc.date, got, tc.holiday)
		}
		if got && name != FederalHolidayName {
			t.Errorf("IsHoliday(%s) name = %q, want %q", tc.date, name, FederalHolidayName)
		}
	}
}

func TestFixedRulesRequireMeetingWeekday(t *testing.T) {
	r := NewHolidayResolver(time.Thursday, nil)

	// 2025-07-04 is a Friday; the fixed rule must not fire.
	if got, _ := r.IsHoliday(mustDate(t, "2025-07-04")); got {
		t.Error("July 4th on a Friday should not be a meeting holiday")
	}
}

func TestThanksgivingIgnoresOverrides(t *testing.T) {
	// An override on the same date must not shadow the fixed rule's name.
	overrides := []model.Override{{Date: mustDate(t, "2024-11-28"), Name: "Custom Closure"}}
	r := NewHolidayResolver(time.Thursday, overrides)

	got, name := r.IsHoliday(mustDate(t, "2024-11-28"))
	if !got || name != FederalHolidayName {
		t.Errorf("IsHoliday(2024-11-28) = (%v, %q), want (true, %q)", got, name, FederalHolidayName)
	}
}

func TestOverrideLookup(t *testing.T) {
	// Override dates may carry a time-of-day; they are normalized once at
	// construction.
	retreat := time.Date(2024, time.October, 10, 9, 30, 0, 0, time.UTC)
	r := NewHolidayResolver(time.Thursday, []model.Override{{Date: retreat, Name: "Department Retreat"}})

	got, name := r.IsHoliday(mustDate(t, "2024-10-10"))
	if !got || name != "Department Retreat" {
		t.Errorf("IsHoliday(2024-10-10) = (%v, %q), want override match", got, name)
	}

	if got, _ := r.IsHoliday(mustDate(t, "2024-10-17")); got {
		t.Error("date without override or fixed rule should not be a holiday")
	}
}
