package schedule

import (
	"time"

	"labsched/internal/model"
)

// ExtendParams bundles the knobs for one extension run.
type ExtendParams struct {
	// Anchor is the first candidate date. Callers supply one day past the
	// last scheduled date so the most recent event is never re-emitted.
	Anchor time.Time

	// Weekday is the configured meeting day.
	Weekday time.Weekday

	// TargetCount is the number of events to emit. Holiday rows count
	// toward it, matching the long-standing behavior of the schedule.
	TargetCount int

	// JournalClubPresenters is how many names a journal-club slot draws.
	JournalClubPresenters int
}

// Extend walks forward one slot at a time and emits exactly
// params.TargetCount events: it aligns the anchor to the next occurrence of
// the meeting weekday, resolves holiday status, and either records a holiday
// row or asks the cycle state for a track and draws presenter(s) from the
// cursor. The anchor then advances a full week.
//
// The loop terminates because the anchor strictly advances every iteration.
// Nothing is revised after emission and nothing is written here; the caller
// owns persistence of the returned batch.
func Extend(params ExtendParams, resolver *HolidayResolver, cursor *Cursor, cycle *CycleState) []model.Event {
	if params.TargetCount <= 0 {
		return nil
	}
	jcCount := params.JournalClubPresenters
	if jcCount <= 0 {
		jcCount = 2
	}

	events := make([]model.Event, 0, params.TargetCount)
	current := model.Day(params.Anchor)

	for len(events) < params.TargetCount {
		current = nextWeekdayOnOrAfter(current, params.Weekday)

		if holiday, name := resolver.IsHoliday(current); holiday {
			events = append(events, model.Event{
				Date:        current,
				Track:       model.TrackHoliday,
				HolidayName: name,
			})
			current = current.AddDate(0, 0, 7)
			continue
		}

		ev := model.Event{Date: current}
		switch cycle.Next() {
		case model.TrackData:
			ev.Track = model.TrackData
			ev.Presenters = []string{cursor.Advance(model.TrackData)}
		case model.TrackJournalClub:
			ev.Track = model.TrackJournalClub
			ev.Presenters = cursor.AdvanceN(model.TrackJournalClub, jcCount)
		}
		events = append(events, ev)
		current = current.AddDate(0, 0, 7)
	}

	return events
}

// nextWeekdayOnOrAfter returns t itself when it already falls on the target
// weekday, otherwise the next such date.
func nextWeekdayOnOrAfter(t time.Time, weekday time.Weekday) time.Time {
	ahead := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, ahead)
}
