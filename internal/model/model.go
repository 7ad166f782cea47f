package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical on-the-wire date format. Every persisted row
// and every notification uses this exact form; downstream consumers parse
// rows by it.
const DateLayout = "2006-01-02"

// Track identifies which of the recurring meeting formats a slot carries.
type Track string

const (
	// TrackData is a single-presenter data presentation slot.
	TrackData Track = "Data"
	// TrackJournalClub is a paired journal-club presentation slot.
	TrackJournalClub Track = "Journal Club"
	// TrackHoliday marks a skipped slot; the presenter field carries the
	// holiday name instead of people.
	TrackHoliday Track = "Holiday"
)

// ParseTrack maps a persisted type label back to a Track. Labels are exact
// strings; anything else is rejected so malformed rows surface at the parse
// boundary instead of deep inside the engine.
func ParseTrack(s string) (Track, error) {
	switch Track(strings.TrimSpace(s)) {
	case TrackData:
		return TrackData, nil
	case TrackJournalClub:
		return TrackJournalClub, nil
	case TrackHoliday:
		return TrackHoliday, nil
	}
	return "", fmt.Errorf("unknown track label %q", s)
}

// Event is a single scheduled slot: one calendar date, one track, and the
// ordered presenter list for that slot (empty for holidays, where
// HolidayName holds the label instead).
type Event struct {
	// Date is a civil date normalized to midnight UTC. Time-of-day is never
	// meaningful for schedule rows.
	Date time.Time

	Track Track

	// Presenters is ordered and preserved exactly as drawn from the roster.
	// Empty for TrackHoliday.
	Presenters []string

	// HolidayName is set only for TrackHoliday events.
	HolidayName string
}

// PresenterField renders the third row column: comma-space-joined presenter
// names, or the holiday name for holiday rows.
func (e Event) PresenterField() string {
	if e.Track == TrackHoliday {
		return e.HolidayName
	}
	return strings.Join(e.Presenters, ", ")
}

// Row serializes the event as the three-column record shared with the
// notification and invite senders: {date, type label, presenter field}.
func (e Event) Row() [3]string {
	return [3]string{e.Date.Format(DateLayout), string(e.Track), e.PresenterField()}
}

// ParseEvent is the validate boundary for rows coming back from the store.
func ParseEvent(dateStr, trackStr, presenterField string) (Event, error) {
	date, err := ParseDate(dateStr)
	if err != nil {
		return Event{}, err
	}
	track, err := ParseTrack(trackStr)
	if err != nil {
		return Event{}, err
	}
	ev := Event{Date: date, Track: track}
	if track == TrackHoliday {
		ev.HolidayName = strings.TrimSpace(presenterField)
		return ev, nil
	}
	ev.Presenters = SplitPresenters(presenterField)
	return ev, nil
}

// SplitPresenters undoes PresenterField for non-holiday rows. Empty segments
// are dropped.
func SplitPresenters(field string) []string {
	parts := strings.Split(field, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseDate parses a YYYY-MM-DD civil date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Day normalizes any timestamp to its civil date at midnight UTC. Overrides
// sourced from feeds or sheets may carry a time-of-day; comparisons in the
// holiday resolver operate on Day values only.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Roster holds the two independent presenter rotations. Order is the
// rotation order; lengths may differ between tracks.
type Roster struct {
	Data        []string
	JournalClub []string
}

// ForTrack returns the rotation list backing the given track. Holiday has
// no roster.
func (r Roster) ForTrack(t Track) []string {
	switch t {
	case TrackData:
		return r.Data
	case TrackJournalClub:
		return r.JournalClub
	}
	return nil
}

// Override is a supplemental holiday entry: a civil date and the display
// name reported for it.
type Override struct {
	Date time.Time
	Name string
}
