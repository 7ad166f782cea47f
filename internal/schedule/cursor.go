package schedule

import (
	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// Cursor tracks, per presentation track, the index of the next presenter in
// that track's rotation. It is derived from the event log on every run and
// never persisted; the log stays the single source of truth.
type Cursor struct {
	roster model.Roster
	next   map[model.Track]int
}

// DeriveCursor reconstructs the cursor by scanning the log backward from the
// most recent entry. For each track it locates the last event of that track,
// takes the last-listed presenter, and points the cursor one past that name
// in the rotation.
//
// A track with no history, or whose last presenter no longer appears in the
// rotation (a sheet edit, a renamed member), restarts at index 0. That case
// is a warning, not an error: a recurring automated run must not fail over a
// data-entry mismatch.
func DeriveCursor(events []model.Event, roster model.Roster) *Cursor {
	c := &Cursor{
		roster: roster,
		next:   map[model.Track]int{model.TrackData: 0, model.TrackJournalClub: 0},
	}
	for _, track := range []model.Track{model.TrackData, model.TrackJournalClub} {
		c.next[track] = deriveIndex(events, track, roster.ForTrack(track))
	}
	return c
}

func deriveIndex(events []model.Event, track model.Track, rotation []string) int {
	if len(rotation) == 0 {
		return 0
	}
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Track != track || len(ev.Presenters) == 0 {
			continue
		}
		last := ev.Presenters[len(ev.Presenters)-1]
		for j, name := range rotation {
			if name == last {
				return (j + 1) % len(rotation)
			}
		}
		appLog.Warn("last presenter not found in rotation; restarting from top",
			"track", string(track),
			"presenter", last,
		)
		return 0
	}
	return 0
}

// NextIndex exposes the derived index for a track, mainly for logging and
// tests; Advance is the operational accessor.
func (c *Cursor) NextIndex(track model.Track) int {
	return c.next[track]
}

// Advance returns the presenter at the current index for track and moves the
// index forward by one, wrapping at the rotation length.
func (c *Cursor) Advance(track model.Track) string {
	rotation := c.roster.ForTrack(track)
	if len(rotation) == 0 {
		return ""
	}
	i := c.next[track] % len(rotation)
	c.next[track] = (i + 1) % len(rotation)
	return rotation[i]
}

// AdvanceN draws n presenters in rotation order, wrapping as needed. Used
// for journal-club slots, which consume a pair per meeting.
func (c *Cursor) AdvanceN(track model.Track, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := c.Advance(track)
		if name == "" {
			break
		}
		out = append(out, name)
	}
	return out
}
