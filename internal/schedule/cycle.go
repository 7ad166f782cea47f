package schedule

import "labsched/internal/model"

// DefaultDataStreak is the number of consecutive data slots between
// journal-club slots.
const DefaultDataStreak = 3

// CycleState decides which track the next non-holiday slot carries. The
// cadence is streak-based: after streakLen consecutive data slots the next
// substantive slot is a journal club, and the streak resets. Holidays pass
// through without touching the streak.
//
// The cadence depends only on the sequence of event types in the log, never
// on per-presenter date stamps, so a malformed date in the rotation sheet
// cannot skew it.
type CycleState struct {
	streak    int
	streakLen int
}

// DeriveCycleState reconstructs the streak by scanning the log backward from
// the most recent entry, counting data events until a journal-club event (or
// the start of the log) is reached. Holidays are skipped.
func DeriveCycleState(events []model.Event, streakLen int) *CycleState {
	if streakLen <= 0 {
		streakLen = DefaultDataStreak
	}
	streak := 0
	for i := len(events) - 1; i >= 0; i-- {
		switch events[i].Track {
		case model.TrackJournalClub:
			return &CycleState{streak: streak, streakLen: streakLen}
		case model.TrackData:
			streak++
		}
	}
	return &CycleState{streak: streak, streakLen: streakLen}
}

// Streak exposes the current consecutive-data count.
func (s *CycleState) Streak() int { return s.streak }

// Next returns the track for the upcoming non-holiday slot and advances the
// state. Callers must invoke Next exactly once per substantive slot emitted.
func (s *CycleState) Next() model.Track {
	if s.streak < s.streakLen {
		s.streak++
		return model.TrackData
	}
	s.streak = 0
	return model.TrackJournalClub
}
