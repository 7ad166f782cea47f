package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// Configuration-class failures. These are raised before the extension loop
// starts, so a partial or inconsistent schedule is never produced.
var (
	ErrEmptyRoster = errors.New("rotation roster is empty")
	ErrBadHistory  = errors.New("event log is not strictly ascending by date")
)

// Source provides the read side of the persistence collaborator.
type Source interface {
	LoadRoster(ctx context.Context) (model.Roster, error)
	LoadOverrides(ctx context.Context) ([]model.Override, error)
	// LoadEvents returns the full event log ascending by date; it may be
	// empty on a fresh store.
	LoadEvents(ctx context.Context) ([]model.Event, error)
}

// Sink provides the write side. AppendEvents must be all-or-nothing: either
// the whole batch lands or the log is left untouched.
type Sink interface {
	AppendEvents(ctx context.Context, events []model.Event) error
}

// Config carries the cadence knobs for the engine.
type Config struct {
	// Weekday is the meeting day; all emitted dates fall on it. The
	// zero value is Sunday, so callers set this explicitly (config
	// normalization defaults it to Thursday before it gets here).
	Weekday time.Weekday

	// DataStreak is the number of consecutive data slots between
	// journal-club slots.
	DataStreak int

	// JournalClubPresenters is how many names a journal-club slot draws.
	JournalClubPresenters int

	// Now supplies the current time for empty-log anchoring; tests pin it.
	// Nil means time.Now.
	Now func() time.Time
}

// Engine replays the rotation history and deterministically extends the
// schedule forward. It holds no state across runs: every invocation derives
// the cursor and cycle state from the log from scratch.
type Engine struct {
	src  Source
	sink Sink
	cfg  Config
}

// New constructs an Engine over the given collaborators.
func New(src Source, sink Sink, cfg Config) *Engine {
	if cfg.DataStreak <= 0 {
		cfg.DataStreak = DefaultDataStreak
	}
	if cfg.JournalClubPresenters <= 0 {
		cfg.JournalClubPresenters = 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{src: src, sink: sink, cfg: cfg}
}

// Preview computes the next targetCount events without writing anything.
// Extra overrides (e.g. from subscribed holiday feeds) supplement the
// store's override list.
func (e *Engine) Preview(ctx context.Context, targetCount int, extra []model.Override) ([]model.Event, error) {
	if targetCount <= 0 {
		return nil, nil
	}

	roster, err := e.src.LoadRoster(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if len(roster.Data) == 0 || len(roster.JournalClub) == 0 {
		return nil, ErrEmptyRoster
	}

	overrides, err := e.src.LoadOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("load holiday overrides: %w", err)
	}
	overrides = append(overrides, extra...)

	events, err := e.src.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load event log: %w", err)
	}
	if err := e.validateHistory(events); err != nil {
		return nil, err
	}

	cursor := DeriveCursor(events, roster)
	cycle := DeriveCycleState(events, e.cfg.DataStreak)
	resolver := NewHolidayResolver(e.cfg.Weekday, overrides)

	anchor := model.Day(e.cfg.Now())
	if n := len(events); n > 0 {
		// One day past the last scheduled date, so the alignment step can
		// never re-emit it.
		anchor = events[n-1].Date.AddDate(0, 0, 1)
	}

	appLog.Info("extending schedule",
		"anchor", anchor.Format(model.DateLayout),
		"target_count", targetCount,
		"data_streak", cycle.Streak(),
		"data_next_index", cursor.NextIndex(model.TrackData),
		"jc_next_index", cursor.NextIndex(model.TrackJournalClub),
	)

	return Extend(ExtendParams{
		Anchor:                anchor,
		Weekday:               e.cfg.Weekday,
		TargetCount:           targetCount,
		JournalClubPresenters: e.cfg.JournalClubPresenters,
	}, resolver, cursor, cycle), nil
}

// Generate computes the next targetCount events and appends them to the log
// as a single batch. targetCount <= 0 is a no-op that performs no writes.
func (e *Engine) Generate(ctx context.Context, targetCount int, extra []model.Override) ([]model.Event, error) {
	events, err := e.Preview(ctx, targetCount, extra)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	if err := e.sink.AppendEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("append events: %w", err)
	}
	appLog.Info("schedule extended",
		"count", len(events),
		"first", events[0].Date.Format(model.DateLayout),
		"last", events[len(events)-1].Date.Format(model.DateLayout),
	)
	return events, nil
}

// validateHistory enforces the persisted-log invariant up front: dates must
// be strictly increasing. Weekday misalignment (e.g. a hand-edited row) is
// tolerated with a warning since it cannot corrupt the extension.
func (e *Engine) validateHistory(events []model.Event) error {
	for i, ev := range events {
		if i > 0 && !events[i-1].Date.Before(ev.Date) {
			return fmt.Errorf("%w: %s then %s", ErrBadHistory,
				events[i-1].Date.Format(model.DateLayout), ev.Date.Format(model.DateLayout))
		}
		if ev.Date.Weekday() != e.cfg.Weekday {
			appLog.Warn("logged event is off the meeting weekday",
				"date", ev.Date.Format(model.DateLayout),
				"weekday", ev.Date.Weekday().String(),
			)
		}
	}
	return nil
}
