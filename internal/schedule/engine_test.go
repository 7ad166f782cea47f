package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"labsched/internal/model"
)

// fakeStore is an in-memory Source/Sink for engine tests.
type fakeStore struct {
	roster    model.Roster
	overrides []model.Override
	events    []model.Event

	appendErr   error
	appendCalls int
}

func (f *fakeStore) LoadRoster(context.Context) (model.Roster, error)        { return f.roster, nil }
func (f *fakeStore) LoadOverrides(context.Context) ([]model.Override, error) { return f.overrides, nil }
func (f *fakeStore) LoadEvents(context.Context) ([]model.Event, error)       { return f.events, nil }

func (f *fakeStore) AppendEvents(_ context.Context, events []model.Event) error {
	f.appendCalls++
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, events...)
	return nil
}

func newTestEngine(f *fakeStore) *Engine {
	return New(f, f, Config{
		Weekday:               time.Thursday,
		DataStreak:            3,
		JournalClubPresenters: 2,
		Now:                   func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
}

func TestGenerateZeroTargetMakesNoWrites(t *testing.T) {
	f := &fakeStore{roster: testRoster()}
	e := newTestEngine(f)

	events, err := e.Generate(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("Generate(0): %v", err)
	}
	if len(events) != 0 || f.appendCalls != 0 {
		t.Fatalf("Generate(0) = %d events, %d writes; want none", len(events), f.appendCalls)
	}
}

func TestGenerateAppendsWholeBatch(t *testing.T) {
	f := &fakeStore{roster: testRoster()}
	e := newTestEngine(f)

	events, err := e.Generate(context.Background(), 4, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(events) != 4 || f.appendCalls != 1 {
		t.Fatalf("got %d events over %d writes, want 4 over exactly 1", len(events), f.appendCalls)
	}
	if len(f.events) != 4 {
		t.Fatalf("store holds %d events, want 4", len(f.events))
	}
}

func TestGenerateAnchorsPastLastEvent(t *testing.T) {
	f := &fakeStore{
		roster: testRoster(),
		events: []model.Event{
			{Date: mustDate(t, "2024-03-07"), Track: model.TrackData, Presenters: []string{"Alice"}},
		},
	}
	e := newTestEngine(f)

	events, err := e.Generate(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !events[0].Date.Equal(mustDate(t, "2024-03-14")) {
		t.Fatalf("first new slot = %s, want 2024-03-14 (never re-emit the last date)",
			events[0].Date.Format(model.DateLayout))
	}
}

func TestPreviewWritesNothing(t *testing.T) {
	f := &fakeStore{roster: testRoster()}
	e := newTestEngine(f)

	if _, err := e.Preview(context.Background(), 8, nil); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if f.appendCalls != 0 {
		t.Fatalf("Preview made %d writes", f.appendCalls)
	}
}

func TestEmptyRosterFailsBeforeLoop(t *testing.T) {
	f := &fakeStore{roster: model.Roster{Data: []string{"Alice"}}}
	e := newTestEngine(f)

	_, err := e.Generate(context.Background(), 4, nil)
	if !errors.Is(err, ErrEmptyRoster) {
		t.Fatalf("err = %v, want ErrEmptyRoster", err)
	}
	if f.appendCalls != 0 {
		t.Fatal("failed run must not write")
	}
}

func TestNonAscendingHistoryFailsBeforeLoop(t *testing.T) {
	f := &fakeStore{
		roster: testRoster(),
		events: []model.Event{
			{Date: mustDate(t, "2024-03-14"), Track: model.TrackData, Presenters: []string{"Alice"}},
			{Date: mustDate(t, "2024-03-07"), Track: model.TrackData, Presenters: []string{"Bob"}},
		},
	}
	e := newTestEngine(f)

	_, err := e.Preview(context.Background(), 4, nil)
	if !errors.Is(err, ErrBadHistory) {
		t.Fatalf("err = %v, want ErrBadHistory", err)
	}
}

func TestAppendFailurePropagates(t *testing.T) {
	sinkErr := errors.New("disk gone")
	f := &fakeStore{roster: testRoster(), appendErr: sinkErr}
	e := newTestEngine(f)

	_, err := e.Generate(context.Background(), 2, nil)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("err = %v, want wrapped sink error", err)
	}
	if len(f.events) != 0 {
		t.Fatal("failed append must leave the log untouched")
	}
}

func TestExtraOverridesSupplementStoreOverrides(t *testing.T) {
	f := &fakeStore{roster: testRoster()}
	e := newTestEngine(f)

	extra := []model.Override{{Date: mustDate(t, "2024-03-07"), Name: "Core Facility Closure"}}
	events, err := e.Preview(context.Background(), 1, extra)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if events[0].Track != model.TrackHoliday || events[0].HolidayName != "Core Facility Closure" {
		t.Fatalf("first slot = %+v, want feed-sourced holiday", events[0])
	}
}
