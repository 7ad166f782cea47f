package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"labsched/internal/model"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func sampleEvents(t *testing.T) []model.Event {
	return []model.Event{
		{Date: date(t, "2024-03-07"), Track: model.TrackData, Presenters: []string{"Alice"}},
		{Date: date(t, "2024-03-14"), Track: model.TrackHoliday, HolidayName: "Spring Break"},
		{Date: date(t, "2024-03-21"), Track: model.TrackJournalClub, Presenters: []string{"Eve", "Frank"}},
	}
}

func TestUpcomingFiltersAndCaps(t *testing.T) {
	events := sampleEvents(t)

	got := Upcoming(events, date(t, "2024-03-07"), 5)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2 (today's event excluded)", len(got))
	}
	if got := Upcoming(events, date(t, "2024-03-01"), 2); len(got) != 2 {
		t.Fatalf("cap not applied: %d events", len(got))
	}
	if got := Upcoming(events, date(t, "2024-04-01"), 5); len(got) != 0 {
		t.Fatalf("stale schedule produced %d events", len(got))
	}
}

func TestSendPostsWorkflowPayload(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSender(Config{
		WebhookURL:  srv.URL,
		WebhookName: "labsched",
		Room:        "Room 541",
		Zoom:        "https://example.org/zoom",
	})
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	if err := s.Send(context.Background(), sampleEvents(t)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if received["title"] != "Upcoming Lab Meeting Schedule" {
		t.Errorf("title = %q", received["title"])
	}
	if received["sender"] != "labsched" {
		t.Errorf("sender = %q", received["sender"])
	}
	msg := received["message_list"]
	// The first substantive line carries the venue exactly once.
	if !strings.Contains(msg, "Room 541") || strings.Count(msg, "Room 541") != 1 {
		t.Errorf("venue missing or repeated in %q", msg)
	}
	// Holiday rows are flagged.
	if !strings.Contains(msg, "Spring Break") || !strings.Contains(msg, "color='red'") {
		t.Errorf("holiday line not flagged in %q", msg)
	}
}

func TestSendRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "workflow disabled", http.StatusForbidden)
	}))
	defer srv.Close()

	s, _ := NewSender(Config{WebhookURL: srv.URL, WebhookName: "labsched"})
	if err := s.Send(context.Background(), sampleEvents(t)); err == nil {
		t.Fatal("expected error on 403 response")
	}
}

func TestSendRequiresEvents(t *testing.T) {
	s, _ := NewSender(Config{WebhookURL: "http://localhost:0", WebhookName: "x"})
	if err := s.Send(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty event list")
	}
}
