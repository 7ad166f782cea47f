package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labsched/internal/config"
	"labsched/internal/model"
	"labsched/internal/schedule"
)

// fakeStore serves canned schedule data for handler tests.
type fakeStore struct {
	roster model.Roster
	events []model.Event
}

func (f *fakeStore) LoadRoster(context.Context) (model.Roster, error) { return f.roster, nil }
func (f *fakeStore) LoadOverrides(context.Context) ([]model.Override, error) {
	return nil, nil
}
func (f *fakeStore) LoadEvents(context.Context) ([]model.Event, error) { return f.events, nil }
func (f *fakeStore) AppendEvents(context.Context, []model.Event) error { return nil }
func (f *fakeStore) LoadAttendees(context.Context) ([]string, error)   { return nil, nil }
func (f *fakeStore) Close() error                                      { return nil }

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	// Three Thursdays around the pinned "today" of 2024-03-01.
	st := &fakeStore{
		roster: model.Roster{
			Data:        []string{"Alice", "Bob"},
			JournalClub: []string{"Eve", "Frank"},
		},
		events: []model.Event{
			{Date: time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), Track: model.TrackData, Presenters: []string{"Alice"}},
			{Date: time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC), Track: model.TrackData, Presenters: []string{"Bob"}},
			{Date: time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC), Track: model.TrackData, Presenters: []string{"Alice"}},
		},
	}
	engine := schedule.New(st, st, schedule.Config{
		Weekday:               time.Thursday,
		DataStreak:            3,
		JournalClubPresenters: 2,
	})
	return NewServer(cfg, st, engine)
}

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Normalize()
	return cfg
}

func TestHealthIsAlwaysOpen(t *testing.T) {
	cfg := baseConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	srv := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("health body = %q", rec.Body.String())
	}
}

func TestScheduleEndpointReturnsUpcoming(t *testing.T) {
	srv := newTestServer(t, baseConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule?count=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Events []struct {
			Date  string `json:"date"`
			Track string `json:"track"`
		} `json:"events"`
		Remaining int `json:"remaining_future_events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Only the far-future event is strictly after today.
	if len(resp.Events) != 1 {
		t.Fatalf("got %d events: %+v", len(resp.Events), resp.Events)
	}
	if resp.Events[0].Date != "2099-12-31" {
		t.Errorf("date = %s", resp.Events[0].Date)
	}
	if resp.Remaining != 1 {
		t.Errorf("remaining = %d", resp.Remaining)
	}
}

func TestPreviewEndpointDoesNotWrite(t *testing.T) {
	srv := newTestServer(t, baseConfig())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview?count=4", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count  int `json:"count"`
		Events []struct {
			Date string `json:"date"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 4 || len(resp.Events) != 4 {
		t.Fatalf("count = %d, events = %d", resp.Count, len(resp.Events))
	}
}

func TestBasicAuthGuardsAPI(t *testing.T) {
	cfg := baseConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	srv := newTestServer(t, cfg)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad-password status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/schedule", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", rec.Code)
	}
}

func TestEmptyCredentialsDisableAuth(t *testing.T) {
	cfg := baseConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: ""}
	srv := newTestServer(t, cfg)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
