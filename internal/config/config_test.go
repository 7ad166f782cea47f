package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Meeting.Weekday != "thursday" {
		t.Errorf("Weekday = %q", cfg.Meeting.Weekday)
	}
	if cfg.Meeting.DataStreak != 3 || cfg.Meeting.JournalClubPresenters != 2 {
		t.Errorf("cadence defaults = %d/%d", cfg.Meeting.DataStreak, cfg.Meeting.JournalClubPresenters)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config perms = %o, want 600", perm)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Listen = "0.0.0.0:9090"
	cfg.Meeting.Weekday = "monday"
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "/var/lib/labsched/schedule.db"
	cfg.Feeds = []FeedConfig{{ID: "campus", URL: "https://example.edu/holidays.ics", Name: "Campus"}}
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "secret"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Listen != "0.0.0.0:9090" || got.Meeting.Weekday != "monday" {
		t.Errorf("round trip lost fields: listen=%q weekday=%q", got.Listen, got.Meeting.Weekday)
	}
	if got.Store.Driver != "sqlite" {
		t.Errorf("driver = %q", got.Store.Driver)
	}
	if len(got.Feeds) != 1 || got.Feeds[0].ID != "campus" {
		t.Errorf("feeds = %+v", got.Feeds)
	}
	if got.BasicAuth == nil || got.BasicAuth.Username != "admin" {
		t.Errorf("basic auth = %+v", got.BasicAuth)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	if cfg.Meeting.EventCount != 16 {
		t.Errorf("EventCount = %d", cfg.Meeting.EventCount)
	}
	if cfg.Invite.SMTPPort != 587 || cfg.Invite.BatchSize != 25 {
		t.Errorf("invite defaults = %d/%d", cfg.Invite.SMTPPort, cfg.Invite.BatchSize)
	}
	if cfg.RefreshCron == "" || cfg.MinFutureEvents != 4 {
		t.Errorf("daemon defaults = %q/%d", cfg.RefreshCron, cfg.MinFutureEvents)
	}
	if cfg.BasicAuth != nil {
		t.Error("Normalize must not invent credentials")
	}
}

func TestWeekdayResolution(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name string
		want time.Weekday
	}{
		{"thursday", time.Thursday},
		{"Monday", time.Monday},
		{" friday ", time.Friday},
	}
	for _, tc := range cases {
		cfg.Meeting.Weekday = tc.name
		got, err := cfg.Weekday()
		if err != nil {
			t.Errorf("Weekday(%q): %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Weekday(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}

	cfg.Meeting.Weekday = "someday"
	if _, err := cfg.Weekday(); err == nil {
		t.Error("expected error for unknown weekday name")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Meeting.Timezone = "Not/AZone"
	if loc := cfg.Location(); loc != time.UTC {
		t.Errorf("Location() = %v, want UTC", loc)
	}
}
