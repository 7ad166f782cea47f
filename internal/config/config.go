package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// FeedConfig describes a single subscribed holiday ICS source.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// MeetingConfig holds the cadence and venue settings for the rotation.
type MeetingConfig struct {
	// Weekday is the meeting day, lowercase English name ("thursday").
	Weekday string `yaml:"weekday" json:"weekday"`

	// Timezone is the IANA timezone invites are issued in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataStreak is how many consecutive data slots run between
	// journal-club slots.
	DataStreak int `yaml:"data_streak" json:"data_streak"`

	// JournalClubPresenters is how many names a journal-club slot draws.
	JournalClubPresenters int `yaml:"jc_presenters" json:"jc_presenters"`

	// EventCount is the default number of events per generation run.
	EventCount int `yaml:"event_count" json:"event_count"`

	// Room and Zoom describe the physical and virtual venue.
	Room string `yaml:"room" json:"room"`
	Zoom string `yaml:"zoom" json:"zoom"`

	// Contact is who to reach about scheduling questions.
	Contact string `yaml:"contact" json:"contact"`

	// StartTime / EndTime are HH:MM:SS wall-clock times for invites.
	StartTime string `yaml:"start_time" json:"start_time"`
	EndTime   string `yaml:"end_time" json:"end_time"`
}

// StoreConfig selects and locates the persistence backend.
type StoreConfig struct {
	// Driver is "csv" or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the store directory (csv) or database file (sqlite).
	Path string `yaml:"path" json:"path"`
}

// NotifyConfig configures the Teams-workflow webhook summary.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" json:"webhook_url"`
	WebhookName string `yaml:"webhook_name" json:"webhook_name"`
	// MaxEvents caps how many upcoming rows a summary carries.
	MaxEvents int `yaml:"max_events" json:"max_events"`
}

// InviteConfig configures SMTP delivery of calendar invites. Credentials
// come from the environment (LABSCHED_SMTP_USER / LABSCHED_SMTP_PASSWORD),
// never from this file.
type InviteConfig struct {
	SMTPServer string `yaml:"smtp_server" json:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port" json:"smtp_port"`
	FromName   string `yaml:"from_name" json:"from_name"`
	// BatchSize is how many BCC recipients each message carries.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	Meeting MeetingConfig `yaml:"meeting" json:"meeting"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Invite  InviteConfig  `yaml:"invite" json:"invite"`

	// RefreshCron is a cron-style schedule string used by daemon mode for
	// periodic regenerate+notify runs.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// MinFutureEvents: daemon runs regenerate only when fewer than this
	// many events remain after today.
	MinFutureEvents int `yaml:"min_future_events" json:"min_future_events"`

	// Feeds is the list of subscribed holiday ICS sources.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// FeedCacheDir is where feed HTTP cache metadata and bodies live.
	FeedCacheDir string `yaml:"feed_cache_dir" json:"feed_cache_dir"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:8080",
		Meeting: MeetingConfig{
			Weekday:               "thursday",
			Timezone:              "America/Chicago",
			DataStreak:            3,
			JournalClubPresenters: 2,
			EventCount:            16,
			StartTime:             "12:00:00",
			EndTime:               "13:00:00",
		},
		Store: StoreConfig{
			Driver: "csv",
			Path:   "./var/schedule",
		},
		Notify: NotifyConfig{
			WebhookName: "labsched",
			MaxEvents:   6,
		},
		Invite: InviteConfig{
			SMTPServer: "smtp.gmail.com",
			SMTPPort:   587,
			FromName:   "Lab Meeting Bot",
			BatchSize:  25,
		},
		RefreshCron:     "0 8 * * 1",
		MinFutureEvents: 4,
		Feeds:           []FeedConfig{},
		FeedCacheDir:    "./var/feed-cache",
		BasicAuth:       nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Meeting.Weekday == "" {
		c.Meeting.Weekday = "thursday"
	}
	if c.Meeting.Timezone == "" {
		c.Meeting.Timezone = "America/Chicago"
	}
	if c.Meeting.DataStreak <= 0 {
		c.Meeting.DataStreak = 3
	}
	if c.Meeting.JournalClubPresenters <= 0 {
		c.Meeting.JournalClubPresenters = 2
	}
	if c.Meeting.EventCount <= 0 {
		c.Meeting.EventCount = 16
	}
	if c.Meeting.StartTime == "" {
		c.Meeting.StartTime = "12:00:00"
	}
	if c.Meeting.EndTime == "" {
		c.Meeting.EndTime = "13:00:00"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "csv"
	}
	if c.Store.Path == "" {
		c.Store.Path = "./var/schedule"
	}
	if c.Notify.WebhookName == "" {
		c.Notify.WebhookName = "labsched"
	}
	if c.Notify.MaxEvents <= 0 {
		c.Notify.MaxEvents = 6
	}
	if c.Invite.SMTPPort <= 0 {
		c.Invite.SMTPPort = 587
	}
	if c.Invite.BatchSize <= 0 {
		c.Invite.BatchSize = 25
	}
	if c.Invite.FromName == "" {
		c.Invite.FromName = "Lab Meeting Bot"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 8 * * 1"
	}
	if c.MinFutureEvents <= 0 {
		c.MinFutureEvents = 4
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.FeedCacheDir == "" {
		c.FeedCacheDir = "./var/feed-cache"
	}
}

// Weekday resolves the configured meeting day name to a time.Weekday.
func (c *Config) Weekday() (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(c.Meeting.Weekday))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid meeting weekday %q", c.Meeting.Weekday)
}

// Location resolves the configured IANA timezone, falling back to UTC when
// it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Meeting.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".labsched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	// Rename over the target path.
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the
// package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
