// Package notify posts upcoming-schedule summaries to a Teams workflow
// webhook. The payload is deliberately flat so the receiving Power Automate
// flow can parse it without nested adaptive-card handling.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// Config carries webhook and venue settings for the summary.
type Config struct {
	WebhookURL  string
	WebhookName string

	// MaxEvents caps how many upcoming rows the summary carries.
	MaxEvents int

	// Room and Zoom are appended to the first substantive line so the
	// location shows up once per summary, not once per row.
	Room string
	Zoom string
}

// Sender posts schedule summaries.
type Sender struct {
	cfg    Config
	client *http.Client
}

// payload is the flat JSON body the workflow expects.
type payload struct {
	Title       string `json:"title"`
	MessageList string `json:"message_list"`
	Sender      string `json:"sender"`
	DateSent    string `json:"date_sent"`
}

// NewSender builds a Sender. The webhook URL is required.
func NewSender(cfg Config) (*Sender, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, errors.New("webhook URL is required")
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = 6
	}
	return &Sender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Upcoming filters events to those strictly after today and caps the result
// at max entries. Events must already be ascending by date.
func Upcoming(events []model.Event, today time.Time, max int) []model.Event {
	today = model.Day(today)
	out := make([]model.Event, 0, max)
	for _, ev := range events {
		if !ev.Date.After(today) {
			continue
		}
		out = append(out, ev)
		if len(out) == max {
			break
		}
	}
	return out
}

// Send renders the given events and posts the summary. A non-2xx response
// is a failure; the webhook receiver does not retry on our behalf.
func (s *Sender) Send(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return errors.New("no upcoming events to announce")
	}

	body := payload{
		Title:       "Upcoming Lab Meeting Schedule",
		MessageList: s.formatLines(events),
		Sender:      s.cfg.WebhookName,
		DateSent:    time.Now().Format(model.DateLayout),
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook post: unexpected status %s", resp.Status)
	}
	appLog.Info("schedule summary posted", "events", len(events))
	return nil
}

// formatLines renders one line per event. Holiday rows are flagged in red;
// the first substantive row carries the room and zoom link.
func (s *Sender) formatLines(events []model.Event) string {
	lines := make([]string, 0, len(events))
	first := true

	for _, ev := range events {
		date := ev.Date.Format(model.DateLayout)
		if ev.Track == model.TrackHoliday {
			lines = append(lines, fmt.Sprintf(
				"<strong>%s</strong> <font color='red'>%s - %s</font>",
				date, ev.Track, ev.HolidayName))
			continue
		}

		line := fmt.Sprintf("<strong>%s</strong> %s | %s", date, ev.PresenterField(), ev.Track)
		if first {
			line += fmt.Sprintf(" (location <strong>%s</strong> and <a href='%s'>Meeting Link</a>)",
				s.cfg.Room, s.cfg.Zoom)
			first = false
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n\n")
}
