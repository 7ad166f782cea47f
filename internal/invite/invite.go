// Package invite emails calendar invites for upcoming meetings. Regular
// slots get an iCalendar REQUEST attached over SMTP; holiday slots get a
// plain "no meeting" note instead. Recipients are BCC'd in batches to stay
// under relay recipient limits, with the batches paced by a rate limiter.
package invite

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// Environment variables holding SMTP credentials. They are read at send
// time so a daemon picks up rotation without restart.
const (
	EnvSMTPUser     = "LABSCHED_SMTP_USER"
	EnvSMTPPassword = "LABSCHED_SMTP_PASSWORD"
)

// Config carries delivery and venue settings.
type Config struct {
	SMTPServer string
	SMTPPort   int
	FromName   string

	// BatchSize is how many BCC recipients each message carries.
	BatchSize int

	Room    string
	Zoom    string
	Contact string

	// Location is the meeting timezone; StartTime/EndTime are HH:MM:SS
	// wall-clock times in it.
	Location  *time.Location
	StartTime string
	EndTime   string
}

// sendFunc matches smtp.SendMail; tests substitute a recorder.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends invites and holiday notes.
type Mailer struct {
	cfg     Config
	limiter *rate.Limiter
	send    sendFunc
}

// NewMailer builds a Mailer. Batches are paced at one every two seconds,
// which keeps bulk sends under common relay throttling.
func NewMailer(cfg Config) *Mailer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Mailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		send:    smtp.SendMail,
	}
}

// SelectEvent picks the event to announce. With auto set, it is the event
// exactly seven days out (the weekly automation window); otherwise the next
// event strictly after today. ok is false when no event qualifies.
func SelectEvent(events []model.Event, today time.Time, auto bool) (model.Event, bool) {
	today = model.Day(today)
	if auto {
		target := today.AddDate(0, 0, 7)
		for _, ev := range events {
			if ev.Date.Equal(target) {
				return ev, true
			}
		}
		return model.Event{}, false
	}
	for _, ev := range events {
		if ev.Date.After(today) {
			return ev, true
		}
	}
	return model.Event{}, false
}

// Send dispatches the appropriate mail for ev to all recipients.
func (m *Mailer) Send(ctx context.Context, ev model.Event, recipients []string) error {
	if len(recipients) == 0 {
		return errors.New("no recipients")
	}
	sender := os.Getenv(EnvSMTPUser)
	password := os.Getenv(EnvSMTPPassword)
	if sender == "" || password == "" {
		return fmt.Errorf("missing SMTP credentials in %s/%s", EnvSMTPUser, EnvSMTPPassword)
	}

	var subject string
	var body []byte
	var err error
	if ev.Track == model.TrackHoliday {
		subject = fmt.Sprintf("[Lab Meeting]: No lab meeting on %s", ev.Date.Format("Monday, January 02"))
		body = m.holidayMessage(ev, sender, subject)
	} else {
		subject = fmt.Sprintf("[Lab Meeting]: %s | %s", ev.PresenterField(), ev.Track)
		body, err = m.inviteMessage(ev, sender, subject, recipients)
		if err != nil {
			return err
		}
	}

	auth := smtp.PlainAuth("", sender, password, m.cfg.SMTPServer)
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPServer, m.cfg.SMTPPort)

	batches := chunk(recipients, m.cfg.BatchSize)
	for i, batch := range batches {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		appLog.Info("sending invite batch",
			"batch", i+1, "batches", len(batches), "recipients", len(batch), "subject", subject)
		if err := m.send(addr, auth, sender, batch, body); err != nil {
			return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}
	}
	return nil
}

// inviteMessage builds a multipart MIME message carrying a text body and a
// text/calendar REQUEST part.
func (m *Mailer) inviteMessage(ev model.Event, sender, subject string, recipients []string) ([]byte, error) {
	start, err := m.slotTime(ev.Date, m.cfg.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	end, err := m.slotTime(ev.Date, m.cfg.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}

	description := m.description(ev)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodRequest)
	cal.SetProductId("-//labsched//Lab Meeting Scheduler//EN")

	ve := cal.AddEvent(uuid.NewString())
	ve.SetDtStampTime(time.Now().UTC())
	ve.SetStartAt(start)
	ve.SetEndAt(end)
	ve.SetSummary(subject)
	ve.SetLocation(m.cfg.Room + ", " + m.cfg.Zoom)
	ve.SetDescription(description)
	ve.SetOrganizer("mailto:"+sender, ical.WithCN(m.cfg.FromName))
	for _, addr := range recipients {
		ve.AddAttendee(addr,
			ical.ParticipationRoleReqParticipant,
			ical.WithRSVP(true),
		)
	}

	const boundary = "labsched-invite-boundary"
	var b strings.Builder
	writeHeaders(&b, m.cfg.FromName, sender, subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Class: urn:content-classes:calendarmessage\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(description)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	fmt.Fprintf(&b, "Content-Type: text/calendar; charset=\"utf-8\"; method=REQUEST\r\n")
	fmt.Fprintf(&b, "Content-Disposition: inline; filename=\"invite.ics\"\r\n\r\n")
	b.WriteString(cal.Serialize())
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String()), nil
}

// holidayMessage is a plain-text note; there is nothing to put on a
// calendar for a skipped week.
func (m *Mailer) holidayMessage(ev model.Event, sender, subject string) []byte {
	var b strings.Builder
	writeHeaders(&b, m.cfg.FromName, sender, subject)
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(&b, "Hi Lab,\r\n\r\n")
	fmt.Fprintf(&b, "Just a reminder: we will not have lab meeting on %s due to %s.\r\n\r\n",
		ev.Date.Format("Monday, January 02"), ev.HolidayName)
	fmt.Fprintf(&b, "If you have any questions regarding scheduling, let %s know.\r\n\r\n", m.cfg.Contact)
	fmt.Fprintf(&b, "Best,\r\n%s\r\n", m.cfg.FromName)
	return []byte(b.String())
}

func (m *Mailer) description(ev model.Event) string {
	what := "data"
	if ev.Track == model.TrackJournalClub {
		what = "journal club articles"
	}
	return fmt.Sprintf(
		"Hi Lab,\r\n\r\n%s will be presenting %s at our next lab meeting.\r\n\r\n"+
			"Meeting will be held in %s and virtually at %s.\r\n\r\n"+
			"If you have any questions regarding scheduling, let %s know.\r\n\r\nBest,\r\n%s",
		ev.PresenterField(), what, m.cfg.Room, m.cfg.Zoom, m.cfg.Contact, m.cfg.FromName)
}

// writeHeaders writes the common envelope headers. Recipients are BCC'd:
// the To header names the sender itself while the SMTP envelope carries the
// real recipient batch.
func writeHeaders(b *strings.Builder, fromName, sender, subject string) {
	fmt.Fprintf(b, "From: %s <%s>\r\n", fromName, sender)
	fmt.Fprintf(b, "To: %s\r\n", sender)
	fmt.Fprintf(b, "Subject: %s\r\n", subject)
	fmt.Fprintf(b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(b, "Message-ID: <%s@labsched>\r\n", uuid.NewString())
}

// slotTime combines the event's civil date with an HH:MM:SS wall-clock time
// in the meeting timezone.
func (m *Mailer) slotTime(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), t.Second(), 0, m.cfg.Location), nil
}

func chunk(list []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(list); start += size {
		end := start + size
		if end > len(list) {
			end = len(list)
		}
		out = append(out, list[start:end])
	}
	return out
}
