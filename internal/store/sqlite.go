package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"labsched/internal/model"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps everything in one database file. Rotation order is the
// pos column; the schedule table is the append-only event log.
type sqliteStore struct {
	db *sql.DB
}

func openSQLite(cfg Config) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers; the engine is
	// single-writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadRoster(ctx context.Context) (model.Roster, error) {
	var roster model.Roster
	rows, err := s.db.QueryContext(ctx,
		`SELECT track, name FROM rotation ORDER BY track, pos`)
	if err != nil {
		return roster, err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var trackStr, name string
		if err := rows.Scan(&trackStr, &name); err != nil {
			return roster, err
		}
		found = true
		switch model.Track(trackStr) {
		case model.TrackData:
			roster.Data = append(roster.Data, name)
		case model.TrackJournalClub:
			roster.JournalClub = append(roster.JournalClub, name)
		}
	}
	if err := rows.Err(); err != nil {
		return roster, err
	}
	if !found {
		return roster, ErrMissingRoster
	}
	return roster, nil
}

func (s *sqliteStore) LoadOverrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, name FROM holidays ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Override
	for rows.Next() {
		var dateStr, name string
		if err := rows.Scan(&dateStr, &name); err != nil {
			return nil, err
		}
		date, err := model.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("holidays table: %w", err)
		}
		out = append(out, model.Override{Date: date, Name: name})
	}
	return out, rows.Err()
}

func (s *sqliteStore) LoadEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, type, presenters FROM schedule ORDER BY date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var dateStr, trackStr, presenters string
		if err := rows.Scan(&dateStr, &trackStr, &presenters); err != nil {
			return nil, err
		}
		ev, err := model.ParseEvent(dateStr, trackStr, presenters)
		if err != nil {
			return nil, fmt.Errorf("schedule table: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// AppendEvents inserts the batch in one transaction; the log is either
// extended by the whole batch or not at all.
func (s *sqliteStore) AppendEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, ev := range events {
		row := ev.Row()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule(date, type, presenters) VALUES(?,?,?)`,
			row[0], row[1], row[2],
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadAttendees(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM attendees ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}
