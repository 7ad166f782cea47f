// Package store provides the persistence collaborators behind the schedule
// engine: the rotation roster, the holiday override list, the attendee list,
// and the append-only event log.
//
// Two backends exist:
//   - "csv": a directory of sheet-shaped CSV files, matching the original
//     spreadsheet workflow column for column
//   - "sqlite": a single SQLite database file
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"labsched/internal/model"
)

// Sentinel for stores opened with a driver this build does not know.
var ErrUnknownDriver = errors.New("unknown store driver")

// ErrMissingRoster is returned when the rotation source does not exist.
// Unlike the schedule log (created on first append), the roster is authored
// by people and cannot be bootstrapped.
var ErrMissingRoster = errors.New("rotation roster not found")

// Config selects and locates a backend.
type Config struct {
	// Driver is "csv" or "sqlite".
	Driver string
	// Path is the store directory (csv) or the database file (sqlite).
	Path string
}

// Store is the persistence API consumed by the engine and the senders.
// AppendEvents is all-or-nothing: either the whole batch lands or the log
// is untouched.
type Store interface {
	LoadRoster(ctx context.Context) (model.Roster, error)
	LoadOverrides(ctx context.Context) ([]model.Override, error)
	LoadEvents(ctx context.Context) ([]model.Event, error)
	AppendEvents(ctx context.Context, events []model.Event) error

	// LoadAttendees returns the invite recipient list. May be empty.
	LoadAttendees(ctx context.Context) ([]string, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "csv":
		return openCSV(cfg)
	case "sqlite", "sqlite3":
		return openSQLite(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
