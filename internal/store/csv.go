package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	appLog "labsched/internal/log"
	"labsched/internal/model"
)

// csvStore keeps the rotation state as a directory of CSV files shaped like
// the spreadsheet tabs this workflow started on:
//
//	rotation.csv  "Data rotation","JC rotation"
//	holidays.csv  "Date","Holiday"
//	schedule.csv  "Date","Type","Presenter(s)"
//	emails.csv    "Email"
//
// schedule.csv is created with its header on first append; the others are
// authored by hand and must already exist where required.
type csvStore struct {
	dir string
}

var scheduleHeader = []string{"Date", "Type", "Presenter(s)"}

func openCSV(cfg Config) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("csv store path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &csvStore{dir: dir}, nil
}

func (s *csvStore) Close() error { return nil }

func (s *csvStore) path(name string) string { return filepath.Join(s.dir, name) }

func (s *csvStore) LoadRoster(_ context.Context) (model.Roster, error) {
	rows, err := readCSV(s.path("rotation.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Roster{}, fmt.Errorf("%w: %s", ErrMissingRoster, s.path("rotation.csv"))
		}
		return model.Roster{}, err
	}
	dataCol, jcCol := columnIndex(rows, "Data rotation"), columnIndex(rows, "JC rotation")
	if dataCol < 0 || jcCol < 0 {
		return model.Roster{}, fmt.Errorf("rotation.csv: missing rotation columns")
	}

	var roster model.Roster
	for _, row := range rows[1:] {
		if name := cell(row, dataCol); name != "" {
			roster.Data = append(roster.Data, name)
		}
		if name := cell(row, jcCol); name != "" {
			roster.JournalClub = append(roster.JournalClub, name)
		}
	}
	return roster, nil
}

func (s *csvStore) LoadOverrides(_ context.Context) ([]model.Override, error) {
	rows, err := readCSV(s.path("holidays.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// No override sheet is fine; fixed rules still apply.
			return nil, nil
		}
		return nil, err
	}
	dateCol, nameCol := columnIndex(rows, "Date"), columnIndex(rows, "Holiday")
	if dateCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("holidays.csv: missing Date/Holiday columns")
	}

	var out []model.Override
	for i, row := range rows[1:] {
		dateStr := cell(row, dateCol)
		if dateStr == "" {
			continue
		}
		date, err := model.ParseDate(dateStr)
		if err != nil {
			// A typo in the sheet should not sink the run; the row is just
			// not an override.
			appLog.Warn("skipping unparseable holiday row", "row", i+2, "date", dateStr)
			continue
		}
		out = append(out, model.Override{Date: date, Name: cell(row, nameCol)})
	}
	return out, nil
}

func (s *csvStore) LoadEvents(_ context.Context) ([]model.Event, error) {
	rows, err := readCSV(s.path("schedule.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	events := make([]model.Event, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, fmt.Errorf("schedule.csv row %d: want 3 columns, got %d", i+2, len(row))
		}
		ev, err := model.ParseEvent(row[0], row[1], row[2])
		if err != nil {
			return nil, fmt.Errorf("schedule.csv row %d: %w", i+2, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// AppendEvents rewrites schedule.csv atomically (temp file + rename) with
// the new rows appended, so a failure can never leave a half-written log.
func (s *csvStore) AppendEvents(_ context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	existing, err := readCSV(s.path("schedule.csv"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(existing) == 0 {
		existing = [][]string{scheduleHeader}
	}
	for _, ev := range events {
		row := ev.Row()
		existing = append(existing, row[:])
	}

	tmp, err := os.CreateTemp(s.dir, ".schedule-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(existing); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path("schedule.csv"))
}

func (s *csvStore) LoadAttendees(_ context.Context) ([]string, error) {
	rows, err := readCSV(s.path("emails.csv"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	col := columnIndex(rows, "Email")
	if col < 0 {
		return nil, fmt.Errorf("emails.csv: missing Email column")
	}
	var out []string
	for _, row := range rows[1:] {
		if addr := cell(row, col); addr != "" {
			out = append(out, addr)
		}
	}
	return out, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate ragged hand-edited rows
	return r.ReadAll()
}

func columnIndex(rows [][]string, header string) int {
	if len(rows) == 0 {
		return -1
	}
	for i, h := range rows[0] {
		if strings.TrimSpace(h) == header {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
