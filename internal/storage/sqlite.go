package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/service"

	_ "github.com/mattn/go-sqlite3"
)

const (
	kindEvents    = "events"
	kindReminders = "reminders"
)

// Storage is the local calendar and reminders store.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seed(); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calendars (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			color TEXT DEFAULT '',
			writable INTEGER DEFAULT 1,
			is_default INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calendars_kind ON calendars(kind)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			title TEXT DEFAULT '',
			location TEXT DEFAULT '',
			color TEXT DEFAULT '',
			organizer TEXT DEFAULT '',
			description TEXT DEFAULT '',
			start_ms INTEGER NOT NULL,
			end_ms INTEGER NOT NULL,
			timezone TEXT DEFAULT '',
			end_timezone TEXT DEFAULT '',
			duration TEXT DEFAULT '',
			all_day INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (calendar_id) REFERENCES calendars(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar ON events(calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_range ON events(start_ms, end_ms)`,
		`CREATE TABLE IF NOT EXISTS event_alarms (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			offset_ms INTEGER NOT NULL,
			fired_at DATETIME,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_alarms_event ON event_alarms(event_id)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			list_id TEXT NOT NULL,
			title TEXT NOT NULL,
			priority INTEGER DEFAULT 0,
			is_completed INTEGER DEFAULT 0,
			start_ms INTEGER,
			due_ms INTEGER,
			completion_ms INTEGER,
			notes TEXT DEFAULT '',
			url TEXT DEFAULT '',
			location TEXT DEFAULT '',
			recurrence_freq INTEGER,
			recurrence_interval INTEGER DEFAULT 0,
			recurrence_end_ms INTEGER,
			rrule TEXT DEFAULT '',
			notified INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (list_id) REFERENCES calendars(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_list ON reminders(list_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(due_ms)`,
		`CREATE TABLE IF NOT EXISTS permissions (
			alias TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// seed creates the default calendar and reminders list on an empty database.
func (s *Storage) seed() error {
	defaults := []struct{ kind, title, color string }{
		{kindEvents, "Calendar", "#1BADF8"},
		{kindReminders, "Reminders", "#FF9500"},
	}
	for _, d := range defaults {
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM calendars WHERE kind = ?`, d.kind).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		if _, err := s.db.Exec(
			`INSERT INTO calendars (id, kind, title, color, writable, is_default) VALUES (?, ?, ?, ?, 1, 1)`,
			uuid.NewString(), d.kind, d.title, d.color,
		); err != nil {
			return err
		}
	}
	return nil
}

// === Calendars ===

const calendarColumns = `id, title, color, writable, is_default`

func scanCalendar(row interface{ Scan(...any) error }) (*domain.Calendar, error) {
	c := &domain.Calendar{}
	if err := row.Scan(&c.ID, &c.Title, &c.Color, &c.Writable, &c.Default); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Storage) listCalendars(ctx context.Context, kind string) ([]domain.Calendar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE kind = ? ORDER BY is_default DESC, created_at, title`,
		kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cals := []domain.Calendar{}
	for rows.Next() {
		c, err := scanCalendar(rows)
		if err != nil {
			return nil, err
		}
		cals = append(cals, *c)
	}
	return cals, rows.Err()
}

func (s *Storage) getCalendar(ctx context.Context, kind, id string) (*domain.Calendar, error) {
	c, err := scanCalendar(s.db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE kind = ? AND id = ?`, kind, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	return c, err
}

func (s *Storage) defaultCalendar(ctx context.Context, kind string) (*domain.Calendar, error) {
	c, err := scanCalendar(s.db.QueryRowContext(ctx,
		`SELECT `+calendarColumns+` FROM calendars WHERE kind = ? AND is_default = 1 LIMIT 1`, kind,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Storage) createCalendar(ctx context.Context, kind string, cal domain.NewCalendar) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendars (id, kind, title, color, writable, is_default) VALUES (?, ?, ?, ?, 1, 0)`,
		id, kind, cal.Title, cal.Color,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Storage) deleteCalendar(ctx context.Context, kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendars WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (s *Storage) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	return s.listCalendars(ctx, kindEvents)
}

func (s *Storage) Calendar(ctx context.Context, id string) (*domain.Calendar, error) {
	return s.getCalendar(ctx, kindEvents, id)
}

func (s *Storage) DefaultCalendar(ctx context.Context) (*domain.Calendar, error) {
	return s.defaultCalendar(ctx, kindEvents)
}

func (s *Storage) CreateCalendar(ctx context.Context, cal domain.NewCalendar) (string, error) {
	return s.createCalendar(ctx, kindEvents, cal)
}

func (s *Storage) DeleteCalendar(ctx context.Context, id string) error {
	return s.deleteCalendar(ctx, kindEvents, id)
}

// SetCalendarWritable marks a calendar read-only or writable, as for a subscribed calendar.
func (s *Storage) SetCalendarWritable(ctx context.Context, id string, writable bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE calendars SET writable = ? WHERE id = ?`, writable, id)
	return err
}

// === Reminder lists ===

func (s *Storage) ReminderLists(ctx context.Context) ([]domain.RemindersList, error) {
	return s.listCalendars(ctx, kindReminders)
}

func (s *Storage) ReminderList(ctx context.Context, id string) (*domain.RemindersList, error) {
	return s.getCalendar(ctx, kindReminders, id)
}

func (s *Storage) DefaultReminderList(ctx context.Context) (*domain.RemindersList, error) {
	return s.defaultCalendar(ctx, kindReminders)
}

func (s *Storage) CreateReminderList(ctx context.Context, list domain.NewCalendar) (string, error) {
	return s.createCalendar(ctx, kindReminders, list)
}

func (s *Storage) DeleteReminderList(ctx context.Context, id string) error {
	return s.deleteCalendar(ctx, kindReminders, id)
}

// === Events ===

const eventColumns = `e.id, e.calendar_id, e.title, e.location, COALESCE(NULLIF(e.color, ''), c.color, ''), e.organizer,
	e.description, e.start_ms, e.end_ms, e.timezone, e.end_timezone, e.duration, e.all_day`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var startMs, endMs int64
	if err := row.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Location, &e.Color, &e.Organizer,
		&e.Description, &startMs, &endMs, &e.Timezone, &e.EndTimezone, &e.Duration, &e.AllDay); err != nil {
		return nil, err
	}
	e.Start = time.UnixMilli(startMs).UTC()
	e.End = time.UnixMilli(endMs).UTC()
	return e, nil
}

// EventsInRange returns the events overlapping [from, to], ordered by start.
func (s *Storage) EventsInRange(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+`
		 FROM events e JOIN calendars c ON c.id = e.calendar_id
		 WHERE e.start_ms <= ? AND e.end_ms >= ?
		 ORDER BY e.start_ms ASC`,
		to.UnixMilli(), from.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range events {
		alarms, err := s.eventAlarms(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Alarms = alarms
	}
	return events, nil
}

func (s *Storage) Event(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events e JOIN calendars c ON c.id = e.calendar_id WHERE e.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, service.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.Alarms, err = s.eventAlarms(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Storage) eventAlarms(ctx context.Context, eventID string) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT offset_ms FROM event_alarms WHERE event_id = ? ORDER BY offset_ms`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alarms []time.Duration
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		alarms = append(alarms, time.Duration(ms)*time.Millisecond)
	}
	return alarms, rows.Err()
}

// InsertEvent stores the event with its alarms in one transaction.
func (s *Storage) InsertEvent(ctx context.Context, e domain.Event) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, calendar_id, title, location, color, organizer, description, start_ms, end_ms, timezone, end_timezone, duration, all_day)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CalendarID, e.Title, e.Location, e.Color, e.Organizer, e.Description,
		e.Start.UnixMilli(), e.End.UnixMilli(), e.Timezone, e.EndTimezone, e.Duration, e.AllDay,
	); err != nil {
		return "", err
	}
	for _, a := range e.Alarms {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_alarms (event_id, offset_ms) VALUES (?, ?)`, e.ID, a.Milliseconds(),
		); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return e.ID, nil
}

// BeginDelete opens a transaction that removals join until Commit.
func (s *Storage) BeginDelete(ctx context.Context) (service.EventBatch, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &deleteBatch{tx: tx}, nil
}

type deleteBatch struct {
	tx *sql.Tx
}

func (b *deleteBatch) Remove(ctx context.Context, id string) error {
	res, err := b.tx.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return service.ErrNotFound
	}
	return nil
}

func (b *deleteBatch) Commit(context.Context) error {
	if err := b.tx.Commit(); err != nil {
		b.tx.Rollback()
		return err
	}
	return nil
}

// === Alarms ===

// DueAlarm is an event alarm whose fire time has passed.
type DueAlarm struct {
	ID     int64
	Event  domain.Event
	FireAt time.Time
}

// ListDueAlarms returns unfired alarms with fire time at or before now.
func (s *Storage) ListDueAlarms(ctx context.Context, now time.Time) ([]DueAlarm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.offset_ms, `+eventColumns+`
		 FROM event_alarms a
		 JOIN events e ON e.id = a.event_id
		 JOIN calendars c ON c.id = e.calendar_id
		 WHERE a.fired_at IS NULL AND e.start_ms - a.offset_ms <= ?
		 ORDER BY e.start_ms - a.offset_ms ASC`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []DueAlarm
	for rows.Next() {
		var (
			d        DueAlarm
			offsetMs int64
			startMs  int64
			endMs    int64
		)
		e := &d.Event
		if err := rows.Scan(&d.ID, &offsetMs, &e.ID, &e.CalendarID, &e.Title, &e.Location, &e.Color, &e.Organizer,
			&e.Description, &startMs, &endMs, &e.Timezone, &e.EndTimezone, &e.Duration, &e.AllDay); err != nil {
			return nil, err
		}
		e.Start = time.UnixMilli(startMs).UTC()
		e.End = time.UnixMilli(endMs).UTC()
		d.FireAt = e.Start.Add(-time.Duration(offsetMs) * time.Millisecond)
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *Storage) MarkAlarmFired(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE event_alarms SET fired_at = ? WHERE id = ?`, at, id)
	return err
}

// === Reminders ===

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeOrNil(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t
}

func (s *Storage) InsertReminder(ctx context.Context, r domain.Reminder) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	var (
		freq     any
		interval int
		endMs    any
		rule     string
	)
	if rec := r.Recurrence; rec != nil {
		freq = int(rec.Frequency)
		interval = rec.Interval
		endMs = msOrNil(rec.End)
		var err error
		if rule, err = rec.RRule(); err != nil {
			return "", fmt.Errorf("render rrule: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, list_id, title, priority, is_completed, start_ms, due_ms, completion_ms, notes, url, location,
			recurrence_freq, recurrence_interval, recurrence_end_ms, rrule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ListID, r.Title, r.Priority, r.IsCompleted, msOrNil(r.Start), msOrNil(r.Due), msOrNil(r.CompletionDate),
		r.Notes, r.URL, r.Location, freq, interval, endMs, rule,
	)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

const reminderColumns = `id, list_id, title, priority, is_completed, start_ms, due_ms, completion_ms, notes, url, location,
	recurrence_freq, recurrence_interval, recurrence_end_ms, rrule`

// StoredReminder is a reminder with its rendered recurrence rule.
type StoredReminder struct {
	domain.Reminder
	RRule string
}

func scanReminder(row interface{ Scan(...any) error }) (*StoredReminder, error) {
	r := &StoredReminder{}
	var (
		startMs, dueMs, completionMs, freq, endMs sql.NullInt64
		interval                                  int
	)
	if err := row.Scan(&r.ID, &r.ListID, &r.Title, &r.Priority, &r.IsCompleted, &startMs, &dueMs, &completionMs,
		&r.Notes, &r.URL, &r.Location, &freq, &interval, &endMs, &r.RRule); err != nil {
		return nil, err
	}
	r.Start = timeOrNil(startMs)
	r.Due = timeOrNil(dueMs)
	r.CompletionDate = timeOrNil(completionMs)
	if freq.Valid {
		r.Recurrence = &domain.Recurrence{
			Frequency: domain.RecurrenceFrequency(freq.Int64),
			Interval:  interval,
			End:       timeOrNil(endMs),
		}
	}
	return r, nil
}

func (s *Storage) GetReminder(ctx context.Context, id string) (*StoredReminder, error) {
	r, err := scanReminder(s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListDueReminders returns open reminders due at or before now that were not yet notified.
func (s *Storage) ListDueReminders(ctx context.Context, now time.Time) ([]*StoredReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE is_completed = 0 AND notified = 0 AND due_ms IS NOT NULL AND due_ms <= ?
		 ORDER BY due_ms ASC`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*StoredReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// AdvanceReminder moves a recurring reminder to its next due date and re-arms it.
func (s *Storage) AdvanceReminder(ctx context.Context, id string, nextDue time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET due_ms = ?, notified = 0 WHERE id = ?`, nextDue.UnixMilli(), id)
	return err
}

func (s *Storage) MarkReminderNotified(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE reminders SET notified = 1 WHERE id = ?`, id)
	return err
}

// === Permissions ===

func (s *Storage) PermissionState(ctx context.Context, alias domain.PermissionAlias) (domain.PermissionState, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM permissions WHERE alias = ?`, string(alias)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	st, err := domain.ParseState(raw)
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

func (s *Storage) SetPermissionState(ctx context.Context, alias domain.PermissionAlias, st domain.PermissionState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permissions (alias, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(alias) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		string(alias), string(st),
	)
	return err
}

// ResetPermissions forgets every stored answer.
func (s *Storage) ResetPermissions(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM permissions`)
	return err
}
