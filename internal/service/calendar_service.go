package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
)

// DefaultEventLength is used when an event is created without an end date.
const DefaultEventLength = time.Hour

// CalendarService performs calendar and event operations against a CalendarStore.
type CalendarService struct {
	store  CalendarStore
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewCalendarService creates a new calendar service. Events created without a
// start date start now in loc.
func NewCalendarService(store CalendarStore, loc *time.Location, logger *slog.Logger) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarService{store: store, loc: loc, logger: logger, now: time.Now}
}

// List returns the calendars matching filter.
func (s *CalendarService) List(ctx context.Context, filter domain.CalendarFilter) ([]domain.Calendar, error) {
	cals, err := s.store.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	if cals == nil {
		cals = []domain.Calendar{}
	}
	return filter.Apply(cals), nil
}

// Default returns the platform default calendar, or nil.
func (s *CalendarService) Default(ctx context.Context) (*domain.Calendar, error) {
	cal, err := s.store.DefaultCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("get default calendar: %w", err)
	}
	return cal, nil
}

func (s *CalendarService) Create(ctx context.Context, cal domain.NewCalendar) (string, error) {
	id, err := s.store.CreateCalendar(ctx, cal)
	if err != nil {
		return "", fmt.Errorf("create calendar: %w", err)
	}
	return id, nil
}

func (s *CalendarService) Delete(ctx context.Context, id string) error {
	cal, err := s.store.Calendar(ctx, id)
	if err != nil {
		return fmt.Errorf("get calendar %s: %w", id, err)
	}
	if !cal.Writable {
		return &AccessError{Requirement: writeCalendar, CalendarID: id}
	}
	if err := s.store.DeleteCalendar(ctx, id); err != nil {
		return fmt.Errorf("delete calendar %s: %w", id, err)
	}
	return nil
}

// ListEvents returns the events overlapping [from, to] in wire form.
func (s *CalendarService) ListEvents(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	events, err := s.store.EventsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]domain.EventRecord, 0, len(events))
	for _, e := range events {
		out = append(out, e.Record())
	}
	return out, nil
}

// Event returns a single stored event.
func (s *CalendarService) Event(ctx context.Context, id string) (*domain.Event, error) {
	e, err := s.store.Event(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return e, nil
}

// CreateEvent inserts an event and returns its id.
// Start defaults to now and end to one hour after start. A non-negative
// alert offset attaches an alarm that many minutes before start.
func (s *CalendarService) CreateEvent(ctx context.Context, p domain.EventParams) (string, error) {
	cal, err := s.destination(ctx, p.CalendarID)
	if err != nil {
		return "", err
	}

	start := s.now().In(s.loc)
	if p.Start != nil {
		start = *p.Start
	}
	end := start.Add(DefaultEventLength)
	if p.End != nil {
		end = *p.End
	}

	e := domain.Event{
		CalendarID: cal.ID,
		Title:      p.Title,
		Location:   p.Location,
		Start:      start,
		End:        end,
		AllDay:     p.AllDay,
		Timezone:   start.Location().String(),
	}
	if p.AlertOffset != nil && *p.AlertOffset >= 0 {
		e.Alarms = []time.Duration{time.Duration(*p.AlertOffset * float64(time.Minute))}
	}

	id, err := s.store.InsertEvent(ctx, e)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	s.logger.Debug("event created", "id", id, "calendar", cal.ID)
	return id, nil
}

// destination picks the explicit calendar when it exists and is writable,
// otherwise the default calendar.
func (s *CalendarService) destination(ctx context.Context, id string) (*domain.Calendar, error) {
	if id != "" {
		cal, err := s.store.Calendar(ctx, id)
		switch {
		case err == nil && cal.Writable:
			return cal, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("get calendar %s: %w", id, err)
		}
	}
	cal, err := s.store.DefaultCalendar(ctx)
	if err != nil {
		return nil, fmt.Errorf("get default calendar: %w", err)
	}
	if cal == nil {
		return nil, ErrNoDefaultCalendar
	}
	if !cal.Writable {
		return nil, &AccessError{Requirement: writeCalendar, CalendarID: cal.ID}
	}
	return cal, nil
}

// DeleteEvents removes each id independently. A failure for one id never
// stops the others. If the final commit fails every removal is reported failed.
func (s *CalendarService) DeleteEvents(ctx context.Context, ids []string) (domain.DeleteOutcome, error) {
	out := domain.DeleteOutcome{Deleted: []string{}, Failed: []string{}}
	verdict := make(map[string]bool, len(ids))

	// Repeated ids share the verdict of their first occurrence.
	var removable []string
	for _, id := range ids {
		if _, seen := verdict[id]; seen {
			continue
		}
		verdict[id] = false
		if err := s.checkRemovable(ctx, id); err != nil {
			s.logger.Debug("event not removable", "id", id, "error", err)
			continue
		}
		removable = append(removable, id)
	}

	if len(removable) > 0 {
		batch, err := s.store.BeginDelete(ctx)
		if err != nil {
			s.logger.Warn("begin event delete", "error", err)
		} else {
			for _, id := range removable {
				if err := batch.Remove(ctx, id); err != nil {
					s.logger.Debug("remove event", "id", id, "error", err)
					continue
				}
				verdict[id] = true
			}
			if err := batch.Commit(ctx); err != nil {
				s.logger.Warn("commit event delete", "error", err)
				for _, id := range removable {
					verdict[id] = false
				}
			}
		}
	}

	for _, id := range ids {
		if verdict[id] {
			out.Deleted = append(out.Deleted, id)
		} else {
			out.Failed = append(out.Failed, id)
		}
	}
	return out, nil
}

func (s *CalendarService) checkRemovable(ctx context.Context, id string) error {
	e, err := s.store.Event(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	cal, err := s.store.Calendar(ctx, e.CalendarID)
	if err != nil {
		return fmt.Errorf("get calendar %s: %w", e.CalendarID, err)
	}
	if !cal.Writable {
		return &AccessError{Requirement: writeCalendar, CalendarID: cal.ID}
	}
	return nil
}
