package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

var (
	// ErrNotFound is returned by stores for an unknown calendar, list or event.
	ErrNotFound = errors.New("not found")
	// ErrNoResult is returned when the store produced no result set at all.
	ErrNoResult = errors.New("store returned no result")
	// ErrNoDefaultCalendar means neither an explicit nor a default calendar is usable.
	ErrNoDefaultCalendar = errors.New("no default calendar")
)

// AccessError reports that a calendar does not allow the required access.
type AccessError struct {
	Requirement domain.AccessRequirement
	CalendarID  string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("calendar %s does not allow %s", e.CalendarID, e.Requirement)
}

var writeCalendar = domain.AccessRequirement{Entity: domain.EntityCalendar, Access: domain.AccessWrite}
var writeReminders = domain.AccessRequirement{Entity: domain.EntityReminders, Access: domain.AccessWrite}

// CalendarStore is the native calendar store of a platform.
type CalendarStore interface {
	Calendars(ctx context.Context) ([]domain.Calendar, error)
	// Calendar returns ErrNotFound for an unknown id.
	Calendar(ctx context.Context, id string) (*domain.Calendar, error)
	// DefaultCalendar returns nil, nil when the platform has none.
	DefaultCalendar(ctx context.Context) (*domain.Calendar, error)
	CreateCalendar(ctx context.Context, cal domain.NewCalendar) (string, error)
	DeleteCalendar(ctx context.Context, id string) error

	EventsInRange(ctx context.Context, from, to time.Time) ([]domain.Event, error)
	Event(ctx context.Context, id string) (*domain.Event, error)
	InsertEvent(ctx context.Context, e domain.Event) (string, error)
	BeginDelete(ctx context.Context) (EventBatch, error)
}

// EventBatch collects removals that take effect on Commit.
// Stores without transactions may remove immediately and commit as a no-op.
type EventBatch interface {
	Remove(ctx context.Context, id string) error
	Commit(ctx context.Context) error
}

// ReminderStore is the native reminders store of a platform.
type ReminderStore interface {
	ReminderLists(ctx context.Context) ([]domain.RemindersList, error)
	ReminderList(ctx context.Context, id string) (*domain.RemindersList, error)
	DefaultReminderList(ctx context.Context) (*domain.RemindersList, error)
	CreateReminderList(ctx context.Context, list domain.NewCalendar) (string, error)
	DeleteReminderList(ctx context.Context, id string) error
	InsertReminder(ctx context.Context, r domain.Reminder) (string, error)
}

// Classify converts a facade error into the taxonomy for the given command.
func Classify(err error, source string) *pluginerr.Error {
	if err == nil {
		return nil
	}
	var pe *pluginerr.Error
	if errors.As(err, &pe) {
		return pe
	}
	var ae *AccessError
	switch {
	case errors.As(err, &ae):
		return pluginerr.NoAccessFor(source, ae.Requirement)
	case errors.Is(err, ErrNotFound):
		return pluginerr.New(pluginerr.CalendarNotFound, source, "")
	case errors.Is(err, ErrNoDefaultCalendar):
		return pluginerr.New(pluginerr.NoDefaultCalendar, source, "")
	case errors.Is(err, ErrNoResult):
		return pluginerr.Wrap(pluginerr.InternalError, err, source)
	}
	return pluginerr.FromError(err, source)
}
