package prompt

import (
	"context"
	"errors"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
)

// ErrNoPresenter means no UI is attached to show the prompt.
var ErrNoPresenter = errors.New("no presenter attached")

// App names an external application the launcher can open.
type App string

const (
	AppCalendar  App = "calendar"
	AppReminders App = "reminders"
)

// Target is what the launcher should open. At is optional.
type Target struct {
	App App
	At  *time.Time
}

// CalendarChooser shows a calendar picker and later resolves req with the selection.
type CalendarChooser interface {
	ChooseCalendars(ctx context.Context, req *Request[[]domain.Calendar], candidates []domain.Calendar, style domain.SelectionStyle) error
}

// EventEditor shows a prefilled event editor and resolves req with the saved event params.
type EventEditor interface {
	EditEvent(ctx context.Context, req *Request[domain.EventParams], draft domain.EventParams, calendars []domain.Calendar) error
}

// Consenter asks the owner to grant access to aliases.
type Consenter interface {
	ConfirmAccess(ctx context.Context, req *Request[bool], aliases []domain.PermissionAlias, rationale bool) error
}

// Launcher opens an external application. It does not wait for the user.
type Launcher interface {
	Open(ctx context.Context, target Target) error
}

// Presenter is the full UI surface.
type Presenter interface {
	CalendarChooser
	EventEditor
	Consenter
	Launcher
}

// Headless is a Presenter with nothing attached.
type Headless struct{}

func (Headless) ChooseCalendars(context.Context, *Request[[]domain.Calendar], []domain.Calendar, domain.SelectionStyle) error {
	return ErrNoPresenter
}

func (Headless) EditEvent(context.Context, *Request[domain.EventParams], domain.EventParams, []domain.Calendar) error {
	return ErrNoPresenter
}

func (Headless) ConfirmAccess(context.Context, *Request[bool], []domain.PermissionAlias, bool) error {
	return ErrNoPresenter
}

func (Headless) Open(context.Context, Target) error {
	return ErrNoPresenter
}
