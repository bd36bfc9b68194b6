package dispatch

import (
	"context"
	"errors"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
	"github.com/tazhate/calbridge/internal/prompt"
)

const (
	CmdCheckPermission                = "checkPermission"
	CmdCheckAllPermissions            = "checkAllPermissions"
	CmdRequestPermission              = "requestPermission"
	CmdRequestReadOnlyCalendarAccess  = "requestReadOnlyCalendarAccess"
	CmdRequestWriteOnlyCalendarAccess = "requestWriteOnlyCalendarAccess"
	CmdRequestFullCalendarAccess      = "requestFullCalendarAccess"
	CmdRequestFullRemindersAccess     = "requestFullRemindersAccess"
	CmdRequestAllPermissions          = "requestAllPermissions"
	CmdListCalendars                  = "listCalendars"
	CmdGetDefaultCalendar             = "getDefaultCalendar"
	CmdSelectCalendarsWithPrompt      = "selectCalendarsWithPrompt"
	CmdCreateCalendar                 = "createCalendar"
	CmdDeleteCalendar                 = "deleteCalendar"
	CmdOpenCalendar                   = "openCalendar"
	CmdCreateEvent                    = "createEvent"
	CmdCreateEventWithPrompt          = "createEventWithPrompt"
	CmdListEventsInRange              = "listEventsInRange"
	CmdDeleteEventsByID               = "deleteEventsById"
	CmdCreateReminder                 = "createReminder"
	CmdGetDefaultRemindersList        = "getDefaultRemindersList"
	CmdGetRemindersLists              = "getRemindersLists"
	CmdCreateRemindersList            = "createRemindersList"
	CmdDeleteRemindersList            = "deleteRemindersList"
	CmdOpenReminders                  = "openReminders"
)

var (
	readCalendar   = &domain.AccessRequirement{Entity: domain.EntityCalendar, Access: domain.AccessRead}
	writeCalendar  = &domain.AccessRequirement{Entity: domain.EntityCalendar, Access: domain.AccessWrite}
	readReminders  = &domain.AccessRequirement{Entity: domain.EntityReminders, Access: domain.AccessRead}
	writeReminders = &domain.AccessRequirement{Entity: domain.EntityReminders, Access: domain.AccessWrite}
)

var registry = index(
	// Permissions
	define(Command{
		Name:        CmdCheckPermission,
		Description: "Check the state of one permission alias without prompting",
		Params:      []Param{{Name: "alias", Type: "string", Required: true, Description: "readCalendar, writeCalendar, readReminders or writeReminders"}},
	}, parseAlias, func(ctx context.Context, d *Dispatcher, a domain.PermissionAlias) (any, error) {
		return d.gate.CheckAccess(ctx, CmdCheckPermission, a)
	}),
	define(Command{
		Name:        CmdCheckAllPermissions,
		Description: "Check the state of every permission alias",
		Output:      OutputMap,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return d.gate.CheckAll(ctx, CmdCheckAllPermissions)
	}),
	define(Command{
		Name:        CmdRequestPermission,
		Description: "Request one permission alias (deprecated, prefer the specific request commands)",
		Params:      []Param{{Name: "alias", Type: "string", Required: true}},
	}, parseAlias, func(ctx context.Context, d *Dispatcher, a domain.PermissionAlias) (any, error) {
		return d.gate.RequestAccess(ctx, CmdRequestPermission, a)
	}),
	requestCommand(CmdRequestReadOnlyCalendarAccess, "Request read access to calendars", domain.ReadCalendar),
	requestCommand(CmdRequestWriteOnlyCalendarAccess, "Request write access to calendars", domain.WriteCalendar),
	requestCommand(CmdRequestFullCalendarAccess, "Request read and write access to calendars", domain.ReadCalendar, domain.WriteCalendar),
	requestCommand(CmdRequestFullRemindersAccess, "Request read and write access to reminders", domain.ReadReminders, domain.WriteReminders),
	define(Command{
		Name:        CmdRequestAllPermissions,
		Description: "Request every permission alias",
		Output:      OutputMap,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return d.gate.RequestAll(ctx, CmdRequestAllPermissions)
	}),

	// Calendars
	define(Command{
		Name:        CmdListCalendars,
		Description: "List calendars",
		Params:      []Param{{Name: "access", Type: "number|string", Description: "0 or \"all\", 1 or \"writableOnly\""}},
		Access:      readCalendar,
	}, func(a *Args, _ *Dispatcher) (domain.CalendarFilter, error) {
		n, _, err := a.Enum("access", "all", "writableOnly")
		return domain.CalendarFilter(n), err
	}, func(ctx context.Context, d *Dispatcher, f domain.CalendarFilter) (any, error) {
		return d.calendars.List(ctx, f)
	}),
	define(Command{
		Name:        CmdGetDefaultCalendar,
		Description: "Get the default calendar, or null",
		Access:      readCalendar,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return d.calendars.Default(ctx)
	}),
	define(Command{
		Name:        CmdSelectCalendarsWithPrompt,
		Description: "Let the user pick calendars; cancelling returns an empty list",
		Params: []Param{
			{Name: "displayStyle", Type: "number", Required: true, Description: "0 all calendars, 1 writable only"},
			{Name: "selectionStyle", Type: "number", Required: true, Description: "0 single, 1 multiple"},
		},
		Access: readCalendar,
	}, parseSelection, selectCalendars),
	define(Command{
		Name:        CmdCreateCalendar,
		Description: "Create a calendar and return its id",
		Params:      []Param{{Name: "title", Type: "string", Required: true}, {Name: "color", Type: "string", Description: "#RRGGBB"}},
		Access:      writeCalendar,
	}, parseNewCalendar, func(ctx context.Context, d *Dispatcher, nc domain.NewCalendar) (any, error) {
		return d.calendars.Create(ctx, nc)
	}),
	define(Command{
		Name:        CmdDeleteCalendar,
		Description: "Delete a calendar by id",
		Params:      []Param{{Name: "id", Type: "string", Required: true}},
		Access:      writeCalendar,
		Output:      OutputVoid,
	}, parseID, func(ctx context.Context, d *Dispatcher, id string) (any, error) {
		return nil, d.calendars.Delete(ctx, id)
	}),
	define(Command{
		Name:        CmdOpenCalendar,
		Description: "Open the calendar app, optionally at a date",
		Params:      []Param{{Name: "date", Type: "number", Description: "milliseconds since epoch"}},
		Output:      OutputVoid,
	}, func(a *Args, d *Dispatcher) (prompt.Target, error) {
		at, err := a.Time("date", d.loc)
		return prompt.Target{App: prompt.AppCalendar, At: at}, err
	}, func(ctx context.Context, d *Dispatcher, t prompt.Target) (any, error) {
		return nil, d.open(ctx, t, pluginerr.UnableToOpenCalendar, CmdOpenCalendar)
	}),

	// Events
	define(Command{
		Name:        CmdCreateEvent,
		Description: "Create an event and return its id",
		Params:      eventParams(true),
		Access:      writeCalendar,
	}, func(a *Args, d *Dispatcher) (domain.EventParams, error) {
		return parseEventParams(a, d, true)
	}, func(ctx context.Context, d *Dispatcher, p domain.EventParams) (any, error) {
		return d.calendars.CreateEvent(ctx, p)
	}),
	define(Command{
		Name:        CmdCreateEventWithPrompt,
		Description: "Open a prefilled event editor; returns the created ids, empty when cancelled",
		Params:      eventParams(false),
		Access:      writeCalendar,
	}, func(a *Args, d *Dispatcher) (domain.EventParams, error) {
		return parseEventParams(a, d, false)
	}, createEventWithPrompt),
	define(Command{
		Name:        CmdListEventsInRange,
		Description: "List events overlapping a time range",
		Params: []Param{
			{Name: "startDate", Type: "number", Required: true, Description: "milliseconds since epoch"},
			{Name: "endDate", Type: "number", Required: true, Description: "milliseconds since epoch"},
		},
		Access: readCalendar,
	}, parseRange, func(ctx context.Context, d *Dispatcher, r timeRange) (any, error) {
		return d.calendars.ListEvents(ctx, r.from, r.to)
	}),
	define(Command{
		Name:        CmdDeleteEventsByID,
		Description: "Delete events by id; reports which ids were deleted and which failed",
		Params:      []Param{{Name: "ids", Type: "string[]", Required: true}},
		Access:      writeCalendar,
	}, func(a *Args, _ *Dispatcher) ([]string, error) {
		return a.RequiredStrings("ids")
	}, func(ctx context.Context, d *Dispatcher, ids []string) (any, error) {
		return d.calendars.DeleteEvents(ctx, ids)
	}),

	// Reminders
	define(Command{
		Name:        CmdCreateReminder,
		Description: "Create a reminder and return its id",
		Params:      reminderParams(),
		Access:      writeReminders,
	}, parseReminder, func(ctx context.Context, d *Dispatcher, r domain.Reminder) (any, error) {
		return d.reminders.Create(ctx, r)
	}),
	define(Command{
		Name:        CmdGetDefaultRemindersList,
		Description: "Get the default reminders list, or null",
		Access:      readReminders,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return d.reminders.DefaultList(ctx)
	}),
	define(Command{
		Name:        CmdGetRemindersLists,
		Description: "List reminders lists",
		Access:      readReminders,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return d.reminders.Lists(ctx)
	}),
	define(Command{
		Name:        CmdCreateRemindersList,
		Description: "Create a reminders list and return its id",
		Params:      []Param{{Name: "title", Type: "string", Required: true}, {Name: "color", Type: "string", Description: "#RRGGBB"}},
		Access:      writeReminders,
	}, parseNewCalendar, func(ctx context.Context, d *Dispatcher, nc domain.NewCalendar) (any, error) {
		return d.reminders.CreateList(ctx, nc)
	}),
	define(Command{
		Name:        CmdDeleteRemindersList,
		Description: "Delete a reminders list by id",
		Params:      []Param{{Name: "id", Type: "string", Required: true}},
		Access:      writeReminders,
		Output:      OutputVoid,
	}, parseID, func(ctx context.Context, d *Dispatcher, id string) (any, error) {
		return nil, d.reminders.DeleteList(ctx, id)
	}),
	define(Command{
		Name:        CmdOpenReminders,
		Description: "Open the reminders app",
		Output:      OutputVoid,
	}, noArgs, func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
		return nil, d.open(ctx, prompt.Target{App: prompt.AppReminders}, pluginerr.UnableToOpenReminders, CmdOpenReminders)
	}),
)

func index(cmds ...Command) map[string]Command {
	m := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		m[c.Name] = c
	}
	return m
}

func requestCommand(name, description string, aliases ...domain.PermissionAlias) Command {
	return define(Command{Name: name, Description: description}, noArgs,
		func(ctx context.Context, d *Dispatcher, _ struct{}) (any, error) {
			return d.gate.RequestAccess(ctx, name, aliases...)
		})
}

// open maps launcher failures: no UI attached is unableToOpen*, anything else osError.
func (d *Dispatcher) open(ctx context.Context, t prompt.Target, unable pluginerr.Kind, source string) error {
	err := d.presenter.Open(ctx, t)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, prompt.ErrNoPresenter):
		return pluginerr.New(unable, source, "")
	default:
		return pluginerr.FromError(err, source)
	}
}

// promptError maps failures to present a prompt.
func promptError(err error, source string) error {
	if errors.Is(err, prompt.ErrNoPresenter) {
		return pluginerr.New(pluginerr.NoViewController, source, "")
	}
	return pluginerr.FromError(err, source)
}

type selection struct {
	filter domain.CalendarFilter
	style  domain.SelectionStyle
}

func parseSelection(a *Args, _ *Dispatcher) (selection, error) {
	display, ok, err := a.Enum("displayStyle", "all", "writableOnly")
	if err != nil {
		return selection{}, err
	}
	if !ok {
		return selection{}, a.missing("displayStyle")
	}
	style, ok, err := a.Enum("selectionStyle", "single", "multiple")
	if err != nil {
		return selection{}, err
	}
	if !ok {
		return selection{}, a.missing("selectionStyle")
	}
	return selection{filter: domain.CalendarFilter(display), style: domain.SelectionStyle(style)}, nil
}

func selectCalendars(ctx context.Context, d *Dispatcher, s selection) (any, error) {
	cals, err := d.calendars.List(ctx, s.filter)
	if err != nil {
		return nil, err
	}
	req, err := d.chooser.Begin()
	if err != nil {
		return nil, pluginerr.FromError(err, CmdSelectCalendarsWithPrompt)
	}
	if err := d.presenter.ChooseCalendars(ctx, req, cals, s.style); err != nil {
		req.Cancel()
		return nil, promptError(err, CmdSelectCalendarsWithPrompt)
	}
	chosen, ok, err := req.Wait(ctx)
	if err != nil {
		return nil, pluginerr.FromError(err, CmdSelectCalendarsWithPrompt)
	}
	if !ok || chosen == nil {
		return []domain.Calendar{}, nil
	}
	return chosen, nil
}

// createEventWithPrompt shows the editor prefilled with p and creates the saved event.
func createEventWithPrompt(ctx context.Context, d *Dispatcher, p domain.EventParams) (any, error) {
	cals, err := d.calendars.List(ctx, domain.WritableCalendarsOnly)
	if err != nil {
		return nil, err
	}
	req, err := d.editor.Begin()
	if err != nil {
		return nil, pluginerr.FromError(err, CmdCreateEventWithPrompt)
	}
	if err := d.presenter.EditEvent(ctx, req, p, cals); err != nil {
		req.Cancel()
		return nil, promptError(err, CmdCreateEventWithPrompt)
	}
	saved, ok, err := req.Wait(ctx)
	if err != nil {
		return nil, pluginerr.FromError(err, CmdCreateEventWithPrompt)
	}
	if !ok {
		return []string{}, nil
	}
	id, err := d.calendars.CreateEvent(ctx, saved)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}
