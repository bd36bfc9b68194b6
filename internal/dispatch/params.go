package dispatch

import (
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/pluginerr"
)

func noArgs(*Args, *Dispatcher) (struct{}, error) { return struct{}{}, nil }

func parseAlias(a *Args, _ *Dispatcher) (domain.PermissionAlias, error) {
	s, err := a.RequiredString("alias")
	if err != nil {
		return "", err
	}
	alias, ok := domain.ParseAlias(s)
	if !ok {
		return "", a.invalid("alias")
	}
	return alias, nil
}

func parseID(a *Args, _ *Dispatcher) (string, error) {
	return a.RequiredString("id")
}

func parseNewCalendar(a *Args, _ *Dispatcher) (domain.NewCalendar, error) {
	title, err := a.RequiredString("title")
	if err != nil {
		return domain.NewCalendar{}, err
	}
	nc := domain.NewCalendar{Title: title}
	color, ok, err := a.String("color")
	if err != nil {
		return nc, err
	}
	if ok && color != "" {
		if nc.Color, err = domain.NormalizeColor(color); err != nil {
			return nc, a.invalid("color")
		}
	}
	return nc, nil
}

type timeRange struct {
	from, to time.Time
}

func parseRange(a *Args, d *Dispatcher) (timeRange, error) {
	from, err := a.RequiredTime("startDate", d.loc)
	if err != nil {
		return timeRange{}, err
	}
	to, err := a.RequiredTime("endDate", d.loc)
	if err != nil {
		return timeRange{}, err
	}
	return timeRange{from: from, to: to}, nil
}

func eventParams(titleRequired bool) []Param {
	return []Param{
		{Name: "title", Type: "string", Required: titleRequired},
		{Name: "calendarId", Type: "string", Description: "defaults to the default calendar"},
		{Name: "location", Type: "string"},
		{Name: "startDate", Type: "number", Description: "milliseconds since epoch, defaults to now"},
		{Name: "endDate", Type: "number", Description: "milliseconds since epoch, defaults to one hour after start"},
		{Name: "isAllDay", Type: "boolean"},
		{Name: "alertOffsetInMinutes", Type: "number", Description: "alarm this many minutes before start; negative values are ignored"},
	}
}

func parseEventParams(a *Args, d *Dispatcher, titleRequired bool) (domain.EventParams, error) {
	var (
		p   domain.EventParams
		err error
	)
	if titleRequired {
		if p.Title, err = a.RequiredString("title"); err != nil {
			return p, err
		}
	} else if p.Title, _, err = a.String("title"); err != nil {
		return p, err
	}
	if p.CalendarID, _, err = a.String("calendarId"); err != nil {
		return p, err
	}
	if p.Location, _, err = a.String("location"); err != nil {
		return p, err
	}
	if p.Start, err = a.Time("startDate", d.loc); err != nil {
		return p, err
	}
	if p.End, err = a.Time("endDate", d.loc); err != nil {
		return p, err
	}
	if p.AllDay, err = a.Bool("isAllDay"); err != nil {
		return p, err
	}
	if p.AlertOffset, err = a.Number("alertOffsetInMinutes"); err != nil {
		return p, err
	}
	return p, nil
}

func reminderParams() []Param {
	return []Param{
		{Name: "title", Type: "string", Required: true},
		{Name: "listId", Type: "string", Description: "defaults to the default list"},
		{Name: "priority", Type: "number", Description: "0 (none) to 9"},
		{Name: "isCompleted", Type: "boolean"},
		{Name: "startDate", Type: "number", Description: "milliseconds since epoch"},
		{Name: "dueDate", Type: "number", Description: "milliseconds since epoch"},
		{Name: "completionDate", Type: "number", Description: "milliseconds since epoch"},
		{Name: "notes", Type: "string"},
		{Name: "url", Type: "string"},
		{Name: "location", Type: "string"},
		{Name: "recurrence", Type: "object", Description: "{frequency: 0 daily|1 weekly|2 monthly|3 yearly, interval > 0, end?: ms}"},
	}
}

func parseReminder(a *Args, d *Dispatcher) (domain.Reminder, error) {
	var (
		r   domain.Reminder
		err error
	)
	if r.Title, err = a.RequiredString("title"); err != nil {
		return r, err
	}
	if r.ListID, _, err = a.String("listId"); err != nil {
		return r, err
	}
	priority, err := a.Int("priority")
	if err != nil {
		return r, err
	}
	if priority != nil {
		r.Priority = *priority
	}
	if r.IsCompleted, err = a.Bool("isCompleted"); err != nil {
		return r, err
	}
	if r.Start, err = a.Time("startDate", d.loc); err != nil {
		return r, err
	}
	if r.Due, err = a.Time("dueDate", d.loc); err != nil {
		return r, err
	}
	if r.CompletionDate, err = a.Time("completionDate", d.loc); err != nil {
		return r, err
	}
	if r.Notes, _, err = a.String("notes"); err != nil {
		return r, err
	}
	if r.URL, _, err = a.String("url"); err != nil {
		return r, err
	}
	if r.Location, _, err = a.String("location"); err != nil {
		return r, err
	}

	rec, ok, err := a.Object("recurrence")
	if err != nil {
		return r, err
	}
	if ok {
		if r.Recurrence, err = parseRecurrence(rec, d); err != nil {
			return r, err
		}
	}
	return r, nil
}

func parseRecurrence(a *Args, d *Dispatcher) (*domain.Recurrence, error) {
	freq, err := a.Int("frequency")
	if err != nil {
		return nil, err
	}
	if freq == nil {
		return nil, pluginerr.New(pluginerr.MissingKey, a.source, "frequency, must be provided when using recurrence")
	}
	rec := &domain.Recurrence{Frequency: domain.RecurrenceFrequency(*freq)}
	if !rec.Frequency.Valid() {
		return nil, a.invalid("frequency")
	}

	interval, err := a.Int("interval")
	if err != nil {
		return nil, err
	}
	if interval == nil || *interval <= 0 {
		return nil, pluginerr.New(pluginerr.InvalidKey, a.source, "interval, must be greater than 0 when using recurrence")
	}
	rec.Interval = *interval

	if rec.End, err = a.Time("end", d.loc); err != nil {
		return nil, err
	}
	return rec, nil
}
