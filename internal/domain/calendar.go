package domain

import (
	"fmt"
	"strings"
	"time"
)

// Calendar is a calendar (or reminders list) as exposed by a store.
type Calendar struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Writable bool   `json:"writable"`
	Color    string `json:"-"`
	Default  bool   `json:"-"`
}

// RemindersList shares the calendar shape.
type RemindersList = Calendar

// CalendarFilter selects which calendars listCalendars returns.
type CalendarFilter int

const (
	AllCalendars CalendarFilter = iota
	WritableCalendarsOnly
)

// Apply returns the calendars matching the filter, preserving order.
func (f CalendarFilter) Apply(cals []Calendar) []Calendar {
	if f != WritableCalendarsOnly {
		return cals
	}
	out := make([]Calendar, 0, len(cals))
	for _, c := range cals {
		if c.Writable {
			out = append(out, c)
		}
	}
	return out
}

// SelectionStyle controls how many calendars the chooser lets the user pick.
type SelectionStyle int

const (
	SelectSingle SelectionStyle = iota
	SelectMultiple
)

// NewCalendar holds attributes for calendar (or list) creation.
type NewCalendar struct {
	Title string
	Color string // normalized "#RRGGBB" or empty
}

// NormalizeColor accepts RRGGBB with or without a leading '#', any case.
func NormalizeColor(s string) (string, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return "", fmt.Errorf("color %q is not RRGGBB", s)
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return "", fmt.Errorf("color %q is not RRGGBB", s)
		}
	}
	return "#" + strings.ToUpper(hex), nil
}

// Event is a calendar event as held by a store.
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Location    string
	Color       string
	Organizer   string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	EndTimezone string
	Duration    string
	AllDay      bool
	// Alarms holds offsets before Start at which an alert fires.
	Alarms []time.Duration
}

// EventRecord is the wire form of an event. Empty optional fields are omitted.
type EventRecord struct {
	ID               string `json:"id"`
	Title            string `json:"title,omitempty"`
	Location         string `json:"location,omitempty"`
	EventColor       string `json:"eventColor,omitempty"`
	Organizer        string `json:"organizer,omitempty"`
	Description      string `json:"description,omitempty"`
	StartDate        int64  `json:"startDate,omitempty"`
	EndDate          int64  `json:"endDate,omitempty"`
	EventTimezone    string `json:"eventTimezone,omitempty"`
	EventEndTimezone string `json:"eventEndTimezone,omitempty"`
	Duration         string `json:"duration,omitempty"`
	IsAllDay         bool   `json:"isAllDay"`
	CalendarID       string `json:"calendarId"`
}

// Record converts the event to its wire form.
func (e Event) Record() EventRecord {
	return EventRecord{
		ID:               e.ID,
		Title:            e.Title,
		Location:         e.Location,
		EventColor:       e.Color,
		Organizer:        e.Organizer,
		Description:      e.Description,
		StartDate:        unixMilli(e.Start),
		EndDate:          unixMilli(e.End),
		EventTimezone:    e.Timezone,
		EventEndTimezone: e.EndTimezone,
		Duration:         e.Duration,
		IsAllDay:         e.AllDay,
		CalendarID:       e.CalendarID,
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// EventParams are the caller-supplied attributes of a new event.
type EventParams struct {
	Title      string
	CalendarID string
	Location   string
	Start      *time.Time
	End        *time.Time
	AllDay     bool
	// AlertOffset is in minutes before start; nil or negative means no alarm.
	AlertOffset *float64
}

// DeleteOutcome partitions the ids passed to a batch delete.
type DeleteOutcome struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}
