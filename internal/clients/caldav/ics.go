package caldav

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tazhate/calbridge/internal/domain"
)

const (
	productID = "-//calbridge//CalDAV//EN"
	propColor = "COLOR"
)

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// eventToICS converts an event to iCalendar format
func eventToICS(uid string, e domain.Event) *ical.Calendar {
	cal := newCalendar()

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, e.Title)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if e.Description != "" {
		vevent.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		vevent.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Color != "" {
		vevent.Props.SetText(propColor, e.Color)
	}

	if e.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, e.Start)
		if !e.End.IsZero() {
			vevent.Props.SetDate(ical.PropDateTimeEnd, e.End)
		}
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
		if !e.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
		}
	}

	for _, offset := range e.Alarms {
		vevent.Children = append(vevent.Children, alarm(offset, e.Title))
	}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

func alarm(offset time.Duration, description string) *ical.Component {
	valarm := ical.NewComponent(ical.CompAlarm)
	valarm.Props.SetText(ical.PropAction, "DISPLAY")
	valarm.Props.SetText(ical.PropDescription, description)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = formatTrigger(offset)
	valarm.Props.Set(trigger)
	return valarm
}

// parseEvent reads the first VEVENT of a calendar object.
func parseEvent(cal *ical.Calendar) (domain.Event, error) {
	var e domain.Event
	if cal == nil {
		return e, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}

		e.Title = text(comp, ical.PropSummary)
		e.Description = text(comp, ical.PropDescription)
		e.Location = text(comp, ical.PropLocation)
		e.Color = text(comp, propColor)
		if org := text(comp, ical.PropOrganizer); org != "" {
			e.Organizer = strings.TrimPrefix(strings.TrimPrefix(org, "mailto:"), "MAILTO:")
		}

		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				e.Start = t
			}
			if prop.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
				e.AllDay = true
			}
			e.Timezone = prop.Params.Get(ical.ParamTimezoneID)
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				e.End = t
			}
			e.EndTimezone = prop.Params.Get(ical.ParamTimezoneID)
		}
		e.Duration = text(comp, ical.PropDuration)

		for _, child := range comp.Children {
			if child.Name != ical.CompAlarm {
				continue
			}
			if offset, ok := parseTrigger(text(child, ical.PropTrigger)); ok {
				e.Alarms = append(e.Alarms, offset)
			}
		}
		return e, nil
	}
	return e, fmt.Errorf("no VEVENT in calendar object")
}

// reminderToICS converts a reminder to a VTODO
func reminderToICS(uid string, r domain.Reminder) (*ical.Calendar, error) {
	cal := newCalendar()

	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, uid)
	todo.Props.SetText(ical.PropSummary, r.Title)
	todo.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if r.Priority > 0 {
		todo.Props.SetText(ical.PropPriority, strconv.Itoa(r.Priority))
	}
	if r.Start != nil {
		todo.Props.SetDateTime(ical.PropDateTimeStart, r.Start.UTC())
	}
	if r.Due != nil {
		todo.Props.SetDateTime(ical.PropDue, r.Due.UTC())
	}
	if r.IsCompleted {
		todo.Props.SetText(ical.PropStatus, "COMPLETED")
		completed := time.Now().UTC()
		if r.CompletionDate != nil {
			completed = r.CompletionDate.UTC()
		}
		todo.Props.SetDateTime(ical.PropCompleted, completed)
	} else {
		todo.Props.SetText(ical.PropStatus, "NEEDS-ACTION")
	}
	if r.Notes != "" {
		todo.Props.SetText(ical.PropDescription, r.Notes)
	}
	if r.URL != "" {
		todo.Props.SetText(ical.PropURL, r.URL)
	}
	if r.Location != "" {
		todo.Props.SetText(ical.PropLocation, r.Location)
	}
	if r.Recurrence != nil {
		rule, err := r.Recurrence.RRule()
		if err != nil {
			return nil, fmt.Errorf("render rrule: %w", err)
		}
		todo.Props.SetText(ical.PropRecurrenceRule, rule)
	}

	cal.Children = append(cal.Children, todo)
	return cal, nil
}

func text(comp *ical.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return prop.Value
	}
	return ""
}

// formatTrigger renders an offset before start, e.g. 15m -> "-PT15M".
func formatTrigger(offset time.Duration) string {
	if offset%time.Minute == 0 {
		return fmt.Sprintf("-PT%dM", int64(offset/time.Minute))
	}
	return fmt.Sprintf("-PT%dS", int64(offset/time.Second))
}

// parseTrigger reads a relative TRIGGER duration and returns the offset
// before start. Triggers after start and absolute triggers are not offsets.
func parseTrigger(v string) (time.Duration, bool) {
	v = strings.TrimSpace(strings.ToUpper(v))
	before := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	v = v[1:]

	var d time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, false
			}
			num = ""
			switch {
			case r == 'W' && !inTime:
				d += time.Duration(n) * 7 * 24 * time.Hour
			case r == 'D' && !inTime:
				d += time.Duration(n) * 24 * time.Hour
			case r == 'H' && inTime:
				d += time.Duration(n) * time.Hour
			case r == 'M' && inTime:
				d += time.Duration(n) * time.Minute
			case r == 'S' && inTime:
				d += time.Duration(n) * time.Second
			default:
				return 0, false
			}
		}
	}
	if num != "" {
		return 0, false
	}
	if !before && d != 0 {
		return 0, false
	}
	return d, true
}

// SerializeCalendar converts calendar to string (for debugging)
func SerializeCalendar(cal *ical.Calendar) string {
	var buf bytes.Buffer
	enc := ical.NewEncoder(&buf)
	_ = enc.Encode(cal)
	return buf.String()
}
