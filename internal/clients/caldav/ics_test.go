package caldav

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tazhate/calbridge/internal/domain"
)

func decode(t *testing.T, s string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(s)).Decode()
	if err != nil {
		t.Fatalf("decode: %v\n%s", err, s)
	}
	return cal
}

func TestEventSurvivesEncoding(t *testing.T) {
	start := time.Date(2026, 7, 3, 8, 30, 0, 0, time.UTC)
	in := domain.Event{
		Title:    "Flight",
		Location: "LHR",
		Color:    "#FF0000",
		Start:    start,
		End:      start.Add(2 * time.Hour),
		Alarms:   []time.Duration{15 * time.Minute, 0},
	}

	ics := SerializeCalendar(eventToICS("abc", in))
	if !strings.Contains(ics, "TRIGGER:-PT15M") {
		t.Fatalf("missing trigger in\n%s", ics)
	}

	got, err := parseEvent(decode(t, ics))
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Flight" || got.Location != "LHR" || got.Color != "#FF0000" {
		t.Fatalf("got %+v", got)
	}
	if !got.Start.Equal(in.Start) || !got.End.Equal(in.End) || got.AllDay {
		t.Fatalf("times: %v - %v allDay=%v", got.Start, got.End, got.AllDay)
	}
	if len(got.Alarms) != 2 || got.Alarms[0] != 15*time.Minute || got.Alarms[1] != 0 {
		t.Fatalf("alarms = %v", got.Alarms)
	}
}

func TestAllDayEvent(t *testing.T) {
	day := time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)
	ics := SerializeCalendar(eventToICS("xmas", domain.Event{Title: "Christmas", Start: day, End: day.AddDate(0, 0, 1), AllDay: true}))
	got, err := parseEvent(decode(t, ics))
	if err != nil {
		t.Fatal(err)
	}
	if !got.AllDay {
		t.Fatalf("all-day flag lost in\n%s", ics)
	}
}

func TestReminderToICS(t *testing.T) {
	due := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	cal, err := reminderToICS("r1", domain.Reminder{
		Title:      "Pay rent",
		Priority:   1,
		Due:        &due,
		Notes:      "landlord",
		Recurrence: &domain.Recurrence{Frequency: domain.RecurMonthly, Interval: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(cal.Children) != 1 || cal.Children[0].Name != ical.CompToDo {
		t.Fatalf("expected one VTODO, got %v", cal.Children)
	}
	todo := cal.Children[0]
	for prop, want := range map[string]string{
		ical.PropSummary:     "Pay rent",
		ical.PropPriority:    "1",
		ical.PropStatus:      "NEEDS-ACTION",
		ical.PropDescription: "landlord",
	} {
		if got := text(todo, prop); got != want {
			t.Errorf("%s = %q, want %q", prop, got, want)
		}
	}
	if rule := text(todo, ical.PropRecurrenceRule); !strings.Contains(rule, "FREQ=MONTHLY") {
		t.Errorf("rrule = %q", rule)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"-PT15M", 15 * time.Minute, true},
		{"-PT1H30M", 90 * time.Minute, true},
		{"-P1D", 24 * time.Hour, true},
		{"-P1W", 7 * 24 * time.Hour, true},
		{"PT0S", 0, true},
		{"-PT45S", 45 * time.Second, true},
		{"PT5M", 0, false},
		{"20260101T090000Z", 0, false},
		{"-PT15", 0, false},
		{"-P1H", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTrigger(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseTrigger(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if formatTrigger(90*time.Second) != "-PT90S" {
		t.Errorf("formatTrigger(90s) = %s", formatTrigger(90*time.Second))
	}
}
