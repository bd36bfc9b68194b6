package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/permission"
	"github.com/tazhate/calbridge/internal/pluginerr"
	"github.com/tazhate/calbridge/internal/prompt"
	"github.com/tazhate/calbridge/internal/service"
)

// scripted is a presenter whose prompts are answered by test callbacks.
type scripted struct {
	prompt.Headless
	choose  func(req *prompt.Request[[]domain.Calendar], cals []domain.Calendar)
	edit    func(req *prompt.Request[domain.EventParams], draft domain.EventParams)
	consent func(req *prompt.Request[bool])
	opened  []prompt.Target
}

func (s *scripted) ChooseCalendars(_ context.Context, req *prompt.Request[[]domain.Calendar], cals []domain.Calendar, _ domain.SelectionStyle) error {
	if s.choose == nil {
		return prompt.ErrNoPresenter
	}
	go s.choose(req, cals)
	return nil
}

func (s *scripted) EditEvent(_ context.Context, req *prompt.Request[domain.EventParams], draft domain.EventParams, _ []domain.Calendar) error {
	if s.edit == nil {
		return prompt.ErrNoPresenter
	}
	go s.edit(req, draft)
	return nil
}

func (s *scripted) ConfirmAccess(_ context.Context, req *prompt.Request[bool], _ []domain.PermissionAlias, _ bool) error {
	if s.consent == nil {
		return prompt.ErrNoPresenter
	}
	go s.consent(req)
	return nil
}

func (s *scripted) Open(_ context.Context, t prompt.Target) error {
	s.opened = append(s.opened, t)
	return nil
}

type harness struct {
	d     *Dispatcher
	store *spyStore
	perms *memPermissions
}

func newHarness(t *testing.T, platform Platform, policy permission.Policy, presenter prompt.Presenter) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newSpyStore()
	perms := &memPermissions{}
	var consenter prompt.Consenter
	if presenter != nil {
		consenter = presenter
	}
	gate := permission.NewGate(permission.NewConsentProvider(perms, consenter, policy, logger), platform.Aliases)
	d := New(Options{
		Platform:  platform,
		Gate:      gate,
		Calendars: service.NewCalendarService(store, time.UTC, logger),
		Reminders: service.NewReminderService(store, logger),
		Presenter: presenter,
		Logger:    logger,
	})
	return &harness{d: d, store: store, perms: perms}
}

func kindOf(t *testing.T, err error) pluginerr.Kind {
	t.Helper()
	var pe *pluginerr.Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *pluginerr.Error, got %T: %v", err, err)
	}
	return pe.Kind
}

func ms(t time.Time) float64 { return float64(t.UnixMilli()) }

func TestMissingKeyTouchesNoStore(t *testing.T) {
	cases := []struct {
		command string
		options map[string]any
		message string
	}{
		{CmdCreateEvent, map[string]any{}, "[calbridge.createEvent] Empty or missing key title"},
		{CmdCreateEvent, map[string]any{"title": "  "}, "[calbridge.createEvent] Empty or missing key title"},
		{CmdCreateCalendar, nil, "[calbridge.createCalendar] Empty or missing key title"},
		{CmdDeleteCalendar, map[string]any{}, "[calbridge.deleteCalendar] Empty or missing key id"},
		{CmdListEventsInRange, map[string]any{"startDate": 0.0}, "[calbridge.listEventsInRange] Empty or missing key endDate"},
		{CmdDeleteEventsByID, map[string]any{}, "[calbridge.deleteEventsById] Empty or missing key ids"},
		{CmdSelectCalendarsWithPrompt, map[string]any{"displayStyle": 0.0}, "[calbridge.selectCalendarsWithPrompt] Empty or missing key selectionStyle"},
		{CmdCheckPermission, map[string]any{}, "[calbridge.checkPermission] Empty or missing key alias"},
		{CmdCreateReminder, map[string]any{}, "[calbridge.createReminder] Empty or missing key title"},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			// Denied everywhere: validation must still run first.
			h := newHarness(t, SQLite, permission.PolicyDeny, nil)
			_, err := h.d.Call(context.Background(), tc.command, tc.options)
			if kindOf(t, err) != pluginerr.MissingKey {
				t.Fatalf("kind = %s, want missingKey", kindOf(t, err))
			}
			if err.Error() != tc.message {
				t.Errorf("message = %q, want %q", err.Error(), tc.message)
			}
			if n := h.store.calls.Load(); n != 0 {
				t.Errorf("store called %d times", n)
			}
		})
	}
}

func TestInvalidKey(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	cases := []struct {
		command string
		options map[string]any
		message string
	}{
		{CmdCheckPermission, map[string]any{"alias": "readContacts"}, "[calbridge.checkPermission] Invalid value for key alias"},
		{CmdListCalendars, map[string]any{"access": "everything"}, "[calbridge.listCalendars] Invalid value for key access"},
		{CmdCreateCalendar, map[string]any{"title": "Trips", "color": "blue"}, "[calbridge.createCalendar] Invalid value for key color"},
		{CmdCreateEvent, map[string]any{"title": "x", "startDate": "tomorrow"}, "[calbridge.createEvent] Invalid value for key startDate"},
	}
	for _, tc := range cases {
		_, err := h.d.Call(context.Background(), tc.command, tc.options)
		if kindOf(t, err) != pluginerr.InvalidKey {
			t.Fatalf("%s: kind = %s", tc.command, kindOf(t, err))
		}
		if err.Error() != tc.message {
			t.Errorf("%s: message = %q, want %q", tc.command, err.Error(), tc.message)
		}
	}
	if n := h.store.calls.Load(); n != 0 {
		t.Errorf("store called %d times", n)
	}
}

func TestNoAccessTouchesNoStore(t *testing.T) {
	cases := []struct {
		command string
		options map[string]any
		message string
	}{
		{CmdListCalendars, nil, "[calbridge.listCalendars] Access has not been granted (calendar/read)"},
		{CmdCreateEvent, map[string]any{"title": "Lunch"}, "[calbridge.createEvent] Access has not been granted (calendar/write)"},
		{CmdDeleteEventsByID, map[string]any{"ids": []any{"ID_1"}}, "[calbridge.deleteEventsById] Access has not been granted (calendar/write)"},
		{CmdGetRemindersLists, nil, "[calbridge.getRemindersLists] Access has not been granted (reminders/read)"},
		{CmdCreateReminder, map[string]any{"title": "Milk"}, "[calbridge.createReminder] Access has not been granted (reminders/write)"},
	}
	for _, tc := range cases {
		t.Run(tc.command, func(t *testing.T) {
			h := newHarness(t, SQLite, permission.PolicyPrompt, nil)
			_, err := h.d.Call(context.Background(), tc.command, tc.options)
			if kindOf(t, err) != pluginerr.NoAccess {
				t.Fatalf("kind = %s, want noAccess", kindOf(t, err))
			}
			if err.Error() != tc.message {
				t.Errorf("message = %q, want %q", err.Error(), tc.message)
			}
			if n := h.store.calls.Load(); n != 0 {
				t.Errorf("store called %d times", n)
			}
		})
	}
}

func TestUnsupportedCommandsAreUnimplemented(t *testing.T) {
	cases := []struct {
		platform Platform
		command  string
	}{
		{Google, CmdCreateReminder},
		{Google, CmdRequestFullRemindersAccess},
		{Google, CmdOpenReminders},
		{CalDAV, CmdCreateCalendar},
		{SQLite, "launchRockets"},
	}
	for _, tc := range cases {
		h := newHarness(t, tc.platform, permission.PolicyGrant, nil)
		// Options are invalid on purpose: the platform check comes first.
		_, err := h.d.Call(context.Background(), tc.command, nil)
		if kindOf(t, err) != pluginerr.Unimplemented {
			t.Errorf("%s on %s: kind = %s", tc.command, tc.platform.Name, kindOf(t, err))
		}
	}
}

func TestCommandsListsSupportedOnly(t *testing.T) {
	h := newHarness(t, Google, permission.PolicyGrant, nil)
	for _, c := range h.d.Commands() {
		if strings.Contains(strings.ToLower(c.Name), "reminder") {
			t.Errorf("google platform lists %s", c.Name)
		}
	}
	all := newHarness(t, SQLite, permission.PolicyGrant, nil).d.Commands()
	if len(all) != len(registry) {
		t.Errorf("sqlite lists %d commands, want %d", len(all), len(registry))
	}
}

func TestGoogleCheckAllOmitsReminders(t *testing.T) {
	h := newHarness(t, Google, permission.PolicyGrant, nil)
	out, err := h.d.Call(context.Background(), CmdCheckAllPermissions, nil)
	if err != nil {
		t.Fatal(err)
	}
	states := out.(map[domain.PermissionAlias]domain.PermissionState)
	if len(states) != 2 || states[domain.ReadCalendar] != domain.StateGranted {
		t.Errorf("states = %v", states)
	}

	_, err = h.d.Call(context.Background(), CmdCheckPermission, map[string]any{"alias": "readReminders"})
	if kindOf(t, err) != pluginerr.Unimplemented {
		t.Errorf("kind = %s, want unimplemented", kindOf(t, err))
	}
}

func TestCheckPermissionIsIdempotent(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyPrompt, nil)
	for i := 0; i < 3; i++ {
		out, err := h.d.Call(context.Background(), CmdCheckPermission, map[string]any{"alias": "writeCalendar"})
		if err != nil {
			t.Fatal(err)
		}
		if out != (Envelope{Result: domain.StatePrompt}) {
			t.Fatalf("call %d: %v", i, out)
		}
	}
	if len(h.perms.states) != 0 {
		t.Errorf("checking stored state: %v", h.perms.states)
	}
}

func TestRequestAccessConsent(t *testing.T) {
	answer := false
	p := &scripted{consent: func(req *prompt.Request[bool]) { req.Resolve(answer) }}
	h := newHarness(t, SQLite, permission.PolicyPrompt, p)
	ctx := context.Background()

	out, err := h.d.Call(ctx, CmdRequestFullCalendarAccess, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != (Envelope{Result: domain.StatePromptWithRationale}) {
		t.Fatalf("first refusal = %v", out)
	}
	out, _ = h.d.Call(ctx, CmdRequestFullCalendarAccess, nil)
	if out != (Envelope{Result: domain.StateDenied}) {
		t.Fatalf("second refusal = %v", out)
	}

	answer = true
	out, _ = h.d.Call(ctx, CmdRequestReadOnlyCalendarAccess, nil)
	if out != (Envelope{Result: domain.StateDenied}) {
		t.Errorf("denied alias prompted again: %v", out)
	}
	out, _ = h.d.Call(ctx, CmdRequestFullRemindersAccess, nil)
	if out != (Envelope{Result: domain.StateGranted}) {
		t.Errorf("reminders = %v", out)
	}
}

func TestRequestAccessHeadless(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyPrompt, nil)
	_, err := h.d.Call(context.Background(), CmdRequestReadOnlyCalendarAccess, nil)
	if kindOf(t, err) != pluginerr.NoViewController {
		t.Errorf("kind = %s, want noViewController", kindOf(t, err))
	}
}

func TestDeleteEventsByID(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for _, title := range []string{"one", "two"} {
		if _, err := h.d.Call(ctx, CmdCreateEvent, map[string]any{"title": title, "startDate": ms(start)}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := h.d.Call(ctx, CmdDeleteEventsByID, map[string]any{"ids": []any{"EV_1", "ID_X", "EV_2"}})
	if err != nil {
		t.Fatal(err)
	}
	got := out.(Envelope).Result.(domain.DeleteOutcome)
	want := domain.DeleteOutcome{Deleted: []string{"EV_1", "EV_2"}, Failed: []string{"ID_X"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("outcome = %+v, want %+v", got, want)
	}

	body, _ := json.Marshal(out)
	if string(body) != `{"result":{"deleted":["EV_1","EV_2"],"failed":["ID_X"]}}` {
		t.Errorf("json = %s", body)
	}
}

func TestCreateEventDefaults(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	before := time.Now()
	out, err := h.d.Call(context.Background(), CmdCreateEvent, map[string]any{"title": "Focus"})
	if err != nil {
		t.Fatal(err)
	}
	id := out.(Envelope).Result.(string)
	ev := h.store.events[id]
	if ev.CalendarID != "CAL_1" {
		t.Errorf("calendar = %s, want default", ev.CalendarID)
	}
	if ev.Start.Before(before.Add(-time.Second)) || ev.End.Sub(ev.Start) != time.Hour {
		t.Errorf("start %v end %v", ev.Start, ev.End)
	}
	if len(ev.Alarms) != 0 {
		t.Errorf("alarms = %v", ev.Alarms)
	}
}

func TestCreateEventAlertOffset(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	out, err := h.d.Call(context.Background(), CmdCreateEvent, map[string]any{"title": "Dentist", "alertOffsetInMinutes": 15.0})
	if err != nil {
		t.Fatal(err)
	}
	ev := h.store.events[out.(Envelope).Result.(string)]
	if !reflect.DeepEqual(ev.Alarms, []time.Duration{15 * time.Minute}) {
		t.Errorf("alarms = %v", ev.Alarms)
	}
}

func TestListEventsOmitsEmptyFields(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	if _, err := h.d.Call(ctx, CmdCreateEvent, map[string]any{"title": "Walk", "startDate": ms(start)}); err != nil {
		t.Fatal(err)
	}
	out, err := h.d.Call(ctx, CmdListEventsInRange, map[string]any{
		"startDate": ms(start.Add(-time.Hour)),
		"endDate":   ms(start.Add(3 * time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(out)
	if strings.Contains(string(body), "location") {
		t.Errorf("empty location serialized: %s", body)
	}
	if !strings.Contains(string(body), `"title":"Walk"`) {
		t.Errorf("missing event: %s", body)
	}
}

func TestVoidCommandsReturnEmptyObject(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	out, err := h.d.Call(context.Background(), CmdDeleteCalendar, map[string]any{"id": "CAL_1"})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(out)
	if string(body) != "{}" {
		t.Errorf("json = %s", body)
	}

	_, err = h.d.Call(context.Background(), CmdDeleteCalendar, map[string]any{"id": "CAL_1"})
	if kindOf(t, err) != pluginerr.CalendarNotFound {
		t.Errorf("kind = %s, want calendarNotFound", kindOf(t, err))
	}
}

func TestCreateReminderRecurrenceErrors(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	cases := []struct {
		recurrence map[string]any
		kind       pluginerr.Kind
		message    string
	}{
		{map[string]any{"interval": 1.0}, pluginerr.MissingKey,
			"[calbridge.createReminder] Empty or missing key frequency, must be provided when using recurrence"},
		{map[string]any{"frequency": 1.0}, pluginerr.InvalidKey,
			"[calbridge.createReminder] Invalid value for key interval, must be greater than 0 when using recurrence"},
		{map[string]any{"frequency": 1.0, "interval": 0.0}, pluginerr.InvalidKey,
			"[calbridge.createReminder] Invalid value for key interval, must be greater than 0 when using recurrence"},
		{map[string]any{"frequency": 7.0, "interval": 1.0}, pluginerr.InvalidKey,
			"[calbridge.createReminder] Invalid value for key recurrence.frequency"},
	}
	for _, tc := range cases {
		_, err := h.d.Call(context.Background(), CmdCreateReminder, map[string]any{"title": "Water plants", "recurrence": tc.recurrence})
		if kindOf(t, err) != tc.kind || err.Error() != tc.message {
			t.Errorf("%v: got %s %q", tc.recurrence, kindOf(t, err), err.Error())
		}
	}
}

func TestCreateReminder(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	due := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	out, err := h.d.Call(context.Background(), CmdCreateReminder, map[string]any{
		"title":      "Water plants",
		"priority":   12.0,
		"dueDate":    ms(due),
		"recurrence": map[string]any{"frequency": 1.0, "interval": 2.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := h.store.reminders[out.(Envelope).Result.(string)]
	if r.ListID != "LIST_1" || r.Priority != 9 {
		t.Errorf("reminder = %+v", r)
	}
	if r.Recurrence == nil || r.Recurrence.Frequency != domain.RecurWeekly || r.Recurrence.Interval != 2 {
		t.Errorf("recurrence = %+v", r.Recurrence)
	}
}

func TestSelectCalendarsCancelled(t *testing.T) {
	p := &scripted{choose: func(req *prompt.Request[[]domain.Calendar], _ []domain.Calendar) { req.Cancel() }}
	h := newHarness(t, SQLite, permission.PolicyGrant, p)
	out, err := h.d.Call(context.Background(), CmdSelectCalendarsWithPrompt, map[string]any{"displayStyle": 0.0, "selectionStyle": 1.0})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(out)
	if string(body) != `{"result":[]}` {
		t.Errorf("json = %s", body)
	}
}

func TestSelectCalendarsChosen(t *testing.T) {
	p := &scripted{choose: func(req *prompt.Request[[]domain.Calendar], cals []domain.Calendar) { req.Resolve(cals[:1]) }}
	h := newHarness(t, SQLite, permission.PolicyGrant, p)
	out, err := h.d.Call(context.Background(), CmdSelectCalendarsWithPrompt, map[string]any{"displayStyle": "writableOnly", "selectionStyle": "single"})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := json.Marshal(out)
	if string(body) != `{"result":[{"id":"CAL_1","title":"Personal","writable":true}]}` {
		t.Errorf("json = %s", body)
	}
}

func TestSecondPromptIsRejected(t *testing.T) {
	shown := make(chan *prompt.Request[[]domain.Calendar], 1)
	p := &scripted{choose: func(req *prompt.Request[[]domain.Calendar], _ []domain.Calendar) { shown <- req }}
	h := newHarness(t, SQLite, permission.PolicyGrant, p)
	opts := map[string]any{"displayStyle": 0.0, "selectionStyle": 0.0}

	first := make(chan error, 1)
	go func() {
		_, err := h.d.Call(context.Background(), CmdSelectCalendarsWithPrompt, opts)
		first <- err
	}()
	req := <-shown

	_, err := h.d.Call(context.Background(), CmdSelectCalendarsWithPrompt, opts)
	if kindOf(t, err) != pluginerr.OSError || !strings.Contains(err.Error(), "prompt already in progress") {
		t.Errorf("second prompt: %v", err)
	}

	req.Cancel()
	if err := <-first; err != nil {
		t.Errorf("first prompt: %v", err)
	}
}

func TestPromptWithoutPresenter(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	_, err := h.d.Call(context.Background(), CmdSelectCalendarsWithPrompt, map[string]any{"displayStyle": 0.0, "selectionStyle": 0.0})
	if kindOf(t, err) != pluginerr.NoViewController {
		t.Errorf("kind = %s, want noViewController", kindOf(t, err))
	}
	_, err = h.d.Call(context.Background(), CmdOpenCalendar, nil)
	if kindOf(t, err) != pluginerr.UnableToOpenCalendar {
		t.Errorf("kind = %s, want unableToOpenCalendar", kindOf(t, err))
	}
	_, err = h.d.Call(context.Background(), CmdOpenReminders, nil)
	if kindOf(t, err) != pluginerr.UnableToOpenReminders {
		t.Errorf("kind = %s, want unableToOpenReminders", kindOf(t, err))
	}
}

func TestOpenCalendarAtDate(t *testing.T) {
	p := &scripted{}
	h := newHarness(t, SQLite, permission.PolicyGrant, p)
	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if _, err := h.d.Call(context.Background(), CmdOpenCalendar, map[string]any{"date": ms(at)}); err != nil {
		t.Fatal(err)
	}
	if len(p.opened) != 1 || p.opened[0].App != prompt.AppCalendar || !p.opened[0].At.Equal(at) {
		t.Errorf("opened = %+v", p.opened)
	}
}

func TestCreateEventWithPrompt(t *testing.T) {
	p := &scripted{edit: func(req *prompt.Request[domain.EventParams], draft domain.EventParams) {
		draft.Title = "Edited " + draft.Title
		req.Resolve(draft)
	}}
	h := newHarness(t, SQLite, permission.PolicyGrant, p)
	out, err := h.d.Call(context.Background(), CmdCreateEventWithPrompt, map[string]any{"title": "Trip"})
	if err != nil {
		t.Fatal(err)
	}
	ids := out.(Envelope).Result.([]string)
	if len(ids) != 1 || h.store.events[ids[0]].Title != "Edited Trip" {
		t.Errorf("ids = %v events = %v", ids, h.store.events)
	}

	p.edit = func(req *prompt.Request[domain.EventParams], _ domain.EventParams) { req.Cancel() }
	out, err = h.d.Call(context.Background(), CmdCreateEventWithPrompt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ids := out.(Envelope).Result.([]string); len(ids) != 0 {
		t.Errorf("cancelled ids = %v", ids)
	}
}

type recorder struct {
	resolved []any
	rejected []pluginerr.Rejection
}

func (r *recorder) Resolve(v any)                   { r.resolved = append(r.resolved, v) }
func (r *recorder) Reject(rej pluginerr.Rejection) { r.rejected = append(r.rejected, rej) }

func TestInvokeSettlesOnce(t *testing.T) {
	h := newHarness(t, SQLite, permission.PolicyGrant, nil)
	ctx := context.Background()

	ok := &recorder{}
	h.d.Invoke(ctx, CmdGetDefaultCalendar, nil, ok)
	if len(ok.resolved) != 1 || len(ok.rejected) != 0 {
		t.Fatalf("resolved %d rejected %d", len(ok.resolved), len(ok.rejected))
	}

	bad := &recorder{}
	h.d.Invoke(ctx, CmdCreateCalendar, map[string]any{}, bad)
	if len(bad.resolved) != 0 || len(bad.rejected) != 1 {
		t.Fatalf("resolved %d rejected %d", len(bad.resolved), len(bad.rejected))
	}
	rej := bad.rejected[0]
	if rej.Data.Type != pluginerr.MissingKey || rej.Message != "[calbridge.createCalendar] Empty or missing key title" {
		t.Errorf("rejection = %+v", rej)
	}
}

func TestCatalogSchema(t *testing.T) {
	h := newHarness(t, CalDAV, permission.PolicyGrant, nil)
	var del *CommandInfo
	for _, c := range h.d.Catalog() {
		if c.Name == CmdCreateCalendar {
			t.Fatal("caldav catalog lists createCalendar")
		}
		if c.Name == CmdDeleteEventsByID {
			c := c
			del = &c
		}
	}
	if del == nil {
		t.Fatal("deleteEventsById missing")
	}
	if del.Access != "calendar/write" {
		t.Errorf("access = %q", del.Access)
	}
	schema := del.InputSchema()
	if !reflect.DeepEqual(schema["required"], []string{"ids"}) {
		t.Errorf("required = %v", schema["required"])
	}
}
