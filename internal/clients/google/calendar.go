// Package google adapts the Google Calendar API to the calendar store interface.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/service"
)

// idSeparator joins calendar and event ids into one event id, since Google
// event ids are only unique within their calendar.
const idSeparator = "::"

// Store is a CalendarStore backed by Google Calendar.
type Store struct {
	service *calendar.Service
	logger  *slog.Logger
}

// NewStore loads OAuth credentials and a saved token and connects to the API.
func NewStore(ctx context.Context, credentialsFile, tokenFile string, logger *slog.Logger) (*Store, error) {
	config, err := OAuthConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("could not load token from %s: %w. Please run the 'google-auth' command first", tokenFile, err)
	}
	return NewStoreWithClient(ctx, config.Client(ctx, token), logger)
}

// NewStoreWithClient connects using an already authenticated HTTP client.
func NewStoreWithClient(ctx context.Context, client *http.Client, logger *slog.Logger, opts ...option.ClientOption) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := calendar.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Store{service: svc, logger: logger}, nil
}

// OAuthConfig reads the client secret file for the desktop flow.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && (gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone)
}

// === Calendars ===

func toCalendar(e *calendar.CalendarListEntry) domain.Calendar {
	return domain.Calendar{
		ID:       e.Id,
		Title:    e.Summary,
		Writable: e.AccessRole == "owner" || e.AccessRole == "writer",
		Color:    strings.ToUpper(e.BackgroundColor),
		Default:  e.Primary,
	}
}

func (s *Store) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	cals := []domain.Calendar{}
	err := s.service.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			cals = append(cals, toCalendar(item))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return cals, nil
}

func (s *Store) Calendar(ctx context.Context, id string) (*domain.Calendar, error) {
	entry, err := s.service.CalendarList.Get(id).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get calendar: %w", err)
	}
	cal := toCalendar(entry)
	return &cal, nil
}

// DefaultCalendar returns the primary calendar.
func (s *Store) DefaultCalendar(ctx context.Context) (*domain.Calendar, error) {
	cal, err := s.Calendar(ctx, "primary")
	if errors.Is(err, service.ErrNotFound) {
		return nil, nil
	}
	return cal, err
}

func (s *Store) CreateCalendar(ctx context.Context, nc domain.NewCalendar) (string, error) {
	created, err := s.service.Calendars.Insert(&calendar.Calendar{Summary: nc.Title}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create calendar: %w", err)
	}
	if nc.Color != "" {
		_, err := s.service.CalendarList.Patch(created.Id, &calendar.CalendarListEntry{
			BackgroundColor: nc.Color,
			ForegroundColor: "#000000",
		}).ColorRgbFormat(true).Context(ctx).Do()
		if err != nil {
			s.logger.Warn("failed to set calendar color", "calendar", created.Id, "error", err)
		}
	}
	return created.Id, nil
}

func (s *Store) DeleteCalendar(ctx context.Context, id string) error {
	if err := s.service.Calendars.Delete(id).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return service.ErrNotFound
		}
		return fmt.Errorf("failed to delete calendar: %w", err)
	}
	return nil
}

// === Events ===

func eventID(calendarID, id string) string {
	return calendarID + idSeparator + id
}

func splitEventID(id string) (calendarID, eventID string, ok bool) {
	i := strings.LastIndex(id, idSeparator)
	if i <= 0 || i+len(idSeparator) >= len(id) {
		return "", "", false
	}
	return id[:i], id[i+len(idSeparator):], true
}

// toEvent converts a Google event, reading all-day events from their date fields.
func toEvent(cal domain.Calendar, item *calendar.Event) domain.Event {
	e := domain.Event{
		ID:          eventID(cal.ID, item.Id),
		CalendarID:  cal.ID,
		Title:       item.Summary,
		Location:    item.Location,
		Description: item.Description,
		Color:       cal.Color,
	}
	if item.Organizer != nil {
		e.Organizer = item.Organizer.Email
	}
	if item.Start != nil {
		e.Start, e.AllDay = parseEventTime(item.Start)
		e.Timezone = item.Start.TimeZone
	}
	if item.End != nil {
		e.End, _ = parseEventTime(item.End)
		e.EndTimezone = item.End.TimeZone
	}
	if item.Reminders != nil {
		for _, r := range item.Reminders.Overrides {
			e.Alarms = append(e.Alarms, time.Duration(r.Minutes)*time.Minute)
		}
	}
	return e
}

func parseEventTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t.DateTime != "" {
		v, _ := time.Parse(time.RFC3339, t.DateTime)
		return v, false
	}
	v, _ := time.Parse("2006-01-02", t.Date)
	return v, true
}

func fromEvent(e domain.Event) *calendar.Event {
	item := &calendar.Event{
		Summary:     e.Title,
		Location:    e.Location,
		Description: e.Description,
	}
	if e.AllDay {
		item.Start = &calendar.EventDateTime{Date: e.Start.Format("2006-01-02")}
		item.End = &calendar.EventDateTime{Date: e.End.Format("2006-01-02")}
		if !e.End.After(e.Start) {
			item.End.Date = e.Start.AddDate(0, 0, 1).Format("2006-01-02")
		}
	} else {
		item.Start = &calendar.EventDateTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: e.Timezone}
		item.End = &calendar.EventDateTime{DateTime: e.End.Format(time.RFC3339), TimeZone: e.Timezone}
	}
	if len(e.Alarms) > 0 {
		item.Reminders = &calendar.EventReminders{ForceSendFields: []string{"UseDefault"}}
		for _, a := range e.Alarms {
			item.Reminders.Overrides = append(item.Reminders.Overrides, &calendar.EventReminder{
				Method:          "popup",
				Minutes:         int64(a / time.Minute),
				ForceSendFields: []string{"Minutes"},
			})
		}
	}
	return item
}

func (s *Store) EventsInRange(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	cals, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}
	events := []domain.Event{}
	for _, cal := range cals {
		err := s.service.Events.List(cal.ID).
			ShowDeleted(false).
			SingleEvents(true).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			OrderBy("startTime").
			Pages(ctx, func(page *calendar.Events) error {
				for _, item := range page.Items {
					events = append(events, toEvent(cal, item))
				}
				return nil
			})
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve events for %s: %w", cal.ID, err)
		}
	}
	s.logger.Debug("fetched events from Google Calendar", "count", len(events))
	return events, nil
}

func (s *Store) Event(ctx context.Context, id string) (*domain.Event, error) {
	calID, evID, ok := splitEventID(id)
	if !ok {
		return nil, service.ErrNotFound
	}
	cal, err := s.Calendar(ctx, calID)
	if err != nil {
		return nil, err
	}
	item, err := s.service.Events.Get(calID, evID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if item.Status == "cancelled" {
		return nil, service.ErrNotFound
	}
	e := toEvent(*cal, item)
	return &e, nil
}

func (s *Store) InsertEvent(ctx context.Context, e domain.Event) (string, error) {
	created, err := s.service.Events.Insert(e.CalendarID, fromEvent(e)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %w", err)
	}
	return eventID(e.CalendarID, created.Id), nil
}

// BeginDelete returns a batch that deletes each event immediately.
func (s *Store) BeginDelete(context.Context) (service.EventBatch, error) {
	return immediateBatch{store: s}, nil
}

type immediateBatch struct {
	store *Store
}

func (b immediateBatch) Remove(ctx context.Context, id string) error {
	calID, evID, ok := splitEventID(id)
	if !ok {
		return service.ErrNotFound
	}
	if err := b.store.service.Events.Delete(calID, evID).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return service.ErrNotFound
		}
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (immediateBatch) Commit(context.Context) error { return nil }
