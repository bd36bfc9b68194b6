package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/tazhate/calbridge/internal/domain"
	"github.com/tazhate/calbridge/internal/service"
)

const (
	// Apple iCloud CalDAV endpoint
	DefaultiCloudURL = "https://caldav.icloud.com"
)

// Store exposes CalDAV collections as calendars (VEVENT) and reminder lists (VTODO).
// Object paths serve as event ids and collection paths as calendar ids.
type Store struct {
	baseURL      string
	username     string
	password     string
	calendarName string // preferred default calendar
	listName     string // preferred default reminders list
	logger       *slog.Logger

	mu      sync.Mutex
	client  *caldav.Client
	homeSet string
}

// NewStore creates a new CalDAV store
func NewStore(baseURL, username, password, calendarName, listName string, logger *slog.Logger) *Store {
	if baseURL == "" {
		baseURL = DefaultiCloudURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarName: calendarName,
		listName:     listName,
		logger:       logger,
	}
}

// IsConfigured returns true if the store has credentials
func (s *Store) IsConfigured() bool {
	return s.username != "" && s.password != ""
}

// connect establishes connection to CalDAV server and finds the calendar home set
func (s *Store) connect(ctx context.Context) (*caldav.Client, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.homeSet != "" {
		return s.client, s.homeSet, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{
			username: s.username,
			password: s.password,
		},
		Timeout: 30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, s.baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("connect to CalDAV: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, "", fmt.Errorf("find home set: %w", err)
	}

	s.client = client
	s.homeSet = homeSet
	s.logger.Info("connected to CalDAV", "url", s.baseURL, "home", homeSet)
	return client, homeSet, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "calbridge/1.0")
	return http.DefaultTransport.RoundTrip(req)
}

// collections returns the collections supporting comp, the preferred one first.
func (s *Store) collections(ctx context.Context, comp, preferred string) ([]domain.Calendar, error) {
	client, homeSet, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	out := []domain.Calendar{}
	for _, cal := range cals {
		if !supports(cal, comp) {
			continue
		}
		out = append(out, domain.Calendar{
			ID:       cal.Path,
			Title:    cal.Name,
			Writable: true,
		})
	}
	if len(out) == 0 {
		return out, nil
	}

	def := 0
	for i, c := range out {
		if preferred != "" && c.Title == preferred {
			def = i
			break
		}
	}
	out[def].Default = true
	out[0], out[def] = out[def], out[0]
	return out, nil
}

// supports treats a collection without a declared component set as VEVENT-only.
func supports(cal caldav.Calendar, comp string) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return comp == ical.CompEvent
	}
	for _, c := range cal.SupportedComponentSet {
		if strings.EqualFold(c, comp) {
			return true
		}
	}
	return false
}

func find(cals []domain.Calendar, id string) (*domain.Calendar, error) {
	want := strings.TrimSuffix(id, "/")
	for _, c := range cals {
		if strings.TrimSuffix(c.ID, "/") == want {
			return &c, nil
		}
	}
	return nil, service.ErrNotFound
}

func defaultOf(cals []domain.Calendar) *domain.Calendar {
	for _, c := range cals {
		if c.Default {
			return &c
		}
	}
	return nil
}

// httpErrorType is the status error go-webdav returns for non-2xx responses.
// The type lives in an internal package, so it is taken from NewHTTPError.
var httpErrorType = reflect.TypeOf(webdav.NewHTTPError(http.StatusNotFound, nil))

// isNotFound reports whether err carries a 404 status from the server.
func isNotFound(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if reflect.TypeOf(err) == httpErrorType {
			return reflect.ValueOf(err).Elem().FieldByName("Code").Int() == http.StatusNotFound
		}
	}
	return false
}

// === Calendars ===

func (s *Store) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	return s.collections(ctx, ical.CompEvent, s.calendarName)
}

func (s *Store) Calendar(ctx context.Context, id string) (*domain.Calendar, error) {
	cals, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}
	return find(cals, id)
}

func (s *Store) DefaultCalendar(ctx context.Context) (*domain.Calendar, error) {
	cals, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}
	return defaultOf(cals), nil
}

// CreateCalendar is not available over plain CalDAV.
func (s *Store) CreateCalendar(context.Context, domain.NewCalendar) (string, error) {
	return "", fmt.Errorf("create calendar: %w", errors.ErrUnsupported)
}

func (s *Store) DeleteCalendar(ctx context.Context, id string) error {
	if _, err := s.Calendar(ctx, id); err != nil {
		return err
	}
	return s.remove(ctx, id)
}

func (s *Store) remove(ctx context.Context, p string) error {
	client, _, err := s.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, p); err != nil {
		if isNotFound(err) {
			return service.ErrNotFound
		}
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

// === Events ===

// EventsInRange queries every event collection for VEVENTs overlapping [from, to].
func (s *Store) EventsInRange(ctx context.Context, from, to time.Time) ([]domain.Event, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	cals, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  ical.CompEvent,
					Start: from,
					End:   to,
				},
			},
		},
	}

	events := []domain.Event{}
	for _, cal := range cals {
		objects, err := client.QueryCalendar(ctx, cal.ID, query)
		if err != nil {
			return nil, fmt.Errorf("query calendar %s: %w", cal.ID, err)
		}
		for _, obj := range objects {
			e, err := parseEvent(obj.Data)
			if err != nil {
				s.logger.Debug("skip calendar object", "path", obj.Path, "error", err)
				continue
			}
			e.ID = obj.Path
			e.CalendarID = cal.ID
			events = append(events, e)
		}
	}
	return events, nil
}

func (s *Store) Event(ctx context.Context, id string) (*domain.Event, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := client.GetCalendarObject(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, service.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	e, err := parseEvent(obj.Data)
	if err != nil {
		return nil, service.ErrNotFound
	}
	e.ID = obj.Path
	e.CalendarID = path.Dir(obj.Path) + "/"
	return &e, nil
}

// InsertEvent creates the event in its calendar
func (s *Store) InsertEvent(ctx context.Context, e domain.Event) (string, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	uid := uuid.NewString()
	objPath := objectPath(e.CalendarID, uid)
	obj, err := client.PutCalendarObject(ctx, objPath, eventToICS(uid, e))
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	if obj != nil && obj.Path != "" {
		objPath = obj.Path
	}
	return objPath, nil
}

func objectPath(collection, uid string) string {
	if !strings.HasSuffix(collection, "/") {
		collection += "/"
	}
	return collection + uid + ".ics"
}

// BeginDelete returns a batch that removes objects immediately. CalDAV has no
// multi-resource transaction, so Commit has nothing left to do.
func (s *Store) BeginDelete(context.Context) (service.EventBatch, error) {
	return immediateBatch{store: s}, nil
}

type immediateBatch struct {
	store *Store
}

func (b immediateBatch) Remove(ctx context.Context, id string) error {
	return b.store.remove(ctx, id)
}

func (immediateBatch) Commit(context.Context) error { return nil }

// === Reminders ===

func (s *Store) ReminderLists(ctx context.Context) ([]domain.RemindersList, error) {
	return s.collections(ctx, ical.CompToDo, s.listName)
}

func (s *Store) ReminderList(ctx context.Context, id string) (*domain.RemindersList, error) {
	lists, err := s.ReminderLists(ctx)
	if err != nil {
		return nil, err
	}
	return find(lists, id)
}

func (s *Store) DefaultReminderList(ctx context.Context) (*domain.RemindersList, error) {
	lists, err := s.ReminderLists(ctx)
	if err != nil {
		return nil, err
	}
	return defaultOf(lists), nil
}

func (s *Store) CreateReminderList(context.Context, domain.NewCalendar) (string, error) {
	return "", fmt.Errorf("create reminder list: %w", errors.ErrUnsupported)
}

func (s *Store) DeleteReminderList(ctx context.Context, id string) error {
	if _, err := s.ReminderList(ctx, id); err != nil {
		return err
	}
	return s.remove(ctx, id)
}

func (s *Store) InsertReminder(ctx context.Context, r domain.Reminder) (string, error) {
	client, _, err := s.connect(ctx)
	if err != nil {
		return "", err
	}

	uid := uuid.NewString()
	cal, err := reminderToICS(uid, r)
	if err != nil {
		return "", err
	}
	objPath := objectPath(r.ListID, uid)
	obj, err := client.PutCalendarObject(ctx, objPath, cal)
	if err != nil {
		return "", fmt.Errorf("create reminder: %w", err)
	}
	if obj != nil && obj.Path != "" {
		objPath = obj.Path
	}
	return objPath, nil
}
